package dash

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/navdash/navdash/internal/location"
	"github.com/navdash/navdash/internal/motion"
)

func TestFill(t *testing.T) {
	assert.Equal(t, 0.0, Fill(0))
	assert.Equal(t, 0.5, Fill(45))
	assert.Equal(t, 0.5, Fill(-45))
	assert.Equal(t, 1.0, Fill(90))
	assert.Equal(t, 1.0, Fill(-90))
	// Beyond ±90° clamps to full width, it is not an error.
	assert.Equal(t, 1.0, Fill(180))
	assert.Equal(t, 1.0, Fill(-200))
}

func TestBarAnchorFlipsAtZero(t *testing.T) {
	pos := NewBar(30)
	neg := NewBar(-30)

	assert.Equal(t, pos.Fraction, neg.Fraction)
	assert.False(t, pos.FromRight)
	assert.True(t, neg.FromRight)
}

func TestOffsetsMirrorForOppositeSigns(t *testing.T) {
	const track = 300.0

	posLeft, posWidth := NewBar(30).Offsets(track)
	negLeft, negWidth := NewBar(-30).Offsets(track)

	assert.InDelta(t, 100.0, posWidth, 1e-9)
	assert.InDelta(t, 100.0, negWidth, 1e-9)
	// Positive grows from the left edge; negative keeps its right end pinned
	// to the track's right boundary. Mirrored, not identical.
	assert.InDelta(t, 0.0, posLeft, 1e-9)
	assert.InDelta(t, 200.0, negLeft, 1e-9)
	assert.InDelta(t, track, negLeft+negWidth, 1e-9)
	assert.NotEqual(t, posLeft, negLeft)
}

func TestZeroBarGrowsFromLeft(t *testing.T) {
	b := NewBar(0)
	assert.False(t, b.FromRight)
	assert.Zero(t, b.Fraction)
}

func TestCompassAngleIsHeading(t *testing.T) {
	assert.Equal(t, 0.0, CompassAngle(0))
	assert.Equal(t, 84.4, CompassAngle(84.4))
	assert.Equal(t, 359.9, CompassAngle(359.9))
}

func TestFromReadings(t *testing.T) {
	g := FromReadings(
		location.Reading{HeadingDegrees: 123},
		motion.Reading{PitchDegrees: 45, RollDegrees: -90},
	)

	assert.Equal(t, 123.0, g.CompassAngle)
	assert.Equal(t, 0.5, g.PitchBar.Fraction)
	assert.False(t, g.PitchBar.FromRight)
	assert.Equal(t, 1.0, g.RollBar.Fraction)
	assert.True(t, g.RollBar.FromRight)
}
