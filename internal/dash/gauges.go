// Package dash holds the pure mapping from sensor readings to gauge
// geometry. Everything here is stateless and deterministic; the web page
// applies these values verbatim.
package dash

import (
	"math"

	"github.com/navdash/navdash/internal/location"
	"github.com/navdash/navdash/internal/motion"
)

// Bar describes one inclination bar. Fraction is the filled share of the
// track; FromRight anchors the fill to the track's right edge for negative
// axis values, so the growth direction flips at zero.
type Bar struct {
	Fraction  float64 `json:"fraction"`
	FromRight bool    `json:"fromRight"`
}

// Gauges carries the derived visual parameters for one frame.
type Gauges struct {
	CompassAngle float64 `json:"compassAngle"`
	PitchBar     Bar     `json:"pitchBar"`
	RollBar      Bar     `json:"rollBar"`
}

// CompassAngle is the needle rotation for a heading: the heading itself,
// snapped to the latest reading with no smoothing or interpolation.
func CompassAngle(headingDegrees float64) float64 { return headingDegrees }

// Fill returns the bar fill fraction for an axis value in degrees:
// clamp(|v|/90, 0, 1). Values beyond ±90° clamp to full width.
func Fill(v float64) float64 {
	f := math.Abs(v) / 90
	if f > 1 {
		return 1
	}
	return f
}

// NewBar maps an axis value to its bar geometry.
func NewBar(v float64) Bar {
	return Bar{Fraction: Fill(v), FromRight: v < 0}
}

// Offsets resolves a bar on a track of the given width, returning the left
// edge and width of the fill. A right-anchored bar keeps its right end
// pinned to the track boundary while the left edge recedes.
func (b Bar) Offsets(trackWidth float64) (left, width float64) {
	width = b.Fraction * trackWidth
	if b.FromRight {
		left = trackWidth - width
	}
	return left, width
}

// FromReadings derives the gauge parameters for the latest readings.
func FromReadings(loc location.Reading, ori motion.Reading) Gauges {
	return Gauges{
		CompassAngle: CompassAngle(loc.HeadingDegrees),
		PitchBar:     NewBar(ori.PitchDegrees),
		RollBar:      NewBar(ori.RollDegrees),
	}
}
