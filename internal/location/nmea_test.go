package location

import (
	"testing"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captured struct {
	batches  [][]Update
	headings []float64
}

func (c *captured) handlers() Handlers {
	return Handlers{
		Locations: func(b []Update) { c.batches = append(c.batches, b) },
		Heading:   func(h float64) { c.headings = append(c.headings, h) },
	}
}

func TestApplyRMC(t *testing.T) {
	n := NewNMEABackend(NMEAConfig{PortPath: "/dev/null"}, zap.NewNop())
	var c captured

	s, err := nmea.Parse("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A")
	require.NoError(t, err)
	n.apply(s, c.handlers())

	require.Len(t, c.batches, 1)
	require.Len(t, c.batches[0], 1)
	u := c.batches[0][0]
	assert.InDelta(t, 48.1173, u.Latitude, 1e-4)
	assert.InDelta(t, 11.5167, u.Longitude, 1e-4)
	assert.InDelta(t, 22.4*knotsToMS, u.SpeedMS, 1e-9)

	require.Len(t, c.headings, 1)
	assert.InDelta(t, 84.4, c.headings[0], 1e-9)
}

func TestApplyGGAFoldsAltitudeIntoNextFix(t *testing.T) {
	n := NewNMEABackend(NMEAConfig{PortPath: "/dev/null"}, zap.NewNop())
	var c captured

	gga, err := nmea.Parse("$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47")
	require.NoError(t, err)
	n.apply(gga, c.handlers())
	assert.Empty(t, c.batches, "GGA alone produces no position update")

	rmc, err := nmea.Parse("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A")
	require.NoError(t, err)
	n.apply(rmc, c.handlers())

	require.Len(t, c.batches, 1)
	assert.InDelta(t, 545.4, c.batches[0][0].AltitudeMeters, 1e-9)
}

func TestApplyVoidRMCIgnored(t *testing.T) {
	n := NewNMEABackend(NMEAConfig{PortPath: "/dev/null"}, zap.NewNop())
	var c captured

	void := nmea.RMC{
		BaseSentence: nmea.BaseSentence{Type: nmea.TypeRMC},
		Validity:     "V",
		Speed:        100,
	}
	n.apply(void, c.handlers())

	assert.Empty(t, c.batches)
	assert.Empty(t, c.headings)
}

func TestApplyHDTHeading(t *testing.T) {
	n := NewNMEABackend(NMEAConfig{PortPath: "/dev/null"}, zap.NewNop())
	var c captured

	hdt := nmea.HDT{
		BaseSentence: nmea.BaseSentence{Type: nmea.TypeHDT},
		Heading:      45.5,
	}
	n.apply(hdt, c.handlers())

	require.Len(t, c.headings, 1)
	assert.InDelta(t, 45.5, c.headings[0], 1e-9)
	assert.Empty(t, c.batches)
}

func TestApplyNilHandlers(t *testing.T) {
	n := NewNMEABackend(NMEAConfig{PortPath: "/dev/null"}, zap.NewNop())

	s, err := nmea.Parse("$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A")
	require.NoError(t, err)
	n.apply(s, Handlers{}) // must not panic
}

func TestDefaultBaudRate(t *testing.T) {
	n := NewNMEABackend(NMEAConfig{PortPath: "/dev/ttyGPS"}, zap.NewNop())
	assert.Equal(t, 9600, n.baudRate)
	assert.Equal(t, PermissionUndetermined, n.Permission())
}
