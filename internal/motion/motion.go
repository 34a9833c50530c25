package motion

import "math"

// Attitude is one raw device attitude sample, in radians.
type Attitude struct {
	Pitch float64
	Roll  float64
	Yaw   float64
}

// Reading is the current observable orientation state, in degrees. Active is
// true once a sample has been delivered and false after the source stops.
type Reading struct {
	PitchDegrees float64 `json:"pitchDegrees"`
	RollDegrees  float64 `json:"rollDegrees"`
	YawDegrees   float64 `json:"yawDegrees"`
	Active       bool    `json:"active"`
}

// Backend is the motion service a Source samples. A Sample error means that
// single sample is discarded; it is never surfaced past the Source.
type Backend interface {
	Name() string
	// Available reports whether motion hardware exists for this session.
	Available() bool
	// Sample reads the current device attitude.
	Sample() (Attitude, error)
}

const degPerRad = 180 / math.Pi
