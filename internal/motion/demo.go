package motion

import (
	"math"
	"time"
)

// DemoBackend generates a smooth synthetic attitude for development without
// an IMU.
type DemoBackend struct {
	start time.Time
}

// NewDemoBackend creates a simulated motion backend.
func NewDemoBackend() *DemoBackend { return &DemoBackend{start: time.Now()} }

func (d *DemoBackend) Name() string { return "Demo (Simulated)" }

func (d *DemoBackend) Available() bool { return true }

func (d *DemoBackend) Sample() (Attitude, error) {
	elapsed := time.Since(d.start).Seconds()
	return Attitude{
		Pitch: 15 * math.Pi / 180 * math.Cos(elapsed*0.7),
		Roll:  20 * math.Pi / 180 * math.Sin(elapsed),
		Yaw:   math.Pi * math.Sin(elapsed*0.2),
	}, nil
}
