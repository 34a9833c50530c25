package location

import (
	"math"
	"sync"
	"time"
)

// DemoBackend simulates driving in a circle, for development without
// hardware. Permission requests are always granted.
type DemoBackend struct {
	mu   sync.Mutex
	perm Permission
	stop chan struct{}
	t    float64
}

// NewDemoBackend creates a simulated location backend.
func NewDemoBackend() *DemoBackend { return &DemoBackend{} }

func (d *DemoBackend) Name() string { return "Demo (Simulated)" }

func (d *DemoBackend) Permission() Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.perm
}

func (d *DemoBackend) RequestPermission(cb func(Permission)) {
	d.mu.Lock()
	d.perm = PermissionWhileInUse
	d.mu.Unlock()
	if cb != nil {
		cb(PermissionWhileInUse)
	}
}

func (d *DemoBackend) StartUpdates(h Handlers) error {
	d.mu.Lock()
	if d.stop != nil {
		d.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	d.stop = stop
	d.mu.Unlock()

	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				d.tick(h)
			}
		}
	}()
	return nil
}

func (d *DemoBackend) StopUpdates() {
	d.mu.Lock()
	stop := d.stop
	d.stop = nil
	d.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

func (d *DemoBackend) tick(h Handlers) {
	d.mu.Lock()
	d.t += 0.1
	t := d.t
	d.mu.Unlock()

	// Drive a circle around a point.
	const (
		centerLat = 43.6532 // Toronto
		centerLon = -79.3832
		radius    = 0.005 // ~500m
	)
	if h.Locations != nil {
		h.Locations([]Update{{
			Latitude:       centerLat + radius*math.Sin(t*0.1),
			Longitude:      centerLon + radius*math.Cos(t*0.1),
			AltitudeMeters: 76 + 2*math.Sin(t*0.05),
			SpeedMS:        14 + 8*math.Sin(t*0.3),
		}})
	}
	if h.Heading != nil {
		h.Heading(math.Mod(t*10, 360))
	}
}
