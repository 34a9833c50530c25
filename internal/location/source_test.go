package location

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBackend drives a Source deterministically from the test body.
type fakeBackend struct {
	mu       sync.Mutex
	perm     Permission
	permCB   func(Permission)
	handlers Handlers
	starts   int
	stops    int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Permission() Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perm
}

func (f *fakeBackend) RequestPermission(cb func(Permission)) {
	f.mu.Lock()
	f.permCB = cb
	f.mu.Unlock()
}

func (f *fakeBackend) StartUpdates(h Handlers) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.handlers = h
	return nil
}

func (f *fakeBackend) StopUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

// grant simulates a permission-change callback from the platform.
func (f *fakeBackend) grant(p Permission) {
	f.mu.Lock()
	f.perm = p
	cb := f.permCB
	f.mu.Unlock()
	if cb != nil {
		cb(p)
	}
}

func (f *fakeBackend) h() Handlers {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers
}

func startedSource(t *testing.T) (*Source, *fakeBackend) {
	t.Helper()
	fb := &fakeBackend{perm: PermissionWhileInUse}
	src := NewSource(fb, zap.NewNop())
	src.Start()
	require.Equal(t, 1, fb.starts)
	return src, fb
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	fb := &fakeBackend{}
	src := NewSource(fb, zap.NewNop())

	src.Stop()

	r := src.Reading()
	assert.Zero(t, r.SpeedKmh)
	assert.Zero(t, r.AltitudeMeters)
	assert.Zero(t, r.HeadingDegrees)
	assert.Equal(t, PermissionUndetermined, r.Permission)
	assert.Equal(t, 0, fb.stops)
}

func TestSpeedConversion(t *testing.T) {
	src, fb := startedSource(t)

	fb.h().Locations([]Update{{SpeedMS: 10}})
	assert.InDelta(t, 36.0, src.Reading().SpeedKmh, 1e-9)

	// Negative means "speed unknown" and clamps to zero before converting.
	fb.h().Locations([]Update{{SpeedMS: -5}})
	assert.Zero(t, src.Reading().SpeedKmh)
}

func TestBatchKeepsOnlyLastPosition(t *testing.T) {
	src, fb := startedSource(t)

	fb.h().Locations([]Update{
		{AltitudeMeters: 10, SpeedMS: 1, Latitude: 1},
		{AltitudeMeters: 20, SpeedMS: 2, Latitude: 2},
		{AltitudeMeters: 30, SpeedMS: 3, Latitude: 3},
	})

	r := src.Reading()
	assert.Equal(t, 30.0, r.AltitudeMeters)
	assert.InDelta(t, 10.8, r.SpeedKmh, 1e-9)
	assert.Equal(t, 3.0, r.Latitude)
}

func TestEmptyBatchIgnored(t *testing.T) {
	src, fb := startedSource(t)

	fb.h().Locations([]Update{{AltitudeMeters: 42, SpeedMS: 0}})
	fb.h().Locations(nil)

	assert.Equal(t, 42.0, src.Reading().AltitudeMeters)
}

func TestHeadingWrapsIntoRange(t *testing.T) {
	src, fb := startedSource(t)

	fb.h().Heading(84.4)
	assert.InDelta(t, 84.4, src.Reading().HeadingDegrees, 1e-9)

	fb.h().Heading(-90)
	assert.InDelta(t, 270.0, src.Reading().HeadingDegrees, 1e-9)

	fb.h().Heading(720.5)
	assert.InDelta(t, 0.5, src.Reading().HeadingDegrees, 1e-9)

	fb.h().Heading(360)
	assert.Zero(t, src.Reading().HeadingDegrees)

	// Non-finite input is discarded, last value persists.
	fb.h().Heading(12)
	fb.h().Heading(math.NaN())
	assert.InDelta(t, 12.0, src.Reading().HeadingDegrees, 1e-9)
}

func TestStartRequestsPermissionWhenUndetermined(t *testing.T) {
	fb := &fakeBackend{perm: PermissionUndetermined}
	src := NewSource(fb, zap.NewNop())

	src.Start()

	require.NotNil(t, fb.permCB, "expected a permission request")
	assert.Equal(t, 0, fb.starts, "updates must wait for the grant")
	assert.Equal(t, PermissionUndetermined, src.Reading().Permission)
}

func TestAutoStartOnGrantAfterDenial(t *testing.T) {
	fb := &fakeBackend{perm: PermissionUndetermined}
	src := NewSource(fb, zap.NewNop())
	src.Start()

	fb.grant(PermissionDenied)
	assert.Equal(t, 0, fb.starts)
	assert.Equal(t, PermissionDenied, src.Reading().Permission)

	// A later grant begins updates exactly once, with no external Start.
	fb.grant(PermissionWhileInUse)
	assert.Equal(t, 1, fb.starts)
	assert.Equal(t, PermissionWhileInUse, src.Reading().Permission)

	fb.grant(PermissionAlways)
	assert.Equal(t, 1, fb.starts, "already updating, grant must not double-start")
}

func TestStartIdempotent(t *testing.T) {
	src, fb := startedSource(t)
	src.Start()
	src.Start()
	assert.Equal(t, 1, fb.starts)
}

func TestStopHaltsUpdatesOnce(t *testing.T) {
	src, fb := startedSource(t)

	src.Stop()
	src.Stop()
	assert.Equal(t, 1, fb.stops)
}

func TestGrantAfterStopDoesNotRestart(t *testing.T) {
	fb := &fakeBackend{perm: PermissionUndetermined}
	src := NewSource(fb, zap.NewNop())
	src.Start()
	src.Stop()

	fb.grant(PermissionWhileInUse)
	assert.Equal(t, 0, fb.starts)
}

func TestDeniedFreezesLastReading(t *testing.T) {
	fb := &fakeBackend{perm: PermissionUndetermined}
	src := NewSource(fb, zap.NewNop())
	src.Start()
	fb.grant(PermissionWhileInUse)
	fb.h().Locations([]Update{{SpeedMS: 10, AltitudeMeters: 100}})

	fb.grant(PermissionDenied)

	r := src.Reading()
	assert.Equal(t, PermissionDenied, r.Permission)
	assert.InDelta(t, 36.0, r.SpeedKmh, 1e-9, "last value persists, never synthesized")
	assert.Equal(t, 100.0, r.AltitudeMeters)
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	src, fb := startedSource(t)
	id, ch := src.Subscribe(4)
	defer src.Unsubscribe(id)
	<-ch // replay of the reading as of Start

	fb.h().Locations([]Update{{SpeedMS: 5}})

	r := <-ch
	assert.InDelta(t, 18.0, r.SpeedKmh, 1e-9)
}
