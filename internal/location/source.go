package location

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/navdash/navdash/internal/observe"
)

// Source bridges a Backend's callbacks into an observable Reading. All
// mutation happens inside the Source; consumers read snapshots via Reading
// or subscribe for pushed copies. There is no retry anywhere on this path:
// when permission is refused or the stream dies, the last reading simply
// stops changing.
type Source struct {
	backend Backend
	log     *zap.Logger

	mu       sync.Mutex
	reading  Reading
	started  bool
	updating bool

	bus *observe.Broadcaster[Reading]
}

// NewSource creates a stopped source with zero-value reading fields.
func NewSource(backend Backend, log *zap.Logger) *Source {
	return &Source{
		backend: backend,
		log:     log.Named("location"),
		bus:     observe.NewBroadcaster[Reading](),
	}
}

// Start requests while-in-use permission when it is still undetermined and
// begins continuous updates once an authorized state is known. Calling Start
// on a started source has no additional effect.
func (s *Source) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	p := s.backend.Permission()
	s.setPermission(p)
	switch {
	case p == PermissionUndetermined:
		s.backend.RequestPermission(s.onPermission)
	case p.Authorized():
		s.beginUpdates()
	default:
		// Denied or restricted: the reading freezes at its defaults.
		s.log.Info("location not authorized",
			zap.String("backend", s.backend.Name()),
			zap.Stringer("permission", p))
	}
}

// Stop halts continuous updates. The last reading, including the permission
// state, persists. Stop on a stopped source is a no-op.
func (s *Source) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	updating := s.updating
	s.updating = false
	s.mu.Unlock()
	if updating {
		s.backend.StopUpdates()
	}
}

// Reading returns a snapshot of the current state.
func (s *Source) Reading() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading
}

// Subscribe returns a channel that receives a copy of the reading after
// every update. Slow consumers miss intermediate values; the latest wins.
func (s *Source) Subscribe(buffer int) (int, <-chan Reading) {
	return s.bus.Subscribe(buffer)
}

// Unsubscribe releases a subscription obtained from Subscribe.
func (s *Source) Unsubscribe(id int) {
	s.bus.Unsubscribe(id)
}

// onPermission is the permission-change callback. An authorized grant while
// the source is started begins updates without an external Start call. A
// grant arriving after Stop does not resurrect the stream.
func (s *Source) onPermission(p Permission) {
	s.setPermission(p)
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if p.Authorized() && started {
		s.beginUpdates()
	}
}

// beginUpdates starts the backend stream exactly once per started period.
func (s *Source) beginUpdates() {
	s.mu.Lock()
	if s.updating {
		s.mu.Unlock()
		return
	}
	s.updating = true
	s.mu.Unlock()

	err := s.backend.StartUpdates(Handlers{
		Locations: s.onLocations,
		Heading:   s.onHeading,
	})
	if err != nil {
		s.log.Warn("location updates unavailable",
			zap.String("backend", s.backend.Name()), zap.Error(err))
		s.mu.Lock()
		s.updating = false
		s.mu.Unlock()
	}
}

func (s *Source) onLocations(batch []Update) {
	if len(batch) == 0 {
		return
	}
	// Only the newest position in a batch matters.
	last := batch[len(batch)-1]
	s.mu.Lock()
	s.reading.SpeedKmh = math.Max(last.SpeedMS, 0) * 3.6
	s.reading.AltitudeMeters = last.AltitudeMeters
	s.reading.Latitude = last.Latitude
	s.reading.Longitude = last.Longitude
	r := s.reading
	s.mu.Unlock()
	s.bus.Publish(r)
}

func (s *Source) onHeading(deg float64) {
	h, ok := normalizeHeading(deg)
	if !ok {
		return
	}
	s.mu.Lock()
	s.reading.HeadingDegrees = h
	r := s.reading
	s.mu.Unlock()
	s.bus.Publish(r)
}

func (s *Source) setPermission(p Permission) {
	s.mu.Lock()
	changed := s.reading.Permission != p
	s.reading.Permission = p
	r := s.reading
	s.mu.Unlock()
	if changed {
		s.bus.Publish(r)
	}
}
