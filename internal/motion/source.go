package motion

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/navdash/navdash/internal/observe"
)

// SampleInterval is the fixed attitude sampling cadence (10 Hz).
const SampleInterval = 100 * time.Millisecond

// Source samples a Backend at SampleInterval and maintains an observable
// Reading in degrees. A backend without hardware makes Start a silent no-op:
// the reading stays inactive for the whole session, with no error and no
// retry, until the source is stopped and started again.
type Source struct {
	backend Backend
	log     *zap.Logger

	mu      sync.Mutex
	reading Reading
	started bool
	stop    chan struct{}

	bus *observe.Broadcaster[Reading]
}

// NewSource creates a stopped source with an inactive zero-value reading.
func NewSource(backend Backend, log *zap.Logger) *Source {
	return &Source{
		backend: backend,
		log:     log.Named("motion"),
		bus:     observe.NewBroadcaster[Reading](),
	}
}

// Start begins periodic sampling. Start on a started source has no effect.
func (s *Source) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	if !s.backend.Available() {
		s.mu.Unlock()
		s.log.Info("motion unavailable", zap.String("backend", s.backend.Name()))
		return
	}
	s.started = true
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	go s.sampleLoop(stop)
}

// Stop halts sampling and marks the reading inactive. Stop before Start is a
// no-op. A sample already in flight may land once more after Stop; that
// stale update is harmless.
func (s *Source) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	stop := s.stop
	s.stop = nil
	s.reading.Active = false
	r := s.reading
	s.mu.Unlock()
	close(stop)
	s.bus.Publish(r)
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

func (s *Source) sampleLoop(stop chan struct{}) {
	ticker := time.NewTicker(SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

// sampleOnce takes one attitude sample. A failed sample is discarded with no
// state change: active is not cleared by a single glitch. Every successful
// sample sets active, not just the first.
func (s *Source) sampleOnce() {
	att, err := s.backend.Sample()
	if err != nil {
		return
	}
	s.mu.Lock()
	s.reading.PitchDegrees = att.Pitch * degPerRad
	s.reading.RollDegrees = att.Roll * degPerRad
	s.reading.YawDegrees = att.Yaw * degPerRad
	s.reading.Active = true
	r := s.reading
	s.mu.Unlock()
	s.bus.Publish(r)
}
