package observe

import "sync"

// Broadcaster fans the latest value out to any number of subscribers.
// The most recent value is replayed to new subscribers so a late consumer
// gets an immediate sample. Slow subscribers miss values instead of blocking
// the publisher — last value wins, missed samples are never buffered up.
type Broadcaster[T any] struct {
	mu       sync.Mutex
	subs     map[int]chan T
	nextID   int
	last     T
	haveLast bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a new subscriber and returns its id plus the receive
// channel. If a value was already published, it is delivered immediately.
func (b *Broadcaster[T]) Subscribe(buffer int) (int, <-chan T) {
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan T, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	if b.haveLast {
		ch <- b.last
	}
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are
// ignored.
func (b *Broadcaster[T]) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish records v as the latest value and offers it to every subscriber.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = v
	b.haveLast = true
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Last returns the most recently published value, if any.
func (b *Broadcaster[T]) Last() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.haveLast
}
