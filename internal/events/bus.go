package events

import "sync"

// GalleryUpdate announces that a user's gallery changed. Listeners compare
// UserID against their own bound user and ignore everything else.
type GalleryUpdate struct {
	UserID string `json:"userId"`
}

// Bus is an in-process broadcast channel for gallery updates. It is a plain
// value handed to components at construction time; nothing in this package
// keeps a global instance, so tests can run isolated buses side by side.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

type Subscription struct {
	C    chan GalleryUpdate
	bus  *Bus
	once sync.Once
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a listener with the given channel buffer. The caller
// must Close the subscription when done.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscription{
		C:   make(chan GalleryUpdate, buffer),
		bus: b,
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Publish delivers the event to every current subscriber. Delivery is
// best-effort: a subscriber whose buffer is full misses the event rather
// than blocking the publisher.
func (b *Bus) Publish(event GalleryUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.C <- event:
		default:
		}
	}
}

// Close detaches the subscription from the bus. Safe to call more than once;
// the channel is not closed so a racing Publish can never panic.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
}
