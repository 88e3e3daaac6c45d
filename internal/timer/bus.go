package timer

import (
	"sync"
	"time"
)

const defaultBusCapacity = 16

// Signal announces a committed transition.
type Signal struct {
	Origin     string
	Transition string
	At         time.Time
}

// Subscription receives signals until closed.
type Subscription struct {
	Signals <-chan Signal
	cancel  func()
}

// Close terminates the subscription.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

type BusOption func(*Bus)

// WithBusCapacity overrides the buffered channel size per subscriber.
func WithBusCapacity(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// Bus fans signals out to every machine sharing it. Publishing never blocks;
// a full subscriber loses its oldest signal.
type Bus struct {
	mu       sync.RWMutex
	subs     map[*subscriber]struct{}
	capacity int
}

func NewBus(opts ...BusOption) *Bus {
	b := &Bus{subs: map[*subscriber]struct{}{}, capacity: defaultBusCapacity}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Bus) Subscribe() Subscription {
	sub := &subscriber{ch: make(chan Signal, b.capacity)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return Subscription{
		Signals: sub.ch,
		cancel: func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			sub.close()
		},
	}
}

func (b *Bus) Publish(sig Signal) {
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()
	for _, sub := range subs {
		sub.deliver(sig)
	}
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Signal
	closed bool
}

func (s *subscriber) deliver(sig Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- sig:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
