// Package event implements the publish/subscribe shape the chain
// service uses to announce new-tip notifications, the same role the
// teacher family's event.Feed/event.TypeMux plays for its consensus
// backend (that package wasn't part of this module's retrieval pack,
// so this is a from-scratch, generics-based reconstruction of the same
// one-feed-many-subscribers idiom rather than a copy of its
// reflect.Select internals).
package event

import "sync"

// Feed fans a value of type T out to every currently-subscribed
// channel. A Feed is safe for concurrent use; the zero value via
// NewFeed is ready to use.
type Feed[T any] struct {
	mu   sync.Mutex
	subs map[*subscription[T]]struct{}
}

// NewFeed constructs an empty Feed.
func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[*subscription[T]]struct{})}
}

// Subscription lets a consumer stop receiving from a Feed. Unsubscribe
// is idempotent and closes the channel Subscribe returned.
type Subscription interface {
	Unsubscribe()
}

type subscription[T any] struct {
	feed *Feed[T]
	ch   chan T
	once sync.Once
}

// Subscribe registers a new channel with buffer capacity buffer
// (minimum 1) and returns it along with a Subscription to cancel it.
func (f *Feed[T]) Subscribe(buffer int) (<-chan T, Subscription) {
	if buffer <= 0 {
		buffer = 1
	}
	sub := &subscription[T]{feed: f, ch: make(chan T, buffer)}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	return sub.ch, sub
}

// Send delivers value to every subscriber registered at the time of
// the call, blocking until each has accepted it, and returns how many
// subscribers received it. A subscriber that unsubscribes mid-send is
// simply skipped rather than causing Send to block forever.
func (f *Feed[T]) Send(value T) int {
	f.mu.Lock()
	recipients := make([]*subscription[T], 0, len(f.subs))
	for s := range f.subs {
		recipients = append(recipients, s)
	}
	f.mu.Unlock()

	sent := 0
	for _, s := range recipients {
		func() {
			// Unsubscribe closes s.ch; a send on the closed channel
			// panics, and recovering here skips that subscriber.
			defer func() { _ = recover() }()
			s.ch <- value
			sent++
		}()
	}
	return sent
}

func (s *subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		s.feed.mu.Unlock()
		close(s.ch)
	})
}
