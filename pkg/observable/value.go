// Package observable provides a current-value holder with snapshot
// subscriptions. Every subscriber receives the value current at Subscribe
// time followed by every later value, in order. A slow reader never blocks
// Set; its values queue until it catches up.
package observable

import (
	"context"
	"sync"
)

// Option customizes a Value.
type Option[T any] func(*Value[T])

// WithClone makes Get and every delivery hand out clone(value), so callers
// may modify what they receive without affecting the stored snapshot or
// other subscribers.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(v *Value[T]) { v.clone = clone }
}

// Value holds the current snapshot of T and fans changes out to subscribers.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	clone   func(T) T
	subs    map[*subscription[T]]struct{}
	done    chan struct{}
	closed  bool
}

// New creates a Value holding initial.
func New[T any](initial T, opts ...Option[T]) *Value[T] {
	v := &Value[T]{
		current: initial,
		subs:    make(map[*subscription[T]]struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Value[T]) copyOf(value T) T {
	if v.clone == nil {
		return value
	}
	return v.clone(value)
}

// Get returns the current snapshot.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.copyOf(v.current)
}

// Set replaces the current snapshot and queues it for every subscriber.
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.current = value
	for sub := range v.subs {
		sub.push(v.copyOf(value))
	}
}

// Subscribe returns a channel that receives the current snapshot, then every
// later snapshot in order, until ctx is cancelled or the Value is closed.
func (v *Value[T]) Subscribe(ctx context.Context) <-chan T {
	out := make(chan T)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		close(out)
		return out
	}
	sub := newSubscription[T]()
	sub.push(v.copyOf(v.current))
	v.subs[sub] = struct{}{}
	v.mu.Unlock()

	go v.forward(ctx, sub, out)
	return out
}

// forward drains sub into out in order. It owns out and closes it on exit.
func (v *Value[T]) forward(ctx context.Context, sub *subscription[T], out chan<- T) {
	defer func() {
		v.mu.Lock()
		delete(v.subs, sub)
		v.mu.Unlock()
		close(out)
	}()

	for {
		next, ok := sub.pop()
		if !ok {
			select {
			case <-sub.notify:
				continue
			case <-ctx.Done():
				return
			case <-v.done:
				return
			}
		}

		select {
		case out <- next:
		case <-ctx.Done():
			return
		case <-v.done:
			return
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (v *Value[T]) SubscriberCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.subs)
}

// Close ends every subscription. Later Subscribe calls return a closed channel.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	close(v.done)
}

// subscription is an unbounded FIFO between Set and one forwarding goroutine.
type subscription[T any] struct {
	mu     sync.Mutex
	queue  []T
	notify chan struct{}
}

func newSubscription[T any]() *subscription[T] {
	return &subscription[T]{notify: make(chan struct{}, 1)}
}

func (s *subscription[T]) push(value T) {
	s.mu.Lock()
	s.queue = append(s.queue, value)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscription[T]) pop() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	if len(s.queue) == 0 {
		return zero, false
	}
	value := s.queue[0]
	s.queue[0] = zero
	s.queue = s.queue[1:]
	return value, true
}
