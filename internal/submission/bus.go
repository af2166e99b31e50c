package submission

import (
	"context"
	"sync"
	"time"
)

// Bus is an in-process broadcaster for submission events. Subscribers run
// synchronously in registration order.
type Bus struct {
	mu   sync.RWMutex
	subs []*subscriber
}

type subscriber struct {
	fn func(SubmissionEvent)
}

func NewBus() *Bus { return &Bus{} }

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(SubmissionEvent)) (unsubscribe func()) {
	s := &subscriber{fn: fn}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, cur := range b.subs {
			if cur == s {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Publish(ctx context.Context, event SubmissionEvent) error {
	b.mu.RLock()
	subs := append([]*subscriber(nil), b.subs...)
	b.mu.RUnlock()
	for _, s := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.fn(event)
	}
	return nil
}

// TimerNavigator schedules navigation with time.AfterFunc.
type TimerNavigator struct {
	navigate func(url string)

	mu      sync.Mutex
	pending *time.Timer
}

// NewTimerNavigator calls navigate once the delay has elapsed.
func NewTimerNavigator(navigate func(url string)) *TimerNavigator {
	return &TimerNavigator{navigate: navigate}
}

// NavigateAfter replaces any pending navigation.
func (n *TimerNavigator) NavigateAfter(url string, delay time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending != nil {
		n.pending.Stop()
	}
	n.pending = time.AfterFunc(delay, func() { n.navigate(url) })
}

// Cancel drops a pending navigation.
func (n *TimerNavigator) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending != nil {
		n.pending.Stop()
		n.pending = nil
	}
}
