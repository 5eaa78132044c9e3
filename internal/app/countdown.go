package app

import (
	"context"
	"time"
)

// countdown drives one round's per-second ticks on its own goroutine.
type countdown struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startCountdown calls tick once per interval until tick returns false or the
// countdown is stopped. tick must re-check round state itself: a stop can race
// with a tick that is already running. onExit, if set, runs when the goroutine
// ends, without any lock held.
func startCountdown(parent context.Context, interval time.Duration, tick func(context.Context) bool, onExit func()) *countdown {
	ctx, cancel := context.WithCancel(parent)
	c := &countdown{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(c.done)
		if onExit != nil {
			defer onExit()
		}
		defer cancel()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !tick(ctx) {
					return
				}
			}
		}
	}()
	return c
}

// stop cancels future ticks without waiting, so it is safe to call while
// holding a lock the tick function takes.
func (c *countdown) stop() {
	if c != nil {
		c.cancel()
	}
}

// wait returns a channel closed once the countdown goroutine has exited.
func (c *countdown) wait() <-chan struct{} {
	return c.done
}
