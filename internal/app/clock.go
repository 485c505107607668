package app

import (
	"context"
	"time"
)

// tickerFunc starts a periodic tick source and returns its channel and stop function.
type tickerFunc func(interval time.Duration) (<-chan time.Time, func())

func realTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// roomClock delivers ticks to a room until the room reports it is done or the clock is
// stopped. It never ticks again after either.
type roomClock struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startClock(interval time.Duration, newTicker tickerFunc, tick func() bool) *roomClock {
	ctx, cancel := context.WithCancel(context.Background())
	c := &roomClock{cancel: cancel, done: make(chan struct{})}
	ticks, stop := newTicker(interval)

	go func() {
		defer close(c.done)
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				if !tick() {
					return
				}
			}
		}
	}()
	return c
}

// Stop cancels the clock and waits for its goroutine to exit. It must not be called from
// inside a tick.
func (c *roomClock) Stop() {
	c.cancel()
	<-c.done
}
