package node

import (
	"math/rand"
	"time"
)

type timerFactory func(time.Duration) <-chan time.Time

// ControlTimer emits a tick on tickCh after a delay, then waits for the next
// delay on resetCh. The node uses it to schedule periodic syncs.
type ControlTimer struct {
	timerFactory timerFactory
	tickCh       chan struct{}
	resetCh      chan time.Duration
	shutdownCh   chan struct{}
}

// NewControlTimer returns a ControlTimer that builds its delays with
// timerFactory.
func NewControlTimer(timerFactory timerFactory) *ControlTimer {
	return &ControlTimer{
		timerFactory: timerFactory,
		tickCh:       make(chan struct{}),
		resetCh:      make(chan time.Duration),
		shutdownCh:   make(chan struct{}),
	}
}

// NewRandomControlTimer returns a ControlTimer that waits between d and 2*d,
// so that nodes started together do not sync in lockstep. A zero duration
// never ticks.
func NewRandomControlTimer() *ControlTimer {
	return NewControlTimer(func(d time.Duration) <-chan time.Time {
		if d <= 0 {
			return nil
		}
		return time.After(d + time.Duration(rand.Int63n(int64(d))))
	})
}

// Run arms the timer with init and loops until Shutdown.
func (c *ControlTimer) Run(init time.Duration) {
	timer := c.timerFactory(init)

	for {
		select {
		case <-timer:
			timer = nil
			select {
			case c.tickCh <- struct{}{}:
			case <-c.shutdownCh:
				return
			}
		case d := <-c.resetCh:
			timer = c.timerFactory(d)
		case <-c.shutdownCh:
			return
		}
	}
}

// Shutdown stops the Run loop.
func (c *ControlTimer) Shutdown() {
	close(c.shutdownCh)
}
