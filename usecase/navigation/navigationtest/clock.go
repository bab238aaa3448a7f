package navigationtest

import (
	"sort"
	"sync"
	"time"

	"github.com/fastygo/portal/usecase/navigation"
)

// ManualClock is a navigation.Scheduler driven by Advance. Tests use it to step through timeouts.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock  *ManualClock
	due    time.Duration
	fn     func()
	active bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := t.active
	t.active = false
	return was
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) navigation.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, due: c.now + d, fn: f, active: true}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and runs every timer that came due, in order.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case !t.active:
		case t.due <= c.now:
			t.active = false
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].due < due[j].due })
	for _, t := range due {
		t.fn()
	}
}
