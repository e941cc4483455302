// Package testutil содержит детерминированные заменители времени и удаленного
// хранилища для тестов движка синхронизации.
package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/iudanet/worksync/internal/clock"
)

// ManualClock is a clock.Clock whose time only moves on Advance.
//
// Callbacks of due timers run synchronously inside Advance, in deadline order,
// on the caller's goroutine and without the clock lock held.
type ManualClock struct {
	timers []*ManualTimer
	now    int64
	mu     sync.Mutex
}

var _ clock.Clock = (*ManualClock)(nil)

// NewManualClock creates a clock starting at start epoch milliseconds.
func NewManualClock(start int64) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run when the clock reaches now+d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &ManualTimer{clock: c, deadline: c.now + d.Milliseconds(), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward by d and fires every timer that became due.
// Timers scheduled by fired callbacks also fire if they fall within the window.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d.Milliseconds()
	c.mu.Unlock()

	for {
		t := c.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	c.mu.Lock()
	if c.now < target {
		c.now = target
	}
	c.mu.Unlock()
}

// Set moves time to an absolute value without firing timers.
// Используется для моделирования рассинхронизации часов.
func (c *ManualClock) Set(now int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// PendingTimers returns the number of armed timers.
func (c *ManualClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// nextDue снимает с учета самый ранний таймер со сроком <= target и
// переводит часы на его срок
func (c *ManualClock) nextDue(target int64) *ManualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.SliceStable(c.timers, func(i, j int) bool {
		return c.timers[i].deadline < c.timers[j].deadline
	})
	if len(c.timers) == 0 || c.timers[0].deadline > target {
		return nil
	}

	t := c.timers[0]
	c.timers = c.timers[1:]
	if t.deadline > c.now {
		c.now = t.deadline
	}
	return t
}

func (c *ManualClock) remove(t *ManualTimer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, candidate := range c.timers {
		if candidate == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// ManualTimer is a timer created by ManualClock.
type ManualTimer struct {
	clock    *ManualClock
	fn       func()
	deadline int64
}

// Stop cancels the timer. Returns false if it already fired or was stopped.
func (t *ManualTimer) Stop() bool {
	return t.clock.remove(t)
}
