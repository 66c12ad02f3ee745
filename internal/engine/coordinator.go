package engine

import (
	"sync"
	"time"
)

type CoordinatorState int

const (
	CoordinatorIdle CoordinatorState = iota
	CoordinatorCountingDown
	CoordinatorExtending
)

func (s CoordinatorState) String() string {
	switch s {
	case CoordinatorIdle:
		return "idle"
	case CoordinatorCountingDown:
		return "counting_down"
	case CoordinatorExtending:
		return "extending"
	default:
		return "unknown"
	}
}

// Coordinator maintains the single countdown shared by every open lot. Any
// accepted bid anywhere in the open set may push the deadline forward; once
// bidding has started the shared deadline, not a lot's own scheduled end, is
// authoritative. The critical section is a minimal compare-and-extend so many
// simultaneously active lots do not contend on it for long.
type Coordinator struct {
	mu       sync.Mutex
	state    CoordinatorState
	deadline time.Time
	window   time.Duration
	open     int
	timer    *time.Timer
	now      func() time.Time
	onExpire func()
}

func NewCoordinator(window time.Duration) *Coordinator {
	return &Coordinator{
		state:  CoordinatorIdle,
		window: window,
		now:    time.Now,
	}
}

// SetClock replaces the coordinator's clock. Test hook; not safe to call
// once lots are open.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

// SetExpireFunc registers the callback fired when the shared deadline
// elapses. The callback runs without the coordinator lock held, so it may
// acquire lot locks freely.
func (c *Coordinator) SetExpireFunc(fn func()) {
	c.onExpire = fn
}

// LotOpened registers a newly opened lot and returns the shared deadline.
// The first lot sets the deadline to its scheduled end (or now+window when
// that has already passed); later lots can only push the deadline out.
func (c *Coordinator) LotOpened(scheduledEnd time.Time) time.Time {
	c.mu.Lock()

	now := c.now()
	c.open++

	end := scheduledEnd
	if !end.After(now) {
		end = now.Add(c.window)
	}

	if c.state == CoordinatorIdle {
		c.state = CoordinatorCountingDown
		c.deadline = end
	} else if end.After(c.deadline) {
		c.deadline = end
	}

	deadline := c.deadline
	c.armTimerLocked(now)
	c.mu.Unlock()

	return deadline
}

// NoteBid applies the anti-snipe rule for an accepted bid: when the deadline
// is closer than the extension window it moves to now+window, otherwise it is
// left alone. Always computed against the coordinator's own clock, never a
// caller-supplied timestamp.
func (c *Coordinator) NoteBid() (time.Time, bool) {
	c.mu.Lock()

	if c.state == CoordinatorIdle {
		deadline := c.deadline
		c.mu.Unlock()
		return deadline, false
	}

	now := c.now()
	extended := false
	if c.deadline.Sub(now) < c.window {
		c.state = CoordinatorExtending
		c.deadline = now.Add(c.window)
		extended = true
		c.armTimerLocked(now)
		c.state = CoordinatorCountingDown
	}

	deadline := c.deadline
	c.mu.Unlock()

	return deadline, extended
}

// Deadline reports the shared deadline; ok is false while no lots are open.
func (c *Coordinator) Deadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline, c.state != CoordinatorIdle
}

func (c *Coordinator) State() CoordinatorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Window() time.Duration {
	return c.window
}

func (c *Coordinator) armTimerLocked(now time.Time) {
	if c.onExpire == nil {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.deadline.Sub(now), c.expire)
}

// expire runs off the timer. A timer fired stale after an extension re-arms
// itself instead of closing early.
func (c *Coordinator) expire() {
	c.mu.Lock()

	if c.state == CoordinatorIdle {
		c.mu.Unlock()
		return
	}

	now := c.now()
	if now.Before(c.deadline) {
		c.armTimerLocked(now)
		c.mu.Unlock()
		return
	}

	c.state = CoordinatorIdle
	c.open = 0
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	onExpire := c.onExpire
	c.mu.Unlock()

	if onExpire != nil {
		onExpire()
	}
}
