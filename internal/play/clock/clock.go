package clock

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// TickInterval is the countdown resolution.
const TickInterval = time.Second

// ErrInvalidSeconds is returned when a countdown is seeded with a non-positive value.
var ErrInvalidSeconds = errors.New("countdown seconds must be positive")

// Event is delivered to a Listener on every tick and on the deadline.
// Cycle identifies the Start/Reset/Stop generation that produced the event.
type Event struct {
	Remaining int
	Cycle     uint64
}

// Listener receives countdown notifications. Callbacks run without the clock lock held.
type Listener interface {
	OnTick(ev Event)
	OnDeadline(ev Event)
}

// Clock is a one-second countdown that fires a single deadline per cycle.
type Clock struct {
	mu        sync.Mutex
	sched     Scheduler
	listener  Listener
	remaining int
	running   bool
	cycle     uint64
	pending   Timer
	// seq tags the pending timer; callbacks carrying another seq lost a race
	// with Stop and are dropped.
	seq uint64
}

// New creates a stopped clock. A nil scheduler falls back to SystemScheduler.
func New(sched Scheduler, listener Listener) *Clock {
	if sched == nil {
		sched = SystemScheduler
	}
	return &Clock{
		sched:    sched,
		listener: listener,
	}
}

// Start begins a new countdown from seconds.
func (c *Clock) Start(seconds int) error {
	return c.restart(seconds)
}

// Reset cancels any pending tick and restarts the countdown from seconds.
func (c *Clock) Reset(seconds int) error {
	return c.restart(seconds)
}

func (c *Clock) restart(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSeconds, seconds)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	c.cycle++
	c.remaining = seconds
	c.running = true
	c.scheduleLocked()
	return nil
}

// Stop cancels pending ticks without emitting anything.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	c.cycle++
	c.running = false
}

// Tick advances the countdown by one second. It is normally invoked by the
// scheduler; calling it on a stopped clock does nothing.
func (c *Clock) Tick() {
	c.tick(0, false)
}

// Remaining returns the seconds left in the current countdown.
func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether ticks are still being scheduled.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Cycle returns the current countdown generation.
func (c *Clock) Cycle() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle
}

// Now exposes the scheduler's notion of time.
func (c *Clock) Now() time.Time {
	return c.sched.Now()
}

func (c *Clock) tick(seq uint64, scheduled bool) {
	c.mu.Lock()
	if !c.running || (scheduled && seq != c.seq) {
		c.mu.Unlock()
		return
	}

	// a manual Tick replaces the scheduled one
	c.cancelLocked()
	c.remaining--

	deadline := c.remaining <= 0
	if deadline {
		c.remaining = 0
		c.running = false
	} else {
		c.scheduleLocked()
	}

	ev := Event{Remaining: c.remaining, Cycle: c.cycle}
	listener := c.listener
	c.mu.Unlock()

	if listener == nil {
		return
	}
	if deadline {
		listener.OnDeadline(ev)
		return
	}
	listener.OnTick(ev)
}

func (c *Clock) scheduleLocked() {
	c.seq++
	seq := c.seq
	c.pending = c.sched.AfterFunc(TickInterval, func() {
		c.tick(seq, true)
	})
}

func (c *Clock) cancelLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.seq++
}
