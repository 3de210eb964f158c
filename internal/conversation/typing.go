package conversation

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultQuietPeriod is how long after the last keystroke typing is
// considered over.
const DefaultQuietPeriod = 2 * time.Second

type TypingState int

const (
	TypingIdle TypingState = iota
	TypingAnnouncing
)

// Debouncer turns a stream of keystrokes into started/stopped typing
// signals: one started per burst, one stopped after the quiet period or on
// send.
type Debouncer struct {
	clock    clock.Clock
	quiet    time.Duration
	emit     func(typing bool)
	schedule func(func())

	mu      sync.Mutex
	state   TypingState
	timer   *clock.Timer
	gen     uint64
	stopped bool
}

// NewDebouncer creates a debouncer. schedule runs timer expiries; when nil
// they run on the timer's goroutine.
func NewDebouncer(clk clock.Clock, quiet time.Duration, emit func(typing bool), schedule func(func())) *Debouncer {
	if clk == nil {
		clk = clock.New()
	}
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if schedule == nil {
		schedule = func(fn func()) { fn() }
	}
	return &Debouncer{clock: clk, quiet: quiet, emit: emit, schedule: schedule}
}

// Keystroke records typing activity.
func (d *Debouncer) Keystroke() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.state == TypingIdle {
		d.state = TypingAnnouncing
		d.emit(true)
	}
	d.arm()
}

// Flush announces stopped immediately and returns to idle. Called on send.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.disarm()
	d.state = TypingIdle
	d.emit(false)
}

// Stop cancels the pending timer. Nothing is emitted afterwards.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.disarm()
	d.state = TypingIdle
}

func (d *Debouncer) State() TypingState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Debouncer) arm() {
	d.disarm()
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.quiet, func() {
		d.schedule(func() { d.expire(gen) })
	})
}

// disarm invalidates the outstanding timer, including one whose callback is
// already running.
func (d *Debouncer) disarm() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) expire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || gen != d.gen || d.state != TypingAnnouncing {
		return
	}
	d.timer = nil
	d.state = TypingIdle
	d.emit(false)
}
