package keystroke

import (
	"errors"
	"strings"
	"time"

	"checkin-backend/internal/badge"
)

// DefaultIdleTimeout is the longest gap between keystrokes of one scan.
// Wedge readers emit a whole badge well inside this window; people do not.
const DefaultIdleTimeout = 100 * time.Millisecond

// ErrInvalidFormat is reported when a terminated scan does not decode to a
// valid badge identifier.
var ErrInvalidFormat = errors.New("invalid card format")

// State is the decoder's position in the scan cycle.
type State uint8

const (
	StateIdle State = iota
	StateAccumulating
)

func (s State) String() string {
	if s == StateAccumulating {
		return "accumulating"
	}
	return "idle"
}

// Result is the outcome of a terminated scan. Exactly one of ID and Err is set.
type Result struct {
	ID  string
	Raw string
	Err error
}

// Decoder rebuilds badge scans from a keystroke stream. It is not safe for
// concurrent use; the owner serializes Feed, Timeout and Reset.
type Decoder struct {
	idle   time.Duration
	state  State
	buf    strings.Builder
	lastAt time.Time
}

// NewDecoder creates a decoder with the given idle window. Non-positive values
// fall back to DefaultIdleTimeout.
func NewDecoder(idle time.Duration) *Decoder {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Decoder{idle: idle}
}

// IdleTimeout returns the configured idle window.
func (d *Decoder) IdleTimeout() time.Duration {
	return d.idle
}

// State returns the current state.
func (d *Decoder) State() State {
	return d.state
}

// Buffered returns the number of characters accumulated for the current scan.
func (d *Decoder) Buffered() int {
	return d.buf.Len()
}

// Feed applies one event. It returns a Result and true when the event
// terminated a non-empty scan.
func (d *Decoder) Feed(ev Event) (Result, bool) {
	switch ev.Key {
	case KeyRune:
		d.dropIfStale(ev.At)
		d.buf.WriteRune(ev.Rune)
		d.state = StateAccumulating
		d.lastAt = ev.At
		return Result{}, false
	case KeyEnter:
		d.dropIfStale(ev.At)
		if d.state != StateAccumulating {
			return Result{}, false
		}
		raw := d.buf.String()
		d.Reset()
		return decode(raw), true
	default:
		return Result{}, false
	}
}

// Timeout handles the idle timer firing. The partial buffer is discarded
// without emission; it reports whether anything was dropped.
func (d *Decoder) Timeout() bool {
	dropped := d.state == StateAccumulating
	d.Reset()
	return dropped
}

// Reset clears the buffer and returns to Idle.
func (d *Decoder) Reset() {
	d.buf.Reset()
	d.state = StateIdle
	d.lastAt = time.Time{}
}

// dropIfStale discards the buffer when the gap since the last character has
// already reached the idle window, even if the timer has not fired yet.
func (d *Decoder) dropIfStale(at time.Time) {
	if d.state != StateAccumulating || at.IsZero() || d.lastAt.IsZero() {
		return
	}
	if at.Sub(d.lastAt) >= d.idle {
		d.Reset()
	}
}

func decode(raw string) Result {
	id := badge.Normalize(raw)
	if !badge.IsValid(id) {
		return Result{Raw: raw, Err: ErrInvalidFormat}
	}
	return Result{ID: id, Raw: raw}
}
