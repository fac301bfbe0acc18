// Package session binds a keystroke decoder to one consumer of the shared key
// stream and exposes its reading state.
package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"checkin-backend/internal/keystroke"
)

// Options configures a Controller.
type Options struct {
	Name        string
	IdleTimeout time.Duration
	Clock       clock.WithDelayedExecution

	// OnCardRead is called once per valid scan with the canonical identifier.
	OnCardRead func(id string)

	// OnReadError, when set, is called for every rejected scan.
	OnReadError func(raw string, err error)
}

// State is a point-in-time view of a controller. Empty LastRead and Error
// mean nothing has been read and no error is pending.
type State struct {
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Reading  bool   `json:"isReading"`
	LastRead string `json:"lastRead"`
	Error    string `json:"error"`
}

// Controller is the scan session of a single consumer.
type Controller struct {
	name   string
	bus    *keystroke.Bus
	clock  clock.WithDelayedExecution
	onRead func(id string)
	onErr  func(raw string, err error)
	log    *logrus.Entry

	mu       sync.Mutex
	decoder  *keystroke.Decoder
	subID    string
	enabled  bool
	closed   bool
	lastRead string
	errMsg   string
	timer    clock.Timer

	// gen invalidates idle timers that were superseded before they fired.
	gen uint64
}

// New creates a disabled controller reading from bus.
func New(bus *keystroke.Bus, opts Options) *Controller {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Controller{
		name:    opts.Name,
		bus:     bus,
		clock:   clk,
		onRead:  opts.OnCardRead,
		onErr:   opts.OnReadError,
		decoder: keystroke.NewDecoder(opts.IdleTimeout),
		log:     logrus.WithField("session", opts.Name),
	}
}

// Name returns the controller's name.
func (c *Controller) Name() string {
	return c.name
}

// SetEnabled attaches or detaches the controller from the key stream.
// Disabling cancels the idle timer and discards any partial scan.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	if c.closed || c.enabled == enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = enabled
	var unsubscribe string
	var stale clock.Timer
	if !enabled {
		unsubscribe = c.subID
		c.subID = ""
		stale = c.takeTimerLocked()
		c.decoder.Reset()
	}
	c.mu.Unlock()

	if stale != nil {
		stale.Stop()
	}

	if enabled {
		// Subscribe outside the lock: the bus may fire listen hooks synchronously.
		id := c.bus.Subscribe(c.handle)
		c.mu.Lock()
		if c.enabled && c.subID == "" && !c.closed {
			c.subID = id
			id = ""
		}
		c.mu.Unlock()
		if id != "" {
			c.bus.Unsubscribe(id)
		}
		c.log.Info("Scan session enabled")
		return
	}

	c.bus.Unsubscribe(unsubscribe)
	c.log.Info("Scan session disabled")
}

// Close disables the controller permanently.
func (c *Controller) Close() {
	c.SetEnabled(false)
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Name:     c.name,
		Enabled:  c.enabled,
		Reading:  c.decoder.State() == keystroke.StateAccumulating,
		LastRead: c.lastRead,
		Error:    c.errMsg,
	}
}

// IsReading reports whether a scan is being accumulated.
func (c *Controller) IsReading() bool {
	return c.Snapshot().Reading
}

// LastRead returns the last successfully decoded identifier, if any.
func (c *Controller) LastRead() string {
	return c.Snapshot().LastRead
}

// Err returns the pending decode error message, if any.
func (c *Controller) Err() string {
	return c.Snapshot().Error
}

// ClearError dismisses the pending decode error.
func (c *Controller) ClearError() {
	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()
}

func (c *Controller) handle(ev keystroke.Event) {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}

	res, emitted := c.decoder.Feed(ev)
	var (
		stale clock.Timer
		arm   bool
		gen   uint64
	)
	if c.decoder.State() != keystroke.StateAccumulating {
		stale = c.takeTimerLocked()
	} else if ev.Key == keystroke.KeyRune {
		stale = c.takeTimerLocked()
		arm = true
		gen = c.gen
	}

	var onRead func(string)
	var onErr func(string, error)
	switch {
	case !emitted:
	case res.Err != nil:
		c.errMsg = res.Err.Error()
		onErr = c.onErr
	default:
		c.lastRead = res.ID
		onRead = c.onRead
	}
	c.mu.Unlock()

	if stale != nil {
		stale.Stop()
	}
	if arm {
		c.armTimer(gen)
	}

	if !emitted {
		return
	}
	if res.Err != nil {
		c.log.WithField("raw", res.Raw).Warnf("Rejected scan: %v", res.Err)
		if onErr != nil {
			onErr(res.Raw, res.Err)
		}
		return
	}
	c.log.WithField("badge", res.ID).Info("Badge scanned")
	if onRead != nil {
		onRead(res.ID)
	}
}

// armTimer starts the idle timer for gen. It runs without c.mu held since
// fake clocks call timer callbacks, which take c.mu, under their own lock.
func (c *Controller) armTimer(gen uint64) {
	t := c.clock.AfterFunc(c.decoder.IdleTimeout(), func() {
		c.expire(gen)
	})

	c.mu.Lock()
	if c.gen == gen && c.enabled {
		c.timer = t
		t = nil
	}
	c.mu.Unlock()

	// Superseded before it could be stored.
	if t != nil {
		t.Stop()
	}
}

// takeTimerLocked invalidates the pending idle timer and hands it back so
// the caller can stop it once c.mu is released.
func (c *Controller) takeTimerLocked() clock.Timer {
	c.gen++
	t := c.timer
	c.timer = nil
	return t
}

// expire must not call into the clock.
func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || !c.enabled {
		return
	}
	c.timer = nil
	if c.decoder.Timeout() {
		c.log.Debug("Partial input discarded after idle timeout")
	}
}
