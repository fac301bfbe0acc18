package source

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
	"k8s.io/utils/clock"

	"checkin-backend/internal/keystroke"
)

const (
	ctrlC = 0x03
	ctrlD = 0x04
)

// Terminal reads keystrokes from a terminal or any byte stream. A wedge
// reader plugged into the machine types into the terminal like a keyboard.
type Terminal struct {
	in    io.Reader
	pub   Publisher
	clock clock.PassiveClock

	fd     int
	isTerm bool

	mu    sync.Mutex
	saved *term.State
}

// NewTerminal creates a terminal source reading from in.
func NewTerminal(in io.Reader, pub Publisher, clk clock.PassiveClock) *Terminal {
	if clk == nil {
		clk = clock.RealClock{}
	}
	t := &Terminal{in: in, pub: pub, clock: clk, fd: -1}
	if f, ok := in.(*os.File); ok {
		t.fd = int(f.Fd())
		t.isTerm = term.IsTerminal(t.fd)
	}
	return t
}

// IsTerminal reports whether the input is an interactive terminal.
func (t *Terminal) IsTerminal() bool {
	return t.isTerm
}

// SetListening switches the terminal into raw mode while someone listens so
// keys arrive one at a time, and restores it afterwards. Non-terminal inputs
// are left alone.
func (t *Terminal) SetListening(active bool) {
	if !t.isTerm {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if active && t.saved == nil {
		state, err := term.MakeRaw(t.fd)
		if err != nil {
			logrus.Warnf("Failed to set terminal to raw mode: %v", err)
			return
		}
		t.saved = state
		return
	}
	if !active && t.saved != nil {
		if err := term.Restore(t.fd, t.saved); err != nil {
			logrus.Warnf("Failed to restore terminal: %v", err)
		}
		t.saved = nil
	}
}

// Run publishes keystrokes until the input ends, Ctrl-C or Ctrl-D is read, or
// ctx is cancelled. A blocked read is only noticed after it returns.
func (t *Terminal) Run(ctx context.Context) error {
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := t.in.Read(buf)
		at := t.clock.Now()
		for _, b := range buf[:n] {
			if b == ctrlC || b == ctrlD {
				return nil
			}
			t.pub.Publish(byteEvent(b, at))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func byteEvent(b byte, at time.Time) keystroke.Event {
	switch {
	case b == '\r' || b == '\n':
		return keystroke.EnterEvent(at)
	case b >= 0x20 && b < 0x7f:
		return keystroke.RuneEvent(rune(b), at)
	default:
		return keystroke.Event{Key: keystroke.KeyOther, At: at}
	}
}
