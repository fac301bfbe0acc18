package keystroke

import (
	"time"
	"unicode/utf8"
)

// Key identifies the kind of key signal observed on the input stream.
type Key uint8

const (
	KeyNone Key = iota
	KeyRune     // Printable character (check Event.Rune)
	KeyEnter
	KeyOther // Control keys the decoder ignores (Shift, Tab, arrows, ...)
)

func (k Key) String() string {
	switch k {
	case KeyRune:
		return "rune"
	case KeyEnter:
		return "enter"
	case KeyOther:
		return "other"
	default:
		return "none"
	}
}

// Event is a single key signal from the global input stream.
type Event struct {
	Key  Key
	Rune rune
	At   time.Time
}

// RuneEvent builds a printable-character event.
func RuneEvent(r rune, at time.Time) Event {
	return Event{Key: KeyRune, Rune: r, At: at}
}

// EnterEvent builds a terminator event.
func EnterEvent(at time.Time) Event {
	return Event{Key: KeyEnter, At: at}
}

// ParseKeyName maps a browser KeyboardEvent.key value to a Key.
func ParseKeyName(name string) (Key, rune) {
	if name == "" {
		return KeyNone, 0
	}
	if name == "Enter" {
		return KeyEnter, 0
	}
	r, size := utf8.DecodeRuneInString(name)
	if size == len(name) && r != utf8.RuneError {
		return KeyRune, r
	}
	return KeyOther, 0
}
