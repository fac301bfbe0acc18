// Package source feeds the shared key stream from the places keystrokes
// actually arrive: a kiosk browser over WebSocket or a local terminal.
package source

import "checkin-backend/internal/keystroke"

// Publisher accepts key events for the shared stream.
type Publisher interface {
	Publish(ev keystroke.Event)
}
