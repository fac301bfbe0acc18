package source

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"checkin-backend/internal/keystroke"
)

const writeWait = 5 * time.Second

// keyMessage is a frame sent by a kiosk page. Key carries KeyboardEvent.key
// and TS the event's epoch milliseconds, when the page provides it.
type keyMessage struct {
	Type string `json:"type"`
	Key  string `json:"key"`
	TS   int64  `json:"ts"`
}

type listenMessage struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// frameWriter is the write half of a kiosk connection.
type frameWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v any) error
}

type wsConn struct {
	ws      frameWriter
	writeMu sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(v)
}

func (c *wsConn) writeLocked(v any) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// Hub accepts kiosk WebSocket connections and publishes their key events.
// Connected kiosks are told whether anyone is listening so they only keep a
// keydown listener attached while it is needed.
type Hub struct {
	pub      Publisher
	clock    clock.PassiveClock
	upgrader websocket.Upgrader

	mu        sync.Mutex
	conns     map[string]*wsConn
	listening bool
}

// NewHub creates a hub publishing into pub.
func NewHub(pub Publisher, clk clock.PassiveClock) *Hub {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Hub{
		pub:   pub,
		clock: clk,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Kiosks are served from other origins
			},
		},
		conns: make(map[string]*wsConn),
	}
}

// SetListening records the key stream's listen state and forwards it to every
// connected kiosk. It is meant to be used as the bus listen hook.
func (h *Hub) SetListening(active bool) {
	h.mu.Lock()
	h.listening = active
	conns := make(map[string]*wsConn, len(h.conns))
	for id, c := range h.conns {
		conns[id] = c
	}
	h.mu.Unlock()

	msg := listenMessage{Type: "listen", Active: active}
	for id, c := range conns {
		if err := c.writeJSON(msg); err != nil {
			logrus.WithField("conn", id).Warnf("Failed to send listen state: %v", err)
		}
	}
}

// ConnCount returns the number of connected kiosks.
func (h *Hub) ConnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// ServeHTTP upgrades the request and pumps key frames until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Warnf("Failed to upgrade key stream connection: %v", err)
		return
	}

	id := uuid.NewString()
	log := logrus.WithField("conn", id)
	err = h.attach(id, ws)
	log.Info("Kiosk connected")

	defer func() {
		h.detach(id)
		ws.Close()
		log.Info("Kiosk disconnected")
	}()

	if err != nil {
		log.Warnf("Failed to send initial listen state: %v", err)
		return
	}

	for {
		var msg keyMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("Key stream read error: %v", err)
			}
			return
		}
		if msg.Type != "key" {
			continue
		}
		h.publish(msg)
	}
}

// attach registers a connection and sends it the current listen state. The
// connection's write lock is taken before h.mu is released, so a concurrent
// SetListening can only reach the kiosk after the initial frame.
func (h *Hub) attach(id string, w frameWriter) error {
	c := &wsConn{ws: w}

	h.mu.Lock()
	h.conns[id] = c
	c.writeMu.Lock()
	active := h.listening
	h.mu.Unlock()

	defer c.writeMu.Unlock()
	return c.writeLocked(listenMessage{Type: "listen", Active: active})
}

func (h *Hub) detach(id string) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

func (h *Hub) publish(msg keyMessage) {
	key, r := keystroke.ParseKeyName(msg.Key)
	if key == keystroke.KeyNone {
		return
	}
	at := h.clock.Now()
	if msg.TS > 0 {
		at = time.UnixMilli(msg.TS)
	}
	h.pub.Publish(keystroke.Event{Key: key, Rune: r, At: at})
}
