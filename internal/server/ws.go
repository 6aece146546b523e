package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/treegesture/internal/app"
	"github.com/ayusman/treegesture/internal/gesture"
	"github.com/ayusman/treegesture/internal/preview"
)

const (
	writeWait  = time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Signal types sent on /api/signals.
const (
	SignalPosition = "position"
	SignalMode     = "mode"
	SignalPinch    = "pinch"
	SignalStatus   = "status"
)

type positionMessage struct {
	Type     string  `json:"type"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Detected bool    `json:"detected"`
}

type signalMessage struct {
	Type   string `json:"type"`
	Mode   string `json:"mode,omitempty"`
	Status string `json:"status,omitempty"`
}

// Hub fans gesture signals out to websocket clients. A slow client loses
// messages instead of delaying the frame loop.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	closed  bool
	// last status and mode, replayed to new clients
	status []byte
	mode   []byte
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan []byte)}
}

// Handlers returns session handlers that broadcast every output.
func (h *Hub) Handlers() app.Handlers {
	return app.Handlers{
		OnModeChange: func(m gesture.Mode) {
			h.broadcast(signalMessage{Type: SignalMode, Mode: string(m)}, &h.mode)
		},
		OnHandPosition: func(p gesture.HandPosition) {
			h.broadcast(positionMessage{Type: SignalPosition, X: p.X, Y: p.Y, Detected: p.Detected}, nil)
		},
		OnPinch: func() {
			h.broadcast(signalMessage{Type: SignalPinch}, nil)
		},
		OnStatus: func(s string) {
			h.broadcast(signalMessage{Type: SignalStatus, Status: s}, &h.status)
		},
	}
}

// broadcast queues v for every client. If keep is set the encoded message is
// remembered there for replay.
func (h *Hub) broadcast(v any, keep *[]byte) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Printf("signals: encode: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if keep != nil {
		*keep = msg
	}
	for _, send := range h.clients {
		select {
		case send <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(conn *websocket.Conn, send chan []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	for _, msg := range [][]byte{h.status, h.mode} {
		if msg != nil {
			send <- msg
		}
	}
	h.clients[conn] = send
	return true
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for conn, send := range h.clients {
		close(send)
		delete(h.clients, conn)
	}
}

// ServeHTTP handles WebSocket upgrade requests on /api/signals.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan []byte, sendBuffer)
	if !h.add(conn, send) {
		return
	}
	defer h.remove(conn)

	gone := readUntilClosed(conn)
	for {
		select {
		case <-gone:
			return
		case msg, ok := <-send:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains incoming messages and closes the returned channel
// when the peer goes away.
func readUntilClosed(conn *websocket.Conn) <-chan struct{} {
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return gone
}

// LandmarksHandler sends the preview overlay landmarks over a websocket at
// about 15 FPS.
type LandmarksHandler struct {
	preview  *preview.Preview
	interval time.Duration
}

// NewLandmarksHandler creates a LandmarksHandler for p.
func NewLandmarksHandler(p *preview.Preview) *LandmarksHandler {
	return &LandmarksHandler{preview: p, interval: streamInterval}
}

func (h *LandmarksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	gone := readUntilClosed(conn)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case <-ticker.C:
		}

		hands := []any{}
		if hand, ok := h.preview.Hand(); ok {
			hands = append(hands, hand)
		}
		msg, _ := json.Marshal(map[string]any{
			"hands":     hands,
			"timestamp": time.Now().UnixMilli(),
		})

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
