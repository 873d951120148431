// Package ws is the control and broadcast surface: websocket clients receive
// frames, zone state updates and diagnostics, and submit zone configuration
// commands. It consumes the engine's state-change callback through a queue
// so the callback never blocks inside the engine's critical section.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lumenweave/stripzones/internal/blend"
	"github.com/lumenweave/stripzones/internal/compose"
	"github.com/lumenweave/stripzones/internal/diagnostics"
	"github.com/lumenweave/stripzones/internal/preset"
)

const writeDeadline = 200 * time.Millisecond

// client wraps a connection with a write lock. Frame pushes arrive from the
// render loop and zone-state pushes from the Run goroutine; the websocket
// allows only one concurrent writer, so every outbound message goes through
// write.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub fans engine state out to websocket clients.
type Hub struct {
	mu          sync.RWMutex
	comp        *compose.Composer
	store       *preset.Store
	clients     map[*client]bool
	diagClients map[*client]bool
	notifyCh    chan int
	frameID     uint64
	start       time.Time
	log         zerolog.Logger
}

func NewHub(comp *compose.Composer, store *preset.Store, log zerolog.Logger) *Hub {
	h := &Hub{
		comp:        comp,
		store:       store,
		clients:     map[*client]bool{},
		diagClients: map[*client]bool{},
		notifyCh:    make(chan int, 64),
		start:       time.Now(),
		log:         log.With().Str("component", "ws").Logger(),
	}
	// The callback runs inside the engine's lock: enqueue and return. A full
	// queue drops the notification; the next change will re-broadcast.
	comp.SetStateChangeCallback(func(zone int) {
		select {
		case h.notifyCh <- zone:
		default:
		}
	})
	return h
}

// Run drains the state-change queue and broadcasts zone state. Blocks until
// done closes.
func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case zone := <-h.notifyCh:
			h.broadcastZoneState(zone)
		}
	}
}

type zoneStateMsg struct {
	Type       string `json:"type"`
	Zone       int    `json:"zone"`
	Effect     int    `json:"effect"`
	Brightness uint8  `json:"brightness"`
	Speed      uint8  `json:"speed"`
	Palette    uint8  `json:"palette"`
	Blend      string `json:"blend"`
	Enabled    bool   `json:"enabled"`
}

func (h *Hub) zoneState(zone int) zoneStateMsg {
	return zoneStateMsg{
		Type:       "zone_state",
		Zone:       zone,
		Effect:     h.comp.ZoneEffect(zone),
		Brightness: h.comp.ZoneBrightness(zone),
		Speed:      h.comp.ZoneSpeed(zone),
		Palette:    h.comp.ZonePalette(zone),
		Blend:      h.comp.ZoneBlendMode(zone).String(),
		Enabled:    h.comp.ZoneEnabled(zone),
	}
}

func (h *Hub) broadcastZoneState(zone int) {
	b, err := json.Marshal(h.zoneState(zone))
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if err := c.write(b); err != nil {
			h.log.Debug().Err(err).Msg("write zone state")
		}
	}
}

// BroadcastFrame pushes a finished output frame to every frames client.
func (h *Hub) BroadcastFrame(frame []blend.Color) {
	h.mu.Lock()
	h.frameID++
	id := h.frameID
	h.mu.Unlock()

	rgb := make([]byte, len(frame)*3)
	for i, c := range frame {
		rgb[i*3+0] = c.R
		rgb[i*3+1] = c.G
		rgb[i*3+2] = c.B
	}
	msg := struct {
		Type    string `json:"type"`
		T       int64  `json:"t"`
		FrameID uint64 `json:"frame_id"`
		RGB     []byte `json:"rgb"`
	}{"frame", time.Now().UnixNano(), id, rgb}
	b, _ := json.Marshal(msg)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if err := c.write(b); err != nil {
			h.log.Debug().Err(err).Msg("write frame")
		}
	}
}

// PushDiag sends a diagnostic event to every diagnostics client.
func (h *Hub) PushDiag(d diagnostics.Diagnostic) {
	b, _ := json.Marshal(d)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.diagClients {
		_ = c.write(b)
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// serve registers conn in set and drains inbound messages until the client
// goes away.
func (h *Hub) serve(conn *websocket.Conn, set map[*client]bool) {
	c := &client{conn: conn}
	h.mu.Lock()
	set[c] = true
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(set, c)
			h.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.serve(conn, h.clients)
}

func (h *Hub) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.serve(conn, h.diagClients)
}

func (h *Hub) HandleHealth(w http.ResponseWriter, r *http.Request) {
	m := h.comp.Metrics()
	h.mu.RLock()
	id := h.frameID
	h.mu.RUnlock()
	resp := map[string]any{
		"frame_id":     id,
		"uptime_s":     time.Since(h.start).Seconds(),
		"zones":        h.comp.ZoneCount(),
		"enabled":      h.comp.Enabled(),
		"avg_frame_ms": m.AverageFrameMS(),
		"frame_skips":  m.FrameSkips,
	}
	_ = json.NewEncoder(w).Encode(resp)
}
