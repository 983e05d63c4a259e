package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
	"github.com/lcalzada-xor/geoprobe/internal/telemetry"
)

const writeWait = 5 * time.Second

// Message is one frame sent to a summary subscriber.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Frame types.
const (
	TypeSummary   = "summary"
	TypeKeepAlive = "keepalive"
)

type keepAlivePayload struct {
	TS int64 `json:"ts"`
}

// WSManager serves the summary subscription over websocket connections.
type WSManager struct {
	Service ports.SummaryService

	upgrader gws.Upgrader
	mu       sync.Mutex
	clients  map[*gws.Conn]string
}

// NewWSManager creates a manager. Cross-origin upgrades are refused unless the origin is
// listed in allowedOrigins or matches the request host.
func NewWSManager(service ports.SummaryService, allowedOrigins ...string) *WSManager {
	m := &WSManager{
		Service: service,
		clients: make(map[*gws.Conn]string),
	}
	m.upgrader = gws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, allowedOrigins)
		},
	}
	return m
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if origin == a {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	slog.Warn("websocket origin rejected", "origin", origin)
	return false
}

// Clients returns the number of connected subscribers.
func (m *WSManager) Clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// HandleWebSocket upgrades the request and streams summary frames until either side closes.
func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	m.mu.Lock()
	m.clients[conn] = r.RemoteAddr
	m.mu.Unlock()
	gauge := telemetry.StreamSubscribers.WithLabelValues("ws")
	gauge.Inc()
	slog.Debug("summary websocket connected", "remote", r.RemoteAddr)

	defer func() {
		m.mu.Lock()
		delete(m.clients, conn)
		m.mu.Unlock()
		gauge.Dec()
		conn.Close()
		slog.Debug("summary websocket disconnected", "remote", r.RemoteAddr)
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Inbound frames are ignored; a read error means the peer went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = m.Service.Stream(ctx, func(f domain.SummaryFrame) error {
		return writeFrame(conn, f)
	})
	if err != nil {
		slog.Debug("summary websocket stream ended", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseGoingAway, ""))
}

func writeFrame(conn *gws.Conn, f domain.SummaryFrame) error {
	msg := Message{Type: TypeKeepAlive, Payload: keepAlivePayload{TS: f.At.Unix()}}
	if !f.KeepAlive && f.Summary != nil {
		msg = Message{Type: TypeSummary, Payload: f.Summary}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(gws.TextMessage, data)
}
