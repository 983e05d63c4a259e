package mock

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in mock mode
	},
}

// SensorServer simulates the sensor: an eventbus websocket plus the REST device views.
type SensorServer struct {
	generator *DataGenerator
	token     string
	interval  time.Duration

	mu            sync.Mutex
	clients       map[*websocket.Conn]*sync.Mutex
	subscriptions []string
}

// SensorOption customizes a SensorServer.
type SensorOption func(*SensorServer)

// WithToken requires the KISMET query parameter on every request.
func WithToken(token string) SensorOption {
	return func(s *SensorServer) { s.token = token }
}

// WithInterval sets how often Serve emits a generated probe.
func WithInterval(d time.Duration) SensorOption {
	return func(s *SensorServer) { s.interval = d }
}

// NewSensorServer creates a fake sensor backed by gen.
func NewSensorServer(gen *DataGenerator, opts ...SensorOption) *SensorServer {
	s := &SensorServer{
		generator: gen,
		interval:  2 * time.Second,
		clients:   make(map[*websocket.Conn]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler exposes the eventbus and REST routes.
func (s *SensorServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/eventbus/events.ws", s.HandleWebSocket)
	r.HandleFunc("/devices/views/all/devices.json", s.handleRecent).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/devices/by-mac/{mac}.json", s.handleByMac).Methods(http.MethodGet, http.MethodPost)
	return s.withToken(r)
}

func (s *SensorServer) withToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.URL.Query().Get("KISMET") != s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleWebSocket accepts an eventbus client and waits for its SUBSCRIBE message.
func (s *SensorServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("mock sensor upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = &sync.Mutex{}
	total := len(s.clients)
	s.mu.Unlock()
	slog.Debug("mock sensor client connected", "total", total)

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]string
		if json.Unmarshal(data, &msg) == nil {
			if cat, ok := msg["SUBSCRIBE"]; ok {
				s.mu.Lock()
				s.subscriptions = append(s.subscriptions, cat)
				s.mu.Unlock()
			}
		}
	}
}

// Subscriptions returns every category requested so far, in arrival order.
func (s *SensorServer) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subscriptions...)
}

// Clients returns the number of connected eventbus clients.
func (s *SensorServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Publish sends a raw frame to every connected eventbus client.
func (s *SensorServer) Publish(frame []byte) {
	s.mu.Lock()
	targets := make(map[*websocket.Conn]*sync.Mutex, len(s.clients))
	for c, wmu := range s.clients {
		targets[c] = wmu
	}
	s.mu.Unlock()

	for conn, wmu := range targets {
		wmu.Lock()
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			slog.Debug("mock sensor write failed", "error", err)
		}
		wmu.Unlock()
	}
}

// PublishJSON encodes v and publishes it.
func (s *SensorServer) PublishJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.Publish(data)
	return nil
}

// DisconnectAll drops every eventbus client, to exercise reconnects.
func (s *SensorServer) DisconnectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		conn.Close()
	}
}

// Emit loops, publishing one generated probe per interval, until ctx ends.
func (s *SensorServer) Emit(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if frame := s.generator.NextProbe(); frame != nil {
				s.PublishJSON(frame)
			}
		}
	}
}

func (s *SensorServer) handleRecent(w http.ResponseWriter, r *http.Request) {
	records := s.generator.DeviceRecords()
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(records) {
		records = records[:limit]
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *SensorServer) handleByMac(w http.ResponseWriter, r *http.Request) {
	mac := mux.Vars(r)["mac"]
	for _, st := range s.generator.Stations() {
		if strings.EqualFold(st.MAC, mac) {
			writeJSON(w, http.StatusOK, DeviceRecord(1, st.MAC, st.SSIDs, st.LastSeen.Unix()))
			return
		}
	}
	http.NotFound(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
