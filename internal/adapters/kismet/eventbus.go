package kismet

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
	"github.com/lcalzada-xor/geoprobe/internal/telemetry"
)

// StreamerConfig configures the eventbus connection.
type StreamerConfig struct {
	BaseURL          string
	APIToken         string
	Category         string
	PingInterval     time.Duration
	PingTimeout      time.Duration
	HandshakeTimeout time.Duration

	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

func (c *StreamerConfig) applyDefaults() {
	if c.Category == "" {
		c.Category = ProbedSSIDCategory
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 10 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 3 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = 1.7
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

// Streamer keeps one subscription to the sensor eventbus alive and feeds the probe store.
//
// Disconnected -> Connecting -> Subscribed -> Disconnected -> (backoff) -> Connecting ...
type Streamer struct {
	cfg     StreamerConfig
	wsURL   string
	store   ports.ProbeRecorder
	dialer  *websocket.Dialer
	backoff *backoff.ExponentialBackOff

	mu           sync.RWMutex
	state        string
	lastError    string
	reconnects   int
	subscribedAt time.Time
}

// NewStreamer builds a streamer for the sensor at cfg.BaseURL.
func NewStreamer(cfg StreamerConfig, store ports.ProbeRecorder) (*Streamer, error) {
	cfg.applyDefaults()
	wsURL, err := EventbusURL(cfg.BaseURL, cfg.APIToken)
	if err != nil {
		return nil, err
	}
	return &Streamer{
		cfg:     cfg,
		wsURL:   wsURL,
		store:   store,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		backoff: newBackoff(cfg),
		state:   domain.FeedDisconnected,
	}, nil
}

// newBackoff builds the reconnect schedule: initial, x multiplier, capped, no jitter, no deadline.
func newBackoff(cfg StreamerConfig) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialBackoff
	b.Multiplier = cfg.BackoffMultiplier
	b.MaxInterval = cfg.MaxBackoff
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// EventbusURL converts the sensor's http(s) base URL to its eventbus websocket URL.
func EventbusURL(base, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("parse sensor url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("sensor url %q has no host", base)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/eventbus/events.ws"
	u.Fragment = ""
	q := u.Query()
	if token != "" {
		q.Set("KISMET", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Serve runs the connect/subscribe/consume loop until ctx is cancelled.
// It satisfies suture.Service.
func (s *Streamer) Serve(ctx context.Context) error {
	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			s.setState(domain.FeedDisconnected, "")
			return ctx.Err()
		}
		msg := "connection closed"
		if err != nil {
			msg = err.Error()
		}
		s.setState(domain.FeedDisconnected, msg)

		delay := s.backoff.NextBackOff()
		slog.Warn("eventbus disconnected, reconnecting", "error", msg, "delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		s.mu.Lock()
		s.reconnects++
		s.mu.Unlock()
		telemetry.FeedReconnects.Inc()
	}
}

// String names the service in supervisor logs.
func (s *Streamer) String() string {
	return "kismet-eventbus"
}

// runOnce performs one full connection cycle and returns when it ends.
func (s *Streamer) runOnce(ctx context.Context) error {
	s.setState(domain.FeedConnecting, "")
	slog.Info("eventbus connecting", "url", redactToken(s.wsURL))

	conn, resp, err := s.dialer.DialContext(ctx, s.wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("eventbus dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("eventbus dial: %w", err)
	}
	defer conn.Close()

	sub, err := json.Marshal(map[string]string{"SUBSCRIBE": s.cfg.Category})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(s.cfg.PingTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	s.backoff.Reset()
	s.setState(domain.FeedSubscribed, "")
	slog.Info("eventbus subscribed", "category", s.cfg.Category)

	readWindow := s.cfg.PingInterval + s.cfg.PingTimeout
	conn.SetReadDeadline(time.Now().Add(readWindow))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWindow))
	})

	done := make(chan struct{})
	defer close(done)
	var writeMu sync.Mutex
	go s.keepAlive(ctx, conn, &writeMu, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("eventbus read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readWindow))
		s.HandleMessage(data)
	}
}

// keepAlive pings the sensor and closes the socket when ctx ends so the read loop unblocks.
func (s *Streamer) keepAlive(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			writeMu.Lock()
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			writeMu.Unlock()
			conn.Close()
			return
		case <-ticker.C:
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.cfg.PingTimeout))
			writeMu.Unlock()
			if err != nil {
				slog.Debug("eventbus ping failed", "error", err)
				conn.Close()
				return
			}
		}
	}
}

// HandleMessage parses one frame and records it. Bad frames are counted and dropped.
func (s *Streamer) HandleMessage(data []byte) Outcome {
	ev, outcome := ParseEvent(data, s.cfg.Category)
	if outcome == OutcomeRecorded && !s.store.Record(ev) {
		outcome = OutcomeIgnored
	}
	telemetry.EventsTotal.WithLabelValues(string(outcome)).Inc()
	if outcome == OutcomeMalformed {
		slog.Debug("eventbus dropped malformed frame", "bytes", len(data))
	}
	return outcome
}

// Status reports the connection state.
func (s *Streamer) Status() domain.FeedStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := domain.FeedStatus{
		State:      s.state,
		Connected:  s.state == domain.FeedSubscribed,
		LastError:  s.lastError,
		Reconnects: s.reconnects,
	}
	if !s.subscribedAt.IsZero() {
		at := s.subscribedAt
		st.SubscribedAt = &at
	}
	return st
}

func (s *Streamer) setState(state, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
	switch state {
	case domain.FeedSubscribed:
		s.lastError = ""
		s.subscribedAt = time.Now()
		telemetry.FeedConnected.Set(1)
	case domain.FeedDisconnected:
		if errMsg != "" {
			s.lastError = errMsg
		}
		telemetry.FeedConnected.Set(0)
	}
}

func redactToken(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("KISMET") {
		q.Set("KISMET", "redacted")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
