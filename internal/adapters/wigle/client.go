// Package wigle searches the WiGLE network database for access points by SSID.
package wigle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/telemetry"
)

const (
	DefaultBaseURL = "https://api.wigle.net/api/v2"
	searchPath     = "/network/search"
)

// BBox restricts searches to a latitude/longitude rectangle.
type BBox struct {
	Lat1 float64
	Lat2 float64
	Lon1 float64
	Lon2 float64
}

// Config configures the client.
type Config struct {
	APIName  string
	APIToken string
	BaseURL  string
	Region   string
	BBox     *BBox

	PageCap           int
	RequestTimeout    time.Duration
	RateLimitDelay    time.Duration
	RateLimitRetries  int
	RequestsPerSecond float64

	// Breaker settings
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PageCap <= 0 {
		c.PageCap = 400
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.RateLimitDelay <= 0 {
		c.RateLimitDelay = 2 * time.Second
	}
	if c.RateLimitRetries <= 0 {
		c.RateLimitRetries = 5
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 60 * time.Second
	}
}

// StatusError is a non-2xx, non-429 answer from the search API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("wigle returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("wigle returned HTTP %d: %s", e.StatusCode, e.Body)
}

type searchResponse struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message"`
	Results     []searchRow `json:"results"`
	SearchAfter string      `json:"searchAfter"`
}

type searchRow struct {
	Trilat   *float64 `json:"trilat"`
	Trilong  *float64 `json:"trilong"`
	LastUpdt string   `json:"lastupdt"`
}

// Client performs paginated SSID searches behind a rate limiter and a circuit breaker.
type Client struct {
	cfg     Config
	auth    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]domain.GeoHit]
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient builds a search client.
func NewClient(cfg Config) *Client {
	cfg.applyDefaults()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(limit, 1),
		sleep:   sleepCtx,
	}
	if cfg.APIName != "" || cfg.APIToken != "" {
		c.auth = "Basic " + basicAuth(cfg.APIName, cfg.APIToken)
	}

	name := "wigle"
	telemetry.CircuitBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	c.breaker = gobreaker.NewCircuitBreaker[[]domain.GeoHit](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			telemetry.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return c
}

// Region labels the search scope for cache keys.
func (c *Client) Region() string {
	switch {
	case c.cfg.Region != "":
		return c.cfg.Region
	case c.cfg.BBox != nil:
		return "bbox"
	default:
		return "global"
	}
}

// Search returns every located access point advertising name, up to the page cap.
func (c *Client) Search(ctx context.Context, name string) ([]domain.GeoHit, error) {
	hits, err := c.breaker.Execute(func() ([]domain.GeoHit, error) {
		return c.search(ctx, name)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("wigle search suspended: %w", err)
	}
	return hits, err
}

func (c *Client) search(ctx context.Context, name string) ([]domain.GeoHit, error) {
	params := url.Values{}
	params.Set("ssid", name)
	if b := c.cfg.BBox; b != nil {
		params.Set("latrange1", formatCoord(b.Lat1))
		params.Set("latrange2", formatCoord(b.Lat2))
		params.Set("longrange1", formatCoord(b.Lon1))
		params.Set("longrange2", formatCoord(b.Lon2))
	}

	out := make([]domain.GeoHit, 0)
	for {
		page, err := c.fetchPage(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, row := range page.Results {
			if row.Trilat == nil || row.Trilong == nil {
				continue
			}
			out = append(out, domain.GeoHit{Lat: *row.Trilat, Lon: *row.Trilong, LastUpdate: row.LastUpdt})
			if len(out) >= c.cfg.PageCap {
				return out, nil
			}
		}
		if page.SearchAfter == "" || len(page.Results) == 0 {
			return out, nil
		}
		params.Set("searchAfter", page.SearchAfter)
	}
}

// fetchPage retries a rate-limited page a bounded number of times.
func (c *Client) fetchPage(ctx context.Context, params url.Values) (*searchResponse, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, limited, err := c.doRequest(ctx, params)
		if err != nil {
			return nil, err
		}
		if !limited {
			return page, nil
		}
		if attempt >= c.cfg.RateLimitRetries {
			return nil, fmt.Errorf("%w after %d retries", domain.ErrRateLimited, attempt)
		}
		slog.Debug("wigle rate limited, retrying", "attempt", attempt+1, "delay", c.cfg.RateLimitDelay)
		if err := c.sleep(ctx, c.cfg.RateLimitDelay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) doRequest(ctx context.Context, params url.Values) (*searchResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+searchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != "" {
		req.Header.Set("Authorization", c.auth)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("wigle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, true, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, false, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var page searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, false, fmt.Errorf("decode wigle response: %w", err)
	}
	return &page, false, nil
}

func basicAuth(name, token string) string {
	return base64.StdEncoding.EncodeToString([]byte(name + ":" + token))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
