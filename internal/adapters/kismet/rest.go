package kismet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
)

const (
	recentDevicesPath = "/devices/views/all/devices.json"
	byMacPathFmt      = "/devices/by-mac/%s.json"

	recentFields = "kismet.device.base.macaddr," +
		"kismet.device.base.last_time," +
		"dot11.device.probed_ssid_map," +
		"dot11.device.probed_ssid_count"
	byMacFields = "dot11.device.probed_ssid_map,kismet.device.base.macaddr"

	// ViewScanLimit bounds the recent-view walk used when by-mac lookups fail.
	ViewScanLimit = 500
)

// HTTPError is a non-2xx answer from the sensor.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("sensor returned HTTP %d for %s", e.StatusCode, e.URL)
}

// Is lets callers match any sensor HTTP failure against domain.ErrSensorUnavailable.
func (e *HTTPError) Is(target error) bool {
	return target == domain.ErrSensorUnavailable
}

// ClientConfig configures the REST client.
type ClientConfig struct {
	BaseURL        string
	APIToken       string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// Client queries the sensor's REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient returns a REST client with bounded connect and read timeouts.
func NewClient(cfg ClientConfig) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 3 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   cfg.APIToken,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
	}
}

// RecentDevices returns up to limit devices, most recently active first.
func (c *Client) RecentDevices(ctx context.Context, limit int) ([]domain.SensorDevice, error) {
	if limit <= 0 {
		limit = 200
	}
	params := url.Values{}
	params.Set("fields", recentFields)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("orderby", "-kismet.device.base.last_time")

	body, err := c.getJSON(ctx, recentDevicesPath, params)
	if err != nil {
		return nil, err
	}

	raw := deviceList(body)
	out := make([]domain.SensorDevice, 0, len(raw))
	for _, dev := range raw {
		if d, ok := toSensorDevice(dev); ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// DeviceNames returns the probed names the sensor knows for one identifier.
// Builds without the by-mac endpoint, or answers without names, fall back to a view scan.
func (c *Client) DeviceNames(ctx context.Context, identifier string) ([]string, error) {
	identifier = domain.NormalizeIdentifier(identifier)
	if identifier == "" {
		return []string{}, nil
	}

	params := url.Values{}
	params.Set("fields", byMacFields)
	body, err := c.getJSON(ctx, fmt.Sprintf(byMacPathFmt, url.PathEscape(identifier)), params)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return c.ProbesFromRecent(ctx, identifier)
		}
		return nil, err
	}

	dev, ok := body.(map[string]any)
	if !ok {
		// Some builds wrap the record in a single-element list.
		if list := deviceList(body); len(list) > 0 {
			dev = list[0]
		} else {
			return c.ProbesFromRecent(ctx, identifier)
		}
	}
	if names := probedNames(dev); len(names) > 0 {
		return names, nil
	}
	return c.ProbesFromRecent(ctx, identifier)
}

// ProbesFromRecent walks the recent devices view for one identifier.
func (c *Client) ProbesFromRecent(ctx context.Context, identifier string) ([]string, error) {
	devices, err := c.RecentDevices(ctx, ViewScanLimit)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if sameIdentifier(d.Identifier, identifier) {
			return d.Names, nil
		}
	}
	return []string{}, nil
}

func (c *Client) getJSON(ctx context.Context, p string, params url.Values) (any, error) {
	if c.token != "" {
		params.Set("KISMET", c.token)
	}
	target := c.baseURL + p
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build sensor request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSensorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: c.baseURL + p}
	}

	var body any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		// An undecodable body is treated as an empty answer.
		return nil, nil
	}
	return body, nil
}
