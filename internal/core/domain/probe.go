package domain

import "time"

// WildcardName is the name recorded for a broadcast probe that carries no SSID.
const WildcardName = ""

// ProbeEvent is a single normalized probe observation coming from the sensor feed.
// Timestamp is epoch seconds; zero means "unknown" and is replaced by the store clock.
type ProbeEvent struct {
	Identifier string
	Name       string
	Timestamp  int64
}

// ProbeSummary is the externally visible view of one tracked client.
type ProbeSummary struct {
	Identifier string   `json:"mac"`
	LastSeen   int64    `json:"ts"`
	Names      []string `json:"ssids"`
	NameCount  int      `json:"ssid_count"`
}

// SummarySource tells the dashboard where a summary came from.
type SummarySource string

const (
	SourceLive   SummarySource = "live"
	SourceSensor SummarySource = "sensor"
)

// SummaryView is the payload of GET /api/summary and of every stream frame.
type SummaryView struct {
	Items  []ProbeSummary `json:"items"`
	Source SummarySource  `json:"source,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// SummaryFrame is one element of a summary subscription.
// Exactly one of Summary or KeepAlive is meaningful.
type SummaryFrame struct {
	Summary   *SummaryView
	KeepAlive bool
	At        time.Time
}

// StoreStats reports the live size of the probe store.
type StoreStats struct {
	Devices       int        `json:"devices"`
	LastEventAt   *time.Time `json:"last_event_at,omitempty"`
	LastEventAgeS *float64   `json:"last_event_age_s"`
}

// FeedStatus reports the state of the sensor event feed connection.
type FeedStatus struct {
	State        string     `json:"state"`
	Connected    bool       `json:"connected"`
	LastError    string     `json:"last_error,omitempty"`
	Reconnects   int        `json:"reconnects"`
	SubscribedAt *time.Time `json:"subscribed_at,omitempty"`
}

// Feed connection states.
const (
	FeedDisconnected = "disconnected"
	FeedConnecting   = "connecting"
	FeedSubscribed   = "subscribed"
)
