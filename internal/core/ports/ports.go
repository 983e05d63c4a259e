package ports

import (
	"context"
	"time"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/geo"
)

// ProbeRecorder is the write side of the probe store, used by the event feed.
type ProbeRecorder interface {
	// Record stores one probe observation. It returns false when the event was unusable.
	Record(ev domain.ProbeEvent) bool
}

// ProbeStore is the full probe store contract.
type ProbeStore interface {
	ProbeRecorder

	// Snapshot returns all live records newest first, hiding suppressed names from display.
	Snapshot(suppressed map[string]struct{}) []domain.ProbeSummary

	// NamesFor returns the sorted, unfiltered name set of one identifier.
	NamesFor(identifier string) []string

	// Version returns the mutation counter.
	Version() uint64

	// AwaitChange blocks until the version differs from since, the timeout elapses
	// or ctx is cancelled. It reports whether a change was observed.
	AwaitChange(ctx context.Context, since uint64, timeout time.Duration) bool

	// Stats reports live size and last event time.
	Stats() domain.StoreStats
}

// SensorClient is the sensor's REST API.
type SensorClient interface {
	// RecentDevices returns up to limit recently active devices.
	RecentDevices(ctx context.Context, limit int) ([]domain.SensorDevice, error)

	// DeviceNames returns the probed names of one device.
	DeviceNames(ctx context.Context, identifier string) ([]string, error)

	// ProbesFromRecent scans the recent view for one device's probed names.
	ProbesFromRecent(ctx context.Context, identifier string) ([]string, error)
}

// FeedMonitor exposes the state of the sensor event feed.
type FeedMonitor interface {
	Status() domain.FeedStatus
}

// GeoSearcher queries the geolocation database for access points by network name.
type GeoSearcher interface {
	Search(ctx context.Context, name string) ([]domain.GeoHit, error)
	// Region labels the search area, used as cache key prefix.
	Region() string
}

// ResultCache is a TTL key/value cache for geolocation results.
type ResultCache interface {
	GetHits(ctx context.Context, key string) ([]domain.GeoHit, bool, error)
	SetHits(ctx context.Context, key string, hits []domain.GeoHit, ttl time.Duration) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// BaseLocationStore persists the optional reference point.
type BaseLocationStore interface {
	GetBase(ctx context.Context) (*geo.Location, error)
	SetBase(ctx context.Context, loc geo.Location) error
	ClearBase(ctx context.Context) error
}

// SummaryService is the read facade used by the dashboard.
type SummaryService interface {
	Summary(ctx context.Context) domain.SummaryView
	Stream(ctx context.Context, emit func(domain.SummaryFrame) error) error
}

// LocateService scores candidate locations for a device or a single name.
type LocateService interface {
	Candidates(ctx context.Context, q domain.CandidateQuery) (domain.CandidateResult, error)
}
