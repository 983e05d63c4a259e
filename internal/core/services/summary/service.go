// Package summary composes the "who is probing for what" dashboard view and its live stream.
package summary

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
)

const (
	DefaultLimit       = 200
	DefaultKeepAlive   = 25 * time.Second
	DefaultRecentLimit = 200
)

// Config tunes the facade.
type Config struct {
	Suppressed  []string
	Limit       int
	KeepAlive   time.Duration
	RecentLimit int
}

// Service prefers the live probe store and falls back to the sensor's recent-devices view
// when the store is still empty, e.g. right after startup.
type Service struct {
	store       ports.ProbeStore
	sensor      ports.SensorClient
	suppressed  map[string]struct{}
	limit       int
	keepAlive   time.Duration
	recentLimit int
	now         func() time.Time
}

// NewService builds the facade. sensor may be nil when no REST fallback is available.
func NewService(store ports.ProbeStore, sensor ports.SensorClient, cfg Config) *Service {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultRecentLimit
	}
	return &Service{
		store:       store,
		sensor:      sensor,
		suppressed:  SuppressionSet(cfg.Suppressed),
		limit:       cfg.Limit,
		keepAlive:   cfg.KeepAlive,
		recentLimit: cfg.RecentLimit,
		now:         time.Now,
	}
}

// SuppressionSet turns a configured name list into a lookup set.
func SuppressionSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Summary returns the current view. Upstream failures produce an empty view with a diagnostic.
func (s *Service) Summary(ctx context.Context) domain.SummaryView {
	items := s.store.Snapshot(s.suppressed)
	if len(items) > 0 {
		return domain.SummaryView{Items: s.capped(items), Source: domain.SourceLive}
	}
	if s.sensor == nil {
		return domain.SummaryView{Items: []domain.ProbeSummary{}, Source: domain.SourceLive}
	}

	devices, err := s.sensor.RecentDevices(ctx, s.recentLimit)
	if err != nil {
		slog.Debug("summary sensor fallback failed", "error", err)
		return domain.SummaryView{
			Items:  []domain.ProbeSummary{},
			Source: domain.SourceSensor,
			Error:  err.Error(),
		}
	}
	return domain.SummaryView{Items: s.capped(s.fromSensor(devices)), Source: domain.SourceSensor}
}

func (s *Service) fromSensor(devices []domain.SensorDevice) []domain.ProbeSummary {
	items := make([]domain.ProbeSummary, 0, len(devices))
	for _, d := range devices {
		if d.NameCount <= 0 && len(d.Names) == 0 {
			continue
		}
		display := make([]string, 0, len(d.Names))
		seen := make(map[string]struct{}, len(d.Names))
		for _, n := range d.Names {
			if n == domain.WildcardName {
				continue
			}
			if _, hidden := s.suppressed[n]; hidden {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			display = append(display, n)
		}
		sort.Strings(display)

		count := d.NameCount
		if count <= 0 {
			count = len(d.Names)
		}
		items = append(items, domain.ProbeSummary{
			Identifier: d.Identifier,
			LastSeen:   d.LastSeen,
			Names:      display,
			NameCount:  count,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastSeen > items[j].LastSeen
	})
	return items
}

func (s *Service) capped(items []domain.ProbeSummary) []domain.ProbeSummary {
	if len(items) > s.limit {
		return items[:s.limit]
	}
	return items
}

// Stream emits one snapshot immediately, then a fresh snapshot on every store change and
// a keep-alive frame after each quiet period. It returns when ctx ends or emit fails.
func (s *Service) Stream(ctx context.Context, emit func(domain.SummaryFrame) error) error {
	id := uuid.NewString()
	log := slog.With("subscriber", id)
	log.Debug("summary subscriber connected")
	defer log.Debug("summary subscriber disconnected")

	last := s.store.Version()
	if err := s.emitSummary(ctx, emit); err != nil {
		return err
	}

	for {
		changed := s.store.AwaitChange(ctx, last, s.keepAlive)
		if ctx.Err() != nil {
			return nil
		}

		if changed {
			last = s.store.Version()
			if err := s.emitSummary(ctx, emit); err != nil {
				return err
			}
			continue
		}
		if err := emit(domain.SummaryFrame{KeepAlive: true, At: s.now()}); err != nil {
			return err
		}
	}
}

func (s *Service) emitSummary(ctx context.Context, emit func(domain.SummaryFrame) error) error {
	view := s.Summary(ctx)
	return emit(domain.SummaryFrame{Summary: &view, At: s.now()})
}

var _ ports.SummaryService = (*Service)(nil)
