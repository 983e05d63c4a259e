// Package locate turns a device's probed names into ranked candidate locations.
package locate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
	"github.com/lcalzada-xor/geoprobe/internal/core/services/scoring"
	"github.com/lcalzada-xor/geoprobe/internal/geo"
	"github.com/lcalzada-xor/geoprobe/internal/telemetry"
)

// Config holds presentation policy and scoring weights.
type Config struct {
	Suppressed      []string
	CacheTTL        time.Duration
	Weights         scoring.Weights
	LikelyThreshold float64
	LikelyLimit     int
	MaxCandidates   int
}

// DefaultConfig returns the stock policy.
func DefaultConfig() Config {
	return Config{
		CacheTTL:        24 * time.Hour,
		Weights:         scoring.DefaultWeights(),
		LikelyThreshold: 0.5,
		LikelyLimit:     50,
		MaxCandidates:   500,
	}
}

// Service resolves names, fetches hits through the cache and scores them.
type Service struct {
	store    ports.ProbeStore
	sensor   ports.SensorClient
	searcher ports.GeoSearcher
	cache    ports.ResultCache
	base     ports.BaseLocationStore

	cfg        Config
	suppressed map[string]struct{}
}

// NewService wires the locate pipeline. sensor, cache and base may be nil.
func NewService(store ports.ProbeStore, sensor ports.SensorClient, searcher ports.GeoSearcher,
	cache ports.ResultCache, base ports.BaseLocationStore, cfg Config) *Service {
	suppressed := make(map[string]struct{}, len(cfg.Suppressed))
	for _, n := range cfg.Suppressed {
		suppressed[n] = struct{}{}
	}
	return &Service{
		store:      store,
		sensor:     sensor,
		searcher:   searcher,
		cache:      cache,
		base:       base,
		cfg:        cfg,
		suppressed: suppressed,
	}
}

// Candidates answers a locate query.
//
// Only caller mistakes are returned as errors: a malformed identifier, an empty query, or
// an identifier neither the live store nor the sensor knows. Upstream failures are reported
// in Diagnostics and the result stays well formed.
func (s *Service) Candidates(ctx context.Context, q domain.CandidateQuery) (domain.CandidateResult, error) {
	ctx, span := telemetry.Tracer("locate").Start(ctx, "locate.Candidates")
	defer span.End()

	result := domain.CandidateResult{
		Names:      []string{},
		Candidates: []domain.ScoredCandidate{},
	}

	if q.Identifier != "" {
		id, err := domain.ParseIdentifier(q.Identifier)
		if err != nil {
			span.SetStatus(codes.Error, "invalid identifier")
			return result, err
		}
		result.Identifier = id
	}
	if result.Identifier == "" && q.Name == "" {
		return result, domain.ErrInvalidQuery
	}
	span.SetAttributes(
		attribute.String("locate.identifier", result.Identifier),
		attribute.Bool("locate.likely_only", q.LikelyOnly),
	)

	var names []string
	if result.Identifier != "" {
		resolved, diag, err := s.deviceNames(ctx, result.Identifier)
		if diag != "" {
			result.Diagnostics = append(result.Diagnostics, diag)
		}
		if err != nil && q.Name == "" {
			return result, err
		}
		names = resolved
	}
	if q.Name != "" {
		names = []string{q.Name}
	}
	names = s.scorable(names)
	result.Names = names

	rarity := make(map[string]int, len(names))
	var raw []domain.RawCandidate
	for _, n := range names {
		hits, err := s.lookup(ctx, n)
		if err != nil {
			result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("lookup %q failed: %v", n, err))
			continue
		}
		rarity[n] = len(hits)
		for _, h := range hits {
			raw = append(raw, domain.RawCandidate{Lat: h.Lat, Lon: h.Lon, Name: n, LastUpdate: h.LastUpdate})
		}
	}

	ref, diag := s.reference(ctx)
	if diag != "" {
		result.Diagnostics = append(result.Diagnostics, diag)
	}

	scored := scoring.Score(raw, names, rarity, ref, s.cfg.Weights)
	result.Candidates = s.present(scored, q.LikelyOnly)

	span.SetAttributes(
		attribute.Int("locate.names", len(names)),
		attribute.Int("locate.hits", len(raw)),
		attribute.Int("locate.candidates", len(result.Candidates)),
	)
	return result, nil
}

// deviceNames prefers the live store and falls back to the sensor.
// A sensor failure degrades to a diagnostic; a sensor that answers without names means
// the identifier is unknown.
func (s *Service) deviceNames(ctx context.Context, id string) ([]string, string, error) {
	if names := s.store.NamesFor(id); len(names) > 0 {
		return names, "", nil
	}
	if s.sensor == nil {
		return nil, "", fmt.Errorf("%w: %s", domain.ErrUnknownIdentifier, id)
	}

	names, err := s.sensor.DeviceNames(ctx, id)
	if err != nil {
		slog.Debug("sensor name lookup failed", "mac", id, "error", err)
		return nil, fmt.Sprintf("sensor lookup failed: %v", err), nil
	}
	if len(names) == 0 {
		return nil, "", fmt.Errorf("%w: %s", domain.ErrUnknownIdentifier, id)
	}
	return names, "", nil
}

// scorable drops the wildcard, suppressed names and duplicates, keeping order.
func (s *Service) scorable(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
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
		out = append(out, n)
	}
	return out
}

// CacheKey is the result cache key for one name in one search region.
func CacheKey(region, name string) string {
	return region + ":" + name
}

func (s *Service) lookup(ctx context.Context, name string) ([]domain.GeoHit, error) {
	key := CacheKey(s.searcher.Region(), name)

	if s.cache != nil {
		hits, ok, err := s.cache.GetHits(ctx, key)
		if err != nil {
			slog.Warn("result cache read failed", "key", key, "error", err)
		} else if ok {
			telemetry.GeoLookups.WithLabelValues("cache").Inc()
			return hits, nil
		}
	}

	hits, err := s.searcher.Search(ctx, name)
	if err != nil {
		telemetry.GeoLookups.WithLabelValues("error").Inc()
		return nil, err
	}
	telemetry.GeoLookups.WithLabelValues("remote").Inc()

	if s.cache != nil {
		if err := s.cache.SetHits(ctx, key, hits, s.cfg.CacheTTL); err != nil {
			slog.Warn("result cache write failed", "key", key, "error", err)
		}
	}
	return hits, nil
}

func (s *Service) reference(ctx context.Context) (*geo.Location, string) {
	if s.base == nil {
		return nil, ""
	}
	ref, err := s.base.GetBase(ctx)
	if err != nil {
		return nil, fmt.Sprintf("base location unavailable: %v", err)
	}
	return ref, ""
}

// present applies the likely-only threshold and the result caps.
func (s *Service) present(scored []domain.ScoredCandidate, likelyOnly bool) []domain.ScoredCandidate {
	if likelyOnly {
		out := make([]domain.ScoredCandidate, 0, len(scored))
		for _, c := range scored {
			if c.Score >= s.cfg.LikelyThreshold {
				out = append(out, c)
			}
		}
		return truncate(out, s.cfg.LikelyLimit)
	}
	return truncate(scored, s.cfg.MaxCandidates)
}

func truncate(c []domain.ScoredCandidate, n int) []domain.ScoredCandidate {
	if n > 0 && len(c) > n {
		return c[:n]
	}
	return c
}

// IsCallerError reports whether err should be answered as a client mistake.
func IsCallerError(err error) bool {
	var verr *domain.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, domain.ErrInvalidQuery) ||
		errors.Is(err, domain.ErrInvalidIdentifier)
}

var _ ports.LocateService = (*Service)(nil)
