package probes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/telemetry"
)

// DefaultMaxNames is the per-client name cap used when none is configured.
const DefaultMaxNames = 200

type probeRecord struct {
	lastSeen int64
	names    map[string]struct{}
}

// Store is a TTL-bounded in-memory index of which clients probed for which names.
// Every mutation bumps a version counter and wakes subscribers blocked in AwaitChange.
type Store struct {
	ttl      time.Duration
	maxNames int
	now      func() time.Time

	mu          sync.Mutex
	byID        map[string]*probeRecord
	version     uint64
	changed     chan struct{}
	lastEventAt time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store. A non-positive ttl disables pruning and a
// non-positive maxNames falls back to DefaultMaxNames.
func NewStore(ttl time.Duration, maxNames int, opts ...Option) *Store {
	if maxNames <= 0 {
		maxNames = DefaultMaxNames
	}
	s := &Store{
		ttl:      ttl,
		maxNames: maxNames,
		now:      time.Now,
		byID:     make(map[string]*probeRecord),
		changed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record stores one probe observation.
// Empty identifiers are dropped silently; a zero or negative timestamp means "now".
func (s *Store) Record(ev domain.ProbeEvent) bool {
	id := domain.NormalizeIdentifier(ev.Identifier)
	if id == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ts := ev.Timestamp
	if ts <= 0 {
		ts = now.Unix()
	}

	rec, ok := s.byID[id]
	if !ok {
		rec = &probeRecord{lastSeen: ts, names: make(map[string]struct{})}
		s.byID[id] = rec
	}
	if ts > rec.lastSeen {
		rec.lastSeen = ts
	}
	if _, seen := rec.names[ev.Name]; !seen && len(rec.names) < s.maxNames {
		rec.names[ev.Name] = struct{}{}
	}

	s.lastEventAt = now
	s.pruneLocked(now)

	s.version++
	close(s.changed)
	s.changed = make(chan struct{})

	telemetry.ProbeDevices.Set(float64(len(s.byID)))
	return true
}

// pruneLocked drops records whose last sighting is older than now - ttl.
func (s *Store) pruneLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	cutoff := now.Add(-s.ttl).Unix()
	for id, rec := range s.byID {
		if rec.lastSeen < cutoff {
			delete(s.byID, id)
		}
	}
}

// isLiveLocked reports whether a record is still within the TTL window.
func (s *Store) isLiveLocked(rec *probeRecord, now time.Time) bool {
	if s.ttl <= 0 {
		return true
	}
	return rec.lastSeen >= now.Add(-s.ttl).Unix()
}

// Snapshot returns every live record, newest first.
// Suppressed names and the wildcard are hidden from Names but still counted in NameCount.
func (s *Store) Snapshot(suppressed map[string]struct{}) []domain.ProbeSummary {
	s.mu.Lock()
	s.pruneLocked(s.now())
	items := make([]domain.ProbeSummary, 0, len(s.byID))
	for id, rec := range s.byID {
		items = append(items, domain.ProbeSummary{
			Identifier: id,
			LastSeen:   rec.lastSeen,
			Names:      displayNames(rec.names, suppressed),
			NameCount:  len(rec.names),
		})
	}
	s.mu.Unlock()

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].LastSeen != items[j].LastSeen {
			return items[i].LastSeen > items[j].LastSeen
		}
		return items[i].Identifier < items[j].Identifier
	})
	return items
}

func displayNames(names map[string]struct{}, suppressed map[string]struct{}) []string {
	out := make([]string, 0, len(names))
	for n := range names {
		if n == domain.WildcardName {
			continue
		}
		if _, hidden := suppressed[n]; hidden {
			continue
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NamesFor returns the full sorted name set of one identifier, wildcard included.
// Unknown or stale identifiers yield an empty slice.
func (s *Store) NamesFor(identifier string) []string {
	id := domain.NormalizeIdentifier(identifier)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok || !s.isLiveLocked(rec, s.now()) {
		return []string{}
	}
	out := make([]string, 0, len(rec.names))
	for n := range rec.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Version returns the mutation counter.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// AwaitChange blocks until the version moves past since, timeout elapses or ctx ends.
// The version check and the wait channel are read under the writer lock, so a
// write landing between the two cannot be missed.
func (s *Store) AwaitChange(ctx context.Context, since uint64, timeout time.Duration) bool {
	s.mu.Lock()
	if s.version != since {
		s.mu.Unlock()
		return true
	}
	ch := s.changed
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Stats reports the live record count and the age of the last recorded event.
func (s *Store) Stats() domain.StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	live := 0
	for _, rec := range s.byID {
		if s.isLiveLocked(rec, now) {
			live++
		}
	}

	stats := domain.StoreStats{Devices: live}
	if !s.lastEventAt.IsZero() {
		at := s.lastEventAt
		age := now.Sub(at).Seconds()
		stats.LastEventAt = &at
		stats.LastEventAgeS = &age
	}
	return stats
}
