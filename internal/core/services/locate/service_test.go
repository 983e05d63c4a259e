package locate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/core/services/probes"
	"github.com/lcalzada-xor/geoprobe/internal/geo"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, name string) ([]domain.GeoHit, error) {
	args := m.Called(ctx, name)
	hits, _ := args.Get(0).([]domain.GeoHit)
	return hits, args.Error(1)
}

func (m *MockSearcher) Region() string { return "global" }

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetHits(ctx context.Context, key string) ([]domain.GeoHit, bool, error) {
	args := m.Called(ctx, key)
	hits, _ := args.Get(0).([]domain.GeoHit)
	return hits, args.Bool(1), args.Error(2)
}

func (m *MockCache) SetHits(ctx context.Context, key string, hits []domain.GeoHit, ttl time.Duration) error {
	return m.Called(ctx, key, hits, ttl).Error(0)
}

func (m *MockCache) PurgeExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockSensor struct {
	mock.Mock
}

func (m *MockSensor) RecentDevices(ctx context.Context, limit int) ([]domain.SensorDevice, error) {
	args := m.Called(ctx, limit)
	devs, _ := args.Get(0).([]domain.SensorDevice)
	return devs, args.Error(1)
}

func (m *MockSensor) DeviceNames(ctx context.Context, identifier string) ([]string, error) {
	args := m.Called(ctx, identifier)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockSensor) ProbesFromRecent(ctx context.Context, identifier string) ([]string, error) {
	args := m.Called(ctx, identifier)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

type staticBase struct {
	loc *geo.Location
	err error
}

func (b *staticBase) GetBase(context.Context) (*geo.Location, error) { return b.loc, b.err }
func (b *staticBase) SetBase(_ context.Context, loc geo.Location) error {
	b.loc = &loc
	return nil
}
func (b *staticBase) ClearBase(context.Context) error {
	b.loc = nil
	return nil
}

const mac = "AA:BB:CC:DD:EE:FF"

func newStore(names ...string) *probes.Store {
	store := probes.NewStore(0, 50)
	for _, n := range names {
		store.Record(domain.ProbeEvent{Identifier: mac, Name: n, Timestamp: 1000})
	}
	return store
}

func TestCandidates_RejectsBadInput(t *testing.T) {
	svc := NewService(newStore(), nil, new(MockSearcher), nil, nil, DefaultConfig())

	_, err := svc.Candidates(context.Background(), domain.CandidateQuery{})
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
	assert.True(t, IsCallerError(err))

	_, err = svc.Candidates(context.Background(), domain.CandidateQuery{Identifier: "not-a-mac"})
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
	assert.True(t, IsCallerError(err))
}

func TestCandidates_UnknownIdentifier(t *testing.T) {
	sensor := new(MockSensor)
	sensor.On("DeviceNames", mock.Anything, mac).Return([]string{}, nil)

	svc := NewService(newStore(), sensor, new(MockSearcher), nil, nil, DefaultConfig())
	_, err := svc.Candidates(context.Background(), domain.CandidateQuery{Identifier: "aa-bb-cc-dd-ee-ff"})
	assert.ErrorIs(t, err, domain.ErrUnknownIdentifier)
	assert.False(t, IsCallerError(err))
}

func TestCandidates_UsesLiveNamesAndCache(t *testing.T) {
	searcher := new(MockSearcher)
	cache := new(MockCache)

	cache.On("GetHits", mock.Anything, "global:Cafe").Return([]domain.GeoHit{{Lat: 40, Lon: -3}}, true, nil)
	cache.On("GetHits", mock.Anything, "global:Home").Return(nil, false, nil)
	searcher.On("Search", mock.Anything, "Home").Return([]domain.GeoHit{{Lat: 41, Lon: 2}, {Lat: 42, Lon: 2}}, nil)
	cache.On("SetHits", mock.Anything, "global:Home", mock.Anything, 24*time.Hour).Return(nil)

	cfg := DefaultConfig()
	cfg.Suppressed = []string{"xfinitywifi"}
	svc := NewService(newStore("Cafe", "", "Home", "xfinitywifi"), nil, searcher, cache, nil, cfg)

	res, err := svc.Candidates(context.Background(), domain.CandidateQuery{Identifier: mac})
	require.NoError(t, err)
	assert.Equal(t, mac, res.Identifier)
	assert.Equal(t, []string{"Cafe", "Home"}, res.Names)
	require.Len(t, res.Candidates, 3)
	assert.Empty(t, res.Diagnostics)

	// Cafe has a single hit, so it is the rarest name and ranks first.
	assert.Equal(t, "Cafe", res.Candidates[0].Name)

	searcher.AssertNumberOfCalls(t, "Search", 1)
	cache.AssertExpectations(t)
}

func TestCandidates_SensorFallback(t *testing.T) {
	sensor := new(MockSensor)
	sensor.On("DeviceNames", mock.Anything, mac).Return([]string{"Library"}, nil)
	searcher := new(MockSearcher)
	searcher.On("Search", mock.Anything, "Library").Return([]domain.GeoHit{{Lat: 1, Lon: 1}}, nil)

	svc := NewService(newStore(), sensor, searcher, nil, nil, DefaultConfig())
	res, err := svc.Candidates(context.Background(), domain.CandidateQuery{Identifier: mac})
	require.NoError(t, err)
	assert.Equal(t, []string{"Library"}, res.Names)
	assert.Len(t, res.Candidates, 1)
}

func TestCandidates_SensorFailureDegrades(t *testing.T) {
	sensor := new(MockSensor)
	sensor.On("DeviceNames", mock.Anything, mac).Return(nil, errors.New("timeout"))

	svc := NewService(newStore(), sensor, new(MockSearcher), nil, nil, DefaultConfig())
	res, err := svc.Candidates(context.Background(), domain.CandidateQuery{Identifier: mac})
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0], "timeout")
}

func TestCandidates_NameOverride(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("Search", mock.Anything, "Airport").Return([]domain.GeoHit{{Lat: 5, Lon: 5}}, nil)

	svc := NewService(newStore("Cafe"), nil, searcher, nil, nil, DefaultConfig())
	res, err := svc.Candidates(context.Background(), domain.CandidateQuery{Identifier: mac, Name: "Airport"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Airport"}, res.Names)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "Airport", res.Candidates[0].Name)

	res, err = svc.Candidates(context.Background(), domain.CandidateQuery{Name: "Airport"})
	require.NoError(t, err)
	assert.Empty(t, res.Identifier)
	assert.Len(t, res.Candidates, 1)
}

func TestCandidates_LookupFailureIsDiagnostic(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("Search", mock.Anything, "Cafe").Return(nil, domain.ErrRateLimited)
	searcher.On("Search", mock.Anything, "Home").Return([]domain.GeoHit{{Lat: 1, Lon: 1}}, nil)

	svc := NewService(newStore("Cafe", "Home"), nil, searcher, nil, nil, DefaultConfig())
	res, err := svc.Candidates(context.Background(), domain.CandidateQuery{Identifier: mac})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 1)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0], "Cafe")
}

func TestCandidates_ReferencePointAndLikelyOnly(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("Search", mock.Anything, "Cafe").Return([]domain.GeoHit{
		{Lat: 40.0, Lon: -3.0},
		{Lat: 45.0, Lon: 10.0},
	}, nil)

	cfg := DefaultConfig()
	cfg.Weights.AlphaCoprobe = 0
	cfg.LikelyThreshold = 0.3
	base := &staticBase{loc: &geo.Location{Latitude: 40.0, Longitude: -3.0}}
	svc := NewService(newStore("Cafe"), nil, searcher, nil, base, cfg)

	res, err := svc.Candidates(context.Background(), domain.CandidateQuery{Identifier: mac})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, 40.0, res.Candidates[0].Lat)
	assert.Greater(t, res.Candidates[0].Score, res.Candidates[1].Score)

	res, err = svc.Candidates(context.Background(), domain.CandidateQuery{Identifier: mac, LikelyOnly: true})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, 40.0, res.Candidates[0].Lat)
}

func TestCandidates_BaseFailureIsDiagnostic(t *testing.T) {
	searcher := new(MockSearcher)
	searcher.On("Search", mock.Anything, "Cafe").Return([]domain.GeoHit{{Lat: 1, Lon: 1}}, nil)

	svc := NewService(newStore("Cafe"), nil, searcher, nil, &staticBase{err: errors.New("locked")}, DefaultConfig())
	res, err := svc.Candidates(context.Background(), domain.CandidateQuery{Identifier: mac})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 1)
	assert.Contains(t, res.Diagnostics, "base location unavailable: locked")
}

func TestCandidates_MaxCandidates(t *testing.T) {
	hits := make([]domain.GeoHit, 10)
	for i := range hits {
		hits[i] = domain.GeoHit{Lat: float64(i), Lon: 0}
	}
	searcher := new(MockSearcher)
	searcher.On("Search", mock.Anything, "Cafe").Return(hits, nil)

	cfg := DefaultConfig()
	cfg.MaxCandidates = 4
	svc := NewService(newStore("Cafe"), nil, searcher, nil, nil, cfg)
	res, err := svc.Candidates(context.Background(), domain.CandidateQuery{Identifier: mac})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 4)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "uk:Cafe", CacheKey("uk", "Cafe"))
}
