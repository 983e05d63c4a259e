package summary

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/core/services/probes"
)

// MockSensorClient
type MockSensorClient struct {
	mock.Mock
}

func (m *MockSensorClient) RecentDevices(ctx context.Context, limit int) ([]domain.SensorDevice, error) {
	args := m.Called(ctx, limit)
	devs, _ := args.Get(0).([]domain.SensorDevice)
	return devs, args.Error(1)
}

func (m *MockSensorClient) DeviceNames(ctx context.Context, identifier string) ([]string, error) {
	args := m.Called(ctx, identifier)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *MockSensorClient) ProbesFromRecent(ctx context.Context, identifier string) ([]string, error) {
	args := m.Called(ctx, identifier)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func TestSummary_PrefersLiveStore(t *testing.T) {
	store := probes.NewStore(0, 10)
	store.Record(domain.ProbeEvent{Identifier: "aa:bb:cc:dd:ee:ff", Name: "CoffeeShop", Timestamp: 1000})
	store.Record(domain.ProbeEvent{Identifier: "aa:bb:cc:dd:ee:ff", Name: "", Timestamp: 1050})
	store.Record(domain.ProbeEvent{Identifier: "11:22:33:44:55:66", Name: "xfinitywifi", Timestamp: 900})

	sensor := new(MockSensorClient)
	svc := NewService(store, sensor, Config{Suppressed: []string{"xfinitywifi"}})

	view := svc.Summary(context.Background())
	assert.Equal(t, domain.SourceLive, view.Source)
	require.Len(t, view.Items, 2)
	assert.Equal(t, domain.ProbeSummary{
		Identifier: "AA:BB:CC:DD:EE:FF",
		LastSeen:   1050,
		Names:      []string{"CoffeeShop"},
		NameCount:  2,
	}, view.Items[0])
	assert.Empty(t, view.Items[1].Names)
	assert.Equal(t, 1, view.Items[1].NameCount)

	sensor.AssertNotCalled(t, "RecentDevices", mock.Anything, mock.Anything)
}

func TestSummary_LimitApplies(t *testing.T) {
	store := probes.NewStore(0, 10)
	for i := 0; i < 5; i++ {
		store.Record(domain.ProbeEvent{Identifier: string(rune('A'+i)) + "0:00:00:00:00:00", Name: "n", Timestamp: int64(100 + i)})
	}

	svc := NewService(store, nil, Config{Limit: 3})
	view := svc.Summary(context.Background())
	require.Len(t, view.Items, 3)
	assert.Equal(t, int64(104), view.Items[0].LastSeen)
}

func TestSummary_FallsBackToSensor(t *testing.T) {
	store := probes.NewStore(0, 10)
	sensor := new(MockSensorClient)
	sensor.On("RecentDevices", mock.Anything, 50).Return([]domain.SensorDevice{
		{Identifier: "AA:00:00:00:00:01", LastSeen: 100, Names: []string{"Home", "", "Guest"}, NameCount: 3},
		{Identifier: "AA:00:00:00:00:02", LastSeen: 300, Names: []string{"Work"}, NameCount: 0},
		{Identifier: "AA:00:00:00:00:03", LastSeen: 500, Names: nil, NameCount: 0},
	}, nil)

	svc := NewService(store, sensor, Config{Suppressed: []string{"Guest"}, RecentLimit: 50})
	view := svc.Summary(context.Background())

	assert.Equal(t, domain.SourceSensor, view.Source)
	assert.Empty(t, view.Error)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "AA:00:00:00:00:02", view.Items[0].Identifier)
	assert.Equal(t, 1, view.Items[0].NameCount)
	assert.Equal(t, []string{"Home"}, view.Items[1].Names)
	assert.Equal(t, 3, view.Items[1].NameCount)
	sensor.AssertExpectations(t)
}

func TestSummary_SensorFailureIsDiagnostic(t *testing.T) {
	store := probes.NewStore(0, 10)
	sensor := new(MockSensorClient)
	sensor.On("RecentDevices", mock.Anything, DefaultRecentLimit).Return(nil, errors.New("connection refused"))

	view := NewService(store, sensor, Config{}).Summary(context.Background())
	assert.NotNil(t, view.Items)
	assert.Empty(t, view.Items)
	assert.Contains(t, view.Error, "connection refused")
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []domain.SummaryFrame
}

func (r *frameRecorder) emit(f domain.SummaryFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

func (r *frameRecorder) snapshot() []domain.SummaryFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.SummaryFrame(nil), r.frames...)
}

func TestStream_InitialChangeAndKeepAlive(t *testing.T) {
	store := probes.NewStore(0, 10)
	svc := NewService(store, nil, Config{KeepAlive: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	rec := &frameRecorder{}
	done := make(chan error, 1)
	go func() { done <- svc.Stream(ctx, rec.emit) }()

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 1 }, time.Second, 5*time.Millisecond)
	first := rec.snapshot()[0]
	require.NotNil(t, first.Summary)
	assert.Empty(t, first.Summary.Items)

	store.Record(domain.ProbeEvent{Identifier: "AA:BB:CC:DD:EE:FF", Name: "Cafe", Timestamp: 10})
	require.Eventually(t, func() bool {
		for _, f := range rec.snapshot() {
			if f.Summary != nil && len(f.Summary.Items) == 1 {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		for _, f := range rec.snapshot() {
			if f.KeepAlive {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after cancellation")
	}
}

func TestStream_EmitErrorStops(t *testing.T) {
	store := probes.NewStore(0, 10)
	svc := NewService(store, nil, Config{})

	boom := errors.New("client gone")
	err := svc.Stream(context.Background(), func(domain.SummaryFrame) error { return boom })
	assert.ErrorIs(t, err, boom)
}
