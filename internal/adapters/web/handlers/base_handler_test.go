package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lcalzada-xor/geoprobe/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/geo"
)

type memoryBase struct {
	loc *geo.Location
}

func (m *memoryBase) GetBase(ctx context.Context) (*geo.Location, error) { return m.loc, nil }

func (m *memoryBase) SetBase(ctx context.Context, loc geo.Location) error {
	m.loc = &loc
	return nil
}

func (m *memoryBase) ClearBase(ctx context.Context) error {
	m.loc = nil
	return nil
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestCoordinate(t *testing.T) {
	tests := []struct {
		in     interface{}
		want   float64
		wantOK bool
	}{
		{51.5, 51.5, true},
		{" -0.12 ", -0.12, true},
		{"north", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := coordinate(tt.in)
		assert.Equal(t, tt.wantOK, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestWriteEvent(t *testing.T) {
	at := time.Unix(1714564800, 0)

	rec := httptest.NewRecorder()
	view := domain.SummaryView{Items: []domain.ProbeSummary{}, Source: domain.SourceSensor, Error: "sensor unavailable"}
	assert.NoError(t, writeEvent(rec, domain.SummaryFrame{Summary: &view, At: at}))
	assert.Equal(t, "data: {\"items\":[],\"source\":\"sensor\",\"error\":\"sensor unavailable\"}\n\n", rec.Body.String())

	rec = httptest.NewRecorder()
	assert.NoError(t, writeEvent(rec, domain.SummaryFrame{KeepAlive: true, At: at}))
	assert.Equal(t, ": keep-alive 1714564800\n\n", rec.Body.String())
}

func TestBaseHandler_LogsOperator(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	store := &memoryBase{}
	h := NewBaseHandler(store)
	authed := middleware.AuthMiddleware(middleware.BasicAuth{User: "alice", PasswordHash: string(hash)})

	logs := captureLogs(t)
	req := httptest.NewRequest(http.MethodPost, "/api/base", strings.NewReader(`{"lat":51.5,"lon":-0.12}`))
	req.SetBasicAuth("alice", "s3cret")
	rec := httptest.NewRecorder()
	authed(http.HandlerFunc(h.HandleSet)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.loc)
	assert.Contains(t, logs.String(), `"msg":"base location updated"`)
	assert.Contains(t, logs.String(), `"operator":"alice"`)

	logs.Reset()
	rec = httptest.NewRecorder()
	h.HandleClear(rec, httptest.NewRequest(http.MethodDelete, "/api/base", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, store.loc)
	assert.Contains(t, logs.String(), `"operator":"anonymous"`)
}
