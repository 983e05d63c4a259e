package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
)

// DebugCacheLimit caps the records returned by the cache peek.
const DebugCacheLimit = 50

// DebugHandler exposes raw views of the probe store and the sensor for troubleshooting.
type DebugHandler struct {
	Store  ports.ProbeStore
	Sensor ports.SensorClient
}

// NewDebugHandler creates a new DebugHandler. sensor may be nil.
func NewDebugHandler(store ports.ProbeStore, sensor ports.SensorClient) *DebugHandler {
	return &DebugHandler{Store: store, Sensor: sensor}
}

type debugProbesResponse struct {
	Identifier string   `json:"mac"`
	FromRecent []string `json:"from_recent,omitempty"`
	FromCache  []string `json:"from_cache"`
	Error      string   `json:"error,omitempty"`
}

// HandleProbes compares the names the sensor reports for a client with the live store's.
// Sensor failures are annotated and still answer 200.
func (h *DebugHandler) HandleProbes(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("mac"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "Provide ?mac=<MAC>")
		return
	}

	resp := debugProbesResponse{
		Identifier: id,
		FromCache:  h.Store.NamesFor(id),
	}
	if h.Sensor == nil {
		resp.Error = "sensor disabled"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	recent, err := h.Sensor.ProbesFromRecent(r.Context(), id)
	if err != nil {
		resp.Error = describeUpstream(err)
	} else {
		if recent == nil {
			recent = []string{}
		}
		resp.FromRecent = recent
	}
	writeJSON(w, http.StatusOK, resp)
}

type debugCacheResponse struct {
	Count int                   `json:"count"`
	Items []domain.ProbeSummary `json:"items"`
}

// HandleCache peeks at the first live records of the probe store, suppressed names included.
func (h *DebugHandler) HandleCache(w http.ResponseWriter, r *http.Request) {
	items := h.Store.Snapshot(nil)
	total := len(items)
	if len(items) > DebugCacheLimit {
		items = items[:DebugCacheLimit]
	}
	writeJSON(w, http.StatusOK, debugCacheResponse{Count: total, Items: items})
}

func describeUpstream(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "sensor timeout"
	case errors.Is(err, domain.ErrSensorUnavailable):
		return fmt.Sprintf("sensor request failed: %v", err)
	default:
		return fmt.Sprintf("unexpected: %v", err)
	}
}
