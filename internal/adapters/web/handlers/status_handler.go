package handlers

import (
	"net/http"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
)

// StatusHandler reports the event feed connection and probe store health.
type StatusHandler struct {
	Feed  ports.FeedMonitor
	Store ports.ProbeStore
}

// NewStatusHandler creates a new StatusHandler. feed may be nil when the feed is disabled.
func NewStatusHandler(feed ports.FeedMonitor, store ports.ProbeStore) *StatusHandler {
	return &StatusHandler{Feed: feed, Store: store}
}

type statusResponse struct {
	Feed  domain.FeedStatus `json:"feed"`
	Store domain.StoreStats `json:"store"`
}

// HandleStatus answers GET /api/status
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Feed:  domain.FeedStatus{State: domain.FeedDisconnected},
		Store: h.Store.Stats(),
	}
	if h.Feed != nil {
		resp.Feed = h.Feed.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}
