package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
	"github.com/lcalzada-xor/geoprobe/internal/telemetry"
)

// SummaryHandler serves the probe summary and its server-sent event stream.
type SummaryHandler struct {
	Service ports.SummaryService
}

// NewSummaryHandler creates a new SummaryHandler
func NewSummaryHandler(service ports.SummaryService) *SummaryHandler {
	return &SummaryHandler{Service: service}
}

// HandleSummary returns the current summary. Upstream failures still answer 200.
func (h *SummaryHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Summary(r.Context()))
}

// HandleStream pushes a snapshot on connect and on every store change, with keep-alive
// comments in between.
func (h *SummaryHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	gauge := telemetry.StreamSubscribers.WithLabelValues("sse")
	gauge.Inc()
	defer gauge.Dec()

	err := h.Service.Stream(r.Context(), func(f domain.SummaryFrame) error {
		if err := writeEvent(w, f); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		slog.Debug("summary stream closed", "remote", r.RemoteAddr, "error", err)
	}
}

func writeEvent(w http.ResponseWriter, f domain.SummaryFrame) error {
	if f.KeepAlive || f.Summary == nil {
		_, err := fmt.Fprintf(w, ": keep-alive %d\n\n", f.At.Unix())
		return err
	}
	payload, err := json.Marshal(f.Summary)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}
