package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/lcalzada-xor/geoprobe/internal/adapters/web/middleware"
	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
	"github.com/lcalzada-xor/geoprobe/internal/geo"
)

// BaseHandler manages the reference location used to weight candidates by proximity.
type BaseHandler struct {
	Store ports.BaseLocationStore
}

// NewBaseHandler creates a new BaseHandler
func NewBaseHandler(store ports.BaseLocationStore) *BaseHandler {
	return &BaseHandler{Store: store}
}

type baseResponse struct {
	OK   bool          `json:"ok,omitempty"`
	Base *geo.Location `json:"base"`
}

// HandleGet returns the stored reference point or null.
func (h *BaseHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	loc, err := h.Store.GetBase(r.Context())
	if err != nil {
		slog.Error("failed to read base location", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read base location")
		return
	}
	writeJSON(w, http.StatusOK, baseResponse{Base: loc})
}

// HandleSet stores a new reference point from {"lat": .., "lon": ..}.
// Numeric strings are accepted.
func (h *BaseHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		body = nil
	}
	lat, latOK := coordinate(body["lat"])
	lon, lonOK := coordinate(body["lon"])
	if !latOK || !lonOK {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidCoordinates.Error())
		return
	}

	loc := geo.Location{Latitude: lat, Longitude: lon}
	if err := loc.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrInvalidCoordinates.Error())
		return
	}
	if err := h.Store.SetBase(r.Context(), loc); err != nil {
		slog.Error("failed to store base location", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store base location")
		return
	}
	slog.Info("base location updated", "lat", lat, "lon", lon, "operator", operator(r))
	writeJSON(w, http.StatusOK, baseResponse{OK: true, Base: &loc})
}

// operator names the authenticated caller, or "anonymous" when auth is off.
func operator(r *http.Request) string {
	if user, ok := middleware.UserFromContext(r.Context()); ok && user != "" {
		return user
	}
	return "anonymous"
}

// HandleClear removes the reference point.
func (h *BaseHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.ClearBase(r.Context()); err != nil {
		slog.Error("failed to clear base location", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear base location")
		return
	}
	slog.Info("base location cleared", "operator", operator(r))
	writeJSON(w, http.StatusOK, baseResponse{OK: true})
}

func coordinate(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
