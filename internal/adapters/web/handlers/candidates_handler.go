package handlers

import (
	"errors"
	"net/http"

	"github.com/lcalzada-xor/geoprobe/internal/core/domain"
	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
	"github.com/lcalzada-xor/geoprobe/internal/core/services/locate"
)

// CandidatesHandler ranks likely locations for a client or a single network name.
type CandidatesHandler struct {
	Service ports.LocateService
}

// NewCandidatesHandler creates a new CandidatesHandler
func NewCandidatesHandler(service ports.LocateService) *CandidatesHandler {
	return &CandidatesHandler{Service: service}
}

// HandleCandidates answers GET /api/candidates?mac=&ssid=&likely_only=1
func (h *CandidatesHandler) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := domain.CandidateQuery{
		Identifier: q.Get("mac"),
		Name:       q.Get("ssid"),
		LikelyOnly: q.Get("likely_only") == "1",
	}

	result, err := h.Service.Candidates(r.Context(), query)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case locate.IsCallerError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnknownIdentifier):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
