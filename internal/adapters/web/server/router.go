package server

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcalzada-xor/geoprobe/internal/adapters/web/middleware"
)

func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	// Scrapers do not carry operator credentials.
	r.Handle("/metrics", promhttp.Handler())

	app := r.NewRoute().Subrouter()
	app.Use(middleware.AuthMiddleware(s.Auth))

	app.HandleFunc("/api/summary", s.SummaryHandler.HandleSummary).Methods(http.MethodGet)
	app.HandleFunc("/api/stream/summary", s.SummaryHandler.HandleStream).Methods(http.MethodGet)
	app.HandleFunc("/ws/summary", s.WSManager.HandleWebSocket).Methods(http.MethodGet)

	// Each request may fan out to the geolocation database.
	limit := middleware.RateLimitMiddleware(s.CandidatesLimiter)
	app.Handle("/api/candidates", limit(http.HandlerFunc(s.CandidatesHandler.HandleCandidates))).Methods(http.MethodGet)

	app.HandleFunc("/api/base", s.BaseHandler.HandleGet).Methods(http.MethodGet)
	app.HandleFunc("/api/base", s.BaseHandler.HandleSet).Methods(http.MethodPost)
	app.HandleFunc("/api/base", s.BaseHandler.HandleClear).Methods(http.MethodDelete)

	app.HandleFunc("/api/status", s.StatusHandler.HandleStatus).Methods(http.MethodGet)
	app.HandleFunc("/api/debug/probes", s.DebugHandler.HandleProbes).Methods(http.MethodGet)
	app.HandleFunc("/api/debug/cache", s.DebugHandler.HandleCache).Methods(http.MethodGet)

	if s.StaticDir != "" {
		if info, err := os.Stat(s.StaticDir); err == nil && info.IsDir() {
			app.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))
		}
	}

	return r
}
