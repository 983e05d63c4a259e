package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/lcalzada-xor/geoprobe/internal/adapters/kismet"
	"github.com/lcalzada-xor/geoprobe/internal/adapters/storage"
	"github.com/lcalzada-xor/geoprobe/internal/adapters/web/middleware"
	webserver "github.com/lcalzada-xor/geoprobe/internal/adapters/web/server"
	"github.com/lcalzada-xor/geoprobe/internal/adapters/wigle"
	"github.com/lcalzada-xor/geoprobe/internal/config"
	"github.com/lcalzada-xor/geoprobe/internal/core/ports"
	"github.com/lcalzada-xor/geoprobe/internal/core/services/locate"
	"github.com/lcalzada-xor/geoprobe/internal/core/services/probes"
	"github.com/lcalzada-xor/geoprobe/internal/core/services/scoring"
	"github.com/lcalzada-xor/geoprobe/internal/core/services/summary"
	"github.com/lcalzada-xor/geoprobe/internal/geo"
	"github.com/lcalzada-xor/geoprobe/internal/mock"
	"github.com/lcalzada-xor/geoprobe/internal/telemetry"
)

// Mock sensor defaults.
const (
	MockStations     = 40
	MockEmitInterval = 750 * time.Millisecond
)

// Application holds the core components of the application.
// It acts as the Facade for the entire system, orchestrating services and infrastructure.
type Application struct {
	Config *config.Config

	Store      *probes.Store
	Storage    *storage.SQLiteAdapter
	Sensor     *kismet.Client
	Streamer   *kismet.Streamer
	Geo        *wigle.Client
	Summary    *summary.Service
	Locate     *locate.Service
	WebServer  *webserver.Server
	Janitor    *CacheJanitor
	MockSensor *mock.Sensor

	supervisor *suture.Supervisor
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}
	if err := app.bootstrap(); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	cfg := app.Config

	// 1. Foundation & Infrastructure
	telemetry.InitMetrics()

	store, err := app.initStorage()
	if err != nil {
		return err
	}
	app.Storage = store
	app.seedBase(context.Background())

	// 2. Sensor collaborators
	if cfg.MockMode {
		app.MockSensor = mock.NewSensor(cfg.MockAddr, MockStations, MockEmitInterval)
		cfg.Kismet.BaseURL = app.MockSensor.BaseURL()
		cfg.Kismet.APIToken = ""
		slog.Info("mock mode active", "sensor", cfg.Kismet.BaseURL)
	}

	app.Store = probes.NewStore(cfg.Probes.TTL, cfg.Probes.MaxNamesPerDevice)

	var sensor ports.SensorClient
	var feed ports.FeedMonitor
	if !cfg.Kismet.Disabled {
		app.Sensor = kismet.NewClient(kismet.ClientConfig{
			BaseURL:        cfg.Kismet.BaseURL,
			APIToken:       cfg.Kismet.APIToken,
			ConnectTimeout: cfg.Kismet.ConnectTimeout,
			RequestTimeout: cfg.Kismet.RequestTimeout,
		})
		sensor = app.Sensor

		streamer, err := kismet.NewStreamer(kismet.StreamerConfig{
			BaseURL:      cfg.Kismet.BaseURL,
			APIToken:     cfg.Kismet.APIToken,
			Category:     cfg.Kismet.EventCategory,
			PingInterval: cfg.Kismet.PingInterval,
			PingTimeout:  cfg.Kismet.PingTimeout,
		}, app.Store)
		if err != nil {
			return fmt.Errorf("event feed setup failed: %w", err)
		}
		app.Streamer = streamer
		feed = streamer
	} else {
		slog.Warn("sensor disabled, summary and locate use the probe store only")
	}

	app.Geo = wigle.NewClient(wigleConfig(cfg.Wigle))

	// 3. Domain Services
	app.Summary = summary.NewService(app.Store, sensor, summary.Config{
		Suppressed:  cfg.Probes.Suppressed,
		Limit:       cfg.Probes.SummaryLimit,
		KeepAlive:   cfg.Probes.StreamKeepAlive,
		RecentLimit: cfg.Kismet.RecentLimit,
	})
	app.Locate = locate.NewService(app.Store, sensor, app.Geo, app.Storage, app.Storage, locate.Config{
		Suppressed: cfg.Probes.Suppressed,
		CacheTTL:   cfg.Wigle.TTL,
		Weights: scoring.Weights{
			AlphaCoprobe:    cfg.Scoring.AlphaCoprobe,
			SigmaKm:         cfg.Scoring.SigmaKm,
			CoprobeRadiusM:  cfg.Scoring.CoprobeRadiusM,
			RarityWeight:    cfg.Scoring.RarityWeight,
			ProximityWeight: cfg.Scoring.ProximityWeight,
		},
		LikelyThreshold: cfg.Scoring.LikelyThreshold,
		LikelyLimit:     cfg.Scoring.LikelyLimit,
		MaxCandidates:   cfg.Scoring.MaxCandidates,
	})

	// 4. Servers & background loops
	app.WebServer = webserver.NewServer(webserver.Config{
		Addr:            cfg.Server.Addr,
		StaticDir:       cfg.Server.StaticDir,
		Auth:            middleware.BasicAuth{User: cfg.Server.AuthUser, PasswordHash: cfg.Server.AuthPasswordHash},
		CandidatesRPS:   cfg.Server.CandidatesRPS,
		CandidatesBurst: cfg.Server.CandidatesBurst,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}, webserver.Deps{
		Summary: app.Summary,
		Locate:  app.Locate,
		Base:    app.Storage,
		Store:   app.Store,
		Sensor:  sensor,
		Feed:    feed,
	})
	app.Janitor = NewCacheJanitor(app.Storage, DefaultJanitorInterval)

	app.initSupervisor()
	return nil
}

func (app *Application) initStorage() (*storage.SQLiteAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init cache storage: %w", err)
	}
	return store, nil
}

// seedBase stores the configured reference point unless one is already persisted.
func (app *Application) seedBase(ctx context.Context) {
	b := app.Config.Base
	if !b.Enabled {
		return
	}
	current, err := app.Storage.GetBase(ctx)
	if err != nil {
		slog.Warn("could not read base location", "error", err)
		return
	}
	if current != nil {
		return
	}
	if err := app.Storage.SetBase(ctx, geo.Location{Latitude: b.Lat, Longitude: b.Lon}); err != nil {
		slog.Warn("could not seed base location", "error", err)
		return
	}
	slog.Info("base location seeded from config", "lat", b.Lat, "lon", b.Lon)
}

func wigleConfig(c config.WigleConfig) wigle.Config {
	wc := wigle.Config{
		APIName:           c.APIName,
		APIToken:          c.APIToken,
		BaseURL:           c.BaseURL,
		Region:            c.Region,
		PageCap:           c.PageCap,
		RequestTimeout:    c.RequestTimeout,
		RateLimitDelay:    c.RateLimitDelay,
		RateLimitRetries:  c.RateLimitRetries,
		RequestsPerSecond: c.RequestsPerSecond,
	}
	if c.BBox.IsSet() {
		wc.BBox = &wigle.BBox{Lat1: c.BBox.Lat1, Lat2: c.BBox.Lat2, Lon1: c.BBox.Lon1, Lon2: c.BBox.Lon2}
	}
	return wc
}

func (app *Application) initSupervisor() {
	handler := &sutureslog.Handler{Logger: slog.Default()}
	app.supervisor = suture.New("geoprobe", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})

	if app.MockSensor != nil {
		app.supervisor.Add(app.MockSensor)
	}
	if app.Streamer != nil {
		app.supervisor.Add(app.Streamer)
	}
	app.supervisor.Add(app.Janitor)
	app.supervisor.Add(app.WebServer)
}

// Run starts the supervised services and blocks until ctx is cancelled or the tree gives up.
func (app *Application) Run(ctx context.Context) error {
	slog.Info("starting geoprobe",
		"addr", app.Config.Server.Addr,
		"sensor", app.Config.Kismet.BaseURL,
		"geo_region", app.Geo.Region(),
		"mock", app.Config.MockMode)

	err := app.supervisor.Serve(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	if report, rerr := app.supervisor.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			slog.Warn("service did not stop in time", "service", svc.Name)
		}
	}

	if cerr := app.cleanup(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (app *Application) cleanup() error {
	slog.Info("cleaning up resources")
	if app.Storage == nil {
		return nil
	}
	if err := app.Storage.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
