package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig  `koanf:"server"`
	Kismet   KismetConfig  `koanf:"kismet"`
	Wigle    WigleConfig   `koanf:"wigle"`
	Probes   ProbesConfig  `koanf:"probes"`
	Scoring  ScoringConfig `koanf:"scoring"`
	Base     BaseConfig    `koanf:"base"`
	DBPath   string        `koanf:"db_path"`
	MockMode bool          `koanf:"mock_mode"`
	MockAddr string        `koanf:"mock_addr"`

	// ConfigFile is the YAML file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr             string  `koanf:"addr"`
	StaticDir        string  `koanf:"static_dir"`
	Debug            bool    `koanf:"debug"`
	AuthUser         string  `koanf:"auth_user"`
	AuthPasswordHash string  `koanf:"auth_password_hash"`
	CandidatesRPS    float64 `koanf:"candidates_rps"`
	CandidatesBurst  int     `koanf:"candidates_burst"`

	// AllowedOrigins may open the websocket stream in addition to same-host pages.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// KismetConfig configures the sensor connection.
type KismetConfig struct {
	BaseURL        string        `koanf:"base_url"`
	APIToken       string        `koanf:"api_token"`
	EventCategory  string        `koanf:"event_category"`
	PingInterval   time.Duration `koanf:"ping_interval"`
	PingTimeout    time.Duration `koanf:"ping_timeout"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	RecentLimit    int           `koanf:"recent_limit"`
	Disabled       bool          `koanf:"disabled"`
}

// WigleConfig configures the geolocation database client.
type WigleConfig struct {
	APIName           string        `koanf:"api_name"`
	APIToken          string        `koanf:"api_token"`
	BaseURL           string        `koanf:"base_url"`
	Region            string        `koanf:"region"`
	PageCap           int           `koanf:"page_cap"`
	TTL               time.Duration `koanf:"ttl"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	RateLimitDelay    time.Duration `koanf:"rate_limit_delay"`
	RateLimitRetries  int           `koanf:"rate_limit_retries"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	BBox              BBoxConfig    `koanf:"bbox"`
}

// BBoxConfig is an optional search rectangle. All zero means unset.
type BBoxConfig struct {
	Lat1 float64 `koanf:"lat1"`
	Lat2 float64 `koanf:"lat2"`
	Lon1 float64 `koanf:"lon1"`
	Lon2 float64 `koanf:"lon2"`
}

// IsSet reports whether any corner is configured.
func (b BBoxConfig) IsSet() bool {
	return b.Lat1 != 0 || b.Lat2 != 0 || b.Lon1 != 0 || b.Lon2 != 0
}

// ProbesConfig configures the probe store and the summary facade.
type ProbesConfig struct {
	TTL               time.Duration `koanf:"ttl"`
	MaxNamesPerDevice int           `koanf:"max_names_per_device"`
	Suppressed        []string      `koanf:"suppressed"`
	StreamKeepAlive   time.Duration `koanf:"stream_keepalive"`
	SummaryLimit      int           `koanf:"summary_limit"`
}

// ScoringConfig tunes candidate ranking and presentation.
type ScoringConfig struct {
	AlphaCoprobe    float64 `koanf:"alpha_coprobe"`
	SigmaKm         float64 `koanf:"sigma_km"`
	CoprobeRadiusM  float64 `koanf:"coprobe_radius_m"`
	RarityWeight    float64 `koanf:"rarity_weight"`
	ProximityWeight float64 `koanf:"proximity_weight"`
	LikelyThreshold float64 `koanf:"likely_threshold"`
	LikelyLimit     int     `koanf:"likely_limit"`
	MaxCandidates   int     `koanf:"max_candidates"`
}

// BaseConfig seeds the reference point on first start.
type BaseConfig struct {
	Enabled bool    `koanf:"enabled"`
	Lat     float64 `koanf:"lat"`
	Lon     float64 `koanf:"lon"`
}

// Load layers defaults, the YAML file, GEOPROBE_* environment variables and
// command line flags, in increasing precedence.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("geoprobe", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to YAML config file")
	addr := fs.String("addr", "", "HTTP server address")
	dbPath := fs.String("db", "", "Path to SQLite database")
	mockMode := fs.Bool("mock", false, "Run against an in-process simulated sensor")
	debug := fs.Bool("debug", false, "Enable verbose debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := loadLayers(*configPath)
	if err != nil {
		return nil, err
	}

	// Command Line Flags (Override file and env)
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = *addr
		case "db":
			cfg.DBPath = *dbPath
		case "mock":
			cfg.MockMode = *mockMode
		case "debug":
			cfg.Server.Debug = *debug
		}
	})

	if cfg.DBPath == "" {
		cfg.DBPath = getDefaultDBPath()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.AuthPasswordHash != "" && c.Server.AuthUser == "" {
		errs = append(errs, errors.New("server.auth_user is required when a password hash is set"))
	}
	if !c.Kismet.Disabled && !c.MockMode && c.Kismet.BaseURL == "" {
		errs = append(errs, errors.New("kismet.base_url is required"))
	}
	if c.Probes.TTL <= 0 {
		errs = append(errs, errors.New("probes.ttl must be positive"))
	}
	if c.Probes.MaxNamesPerDevice <= 0 {
		errs = append(errs, errors.New("probes.max_names_per_device must be positive"))
	}
	if c.Probes.StreamKeepAlive <= 0 {
		errs = append(errs, errors.New("probes.stream_keepalive must be positive"))
	}
	if c.Probes.SummaryLimit <= 0 {
		errs = append(errs, errors.New("probes.summary_limit must be positive"))
	}
	if c.Wigle.TTL <= 0 {
		errs = append(errs, errors.New("wigle.ttl must be positive"))
	}
	if c.Wigle.PageCap <= 0 {
		errs = append(errs, errors.New("wigle.page_cap must be positive"))
	}
	if c.Wigle.RateLimitRetries < 0 {
		errs = append(errs, errors.New("wigle.rate_limit_retries must not be negative"))
	}
	if a := c.Scoring.AlphaCoprobe; a < 0 || a > 1 {
		errs = append(errs, fmt.Errorf("scoring.alpha_coprobe %v must be within [0,1]", a))
	}
	if c.Scoring.MaxCandidates <= 0 || c.Scoring.LikelyLimit <= 0 {
		errs = append(errs, errors.New("scoring limits must be positive"))
	}
	if c.Base.Enabled && !validCoord(c.Base.Lat, 90) {
		errs = append(errs, fmt.Errorf("base.lat %v out of range", c.Base.Lat))
	}
	if c.Base.Enabled && !validCoord(c.Base.Lon, 180) {
		errs = append(errs, fmt.Errorf("base.lon %v out of range", c.Base.Lon))
	}
	if b := c.Wigle.BBox; b.IsSet() {
		if !validCoord(b.Lat1, 90) || !validCoord(b.Lat2, 90) || !validCoord(b.Lon1, 180) || !validCoord(b.Lon2, 180) {
			errs = append(errs, errors.New("wigle.bbox coordinates out of range"))
		}
	}

	return errors.Join(errs...)
}

func validCoord(v, limit float64) bool {
	return !math.IsNaN(v) && v >= -limit && v <= limit
}

// getDefaultDBPath returns the default database path in user's home directory.
// Creates the directory if it doesn't exist.
func getDefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("could not get user home directory, using current dir", "error", err)
		return "geoprobe.db"
	}

	dir := filepath.Join(home, ".geoprobe")
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("could not create data directory, using current dir", "error", err)
		return "geoprobe.db"
	}
	return filepath.Join(dir, "geoprobe.db")
}
