package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GEOPROBE_"

// ConfigPathEnvVar can point at the YAML file when -config is not given.
const ConfigPathEnvVar = "GEOPROBE_CONFIG"

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"config.yml",
	"config.yaml",
}

var sections = map[string]bool{
	"server":  true,
	"kismet":  true,
	"wigle":   true,
	"probes":  true,
	"scoring": true,
	"base":    true,
}

// sliceConfigPaths are accepted as comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"probes.suppressed",
	"server.allowed_origins",
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":5699",
			StaticDir:       "static",
			CandidatesRPS:   2,
			CandidatesBurst: 5,
			AllowedOrigins:  []string{},
		},
		Kismet: KismetConfig{
			BaseURL:        "http://localhost:2501",
			EventCategory:  "DOT11_PROBED_SSID",
			PingInterval:   20 * time.Second,
			PingTimeout:    10 * time.Second,
			ConnectTimeout: 3 * time.Second,
			RequestTimeout: 10 * time.Second,
			RecentLimit:    200,
		},
		Wigle: WigleConfig{
			BaseURL:           "https://api.wigle.net/api/v2",
			PageCap:           400,
			TTL:               24 * time.Hour,
			RequestTimeout:    15 * time.Second,
			RateLimitDelay:    2 * time.Second,
			RateLimitRetries:  5,
			RequestsPerSecond: 1,
		},
		Probes: ProbesConfig{
			TTL:               24 * time.Hour,
			MaxNamesPerDevice: 200,
			Suppressed:        []string{},
			StreamKeepAlive:   25 * time.Second,
			SummaryLimit:      200,
		},
		Scoring: ScoringConfig{
			AlphaCoprobe:    0.7,
			SigmaKm:         10,
			CoprobeRadiusM:  300,
			RarityWeight:    1,
			ProximityWeight: 1,
			LikelyThreshold: 0.5,
			LikelyLimit:     50,
			MaxCandidates:   500,
		},
		MockAddr: "127.0.0.1:2501",
	}
}

func loadLayers(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional YAML file
	path, err := findConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.ConfigFile = path
	return cfg, nil
}

// findConfigFile resolves the YAML path. An explicit path must exist; defaults are optional.
func findConfigFile(explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv(ConfigPathEnvVar)
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return explicit, nil
	}

	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// envTransformFunc maps GEOPROBE_KISMET_BASE_URL to kismet.base_url and
// GEOPROBE_DB_PATH to db_path. Returning "" skips the variable.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "" || key == "config" {
		return ""
	}

	section, rest, found := strings.Cut(key, "_")
	if !found || !sections[section] {
		return key
	}
	if section == "wigle" && strings.HasPrefix(rest, "bbox_") {
		return "wigle.bbox." + strings.TrimPrefix(rest, "bbox_")
	}
	return section + "." + rest
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
