// Package config loads MoodMix settings from struct defaults, an optional
// YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/ewilliams-labs/moodmix/internal/adapters/jsonstore"
	"github.com/ewilliams-labs/moodmix/internal/adapters/lastfm"
	"github.com/ewilliams-labs/moodmix/internal/adapters/ollama"
	"github.com/ewilliams-labs/moodmix/internal/adapters/spotify"
	"github.com/ewilliams-labs/moodmix/internal/core/services"
	"github.com/ewilliams-labs/moodmix/internal/worker"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "MOODMIX_CONFIG"

// DefaultConfigPaths are searched in order when ConfigPathEnvVar is unset.
var DefaultConfigPaths = []string{
	"moodmix.yaml",
	"moodmix.yml",
}

const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Config is the full application configuration.
type Config struct {
	HTTP      HTTPConfig               `koanf:"http"`
	Log       LogConfig                `koanf:"log"`
	Store     StoreConfig              `koanf:"store"`
	Pipeline  services.PipelineParams  `koanf:"pipeline"`
	Scoring   services.ScoringParams   `koanf:"scoring"`
	Recommend services.RecommendParams `koanf:"recommend"`
	Assemble  services.AssembleParams  `koanf:"assemble"`
	Enricher  worker.EnricherConfig    `koanf:"enricher"`
	Spotify   spotify.Config           `koanf:"spotify"`
	Lastfm    lastfm.Config            `koanf:"lastfm"`
	Ollama    ollama.Config            `koanf:"ollama"`
}

type HTTPConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LogConfig selects the log level and an optional rotated log file.
type LogConfig struct {
	Level       string `koanf:"level" validate:"oneof=debug info warn error"`
	Development bool   `koanf:"development"`
	File        string `koanf:"file"`
	MaxSizeMB   int    `koanf:"max_size_mb" validate:"gte=1"`
	MaxBackups  int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays  int    `koanf:"max_age_days" validate:"gte=0"`
}

// StoreConfig picks the persistence driver for the tag cache and history.
type StoreConfig struct {
	Driver       string `koanf:"driver" validate:"oneof=json sqlite"`
	TagCachePath string `koanf:"tag_cache_path" validate:"required_if=Driver json"`
	HistoryPath  string `koanf:"history_path" validate:"required_if=Driver json"`
	SQLitePath   string `koanf:"sqlite_path" validate:"required_if=Driver sqlite"`
}

func defaultConfig() *Config {
	lfm := lastfm.DefaultConfig()
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Store: StoreConfig{
			Driver:       StoreJSON,
			TagCachePath: jsonstore.DefaultTagCacheFile,
			HistoryPath:  jsonstore.DefaultHistoryFile,
			SQLitePath:   "moodmix.db",
		},
		Pipeline:  services.DefaultPipelineParams(),
		Scoring:   services.DefaultScoringParams(),
		Recommend: services.DefaultRecommendParams(),
		Assemble:  services.DefaultAssembleParams(),
		Enricher:  worker.DefaultEnricherConfig(),
		Spotify: spotify.Config{
			RedirectURI:   "http://127.0.0.1:8888/callback",
			PlaylistLimit: 20,
			Timeout:       30 * time.Second,
			Retry:         spotify.DefaultRetryConfig(),
		},
		Lastfm: lfm,
		Ollama: ollama.Config{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1:8b",
			Timeout: 60 * time.Second,
		},
	}
}

// Load reads .env (if present), then layers defaults, the config file and
// environment variables, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints across every section.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings lists the environment variables MoodMix reads.
var envMappings = map[string]string{
	"http_addr": "http.addr",

	"log_level":       "log.level",
	"log_file":        "log.file",
	"log_development": "log.development",

	"store_driver":   "store.driver",
	"tag_cache_path": "store.tag_cache_path",
	"history_path":   "store.history_path",
	"sqlite_path":    "store.sqlite_path",

	"tag_sample_size":  "pipeline.tag_sample_size",
	"top_artist_limit": "pipeline.top_artist_limit",

	"library_target": "assemble.library_target",
	"recs_target":    "assemble.recs_target",
	"artist_cap":     "assemble.artist_cap",
	"album_cap":      "assemble.album_cap",

	"search_limit":   "recommend.search_limit",
	"search_target":  "recommend.target",
	"min_popularity": "recommend.min_popularity",
	"spotify_market": "recommend.market",

	"enrich_workers": "enricher.workers",
	"enrich_delay":   "enricher.delay",
	"enrich_timeout": "enricher.timeout",

	"spotify_client_id":     "spotify.client_id",
	"spotify_client_secret": "spotify.client_secret",
	"spotify_refresh_token": "spotify.refresh_token",
	"spotify_redirect_uri":  "spotify.redirect_uri",

	"lastfm_api_key": "lastfm.api_key",

	"ollama_host":  "ollama.base_url",
	"ollama_model": "ollama.model",
}

// envTransformFunc maps known variables to config keys and drops the rest.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
