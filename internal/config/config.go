// Package config defines the configuration of the Growgent map service.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Map Style File -> Defaults (Lowest)
//
// The map style file only carries map presentation settings (palette, tiles,
// layer defaults, center). Any missing required value or invalid format fails
// startup.
package config

import (
	"time"

	"growgent/internal/layers"
	"growgent/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Zone store backends.
const (
	ZoneStoreMemory   = "memory"
	ZoneStorePostgres = "postgres"
)

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"growgent-map"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Backend       BackendConfig
	Zones         ZoneConfig
	Map           MapConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo `ignored:"true"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	// RateLimit is the number of requests one client address may make per
	// RateLimitWindow. Zero disables rate limiting.
	RateLimit       int           `envconfig:"RATE_LIMIT" default:"600" validate:"gte=0"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m" validate:"gt=0"`
}

// DatabaseConfig holds database connection and pool tuning parameters. The URL
// is only required when the postgres zone store is selected.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-west-2"`

	// ZoneEventsQueue receives zone change events. Empty disables publishing.
	ZoneEventsQueue string `envconfig:"SQS_ZONE_EVENTS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// BackendConfig points at the Growgent backend API.
type BackendConfig struct {
	URL           string        `envconfig:"BACKEND_URL" default:"http://localhost:8000" validate:"required,url"`
	Timeout       time.Duration `envconfig:"BACKEND_TIMEOUT" default:"30s" validate:"gt=0"`
	RetryAttempts int           `envconfig:"BACKEND_RETRY_ATTEMPTS" default:"3" validate:"gte=1,lte=10"`
	RetryBackoff  time.Duration `envconfig:"BACKEND_RETRY_BACKOFF" default:"1s"`
	UserAgent     string        `envconfig:"BACKEND_USER_AGENT" default:"growgent-map/1.0"`
	// FarmID scopes the map to one farm. Empty shows every field.
	FarmID string `envconfig:"FARM_ID"`
}

// ZoneConfig selects the zone repository.
type ZoneConfig struct {
	Store string `envconfig:"ZONE_STORE" default:"memory" validate:"oneof=memory postgres"`
}

// MapConfig holds map presentation settings. Palette and Layers are never read
// from the environment; they come from the style file or the built-in defaults.
type MapConfig struct {
	StyleFile      string  `envconfig:"MAP_STYLE_FILE"`
	StyleURL       string  `envconfig:"MAP_STYLE_URL" default:"mapbox://styles/mapbox/outdoors-v12" validate:"required"`
	CenterLng      float64 `envconfig:"MAP_CENTER_LNG" default:"-121.4944" validate:"gte=-180,lte=180"`
	CenterLat      float64 `envconfig:"MAP_CENTER_LAT" default:"38.5816" validate:"gte=-90,lte=90"`
	Zoom           float64 `envconfig:"MAP_ZOOM" default:"13" validate:"gte=0,lte=22"`
	SatelliteTiles string  `envconfig:"MAP_SATELLITE_TILES"`
	NDVITiles      string  `envconfig:"MAP_NDVI_TILES"`

	Palette layers.Palette    `ignored:"true"`
	Layers  layers.LayerState `ignored:"true"`
}

// Center returns the configured map center.
func (m MapConfig) Center() types.Position {
	return types.Position{m.CenterLng, m.CenterLat}
}

// Tiles returns the raster tile templates.
func (m MapConfig) Tiles() layers.TileSources {
	return layers.TileSources{Satellite: m.SatelliteTiles, NDVI: m.NDVITiles}
}

// SecurityConfig holds browser-facing security settings.
type SecurityConfig struct {
	// CorsAllowedOrigins applies to both CORS and the WebSocket origin check.
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"false"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Growgent/Map"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrStyleFile indicates the map style file could not be read or decoded.
	ErrStyleFile ConfigErrorType = "STYLE_FILE_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
