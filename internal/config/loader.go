package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"growgent/internal/layers"
)

// ConfigError is returned by LoadConfig for every startup failure.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

type (
	envLookup  func(key string) (string, bool)
	fileReader func(name string) ([]byte, error)
)

// loaderDeps lets tests replace the environment, the filesystem and dotenv.
type loaderDeps struct {
	lookupEnv envLookup
	readFile  fileReader
	dotenv    func() error
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		readFile:  os.ReadFile,
		dotenv:    func() error { return godotenv.Load() },
	}
}

// LoadConfig reads .env (if present), the environment and the optional map
// style file, then validates the result. The process clock is pinned to UTC.
func LoadConfig() (*Config, error) {
	return loadConfigWithDeps(defaultDeps())
}

func loadConfigWithDeps(deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// godotenv never overrides variables that are already set; a missing
	// .env is normal outside local development.
	if deps.dotenv != nil {
		_ = deps.dotenv()
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "failed to process environment configuration", Err: err}
	}

	cfg.Map.Palette = layers.DefaultPalette()
	cfg.Map.Layers = layers.DefaultLayerState()
	if cfg.Map.StyleFile != "" {
		style, err := readStyleFile(deps.readFile, cfg.Map.StyleFile)
		if err != nil {
			return nil, err
		}
		style.apply(&cfg.Map, deps.lookupEnv)
	}
	cfg.Build = NewBuildInfo()

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate runs the struct tags, then the rules that span fields.
func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}
	if err := cfg.Map.Palette.Validate(); err != nil {
		return &ConfigError{Type: ErrValidation, Message: "map palette is invalid", Err: err}
	}
	if cfg.Zones.Store == ZoneStorePostgres && !cfg.Database.URL.IsSet() {
		return &ConfigError{Type: ErrMissingEnv, Message: "DATABASE_URL is required when ZONE_STORE=postgres"}
	}
	return nil
}
