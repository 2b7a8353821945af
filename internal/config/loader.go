// Configuration loading for both EpiGrid binaries. The sequence is fixed:
// force UTC, overlay a .env file if one exists, let envconfig populate the
// struct from tags, stamp build metadata, then validate. Anything wrong
// stops startup; neither server runs on a half-formed config.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError says which phase of loading failed and why, so a bad deploy
// points at the offending variable instead of a bare envconfig message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// LoadConfig reads the environment into a validated Config.
//
// Node-only requirements (NODE_ID, coordinates, collector URL) are not
// enforced here; cmd/node applies Config.ValidateNode after loading.
func LoadConfig() (*Config, error) {
	// Every wire timestamp and calendar-day bucket assumes UTC; pinning the
	// process zone removes a whole class of drift bugs.
	time.Local = time.UTC

	// A .env file is a local convenience. Real environment variables win,
	// and a missing file is not an error.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "could not map environment variables onto the config",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "config rejected by validation rules",
			Err:     err,
		}
	}

	return &cfg, nil
}
