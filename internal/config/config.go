// Package config defines the global configuration structure for the EpiGrid
// services. Configuration is loaded once at process startup and is immutable
// thereafter. It follows 12-Factor App principles by strictly separating
// code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Struct Defaults (Lowest)
//
// Any invalid value causes the process to exit immediately on startup
// (fail fast). Both binaries share this struct: the aggregator ignores the
// node-only section, and cmd/node enforces its extra requirements through
// ValidateNode.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration struct shared by the aggregator and
// node binaries. It is populated once during process initialization and never
// modified. Sub-components receive only the specific config subsets they
// require (Least Privilege principle).
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"epigrid"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Node     NodeConfig
	Privacy  PrivacyConfig
	Forecast ForecastConfig
	Stats    StatsConfig
	Security SecurityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP listener and shutdown configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// NodePort is the listener for cmd/node, kept separate so both binaries
	// can run side by side on one host during local development.
	NodePort      string        `envconfig:"NODE_PORT" default:"8081"`
	ShutdownGrace time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`
}

// NodeConfig holds the identity and delivery settings for a clinic node
// process. The aggregator never reads this section, so none of its fields
// are required at struct level; cmd/node calls Config.ValidateNode to
// enforce the node-only requirements.
type NodeConfig struct {
	ID          string  `envconfig:"NODE_ID"`
	Lat         float64 `envconfig:"NODE_LAT" validate:"omitempty,latitude"`
	Lon         float64 `envconfig:"NODE_LON" validate:"omitempty,longitude"`
	DisplayName string  `envconfig:"NODE_DISPLAY_NAME"`

	// AggregatorURL is the base URL aggregates are pushed to (no trailing slash).
	AggregatorURL string `envconfig:"AGGREGATOR_URL" default:"http://localhost:8080" validate:"required,url"`

	ReportWindow time.Duration `envconfig:"REPORT_WINDOW" default:"168h" validate:"gt=0"`
	PushTimeout  time.Duration `envconfig:"PUSH_TIMEOUT" default:"10s" validate:"gt=0"`
	QueueSize    int           `envconfig:"DELIVERY_QUEUE" default:"64" validate:"min=1"`
}

// PrivacyConfig holds the differential privacy budget shared by every
// aggregate a node emits. Epsilon is spent per aggregate with no composition
// accounting, so lowering it is the only way to tighten the budget.
type PrivacyConfig struct {
	Epsilon     float64 `envconfig:"PRIVACY_EPSILON" default:"0.5" validate:"gt=0"`
	Sensitivity float64 `envconfig:"PRIVACY_SENSITIVITY" default:"1.0" validate:"gt=0"`
}

// ForecastConfig holds model fitting and bootstrap tuning parameters.
type ForecastConfig struct {
	MinHistory      int     `envconfig:"FORECAST_MIN_HISTORY" default:"10" validate:"min=1"`
	BootstrapTarget int     `envconfig:"FORECAST_BOOTSTRAP_TARGET" default:"30"`
	Confidence      float64 `envconfig:"FORECAST_CONFIDENCE" default:"0.95" validate:"gt=0,lt=1"`
	FitConcurrency  int64   `envconfig:"FORECAST_FIT_CONCURRENCY" default:"4" validate:"min=1"`
}

// StatsConfig holds the lookback window applied by the stats and map views.
type StatsConfig struct {
	RecentWindow time.Duration `envconfig:"RECENT_WINDOW" default:"24h" validate:"gt=0"`
}

// SecurityConfig holds CORS and traffic shaping settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RateLimitRPS       float64  `envconfig:"RATE_LIMIT_RPS" default:"50" validate:"gt=0"`
	RateLimitBurst     int      `envconfig:"RATE_LIMIT_BURST" default:"100" validate:"min=1"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ValidateNode enforces the requirements that apply only to clinic node
// processes. LoadConfig cannot require these globally because the aggregator
// shares the same struct without them.
func (c *Config) ValidateNode() error {
	if c.Node.ID == "" {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: "NODE_ID is required for node processes",
		}
	}
	if c.Node.Lat == 0 && c.Node.Lon == 0 {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: fmt.Sprintf("NODE_LAT and NODE_LON are required for node %s", c.Node.ID),
		}
	}
	return nil
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
