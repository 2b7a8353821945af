package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearNodeEnv unsets the node identity variables so tests inherit nothing
// from the host environment. t.Setenv registers the restore hooks first.
func clearNodeEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"NODE_ID", "NODE_LAT", "NODE_LON", "NODE_DISPLAY_NAME"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// TestLoadConfigDefaults verifies that a minimal environment (APP_ENV only)
// produces a fully defaulted, valid configuration.
func TestLoadConfigDefaults(t *testing.T) {
	clearNodeEnv(t)
	t.Setenv("APP_ENV", "local")
	t.Setenv("SERVICE_NAME", "epigrid")
	t.Setenv("LOG_LEVEL", "info")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Environment != "local" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "local")
	}
	if cfg.Service != "epigrid" {
		t.Errorf("Service = %q, want %q", cfg.Service, "epigrid")
	}
	if cfg.Server.NodePort != "8081" {
		t.Errorf("Server.NodePort = %q, want default %q", cfg.Server.NodePort, "8081")
	}
	if cfg.Server.ShutdownGrace != 10*time.Second {
		t.Errorf("Server.ShutdownGrace = %v, want 10s", cfg.Server.ShutdownGrace)
	}
	if cfg.Node.AggregatorURL != "http://localhost:8080" {
		t.Errorf("Node.AggregatorURL = %q, want default", cfg.Node.AggregatorURL)
	}
	if cfg.Node.ReportWindow != 168*time.Hour {
		t.Errorf("Node.ReportWindow = %v, want 168h", cfg.Node.ReportWindow)
	}
	if cfg.Node.PushTimeout != 10*time.Second {
		t.Errorf("Node.PushTimeout = %v, want 10s", cfg.Node.PushTimeout)
	}
	if cfg.Node.QueueSize != 64 {
		t.Errorf("Node.QueueSize = %d, want 64", cfg.Node.QueueSize)
	}
	if cfg.Privacy.Epsilon != 0.5 {
		t.Errorf("Privacy.Epsilon = %v, want 0.5", cfg.Privacy.Epsilon)
	}
	if cfg.Privacy.Sensitivity != 1.0 {
		t.Errorf("Privacy.Sensitivity = %v, want 1.0", cfg.Privacy.Sensitivity)
	}
	if cfg.Forecast.MinHistory != 10 {
		t.Errorf("Forecast.MinHistory = %d, want 10", cfg.Forecast.MinHistory)
	}
	if cfg.Forecast.BootstrapTarget != 30 {
		t.Errorf("Forecast.BootstrapTarget = %d, want 30", cfg.Forecast.BootstrapTarget)
	}
	if cfg.Forecast.Confidence != 0.95 {
		t.Errorf("Forecast.Confidence = %v, want 0.95", cfg.Forecast.Confidence)
	}
	if cfg.Forecast.FitConcurrency != 4 {
		t.Errorf("Forecast.FitConcurrency = %d, want 4", cfg.Forecast.FitConcurrency)
	}
	if cfg.Stats.RecentWindow != 24*time.Hour {
		t.Errorf("Stats.RecentWindow = %v, want 24h", cfg.Stats.RecentWindow)
	}
	if len(cfg.Security.CorsAllowedOrigins) != 1 || cfg.Security.CorsAllowedOrigins[0] != "*" {
		t.Errorf("Security.CorsAllowedOrigins = %v, want [*]", cfg.Security.CorsAllowedOrigins)
	}
	if cfg.Security.RateLimitRPS != 50 {
		t.Errorf("Security.RateLimitRPS = %v, want 50", cfg.Security.RateLimitRPS)
	}
	if cfg.Security.RateLimitBurst != 100 {
		t.Errorf("Security.RateLimitBurst = %d, want 100", cfg.Security.RateLimitBurst)
	}

	// Build metadata comes from the linker defaults in tests.
	if cfg.Build.Version != "dev" {
		t.Errorf("Build.Version = %q, want %q", cfg.Build.Version, "dev")
	}
}

// TestLoadConfigOverrides verifies that explicit environment variables win
// over struct defaults and parse into their target types.
func TestLoadConfigOverrides(t *testing.T) {
	clearNodeEnv(t)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("PORT", "9090")
	t.Setenv("NODE_ID", "clinic-north")
	t.Setenv("NODE_LAT", "30.7333")
	t.Setenv("NODE_LON", "76.7794")
	t.Setenv("NODE_DISPLAY_NAME", "Sector 17 Clinic")
	t.Setenv("AGGREGATOR_URL", "https://aggregator.example.org")
	t.Setenv("REPORT_WINDOW", "24h")
	t.Setenv("PRIVACY_EPSILON", "1.2")
	t.Setenv("FORECAST_BOOTSTRAP_TARGET", "-1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Environment != "staging" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "staging")
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "9090")
	}
	if cfg.Node.ID != "clinic-north" {
		t.Errorf("Node.ID = %q, want %q", cfg.Node.ID, "clinic-north")
	}
	if cfg.Node.Lat != 30.7333 || cfg.Node.Lon != 76.7794 {
		t.Errorf("Node coordinates = (%v, %v), want (30.7333, 76.7794)", cfg.Node.Lat, cfg.Node.Lon)
	}
	if cfg.Node.DisplayName != "Sector 17 Clinic" {
		t.Errorf("Node.DisplayName = %q", cfg.Node.DisplayName)
	}
	if cfg.Node.AggregatorURL != "https://aggregator.example.org" {
		t.Errorf("Node.AggregatorURL = %q", cfg.Node.AggregatorURL)
	}
	if cfg.Node.ReportWindow != 24*time.Hour {
		t.Errorf("Node.ReportWindow = %v, want 24h", cfg.Node.ReportWindow)
	}
	if cfg.Privacy.Epsilon != 1.2 {
		t.Errorf("Privacy.Epsilon = %v, want 1.2", cfg.Privacy.Epsilon)
	}
	// Negative disables synthetic history; the loader passes it through.
	if cfg.Forecast.BootstrapTarget != -1 {
		t.Errorf("Forecast.BootstrapTarget = %d, want -1", cfg.Forecast.BootstrapTarget)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Security.CorsAllowedOrigins) != len(want) {
		t.Fatalf("CorsAllowedOrigins = %v, want %v", cfg.Security.CorsAllowedOrigins, want)
	}
	for i := range want {
		if cfg.Security.CorsAllowedOrigins[i] != want[i] {
			t.Errorf("CorsAllowedOrigins[%d] = %q, want %q", i, cfg.Security.CorsAllowedOrigins[i], want[i])
		}
	}
}

// TestLoadConfigSetsUTC verifies that LoadConfig pins the process timezone
// to UTC. Calendar-day bucketing in the store depends on this.
func TestLoadConfigSetsUTC(t *testing.T) {
	clearNodeEnv(t)
	t.Setenv("APP_ENV", "local")

	original := time.Local
	defer func() { time.Local = original }()
	time.Local = time.FixedZone("IST", 5*3600+1800)

	if _, err := LoadConfig(); err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if time.Local != time.UTC {
		t.Errorf("time.Local = %v, want UTC", time.Local)
	}
}

// TestLoadConfigMissingAppEnv verifies that an absent APP_ENV fails struct
// validation with a typed error.
func TestLoadConfigMissingAppEnv(t *testing.T) {
	clearNodeEnv(t)
	// Register the restore hook, then remove the variable.
	t.Setenv("APP_ENV", "local")
	os.Unsetenv("APP_ENV")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig should fail without APP_ENV")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error type = %T, want *ConfigError", err)
	}
	if cfgErr.Type != ErrValidation {
		t.Errorf("error Type = %q, want %q", cfgErr.Type, ErrValidation)
	}
}

// TestLoadConfigRejectsUnknownEnvironment verifies the oneof constraint on APP_ENV.
func TestLoadConfigRejectsUnknownEnvironment(t *testing.T) {
	clearNodeEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig should reject APP_ENV=production")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != ErrValidation {
		t.Errorf("error = %v, want *ConfigError with Type %q", err, ErrValidation)
	}
}

// TestLoadConfigParseFailure verifies that unparseable values surface as a
// typed parsing error rather than a validation error.
func TestLoadConfigParseFailure(t *testing.T) {
	clearNodeEnv(t)
	t.Setenv("APP_ENV", "local")
	t.Setenv("REPORT_WINDOW", "one week")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig should fail on an unparseable duration")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error type = %T, want *ConfigError", err)
	}
	if cfgErr.Type != ErrParsing {
		t.Errorf("error Type = %q, want %q", cfgErr.Type, ErrParsing)
	}
	if cfgErr.Err == nil {
		t.Error("parsing ConfigError should wrap the underlying envconfig error")
	}
}

// TestLoadConfigRejectsZeroEpsilon verifies that a zero privacy budget fails
// validation. A zero epsilon makes the Laplace scale undefined.
func TestLoadConfigRejectsZeroEpsilon(t *testing.T) {
	clearNodeEnv(t)
	t.Setenv("APP_ENV", "local")
	t.Setenv("PRIVACY_EPSILON", "0")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig should reject PRIVACY_EPSILON=0")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != ErrValidation {
		t.Errorf("error = %v, want *ConfigError with Type %q", err, ErrValidation)
	}
}

// TestLoadConfigRejectsBadLatitude verifies coordinate validation on the
// node identity section.
func TestLoadConfigRejectsBadLatitude(t *testing.T) {
	clearNodeEnv(t)
	t.Setenv("APP_ENV", "local")
	t.Setenv("NODE_LAT", "123.45")

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig should reject NODE_LAT=123.45")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != ErrValidation {
		t.Errorf("error = %v, want *ConfigError with Type %q", err, ErrValidation)
	}
}

// TestLoadConfigDotenvPriority verifies the resolution chain: a .env file
// fills in missing values but never overrides the OS environment.
func TestLoadConfigDotenvPriority(t *testing.T) {
	clearNodeEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	contents := "PRIVACY_EPSILON=0.9\nSERVICE_NAME=epigrid-dotenv\n"
	if err := os.WriteFile(envFile, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing .env: %v", err)
	}
	t.Chdir(dir)

	t.Setenv("APP_ENV", "local")
	// OS environment must win over the .env value.
	t.Setenv("SERVICE_NAME", "epigrid-env")
	// PRIVACY_EPSILON is only in the .env file. godotenv injects it into the
	// process environment, so restore it manually afterwards.
	t.Setenv("PRIVACY_EPSILON", "")
	os.Unsetenv("PRIVACY_EPSILON")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Privacy.Epsilon != 0.9 {
		t.Errorf("Privacy.Epsilon = %v, want 0.9 from .env", cfg.Privacy.Epsilon)
	}
	if cfg.Service != "epigrid-env" {
		t.Errorf("Service = %q, want OS env value %q", cfg.Service, "epigrid-env")
	}
}
