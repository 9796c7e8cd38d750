package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Clean up environment before tests
	cleanupEnv := func() {
		os.Unsetenv("BASKETSCOUT_SERVER_PORT")
		os.Unsetenv("BASKETSCOUT_SERVER_ENVIRONMENT")
		os.Unsetenv("BASKETSCOUT_GEOCODER_BASE_URL")
		os.Unsetenv("BASKETSCOUT_GEOCODER_REQUESTS_PER_SECOND")
		os.Unsetenv("BASKETSCOUT_CACHE_TYPE")
		os.Unsetenv("BASKETSCOUT_CACHE_DATABASE_URL")
		os.Unsetenv("BASKETSCOUT_CACHE_TTL")
		os.Unsetenv("BASKETSCOUT_SCRAPER_COMMAND")
		os.Unsetenv("BASKETSCOUT_SCRAPER_TIMEOUT")
		os.Unsetenv("BASKETSCOUT_SCRAPER_MAX_CONCURRENT")
		os.Unsetenv("BASKETSCOUT_RESOLVER_REQUEST_TIMEOUT")
		os.Unsetenv("BASKETSCOUT_SCORING_SCALE")
		os.Unsetenv("BASKETSCOUT_RATELIMIT_PER_IP")
	}

	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cleanupEnv()
		// Set required scraper command
		os.Setenv("BASKETSCOUT_SCRAPER_COMMAND", "scraper")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.Geocoder.BaseURL != "https://nominatim.openstreetmap.org" {
			t.Errorf("Geocoder.BaseURL = %s, want https://nominatim.openstreetmap.org", cfg.Geocoder.BaseURL)
		}
		if cfg.Geocoder.RequestsPerSecond != 1 {
			t.Errorf("Geocoder.RequestsPerSecond = %v, want 1", cfg.Geocoder.RequestsPerSecond)
		}
		if cfg.Cache.Type != "memory" {
			t.Errorf("Cache.Type = %s, want memory", cfg.Cache.Type)
		}
		if cfg.Cache.TTL != 24*time.Hour {
			t.Errorf("Cache.TTL = %v, want 24h", cfg.Cache.TTL)
		}
		if cfg.Cache.Table != "price_cache" {
			t.Errorf("Cache.Table = %s, want price_cache", cfg.Cache.Table)
		}
		if cfg.Scraper.Timeout != 60*time.Second {
			t.Errorf("Scraper.Timeout = %v, want 60s", cfg.Scraper.Timeout)
		}
		if cfg.Scraper.MaxConcurrent != 4 {
			t.Errorf("Scraper.MaxConcurrent = %d, want 4", cfg.Scraper.MaxConcurrent)
		}
		if cfg.Resolver.RequestTimeout != 2*time.Minute {
			t.Errorf("Resolver.RequestTimeout = %v, want 2m", cfg.Resolver.RequestTimeout)
		}
		if cfg.Scoring.AvailabilityMax != 50 || cfg.Scoring.PriceMax != 30 || cfg.Scoring.DistanceMax != 20 {
			t.Errorf("Scoring maxima = %+v, want 50/30/20", cfg.Scoring)
		}
		if cfg.RateLimit.PerIP != 60 {
			t.Errorf("RateLimit.PerIP = %d, want 60", cfg.RateLimit.PerIP)
		}
		if cfg.Log.Level != "info" {
			t.Errorf("Log.Level = %s, want info", cfg.Log.Level)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("BASKETSCOUT_SERVER_PORT", "9090")
		os.Setenv("BASKETSCOUT_SERVER_ENVIRONMENT", "production")
		os.Setenv("BASKETSCOUT_GEOCODER_BASE_URL", "http://geocoder.internal")
		os.Setenv("BASKETSCOUT_GEOCODER_REQUESTS_PER_SECOND", "5")
		os.Setenv("BASKETSCOUT_CACHE_TYPE", "postgres")
		os.Setenv("BASKETSCOUT_CACHE_DATABASE_URL", "postgres://localhost:5432/prices")
		os.Setenv("BASKETSCOUT_CACHE_TTL", "6h")
		os.Setenv("BASKETSCOUT_SCRAPER_COMMAND", "/usr/local/bin/scrape")
		os.Setenv("BASKETSCOUT_SCRAPER_TIMEOUT", "30s")
		os.Setenv("BASKETSCOUT_SCRAPER_MAX_CONCURRENT", "8")
		os.Setenv("BASKETSCOUT_RESOLVER_REQUEST_TIMEOUT", "90s")
		os.Setenv("BASKETSCOUT_SCORING_SCALE", "15")
		os.Setenv("BASKETSCOUT_RATELIMIT_PER_IP", "200")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
		if cfg.Geocoder.BaseURL != "http://geocoder.internal" {
			t.Errorf("Geocoder.BaseURL = %s, want http://geocoder.internal", cfg.Geocoder.BaseURL)
		}
		if cfg.Geocoder.RequestsPerSecond != 5 {
			t.Errorf("Geocoder.RequestsPerSecond = %v, want 5", cfg.Geocoder.RequestsPerSecond)
		}
		if cfg.Cache.Type != "postgres" {
			t.Errorf("Cache.Type = %s, want postgres", cfg.Cache.Type)
		}
		if cfg.Cache.DatabaseURL != "postgres://localhost:5432/prices" {
			t.Errorf("Cache.DatabaseURL = %s, want postgres://localhost:5432/prices", cfg.Cache.DatabaseURL)
		}
		if cfg.Cache.TTL != 6*time.Hour {
			t.Errorf("Cache.TTL = %v, want 6h", cfg.Cache.TTL)
		}
		if cfg.Scraper.Command != "/usr/local/bin/scrape" {
			t.Errorf("Scraper.Command = %s, want /usr/local/bin/scrape", cfg.Scraper.Command)
		}
		if cfg.Scraper.Timeout != 30*time.Second {
			t.Errorf("Scraper.Timeout = %v, want 30s", cfg.Scraper.Timeout)
		}
		if cfg.Scraper.MaxConcurrent != 8 {
			t.Errorf("Scraper.MaxConcurrent = %d, want 8", cfg.Scraper.MaxConcurrent)
		}
		if cfg.Resolver.RequestTimeout != 90*time.Second {
			t.Errorf("Resolver.RequestTimeout = %v, want 90s", cfg.Resolver.RequestTimeout)
		}
		if cfg.Scoring.Scale != 15 {
			t.Errorf("Scoring.Scale = %v, want 15", cfg.Scoring.Scale)
		}
		if cfg.RateLimit.PerIP != 200 {
			t.Errorf("RateLimit.PerIP = %d, want 200", cfg.RateLimit.PerIP)
		}
	})

	t.Run("fails validation when scraper command is missing", func(t *testing.T) {
		cleanupEnv()
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for missing scraper command")
		}
		if err != nil && err.Error() != "invalid configuration: scraper command is required (set BASKETSCOUT_SCRAPER_COMMAND)" {
			t.Errorf("Load() error = %v, want 'scraper command is required'", err)
		}
	})

	t.Run("fails validation for invalid cache type", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("BASKETSCOUT_SCRAPER_COMMAND", "scraper")
		os.Setenv("BASKETSCOUT_CACHE_TYPE", "invalid")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for invalid cache type")
		}
	})

	t.Run("fails validation for zero request timeout", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("BASKETSCOUT_SCRAPER_COMMAND", "scraper")
		os.Setenv("BASKETSCOUT_RESOLVER_REQUEST_TIMEOUT", "0s")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for zero request timeout")
		}
	})

	t.Run("fails validation for zero cache ttl", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("BASKETSCOUT_SCRAPER_COMMAND", "scraper")
		os.Setenv("BASKETSCOUT_CACHE_TTL", "0s")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for zero cache ttl")
		}
	})

	t.Run("fails validation when database URL missing for postgres cache", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("BASKETSCOUT_SCRAPER_COMMAND", "scraper")
		os.Setenv("BASKETSCOUT_CACHE_TYPE", "postgres")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for missing database URL")
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		// Create temp directory
		tempDir := t.TempDir()
		os.Chdir(tempDir)

		err := loadEnvFile()
		if err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("loads variables from .env file", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		// Create temp directory
		tempDir := t.TempDir()
		os.Chdir(tempDir)

		// Create .env file
		envContent := `
# Comment line
TEST_VAR_1=value1
TEST_VAR_2=value2

# Another comment
TEST_VAR_3=value3
`
		err := os.WriteFile(".env", []byte(envContent), 0644)
		if err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		// Clear any existing values
		os.Unsetenv("TEST_VAR_1")
		os.Unsetenv("TEST_VAR_2")
		os.Unsetenv("TEST_VAR_3")

		err = loadEnvFile()
		if err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_VAR_1") != "value1" {
			t.Errorf("TEST_VAR_1 = %s, want value1", os.Getenv("TEST_VAR_1"))
		}
		if os.Getenv("TEST_VAR_2") != "value2" {
			t.Errorf("TEST_VAR_2 = %s, want value2", os.Getenv("TEST_VAR_2"))
		}
		if os.Getenv("TEST_VAR_3") != "value3" {
			t.Errorf("TEST_VAR_3 = %s, want value3", os.Getenv("TEST_VAR_3"))
		}

		// Cleanup
		os.Unsetenv("TEST_VAR_1")
		os.Unsetenv("TEST_VAR_2")
		os.Unsetenv("TEST_VAR_3")
	})

	t.Run("skips empty lines and comments", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		// Create temp directory
		tempDir := t.TempDir()
		os.Chdir(tempDir)

		// Create .env file with various formats
		envContent := `
# This is a comment
   # This is also a comment

TEST_SKIP_1=value1

TEST_SKIP_2=value2
# TEST_COMMENTED=should_not_load
`
		err := os.WriteFile(".env", []byte(envContent), 0644)
		if err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		os.Unsetenv("TEST_SKIP_1")
		os.Unsetenv("TEST_SKIP_2")
		os.Unsetenv("TEST_COMMENTED")

		err = loadEnvFile()
		if err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_SKIP_1") != "value1" {
			t.Errorf("TEST_SKIP_1 not loaded correctly")
		}
		if os.Getenv("TEST_SKIP_2") != "value2" {
			t.Errorf("TEST_SKIP_2 not loaded correctly")
		}
		if os.Getenv("TEST_COMMENTED") != "" {
			t.Errorf("TEST_COMMENTED should not be loaded from comment")
		}

		os.Unsetenv("TEST_SKIP_1")
		os.Unsetenv("TEST_SKIP_2")
	})

	t.Run("strips quotes and export prefix", func(t *testing.T) {
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		tempDir := t.TempDir()
		os.Chdir(tempDir)

		envContent := "export TEST_QUOTED=\"quoted value\"\nTEST_URL=postgres://u:p@host/db?sslmode=disable\n"
		if err := os.WriteFile(".env", []byte(envContent), 0644); err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}
		os.Unsetenv("TEST_QUOTED")
		os.Unsetenv("TEST_URL")
		defer os.Unsetenv("TEST_QUOTED")
		defer os.Unsetenv("TEST_URL")

		if err := loadEnvFile(); err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if got := os.Getenv("TEST_QUOTED"); got != "quoted value" {
			t.Errorf("TEST_QUOTED = %q, want %q", got, "quoted value")
		}
		if got := os.Getenv("TEST_URL"); got != "postgres://u:p@host/db?sslmode=disable" {
			t.Errorf("TEST_URL = %q, want value with '=' kept", got)
		}
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		// Create temp directory
		tempDir := t.TempDir()
		os.Chdir(tempDir)

		// Set existing env var
		os.Setenv("TEST_OVERRIDE", "existing-value")

		// Create .env file that tries to override
		envContent := "TEST_OVERRIDE=new-value"
		err := os.WriteFile(".env", []byte(envContent), 0644)
		if err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		err = loadEnvFile()
		if err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		// Should still have original value
		if os.Getenv("TEST_OVERRIDE") != "existing-value" {
			t.Errorf("TEST_OVERRIDE = %s, want existing-value (should not override)", os.Getenv("TEST_OVERRIDE"))
		}

		os.Unsetenv("TEST_OVERRIDE")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Geocoder: GeocoderConfig{RequestsPerSecond: 1},
			Cache:    CacheConfig{Type: "memory", TTL: time.Hour},
			Scraper:  ScraperConfig{Command: "scraper", MaxConcurrent: 4, Timeout: time.Minute},
			Resolver: ResolverConfig{RequestTimeout: 2 * time.Minute},
		}
	}

	t.Run("validates successfully with all required fields", func(t *testing.T) {
		if err := validate(valid()); err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})

	t.Run("fails when scraper command is empty", func(t *testing.T) {
		cfg := valid()
		cfg.Scraper.Command = ""

		if err := validate(cfg); err == nil {
			t.Error("validate() error = nil, want error for empty scraper command")
		}
	})

	t.Run("fails for invalid cache type", func(t *testing.T) {
		cfg := valid()
		cfg.Cache.Type = "redis"

		if err := validate(cfg); err == nil {
			t.Error("validate() error = nil, want error for invalid cache type")
		}
	})

	t.Run("validates postgres cache type with URL", func(t *testing.T) {
		cfg := valid()
		cfg.Cache = CacheConfig{Type: "postgres", DatabaseURL: "postgres://localhost:5432/prices", TTL: time.Hour}

		if err := validate(cfg); err != nil {
			t.Errorf("validate() error = %v, want nil for valid postgres config", err)
		}
	})

	t.Run("fails for postgres cache without URL", func(t *testing.T) {
		cfg := valid()
		cfg.Cache = CacheConfig{Type: "postgres", TTL: time.Hour}

		if err := validate(cfg); err == nil {
			t.Error("validate() error = nil, want error for postgres without URL")
		}
	})

	t.Run("fails for non-positive scrape concurrency", func(t *testing.T) {
		cfg := valid()
		cfg.Scraper.MaxConcurrent = 0

		if err := validate(cfg); err == nil {
			t.Error("validate() error = nil, want error for zero concurrency")
		}
	})

	t.Run("fails for negative retries", func(t *testing.T) {
		cfg := valid()
		cfg.Scraper.Retries = -1

		if err := validate(cfg); err == nil {
			t.Error("validate() error = nil, want error for negative retries")
		}
	})

	t.Run("fails for non-positive durations", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*Config)
		}{
			{"request timeout", func(c *Config) { c.Resolver.RequestTimeout = 0 }},
			{"cache ttl", func(c *Config) { c.Cache.TTL = -time.Second }},
			{"scraper timeout", func(c *Config) { c.Scraper.Timeout = 0 }},
		}
		for _, tt := range tests {
			cfg := valid()
			tt.mutate(cfg)

			if err := validate(cfg); err == nil {
				t.Errorf("%s: validate() error = nil, want error", tt.name)
			}
		}
	})

	t.Run("fails for non-positive geocoder rate", func(t *testing.T) {
		cfg := valid()
		cfg.Geocoder.RequestsPerSecond = 0

		if err := validate(cfg); err == nil {
			t.Error("validate() error = nil, want error for zero geocoder rate")
		}
	})
}
