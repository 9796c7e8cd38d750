package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Geocoder  GeocoderConfig
	Cache     CacheConfig
	Scraper   ScraperConfig
	Resolver  ResolverConfig
	Scoring   ScoringConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// GeocoderConfig holds Nominatim configuration
type GeocoderConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	UserAgent         string  `mapstructure:"user_agent"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Debug             bool    `mapstructure:"debug"`
}

// CacheConfig holds price cache configuration
type CacheConfig struct {
	Type           string        `mapstructure:"type"` // "memory" or "postgres"
	DatabaseURL    string        `mapstructure:"database_url"`
	Table          string        `mapstructure:"table"`
	TTL            time.Duration `mapstructure:"ttl"`
	MaxConns       int           `mapstructure:"max_conns"`
	SimpleProtocol bool          `mapstructure:"simple_protocol"`
}

// ScraperConfig holds the external scraper process configuration
type ScraperConfig struct {
	Command       string        `mapstructure:"command"`
	Args          []string      `mapstructure:"args"`
	Dir           string        `mapstructure:"dir"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	Retries       int           `mapstructure:"retries"`
}

// ResolverConfig holds per-request limits
type ResolverConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// Filter is an optional boolean expression over candidate stores,
	// e.g. "distanceKm <= 10".
	Filter string `mapstructure:"filter"`
}

// ScoringConfig holds the store ranking constants
type ScoringConfig struct {
	AvailabilityMax       float64 `mapstructure:"availability_max"`
	PriceMax              float64 `mapstructure:"price_max"`
	DistanceMax           float64 `mapstructure:"distance_max"`
	PenaltyPerMissingItem float64 `mapstructure:"penalty_per_missing_item"`
	Scale                 float64 `mapstructure:"scale"`
	NearKm                float64 `mapstructure:"near_km"`
	MidKm                 float64 `mapstructure:"mid_km"`
	FarKm                 float64 `mapstructure:"far_km"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/basketscout/")

	// BASKETSCOUT_CACHE_DATABASE_URL -> cache.database_url
	v.SetEnvPrefix("BASKETSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs a default
// so AutomaticEnv can pick it up during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "basketscout/1.0")
	v.SetDefault("geocoder.requests_per_second", 1.0)
	v.SetDefault("geocoder.debug", false)

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.database_url", "")
	v.SetDefault("cache.table", "price_cache")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.max_conns", 10)
	v.SetDefault("cache.simple_protocol", false)

	v.SetDefault("scraper.command", "")
	v.SetDefault("scraper.args", []string{})
	v.SetDefault("scraper.dir", "")
	v.SetDefault("scraper.timeout", "60s")
	v.SetDefault("scraper.max_concurrent", 4)
	v.SetDefault("scraper.retries", 1)

	v.SetDefault("resolver.request_timeout", "2m")
	v.SetDefault("resolver.filter", "")

	v.SetDefault("scoring.availability_max", 50)
	v.SetDefault("scoring.price_max", 30)
	v.SetDefault("scoring.distance_max", 20)
	v.SetDefault("scoring.penalty_per_missing_item", 10)
	v.SetDefault("scoring.scale", 10)
	v.SetDefault("scoring.near_km", 1)
	v.SetDefault("scoring.mid_km", 3)
	v.SetDefault("scoring.far_km", 5)

	v.SetDefault("ratelimit.per_ip", 60)

	v.SetDefault("log.level", "info")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Scraper.Command == "" {
		return fmt.Errorf("scraper command is required (set BASKETSCOUT_SCRAPER_COMMAND)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "postgres" {
		return fmt.Errorf("cache type must be 'memory' or 'postgres', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "postgres" && config.Cache.DatabaseURL == "" {
		return fmt.Errorf("database URL is required when cache type is 'postgres'")
	}

	if config.Scraper.MaxConcurrent <= 0 {
		return fmt.Errorf("scraper max_concurrent must be positive, got: %d", config.Scraper.MaxConcurrent)
	}

	if config.Scraper.Retries < 0 {
		return fmt.Errorf("scraper retries must not be negative, got: %d", config.Scraper.Retries)
	}

	if config.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got: %v", config.Cache.TTL)
	}

	if config.Scraper.Timeout <= 0 {
		return fmt.Errorf("scraper timeout must be positive, got: %v", config.Scraper.Timeout)
	}

	if config.Resolver.RequestTimeout <= 0 {
		return fmt.Errorf("resolver request_timeout must be positive, got: %v", config.Resolver.RequestTimeout)
	}

	if config.Geocoder.RequestsPerSecond <= 0 {
		return fmt.Errorf("geocoder requests_per_second must be positive, got: %v", config.Geocoder.RequestsPerSecond)
	}

	return nil
}

// loadEnvFile loads KEY=VALUE pairs from ./.env into the process
// environment. Variables that are already set are left alone.
func loadEnvFile() error {
	file, err := os.Open(".env")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}
