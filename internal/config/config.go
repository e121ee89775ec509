package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Supabase
	SupabaseURL            string        `env:"SUPABASE_URL"`
	SupabasePublishableKey string        `env:"SUPABASE_PUBLISHABLE_KEY"`
	SupabaseJWTSecret      string        `env:"SUPABASE_JWT_SECRET"`
	SupabaseStorageBucket  string        `env:"SUPABASE_STORAGE_BUCKET" envDefault:"body-log"`
	SignedURLTTL           time.Duration `env:"SIGNED_URL_TTL" envDefault:"1h"`

	// Analysis API
	AnalysisAPIBaseURL string        `env:"ANALYSIS_API_BASE_URL"`
	AnalysisAPIKey     string        `env:"ANALYSIS_API_KEY"`
	AnalysisTimeout    time.Duration `env:"ANALYSIS_TIMEOUT" envDefault:"60s"`

	// Capture
	CaptureMaxDimension int           `env:"CAPTURE_MAX_DIMENSION" envDefault:"1600"`
	CaptureJPEGQuality  int           `env:"CAPTURE_JPEG_QUALITY" envDefault:"85"`
	CaptureTimeout      time.Duration `env:"CAPTURE_TIMEOUT" envDefault:"45s"`
	NoticesCapacity     int           `env:"NOTICES_CAPACITY" envDefault:"20"`

	// Database
	DatabaseURL string `env:"DATABASE_URL"`

	// Server
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabasePublishableKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.AnalysisAPIBaseURL == "" {
		return fmt.Errorf("ANALYSIS_API_BASE_URL is required")
	}
	if c.CaptureJPEGQuality < 1 || c.CaptureJPEGQuality > 100 {
		return fmt.Errorf("CAPTURE_JPEG_QUALITY must be between 1 and 100, got %d", c.CaptureJPEGQuality)
	}
	if c.CaptureMaxDimension <= 0 {
		return fmt.Errorf("CAPTURE_MAX_DIMENSION must be positive, got %d", c.CaptureMaxDimension)
	}
	if c.NoticesCapacity <= 0 {
		return fmt.Errorf("NOTICES_CAPACITY must be positive, got %d", c.NoticesCapacity)
	}
	if c.SignedURLTTL < time.Second {
		return fmt.Errorf("SIGNED_URL_TTL must be at least 1s, got %s", c.SignedURLTTL)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
