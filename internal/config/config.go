package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all runtime configuration loaded from environment variables.
// Constructed once at process start and passed into each component.
type Config struct {
	TableName        string `validate:"required"`
	SummaryChannelID string `validate:"required"`
	Timezone         string `validate:"required"`
	ParamPrefix      string `validate:"required"`

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string

	MaxTextLength int
	SkewTolerance time.Duration

	AppPort string // local dev server only
}

// Load reads configuration from the environment and validates it.
// A missing required setting is a startup failure, not a per-request one.
func Load() (*Config, error) {
	cfg := &Config{
		TableName:        os.Getenv("TABLE_NAME"),
		SummaryChannelID: os.Getenv("SUMMARY_CHANNEL_ID"),
		Timezone:         getEnv("TIMEZONE", "America/Los_Angeles"),
		ParamPrefix:      os.Getenv("PARAM_PREFIX"),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL:   os.Getenv("AWS_ENDPOINT_URL"),
		AWSAccessKeyID:   os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:     os.Getenv("AWS_SECRET_ACCESS_KEY"),
		MaxTextLength:    3000,
		SkewTolerance:    5 * time.Minute,
		AppPort:          getEnv("APP_PORT", "3000"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("config: invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	return cfg, nil
}

// Location resolves the configured timezone. Load has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SigningSecretParam is the parameter name holding the Slack signing secret.
func (c *Config) SigningSecretParam() string {
	return strings.TrimRight(c.ParamPrefix, "/") + "/slack/signing-secret"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
