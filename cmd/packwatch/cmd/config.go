package cmd

import (
	"fmt"
	"packwatch/internal/components/configutil"
	"packwatch/internal/components/db"
	"packwatch/internal/components/telemetry"
	"packwatch/internal/notify"
	"packwatch/internal/scrapers/gaijin"
	"strings"
	"time"
)

const envPrefix = "PACKWATCH"

type SolverConfig struct {
	// Url of a FlareSolverr compatible endpoint, ex. http://localhost:8191/v1,
	// without it a blocked catalog page fails the fetch.
	Url              string `json:"url" envconfig:"URL"`
	FailureThreshold uint32 `json:"failure_threshold" envconfig:"FAILURE_THRESHOLD"`
	CooldownSeconds  int    `json:"cooldown_seconds" envconfig:"COOLDOWN_SECONDS"`
}

type CatalogConfig struct {
	Url                string  `json:"url" envconfig:"URL"`
	PageTimeoutSeconds int     `json:"page_timeout_seconds" envconfig:"PAGE_TIMEOUT_SECONDS"`
	RequestsPerSecond  float64 `json:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
}

type NatsConfig struct {
	Url           string `json:"url" envconfig:"URL"`
	SubjectPrefix string `json:"subject_prefix" envconfig:"SUBJECT_PREFIX"`
}

type Config struct {
	Catalog CatalogConfig `json:"catalog" envconfig:"CATALOG"`
	Solver  SolverConfig  `json:"solver" envconfig:"SOLVER"`
	// Interval is a cron spec (ex. "@every 5m", "*/10 * * * *") or a plain
	// duration (ex. "300s").
	Interval string `json:"interval" envconfig:"INTERVAL"`
	// Concurrency is the number of subscribers refreshed at once.
	Concurrency int `json:"concurrency" envconfig:"CONCURRENCY"`

	Database  db.Config          `json:"database" envconfig:"DATABASE"`
	Email     notify.EmailConfig `json:"email" envconfig:"EMAIL"`
	Nats      NatsConfig         `json:"nats" envconfig:"NATS"`
	Telemetry telemetry.Config   `json:"telemetry" envconfig:"TELEMETRY"`
}

// environment variables are applied on top of the file so defaults can only
// be filled in afterwards
func (c *Config) applyDefaults() {
	if c.Catalog.Url == "" {
		c.Catalog.Url = gaijin.DefaultBaseUrl
	}
	if c.Interval == "" {
		c.Interval = "@every 5m"
	}
	if c.Database.File == "" && c.Database.Url == "" {
		c.Database.File = "packwatch.db"
	}
}

// CronSpec returns Interval as a cron spec.
func (c Config) CronSpec() (string, error) {
	interval := strings.TrimSpace(c.Interval)
	if interval == "" {
		return "", fmt.Errorf("no refresh interval configured")
	}
	if d, err := time.ParseDuration(interval); err == nil {
		if d <= 0 {
			return "", fmt.Errorf("refresh interval must be positive, got %s", d)
		}
		return "@every " + d.String(), nil
	}
	return interval, nil
}

func LoadConfig(path string) (Config, error) {
	cfg, err := configutil.Load[Config](path, envPrefix)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}
