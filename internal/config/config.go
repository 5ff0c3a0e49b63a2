package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"roombook/internal/models"
	"roombook/internal/slots"
)

// EnvPath names the variable that overrides the config location.
const EnvPath = "ROOMBOOK_CONFIG_PATH"

type Config struct {
	Server struct {
		Port                  int      `yaml:"port"`
		APIKeys               []string `yaml:"api_keys"`
		RateLimitRPS          float64  `yaml:"rate_limit_rps"`
		RateLimitBurst        int      `yaml:"rate_limit_burst"`
		RequestTimeoutSeconds int      `yaml:"request_timeout_seconds"`
	} `yaml:"server"`

	Database struct {
		// Driver is "sqlite" (default) or "memory".
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
		LockTTLSeconds  int    `yaml:"lock_ttl_seconds"`
	} `yaml:"redis"`

	Scheduler SchedulerConfig `yaml:"scheduler"`

	Rooms struct {
		Path                 string `yaml:"path"`
		WatchIntervalSeconds int    `yaml:"watch_interval_seconds"`
	} `yaml:"rooms"`

	Backup BackupConfig `yaml:"backup"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"logging"`
}

// SchedulerConfig holds the operating timezone and the bookable day.
type SchedulerConfig struct {
	Timezone      string `yaml:"timezone"`
	DefaultStatus string `yaml:"default_status"`
	DayStart      string `yaml:"day_start"`
	DayEnd        string `yaml:"day_end"`
	SlotMinutes   int    `yaml:"slot_minutes"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Load reads the YAML config at path, falling back to $ROOMBOOK_CONFIG_PATH
// and then configs/config.yaml.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.Database.Driver == "sqlite" {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	// Unset ${VAR} references expand to empty keys.
	keys := c.Server.APIKeys[:0]
	for _, k := range c.Server.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	c.Server.APIKeys = keys

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitRPS == 0 {
		c.Server.RateLimitRPS = 20
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = 40
	}
	if c.Server.RequestTimeoutSeconds == 0 {
		c.Server.RequestTimeoutSeconds = 15
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/roombook.db"
	}
	if c.Redis.CacheTTLSeconds == 0 {
		c.Redis.CacheTTLSeconds = 60
	}
	if c.Redis.LockTTLSeconds == 0 {
		c.Redis.LockTTLSeconds = 10
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = "UTC"
	}
	if c.Scheduler.DefaultStatus == "" {
		c.Scheduler.DefaultStatus = string(models.StatusConfirmed)
	}
	if c.Scheduler.DayStart == "" {
		c.Scheduler.DayStart = "07:00"
	}
	if c.Scheduler.DayEnd == "" {
		c.Scheduler.DayEnd = "22:00"
	}
	if c.Scheduler.SlotMinutes == 0 {
		c.Scheduler.SlotMinutes = 30
	}
	if c.Rooms.WatchIntervalSeconds == 0 {
		c.Rooms.WatchIntervalSeconds = 30
	}
	if c.Backup.IntervalHours == 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks settings the service cannot start without.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("server: rate limit cannot be negative")
	}
	return c.Scheduler.Validate()
}

// Validate checks the scheduler settings.
func (s SchedulerConfig) Validate() error {
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	switch models.Status(s.DefaultStatus) {
	case models.StatusPending, models.StatusConfirmed:
	default:
		return fmt.Errorf("scheduler.default_status: must be pending or confirmed, got %q", s.DefaultStatus)
	}
	if s.SlotMinutes <= 0 {
		return fmt.Errorf("scheduler.slot_minutes must be positive")
	}
	if _, err := slots.GenerateTimeSlots(s.Window(), s.SlotDuration()); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	return nil
}

// Location returns the operating timezone.
func (s SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Window returns the bookable day window.
func (s SchedulerConfig) Window() slots.Window {
	return slots.Window{Start: s.DayStart, End: s.DayEnd}
}

// SlotDuration returns the slot granularity.
func (s SchedulerConfig) SlotDuration() time.Duration {
	return time.Duration(s.SlotMinutes) * time.Minute
}

// Status returns the status new reservations get when none is requested.
func (s SchedulerConfig) Status() models.Status {
	return models.Status(s.DefaultStatus)
}

// RequestTimeout returns the per-request deadline of the HTTP API.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns how long room catalog entries stay in Redis.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

// LockTTL returns the lease of a distributed room lock.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}

// RoomsWatchInterval returns how often rooms.yaml is polled for changes.
func (c *Config) RoomsWatchInterval() time.Duration {
	return time.Duration(c.Rooms.WatchIntervalSeconds) * time.Second
}
