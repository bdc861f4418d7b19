package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Cache backends.
const (
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the application.
type Config struct {
	Reddit    RedditConfig    `toml:"reddit"`
	Cache     CacheConfig     `toml:"cache"`
	Sheets    SheetsConfig    `toml:"sheets"`
	Search    SearchConfig    `toml:"search"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Server    ServerConfig    `toml:"server"`
	Logging   LoggingConfig   `toml:"logging"`
	Normalize NormalizeConfig `toml:"normalize"`

	// DisplayTimezone is the IANA zone post times are logged in.
	DisplayTimezone string `toml:"display_timezone"`
}

// RedditConfig holds the script-app credentials and the searched subreddit.
type RedditConfig struct {
	ClientID          string `toml:"client_id"`
	ClientSecret      string `toml:"client_secret"`
	Username          string `toml:"username"`
	Password          string `toml:"password"`
	AppName           string `toml:"app_name"`
	Subreddit         string `toml:"subreddit"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	// Backend is one of "redis", "sqlite" or "postgres".
	Backend string `toml:"backend"`

	RedisURL      string `toml:"redis_url"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	// DSN is the SQLite path or the Postgres connection string.
	DSN string `toml:"dsn"`
}

// SheetsConfig configures document downloads.
type SheetsConfig struct {
	// CredentialsFile is a Google service account key. Empty means
	// application default credentials.
	CredentialsFile   string        `toml:"credentials_file"`
	DisableAPI        bool          `toml:"disable_api"`
	ExportTimeout     time.Duration `toml:"export_timeout"`
	MaxAttempts       int           `toml:"max_attempts"`
	QuotaWait         time.Duration `toml:"quota_wait"`
	RetryWait         time.Duration `toml:"retry_wait"`
	RequestsPerMinute int           `toml:"requests_per_minute"`
}

// SearchConfig is the default forum query of scheduled runs.
type SearchConfig struct {
	Query      string `toml:"query"`
	Sort       string `toml:"sort"`
	TimeWindow string `toml:"time_window"`
	Limit      int    `toml:"limit"`
}

// ScheduleConfig controls periodic runs of the server.
type ScheduleConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`

	// Normalize runs the header pass after each ingestion.
	Normalize bool `toml:"normalize"`

	RunAtStartup bool `toml:"run_at_startup"`
}

// ServerConfig configures the HTTP status server.
type ServerConfig struct {
	Port int `toml:"port"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	// Format is "json" or "text".
	Format string `toml:"format"`
	Level  string `toml:"level"`

	// File, when set, receives a copy of every log line.
	File string `toml:"file"`
}

// NormalizeConfig configures the header pass.
type NormalizeConfig struct {
	// ExportDir, when set, receives a CSV per normalized sheet.
	ExportDir string `toml:"export_dir"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Reddit: RedditConfig{
			AppName:           "disc-sheets",
			Subreddit:         "discexchange",
			RequestsPerMinute: 60,
		},
		Cache: CacheConfig{
			Backend:   BackendRedis,
			RedisAddr: "localhost:6379",
			DSN:       "disc-sheets.db",
		},
		Sheets: SheetsConfig{
			ExportTimeout:     30 * time.Second,
			MaxAttempts:       3,
			QuotaWait:         65 * time.Second,
			RetryWait:         5 * time.Second,
			RequestsPerMinute: 60,
		},
		Search: SearchConfig{
			Query:      "spreadsheet",
			Sort:       "relevance",
			TimeWindow: "all",
		},
		Schedule: ScheduleConfig{
			Enabled: true,
			Cron:    "@hourly",
		},
		Server: ServerConfig{
			Port: 3000,
		},
		Logging: LoggingConfig{
			Format: "json",
			Level:  "info",
		},
		DisplayTimezone: "America/Denver",
	}
}

// Load builds the configuration from defaults, then the TOML file at path (if
// it exists), then a .env file in the working directory, then environment
// variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Reddit.ClientID, "REDDIT_CLIENT_ID")
	setString(&cfg.Reddit.ClientSecret, "REDDIT_CLIENT_SECRET")
	setString(&cfg.Reddit.Username, "REDDIT_USERNAME")
	setString(&cfg.Reddit.Password, "REDDIT_PASSWORD")
	setString(&cfg.Reddit.Subreddit, "REDDIT_SUBREDDIT")

	setString(&cfg.Cache.Backend, "CACHE_BACKEND")
	setString(&cfg.Cache.RedisURL, "REDIS_URL")
	setString(&cfg.Cache.DSN, "DATABASE_URL")

	setString(&cfg.Sheets.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")

	setString(&cfg.Schedule.Cron, "SCHEDULE_CRON")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Logging.File, "LOG_FILE")
	setString(&cfg.Normalize.ExportDir, "EXPORT_DIR")
	setString(&cfg.DisplayTimezone, "DISPLAY_TIMEZONE")

	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendRedis, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("invalid cache backend %q", c.Cache.Backend)
	}

	if c.Schedule.Enabled {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("invalid schedule cron %q: %w", c.Schedule.Cron, err)
		}
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}

	if c.Sheets.MaxAttempts < 1 {
		return fmt.Errorf("sheets.max_attempts must be at least 1")
	}
	return nil
}

// Location returns the display timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid display timezone %q: %w", c.DisplayTimezone, err)
	}
	return loc, nil
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.Logging.Level, err)
	}
	return level, nil
}

// HasRedditCredentials reports whether a forum login is configured.
func (c *Config) HasRedditCredentials() bool {
	return c.Reddit.ClientID != "" && c.Reddit.ClientSecret != "" &&
		c.Reddit.Username != "" && c.Reddit.Password != ""
}
