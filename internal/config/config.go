package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Backends lists the accepted DATA_BACKEND values.
var Backends = []string{"memory", "sqlite", "postgres"}

type Config struct {
	// HTTP Server
	Port               string `koanf:"PORT"`
	CORSAllowedOrigins string `koanf:"CORS_ALLOWED_ORIGINS"`
	RateLimitPerMinute int    `koanf:"RATE_LIMIT_PER_MINUTE"`
	SecureCookies      bool   `koanf:"SECURE_COOKIES"`
	TrustedProxies     string `koanf:"TRUSTED_PROXIES"`

	// Backend selection
	DataBackend string `koanf:"DATA_BACKEND"`

	// SQLite
	SQLiteDBPath string `koanf:"SQLITE_DB_PATH"`

	// PostgreSQL
	PostgresURL      string `koanf:"POSTGRES_URL"`
	PostgresHost     string `koanf:"POSTGRES_HOST"`
	PostgresPort     int    `koanf:"POSTGRES_PORT"`
	PostgresDB       string `koanf:"POSTGRES_DB"`
	PostgresUser     string `koanf:"POSTGRES_USER"`
	PostgresPassword string `koanf:"POSTGRES_PASSWORD"`
	PostgresSSLMode  string `koanf:"POSTGRES_SSLMODE"`

	// AMQP
	AMQPURL      string `koanf:"AMQP_URL"`
	AMQPExchange string `koanf:"AMQP_EXCHANGE"`
	AMQPQueue    string `koanf:"AMQP_QUEUE"`

	// Google Sheets export
	GoogleSpreadsheetID      string `koanf:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName          string `koanf:"GOOGLE_SHEET_NAME"`
	GoogleServiceAccountFile string `koanf:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleServiceAccountJSON string `koanf:"GOOGLE_SERVICE_ACCOUNT_JSON"`

	// Workers
	SyncBatchSize  int           `koanf:"SYNC_BATCH_SIZE"`
	SyncInterval   time.Duration `koanf:"SYNC_INTERVAL"`
	DigestInterval time.Duration `koanf:"DIGEST_INTERVAL"`

	// Domain
	SessionTTL        time.Duration `koanf:"SESSION_TTL"`
	Timezone          string        `koanf:"TIMEZONE"`
	CategoryRulesFile string        `koanf:"CATEGORY_RULES_FILE"`
	ReportCacheSize   int           `koanf:"REPORT_CACHE_SIZE"`
	ReportCacheTTL    time.Duration `koanf:"REPORT_CACHE_TTL"`

	// Logging
	LogLevel  string `koanf:"LOG_LEVEL"`
	LogFormat string `koanf:"LOG_FORMAT"`
}

// Defaults returns the configuration used when no variable is set.
func Defaults() Config {
	return Config{
		Port:               "8081",
		CORSAllowedOrigins: "*",
		RateLimitPerMinute: 60,
		DataBackend:        "sqlite",
		SQLiteDBPath:       "./data/weekspend.db",
		PostgresPort:       5432,
		PostgresSSLMode:    "disable",
		AMQPExchange:       "weekspend",
		AMQPQueue:          "export_expenses",
		GoogleSheetName:    "Expenses",
		SyncBatchSize:      10,
		SyncInterval:       30 * time.Second,
		DigestInterval:     time.Hour,
		SessionTTL:         30 * 24 * time.Hour,
		Timezone:           "Local",
		ReportCacheSize:    256,
		ReportCacheTTL:     5 * time.Minute,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads the process environment over Defaults. Empty variables are
// treated as unset.
func Load() (*Config, error) {
	k := koanf.New(".")
	provider := env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return key, value
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}

// Location resolves Timezone, used to decide which calendar day "today" is.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// AllowedOrigins splits CORSAllowedOrigins on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// TrustedProxyList splits TrustedProxies on commas.
func (c *Config) TrustedProxyList() []string {
	var out []string
	for _, p := range strings.Split(c.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ExportEnabled reports whether both AMQP and Google Sheets are configured.
func (c *Config) ExportEnabled() bool {
	return c.AMQPURL != "" && c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(Backends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "postgres":
		if c.PostgresURL == "" {
			if c.PostgresHost == "" {
				errors = append(errors, "POSTGRES_HOST is required when using postgres backend without POSTGRES_URL")
			}
			if c.PostgresDB == "" {
				errors = append(errors, "POSTGRES_DB is required when using postgres backend without POSTGRES_URL")
			}
			if c.PostgresUser == "" {
				errors = append(errors, "POSTGRES_USER is required when using postgres backend without POSTGRES_URL")
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.DigestInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid digest interval %v: must be at least 1 minute", c.DigestInterval))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.CategoryRulesFile != "" {
		if _, err := os.Stat(c.CategoryRulesFile); err != nil {
			errors = append(errors, fmt.Sprintf("category rules file not readable: %s", c.CategoryRulesFile))
		}
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.ReportCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must be at least 1", c.ReportCacheSize))
	}

	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateExport checks the settings the export worker cannot run without.
func (c *Config) ValidateExport() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the export worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the export worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME is required for the export worker")
	}
	if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the export worker")
	}
	if len(errors) > 0 {
		return fmt.Errorf("export configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
