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

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// Data backends.
const (
	BackendMemory = "memory"
	BackendRemote = "remote"
	BackendSheets = "sheets"
)

// Session backends.
const (
	SessionMemory = "memory"
	SessionSQLite = "sqlite"
)

var (
	dataBackends    = []string{BackendMemory, BackendRemote, BackendSheets}
	sessionBackends = []string{SessionMemory, SessionSQLite}
	logLevels       = []string{"debug", "info", "warn", "warning", "error"}
	logFormats      = []string{"text", "json"}
)

type Config struct {
	// HTTP Server
	Port string

	// Record tables
	DataBackend     string
	DataDir         string
	TableAPIURL     string
	TableAPIKey     string
	TableAppID      string
	TableAPILocale  string
	TableAPITimeout time.Duration

	// Google Sheets, used by the sheets backend and by spreadsheet export
	GoogleSpreadsheetID      string
	ExportSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Sessions
	SessionBackend string
	SQLiteDBPath   string
	SessionTTL     time.Duration
	CookieSecure   bool
	// LoginRateLimit caps login and write attempts per client per minute.
	LoginRateLimit int

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Views
	CollationLanguage string
	CacheTTL          time.Duration
	CleanupInterval   time.Duration

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8081")
	v.SetDefault("DATA_BACKEND", BackendMemory)
	v.SetDefault("DATA_DIR", "./data/seed")
	v.SetDefault("TABLE_API_URL", "https://api.appsheet.com/api/v2")
	v.SetDefault("TABLE_API_LOCALE", "en-US")
	v.SetDefault("TABLE_API_TIMEOUT", 30*time.Second)
	v.SetDefault("SESSION_BACKEND", SessionMemory)
	v.SetDefault("SQLITE_DB_PATH", "./data/bizdash.db")
	v.SetDefault("SESSION_TTL", 8*time.Hour)
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("AMQP_EXCHANGE", "bizdash")
	v.SetDefault("AMQP_QUEUE", "sheet_exports")
	v.SetDefault("COLLATION_LANGUAGE", "und")
	v.SetDefault("CACHE_TTL", 30*time.Minute)
	v.SetDefault("CLEANUP_INTERVAL", 5*time.Minute)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads .env when present, then the optional CONFIG_FILE, then the
// environment. Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Port: v.GetString("PORT"),

		DataBackend:     strings.ToLower(v.GetString("DATA_BACKEND")),
		DataDir:         v.GetString("DATA_DIR"),
		TableAPIURL:     v.GetString("TABLE_API_URL"),
		TableAPIKey:     v.GetString("TABLE_API_KEY"),
		TableAppID:      v.GetString("TABLE_APP_ID"),
		TableAPILocale:  v.GetString("TABLE_API_LOCALE"),
		TableAPITimeout: v.GetDuration("TABLE_API_TIMEOUT"),

		GoogleSpreadsheetID:      v.GetString("GOOGLE_SPREADSHEET_ID"),
		ExportSpreadsheetID:      v.GetString("EXPORT_SPREADSHEET_ID"),
		GoogleServiceAccountFile: v.GetString("GOOGLE_SERVICE_ACCOUNT_FILE"),
		GoogleServiceAccountJSON: v.GetString("GOOGLE_SERVICE_ACCOUNT_JSON"),

		SessionBackend: strings.ToLower(v.GetString("SESSION_BACKEND")),
		SQLiteDBPath:   v.GetString("SQLITE_DB_PATH"),
		SessionTTL:     v.GetDuration("SESSION_TTL"),
		CookieSecure:   v.GetBool("COOKIE_SECURE"),
		LoginRateLimit: v.GetInt("LOGIN_RATE_LIMIT"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),
		AMQPQueue:    v.GetString("AMQP_QUEUE"),

		CollationLanguage: v.GetString("COLLATION_LANGUAGE"),
		CacheTTL:          v.GetDuration("CACHE_TTL"),
		CleanupInterval:   v.GetDuration("CLEANUP_INTERVAL"),

		LogLevel:  strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat: strings.ToLower(v.GetString("LOG_FORMAT")),
	}
}

// ExportTarget is the spreadsheet exports are written to.
func (c *Config) ExportTarget() string {
	if c.ExportSpreadsheetID != "" {
		return c.ExportSpreadsheetID
	}
	return c.GoogleSpreadsheetID
}

// Language parses CollationLanguage, falling back to the root locale.
func (c *Config) Language() language.Tag {
	tag, err := language.Parse(c.CollationLanguage)
	if err != nil {
		return language.Und
	}
	return tag
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(dataBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, dataBackends))
	}

	switch c.DataBackend {
	case BackendMemory:
		if c.DataDir != "" {
			if info, err := os.Stat(c.DataDir); err == nil && !info.IsDir() {
				errors = append(errors, fmt.Sprintf("data directory '%s' is not a directory", c.DataDir))
			}
		}
	case BackendRemote:
		if c.TableAPIURL == "" {
			errors = append(errors, "TABLE_API_URL is required when using remote backend")
		} else if u, err := url.Parse(c.TableAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid table API URL '%s': must be http or https", c.TableAPIURL))
		}
		if c.TableAppID == "" {
			errors = append(errors, "TABLE_APP_ID is required when using remote backend")
		}
		if c.TableAPIKey == "" {
			errors = append(errors, "TABLE_API_KEY is required when using remote backend")
		}
		if c.TableAPITimeout <= 0 {
			errors = append(errors, fmt.Sprintf("invalid table API timeout %v: must be positive", c.TableAPITimeout))
		}
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		errors = append(errors, c.validateServiceAccount()...)
	}

	if !slices.Contains(sessionBackends, c.SessionBackend) {
		errors = append(errors, fmt.Sprintf("invalid session backend '%s': must be one of %v", c.SessionBackend, sessionBackends))
	}
	if c.SessionBackend == SessionSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite sessions")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.LoginRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid login rate limit %d: must be at least 1", c.LoginRateLimit))
	}

	// Validate AMQP URL if provided
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

	if _, err := language.Parse(c.CollationLanguage); err != nil {
		errors = append(errors, fmt.Sprintf("invalid collation language '%s': %v", c.CollationLanguage, err))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.CleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cleanup interval %v: must be at least 1 second", c.CleanupInterval))
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, logLevels))
	}
	if c.LogFormat != "" && !slices.Contains(logFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, logFormats))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateExport checks the settings the export worker needs.
func (c *Config) ValidateExport() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the export worker")
	}
	if c.ExportTarget() == "" {
		errors = append(errors, "EXPORT_SPREADSHEET_ID or GOOGLE_SPREADSHEET_ID is required for the export worker")
	}
	errors = append(errors, c.validateServiceAccount()...)
	if len(errors) > 0 {
		return fmt.Errorf("export configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateServiceAccount() []string {
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			return []string{fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile)}
		}
		return nil
	}
	if c.GoogleServiceAccountJSON == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		return []string{"one of GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_APPLICATION_CREDENTIALS must be provided"}
	}
	return nil
}
