// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/filecatman/catalog/internal/domain"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Data     DataConfig
	Database DatabaseConfig
	Catalog  CatalogConfig
	Audit    AuditConfig
	Search   SearchConfig
	Server   ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds the location of on-disk state.
type DataConfig struct {
	BasePath string // default: ~/FileCatman
}

// DatabaseConfig selects the catalog database.
type DatabaseConfig struct {
	Driver string // sqlite or mysql (default: sqlite)
	Path   string // SQLite file (default: {data}/catalog.db)
	DSN    string // MySQL DSN, required for mysql
}

// CatalogConfig holds category tree settings.
type CatalogConfig struct {
	// CategoryLevels overrides the catLvls option when >= 0.
	CategoryLevels int
	// TreeStrategy is joins or recursive (default: joins)
	TreeStrategy string
}

// AuditConfig holds count audit scheduling.
type AuditConfig struct {
	// Schedule is a cron spec; empty disables the scheduled audit.
	Schedule string
}

// SearchConfig holds full-text search configuration.
type SearchConfig struct {
	Enabled   bool
	IndexPath string // default: {data}/search.bleve
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 30s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins  []string      // Allowed browser origins (default: none)
	RateLimitRPS float64       // Requests per second per client, 0 disables
	RateBurst    int           // Burst size (default: 20)
}

// LoadConfig loads configuration from the process arguments. See Load.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for catalog data")

	dbDriver := fs.String("db-driver", "", "Database driver: sqlite or mysql (default: sqlite)")
	dbPath := fs.String("db-path", "", "SQLite database file")
	dbDSN := fs.String("db-dsn", "", "MySQL data source name")

	categoryLevels := fs.String("category-levels", "", "Override the catLvls option (0-10)")
	treeStrategy := fs.String("tree-strategy", "", "Tree query strategy: joins or recursive")
	auditSchedule := fs.String("audit-schedule", "", "Cron spec for the periodic count audit")
	searchEnabled := fs.String("search-enabled", "", "Enable the full-text index (default: true)")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 30s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma separated allowed origins")
	rateLimit := fs.String("rate-limit", "", "Requests per second per client (0 disables)")
	rateBurst := fs.String("rate-burst", "", "Rate limit burst (default: 20)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// godotenv never overrides variables that are already set.
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %q: %w", *envFile, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getConfigValue(*dbDriver, "DB_DRIVER", "sqlite")),
			Path:   getConfigValue(*dbPath, "DB_PATH", ""),
			DSN:    getConfigValue(*dbDSN, "DB_DSN", ""),
		},
		Catalog: CatalogConfig{
			CategoryLevels: getIntConfigValue(*categoryLevels, "CATEGORY_LEVELS", -1),
			TreeStrategy:   strings.ToLower(getConfigValue(*treeStrategy, "TREE_STRATEGY", "joins")),
		},
		Audit: AuditConfig{
			Schedule: getConfigValue(*auditSchedule, "AUDIT_SCHEDULE", ""),
		},
		Search: SearchConfig{
			Enabled: getBoolConfigValue(*searchEnabled, "SEARCH_ENABLED", true),
		},
		Server: ServerConfig{
			Port:         getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins:  splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "")),
			RateLimitRPS: getFloatConfigValue(*rateLimit, "RATE_LIMIT_RPS", 0),
			RateBurst:    getIntConfigValue(*rateBurst, "RATE_LIMIT_BURST", 20),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = parseDuration(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = parseDuration(*writeTimeout, "SERVER_WRITE_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = parseDuration(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("sqlite database path cannot be empty after expansion")
		}
	case "mysql":
		if c.Database.DSN == "" {
			return errors.New("DB_DSN is required for the mysql driver")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite or mysql)", c.Database.Driver)
	}

	if c.Catalog.CategoryLevels > domain.MaxCategoryLevels {
		return fmt.Errorf("category levels %d exceeds maximum %d", c.Catalog.CategoryLevels, domain.MaxCategoryLevels)
	}

	switch c.Catalog.TreeStrategy {
	case "joins", "recursive":
	default:
		return fmt.Errorf("invalid tree strategy: %s (must be joins or recursive)", c.Catalog.TreeStrategy)
	}

	if c.Server.RateLimitRPS < 0 {
		return errors.New("rate limit cannot be negative")
	}

	return nil
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandPaths resolves the data directory and the files that default into it.
func (c *Config) expandPaths() error {
	defaultData := ""
	if c.Data.BasePath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		defaultData = filepath.Join(homeDir, "FileCatman")
	}

	var err error
	if c.Data.BasePath, err = expandPath(c.Data.BasePath, defaultData); err != nil {
		return err
	}
	if c.Database.Path, err = expandPath(c.Database.Path, filepath.Join(c.Data.BasePath, "catalog.db")); err != nil {
		return err
	}
	if c.Search.IndexPath, err = expandPath(c.Search.IndexPath, filepath.Join(c.Data.BasePath, "search.bleve")); err != nil {
		return err
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

func parseDuration(flagValue, envKey, defaultValue string) (time.Duration, error) {
	s := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), s, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
