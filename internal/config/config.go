// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.omni/config.yaml)
//  3. Default values
//
// Sensitive values (Tavily API key, JWT secret, Postgres password) are
// masked in MarshalJSON and String so the config can be logged safely.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for validation failures.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates an unsupported chat model.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidStorageBackend indicates a backend outside memory, file,
	// or postgres.
	ErrInvalidStorageBackend = errors.New("invalid storage backend")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrMissingJWTSecret indicates the JWT secret is not set.
	ErrMissingJWTSecret = errors.New("missing JWT secret")

	// ErrInvalidJWTSecret indicates the JWT secret is too short.
	ErrInvalidJWTSecret = errors.New("invalid JWT secret")
)

// Storage backend identifiers used in Config.StorageBackend.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// minJWTSecretLength is the minimum accepted HS256 secret length.
const minJWTSecretLength = 32

// Config stores application configuration.
// Sensitive fields are explicitly masked in MarshalJSON; when adding a new
// secret field, update that method.
type Config struct {
	// Chat model selection. Unqualified names get the googleai/ prefix.
	ModelName string `mapstructure:"model_name" json:"model_name"`

	// TavilyAPIKey enables the real-time web-search tool. Empty leaves the
	// tool degraded rather than failing startup.
	TavilyAPIKey string `mapstructure:"tavily_api_key" json:"tavily_api_key"` // SENSITIVE: masked in MarshalJSON

	// Server configuration
	Addr       string `mapstructure:"addr" json:"addr"`
	JWTSecret  string `mapstructure:"jwt_secret" json:"jwt_secret"` // SENSITIVE: masked in MarshalJSON
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"`

	// Rate limiting (per client IP)
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second" json:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`

	// Storage configuration. DataDir applies to the file backend only.
	StorageBackend string `mapstructure:"storage_backend" json:"storage_backend"`
	DataDir        string `mapstructure:"data_dir" json:"data_dir"`

	// PostgreSQL connection (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".omni")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults(configDir)
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(configDir string) {
	viper.SetDefault("model_name", "gemini-2.0-flash")

	viper.SetDefault("addr", ":8080")
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_limit_per_second", 5.0)
	viper.SetDefault("rate_limit_burst", 10)

	viper.SetDefault("storage_backend", BackendFile)
	viper.SetDefault("data_dir", filepath.Join(configDir, "data"))

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "omni")
	viper.SetDefault("postgres_password", "omni_dev_password")
	viper.SetDefault("postgres_db_name", "omni")
	viper.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by the Genkit plugin, not via Viper.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "OMNI_MODEL_NAME")
	mustBind("tavily_api_key", "TAVILY_API_KEY")
	mustBind("addr", "OMNI_ADDR")
	mustBind("jwt_secret", "OMNI_JWT_SECRET")
	mustBind("trust_proxy", "OMNI_TRUST_PROXY")
	mustBind("storage_backend", "OMNI_STORAGE_BACKEND")
	mustBind("data_dir", "OMNI_DATA_DIR")
}

// maskedValue is the placeholder for masked sensitive data. Full-width
// blocks avoid substring matches against the real secret.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 characters or
// fewer are fully masked; longer ones keep the first and last 2 characters
// for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.TavilyAPIKey = maskSecret(a.TavilyAPIKey)
	a.JWTSecret = maskSecret(a.JWTSecret)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified chat model name.
// A name already containing "/" is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "googleai/" + c.ModelName
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
