package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/certvault/certauth/internal/auth/service"
	"github.com/certvault/certauth/pkg/httpx"
	"github.com/certvault/certauth/pkg/jwtx"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is read from an optional YAML file (AUTH_CONFIG_FILE) and then from
// the environment. Environment variables win.
type Config struct {
	Issuer              string        `yaml:"issuer"`      // Issuer claim for tokens (default: certauth)
	JWTSecret           string        `yaml:"jwt_secret"`  // Required: HMAC secret, at least 32 bytes
	AccessTTL           time.Duration `yaml:"access_ttl"`  // Access token lifetime (default: 15m)
	RefreshTTL          time.Duration `yaml:"refresh_ttl"` // Refresh token lifetime (default: 24h)
	RotateRefreshTokens bool          `yaml:"rotate_refresh_tokens"`

	InviteBaseURL string        `yaml:"invite_base_url"` // Prefix of issuer invitation links
	InviteTTL     time.Duration `yaml:"invite_ttl"`      // Invitation lifetime (default: 7 days)

	DBDriver       string `yaml:"db_driver"`         // sqlite or postgres (default: sqlite)
	DatabaseFile   string `yaml:"database_file"`     // SQLite file (default: ./auth.db)
	DatabaseURL    string `yaml:"database_url"`      // Postgres connection URL
	DBMaxOpenConns int    `yaml:"db_max_open_conns"` // Pool size (default: 10)
	PepperFile     string `yaml:"pepper_file"`       // Password pepper file (default: ./pepper)

	AdminEmail    string `yaml:"admin_email"` // Seeded on startup when set
	AdminPassword string `yaml:"admin_password"`

	RedisURL string `yaml:"redis_url"` // Shared rate limit counters; in-process when empty

	// Address ranges of reverse proxies whose X-Forwarded-For is believed.
	// Empty means rate limits key on the connection address.
	TrustedProxies []string `yaml:"trusted_proxies"`

	Env                  string        `yaml:"env"`        // dev, staging, prod (default: dev)
	LogLevel             string        `yaml:"log_level"`  // debug, info, warn, error (default: info)
	LogFormat            string        `yaml:"log_format"` // json, text (default: json)
	Port                 int           `yaml:"port"`       // HTTP port (default: 8080)
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period"`
	HousekeepingInterval time.Duration `yaml:"housekeeping_interval"`
}

func defaultConfig() Config {
	return Config{
		Issuer:               "certauth",
		AccessTTL:            jwtx.DefaultAccessTokenTTL,
		RefreshTTL:           jwtx.DefaultRefreshTokenTTL,
		InviteBaseURL:        "http://localhost:3000",
		InviteTTL:            service.DefaultInvitationTTL,
		DBDriver:             DriverSQLite,
		DatabaseFile:         "auth.db",
		DBMaxOpenConns:       10,
		PepperFile:           "pepper",
		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 8080,
		ShutdownGracePeriod:  10 * time.Second,
		HousekeepingInterval: 1 * time.Hour,
	}
}

// LoadConfig builds the configuration. It does not validate it.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("AUTH_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.Issuer = getEnvOrDefault("AUTH_ISSUER", cfg.Issuer)
	cfg.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.JWTSecret)
	cfg.AccessTTL = getEnvDurationOrDefault("AUTH_ACCESS_TTL", cfg.AccessTTL)
	cfg.RefreshTTL = getEnvDurationOrDefault("AUTH_REFRESH_TTL", cfg.RefreshTTL)
	cfg.RotateRefreshTokens = getEnvBoolOrDefault("AUTH_ROTATE_REFRESH_TOKENS", cfg.RotateRefreshTokens)
	cfg.InviteBaseURL = getEnvOrDefault("AUTH_INVITE_BASE_URL", cfg.InviteBaseURL)
	cfg.InviteTTL = getEnvDurationOrDefault("AUTH_INVITE_TTL", cfg.InviteTTL)
	cfg.DBDriver = getEnvOrDefault("AUTH_DB_DRIVER", cfg.DBDriver)
	cfg.DatabaseFile = getEnvOrDefault("AUTH_DATABASE_FILE", cfg.DatabaseFile)
	cfg.DatabaseURL = getEnvOrDefault("AUTH_DATABASE_URL", cfg.DatabaseURL)
	cfg.DBMaxOpenConns = getEnvIntOrDefault("DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns)
	cfg.PepperFile = getEnvOrDefault("AUTH_PEPPER_FILE", cfg.PepperFile)
	cfg.AdminEmail = getEnvOrDefault("AUTH_ADMIN_EMAIL", cfg.AdminEmail)
	cfg.AdminPassword = getEnvOrDefault("AUTH_ADMIN_PASSWORD", cfg.AdminPassword)
	cfg.RedisURL = getEnvOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.TrustedProxies = getEnvListOrDefault("TRUSTED_PROXIES", cfg.TrustedProxies)
	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)
	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)
	cfg.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", cfg.HousekeepingInterval)

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error

	switch {
	case c.JWTSecret == "":
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	case len(c.JWTSecret) < jwtx.MinSecretLength:
		errs = append(errs, fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes", jwtx.MinSecretLength))
	}

	if c.AccessTTL <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TTL must be positive"))
	}
	if c.RefreshTTL < c.AccessTTL {
		errs = append(errs, errors.New("AUTH_REFRESH_TTL must not be shorter than AUTH_ACCESS_TTL"))
	}
	if c.InviteTTL <= 0 {
		errs = append(errs, errors.New("AUTH_INVITE_TTL must be positive"))
	}
	if u, err := url.Parse(c.InviteBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("AUTH_INVITE_BASE_URL %q is not an absolute URL", c.InviteBaseURL))
	}

	switch c.DBDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_FILE is required for sqlite"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_DB_DRIVER %q is not one of sqlite, postgres", c.DBDriver))
	}

	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("AUTH_ADMIN_EMAIL and AUTH_ADMIN_PASSWORD must be set together"))
	}
	if _, err := httpx.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma separated variable.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
