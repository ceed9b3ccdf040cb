package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	PasswordReset PasswordResetConfig `mapstructure:"password_reset"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Maintenance   MaintenanceConfig   `mapstructure:"maintenance"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Admin         AdminConfig         `mapstructure:"admin"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	JWTSecret            string        `mapstructure:"jwt_secret"`
	JWTIssuer            string        `mapstructure:"jwt_issuer"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration"`
	BCryptCost           int           `mapstructure:"bcrypt_cost"`
	CookieSecure         bool          `mapstructure:"cookie_secure"`
	RevocationEnabled    bool          `mapstructure:"revocation_enabled"`
	ExposeResetToken     bool          `mapstructure:"expose_reset_token"`
}

type PasswordResetConfig struct {
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	FrontendURL string        `mapstructure:"frontend_url"`
}

type StorageConfig struct {
	CloudURL string `mapstructure:"cloud_url"`
}

type MaintenanceConfig struct {
	InactiveRetention time.Duration `mapstructure:"inactive_retention"`
	Interval          time.Duration `mapstructure:"interval"`
}

type RateLimitConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`

	// TrustProxy keys clients on the last X-Forwarded-For hop. Enable only behind a proxy that appends it.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	DefaultAccessTokenDuration  = time.Hour
	DefaultRefreshTokenDuration = 7 * 24 * time.Hour
	DefaultResetTokenTTL        = 10 * time.Minute
	DefaultInactiveRetention    = 15 * 24 * time.Hour
)

// ApplyDefaults fills every zero-valued setting that has a sensible default.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Security.AccessTokenDuration == 0 {
		c.Security.AccessTokenDuration = DefaultAccessTokenDuration
	}
	if c.Security.RefreshTokenDuration == 0 {
		c.Security.RefreshTokenDuration = DefaultRefreshTokenDuration
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	if c.Security.JWTIssuer == "" {
		c.Security.JWTIssuer = "user-management-service"
	}
	if c.PasswordReset.TokenTTL == 0 {
		c.PasswordReset.TokenTTL = DefaultResetTokenTTL
	}
	if c.Maintenance.InactiveRetention == 0 {
		c.Maintenance.InactiveRetention = DefaultInactiveRetention
	}
	if c.Maintenance.Interval == 0 {
		c.Maintenance.Interval = time.Hour
	}
	if c.RateLimit.PerSecond == 0 {
		c.RateLimit.PerSecond = 5
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "json"
	}
}

// LoadConfigFromEnv builds the configuration for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:        getEnv("HTTP_BASE_URL", ""),
			AllowedOrigins: getEnv("HTTP_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Source:          getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Security: SecurityConfig{
			JWTSecret:            getEnv("JWT_SECRET", ""),
			JWTIssuer:            getEnv("JWT_ISSUER", ""),
			AccessTokenDuration:  getEnvAsDuration("ACCESS_TOKEN_DURATION", DefaultAccessTokenDuration),
			RefreshTokenDuration: getEnvAsDuration("REFRESH_TOKEN_DURATION", DefaultRefreshTokenDuration),
			BCryptCost:           getEnvAsInt("BCRYPT_COST", 12),
			CookieSecure:         getEnvAsBool("COOKIE_SECURE", true),
			RevocationEnabled:    getEnvAsBool("TOKEN_REVOCATION_ENABLED", false),
			ExposeResetToken:     getEnvAsBool("EXPOSE_RESET_TOKEN", false),
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:    getEnvAsDuration("RESET_TOKEN_TTL", DefaultResetTokenTTL),
			FrontendURL: getEnv("FRONTEND_APP_ADDRESS", ""),
		},
		Storage: StorageConfig{
			CloudURL: getEnv("CLOUD_URL", ""),
		},
		Maintenance: MaintenanceConfig{
			InactiveRetention: getEnvAsDuration("INACTIVE_RETENTION", DefaultInactiveRetention),
			Interval:          getEnvAsDuration("MAINTENANCE_INTERVAL", time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Burst:      getEnvAsInt("RATE_LIMIT_BURST", 10),
			TrustProxy: getEnvAsBool("RATE_LIMIT_TRUST_PROXY", false),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", "admin@cfp.energy"),
			Username: getEnv("ADMIN_USERNAME", "admin"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnvAsBool("METRICS_ENABLED", true),
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	if v, err := strconv.ParseFloat(getEnv("RATE_LIMIT_PER_SECOND", "5"), 64); err == nil {
		cfg.RateLimit.PerSecond = v
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.PasswordReset.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("password_reset config: %v", err))
	}

	if err := c.Observability.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	for _, origin := range c.Origins() {
		if origin == "*" {
			continue
		}
		if _, err := url.Parse(origin); err != nil {
			return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *ServerConfig) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters")
	}
	if c.AccessTokenDuration <= 0 {
		return errors.New("access_token_duration must be positive")
	}
	if c.RefreshTokenDuration < c.AccessTokenDuration {
		return errors.New("refresh_token_duration must be >= access_token_duration")
	}
	if c.BCryptCost < 10 || c.BCryptCost > 15 {
		return errors.New("bcrypt_cost must be between 10 and 15")
	}
	return nil
}

func (c *PasswordResetConfig) Validate() error {
	if c.TokenTTL <= 0 {
		return errors.New("token_ttl must be positive")
	}
	if c.FrontendURL != "" {
		if _, err := url.ParseRequestURI(c.FrontendURL); err != nil {
			return fmt.Errorf("invalid frontend_url: %w", err)
		}
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown level %q", c.Level)
	}
	switch c.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	return nil
}
