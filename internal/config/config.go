// Package config provides configuration loading for the print broker.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the broker daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Security   SecurityConfig   `mapstructure:"security"`
	Printer    PrinterConfig    `mapstructure:"printer"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Spool      SpoolConfig      `mapstructure:"spool"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
}

// ServerConfig holds the wire protocol listener configuration.
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listener address string.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AdminConfig holds the admin HTTP API configuration.
type AdminConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the admin API address string.
func (c AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SecurityConfig holds TLS, token, and admission control configuration.
type SecurityConfig struct {
	TLSEnabled           bool   `mapstructure:"tls_enabled"`
	CertFile             string `mapstructure:"certfile"`
	KeyFile              string `mapstructure:"keyfile"`
	CAFile               string `mapstructure:"cafile"`
	JWTSecretKey         string `mapstructure:"jwt_secret_key"`
	TokenExpirationHours int    `mapstructure:"token_expiration_hours"`
	RequestsPerMinute    int    `mapstructure:"requests_per_minute"`
	BurstSize            int    `mapstructure:"burst_size"`
	MaxFileSizeMB        int    `mapstructure:"max_file_size_mb"`
}

// TokenExpiry returns the configured token lifetime.
func (c SecurityConfig) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpirationHours) * time.Hour
}

// Burst returns the token bucket capacity, defaulting to twice the
// per-minute rate when unset.
func (c SecurityConfig) Burst() int {
	if c.BurstSize > 0 {
		return c.BurstSize
	}
	return 2 * c.RequestsPerMinute
}

// MaxFileSizeBytes returns the document size ceiling in bytes.
func (c SecurityConfig) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

// PrinterConfig holds printer backend configuration.
type PrinterConfig struct {
	Name    string `mapstructure:"name"`
	UseMock bool   `mapstructure:"use_mock"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration. Redis is optional; when disabled
// the admin API rate limiter and its readiness probe are skipped.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SpoolConfig holds document spool directory configuration.
type SpoolConfig struct {
	Dir             string        `mapstructure:"dir"`
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// QueueConfig holds priority queue configuration.
type QueueConfig struct {
	RestoreLimit int `mapstructure:"restore_limit"`
}

// DispatcherConfig holds dispatcher worker configuration.
type DispatcherConfig struct {
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// Load reads configuration from files and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/printspool")

	// Enable environment variable override
	v.SetEnvPrefix("PRINTSPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Explicitly bind secrets (nested struct issue with viper)
	v.BindEnv("security.jwt_secret_key", "PRINTSPOOL_SECURITY_JWT_SECRET_KEY")
	v.BindEnv("security.certfile", "PRINTSPOOL_SECURITY_CERTFILE")
	v.BindEnv("security.keyfile", "PRINTSPOOL_SECURITY_KEYFILE")
	v.BindEnv("security.cafile", "PRINTSPOOL_SECURITY_CAFILE")
	v.BindEnv("database.password", "PRINTSPOOL_DATABASE_PASSWORD")
	v.BindEnv("redis.password", "PRINTSPOOL_REDIS_PASSWORD")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Wire listener defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9100)
	v.SetDefault("server.connection_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Admin API defaults
	v.SetDefault("admin.enabled", true)
	v.SetDefault("admin.host", "0.0.0.0")
	v.SetDefault("admin.port", 8080)
	v.SetDefault("admin.read_timeout", "30s")
	v.SetDefault("admin.write_timeout", "30s")

	// Security defaults
	v.SetDefault("security.tls_enabled", true)
	v.SetDefault("security.certfile", "")
	v.SetDefault("security.keyfile", "")
	v.SetDefault("security.cafile", "")
	v.SetDefault("security.jwt_secret_key", "")
	v.SetDefault("security.token_expiration_hours", 24)
	v.SetDefault("security.requests_per_minute", 60)
	v.SetDefault("security.burst_size", 0)
	v.SetDefault("security.max_file_size_mb", 100)

	// Printer defaults
	v.SetDefault("printer.name", "")
	v.SetDefault("printer.use_mock", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "printspool")
	v.SetDefault("database.password", "printspool")
	v.SetDefault("database.database", "printspool")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Spool defaults
	v.SetDefault("spool.dir", "./spool")
	v.SetDefault("spool.retention_days", 30)
	v.SetDefault("spool.cleanup_interval", "24h")

	// Queue defaults
	v.SetDefault("queue.restore_limit", 1000)

	// Dispatcher defaults
	v.SetDefault("dispatcher.poll_timeout", "1s")
	v.SetDefault("dispatcher.retry_delay", "5s")
	v.SetDefault("dispatcher.max_retries", 3)
}
