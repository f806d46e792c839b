package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Application ApplicationConfig `mapstructure:"application"`
	API         APIConfig         `mapstructure:"api"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	EmailClient EmailClientConfig `mapstructure:"email_client"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Admin       AdminConfig       `mapstructure:"admin"`
	SMTPIngress SMTPIngressConfig `mapstructure:"smtp_ingress"`
}

// ApplicationConfig holds settings that describe the public face of the service.
type ApplicationConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// APIConfig holds REST API server configuration.
type APIConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	PoolMin        int32         `mapstructure:"pool_min"`
	PoolMax        int32         `mapstructure:"pool_max"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MigrateOnStart bool          `mapstructure:"migrate_on_start"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Output    string `mapstructure:"output"`
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// WorkerConfig holds delivery worker configuration.
type WorkerConfig struct {
	Count           int           `mapstructure:"count"`
	EmptyQueueDelay time.Duration `mapstructure:"empty_queue_delay"`
	ErrorDelay      time.Duration `mapstructure:"error_delay"`
	SendTimeout     time.Duration `mapstructure:"send_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MetricsPort     int           `mapstructure:"metrics_port"` // 0 disables /metrics
}

// EmailClientConfig selects and configures the outbound email transport.
type EmailClientConfig struct {
	Provider           string        `mapstructure:"provider"` // postmark, smtp, stdout, file
	BaseURL            string        `mapstructure:"base_url"`
	SenderEmail        string        `mapstructure:"sender_email"`
	AuthorizationToken string        `mapstructure:"authorization_token"`
	Timeout            time.Duration `mapstructure:"timeout"`
	SMTPHost           string        `mapstructure:"smtp_host"`
	SMTPPort           int           `mapstructure:"smtp_port"`
	SMTPUsername       string        `mapstructure:"smtp_username"`
	SMTPPassword       string        `mapstructure:"smtp_password"`
	OutputDir          string        `mapstructure:"output_dir"`
}

// RedisConfig holds Redis connection settings. An empty Addr disables
// Redis-backed features (login rate limiting, worker wake-ups).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig holds token signing and login throttling configuration.
type AuthConfig struct {
	SigningKey           string        `mapstructure:"signing_key"`
	AccessTokenExpiry    time.Duration `mapstructure:"access_token_expiry"`
	Issuer               string        `mapstructure:"issuer"`
	Audience             string        `mapstructure:"audience"`
	LoginAttemptsLimit   int           `mapstructure:"login_attempts_limit"`
	LoginLockoutDuration time.Duration `mapstructure:"login_lockout_duration"`
}

// SMTPIngressConfig holds settings for the publish-by-mail SMTP listener.
type SMTPIngressConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Domain         string        `mapstructure:"domain"`
	Address        string        `mapstructure:"address"` // only recipient accepted; empty accepts any
	MaxConnections int           `mapstructure:"max_connections"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	TLSCertFile    string        `mapstructure:"tls_cert_file"`
	TLSKeyFile     string        `mapstructure:"tls_key_file"`
}

// AdminConfig holds the credentials of the admin user seeded on startup.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Load reads configuration from the given config directory path.
// It looks for a file named "config.yaml" in that directory.
// Environment variables with prefix NEWSLETTER_ override file values.
// For example, NEWSLETTER_DATABASE_URL overrides database.url.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("NEWSLETTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
