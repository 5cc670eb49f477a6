package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/HammerMeetNail/campussafe/internal/logging"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Email     EmailConfig
	Push      PushConfig
	Storage   StorageConfig
	Realtime  RealtimeConfig
	Metrics   MetricsConfig
	RateLimit RateLimitConfig
	Content   ContentConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	Secure          bool   // Use HTTPS-only cookies
	Environment     string // "development", "production", "test"
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	LogLevel        logging.Level
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

type EmailConfig struct {
	Provider     string // "resend", "smtp", "console"
	FromAddress  string
	FromName     string
	BaseURL      string // Application base URL for links
	ResendAPIKey string
	// SMTP settings (for Mailpit in local dev)
	SMTPHost string
	SMTPPort int
}

type PushConfig struct {
	Provider        string // "fcm", "console"
	CredentialsFile string
	// Base64 encoded service account JSON, preferred over the file when set.
	CredentialsJSON string
}

type StorageConfig struct {
	Provider        string // "gcs", "memory"
	Bucket          string
	CredentialsFile string
	PublicBaseURL   string
}

type RealtimeConfig struct {
	Debounce     time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
}

type MetricsConfig struct {
	Enabled  bool
	Username string
	Password string
}

type RateLimitConfig struct {
	Requests     int
	AuthRequests int
	Window       time.Duration
}

type ContentConfig struct {
	TipsPath string
}

// DSN escapes credentials so passwords with URL metacharacters survive, and
// tags connections so they are identifiable in pg_stat_activity.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}, "application_name": {"campussafe"}}.Encode(),
	}
	return u.String()
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// LoadDotEnv reads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			Secure:          getEnvBool("SERVER_SECURE", false),
			Environment:     getEnv("APP_ENV", "development"),
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:8081", "http://localhost:19006"}),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5432),
			User:           getEnv("DB_USER", "campussafe"),
			Password:       getEnv("DB_PASSWORD", "campussafe"),
			DBName:         getEnv("DB_NAME", "campussafe"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConns:       getEnvInt("DB_MAX_CONNS", 25),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Email: EmailConfig{
			Provider:     getEnv("EMAIL_PROVIDER", "console"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "noreply@campussafe.app"),
			FromName:     getEnv("EMAIL_FROM_NAME", "CampusSafe"),
			BaseURL:      getEnv("APP_BASE_URL", "http://localhost:8080"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			SMTPHost:     getEnv("SMTP_HOST", "localhost"),
			SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		},
		Push: PushConfig{
			Provider:        getEnv("PUSH_PROVIDER", "console"),
			CredentialsFile: getEnv("FCM_CREDENTIALS_FILE", "firebase-service-account.json"),
			CredentialsJSON: getEnv("FCM_SERVICE_ACCOUNT_JSON", ""),
		},
		Storage: StorageConfig{
			Provider:        getEnv("STORAGE_PROVIDER", "memory"),
			Bucket:          getEnv("GCS_BUCKET", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			PublicBaseURL:   getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/uploads"),
		},
		Realtime: RealtimeConfig{
			Debounce:     getEnvDuration("REALTIME_DEBOUNCE", 300*time.Millisecond),
			WriteTimeout: getEnvDuration("REALTIME_WRITE_TIMEOUT", 10*time.Second),
			PingInterval: getEnvDuration("REALTIME_PING_INTERVAL", 30*time.Second),
		},
		Metrics: MetricsConfig{
			Enabled:  getEnvBool("METRICS_ENABLED", true),
			Username: getEnv("METRICS_USERNAME", ""),
			Password: getEnv("METRICS_PASSWORD", ""),
		},
		RateLimit: RateLimitConfig{
			Requests:     getEnvInt("RATE_LIMIT_REQUESTS", 100),
			AuthRequests: getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 10),
			Window:       getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Content: ContentConfig{
			TipsPath: getEnv("TIPS_PATH", "content/tips.yaml"),
		},
	}

	level, err := logging.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.Server.LogLevel = level

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Email.Provider {
	case "resend":
		if c.Email.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required when EMAIL_PROVIDER=resend")
		}
	case "smtp", "console":
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Email.Provider)
	}

	switch c.Push.Provider {
	case "fcm", "console":
	default:
		return fmt.Errorf("unknown PUSH_PROVIDER %q", c.Push.Provider)
	}

	switch c.Storage.Provider {
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when STORAGE_PROVIDER=gcs")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORAGE_PROVIDER %q", c.Storage.Provider)
	}

	if c.Metrics.Enabled && c.Server.IsProduction() && (c.Metrics.Username == "" || c.Metrics.Password == "") {
		return fmt.Errorf("METRICS_USERNAME and METRICS_PASSWORD are required in production")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
