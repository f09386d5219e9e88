package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
)

// SandboxBaseURL is the VSDC sandbox endpoint. Any other base URL is treated as production.
const SandboxBaseURL = "https://api-sandbox.zra.org.zm/vsdc-api/v1"

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Authority AuthorityConfig
	Retry     RetryConfig
	Signing   SigningConfig
	Queue     QueueConfig
	Alerts    AlertConfig
	Scheduler SchedulerConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type AuthorityConfig struct {
	BaseURL             string
	Timeout             time.Duration
	Debug               bool
	LogRequests         bool
	RoutePrefix         string
	DefaultTPIN         string
	DefaultBranchID     string
	DefaultDeviceSerial string
}

type RetryConfig struct {
	Enabled  bool
	Attempts int
	Delay    time.Duration
}

type SigningConfig struct {
	PrivateKeyPath  string
	CertificatePath string
	Header          string
}

// Enabled reports whether both key paths are configured. Readability is checked when the signer loads.
func (c SigningConfig) Enabled() bool {
	return c.PrivateKeyPath != "" && c.CertificatePath != ""
}

type QueueConfig struct {
	Driver        string
	Workers       int
	Buffer        int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

type AlertConfig struct {
	FailureThreshold int
	Period           time.Duration
}

type SchedulerConfig struct {
	Enabled          bool
	RunInterval      time.Duration
	LogRetentionDays int
	Jobs             []string
}

// RateLimitConfig bounds requests per client on the HTTP API.
// Rate uses the "<limit>-<period>" form, e.g. "60-M".
type RateLimitConfig struct {
	Enabled bool
	Rate    string
}

// CORSConfig lists the browser origins allowed to call the API. Empty disables CORS.
type CORSConfig struct {
	AllowOrigins []string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	baseURL := strings.TrimRight(getenv("ZRA_BASE_URL", SandboxBaseURL), "/")

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "smartinvoice"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "smartinvoice"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Authority: AuthorityConfig{
			BaseURL:             baseURL,
			Timeout:             time.Duration(getenvInt("ZRA_API_TIMEOUT", 10)) * time.Second,
			Debug:               getenvBool("ZRA_DEBUG", false),
			LogRequests:         getenvBool("ZRA_LOG_REQUESTS", true),
			RoutePrefix:         strings.Trim(getenv("ZRA_ROUTE_PREFIX", "zra"), "/"),
			DefaultTPIN:         strings.TrimSpace(getenv("ZRA_TPIN", "")),
			DefaultBranchID:     strings.TrimSpace(getenv("ZRA_BRANCH_ID", "")),
			DefaultDeviceSerial: strings.TrimSpace(getenv("ZRA_DEVICE_SERIAL", "")),
		},
		Retry: RetryConfig{
			Enabled:  getenvBool("ZRA_RETRY_ENABLED", true),
			Attempts: getenvInt("ZRA_RETRY_ATTEMPTS", 3),
			Delay:    time.Duration(getenvInt("ZRA_RETRY_DELAY", 2)) * time.Second,
		},
		Signing: SigningConfig{
			PrivateKeyPath:  strings.TrimSpace(getenv("ZRA_SIGNING_KEY_PATH", "")),
			CertificatePath: strings.TrimSpace(getenv("ZRA_SIGNING_CERT_PATH", "")),
			Header:          getenv("ZRA_SIGNATURE_HEADER", "X-ZRA-Signature"),
		},
		Queue: QueueConfig{
			Driver:        strings.ToLower(getenv("QUEUE_DRIVER", "memory")),
			Workers:       getenvInt("QUEUE_WORKERS", 1),
			Buffer:        getenvInt("QUEUE_BUFFER", 256),
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("REDIS_DB", 0),
			RedisKey:      getenv("QUEUE_REDIS_KEY", "smartinvoice:transactions"),
		},
		Alerts: AlertConfig{
			FailureThreshold: getenvInt("ZRA_ALERT_THRESHOLD", 3),
			Period:           time.Duration(getenvInt("ZRA_ALERT_PERIOD_MINUTES", 60)) * time.Minute,
		},
		Scheduler: SchedulerConfig{
			Enabled:          getenvBool("SCHEDULER_ENABLED", true),
			RunInterval:      time.Duration(getenvInt("SCHEDULER_INTERVAL_SECONDS", 300)) * time.Second,
			LogRetentionDays: getenvInt("ZRA_LOG_RETENTION_DAYS", 0),
			Jobs:             getenvList("SCHEDULER_JOBS"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getenvBool("ZRA_RATE_LIMIT_ENABLED", true),
			Rate:    strings.TrimSpace(getenv("ZRA_RATE_LIMIT", "60-M")),
		},
		CORS: CORSConfig{
			AllowOrigins: getenvList("ZRA_CORS_ORIGINS"),
		},
	}

	return cfg
}

// DeviceEnvironment classifies the configured base URL.
func (c Config) DeviceEnvironment() string {
	if c.Authority.BaseURL == SandboxBaseURL {
		return "sandbox"
	}
	return "production"
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvList(key string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
