package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Moderation hooks.
const (
	HookLog         = "log"
	HookEventBridge = "eventbridge"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Storage
	StoreBackend     string
	TableName        string
	AWSRegion        string
	DynamoDBEndpoint string
	DatabaseURL      string
	SQLitePath       string

	// Caching
	CacheBackend string
	RedisURL     string
	CacheTTL     time.Duration

	// Moderation
	HoldForReview           bool
	ModerationHook          string
	EventBusName            string
	ModerationWorkers       int
	ModerationQueueSize     int
	ModerationRatePerSecond float64
	ModerationTimeout       time.Duration

	// Logging
	LogLevel string

	// Authentication
	JWTSecret          string
	JWTIssuer          string
	RateLimitPerMinute int

	// Metrics
	CloudWatchNamespace     string
	CloudWatchFlushInterval time.Duration

	// Feature flags
	EnableMetrics  bool
	EnableTracing  bool
	EnableCORS     bool
	AllowedOrigins []string
}

var defaults = map[string]interface{}{
	"SERVER_ADDRESS":             ":8080",
	"ENVIRONMENT":                "development",
	"STORE_BACKEND":              StoreMemory,
	"TABLE_NAME":                 "comments",
	"AWS_REGION":                 "us-west-2",
	"DYNAMODB_ENDPOINT":          "",
	"DATABASE_URL":               "",
	"SQLITE_PATH":                "comments.db",
	"CACHE_BACKEND":              CacheNone,
	"REDIS_URL":                  "redis://localhost:6379/0",
	"CACHE_TTL":                  "1m",
	"COMMENTS_HOLD_FOR_REVIEW":   false,
	"MODERATION_HOOK":            HookLog,
	"EVENT_BUS_NAME":             "comments-events",
	"MODERATION_WORKERS":         2,
	"MODERATION_QUEUE_SIZE":      256,
	"MODERATION_RATE_PER_SECOND": 1.0,
	"MODERATION_TIMEOUT":         "10s",
	"LOG_LEVEL":                  "info",
	"JWT_SECRET":                 "",
	"JWT_ISSUER":                 "comments-api",
	"RATE_LIMIT_PER_MINUTE":      30,
	"CLOUDWATCH_NAMESPACE":       "",
	"CLOUDWATCH_FLUSH_INTERVAL":  "1m",
	"ENABLE_METRICS":             true,
	"ENABLE_TRACING":             false,
	"ENABLE_CORS":                true,
	"ALLOWED_ORIGINS":            "*",
}

// LoadConfig reads configuration from the environment. When CONFIG_FILE
// names a file, its values sit between the defaults and the environment.
func LoadConfig() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom builds a Config from v after applying defaults. Tests pass a
// viper instance with values already Set.
func LoadFrom(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &Config{
		ServerAddress: v.GetString("SERVER_ADDRESS"),
		Environment:   v.GetString("ENVIRONMENT"),

		StoreBackend:     strings.ToLower(v.GetString("STORE_BACKEND")),
		TableName:        v.GetString("TABLE_NAME"),
		AWSRegion:        v.GetString("AWS_REGION"),
		DynamoDBEndpoint: v.GetString("DYNAMODB_ENDPOINT"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		SQLitePath:       v.GetString("SQLITE_PATH"),

		CacheBackend: strings.ToLower(v.GetString("CACHE_BACKEND")),
		RedisURL:     v.GetString("REDIS_URL"),
		CacheTTL:     v.GetDuration("CACHE_TTL"),

		HoldForReview:           v.GetBool("COMMENTS_HOLD_FOR_REVIEW"),
		ModerationHook:          strings.ToLower(v.GetString("MODERATION_HOOK")),
		EventBusName:            v.GetString("EVENT_BUS_NAME"),
		ModerationWorkers:       v.GetInt("MODERATION_WORKERS"),
		ModerationQueueSize:     v.GetInt("MODERATION_QUEUE_SIZE"),
		ModerationRatePerSecond: v.GetFloat64("MODERATION_RATE_PER_SECOND"),
		ModerationTimeout:       v.GetDuration("MODERATION_TIMEOUT"),

		LogLevel: v.GetString("LOG_LEVEL"),

		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTIssuer:          v.GetString("JWT_ISSUER"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),

		CloudWatchNamespace:     v.GetString("CLOUDWATCH_NAMESPACE"),
		CloudWatchFlushInterval: v.GetDuration("CLOUDWATCH_FLUSH_INTERVAL"),

		EnableMetrics:  v.GetBool("ENABLE_METRICS"),
		EnableTracing:  v.GetBool("ENABLE_TRACING"),
		EnableCORS:     v.GetBool("ENABLE_CORS"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case StoreMemory:
	case StoreDynamoDB:
		if c.TableName == "" {
			errs = append(errs, errors.New("TABLE_NAME is required for the dynamodb store"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.CacheBackend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend))
	}

	switch c.ModerationHook {
	case HookLog:
	case HookEventBridge:
		if c.EventBusName == "" {
			errs = append(errs, errors.New("EVENT_BUS_NAME is required for the eventbridge hook"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MODERATION_HOOK %q", c.ModerationHook))
	}

	if c.ModerationWorkers < 1 {
		errs = append(errs, errors.New("MODERATION_WORKERS must be at least 1"))
	}
	if c.ModerationQueueSize < 1 {
		errs = append(errs, errors.New("MODERATION_QUEUE_SIZE must be at least 1"))
	}
	if c.CloudWatchNamespace != "" && c.CloudWatchFlushInterval <= 0 {
		errs = append(errs, errors.New("CLOUDWATCH_FLUSH_INTERVAL must be positive"))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must not be negative"))
	}
	if c.IsProduction() && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}

	return errors.Join(errs...)
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
