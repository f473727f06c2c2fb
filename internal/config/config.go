package config

import (
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sloanfm/biscuit/internal/platform/logger"
)

// Config holds all configuration for the service.
type Config struct {
	ServiceName           string        `mapstructure:"SERVICE_NAME"`
	HTTPPort              string        `mapstructure:"HTTP_PORT"`
	MongoURI              string        `mapstructure:"MONGO_URI"`
	MongoDatabase         string        `mapstructure:"MONGO_DATABASE"`
	RedisAddr             string        `mapstructure:"REDIS_ADDR"`
	RedisPassword         string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB               int           `mapstructure:"REDIS_DB"`
	NATSURL               string        `mapstructure:"NATS_URL"`
	JWTSecret             string        `mapstructure:"JWT_SECRET"`
	CatalogBaseURL        string        `mapstructure:"CATALOG_BASE_URL"`
	CatalogTimeout        time.Duration `mapstructure:"CATALOG_TIMEOUT"`
	CatalogCountry        string        `mapstructure:"CATALOG_COUNTRY"`
	ReleaseCacheTTL       time.Duration `mapstructure:"RELEASE_CACHE_TTL"`
	ProfileFeedCacheTTL   time.Duration `mapstructure:"PROFILE_FEED_CACHE_TTL"`
	StatsReconcileSpec    string        `mapstructure:"STATS_RECONCILE_CRON"`
	PrometheusMetricsPort string        `mapstructure:"PROMETHEUS_METRICS_PORT"`
	LogLevel              string        `mapstructure:"LOG_LEVEL"`
	LogFormat             string        `mapstructure:"LOG_FORMAT"`
	OTLPEndpoint          string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// LoadConfig reads configuration from environment variables, with sane
// defaults for local development.
func LoadConfig(appLogger *logger.Logger) (*Config, error) {
	viper.SetDefault("SERVICE_NAME", "biscuit")
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_DATABASE", "biscuit")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("NATS_URL", "nats://localhost:4222")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("CATALOG_BASE_URL", "https://itunes.apple.com")
	viper.SetDefault("CATALOG_TIMEOUT", "5s")
	viper.SetDefault("CATALOG_COUNTRY", "US")
	viper.SetDefault("RELEASE_CACHE_TTL", "1h")
	viper.SetDefault("PROFILE_FEED_CACHE_TTL", "5m")
	viper.SetDefault("STATS_RECONCILE_CRON", "@every 6h")
	viper.SetDefault("PROMETHEUS_METRICS_PORT", "9090")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		appLogger.Error("Failed to unmarshal configuration", zap.Error(err))
		return nil, err
	}

	if cfg.JWTSecret == "" {
		appLogger.Warn("JWT_SECRET is empty. Session cookies cannot be verified; all requests will be treated as unauthenticated.")
	}
	if cfg.MongoURI == "" {
		appLogger.Fatal("MONGO_URI is not set. This is required.")
	}
	if cfg.MongoDatabase == "" {
		appLogger.Fatal("MONGO_DATABASE is not set. This is required.")
	}

	appLogger.Debug("Configuration loaded",
		zap.String("service_name", cfg.ServiceName),
		zap.String("http_port", cfg.HTTPPort),
		zap.Bool("mongo_uri_present", cfg.MongoURI != ""),
		zap.String("mongo_database", cfg.MongoDatabase),
		zap.String("redis_addr", cfg.RedisAddr),
		zap.String("nats_url", cfg.NATSURL),
		zap.String("catalog_base_url", cfg.CatalogBaseURL),
		zap.Duration("catalog_timeout", cfg.CatalogTimeout),
		zap.String("prometheus_port", cfg.PrometheusMetricsPort),
	)

	return &cfg, nil
}
