package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Economy    EconomyConfig
	Pricing    PricingConfig
	Savings    SavingsConfig
	Indicators IndicatorsConfig
	Exports    ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	TeacherExpiration time.Duration
	StudentExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EconomyConfig tunes classroom treasury and request workflow behaviour.
type EconomyConfig struct {
	DefaultTreasury int64
	CancelWindow    time.Duration
	MaxBatchSize    int
}

// PricingConfig governs the recurring dynamic pricing sweep.
type PricingConfig struct {
	Enabled       bool
	SweepInterval time.Duration
	WorkerRetries int
}

// SavingsConfig governs the recurring savings maturity sweep.
type SavingsConfig struct {
	Enabled       bool
	SweepInterval time.Duration
	WorkerRetries int
}

// IndicatorsConfig controls cache behaviour for the indicators endpoints.
type IndicatorsConfig struct {
	CacheTTL       time.Duration
	LeaderboardTTL time.Duration
}

// ExportsConfig configures ledger statement exports.
type ExportsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		TeacherExpiration: parseDuration(v.GetString("JWT_TEACHER_EXPIRATION"), 24*time.Hour),
		StudentExpiration: parseDuration(v.GetString("JWT_STUDENT_EXPIRATION"), 12*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Economy = EconomyConfig{
		DefaultTreasury: v.GetInt64("ECONOMY_DEFAULT_TREASURY"),
		CancelWindow:    parseDuration(v.GetString("ECONOMY_CANCEL_WINDOW"), time.Hour),
		MaxBatchSize:    v.GetInt("ECONOMY_MAX_BATCH_SIZE"),
	}

	cfg.Pricing = PricingConfig{
		Enabled:       v.GetBool("ENABLE_PRICING_SWEEP"),
		SweepInterval: parseDuration(v.GetString("PRICING_SWEEP_INTERVAL"), 24*time.Hour),
		WorkerRetries: v.GetInt("PRICING_WORKER_RETRIES"),
	}

	cfg.Savings = SavingsConfig{
		Enabled:       v.GetBool("ENABLE_SAVINGS_SWEEP"),
		SweepInterval: parseDuration(v.GetString("SAVINGS_SWEEP_INTERVAL"), time.Hour),
		WorkerRetries: v.GetInt("SAVINGS_WORKER_RETRIES"),
	}

	cfg.Indicators = IndicatorsConfig{
		CacheTTL:       parseDuration(v.GetString("INDICATORS_CACHE_TTL"), 5*time.Minute),
		LeaderboardTTL: parseDuration(v.GetString("LEADERBOARD_CACHE_TTL"), time.Minute),
	}

	cfg.Exports = ExportsConfig{
		Enabled:         v.GetBool("ENABLE_EXPORTS"),
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "classbank")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_TEACHER_EXPIRATION", "24h")
	v.SetDefault("JWT_STUDENT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "classbank-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ECONOMY_DEFAULT_TREASURY", 10000)
	v.SetDefault("ECONOMY_CANCEL_WINDOW", "1h")
	v.SetDefault("ECONOMY_MAX_BATCH_SIZE", 50)

	v.SetDefault("ENABLE_PRICING_SWEEP", true)
	v.SetDefault("PRICING_SWEEP_INTERVAL", "24h")
	v.SetDefault("PRICING_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_SAVINGS_SWEEP", true)
	v.SetDefault("SAVINGS_SWEEP_INTERVAL", "1h")
	v.SetDefault("SAVINGS_WORKER_RETRIES", 3)

	v.SetDefault("INDICATORS_CACHE_TTL", "5m")
	v.SetDefault("LEADERBOARD_CACHE_TTL", "1m")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
