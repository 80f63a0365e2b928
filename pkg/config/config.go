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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Analytics AnalyticsConfig
	Risk      RiskConfig
	Sweep     SweepConfig
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
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AnalyticsConfig governs exposure and cache behaviour for the risk
// analytics endpoints. WindowDays is the default attempt-history window.
type AnalyticsConfig struct {
	Enabled    bool
	CacheTTL   time.Duration
	WindowDays int
}

// RiskConfig holds the thresholds the risk engine classifies against.
// Percentage thresholds are on a 0-100 scale.
type RiskConfig struct {
	FailThreshold        float64
	WeakSubjectThreshold float64
	TrendDelta           float64
	SuddenDropDelta      float64
	TabSwitchLimit       int
	AbsenceLimit         int
	AtRiskMinFails       int
}

// SweepConfig controls the periodic chapter-deadline sweep.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
	Workers  int
	Retries  int
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
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Analytics = AnalyticsConfig{
		Enabled:    v.GetBool("ENABLE_ANALYTICS"),
		CacheTTL:   parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
		WindowDays: v.GetInt("ANALYTICS_WINDOW_DAYS"),
	}

	cfg.Risk = RiskConfig{
		FailThreshold:        v.GetFloat64("RISK_FAIL_THRESHOLD"),
		WeakSubjectThreshold: v.GetFloat64("RISK_WEAK_SUBJECT_THRESHOLD"),
		TrendDelta:           v.GetFloat64("RISK_TREND_DELTA"),
		SuddenDropDelta:      v.GetFloat64("RISK_DROP_DELTA"),
		TabSwitchLimit:       v.GetInt("RISK_TAB_SWITCH_LIMIT"),
		AbsenceLimit:         v.GetInt("RISK_ABSENCE_LIMIT"),
		AtRiskMinFails:       v.GetInt("RISK_AT_RISK_MIN_FAILS"),
	}

	cfg.Sweep = SweepConfig{
		Enabled:  v.GetBool("ENABLE_SWEEP"),
		Interval: parseDuration(v.GetString("SWEEP_INTERVAL"), 5*time.Minute),
		Workers:  v.GetInt("SWEEP_WORKERS"),
		Retries:  v.GetInt("SWEEP_RETRIES"),
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
	v.SetDefault("DB_NAME", "prashnakosh")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "prashnakosh-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_ANALYTICS", true)
	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")
	v.SetDefault("ANALYTICS_WINDOW_DAYS", 30)

	v.SetDefault("RISK_FAIL_THRESHOLD", 40.0)
	v.SetDefault("RISK_WEAK_SUBJECT_THRESHOLD", 50.0)
	v.SetDefault("RISK_TREND_DELTA", 5.0)
	v.SetDefault("RISK_DROP_DELTA", 15.0)
	v.SetDefault("RISK_TAB_SWITCH_LIMIT", 3)
	v.SetDefault("RISK_ABSENCE_LIMIT", 2)
	v.SetDefault("RISK_AT_RISK_MIN_FAILS", 2)

	v.SetDefault("ENABLE_SWEEP", true)
	v.SetDefault("SWEEP_INTERVAL", "5m")
	v.SetDefault("SWEEP_WORKERS", 1)
	v.SetDefault("SWEEP_RETRIES", 3)
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
