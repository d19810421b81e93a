package config

import (
	"errors"
	"io/fs"
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
	Timezone  string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Dashboard   DashboardConfig
	Permissions PermissionsConfig
	AdminLinks  AdminLinksConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig tunes widget sizes and reporting windows.
type DashboardConfig struct {
	WidgetLimit          int
	UpcomingBatchDays    int
	ApproachingDays      int
	NewEnrollmentDays    int
	OverdueAfterDays     int
	QueryTimeout         time.Duration
	ConcurrentAggregates bool
}

// PermissionsConfig controls the per-session permission cache.
type PermissionsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// AdminLinksConfig is the base used to build quick-action links.
type AdminLinksConfig struct {
	BaseURL string
}

// Location resolves the configured timezone, falling back to the process locale.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("APP_TIMEZONE")

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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dashboard = DashboardConfig{
		WidgetLimit:          v.GetInt("DASHBOARD_WIDGET_LIMIT"),
		UpcomingBatchDays:    v.GetInt("DASHBOARD_UPCOMING_BATCH_DAYS"),
		ApproachingDays:      v.GetInt("DASHBOARD_APPROACHING_DAYS"),
		NewEnrollmentDays:    v.GetInt("DASHBOARD_NEW_ENROLLMENT_DAYS"),
		OverdueAfterDays:     v.GetInt("DASHBOARD_OVERDUE_AFTER_DAYS"),
		QueryTimeout:         parseDuration(v.GetString("DASHBOARD_QUERY_TIMEOUT"), 10*time.Second),
		ConcurrentAggregates: v.GetBool("DASHBOARD_CONCURRENT_AGGREGATES"),
	}

	cfg.Permissions = PermissionsConfig{
		CacheEnabled: v.GetBool("PERMISSION_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("PERMISSION_CACHE_TTL"), cfg.JWT.Expiration),
	}

	cfg.AdminLinks = AdminLinksConfig{
		BaseURL: strings.TrimRight(v.GetString("ADMIN_BASE_URL"), "/"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("APP_TIMEZONE", "Local")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ict_admin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "ict-admin-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DASHBOARD_WIDGET_LIMIT", 5)
	v.SetDefault("DASHBOARD_UPCOMING_BATCH_DAYS", 30)
	v.SetDefault("DASHBOARD_APPROACHING_DAYS", 14)
	v.SetDefault("DASHBOARD_NEW_ENROLLMENT_DAYS", 7)
	v.SetDefault("DASHBOARD_OVERDUE_AFTER_DAYS", 30)
	v.SetDefault("DASHBOARD_QUERY_TIMEOUT", "10s")
	v.SetDefault("DASHBOARD_CONCURRENT_AGGREGATES", true)

	v.SetDefault("PERMISSION_CACHE_ENABLED", true)
	v.SetDefault("PERMISSION_CACHE_TTL", "")

	v.SetDefault("ADMIN_BASE_URL", "/admin")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
