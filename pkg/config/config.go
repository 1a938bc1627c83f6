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

// ErrMissingCodeSecret is returned when no hearing code secret is configured.
var ErrMissingCodeSecret = errors.New("HEARING_CODE_SECRET is required")

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	// TrustedProxies may set X-Forwarded-For; empty trusts none.
	TrustedProxies []string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Codes         CodesConfig
	Attendance    AttendanceConfig
	Notifications NotificationsConfig
	Scheduler     SchedulerConfig
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
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CodesConfig holds the server-side secret hearing codes are keyed with.
type CodesConfig struct {
	Secret string
}

// AttendanceConfig governs self-service marking.
type AttendanceConfig struct {
	GracePeriod        time.Duration
	RequireOpenHearing bool
	Timezone           string
	MaxFailedAttempts  int
	AttemptWindow      time.Duration
}

// SMSGatewayConfig describes one HTTP SMS gateway.
type SMSGatewayConfig struct {
	Name   string
	URL    string
	APIKey string
	Sender string
}

// NotificationsConfig toggles delivery channels and provider endpoints.
type NotificationsConfig struct {
	SMSEnabled      bool
	EmailEnabled    bool
	ProviderTimeout time.Duration
	SMSPrimary      SMSGatewayConfig
	SMSFallback     SMSGatewayConfig

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// SchedulerConfig governs the reminder/escalation loop.
type SchedulerConfig struct {
	Enabled                 bool
	Interval                time.Duration
	LockTTL                 time.Duration
	Concurrency             int
	Workers                 int
	OfficerAbsenceThreshold int
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.TrustedProxies = splitAndTrim(v.GetString("TRUSTED_PROXIES"))

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
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Codes = CodesConfig{Secret: v.GetString("HEARING_CODE_SECRET")}

	cfg.Attendance = AttendanceConfig{
		GracePeriod:        parseDuration(v.GetString("ATTENDANCE_GRACE_PERIOD"), 15*time.Minute),
		RequireOpenHearing: v.GetBool("ATTENDANCE_REQUIRE_OPEN_HEARING"),
		Timezone:           v.GetString("COURT_TIMEZONE"),
		MaxFailedAttempts:  v.GetInt("ATTENDANCE_MAX_FAILED_ATTEMPTS"),
		AttemptWindow:      parseDuration(v.GetString("ATTENDANCE_ATTEMPT_WINDOW"), 15*time.Minute),
	}

	cfg.Notifications = NotificationsConfig{
		SMSEnabled:      v.GetBool("ENABLE_SMS"),
		EmailEnabled:    v.GetBool("ENABLE_EMAIL"),
		ProviderTimeout: parseDuration(v.GetString("NOTIFY_PROVIDER_TIMEOUT"), 10*time.Second),
		SMSPrimary: SMSGatewayConfig{
			Name:   v.GetString("SMS_PRIMARY_NAME"),
			URL:    v.GetString("SMS_PRIMARY_URL"),
			APIKey: v.GetString("SMS_PRIMARY_API_KEY"),
			Sender: v.GetString("SMS_SENDER_ID"),
		},
		SMSFallback: SMSGatewayConfig{
			Name:   v.GetString("SMS_FALLBACK_NAME"),
			URL:    v.GetString("SMS_FALLBACK_URL"),
			APIKey: v.GetString("SMS_FALLBACK_API_KEY"),
			Sender: v.GetString("SMS_SENDER_ID"),
		},
		SMTPHost:     v.GetString("SMTP_HOST"),
		SMTPPort:     v.GetInt("SMTP_PORT"),
		SMTPUsername: v.GetString("SMTP_USERNAME"),
		SMTPPassword: v.GetString("SMTP_PASSWORD"),
		SMTPFrom:     v.GetString("SMTP_FROM"),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:                 v.GetBool("ENABLE_SCHEDULER"),
		Interval:                parseDuration(v.GetString("SCHEDULER_INTERVAL"), 5*time.Minute),
		LockTTL:                 parseDuration(v.GetString("SCHEDULER_LOCK_TTL"), 4*time.Minute),
		Concurrency:             v.GetInt("SCHEDULER_CONCURRENCY"),
		Workers:                 v.GetInt("NOTIFY_WORKERS"),
		OfficerAbsenceThreshold: v.GetInt("OFFICER_ABSENCE_THRESHOLD"),
	}

	if strings.TrimSpace(cfg.Codes.Secret) == "" {
		return nil, ErrMissingCodeSecret
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("TRUSTED_PROXIES", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "hearing_attendance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "hearing-attendance")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("HEARING_CODE_SECRET", "")

	v.SetDefault("ATTENDANCE_GRACE_PERIOD", "15m")
	v.SetDefault("ATTENDANCE_REQUIRE_OPEN_HEARING", true)
	v.SetDefault("COURT_TIMEZONE", "UTC")
	v.SetDefault("ATTENDANCE_MAX_FAILED_ATTEMPTS", 10)
	v.SetDefault("ATTENDANCE_ATTEMPT_WINDOW", "15m")

	v.SetDefault("ENABLE_SMS", false)
	v.SetDefault("ENABLE_EMAIL", false)
	v.SetDefault("NOTIFY_PROVIDER_TIMEOUT", "10s")
	v.SetDefault("SMS_PRIMARY_NAME", "primary")
	v.SetDefault("SMS_PRIMARY_URL", "")
	v.SetDefault("SMS_PRIMARY_API_KEY", "")
	v.SetDefault("SMS_FALLBACK_NAME", "fallback")
	v.SetDefault("SMS_FALLBACK_URL", "")
	v.SetDefault("SMS_FALLBACK_API_KEY", "")
	v.SetDefault("SMS_SENDER_ID", "COURTS")
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@courts.local")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_INTERVAL", "5m")
	v.SetDefault("SCHEDULER_LOCK_TTL", "4m")
	v.SetDefault("SCHEDULER_CONCURRENCY", 4)
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("OFFICER_ABSENCE_THRESHOLD", 3)
}

// Location resolves the configured court timezone, falling back to UTC.
func (c AttendanceConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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
