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
	PublicURL string

	Database        DatabaseConfig
	Redis           RedisConfig
	JWT             JWTConfig
	CORS            CORSConfig
	Log             LogConfig
	OTP             OTPConfig
	Payment         PaymentConfig
	Storage         StorageConfig
	Email           EmailConfig
	SMS             SMSConfig
	Admissions      AdmissionsConfig
	Acknowledgement AcknowledgementConfig
	Notifications   NotificationsConfig
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
	Host        string
	Port        int
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
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

// OTPConfig governs the contact verification gate.
type OTPConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
	CodeLength     int
	// StaticCode is issued instead of a random code outside production.
	StaticCode string
}

// PaymentConfig configures the Midtrans Snap integration.
type PaymentConfig struct {
	Enabled       bool
	ServerKey     string
	Production    bool
	FinishURL     string
	ItemCategory  string
	OrderIDPrefix string
}

// StorageConfig points at the S3 compatible bucket for applicant documents.
type StorageConfig struct {
	Enabled          bool
	Endpoint         string
	AccessKey        string
	SecretKey        string
	Bucket           string
	UseSSL           bool
	MaxFileSizeBytes int64
}

// EmailConfig configures outbound mail. An empty SendGrid key falls back to log delivery.
type EmailConfig struct {
	SendGridKey string
	FromName    string
	FromAddress string
}

// SMSConfig configures outbound text messages.
type SMSConfig struct {
	SenderID   string
	AccountSID string
	AuthToken  string
	FromNumber string
}

// AdmissionsConfig tunes the admin listing and caches.
type AdmissionsConfig struct {
	StatsCacheTTL  time.Duration
	LookupCacheTTL time.Duration
	DraftTTL       time.Duration
	DefaultPage    int
}

// AcknowledgementConfig configures signed verification links printed on slips.
type AcknowledgementConfig struct {
	InstitutionName    string
	InstitutionAddress string
	SigningSecret      string
	LinkTTL            time.Duration
}

// NotificationsConfig sizes the delivery worker pool.
type NotificationsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.PublicURL = strings.TrimRight(v.GetString("PUBLIC_URL"), "/")

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
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		PoolSize:    v.GetInt("REDIS_POOL_SIZE"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
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

	cfg.OTP = OTPConfig{
		TTL:            parseDuration(v.GetString("OTP_TTL"), 10*time.Minute),
		ResendCooldown: parseDuration(v.GetString("OTP_RESEND_COOLDOWN"), time.Minute),
		MaxAttempts:    v.GetInt("OTP_MAX_ATTEMPTS"),
		CodeLength:     v.GetInt("OTP_CODE_LENGTH"),
		StaticCode:     v.GetString("OTP_STATIC_CODE"),
	}
	if cfg.Env == EnvProduction {
		cfg.OTP.StaticCode = ""
	}

	cfg.Payment = PaymentConfig{
		Enabled:       v.GetBool("ENABLE_PAYMENTS"),
		ServerKey:     v.GetString("MIDTRANS_SERVER_KEY"),
		Production:    v.GetBool("MIDTRANS_PRODUCTION"),
		FinishURL:     v.GetString("MIDTRANS_FINISH_URL"),
		ItemCategory:  v.GetString("MIDTRANS_ITEM_CATEGORY"),
		OrderIDPrefix: v.GetString("MIDTRANS_ORDER_PREFIX"),
	}

	maxDocSize := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxDocSize <= 0 {
		maxDocSize = 5 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		Enabled:          v.GetBool("ENABLE_DOCUMENTS"),
		Endpoint:         v.GetString("MINIO_ENDPOINT"),
		AccessKey:        v.GetString("MINIO_ACCESS_KEY"),
		SecretKey:        v.GetString("MINIO_SECRET_KEY"),
		Bucket:           v.GetString("MINIO_BUCKET"),
		UseSSL:           v.GetBool("MINIO_USE_SSL"),
		MaxFileSizeBytes: maxDocSize,
	}

	cfg.Email = EmailConfig{
		SendGridKey: v.GetString("SENDGRID_API_KEY"),
		FromName:    v.GetString("EMAIL_FROM_NAME"),
		FromAddress: v.GetString("EMAIL_FROM_ADDRESS"),
	}

	cfg.SMS = SMSConfig{
		SenderID:   v.GetString("SMS_SENDER_ID"),
		AccountSID: v.GetString("TWILIO_ACCOUNT_SID"),
		AuthToken:  v.GetString("TWILIO_AUTH_TOKEN"),
		FromNumber: v.GetString("TWILIO_FROM_NUMBER"),
	}

	cfg.Admissions = AdmissionsConfig{
		StatsCacheTTL:  parseDuration(v.GetString("ADMISSION_STATS_CACHE_TTL"), 2*time.Minute),
		LookupCacheTTL: parseDuration(v.GetString("LOOKUP_CACHE_TTL"), 15*time.Minute),
		DraftTTL:       parseDuration(v.GetString("FORM_DRAFT_TTL"), 2*time.Hour),
		DefaultPage:    v.GetInt("ADMISSION_PAGE_SIZE"),
	}

	cfg.Acknowledgement = AcknowledgementConfig{
		InstitutionName:    v.GetString("INSTITUTION_NAME"),
		InstitutionAddress: v.GetString("INSTITUTION_ADDRESS"),
		SigningSecret:      v.GetString("ACK_SIGNING_SECRET"),
		LinkTTL:            parseDuration(v.GetString("ACK_LINK_TTL"), 365*24*time.Hour),
	}

	cfg.Notifications = NotificationsConfig{
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		MaxRetries: v.GetInt("NOTIFY_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), 2*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "admission_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 20)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "admission-portal")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("OTP_RESEND_COOLDOWN", "60s")
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("OTP_CODE_LENGTH", 6)
	v.SetDefault("OTP_STATIC_CODE", "123456")

	v.SetDefault("ENABLE_PAYMENTS", false)
	v.SetDefault("MIDTRANS_SERVER_KEY", "")
	v.SetDefault("MIDTRANS_PRODUCTION", false)
	v.SetDefault("MIDTRANS_FINISH_URL", "")
	v.SetDefault("MIDTRANS_ITEM_CATEGORY", "ADMISSION")
	v.SetDefault("MIDTRANS_ORDER_PREFIX", "ADM")

	v.SetDefault("ENABLE_DOCUMENTS", false)
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	v.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	v.SetDefault("MINIO_BUCKET", "applicant-documents")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 5*1024*1024)

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("EMAIL_FROM_NAME", "Admissions Office")
	v.SetDefault("EMAIL_FROM_ADDRESS", "no-reply@example.edu")
	v.SetDefault("SMS_SENDER_ID", "ADMSN")
	v.SetDefault("TWILIO_ACCOUNT_SID", "")
	v.SetDefault("TWILIO_AUTH_TOKEN", "")
	v.SetDefault("TWILIO_FROM_NUMBER", "")

	v.SetDefault("ADMISSION_STATS_CACHE_TTL", "2m")
	v.SetDefault("LOOKUP_CACHE_TTL", "15m")
	v.SetDefault("FORM_DRAFT_TTL", "2h")
	v.SetDefault("ADMISSION_PAGE_SIZE", 20)

	v.SetDefault("INSTITUTION_NAME", "Admissions Office")
	v.SetDefault("INSTITUTION_ADDRESS", "")
	v.SetDefault("ACK_SIGNING_SECRET", "dev_ack_secret")
	v.SetDefault("ACK_LINK_TTL", "8760h")

	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "2s")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
