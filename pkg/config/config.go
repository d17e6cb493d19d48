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

// Blob store backends.
const (
	BlobBackendLocal    = "local"
	BlobBackendSupabase = "supabase"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Admin    AdminConfig
	CORS     CORSConfig
	Log      LogConfig
	Pricing  PricingConfig
	Uploads  UploadsConfig
	Orders   OrdersConfig
	Blob     BlobConfig
	Cache    CacheConfig
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

// AdminConfig carries the single admin identity and token settings.
// Credentials are injected here once at startup; handlers never consult
// the environment directly.
type AdminConfig struct {
	Username     string
	Password     string
	PasswordHash string
	JWTSecret    string
	JWTExpiry    time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PricingConfig holds the per-page rates and the flat service fee, in whole
// currency units.
type PricingConfig struct {
	BWRatePerPage    int64
	ColorRatePerPage int64
	ServiceFee       int64
}

// UploadsConfig bounds upload intake and page counting.
type UploadsConfig struct {
	MaxFileSizeBytes int64
	Workers          int
	ParseTimeout     time.Duration
}

// OrdersConfig tunes order creation behaviour.
type OrdersConfig struct {
	MaxCodeGenAttempts int
	StrictPageRanges   bool
}

// BlobConfig selects and configures the blob store collaborator.
type BlobConfig struct {
	Backend         string
	SupabaseURL     string
	SupabaseKey     string
	SupabaseBucket  string
	LocalDir        string
	LocalPublicBase string
}

// CacheConfig governs the public status lookup cache.
type CacheConfig struct {
	Enabled   bool
	StatusTTL time.Duration
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

	cfg.Admin = AdminConfig{
		Username:     v.GetString("ADMIN_USERNAME"),
		Password:     v.GetString("ADMIN_PASSWORD"),
		PasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		JWTSecret:    v.GetString("JWT_SECRET"),
		JWTExpiry:    parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Pricing = PricingConfig{
		BWRatePerPage:    v.GetInt64("BW_RATE_PER_PAGE"),
		ColorRatePerPage: v.GetInt64("COLOR_RATE_PER_PAGE"),
		ServiceFee:       v.GetInt64("SERVICE_FEE"),
	}

	maxUpload := v.GetInt64("MAX_FILE_SIZE_BYTES")
	if maxUpload <= 0 {
		maxUpload = 20 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		MaxFileSizeBytes: maxUpload,
		Workers:          v.GetInt("UPLOAD_WORKERS"),
		ParseTimeout:     parseDuration(v.GetString("UPLOAD_TIMEOUT"), 30*time.Second),
	}

	cfg.Orders = OrdersConfig{
		MaxCodeGenAttempts: v.GetInt("MAX_CODE_GEN_ATTEMPTS"),
		StrictPageRanges:   v.GetBool("STRICT_PAGE_RANGES"),
	}

	cfg.Blob = BlobConfig{
		Backend:         v.GetString("BLOB_BACKEND"),
		SupabaseURL:     v.GetString("SUPABASE_URL"),
		SupabaseKey:     v.GetString("SUPABASE_SERVICE_KEY"),
		SupabaseBucket:  v.GetString("SUPABASE_BUCKET"),
		LocalDir:        v.GetString("LOCAL_STORAGE_DIR"),
		LocalPublicBase: v.GetString("LOCAL_STORAGE_PUBLIC_BASE"),
	}

	cfg.Cache = CacheConfig{
		Enabled:   v.GetBool("ENABLE_CACHE"),
		StatusTTL: parseDuration(v.GetString("STATUS_CACHE_TTL"), 30*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campus_print")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BW_RATE_PER_PAGE", 2)
	v.SetDefault("COLOR_RATE_PER_PAGE", 5)
	v.SetDefault("SERVICE_FEE", 0)

	v.SetDefault("MAX_FILE_SIZE_BYTES", 20*1024*1024)
	v.SetDefault("UPLOAD_WORKERS", 4)
	v.SetDefault("UPLOAD_TIMEOUT", "30s")

	v.SetDefault("MAX_CODE_GEN_ATTEMPTS", 10)
	v.SetDefault("STRICT_PAGE_RANGES", false)

	v.SetDefault("BLOB_BACKEND", BlobBackendLocal)
	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("SUPABASE_SERVICE_KEY", "")
	v.SetDefault("SUPABASE_BUCKET", "print-orders")
	v.SetDefault("LOCAL_STORAGE_DIR", "./uploads")
	v.SetDefault("LOCAL_STORAGE_PUBLIC_BASE", "/files")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("STATUS_CACHE_TTL", "30s")
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
