// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret                     string `mapstructure:"JWT_SECRET"`
	Port                          string `mapstructure:"PORT"`
	DBHost                        string `mapstructure:"DB_HOST"`
	DBPort                        string `mapstructure:"DB_PORT"`
	DBUser                        string `mapstructure:"DB_USER"`
	DBPassword                    string `mapstructure:"DB_PASSWORD"`
	DBName                        string `mapstructure:"DB_NAME"`
	DBSSLMode                     string `mapstructure:"DB_SSLMODE"`
	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	DBMaxOpenConns                int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	RedisURL                      string `mapstructure:"REDIS_URL"`
	AllowedOrigins                string `mapstructure:"ALLOWED_ORIGINS"`
	Env                           string `mapstructure:"APP_ENV"`

	// Admin allowlist, comma separated. Used together with the profile role.
	AdminEmails    string `mapstructure:"ADMIN_EMAILS"`
	AdminUsernames string `mapstructure:"ADMIN_USERNAMES"`

	// Development-only root admin, created by the seeder runtime.
	DevBootstrapRoot        bool   `mapstructure:"DEV_BOOTSTRAP_ROOT"`
	DevRootEmail            string `mapstructure:"DEV_ROOT_EMAIL"`
	DevRootUsername         string `mapstructure:"DEV_ROOT_USERNAME"`
	DevRootPassword         string `mapstructure:"DEV_ROOT_PASSWORD"`
	DevRootForceCredentials bool   `mapstructure:"DEV_ROOT_FORCE_CREDENTIALS"`

	// Change feed transport: "redis", "nats" or "memory".
	ChangeFeedDriver string `mapstructure:"CHANGE_FEED_DRIVER"`
	NATSURL          string `mapstructure:"NATS_URL"`

	MediaUploadEndpoint    string  `mapstructure:"MEDIA_UPLOAD_ENDPOINT"`
	MediaCloudName         string  `mapstructure:"CLOUDINARY_CLOUD_NAME"`
	MediaUploadPreset      string  `mapstructure:"CLOUDINARY_UPLOAD_PRESET"`
	MediaMaxUploadSizeMB   int     `mapstructure:"MEDIA_MAX_UPLOAD_MB"`
	MediaCompressAboveKB   int     `mapstructure:"MEDIA_COMPRESS_ABOVE_KB"`
	MediaUploadTimeoutSecs int     `mapstructure:"MEDIA_UPLOAD_TIMEOUT_SECONDS"`
	GeminiAPIKey           string  `mapstructure:"GEMINI_API_KEY"`
	GeminiModel            string  `mapstructure:"GEMINI_MODEL"`
	GeminiEndpoint         string  `mapstructure:"GEMINI_ENDPOINT"`
	GeminiTimeoutSecs      int     `mapstructure:"GEMINI_TIMEOUT_SECONDS"`
	RateLimitPresetsFile   string  `mapstructure:"RATE_LIMIT_PRESETS_FILE"`
	TracingEnabled         bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter        string  `mapstructure:"TRACING_EXPORTER"`
	TracingOTLPEndpoint    string  `mapstructure:"TRACING_OTLP_ENDPOINT"`
	TracingSamplerRatio    float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from .env, config files and environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			log.Printf("Loaded environment from %s", p)
			break
		}
	}

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file may not exist.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.DBSSLMode = strings.ToLower(strings.TrimSpace(config.DBSSLMode))
	config.ChangeFeedDriver = strings.ToLower(strings.TrimSpace(config.ChangeFeedDriver))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "campushub")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ADMIN_EMAILS", "")
	viper.SetDefault("ADMIN_USERNAMES", "")
	viper.SetDefault("DEV_BOOTSTRAP_ROOT", false)
	viper.SetDefault("DEV_ROOT_EMAIL", "root@campushub.local")
	viper.SetDefault("DEV_ROOT_USERNAME", "campus_root")
	viper.SetDefault("DEV_ROOT_PASSWORD", "")
	viper.SetDefault("DEV_ROOT_FORCE_CREDENTIALS", false)
	viper.SetDefault("CHANGE_FEED_DRIVER", "redis")
	viper.SetDefault("NATS_URL", "nats://127.0.0.1:4222")
	viper.SetDefault("MEDIA_UPLOAD_ENDPOINT", "https://api.cloudinary.com/v1_1")
	viper.SetDefault("CLOUDINARY_CLOUD_NAME", "campushub-dev")
	viper.SetDefault("CLOUDINARY_UPLOAD_PRESET", "campushub_unsigned")
	viper.SetDefault("MEDIA_MAX_UPLOAD_MB", 100)
	viper.SetDefault("MEDIA_COMPRESS_ABOVE_KB", 1024)
	viper.SetDefault("MEDIA_UPLOAD_TIMEOUT_SECONDS", 60)
	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	viper.SetDefault("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("GEMINI_TIMEOUT_SECONDS", 30)
	viper.SetDefault("RATE_LIMIT_PRESETS_FILE", "")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("TRACING_OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

// IsProduction reports whether the config targets a production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// MediaUploadTimeout is the outbound timeout for media host calls.
func (c *Config) MediaUploadTimeout() time.Duration {
	if c.MediaUploadTimeoutSecs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.MediaUploadTimeoutSecs) * time.Second
}

// GeminiTimeout is the outbound timeout for AI menu parsing.
func (c *Config) GeminiTimeout() time.Duration {
	if c.GeminiTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.GeminiTimeoutSecs) * time.Second
}

// AdminEmailList returns the normalized admin email allowlist.
func (c *Config) AdminEmailList() []string {
	return splitList(c.AdminEmails)
}

// AdminUsernameList returns the normalized admin username allowlist.
func (c *Config) AdminUsernameList() []string {
	return splitList(c.AdminUsernames)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.MediaMaxUploadSizeMB < 0 {
		return errors.New("MEDIA_MAX_UPLOAD_MB must not be negative")
	}
	switch c.ChangeFeedDriver {
	case "", "redis", "nats", "memory":
	default:
		return fmt.Errorf("unsupported CHANGE_FEED_DRIVER %q", c.ChangeFeedDriver)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
		if c.GeminiAPIKey == "" {
			log.Println("WARNING: GEMINI_API_KEY is empty; mess menu uploads will use the static fallback menu.")
		}
		if c.MediaCloudName == "campushub-dev" {
			log.Println("WARNING: CLOUDINARY_CLOUD_NAME is the development default.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
