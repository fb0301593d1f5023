// Package config loads the server configuration from the environment.
//
// SOURCES (later wins):
//
//  1. defaults set on the viper instance
//  2. a .env file in the working directory, if present (godotenv)
//  3. real environment variables
//
// godotenv never overwrites a variable that is already set, so a value
// exported in the shell always beats the .env file.
//
// Load separates problems into two kinds. Missing REQUIRED keys are errors:
// the server cannot start without a database, a JWT secret and a port, and
// every missing key is reported at once. Missing OPTIONAL keys only disable
// a feature (captcha, image upload, email) and come back as warnings for the
// caller to log.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers selected by the database URI.
const (
	DriverSQLite  = "sqlite"
	DriverMongoDB = "mongodb"
)

const minJWTSecretLen = 16

type Config struct {
	Env       string
	Port      int
	LogLevel  string
	ClientURL string
	JWTSecret string

	Database   DatabaseConfig
	Captcha    CaptchaConfig
	Cloudinary CloudinaryConfig
	Email      EmailConfig
	Kafka      KafkaConfig
	OAuth      OAuthConfig
	Seed       SeedConfig

	RedisURL                  string
	SandboxEnabled            bool
	NotificationRetentionDays int
}

type DatabaseConfig struct {
	Driver string // DriverSQLite or DriverMongoDB
	URI    string // file path for sqlite, connection string for mongodb
	Name   string // mongodb database name
}

type CaptchaConfig struct {
	RecaptchaSecret string
	HCaptchaSecret  string
}

// Enabled reports whether any captcha provider is configured.
func (c CaptchaConfig) Enabled() bool {
	return c.RecaptchaSecret != "" || c.HCaptchaSecret != ""
}

type CloudinaryConfig struct {
	URL       string
	CloudName string
	APIKey    string
	APISecret string
}

func (c CloudinaryConfig) Enabled() bool {
	return c.URL != "" || (c.CloudName != "" && c.APIKey != "" && c.APISecret != "")
}

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func (c EmailConfig) Enabled() bool {
	return c.User != "" && c.Password != ""
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type OAuthConfig struct {
	GoogleClientID       string
	GoogleClientSecret   string
	FacebookClientID     string
	FacebookClientSecret string
	CallbackBase         string
}

// SeedConfig holds the staff accounts created by cmd/seed-admin.
type SeedConfig struct {
	AdminEmail        string
	AdminPassword     string
	AdminName         string
	ModeratorEmail    string
	ModeratorPassword string
	ModeratorName     string

	// OnStartup is true when ADMIN_EMAIL is set explicitly; the server then
	// seeds the staff accounts itself before serving.
	OnStartup bool
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads .env (if present) and the environment.
// It returns the config, the missing optional keys, and an error listing
// every missing or invalid required key.
func Load(envFiles ...string) (*Config, []string, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return nil, nil, fmt.Errorf("config: reading %s: %w", f, err)
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CLIENT_URL", "http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("EMAIL_HOST", "smtp.gmail.com")
	v.SetDefault("EMAIL_PORT", 587)
	v.SetDefault("MONGODB_DB", "codeshare")
	v.SetDefault("KAFKA_TOPIC", "codeshare.notifications")
	v.SetDefault("SANDBOX_ENABLED", false)
	v.SetDefault("NOTIFICATION_RETENTION_DAYS", 90)
	v.SetDefault("ADMIN_EMAIL", "admin@codeshare.com")
	v.SetDefault("ADMIN_PASSWORD", "admin123456")
	v.SetDefault("ADMIN_NAME", "Admin User")
	v.SetDefault("MODERATOR_EMAIL", "moderator@codeshare.com")
	v.SetDefault("MODERATOR_PASSWORD", "mod123456")
	v.SetDefault("MODERATOR_NAME", "Moderator User")
}

// firstOf returns the value of the first key that is set.
func firstOf(v *viper.Viper, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(v.GetString(k)); s != "" {
			return s
		}
	}
	return ""
}

func fromViper(v *viper.Viper) (*Config, []string, error) {
	var (
		problems []string
		warnings []string
	)

	cfg := &Config{
		Env:       strings.ToLower(firstOf(v, "NODE_ENV", "APP_ENV")),
		LogLevel:  v.GetString("LOG_LEVEL"),
		ClientURL: strings.TrimRight(v.GetString("CLIENT_URL"), "/"),
		JWTSecret: v.GetString("JWT_SECRET"),
		Captcha: CaptchaConfig{
			RecaptchaSecret: v.GetString("RECAPTCHA_SECRET_KEY"),
			HCaptchaSecret:  v.GetString("HCAPTCHA_SECRET_KEY"),
		},
		Cloudinary: CloudinaryConfig{
			URL:       v.GetString("CLOUDINARY_URL"),
			CloudName: v.GetString("CLOUDINARY_CLOUD_NAME"),
			APIKey:    v.GetString("CLOUDINARY_API_KEY"),
			APISecret: v.GetString("CLOUDINARY_API_SECRET"),
		},
		Email: EmailConfig{
			Host:     v.GetString("EMAIL_HOST"),
			Port:     v.GetInt("EMAIL_PORT"),
			User:     v.GetString("EMAIL_USER"),
			Password: firstOf(v, "EMAIL_PASS", "EMAIL_APP_PASSWORD"),
			From:     v.GetString("EMAIL_FROM"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		OAuth: OAuthConfig{
			GoogleClientID:       v.GetString("GOOGLE_CLIENT_ID"),
			GoogleClientSecret:   v.GetString("GOOGLE_CLIENT_SECRET"),
			FacebookClientID:     v.GetString("FACEBOOK_CLIENT_ID"),
			FacebookClientSecret: v.GetString("FACEBOOK_CLIENT_SECRET"),
			CallbackBase:         strings.TrimRight(v.GetString("OAUTH_CALLBACK_BASE"), "/"),
		},
		Seed: SeedConfig{
			AdminEmail:        v.GetString("ADMIN_EMAIL"),
			AdminPassword:     v.GetString("ADMIN_PASSWORD"),
			AdminName:         v.GetString("ADMIN_NAME"),
			ModeratorEmail:    v.GetString("MODERATOR_EMAIL"),
			ModeratorPassword: v.GetString("MODERATOR_PASSWORD"),
			ModeratorName:     v.GetString("MODERATOR_NAME"),
			OnStartup:         isSetInEnv("ADMIN_EMAIL"),
		},
		RedisURL:                  v.GetString("REDIS_URL"),
		SandboxEnabled:            v.GetBool("SANDBOX_ENABLED"),
		NotificationRetentionDays: v.GetInt("NOTIFICATION_RETENTION_DAYS"),
	}
	if cfg.Env == "" {
		cfg.Env = "development"
		warnings = append(warnings, "NODE_ENV")
	}
	if cfg.Email.From == "" {
		cfg.Email.From = cfg.Email.User
	}

	// Required.
	if uri := firstOf(v, "MONGODB_URI", "DATABASE_URL"); uri == "" {
		problems = append(problems, "MONGODB_URI (or DATABASE_URL) is required")
	} else {
		cfg.Database = parseDatabase(uri, v.GetString("MONGODB_DB"))
	}

	switch {
	case cfg.JWTSecret == "":
		problems = append(problems, "JWT_SECRET is required")
	case len(cfg.JWTSecret) < minJWTSecretLen:
		problems = append(problems, fmt.Sprintf("JWT_SECRET must be at least %d characters", minJWTSecretLen))
	}

	if s := v.GetString("PORT"); s == "" {
		problems = append(problems, "PORT is required")
	} else if port := v.GetInt("PORT"); port <= 0 || port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT %q is not a valid port", s))
	} else {
		cfg.Port = port
	}

	if len(problems) > 0 {
		return nil, nil, errors.New("config: " + strings.Join(problems, "; "))
	}

	// Optional.
	if !isSetInEnv("CLIENT_URL") {
		warnings = append(warnings, "CLIENT_URL")
	}
	if !cfg.Captcha.Enabled() {
		warnings = append(warnings, "RECAPTCHA_SECRET_KEY", "HCAPTCHA_SECRET_KEY")
	}
	if !cfg.Cloudinary.Enabled() {
		warnings = append(warnings, "CLOUDINARY_CLOUD_NAME", "CLOUDINARY_API_KEY", "CLOUDINARY_API_SECRET")
	}
	if cfg.Email.User == "" {
		warnings = append(warnings, "EMAIL_USER")
	}
	if cfg.Email.Password == "" {
		warnings = append(warnings, "EMAIL_PASS")
	}

	return cfg, warnings, nil
}

func isSetInEnv(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

// parseDatabase picks the driver from the URI scheme.
func parseDatabase(uri, mongoDB string) DatabaseConfig {
	if strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://") {
		return DatabaseConfig{Driver: DriverMongoDB, URI: uri, Name: mongoDB}
	}
	return DatabaseConfig{Driver: DriverSQLite, URI: strings.TrimPrefix(uri, "sqlite://")}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
