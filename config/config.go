package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	DBSSLMode  string

	RedisAddr    string
	RedisChannel string

	JWTSecret string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	AppURL string

	NotifyScope      string
	AutosaveNotify   bool
	QuietPeriod      time.Duration
	ResubscribeDelay time.Duration

	LogLevel string
}

// Load reads configuration from the environment, after loading a .env file if
// one exists.
func Load() (Config, error) {
	// A missing .env is fine; the OS environment is used as is.
	_ = godotenv.Load()

	cfg := Config{
		Addr:         env("ADDR", ":8080"),
		DBUser:       env("DB_USER", "postgres"),
		DBPassword:   env("DB_PASSWORD", ""),
		DBHost:       env("DB_HOST", "localhost"),
		DBPort:       env("DB_PORT", "5432"),
		DBName:       env("DB_NAME", "collabdocs"),
		DBSSLMode:    env("DB_SSLMODE", "disable"),
		RedisAddr:    env("REDIS_ADDR", "localhost:6379"),
		RedisChannel: env("REDIS_CHANNEL", "documents"),
		JWTSecret:    env("JWT_SECRET", ""),
		SMTPHost:     env("SMTP_HOST", ""),
		SMTPUser:     env("SMTP_USER", ""),
		SMTPPassword: env("SMTP_PASSWORD", ""),
		MailFrom:     env("MAIL_FROM", "noreply@collabdocs.local"),
		AppURL:       strings.TrimRight(env("APP_URL", "http://localhost:3000"), "/"),
		NotifyScope:  env("NOTIFY_SCOPE", "auto"),
		LogLevel:     env("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.SMTPPort, err = envInt("SMTP_PORT", 587); err != nil {
		return Config{}, err
	}
	if cfg.AutosaveNotify, err = envBool("AUTOSAVE_NOTIFY", true); err != nil {
		return Config{}, err
	}
	if cfg.QuietPeriod, err = envDuration("QUIET_PERIOD", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ResubscribeDelay, err = envDuration("RESUBSCRIBE_DELAY", 2*time.Second); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DatabaseURL is the lib/pq connection string.
func (c Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := env(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := env(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := env(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
