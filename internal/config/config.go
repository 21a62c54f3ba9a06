// Package config содержит загрузку и валидацию конфигурации.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config представляет конфигурацию приложения
type Config struct {
	// Database
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnLifetime time.Duration
	DBConnectTries int
	DBConnectPause time.Duration

	// Health
	HealthPort         string
	HealthCheckEnabled bool

	// Logging
	LogLevel string

	// HTTP Client
	HTTPClientConfig HTTPClientConfig

	// Retry
	RetryConfig RetryConfig

	// Fetch
	FetchConfig FetchConfig

	// Batch
	MaxConcurrentParses int

	// Scheduler
	SyncCron string

	// Cache
	GroupCacheTTL time.Duration

	// Timezone
	Timezone string

	// App Data Directory
	AppDataDir string
}

// HTTPClientConfig представляет конфигурацию HTTP клиента
type HTTPClientConfig struct {
	RequestTimeout        time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	DisableKeepAlives     bool
}

// RetryConfig представляет конфигурацию retry механизма.
// MaxAttempts включает первую попытку.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// FetchConfig представляет конфигурацию загрузки страниц расписания
type FetchConfig struct {
	UserAgent string
	RateLimit float64 // запросов в секунду, 0 - без ограничения
	Burst     int
}

// Load загружает конфигурацию из переменных окружения и проверяет её
func Load() (*Config, error) {
	config := FromEnv()

	// Валидация обязательных полей
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// FromEnv читает конфигурацию без проверки
func FromEnv() *Config {
	// .env не обязателен
	_ = godotenv.Load()

	return &Config{
		DatabaseURL:        getEnv("DATABASE_URL", getEnv("DB_DSN", "")),
		DBMaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 10),
		DBConnLifetime:     getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		DBConnectTries:     getEnvInt("DB_CONNECT_ATTEMPTS", 10),
		DBConnectPause:     getEnvDuration("DB_CONNECT_DELAY", 5*time.Second),
		HealthPort:         getEnv("HEALTH_PORT", "8080"),
		HealthCheckEnabled: getEnvBool("HEALTH_CHECK_ENABLED", true),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		HTTPClientConfig: HTTPClientConfig{
			RequestTimeout:        getEnvSeconds("REQUEST_TIMEOUT", 30*time.Second),
			MaxIdleConns:          getEnvInt("HTTP_MAX_IDLE_CONNS", 100),
			MaxIdleConnsPerHost:   getEnvInt("HTTP_MAX_IDLE_CONNS_PER_HOST", 10),
			IdleConnTimeout:       getEnvDuration("HTTP_IDLE_CONN_TIMEOUT", 90*time.Second),
			TLSHandshakeTimeout:   getEnvDuration("HTTP_TLS_HANDSHAKE_TIMEOUT", 10*time.Second),
			ResponseHeaderTimeout: getEnvDuration("HTTP_RESPONSE_HEADER_TIMEOUT", 30*time.Second),
			DisableKeepAlives:     getEnvBool("HTTP_DISABLE_KEEP_ALIVES", false),
		},
		RetryConfig: RetryConfig{
			MaxAttempts:       getEnvInt("RETRY_MAX_ATTEMPTS", getEnvInt("MAX_RETRIES", 3)),
			InitialDelay:      getEnvDuration("RETRY_INITIAL_DELAY", 1*time.Second),
			MaxDelay:          getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
			BackoffMultiplier: getEnvFloat("RETRY_BACKOFF_MULTIPLIER", 2.0),
		},
		FetchConfig: FetchConfig{
			UserAgent: getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"),
			RateLimit: getEnvFloat("FETCH_RATE_LIMIT", 2.0),
			Burst:     getEnvInt("FETCH_BURST", 1),
		},
		MaxConcurrentParses: getEnvInt("MAX_CONCURRENT_PARSES", 5),
		SyncCron:            getEnv("SYNC_CRON", "0 */2 * * *"),
		GroupCacheTTL:       getEnvDuration("GROUP_CACHE_TTL", 10*time.Minute),
		Timezone:            getEnv("TIMEZONE", "Europe/Moscow"),
		AppDataDir:          getEnv("APP_DATA_DIR", "./data"),
	}
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return c.ValidateOffline()
}

// ValidateOffline проверяет всё, кроме параметров базы данных.
// Используется в режиме разбора без записи.
func (c *Config) ValidateOffline() error {
	if c.MaxConcurrentParses < 1 {
		return fmt.Errorf("MAX_CONCURRENT_PARSES must be positive, got %d", c.MaxConcurrentParses)
	}

	if err := c.RetryConfig.Validate(); err != nil {
		return err
	}

	if c.HTTPClientConfig.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	if c.FetchConfig.RateLimit < 0 {
		return fmt.Errorf("FETCH_RATE_LIMIT must not be negative")
	}

	if c.HealthCheckEnabled {
		port, err := strconv.Atoi(c.HealthPort)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid HEALTH_PORT: %q", c.HealthPort)
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}

	return nil
}

// Validate проверяет параметры повторов
func (r RetryConfig) Validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if r.InitialDelay < 0 || r.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if r.BackoffMultiplier < 1 {
		return fmt.Errorf("RETRY_BACKOFF_MULTIPLIER must be >= 1")
	}
	return nil
}

// Location возвращает часовой пояс приложения
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv получает переменную окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает переменную окружения как int
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration получает переменную окружения как time.Duration
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvSeconds принимает и "30s", и просто число секунд
func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	return getEnvDuration(key, defaultValue)
}

// getEnvBool получает переменную окружения как bool
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvFloat получает переменную окружения как float64
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
