// Package config loads runtime settings for the storefront binaries from the
// environment, after an optional .env file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the storefront server settings.
type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	AllowedOrigins     []string

	StripeSecretKey string
	StripeAPIURL    string
	Currency        string

	CatalogSource string // json, sqlite or postgres
	CatalogPath   string
	CatalogDSN    string

	KafkaBrokers []string
	KafkaTopic   string
}

// ShopConfig holds the terminal client settings.
type ShopConfig struct {
	LogLevel   string
	ServerURL  string
	Storage    string // file, redis or mongo
	StorageDir string
	RedisAddr  string
	MongoURI   string
	MongoDB    string
}

// Load reads the server configuration. A missing .env file is not an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppEnv:             getEnv("APP_ENV", "dev"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: getEnvInt64("MAX_REQUEST_BODY_SIZE", 1<<20), // 1MB
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:4321"}),
		StripeSecretKey:    getEnv("STRIPE_SECRET_KEY", ""),
		StripeAPIURL:       getEnv("STRIPE_API_URL", ""),
		Currency:           "usd",
		CatalogSource:      strings.ToLower(getEnv("CATALOG_SOURCE", "json")),
		CatalogPath:        getEnv("CATALOG_PATH", ""),
		CatalogDSN:         getEnv("CATALOG_DSN", ""),
		KafkaBrokers:       getEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "checkout-sessions"),
	}
}

// LoadShop reads the terminal client configuration.
func LoadShop() *ShopConfig {
	_ = godotenv.Load()

	return &ShopConfig{
		LogLevel:   getEnv("LOG_LEVEL", "warn"),
		ServerURL:  getEnv("SHOP_SERVER_URL", "http://localhost:8080"),
		Storage:    strings.ToLower(getEnv("SHOP_STORAGE", "file")),
		StorageDir: getEnv("SHOP_STORAGE_DIR", defaultStorageDir()),
		RedisAddr:  getEnv("SHOP_REDIS_ADDR", "localhost:6379"),
		MongoURI:   getEnv("SHOP_MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:    getEnv("SHOP_MONGO_DB", "shop"),
	}
}

// PaymentConfigured reports whether a payment provider secret is present.
func (c *Config) PaymentConfigured() bool {
	return c.StripeSecretKey != ""
}

func defaultStorageDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".shop"
	}
	return filepath.Join(dir, "shop")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// getEnvDuration accepts Go duration strings ("5s") or plain seconds ("5").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
