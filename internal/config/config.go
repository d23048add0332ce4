package config

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Storage    StorageConfig
	Kafka      KafkaConfig
	RateLimit  RateLimitConfig
	Storefront StorefrontConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

// DSN returns a pgx connection string for the configured database.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable&search_path=%s",
		d.User, d.Password, net.JoinHostPort(d.Host, d.Port), d.Database, d.Schema)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, r.Port)
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // minutes
	RefreshExpiry int // days
}

// StorageConfig locates uploaded product images.
type StorageConfig struct {
	Dir           string
	PublicBaseURL string
}

// KafkaConfig enables order event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers    []string
	OrderTopic string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// StorefrontConfig drives the terminal storefront.
type StorefrontConfig struct {
	APIURL          string
	SessionFile     string
	ProbeTimeout    time.Duration
	ProbeInterval   time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	RetryMultiplier float64
	DeclinedCards   []string
}

// Load reads configuration from the environment, with an optional .env file
// in the working directory.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not read .env file: %v", err)
	}
	return FromViper(viper.New())
}

// FromViper reads configuration from v after applying defaults.
func FromViper(v *viper.Viper) *Config {
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_DATABASE"),
			Schema:   v.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        v.GetString("JWT_SECRET"),
			AccessExpiry:  v.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: v.GetInt("JWT_REFRESH_EXPIRY"),
		},
		Storage: StorageConfig{
			Dir:           v.GetString("STORAGE_DIR"),
			PublicBaseURL: strings.TrimRight(v.GetString("STORAGE_PUBLIC_BASE_URL"), "/"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(v.GetString("KAFKA_BROKERS")),
			OrderTopic: v.GetString("KAFKA_ORDER_TOPIC"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Storefront: StorefrontConfig{
			APIURL:          strings.TrimRight(v.GetString("STOREFRONT_API_URL"), "/"),
			SessionFile:     v.GetString("STOREFRONT_SESSION_FILE"),
			ProbeTimeout:    v.GetDuration("STOREFRONT_PROBE_TIMEOUT"),
			ProbeInterval:   v.GetDuration("STOREFRONT_PROBE_INTERVAL"),
			RetryAttempts:   v.GetInt("STOREFRONT_RETRY_ATTEMPTS"),
			RetryBaseDelay:  v.GetDuration("STOREFRONT_RETRY_BASE_DELAY"),
			RetryMultiplier: v.GetFloat64("STOREFRONT_RETRY_MULTIPLIER"),
			DeclinedCards:   splitList(v.GetString("STOREFRONT_DECLINED_CARDS")),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_EXPIRY", 15)
	v.SetDefault("JWT_REFRESH_EXPIRY", 7)
	v.SetDefault("STORAGE_DIR", "data/storage")
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("KAFKA_ORDER_TOPIC", "storefront.orders")
	v.SetDefault("RATE_LIMIT_REQUESTS", 20)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)
	v.SetDefault("STOREFRONT_API_URL", "http://localhost:8080")
	v.SetDefault("STOREFRONT_SESSION_FILE", "")
	v.SetDefault("STOREFRONT_PROBE_TIMEOUT", 5*time.Second)
	v.SetDefault("STOREFRONT_PROBE_INTERVAL", 30*time.Second)
	v.SetDefault("STOREFRONT_RETRY_ATTEMPTS", 3)
	v.SetDefault("STOREFRONT_RETRY_BASE_DELAY", time.Second)
	v.SetDefault("STOREFRONT_RETRY_MULTIPLIER", 2.0)
	v.SetDefault("STOREFRONT_DECLINED_CARDS", "0002")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
