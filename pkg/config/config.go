package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	AppEnv   string `toml:"app_env"`
	LogLevel string `toml:"log_level"`

	GRPCPort        int `toml:"grpc_port"`
	HTTPPort        int `toml:"http_port"`
	PaymentHTTPPort int `toml:"payment_http_port"`
	PaymentGRPCPort int `toml:"payment_grpc_port"`

	// DataPath is the sqlite file backing per-session client storage.
	// Empty keeps storage in memory.
	DataPath         string `toml:"data_path"`
	SessionCacheSize int    `toml:"session_cache_size"`

	CatalogURL    string   `toml:"catalog_url"`
	PaymentURL    string   `toml:"payment_url"`
	HTTPTimeout   Duration `toml:"http_timeout"`
	StockCacheTTL Duration `toml:"stock_cache_ttl"`

	Shipping Shipping `toml:"shipping"`

	BaseURL         string `toml:"base_url"`
	KhaltiBaseURL   string `toml:"khalti_base_url"`
	KhaltiSecretKey string `toml:"khalti_secret_key"`
	RabbitURI       string `toml:"rabbitmq_uri"`
	OrderQueue      string `toml:"order_queue"`

	OrdersDBPath   string   `toml:"orders_db_path"`
	IdempotencyTTL Duration `toml:"idempotency_ttl"`
}

// Shipping holds the fixed address parts sent with every payment request.
type Shipping struct {
	City    string `toml:"city"`
	Country string `toml:"country"`
	Zip     string `toml:"zip"`
}

// Duration decodes "15s"-style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func defaults() Config {
	return Config{
		AppEnv:           "dev",
		LogLevel:         "info",
		HTTPPort:         8080,
		GRPCPort:         8081,
		PaymentHTTPPort:  8000,
		PaymentGRPCPort:  8001,
		SessionCacheSize: 4096,
		CatalogURL:       "http://localhost:8002",
		PaymentURL:       "http://localhost:8000",
		HTTPTimeout:      Duration{15 * time.Second},
		StockCacheTTL:    Duration{5 * time.Second},
		Shipping: Shipping{
			City:    "Kathmandu",
			Country: "Nepal",
			Zip:     "44600",
		},
		BaseURL:        "http://localhost:5173",
		KhaltiBaseURL:  "https://dev.khalti.com/api/v2",
		OrderQueue:     "orders",
		OrdersDBPath:   "orders.db",
		IdempotencyTTL: Duration{24 * time.Hour},
	}
}

// Load reads defaults, then the TOML file named by CONFIG_FILE (if any), then
// environment overrides. A broken config file is fatal for the caller.
func Load() Config {
	cfg, err := LoadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func LoadFile(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = getEnvInt("GRPC_PORT", cfg.GRPCPort)
	cfg.PaymentHTTPPort = getEnvInt("PAYMENT_HTTP_PORT", cfg.PaymentHTTPPort)
	cfg.PaymentGRPCPort = getEnvInt("PAYMENT_GRPC_PORT", cfg.PaymentGRPCPort)
	cfg.DataPath = getEnv("DATA_PATH", cfg.DataPath)
	cfg.SessionCacheSize = getEnvInt("SESSION_CACHE_SIZE", cfg.SessionCacheSize)
	cfg.CatalogURL = getEnv("CATALOG_URL", cfg.CatalogURL)
	cfg.PaymentURL = getEnv("PAYMENT_URL", cfg.PaymentURL)
	cfg.HTTPTimeout.Duration = getEnvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout.Duration)
	cfg.StockCacheTTL.Duration = getEnvDuration("STOCK_CACHE_TTL", cfg.StockCacheTTL.Duration)
	cfg.BaseURL = getEnv("BASE_URL", cfg.BaseURL)
	cfg.KhaltiBaseURL = getEnv("KHALTI_BASE_URL", cfg.KhaltiBaseURL)
	cfg.KhaltiSecretKey = getEnv("KHALTI_SECRET_KEY", cfg.KhaltiSecretKey)
	cfg.RabbitURI = getEnv("RABBITMQ_URI", cfg.RabbitURI)
	cfg.OrderQueue = getEnv("ORDER_QUEUE", cfg.OrderQueue)
	cfg.OrdersDBPath = getEnv("ORDERS_DB_PATH", cfg.OrdersDBPath)
	cfg.IdempotencyTTL.Duration = getEnvDuration("IDEMPOTENCY_TTL", cfg.IdempotencyTTL.Duration)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)

	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
