// Package config предоставляет структуры и функцию для парсинга и загрузки конфига.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string          `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string          `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	StoreTimeout            time.Duration   `yaml:"store_timeout" env:"STORE_TIMEOUT" env-default:"3s"`
	MigrationsPath          string          `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	HTTPServer              HTTPServer      `yaml:"http_server"`
	Redis                   RedisConnection `yaml:"redis_connection"`
	Identity                Identity        `yaml:"identity"`
	Gateway                 Gateway         `yaml:"gateway"`
	Session                 Session         `yaml:"session"`
	RabbitMQ                RabbitMQ        `yaml:"rabbitmq"`
	SMTP                    SMTP            `yaml:"smtp"`
	RateLimit               RateLimit       `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	Address     string        `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password    string        `yaml:"password" env:"REDIS_PASSWORD"`
	User        string        `yaml:"user"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries" env-default:"3"`
	DialTimeout time.Duration `yaml:"dial_timeout" env-default:"5s"`
	Timeout     time.Duration `yaml:"timeout" env-default:"2s"`
	TTL         time.Duration `yaml:"ttl" env-default:"5m"`
}

// Identity — провайдер аутентификации (GoTrue REST API).
type Identity struct {
	URL       string        `yaml:"url" env:"IDENTITY_URL" env-required:"true"`
	AnonKey   string        `yaml:"anon_key" env:"IDENTITY_ANON_KEY"`
	JWTSecret string        `yaml:"jwt_secret" env:"IDENTITY_JWT_SECRET" env-required:"true"`
	Timeout   time.Duration `yaml:"timeout" env-default:"10s"`
}

// Gateway — платежный шлюз.
type Gateway struct {
	APIURL        string        `yaml:"api_url" env:"GATEWAY_API_URL"`
	KeyID         string        `yaml:"key_id" env:"RAZORPAY_KEY_ID" env-required:"true"`
	KeySecret     string        `yaml:"key_secret" env:"RAZORPAY_KEY_SECRET" env-required:"true"`
	WebhookSecret string        `yaml:"webhook_secret" env:"RAZORPAY_WEBHOOK_SECRET" env-required:"true"`
	Timeout       time.Duration `yaml:"timeout" env-default:"10s"`
}

// Session — параметры cookie сессии.
type Session struct {
	CookieTTL time.Duration `yaml:"cookie_ttl" env-default:"24h"`
	CrossSite bool          `yaml:"cross_site" env:"SESSION_CROSS_SITE"`
}

// RabbitMQ — брокер событий о платежах.
type RabbitMQ struct {
	URL        string        `yaml:"url" env:"RABBITMQ_URL"`
	Exchange   string        `yaml:"exchange" env-default:"notifications"`
	Queue      string        `yaml:"queue" env-default:"payment_receipts"`
	MaxRetries int           `yaml:"max_retries" env-default:"5"`
	RetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// SMTP — отправка писем о продлении доступа.
type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM"`
}

// RateLimit — ограничение частоты запросов входа.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"1"`
	Burst int     `yaml:"burst" env-default:"5"`
}

// Load читает конфиг из path. Переменные окружения перекрывают значения файла.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	return &cfg, nil
}

// MustLoad загружает .env (если есть) и конфиг из CONFIG_PATH, при ошибке завершает процесс.
func MustLoad() *Config {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"StoreTimeout: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"Redis:\n"+
			"  Address: %s\n"+
			"  Password: %s\n"+
			"  TTL: %s\n"+
			"Identity:\n"+
			"  URL: %s\n"+
			"  JWTSecret: %s\n"+
			"Gateway:\n"+
			"  KeyID: %s\n"+
			"  KeySecret: %s\n"+
			"  WebhookSecret: %s\n"+
			"Session:\n"+
			"  CookieTTL: %s\n"+
			"  CrossSite: %t\n"+
			"RabbitMQ:\n"+
			"  URL: %s\n"+
			"SMTP:\n"+
			"  Host: %s\n"+
			"  Password: %s\n",
		c.Env,
		mask(c.StorageConnectionString),
		c.StoreTimeout,
		c.HTTPServer.Address,
		c.HTTPServer.Timeout,
		c.Redis.Address,
		mask(c.Redis.Password),
		c.Redis.TTL,
		c.Identity.URL,
		mask(c.Identity.JWTSecret),
		c.Gateway.KeyID,
		mask(c.Gateway.KeySecret),
		mask(c.Gateway.WebhookSecret),
		c.Session.CookieTTL,
		c.Session.CrossSite,
		mask(c.RabbitMQ.URL),
		c.SMTP.Host,
		mask(c.SMTP.Password),
	)
}
