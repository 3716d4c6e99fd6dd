package config

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	Auth struct {
		JWTSecret string        `envconfig:"JWT_SECRET" default:"dev-secret-key"`
		TokenTTL  time.Duration `envconfig:"JWT_TTL" default:"24h"`
	} `envconfig:""`

	Cache struct {
		PostTTL time.Duration `envconfig:"CACHE_POST_TTL" default:"900s"`
	} `envconfig:""`

	WS struct {
		SendBuffer   int           `envconfig:"WS_SEND_BUFFER" default:"16"`
		WriteTimeout time.Duration `envconfig:"WS_WRITE_TIMEOUT" default:"10s"`
		PongTimeout  time.Duration `envconfig:"WS_PONG_TIMEOUT" default:"60s"`
	} `envconfig:""`

	Mail struct {
		Backend   string `envconfig:"MAIL_QUEUE_BACKEND" default:"redis"`
		QueueKey  string `envconfig:"MAIL_QUEUE_KEY" default:"mail_jobs"`
		RabbitURL string `envconfig:"RABBITMQ_URL"`
	} `envconfig:""`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load загружает конфиг из окружения, предварительно подхватив .env, если он есть.
func Load() AppConfig {
	cfg, err := load()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

func load() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, err
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
