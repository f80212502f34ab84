package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	Port        int    `envconfig:"PORT" default:"8080"`

	SMTP struct {
		Host     string        `envconfig:"SMTP_SERVER" default:"smtp.gmail.com"`
		Port     int           `envconfig:"SMTP_PORT" default:"587"`
		User     string        `envconfig:"EMAIL_USER"`
		Password string        `envconfig:"EMAIL_PASSWORD"`
		From     string        `envconfig:"FROM_EMAIL"`
		ReplyTo  string        `envconfig:"REPLY_TO_EMAIL"`
		Timeout  time.Duration `envconfig:"SMTP_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Schedule struct {
		DailyWindowStart        string `envconfig:"DAILY_WINDOW_START" default:"07:00"`
		DailyWindowEnd          string `envconfig:"DAILY_WINDOW_END" default:"08:00"`
		PeriodicIntervalMinutes int    `envconfig:"PERIODIC_INTERVAL_MINUTES" default:"10"`
	} `envconfig:""`

	Defaults struct {
		DaysAhead int `envconfig:"DAYS_AHEAD_DEFAULT" default:"4"`
		MinSpots  int `envconfig:"MIN_SPOTS_DEFAULT" default:"1"`
	} `envconfig:""`

	Scraper struct {
		GridURLs        string `envconfig:"GOLFBOX_GRID_URL"`
		GridLabels      string `envconfig:"GRID_LABELS"`
		IntervalMinutes int    `envconfig:"SCRAPE_INTERVAL_MINUTES" default:"5"`
		DaysAhead       int    `envconfig:"SCRAPE_DAYS_AHEAD" default:"4"`
	} `envconfig:""`

	Queues struct {
		Scrapes string `envconfig:"SCRAPE_QUEUE_KEY" default:"scrape_batches"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
