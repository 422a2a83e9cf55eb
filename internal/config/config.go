package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTP     `yaml:"http"`
	Postgres PG       `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Pricing  Pricing  `yaml:"pricing"`
	Refill   Refill   `yaml:"refill"`
	Outbox   Outbox   `yaml:"outbox"`
	Logger   LogLevel `yaml:"logger"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
}

type PG struct {
	URL string `yaml:"url" env:"DB_URL"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL" env-default:"10m"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_ORDER_TOPIC" env-default:"order_events"`
}

// Pricing carries the policy constants of the pricing calculator. The
// 10% tax rate and the flat 10.00 shipping cost are defaults, not
// business rules.
type Pricing struct {
	TaxRate      string `yaml:"tax_rate" env:"PRICING_TAX_RATE" env-default:"0.10"`
	ShippingCost string `yaml:"shipping_cost" env:"PRICING_SHIPPING_COST" env-default:"10.00"`
}

type Refill struct {
	SweepInterval time.Duration `yaml:"sweep_interval" env:"REFILL_SWEEP_INTERVAL" env-default:"24h"`
}

type Outbox struct {
	BatchSize int           `yaml:"batch_size" env:"OUTBOX_BATCH_SIZE" env-default:"50"`
	Interval  time.Duration `yaml:"interval" env:"OUTBOX_INTERVAL" env-default:"500ms"`
}

type LogLevel struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/local.yaml"
	}

	var cfg Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// no config file, env only
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("error reading config from env: %v", err)
		}
		return &cfg
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	return &cfg
}
