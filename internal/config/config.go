// Package config loads service configuration from an optional YAML file with
// environment variable overrides. Environment always wins so deployments can
// tune a shared base file per environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	HTTP     HTTPConfig     `yaml:"http"`
	MongoDB  MongoDBConfig  `yaml:"mongodb"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Packing  PackingConfig  `yaml:"packing"`
	Rates    RatesConfig    `yaml:"rates"`
	Carriers CarriersConfig `yaml:"carriers"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"logLevel"`
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type MongoDBConfig struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Timeout    time.Duration `yaml:"timeout"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	AuthDB     string        `yaml:"authDB"`
	ReplicaSet string        `yaml:"replicaSet"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// PackingConfig bounds the box packer.
type PackingConfig struct {
	MaxBoxWeightKg     float64 `yaml:"maxBoxWeightKg"`
	SatchelLimitKg     float64 `yaml:"satchelLimitKg"`
	MaxBoxVolumeM3     float64 `yaml:"maxBoxVolumeM3"`
	WeightSafetyFactor float64 `yaml:"weightSafetyFactor"`
}

// RatesConfig tunes the carrier rate engine.
type RatesConfig struct {
	CacheTTL     time.Duration `yaml:"cacheTTL"`
	MaxRetries   uint64        `yaml:"maxRetries"`
	RetryBackoff time.Duration `yaml:"retryBackoff"`
	PriceWeight  float64       `yaml:"priceWeight"`
	EtaWeight    float64       `yaml:"etaWeight"`
}

// CarriersConfig holds per-carrier rate cards keyed by carrier name.
type CarriersConfig struct {
	Origin   AddressConfig       `yaml:"origin"`
	Currency string              `yaml:"currency"`
	Cards    map[string]RateCard `yaml:"cards"`
}

type AddressConfig struct {
	Name     string `yaml:"name"`
	Street1  string `yaml:"street1"`
	Suburb   string `yaml:"suburb"`
	City     string `yaml:"city"`
	Postcode string `yaml:"postcode"`
	Country  string `yaml:"country"`
}

// RateCard prices one carrier's services. Box pricing is base plus per-kg;
// satchels are flat rate per satchel. Dropoff consignments get a percentage
// discount, pickups a flat fee.
type RateCard struct {
	SatchelRate        float64         `yaml:"satchelRate"`
	BoxBaseRate        float64         `yaml:"boxBaseRate"`
	BoxPerKgRate       float64         `yaml:"boxPerKgRate"`
	DropoffDiscountPct float64         `yaml:"dropoffDiscountPct"`
	PickupFee          float64         `yaml:"pickupFee"`
	Services           []ServiceOption `yaml:"services"`
}

// ServiceOption is one quotable service on a rate card. Multiplier scales
// the card's base pricing; EtaDays is the advertised transit time.
type ServiceOption struct {
	Name       string  `yaml:"name"`
	Level      string  `yaml:"level"`
	Multiplier float64 `yaml:"multiplier"`
	EtaDays    int     `yaml:"etaDays"`
}

type TracingConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "freight-service",
			Environment: "development",
			LogLevel:    "info",
		},
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      "mongodb://localhost:27017",
			Database: "freight",
			Timeout:  10 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "wms.freight.events",
		},
		Packing: PackingConfig{
			MaxBoxWeightKg:     25,
			SatchelLimitKg:     2,
			WeightSafetyFactor: 1.0,
		},
		Rates: RatesConfig{
			CacheTTL:     2 * time.Minute,
			MaxRetries:   2,
			RetryBackoff: 200 * time.Millisecond,
			PriceWeight:  0.7,
			EtaWeight:    0.3,
		},
		Carriers: CarriersConfig{
			Currency: "NZD",
			Origin: AddressConfig{
				Name:     "Distribution Centre",
				Street1:  "1 Warehouse Way",
				City:     "Auckland",
				Postcode: "1010",
				Country:  "NZ",
			},
			Cards: map[string]RateCard{
				"nz-post": {
					SatchelRate:        5.50,
					BoxBaseRate:        8.00,
					BoxPerKgRate:       0.85,
					DropoffDiscountPct: 10,
					PickupFee:          4.50,
					Services: []ServiceOption{
						{Name: "CourierPost Standard", Level: "standard", Multiplier: 1.0, EtaDays: 2},
						{Name: "CourierPost Overnight", Level: "overnight", Multiplier: 1.6, EtaDays: 1},
					},
				},
				"nz-couriers": {
					SatchelRate:        6.20,
					BoxBaseRate:        7.40,
					BoxPerKgRate:       0.95,
					DropoffDiscountPct: 8,
					PickupFee:          5.00,
					Services: []ServiceOption{
						{Name: "Standard", Level: "standard", Multiplier: 1.0, EtaDays: 2},
						{Name: "Priority Overnight", Level: "overnight", Multiplier: 1.75, EtaDays: 1},
					},
				},
			},
		},
		Tracing: TracingConfig{
			Enabled:      true,
			OTLPEndpoint: "localhost:4317",
		},
	}
}

// Load reads the YAML file at path (when non-empty) over the defaults, then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Service.Environment = getEnv("ENVIRONMENT", c.Service.Environment)
	c.Service.LogLevel = getEnv("LOG_LEVEL", c.Service.LogLevel)
	c.HTTP.Port = getEnvInt("PORT", c.HTTP.Port)
	c.MongoDB.URI = getEnv("MONGODB_URI", c.MongoDB.URI)
	c.MongoDB.Database = getEnv("MONGODB_DATABASE", c.MongoDB.Database)
	c.MongoDB.Username = getEnv("MONGODB_USERNAME", c.MongoDB.Username)
	c.MongoDB.Password = getEnv("MONGODB_PASSWORD", c.MongoDB.Password)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitAndTrim(brokers)
	}
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.OTLPEndpoint)
	if enabled := os.Getenv("TRACING_ENABLED"); enabled != "" {
		c.Tracing.Enabled = enabled == "true"
	}
}

// Validate rejects configurations the engine cannot operate under.
func (c *Config) Validate() error {
	if c.Packing.MaxBoxWeightKg <= 0 {
		return fmt.Errorf("packing.maxBoxWeightKg must be positive, got %v", c.Packing.MaxBoxWeightKg)
	}
	if c.Packing.SatchelLimitKg < 0 {
		return fmt.Errorf("packing.satchelLimitKg must not be negative, got %v", c.Packing.SatchelLimitKg)
	}
	if c.Packing.SatchelLimitKg > c.Packing.MaxBoxWeightKg {
		return fmt.Errorf("packing.satchelLimitKg (%v) exceeds packing.maxBoxWeightKg (%v)",
			c.Packing.SatchelLimitKg, c.Packing.MaxBoxWeightKg)
	}
	if f := c.Packing.WeightSafetyFactor; f <= 0 || f > 1 {
		return fmt.Errorf("packing.weightSafetyFactor must be in (0, 1], got %v", f)
	}
	if c.Rates.PriceWeight < 0 || c.Rates.EtaWeight < 0 || c.Rates.PriceWeight+c.Rates.EtaWeight == 0 {
		return fmt.Errorf("rates weights must be non-negative and not both zero")
	}
	if len(c.Carriers.Cards) == 0 {
		return fmt.Errorf("at least one carrier rate card is required")
	}
	for name, card := range c.Carriers.Cards {
		if len(card.Services) == 0 {
			return fmt.Errorf("carrier %q has no services", name)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
