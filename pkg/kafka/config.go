package kafka

import (
	"time"
)

// Config holds Kafka producer configuration.
type Config struct {
	Brokers  []string
	ClientID string

	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack
}

// DefaultConfig acks on all replicas; lifecycle events are low-volume and
// durability matters more than latency here.
func DefaultConfig() *Config {
	return &Config{
		Brokers:  []string{"localhost:9092"},
		ClientID: "freight-service",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,
	}
}

// Topics contains the Kafka topic names published by the freight service.
var Topics = struct {
	FreightEvents string
}{
	FreightEvents: "wms.freight.events",
}
