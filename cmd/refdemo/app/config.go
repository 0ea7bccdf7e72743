package app

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Config is the refdemo configuration file.
type Config struct {
	// BudgetBytes caps live control-block bytes. Zero means unlimited.
	BudgetBytes uint64      `yaml:"budget_bytes"`
	Verbosity   int         `yaml:"verbosity"`
	MetricsAddr string      `yaml:"metrics_addr"`
	Objects     int         `yaml:"objects"`
	Kafka       KafkaConfig `yaml:"kafka"`
}

// KafkaConfig enables publishing lifecycle events.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	// Client is "sarama" or "kafka-go".
	Client string `yaml:"client"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

func defaultConfig() Config {
	return Config{
		Objects: 16,
		Kafka: KafkaConfig{
			Topic:  "ownership-events",
			Client: "sarama",
		},
	}
}

// LoadConfig reads path over the defaults. An empty path yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Objects < 0 {
		return errors.Newf("objects must not be negative, got %d", c.Objects)
	}
	if c.Kafka.Enabled() {
		switch c.Kafka.Client {
		case "sarama", "kafka-go":
		default:
			return errors.Newf("unknown kafka client %q", c.Kafka.Client)
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka topic is required")
		}
	}
	return nil
}
