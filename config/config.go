package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"fsm-service"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8081"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	// "json" or "console"
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Kafka Kafka `envPrefix:"KAFKA_"`
}

type Kafka struct {
	// Enabled=false turns every publish and subscribe into a logged no-op.
	Enabled  bool     `env:"ENABLED" envDefault:"true"`
	Brokers  []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	ClientID string   `env:"CLIENT_ID" envDefault:"fsm-service"`

	TLSEnabled            bool   `env:"TLS_ENABLED" envDefault:"false"`
	TLSInsecureSkipVerify bool   `env:"TLS_INSECURE_SKIP_VERIFY" envDefault:"false"`
	SASLMechanism         string `env:"SASL_MECHANISM"` // plain, scram-sha-256, scram-sha-512
	SASLUsername          string `env:"SASL_USERNAME"`
	SASLPassword          string `env:"SASL_PASSWORD"`

	DLQTopic       string            `env:"DLQ_TOPIC" envDefault:"fsm.dlq"`
	TopicPrefix    string            `env:"TOPIC_PREFIX" envDefault:"fsm."`
	TopicOverrides map[string]string `env:"TOPIC_OVERRIDES" envSeparator:"," envKeyValSeparator:":"`

	SessionTimeout     time.Duration `env:"SESSION_TIMEOUT" envDefault:"30s"`
	HeartbeatInterval  time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"3s"`
	AutoCommitInterval time.Duration `env:"AUTO_COMMIT_INTERVAL" envDefault:"5s"`

	Retries         int           `env:"RETRIES" envDefault:"8"`
	RetryBackoffMin time.Duration `env:"RETRY_BACKOFF_MIN" envDefault:"100ms"`
	RetryBackoffMax time.Duration `env:"RETRY_BACKOFF_MAX" envDefault:"30s"`
	ConnectTimeout  time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
}

func New() (Config, error) {
	c, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}

	return c, nil
}
