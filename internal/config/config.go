// Package config loads the coordinator's configuration via viper, the way
// payments-service/config/config.go does, extended with strict
// unknown-key rejection (`spec.md` §6.4 requires it; the teacher does not
// enforce it).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type Config struct {
	ServiceName string     `mapstructure:"service_name"`
	Env         string     `mapstructure:"env"`
	Port        string     `mapstructure:"port"`
	Database    Database   `mapstructure:"database"`
	AWS         AWS        `mapstructure:"aws"`
	Kafka       Kafka      `mapstructure:"kafka"`
	Messaging   Messaging  `mapstructure:"messaging"`
	Saga        Saga       `mapstructure:"saga"`
	Telemetry   Telemetry  `mapstructure:"telemetry"`
	Reconciler  Reconciler `mapstructure:"reconciler"`
}

type Database struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type AWS struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`
	EndpointSNS     string `mapstructure:"endpoint_sns"`
	EndpointSQS     string `mapstructure:"endpoint_sqs"`
	SNSTopicArn     string `mapstructure:"sns_topic_arn"`
	SQSQueueURL     string `mapstructure:"sqs_queue_url"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers"`
}

// Messaging selects the broker adapter variant (§4.4/§9): "cloud-bus" or
// "kafka".
type Messaging struct {
	Provider string `mapstructure:"provider"`
}

// Saga holds the retry/scheduler/stuck-threshold keys spec.md §6.4 names.
type Saga struct {
	Retry     SagaRetry     `mapstructure:"retry"`
	Scheduler SagaScheduler `mapstructure:"scheduler"`
	Stuck     SagaStuck     `mapstructure:"stuck"`
}

type SagaRetry struct {
	MaxAttempts int `mapstructure:"maxAttempts"`
}

type SagaScheduler struct {
	StuckSagasRateMS int `mapstructure:"stuck-sagas-rate"`
	RetrySagasRateMS int `mapstructure:"retry-sagas-rate"`
}

type SagaStuck struct {
	ThresholdMinutes int `mapstructure:"threshold"`
}

type Telemetry struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Reconciler holds the cross-instance sweep-lock configuration.
type Reconciler struct {
	Lock ReconcilerLock `mapstructure:"lock"`
}

type ReconcilerLock struct {
	RedisURL string `mapstructure:"redis_url"`
}

func ReadConfig() (*Config, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("unable to get current file")
	}

	configDir := filepath.Join(filepath.Dir(filename))
	viper.SetConfigName(getConfigName())
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SAGA")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	decoderOpt := func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = true
	}
	if err := viper.Unmarshal(&config, decoderOpt); err != nil {
		return nil, fmt.Errorf("error unmarshaling config (unknown keys are rejected): %w", err)
	}

	return &config, nil
}

func getConfigName() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "local"
	}
	return env
}

func setDefaults() {
	viper.SetDefault("service_name", "order-saga-coordinator")
	viper.SetDefault("env", getEnv("ENV", "local"))
	viper.SetDefault("port", getEnv("PORT", "8080"))

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "order_saga_coordinator")
	viper.SetDefault("database.ssl_mode", "disable")

	viper.SetDefault("aws.access_key_id", getEnv("AWS_ACCESS_KEY_ID", "test"))
	viper.SetDefault("aws.secret_access_key", getEnv("AWS_SECRET_ACCESS_KEY", "test"))
	viper.SetDefault("aws.region", getEnv("AWS_DEFAULT_REGION", "us-east-1"))
	viper.SetDefault("aws.endpoint_sns", getEnv("AWS_ENDPOINT_URL_SNS", "http://localhost:4566"))
	viper.SetDefault("aws.endpoint_sqs", getEnv("AWS_ENDPOINT_URL_SQS", "http://localhost:4566"))
	viper.SetDefault("aws.sns_topic_arn", getEnv("SNS_TOPIC_ARN", "arn:aws:sns:us-east-1:000000000000:order-saga-events"))
	viper.SetDefault("aws.sqs_queue_url", getEnv("SQS_QUEUE_URL", "http://localhost:4566/000000000000/order-saga-events"))

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("messaging.provider", "cloud-bus")

	viper.SetDefault("saga.retry.maxAttempts", 3)
	viper.SetDefault("saga.scheduler.stuck-sagas-rate", 900000)
	viper.SetDefault("saga.scheduler.retry-sagas-rate", 300000)
	viper.SetDefault("saga.stuck.threshold", 30)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.otlp_endpoint", "localhost:4318")

	viper.SetDefault("reconciler.lock.redis_url", "")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetDatabaseURL constructs the Postgres connection string from config.
func (c *Config) GetDatabaseURL() string {
	if url := viper.GetString("database.url"); url != "" {
		return url
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}
