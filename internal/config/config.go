package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (c DBConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

func (c DBConfig) MigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type OrdersConfig struct {
	HTTPPort int
	DB       DBConfig

	KafkaBrokers       []string
	KafkaConsumerGroup string

	OutboxPollInterval time.Duration
	OutboxPollTimeout  time.Duration

	JWTSecret string

	MigrationsPath string
}

type PaymentsConfig struct {
	HTTPPort int
	DB       DBConfig

	KafkaBrokers       []string
	KafkaConsumerGroup string

	OutboxPollInterval time.Duration
	OutboxPollTimeout  time.Duration

	JWTSecret string

	StripeBaseURL   string
	StripeSecretKey string
	StripeTimeout   time.Duration

	MigrationsPath string
}

type GatewayConfig struct {
	HTTPPort           int
	OrdersServiceURL   string
	PaymentsServiceURL string
	AllowedOrigins     []string
	RequestsPerMinute  int
}

func LoadOrdersConfig() (*OrdersConfig, error) {
	port, err := getEnvInt("ORDERS_HTTP_PORT", 8081)
	if err != nil {
		return nil, err
	}
	pollInterval, err := getEnvDuration("OUTBOX_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	pollTimeout, err := getEnvDuration("OUTBOX_POLL_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	return &OrdersConfig{
		HTTPPort:           port,
		DB:                 loadDBConfig("ORDERS", "orders_db"),
		KafkaBrokers:       []string{getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")},
		KafkaConsumerGroup: getEnvOrDefault("ORDERS_CONSUMER_GROUP", "orders-service-group"),
		OutboxPollInterval: pollInterval,
		OutboxPollTimeout:  pollTimeout,
		JWTSecret:          getEnvOrDefault("JWT_SECRET", "your-secret-key"),
		MigrationsPath:     getEnvOrDefault("ORDERS_MIGRATIONS_PATH", "file://migrations/orders"),
	}, nil
}

func LoadPaymentsConfig() (*PaymentsConfig, error) {
	port, err := getEnvInt("PAYMENTS_HTTP_PORT", 8082)
	if err != nil {
		return nil, err
	}
	pollInterval, err := getEnvDuration("OUTBOX_POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	pollTimeout, err := getEnvDuration("OUTBOX_POLL_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	stripeTimeout, err := getEnvDuration("STRIPE_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	return &PaymentsConfig{
		HTTPPort:           port,
		DB:                 loadDBConfig("PAYMENTS", "payments_db"),
		KafkaBrokers:       []string{getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")},
		KafkaConsumerGroup: getEnvOrDefault("PAYMENTS_CONSUMER_GROUP", "payments-service-group"),
		OutboxPollInterval: pollInterval,
		OutboxPollTimeout:  pollTimeout,
		JWTSecret:          getEnvOrDefault("JWT_SECRET", "your-secret-key"),
		StripeBaseURL:      getEnvOrDefault("STRIPE_BASE_URL", "https://api.stripe.com"),
		StripeSecretKey:    getEnvOrDefault("STRIPE_SECRET_KEY", ""),
		StripeTimeout:      stripeTimeout,
		MigrationsPath:     getEnvOrDefault("PAYMENTS_MIGRATIONS_PATH", "file://migrations/payments"),
	}, nil
}

func LoadGatewayConfig() (*GatewayConfig, error) {
	port, err := getEnvInt("GATEWAY_PORT", 8080)
	if err != nil {
		return nil, err
	}
	rpm, err := getEnvInt("GATEWAY_REQUESTS_PER_MINUTE", 100)
	if err != nil {
		return nil, err
	}
	return &GatewayConfig{
		HTTPPort:           port,
		OrdersServiceURL:   getEnvOrDefault("ORDERS_SERVICE_HOST", "http://localhost:8081"),
		PaymentsServiceURL: getEnvOrDefault("PAYMENTS_SERVICE_HOST", "http://localhost:8082"),
		AllowedOrigins:     []string{getEnvOrDefault("GATEWAY_ALLOWED_ORIGIN", "http://localhost:5173")},
		RequestsPerMinute:  rpm,
	}, nil
}

func loadDBConfig(prefix, defaultName string) DBConfig {
	return DBConfig{
		Host:     getEnvOrDefault(prefix+"_DB_HOST", "localhost"),
		Port:     getEnvOrDefault(prefix+"_DB_PORT", "5432"),
		User:     getEnvOrDefault(prefix+"_DB_USER", "postgres"),
		Password: getEnvOrDefault(prefix+"_DB_PASSWORD", "postgres"),
		Name:     getEnvOrDefault(prefix+"_DB_NAME", defaultName),
		SSLMode:  getEnvOrDefault(prefix+"_DB_SSLMODE", "disable"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
