package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Email    EmailConfig
	Stripe   StripeConfig
	Checkout CheckoutConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// DSN builds the postgres connection string. POSTGRES_DSN overrides the
// individual fields when set.
func (c DatabaseConfig) DSN() string {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

type RedisConfig struct {
	Addr string
	// How long a captured cart sits in Redis before the expiry event fires
	// the abandoned-cart reminder.
	CartTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topics  TopicConfig
	Enabled bool
}

type TopicConfig struct {
	OrderCreated     string
	OrderStatus      string
	OrderCancelled   string
	CartAbandoned    string
	PaymentSucceeded string
	PaymentFailed    string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromAddress  string
}

// Configured reports whether SMTP credentials are present. Without them the
// notifier degrades to log-and-skip.
func (e EmailConfig) Configured() bool {
	return e.SMTPHost != "" && e.SMTPUsername != "" && e.SMTPPassword != ""
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type CheckoutConfig struct {
	// Tax applied to (subtotal - discount).
	TaxRate float64
	// Flat delivery fee for DELIVERY orders.
	DeliveryFee float64
	// Promo code attached to abandoned-cart reminder emails.
	RecoveryPromoCode string
	PickupAddress     string
	// Secret for the encrypted pickup pass QR payload.
	QRSecret string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8084"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "ramen_user"),
			Password:     getEnv("DB_PASSWORD", "ramen_pass"),
			Database:     getEnv("DB_NAME", "ramen_orders"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			CartTTL: time.Duration(getEnvInt("CART_TTL_MINUTES", 45)) * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnv("KAFKA_ADDR", "localhost:9092")},
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Topics: TopicConfig{
				OrderCreated:     getEnv("KAFKA_TOPIC_ORDER_CREATED", "ramen.order.created"),
				OrderStatus:      getEnv("KAFKA_TOPIC_ORDER_STATUS", "ramen.order.status"),
				OrderCancelled:   getEnv("KAFKA_TOPIC_ORDER_CANCELLED", "ramen.order.cancelled"),
				CartAbandoned:    getEnv("KAFKA_TOPIC_CART_ABANDONED", "ramen.cart.abandoned"),
				PaymentSucceeded: getEnv("KAFKA_TOPIC_PAYMENT_SUCCEEDED", "ramen.payment.succeeded"),
				PaymentFailed:    getEnv("KAFKA_TOPIC_PAYMENT_FAILED", "ramen.payment.failed"),
			},
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromAddress:  getEnv("SMTP_FROM", "orders@menya-kotetsu.jp"),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:    getEnv("STRIPE_SUCCESS_URL", "https://menya-kotetsu.jp/order/confirmed"),
			CancelURL:     getEnv("STRIPE_CANCEL_URL", "https://menya-kotetsu.jp/checkout"),
		},
		Checkout: CheckoutConfig{
			TaxRate:           getEnvFloat("CHECKOUT_TAX_RATE", 0.09),
			DeliveryFee:       getEnvFloat("CHECKOUT_DELIVERY_FEE", 3.50),
			RecoveryPromoCode: getEnv("CART_RECOVERY_PROMO", "COMEBACK10"),
			PickupAddress:     getEnv("PICKUP_ADDRESS", "Menya Kotetsu, 2-14-3 Ebisu, Shibuya-ku, Tokyo"),
			QRSecret:          getEnv("PICKUP_QR_SECRET", "menya-kotetsu-pickup-pass"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
