package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ramen-orders/internal/analytics"
	"ramen-orders/internal/auth"
	"ramen-orders/internal/config"
	"ramen-orders/internal/database/migrations"
	"ramen-orders/internal/kafka"
	"ramen-orders/internal/logger"
	"ramen-orders/internal/notify"
	"ramen-orders/internal/order"
	"ramen-orders/internal/order/api"
	"ramen-orders/internal/order/db"
	rediscart "ramen-orders/internal/order/redis"
	payment_handler "ramen-orders/internal/payment/handler"
	payment_storage "ramen-orders/internal/payment/storage"
	"ramen-orders/internal/qr"
	"ramen-orders/internal/receipt"
)

// subscribeCartExpiry listens for Redis key expiry events. An expired
// cart_hold key means the customer never checked out, which triggers the
// abandoned-cart reminder and a Kafka event.
func subscribeCartExpiry(rdb *redis.Client, carts *rediscart.CartStore, producer *kafka.Producer, notifier notify.Notifier, cfg *config.Config, log *logger.Logger) {
	ctx := context.Background()

	val, err := rdb.ConfigGet(ctx, "notify-keyspace-events").Result()
	if err != nil {
		log.Error("REDIS", fmt.Sprintf("Failed to get keyspace config: %v", err))
	} else if len(val) < 2 || !strings.Contains(val[1].(string), "E") || !strings.Contains(val[1].(string), "x") {
		log.Warn("REDIS", "Keyspace notifications not properly configured for expiry events!")
	}

	pubsub := rdb.PSubscribe(ctx, "__keyevent@0__:expired")
	log.Info("REDIS", "Subscribed to Redis keyevent expired notifications")

	go func() {
		for msg := range pubsub.Channel() {
			cartID := rediscart.HoldKeyCartID(msg.Payload)
			if cartID == "" {
				continue
			}
			log.Info("CART", fmt.Sprintf("Cart hold expired: %s", cartID))

			cart, err := carts.Get(ctx, cartID)
			if err != nil {
				log.Error("CART", fmt.Sprintf("Failed to load abandoned cart %s: %v", cartID, err))
				continue
			}

			unsubscribed, err := carts.IsUnsubscribed(ctx, cart.Email)
			if err != nil {
				log.Error("CART", fmt.Sprintf("Failed to check unsubscribe list for %s: %v", cart.Email, err))
			}
			if unsubscribed {
				log.Info("CART", fmt.Sprintf("Skipping reminder for %s, unsubscribed", cart.Email))
				_ = carts.Release(ctx, cartID)
				continue
			}

			if producer != nil {
				topic := cfg.Kafka.Topics.CartAbandoned
				if err := producer.PublishCartAbandoned(topic, *cart); err != nil {
					log.Error("KAFKA", fmt.Sprintf("Failed to publish cart abandoned event: %v", err))
					if err := kafka.CreateTopicIfNotExists(cfg.Kafka.Brokers, topic); err != nil {
						log.Error("KAFKA", fmt.Sprintf("Failed to create topic: %v", err))
					} else if err := producer.PublishCartAbandoned(topic, *cart); err != nil {
						log.Error("KAFKA", fmt.Sprintf("Still failed to publish after topic creation: %v", err))
					}
				}
			}

			if err := notifier.AbandonedCart(*cart, cfg.Checkout.RecoveryPromoCode); err != nil {
				log.Error("NOTIFY", fmt.Sprintf("Abandoned cart reminder for %s failed: %v", cart.Email, err))
			}

			// One reminder per capture; drop the snapshot.
			if err := carts.Release(ctx, cartID); err != nil {
				log.Error("CART", fmt.Sprintf("Failed to release cart %s: %v", cartID, err))
			}
		}
	}()
}

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	dsn := cfg.Database.DSN()

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	log.Info("DATABASE", "✅ PostgreSQL connection successful")

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	if _, err := redisClient.ConfigSet(ctx, "notify-keyspace-events", "Ex").Result(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	} else {
		log.Info("REDIS", "Keyspace notifications enabled for expired events")
	}

	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Ramen Orders service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	log.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	migrationOpts := migrations.DefaultOptions()
	migrationOpts.SeedData = os.Getenv("SEED_DATA") == "true"
	runner := migrations.NewRunner(bunDB, migrationOpts)
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	defer runner.Close()

	var kafkaProducer *kafka.Producer
	if cfg.Kafka.Enabled {
		kafkaProducer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer kafkaProducer.Close()
		log.Info("KAFKA", "Kafka producer initialized successfully")

		requiredTopics := []string{
			cfg.Kafka.Topics.OrderCreated,
			cfg.Kafka.Topics.OrderStatus,
			cfg.Kafka.Topics.OrderCancelled,
			cfg.Kafka.Topics.CartAbandoned,
			cfg.Kafka.Topics.PaymentSucceeded,
			cfg.Kafka.Topics.PaymentFailed,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled, lifecycle events will not be published")
	}

	cartStore := rediscart.NewCartStore(redisClient, cfg.Redis.CartTTL)
	qrGen := qr.NewGenerator(cfg.Checkout.QRSecret)
	mailer := notify.NewMailer(cfg.Email, log)

	var kafkaPort order.KafkaPublisher
	if kafkaProducer != nil {
		kafkaPort = kafkaProducer
	}
	orderService := order.NewOrderService(
		&db.DB{Bun: bunDB},
		cartStore,
		kafkaPort,
		mailer,
		order.NewDriverRoster(),
		qrGen,
		cfg.Checkout,
		cfg.Kafka.Topics,
		log,
	)

	stripeCheckout := order.NewStripeCheckout(cfg.Stripe)
	if stripeCheckout.Configured() {
		orderService.CreatePaymentURL = stripeCheckout.CreatePaymentURL
		log.Info("PAYMENT", "Stripe checkout configured")
	} else {
		log.Warn("PAYMENT", "Stripe not configured, card orders will confirm without payment")
	}

	paymentStore, err := payment_storage.NewPostgreSQLStoreWithDB(bunDB.DB, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to initialize payment store: %v", err))
	}

	analyticsService := analytics.NewService(bunDB)

	handler := &api.Handler{
		OrderService: orderService,
		Analytics:    analyticsService,
		Receipts:     receipt.NewGenerator(os.Getenv("RECEIPT_FONT_PATH")),
		Carts:        cartStore,
		Logger:       log,
	}

	webhookHandler := payment_handler.NewStripeHandler(
		cfg.Stripe, cfg.Kafka.Topics, paymentStore, kafkaProducer, orderService, &db.DB{Bun: bunDB}, log,
	)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Public Routes ---
	r.Route("/api", func(r chi.Router) {
		handler.RegisterPublicRoutes(r)
	})
	r.Mount("/api/payments", webhookHandler.Routes())
	log.Info("ROUTER", "Public order, promo, cart and payment webhook routes registered")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		if issuer := os.Getenv("OIDC_ISSUER"); issuer != "" {
			r.Use(auth.Middleware(issuer))
			log.Info("AUTH", "OIDC middleware applied to admin API routes")
		} else {
			log.Warn("AUTH", "OIDC_ISSUER not set, admin routes are UNPROTECTED")
		}
		r.Route("/api", func(r chi.Router) {
			handler.RegisterAdminRoutes(r)
		})
	})
	log.Info("ROUTER", "Admin routes registered under /api/admin")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info("REDIS", "Starting abandoned cart expiry subscription")
	subscribeCartExpiry(redisClient, cartStore, kafkaProducer, mailer, cfg, log)

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Ramen Orders service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Ramen Orders service shutdown complete")
	}
}
