package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/payment"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/rabbitmq"
)

const serviceName = "storefront"

// application holds every long-lived dependency of the HTTP server.
type application struct {
	logger   *zap.Logger
	db       *gorm.DB
	store    *repositories.GormStore
	mq       *rabbitmq.Client
	registry *prometheus.Registry
	auth     *services.AuthService
	http     *fiber.App
}

func main() {
	// --- Configuration ---
	cfg, err := config.Load(viper.New())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.NewLogger(serviceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	app, err := newApplication(cfg, log)
	if err != nil {
		log.Fatal("failed to initialise application", zap.Error(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("error while releasing resources", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SeedData {
		if err := seedData(ctx, app.store, cfg.Auth.AdminPassword, log); err != nil {
			log.Fatal("failed to seed data", zap.Error(err))
		}
	}

	// --- Start RabbitMQ Consumer ---
	if app.mq != nil {
		if err := app.mq.ConsumeOrderEvents(orderEventHandler(log)); err != nil {
			// The API keeps serving; events stay queued until a consumer attaches.
			log.Error("failed to start order event consumer", zap.Error(err))
		}
	}

	// --- Start HTTP Server ---
	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Port))
		serverErr <- app.http.Listen(cfg.Port)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("http server failed", zap.Error(err))
		}
	}

	if err := app.http.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("error during fiber shutdown", zap.Error(err))
	}
	log.Info("server gracefully stopped")
}

// newApplication opens the database, connects optional infrastructure and
// wires services into a Fiber app. It does not start listening.
func newApplication(cfg config.Config, log *zap.Logger) (*application, error) {
	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		closeDB(db)
		return nil, err
	}

	a := &application{
		logger:   log,
		db:       db,
		store:    repositories.NewGormStore(db),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gateway, err := payment.NewGateway(cfg.Payment, log)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	log.Info("payment gateway configured", zap.String("provider", cfg.Payment.Provider))

	orderOpts := []services.OrderServiceOption{
		services.WithMetrics(metrics.New(a.registry)),
		services.WithRefundOnCancel(cfg.Payment.RefundOnCancel),
	}

	// --- Initialize RabbitMQ Client ---
	if cfg.RabbitMQ.Enabled {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Exchange: cfg.RabbitMQ.Exchange}, log)
		if err != nil {
			closeDB(db)
			return nil, err
		}
		a.mq = mq
		orderOpts = append(orderOpts, services.WithPublisher(mq, mq.Exchange()))
	} else {
		log.Info("rabbitmq disabled, order events will not be published")
	}

	// --- Initialize Services ---
	a.auth = services.NewAuthService(a.store.Users(), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	a.http = a.buildHTTP(handlers.Services{
		Auth:           a.auth,
		Products:       services.NewProductService(a.store.Products()),
		Carts:          services.NewCartService(a.store),
		Orders:         services.NewOrderService(a.store, gateway, orderOpts...),
		PaymentTimeout: cfg.Payment.Timeout,
	})
	return a, nil
}

func (a *application) buildHTTP(svc handlers.Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
	})

	// --- Middleware ---
	app.Use(logger.New()) // Request logger
	app.Use(middleware.RequestLogger(a.logger))

	// --- API Routes ---
	handlers.SetupRoutes(app.Group("/api/v1"), svc)

	app.Get("/health", a.health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	return app
}

// health reports whether the database answers and whether events are published.
func (a *application) health(c *fiber.Ctx) error {
	broker := "disabled"
	if a.mq != nil {
		broker = "connected"
	}

	status, code := "healthy", fiber.StatusOK
	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
		status, code = "unhealthy", fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"time":     time.Now().Format(time.RFC3339),
		"rabbitmq": broker,
	})
}

// Close releases the broker connection and the database pool.
func (a *application) Close() error {
	var errs []error
	if a.mq != nil {
		errs = append(errs, a.mq.Close())
	}
	if sqlDB, err := a.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// orderEventHandler logs every order event drained from the queue. Payments
// that need manual settlement are logged at error level for alerting.
func orderEventHandler(log *zap.Logger) rabbitmq.Handler {
	return func(msg amqp.Delivery) error {
		var event services.OrderEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			return fmt.Errorf("failed to decode order event: %w", err)
		}

		fields := []zap.Field{
			zap.String("event", event.Event),
			zap.String("order_id", event.OrderID),
			zap.String("user_id", event.UserID),
			zap.String("status", string(event.Status)),
			zap.Int64("total_amount", event.TotalAmount),
		}
		if event.Event == services.EventReconciliationRequired {
			log.Error("payment requires manual reconciliation", append(fields,
				zap.String("payment_key", event.PaymentKey),
				zap.String("reason", event.Reason),
				zap.Bool("critical", true),
			)...)
			return nil
		}
		log.Info("order event received", fields...)
		return nil
	}
}
