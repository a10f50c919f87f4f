package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kopikita-be/internal/broker"
	"kopikita-be/internal/config"
	"kopikita-be/internal/db"
	"kopikita-be/internal/logger"
	"kopikita-be/internal/metrics"
	"kopikita-be/internal/middleware"
	"kopikita-be/internal/order"
	"kopikita-be/internal/payment"
	"kopikita-be/internal/product"
	"kopikita-be/internal/realtime"
	"kopikita-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	initDBFunc = db.InitDB

	dialBrokerFunc = func(url string) (brokerPublisher, error) {
		return broker.Dial(url)
	}

	startServerFunc = func(ctx context.Context, addr string, handler http.Handler) error {
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
)

type brokerPublisher interface {
	realtime.Publisher
	Close() error
}

type routes struct {
	orders  *order.Handler
	webhook http.Handler
	ws      http.Handler
	recent  http.HandlerFunc
	metrics http.HandlerFunc
}

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv, cfg.LogLevel)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := newServer(ctx, cfg, database)

	addr := ":" + cfg.AppPort
	logger.L().Info("server running", zap.String("addr", addr), zap.String("env", cfg.AppEnv))
	return startServerFunc(ctx, addr, router)
}

// newServer wires repositories, the lifecycle service and the event fan-out.
func newServer(ctx context.Context, cfg *config.Config, database *sql.DB) http.Handler {
	stats := metrics.NewRegistry()
	hub := realtime.NewHub(stats)

	// cashier feed for GET /api/notifications/recent
	feed := realtime.NewFeed(realtime.DefaultFeedCapacity)
	hub.NewClient().On(order.CashierChannel, feed.Push)

	publisher := realtime.NewFanoutPublisher().Add("hub", hub)
	if cfg.RabbitMQURL != "" {
		pub, err := dialBrokerFunc(cfg.RabbitMQURL)
		if err != nil {
			logger.L().Warn("rabbitmq unavailable, events stay in-process", zap.Error(err))
		} else {
			publisher.Add("rabbitmq", pub)
			go func() {
				<-ctx.Done()
				_ = pub.Close()
			}()
		}
	}

	orderRepo := order.NewRepository(database)
	productRepo := product.NewRepository(database)
	orderSvc := order.NewService(orderRepo, productRepo, publisher, stats)

	paymentRepo := payment.NewRepository(database)

	return setupRouter(cfg, middleware.NewRateLimiter(ctx), routes{
		orders:  order.NewHandler(orderSvc),
		webhook: payment.NewWebhookHandler(orderSvc, paymentRepo, cfg.PaymentCallbackToken, stats),
		ws:      realtime.NewWSHandler(hub, cfg.CORSOrigin, stats),
		recent:  feed.Handler(),
		metrics: stats.Handler(),
	})
}

func setupRouter(cfg *config.Config, limiter *middleware.RateLimiter, rt routes) http.Handler {
	r := chi.NewRouter()

	r.Use(logger.RequestIDMiddleware)
	r.Use(middleware.CORS(cfg.CORSOrigin))
	r.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	r.Use(logger.LoggingMiddleware)
	r.Use(limiter.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/metrics", rt.metrics)
	r.Get("/ws", rt.ws.ServeHTTP)
	r.Post("/webhook/payment", rt.webhook.ServeHTTP)

	r.Route("/api", func(api chi.Router) {
		rt.orders.RegisterRoutes(api)
		api.With(middleware.RequireRole(utils.RoleAdmin, utils.RoleCashier)).
			Get("/notifications/recent", rt.recent)
	})

	return r
}
