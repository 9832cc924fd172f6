// Package portal HTTP-сервер портала профсоюза: страницы, API участника,
// админка и приём платежей.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/union-portal/internal/cache"
	"github.com/magabrotheeeer/union-portal/internal/config"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/health"
	"github.com/magabrotheeeer/union-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/union-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/union-portal/internal/lib/metrics"
	"github.com/magabrotheeeer/union-portal/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/migrations"
	"github.com/magabrotheeeer/union-portal/internal/paymentprovider"
	"github.com/magabrotheeeer/union-portal/internal/services/admin"
	"github.com/magabrotheeeer/union-portal/internal/services/auth"
	"github.com/magabrotheeeer/union-portal/internal/services/payment"
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
	"github.com/magabrotheeeer/union-portal/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App HTTP-сервер со всеми зависимостями.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	db      *repository.Storage
	cache   *cache.Cache
	conn    *amqp.Connection
	ch      *amqp.Channel
	limiter *middlewarectx.RateLimiter
}

// New подключает хранилища, применяет миграции и собирает роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	a.db = db
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		a.close()
		return nil, err
	}

	a.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	a.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	a.ch, err = rabbitmq.SetupChannel(a.conn, rabbitmq.NotificationQueues())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	publisher := rabbitmq.NewPublisher(a.ch)

	gateway, err := paymentprovider.New(cfg.PaymentGateway)
	if err != nil {
		a.close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	policy := subscription.PolicyFromConfig(cfg.Membership)

	authService := auth.New(db, a.cache, jwtMaker, publisher, m, logger)
	subscriptionService := subscription.New(db, a.cache, gateway, publisher, m, logger, subscription.Options{
		Policy:    policy,
		Plans:     cfg.Plans,
		Currency:  cfg.Currency,
		PublicURL: cfg.PublicURL,
	})
	if _, err = authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPhone, cfg.AdminPassword); err != nil {
		a.close()
		return nil, err
	}

	a.limiter = middlewarectx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	router := Handler(logger, Services{
		Auth:         authService,
		Subscription: subscriptionService,
		Payment:      payment.New(db, logger),
		Admin:        admin.New(db, policy, logger),
		Metrics:      m,
		Limiter:      a.limiter,
		Gatherer:     reg,
		Checks:       map[string]health.Pinger{"database": db, "redis": a.cache},
		SecureCookie: strings.HasPrefix(cfg.PublicURL, "https://"),
	})

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

// Run обслуживает запросы до отмены ctx и затем мягко останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	defer a.close()
	go a.limiter.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", sl.Err(err))
		}
	}
}
