// Package scheduler приложение фоновых задач: перевод просроченных членств
// в inactive, напоминания о продлении и закрытие зависших заказов.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/union-portal/internal/cache"
	"github.com/magabrotheeeer/union-portal/internal/config"
	"github.com/magabrotheeeer/union-portal/internal/lib/metrics"
	"github.com/magabrotheeeer/union-portal/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/paymentprovider"
	schedulerservice "github.com/magabrotheeeer/union-portal/internal/services/scheduler"
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
	"github.com/magabrotheeeer/union-portal/internal/storage/repository"
)

// Jobs задачи, запускаемые по расписанию.
type Jobs interface {
	SweepLapsed(ctx context.Context) (int, error)
	RemindUpcoming(ctx context.Context) (int, error)
	ExpireStaleOrders(ctx context.Context) (int, error)
}

// App представляет приложение планировщика.
type App struct {
	cron   *cron.Cron
	jobs   Jobs
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range 10 {
		if err := db.CheckDatabaseReady(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	a.db = db
	if err := waitForDB(ctx, db); err != nil {
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

	m := metrics.New(prometheus.DefaultRegisterer)
	confirmer := subscription.New(db, a.cache, gateway, publisher, m, logger, subscription.Options{
		Policy:    subscription.PolicyFromConfig(cfg.Membership),
		Plans:     cfg.Plans,
		Currency:  cfg.Currency,
		PublicURL: cfg.PublicURL,
	})
	jobs := schedulerservice.New(db, confirmer, a.cache, publisher, m, logger, schedulerservice.Options{
		RemindDays: cfg.RemindDays,
		OrderTTL:   cfg.OrderTTL,
	})

	a.jobs = jobs
	a.cron = cron.New(cron.WithLocation(time.UTC))
	if err := Schedule(ctx, a.cron, jobs, cfg.Scheduler, logger); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// Schedule регистрирует задачи в c по расписаниям из конфига.
func Schedule(ctx context.Context, c *cron.Cron, jobs Jobs, specs config.Scheduler, logger *slog.Logger) error {
	const op = "app.scheduler.Schedule"
	entries := []struct {
		name string
		spec string
		run  func(context.Context) (int, error)
	}{
		{"sweep_lapsed", specs.SweepSpec, jobs.SweepLapsed},
		{"remind_upcoming", specs.RemindSpec, jobs.RemindUpcoming},
		{"expire_stale_orders", specs.ExpireSpec, jobs.ExpireStaleOrders},
	}
	for _, e := range entries {
		if _, err := c.AddFunc(e.spec, job(ctx, e.name, e.run, logger)); err != nil {
			return fmt.Errorf("%s: job %s: %w", op, e.name, err)
		}
		logger.Info("job scheduled", slog.String("job", e.name), slog.String("spec", e.spec))
	}
	return nil
}

func job(ctx context.Context, name string, run func(context.Context) (int, error), logger *slog.Logger) func() {
	return func() {
		start := time.Now()
		n, err := run(ctx)
		if err != nil {
			logger.Error("job failed", slog.String("job", name), sl.Err(err))
			return
		}
		logger.Info("job finished",
			slog.String("job", name),
			slog.Int("affected", n),
			slog.Duration("took", time.Since(start)),
		)
	}
}

// Run запускает планировщик. Просроченные членства обрабатываются сразу при старте.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	job(ctx, "sweep_lapsed", a.jobs.SweepLapsed, a.logger)()
	a.cron.Start()
	for _, e := range a.cron.Entries() {
		a.logger.Info("next run", slog.Int("entry", int(e.ID)), slog.Time("at", e.Next))
	}

	<-ctx.Done()
	a.logger.Info("shutting down scheduler service")
	<-a.cron.Stop().Done()
	return nil
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
