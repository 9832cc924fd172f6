// Package sender приложение рассылки: читает очереди уведомлений и
// доставляет письма и SMS.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/union-portal/internal/config"
	"github.com/magabrotheeeer/union-portal/internal/lib/mail"
	"github.com/magabrotheeeer/union-portal/internal/lib/metrics"
	"github.com/magabrotheeeer/union-portal/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/lib/sms"
	senderservice "github.com/magabrotheeeer/union-portal/internal/services/sender"
)

// App воркер рассылки.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New подключается к брокеру и собирает транспорты доставки.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	mailer, err := mail.New(cfg.Mail, logger)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.New(mailer, sms.New(cfg.SMS, logger), m, logger),
		logger:        logger,
	}, nil
}

// Run подписывается на все очереди уведомлений и работает до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	handler := a.senderService.Handler(ctx)
	for _, q := range rabbitmq.NotificationQueues() {
		if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, q.QueueName, handler); err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), sl.Err(err))
			a.close()
			return err
		}
		a.logger.Info("consumer started", slog.String("queue", q.QueueName))
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
