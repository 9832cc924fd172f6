// Package scheduler фоновые задачи членства: истечение подписок,
// напоминания о продлении и закрытие брошенных заказов.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/models"
	"github.com/magabrotheeeer/union-portal/internal/paymentprovider"
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
)

const staleBatch = 100

// Repository хранилище участников и платежей.
type Repository interface {
	MarkLapsed(ctx context.Context, now time.Time) ([]*models.User, error)
	FindRenewalsDue(ctx context.Context, from, to time.Time) ([]*models.User, error)
	ListStalePayments(ctx context.Context, before time.Time, limit int) ([]*models.Payment, error)
	SettleUnpaid(ctx context.Context, orderID, status string) (*models.Payment, bool, error)
}

// Confirmer сверяет заказ со шлюзом.
type Confirmer interface {
	ConfirmOrder(ctx context.Context, orderID string) (*subscription.Confirmation, error)
}

// Cache защищает от повторных напоминаний.
type Cache interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
}

// Publisher очередь уведомлений.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Recorder счетчики задач.
type Recorder interface {
	Lapsed(n int)
	PaymentSettled(status string)
}

// Options параметры задач.
type Options struct {
	RemindDays int
	OrderTTL   time.Duration
}

// Service фоновые задачи.
type Service struct {
	repo      Repository
	confirmer Confirmer
	cache     Cache
	publisher Publisher
	metrics   Recorder
	log       *slog.Logger
	opts      Options
	now       func() time.Time
}

// New создает сервис фоновых задач.
func New(repo Repository, confirmer Confirmer, cache Cache, publisher Publisher, metrics Recorder,
	log *slog.Logger, opts Options) *Service {
	if opts.RemindDays <= 0 {
		opts.RemindDays = 3
	}
	if opts.OrderTTL <= 0 {
		opts.OrderTTL = 24 * time.Hour
	}
	return &Service{
		repo:      repo,
		confirmer: confirmer,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SweepLapsed переводит в inactive участников с прошедшей датой продления
// и отправляет им уведомление.
func (s *Service) SweepLapsed(ctx context.Context) (int, error) {
	const op = "scheduler.SweepLapsed"
	log := s.log.With(sl.Op(op))

	users, err := s.repo.MarkLapsed(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(users) == 0 {
		log.Info("no lapsed memberships")
		return 0, nil
	}
	s.metrics.Lapsed(len(users))
	for _, u := range users {
		msg := models.NotificationFromUser(models.NotifyLapsed, u)
		if err := s.publisher.Publish(ctx, models.NotifyLapsed, msg); err != nil {
			log.Error("failed to publish lapse notice", slog.String("user_uid", u.UID), sl.Err(err))
		}
	}
	log.Info("memberships lapsed", slog.Int("count", len(users)))
	return len(users), nil
}

// RemindUpcoming напоминает о продлении участникам, у которых срок наступает
// в ближайшие RemindDays дней. Каждому участнику один раз на дату продления.
func (s *Service) RemindUpcoming(ctx context.Context) (int, error) {
	const op = "scheduler.RemindUpcoming"
	log := s.log.With(sl.Op(op))

	now := s.now()
	window := time.Duration(s.opts.RemindDays) * 24 * time.Hour
	users, err := s.repo.FindRenewalsDue(ctx, now, now.Add(window))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	sent := 0
	for _, u := range users {
		key := "remind:" + u.UID + ":" + u.Subscription.RenewalDate.Format(time.DateOnly)
		first, err := s.cache.SetNX(ctx, key, 1, window+24*time.Hour)
		if err != nil {
			log.Warn("failed to check reminder mark", slog.String("user_uid", u.UID), sl.Err(err))
		}
		if err == nil && !first {
			continue
		}
		msg := models.NotificationFromUser(models.NotifyRenewalUpcoming, u)
		if err := s.publisher.Publish(ctx, models.NotifyRenewalUpcoming, msg); err != nil {
			log.Error("failed to publish reminder", slog.String("user_uid", u.UID), sl.Err(err))
			continue
		}
		sent++
	}
	log.Info("renewal reminders queued", slog.Int("due", len(users)), slog.Int("sent", sent))
	return sent, nil
}

// ExpireStaleOrders закрывает заказы старше OrderTTL. Перед этим заказ
// сверяется со шлюзом: оплаченный или отклоненный фиксируется как есть.
// При недоступности шлюза заказ остается открытым до следующего запуска.
func (s *Service) ExpireStaleOrders(ctx context.Context) (int, error) {
	const op = "scheduler.ExpireStaleOrders"
	log := s.log.With(sl.Op(op))

	stale, err := s.repo.ListStalePayments(ctx, s.now().Add(-s.opts.OrderTTL), staleBatch)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	expired := 0
	for _, p := range stale {
		_, err := s.confirmer.ConfirmOrder(ctx, p.ProviderOrderID)
		switch {
		case err == nil:
			continue
		case errors.Is(err, subscription.ErrPaymentPending), errors.Is(err, paymentprovider.ErrOrderNotFound):
		default:
			log.Warn("gateway check failed, order kept", slog.String("order_id", p.ProviderOrderID), sl.Err(err))
			continue
		}

		_, applied, err := s.repo.SettleUnpaid(ctx, p.ProviderOrderID, models.PaymentExpired)
		if err != nil {
			log.Error("failed to expire order", slog.String("order_id", p.ProviderOrderID), sl.Err(err))
			continue
		}
		if applied {
			s.metrics.PaymentSettled(models.PaymentExpired)
			expired++
		}
	}
	log.Info("stale orders processed", slog.Int("found", len(stale)), slog.Int("expired", expired))
	return expired, nil
}
