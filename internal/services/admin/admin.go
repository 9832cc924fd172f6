// Package admin выборки и сводка для админки.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/union-portal/internal/models"
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
)

const memberPayments = 20

// Repository хранилище участников и платежей.
type Repository interface {
	ListUsers(ctx context.Context, f models.MemberFilter) ([]*models.User, error)
	CountUsers(ctx context.Context, f models.MemberFilter) (int, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	ListPayments(ctx context.Context, f models.PaymentFilter) ([]*models.Payment, error)
	CountPayments(ctx context.Context, f models.PaymentFilter) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountLapsed(ctx context.Context, now time.Time, graceMonths int) (int, error)
	SumPaid(ctx context.Context, from, to time.Time) (int64, int, error)
}

// Service операции админки только на чтение. Ручная правка подписки
// выполняется через subscription.Service.
type Service struct {
	repo   Repository
	policy subscription.Policy
	log    *slog.Logger
	now    func() time.Time
}

// New создает сервис админки.
func New(repo Repository, policy subscription.Policy, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		policy: policy,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// MemberRow участник с вычисленным состоянием.
type MemberRow struct {
	*models.User
	Standing subscription.Standing `json:"standing"`
}

// Members постраничный список участников.
func (s *Service) Members(ctx context.Context, f models.MemberFilter) (*models.Page[MemberRow], error) {
	const op = "admin.Members"
	f.Limit, f.Offset = models.ClampPage(f.Limit, f.Offset)

	users, err := s.repo.ListUsers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	total, err := s.repo.CountUsers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	rows := make([]MemberRow, 0, len(users))
	for _, u := range users {
		rows = append(rows, MemberRow{User: u, Standing: subscription.Evaluate(u.Subscription, now, s.policy)})
	}
	return &models.Page[MemberRow]{Items: rows, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// MemberDetail карточка участника.
type MemberDetail struct {
	User     *models.User          `json:"user"`
	Standing subscription.Standing `json:"standing"`
	Payments []*models.Payment     `json:"payments"`
}

// Member карточка участника с последними платежами.
func (s *Service) Member(ctx context.Context, userUID string) (*MemberDetail, error) {
	const op = "admin.Member"
	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	payments, err := s.repo.ListPayments(ctx, models.PaymentFilter{UserUID: userUID, Limit: memberPayments})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	return &MemberDetail{
		User:     u,
		Standing: subscription.Evaluate(u.Subscription, s.now(), s.policy),
		Payments: payments,
	}, nil
}

// Payments постраничный список платежей.
func (s *Service) Payments(ctx context.Context, f models.PaymentFilter) (*models.Page[*models.Payment], error) {
	const op = "admin.Payments"
	f.Limit, f.Offset = models.ClampPage(f.Limit, f.Offset)
	items, err := s.repo.ListPayments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	total, err := s.repo.CountPayments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if items == nil {
		items = []*models.Payment{}
	}
	return &models.Page[*models.Payment]{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Stats сводка по участникам и выручке.
type Stats struct {
	ByStatus  map[string]int `json:"by_status"`
	Members   int            `json:"members"`
	Lapsed    int            `json:"lapsed"`
	Revenue   int64          `json:"revenue"`
	PaidCount int            `json:"paid_count"`
	From      time.Time      `json:"from"`
	To        time.Time      `json:"to"`
}

// Stats считает сводку. Пустой период означает текущий месяц.
func (s *Service) Stats(ctx context.Context, from, to time.Time) (*Stats, error) {
	const op = "admin.Stats"
	now := s.now()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%s: empty period %s..%s", op, from.Format(time.DateOnly), to.Format(time.DateOnly))
	}

	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	lapsed, err := s.repo.CountLapsed(ctx, now, s.policy.GraceMonths)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	revenue, paid, err := s.repo.SumPaid(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	st := &Stats{
		ByStatus:  byStatus,
		Lapsed:    lapsed,
		Revenue:   revenue,
		PaidCount: paid,
		From:      from,
		To:        to,
	}
	for _, n := range byStatus {
		st.Members += n
	}
	return st, nil
}
