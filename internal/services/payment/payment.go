// Package payment история платежей участника.
package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/union-portal/internal/models"
)

// Repository хранилище платежей.
type Repository interface {
	ListPayments(ctx context.Context, f models.PaymentFilter) ([]*models.Payment, error)
	CountPayments(ctx context.Context, f models.PaymentFilter) (int, error)
}

// Service выдает платежи участнику.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New создает сервис платежей.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// List платежи участника userUID, новые первыми.
func (s *Service) List(ctx context.Context, userUID string, limit, offset int) (*models.Page[*models.Payment], error) {
	const op = "payment.List"
	limit, offset = models.ClampPage(limit, offset)
	f := models.PaymentFilter{UserUID: userUID, Limit: limit, Offset: offset}

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
	return &models.Page[*models.Payment]{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}
