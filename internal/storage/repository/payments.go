package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/union-portal/internal/models"
)

const paymentColumns = `id, user_uid, plan, amount, penalty, currency, status,
	provider_order_id, provider_payment_id, payment_date, created_at`

func scanPayment(row scanner) (*models.Payment, error) {
	var p models.Payment
	var paid sql.NullTime
	if err := row.Scan(&p.ID, &p.UserUID, &p.Plan, &p.Amount, &p.Penalty, &p.Currency, &p.Status,
		&p.ProviderOrderID, &p.ProviderPaymentID, &paid, &p.CreatedAt); err != nil {
		return nil, err
	}
	if paid.Valid {
		t := paid.Time
		p.PaymentDate = &t
	}
	return &p, nil
}

func collectPayments(rows *sql.Rows) ([]*models.Payment, error) {
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// CreatePayment сохраняет заказ в статусе created.
func (s *Storage) CreatePayment(ctx context.Context, p *models.Payment) (int64, error) {
	const op = "storage.CreatePayment"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	query := `INSERT INTO payments (user_uid, plan, amount, penalty, currency, status, provider_order_id)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id, created_at`
	err := s.DB.QueryRowContext(ctx, query,
		p.UserUID, p.Plan, p.Amount, p.Penalty, p.Currency, p.Status, p.ProviderOrderID,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return p.ID, nil
}

// GetPaymentByOrderID возвращает платеж по идентификатору заказа шлюза.
func (s *Storage) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	const op = "storage.GetPaymentByOrderID"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	p, err := scanPayment(s.DB.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE provider_order_id = $1`, orderID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return p, nil
}

// RenewFunc вычисляет новую подписку участника по оплаченному платежу.
type RenewFunc func(u *models.User, p *models.Payment) models.Subscription

// CompletePayment в одной транзакции помечает платеж оплаченным и продлевает
// подписку участника. Строки платежа и участника блокируются, поэтому повторное
// подтверждение того же заказа ничего не меняет: applied=false.
func (s *Storage) CompletePayment(ctx context.Context, orderID, providerPaymentID string, paidAt time.Time, renew func(*models.User, *models.Payment) models.Subscription) (*models.Payment, *models.User, bool, error) {
	const op = "storage.CompletePayment"
	if err := ctxDone(ctx, op); err != nil {
		return nil, nil, false, err
	}

	var (
		payment *models.Payment
		user    *models.User
		applied bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		payment, err = scanPayment(tx.QueryRowContext(ctx,
			`SELECT `+paymentColumns+` FROM payments WHERE provider_order_id = $1 FOR UPDATE`, orderID))
		if err != nil {
			return mapError(err)
		}
		user, err = scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE uid = $1 FOR UPDATE`, payment.UserUID))
		if err != nil {
			return mapError(err)
		}
		if payment.Status == models.PaymentPaid {
			return nil
		}

		sub := renew(user, payment)
		if _, err := tx.ExecContext(ctx, `UPDATE payments
				  SET status = 'paid', provider_payment_id = $1, payment_date = $2
				  WHERE id = $3`, providerPaymentID, paidAt, payment.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users
				  SET subscription_plan = $1, subscription_status = $2, renewal_date = $3
				  WHERE uid = $4`, sub.Plan, sub.Status, sub.RenewalDate, user.UID); err != nil {
			return err
		}

		payment.Status = models.PaymentPaid
		payment.ProviderPaymentID = providerPaymentID
		payment.PaymentDate = &paidAt
		user.Subscription = sub
		applied = true
		return nil
	})
	if err != nil {
		return nil, nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return payment, user, applied, nil
}

// SettleUnpaid переводит заказ в failed или expired, если он еще открыт.
// Участник в pending без других открытых заказов возвращается в inactive,
// если у него уже была дата продления, иначе в not_subscribed.
func (s *Storage) SettleUnpaid(ctx context.Context, orderID, status string) (*models.Payment, bool, error) {
	const op = "storage.SettleUnpaid"
	if err := ctxDone(ctx, op); err != nil {
		return nil, false, err
	}
	if status != models.PaymentFailed && status != models.PaymentExpired {
		return nil, false, fmt.Errorf("%s: unexpected status %q", op, status)
	}

	var (
		payment *models.Payment
		applied bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		payment, err = scanPayment(tx.QueryRowContext(ctx, `UPDATE payments SET status = $1
				  WHERE provider_order_id = $2 AND status = 'created'
				  RETURNING `+paymentColumns, status, orderID))
		if errors.Is(err, sql.ErrNoRows) {
			payment, err = scanPayment(tx.QueryRowContext(ctx,
				`SELECT `+paymentColumns+` FROM payments WHERE provider_order_id = $1`, orderID))
			return mapError(err)
		}
		if err != nil {
			return err
		}
		applied = true
		_, err = tx.ExecContext(ctx, `UPDATE users
				  SET subscription_status = CASE WHEN renewal_date IS NULL THEN 'not_subscribed' ELSE 'inactive' END
				  WHERE uid = $1 AND subscription_status = 'pending'
				    AND NOT EXISTS (SELECT 1 FROM payments WHERE user_uid = $1 AND status = 'created')`,
			payment.UserUID)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return payment, applied, nil
}

func paymentWhere(f models.PaymentFilter) (string, []any) {
	var conds []string
	var args []any
	if f.UserUID != "" {
		args = append(args, f.UserUID)
		conds = append(conds, fmt.Sprintf("user_uid = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListPayments возвращает платежи по фильтру, новые первыми.
func (s *Storage) ListPayments(ctx context.Context, f models.PaymentFilter) ([]*models.Payment, error) {
	const op = "storage.ListPayments"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	where, args := paymentWhere(f)
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM payments%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		paymentColumns, where, len(args)-1, len(args))
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	payments, err := collectPayments(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return payments, nil
}

// CountPayments количество платежей по фильтру.
func (s *Storage) CountPayments(ctx context.Context, f models.PaymentFilter) (int, error) {
	const op = "storage.CountPayments"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	where, args := paymentWhere(f)
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// SumPaid сумма и количество оплаченных платежей с датой оплаты в [from, to).
func (s *Storage) SumPaid(ctx context.Context, from, to time.Time) (int64, int, error) {
	const op = "storage.SumPaid"
	if err := ctxDone(ctx, op); err != nil {
		return 0, 0, err
	}
	var sum int64
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM payments
			  WHERE status = 'paid' AND payment_date >= $1 AND payment_date < $2`, from, to).Scan(&sum, &n)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	return sum, n, nil
}

// ListStalePayments открытые заказы, созданные раньше before.
func (s *Storage) ListStalePayments(ctx context.Context, before time.Time, limit int) ([]*models.Payment, error) {
	const op = "storage.ListStalePayments"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments
			  WHERE status = 'created' AND created_at < $1
			  ORDER BY created_at LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	payments, err := collectPayments(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return payments, nil
}
