package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/union-portal/internal/models"
)

const userColumns = `uid, union_id, name, email, phone, address_line, city, state, pincode,
	password_hash, role, locale, subscription_plan, subscription_status, renewal_date, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var renewal sql.NullTime
	if err := row.Scan(&u.UID, &u.UnionID, &u.Name, &u.Email, &u.Phone,
		&u.Address.Line, &u.Address.City, &u.Address.State, &u.Address.Pincode,
		&u.PasswordHash, &u.Role, &u.Locale,
		&u.Subscription.Plan, &u.Subscription.Status, &renewal, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	if renewal.Valid {
		t := renewal.Time
		u.Subscription.RenewalDate = &t
	}
	return &u, nil
}

func collectUsers(rows *sql.Rows) ([]*models.User, error) {
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// CreateUser сохраняет участника и возвращает его UID.
// Конфликт номера возвращается как storage.ErrUnionIDTaken.
func (s *Storage) CreateUser(ctx context.Context, u *models.User) (string, error) {
	const op = "storage.CreateUser"
	if err := ctxDone(ctx, op); err != nil {
		return "", err
	}

	query := `INSERT INTO users (union_id, name, email, phone, address_line, city, state, pincode,
			      password_hash, role, locale, subscription_plan, subscription_status, renewal_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			  RETURNING uid, created_at`
	err := s.DB.QueryRowContext(ctx, query,
		u.UnionID, u.Name, strings.ToLower(u.Email), u.Phone,
		u.Address.Line, u.Address.City, u.Address.State, u.Address.Pincode,
		u.PasswordHash, u.Role, u.Locale,
		u.Subscription.Plan, u.Subscription.Status, u.Subscription.RenewalDate,
	).Scan(&u.UID, &u.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u.UID, nil
}

// UnionIDExists сообщает, выдан ли уже номер.
func (s *Storage) UnionIDExists(ctx context.Context, unionID string) (bool, error) {
	const op = "storage.UnionIDExists"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE union_id = $1)`, unionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

func (s *Storage) getUserBy(ctx context.Context, op, column, value string) (*models.User, error) {
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, value))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return u, nil
}

// GetUser возвращает участника по UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	return s.getUserBy(ctx, "storage.GetUser", "uid", userUID)
}

// GetUserByEmail возвращает участника по email без учета регистра.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserBy(ctx, "storage.GetUserByEmail", "email", strings.ToLower(email))
}

// GetUserByPhone возвращает участника по номеру телефона.
func (s *Storage) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.getUserBy(ctx, "storage.GetUserByPhone", "phone", phone)
}

// GetUserByUnionID возвращает участника по номеру члена профсоюза.
func (s *Storage) GetUserByUnionID(ctx context.Context, unionID string) (*models.User, error) {
	return s.getUserBy(ctx, "storage.GetUserByUnionID", "union_id", unionID)
}

// UpdateProfile обновляет контактные данные участника.
func (s *Storage) UpdateProfile(ctx context.Context, userUID string, p models.Profile) error {
	const op = "storage.UpdateProfile"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	query := `UPDATE users
			  SET name = $1, phone = $2, address_line = $3, city = $4, state = $5, pincode = $6,
			      locale = COALESCE(NULLIF($7, ''), locale)
			  WHERE uid = $8`
	res, err := s.DB.ExecContext(ctx, query, p.Name, p.Phone,
		p.Address.Line, p.Address.City, p.Address.State, p.Address.Pincode, p.Locale, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return requireOne(res, op)
}

// UpdateSubscription перезаписывает план, статус и дату продления.
func (s *Storage) UpdateSubscription(ctx context.Context, userUID string, sub models.Subscription) error {
	const op = "storage.UpdateSubscription"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE users
			  SET subscription_plan = $1, subscription_status = $2, renewal_date = $3
			  WHERE uid = $4`,
		sub.Plan, sub.Status, sub.RenewalDate, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return requireOne(res, op)
}

// MarkPending переводит участника в pending, если он не активен.
func (s *Storage) MarkPending(ctx context.Context, userUID, plan string) error {
	const op = "storage.MarkPending"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `UPDATE users
			  SET subscription_status = 'pending', subscription_plan = $1
			  WHERE uid = $2 AND subscription_status <> 'active'`, plan, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func memberWhere(f models.MemberFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("subscription_status = $%d", len(args)))
	}
	if f.Query != "" {
		args = append(args, "%"+strings.ToLower(f.Query)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(LOWER(name) LIKE $%d OR email LIKE $%d OR phone LIKE $%d OR union_id LIKE $%d)", n, n, n, n))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListUsers возвращает участников по фильтру, новые первыми.
func (s *Storage) ListUsers(ctx context.Context, f models.MemberFilter) ([]*models.User, error) {
	const op = "storage.ListUsers"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	where, args := memberWhere(f)
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC, uid LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)-1, len(args))
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// CountUsers количество участников по фильтру без учета пагинации.
func (s *Storage) CountUsers(ctx context.Context, f models.MemberFilter) (int, error) {
	const op = "storage.CountUsers"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	where, args := memberWhere(f)
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// CountByStatus количество участников (без администраторов) по статусу подписки.
func (s *Storage) CountByStatus(ctx context.Context) (map[string]int, error) {
	const op = "storage.CountByStatus"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT subscription_status, COUNT(*) FROM users
			  WHERE role = 'member' GROUP BY subscription_status`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	result := map[string]int{
		models.StatusNotSubscribed: 0,
		models.StatusPending:       0,
		models.StatusActive:        0,
		models.StatusInactive:      0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountLapsed количество участников, вышедших за льготный период в graceMonths
// месяцев на момент now. Срок считается календарными месяцами с усечением до
// последнего дня месяца, как в month.AddMonths. Участники в pending не учитываются.
func (s *Storage) CountLapsed(ctx context.Context, now time.Time, graceMonths int) (int, error) {
	const op = "storage.CountLapsed"
	if err := ctxDone(ctx, op); err != nil {
		return 0, err
	}
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users
			  WHERE role = 'member' AND subscription_status IN ('active', 'inactive')
			    AND renewal_date IS NOT NULL
			    AND (renewal_date AT TIME ZONE 'UTC') + make_interval(months => $2::int)
			        <= ($1::timestamptz AT TIME ZONE 'UTC')`, now, graceMonths).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// MarkLapsed переводит в inactive активных участников с датой продления раньше now
// и возвращает их.
func (s *Storage) MarkLapsed(ctx context.Context, now time.Time) ([]*models.User, error) {
	const op = "storage.MarkLapsed"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `UPDATE users SET subscription_status = 'inactive'
			  WHERE subscription_status = 'active' AND renewal_date < $1
			  RETURNING `+userColumns, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// FindRenewalsDue активные участники с датой продления в [from, to).
func (s *Storage) FindRenewalsDue(ctx context.Context, from, to time.Time) ([]*models.User, error) {
	const op = "storage.FindRenewalsDue"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users
			  WHERE subscription_status = 'active' AND renewal_date >= $1 AND renewal_date < $2
			  ORDER BY renewal_date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	users, err := collectUsers(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

func requireOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, mapError(sql.ErrNoRows))
	}
	return nil
}
