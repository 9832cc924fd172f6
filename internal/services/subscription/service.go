package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/union-portal/internal/config"
	"github.com/magabrotheeeer/union-portal/internal/lib/locale"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/models"
	"github.com/magabrotheeeer/union-portal/internal/paymentprovider"
	"github.com/magabrotheeeer/union-portal/internal/storage"
)

var (
	// ErrUnknownPlan запрошен план, которого нет в конфиге.
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrOrderNotFound заказ не найден или принадлежит другому участнику.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentPending шлюз еще не завершил оплату.
	ErrPaymentPending = errors.New("payment pending")
	// ErrAmountMismatch сумма заказа у шлюза не совпадает с нашей.
	ErrAmountMismatch = errors.New("amount mismatch")
	// ErrInvalidUpdate недопустимая ручная правка подписки.
	ErrInvalidUpdate = errors.New("invalid subscription update")
)

const (
	profileTTL     = 10 * time.Minute
	recentPayments = 5
)

// Repository хранилище участников и платежей.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userUID string, p models.Profile) error
	UpdateSubscription(ctx context.Context, userUID string, sub models.Subscription) error
	MarkPending(ctx context.Context, userUID, plan string) error
	CreatePayment(ctx context.Context, p *models.Payment) (int64, error)
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	CompletePayment(ctx context.Context, orderID, providerPaymentID string, paidAt time.Time,
		renew func(*models.User, *models.Payment) models.Subscription) (*models.Payment, *models.User, bool, error)
	SettleUnpaid(ctx context.Context, orderID, status string) (*models.Payment, bool, error)
	ListPayments(ctx context.Context, f models.PaymentFilter) ([]*models.Payment, error)
}

// Cache кеш профилей.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Publisher очередь уведомлений.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Recorder счетчики оформленных и закрытых заказов.
type Recorder interface {
	CheckoutCreated(plan string)
	PaymentSettled(status string)
}

// Options параметры сервиса из конфига.
type Options struct {
	Policy    Policy
	Plans     []config.Plan
	Currency  string
	PublicURL string
}

// Service операции над подпиской участника.
type Service struct {
	repo      Repository
	cache     Cache
	gateway   paymentprovider.Gateway
	publisher Publisher
	metrics   Recorder
	log       *slog.Logger
	opts      Options
	now       func() time.Time
}

// New создает сервис подписок.
func New(repo Repository, cache Cache, gateway paymentprovider.Gateway, publisher Publisher,
	metrics Recorder, log *slog.Logger, opts Options) *Service {
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	if len(opts.Plans) == 0 {
		opts.Plans = config.DefaultPlans()
	}
	return &Service{
		repo:      repo,
		cache:     cache,
		gateway:   gateway,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Policy текущие параметры льготного периода.
func (s *Service) Policy() Policy { return s.opts.Policy }

// Evaluate состояние подписки на текущий момент.
func (s *Service) Evaluate(sub models.Subscription) Standing {
	return Evaluate(sub, s.now(), s.opts.Policy)
}

// Plans список планов с названиями на языке lang.
func (s *Service) Plans(lang string) []models.Plan {
	plans := make([]models.Plan, 0, len(s.opts.Plans))
	for _, p := range s.opts.Plans {
		plans = append(plans, models.Plan{
			Code:   p.Code,
			Name:   planName(lang, p.Code),
			Price:  p.Price,
			Months: p.Months,
		})
	}
	return plans
}

func (s *Service) plan(code string) (config.Plan, bool) {
	for _, p := range s.opts.Plans {
		if p.Code == code {
			return p, true
		}
	}
	return config.Plan{}, false
}

func planName(lang, code string) string {
	key := "plan." + code
	if locale.Has(key) {
		return locale.T(lang, key)
	}
	return code
}

func profileKey(userUID string) string {
	return "user:" + userUID
}

func (s *Service) invalidate(ctx context.Context, userUID string) {
	if err := s.cache.Invalidate(ctx, profileKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate profile cache", slog.String("user_uid", userUID), sl.Err(err))
	}
}

// Profile возвращает участника, по возможности из кеша.
func (s *Service) Profile(ctx context.Context, userUID string) (*models.User, error) {
	const op = "subscription.Profile"
	var u *models.User
	found, err := s.cache.Get(ctx, profileKey(userUID), &u)
	if err != nil {
		s.log.Warn("failed to read profile cache", sl.Op(op), sl.Err(err))
	}
	if found && u != nil {
		return u, nil
	}

	u, err = s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, profileKey(userUID), u, profileTTL); err != nil {
		s.log.Warn("failed to cache profile", sl.Op(op), sl.Err(err))
	}
	return u, nil
}

// UpdateProfile меняет контактные данные участника.
func (s *Service) UpdateProfile(ctx context.Context, userUID string, p models.Profile) (*models.User, error) {
	const op = "subscription.UpdateProfile"
	if err := s.repo.UpdateProfile(ctx, userUID, p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userUID)
	return s.Profile(ctx, userUID)
}

// PlanOption план с суммой к оплате для конкретного участника.
type PlanOption struct {
	models.Plan
	Penalty int64 `json:"penalty"`
	Due     int64 `json:"due"`
}

// Dashboard данные личного кабинета.
type Dashboard struct {
	User     *models.User      `json:"user"`
	Standing Standing          `json:"standing"`
	Message  string            `json:"message"`
	Plans    []PlanOption      `json:"plans"`
	Payments []*models.Payment `json:"payments"`
}

// Dashboard собирает профиль, состояние, цены и последние платежи.
func (s *Service) Dashboard(ctx context.Context, userUID, lang string) (*Dashboard, error) {
	const op = "subscription.Dashboard"
	u, err := s.Profile(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	st := s.Evaluate(u.Subscription)

	options := make([]PlanOption, 0, len(s.opts.Plans))
	for _, p := range s.Plans(lang) {
		options = append(options, PlanOption{Plan: p, Penalty: st.Penalty, Due: p.Price + st.Penalty})
	}

	payments, err := s.repo.ListPayments(ctx, models.PaymentFilter{UserUID: userUID, Limit: recentPayments})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Dashboard{
		User:     u,
		Standing: st,
		Message:  st.Message(lang),
		Plans:    options,
		Payments: payments,
	}, nil
}

// CheckoutResult созданный заказ.
type CheckoutResult struct {
	Payment  *models.Payment        `json:"payment"`
	Order    *paymentprovider.Order `json:"order"`
	Standing Standing               `json:"standing"`
}

// Checkout создает заказ на plan. Сумма равна цене плана плюс штраф.
// Неактивный участник переводится в pending.
func (s *Service) Checkout(ctx context.Context, userUID, planCode, lang string) (*CheckoutResult, error) {
	const op = "subscription.Checkout"
	log := s.log.With(sl.Op(op), slog.String("user_uid", userUID), slog.String("plan", planCode))

	plan, ok := s.plan(planCode)
	if !ok {
		return nil, fmt.Errorf("%s: %s: %w", op, planCode, ErrUnknownPlan)
	}
	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	st := s.Evaluate(u.Subscription)
	amount := plan.Price + st.Penalty

	callback := strings.TrimRight(s.opts.PublicURL, "/") + "/" + locale.Normalize(lang) + "/payment/callback"
	order, err := s.gateway.CreateOrder(ctx, paymentprovider.CreateOrderRequest{
		Reference:   orderReference(u.UnionID),
		Amount:      amount,
		Currency:    s.opts.Currency,
		Description: planName(lang, plan.Code),
		Email:       u.Email,
		Phone:       u.Phone,
		SuccessURL:  callback,
		CancelURL:   callback,
		Notes: map[string]string{
			"user_uid": u.UID,
			"union_id": u.UnionID,
			"plan":     plan.Code,
		},
	})
	if err != nil {
		log.Error("failed to create order", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	payment := &models.Payment{
		UserUID:         u.UID,
		Plan:            plan.Code,
		Amount:          amount,
		Penalty:         st.Penalty,
		Currency:        s.opts.Currency,
		Status:          models.PaymentCreated,
		ProviderOrderID: order.ID,
	}
	if _, err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if st.State != StateActive {
		if err := s.repo.MarkPending(ctx, u.UID, plan.Code); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	s.invalidate(ctx, u.UID)
	s.metrics.CheckoutCreated(plan.Code)

	log.Info("order created", slog.String("order_id", order.ID), slog.Int64("amount", amount))
	return &CheckoutResult{Payment: payment, Order: order, Standing: st}, nil
}

// orderReference уникальная ссылка заказа для шлюза, не длиннее 40 символов.
func orderReference(unionID string) string {
	return unionID + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Confirmation итог подтверждения заказа.
type Confirmation struct {
	Status  string          `json:"status"`
	Payment *models.Payment `json:"payment"`
	User    *models.User    `json:"user,omitempty"`
}

// ConfirmOrder сверяет заказ со шлюзом и фиксирует результат.
// Повторный вызов для уже оплаченного заказа ничего не меняет.
func (s *Service) ConfirmOrder(ctx context.Context, orderID string) (*Confirmation, error) {
	const op = "subscription.ConfirmOrder"
	log := s.log.With(sl.Op(op), slog.String("order_id", orderID))

	payment, err := s.repo.GetPaymentByOrderID(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// expired и failed сверяются со шлюзом повторно
	if payment.Status == models.PaymentPaid {
		return &Confirmation{Status: payment.Status, Payment: payment}, nil
	}

	order, err := s.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if order.Amount != 0 && order.Amount != payment.Amount {
		log.Error("gateway amount differs", slog.Int64("gateway", order.Amount), slog.Int64("stored", payment.Amount))
		return nil, fmt.Errorf("%s: %w", op, ErrAmountMismatch)
	}

	switch order.Status {
	case paymentprovider.StatusPaid:
		paidAt := order.PaidAt
		if paidAt.IsZero() {
			paidAt = s.now()
		}
		p, u, applied, err := s.repo.CompletePayment(ctx, orderID, order.PaymentID, paidAt, s.renew(paidAt))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if applied {
			s.metrics.PaymentSettled(models.PaymentPaid)
			s.invalidate(ctx, u.UID)
			s.sendReceipt(ctx, u, p)
			log.Info("payment confirmed", slog.String("user_uid", u.UID))
		}
		return &Confirmation{Status: models.PaymentPaid, Payment: p, User: u}, nil

	case paymentprovider.StatusFailed:
		if payment.Status != models.PaymentCreated {
			return &Confirmation{Status: payment.Status, Payment: payment}, nil
		}
		p, applied, err := s.repo.SettleUnpaid(ctx, orderID, models.PaymentFailed)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if applied {
			s.metrics.PaymentSettled(models.PaymentFailed)
			s.invalidate(ctx, p.UserUID)
			log.Info("payment failed", slog.String("user_uid", p.UserUID))
		}
		return &Confirmation{Status: p.Status, Payment: p}, nil

	default:
		if payment.Status != models.PaymentCreated {
			return &Confirmation{Status: payment.Status, Payment: payment}, nil
		}
		return &Confirmation{Status: models.PaymentCreated, Payment: payment}, fmt.Errorf("%s: %w", op, ErrPaymentPending)
	}
}

func (s *Service) renew(now time.Time) func(*models.User, *models.Payment) models.Subscription {
	return func(u *models.User, p *models.Payment) models.Subscription {
		plan, ok := s.plan(p.Plan)
		if !ok {
			// план удален из конфига после оплаты: продлеваем на месяц
			plan = config.Plan{Code: p.Plan, Months: 1}
		}
		st := Evaluate(u.Subscription, now, s.opts.Policy)
		next := NextRenewal(st, u.Subscription, plan, now)
		return models.Subscription{Plan: plan.Code, Status: models.StatusActive, RenewalDate: &next}
	}
}

func (s *Service) sendReceipt(ctx context.Context, u *models.User, p *models.Payment) {
	msg := models.NotificationFromUser(models.NotifyReceipt, u)
	msg.Amount = p.Amount
	msg.Currency = p.Currency
	if err := s.publisher.Publish(ctx, models.NotifyReceipt, msg); err != nil {
		s.log.Error("failed to publish receipt", slog.String("user_uid", u.UID), sl.Err(err))
	}
}

// VerifyCallback проверяет подпись возврата из шлюза и подтверждает заказ.
// Если userUID не пуст, заказ должен принадлежать этому участнику.
func (s *Service) VerifyCallback(ctx context.Context, userUID string, cb paymentprovider.Callback) (*Confirmation, error) {
	const op = "subscription.VerifyCallback"
	if err := s.gateway.VerifyCallback(cb); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if userUID != "" {
		payment, err := s.repo.GetPaymentByOrderID(ctx, cb.OrderID)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && payment.UserUID != userUID) {
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	c, err := s.ConfirmOrder(ctx, cb.OrderID)
	if err != nil {
		return c, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// HandleWebhook разбирает вебхук шлюза и подтверждает заказ.
// События, не относящиеся к оплате, и чужие заказы пропускаются без ошибки.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, header http.Header) (*Confirmation, error) {
	const op = "subscription.HandleWebhook"
	log := s.log.With(sl.Op(op), slog.String("gateway", s.gateway.Name()))

	orderID, err := s.gateway.ParseWebhook(payload, header)
	if errors.Is(err, paymentprovider.ErrIgnoredEvent) {
		log.Debug("webhook ignored", sl.Err(err))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c, err := s.ConfirmOrder(ctx, orderID)
	switch {
	case errors.Is(err, ErrOrderNotFound):
		log.Warn("webhook for unknown order", slog.String("order_id", orderID))
		return nil, nil
	case errors.Is(err, ErrAmountMismatch):
		// вебхук подтверждается, заказ разбирается вручную
		log.Error("webhook amount mismatch", slog.String("order_id", orderID), sl.Err(err))
		return nil, nil
	case errors.Is(err, ErrPaymentPending):
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// SubscriptionUpdate ручная правка подписки администратором.
type SubscriptionUpdate struct {
	Plan        string     `json:"plan"`
	Status      string     `json:"status" validate:"required,oneof=not_subscribed pending active inactive"`
	RenewalDate *time.Time `json:"renewal_date"`
}

// SetSubscription применяет ручную правку. Статус active требует дату продления.
func (s *Service) SetSubscription(ctx context.Context, userUID string, upd SubscriptionUpdate) (*models.User, error) {
	const op = "subscription.SetSubscription"
	switch upd.Status {
	case models.StatusNotSubscribed, models.StatusPending, models.StatusInactive:
	case models.StatusActive:
		if upd.RenewalDate == nil {
			return nil, fmt.Errorf("%s: active without renewal date: %w", op, ErrInvalidUpdate)
		}
	default:
		return nil, fmt.Errorf("%s: status %q: %w", op, upd.Status, ErrInvalidUpdate)
	}
	if upd.Plan != "" {
		if _, ok := s.plan(upd.Plan); !ok {
			return nil, fmt.Errorf("%s: %s: %w", op, upd.Plan, ErrUnknownPlan)
		}
	}
	if upd.Status == models.StatusNotSubscribed {
		upd.Plan = ""
		upd.RenewalDate = nil
	}

	err := s.repo.UpdateSubscription(ctx, userUID, models.Subscription{
		Plan:        upd.Plan,
		Status:      upd.Status,
		RenewalDate: upd.RenewalDate,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userUID)
	s.log.Info("subscription changed manually", sl.Op(op), slog.String("user_uid", userUID), slog.String("status", upd.Status))

	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}
