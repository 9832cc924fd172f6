package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/union-portal/internal/models"
	"github.com/magabrotheeeer/union-portal/internal/paymentprovider"
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) MarkLapsed(ctx context.Context, now time.Time) ([]*models.User, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *RepoMock) FindRenewalsDue(ctx context.Context, from, to time.Time) ([]*models.User, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *RepoMock) ListStalePayments(ctx context.Context, before time.Time, limit int) ([]*models.Payment, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

func (m *RepoMock) SettleUnpaid(ctx context.Context, orderID, status string) (*models.Payment, bool, error) {
	args := m.Called(ctx, orderID, status)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Payment), args.Bool(1), args.Error(2)
}

type ConfirmerMock struct{ mock.Mock }

func (m *ConfirmerMock) ConfirmOrder(ctx context.Context, orderID string) (*subscription.Confirmation, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Confirmation), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, expiration)
	return args.Bool(0), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

type RecorderMock struct{ mock.Mock }

func (m *RecorderMock) Lapsed(n int)                 { m.Called(n) }
func (m *RecorderMock) PaymentSettled(status string) { m.Called(status) }

type fixture struct {
	repo      *RepoMock
	confirmer *ConfirmerMock
	cache     *CacheMock
	publisher *PublisherMock
	metrics   *RecorderMock
	svc       *Service
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      new(RepoMock),
		confirmer: new(ConfirmerMock),
		cache:     new(CacheMock),
		publisher: new(PublisherMock),
		metrics:   new(RecorderMock),
		now:       time.Date(2024, time.June, 15, 3, 0, 0, 0, time.UTC),
	}
	f.svc = New(f.repo, f.confirmer, f.cache, f.publisher, f.metrics,
		slog.New(slog.NewTextHandler(io.Discard, nil)), Options{})
	f.svc.now = func() time.Time { return f.now }
	t.Cleanup(func() {
		f.repo.AssertExpectations(t)
		f.confirmer.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
		f.metrics.AssertExpectations(t)
	})
	return f
}

func TestService_SweepLapsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	renewal := f.now.AddDate(0, 0, -1)
	users := []*models.User{
		{UID: "u-1", Locale: "hi", Subscription: models.Subscription{Status: models.StatusInactive, RenewalDate: &renewal}},
		{UID: "u-2", Locale: "en", Subscription: models.Subscription{Status: models.StatusInactive, RenewalDate: &renewal}},
	}
	f.repo.On("MarkLapsed", ctx, f.now).Return(users, nil)
	f.metrics.On("Lapsed", 2).Return()
	f.publisher.On("Publish", ctx, models.NotifyLapsed, mock.MatchedBy(func(n models.Notification) bool {
		return n.UserUID == "u-1" && n.Locale == "hi"
	})).Return(nil).Once()
	f.publisher.On("Publish", ctx, models.NotifyLapsed, mock.MatchedBy(func(n models.Notification) bool {
		return n.UserUID == "u-2"
	})).Return(errors.New("broker down")).Once()

	n, err := f.svc.SweepLapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestService_SweepLapsed_Nothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("MarkLapsed", ctx, f.now).Return([]*models.User{}, nil)

	n, err := f.svc.SweepLapsed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestService_RemindUpcoming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	renewal := time.Date(2024, time.June, 17, 0, 0, 0, 0, time.UTC)
	users := []*models.User{
		{UID: "u-1", Subscription: models.Subscription{Status: models.StatusActive, RenewalDate: &renewal}},
		{UID: "u-2", Subscription: models.Subscription{Status: models.StatusActive, RenewalDate: &renewal}},
	}
	f.repo.On("FindRenewalsDue", ctx, f.now, f.now.Add(72*time.Hour)).Return(users, nil)
	f.cache.On("SetNX", ctx, "remind:u-1:2024-06-17", 1, 96*time.Hour).Return(true, nil)
	f.cache.On("SetNX", ctx, "remind:u-2:2024-06-17", 1, 96*time.Hour).Return(false, nil)
	f.publisher.On("Publish", ctx, models.NotifyRenewalUpcoming, mock.MatchedBy(func(n models.Notification) bool {
		return n.UserUID == "u-1" && n.Kind == models.NotifyRenewalUpcoming
	})).Return(nil).Once()

	n, err := f.svc.RemindUpcoming(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_ExpireStaleOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale := []*models.Payment{
		{ProviderOrderID: "order_paid"},
		{ProviderOrderID: "order_open"},
		{ProviderOrderID: "order_gone"},
		{ProviderOrderID: "order_err"},
	}
	f.repo.On("ListStalePayments", ctx, f.now.Add(-24*time.Hour), staleBatch).Return(stale, nil)
	f.confirmer.On("ConfirmOrder", ctx, "order_paid").Return(&subscription.Confirmation{Status: models.PaymentPaid}, nil)
	f.confirmer.On("ConfirmOrder", ctx, "order_open").Return(&subscription.Confirmation{Status: models.PaymentCreated}, subscription.ErrPaymentPending)
	f.confirmer.On("ConfirmOrder", ctx, "order_gone").Return(nil, paymentprovider.ErrOrderNotFound)
	f.confirmer.On("ConfirmOrder", ctx, "order_err").Return(nil, errors.New("timeout"))
	f.repo.On("SettleUnpaid", ctx, "order_open", models.PaymentExpired).Return(&models.Payment{}, true, nil)
	f.repo.On("SettleUnpaid", ctx, "order_gone", models.PaymentExpired).Return(&models.Payment{}, false, nil)
	f.metrics.On("PaymentSettled", models.PaymentExpired).Return().Once()

	n, err := f.svc.ExpireStaleOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_ExpireStaleOrders_StorageError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.On("ListStalePayments", ctx, mock.Anything, staleBatch).Return(nil, errors.New("db down"))

	_, err := f.svc.ExpireStaleOrders(ctx)
	assert.Error(t, err)
}
