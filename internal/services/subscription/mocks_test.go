package subscription

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/union-portal/internal/models"
	"github.com/magabrotheeeer/union-portal/internal/paymentprovider"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) UpdateProfile(ctx context.Context, userUID string, p models.Profile) error {
	return m.Called(ctx, userUID, p).Error(0)
}

func (m *RepoMock) UpdateSubscription(ctx context.Context, userUID string, sub models.Subscription) error {
	return m.Called(ctx, userUID, sub).Error(0)
}

func (m *RepoMock) MarkPending(ctx context.Context, userUID, plan string) error {
	return m.Called(ctx, userUID, plan).Error(0)
}

func (m *RepoMock) CreatePayment(ctx context.Context, p *models.Payment) (int64, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RepoMock) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *RepoMock) CompletePayment(ctx context.Context, orderID, providerPaymentID string, paidAt time.Time,
	renew func(*models.User, *models.Payment) models.Subscription) (*models.Payment, *models.User, bool, error) {
	args := m.Called(ctx, orderID, providerPaymentID, paidAt, renew)
	var (
		p *models.Payment
		u *models.User
	)
	if args.Get(0) != nil {
		p = args.Get(0).(*models.Payment)
	}
	if args.Get(1) != nil {
		u = args.Get(1).(*models.User)
	}
	return p, u, args.Bool(2), args.Error(3)
}

func (m *RepoMock) SettleUnpaid(ctx context.Context, orderID, status string) (*models.Payment, bool, error) {
	args := m.Called(ctx, orderID, status)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Payment), args.Bool(1), args.Error(2)
}

func (m *RepoMock) ListPayments(ctx context.Context, f models.PaymentFilter) ([]*models.Payment, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Get(ctx context.Context, key string, result any) (bool, error) {
	args := m.Called(ctx, key, result)
	return args.Bool(0), args.Error(1)
}

func (m *CacheMock) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *CacheMock) Invalidate(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) Name() string { return "mock" }

func (m *GatewayMock) CreateOrder(ctx context.Context, req paymentprovider.CreateOrderRequest) (*paymentprovider.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Order), args.Error(1)
}

func (m *GatewayMock) FetchOrder(ctx context.Context, orderID string) (*paymentprovider.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Order), args.Error(1)
}

func (m *GatewayMock) VerifyCallback(cb paymentprovider.Callback) error {
	return m.Called(cb).Error(0)
}

func (m *GatewayMock) ParseWebhook(payload []byte, header http.Header) (string, error) {
	args := m.Called(payload, header)
	return args.String(0), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

type RecorderMock struct{ mock.Mock }

func (m *RecorderMock) CheckoutCreated(plan string)  { m.Called(plan) }
func (m *RecorderMock) PaymentSettled(status string) { m.Called(status) }
