package admin

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
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) ListUsers(ctx context.Context, f models.MemberFilter) ([]*models.User, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *RepoMock) CountUsers(ctx context.Context, f models.MemberFilter) (int, error) {
	args := m.Called(ctx, f)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) ListPayments(ctx context.Context, f models.PaymentFilter) ([]*models.Payment, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

func (m *RepoMock) CountPayments(ctx context.Context, f models.PaymentFilter) (int, error) {
	args := m.Called(ctx, f)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) CountByStatus(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *RepoMock) CountLapsed(ctx context.Context, now time.Time, graceMonths int) (int, error) {
	args := m.Called(ctx, now, graceMonths)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) SumPaid(ctx context.Context, from, to time.Time) (int64, int, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(int64), args.Int(1), args.Error(2)
}

var now = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func newService(repo *RepoMock) *Service {
	s := New(repo, subscription.DefaultPolicy(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return now }
	return s
}

func TestService_Members(t *testing.T) {
	repo := new(RepoMock)
	ctx := context.Background()
	renewal := now.AddDate(0, 0, 3)
	filter := models.MemberFilter{Status: models.StatusActive, Limit: models.DefaultLimit}

	repo.On("ListUsers", ctx, filter).Return([]*models.User{
		{UID: "u-1", Subscription: models.Subscription{Status: models.StatusActive, RenewalDate: &renewal}},
		{UID: "u-2", Subscription: models.Subscription{Status: models.StatusNotSubscribed}},
	}, nil)
	repo.On("CountUsers", ctx, filter).Return(42, nil)

	page, err := newService(repo).Members(ctx, models.MemberFilter{Status: models.StatusActive})
	require.NoError(t, err)
	assert.Equal(t, 42, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, subscription.StateActive, page.Items[0].Standing.State)
	assert.Equal(t, 3, page.Items[0].Standing.DaysLeft)
	assert.Equal(t, subscription.StateNone, page.Items[1].Standing.State)
	repo.AssertExpectations(t)
}

func TestService_Member(t *testing.T) {
	repo := new(RepoMock)
	ctx := context.Background()
	renewal := now.AddDate(0, -4, 0)
	repo.On("GetUser", ctx, "u-1").Return(&models.User{UID: "u-1",
		Subscription: models.Subscription{Status: models.StatusInactive, RenewalDate: &renewal}}, nil)
	repo.On("ListPayments", ctx, models.PaymentFilter{UserUID: "u-1", Limit: memberPayments}).
		Return([]*models.Payment(nil), nil)

	d, err := newService(repo).Member(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, subscription.StateLapsed, d.Standing.State)
	assert.Equal(t, int64(10000), d.Standing.Penalty)
	assert.NotNil(t, d.Payments)
}

func TestService_Payments(t *testing.T) {
	repo := new(RepoMock)
	ctx := context.Background()
	f := models.PaymentFilter{Status: models.PaymentPaid, Limit: models.MaxLimit, Offset: 100}
	repo.On("ListPayments", ctx, f).Return([]*models.Payment{{ID: 7}}, nil)
	repo.On("CountPayments", ctx, f).Return(101, nil)

	page, err := newService(repo).Payments(ctx, models.PaymentFilter{Status: models.PaymentPaid, Limit: 500, Offset: 100})
	require.NoError(t, err)
	assert.Equal(t, 101, page.Total)
	assert.Equal(t, models.MaxLimit, page.Limit)
}

func TestService_Stats(t *testing.T) {
	t.Run("current month by default", func(t *testing.T) {
		repo := new(RepoMock)
		ctx := context.Background()
		from := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
		repo.On("CountByStatus", ctx).Return(map[string]int{
			models.StatusActive: 10, models.StatusInactive: 4, models.StatusPending: 1, models.StatusNotSubscribed: 5,
		}, nil)
		repo.On("CountLapsed", ctx, now, subscription.DefaultPolicy().GraceMonths).Return(3, nil)
		repo.On("SumPaid", ctx, from, now).Return(int64(250000), 7, nil)

		st, err := newService(repo).Stats(ctx, time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, 20, st.Members)
		assert.Equal(t, 3, st.Lapsed)
		assert.Equal(t, int64(250000), st.Revenue)
		assert.Equal(t, 7, st.PaidCount)
		assert.Equal(t, from, st.From)
		repo.AssertExpectations(t)
	})

	t.Run("empty period", func(t *testing.T) {
		_, err := newService(new(RepoMock)).Stats(context.Background(), now, now.AddDate(0, 0, -1))
		assert.Error(t, err)
	})

	t.Run("storage error", func(t *testing.T) {
		repo := new(RepoMock)
		repo.On("CountByStatus", mock.Anything).Return(nil, errors.New("db down"))
		_, err := newService(repo).Stats(context.Background(), time.Time{}, time.Time{})
		assert.Error(t, err)
	})
}
