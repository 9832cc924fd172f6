package repository

import (
	"context"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/union-portal/internal/migrations"
	"github.com/magabrotheeeer/union-portal/internal/models"
)

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) *Storage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	root, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, filepath.Join(root, "migrations")))
	require.NoError(t, storage.CheckDatabaseReady(ctx))
	return storage
}

// TestDataFactory создает тестовые записи.
type TestDataFactory struct {
	storage *Storage
	seq     atomic.Int64
}

// NewTestDataFactory создает новую фабрику тестовых данных.
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	f := &TestDataFactory{storage: storage}
	f.seq.Store(100000)
	return f
}

// CreateUser создает участника с заданной подпиской.
func (f *TestDataFactory) CreateUser(t *testing.T, status string, renewal *time.Time) *models.User {
	t.Helper()
	n := f.seq.Add(1)
	id := strconv.FormatInt(n, 10)
	u := &models.User{
		UnionID:      id,
		Name:         "Member " + id,
		Email:        "member" + id + "@example.org",
		Phone:        "9" + id + "000",
		PasswordHash: "hash",
		Role:         models.RoleMember,
		Locale:       "en",
		Subscription: models.Subscription{Plan: "monthly", Status: status, RenewalDate: renewal},
	}
	_, err := f.storage.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return u
}

// CreatePayment создает заказ участника.
func (f *TestDataFactory) CreatePayment(t *testing.T, userUID, orderID string, amount int64) *models.Payment {
	t.Helper()
	p := &models.Payment{
		UserUID:         userUID,
		Plan:            "monthly",
		Amount:          amount,
		Currency:        "INR",
		Status:          models.PaymentCreated,
		ProviderOrderID: orderID,
	}
	_, err := f.storage.CreatePayment(context.Background(), p)
	require.NoError(t, err)
	return p
}

// Backdate сдвигает created_at заказа в прошлое.
func (f *TestDataFactory) Backdate(t *testing.T, orderID string, age time.Duration) {
	t.Helper()
	_, err := f.storage.DB.Exec(`UPDATE payments SET created_at = NOW() - make_interval(secs => $1) WHERE provider_order_id = $2`,
		age.Seconds(), orderID)
	require.NoError(t, err)
}

func ptr(t time.Time) *time.Time { return &t }
