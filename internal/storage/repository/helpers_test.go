package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/pivot-calculator/internal/migrations"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
)

func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(dsn, 5*time.Second)
	require.NoError(t, err)

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}

// TestDataFactory создает тестовые данные напрямую в базе.
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных.
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

func (f *TestDataFactory) CreateProfile(t *testing.T, userID, email string, token *string) {
	_, err := f.storage.DB.Exec(`INSERT INTO profiles (id, email, role, last_session_token)
		VALUES ($1, $2, 'user', $3)`, userID, email, token)
	require.NoError(t, err)
}

func (f *TestDataFactory) CreatePayment(t *testing.T, userID, orderID string, plan models.Plan, status models.PaymentStatus) {
	p := &models.Payment{
		UserID:         userID,
		GatewayOrderID: orderID,
		Plan:           plan,
		Amount:         2999,
		Currency:       "INR",
		Status:         status,
	}
	require.NoError(t, f.storage.CreatePayment(context.Background(), p))
}

func (f *TestDataFactory) CreateSubscription(t *testing.T, userID string, plan models.Plan, start, end time.Time) {
	_, err := f.storage.DB.Exec(`INSERT INTO subscriptions (id, user_id, plan, start_date, end_date, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, 'active')`, userID, plan, start, end)
	require.NoError(t, err)
}

// TestVerification проверяет состояние базы после операций.
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает помощника для проверок.
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

func (v *TestVerification) PaymentStatus(t *testing.T, orderID string) models.PaymentStatus {
	var status models.PaymentStatus
	err := v.storage.DB.QueryRow(`SELECT status FROM payments WHERE gateway_order_id = $1`, orderID).Scan(&status)
	require.NoError(t, err)
	return status
}

func (v *TestVerification) SubscriptionRows(t *testing.T, userID string) int {
	var n int
	err := v.storage.DB.QueryRow(`SELECT COUNT(*) FROM subscriptions WHERE user_id = $1`, userID).Scan(&n)
	require.NoError(t, err)
	return n
}
