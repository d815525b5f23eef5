package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/storage"
)

func TestStorage_PaymentLifecycle(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	factory := NewTestDataFactory(s)
	verify := NewTestVerification(s)
	factory.CreatePayment(t, "u1", "ord_1", models.Plan1M, models.PaymentPending)
	factory.CreatePayment(t, "u1", "ord_2", models.Plan6M, models.PaymentPending)

	list, err := s.ListPayments(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	err = s.InTx(ctx, func(tx storage.Tx) error {
		p, err := tx.PaymentForUpdate(ctx, "ord_1")
		if err != nil {
			return err
		}
		pid, sig := "pay_1", "sig"
		p.GatewayPaymentID, p.GatewaySignature = &pid, &sig
		return tx.CompletePayment(ctx, p)
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, verify.PaymentStatus(t, "ord_1"))

	err = s.InTx(ctx, func(tx storage.Tx) error {
		failed, err := tx.FailPayment(ctx, "ord_1")
		require.NoError(t, err)
		assert.False(t, failed, "completed payment is never failed")

		failed, err = tx.FailPayment(ctx, "ord_2")
		require.NoError(t, err)
		assert.True(t, failed)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, verify.PaymentStatus(t, "ord_2"))

	p, err := s.GetPaymentByOrderID(ctx, "ord_1")
	require.NoError(t, err)
	require.NotNil(t, p.GatewayPaymentID)
	assert.Equal(t, "pay_1", *p.GatewayPaymentID)

	_, err = s.GetPaymentByOrderID(ctx, "ord_missing")
	require.ErrorIs(t, err, storage.ErrPaymentNotFound)
}

func TestStorage_InsertPaymentConflict(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	NewTestDataFactory(s).CreatePayment(t, "u1", "ord_1", models.Plan1M, models.PaymentPending)

	err := s.InTx(ctx, func(tx storage.Tx) error {
		inserted, err := tx.InsertPayment(ctx, &models.Payment{
			UserID: "u1", GatewayOrderID: "ord_1", Plan: models.Plan1M,
			Amount: 2999, Currency: "INR", Status: models.PaymentCompleted,
		})
		require.NoError(t, err)
		assert.False(t, inserted)
		return nil
	})
	require.NoError(t, err)
}

func TestStorage_InTxRollback(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	boom := errors.New("boom")
	now := time.Now().UTC()
	err := s.InTx(ctx, func(tx storage.Tx) error {
		_, err := tx.InsertSubscription(ctx, &models.Subscription{
			UserID: "u1", Plan: models.Plan1M, StartDate: now,
			EndDate: now.AddDate(0, 0, 30), Status: models.SubscriptionActive,
		})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, NewTestVerification(s).SubscriptionRows(t, "u1"))
}

func TestStorage_SubscriptionUpsert(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	err := s.InTx(ctx, func(tx storage.Tx) error {
		_, err := tx.SubscriptionForUpdate(ctx, "u1")
		require.ErrorIs(t, err, storage.ErrSubscriptionNotFound)

		inserted, err := tx.InsertSubscription(ctx, &models.Subscription{
			UserID: "u1", Plan: models.Plan1M, StartDate: now,
			EndDate: now.AddDate(0, 0, 30), Status: models.SubscriptionActive,
		})
		require.NoError(t, err)
		assert.True(t, inserted)

		inserted, err = tx.InsertSubscription(ctx, &models.Subscription{
			UserID: "u1", Plan: models.Plan6M, StartDate: now,
			EndDate: now.AddDate(0, 0, 180), Status: models.SubscriptionActive,
		})
		require.NoError(t, err)
		assert.False(t, inserted)

		sub, err := tx.SubscriptionForUpdate(ctx, "u1")
		require.NoError(t, err)
		sub.EndDate = sub.EndDate.UTC().AddDate(0, 0, 180)
		sub.Plan = models.Plan6M
		return tx.UpdateSubscription(ctx, sub)
	})
	require.NoError(t, err)

	sub, err := s.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.Plan6M, sub.Plan)
	assert.True(t, sub.EndDate.Equal(now.AddDate(0, 0, 210)))
	assert.Equal(t, 1, NewTestVerification(s).SubscriptionRows(t, "u1"))
}

func TestStorage_SubscriptionRowLockSerializes(t *testing.T) {
	s, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	start := time.Now().UTC().Truncate(time.Microsecond)
	NewTestDataFactory(s).CreateSubscription(t, "u1", models.Plan1M, start, start.AddDate(0, 0, 30))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(tx storage.Tx) error {
				sub, err := tx.SubscriptionForUpdate(ctx, "u1")
				if err != nil {
					return err
				}
				sub.EndDate = sub.EndDate.UTC().AddDate(0, 0, 30)
				return tx.UpdateSubscription(ctx, sub)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sub, err := s.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, sub.EndDate.Equal(start.AddDate(0, 0, 150)), "every extension must be applied")
}
