package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/storage"
)

const subscriptionColumns = `id, user_id, plan, start_date, end_date, status, created_at, updated_at`

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var sub models.Subscription
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.Plan, &sub.StartDate, &sub.EndDate,
		&sub.Status, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetSubscription возвращает подписку пользователя без учета ее срока.
func (s *Storage) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// SubscriptionForUpdate блокирует строку подписки до конца транзакции.
func (t *Tx) SubscriptionForUpdate(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "storage.SubscriptionForUpdate"

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 FOR UPDATE`
	sub, err := scanSubscription(t.tx.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// InsertSubscription создает подписку, если у пользователя ее еще нет.
func (t *Tx) InsertSubscription(ctx context.Context, sub *models.Subscription) (bool, error) {
	const op = "storage.InsertSubscription"

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	query := `INSERT INTO subscriptions (id, user_id, plan, start_date, end_date, status)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (user_id) DO NOTHING
			  RETURNING created_at, updated_at`
	err := t.tx.QueryRowContext(ctx, query,
		sub.ID, sub.UserID, sub.Plan, sub.StartDate, sub.EndDate, sub.Status,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// UpdateSubscription перезаписывает план, даты и статус подписки пользователя.
func (t *Tx) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.UpdateSubscription"

	query := `UPDATE subscriptions
			  SET plan = $2, start_date = $3, end_date = $4, status = $5, updated_at = NOW()
			  WHERE user_id = $1
			  RETURNING updated_at`
	err := t.tx.QueryRowContext(ctx, query,
		sub.UserID, sub.Plan, sub.StartDate, sub.EndDate, sub.Status,
	).Scan(&sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrSubscriptionNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
