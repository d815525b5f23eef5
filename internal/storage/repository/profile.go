package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/storage"
)

// UpsertProfile создает профиль при первой аутентификации.
// Для существующего профиля обновляется только email, роль сохраняется.
func (s *Storage) UpsertProfile(ctx context.Context, userID, email string) (*models.Profile, error) {
	const op = "storage.UpsertProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `INSERT INTO profiles (id, email, role)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, updated_at = NOW()
			  RETURNING id, email, role, last_session_token, created_at, updated_at`
	p, err := scanProfile(s.DB.QueryRowContext(ctx, query, userID, email, models.RoleUser))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// GetProfile возвращает профиль пользователя.
func (s *Storage) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "storage.GetProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `SELECT id, email, role, last_session_token, created_at, updated_at
			  FROM profiles
			  WHERE id = $1`
	p, err := scanProfile(s.DB.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// SetSessionToken записывает текущий токен сессии, nil очищает его.
func (s *Storage) SetSessionToken(ctx context.Context, userID string, token *string) error {
	const op = "storage.SetSessionToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `UPDATE profiles SET last_session_token = $2, updated_at = NOW() WHERE id = $1`
	res, err := s.DB.ExecContext(ctx, query, userID, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return storage.ErrProfileNotFound
	}
	return nil
}

// UpsertDeviceLock оставляет одну блокировку устройства на пользователя.
func (s *Storage) UpsertDeviceLock(ctx context.Context, userID, token string) error {
	const op = "storage.UpsertDeviceLock"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `INSERT INTO device_locks (user_id, session_token)
			  VALUES ($1, $2)
			  ON CONFLICT (user_id) DO UPDATE
			  SET session_token = EXCLUDED.session_token, created_at = NOW()`
	if _, err := s.DB.ExecContext(ctx, query, userID, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteDeviceLock удаляет блокировку устройства, отсутствие строки не ошибка.
func (s *Storage) DeleteDeviceLock(ctx context.Context, userID string) error {
	const op = "storage.DeleteDeviceLock"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM device_locks WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// deviceLock возвращает блокировку устройства пользователя.
func (s *Storage) deviceLock(ctx context.Context, userID string) (*models.DeviceLock, error) {
	const op = "storage.deviceLock"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var d models.DeviceLock
	err := s.DB.QueryRowContext(ctx,
		`SELECT user_id, session_token, created_at FROM device_locks WHERE user_id = $1`, userID,
	).Scan(&d.UserID, &d.SessionToken, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrDeviceLockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &d, nil
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p     models.Profile
		token sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Email, &p.Role, &token, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.LastSessionToken = nullString(token)
	return &p, nil
}
