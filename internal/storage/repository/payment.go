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

const paymentColumns = `id, user_id, gateway_order_id, gateway_payment_id, plan, amount,
	currency, status, gateway_signature, created_at, updated_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p         models.Payment
		paymentID sql.NullString
		signature sql.NullString
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.GatewayOrderID, &paymentID, &p.Plan, &p.Amount,
		&p.Currency, &p.Status, &signature, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.GatewayPaymentID = nullString(paymentID)
	p.GatewaySignature = nullString(signature)
	return &p, nil
}

// CreatePayment сохраняет заказ в статусе pending.
func (s *Storage) CreatePayment(ctx context.Context, p *models.Payment) error {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `INSERT INTO payments (id, user_id, gateway_order_id, plan, amount, currency, status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING created_at, updated_at`
	if err := s.DB.QueryRowContext(ctx, query,
		p.ID, p.UserID, p.GatewayOrderID, p.Plan, p.Amount, p.Currency, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPaymentByOrderID возвращает платеж по идентификатору заказа шлюза.
func (s *Storage) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	const op = "storage.GetPaymentByOrderID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id = $1`
	p, err := scanPayment(s.DB.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// ListPayments возвращает платежи пользователя, новые первыми.
func (s *Storage) ListPayments(ctx context.Context, userID string, limit, offset int) ([]*models.Payment, error) {
	const op = "storage.ListPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	query := `SELECT ` + paymentColumns + `
			  FROM payments
			  WHERE user_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// PaymentForUpdate блокирует строку платежа до конца транзакции.
func (t *Tx) PaymentForUpdate(ctx context.Context, orderID string) (*models.Payment, error) {
	const op = "storage.PaymentForUpdate"

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id = $1 FOR UPDATE`
	p, err := scanPayment(t.tx.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// InsertPayment вставляет платеж. Конфликт по order id не ошибка: возвращается false.
func (t *Tx) InsertPayment(ctx context.Context, p *models.Payment) (bool, error) {
	const op = "storage.InsertPayment"

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `INSERT INTO payments (id, user_id, gateway_order_id, gateway_payment_id, plan,
				  amount, currency, status, gateway_signature)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  ON CONFLICT (gateway_order_id) DO NOTHING`
	res, err := t.tx.ExecContext(ctx, query,
		p.ID, p.UserID, p.GatewayOrderID, p.GatewayPaymentID, p.Plan,
		p.Amount, p.Currency, p.Status, p.GatewaySignature)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// CompletePayment переводит платеж в completed и сохраняет данные шлюза.
func (t *Tx) CompletePayment(ctx context.Context, p *models.Payment) error {
	const op = "storage.CompletePayment"

	query := `UPDATE payments
			  SET status = 'completed',
			      gateway_payment_id = COALESCE($2, gateway_payment_id),
			      gateway_signature = COALESCE($3, gateway_signature),
			      updated_at = NOW()
			  WHERE gateway_order_id = $1`
	res, err := t.tx.ExecContext(ctx, query, p.GatewayOrderID, p.GatewayPaymentID, p.GatewaySignature)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return storage.ErrPaymentNotFound
	}
	p.Status = models.PaymentCompleted
	return nil
}

// FailPayment переводит pending платеж в failed.
func (t *Tx) FailPayment(ctx context.Context, orderID string) (bool, error) {
	const op = "storage.FailPayment"

	query := `UPDATE payments
			  SET status = 'failed', updated_at = NOW()
			  WHERE gateway_order_id = $1 AND status = 'pending'`
	res, err := t.tx.ExecContext(ctx, query, orderID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}
