package storage

import (
	"context"

	"github.com/magabrotheeeer/pivot-calculator/internal/models"
)

// Tx — операции внутри одной транзакции хранилища. Методы ...ForUpdate
// блокируют строку до конца транзакции.
type Tx interface {
	// PaymentForUpdate возвращает ErrPaymentNotFound, если заказа нет.
	PaymentForUpdate(ctx context.Context, orderID string) (*models.Payment, error)
	// InsertPayment вставляет платеж, false если заказ с таким order id уже есть.
	InsertPayment(ctx context.Context, p *models.Payment) (bool, error)
	CompletePayment(ctx context.Context, p *models.Payment) error
	// FailPayment переводит платеж в failed только из pending.
	FailPayment(ctx context.Context, orderID string) (bool, error)

	// SubscriptionForUpdate возвращает ErrSubscriptionNotFound, если строки нет.
	SubscriptionForUpdate(ctx context.Context, userID string) (*models.Subscription, error)
	// InsertSubscription вставляет подписку, false если у пользователя она уже есть.
	InsertSubscription(ctx context.Context, s *models.Subscription) (bool, error)
	UpdateSubscription(ctx context.Context, s *models.Subscription) error
}
