package models

import "time"

// PaymentStatus — статус платежа.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment представляет заказ в платежном шлюзе и его итог.
// Amount хранится в основных единицах валюты (рубли, рупии), без копеек.
type Payment struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	GatewayOrderID   string        `json:"order_id"`
	GatewayPaymentID *string       `json:"payment_id,omitempty"`
	Plan             Plan          `json:"plan"`
	Amount           int64         `json:"amount"`
	Currency         string        `json:"currency"`
	Status           PaymentStatus `json:"status"`
	GatewaySignature *string       `json:"-"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// PaymentCompletedEvent публикуется в брокер после того, как платеж
// превратился в продление доступа.
type PaymentCompletedEvent struct {
	UserID         string    `json:"user_id"`
	GatewayOrderID string    `json:"order_id"`
	Plan           Plan      `json:"plan"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	EndDate        time.Time `json:"end_date"`
}
