package paymentprovider

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventPaymentCaptured — единственный тип события, который продлевает доступ.
const EventPaymentCaptured = "payment.captured"

// ErrMalformedEvent возвращается, если тело вебхука не разбирается
// или в событии оплаты нет обязательных полей.
var ErrMalformedEvent = errors.New("malformed gateway event")

// Event — разобранное событие шлюза: PaymentCapturedEvent или OtherEvent.
type Event interface {
	EventName() string
}

// PaymentCapturedEvent — оплата заказа подтверждена шлюзом.
// Amount в минимальных единицах валюты.
type PaymentCapturedEvent struct {
	PaymentID string
	OrderID   string
	Amount    int64
	Currency  string
	UserID    string
	Plan      string
	Signature string
}

func (PaymentCapturedEvent) EventName() string { return EventPaymentCaptured }

// OtherEvent — любое другое событие, оно только подтверждается.
type OtherEvent struct {
	Name string
}

func (e OtherEvent) EventName() string { return e.Name }

// ParseEvent разбирает сырое тело вебхука.
func ParseEvent(body []byte) (Event, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: event name is empty", ErrMalformedEvent)
	}
	if env.Event != EventPaymentCaptured {
		return OtherEvent{Name: env.Event}, nil
	}

	if env.Payload.Payment == nil {
		return nil, fmt.Errorf("%w: payment entity is missing", ErrMalformedEvent)
	}
	e := env.Payload.Payment.Entity
	if e.ID == "" || e.OrderID == "" {
		return nil, fmt.Errorf("%w: payment id or order id is empty", ErrMalformedEvent)
	}
	return PaymentCapturedEvent{
		PaymentID: e.ID,
		OrderID:   e.OrderID,
		Amount:    e.Amount,
		Currency:  e.Currency,
		UserID:    e.Notes.UserID,
		Plan:      e.Notes.Plan,
		Signature: e.Signature,
	}, nil
}
