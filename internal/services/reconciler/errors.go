package reconciler

import (
	"errors"

	"github.com/magabrotheeeer/pivot-calculator/internal/paymentprovider"
)

var (
	// ErrSignatureInvalid — подпись шлюза не совпала, состояние не менялось
	// (кроме перевода pending платежа в failed на клиентском пути).
	ErrSignatureInvalid = errors.New("gateway signature invalid")
	// ErrMalformedEvent — тело события не разбирается.
	ErrMalformedEvent = paymentprovider.ErrMalformedEvent
	// ErrUnrecoverableEvent — по событию нельзя восстановить пользователя или план.
	// Требует ручной сверки.
	ErrUnrecoverableEvent = errors.New("payment cannot be attributed to a user and plan")
	// ErrForeignPayment — заказ принадлежит другому пользователю.
	ErrForeignPayment = errors.New("payment belongs to another user")
	// ErrTransient — временная ошибка хранилища, повтор безопасен.
	ErrTransient = errors.New("reconciliation temporarily unavailable")
)
