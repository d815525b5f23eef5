// Package storage описывает контракт хранилища доступа: общие ошибки
// и транзакционные операции, которыми пользуется сверка платежей.
package storage

import "errors"

var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrDeviceLockNotFound   = errors.New("device lock not found")
)
