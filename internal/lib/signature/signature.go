// Package signature проверяет подписи платежного шлюза.
//
// Шлюз подписывает вебхуки HMAC-SHA256 от сырого тела запроса секретом вебхука,
// а результат оплаты на клиенте — HMAC-SHA256 от строки "order_id|payment_id"
// секретом ключа API. Обе подписи передаются в hex.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Sign возвращает hex HMAC-SHA256 от payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyBody сравнивает подпись вебхука с подписью сырого тела за постоянное время.
// Пустой секрет или пустая подпись никогда не проходят проверку.
func VerifyBody(secret string, body []byte, sig string) bool {
	if secret == "" || sig == "" {
		return false
	}
	expected := Sign(secret, body)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) == 1
}

// CheckoutPayload собирает строку, которую шлюз подписывает для клиента.
func CheckoutPayload(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}

// VerifyCheckout проверяет подпись, полученную клиентом после оплаты.
// Сравнение точное, регистр hex учитывается.
func VerifyCheckout(secret, orderID, paymentID, sig string) bool {
	if secret == "" || sig == "" {
		return false
	}
	expected := Sign(secret, CheckoutPayload(orderID, paymentID))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) == 1
}
