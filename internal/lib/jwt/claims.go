// Package jwt проверяет токены доступа провайдера identity (HS256)
// и умеет выпускать такие же токены для локальной разработки и тестов.
package jwt

import (
	"errors"
	"time"
)

// Audience — аудитория, которую провайдер identity ставит в токены пользователей.
const Audience = "authenticated"

var ErrInvalidToken = errors.New("invalid token")

// Maker описывает выпуск и проверку токенов доступа.
type Maker interface {
	GenerateToken(userID, email, role string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker на общем секрете провайдера.
type MakerImpl struct {
	secretKey string        // Секрет подписи токенов провайдера.
	tokenTTL  time.Duration // Время жизни выпускаемых токенов.
	audience  string
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
		audience:  Audience,
	}
}
