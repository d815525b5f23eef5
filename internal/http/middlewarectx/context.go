// Package middlewarectx содержит HTTP middleware доступа: проверку токена
// identity, проверку сессии единственного устройства, проверку подписки
// и ограничение частоты запросов. Результаты проверок кладутся в контекст.
package middlewarectx

import "context"

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserUID — идентификатор пользователя из токена identity.
	UserUID Key = "user_uid"
	// Email — адрес пользователя из токена identity.
	Email Key = "email"
	// AccessToken — предъявленный токен identity, нужен для его отзыва.
	AccessToken Key = "access_token"
)

// Recorder учитывает отказы в доступе.
type Recorder interface {
	AccessDenied(reason string)
}

// UserID достает идентификатор пользователя из контекста.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(UserUID).(string)
	return v
}

// UserEmail достает адрес пользователя из контекста.
func UserEmail(ctx context.Context) string {
	v, _ := ctx.Value(Email).(string)
	return v
}

// Credential достает предъявленный токен identity.
func Credential(ctx context.Context) string {
	v, _ := ctx.Value(AccessToken).(string)
	return v
}

// WithIdentity кладет данные пользователя в контекст.
func WithIdentity(ctx context.Context, userID, email, accessToken string) context.Context {
	ctx = context.WithValue(ctx, UserUID, userID)
	ctx = context.WithValue(ctx, Email, email)
	return context.WithValue(ctx, AccessToken, accessToken)
}

func denied(rec Recorder, reason string) {
	if rec != nil {
		rec.AccessDenied(reason)
	}
}
