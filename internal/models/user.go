// Package models содержит доменные структуры сервиса: профиль пользователя,
// блокировку устройства, подписку и платеж, а также события, которые
// публикуются после изменения доступа.
package models

import "time"

// RoleUser — роль, которая назначается при первой аутентификации.
const RoleUser = "user"

// Profile представляет профиль пользователя, созданный при первой аутентификации.
// ID совпадает с идентификатором пользователя у провайдера identity.
type Profile struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	LastSessionToken *string   `json:"-"` // Текущий токен сессии, nil если сессии нет
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DeviceLock — зеркало активной сессии пользователя, одна строка на пользователя.
type DeviceLock struct {
	UserID       string
	SessionToken string
	CreatedAt    time.Time
}
