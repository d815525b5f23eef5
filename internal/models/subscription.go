package models

import "time"

// Plan — тарифный план подписки.
type Plan string

const (
	Plan1M  Plan = "1m"
	Plan6M  Plan = "6m"
	Plan12M Plan = "12m"
)

// SubscriptionStatus — статус записи подписки.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription представляет подписку пользователя. На одного пользователя
// хранится одна строка, которая продлевается или перезаписывается при оплате.
type Subscription struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Plan      Plan               `json:"plan"`
	StartDate time.Time          `json:"start_date"`
	EndDate   time.Time          `json:"end_date"`
	Status    SubscriptionStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ActiveAt сообщает, дает ли подписка доступ в момент now.
// Статус сам по себе не доверяется: дата окончания проверяется всегда.
func (s *Subscription) ActiveAt(now time.Time) bool {
	if s == nil {
		return false
	}
	return s.Status == SubscriptionActive && s.EndDate.After(now)
}
