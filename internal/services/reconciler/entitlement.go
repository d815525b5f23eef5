package reconciler

import (
	"time"

	"github.com/magabrotheeeer/pivot-calculator/internal/lib/plan"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
)

// nextSubscription вычисляет состояние подписки после оплаты плана p.
// Активная подписка продлевается от своей даты окончания, иначе срок
// начинается заново от now. Идентификатор существующей строки сохраняется.
func nextSubscription(cur *models.Subscription, userID string, p models.Plan, now time.Time) (*models.Subscription, Outcome) {
	if cur.ActiveAt(now) {
		next := *cur
		next.Plan = p
		next.EndDate = plan.EndDate(cur.EndDate.UTC(), p)
		return &next, OutcomeExtended
	}

	next := &models.Subscription{
		UserID:    userID,
		Plan:      p,
		StartDate: now,
		EndDate:   plan.EndDate(now, p),
		Status:    models.SubscriptionActive,
	}
	if cur != nil {
		next.ID = cur.ID
		next.CreatedAt = cur.CreatedAt
	}
	return next, OutcomeActivated
}
