// Package plan описывает тарифные планы: длительность в календарных днях,
// цену и расчет даты окончания подписки.
package plan

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/pivot-calculator/internal/models"
)

// Currency — валюта, в которой продаются планы.
const Currency = "INR"

type terms struct {
	days  int
	price int64 // в рупиях
}

var plans = map[models.Plan]terms{
	models.Plan1M:  {days: 30, price: 2999},
	models.Plan6M:  {days: 180, price: 14999},
	models.Plan12M: {days: 365, price: 24999},
}

// Parse проверяет строку и возвращает план.
func Parse(s string) (models.Plan, error) {
	p := models.Plan(s)
	if _, ok := plans[p]; !ok {
		return "", fmt.Errorf("unknown plan %q", s)
	}
	return p, nil
}

// Valid сообщает, известен ли план.
func Valid(p models.Plan) bool {
	_, ok := plans[p]
	return ok
}

// Days возвращает длительность плана в днях, 0 для неизвестного плана.
func Days(p models.Plan) int {
	return plans[p].days
}

// Price возвращает цену плана в рупиях.
func Price(p models.Plan) int64 {
	return plans[p].price
}

// EndDate прибавляет длительность плана к from календарными днями.
func EndDate(from time.Time, p models.Plan) time.Time {
	return from.AddDate(0, 0, Days(p))
}
