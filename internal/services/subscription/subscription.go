// Package subscription отвечает на вопрос, есть ли у пользователя доступ,
// с кешированием строки подписки в redis.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/storage"
)

// Repository читает подписки из хранилища.
type Repository interface {
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
}

// Cache описывает кеш подписок. FillSubscription не перезаписывает
// существующую запись: строку после оплаты кладет туда сверка.
type Cache interface {
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, bool, error)
	FillSubscription(ctx context.Context, sub *models.Subscription) error
}

// Details — состояние доступа пользователя. Subscription заполнена
// только для активной подписки.
type Details struct {
	Active        bool                 `json:"active"`
	Subscription  *models.Subscription `json:"subscription"`
	RemainingDays int                  `json:"remainingDays"`
}

// Service реализует чтение подписок.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// New создает сервис. cache может быть nil.
func New(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

// Get возвращает строку подписки пользователя или nil, если ее нет.
// Ошибка кеша не мешает чтению из хранилища.
func (s *Service) Get(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, _, err := s.lookup(ctx, userID)
	return sub, err
}

func (s *Service) lookup(ctx context.Context, userID string) (*models.Subscription, bool, error) {
	const op = "services.subscription.Get"

	if s.cache != nil {
		sub, found, err := s.cache.GetSubscription(ctx, userID)
		if err != nil {
			s.log.Warn("failed to read subscription from cache", slog.String("op", op), sl.Err(err))
		}
		if found {
			return sub, true, nil
		}
	}

	sub, err := s.load(ctx, userID)
	if err != nil || sub == nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.FillSubscription(ctx, sub); err != nil {
			s.log.Warn("failed to cache subscription", slog.String("op", op), sl.Err(err))
		}
	}
	return sub, false, nil
}

func (s *Service) load(ctx context.Context, userID string) (*models.Subscription, error) {
	const op = "services.subscription.load"

	sub, err := s.repo.GetSubscription(ctx, userID)
	if errors.Is(err, storage.ErrSubscriptionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// current возвращает подписку для проверки доступа. Неактивная строка из
// кеша перечитывается из хранилища: оплата могла пройти после заполнения кеша.
func (s *Service) current(ctx context.Context, userID string, now time.Time) (*models.Subscription, error) {
	sub, cached, err := s.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cached && !sub.ActiveAt(now) {
		return s.load(ctx, userID)
	}
	return sub, nil
}

// IsActive сообщает, действует ли подписка сейчас. Статус пересчитывается
// по дате окончания при каждом вызове.
func (s *Service) IsActive(ctx context.Context, userID string) (bool, error) {
	now := s.now()
	sub, err := s.current(ctx, userID, now)
	if err != nil {
		return false, err
	}
	return sub.ActiveAt(now), nil
}

// Details возвращает подписку и число оставшихся дней, округленное вверх.
func (s *Service) Details(ctx context.Context, userID string) (*Details, error) {
	now := s.now()
	sub, err := s.current(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if !sub.ActiveAt(now) {
		return &Details{}, nil
	}
	return &Details{
		Active:        true,
		Subscription:  sub,
		RemainingDays: remainingDays(sub.EndDate, now),
	}, nil
}

func remainingDays(end, now time.Time) int {
	left := end.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}
