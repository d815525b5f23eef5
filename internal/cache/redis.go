// Package cache хранит в redis JSON-копии подписок пользователей.
// Кеш только ускоряет чтение: активность подписки всегда пересчитывается
// по датам, а после сверки платежа запись сбрасывается.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/pivot-calculator/internal/config"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
)

type Cache struct {
	Db  *redis.Client
	TTL time.Duration
}

// SubscriptionKey возвращает ключ кеша подписки пользователя.
func SubscriptionKey(userID string) string {
	return "subscription:" + userID
}

func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{Db: db, TTL: ttl}, nil
}

func (c *Cache) Close() error {
	return c.Db.Close()
}

func (c *Cache) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(val, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "cache.Set"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.Db.Set(ctx, key, jsonData, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetIfAbsent пишет value, только если ключа нет. Возвращает true, если запись состоялась.
func (c *Cache) SetIfAbsent(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	const op = "cache.SetIfAbsent"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	ok, err := c.Db.SetNX(ctx, key, jsonData, expiration).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

func (c *Cache) Invalidate(ctx context.Context, key string) error {
	const op = "cache.Invalidate"
	if err := c.Db.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSubscription читает подписку из кеша.
func (c *Cache) GetSubscription(ctx context.Context, userID string) (*models.Subscription, bool, error) {
	var sub models.Subscription
	found, err := c.Get(ctx, SubscriptionKey(userID), &sub)
	if err != nil || !found {
		return nil, false, err
	}
	return &sub, true, nil
}

// SetSubscription кладет подписку в кеш на TTL, перезаписывая прежнюю.
// Вызывается после фиксации изменения подписки.
func (c *Cache) SetSubscription(ctx context.Context, sub *models.Subscription) error {
	return c.Set(ctx, SubscriptionKey(sub.UserID), sub, c.TTL)
}

// FillSubscription заполняет кеш прочитанной из хранилища строкой, но не
// затирает запись, которую успела положить сверка платежа.
func (c *Cache) FillSubscription(ctx context.Context, sub *models.Subscription) error {
	_, err := c.SetIfAbsent(ctx, SubscriptionKey(sub.UserID), sub, c.TTL)
	return err
}

// InvalidateSubscription удаляет подписку пользователя из кеша.
func (c *Cache) InvalidateSubscription(ctx context.Context, userID string) error {
	return c.Invalidate(ctx, SubscriptionKey(userID))
}
