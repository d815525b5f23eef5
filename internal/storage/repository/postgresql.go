// Package repository реализует хранилище доступа на PostgreSQL:
// профили и блокировки устройств, подписки и платежи, а также
// транзакции с блокировкой строк для сверки платежей.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/pivot-calculator/internal/storage"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
// Каждый вызов выполняется не дольше Timeout, если он задан.
type Storage struct {
	DB      *sql.DB
	Timeout time.Duration
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string, timeout time.Duration) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB:      db,
		Timeout: timeout,
	}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// Ping проверяет доступность базы данных.
func (s *Storage) Ping(ctx context.Context) error {
	const op = "storage.Ping"
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

// InTx выполняет fn в одной транзакции. Ошибка fn откатывает транзакцию,
// успешное завершение фиксирует ее.
func (s *Storage) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	const op = "storage.InTx"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	sqlTx, err := s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	if err := fn(&Tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// Tx реализует storage.Tx поверх *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

var _ storage.Tx = (*Tx)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
