package reconciler

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/storage"
)

// memStore хранит данные в памяти. Транзакции выполняются по одной,
// изменения применяются только при успешном завершении fn.
type memStore struct {
	mu       sync.Mutex
	payments map[string]models.Payment
	subs     map[string]models.Subscription
	err      error
	txCount  int
}

func newMemStore() *memStore {
	return &memStore{
		payments: make(map[string]models.Payment),
		subs:     make(map[string]models.Subscription),
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++
	if m.err != nil {
		return m.err
	}

	tx := &memTx{
		payments: make(map[string]models.Payment, len(m.payments)),
		subs:     make(map[string]models.Subscription, len(m.subs)),
	}
	for k, v := range m.payments {
		tx.payments[k] = v
	}
	for k, v := range m.subs {
		tx.subs[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.payments, m.subs = tx.payments, tx.subs
	return nil
}

func (m *memStore) payment(orderID string) (models.Payment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[orderID]
	return p, ok
}

func (m *memStore) subscription(userID string) (models.Subscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[userID]
	return s, ok
}

func (m *memStore) putPayment(p models.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.payments[p.GatewayOrderID] = p
}

func (m *memStore) putSubscription(s models.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.subs[s.UserID] = s
}

type memTx struct {
	payments map[string]models.Payment
	subs     map[string]models.Subscription
}

func (t *memTx) PaymentForUpdate(_ context.Context, orderID string) (*models.Payment, error) {
	p, ok := t.payments[orderID]
	if !ok {
		return nil, storage.ErrPaymentNotFound
	}
	return &p, nil
}

func (t *memTx) InsertPayment(_ context.Context, p *models.Payment) (bool, error) {
	if _, ok := t.payments[p.GatewayOrderID]; ok {
		return false, nil
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	t.payments[p.GatewayOrderID] = *p
	return true, nil
}

func (t *memTx) CompletePayment(_ context.Context, p *models.Payment) error {
	cur, ok := t.payments[p.GatewayOrderID]
	if !ok {
		return storage.ErrPaymentNotFound
	}
	cur.Status = models.PaymentCompleted
	if p.GatewayPaymentID != nil {
		cur.GatewayPaymentID = p.GatewayPaymentID
	}
	if p.GatewaySignature != nil {
		cur.GatewaySignature = p.GatewaySignature
	}
	t.payments[p.GatewayOrderID] = cur
	p.Status = models.PaymentCompleted
	return nil
}

func (t *memTx) FailPayment(_ context.Context, orderID string) (bool, error) {
	cur, ok := t.payments[orderID]
	if !ok || cur.Status != models.PaymentPending {
		return false, nil
	}
	cur.Status = models.PaymentFailed
	t.payments[orderID] = cur
	return true, nil
}

func (t *memTx) SubscriptionForUpdate(_ context.Context, userID string) (*models.Subscription, error) {
	s, ok := t.subs[userID]
	if !ok {
		return nil, storage.ErrSubscriptionNotFound
	}
	return &s, nil
}

func (t *memTx) InsertSubscription(_ context.Context, s *models.Subscription) (bool, error) {
	if _, ok := t.subs[s.UserID]; ok {
		return false, nil
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	t.subs[s.UserID] = *s
	return true, nil
}

func (t *memTx) UpdateSubscription(_ context.Context, s *models.Subscription) error {
	if _, ok := t.subs[s.UserID]; !ok {
		return storage.ErrSubscriptionNotFound
	}
	t.subs[s.UserID] = *s
	return nil
}
