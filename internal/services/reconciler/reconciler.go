// Package reconciler превращает подтвержденную шлюзом оплату в активацию
// или продление подписки ровно один раз.
//
// Оба пути подтверждения, вебхук шлюза и проверка на клиенте после checkout,
// сходятся в Reconcile. Вся сверка идет в одной транзакции: строка платежа
// блокируется по order id, затем строка подписки пользователя. Завершение
// платежа и изменение подписки фиксируются вместе, поэтому completed платеж
// всегда уже дал доступ и повторное событие ничего не меняет.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/pivot-calculator/internal/lib/plan"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/signature"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/paymentprovider"
	"github.com/magabrotheeeer/pivot-calculator/internal/storage"
)

// Outcome — итог сверки.
type Outcome string

const (
	OutcomeActivated Outcome = "activated"
	OutcomeExtended  Outcome = "extended"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Source — путь, по которому пришло подтверждение оплаты.
type Source string

const (
	SourceWebhook  Source = "webhook"
	SourceCheckout Source = "checkout"
)

// Capture — факт оплаты заказа. UserID и Plan берутся из события и нужны
// только если строки платежа нет или в ней не хватает данных.
// Amount в минимальных единицах валюты.
type Capture struct {
	OrderID   string
	PaymentID string
	Signature string
	UserID    string
	Plan      models.Plan
	Amount    int64
	Currency  string
	Source    Source
}

// Result описывает состояние после сверки.
type Result struct {
	Outcome      Outcome
	Payment      *models.Payment
	Subscription *models.Subscription
}

// Store открывает транзакции хранилища.
type Store interface {
	InTx(ctx context.Context, fn func(tx storage.Tx) error) error
}

// Cache хранит подписки пользователей. После сверки в него пишется
// зафиксированная строка, при ошибке записи ключ удаляется.
type Cache interface {
	SetSubscription(ctx context.Context, sub *models.Subscription) error
	InvalidateSubscription(ctx context.Context, userID string) error
}

// Publisher отправляет событие о завершенном платеже.
type Publisher interface {
	PublishPaymentCompleted(ctx context.Context, event models.PaymentCompletedEvent) error
}

// Recorder учитывает итоги сверки в метриках.
type Recorder interface {
	Reconciled(source, outcome string)
	ReconcileFailed(source, reason string)
}

// Secrets — секреты проверки подписей шлюза.
type Secrets struct {
	Webhook string // секрет вебхука
	Key     string // секрет ключа API, им подписывается checkout
}

// Service реализует сверку платежей.
type Service struct {
	log       *slog.Logger
	store     Store
	cache     Cache
	publisher Publisher
	recorder  Recorder
	secrets   Secrets
	now       func() time.Time

	afterCommitTimeout time.Duration
}

// New создает сервис сверки. cache, publisher и recorder могут быть nil.
func New(log *slog.Logger, store Store, cache Cache, publisher Publisher, recorder Recorder, secrets Secrets) *Service {
	return &Service{
		log:                log,
		store:              store,
		cache:              cache,
		publisher:          publisher,
		recorder:           recorder,
		secrets:            secrets,
		now:                time.Now,
		afterCommitTimeout: 5 * time.Second,
	}
}

// HandleWebhook проверяет подпись сырого тела вебхука и сверяет событие
// payment.captured. Остальные события возвращают OutcomeIgnored.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, sig string) (*Result, error) {
	const op = "services.reconciler.HandleWebhook"

	if !signature.VerifyBody(s.secrets.Webhook, body, sig) {
		s.failed(SourceWebhook, "signature_invalid")
		return nil, fmt.Errorf("%s: %w", op, ErrSignatureInvalid)
	}

	event, err := paymentprovider.ParseEvent(body)
	if err != nil {
		s.failed(SourceWebhook, "malformed_event")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	captured, ok := event.(paymentprovider.PaymentCapturedEvent)
	if !ok {
		s.log.Debug("webhook event ignored", slog.String("op", op), slog.String("event", event.EventName()))
		s.reconciled(SourceWebhook, OutcomeIgnored)
		return &Result{Outcome: OutcomeIgnored}, nil
	}

	return s.Reconcile(ctx, Capture{
		OrderID:   captured.OrderID,
		PaymentID: captured.PaymentID,
		Signature: captured.Signature,
		UserID:    captured.UserID,
		Plan:      models.Plan(captured.Plan),
		Amount:    captured.Amount,
		Currency:  captured.Currency,
		Source:    SourceWebhook,
	})
}

// ConfirmCheckout проверяет подпись, которую клиент получил от шлюза после
// оплаты, и сверяет заказ от имени userID. При неверной подписи pending
// платеж помечается failed.
func (s *Service) ConfirmCheckout(ctx context.Context, userID, orderID, paymentID, sig string) (*Result, error) {
	const op = "services.reconciler.ConfirmCheckout"

	if !signature.VerifyCheckout(s.secrets.Key, orderID, paymentID, sig) {
		s.failed(SourceCheckout, "signature_invalid")
		err := s.markFailed(ctx, userID, orderID)
		if errors.Is(err, ErrForeignPayment) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err != nil {
			s.log.Warn("failed to mark payment as failed",
				slog.String("op", op), slog.String("order_id", orderID), sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, ErrSignatureInvalid)
	}

	return s.Reconcile(ctx, Capture{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: sig,
		UserID:    userID,
		Source:    SourceCheckout,
	})
}

func (s *Service) markFailed(ctx context.Context, userID, orderID string) error {
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		p, err := tx.PaymentForUpdate(ctx, orderID)
		if errors.Is(err, storage.ErrPaymentNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return ErrForeignPayment
		}
		_, err = tx.FailPayment(ctx, orderID)
		return err
	})
	return classify(err)
}

// Reconcile идемпотентно применяет оплату заказа к подписке пользователя.
// Повтор с тем же order id возвращает OutcomeDuplicate без изменений.
func (s *Service) Reconcile(ctx context.Context, c Capture) (*Result, error) {
	const op = "services.reconciler.Reconcile"

	log := s.log.With(
		slog.String("op", op),
		slog.String("source", string(c.Source)),
		slog.String("order_id", c.OrderID),
	)

	if c.OrderID == "" {
		s.failed(c.Source, "malformed_event")
		return nil, fmt.Errorf("%s: %w: empty order id", op, ErrMalformedEvent)
	}

	now := s.now().UTC()
	var res *Result
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		res, err = s.reconcileTx(ctx, tx, c, now, log)
		return err
	})
	if err != nil {
		err = classify(err)
		s.failed(c.Source, reasonOf(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.reconciled(c.Source, res.Outcome)
	if res.Outcome != OutcomeDuplicate {
		s.afterCommit(ctx, res, log)
	}
	log.Info("payment reconciled",
		slog.String("outcome", string(res.Outcome)),
		slog.String("user_id", res.Payment.UserID),
	)
	return res, nil
}

func (s *Service) reconcileTx(ctx context.Context, tx storage.Tx, c Capture, now time.Time, log *slog.Logger) (*Result, error) {
	p, inserted, err := s.lockPayment(ctx, tx, c)
	if err != nil {
		return nil, err
	}

	if c.Source == SourceCheckout && p.UserID != "" && p.UserID != c.UserID {
		return nil, ErrForeignPayment
	}

	if !inserted {
		if p.Status == models.PaymentCompleted {
			return &Result{Outcome: OutcomeDuplicate, Payment: p}, nil
		}
		if p.Status == models.PaymentFailed {
			log.Warn("completing previously failed payment")
		}
		if c.Amount > 0 && p.Amount*100 != c.Amount {
			log.Warn("captured amount differs from order",
				slog.Int64("order_amount", p.Amount),
				slog.Int64("captured_amount", c.Amount),
			)
		}
		if p.UserID == "" {
			p.UserID = c.UserID
		}
		if !plan.Valid(p.Plan) {
			p.Plan = c.Plan
		}
		if p.UserID == "" || !plan.Valid(p.Plan) {
			return nil, ErrUnrecoverableEvent
		}
		if c.PaymentID != "" {
			p.GatewayPaymentID = &c.PaymentID
		}
		if c.Signature != "" {
			p.GatewaySignature = &c.Signature
		}
		if err := tx.CompletePayment(ctx, p); err != nil {
			return nil, err
		}
	}

	sub, outcome, err := s.applyEntitlement(ctx, tx, p.UserID, p.Plan, now)
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: outcome, Payment: p, Subscription: sub}, nil
}

// lockPayment блокирует строку платежа. Если строки нет, она создается сразу
// в статусе completed из данных события; inserted сообщает об этом.
func (s *Service) lockPayment(ctx context.Context, tx storage.Tx, c Capture) (*models.Payment, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		p, err := tx.PaymentForUpdate(ctx, c.OrderID)
		if err == nil {
			return p, false, nil
		}
		if !errors.Is(err, storage.ErrPaymentNotFound) {
			return nil, false, err
		}

		if c.UserID == "" || !plan.Valid(c.Plan) {
			return nil, false, ErrUnrecoverableEvent
		}
		currency := c.Currency
		if currency == "" {
			currency = plan.Currency
		}
		amount := c.Amount / 100
		if amount == 0 {
			amount = plan.Price(c.Plan)
		}
		p = &models.Payment{
			UserID:         c.UserID,
			GatewayOrderID: c.OrderID,
			Plan:           c.Plan,
			Amount:         amount,
			Currency:       currency,
			Status:         models.PaymentCompleted,
		}
		if c.PaymentID != "" {
			p.GatewayPaymentID = &c.PaymentID
		}
		if c.Signature != "" {
			p.GatewaySignature = &c.Signature
		}
		ok, err := tx.InsertPayment(ctx, p)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return p, true, nil
		}
	}
	return nil, false, fmt.Errorf("payment %s: concurrent insert did not become visible", c.OrderID)
}

func (s *Service) applyEntitlement(ctx context.Context, tx storage.Tx, userID string, p models.Plan, now time.Time) (*models.Subscription, Outcome, error) {
	for attempt := 0; attempt < 2; attempt++ {
		cur, err := tx.SubscriptionForUpdate(ctx, userID)
		if err != nil && !errors.Is(err, storage.ErrSubscriptionNotFound) {
			return nil, "", err
		}

		next, outcome := nextSubscription(cur, userID, p, now)
		if cur != nil {
			if err := tx.UpdateSubscription(ctx, next); err != nil {
				return nil, "", err
			}
			return next, outcome, nil
		}

		ok, err := tx.InsertSubscription(ctx, next)
		if err != nil {
			return nil, "", err
		}
		if ok {
			return next, outcome, nil
		}
	}
	return nil, "", fmt.Errorf("subscription %s: concurrent insert did not become visible", userID)
}

// afterCommit выполняется только для зафиксированных изменений и не влияет
// на результат: кеш и событие восстанавливаются сами.
func (s *Service) afterCommit(ctx context.Context, res *Result, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.afterCommitTimeout)
	defer cancel()

	if s.cache != nil {
		s.refreshCache(ctx, res, log)
	}
	if s.publisher != nil && res.Subscription != nil {
		event := models.PaymentCompletedEvent{
			UserID:         res.Payment.UserID,
			GatewayOrderID: res.Payment.GatewayOrderID,
			Plan:           res.Payment.Plan,
			Amount:         res.Payment.Amount,
			Currency:       res.Payment.Currency,
			EndDate:        res.Subscription.EndDate,
		}
		if err := s.publisher.PublishPaymentCompleted(ctx, event); err != nil {
			log.Warn("failed to publish payment completed event", sl.Err(err))
		}
	}
}

func (s *Service) refreshCache(ctx context.Context, res *Result, log *slog.Logger) {
	if res.Subscription != nil {
		err := s.cache.SetSubscription(ctx, res.Subscription)
		if err == nil {
			return
		}
		log.Warn("failed to cache committed subscription", sl.Err(err))
	}
	if err := s.cache.InvalidateSubscription(ctx, res.Payment.UserID); err != nil {
		log.Warn("failed to invalidate subscription cache", sl.Err(err))
	}
}

func (s *Service) reconciled(source Source, outcome Outcome) {
	if s.recorder != nil {
		s.recorder.Reconciled(string(source), string(outcome))
	}
}

func (s *Service) failed(source Source, reason string) {
	if s.recorder != nil {
		s.recorder.ReconcileFailed(string(source), reason)
	}
}

// classify оставляет доменные ошибки как есть, остальное считается
// временной ошибкой хранилища.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrUnrecoverableEvent),
		errors.Is(err, ErrForeignPayment),
		errors.Is(err, ErrMalformedEvent),
		errors.Is(err, ErrSignatureInvalid):
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrUnrecoverableEvent):
		return "unrecoverable_event"
	case errors.Is(err, ErrForeignPayment):
		return "foreign_payment"
	case errors.Is(err, ErrMalformedEvent):
		return "malformed_event"
	default:
		return "transient"
	}
}
