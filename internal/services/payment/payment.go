// Package payment открывает заказы в платежном шлюзе и отдает историю платежей.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/pivot-calculator/internal/lib/plan"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/paymentprovider"
)

var ErrUnknownPlan = errors.New("unknown plan")

// Repository хранит платежи.
type Repository interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	ListPayments(ctx context.Context, userID string, limit, offset int) ([]*models.Payment, error)
}

// Gateway создает заказы в шлюзе.
type Gateway interface {
	CreateOrder(ctx context.Context, req paymentprovider.CreateOrderRequest) (*paymentprovider.Order, error)
	KeyID() string
}

// Order — данные для запуска checkout на клиенте. Amount в пайсах.
type Order struct {
	OrderID  string      `json:"order_id"`
	Amount   int64       `json:"amount"`
	Currency string      `json:"currency"`
	Plan     models.Plan `json:"plan"`
	KeyID    string      `json:"key_id"`
}

type PaymentService struct {
	repo    Repository
	gateway Gateway
	log     *slog.Logger
	now     func() time.Time
}

func New(repo Repository, gateway Gateway, log *slog.Logger) *PaymentService {
	return &PaymentService{
		repo:    repo,
		gateway: gateway,
		log:     log,
		now:     time.Now,
	}
}

// CreateOrder создает заказ в шлюзе и сохраняет его как pending платеж.
func (s *PaymentService) CreateOrder(ctx context.Context, userID string, p models.Plan) (*Order, error) {
	const op = "services.payment.CreateOrder"

	if !plan.Valid(p) {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrUnknownPlan, p)
	}
	price := plan.Price(p)

	order, err := s.gateway.CreateOrder(ctx, paymentprovider.CreateOrderRequest{
		Amount:   price * 100,
		Currency: plan.Currency,
		Receipt:  "receipt_" + strconv.FormatInt(s.now().UnixMilli(), 10),
		Notes:    paymentprovider.Notes{UserID: userID, Plan: string(p)},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.repo.CreatePayment(ctx, &models.Payment{
		UserID:         userID,
		GatewayOrderID: order.ID,
		Plan:           p,
		Amount:         price,
		Currency:       plan.Currency,
		Status:         models.PaymentPending,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("order created",
		slog.String("op", op),
		slog.String("user_id", userID),
		slog.String("order_id", order.ID),
		slog.String("plan", string(p)),
	)
	return &Order{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Plan:     p,
		KeyID:    s.gateway.KeyID(),
	}, nil
}

// ListPayments возвращает платежи пользователя.
func (s *PaymentService) ListPayments(ctx context.Context, userID string, limit, offset int) ([]*models.Payment, error) {
	return s.repo.ListPayments(ctx, userID, limit, offset)
}
