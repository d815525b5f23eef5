// Package paymentorder открывает заказ в платежном шлюзе для выбранного плана.
package paymentorder

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/pivot-calculator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/response"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/payment"
)

// Request — выбранный план.
type Request struct {
	Plan string `json:"plan" validate:"required,oneof=1m 6m 12m"`
}

// Service создает заказы.
type Service interface {
	CreateOrder(ctx context.Context, userID string, p models.Plan) (*payment.Order, error)
}

// Handler обрабатывает POST /payments/orders.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать заказ
// @Description Создает заказ в платежном шлюзе и pending платеж. Сумма в ответе в пайсах.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "План"
// @Success 200 {object} payment.Order
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Неизвестный план"
// @Failure 500 {object} response.ErrorResponse "Ошибка шлюза или хранилища"
// @Router /payments/orders [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.order"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := middlewarectx.UserID(r.Context())
	if userID == "" {
		response.Fail(w, r, http.StatusUnauthorized, response.ReasonUnauthenticated, "user identification missing")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Info("failed to decode request", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, response.ReasonInvalidRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, response.ValidationError(verrs))
			return
		}
		response.Fail(w, r, http.StatusBadRequest, response.ReasonInvalidRequest, "invalid request body")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), userID, models.Plan(req.Plan))
	if errors.Is(err, payment.ErrUnknownPlan) {
		response.Fail(w, r, http.StatusUnprocessableEntity, response.ReasonInvalidRequest, "unknown plan")
		return
	}
	if err != nil {
		log.Error("failed to create order", sl.Err(err))
		response.ServerError(w, r)
		return
	}

	render.JSON(w, r, response.OKWithData(order))
}
