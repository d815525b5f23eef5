// Package paymentlist отдает историю платежей пользователя.
package paymentlist

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/pivot-calculator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/response"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service читает платежи.
type Service interface {
	ListPayments(ctx context.Context, userID string, limit, offset int) ([]*models.Payment, error)
}

// Handler обрабатывает GET /payments.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func intParam(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// ServeHTTP godoc
// @Summary История платежей
// @Tags Payments
// @Produce  json
// @Param limit query int false "Размер страницы (по умолчанию 20, максимум 100)"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /payments [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.list"
	log := h.log.With(slog.String("op", op))

	userID := middlewarectx.UserID(r.Context())
	if userID == "" {
		response.Fail(w, r, http.StatusUnauthorized, response.ReasonUnauthenticated, "user identification missing")
		return
	}

	limit, ok := intParam(r, "limit", defaultLimit)
	if !ok || limit == 0 {
		response.Fail(w, r, http.StatusBadRequest, response.ReasonInvalidRequest, "invalid limit")
		return
	}
	limit = min(limit, maxLimit)
	offset, ok := intParam(r, "offset", 0)
	if !ok {
		response.Fail(w, r, http.StatusBadRequest, response.ReasonInvalidRequest, "invalid offset")
		return
	}

	payments, err := h.service.ListPayments(r.Context(), userID, limit, offset)
	if err != nil {
		log.Error("failed to list payments", sl.Err(err))
		response.ServerError(w, r)
		return
	}
	if payments == nil {
		payments = []*models.Payment{}
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"count":    len(payments),
		"payments": payments,
	}))
}
