// Package details отдает подписку пользователя и число оставшихся дней.
package details

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/pivot-calculator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/response"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/subscription"
)

// Service читает состояние подписки.
type Service interface {
	Details(ctx context.Context, userID string) (*subscription.Details, error)
}

// Handler обрабатывает GET /subscription/details.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Response — состояние подписки на верхнем уровне ответа.
type Response struct {
	response.Response
	subscription.Details
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Подписка пользователя
// @Tags Subscription
// @Produce  json
// @Success 200 {object} Response
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /subscription/details [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.details"

	userID := middlewarectx.UserID(r.Context())
	if userID == "" {
		response.Fail(w, r, http.StatusUnauthorized, response.ReasonUnauthenticated, "user identification missing")
		return
	}

	d, err := h.service.Details(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to get subscription details", slog.String("op", op), sl.Err(err))
		response.ServerError(w, r)
		return
	}
	render.JSON(w, r, Response{Response: response.OK(), Details: *d})
}
