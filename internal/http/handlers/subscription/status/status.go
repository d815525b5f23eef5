// Package status отвечает, действует ли подписка пользователя.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/pivot-calculator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/response"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
)

// Service проверяет подписку.
type Service interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}

// Handler обрабатывает GET /subscription/status.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Response — признак активной подписки на верхнем уровне ответа.
type Response struct {
	response.Response
	Active bool `json:"active"`
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Статус подписки
// @Tags Subscription
// @Produce  json
// @Success 200 {object} Response
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /subscription/status [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.status"

	userID := middlewarectx.UserID(r.Context())
	if userID == "" {
		response.Fail(w, r, http.StatusUnauthorized, response.ReasonUnauthenticated, "user identification missing")
		return
	}

	active, err := h.service.IsActive(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to check subscription", slog.String("op", op), sl.Err(err))
		response.ServerError(w, r)
		return
	}
	render.JSON(w, r, Response{Response: response.OK(), Active: active})
}
