// Package health отвечает на проверку живости сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/pivot-calculator/internal/http/response"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
)

// Pinger проверяет доступность хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler отвечает на /health.
type Handler struct {
	log     *slog.Logger
	store   Pinger
	timeout time.Duration
}

// New создает Handler.
func New(log *slog.Logger, store Pinger) *Handler {
	return &Handler{
		log:     log,
		store:   store,
		timeout: 2 * time.Second,
	}
}

// ServeHTTP godoc
// @Summary Проверка живости
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.ErrorResponse "Хранилище недоступно"
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.Error("storage ping failed", slog.String("op", op), sl.Err(err))
		response.Fail(w, r, http.StatusServiceUnavailable, response.ReasonServerError, "storage unavailable")
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"store": "ok",
	}))
}
