// Package logout завершает сессию пользователя.
package logout

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/pivot-calculator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/response"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/session"
)

// SessionManager проверяет и сбрасывает сессию.
type SessionManager interface {
	ValidateSession(ctx context.Context, userID, presented string) (session.Verdict, error)
	ClearSession(ctx context.Context, userID string) error
}

// Revoker отзывает токен identity у провайдера.
type Revoker interface {
	SignOut(ctx context.Context, accessToken string) error
}

// Handler обрабатывает POST /auth/logout.
type Handler struct {
	log      *slog.Logger
	sessions SessionManager
	revoker  Revoker
	cookies  middlewarectx.Cookies
}

// New создает Handler.
func New(log *slog.Logger, sessions SessionManager, revoker Revoker, cookies middlewarectx.Cookies) *Handler {
	return &Handler{log: log, sessions: sessions, revoker: revoker, cookies: cookies}
}

// ServeHTTP godoc
// @Summary Выход
// @Description Сбрасывает сессию (только если ее предъявило текущее устройство), отзывает токен identity и стирает cookie.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Нет токена identity"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/logout [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := middlewarectx.UserID(r.Context())
	if userID == "" {
		response.Fail(w, r, http.StatusUnauthorized, response.ReasonUnauthenticated, "user identification missing")
		return
	}

	presented := middlewarectx.SessionToken(r)

	// Вытесненное устройство не должно сбрасывать сессию победившего.
	verdict, err := h.sessions.ValidateSession(r.Context(), userID, presented)
	if err != nil {
		log.Error("failed to validate session", sl.Err(err))
		response.ServerError(w, r)
		return
	}
	if verdict.Valid {
		if err := h.sessions.ClearSession(r.Context(), userID); err != nil {
			log.Error("failed to clear session", sl.Err(err))
			response.ServerError(w, r)
			return
		}
	}

	if err := h.revoker.SignOut(r.Context(), middlewarectx.Credential(r.Context())); err != nil {
		log.Warn("failed to revoke credential", sl.Err(err))
	}
	h.cookies.Expire(w)
	log.Info("logged out", slog.String("user_id", userID), slog.Bool("session_cleared", verdict.Valid))
	render.JSON(w, r, response.OK())
}
