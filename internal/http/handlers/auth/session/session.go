// Package session выдает сессию клиенту, который уже получил токен identity
// в обход пароля: после подтверждения почты или OAuth callback.
package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/pivot-calculator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/response"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
)

// SessionIssuer выдает токен сессии.
type SessionIssuer interface {
	IssueSession(ctx context.Context, userID, email string) (string, error)
}

// Handler обрабатывает POST /auth/session.
type Handler struct {
	log      *slog.Logger
	sessions SessionIssuer
	cookies  middlewarectx.Cookies
}

// New создает Handler.
func New(log *slog.Logger, sessions SessionIssuer, cookies middlewarectx.Cookies) *Handler {
	return &Handler{log: log, sessions: sessions, cookies: cookies}
}

// ServeHTTP godoc
// @Summary Выдать сессию
// @Description Выдает токен сессии по действующему токену identity. Прежняя сессия на другом устройстве перестает действовать.
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Нет токена identity"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/session [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.session"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := middlewarectx.UserID(r.Context())
	if userID == "" {
		response.Fail(w, r, http.StatusUnauthorized, response.ReasonUnauthenticated, "user identification missing")
		return
	}

	token, err := h.sessions.IssueSession(r.Context(), userID, middlewarectx.UserEmail(r.Context()))
	if err != nil {
		log.Error("failed to issue session", sl.Err(err))
		response.ServerError(w, r)
		return
	}

	h.cookies.Set(w, middlewarectx.Credential(r.Context()), token)
	log.Info("session issued", slog.String("user_id", userID))
	render.JSON(w, r, response.OKWithData(map[string]string{
		"session_token": token,
	}))
}
