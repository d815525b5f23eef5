package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/pivot-calculator/internal/http/response"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/session"
)

// SessionValidator сверяет предъявленный токен сессии с профилем.
type SessionValidator interface {
	ValidateSession(ctx context.Context, userID, presented string) (session.Verdict, error)
}

// Revoker отзывает токен identity у провайдера.
type Revoker interface {
	SignOut(ctx context.Context, accessToken string) error
}

const revokeTimeout = 5 * time.Second

// SessionGuard пропускает только запросы с действующим токеном сессии.
// При несовпадении токен identity отзывается, cookie стираются, ответ 401.
// Токен в профиле не трогается: он принадлежит устройству, выигравшему сессию.
func SessionGuard(log *slog.Logger, guard SessionValidator, revoker Revoker, cookies Cookies, rec Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.SessionGuard"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			userID := UserID(r.Context())
			verdict, err := guard.ValidateSession(r.Context(), userID, SessionToken(r))
			if err != nil {
				log.Error("failed to validate session", sl.Err(err))
				denied(rec, response.ReasonServerError)
				response.ServerError(w, r)
				return
			}
			if verdict.Valid {
				next.ServeHTTP(w, r)
				return
			}

			reason := response.ReasonSessionMismatch
			switch verdict.Reason {
			case session.ReasonNoCredential:
				reason = response.ReasonUnauthenticated
			case session.ReasonProfileNotFound:
				reason = response.ReasonProfileNotFound
			}
			log.Info("session rejected", slog.String("user_id", userID), slog.String("reason", string(verdict.Reason)))

			if revoker != nil {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), revokeTimeout)
				if err := revoker.SignOut(ctx, Credential(r.Context())); err != nil {
					log.Warn("failed to revoke credential", sl.Err(err))
				}
				cancel()
			}
			cookies.Expire(w)
			denied(rec, reason)
			response.Fail(w, r, http.StatusUnauthorized, reason, "session is not valid on this device")
		})
	}
}
