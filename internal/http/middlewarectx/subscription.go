package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/pivot-calculator/internal/http/response"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
)

// SubscribeRedirect — куда отправить пользователя без подписки.
const SubscribeRedirect = "/subscribe"

// SubscriptionChecker сообщает, есть ли у пользователя действующая подписка.
type SubscriptionChecker interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}

// RequireSubscription пропускает только пользователей с действующей подпиской.
// Ошибка хранилища приводит к отказу 500, запрос дальше не идет.
func RequireSubscription(log *slog.Logger, checker SubscriptionChecker, rec Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.RequireSubscription"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			userID := UserID(r.Context())
			if userID == "" {
				denied(rec, response.ReasonUnauthenticated)
				response.Fail(w, r, http.StatusUnauthorized, response.ReasonUnauthenticated, "user identification missing")
				return
			}

			active, err := checker.IsActive(r.Context(), userID)
			if err != nil {
				log.Error("failed to check subscription", sl.Err(err))
				denied(rec, response.ReasonServerError)
				response.ServerError(w, r)
				return
			}
			if !active {
				denied(rec, response.ReasonSubscriptionRequired)
				resp := response.Error(response.ReasonSubscriptionRequired, "active subscription required")
				resp.Redirect = SubscribeRedirect
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
