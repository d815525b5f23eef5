package middlewarectx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/pivot-calculator/internal/http/response"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/jwt"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
)

// TokenParser проверяет токен identity.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// bearerToken берет токен из заголовка Authorization, иначе из cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if ck, err := r.Cookie(CookieAccessToken); err == nil {
		return ck.Value
	}
	return ""
}

// Authenticate проверяет токен identity и кладет пользователя в контекст.
// Без валидного токена запрос завершается 401 unauthenticated.
func Authenticate(log *slog.Logger, parser TokenParser, rec Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Authenticate"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token := bearerToken(r)
			if token == "" {
				denied(rec, response.ReasonUnauthenticated)
				response.Fail(w, r, http.StatusUnauthorized, response.ReasonUnauthenticated, "missing credential")
				return
			}
			claims, err := parser.ParseToken(token)
			if err != nil {
				log.Info("invalid credential", sl.Err(err))
				denied(rec, response.ReasonUnauthenticated)
				response.Fail(w, r, http.StatusUnauthorized, response.ReasonUnauthenticated, "invalid or expired credential")
				return
			}

			ctx := WithIdentity(r.Context(), claims.UserID(), claims.Email, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
