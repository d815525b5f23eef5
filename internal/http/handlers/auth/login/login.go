// Package login реализует вход по паролю через провайдера identity
// с выдачей новой сессии. Новая сессия вытесняет сессию на другом устройстве.
package login

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
	"github.com/magabrotheeeer/pivot-calculator/internal/identity"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
)

// Request — учетные данные пользователя.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Response — токены после успешного входа.
type Response struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int           `json:"expires_in"`
	SessionToken string        `json:"session_token"`
	User         identity.User `json:"user"`
}

// Authenticator выполняет вход у провайдера identity.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
}

// SessionIssuer выдает токен сессии.
type SessionIssuer interface {
	IssueSession(ctx context.Context, userID, email string) (string, error)
}

// Handler обрабатывает HTTP-запросы входа.
type Handler struct {
	log      *slog.Logger
	auth     Authenticator
	sessions SessionIssuer
	cookies  middlewarectx.Cookies
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, auth Authenticator, sessions SessionIssuer, cookies middlewarectx.Cookies) *Handler {
	return &Handler{
		log:      log,
		auth:     auth,
		sessions: sessions,
		cookies:  cookies,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход по паролю
// @Description Аутентифицирует пользователя у провайдера identity и выдает токен сессии.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body Request true "Учетные данные"
// @Success 200 {object} Response
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Слишком много попыток"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Info("failed to decode request body", sl.Err(err))
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

	sess, err := h.auth.SignInWithPassword(r.Context(), req.Email, req.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		response.Fail(w, r, http.StatusUnauthorized, response.ReasonUnauthenticated, "invalid login credentials")
		return
	}
	if err != nil {
		log.Error("identity sign in failed", sl.Err(err))
		response.ServerError(w, r)
		return
	}

	token, err := h.sessions.IssueSession(r.Context(), sess.User.ID, sess.User.Email)
	if err != nil {
		log.Error("failed to issue session", sl.Err(err))
		response.ServerError(w, r)
		return
	}

	h.cookies.Set(w, sess.AccessToken, token)
	log.Info("login success", slog.String("user_id", sess.User.ID))
	render.JSON(w, r, response.OKWithData(Response{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresIn:    sess.ExpiresIn,
		SessionToken: token,
		User:         sess.User,
	}))
}
