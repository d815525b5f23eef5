// Package pivotcalculator собирает HTTP API калькулятора: маршруты,
// зависимости и жизненный цикл сервера.
package pivotcalculator

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/magabrotheeeer/pivot-calculator/docs"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/handlers/auth/logout"
	authsession "github.com/magabrotheeeer/pivot-calculator/internal/http/handlers/auth/session"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/handlers/calculator/pivots"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/handlers/health"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/handlers/payment/paymentlist"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/handlers/payment/paymentorder"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/handlers/payment/paymentverify"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/handlers/subscription/details"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/handlers/subscription/status"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/pivot-calculator/internal/metrics"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/payment"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/reconciler"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/session"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/subscription"
)

// IdentityProvider — вход по паролю и отзыв токенов.
type IdentityProvider interface {
	login.Authenticator
	middlewarectx.Revoker
}

// Sessions — выдача, проверка и сброс сессий.
type Sessions interface {
	IssueSession(ctx context.Context, userID, email string) (string, error)
	ValidateSession(ctx context.Context, userID, presented string) (session.Verdict, error)
	ClearSession(ctx context.Context, userID string) error
}

// Subscriptions — чтение состояния подписки.
type Subscriptions interface {
	IsActive(ctx context.Context, userID string) (bool, error)
	Details(ctx context.Context, userID string) (*subscription.Details, error)
}

// Payments — заказы и история платежей.
type Payments interface {
	CreateOrder(ctx context.Context, userID string, p models.Plan) (*payment.Order, error)
	ListPayments(ctx context.Context, userID string, limit, offset int) ([]*models.Payment, error)
}

// Reconciler — оба пути подтверждения оплаты.
type Reconciler interface {
	HandleWebhook(ctx context.Context, body []byte, sig string) (*reconciler.Result, error)
	ConfirmCheckout(ctx context.Context, userID, orderID, paymentID, sig string) (*reconciler.Result, error)
}

// Deps — все, что нужно маршрутам.
type Deps struct {
	Log           *slog.Logger
	Tokens        middlewarectx.TokenParser
	Identity      IdentityProvider
	Sessions      Sessions
	Subscriptions Subscriptions
	Payments      Payments
	Reconciler    Reconciler
	Store         health.Pinger
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	Cookies       middlewarectx.Cookies
	Limiter       *middlewarectx.RateLimiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	log := d.Log

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		d.Metrics.Middleware,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/health", health.New(log, d.Store).ServeHTTP)
		r.With(d.Limiter.Middleware(log)).Post("/auth/login", login.New(log, d.Identity, d.Sessions, d.Cookies).ServeHTTP)
		r.Post("/payments/webhook", paymentwebhook.New(log, d.Reconciler).ServeHTTP)

		// Нужен только токен identity
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.Authenticate(log, d.Tokens, d.Metrics))
			r.Post("/auth/session", authsession.New(log, d.Sessions, d.Cookies).ServeHTTP)
			r.Post("/auth/logout", logout.New(log, d.Sessions, d.Identity, d.Cookies).ServeHTTP)

			// Токен identity и сессия текущего устройства
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.SessionGuard(log, d.Sessions, d.Identity, d.Cookies, d.Metrics))
				r.Post("/payments/orders", paymentorder.New(log, d.Payments).ServeHTTP)
				r.Post("/payments/verify", paymentverify.New(log, d.Reconciler).ServeHTTP)
				r.Get("/payments", paymentlist.New(log, d.Payments).ServeHTTP)
				r.Get("/subscription/details", details.New(log, d.Subscriptions).ServeHTTP)
				r.Get("/subscription/status", status.New(log, d.Subscriptions).ServeHTTP)

				r.With(middlewarectx.RequireSubscription(log, d.Subscriptions, d.Metrics)).
					Post("/calculator/pivots", pivots.New(log).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
