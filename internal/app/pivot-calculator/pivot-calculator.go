package pivotcalculator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/pivot-calculator/internal/cache"
	"github.com/magabrotheeeer/pivot-calculator/internal/config"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/pivot-calculator/internal/identity"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/jwt"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
	"github.com/magabrotheeeer/pivot-calculator/internal/metrics"
	"github.com/magabrotheeeer/pivot-calculator/internal/migrations"
	"github.com/magabrotheeeer/pivot-calculator/internal/paymentprovider"
	"github.com/magabrotheeeer/pivot-calculator/internal/rabbitmq"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/payment"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/reconciler"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/session"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/subscription"
	"github.com/magabrotheeeer/pivot-calculator/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App — HTTP-сервер калькулятора со всеми зависимостями.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
}

// New подключается к хранилищам, применяет миграции и собирает роутер.
// Брокер необязателен: без него квитанции об оплате не отправляются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.pivotcalculator.New"

	db, err := repository.New(cfg.StorageConnectionString, cfg.StoreTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	version, dirty, err := migrations.Version(db.DB, cfg.MigrationsPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if dirty {
		_ = db.Close()
		return nil, fmt.Errorf("%s: schema version %d is dirty", op, version)
	}
	logger.Info("schema is up to date", slog.Uint64("version", uint64(version)))

	cacheRedis, err := cache.InitServer(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	conn, publisher := connectPublisher(cfg.RabbitMQ, logger)

	sessions := session.New(logger, db, m)
	rec := reconciler.New(logger, db, cacheRedis, publisher, m, reconciler.Secrets{
		Webhook: cfg.Gateway.WebhookSecret,
		Key:     cfg.Gateway.KeySecret,
	})
	gateway := paymentprovider.NewClient(cfg.Gateway.KeyID, cfg.Gateway.KeySecret, cfg.Gateway.APIURL, cfg.Gateway.Timeout)

	router := chi.NewRouter()
	RegisterRoutes(router, Deps{
		Log:           logger,
		Tokens:        jwt.NewJWTMaker(cfg.Identity.JWTSecret, cfg.Session.CookieTTL),
		Identity:      identity.NewClient(cfg.Identity.URL, cfg.Identity.AnonKey, cfg.Identity.Timeout),
		Sessions:      sessions,
		Subscriptions: subscription.New(db, cacheRedis, logger),
		Payments:      payment.New(db, gateway, logger),
		Reconciler:    rec,
		Store:         db,
		Metrics:       m,
		Gatherer:      reg,
		Cookies: middlewarectx.Cookies{
			TTL:       cfg.Session.CookieTTL,
			CrossSite: cfg.Session.CrossSite,
		},
		Limiter: middlewarectx.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
	}, nil
}

// connectPublisher подключает издателя квитанций. При ошибке возвращает nil
// издателя, сверка платежей продолжает работать без уведомлений.
func connectPublisher(cfg config.RabbitMQ, logger *slog.Logger) (*amqp.Connection, reconciler.Publisher) {
	if cfg.URL == "" {
		logger.Warn("rabbitmq url is empty, payment receipts disabled")
		return nil, nil
	}
	conn, err := rabbitmq.Connect(cfg.URL, cfg.MaxRetries, cfg.RetryDelay)
	if err != nil {
		logger.Warn("rabbitmq unavailable, payment receipts disabled", sl.Err(err))
		return nil, nil
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.PaymentQueues(cfg.Queue))
	if err != nil {
		logger.Warn("failed to set up rabbitmq channel, payment receipts disabled", sl.Err(err))
		_ = conn.Close()
		return nil, nil
	}
	return conn, rabbitmq.NewPublisher(ch, cfg.Exchange)
}

// Run обслуживает HTTP до ошибки сервера или отмены ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
