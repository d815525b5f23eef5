// Package sender собирает процесс, который рассылает квитанции об оплате.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/pivot-calculator/internal/config"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/smtp"
	"github.com/magabrotheeeer/pivot-calculator/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/pivot-calculator/internal/services/sender"
	"github.com/magabrotheeeer/pivot-calculator/internal/storage/repository"
)

// App — процесс отправки писем.
type App struct {
	cfg           *config.Config
	db            *repository.Storage
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New подключается к базе и брокеру и объявляет очереди.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.sender.New"

	db, err := repository.New(cfg.StorageConnectionString, cfg.StoreTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange, rabbitmq.PaymentQueues(cfg.RabbitMQ.Queue))
	if err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)

	return &App{
		cfg:           cfg,
		db:            db,
		conn:          conn,
		ch:            ch,
		senderService: senderservice.NewSenderService(db, logger, transport),
		logger:        logger,
	}, nil
}

// Run слушает очередь квитанций до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, a.cfg.RabbitMQ.Queue, a.handle)
	if err != nil {
		a.logger.Error("failed to start receipts consumer", sl.Err(err))
		return err
	}
	a.logger.Info("sender started", slog.String("queue", a.cfg.RabbitMQ.Queue))

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
	return nil
}

func (a *App) handle(ctx context.Context, body []byte) error {
	err := a.senderService.SendPaymentReceipt(ctx, body)
	if errors.Is(err, senderservice.ErrUndeliverable) {
		return fmt.Errorf("%w: %w", rabbitmq.ErrDrop, err)
	}
	return err
}
