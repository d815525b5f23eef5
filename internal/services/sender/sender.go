// Package sender отправляет пользователям письма о продлении доступа.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/pivot-calculator/internal/lib/plan"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/smtp"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/storage"
)

// ErrUndeliverable означает, что письмо отправить невозможно и повтор не поможет.
var ErrUndeliverable = errors.New("receipt is undeliverable")

// Repository ищет профиль получателя.
type Repository interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// Transport открывает соединение с почтовым сервером.
type Transport interface {
	Connect(ctx context.Context) (smtp.Client, error)
	From() string
}

// SenderService формирует и отправляет квитанции.
type SenderService struct {
	repo      Repository
	transport Transport
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(repo Repository, log *slog.Logger, transport Transport) *SenderService {
	return &SenderService{
		repo:      repo,
		transport: transport,
		log:       log,
	}
}

// SendPaymentReceipt обрабатывает событие о завершенном платеже.
func (s *SenderService) SendPaymentReceipt(ctx context.Context, body []byte) error {
	const op = "services.sender.SendPaymentReceipt"
	log := s.log.With(slog.String("op", op))

	var event models.PaymentCompletedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w: %w", op, ErrUndeliverable, err)
	}
	if event.UserID == "" || event.GatewayOrderID == "" {
		return fmt.Errorf("%s: event without user or order: %w", op, ErrUndeliverable)
	}

	profile, err := s.repo.GetProfile(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrProfileNotFound) {
			log.Warn("profile not found, receipt skipped", slog.String("user_id", event.UserID))
			return fmt.Errorf("%s: %w: %w", op, ErrUndeliverable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if profile.Email == "" {
		return fmt.Errorf("%s: profile has no email: %w", op, ErrUndeliverable)
	}

	if err := s.sendEmail(ctx, []string{profile.Email}, "Доступ к калькулятору пивотов продлен", receiptText(event)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("receipt sent", slog.String("order_id", event.GatewayOrderID))
	return nil
}

func receiptText(event models.PaymentCompletedEvent) string {
	return fmt.Sprintf("Здравствуйте!\r\n\r\n"+
		"Оплата заказа %s на сумму %d %s получена.\r\n"+
		"План: %s (%d дн.).\r\n"+
		"Доступ действует до %s (UTC).\r\n",
		event.GatewayOrderID, event.Amount, event.Currency,
		event.Plan, plan.Days(event.Plan),
		event.EndDate.UTC().Format("02.01.2006 15:04"))
}

func (s *SenderService) sendEmail(ctx context.Context, to []string, subject, bodyText string) error {
	from := s.transport.From()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			s.log.Debug("smtp client close", sl.Err(err))
		}
	}()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", addr, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}
	return client.Quit()
}
