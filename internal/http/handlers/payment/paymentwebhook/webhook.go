// Package paymentwebhook принимает вебхуки платежного шлюза.
package paymentwebhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/pivot-calculator/internal/http/response"
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/reconciler"
)

// HeaderSignature — заголовок с HMAC подписью тела.
const HeaderSignature = "x-razorpay-signature"

const maxBodySize = 1 << 20

// Service сверяет события шлюза.
type Service interface {
	HandleWebhook(ctx context.Context, body []byte, sig string) (*reconciler.Result, error)
}

// Handler обрабатывает POST /payments/webhook. Шлюзу всегда отвечает 200:
// ошибки только логируются.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Вебхук платежного шлюза
// @Description Принимает сырое тело события с подписью в x-razorpay-signature. Всегда отвечает 200.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param x-razorpay-signature header string true "HMAC-SHA256 тела"
// @Success 200 {object} response.Response
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	defer render.JSON(w, r, response.OK())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		return
	}

	res, err := h.service.HandleWebhook(r.Context(), body, r.Header.Get(HeaderSignature))
	switch {
	case err == nil:
		log.Info("webhook processed", slog.String("outcome", string(res.Outcome)))
	case errors.Is(err, reconciler.ErrSignatureInvalid):
		log.Warn("webhook signature mismatch")
	case errors.Is(err, reconciler.ErrMalformedEvent):
		log.Warn("malformed webhook event", sl.Err(err))
	case errors.Is(err, reconciler.ErrUnrecoverableEvent), errors.Is(err, reconciler.ErrForeignPayment):
		log.Error("webhook cannot be reconciled", sl.Err(err), sl.Anomaly("manual_reconciliation"))
	default:
		log.Error("webhook reconciliation failed", sl.Err(err))
	}
}
