// Package paymentverify подтверждает оплату по подписи, которую клиент
// получил от шлюза после checkout.
package paymentverify

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
	"github.com/magabrotheeeer/pivot-calculator/internal/lib/sl"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/services/reconciler"
)

// Request — данные, которые шлюз вернул клиенту.
type Request struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

// Result — итог проверки. Поля лежат на верхнем уровне ответа рядом
// со status и reason.
type Result struct {
	response.Response
	Verified bool            `json:"verified"`
	Outcome  string          `json:"outcome,omitempty"`
	Payment  *models.Payment `json:"payment,omitempty"`
}

// Confirmer сверяет оплату от имени пользователя.
type Confirmer interface {
	ConfirmCheckout(ctx context.Context, userID, orderID, paymentID, sig string) (*reconciler.Result, error)
}

// Handler обрабатывает POST /payments/verify.
type Handler struct {
	log       *slog.Logger
	confirmer Confirmer
	validate  *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger, confirmer Confirmer) *Handler {
	return &Handler{
		log:       log,
		confirmer: confirmer,
		validate:  validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Подтвердить оплату
// @Description Проверяет подпись checkout и продлевает доступ. Повторный вызов для того же заказа ничего не меняет.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "Ответ шлюза"
// @Success 200 {object} Result
// @Failure 400 {object} Result "Неверная подпись (verified=false) или некорректный запрос"
// @Failure 403 {object} response.ErrorResponse "Заказ другого пользователя"
// @Failure 404 {object} response.ErrorResponse "Платеж не найден"
// @Failure 503 {object} response.ErrorResponse "Сверка не завершена, проверьте статус подписки"
// @Router /payments/verify [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.verify"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := middlewarectx.UserID(r.Context())
	if userID == "" {
		response.Fail(w, r, http.StatusUnauthorized, response.ReasonUnauthenticated, "user identification missing")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
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
	log = log.With(slog.String("order_id", req.OrderID), slog.String("user_id", userID))

	res, err := h.confirmer.ConfirmCheckout(r.Context(), userID, req.OrderID, req.PaymentID, req.Signature)
	switch {
	case err == nil:
	case errors.Is(err, reconciler.ErrSignatureInvalid):
		log.Warn("checkout signature mismatch")
		resp := response.Error(response.ReasonSignatureInvalid, "payment signature verification failed")
		resp.Data = Result{Verified: false}
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp)
		return
	case errors.Is(err, reconciler.ErrForeignPayment):
		log.Warn("order belongs to another user")
		response.Fail(w, r, http.StatusForbidden, response.ReasonForbidden, "order belongs to another user")
		return
	case errors.Is(err, reconciler.ErrUnrecoverableEvent):
		log.Error("payment not found for order", sl.Err(err), sl.Anomaly("manual_reconciliation"))
		response.Fail(w, r, http.StatusNotFound, response.ReasonPaymentNotFound, "payment not found")
		return
	case errors.Is(err, reconciler.ErrMalformedEvent):
		response.Fail(w, r, http.StatusBadRequest, response.ReasonInvalidRequest, "invalid order")
		return
	case errors.Is(err, reconciler.ErrTransient):
		log.Error("reconciliation failed, retry is safe", sl.Err(err))
		response.Fail(w, r, http.StatusServiceUnavailable, response.ReasonReconciliationPending,
			"payment is being processed, check subscription status before paying again")
		return
	default:
		log.Error("failed to confirm checkout", sl.Err(err))
		response.ServerError(w, r)
		return
	}

	log.Info("checkout confirmed", slog.String("outcome", string(res.Outcome)))
	render.JSON(w, r, Result{
		Response: response.OK(),
		Verified: true,
		Outcome:  string(res.Outcome),
		Payment:  res.Payment,
	})
}
