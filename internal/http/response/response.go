// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков.
package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки для человека, Reason — машинный код причины.
// Поле Data — данные ответа (при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
	// Redirect подсказывает клиенту, куда отправить пользователя.
	Redirect string `json:"redirect,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
	Reason string `json:"reason" example:"invalid_request"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// Коды причин отказа.
const (
	ReasonUnauthenticated       = "unauthenticated"
	ReasonSessionMismatch       = "session_mismatch"
	ReasonProfileNotFound       = "profile_not_found"
	ReasonSignatureInvalid      = "signature_invalid"
	ReasonSubscriptionRequired  = "subscription_required"
	ReasonReconciliationPending = "reconciliation_pending"
	ReasonPaymentNotFound       = "payment_not_found"
	ReasonForbidden             = "forbidden"
	ReasonInvalidRequest        = "invalid_request"
	ReasonTooManyRequests       = "too_many_requests"
	ReasonServerError           = "server_error"
)

// OK возвращает успешный Response без данных.
func OK() Response {
	return Response{Status: StatusOK}
}

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой, сообщением и кодом причины.
func Error(reason, msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
		Reason: reason,
	}
}

// Fail пишет ответ с ошибкой и HTTP статусом.
func Fail(w http.ResponseWriter, r *http.Request, code int, reason, msg string) {
	render.Status(r, code)
	render.JSON(w, r, Error(reason, msg))
}

// ServerError пишет 500 без подробностей внутренней ошибки.
func ServerError(w http.ResponseWriter, r *http.Request) {
	Fail(w, r, http.StatusInternalServerError, ReasonServerError, "internal server error")
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of: %s", err.Field(), err.Param()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "gt", "gte":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be greater than %s", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
		Reason: ReasonInvalidRequest,
	}
}
