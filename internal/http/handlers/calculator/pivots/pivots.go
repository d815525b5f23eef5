// Package pivots отдает уровни разворота по ценам периода.
package pivots

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/pivot-calculator/internal/calculator"
	"github.com/magabrotheeeer/pivot-calculator/internal/http/response"
)

// Request — цены периода.
type Request struct {
	Open  *float64 `json:"open" validate:"required,gt=0"`
	High  *float64 `json:"high" validate:"required,gt=0"`
	Low   *float64 `json:"low" validate:"required,gt=0"`
	Close *float64 `json:"close" validate:"required,gt=0"`
}

// Handler обрабатывает POST /calculator/pivots.
type Handler struct {
	log      *slog.Logger
	validate *validator.Validate
}

// New создает Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Уровни разворота
// @Description Считает классические уровни и уровни Camarilla. Требует активной подписки.
// @Tags Calculator
// @Accept  json
// @Produce  json
// @Param request body Request true "Цены периода"
// @Success 200 {object} calculator.Result
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 403 {object} response.ErrorResponse "Нет активной подписки"
// @Failure 422 {object} response.ErrorResponse "Некорректные цены"
// @Router /calculator/pivots [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	res, err := calculator.Calculate(calculator.OHLC{
		Open:  *req.Open,
		High:  *req.High,
		Low:   *req.Low,
		Close: *req.Close,
	})
	if err != nil {
		response.Fail(w, r, http.StatusUnprocessableEntity, response.ReasonInvalidRequest, err.Error())
		return
	}
	render.JSON(w, r, response.OKWithData(res))
}
