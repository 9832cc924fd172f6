// Package paymentverify HTTP-обработчик подтверждения оплаты после возврата из шлюза.
//
// Клиент передает идентификаторы заказа и платежа с подписью шлюза.
// Статус заказа сверяется со шлюзом, после чего членство продлевается.
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

	"github.com/magabrotheeeer/union-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/union-portal/internal/http/response"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/models"
	"github.com/magabrotheeeer/union-portal/internal/paymentprovider"
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
)

// Итоги оплаты для клиента и параметра ?payment= на странице кабинета.
const (
	OutcomeSuccess = "success"
	OutcomePending = "pending"
	OutcomeFailed  = "failed"
)

// Request данные возврата из шлюза.
type Request struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// Service подтверждение заказа.
type Service interface {
	VerifyCallback(ctx context.Context, userUID string, cb paymentprovider.Callback) (*subscription.Confirmation, error)
}

// Result ответ обработчика.
type Result struct {
	Outcome      string                     `json:"outcome"`
	Confirmation *subscription.Confirmation `json:"confirmation,omitempty"`
}

// Handler обрабатывает POST /payments/verify.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// Outcome сводит результат подтверждения к success, pending или failed.
func Outcome(c *subscription.Confirmation, err error) string {
	switch {
	case errors.Is(err, subscription.ErrPaymentPending):
		return OutcomePending
	case err != nil || c == nil:
		return OutcomeFailed
	case c.Status == models.PaymentPaid:
		return OutcomeSuccess
	case c.Status == models.PaymentCreated:
		return OutcomePending
	default:
		return OutcomeFailed
	}
}

// ServeHTTP godoc
// @Summary Подтверждение оплаты
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Данные возврата из шлюза"
// @Success 200 {object} response.Response{data=Result} "Оплата завершена (успешно или нет)"
// @Success 202 {object} response.Response{data=Result} "Оплата еще обрабатывается"
// @Failure 400 {object} response.ErrorResponse "Неверная подпись"
// @Failure 404 {object} response.ErrorResponse "Заказ не найден"
// @Failure 409 {object} response.ErrorResponse "Сумма не совпадает"
// @Router /payments/verify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.verify"
	userUID := middlewarectx.UserUIDFrom(r.Context())
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_uid", userUID),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Invalid(w, r, err)
		return
	}

	c, err := h.service.VerifyCallback(r.Context(), userUID, paymentprovider.Callback{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	switch {
	case errors.Is(err, paymentprovider.ErrInvalidSignature):
		log.Warn("invalid callback signature", slog.String("order_id", req.OrderID))
		response.Fail(w, r, http.StatusBadRequest, "invalid signature")
		return
	case errors.Is(err, subscription.ErrOrderNotFound):
		response.Fail(w, r, http.StatusNotFound, "order not found")
		return
	case errors.Is(err, subscription.ErrAmountMismatch):
		log.Error("amount mismatch", slog.String("order_id", req.OrderID))
		response.Fail(w, r, http.StatusConflict, "order amount mismatch")
		return
	case errors.Is(err, subscription.ErrPaymentPending):
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, response.OKWithData(Result{Outcome: OutcomePending, Confirmation: c}))
		return
	case err != nil:
		log.Error("failed to verify payment", sl.Err(err))
		response.Fail(w, r, http.StatusBadGateway, "could not verify payment, please try again")
		return
	}

	outcome := Outcome(c, nil)
	log.Info("payment verified", slog.String("order_id", req.OrderID), slog.String("outcome", outcome))
	render.JSON(w, r, response.OKWithData(Result{Outcome: outcome, Confirmation: c}))
}
