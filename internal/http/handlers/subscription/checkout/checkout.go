// Package checkout HTTP-обработчик оформления оплаты членства.
//
// Создает заказ у платежного шлюза на сумму плана плюс штраф за просрочку
// и возвращает данные для открытия формы оплаты.
package checkout

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
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
	"github.com/magabrotheeeer/union-portal/internal/storage"
)

// Request выбранный план.
type Request struct {
	Plan string `json:"plan" validate:"required"`
}

// Service оформление заказа.
type Service interface {
	Checkout(ctx context.Context, userUID, planCode, lang string) (*subscription.CheckoutResult, error)
}

// Handler обрабатывает POST /subscription/checkout.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает обработчик оформления оплаты.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Оформление оплаты
// @Tags Subscription
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body Request true "Код плана"
// @Success 201 {object} response.Response{data=subscription.CheckoutResult}
// @Failure 400 {object} response.ErrorResponse "Неизвестный план"
// @Failure 502 {object} response.ErrorResponse "Шлюз недоступен"
// @Router /subscription/checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.checkout"
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

	res, err := h.service.Checkout(r.Context(), userUID, req.Plan, middlewarectx.LangFrom(r))
	switch {
	case errors.Is(err, subscription.ErrUnknownPlan):
		response.Fail(w, r, http.StatusBadRequest, "unknown plan")
		return
	case errors.Is(err, storage.ErrNotFound):
		response.Fail(w, r, http.StatusNotFound, "member not found")
		return
	case err != nil:
		log.Error("checkout failed", sl.Err(err))
		response.Fail(w, r, http.StatusBadGateway, "payment gateway unavailable, please try again")
		return
	}

	log.Info("checkout created", slog.String("order_id", res.Order.ID), slog.Int64("amount", res.Payment.Amount))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(res))
}
