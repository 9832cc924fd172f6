// Package paymentwebhook HTTP-обработчик вебхуков платежного шлюза.
//
// Подпись проверяет сам шлюз-клиент. На ошибку обработки отвечаем 500,
// чтобы шлюз повторил доставку.
package paymentwebhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/union-portal/internal/http/response"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/paymentprovider"
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
)

const maxPayload = 64 << 10

// Service обработка вебхука.
type Service interface {
	HandleWebhook(ctx context.Context, payload []byte, header http.Header) (*subscription.Confirmation, error)
}

// Handler обрабатывает POST /payments/webhook.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает обработчик вебхуков.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Вебхук платежного шлюза
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неверная подпись"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки, шлюз повторит"
// @Router /payments/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(sl.Op(op), slog.String("request_id", middleware.GetReqID(r.Context())))

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayload))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.service.HandleWebhook(r.Context(), payload, r.Header)
	if errors.Is(err, paymentprovider.ErrInvalidSignature) {
		log.Warn("invalid webhook signature")
		response.Fail(w, r, http.StatusBadRequest, "invalid signature")
		return
	}
	if err != nil {
		log.Error("failed to process webhook", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	if c != nil {
		log.Info("webhook processed", slog.String("status", c.Status))
	}
	render.JSON(w, r, response.OK())
}
