// Package payments HTTP-обработчик списка платежей в админке.
package payments

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/union-portal/internal/http/handlers/query"
	"github.com/magabrotheeeer/union-portal/internal/http/response"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/models"
)

// Service выборка платежей.
type Service interface {
	Payments(ctx context.Context, f models.PaymentFilter) (*models.Page[*models.Payment], error)
}

// Handler обрабатывает GET /admin/payments.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Платежи
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param user_uid query string false "UID участника"
// @Param status query string false "Статус платежа"
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response{data=object}
// @Router /admin/payments [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.payments"

	q := r.URL.Query()
	f := models.PaymentFilter{UserUID: q.Get("user_uid"), Status: q.Get("status")}
	switch f.Status {
	case "", models.PaymentCreated, models.PaymentPaid, models.PaymentFailed, models.PaymentExpired:
	default:
		response.Fail(w, r, http.StatusBadRequest, "unknown status "+f.Status)
		return
	}
	f.Limit, f.Offset = query.Page(r)

	page, err := h.service.Payments(r.Context(), f)
	if err != nil {
		h.log.Error("failed to list payments",
			sl.Op(op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	render.JSON(w, r, response.OKWithData(page))
}
