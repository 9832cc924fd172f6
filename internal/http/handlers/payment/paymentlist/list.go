// Package paymentlist HTTP-обработчик истории платежей участника.
package paymentlist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/union-portal/internal/http/handlers/query"
	"github.com/magabrotheeeer/union-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/union-portal/internal/http/response"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/models"
)

// Service история платежей.
type Service interface {
	List(ctx context.Context, userUID string, limit, offset int) (*models.Page[*models.Payment], error)
}

// Handler обрабатывает GET /payments.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Мои платежи
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Размер страницы (до 100)"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response{data=object}
// @Router /payments [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.list"
	userUID := middlewarectx.UserUIDFrom(r.Context())

	limit, offset := query.Page(r)
	page, err := h.service.List(r.Context(), userUID, limit, offset)
	if err != nil {
		h.log.Error("failed to list payments",
			sl.Op(op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("user_uid", userUID),
			sl.Err(err),
		)
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	render.JSON(w, r, response.OKWithData(page))
}
