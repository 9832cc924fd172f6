// Package stats HTTP-обработчик сводки по участникам и выручке.
package stats

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/union-portal/internal/http/handlers/query"
	"github.com/magabrotheeeer/union-portal/internal/http/response"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/services/admin"
)

// Service расчет сводки.
type Service interface {
	Stats(ctx context.Context, from, to time.Time) (*admin.Stats, error)
}

// Handler обрабатывает GET /admin/stats.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Сводка
// @Description Участники по статусам, число просроченных и выручка за период. По умолчанию текущий месяц.
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param from query string false "Начало периода YYYY-MM-DD"
// @Param to query string false "Конец периода YYYY-MM-DD (не включая)"
// @Success 200 {object} response.Response{data=admin.Stats}
// @Failure 400 {object} response.ErrorResponse "Неверный период"
// @Router /admin/stats [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.stats"
	log := h.log.With(sl.Op(op), slog.String("request_id", middleware.GetReqID(r.Context())))

	from, err := query.Date(r, "from")
	if err != nil {
		response.Fail(w, r, http.StatusBadRequest, err.Error())
		return
	}
	to, err := query.Date(r, "to")
	if err != nil {
		response.Fail(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		response.Fail(w, r, http.StatusBadRequest, "from must be before to")
		return
	}

	st, err := h.service.Stats(r.Context(), from, to)
	if err != nil {
		log.Error("failed to compute stats", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	render.JSON(w, r, response.OKWithData(st))
}
