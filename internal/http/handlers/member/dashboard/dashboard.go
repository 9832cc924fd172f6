// Package dashboard HTTP-обработчик личного кабинета участника.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/union-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/union-portal/internal/http/response"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
	"github.com/magabrotheeeer/union-portal/internal/storage"
)

// Service данные личного кабинета.
type Service interface {
	Dashboard(ctx context.Context, userUID, lang string) (*subscription.Dashboard, error)
}

// Handler обрабатывает GET /me.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает обработчик личного кабинета.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Личный кабинет
// @Description Профиль, состояние членства, суммы к оплате по планам и последние платежи.
// @Tags Member
// @Produce json
// @Security BearerAuth
// @Param lang query string false "Язык сообщений (en, hi, te)"
// @Success 200 {object} response.Response{data=subscription.Dashboard}
// @Failure 401 {object} response.ErrorResponse "Нет сессии"
// @Failure 404 {object} response.ErrorResponse "Участник не найден"
// @Router /me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.dashboard"
	userUID := middlewarectx.UserUIDFrom(r.Context())
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_uid", userUID),
	)

	d, err := h.service.Dashboard(r.Context(), userUID, middlewarectx.LangFrom(r))
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("member from token not found")
		response.Fail(w, r, http.StatusNotFound, "member not found")
		return
	}
	if err != nil {
		log.Error("failed to build dashboard", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	render.JSON(w, r, response.OKWithData(d))
}
