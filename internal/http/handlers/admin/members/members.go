// Package members HTTP-обработчики раздела участников в админке:
// список, карточка участника и ручная правка подписки.
package members

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/union-portal/internal/http/handlers/query"
	"github.com/magabrotheeeer/union-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/union-portal/internal/http/response"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/models"
	"github.com/magabrotheeeer/union-portal/internal/services/admin"
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
	"github.com/magabrotheeeer/union-portal/internal/storage"
)

// Directory чтение участников.
type Directory interface {
	Members(ctx context.Context, f models.MemberFilter) (*models.Page[admin.MemberRow], error)
	Member(ctx context.Context, userUID string) (*admin.MemberDetail, error)
}

// Overrider ручная правка подписки.
type Overrider interface {
	SetSubscription(ctx context.Context, userUID string, upd subscription.SubscriptionUpdate) (*models.User, error)
}

// Handler обработчики /admin/members.
type Handler struct {
	log       *slog.Logger
	directory Directory
	overrider Overrider
	validate  *validator.Validate
}

// New создает обработчики раздела участников.
func New(log *slog.Logger, directory Directory, overrider Overrider) *Handler {
	return &Handler{
		log:       log,
		directory: directory,
		overrider: overrider,
		validate:  validator.New(),
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("admin_uid", middlewarectx.UserUIDFrom(r.Context())),
	)
}

// List godoc
// @Summary Список участников
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Статус подписки"
// @Param q query string false "Поиск по имени, email, телефону или номеру"
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response{data=object}
// @Failure 400 {object} response.ErrorResponse "Неизвестный статус"
// @Router /admin/members [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.members.list"

	f := models.MemberFilter{
		Status: r.URL.Query().Get("status"),
		Query:  r.URL.Query().Get("q"),
	}
	switch f.Status {
	case "", models.StatusNotSubscribed, models.StatusPending, models.StatusActive, models.StatusInactive:
	default:
		response.Fail(w, r, http.StatusBadRequest, "unknown status "+f.Status)
		return
	}
	f.Limit, f.Offset = query.Page(r)

	page, err := h.directory.Members(r.Context(), f)
	if err != nil {
		h.logger(r, op).Error("failed to list members", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	render.JSON(w, r, response.OKWithData(page))
}

// Detail godoc
// @Summary Карточка участника
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param uid path string true "UID участника"
// @Success 200 {object} response.Response{data=admin.MemberDetail}
// @Failure 404 {object} response.ErrorResponse "Участник не найден"
// @Router /admin/members/{uid} [get]
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.members.detail"

	d, err := h.directory.Member(r.Context(), chi.URLParam(r, "uid"))
	if errors.Is(err, storage.ErrNotFound) {
		response.Fail(w, r, http.StatusNotFound, "member not found")
		return
	}
	if err != nil {
		h.logger(r, op).Error("failed to load member", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	render.JSON(w, r, response.OKWithData(d))
}

// SetSubscription godoc
// @Summary Ручная правка подписки
// @Description Статус active требует дату продления. not_subscribed сбрасывает план и дату.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param uid path string true "UID участника"
// @Param request body subscription.SubscriptionUpdate true "Новые значения"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 404 {object} response.ErrorResponse "Участник не найден"
// @Failure 422 {object} response.ErrorResponse "Недопустимая правка"
// @Router /admin/members/{uid}/subscription [put]
func (h *Handler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.members.subscription"
	userUID := chi.URLParam(r, "uid")
	log := h.logger(r, op).With(slog.String("user_uid", userUID))

	var req subscription.SubscriptionUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Invalid(w, r, err)
		return
	}

	u, err := h.overrider.SetSubscription(r.Context(), userUID, req)
	switch {
	case errors.Is(err, subscription.ErrInvalidUpdate), errors.Is(err, subscription.ErrUnknownPlan):
		response.Fail(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, storage.ErrNotFound):
		response.Fail(w, r, http.StatusNotFound, "member not found")
		return
	case err != nil:
		log.Error("failed to set subscription", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	log.Info("subscription overridden", slog.String("status", req.Status))
	render.JSON(w, r, response.OKWithData(u))
}
