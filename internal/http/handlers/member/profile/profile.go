// Package profile HTTP-обработчик изменения контактных данных участника.
package profile

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
	"github.com/magabrotheeeer/union-portal/internal/storage"
)

// Service изменение профиля.
type Service interface {
	UpdateProfile(ctx context.Context, userUID string, p models.Profile) (*models.User, error)
}

// Handler обрабатывает PUT /me.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает обработчик профиля.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// ServeHTTP godoc
// @Summary Изменение профиля
// @Description Имя, телефон, адрес и язык уведомлений. Номер члена профсоюза и email не меняются.
// @Tags Member
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.Profile true "Профиль"
// @Success 200 {object} response.Response{data=models.User}
// @Failure 409 {object} response.ErrorResponse "Телефон занят"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /me [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.member.profile"
	userUID := middlewarectx.UserUIDFrom(r.Context())
	log := h.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_uid", userUID),
	)

	var req models.Profile
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		response.Invalid(w, r, err)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userUID, req)
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		response.Fail(w, r, http.StatusConflict, "phone already registered")
		return
	case errors.Is(err, storage.ErrNotFound):
		response.Fail(w, r, http.StatusNotFound, "member not found")
		return
	case err != nil:
		log.Error("failed to update profile", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	log.Info("profile updated")
	render.JSON(w, r, response.OKWithData(u))
}
