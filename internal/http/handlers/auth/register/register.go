// Package register HTTP-обработчик регистрации нового участника.
//
// Участник получает 6-значный номер члена профсоюза и статус not_subscribed.
package register

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
	"github.com/magabrotheeeer/union-portal/internal/lib/unionid"
	"github.com/magabrotheeeer/union-portal/internal/models"
	"github.com/magabrotheeeer/union-portal/internal/services/auth"
)

// Service бизнес-логика регистрации.
type Service interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*models.User, error)
}

// Handler обрабатывает POST /register.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает обработчик регистрации.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Регистрация участника
// @Description Создает участника и выдает ему номер члена профсоюза.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body auth.RegisterRequest true "Данные участника"
// @Success 201 {object} response.Response{data=models.User}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Email или телефон заняты"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 503 {object} response.ErrorResponse "Не удалось выдать номер"
// @Router /register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"
	log := h.log.With(sl.Op(op), slog.String("request_id", middleware.GetReqID(r.Context())))

	var req auth.RegisterRequest
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
	if req.Locale == "" {
		req.Locale = middlewarectx.LangFrom(r)
	}

	u, err := h.service.Register(r.Context(), req)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		log.Info("user already exists", sl.Masked("phone", req.Phone))
		response.Fail(w, r, http.StatusConflict, "email or phone already registered")
		return
	case errors.Is(err, unionid.ErrExhausted):
		log.Error("union id allocation exhausted", sl.Err(err))
		response.Fail(w, r, http.StatusServiceUnavailable, "could not allocate a union id, please try again")
		return
	case err != nil:
		log.Error("failed to register user", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info("user registered", slog.String("user_uid", u.UID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(u))
}
