// Package login HTTP-обработчики входа по email и паролю и выхода.
//
// При успешном входе JWT возвращается в теле ответа и дублируется
// в cookie сессии для браузерных маршрутов.
package login

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
	"github.com/magabrotheeeer/union-portal/internal/services/auth"
)

// Request учетные данные участника.
type Request struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Service бизнес-логика входа.
type Service interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

// Handler обрабатывает POST /login.
type Handler struct {
	log          *slog.Logger
	service      Service
	validate     *validator.Validate
	secureCookie bool
}

// New создает обработчик входа. secureCookie ставит флаг Secure на cookie сессии.
func New(log *slog.Logger, service Service, secureCookie bool) *Handler {
	return &Handler{
		log:          log,
		service:      service,
		validate:     validator.New(),
		secureCookie: secureCookie,
	}
}

// ServeHTTP godoc
// @Summary Вход по email и паролю
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Учетные данные"
// @Success 200 {object} response.Response{data=auth.Session}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"
	log := h.log.With(sl.Op(op), slog.String("request_id", middleware.GetReqID(r.Context())))

	var req Request
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

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		log.Info("invalid credentials")
		response.Fail(w, r, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		log.Error("login failed", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	middlewarectx.SetSessionCookie(w, session.Token, session.ExpiresAt, h.secureCookie)
	log.Info("login success", slog.String("user_uid", session.User.UID))
	render.JSON(w, r, response.OKWithData(session))
}

// Logout удаляет cookie сессии.
type Logout struct {
	secureCookie bool
}

// NewLogout создает обработчик выхода.
func NewLogout(secureCookie bool) *Logout {
	return &Logout{secureCookie: secureCookie}
}

// ServeHTTP godoc
// @Summary Выход
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /logout [post]
func (h *Logout) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middlewarectx.ClearSessionCookie(w, h.secureCookie)
	render.JSON(w, r, response.OK())
}
