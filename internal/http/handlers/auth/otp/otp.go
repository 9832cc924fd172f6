// Package otp HTTP-обработчики входа по телефону: запрос и проверка одноразового кода.
package otp

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

// Service бизнес-логика одноразовых кодов.
type Service interface {
	RequestOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (*auth.Session, error)
}

// Request запрос кода.
type Request struct {
	Phone string `json:"phone" validate:"required,numeric,len=10"`
}

// VerifyRequest проверка кода.
type VerifyRequest struct {
	Phone string `json:"phone" validate:"required,numeric,len=10"`
	Code  string `json:"code" validate:"required,numeric,len=6"`
}

// Handler обрабатывает POST /otp/request и POST /otp/verify.
type Handler struct {
	log          *slog.Logger
	service      Service
	validate     *validator.Validate
	secureCookie bool
}

// New создает обработчики входа по телефону.
func New(log *slog.Logger, service Service, secureCookie bool) *Handler {
	return &Handler{
		log:          log,
		service:      service,
		validate:     validator.New(),
		secureCookie: secureCookie,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		log.Info("validation failed", sl.Err(err))
		response.Invalid(w, r, err)
		return false
	}
	return true
}

// Request godoc
// @Summary Запрос кода входа
// @Description Отправляет 6-значный код по SMS. Для незарегистрированного номера ответ тот же.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Телефон"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Код уже отправлен"
// @Router /otp/request [post]
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.otp.request"
	log := h.log.With(sl.Op(op), slog.String("request_id", middleware.GetReqID(r.Context())))

	var req Request
	if !h.decode(w, r, log, &req) {
		return
	}
	err := h.service.RequestOTP(r.Context(), req.Phone)
	if errors.Is(err, auth.ErrOTPThrottled) {
		log.Info("otp throttled", sl.Masked("phone", req.Phone))
		w.Header().Set("Retry-After", "60")
		response.Fail(w, r, http.StatusTooManyRequests, "code already sent, try again in a minute")
		return
	}
	if err != nil {
		log.Error("failed to request otp", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	render.JSON(w, r, response.OK())
}

// Verify godoc
// @Summary Проверка кода входа
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Телефон и код"
// @Success 200 {object} response.Response{data=auth.Session}
// @Failure 401 {object} response.ErrorResponse "Неверный или истекший код"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 429 {object} response.ErrorResponse "Исчерпаны попытки"
// @Router /otp/verify [post]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.otp.verify"
	log := h.log.With(sl.Op(op), slog.String("request_id", middleware.GetReqID(r.Context())))

	var req VerifyRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	session, err := h.service.VerifyOTP(r.Context(), req.Phone, req.Code)
	switch {
	case errors.Is(err, auth.ErrOTPInvalid):
		log.Info("invalid otp", sl.Masked("phone", req.Phone))
		response.Fail(w, r, http.StatusUnauthorized, "invalid or expired code")
		return
	case errors.Is(err, auth.ErrOTPAttempts):
		log.Warn("otp attempts exhausted", sl.Masked("phone", req.Phone))
		response.Fail(w, r, http.StatusTooManyRequests, "too many attempts, request a new code")
		return
	case err != nil:
		log.Error("failed to verify otp", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	middlewarectx.SetSessionCookie(w, session.Token, session.ExpiresAt, h.secureCookie)
	log.Info("otp login success", slog.String("user_uid", session.User.UID))
	render.JSON(w, r, response.OKWithData(session))
}
