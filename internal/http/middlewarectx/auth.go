// Package middlewarectx содержит middleware портала: проверку сессии,
// ролей, выбор языка, фильтр ботов и ограничение частоты запросов.
// Данные сессии кладутся в контекст запроса под ключами типа Key.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/union-portal/internal/http/response"
	"github.com/magabrotheeeer/union-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
)

// Key тип ключей контекста запроса.
type Key string

// Ключи контекста.
const (
	UserUID Key = "user_uid"
	Role    Key = "role"
	UnionID Key = "union_id"
	Lang    Key = "lang"
)

// SessionCookie имя cookie с JWT для браузерных маршрутов.
const SessionCookie = "session"

// Validator проверяет JWT и возвращает данные участника.
type Validator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.CustomClaims, error)
}

// WithClaims кладет данные сессии в контекст.
func WithClaims(ctx context.Context, claims *jwt.CustomClaims) context.Context {
	ctx = context.WithValue(ctx, UserUID, claims.UserUID)
	ctx = context.WithValue(ctx, Role, claims.Role)
	return context.WithValue(ctx, UnionID, claims.UnionID)
}

// UserUIDFrom UID участника из контекста или "" для анонимного запроса.
func UserUIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(UserUID).(string)
	return v
}

// RoleFrom роль участника из контекста.
func RoleFrom(ctx context.Context) string {
	v, _ := ctx.Value(Role).(string)
	return v
}

// tokenFrom берет токен из заголовка Authorization или из cookie сессии.
func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// JWTMiddleware пропускает только запросы с действующим токеном.
func JWTMiddleware(v Validator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(sl.Op(op), slog.String("request_id", middleware.GetReqID(r.Context())))

			token := tokenFrom(r)
			if token == "" {
				log.Info("missing token")
				response.Fail(w, r, http.StatusUnauthorized, "authorization required")
				return
			}
			claims, err := v.ValidateToken(r.Context(), token)
			if err != nil {
				log.Info("invalid token", sl.Err(err))
				response.Fail(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth кладет сессию в контекст, если токен есть и действителен.
// Анонимные запросы проходят без изменений.
func OptionalAuth(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := tokenFrom(r); token != "" {
				if claims, err := v.ValidateToken(r.Context(), token); err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole пропускает только участников с ролью role.
// Ставится после JWTMiddleware.
func RequireRole(role string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := RoleFrom(r.Context()); got != role {
				log.Warn("access denied",
					sl.Op("middlewarectx.RequireRole"),
					slog.String("user_uid", UserUIDFrom(r.Context())),
					slog.String("role", got),
				)
				response.Fail(w, r, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetSessionCookie сохраняет JWT в cookie для браузерных маршрутов.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie удаляет cookie сессии.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
