package middlewarectx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/union-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/union-portal/internal/models"
)

type ValidatorMock struct {
	mock.Mock
}

func (m *ValidatorMock) ValidateToken(ctx context.Context, token string) (*jwt.CustomClaims, error) {
	args := m.Called(ctx, token)
	claims, _ := args.Get(0).(*jwt.CustomClaims)
	return claims, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echo отвечает UID и ролью из контекста.
var echo = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, UserUIDFrom(r.Context())+"|"+RoleFrom(r.Context()))
})

func TestJWTMiddleware(t *testing.T) {
	claims := &jwt.CustomClaims{UserUID: "uid-1", Role: models.RoleMember, UnionID: "123456"}

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		token    string
		mockErr  error
		wantCode int
		wantBody string
	}{
		{
			name:     "bearer header",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") },
			token:    "good",
			wantCode: http.StatusOK,
			wantBody: "uid-1|member",
		},
		{
			name:     "session cookie",
			prepare:  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "good"}) },
			token:    "good",
			wantCode: http.StatusOK,
			wantBody: "uid-1|member",
		},
		{
			name:     "missing token",
			prepare:  func(*http.Request) {},
			wantCode: http.StatusUnauthorized,
			wantBody: "authorization required",
		},
		{
			name:     "wrong scheme",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
			wantCode: http.StatusUnauthorized,
			wantBody: "authorization required",
		},
		{
			name:     "invalid token",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer bad") },
			token:    "bad",
			mockErr:  jwt.ErrInvalidToken,
			wantCode: http.StatusUnauthorized,
			wantBody: "invalid token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := new(ValidatorMock)
			if tt.token != "" {
				if tt.mockErr != nil {
					v.On("ValidateToken", mock.Anything, tt.token).Return(nil, tt.mockErr)
				} else {
					v.On("ValidateToken", mock.Anything, tt.token).Return(claims, nil)
				}
			}

			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			tt.prepare(req)
			rr := httptest.NewRecorder()
			JWTMiddleware(v, newNoopLogger())(echo).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
			v.AssertExpectations(t)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	v := new(ValidatorMock)
	v.On("ValidateToken", mock.Anything, "good").
		Return(&jwt.CustomClaims{UserUID: "uid-1", Role: models.RoleAdmin}, nil)
	v.On("ValidateToken", mock.Anything, "bad").Return(nil, jwt.ErrInvalidToken)

	h := OptionalAuth(v)(echo)

	for token, want := range map[string]string{"": "|", "good": "uid-1|admin", "bad": "|"} {
		req := httptest.NewRequest(http.MethodGet, "/en/", nil)
		if token != "" {
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, want, rr.Body.String(), "token %q", token)
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(models.RoleAdmin, newNoopLogger())(echo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req = req.WithContext(WithClaims(req.Context(), &jwt.CustomClaims{UserUID: "u", Role: models.RoleMember}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = req.WithContext(WithClaims(req.Context(), &jwt.CustomClaims{UserUID: "a", Role: models.RoleAdmin}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLocale(t *testing.T) {
	r := chi.NewRouter()
	r.With(Locale).Get("/{lang}/plans", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, LangFrom(r))
	})

	t.Run("supported", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/te/plans", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "te", rr.Body.String())
	})

	t.Run("unknown redirects to best match", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/fr/plans?x=1", nil)
		req.Header.Set("Accept-Language", "hi-IN,hi;q=0.9")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/hi/plans?x=1", rr.Header().Get("Location"))
	})
}

func TestSwapLang(t *testing.T) {
	tests := map[string]string{
		"/fr":              "/en/",
		"/fr/":             "/en/",
		"/xx/dashboard":    "/en/dashboard",
		"/de/payment/back": "/en/payment/back",
	}
	for in, want := range tests {
		u, _ := url.Parse(in)
		assert.Equal(t, want, SwapLang(u, "en"), in)
	}
}

func TestLangFrom(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans?lang=te", nil)
	assert.Equal(t, "te", LangFrom(req))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/plans?lang=xx", nil)
	req.Header.Set("Accept-Language", "hi")
	assert.Equal(t, "hi", LangFrom(req))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	assert.Equal(t, "en", LangFrom(req))
}

func TestBotFilter(t *testing.T) {
	h := BotFilter(newNoopLogger())(echo)

	tests := []struct {
		ua       string
		wantCode int
	}{
		{"", http.StatusForbidden},
		{"curl/8.4.0", http.StatusForbidden},
		{"python-requests/2.31", http.StatusForbidden},
		{"Mozilla/5.0 (X11; Linux x86_64) HeadlessChrome/120.0", http.StatusForbidden},
		{"Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/login", nil)
		req.Header.Set("User-Agent", tt.ua)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, tt.wantCode, rr.Code, tt.ua)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, 2, newNoopLogger())
	l.now = func() time.Time { return now }
	h := l.Middleware(echo)

	call := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1111").Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:2222").Code)
	rr := call("10.0.0.1:3333")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, call("10.0.0.2:1111").Code, "other IP has its own bucket")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, call("10.0.0.1:4444").Code, "bucket refills")

	now = now.Add(visitorIdle + time.Minute)
	assert.Equal(t, 2, l.Cleanup())
}
