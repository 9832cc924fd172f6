package login

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/union-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/union-portal/internal/models"
	"github.com/magabrotheeeer/union-portal/internal/services/auth"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	args := m.Called(ctx, email, password)
	s, _ := args.Get(0).(*auth.Session)
	return s, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoginHandler_ServeHTTP(t *testing.T) {
	session := &auth.Session{
		Token:     "tok",
		ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		User:      &models.User{UID: "uid-1", Role: models.RoleMember},
	}

	tests := []struct {
		name       string
		body       string
		mockCall   bool
		mockResp   *auth.Session
		mockErr    error
		wantCode   int
		wantCookie bool
		wantBody   string
	}{
		{
			name:       "valid login",
			body:       `{"email":"ravi@example.com","password":"secret-pass"}`,
			mockCall:   true,
			mockResp:   session,
			wantCode:   http.StatusOK,
			wantCookie: true,
			wantBody:   `"token":"tok"`,
		},
		{
			name:     "invalid json",
			body:     "not a json",
			wantCode: http.StatusBadRequest,
			wantBody: "invalid request body",
		},
		{
			name:     "missing password",
			body:     `{"email":"ravi@example.com"}`,
			wantCode: http.StatusUnprocessableEntity,
			wantBody: "field password is a required field",
		},
		{
			name:     "wrong password",
			body:     `{"email":"ravi@example.com","password":"secret-pass"}`,
			mockCall: true,
			mockErr:  fmt.Errorf("auth.Login: %w", auth.ErrInvalidCredentials),
			wantCode: http.StatusUnauthorized,
			wantBody: "invalid email or password",
		},
		{
			name:     "internal error",
			body:     `{"email":"ravi@example.com","password":"secret-pass"}`,
			mockCall: true,
			mockErr:  assert.AnError,
			wantCode: http.StatusInternalServerError,
			wantBody: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.mockCall {
				svc.On("Login", mock.Anything, "ravi@example.com", "secret-pass").Return(tt.mockResp, tt.mockErr).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/login", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			New(newNoopLogger(), svc, true).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)

			cookies := rr.Result().Cookies()
			if tt.wantCookie {
				require.Len(t, cookies, 1)
				assert.Equal(t, middlewarectx.SessionCookie, cookies[0].Name)
				assert.Equal(t, "tok", cookies[0].Value)
				assert.True(t, cookies[0].HttpOnly)
				assert.True(t, cookies[0].Secure)
			} else {
				assert.Empty(t, cookies)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestLogout(t *testing.T) {
	rr := httptest.NewRecorder()
	NewLogout(false).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/logout", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middlewarectx.SessionCookie, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
