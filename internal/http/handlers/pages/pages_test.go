package pages

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/union-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/union-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/union-portal/internal/models"
	"github.com/magabrotheeeer/union-portal/internal/paymentprovider"
	"github.com/magabrotheeeer/union-portal/internal/services/admin"
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
)

type MembersMock struct {
	mock.Mock
}

func (m *MembersMock) Plans(lang string) []models.Plan {
	args := m.Called(lang)
	p, _ := args.Get(0).([]models.Plan)
	return p
}

func (m *MembersMock) Dashboard(ctx context.Context, userUID, lang string) (*subscription.Dashboard, error) {
	args := m.Called(ctx, userUID, lang)
	d, _ := args.Get(0).(*subscription.Dashboard)
	return d, args.Error(1)
}

func (m *MembersMock) VerifyCallback(ctx context.Context, userUID string, cb paymentprovider.Callback) (*subscription.Confirmation, error) {
	args := m.Called(ctx, userUID, cb)
	c, _ := args.Get(0).(*subscription.Confirmation)
	return c, args.Error(1)
}

type StatsMock struct {
	mock.Mock
}

func (m *StatsMock) Stats(ctx context.Context, from, to time.Time) (*admin.Stats, error) {
	args := m.Called(ctx, from, to)
	s, _ := args.Get(0).(*admin.Stats)
	return s, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newRouter собирает маршруты страниц; role "" означает гостя.
func newRouter(h *Handler, role string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if role != "" {
				req = req.WithContext(middlewarectx.WithClaims(req.Context(), &jwt.CustomClaims{UserUID: "uid-1", Role: role}))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/", h.Root)
	r.Route("/{lang}", func(r chi.Router) {
		r.Use(middlewarectx.Locale)
		r.Get("/", h.Home)
		r.Get("/about", h.About)
		r.Get("/plans", h.Plans)
		r.Get("/signin", h.SignIn)
		r.Get("/signup", h.SignUp)
		r.Get("/dashboard", h.Dashboard)
		r.Get("/admin", h.Admin)
		r.Get("/payment/callback", h.PaymentCallback)
		r.Post("/payment/callback", h.PaymentCallback)
	})
	return r
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRoot(t *testing.T) {
	h := newRouter(New(newNoopLogger(), new(MembersMock), new(StatsMock)), "")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "te-IN,te;q=0.9,en;q=0.5")
	rr := do(t, h, req)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/te/", rr.Header().Get("Location"))
}

func TestMarketingPages(t *testing.T) {
	members := new(MembersMock)
	members.On("Plans", "hi").Return([]models.Plan{{Code: "monthly", Name: "मासिक", Price: 5000, Months: 1}})
	h := newRouter(New(newNoopLogger(), members, new(StatsMock)), "")

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/hi/plans", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var p Page
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, "hi", p.Lang)
	assert.Equal(t, "plans", p.Name)
	assert.Equal(t, "सदस्यता योजनाएँ", p.Title)
	assert.Equal(t, "/te/plans", p.Alternates["te"])
	assert.Equal(t, "/hi/signin", p.Nav["signin"])
	assert.Contains(t, rr.Body.String(), "मासिक")

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/en/about", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "About the union")

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/xx/about", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/en/about", rr.Header().Get("Location"))
}

func TestRoleRedirects(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		target   string
		wantCode int
		wantLoc  string
	}{
		{"guest sees signin", "", "/en/signin", http.StatusOK, ""},
		{"member leaves signin", models.RoleMember, "/en/signin", http.StatusFound, "/en/dashboard"},
		{"admin leaves signup", models.RoleAdmin, "/te/signup", http.StatusFound, "/te/admin"},
		{"guest to dashboard", "", "/hi/dashboard", http.StatusFound, "/hi/signin?next=" + url.QueryEscape("/hi/dashboard")},
		{"admin to dashboard", models.RoleAdmin, "/en/dashboard", http.StatusFound, "/en/admin"},
		{"guest to admin", "", "/en/admin", http.StatusFound, "/en/signin?next=" + url.QueryEscape("/en/admin")},
		{"member to admin", models.RoleMember, "/te/admin", http.StatusFound, "/te/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(New(newNoopLogger(), new(MembersMock), new(StatsMock)), tt.role)
			rr := do(t, h, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, tt.wantLoc, rr.Header().Get("Location"))
		})
	}
}

func TestDashboardPage(t *testing.T) {
	members := new(MembersMock)
	members.On("Dashboard", mock.Anything, "uid-1", "en").Return(&subscription.Dashboard{
		User:     &models.User{UID: "uid-1", UnionID: "482913"},
		Standing: subscription.Standing{State: subscription.StateActive},
	}, nil).Once()
	h := newRouter(New(newNoopLogger(), members, new(StatsMock)), models.RoleMember)

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/en/dashboard?payment=success", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var p Page
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, "Payment received. Thank you!", p.Notice)
	assert.Contains(t, rr.Body.String(), `"union_id":"482913"`)
	members.AssertExpectations(t)
}

func TestAdminPage(t *testing.T) {
	stats := new(StatsMock)
	stats.On("Stats", mock.Anything, time.Time{}, time.Time{}).Return(&admin.Stats{Members: 12}, nil).Once()
	h := newRouter(New(newNoopLogger(), new(MembersMock), stats), models.RoleAdmin)

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/hi/admin", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"members":12`)
	stats.AssertExpectations(t)
}

func TestPaymentCallback(t *testing.T) {
	rzp := paymentprovider.Callback{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"}
	form := url.Values{
		"razorpay_order_id":   {"order_1"},
		"razorpay_payment_id": {"pay_1"},
		"razorpay_signature":  {"sig"},
	}

	tests := []struct {
		name     string
		role     string
		req      func() *http.Request
		uid      string
		cb       *paymentprovider.Callback
		mockResp *subscription.Confirmation
		mockErr  error
		want     string
	}{
		{
			name: "razorpay paid",
			role: models.RoleMember,
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/en/payment/callback", strings.NewReader(form.Encode()))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return r
			},
			uid:      "uid-1",
			cb:       &rzp,
			mockResp: &subscription.Confirmation{Status: models.PaymentPaid},
			want:     "/en/dashboard?payment=success",
		},
		{
			name:     "stripe pending without session",
			req:      func() *http.Request { return httptest.NewRequest(http.MethodGet, "/te/payment/callback?order_id=cs_1", nil) },
			cb:       &paymentprovider.Callback{OrderID: "cs_1"},
			mockResp: &subscription.Confirmation{Status: models.PaymentCreated},
			mockErr:  fmt.Errorf("x: %w", subscription.ErrPaymentPending),
			want:     "/te/dashboard?payment=pending",
		},
		{
			name: "bad signature",
			role: models.RoleMember,
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/hi/payment/callback", strings.NewReader(form.Encode()))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return r
			},
			uid:     "uid-1",
			cb:      &rzp,
			mockErr: paymentprovider.ErrInvalidSignature,
			want:    "/hi/dashboard?payment=failed",
		},
		{
			name: "gateway reported error",
			req: func() *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/en/payment/callback", strings.NewReader("error%5Bcode%5D=BAD_REQUEST_ERROR"))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				return r
			},
			want: "/en/dashboard?payment=failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			members := new(MembersMock)
			if tt.cb != nil {
				members.On("VerifyCallback", mock.Anything, tt.uid, *tt.cb).Return(tt.mockResp, tt.mockErr).Once()
			}
			h := newRouter(New(newNoopLogger(), members, new(StatsMock)), tt.role)

			rr := do(t, h, tt.req())
			assert.Equal(t, http.StatusSeeOther, rr.Code)
			assert.Equal(t, tt.want, rr.Header().Get("Location"))
			members.AssertExpectations(t)
		})
	}
}
