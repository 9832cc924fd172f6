package portal

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/union-portal/internal/http/handlers/admin/members"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/admin/payments"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/admin/stats"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/auth/otp"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/health"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/member/dashboard"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/member/profile"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/pages"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/payment/paymentlist"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/payment/paymentverify"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/subscription/checkout"
	"github.com/magabrotheeeer/union-portal/internal/http/handlers/subscription/plans"
	"github.com/magabrotheeeer/union-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/union-portal/internal/lib/metrics"
	"github.com/magabrotheeeer/union-portal/internal/models"
	"github.com/magabrotheeeer/union-portal/internal/services/admin"
	"github.com/magabrotheeeer/union-portal/internal/services/auth"
	"github.com/magabrotheeeer/union-portal/internal/services/payment"
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
)

// Services зависимости маршрутов.
type Services struct {
	Auth         *auth.Service
	Subscription *subscription.Service
	Payment      *payment.Service
	Admin        *admin.Service
	Metrics      *metrics.Metrics
	Limiter      *middlewarectx.RateLimiter
	Gatherer     prometheus.Gatherer
	Checks       map[string]health.Pinger
	SecureCookie bool
}

// RegisterRoutes регистрирует страницы, API и служебные маршруты.
func RegisterRoutes(r chi.Router, log *slog.Logger, s Services) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.Metrics.Middleware)
	r.Use(s.Limiter.Middleware)

	pageHandler := pages.New(log, s.Subscription, s.Admin)
	r.Get("/", pageHandler.Root)
	r.Route("/{lang}", func(r chi.Router) {
		r.Use(middlewarectx.Locale)
		r.Use(middlewarectx.OptionalAuth(s.Auth))
		r.Get("/", pageHandler.Home)
		r.Get("/about", pageHandler.About)
		r.Get("/plans", pageHandler.Plans)
		r.Get("/signin", pageHandler.SignIn)
		r.Get("/signup", pageHandler.SignUp)
		r.Get("/dashboard", pageHandler.Dashboard)
		r.Get("/admin", pageHandler.Admin)
		r.Get("/payment/callback", pageHandler.PaymentCallback)
		r.Post("/payment/callback", pageHandler.PaymentCallback)
	})

	r.Route("/api/v1", func(r chi.Router) {
		otpHandler := otp.New(log, s.Auth, s.SecureCookie)
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.BotFilter(log))
			r.Post("/register", register.New(log, s.Auth).ServeHTTP)
			r.Post("/login", login.New(log, s.Auth, s.SecureCookie).ServeHTTP)
			r.Post("/otp/request", otpHandler.Request)
			r.Post("/otp/verify", otpHandler.Verify)
		})
		r.Post("/logout", login.NewLogout(s.SecureCookie).ServeHTTP)
		r.Get("/plans", plans.New(s.Subscription).ServeHTTP)
		r.Post("/payments/webhook", paymentwebhook.New(log, s.Subscription).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, log))
			r.Get("/me", dashboard.New(log, s.Subscription).ServeHTTP)
			r.Put("/me", profile.New(log, s.Subscription).ServeHTTP)
			r.Post("/subscription/checkout", checkout.New(log, s.Subscription).ServeHTTP)
			r.Post("/payments/verify", paymentverify.New(log, s.Subscription).ServeHTTP)
			r.Get("/payments", paymentlist.New(log, s.Payment).ServeHTTP)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.RequireRole(models.RoleAdmin, log))
				memberHandler := members.New(log, s.Admin, s.Subscription)
				r.Get("/members", memberHandler.List)
				r.Get("/members/{uid}", memberHandler.Detail)
				r.Put("/members/{uid}/subscription", memberHandler.SetSubscription)
				r.Get("/payments", payments.New(log, s.Admin).ServeHTTP)
				r.Get("/stats", stats.New(log, s.Admin).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(log, s.Checks).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

// Handler собирает роутер для тестов и сервера.
func Handler(log *slog.Logger, s Services) http.Handler {
	router := chi.NewRouter()
	RegisterRoutes(router, log, s)
	return router
}
