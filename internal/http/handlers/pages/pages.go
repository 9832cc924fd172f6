// Package pages браузерные маршруты /{lang}/...: локализованные страницы
// и перенаправления в зависимости от сессии и роли.
//
// Страницы отдаются JSON-документом Page, который рендерит фронтенд.
package pages

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/union-portal/internal/http/handlers/payment/paymentverify"
	"github.com/magabrotheeeer/union-portal/internal/http/middlewarectx"
	"github.com/magabrotheeeer/union-portal/internal/lib/locale"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/models"
	"github.com/magabrotheeeer/union-portal/internal/paymentprovider"
	"github.com/magabrotheeeer/union-portal/internal/services/admin"
	"github.com/magabrotheeeer/union-portal/internal/services/subscription"
)

// Members данные участника для страниц.
type Members interface {
	Plans(lang string) []models.Plan
	Dashboard(ctx context.Context, userUID, lang string) (*subscription.Dashboard, error)
	VerifyCallback(ctx context.Context, userUID string, cb paymentprovider.Callback) (*subscription.Confirmation, error)
}

// Stats сводка для главной страницы админки.
type Stats interface {
	Stats(ctx context.Context, from, to time.Time) (*admin.Stats, error)
}

// Page документ страницы.
type Page struct {
	Lang       string            `json:"lang"`
	Name       string            `json:"name"`
	Site       string            `json:"site"`
	Title      string            `json:"title"`
	Body       string            `json:"body,omitempty"`
	Notice     string            `json:"notice,omitempty"`
	Nav        map[string]string `json:"nav"`
	Alternates map[string]string `json:"alternates"`
	Data       any               `json:"data,omitempty"`
}

// Handler браузерные маршруты.
type Handler struct {
	log     *slog.Logger
	members Members
	stats   Stats
}

// New создает обработчики страниц.
func New(log *slog.Logger, members Members, stats Stats) *Handler {
	return &Handler{log: log, members: members, stats: stats}
}

func path(lang, page string) string {
	if page == "" {
		return "/" + lang + "/"
	}
	return "/" + lang + "/" + page
}

func (h *Handler) page(r *http.Request, name, titleKey, bodyKey string) Page {
	lang := middlewarectx.LangFrom(r)
	p := Page{
		Lang:  lang,
		Name:  name,
		Site:  locale.T(lang, "site.name"),
		Title: locale.T(lang, titleKey),
		Nav: map[string]string{
			"home":   path(lang, ""),
			"about":  path(lang, "about"),
			"plans":  path(lang, "plans"),
			"signin": path(lang, "signin"),
			"signup": path(lang, "signup"),
		},
		Alternates: make(map[string]string, len(locale.Codes())),
	}
	if bodyKey != "" {
		p.Body = locale.T(lang, bodyKey)
	}
	for _, code := range locale.Codes() {
		p.Alternates[code] = middlewarectx.SwapLang(r.URL, code)
	}
	return p
}

// home куда отправить вошедшего пользователя: админку или кабинет.
func home(lang, role string) string {
	if role == models.RoleAdmin {
		return path(lang, "admin")
	}
	return path(lang, "dashboard")
}

func signIn(r *http.Request, lang string) string {
	return path(lang, "signin") + "?next=" + url.QueryEscape(r.URL.Path)
}

// Root перенаправляет / на язык из Accept-Language.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, path(locale.Match(r.Header.Get("Accept-Language")), ""), http.StatusFound)
}

// Home главная страница.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.page(r, "home", "page.home.title", "page.home.body"))
}

// About страница о профсоюзе.
func (h *Handler) About(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.page(r, "about", "page.about.title", "page.about.body"))
}

// Plans страница тарифов.
func (h *Handler) Plans(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "plans", "page.plans.title", "")
	p.Data = h.members.Plans(p.Lang)
	render.JSON(w, r, p)
}

// SignIn страница входа. Вошедший пользователь перенаправляется к себе.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.guestOnly(w, r, "signin", "page.signin.title")
}

// SignUp страница регистрации. Вошедший пользователь перенаправляется к себе.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.guestOnly(w, r, "signup", "page.signup.title")
}

func (h *Handler) guestOnly(w http.ResponseWriter, r *http.Request, name, titleKey string) {
	lang := middlewarectx.LangFrom(r)
	if middlewarectx.UserUIDFrom(r.Context()) != "" {
		http.Redirect(w, r, home(lang, middlewarectx.RoleFrom(r.Context())), http.StatusFound)
		return
	}
	render.JSON(w, r, h.page(r, name, titleKey, ""))
}

// Dashboard кабинет участника. Гость идет на вход, администратор в админку.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pages.dashboard"
	lang := middlewarectx.LangFrom(r)
	userUID := middlewarectx.UserUIDFrom(r.Context())
	switch {
	case userUID == "":
		http.Redirect(w, r, signIn(r, lang), http.StatusFound)
		return
	case middlewarectx.RoleFrom(r.Context()) == models.RoleAdmin:
		http.Redirect(w, r, path(lang, "admin"), http.StatusFound)
		return
	}

	d, err := h.members.Dashboard(r.Context(), userUID, lang)
	if err != nil {
		h.log.Error("failed to build dashboard", sl.Op(op), slog.String("user_uid", userUID), sl.Err(err))
		http.Redirect(w, r, signIn(r, lang), http.StatusFound)
		return
	}
	p := h.page(r, "dashboard", "page.dashboard", "")
	switch r.URL.Query().Get("payment") {
	case paymentverify.OutcomeSuccess:
		p.Notice = locale.T(lang, "payment.success")
	case paymentverify.OutcomePending:
		p.Notice = locale.T(lang, "payment.pending")
	case paymentverify.OutcomeFailed:
		p.Notice = locale.T(lang, "payment.failed")
	}
	p.Data = d
	render.JSON(w, r, p)
}

// Admin главная админки. Гость идет на вход, участник в кабинет.
func (h *Handler) Admin(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pages.admin"
	lang := middlewarectx.LangFrom(r)
	switch {
	case middlewarectx.UserUIDFrom(r.Context()) == "":
		http.Redirect(w, r, signIn(r, lang), http.StatusFound)
		return
	case middlewarectx.RoleFrom(r.Context()) != models.RoleAdmin:
		http.Redirect(w, r, path(lang, "dashboard"), http.StatusFound)
		return
	}

	p := h.page(r, "admin", "page.admin", "")
	st, err := h.stats.Stats(r.Context(), time.Time{}, time.Time{})
	if err != nil {
		h.log.Error("failed to compute stats", sl.Op(op), sl.Err(err))
	} else {
		p.Data = st
	}
	render.JSON(w, r, p)
}

// callbackFrom параметры возврата: Razorpay присылает форму POST,
// Stripe добавляет order_id в строку запроса.
func callbackFrom(r *http.Request) (paymentprovider.Callback, bool) {
	if err := r.ParseForm(); err != nil {
		return paymentprovider.Callback{}, false
	}
	if r.Form.Get("error[code]") != "" {
		return paymentprovider.Callback{}, false
	}
	if id := r.Form.Get("razorpay_order_id"); id != "" {
		return paymentprovider.Callback{
			OrderID:   id,
			PaymentID: r.Form.Get("razorpay_payment_id"),
			Signature: r.Form.Get("razorpay_signature"),
		}, true
	}
	if id := r.Form.Get("order_id"); id != "" {
		return paymentprovider.Callback{OrderID: id}, true
	}
	return paymentprovider.Callback{}, false
}

// PaymentCallback принимает возврат из шлюза, подтверждает заказ и
// перенаправляет в кабинет с ?payment=success|pending|failed.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.pages.payment_callback"
	lang := middlewarectx.LangFrom(r)
	log := h.log.With(sl.Op(op), slog.String("request_id", middleware.GetReqID(r.Context())))

	outcome := paymentverify.OutcomeFailed
	if cb, ok := callbackFrom(r); ok {
		c, err := h.members.VerifyCallback(r.Context(), middlewarectx.UserUIDFrom(r.Context()), cb)
		outcome = paymentverify.Outcome(c, err)
		if outcome == paymentverify.OutcomeFailed && err != nil {
			log.Warn("payment callback rejected", slog.String("order_id", cb.OrderID), sl.Err(err))
		}
	} else {
		log.Info("payment callback without order")
	}

	log.Info("payment callback", slog.String("outcome", outcome))
	http.Redirect(w, r, path(lang, "dashboard")+"?payment="+outcome, http.StatusSeeOther)
}
