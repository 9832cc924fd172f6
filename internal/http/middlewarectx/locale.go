package middlewarectx

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/union-portal/internal/lib/locale"
)

// Locale проверяет параметр маршрута {lang}. Неизвестный язык
// перенаправляется на тот же путь под языком из Accept-Language.
func Locale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := chi.URLParam(r, "lang")
		if !locale.IsSupported(lang) {
			best := locale.Match(r.Header.Get("Accept-Language"))
			http.Redirect(w, r, SwapLang(r.URL, best), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), Lang, lang)))
	})
}

// SwapLang заменяет первый сегмент пути на lang, сохраняя query.
func SwapLang(u *url.URL, lang string) string {
	rest := strings.TrimPrefix(u.Path, "/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[i:]
	} else {
		rest = "/"
	}
	out := "/" + lang + rest
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}

// LangFrom язык запроса: из маршрута, затем из ?lang=, затем из Accept-Language.
func LangFrom(r *http.Request) string {
	if v, ok := r.Context().Value(Lang).(string); ok && v != "" {
		return v
	}
	if q := r.URL.Query().Get("lang"); locale.IsSupported(q) {
		return q
	}
	return locale.Match(r.Header.Get("Accept-Language"))
}
