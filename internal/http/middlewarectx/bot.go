package middlewarectx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/magabrotheeeer/union-portal/internal/http/response"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
)

// scriptedAgents подстроки User-Agent скриптов и HTTP-библиотек.
var scriptedAgents = []string{
	"curl/",
	"wget/",
	"python-requests",
	"python-urllib",
	"aiohttp",
	"go-http-client",
	"java/",
	"okhttp",
	"libwww-perl",
	"scrapy",
	"httpclient",
	"headlesschrome",
	"phantomjs",
	"postmanruntime",
}

// IsBot сообщает, похож ли User-Agent на автоматический клиент.
func IsBot(userAgent string) bool {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return true
	}
	for _, s := range scriptedAgents {
		if strings.Contains(ua, s) {
			return true
		}
	}
	return false
}

// BotFilter отклоняет запросы без User-Agent или от известных скриптов.
// Ставится на маршруты регистрации и входа.
func BotFilter(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsBot(r.UserAgent()) {
				log.Warn("bot request rejected",
					sl.Op("middlewarectx.BotFilter"),
					slog.String("path", r.URL.Path),
					slog.String("user_agent", r.UserAgent()),
					slog.String("ip", clientIP(r)),
				)
				response.Fail(w, r, http.StatusForbidden, "automated requests are not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
