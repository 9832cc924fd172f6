// Package locale выбор языка интерфейса (en, hi, te) и локализованные строки.
package locale

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Поддерживаемые языки.
const (
	English = "en"
	Hindi   = "hi"
	Telugu  = "te"
	Default = English
)

var (
	tags    = []language.Tag{language.English, language.Hindi, language.Telugu}
	codes   = []string{English, Hindi, Telugu}
	matcher = language.NewMatcher(tags)
)

// Codes возвращает коды поддерживаемых языков.
func Codes() []string {
	out := make([]string, len(codes))
	copy(out, codes)
	return out
}

// IsSupported сообщает, является ли code одним из поддерживаемых языков.
func IsSupported(code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

// Match выбирает язык по заголовку Accept-Language и необязательным
// дополнительным предпочтениям (например, языку из профиля).
func Match(acceptLanguage string, preferred ...string) string {
	var wanted []language.Tag
	for _, p := range preferred {
		if t, err := language.Parse(p); err == nil {
			wanted = append(wanted, t)
		}
	}
	if parsed, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil {
		wanted = append(wanted, parsed...)
	}
	if len(wanted) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(wanted...)
	if conf == language.No {
		return Default
	}
	return codes[idx]
}

// Normalize возвращает code, если он поддерживается, иначе язык по умолчанию.
func Normalize(code string) string {
	if IsSupported(code) {
		return code
	}
	return Match(code)
}

// Printer возвращает принтер сообщений для языка code.
func Printer(code string) *message.Printer {
	return message.NewPrinter(tagFor(code), message.Catalog(catalogue))
}

// T переводит ключ key на язык code, подставляя args.
func T(code, key string, args ...any) string {
	return Printer(code).Sprintf(key, args...)
}

// FormatAmount форматирует сумму в пайсах как рупии: 49900 -> "₹499.00".
func FormatAmount(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return fmt.Sprintf("%s₹%d.%02d", sign, paise/100, paise%100)
}

// FormatDate форматирует дату для писем и страниц.
func FormatDate(t time.Time) string {
	return t.Format("02 Jan 2006")
}

func tagFor(code string) language.Tag {
	for i, c := range codes {
		if c == code {
			return tags[i]
		}
	}
	return language.English
}
