// Package mail отправка писем участникам через SMTP или Resend.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v3"

	"github.com/magabrotheeeer/union-portal/internal/config"
	"github.com/magabrotheeeer/union-portal/internal/lib/smtp"
)

// Message письмо одному получателю.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer отправляет письма.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New выбирает реализацию по cfg.Provider.
func New(cfg config.Mail, log *slog.Logger) (Mailer, error) {
	const op = "mail.New"
	switch cfg.Provider {
	case "smtp":
		return NewSMTP(smtp.NewTransport(cfg, log), log), nil
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("%s: resend api key is not set", op)
		}
		return NewResend(resend.NewClient(cfg.ResendAPIKey).Emails, cfg.From, log), nil
	default:
		return nil, fmt.Errorf("%s: unknown provider %q", op, cfg.Provider)
	}
}
