package mail

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v3"

	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
)

// resendEmails часть API Resend, которой пользуется отправитель.
type resendEmails interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Resend отправляет письма через HTTP API Resend.
type Resend struct {
	emails resendEmails
	from   string
	log    *slog.Logger
}

// NewResend создает отправителя поверх сервиса писем клиента Resend.
func NewResend(emails resendEmails, from string, log *slog.Logger) *Resend {
	return &Resend{emails: emails, from: from, log: log}
}

// Send отправляет письмо в текстовом и HTML-виде.
func (r *Resend) Send(ctx context.Context, msg Message) error {
	const op = "mail.Resend.Send"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sent, err := r.emails.Send(&resend.SendEmailRequest{
		From:    r.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		Html:    toHTML(msg.Text),
	})
	if err != nil {
		r.log.Error("failed to send email via resend", sl.Op(op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	r.log.Info("email sent", sl.Op(op), slog.String("id", sent.Id))
	return nil
}

func toHTML(text string) string {
	paragraphs := strings.Split(html.EscapeString(text), "\n\n")
	for i, p := range paragraphs {
		paragraphs[i] = "<p>" + strings.ReplaceAll(p, "\n", "<br>") + "</p>"
	}
	return strings.Join(paragraphs, "")
}
