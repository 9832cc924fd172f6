package mail

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/lib/smtp"
)

// SMTP отправляет письма через SMTP-транспорт.
type SMTP struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSMTP создает отправителя поверх транспорта.
func NewSMTP(transport smtp.TransportInterface, log *slog.Logger) *SMTP {
	return &SMTP{transport: transport, log: log}
}

// Send формирует письмо в UTF-8 и передает его серверу.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	const op = "mail.SMTP.Send"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	log := s.log.With(sl.Op(op))
	from := s.transport.Sender()

	client, err := s.transport.Connect()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		// после успешного Quit соединение уже закрыто
		_ = client.Close()
	}()

	if err := client.Mail(from); err != nil {
		log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return fmt.Errorf("%s: mail from: %w", op, err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		log.Error("failed to set RCPT TO", sl.Err(err))
		return fmt.Errorf("%s: rcpt: %w", op, err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: data: %w", op, err)
	}
	if _, err := wc.Write(compose(from, msg)); err != nil {
		return fmt.Errorf("%s: write: %w", op, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("%s: close data: %w", op, err)
	}
	if err := client.Quit(); err != nil {
		return fmt.Errorf("%s: quit: %w", op, err)
	}

	log.Info("email sent", slog.String("to", msg.To))
	return nil
}

func compose(from string, msg Message) []byte {
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"Content-Transfer-Encoding: 8bit",
		"",
		msg.Text,
	}, "\r\n"))
}
