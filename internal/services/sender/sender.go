// Package sender доставка уведомлений из очереди: письма на языке участника
// и SMS с кодом входа.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/union-portal/internal/lib/locale"
	"github.com/magabrotheeeer/union-portal/internal/lib/mail"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/lib/sms"
	"github.com/magabrotheeeer/union-portal/internal/models"
)

const deliveryTimeout = 30 * time.Second

// ErrNoRecipient у участника нет адреса для этого канала.
var ErrNoRecipient = errors.New("no recipient")

// Recorder счетчик доставок.
type Recorder interface {
	Notified(kind string, err error)
}

// Service рендерит и отправляет уведомления.
type Service struct {
	mailer  mail.Mailer
	sms     sms.Sender
	metrics Recorder
	log     *slog.Logger
}

// New создает сервис рассылки.
func New(mailer mail.Mailer, smsSender sms.Sender, metrics Recorder, log *slog.Logger) *Service {
	return &Service{mailer: mailer, sms: smsSender, metrics: metrics, log: log}
}

// Handler обработчик сообщений очереди. Сообщение без адресата
// подтверждается, чтобы не возвращаться в очередь.
func (s *Service) Handler(ctx context.Context) func([]byte) error {
	return func(body []byte) error {
		const op = "sender.Handler"
		var n models.Notification
		if err := json.Unmarshal(body, &n); err != nil {
			s.log.Error("failed to unmarshal message body", sl.Op(op), sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
		dctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		defer cancel()
		err := s.Deliver(dctx, n)
		if errors.Is(err, ErrNoRecipient) {
			s.log.Warn("notification dropped", sl.Op(op), slog.String("kind", n.Kind), slog.String("user_uid", n.UserUID))
			return nil
		}
		return err
	}
}

// Deliver отправляет одно уведомление.
func (s *Service) Deliver(ctx context.Context, n models.Notification) error {
	const op = "sender.Deliver"
	log := s.log.With(sl.Op(op), slog.String("kind", n.Kind), slog.String("user_uid", n.UserUID))

	var err error
	if n.Kind == models.NotifyOTP {
		err = s.sendOTP(ctx, n)
	} else {
		var msg mail.Message
		msg, err = Render(n)
		if err == nil {
			err = s.mailer.Send(ctx, msg)
		}
	}
	s.metrics.Notified(n.Kind, err)
	if err != nil {
		log.Error("failed to deliver notification", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("notification delivered")
	return nil
}

func (s *Service) sendOTP(ctx context.Context, n models.Notification) error {
	if n.Phone == "" {
		return ErrNoRecipient
	}
	return s.sms.Send(ctx, sms.E164(n.Phone), locale.T(n.Locale, "sms.otp", n.Code))
}

// Render собирает письмо на языке участника.
func Render(n models.Notification) (mail.Message, error) {
	if n.Email == "" {
		return mail.Message{}, ErrNoRecipient
	}
	lang := locale.Normalize(n.Locale)
	date := ""
	if n.RenewalDate != nil {
		date = locale.FormatDate(*n.RenewalDate)
	}

	msg := mail.Message{To: n.Email}
	switch n.Kind {
	case models.NotifyRenewalUpcoming:
		msg.Subject = locale.T(lang, "mail.renewal.subj")
		msg.Text = locale.T(lang, "mail.renewal.body", n.Name, n.UnionID, date)
	case models.NotifyLapsed:
		msg.Subject = locale.T(lang, "mail.lapsed.subj")
		msg.Text = locale.T(lang, "mail.lapsed.body", n.Name, n.UnionID, date)
	case models.NotifyReceipt:
		msg.Subject = locale.T(lang, "mail.receipt.subj")
		msg.Text = locale.T(lang, "mail.receipt.body", n.Name, locale.FormatAmount(n.Amount), n.UnionID, date)
	default:
		return mail.Message{}, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	return msg, nil
}
