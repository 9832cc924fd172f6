// Package sms клиент HTTP SMS-шлюза для доставки одноразовых кодов.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/magabrotheeeer/union-portal/internal/config"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
)

// Sender отправляет SMS.
type Sender interface {
	Send(ctx context.Context, phone, text string) error
}

type request struct {
	To      string `json:"to"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// Client отправляет сообщения POST-запросом на cfg.GatewayURL.
type Client struct {
	cfg  config.SMS
	http *http.Client
	log  *slog.Logger
}

// New создает клиент шлюза.
func New(cfg config.SMS, log *slog.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

// Send отправляет текст на номер phone. Индийские номера дополняются кодом +91.
func (c *Client) Send(ctx context.Context, phone, text string) error {
	const op = "sms.Send"
	body, err := json.Marshal(request{To: E164(phone), Sender: c.cfg.SenderID, Message: text})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error("sms gateway rejected message",
			sl.Op(op),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(snippet)),
			sl.Masked("phone", phone),
		)
		return fmt.Errorf("%s: gateway returned %d", op, resp.StatusCode)
	}
	c.log.Info("sms sent", sl.Op(op), sl.Masked("phone", phone))
	return nil
}

// E164 приводит десятизначный номер к виду +91XXXXXXXXXX.
func E164(phone string) string {
	if len(phone) == 10 {
		return "+91" + phone
	}
	return phone
}
