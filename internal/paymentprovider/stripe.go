package paymentprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/magabrotheeeer/union-portal/internal/config"
)

const stripeSignatureHeader = "Stripe-Signature"

// Stripe шлюз на Stripe Checkout. Идентификатор заказа это id checkout-сессии.
type Stripe struct {
	api           *client.API
	webhookSecret string
}

// NewStripe создаёт шлюз. APIURL из cfg переопределяет адрес API, если не пуст
// и не указывает на razorpay (значение по умолчанию в конфиге).
func NewStripe(cfg config.PaymentGateway, httpClient *http.Client) *Stripe {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(1),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.APIURL != "" && !strings.Contains(cfg.APIURL, "razorpay") {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)
	api := client.New(cfg.KeySecret, &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})
	return &Stripe{api: api, webhookSecret: cfg.WebhookSecret}
}

// Name имя шлюза.
func (s *Stripe) Name() string { return "stripe" }

// CreateOrder создаёт checkout-сессию с одной позицией на всю сумму.
func (s *Stripe) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	const op = "paymentprovider.Stripe.CreateOrder"
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.Reference),
		SuccessURL:        stripe.String(withSessionID(req.SuccessURL)),
		CancelURL:         stripe.String(withSessionID(req.CancelURL)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	for k, v := range req.Notes {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	order := sessionToOrder(sess)
	if order.Amount == 0 {
		order.Amount = req.Amount
	}
	if order.Currency == "" {
		order.Currency = req.Currency
	}
	return order, nil
}

// FetchOrder читает checkout-сессию.
func (s *Stripe) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	const op = "paymentprovider.Stripe.FetchOrder"
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.Get(orderID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sessionToOrder(sess), nil
}

// VerifyCallback у Stripe возврат не подписан: достаточно id сессии,
// статус затем проверяется через FetchOrder.
func (s *Stripe) VerifyCallback(cb Callback) error {
	if cb.OrderID == "" {
		return ErrInvalidSignature
	}
	return nil
}

// ParseWebhook проверяет Stripe-Signature и извлекает id checkout-сессии.
func (s *Stripe) ParseWebhook(payload []byte, header http.Header) (string, error) {
	const op = "paymentprovider.Stripe.ParseWebhook"
	event, err := webhook.ConstructEventWithOptions(payload, header.Get(stripeSignatureHeader), s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", op, ErrInvalidSignature, err)
	}
	switch event.Type {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
	default:
		return "", fmt.Errorf("%s: %s: %w", op, event.Type, ErrIgnoredEvent)
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if sess.ID == "" {
		return "", fmt.Errorf("%s: event without session id", op)
	}
	return sess.ID, nil
}

func sessionToOrder(sess *stripe.CheckoutSession) *Order {
	order := &Order{
		ID:          sess.ID,
		Status:      StatusOpen,
		Amount:      sess.AmountTotal,
		Currency:    strings.ToUpper(string(sess.Currency)),
		CheckoutURL: sess.URL,
	}
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		order.Status = StatusPaid
		if sess.PaymentIntent != nil {
			order.PaymentID = sess.PaymentIntent.ID
		}
		order.PaidAt = time.Now().UTC()
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		order.Status = StatusFailed
	}
	return order
}

func withSessionID(u string) string {
	if u == "" || strings.Contains(u, "{CHECKOUT_SESSION_ID}") {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "order_id={CHECKOUT_SESSION_ID}"
}
