package paymentprovider

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/magabrotheeeer/union-portal/internal/config"
)

const razorpaySignatureHeader = "X-Razorpay-Signature"

// Razorpay клиент REST API Razorpay Orders.
type Razorpay struct {
	keyID         string
	keySecret     string
	webhookSecret string
	apiURL        string
	httpClient    *http.Client
}

// NewRazorpay создаёт клиент. Если httpClient nil, используется клиент с таймаутом 10 секунд.
func NewRazorpay(cfg config.PaymentGateway, httpClient *http.Client) *Razorpay {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Razorpay{
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		apiURL:        cfg.APIURL,
		httpClient:    httpClient,
	}
}

// Name имя шлюза.
func (c *Razorpay) Name() string { return "razorpay" }

type rzpOrder struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type rzpPayment struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type rzpError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Razorpay) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrOrderNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var e rzpError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) == nil && e.Error.Description != "" {
			return fmt.Errorf("unexpected status %s: %s", resp.Status, e.Error.Description)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateOrder создает заказ. Оплата проходит в виджете Razorpay по order_id и key_id.
func (c *Razorpay) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	const op = "paymentprovider.Razorpay.CreateOrder"
	var o rzpOrder
	err := c.do(ctx, http.MethodPost, "/orders", rzpOrder{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Reference,
		Notes:    req.Notes,
	}, &o)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Order{
		ID:        o.ID,
		Status:    StatusOpen,
		Amount:    o.Amount,
		Currency:  o.Currency,
		PublicKey: c.keyID,
	}, nil
}

// FetchOrder запрашивает заказ и его платежи.
func (c *Razorpay) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	const op = "paymentprovider.Razorpay.FetchOrder"
	var o rzpOrder
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, &o); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var payments struct {
		Items []rzpPayment `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/payments", nil, &payments); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	order := &Order{ID: o.ID, Status: StatusOpen, Amount: o.Amount, Currency: o.Currency}
	var latest *rzpPayment
	for i := range payments.Items {
		p := &payments.Items[i]
		if p.Status == "captured" {
			order.Status = StatusPaid
			order.PaymentID = p.ID
			order.PaidAt = time.Unix(p.CreatedAt, 0).UTC()
			return order, nil
		}
		if latest == nil || p.CreatedAt > latest.CreatedAt {
			latest = p
		}
	}
	if o.Status == "paid" {
		order.Status = StatusPaid
		if latest != nil {
			order.PaymentID = latest.ID
			order.PaidAt = time.Unix(latest.CreatedAt, 0).UTC()
		}
		return order, nil
	}
	// неудачная попытка не закрывает заказ: участник может повторить оплату
	return order, nil
}

// VerifyCallback проверяет подпись hmac_sha256(order_id|payment_id, key_secret).
func (c *Razorpay) VerifyCallback(cb Callback) error {
	if cb.OrderID == "" || cb.PaymentID == "" || cb.Signature == "" {
		return ErrInvalidSignature
	}
	if !validHMAC([]byte(cb.OrderID+"|"+cb.PaymentID), c.keySecret, cb.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

type rzpWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity rzpPayment `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity rzpOrder `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// ParseWebhook проверяет подпись тела и возвращает идентификатор заказа.
func (c *Razorpay) ParseWebhook(payload []byte, header http.Header) (string, error) {
	const op = "paymentprovider.Razorpay.ParseWebhook"
	if !validHMAC(payload, c.webhookSecret, header.Get(razorpaySignatureHeader)) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}
	var event rzpWebhook
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	switch event.Event {
	case "order.paid", "payment.captured", "payment.failed":
	default:
		return "", fmt.Errorf("%s: %s: %w", op, event.Event, ErrIgnoredEvent)
	}
	orderID := event.Payload.Order.Entity.ID
	if orderID == "" {
		orderID = event.Payload.Payment.Entity.OrderID
	}
	if orderID == "" {
		return "", fmt.Errorf("%s: event without order id", op)
	}
	return orderID, nil
}

// Sign вычисляет hex hmac_sha256 сообщения, как это делает Razorpay.
func Sign(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func validHMAC(message []byte, secret, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hmac.Equal(mac.Sum(nil), expected)
}
