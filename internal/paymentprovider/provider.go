// Package paymentprovider клиенты платежных шлюзов: Razorpay и Stripe Checkout.
//
// Статус заказа у шлюза считается источником истины: и возврат браузера,
// и вебхук лишь сообщают идентификатор заказа, после чего статус
// запрашивается у шлюза через FetchOrder.
package paymentprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/magabrotheeeer/union-portal/internal/config"
)

// OrderStatus состояние заказа у шлюза.
type OrderStatus string

// Состояния заказа.
const (
	StatusOpen   OrderStatus = "open"
	StatusPaid   OrderStatus = "paid"
	StatusFailed OrderStatus = "failed"
)

var (
	// ErrInvalidSignature подпись возврата или вебхука не совпала.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrIgnoredEvent вебхук не относится к оплате заказа.
	ErrIgnoredEvent = errors.New("ignored event")
	// ErrOrderNotFound шлюз не знает такого заказа.
	ErrOrderNotFound = errors.New("order not found")
)

// CreateOrderRequest параметры нового заказа.
type CreateOrderRequest struct {
	Reference   string // наш идентификатор, попадает в receipt/client_reference_id
	Amount      int64  // в пайсах
	Currency    string
	Description string
	Email       string
	Phone       string
	SuccessURL  string
	CancelURL   string
	Notes       map[string]string
}

// Order заказ у шлюза.
type Order struct {
	ID          string      `json:"order_id"`
	Status      OrderStatus `json:"status"`
	PaymentID   string      `json:"payment_id,omitempty"`
	Amount      int64       `json:"amount"`
	Currency    string      `json:"currency"`
	CheckoutURL string      `json:"checkout_url,omitempty"`
	PublicKey   string      `json:"key_id,omitempty"`
	PaidAt      time.Time   `json:"-"`
}

// Callback параметры возврата браузера после оплаты.
type Callback struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Gateway платежный шлюз.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	VerifyCallback(cb Callback) error
	ParseWebhook(payload []byte, header http.Header) (orderID string, err error)
}

// New создает шлюз по cfg.Provider.
func New(cfg config.PaymentGateway) (Gateway, error) {
	const op = "paymentprovider.New"
	switch cfg.Provider {
	case "razorpay":
		return NewRazorpay(cfg, nil), nil
	case "stripe":
		return NewStripe(cfg, nil), nil
	default:
		return nil, fmt.Errorf("%s: unknown provider %q", op, cfg.Provider)
	}
}
