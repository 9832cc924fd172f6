package models

import "time"

// Статусы платежа.
const (
	PaymentCreated = "created"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
	PaymentExpired = "expired"
)

// Payment запись о платеже за членство.
type Payment struct {
	ID                int64      `json:"id"`
	UserUID           string     `json:"user_uid"`
	Plan              string     `json:"plan"`
	Amount            int64      `json:"amount"`  // в минимальных единицах (пайсы), включая штраф
	Penalty           int64      `json:"penalty"` // часть Amount
	Currency          string     `json:"currency"`
	Status            string     `json:"status"`
	ProviderOrderID   string     `json:"provider_order_id"`
	ProviderPaymentID string     `json:"provider_payment_id,omitempty"`
	PaymentDate       *time.Time `json:"payment_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// PaymentFilter параметры выборки платежей для админки.
type PaymentFilter struct {
	UserUID string
	Status  string
	Limit   int
	Offset  int
}
