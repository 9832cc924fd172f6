package models

import "time"

// Типы уведомлений, публикуемых в очередь.
const (
	NotifyRenewalUpcoming = "renewal_upcoming"
	NotifyLapsed          = "lapsed"
	NotifyReceipt         = "receipt"
	NotifyOTP             = "otp"
)

// Notification сообщение для воркера рассылки.
type Notification struct {
	Kind        string     `json:"kind"`
	UserUID     string     `json:"user_uid,omitempty"`
	UnionID     string     `json:"union_id,omitempty"`
	Name        string     `json:"name,omitempty"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Locale      string     `json:"locale"`
	Plan        string     `json:"plan,omitempty"`
	Amount      int64      `json:"amount,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	RenewalDate *time.Time `json:"renewal_date,omitempty"`
	Code        string     `json:"code,omitempty"`
}

// NotificationFromUser заполняет общие поля уведомления из участника.
func NotificationFromUser(kind string, u *User) Notification {
	return Notification{
		Kind:        kind,
		UserUID:     u.UID,
		UnionID:     u.UnionID,
		Name:        u.Name,
		Email:       u.Email,
		Phone:       u.Phone,
		Locale:      u.Locale,
		Plan:        u.Subscription.Plan,
		RenewalDate: u.Subscription.RenewalDate,
	}
}
