// Package models содержит доменные модели членского портала профсоюза:
// участника, его подписку, платёж и тарифный план.
package models

import "time"

// Роли пользователей.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Статусы подписки. Переходы not_subscribed -> pending -> active/inactive
// происходят только по подтверждению платежа или вручную администратором.
const (
	StatusNotSubscribed = "not_subscribed"
	StatusPending       = "pending"
	StatusActive        = "active"
	StatusInactive      = "inactive"
)

// Address почтовый адрес участника.
type Address struct {
	Line    string `json:"line"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// Subscription вложенная запись о подписке участника.
type Subscription struct {
	Plan        string     `json:"plan"`
	Status      string     `json:"status"`
	RenewalDate *time.Time `json:"renewal_date,omitempty"`
}

// User зарегистрированный участник профсоюза.
type User struct {
	UID          string       `json:"uid"`
	UnionID      string       `json:"union_id"` // 6 цифр, уникален и не меняется
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Phone        string       `json:"phone"`
	Address      Address      `json:"address"`
	PasswordHash string       `json:"-"`
	Role         string       `json:"role"`
	Locale       string       `json:"locale"`
	Subscription Subscription `json:"subscription"`
	CreatedAt    time.Time    `json:"created_at"`
}

// IsAdmin сообщает, есть ли у пользователя доступ в админку.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Profile изменяемые участником поля профиля.
type Profile struct {
	Name    string  `json:"name" validate:"required,min=2,max=100"`
	Phone   string  `json:"phone" validate:"required,numeric,len=10"`
	Address Address `json:"address"`
	Locale  string  `json:"locale" validate:"omitempty,oneof=en hi te"`
}

// MemberFilter параметры выборки участников для админки.
type MemberFilter struct {
	Status string
	Query  string // подстрока имени, email, телефона или номера
	Limit  int
	Offset int
}
