// Package storage общие ошибки слоя хранения.
package storage

import "errors"

var (
	// ErrNotFound запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists нарушена уникальность email, телефона или заказа.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnionIDTaken номер члена профсоюза уже выдан другому участнику.
	ErrUnionIDTaken = errors.New("union id taken")
)
