// Package unionid выдает шестизначные номера членов профсоюза.
//
// Номер проверяется по существующим участникам и при совпадении генерируется
// заново, не более MaxAttempts раз. Уникальный индекс в хранилище закрывает
// гонку между проверкой и записью: конфликт при вставке тоже расходует попытку.
package unionid

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
)

// MaxAttempts предел попыток подобрать свободный номер.
const MaxAttempts = 10

const (
	lowest = 100000
	span   = 900000
)

var (
	// ErrTaken возвращается из InsertFunc, если номер уже занят.
	ErrTaken = errors.New("union id already taken")
	// ErrExhausted все попытки исчерпаны, регистрацию нужно повторить позже.
	ErrExhausted = errors.New("could not allocate a unique union id")
)

var pattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// ExistsFunc сообщает, занят ли номер.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// InsertFunc сохраняет запись с номером id. Конфликт номера сообщается через ErrTaken.
type InsertFunc func(ctx context.Context, id string) error

// Generator источник случайных номеров.
type Generator func() (string, error)

// Random возвращает случайный номер из диапазона 100000..999999.
func Random() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return "", fmt.Errorf("unionid.Random: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+lowest), nil
}

// Valid проверяет формат номера.
func Valid(id string) bool {
	return pattern.MatchString(id)
}

// Assign подбирает свободный номер и сохраняет запись через insert.
func Assign(ctx context.Context, exists ExistsFunc, insert InsertFunc) (string, error) {
	return AssignWith(ctx, Random, exists, insert)
}

// AssignWith то же, что Assign, но с заданным генератором.
func AssignWith(ctx context.Context, gen Generator, exists ExistsFunc, insert InsertFunc) (string, error) {
	const op = "unionid.Assign"
	for range MaxAttempts {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		id, err := gen()
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if !Valid(id) {
			return "", fmt.Errorf("%s: generated malformed id %q", op, id)
		}
		taken, err := exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if taken {
			continue
		}
		err = insert(ctx, id)
		if errors.Is(err, ErrTaken) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return id, nil
	}
	return "", fmt.Errorf("%s: %w", op, ErrExhausted)
}
