package models

// Page страница выборки с общим количеством записей.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Пределы пагинации для списков.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ClampPage приводит limit и offset к допустимым значениям.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
