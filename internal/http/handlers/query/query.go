// Package query разбор параметров строки запроса для списков.
package query

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/magabrotheeeer/union-portal/internal/models"
)

// Page читает limit и offset. Неверные значения заменяются значениями по умолчанию.
func Page(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	return models.ClampPage(limit, offset)
}

// Date читает дату в формате YYYY-MM-DD. Отсутствующий параметр дает нулевое время.
func Date(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parameter %s must be a date in format YYYY-MM-DD", key)
	}
	return t, nil
}
