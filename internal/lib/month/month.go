// Package month календарная арифметика по месяцам для сроков членства.
package month

import (
	"time"
)

// AddMonths прибавляет n календарных месяцев. Если в целевом месяце нет
// такого дня, берется его последний день: 31 января + 1 месяц = 28/29 февраля.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Between количество полных месяцев, прошедших от from до to.
// Если to раньше from, возвращает 0.
func Between(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	to = to.In(from.Location())
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if AddMonths(from, months).After(to) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
