// Package subscription жизненный цикл членства: расчет статуса и штрафа,
// оформление заказа у платежного шлюза и подтверждение оплаты.
package subscription

import (
	"math"
	"time"

	"github.com/magabrotheeeer/union-portal/internal/config"
	"github.com/magabrotheeeer/union-portal/internal/lib/locale"
	"github.com/magabrotheeeer/union-portal/internal/lib/month"
	"github.com/magabrotheeeer/union-portal/internal/models"
)

// State вычисленное состояние членства.
type State string

// Состояния членства.
const (
	StateNone    State = "none"
	StatePending State = "pending"
	StateActive  State = "active"
	StateGrace   State = "grace"
	StateLapsed  State = "lapsed"
)

// Policy параметры льготного периода.
type Policy struct {
	GraceMonths int
	PenaltyFee  int64
}

// DefaultPolicy три месяца льготного периода и штраф ₹100.
func DefaultPolicy() Policy {
	return Policy{GraceMonths: 3, PenaltyFee: 10000}
}

// PolicyFromConfig берет параметры из секции membership.
func PolicyFromConfig(cfg config.Membership) Policy {
	p := DefaultPolicy()
	if cfg.GraceMonths > 0 {
		p.GraceMonths = cfg.GraceMonths
	}
	if cfg.PenaltyFee >= 0 {
		p.PenaltyFee = cfg.PenaltyFee
	}
	return p
}

// Standing результат Evaluate.
type Standing struct {
	State         State      `json:"state"`
	RenewalDate   *time.Time `json:"renewal_date,omitempty"`
	DaysLeft      int        `json:"days_left,omitempty"`
	MonthsOverdue int        `json:"months_overdue,omitempty"`
	GraceEnds     *time.Time `json:"grace_ends,omitempty"`
	Penalty       int64      `json:"penalty"`

	// продление считается от текущей даты продления, а не от момента оплаты
	extends bool
}

// Evaluate вычисляет состояние членства на момент now.
//
// Для pending состояние всегда StatePending, но штраф и признак продления
// считаются по дате продления, чтобы повторный заказ стоил столько же.
// Статус inactive никогда не дает StateActive, даже с будущей датой.
func Evaluate(sub models.Subscription, now time.Time, p Policy) Standing {
	if sub.Status == models.StatusNotSubscribed || sub.Status == "" {
		return Standing{State: StateNone}
	}
	if sub.RenewalDate == nil {
		if sub.Status == models.StatusPending {
			return Standing{State: StatePending}
		}
		return Standing{State: StateNone}
	}

	renewal := *sub.RenewalDate
	st := Standing{RenewalDate: &renewal}
	switch {
	case renewal.After(now) && sub.Status != models.StatusInactive:
		st.State = StateActive
		st.DaysLeft = int(math.Ceil(renewal.Sub(now).Hours() / 24))
		st.extends = true
	case renewal.After(now):
		st.State = StateGrace
		st.extends = true
	default:
		st.MonthsOverdue = month.Between(renewal, now)
		ends := month.AddMonths(renewal, p.GraceMonths)
		st.GraceEnds = &ends
		if st.MonthsOverdue < p.GraceMonths {
			st.State = StateGrace
			st.extends = true
		} else {
			st.State = StateLapsed
			st.Penalty = p.PenaltyFee
		}
	}

	if sub.Status == models.StatusPending {
		st.State = StatePending
	}
	return st
}

// NextRenewal дата продления после оплаты plan в момент now.
// Активные и льготные участники продлеваются от текущей даты продления,
// остальные от now. Если продление от старой даты все еще в прошлом,
// отсчет идет от now.
func NextRenewal(st Standing, sub models.Subscription, plan config.Plan, now time.Time) time.Time {
	if st.extends && sub.RenewalDate != nil {
		next := month.AddMonths(*sub.RenewalDate, plan.Months)
		if next.After(now) {
			return next
		}
	}
	return month.AddMonths(now, plan.Months)
}

// Message локализованное описание состояния.
func (st Standing) Message(lang string) string {
	switch st.State {
	case StatePending:
		return locale.T(lang, "status.pending")
	case StateActive:
		return locale.T(lang, "status.active", st.DaysLeft)
	case StateGrace:
		if st.RenewalDate != nil {
			return locale.T(lang, "status.grace", locale.FormatDate(*st.RenewalDate))
		}
		return locale.T(lang, "status.pending")
	case StateLapsed:
		return locale.T(lang, "status.lapsed", locale.FormatAmount(st.Penalty))
	default:
		return locale.T(lang, "status.none")
	}
}
