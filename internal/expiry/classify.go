// Package expiry derives certificate urgency from expiry dates. Everything
// here is a pure function of its inputs and the supplied "today"; results
// are recomputed on every call and never cached, since the classification
// changes as the calendar advances.
package expiry

import "time"

// State classifies an expiry date relative to today.
type State string

const (
	StateExpired      State = "expired"
	StateExpiringSoon State = "expiring-soon"
	StateValid        State = "valid"
)

// expiringSoonWindowDays is the look-ahead window for the expiring-soon band.
const expiringSoonWindowDays = 30

// Color returns the display color associated with the state.
func (s State) Color() string {
	switch s {
	case StateExpired:
		return "red"
	case StateExpiringSoon:
		return "amber"
	default:
		return "green"
	}
}

// Status is the derived classification of an expiry date. Days is the
// magnitude shown to users ("expired 3 days ago", "expires in 12 days");
// DaysUntil keeps the signed delta so callers can order by urgency without
// conflating overdue and upcoming certificates.
type Status struct {
	State     State  `json:"state"`
	Days      int    `json:"days"`
	DaysUntil int    `json:"days_until_expiry"`
	Color     string `json:"color"`
}

// Classify maps an optional expiry date to its status. A nil expiry returns
// nil: the certificate never expires and no classification applies.
//
// Both dates are truncated to civil midnight before the day delta is taken,
// so the wall-clock hour of either side can never shift a certificate
// across the expired/expiring boundary.
func Classify(expiry *time.Time, today time.Time) *Status {
	if expiry == nil {
		return nil
	}

	d := daysBetween(today, *expiry)
	st := &Status{DaysUntil: d}
	switch {
	case d < 0:
		st.State = StateExpired
		st.Days = -d
	case d <= expiringSoonWindowDays:
		st.State = StateExpiringSoon
		st.Days = d
	default:
		st.State = StateValid
		st.Days = d
	}
	st.Color = st.State.Color()
	return st
}

// daysBetween returns the whole calendar days from "from" to "to",
// negative when "to" is in the past.
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
