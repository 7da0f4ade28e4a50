package expiry

import (
	"sort"
	"time"

	"sitesafe-api/internal/models"
)

// Reminder is a derived view row for a certificate that is expired or
// nearing expiry and has at least one active reminder flag. Reminders are
// never persisted; they are rebuilt from the inventory on every read.
type Reminder struct {
	EquipmentItemID  int64     `json:"equipment_item_id"`
	ItemName         string    `json:"item_name"`
	CertificateID    int64     `json:"certificate_id"`
	CertificateName  string    `json:"certificate_name"`
	ExpiryDate       time.Time `json:"expiry_date"`
	DaysUntilExpiry  int       `json:"days_until_expiry"` // signed, negative when overdue
	Days             int       `json:"days"`              // magnitude for display
	Status           State     `json:"status"`
	Color            string    `json:"color"`
	Has30DayReminder bool      `json:"has_30_day_reminder"`
	Has7DayReminder  bool      `json:"has_7_day_reminder"`
}

// BuildReminders scans every certificate of every item and returns the
// reminder rows, most urgent first. Inclusion rules:
//
//   - certificates without an expiry date never appear, whatever their flags
//   - certificates with both reminder flags off never appear, even expired
//   - certificates classified valid never appear, even with flags set
//
// The list is stable-sorted ascending on the signed day delta, so a
// certificate 10 days overdue ranks before one 2 days overdue, which ranks
// before anything still in date. Inputs are not mutated.
func BuildReminders(items []models.EquipmentItem, today time.Time) []Reminder {
	reminders := []Reminder{}
	for _, item := range items {
		for _, cert := range item.Certificates {
			if cert.ExpiryDate == nil {
				continue
			}
			if !cert.Has30DayReminder && !cert.Has7DayReminder {
				continue
			}
			st := Classify(cert.ExpiryDate, today)
			if st.State == StateValid {
				continue
			}
			reminders = append(reminders, Reminder{
				EquipmentItemID:  item.ID,
				ItemName:         item.Name,
				CertificateID:    cert.ID,
				CertificateName:  cert.Name,
				ExpiryDate:       *cert.ExpiryDate,
				DaysUntilExpiry:  st.DaysUntil,
				Days:             st.Days,
				Status:           st.State,
				Color:            st.Color,
				Has30DayReminder: cert.Has30DayReminder,
				Has7DayReminder:  cert.Has7DayReminder,
			})
		}
	}

	sort.SliceStable(reminders, func(i, j int) bool {
		return reminders[i].DaysUntilExpiry < reminders[j].DaysUntilExpiry
	})
	return reminders
}
