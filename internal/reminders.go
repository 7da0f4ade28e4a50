package internal

import (
	"encoding/json"
	"net/http"
	"time"

	"sitesafe-api/internal/auth"
	"sitesafe-api/internal/expiry"
	"sitesafe-api/internal/models"
)

// listReminders scans the company's inventory and returns the certificates
// that are expired or expiring soon and have a reminder flag enabled, most
// urgent first.
func (s *Server) listReminders(w http.ResponseWriter, r *http.Request) {
	companyID := auth.CompanyIDFromContext(r.Context())

	q := dbFrom(r.Context(), s.DB)
	rows, err := q.QueryContext(r.Context(), `
		SELECT i.id, i.name, c.id, c.name, c.expiry_date,
		       c.has_30_day_reminder, c.has_7_day_reminder
		FROM equipment_items i
		JOIN certificates c ON c.equipment_item_id = i.id
		WHERE i.company_id = $1 AND c.expiry_date IS NOT NULL
		  AND (c.has_30_day_reminder OR c.has_7_day_reminder)`, companyID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	// Group the flat rows back into items so the classifier sees the same
	// shape the inventory endpoints serve.
	itemIndex := map[int64]int{}
	items := []models.EquipmentItem{}
	for rows.Next() {
		var (
			itemID   int64
			itemName string
			cert     models.Certificate
		)
		if err := rows.Scan(&itemID, &itemName, &cert.ID, &cert.Name, &cert.ExpiryDate,
			&cert.Has30DayReminder, &cert.Has7DayReminder); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		cert.EquipmentItemID = itemID
		i, ok := itemIndex[itemID]
		if !ok {
			items = append(items, models.EquipmentItem{ID: itemID, Name: itemName})
			i = len(items) - 1
			itemIndex[itemID] = i
		}
		items[i].Certificates = append(items[i].Certificates, cert)
	}
	if err := rows.Err(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	reminders := expiry.BuildReminders(items, time.Now().UTC())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"count":     len(reminders),
		"reminders": reminders,
	})
}
