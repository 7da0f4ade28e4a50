package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"sitesafe-api/internal/auth"
	"sitesafe-api/internal/models"

	"github.com/go-chi/chi/v5"
)

// listCertificates returns the certificates attached to one equipment item
func (s *Server) listCertificates(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	companyID := auth.CompanyIDFromContext(r.Context())

	q := dbFrom(r.Context(), s.DB)

	// The item must exist and belong to the caller's company
	var exists bool
	if err := q.QueryRowContext(r.Context(), `
		SELECT EXISTS (SELECT 1 FROM equipment_items WHERE id = $1 AND company_id = $2)`,
		itemID, companyID).Scan(&exists); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if !exists {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	rows, err := q.QueryContext(r.Context(), `
		SELECT id, equipment_item_id, name, file_url, file_type, expiry_date,
		       has_30_day_reminder, has_7_day_reminder, uploaded_by, uploaded_at
		FROM certificates
		WHERE equipment_item_id = $1
		ORDER BY expiry_date NULLS LAST, id`, itemID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	certs := []models.Certificate{}
	for rows.Next() {
		var c models.Certificate
		if err := rows.Scan(&c.ID, &c.EquipmentItemID, &c.Name, &c.FileURL, &c.FileType, &c.ExpiryDate,
			&c.Has30DayReminder, &c.Has7DayReminder, &c.UploadedBy, &c.UploadedAt); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		certs = append(certs, c)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(certs)
}

// createCertificate attaches a certificate to an equipment item
func (s *Server) createCertificate(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	companyID := auth.CompanyIDFromContext(r.Context())

	var in models.CreateCertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		http.Error(w, "name is required", 400)
		return
	}
	if strings.TrimSpace(in.FileURL) == "" {
		http.Error(w, "file_url is required", 400)
		return
	}
	if strings.TrimSpace(in.FileType) == "" {
		http.Error(w, "file_type is required", 400)
		return
	}

	q := dbFrom(r.Context(), s.DB)

	var exists bool
	if err := q.QueryRowContext(r.Context(), `
		SELECT EXISTS (SELECT 1 FROM equipment_items WHERE id = $1 AND company_id = $2)`,
		itemID, companyID).Scan(&exists); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if !exists {
		http.Error(w, "equipment item not found", http.StatusNotFound)
		return
	}

	uploadedBy := s.actorName(r.Context())

	var out models.Certificate
	err := q.QueryRowContext(r.Context(), `
		INSERT INTO certificates (equipment_item_id, name, file_url, file_type, expiry_date,
		                          has_30_day_reminder, has_7_day_reminder, uploaded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, equipment_item_id, name, file_url, file_type, expiry_date,
		          has_30_day_reminder, has_7_day_reminder, uploaded_by, uploaded_at
	`, itemID, in.Name, in.FileURL, in.FileType, in.ExpiryDate,
		in.Has30DayReminder, in.Has7DayReminder, uploadedBy).Scan(
		&out.ID, &out.EquipmentItemID, &out.Name, &out.FileURL, &out.FileType, &out.ExpiryDate,
		&out.Has30DayReminder, &out.Has7DayReminder, &out.UploadedBy, &out.UploadedAt,
	)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(out)
}

// deleteCertificate removes a certificate, scoped through its item's company
func (s *Server) deleteCertificate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	companyID := auth.CompanyIDFromContext(r.Context())

	q := dbFrom(r.Context(), s.DB)
	res, err := q.ExecContext(r.Context(), `
		DELETE FROM certificates c
		USING equipment_items i
		WHERE c.id = $1 AND c.equipment_item_id = i.id AND i.company_id = $2`, id, companyID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// actorName resolves the display name of the authenticated user for audit
// fields. Falls back to the numeric user id when the row is gone.
func (s *Server) actorName(ctx context.Context) string {
	userID := auth.UserIDFromContext(ctx)

	var first, last, email string
	q := dbFrom(ctx, s.DB)
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(first_name, ''), COALESCE(last_name, ''), email
		FROM users WHERE id = $1`, userID).Scan(&first, &last, &email)
	if err != nil {
		return fmt.Sprintf("user:%d", userID)
	}
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return email
	}
	return name
}
