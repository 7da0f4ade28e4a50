package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"sitesafe-api/internal/auth"
	"sitesafe-api/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
)

// LIST with category/text filters & pagination
func (s *Server) listEquipmentItems(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	companyID := auth.CompanyIDFromContext(r.Context())

	clauses := []string{}
	args := []interface{}{}
	arg := 1

	// company filter - use context value instead of query param
	clauses = append(clauses, fmt.Sprintf("company_id = $%d", arg))
	args = append(args, companyID)
	arg++

	// optional category filter
	if cat := strings.TrimSpace(r.URL.Query().Get("category_id")); cat != "" {
		clauses = append(clauses, fmt.Sprintf("category_id = $%d", arg))
		args = append(args, cat)
		arg++
	}

	// optional text search on name, serial and plant number
	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR serial_number ILIKE $%d OR plant_number ILIKE $%d)", arg, arg, arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}

	whereClause := ""
	if len(clauses) > 0 {
		whereClause = " WHERE " + strings.Join(clauses, " AND ")
	}

	// Build the main query with COUNT(*) OVER() to get total count
	sqlStr := fmt.Sprintf(`
		SELECT id, company_id, category_id, name, serial_number, plant_number,
		       make, model, notes, created_at, updated_at,
		       COUNT(*) OVER() as total_count
		FROM equipment_items%s`, whereClause)

	allowedSort := map[string]string{
		"id":         "id",
		"name":       "name",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	sqlStr += buildOrderBy(params.sort, allowedSort)
	sqlStr += fmt.Sprintf(" LIMIT %d OFFSET %d", params.limit, params.offset)

	q := dbFrom(r.Context(), s.DB)
	rows, err := q.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.EquipmentItem{}
	var totalCount int
	for rows.Next() {
		var it models.EquipmentItem
		if err := rows.Scan(&it.ID, &it.CompanyID, &it.CategoryID, &it.Name, &it.SerialNumber, &it.PlantNumber,
			&it.Make, &it.Model, &it.Notes, &it.CreatedAt, &it.UpdatedAt, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		it.Certificates = []models.Certificate{}
		items = append(items, it)
	}
	if err := rows.Close(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if err := s.attachCertificates(r.Context(), q, items); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	sendListResponse(w, items, totalCount, params)
}

// attachCertificates loads the certificates for a page of items in one query
func (s *Server) attachCertificates(ctx context.Context, q querier, items []models.EquipmentItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(items))
	index := make(map[int64]int, len(items))
	for i, it := range items {
		ids = append(ids, it.ID)
		index[it.ID] = i
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, equipment_item_id, name, file_url, file_type, expiry_date,
		       has_30_day_reminder, has_7_day_reminder, uploaded_by, uploaded_at
		FROM certificates
		WHERE equipment_item_id = ANY($1)
		ORDER BY equipment_item_id, expiry_date NULLS LAST, id`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Certificate
		if err := rows.Scan(&c.ID, &c.EquipmentItemID, &c.Name, &c.FileURL, &c.FileType, &c.ExpiryDate,
			&c.Has30DayReminder, &c.Has7DayReminder, &c.UploadedBy, &c.UploadedAt); err != nil {
			return err
		}
		if i, ok := index[c.EquipmentItemID]; ok {
			items[i].Certificates = append(items[i].Certificates, c)
		}
	}
	return rows.Err()
}

func (s *Server) getEquipmentItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	companyID := auth.CompanyIDFromContext(r.Context())

	var it models.EquipmentItem
	q := dbFrom(r.Context(), s.DB)
	err := q.QueryRowContext(r.Context(), `
		SELECT id, company_id, category_id, name, serial_number, plant_number,
		       make, model, notes, created_at, updated_at
		FROM equipment_items WHERE id = $1 AND company_id = $2`, id, companyID).Scan(
		&it.ID, &it.CompanyID, &it.CategoryID, &it.Name, &it.SerialNumber, &it.PlantNumber,
		&it.Make, &it.Model, &it.Notes, &it.CreatedAt, &it.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	it.Certificates = []models.Certificate{}
	items := []models.EquipmentItem{it}
	if err := s.attachCertificates(r.Context(), q, items); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items[0])
}

func (s *Server) createEquipmentItem(w http.ResponseWriter, r *http.Request) {
	var in models.CreateEquipmentItemRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		http.Error(w, "name is required", 400)
		return
	}
	if in.CategoryID <= 0 {
		http.Error(w, "category_id is required", 400)
		return
	}

	companyID := auth.CompanyIDFromContext(r.Context())
	q := dbFrom(r.Context(), s.DB)

	// The category must belong to the same company
	var exists bool
	if err := q.QueryRowContext(r.Context(), `
		SELECT EXISTS (SELECT 1 FROM equipment_categories WHERE id = $1 AND company_id = $2)`,
		in.CategoryID, companyID).Scan(&exists); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if !exists {
		http.Error(w, "category not found", 400)
		return
	}

	var out models.EquipmentItem
	err := q.QueryRowContext(r.Context(), `
		INSERT INTO equipment_items (company_id, category_id, name, serial_number, plant_number, make, model, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, company_id, category_id, name, serial_number, plant_number, make, model, notes, created_at, updated_at
	`, companyID, in.CategoryID, in.Name, nullIfEmpty(in.SerialNumber), nullIfEmpty(in.PlantNumber),
		nullIfEmpty(in.Make), nullIfEmpty(in.Model), nullIfEmpty(in.Notes)).Scan(
		&out.ID, &out.CompanyID, &out.CategoryID, &out.Name, &out.SerialNumber, &out.PlantNumber,
		&out.Make, &out.Model, &out.Notes, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	out.Certificates = []models.Certificate{}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(out)
}

func (s *Server) updateEquipmentItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	companyID := auth.CompanyIDFromContext(r.Context())

	var in models.UpdateEquipmentItemRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}

	q := dbFrom(r.Context(), s.DB)

	if in.CategoryID != nil {
		if *in.CategoryID <= 0 {
			http.Error(w, "invalid category_id", 400)
			return
		}
		var exists bool
		if err := q.QueryRowContext(r.Context(), `
			SELECT EXISTS (SELECT 1 FROM equipment_categories WHERE id = $1 AND company_id = $2)`,
			*in.CategoryID, companyID).Scan(&exists); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if !exists {
			http.Error(w, "category not found", 400)
			return
		}
	}

	type set struct {
		sql string
		val interface{}
	}
	sets := make([]set, 0, 7)
	if in.CategoryID != nil {
		sets = append(sets, set{"category_id = $%d", *in.CategoryID})
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		sets = append(sets, set{"name = $%d", *in.Name})
	}
	if in.SerialNumber != nil {
		sets = append(sets, set{"serial_number = $%d", nullIfEmpty(in.SerialNumber)})
	}
	if in.PlantNumber != nil {
		sets = append(sets, set{"plant_number = $%d", nullIfEmpty(in.PlantNumber)})
	}
	if in.Make != nil {
		sets = append(sets, set{"make = $%d", nullIfEmpty(in.Make)})
	}
	if in.Model != nil {
		sets = append(sets, set{"model = $%d", nullIfEmpty(in.Model)})
	}
	if in.Notes != nil {
		sets = append(sets, set{"notes = $%d", nullIfEmpty(in.Notes)})
	}
	if len(sets) == 0 {
		http.Error(w, "no fields to update", 400)
		return
	}

	args := make([]interface{}, 0, len(sets)+2)
	sqlStr := "UPDATE equipment_items SET "
	for i, sset := range sets {
		if i > 0 {
			sqlStr += ", "
		}
		sqlStr += fmt.Sprintf(sset.sql, i+1)
		args = append(args, sset.val)
	}
	sqlStr += fmt.Sprintf(" WHERE id = $%d AND company_id = $%d RETURNING id, company_id, category_id, name, serial_number, plant_number, make, model, notes, created_at, updated_at", len(args)+1, len(args)+2)
	args = append(args, id, companyID)

	var out models.EquipmentItem
	if err := q.QueryRowContext(r.Context(), sqlStr, args...).Scan(
		&out.ID, &out.CompanyID, &out.CategoryID, &out.Name, &out.SerialNumber, &out.PlantNumber,
		&out.Make, &out.Model, &out.Notes, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), 500)
		return
	}
	out.Certificates = []models.Certificate{}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) deleteEquipmentItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	companyID := auth.CompanyIDFromContext(r.Context())

	// Certificates go with the item (ON DELETE CASCADE)
	q := dbFrom(r.Context(), s.DB)
	res, err := q.ExecContext(r.Context(), `DELETE FROM equipment_items WHERE id = $1 AND company_id = $2`, id, companyID)
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
