package internal

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"sitesafe-api/internal/auth"
	"sitesafe-api/internal/models"

	"github.com/go-chi/chi/v5"
)

// listCompanies handles listing all companies (head office only)
func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request) {
	// Only head office can access companies
	if !auth.IsHeadOffice(r.Context()) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	query := `
		SELECT id, name, created_at, updated_at
		FROM companies
		ORDER BY name`

	rows, err := s.DB.QueryContext(r.Context(), query)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		var c models.Company
		err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			http.Error(w, "Failed to scan company", http.StatusInternalServerError)
			return
		}
		companies = append(companies, c)
	}

	if err := rows.Err(); err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(companies)
}

// getCompany handles getting a specific company (head office only)
func (s *Server) getCompany(w http.ResponseWriter, r *http.Request) {
	// Only head office can access companies
	if !auth.IsHeadOffice(r.Context()) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	companyID := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(companyID, 10, 64)
	if err != nil {
		http.Error(w, "Invalid company ID", http.StatusBadRequest)
		return
	}

	query := `
		SELECT id, name, created_at, updated_at
		FROM companies
		WHERE id = $1`

	var c models.Company
	err = s.DB.QueryRowContext(r.Context(), query, id).Scan(
		&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		http.Error(w, "Company not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// createCompany handles creating a new company (head office only)
func (s *Server) createCompany(w http.ResponseWriter, r *http.Request) {
	// Only head office can create companies
	if !auth.IsHeadOffice(r.Context()) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	var req models.CreateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Validate request
	if req.Name == "" {
		http.Error(w, "Company name is required", http.StatusBadRequest)
		return
	}

	// Insert company
	query := `
		INSERT INTO companies (name)
		VALUES ($1)
		RETURNING id, created_at, updated_at`

	var c models.Company
	err := s.DB.QueryRowContext(r.Context(), query, req.Name).Scan(
		&c.ID, &c.CreatedAt, &c.UpdatedAt,
	)

	if err != nil {
		if err.Error() == `pq: duplicate key value violates unique constraint "companies_name_key"` {
			http.Error(w, "Company with this name already exists", http.StatusConflict)
			return
		}
		http.Error(w, "Failed to create company", http.StatusInternalServerError)
		return
	}

	c.Name = req.Name

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(c)
}

// updateCompany handles updating a company (head office only)
func (s *Server) updateCompany(w http.ResponseWriter, r *http.Request) {
	// Only head office can update companies
	if !auth.IsHeadOffice(r.Context()) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	companyID := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(companyID, 10, 64)
	if err != nil {
		http.Error(w, "Invalid company ID", http.StatusBadRequest)
		return
	}

	var req models.CreateCompanyRequest // Same structure for update
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Validate request
	if req.Name == "" {
		http.Error(w, "Company name is required", http.StatusBadRequest)
		return
	}

	// Update company
	query := `
		UPDATE companies
		SET name = $1, updated_at = now()
		WHERE id = $2
		RETURNING id, name, created_at, updated_at`

	var c models.Company
	err = s.DB.QueryRowContext(r.Context(), query, req.Name, id).Scan(
		&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		http.Error(w, "Company not found", http.StatusNotFound)
		return
	}
	if err != nil {
		if err.Error() == `pq: duplicate key value violates unique constraint "companies_name_key"` {
			http.Error(w, "Company with this name already exists", http.StatusConflict)
			return
		}
		http.Error(w, "Failed to update company", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// deleteCompany handles deleting a company (head office only)
func (s *Server) deleteCompany(w http.ResponseWriter, r *http.Request) {
	// Only head office can delete companies
	if !auth.IsHeadOffice(r.Context()) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	companyID := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(companyID, 10, 64)
	if err != nil {
		http.Error(w, "Invalid company ID", http.StatusBadRequest)
		return
	}

	// Prevent deleting the head-office tenant
	if id == 1 {
		http.Error(w, "Cannot delete head-office company", http.StatusBadRequest)
		return
	}

	// Check if company has users
	var userCount int
	countQuery := `SELECT COUNT(*) FROM users WHERE company_id = $1`
	err = s.DB.QueryRowContext(r.Context(), countQuery, id).Scan(&userCount)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if userCount > 0 {
		http.Error(w, "Cannot delete company with existing users", http.StatusBadRequest)
		return
	}

	// Check if company has other data (categories, equipment, reports)
	tables := []string{"equipment_categories", "equipment_items", "equipment_reports"}
	for _, table := range tables {
		var dataCount int
		query := `SELECT COUNT(*) FROM ` + table + ` WHERE company_id = $1`
		err = s.DB.QueryRowContext(r.Context(), query, id).Scan(&dataCount)
		if err != nil {
			http.Error(w, "Database error", http.StatusInternalServerError)
			return
		}

		if dataCount > 0 {
			http.Error(w, "Cannot delete company with existing data", http.StatusBadRequest)
			return
		}
	}

	// Delete the company
	deleteQuery := `DELETE FROM companies WHERE id = $1`
	result, err := s.DB.ExecContext(r.Context(), deleteQuery, id)
	if err != nil {
		http.Error(w, "Failed to delete company", http.StatusInternalServerError)
		return
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	if rowsAffected == 0 {
		http.Error(w, "Company not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// getCompanyStats returns statistics about a company (head office only)
func (s *Server) getCompanyStats(w http.ResponseWriter, r *http.Request) {
	// Only head office can access company stats
	if !auth.IsHeadOffice(r.Context()) {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	companyID := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(companyID, 10, 64)
	if err != nil {
		http.Error(w, "Invalid company ID", http.StatusBadRequest)
		return
	}

	// Get company details
	var c models.Company
	companyQuery := `SELECT id, name, created_at, updated_at FROM companies WHERE id = $1`
	err = s.DB.QueryRowContext(r.Context(), companyQuery, id).Scan(
		&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		http.Error(w, "Company not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	// Get counts for each entity type
	type Stats struct {
		Company      models.Company `json:"company"`
		Users        int            `json:"users"`
		Categories   int            `json:"categories"`
		Equipment    int            `json:"equipment"`
		Certificates int            `json:"certificates"`
		OpenReports  int            `json:"open_reports"`
	}

	var stats Stats
	stats.Company = c

	// Count users
	err = s.DB.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM users WHERE company_id = $1", id).Scan(&stats.Users)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	// Count categories
	err = s.DB.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM equipment_categories WHERE company_id = $1", id).Scan(&stats.Categories)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	// Count equipment items
	err = s.DB.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM equipment_items WHERE company_id = $1", id).Scan(&stats.Equipment)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	// Count certificates through their parent items
	err = s.DB.QueryRowContext(r.Context(), `
		SELECT COUNT(*) FROM certificates c
		JOIN equipment_items i ON i.id = c.equipment_item_id
		WHERE i.company_id = $1`, id).Scan(&stats.Certificates)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	// Count open reports
	err = s.DB.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM equipment_reports WHERE company_id = $1 AND status = 'open'", id).Scan(&stats.OpenReports)
	if err != nil {
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
