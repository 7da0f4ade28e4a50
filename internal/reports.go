package internal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sitesafe-api/internal/auth"
	"sitesafe-api/internal/models"

	"github.com/go-chi/chi/v5"
)

const reportColumns = `id, company_id, equipment_id, equipment_name, issue_title, description,
	reported_by, reported_at, status, fixed_by, fixed_at, fix_notes,
	discarded_by, discarded_at, discard_notes, created_at, updated_at`

func scanReport(row interface{ Scan(...any) error }, rep *models.EquipmentReport, extra ...any) error {
	dest := []any{
		&rep.ID, &rep.CompanyID, &rep.EquipmentID, &rep.EquipmentName, &rep.IssueTitle, &rep.Description,
		&rep.ReportedBy, &rep.ReportedAt, &rep.Status, &rep.FixedBy, &rep.FixedAt, &rep.FixNotes,
		&rep.DiscardedBy, &rep.DiscardedAt, &rep.DiscardNotes, &rep.CreatedAt, &rep.UpdatedAt,
	}
	dest = append(dest, extra...)
	return row.Scan(dest...)
}

// createReport raises a new fault report. Any authenticated user can raise
// one; the report opens in 'open' and gets a 'created' log entry in the
// same transaction.
func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	var in models.CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid JSON", 400)
		return
	}
	if strings.TrimSpace(in.IssueTitle) == "" {
		http.Error(w, "issue_title is required", 400)
		return
	}
	if strings.TrimSpace(in.Description) == "" {
		http.Error(w, "description is required", 400)
		return
	}

	companyID := auth.CompanyIDFromContext(r.Context())
	actor := s.actorName(r.Context())

	equipmentName := in.EquipmentName
	if in.EquipmentID != nil {
		// Snapshot the equipment name at report time; the link is advisory
		// and the report survives equipment deletion.
		var name string
		err := dbFrom(r.Context(), s.DB).QueryRowContext(r.Context(), `
			SELECT name FROM equipment_items WHERE id = $1 AND company_id = $2`,
			*in.EquipmentID, companyID).Scan(&name)
		if err == sql.ErrNoRows {
			http.Error(w, "equipment not found", 400)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		equipmentName = &name
	}

	tx, err := s.DB.BeginTx(r.Context(), nil)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	var out models.EquipmentReport
	err = scanReport(tx.QueryRowContext(r.Context(), `
		INSERT INTO equipment_reports (company_id, equipment_id, equipment_name, issue_title, description, reported_by, status)
		VALUES ($1,$2,$3,$4,$5,$6,'open')
		RETURNING `+reportColumns,
		companyID, in.EquipmentID, nullIfEmpty(equipmentName), in.IssueTitle, in.Description, actor), &out)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	var action models.ReportAction
	err = tx.QueryRowContext(r.Context(), `
		INSERT INTO report_actions (report_id, action, performed_by)
		VALUES ($1,$2,$3)
		RETURNING id, report_id, action, performed_by, performed_at, notes`,
		out.ID, models.ReportActionCreated, actor).Scan(
		&action.ID, &action.ReportID, &action.Action, &action.PerformedBy, &action.PerformedAt, &action.Notes)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if err := tx.Commit(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	out.Actions = []models.ReportAction{action}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(out)
}

// listReports lists the company's reports, newest first, optionally
// filtered by status.
func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	params := parseListParams(r)
	companyID := auth.CompanyIDFromContext(r.Context())

	clauses := []string{}
	args := []interface{}{}
	arg := 1

	clauses = append(clauses, fmt.Sprintf("company_id = $%d", arg))
	args = append(args, companyID)
	arg++

	// "all" and an absent filter both mean every status
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" && status != "all" {
		if !models.IsValidReportStatus(status) {
			http.Error(w, "invalid status filter", 400)
			return
		}
		clauses = append(clauses, fmt.Sprintf("status = $%d", arg))
		args = append(args, status)
		arg++
	}

	if params.q != "" {
		clauses = append(clauses, fmt.Sprintf("(issue_title ILIKE $%d OR description ILIKE $%d)", arg, arg))
		args = append(args, "%"+params.q+"%")
		arg++
	}

	sqlStr := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() as total_count
		FROM equipment_reports WHERE %s`, reportColumns, strings.Join(clauses, " AND "))

	allowedSort := map[string]string{
		"id":          "id",
		"reported_at": "reported_at",
		"status":      "status",
		"created_at":  "created_at",
		"updated_at":  "updated_at",
	}
	if params.sort == "" {
		sqlStr += " ORDER BY created_at DESC"
	} else {
		sqlStr += buildOrderBy(params.sort, allowedSort)
	}
	sqlStr += fmt.Sprintf(" LIMIT %d OFFSET %d", params.limit, params.offset)

	q := dbFrom(r.Context(), s.DB)
	rows, err := q.QueryContext(r.Context(), sqlStr, args...)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	reports := []interface{}{}
	var totalCount int
	for rows.Next() {
		var rep models.EquipmentReport
		if err := scanReport(rows, &rep, &totalCount); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		reports = append(reports, rep)
	}

	sendListResponse(w, reports, totalCount, params)
}

// getReport returns a single report with its full action log.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	companyID := auth.CompanyIDFromContext(r.Context())

	q := dbFrom(r.Context(), s.DB)
	var rep models.EquipmentReport
	err := scanReport(q.QueryRowContext(r.Context(), `
		SELECT `+reportColumns+`
		FROM equipment_reports WHERE id = $1 AND company_id = $2`, id, companyID), &rep)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	actions, err := s.loadReportActions(r, rep.ID)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	rep.Actions = actions

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
}

func (s *Server) loadReportActions(r *http.Request, reportID int64) ([]models.ReportAction, error) {
	q := dbFrom(r.Context(), s.DB)
	rows, err := q.QueryContext(r.Context(), `
		SELECT id, report_id, action, performed_by, performed_at, notes
		FROM report_actions WHERE report_id = $1
		ORDER BY performed_at, id`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	actions := []models.ReportAction{}
	for rows.Next() {
		var a models.ReportAction
		if err := rows.Scan(&a.ID, &a.ReportID, &a.Action, &a.PerformedBy, &a.PerformedAt, &a.Notes); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// fixReport marks an open report fixed.
func (s *Server) fixReport(w http.ResponseWriter, r *http.Request) {
	s.resolveReport(w, r, models.ReportStatusFixed)
}

// discardReport marks an open report discarded.
func (s *Server) discardReport(w http.ResponseWriter, r *http.Request) {
	s.resolveReport(w, r, models.ReportStatusDiscarded)
}

// resolveReport moves an open report to a terminal state. The status
// predicate on the UPDATE guarantees only one transition can ever win; a
// miss is disambiguated afterwards into 404 vs 409.
func (s *Server) resolveReport(w http.ResponseWriter, r *http.Request, target string) {
	id := chi.URLParam(r, "id")
	companyID := auth.CompanyIDFromContext(r.Context())

	var in models.ResolveReportRequest
	if r.Body != nil {
		// An empty body is fine, notes are optional
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid JSON", 400)
			return
		}
	}

	actor := s.actorName(r.Context())

	var sqlStr string
	var verb string
	switch target {
	case models.ReportStatusFixed:
		verb = models.ReportActionFixed
		sqlStr = `
			UPDATE equipment_reports
			SET status = 'fixed', fixed_by = $3, fixed_at = now(), fix_notes = $4, updated_at = now()
			WHERE id = $1 AND company_id = $2 AND status = 'open'
			RETURNING ` + reportColumns
	case models.ReportStatusDiscarded:
		verb = models.ReportActionDiscarded
		sqlStr = `
			UPDATE equipment_reports
			SET status = 'discarded', discarded_by = $3, discarded_at = now(), discard_notes = $4, updated_at = now()
			WHERE id = $1 AND company_id = $2 AND status = 'open'
			RETURNING ` + reportColumns
	default:
		http.Error(w, "invalid target status", 500)
		return
	}

	tx, err := s.DB.BeginTx(r.Context(), nil)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	var out models.EquipmentReport
	err = scanReport(tx.QueryRowContext(r.Context(), sqlStr, id, companyID, actor, nullIfEmpty(in.Notes)), &out)
	if err == sql.ErrNoRows {
		// Either the report does not exist for this company, or it is no
		// longer open. Look again to report the right failure.
		var status string
		err2 := dbFrom(r.Context(), s.DB).QueryRowContext(r.Context(), `
			SELECT status FROM equipment_reports WHERE id = $1 AND company_id = $2`, id, companyID).Scan(&status)
		if err2 == sql.ErrNoRows {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err2 != nil {
			http.Error(w, err2.Error(), 500)
			return
		}
		http.Error(w, fmt.Sprintf("report is %s, only open reports can be %s", status, verb), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if _, err := tx.ExecContext(r.Context(), `
		INSERT INTO report_actions (report_id, action, performed_by, notes)
		VALUES ($1,$2,$3,$4)`, out.ID, verb, actor, nullIfEmpty(in.Notes)); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	if err := tx.Commit(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}

	actions, err := s.loadReportActions(r, out.ID)
	if err == nil {
		out.Actions = actions
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// deleteReport removes a resolved report. Open reports cannot be deleted;
// they must be fixed or discarded first.
func (s *Server) deleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	companyID := auth.CompanyIDFromContext(r.Context())

	q := dbFrom(r.Context(), s.DB)

	var status string
	err := q.QueryRowContext(r.Context(), `
		SELECT status FROM equipment_reports WHERE id = $1 AND company_id = $2`, id, companyID).Scan(&status)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if !models.IsTerminalReportStatus(status) {
		http.Error(w, "open reports cannot be deleted", http.StatusConflict)
		return
	}

	// The action log rows go with the report (ON DELETE CASCADE)
	res, err := q.ExecContext(r.Context(), `
		DELETE FROM equipment_reports WHERE id = $1 AND company_id = $2 AND status <> 'open'`, id, companyID)
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
