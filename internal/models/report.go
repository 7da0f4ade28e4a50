package models

import "time"

// Report status values. A report starts open and moves to exactly one of
// the terminal states; there is no transition out of a terminal state.
const (
	ReportStatusOpen      = "open"
	ReportStatusFixed     = "fixed"
	ReportStatusDiscarded = "discarded"
)

// Report action-log verbs
const (
	ReportActionCreated   = "created"
	ReportActionFixed     = "fixed"
	ReportActionDiscarded = "discarded"
)

// IsValidReportStatus checks if a status is one of the known lifecycle states
func IsValidReportStatus(status string) bool {
	switch status {
	case ReportStatusOpen, ReportStatusFixed, ReportStatusDiscarded:
		return true
	}
	return false
}

// IsTerminalReportStatus reports whether a status permits no further transitions
func IsTerminalReportStatus(status string) bool {
	return status == ReportStatusFixed || status == ReportStatusDiscarded
}

// Capability sets per report operation. Keeping them in one place avoids
// the role lists drifting between call sites.
var (
	// ReportResolverRoles may mark a report fixed or discarded. Company
	// owners are included alongside mechanics, administrators and
	// management.
	ReportResolverRoles = []string{RoleMechanic, RoleAdministrator, RoleManagement, RoleCompany}

	// ReportDeleterRoles may hard-delete a resolved or discarded report.
	ReportDeleterRoles = []string{RoleAdministrator, RoleManagement}

	// InventoryWriterRoles may mutate categories, items and certificates.
	InventoryWriterRoles = []string{RoleAdministrator, RoleManagement, RoleCompany}

	// ReminderViewerRoles see the certificate-reminder list and badge count.
	ReminderViewerRoles = []string{RoleAdministrator, RoleManagement, RoleCompany}
)

// EquipmentReport is a fault ticket raised against equipment. The equipment
// link is optional: a report with no equipment reference is a valid
// free-text report.
type EquipmentReport struct {
	ID             int64          `json:"id"`
	CompanyID      int64          `json:"company_id"`
	EquipmentID    *int64         `json:"equipment_id,omitempty"`
	EquipmentName  *string        `json:"equipment_name,omitempty"`
	IssueTitle     string         `json:"issue_title"`
	Description    string         `json:"description"`
	ReportedBy     string         `json:"reported_by"`
	ReportedAt     time.Time      `json:"reported_at"`
	Status         string         `json:"status"`
	FixedBy        *string        `json:"fixed_by,omitempty"`
	FixedAt        *time.Time     `json:"fixed_at,omitempty"`
	FixNotes       *string        `json:"fix_notes,omitempty"`
	DiscardedBy    *string        `json:"discarded_by,omitempty"`
	DiscardedAt    *time.Time     `json:"discarded_at,omitempty"`
	DiscardNotes   *string        `json:"discard_notes,omitempty"`
	Actions        []ReportAction `json:"actions,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ReportAction is one entry of a report's append-only action log. Entries
// are only ever inserted; nothing in the codebase updates or deletes them.
type ReportAction struct {
	ID          int64     `json:"id"`
	ReportID    int64     `json:"report_id"`
	Action      string    `json:"action"`
	PerformedBy string    `json:"performed_by"`
	PerformedAt time.Time `json:"performed_at"`
	Notes       *string   `json:"notes,omitempty"`
}

// CreateReportRequest represents the request body for raising a report
type CreateReportRequest struct {
	EquipmentID   *int64  `json:"equipment_id,omitempty"`
	EquipmentName *string `json:"equipment_name,omitempty"`
	IssueTitle    string  `json:"issue_title" validate:"required"`
	Description   string  `json:"description" validate:"required"`
}

// ResolveReportRequest represents the request body for fixing or discarding
// a report
type ResolveReportRequest struct {
	Notes *string `json:"notes,omitempty"`
}
