package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidReportStatus(t *testing.T) {
	tests := []struct {
		status string
		valid  bool
	}{
		{ReportStatusOpen, true},
		{ReportStatusFixed, true},
		{ReportStatusDiscarded, true},
		{"resolved", false},
		{"closed", false},
		{"OPEN", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidReportStatus(tt.status))
		})
	}
}

func TestIsTerminalReportStatus(t *testing.T) {
	assert.False(t, IsTerminalReportStatus(ReportStatusOpen))
	assert.True(t, IsTerminalReportStatus(ReportStatusFixed))
	assert.True(t, IsTerminalReportStatus(ReportStatusDiscarded))
	assert.False(t, IsTerminalReportStatus("unknown"))
}

func TestReportCapabilitySets(t *testing.T) {
	t.Run("mechanics resolve but do not delete", func(t *testing.T) {
		assert.Contains(t, ReportResolverRoles, RoleMechanic)
		assert.NotContains(t, ReportDeleterRoles, RoleMechanic)
	})

	t.Run("operatives hold no elevated capability", func(t *testing.T) {
		for _, set := range [][]string{ReportResolverRoles, ReportDeleterRoles, InventoryWriterRoles, ReminderViewerRoles} {
			assert.NotContains(t, set, RoleOperative)
		}
	})

	t.Run("administrators hold every capability", func(t *testing.T) {
		for _, set := range [][]string{ReportResolverRoles, ReportDeleterRoles, InventoryWriterRoles, ReminderViewerRoles} {
			assert.Contains(t, set, RoleAdministrator)
		}
	})
}
