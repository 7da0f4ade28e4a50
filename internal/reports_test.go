package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sitesafe-api/internal/auth"
	"sitesafe-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReportInvalidJSON(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("POST", "/reports", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(context.WithValue(req.Context(), auth.CompanyIDKey, int64(1)))

	w := httptest.NewRecorder()
	server.createReport(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateReportRequiresTitle(t *testing.T) {
	server := &Server{}

	in := models.CreateReportRequest{
		Description: "hydraulic hose is leaking",
	}
	jsonData, err := json.Marshal(in)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/reports", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(context.WithValue(req.Context(), auth.CompanyIDKey, int64(1)))

	w := httptest.NewRecorder()
	server.createReport(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "issue_title")
}

func TestCreateReportRequiresDescription(t *testing.T) {
	server := &Server{}

	in := models.CreateReportRequest{
		IssueTitle: "Leaking hose",
	}
	jsonData, err := json.Marshal(in)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/reports", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(context.WithValue(req.Context(), auth.CompanyIDKey, int64(1)))

	w := httptest.NewRecorder()
	server.createReport(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "description")
}

func TestFixReportInvalidJSON(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("POST", "/reports/1/fix", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(context.WithValue(req.Context(), auth.CompanyIDKey, int64(1)))

	w := httptest.NewRecorder()
	server.fixReport(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON")
}

func TestListReportsRejectsUnknownStatus(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("GET", "/reports?status=resolved", nil)
	req = req.WithContext(context.WithValue(req.Context(), auth.CompanyIDKey, int64(1)))

	w := httptest.NewRecorder()
	server.listReports(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid status")
}
