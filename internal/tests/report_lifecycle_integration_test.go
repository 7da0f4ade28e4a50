//go:build integration

package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"sitesafe-api/internal/models"
	"sitesafe-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	testServer.Router.ServeHTTP(w, req)
	return w
}

func TestReportLifecycle(t *testing.T) {
	testutil.RequireIntegration(t)

	operative := testToken(t, 1, 1, []string{"operative"})
	mechanic := testToken(t, 1, 1, []string{"mechanic"})
	admin := testToken(t, 1, 1, []string{"administrator"})

	t.Run("FixPath", func(t *testing.T) {
		// Anyone authenticated can raise a report
		w := doJSON(t, "POST", "/reports", operative, models.CreateReportRequest{
			IssueTitle:  "Hydraulic leak on lift 3",
			Description: "Fluid pooling under the scissor lift after use.",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var rep models.EquipmentReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
		assert.Equal(t, models.ReportStatusOpen, rep.Status)
		require.Len(t, rep.Actions, 1)
		assert.Equal(t, models.ReportActionCreated, rep.Actions[0].Action)

		// Operatives cannot resolve
		w = doJSON(t, "POST", fmt.Sprintf("/reports/%d/fix", rep.ID), operative, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		// Open reports cannot be deleted
		w = doJSON(t, "DELETE", fmt.Sprintf("/reports/%d", rep.ID), admin, nil)
		assert.Equal(t, http.StatusConflict, w.Code)

		// Mechanic fixes the report
		notes := "Replaced the worn hose and bled the line."
		w = doJSON(t, "POST", fmt.Sprintf("/reports/%d/fix", rep.ID), mechanic, models.ResolveReportRequest{Notes: &notes})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var fixed models.EquipmentReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fixed))
		assert.Equal(t, models.ReportStatusFixed, fixed.Status)
		require.NotNil(t, fixed.FixedAt)
		require.Len(t, fixed.Actions, 2)
		assert.Equal(t, models.ReportActionFixed, fixed.Actions[1].Action)

		// Terminal states admit no further transitions
		w = doJSON(t, "POST", fmt.Sprintf("/reports/%d/fix", rep.ID), mechanic, nil)
		assert.Equal(t, http.StatusConflict, w.Code)

		w = doJSON(t, "POST", fmt.Sprintf("/reports/%d/discard", rep.ID), mechanic, nil)
		assert.Equal(t, http.StatusConflict, w.Code)

		// Fixed reports can be deleted by administrators
		w = doJSON(t, "DELETE", fmt.Sprintf("/reports/%d", rep.ID), admin, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doJSON(t, "GET", fmt.Sprintf("/reports/%d", rep.ID), admin, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("DiscardPath", func(t *testing.T) {
		w := doJSON(t, "POST", "/reports", operative, models.CreateReportRequest{
			IssueTitle:  "Frayed strap on harness 12",
			Description: "Shoulder strap stitching is coming apart.",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var rep models.EquipmentReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))

		w = doJSON(t, "POST", fmt.Sprintf("/reports/%d/discard", rep.ID), admin, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var discarded models.EquipmentReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &discarded))
		assert.Equal(t, models.ReportStatusDiscarded, discarded.Status)
		require.NotNil(t, discarded.DiscardedAt)

		// Mechanics cannot delete reports
		w = doJSON(t, "DELETE", fmt.Sprintf("/reports/%d", rep.ID), mechanic, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = doJSON(t, "DELETE", fmt.Sprintf("/reports/%d", rep.ID), admin, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("ListFilter", func(t *testing.T) {
		w := doJSON(t, "POST", "/reports", operative, models.CreateReportRequest{
			IssueTitle:  "Guard rail missing bolt",
			Description: "North scaffold guard rail is loose at the second lift.",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		w = doJSON(t, "GET", "/reports?status=open", operative, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data  []models.EquipmentReport `json:"data"`
			Total int                      `json:"total"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.GreaterOrEqual(t, resp.Total, 1)
		for _, rep := range resp.Data {
			assert.Equal(t, models.ReportStatusOpen, rep.Status)
		}
	})
}
