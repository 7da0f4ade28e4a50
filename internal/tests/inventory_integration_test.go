//go:build integration

package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"sitesafe-api/internal/models"
	"sitesafe-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryDeleteGuard(t *testing.T) {
	testutil.RequireIntegration(t)

	admin := testToken(t, 1, 1, []string{"administrator"})

	w := doJSON(t, "POST", "/categories", admin, map[string]string{
		"name":        "Access Towers",
		"description": "Mobile access towers and podiums",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var cat models.EquipmentCategory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cat))

	w = doJSON(t, "POST", "/equipment", admin, models.CreateEquipmentItemRequest{
		CategoryID: cat.ID,
		Name:       "Podium Step 2m",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var item models.EquipmentItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))

	// A category that still owns items cannot be removed
	w = doJSON(t, "DELETE", fmt.Sprintf("/categories/%d", cat.ID), admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "still referenced by 1 equipment item")

	w = doJSON(t, "GET", fmt.Sprintf("/categories/%d", cat.ID), admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Once the item is gone the delete goes through
	w = doJSON(t, "DELETE", fmt.Sprintf("/equipment/%d", item.ID), admin, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, "DELETE", fmt.Sprintf("/categories/%d", cat.ID), admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, "GET", fmt.Sprintf("/categories/%d", cat.ID), admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEquipmentCertificateRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)

	admin := testToken(t, 1, 1, []string{"administrator"})

	w := doJSON(t, "POST", "/categories", admin, map[string]string{"name": "Harnesses"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var cat models.EquipmentCategory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cat))

	serial := "HN-7731"
	w = doJSON(t, "POST", "/equipment", admin, models.CreateEquipmentItemRequest{
		CategoryID:   cat.ID,
		Name:         "Full Body Harness 7",
		SerialNumber: &serial,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var item models.EquipmentItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))

	// Attach the later-expiring certificate first so the reload order can
	// only come from the expiry date, not insertion order.
	laterExpiry := time.Date(2027, time.June, 1, 0, 0, 0, 0, time.UTC)
	w = doJSON(t, "POST", fmt.Sprintf("/equipment/%d/certificates", item.ID), admin, models.CreateCertificateRequest{
		Name:             "LOLER Thorough Examination",
		FileURL:          "https://files.sitesafe.local/certs/hn-7731-loler.pdf",
		FileType:         "application/pdf",
		ExpiryDate:       &laterExpiry,
		Has30DayReminder: true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var later models.Certificate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &later))

	earlierExpiry := time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)
	w = doJSON(t, "POST", fmt.Sprintf("/equipment/%d/certificates", item.ID), admin, models.CreateCertificateRequest{
		Name:            "Pre-Use Inspection",
		FileURL:         "https://files.sitesafe.local/certs/hn-7731-inspection.pdf",
		FileType:        "application/pdf",
		ExpiryDate:      &earlierExpiry,
		Has7DayReminder: true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var earlier models.Certificate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &earlier))

	// Reload and compare against what the create calls returned
	w = doJSON(t, "GET", fmt.Sprintf("/equipment/%d", item.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got models.EquipmentItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))

	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, item.CompanyID, got.CompanyID)
	assert.Equal(t, item.CategoryID, got.CategoryID)
	assert.Equal(t, item.Name, got.Name)
	require.NotNil(t, got.SerialNumber)
	assert.Equal(t, serial, *got.SerialNumber)

	// Earliest expiry sorts first regardless of insertion order
	require.Len(t, got.Certificates, 2)
	assert.Equal(t, earlier, got.Certificates[0])
	assert.Equal(t, later, got.Certificates[1])
}
