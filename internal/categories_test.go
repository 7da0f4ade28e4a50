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

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCategoryInvalidJSON(t *testing.T) {
	server := &Server{}

	req := httptest.NewRequest("POST", "/categories", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(context.WithValue(req.Context(), auth.CompanyIDKey, int64(1)))

	w := httptest.NewRecorder()
	server.createCategory(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCategoryRequiresName(t *testing.T) {
	server := &Server{}

	in := models.EquipmentCategory{Name: "   "}
	jsonData, err := json.Marshal(in)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/categories", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(context.WithValue(req.Context(), auth.CompanyIDKey, int64(1)))

	w := httptest.NewRecorder()
	server.createCategory(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "name is required")
}

func TestUpdateCategoryNoFields(t *testing.T) {
	server := &Server{}

	jsonData, err := json.Marshal(models.EquipmentCategory{})
	require.NoError(t, err)

	req := httptest.NewRequest("PUT", "/categories/1", bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(context.WithValue(req.Context(), auth.CompanyIDKey, int64(1)))

	// Set up chi context
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	w := httptest.NewRecorder()
	server.updateCategory(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no fields to update")
}
