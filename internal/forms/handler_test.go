package forms

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/lexpoint/leadforms/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *Registry) {
	t.Helper()
	reg, _ := newSeededRegistry(t)
	h := NewHandler(reg, logging.Discard())
	r := chi.NewRouter()
	r.Get("/forms/resolve", h.Resolve)
	r.Mount("/admin/forms", h.AdminRoutes())
	return r, reg
}

func TestResolveHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/forms/resolve?pageId=familia", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ResolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "familia", resp.Form.ID)
	assert.Equal(t, DefaultTexts().SubmitLabel, resp.Form.FormTexts.SubmitLabel)
	require.NotEmpty(t, resp.Plan.Sections)
	assert.Equal(t, SectionNamePhone, resp.Plan.Sections[0].Kind)
}

func TestResolveHandlerEmptyStoreFallsBack(t *testing.T) {
	h := NewHandler(NewRegistry(NewMemoryStore(nil), logging.Discard()), logging.Discard())

	rec := httptest.NewRecorder()
	h.Resolve(rec, httptest.NewRequest(http.MethodGet, "/forms/resolve?formId=nope", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"fallback"`)
}

func TestAdminCreateAndGet(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"id":"consumidor","name":"Consumidor","linkedPages":["consumidor"]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/forms/", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/forms/consumidor", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg FormConfiguration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Len(t, cfg.AllFields, 5)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/forms/", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminUpdateValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"name":"Trabalhista","allFields":[{"id":"email","name":"email","label":"E-mail","type":"text","isDefault":true}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/forms/trabalhista", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/forms/missing", strings.NewReader(`{"name":"x"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/forms/trabalhista", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminSetDefault(t *testing.T) {
	router, reg := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/forms/familia/default", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "familia", reg.List(httptest.NewRequest(http.MethodGet, "/", nil).Context()).DefaultFormID)
}
