package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexpoint/leadforms/internal/events"
	"github.com/lexpoint/leadforms/internal/forms"
	"github.com/lexpoint/leadforms/internal/intake"
	"github.com/lexpoint/leadforms/internal/leads"
	"github.com/lexpoint/leadforms/internal/nonblocking"
	"github.com/lexpoint/leadforms/internal/observability/metrics"
	"github.com/lexpoint/leadforms/internal/webhook"
	"github.com/lexpoint/leadforms/pkg/logging"
)

const testSecret = "router-secret"

type routerFixture struct {
	handler http.Handler
	repo    *leads.InMemoryRepository
	outbox  *events.MemoryOutbox
	runner  *nonblocking.Runner
}

func newTestRouter(t *testing.T) *routerFixture {
	t.Helper()

	logger := logging.Discard()
	reg := prometheus.NewRegistry()
	m := metrics.NewLeadMetrics(reg)
	runner := nonblocking.NewRunner(logger, m)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = runner.Wait(ctx)
	})

	repo := leads.NewInMemoryRepository()
	registry := forms.NewRegistry(forms.NewMemoryStore(nil), logger)
	mappings := webhook.NewMemoryMappingStore()
	outbox := events.NewMemoryOutbox()

	webhookSvc := webhook.NewService(repo, mappings, runner, logger, webhook.WithMetrics(m))
	intakeSvc := intake.NewService(intake.Config{MinFillTime: time.Second}, intake.Deps{
		Forms:   registry,
		Leads:   repo,
		Runner:  runner,
		Metrics: m,
	}, logger)

	cfg := &Config{
		Logger:             logger,
		FormsHandler:       forms.NewHandler(registry, logger),
		IntakeHandler:      intake.NewHandler(intakeSvc, logger),
		WebhookHandler:     webhook.NewHandler(webhookSvc, mappings, logger),
		EventsHandler:      events.NewHandler(outbox, events.NewMemoryProcessedStore(), logger),
		LeadsHandler:       leads.NewHandler(repo, logger),
		AdminAuthSecret:    testSecret,
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: []string{"https://firm.example"},
		RateLimitRPS:       100,
		RateLimitBurst:     100,
	}
	return &routerFixture{handler: New(cfg), repo: repo, outbox: outbox, runner: runner}
}

func (f *routerFixture) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "200.10.20.30:5555"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestRouterHealthEndpoint(t *testing.T) {
	f := newTestRouter(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterResolveFallsBackToDefaultForm(t *testing.T) {
	f := newTestRouter(t)

	rec := f.do(t, http.MethodGet, "/forms/resolve?formId=missing", "", map[string]string{"Origin": "https://firm.example"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://firm.example", rec.Header().Get("Access-Control-Allow-Origin"))
	var resp forms.ResolveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Form)
	assert.Equal(t, "fallback", resp.Form.ID)
}

func TestRouterWebhookStoresLead(t *testing.T) {
	f := newTestRouter(t)

	rec := f.do(t, http.MethodPost, "/webhooks/leads", `{"nome":"Carla Souza","telefone":"11977776666","email":"carla@example.com"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	var resp webhook.ReceiveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	lead, err := f.repo.GetByID(context.Background(), resp.LeadID)
	require.NoError(t, err)
	assert.Equal(t, "Carla Souza", lead.Name)
	assert.Equal(t, leads.EventTypeWebhookReceived, lead.EventType)
}

func TestRouterWebhookRejectsInvalidJSON(t *testing.T) {
	f := newTestRouter(t)

	rec := f.do(t, http.MethodPost, "/webhooks/leads", `{"nome":`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterSubmitForm(t *testing.T) {
	f := newTestRouter(t)
	body := `{
		"name": "Bruno Alves",
		"phone": "(21) 99999-0000",
		"email": "bruno@example.com",
		"message": "Preciso de ajuda com um contrato",
		"customFields": {},
		"formConfig": {"id": "fallback", "name": "Formulário de contato"},
		"antiBot": {"hp": "", "elapsedMs": 9000},
		"page": {"url": "https://firm.example/contato", "sessionId": "sess-9", "visitorId": "vis-9"}
	}`

	rec := f.do(t, http.MethodPost, "/forms/submit", body, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Success bool   `json:"success"`
		LeadID  string `json:"leadId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	lead, err := f.repo.GetByID(context.Background(), resp.LeadID)
	require.NoError(t, err)
	assert.Equal(t, leads.EventTypeFormSubmission, lead.EventType)
	assert.Equal(t, "sess-9", lead.SessionID)
}

func TestRouterConversionQueuesOutboxEntry(t *testing.T) {
	f := newTestRouter(t)
	body := `{"sessionId":"sess-1","visitorId":"vis-1","eventType":"form_submission","formId":"fallback","timestamp":"2026-03-01T12:00:00Z","conversionValue":1}`

	first := f.do(t, http.MethodPost, "/events/conversion", body, nil)
	second := f.do(t, http.MethodPost, "/events/conversion", body, nil)

	assert.Equal(t, http.StatusAccepted, first.Code, first.Body.String())
	assert.Equal(t, http.StatusOK, second.Code)

	pending, err := f.outbox.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRouterAdminRequiresToken(t *testing.T) {
	f := newTestRouter(t)

	for _, path := range []string{"/admin/forms", "/admin/leads", "/admin/webhook/mappings"} {
		rec := f.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRouterAdminMappingsAndLeads(t *testing.T) {
	f := newTestRouter(t)
	auth := map[string]string{"Authorization": adminToken(t)}

	put := f.do(t, http.MethodPut, "/admin/webhook/mappings", `[{"webhookField":"full_name","systemField":"name"}]`, auth)
	require.Equal(t, http.StatusOK, put.Code, put.Body.String())

	rec := f.do(t, http.MethodPost, "/webhooks/leads", `{"full_name":"Davi Rocha","phone":"11955554444"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	list := f.do(t, http.MethodGet, "/admin/leads?event_type=webhook_received", "", auth)
	require.Equal(t, http.StatusOK, list.Code)
	var resp leads.ListLeadsResponse
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Davi Rocha", resp.Leads[0].Name)

	get := f.do(t, http.MethodGet, "/admin/leads/"+resp.Leads[0].ID, "", auth)
	assert.Equal(t, http.StatusOK, get.Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	f := newTestRouter(t)
	f.do(t, http.MethodPost, "/webhooks/leads", `{"name":"Eva","phone":"11911112222"}`, nil)

	rec := f.do(t, http.MethodGet, "/metrics", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `leadforms_webhook_inbound_total{status="accepted"} 1`)
}

func TestRouterSubmitPreflightFromAllowedOrigin(t *testing.T) {
	f := newTestRouter(t)

	rec := f.do(t, http.MethodOptions, "/forms/submit", "", map[string]string{
		"Origin":                        "https://firm.example",
		"Access-Control-Request-Method": http.MethodPost,
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://firm.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterSubmitPreflightFromUnknownOrigin(t *testing.T) {
	f := newTestRouter(t)

	rec := f.do(t, http.MethodOptions, "/forms/submit", "", map[string]string{
		"Origin":                        "https://evil.example",
		"Access-Control-Request-Method": http.MethodPost,
	})

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
