package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lexpoint/leadforms/internal/http/middleware"
	"github.com/lexpoint/leadforms/internal/http/respond"
	"github.com/lexpoint/leadforms/pkg/logging"
)

const maxBodyBytes = 1 << 20

// Receiver is the part of Service the HTTP layer needs.
type Receiver interface {
	Receive(ctx context.Context, raw []byte) (*Outcome, error)
}

// Handler exposes the inbound lead webhook and the admin mapping table.
type Handler struct {
	receiver Receiver
	mappings MappingStore
	logger   *logging.Logger
}

// NewHandler creates a webhook HTTP handler.
func NewHandler(receiver Receiver, mappings MappingStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{receiver: receiver, mappings: mappings, logger: logger}
}

// Routes returns the public routes mounted under /webhooks. Callers are
// third-party automation tools, so CORS is a wildcard.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.CORS([]string{"*"}))
	r.Post("/leads", h.Receive)
	r.Options("/leads", h.Preflight)
	return r
}

// AdminRoutes returns the routes mounted under /admin/webhook.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/mappings", h.GetMappings)
	r.Put("/mappings", h.PutMappings)
	return r
}

// ReceiveResponse is the success body.
type ReceiveResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	LeadID  string         `json:"leadId"`
	Data    map[string]any `json:"data"`
}

// Receive handles POST /webhooks/leads.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Could not read request body", err.Error())
		return
	}

	outcome, err := h.receiver.Receive(r.Context(), raw)
	if err != nil {
		h.writeError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, ReceiveResponse{
		Success: true,
		Message: "Lead received",
		LeadID:  outcome.Lead.ID,
		Data:    outcome.Data,
	})
}

// Preflight answers OPTIONS for callers that do not send CORS headers.
func (h *Handler) Preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, body := ErrorResponse(err)
	respond.JSON(w, status, body)
}

// ErrorResponse maps a Receive error to its HTTP status and body. The lambda
// entrypoint shares it with the HTTP handler.
func ErrorResponse(err error) (int, respond.ErrorBody) {
	var parseErr *ParseError
	switch {
	case errors.As(err, &parseErr):
		return http.StatusBadRequest, respond.ErrorBody{Error: "Invalid JSON payload", Details: parseErr.Raw}
	case errors.Is(err, ErrInsufficientLead):
		return http.StatusBadRequest, respond.ErrorBody{Error: "Insufficient lead data", Details: "a name or phone is required"}
	default:
		return http.StatusInternalServerError, respond.ErrorBody{Error: "Failed to store lead", Details: err.Error()}
	}
}

// GetMappings handles GET /admin/webhook/mappings.
func (h *Handler) GetMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := h.mappings.Mappings(r.Context())
	if err != nil {
		h.logger.Error("failed to load webhook mappings", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to load mappings", err.Error())
		return
	}
	if mappings == nil {
		mappings = []Mapping{}
	}
	respond.JSON(w, http.StatusOK, mappings)
}

// PutMappings handles PUT /admin/webhook/mappings. An empty array switches the
// normalizer back to the synonym heuristic.
func (h *Handler) PutMappings(w http.ResponseWriter, r *http.Request) {
	var mappings []Mapping
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&mappings); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid mapping payload", err.Error())
		return
	}
	if err := h.mappings.SaveMappings(r.Context(), mappings); err != nil {
		h.logger.Error("failed to save webhook mappings", "error", err)
		respond.Error(w, http.StatusInternalServerError, "Failed to save mappings", err.Error())
		return
	}
	saved, err := h.mappings.Mappings(r.Context())
	if err != nil || saved == nil {
		saved = []Mapping{}
	}
	h.logger.Info("webhook field mapping replaced", "entries", len(saved), "admin", middleware.AdminSubject(r.Context()))
	respond.JSON(w, http.StatusOK, saved)
}
