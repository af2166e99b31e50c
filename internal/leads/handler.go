package leads

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lexpoint/leadforms/internal/http/respond"
	"github.com/lexpoint/leadforms/pkg/logging"
)

// Handler handles admin HTTP requests for leads
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// ListLeadsResponse is the response for listing leads
type ListLeadsResponse struct {
	Leads  []*Lead `json:"leads"`
	Count  int     `json:"count"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// ListLeads handles GET /admin/leads requests
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		EventType: q.Get("event_type"),
		Limit:     50,
	}
	if filter.EventType != "" && filter.EventType != EventTypeWebhookReceived && filter.EventType != EventTypeFormSubmission {
		respond.Error(w, http.StatusBadRequest, "invalid event_type", filter.EventType)
		return
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	leads, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list leads", "error", err, "event_type", filter.EventType)
		respond.Error(w, http.StatusInternalServerError, "failed to list leads", "")
		return
	}

	respond.JSON(w, http.StatusOK, ListLeadsResponse{
		Leads:  leads,
		Count:  len(leads),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

// GetLead handles GET /admin/leads/{leadID}
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "leadID"))
	if errors.Is(err, ErrLeadNotFound) {
		respond.Error(w, http.StatusNotFound, "lead not found", "")
		return
	}
	if err != nil {
		h.logger.Error("failed to load lead", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to load lead", "")
		return
	}
	respond.JSON(w, http.StatusOK, lead)
}
