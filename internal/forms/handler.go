package forms

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lexpoint/leadforms/internal/http/middleware"
	"github.com/lexpoint/leadforms/internal/http/respond"
	"github.com/lexpoint/leadforms/pkg/logging"
)

// Handler exposes form resolution publicly and form management to admins.
type Handler struct {
	registry *Registry
	logger   *logging.Logger
}

// NewHandler creates a forms HTTP handler.
func NewHandler(registry *Registry, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{registry: registry, logger: logger}
}

// AdminRoutes returns the routes mounted under /admin/forms.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListForms)
	r.Post("/", h.CreateForm)
	r.Get("/{formID}", h.GetForm)
	r.Put("/{formID}", h.UpdateForm)
	r.Put("/{formID}/default", h.SetDefault)
	return r
}

// ResolveResponse pairs the resolved form with its render plan.
type ResolveResponse struct {
	Form *FormConfiguration `json:"form"`
	Plan RenderPlan         `json:"plan"`
}

// Resolve handles GET /forms/resolve?formId=&pageId=. It always answers 200.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg := h.registry.Resolve(r.Context(), q.Get("formId"), q.Get("pageId"))
	cfg.FormTexts = cfg.Texts()
	respond.JSON(w, http.StatusOK, ResolveResponse{Form: cfg, Plan: Plan(cfg)})
}

// ListForms handles GET /admin/forms.
func (h *Handler) ListForms(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, h.registry.List(r.Context()))
}

// GetForm handles GET /admin/forms/{formID}.
func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.registry.Get(r.Context(), chi.URLParam(r, "formID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, cfg)
}

// CreateForm handles POST /admin/forms.
func (h *Handler) CreateForm(w http.ResponseWriter, r *http.Request) {
	var req FormConfiguration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	cfg, err := h.registry.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("form created", "form_id", cfg.ID, "name", cfg.Name, "admin", middleware.AdminSubject(r.Context()))
	respond.JSON(w, http.StatusCreated, cfg)
}

// UpdateForm handles PUT /admin/forms/{formID}.
func (h *Handler) UpdateForm(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")
	var req FormConfiguration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	cfg, err := h.registry.Update(r.Context(), formID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("form updated", "form_id", cfg.ID, "name", cfg.Name, "admin", middleware.AdminSubject(r.Context()))
	respond.JSON(w, http.StatusOK, cfg)
}

// SetDefault handles PUT /admin/forms/{formID}/default.
func (h *Handler) SetDefault(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")
	if err := h.registry.SetDefault(r.Context(), formID); err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Info("default form changed", "form_id", formID, "admin", middleware.AdminSubject(r.Context()))
	respond.JSON(w, http.StatusOK, map[string]string{"defaultFormId": formID})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrFormNotFound):
		respond.Error(w, http.StatusNotFound, "form not found", "")
	case errors.Is(err, ErrFormExists):
		respond.Error(w, http.StatusConflict, "form already exists", err.Error())
	case errors.Is(err, ErrDuplicateFieldName), errors.Is(err, ErrDefaultFieldType), errors.Is(err, ErrInvalidField):
		respond.Error(w, http.StatusBadRequest, "invalid form definition", err.Error())
	default:
		h.logger.Error("form configuration write failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to save form configuration", "")
	}
}
