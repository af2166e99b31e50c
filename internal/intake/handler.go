package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lexpoint/leadforms/internal/forms"
	"github.com/lexpoint/leadforms/internal/http/respond"
	"github.com/lexpoint/leadforms/internal/leads"
	"github.com/lexpoint/leadforms/internal/submission"
	"github.com/lexpoint/leadforms/pkg/logging"
)

const maxBodyBytes = 256 << 10

// Submitter is the part of Service the HTTP layer needs.
type Submitter interface {
	Submit(ctx context.Context, payload submission.Payload, clientIP string) (*Result, error)
}

// Handler serves POST /forms/submit.
type Handler struct {
	service Submitter
	logger  *logging.Logger
}

func NewHandler(service Submitter, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Submit answers with the same envelope the submission pipeline decodes.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var payload submission.Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid submission payload", err.Error())
		return
	}

	result, err := h.service.Submit(r.Context(), payload, ClientIP(r.RemoteAddr))
	if err != nil {
		h.writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, submission.SubmitResponse{Success: true, LeadID: result.LeadID})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var fieldErr *forms.FieldError
	switch {
	case errors.As(err, &fieldErr):
		respond.Error(w, http.StatusBadRequest, fieldErr.UserMessage(), fieldErr.Field)
	case errors.Is(err, ErrTooFast):
		respond.Error(w, http.StatusBadRequest, "Submission rejected", "form submitted too quickly")
	case errors.Is(err, forms.ErrInvalidValue), errors.Is(err, leads.ErrMissingContact):
		respond.Error(w, http.StatusBadRequest, "Invalid submission", err.Error())
	default:
		respond.Error(w, http.StatusInternalServerError, "Failed to store submission", err.Error())
	}
}
