package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lexpoint/leadforms/internal/http/respond"
	"github.com/lexpoint/leadforms/pkg/logging"
)

const maxEventBytes = 128 << 10

// Enqueuer is the write side of the outbox.
type Enqueuer interface {
	Insert(ctx context.Context, aggregate, eventType string, payload any) (uuid.UUID, error)
}

// Handler accepts conversion events from the site and queues them for delivery.
type Handler struct {
	outbox  Enqueuer
	deduper Deduper
	logger  *logging.Logger
	now     func() time.Time
}

// NewHandler creates the conversion handler. deduper may be nil.
func NewHandler(outbox Enqueuer, deduper Deduper, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{outbox: outbox, deduper: deduper, logger: logger, now: time.Now}
}

// ConversionResponse acknowledges a queued event.
type ConversionResponse struct {
	Success   bool   `json:"success"`
	EventID   string `json:"eventId,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// TrackConversion handles POST /events/conversion.
func (h *Handler) TrackConversion(w http.ResponseWriter, r *http.Request) {
	var event ConversionEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(&event); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid conversion event", err.Error())
		return
	}
	if err := event.Validate(); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid conversion event", err.Error())
		return
	}
	// Keyed before the server fills in a missing timestamp.
	key := event.DedupeKey()
	if event.Timestamp.IsZero() {
		event.Timestamp = h.now().UTC()
	}

	ctx := r.Context()
	claimed, ok := h.claim(ctx, key)
	if !ok {
		h.logger.Info("duplicate conversion ignored", "form_id", event.FormID, "session_id", event.SessionID)
		respond.JSON(w, http.StatusOK, ConversionResponse{Success: true, Duplicate: true})
		return
	}

	id, err := h.outbox.Insert(ctx, event.FormID, OutboxTypeConversion, event)
	if err != nil {
		h.logger.Error("failed to queue conversion", "error", err, "form_id", event.FormID)
		if claimed {
			// Let the site's retry through.
			if rerr := h.deduper.Release(context.WithoutCancel(ctx), ProviderConversion, key); rerr != nil {
				h.logger.Warn("failed to release conversion key", "error", rerr)
			}
		}
		respond.Error(w, http.StatusInternalServerError, "Failed to queue conversion", err.Error())
		return
	}

	respond.JSON(w, http.StatusAccepted, ConversionResponse{Success: true, EventID: id.String()})
}

// claim returns ok=false only for a known duplicate. A dedupe store failure
// lets the event through unclaimed; a duplicate conversion is cheaper than a
// lost one.
func (h *Handler) claim(ctx context.Context, key string) (claimed, ok bool) {
	if h.deduper == nil {
		return false, true
	}
	claimed, err := h.deduper.Claim(ctx, ProviderConversion, key)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			h.logger.Warn("conversion dedupe claim failed", "error", err)
		}
		return false, true
	}
	return claimed, claimed
}
