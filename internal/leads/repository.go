package leads

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lead storage
type Repository interface {
	Create(ctx context.Context, lead *Lead) (*Lead, error)
	GetByID(ctx context.Context, id string) (*Lead, error)
	FindByEmail(ctx context.Context, eventType, email string) (*Lead, error)
	List(ctx context.Context, filter ListFilter) ([]*Lead, error)
}

// prepare validates the lead and fills the generated provenance fields.
func prepare(lead *Lead, now time.Time) error {
	if err := lead.Validate(); err != nil {
		return err
	}
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.SessionID == "" {
		lead.SessionID = uuid.New().String()
	}
	if lead.VisitorID == "" {
		lead.VisitorID = uuid.New().String()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now.UTC()
	}
	if lead.Data == nil {
		lead.Data = map[string]any{}
	}
	return nil
}

// InMemoryRepository keeps leads in process; used for local runs and tests
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
	order []string
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string]*Lead),
	}
}

// Create stores a copy of lead
func (r *InMemoryRepository) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	if err := prepare(lead, time.Now()); err != nil {
		return nil, err
	}
	stored := *lead

	r.mu.Lock()
	r.leads[stored.ID] = &stored
	r.order = append(r.order, stored.ID)
	r.mu.Unlock()

	out := stored
	return &out, nil
}

// GetByID retrieves a lead by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	out := *lead
	return &out, nil
}

// FindByEmail returns the oldest lead of eventType with a case-insensitive email match.
func (r *InMemoryRepository) FindByEmail(ctx context.Context, eventType, email string) (*Lead, error) {
	email = strings.TrimSpace(email)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		lead := r.leads[id]
		if lead.EventType == eventType && strings.EqualFold(lead.Email, email) {
			out := *lead
			return &out, nil
		}
	}
	return nil, ErrLeadNotFound
}

// List returns leads newest first
func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Lead, error) {
	filter = filter.normalized()
	r.mu.RLock()
	matched := make([]*Lead, 0, len(r.leads))
	for _, id := range r.order {
		lead := r.leads[id]
		if filter.EventType != "" && lead.EventType != filter.EventType {
			continue
		}
		out := *lead
		matched = append(matched, &out)
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if filter.Offset >= len(matched) {
		return []*Lead{}, nil
	}
	matched = matched[filter.Offset:]
	if len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}
