package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lexpoint/leadforms/internal/observability/metrics"
	"github.com/lexpoint/leadforms/pkg/logging"
)

// MaxDeliveryAttempts is how often an entry is retried before it is parked.
const MaxDeliveryAttempts = 10

// OutboxEntry represents a pending event.
type OutboxEntry struct {
	ID        uuid.UUID
	Aggregate string
	Type      string
	Payload   json.RawMessage
	Attempts  int
	CreatedAt time.Time
}

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

// Outbox is the queue the Deliverer drains.
type Outbox interface {
	Insert(ctx context.Context, aggregate, eventType string, payload any) (uuid.UUID, error)
	FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists events for reliable delivery.
type OutboxStore struct {
	pool querier
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{pool: pool}
}

func newOutboxStoreWithExec(q querier) *OutboxStore {
	if q == nil {
		panic("events: exec required")
	}
	return &OutboxStore{pool: q}
}

func (s *OutboxStore) Insert(ctx context.Context, aggregate, eventType string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("events: marshal payload: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO outbox (id, aggregate, type, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.pool.Exec(ctx, query, id, aggregate, eventType, data); err != nil {
		return uuid.Nil, fmt.Errorf("events: insert outbox: %w", err)
	}
	return id, nil
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, aggregate, type, payload, attempts, created_at
		FROM outbox
		WHERE delivered_at IS NULL AND attempts < $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, MaxDeliveryAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.Aggregate, &entry.Type, &payload, &entry.Attempts, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`
	ct, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	query := `
		UPDATE outbox
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1 AND delivered_at IS NULL
	`
	if _, err := s.pool.Exec(ctx, query, id, errorText(cause)); err != nil {
		return fmt.Errorf("events: mark failed: %w", err)
	}
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}

// MemoryOutbox is an in-process Outbox for runs without postgres.
type MemoryOutbox struct {
	mu        sync.Mutex
	entries   map[uuid.UUID]*OutboxEntry
	delivered map[uuid.UUID]bool
	now       func() time.Time
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{
		entries:   make(map[uuid.UUID]*OutboxEntry),
		delivered: make(map[uuid.UUID]bool),
		now:       time.Now,
	}
}

func (m *MemoryOutbox) Insert(_ context.Context, aggregate, eventType string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("events: marshal payload: %w", err)
	}
	id := uuid.New()
	m.mu.Lock()
	m.entries[id] = &OutboxEntry{ID: id, Aggregate: aggregate, Type: eventType, Payload: data, CreatedAt: m.now().UTC()}
	m.mu.Unlock()
	return id, nil
}

func (m *MemoryOutbox) FetchPending(_ context.Context, limit int32) ([]OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OutboxEntry
	for id, e := range m.entries {
		if m.delivered[id] || e.Attempts >= MaxDeliveryAttempts {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryOutbox) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok || m.delivered[id] {
		return false, nil
	}
	m.delivered[id] = true
	return true, nil
}

func (m *MemoryOutbox) MarkFailed(_ context.Context, id uuid.UUID, _ error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.Attempts++
	}
	return nil
}

// Deliverer polls the outbox and invokes the handler.
type Deliverer struct {
	store     Outbox
	handler   DeliveryHandler
	logger    *logging.Logger
	metrics   *metrics.LeadMetrics
	batchSize int32
	interval  time.Duration
}

func NewDeliverer(store Outbox, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger,
		batchSize: 25,
		interval:  2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithMetrics counts failed deliveries as side-effect failures.
func (d *Deliverer) WithMetrics(m *metrics.LeadMetrics) *Deliverer {
	d.metrics = m
	return d
}

// Start drains the outbox every interval until ctx is cancelled.
func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

// drain delivers one batch and returns how many entries were delivered.
func (d *Deliverer) drain(ctx context.Context) int {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return 0
	}
	delivered := 0
	for _, entry := range entries {
		if err := d.handler.Handle(ctx, entry); err != nil {
			d.metrics.ObserveSideEffectFailure("outbox_delivery")
			d.logger.Error("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.Type, "attempts", entry.Attempts+1)
			if markErr := d.store.MarkFailed(ctx, entry.ID, err); markErr != nil {
				d.logger.Error("failed to record outbox failure", "error", markErr, "event_id", entry.ID)
			}
			continue
		}
		if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
		} else if ok {
			delivered++
			d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
		}
	}
	return delivered
}
