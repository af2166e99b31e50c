package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProviderConversion namespaces conversion dedupe keys.
const ProviderConversion = "conversion"

// Deduper hands out one claim per (provider, key). Claim is atomic, so two
// concurrent retries of the same event cannot both win.
type Deduper interface {
	Claim(ctx context.Context, provider, key string) (bool, error)
	Release(ctx context.Context, provider, key string) error
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ProcessedStore keeps claims in the processed_events table.
type ProcessedStore struct {
	db execer
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{db: pool}
}

func newProcessedStoreWithExec(db execer) *ProcessedStore {
	if db == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{db: db}
}

const (
	claimSQL   = `INSERT INTO processed_events (provider, event_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	releaseSQL = `DELETE FROM processed_events WHERE provider = $1 AND event_id = $2`
)

// Claim reports false when the key was already taken.
func (s *ProcessedStore) Claim(ctx context.Context, provider, key string) (bool, error) {
	tag, err := s.db.Exec(ctx, claimSQL, provider, key)
	if err != nil {
		return false, fmt.Errorf("events: claim %s/%s: %w", provider, key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release gives a claim back after the guarded work failed.
func (s *ProcessedStore) Release(ctx context.Context, provider, key string) error {
	if _, err := s.db.Exec(ctx, releaseSQL, provider, key); err != nil {
		return fmt.Errorf("events: release %s/%s: %w", provider, key, err)
	}
	return nil
}

// MemoryProcessedStore is the in-process Deduper used without Postgres.
type MemoryProcessedStore struct {
	mu      sync.Mutex
	claimed map[[2]string]struct{}
}

func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{claimed: make(map[[2]string]struct{})}
}

func (s *MemoryProcessedStore) Claim(_ context.Context, provider, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := [2]string{provider, key}
	if _, taken := s.claimed[k]; taken {
		return false, nil
	}
	s.claimed[k] = struct{}{}
	return true, nil
}

func (s *MemoryProcessedStore) Release(_ context.Context, provider, key string) error {
	s.mu.Lock()
	delete(s.claimed, [2]string{provider, key})
	s.mu.Unlock()
	return nil
}

var (
	_ Deduper = (*ProcessedStore)(nil)
	_ Deduper = (*MemoryProcessedStore)(nil)
)
