package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultMappingKey is the redis key holding the field-mapping table.
const DefaultMappingKey = "site:webhook:field_mapping"

// Mapping routes one inbound key to a canonical lead key.
type Mapping struct {
	WebhookField string `json:"webhookField"`
	SystemField  string `json:"systemField"`
}

// MappingStore loads the mapping table. A nil slice with a nil error means no
// table is configured.
type MappingStore interface {
	Mappings(ctx context.Context) ([]Mapping, error)
	SaveMappings(ctx context.Context, mappings []Mapping) error
}

// cleanMappings drops entries with a blank side and trims the rest.
func cleanMappings(in []Mapping) []Mapping {
	out := make([]Mapping, 0, len(in))
	for _, m := range in {
		m.WebhookField = strings.TrimSpace(m.WebhookField)
		m.SystemField = strings.TrimSpace(m.SystemField)
		if m.WebhookField == "" || m.SystemField == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// RedisMappingStore reads the table stored as a JSON array under one key.
type RedisMappingStore struct {
	redis *redis.Client
	key   string
}

// NewRedisMappingStore creates a store; an empty key selects DefaultMappingKey.
func NewRedisMappingStore(client *redis.Client, key string) *RedisMappingStore {
	if client == nil {
		panic("webhook: redis client required")
	}
	if key == "" {
		key = DefaultMappingKey
	}
	return &RedisMappingStore{redis: client, key: key}
}

func (s *RedisMappingStore) Mappings(ctx context.Context) ([]Mapping, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("webhook: get mapping: %w", err)
	}
	var mappings []Mapping
	if err := json.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("webhook: decode mapping: %w", err)
	}
	return cleanMappings(mappings), nil
}

func (s *RedisMappingStore) SaveMappings(ctx context.Context, mappings []Mapping) error {
	data, err := json.Marshal(cleanMappings(mappings))
	if err != nil {
		return fmt.Errorf("webhook: encode mapping: %w", err)
	}
	if err := s.redis.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("webhook: set mapping: %w", err)
	}
	return nil
}

// MemoryMappingStore keeps the table in process.
type MemoryMappingStore struct {
	mu       sync.RWMutex
	mappings []Mapping
}

func NewMemoryMappingStore(mappings ...Mapping) *MemoryMappingStore {
	return &MemoryMappingStore{mappings: cleanMappings(mappings)}
}

func (s *MemoryMappingStore) Mappings(context.Context) ([]Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.mappings) == 0 {
		return nil, nil
	}
	return append([]Mapping(nil), s.mappings...), nil
}

func (s *MemoryMappingStore) SaveMappings(_ context.Context, mappings []Mapping) error {
	s.mu.Lock()
	s.mappings = cleanMappings(mappings)
	s.mu.Unlock()
	return nil
}
