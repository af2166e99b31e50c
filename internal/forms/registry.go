package forms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lexpoint/leadforms/pkg/logging"
)

// Default cache lifetimes. A successful read is trusted for
// DefaultRefreshInterval so writes from other replicas sharing the store show
// up; a failed read is retried after DefaultRetryInterval.
const (
	DefaultRefreshInterval = 30 * time.Second
	DefaultRetryInterval   = 5 * time.Second
)

// Registry owns the form collection for one install: it serves resolution from
// a cached copy of the stored blob, re-reading it when the copy expires, applies
// admin writes and notifies subscribers after every successful write.
type Registry struct {
	store  Store
	logger *logging.Logger
	now    func() time.Time

	refreshEvery time.Duration
	retryEvery   time.Duration

	mu        sync.RWMutex
	current   *Collection
	expiresAt time.Time
	stale     bool // the last read failed

	writeMu sync.Mutex

	subsMu  sync.Mutex
	subs    map[int]func(Collection)
	nextSub int
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithRefreshInterval sets how long a successful read is served from cache.
func WithRefreshInterval(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.refreshEvery = d
		}
	}
}

// WithRetryInterval sets how long a failed read is served from cache.
func WithRetryInterval(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.retryEvery = d
		}
	}
}

// NewRegistry wires a registry over store.
func NewRegistry(store Store, logger *logging.Logger, opts ...RegistryOption) *Registry {
	if store == nil {
		panic("forms: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Registry{
		store:        store,
		logger:       logger,
		now:          time.Now,
		refreshEvery: DefaultRefreshInterval,
		retryEvery:   DefaultRetryInterval,
		subs:         make(map[int]func(Collection)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load returns the cached collection, reading the store when the cached copy
// has expired. Failures are logged; the last good collection is kept if there
// is one, otherwise the result is empty so resolution falls back.
func (r *Registry) Load(ctx context.Context) *Collection {
	r.mu.RLock()
	if r.current != nil && r.now().Before(r.expiresAt) {
		c := r.current.Clone()
		r.mu.RUnlock()
		return c
	}
	r.mu.RUnlock()
	return r.Reload(ctx)
}

// Reload forces a read of the store.
func (r *Registry) Reload(ctx context.Context) *Collection {
	c, err := r.read(ctx)
	if errors.Is(err, ErrNotConfigured) {
		c, err = &Collection{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		if r.current != nil {
			r.logger.Warn("form configuration unavailable, serving last loaded copy", "error", err)
		} else {
			r.logger.Warn("form configuration unavailable, using fallback", "error", err)
			r.current = &Collection{}
		}
		r.stale = true
		r.expiresAt = r.now().Add(r.retryEvery)
		return r.current.Clone()
	}
	if r.stale {
		r.logger.Info("form configuration reloaded")
		r.stale = false
	}
	r.current = c
	r.expiresAt = r.now().Add(r.refreshEvery)
	return c.Clone()
}

func (r *Registry) read(ctx context.Context) (*Collection, error) {
	data, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Resolve picks the form for an embed context. It never fails.
func (r *Registry) Resolve(ctx context.Context, formID, pageID string) *FormConfiguration {
	return Resolve(r.Load(ctx), formID, pageID)
}

// List returns every stored form in storage order.
func (r *Registry) List(ctx context.Context) *Collection {
	return r.Load(ctx)
}

// Get returns one stored form.
func (r *Registry) Get(ctx context.Context, id string) (*FormConfiguration, error) {
	f, ok := r.Load(ctx).Find(id)
	if !ok {
		return nil, ErrFormNotFound
	}
	return f, nil
}

// Create adds a form. An empty id gets a generated one; missing built-in fields are merged in.
func (r *Registry) Create(ctx context.Context, cfg FormConfiguration) (*FormConfiguration, error) {
	var created FormConfiguration
	err := r.mutate(ctx, func(c *Collection) error {
		cfg = cfg.Clone()
		if strings.TrimSpace(cfg.ID) == "" {
			cfg.ID = uuid.NewString()
		}
		if _, exists := c.Find(cfg.ID); exists {
			return fmt.Errorf("%w: %s", ErrFormExists, cfg.ID)
		}
		cfg.AllFields = MergeDefaultFields(cfg.AllFields)
		if err := cfg.Check(); err != nil {
			return err
		}
		c.Forms = append(c.Forms, cfg)
		if c.DefaultFormID == "" {
			c.DefaultFormID = cfg.ID
		}
		created = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces the form with id, keeping its position in storage order.
func (r *Registry) Update(ctx context.Context, id string, cfg FormConfiguration) (*FormConfiguration, error) {
	var updated FormConfiguration
	err := r.mutate(ctx, func(c *Collection) error {
		existing, ok := c.Find(id)
		if !ok {
			return ErrFormNotFound
		}
		cfg = cfg.Clone()
		cfg.ID = id
		cfg.AllFields = MergeDefaultFields(cfg.AllFields)
		if err := cfg.Check(); err != nil {
			return err
		}
		*existing = cfg
		updated = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetDefault marks id as the global default form.
func (r *Registry) SetDefault(ctx context.Context, id string) error {
	return r.mutate(ctx, func(c *Collection) error {
		if _, ok := c.Find(id); !ok {
			return ErrFormNotFound
		}
		c.DefaultFormID = id
		return nil
	})
}

// Subscribe registers fn to receive the collection after every successful write.
func (r *Registry) Subscribe(fn func(Collection)) (unsubscribe func()) {
	r.subsMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subsMu.Unlock()
	return func() {
		r.subsMu.Lock()
		delete(r.subs, id)
		r.subsMu.Unlock()
	}
}

// mutate applies fn to a fresh copy of the stored collection and persists it.
// Unlike Load, a read failure other than "not stored" aborts the write so a
// transient outage never overwrites the stored forms.
func (r *Registry) mutate(ctx context.Context, fn func(*Collection) error) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	c, err := r.read(ctx)
	if errors.Is(err, ErrNotConfigured) {
		c, err = &Collection{}, nil
	}
	if err != nil {
		return fmt.Errorf("forms: load before write: %w", err)
	}
	if err := fn(c); err != nil {
		return err
	}
	data, err := Encode(c)
	if err != nil {
		return err
	}
	if err := r.store.Save(ctx, data); err != nil {
		return err
	}
	for page, ids := range c.LinkedPageConflicts() {
		r.logger.Warn("page linked to several forms; first wins", "page_id", page, "form_ids", ids)
	}

	r.mu.Lock()
	r.current = c
	r.expiresAt = r.now().Add(r.refreshEvery)
	r.stale = false
	r.mu.Unlock()

	r.notify(*c.Clone())
	return nil
}

func (r *Registry) notify(c Collection) {
	r.subsMu.Lock()
	fns := make([]func(Collection), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subsMu.Unlock()
	for _, fn := range fns {
		fn(*c.Clone())
	}
}
