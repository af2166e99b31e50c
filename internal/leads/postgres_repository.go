package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the lead_events table.
type PostgresRepository struct {
	pool querier
	now  func() time.Time
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool, now: time.Now}
}

func newPostgresRepositoryWithExec(q querier) *PostgresRepository {
	if q == nil {
		panic("leads: exec required")
	}
	return &PostgresRepository{pool: q, now: time.Now}
}

const leadColumns = `id, session_id, visitor_id, event_type, form_id, form_name, page_url,
		name, email, phone, message, service, company, location, data, created_at`

// Create inserts a new row.
func (r *PostgresRepository) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	if err := prepare(lead, r.now()); err != nil {
		return nil, err
	}
	data, err := json.Marshal(lead.Data)
	if err != nil {
		return nil, fmt.Errorf("leads: marshal data: %w", err)
	}

	query := `
		INSERT INTO lead_events (` + leadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	if _, err := r.pool.Exec(ctx, query,
		lead.ID,
		lead.SessionID,
		lead.VisitorID,
		lead.EventType,
		lead.FormID,
		lead.FormName,
		lead.PageURL,
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Message,
		lead.Service,
		lead.Company,
		lead.Location,
		data,
		lead.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}
	out := *lead
	return &out, nil
}

// GetByID fetches one lead.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM lead_events WHERE id = $1`
	lead, err := scanLead(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// FindByEmail returns the oldest lead of eventType with the given email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, eventType, email string) (*Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM lead_events
		WHERE event_type = $1 AND lower(email) = lower($2)
		ORDER BY created_at
		LIMIT 1
	`
	lead, err := scanLead(r.pool.QueryRow(ctx, query, eventType, strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: find by email failed: %w", err)
	}
	return lead, nil
}

// List returns leads newest first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Lead, error) {
	filter = filter.normalized()
	query := `
		SELECT ` + leadColumns + `
		FROM lead_events
		WHERE ($1 = '' OR event_type = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, filter.EventType, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	out := []*Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

func scanLead(row pgx.Row) (*Lead, error) {
	var lead Lead
	var data []byte
	if err := row.Scan(
		&lead.ID,
		&lead.SessionID,
		&lead.VisitorID,
		&lead.EventType,
		&lead.FormID,
		&lead.FormName,
		&lead.PageURL,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Message,
		&lead.Service,
		&lead.Company,
		&lead.Location,
		&data,
		&lead.CreatedAt,
	); err != nil {
		return nil, err
	}
	lead.Data = map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &lead.Data); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return &lead, nil
}
