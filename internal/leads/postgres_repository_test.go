package leads

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

var leadRowColumns = []string{
	"id", "session_id", "visitor_id", "event_type", "form_id", "form_name", "page_url",
	"name", "email", "phone", "message", "service", "company", "location", "data", "created_at",
}

func TestPostgresRepositoryCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock)
	now := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	mock.ExpectExec("INSERT INTO lead_events").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), EventTypeWebhookReceived,
			"", "", "", "Ana", "ana@example.com", "", "", "Contato via Webhook", "", "",
			[]byte(`{"custom1":"x","name":"Ana"}`), now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	lead, err := repo.Create(context.Background(), &Lead{
		EventType: EventTypeWebhookReceived,
		Name:      "Ana",
		Email:     "ana@example.com",
		Service:   "Contato via Webhook",
		Data:      map[string]any{"name": "Ana", "custom1": "x"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if lead.ID == "" || !lead.CreatedAt.Equal(now) {
		t.Fatalf("unexpected lead %+v", lead)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepositoryCreateError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock)
	mock.ExpectExec("INSERT INTO lead_events").WillReturnError(errors.New("connection refused"))

	if _, err := repo.Create(context.Background(), &Lead{EventType: EventTypeFormSubmission, Name: "Ana"}); err == nil {
		t.Fatal("expected insert error")
	}
}

func TestPostgresRepositoryFindByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock)
	created := time.Now().UTC()
	rows := pgxmock.NewRows(leadRowColumns).AddRow(
		"lead-1", "sess", "vis", EventTypeWebhookReceived, "", "", "",
		"Ana", "ana@example.com", "", "", "", "", "", []byte(`{"name":"Ana"}`), created,
	)
	mock.ExpectQuery("SELECT id").WithArgs(EventTypeWebhookReceived, "ana@example.com").WillReturnRows(rows)

	lead, err := repo.FindByEmail(context.Background(), EventTypeWebhookReceived, " ana@example.com ")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if lead.ID != "lead-1" || lead.Data["name"] != "Ana" {
		t.Fatalf("unexpected lead %+v", lead)
	}

	mock.ExpectQuery("SELECT id").WithArgs(EventTypeWebhookReceived, "nobody@example.com").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.FindByEmail(context.Background(), EventTypeWebhookReceived, "nobody@example.com"); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepositoryList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithExec(mock)
	now := time.Now().UTC()
	rows := pgxmock.NewRows(leadRowColumns).
		AddRow("b", "s2", "v2", EventTypeFormSubmission, "f1", "Form", "https://x", "Bia", "", "119", "", "", "", "São Paulo, Brazil", []byte(`{}`), now).
		AddRow("a", "s1", "v1", EventTypeFormSubmission, "f1", "Form", "https://x", "Ana", "", "118", "", "", "", "Unknown", []byte(nil), now.Add(-time.Hour))
	mock.ExpectQuery("SELECT id").WithArgs(EventTypeFormSubmission, 10, 0).WillReturnRows(rows)

	leads, err := repo.List(context.Background(), ListFilter{EventType: EventTypeFormSubmission, Limit: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(leads) != 2 || leads[0].ID != "b" || leads[1].Location != UnknownLocation {
		t.Fatalf("unexpected leads %+v", leads)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
