package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lexpoint/leadforms/internal/leads"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRelayPostsLead(t *testing.T) {
	var got RelayPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	relay := NewHTTPRelay(srv.Client())
	err := relay.Deliver(context.Background(), srv.URL, &leads.Lead{ID: "lead-1", Name: "Ana", EventType: leads.EventTypeFormSubmission})

	require.NoError(t, err)
	assert.Equal(t, leads.EventTypeFormSubmission, got.Event)
	require.NotNil(t, got.Lead)
	assert.Equal(t, "lead-1", got.Lead.ID)
}

func TestHTTPRelayRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewHTTPRelay(nil).Deliver(context.Background(), srv.URL, &leads.Lead{ID: "lead-1"})

	assert.ErrorIs(t, err, ErrRelayStatus)
}
