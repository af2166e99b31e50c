package intake

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lexpoint/leadforms/internal/leads"
	"github.com/lexpoint/leadforms/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestGeoLocatorFormatsAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/json/200.1.2.3", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","city":"Campinas","regionName":"São Paulo","country":"Brazil"}`))
	}))
	defer srv.Close()
	mr, client := newTestRedis(t)

	geo := NewHTTPGeoLocator(GeoConfig{URL: srv.URL + "/json/{ip}"}, client, logging.Discard())

	assert.Equal(t, "Campinas, São Paulo, Brazil", geo.Locate(context.Background(), "200.1.2.3"))
	assert.Equal(t, "Campinas, São Paulo, Brazil", geo.Locate(context.Background(), "200.1.2.3"))
	assert.Equal(t, int32(1), calls.Load(), "second lookup is served from redis")

	cached, err := mr.Get(geoCachePrefix + "200.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "Campinas, São Paulo, Brazil", cached)
}

func TestGeoLocatorAppendsIPWithoutPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lookup/8.8.8.8", r.URL.Path)
		_, _ = w.Write([]byte(`{"city":"Mountain View","region":"California","country_name":"United States"}`))
	}))
	defer srv.Close()

	geo := NewHTTPGeoLocator(GeoConfig{URL: srv.URL + "/lookup/"}, nil, logging.Discard())

	assert.Equal(t, "Mountain View, California, United States", geo.Locate(context.Background(), "8.8.8.8"))
}

func TestGeoLocatorTimeoutDegrades(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	geo := NewHTTPGeoLocator(GeoConfig{URL: srv.URL, Timeout: 50 * time.Millisecond}, nil, logging.Discard())

	start := time.Now()
	assert.Equal(t, leads.UnknownLocation, geo.Locate(context.Background(), "8.8.4.4"))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGeoLocatorProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"fail","message":"reserved range"}`))
	}))
	defer srv.Close()
	mr, client := newTestRedis(t)

	geo := NewHTTPGeoLocator(GeoConfig{URL: srv.URL}, client, logging.Discard())

	assert.Equal(t, leads.UnknownLocation, geo.Locate(context.Background(), "1.1.1.1"))
	assert.False(t, mr.Exists(geoCachePrefix+"1.1.1.1"), "failures are not cached")
}

func TestGeoLocatorSkipsPrivateAddresses(t *testing.T) {
	geo := NewHTTPGeoLocator(GeoConfig{URL: "http://127.0.0.1:1"}, nil, logging.Discard())

	for _, ip := range []string{"", "127.0.0.1", "10.0.0.4", "192.168.1.9", "::1", "not-an-ip"} {
		assert.Equal(t, leads.UnknownLocation, geo.Locate(context.Background(), ip), ip)
	}
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "200.1.2.3", ClientIP("200.1.2.3:51234"))
	assert.Equal(t, "200.1.2.3", ClientIP("200.1.2.3"))
	assert.Equal(t, "2001:db8::1", ClientIP("[2001:db8::1]:443"))
}
