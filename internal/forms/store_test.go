package forms

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
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

func TestRedisStoreMissingKey(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client, "")

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, []byte(`{"forms":[]}`)))
	got, err := mr.Get(DefaultStoreKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"forms":[]}`, got)

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"forms":[]}`, string(data))
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "custom:key")
	mr.Close()

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConfigured)
}

func TestMemoryStoreCopiesData(t *testing.T) {
	seed := []byte(`{"forms":[]}`)
	store := NewMemoryStore(seed)
	seed[0] = 'x'

	data, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte('{'), data[0])
}
