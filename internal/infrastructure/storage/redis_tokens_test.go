package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTokenStoreRoundTrip(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisTokenStore(client, "article-enrichment")
	ctx := context.Background()

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, token)

	require.NoError(t, store.Save(ctx, []byte{0x01, 0x02}))
	require.NoError(t, store.Save(ctx, []byte{0x01, 0x03}))

	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x03}, token)
	assert.True(t, mr.Exists("newspipe:resume-token:article-enrichment"))
	assert.Zero(t, mr.TTL("newspipe:resume-token:article-enrichment"))

	require.NoError(t, store.Clear(ctx))
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestRedisTokenStoreUnavailable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.SetError("LOADING")

	_, err := NewRedisTokenStore(client, "c").Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newspipe:resume-token:c")
}

func TestConnectRedis(t *testing.T) {
	t.Parallel()

	_, err := ConnectRedis(context.Background(), "", "")
	assert.True(t, errors.Is(err, ErrEmptyRedisAddress))

	mr := miniredis.RunT(t)
	client, err := ConnectRedis(context.Background(), mr.Addr(), "")
	require.NoError(t, err)
	_ = client.Close()
}
