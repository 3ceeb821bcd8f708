package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/faqbot/internal/core/domain"
)

func TestIndexStore_SaveLoad(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewIndexStore(client)
	ctx := context.Background()

	blob := []byte(`{"fingerprint":{"format":"faqbot-index/v1"}}`)
	require.NoError(t, store.Save(ctx, "vector_store/index.json", blob))

	got, err := store.Load(ctx, "vector_store/index.json")
	require.NoError(t, err)
	assert.Equal(t, blob, got)

	assert.Equal(t, "44", mr.HGet(indexMetaPrefix+"vector_store/index.json", "bytes"))
	// Indexes never expire
	assert.Zero(t, mr.TTL(indexPrefix+"vector_store/index.json"))
}

func TestIndexStore_SaveReplaces(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewIndexStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "idx", []byte("one")))
	require.NoError(t, store.Save(ctx, "idx", []byte("two")))

	got, err := store.Load(ctx, "idx")
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
}

func TestIndexStore_LoadMissing(t *testing.T) {
	_, client := setupTestRedis(t)

	_, err := NewIndexStore(client).Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
}

func TestIndexStore_EmptyLocation(t *testing.T) {
	_, client := setupTestRedis(t)

	err := NewIndexStore(client).Save(context.Background(), "", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexStore_SavedAt(t *testing.T) {
	_, client := setupTestRedis(t)
	store := NewIndexStore(client)
	ctx := context.Background()

	_, err := store.SavedAt(ctx, "idx")
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)

	before := time.Now().Add(-time.Second)
	require.NoError(t, store.Save(ctx, "idx", []byte("x")))

	at, err := store.SavedAt(ctx, "idx")
	require.NoError(t, err)
	assert.True(t, at.After(before))
}

func TestIndexStore_Unreachable(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewIndexStore(client)
	mr.Close()

	assert.Error(t, store.Ping(context.Background()))
	_, err := store.Load(context.Background(), "idx")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrIndexNotFound)
}

func TestConnect(t *testing.T) {
	mr, _ := setupTestRedis(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	client.Close()

	_, err = Connect(context.Background(), "not a url")
	assert.Error(t, err)
}
