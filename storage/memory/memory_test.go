package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/keyguard/storage"
)

func TestStore_CRUD(t *testing.T) {
	ctx := t.Context()
	s := NewStore()
	require.NoError(t, s.Init(ctx))

	_, err := s.Get(ctx, "openai")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rec := &storage.Record{
		Provider:     "openai",
		CredentialID: []byte{1, 2, 3},
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got.CredentialID)

	// Stored records are isolated from caller mutation.
	rec.CredentialID[0] = 0xFF
	got, err = s.Get(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, byte(1), got.CredentialID[0])

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.NoError(t, s.Delete(ctx, "openai"))
	assert.ErrorIs(t, s.Delete(ctx, "openai"), storage.ErrNotFound)

	records, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_PutReplaces(t *testing.T) {
	ctx := t.Context()
	s := NewStore()

	require.NoError(t, s.Put(ctx, &storage.Record{Provider: "openai", Scheme: "aes256gcm"}))
	require.NoError(t, s.Put(ctx, &storage.Record{Provider: "openai", Scheme: "chacha20poly1305"}))

	got, err := s.Get(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, "chacha20poly1305", got.Scheme)
}
