package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/keyguard/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "keyguard.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Init(t.Context()))
	return s
}

func TestStore_CRUD(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)

	_, err := s.Get(ctx, "openai")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	now := time.Now()
	rec := &storage.Record{
		Provider:       "openai",
		CredentialID:   []byte{1, 2, 3},
		CredentialData: []byte(`{"id":"abc"}`),
		WrappedKey:     make([]byte, 32),
		IV:             make([]byte, 12),
		Ciphertext:     []byte{0xAA, 0xBB},
		Scheme:         "aes256gcm",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, rec.CredentialID, got.CredentialID)
	assert.Equal(t, rec.Ciphertext, got.Ciphertext)
	assert.True(t, got.CreatedAt.Equal(now))
	assert.True(t, got.HasSecret())

	// Upsert replaces the envelope in place.
	rec.Ciphertext = []byte{0xCC}
	rec.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, s.Put(ctx, rec))

	got, err = s.Get(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCC}, got.Ciphertext)

	require.NoError(t, s.Delete(ctx, "openai"))
	assert.ErrorIs(t, s.Delete(ctx, "openai"), storage.ErrNotFound)
}

func TestStore_List(t *testing.T) {
	ctx := t.Context()
	s := newTestStore(t)

	for _, p := range []string{"openai", "anthropic", "google"} {
		require.NoError(t, s.Put(ctx, &storage.Record{
			Provider:  p,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}))
	}

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Deterministic order by provider name.
	assert.Equal(t, "anthropic", records[0].Provider)
	assert.Equal(t, "google", records[1].Provider)
	assert.Equal(t, "openai", records[2].Provider)
}
