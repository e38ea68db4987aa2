package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecord_HasSecret(t *testing.T) {
	rec := &Record{Provider: "openai", CredentialID: []byte{1}}
	assert.False(t, rec.HasSecret())

	rec.WrappedKey = make([]byte, 32)
	rec.IV = make([]byte, 12)
	assert.False(t, rec.HasSecret(), "partial envelope must not count as a secret")

	rec.Ciphertext = []byte{0xAA}
	assert.True(t, rec.HasSecret())
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"EnrolledNoSecret", Record{Provider: "openai", CredentialID: []byte{1}}, false},
		{"FullRecord", Record{
			Provider:     "openai",
			CredentialID: []byte{1},
			WrappedKey:   make([]byte, 32),
			IV:           make([]byte, 12),
			Ciphertext:   []byte{0xAA},
		}, false},
		{"NoProvider", Record{}, true},
		{"PartialEnvelope", Record{Provider: "openai", CredentialID: []byte{1}, IV: make([]byte, 12)}, true},
		{"SecretWithoutCredential", Record{
			Provider:   "openai",
			WrappedKey: make([]byte, 32),
			IV:         make([]byte, 12),
			Ciphertext: []byte{0xAA},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecord_Clone(t *testing.T) {
	rec := &Record{
		Provider:     "openai",
		CredentialID: []byte{1, 2, 3},
		Ciphertext:   []byte{4, 5, 6},
		CreatedAt:    time.Now(),
	}
	cp := rec.Clone()

	cp.CredentialID[0] = 0xFF
	assert.Equal(t, byte(1), rec.CredentialID[0], "clone must not alias the original")
	assert.Equal(t, rec.Provider, cp.Provider)
}
