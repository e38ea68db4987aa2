// Package storage defines the durable record store for enrolled providers:
// one record per provider holding the credential handle and, once a secret
// is stored, the AEAD envelope protecting it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no record exists for a provider.
var ErrNotFound = errors.New("provider record not found")

// Record is the durable state for one provider. The secret fields
// (WrappedKey, IV, Ciphertext, Scheme) are either all present or all absent:
// a record with a credential but no secret is valid ("enrolled, nothing
// stored yet"). Every store operation replaces all four together, with a
// freshly generated IV.
type Record struct {
	Provider       string    `json:"provider"`
	CredentialID   []byte    `json:"credential_id,omitempty"`
	CredentialData []byte    `json:"credential_data,omitempty"`
	WrappedKey     []byte    `json:"wrapped_key,omitempty"`
	IV             []byte    `json:"iv,omitempty"`
	Ciphertext     []byte    `json:"ciphertext,omitempty"`
	Scheme         string    `json:"scheme,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasCredential reports whether a credential has been enrolled.
func (r *Record) HasCredential() bool {
	return len(r.CredentialID) > 0
}

// HasSecret reports whether a secret envelope is stored. Explicitly boolean:
// all three envelope fields must be present.
func (r *Record) HasSecret() bool {
	return len(r.WrappedKey) > 0 && len(r.IV) > 0 && len(r.Ciphertext) > 0
}

// Validate checks the record's structural invariants.
func (r *Record) Validate() error {
	if r.Provider == "" {
		return errors.New("record has no provider")
	}
	hasAny := len(r.WrappedKey) > 0 || len(r.IV) > 0 || len(r.Ciphertext) > 0
	if hasAny && !r.HasSecret() {
		return fmt.Errorf("record for %s has a partial secret envelope", r.Provider)
	}
	if hasAny && !r.HasCredential() {
		return fmt.Errorf("record for %s has a secret but no credential", r.Provider)
	}
	return nil
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.CredentialID = append([]byte(nil), r.CredentialID...)
	cp.CredentialData = append([]byte(nil), r.CredentialData...)
	cp.WrappedKey = append([]byte(nil), r.WrappedKey...)
	cp.IV = append([]byte(nil), r.IV...)
	cp.Ciphertext = append([]byte(nil), r.Ciphertext...)
	return &cp
}

// Store is the durable keyed storage collaborator. Deletion removes the
// whole record; partial deletes do not exist at this interface.
type Store interface {
	// Init prepares the backend (schema, buckets). Safe to call repeatedly.
	Init(ctx context.Context) error
	// Put creates or replaces the record for rec.Provider.
	Put(ctx context.Context, rec *Record) error
	// Get returns the record for provider, or ErrNotFound.
	Get(ctx context.Context, provider string) (*Record, error)
	// Delete removes the record for provider, or returns ErrNotFound.
	Delete(ctx context.Context, provider string) error
	// List returns all records.
	List(ctx context.Context) ([]*Record, error)
}
