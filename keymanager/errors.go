package keymanager

import "errors"

var (
	// ErrEmptyProvider is returned when an operation names no provider.
	ErrEmptyProvider = errors.New("provider name is empty")

	// ErrUnknownProvider is returned when the provider is not in the
	// directory of known providers.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrEmptySecret is returned when StoreSecret is given an empty value.
	ErrEmptySecret = errors.New("secret is empty")

	// ErrNoCredential is returned when an operation requires an enrolled
	// credential and the provider has none on record.
	ErrNoCredential = errors.New("no credential enrolled for provider")

	// ErrNoStoredSecret is returned when RetrieveSecret finds no stored
	// ciphertext for the provider.
	ErrNoStoredSecret = errors.New("no secret stored for provider")
)
