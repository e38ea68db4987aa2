// Package crypto provides the authenticated-encryption codec used to protect
// stored secrets: symmetric key handles, AEAD encrypt/decrypt with fresh
// per-call nonces, and challenge generation for authentication ceremonies.
package crypto

import (
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/jmcleod/keyguard/internal/util"
)

// Scheme identifies the AEAD cipher of a key. The scheme is recorded
// alongside every ciphertext so records stay readable if the default changes.
type Scheme string

const (
	SchemeAESGCM           Scheme = util.SchemeAESGCM
	SchemeChaCha20Poly1305 Scheme = util.SchemeChaCha20
)

// DefaultScheme is used when no scheme option is given.
const DefaultScheme = SchemeAESGCM

// KeySize is the raw key length in bytes (256-bit keys).
const KeySize = util.AEADKeySize

// IVSize is the nonce length in bytes (96-bit nonces).
const IVSize = util.NonceSize

// DefaultChallengeSize is the challenge length used when the caller passes a
// non-positive length to GenerateChallenge.
const DefaultChallengeSize = 32

var (
	// ErrNotExtractable is returned when exporting a key whose handle was
	// created with extractable=false.
	ErrNotExtractable = errors.New("key is not extractable")
	// ErrDecryptFailed signals an authentication-tag mismatch: the
	// ciphertext was tampered with or the wrong key, IV or AAD was supplied.
	ErrDecryptFailed = errors.New("decryption failed")
	// ErrKeyDestroyed is returned when using a handle whose material has
	// been destroyed.
	ErrKeyDestroyed = errors.New("key material destroyed")
)

// KeyHandle holds symmetric key material sealed in a memguard enclave.
// Raw bytes only exist transiently inside Encrypt/Decrypt/Export and are
// wiped immediately after use.
type KeyHandle struct {
	enclave     *memguard.Enclave
	scheme      Scheme
	extractable bool
}

// KeyOption configures key generation and import.
type KeyOption func(*keyOptions)

type keyOptions struct {
	scheme Scheme
}

// WithScheme selects the AEAD cipher for a new or imported key.
func WithScheme(s Scheme) KeyOption {
	return func(o *keyOptions) {
		o.scheme = s
	}
}

func applyKeyOptions(opts []KeyOption) (keyOptions, error) {
	o := keyOptions{scheme: DefaultScheme}
	for _, opt := range opts {
		opt(&o)
	}
	switch o.scheme {
	case SchemeAESGCM, SchemeChaCha20Poly1305:
		return o, nil
	default:
		return o, fmt.Errorf("unsupported scheme: %s", o.scheme)
	}
}

// GenerateKey produces a fresh 256-bit symmetric key. The extractable flag
// controls whether Export may later return the raw bytes: the at-rest key
// protecting a stored secret is generated extractable so it can be persisted
// next to the ciphertext and re-imported after the user clears the
// authenticator gate.
func GenerateKey(extractable bool, opts ...KeyOption) (*KeyHandle, error) {
	o, err := applyKeyOptions(opts)
	if err != nil {
		return nil, err
	}
	raw, err := util.NewAEADKey()
	if err != nil {
		return nil, err
	}
	// memguard wipes raw as part of sealing it.
	return &KeyHandle{
		enclave:     memguard.NewEnclave(raw),
		scheme:      o.scheme,
		extractable: extractable,
	}, nil
}

// ImportKey round-trips previously exported key material into a new handle.
// The caller's slice is copied, not retained. A key imported with
// extractable=false is unexportable from then on regardless of how its bytes
// were obtained.
func ImportKey(raw []byte, extractable bool, opts ...KeyOption) (*KeyHandle, error) {
	o, err := applyKeyOptions(opts)
	if err != nil {
		return nil, err
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(raw), KeySize)
	}
	return &KeyHandle{
		enclave:     memguard.NewEnclave(util.CopyBytes(raw)),
		scheme:      o.scheme,
		extractable: extractable,
	}, nil
}

// Scheme returns the AEAD cipher this key is bound to.
func (k *KeyHandle) Scheme() Scheme {
	return k.scheme
}

// Extractable reports whether Export is permitted for this handle.
func (k *KeyHandle) Extractable() bool {
	return k.extractable
}

// Export returns a copy of the raw key material, or ErrNotExtractable.
func (k *KeyHandle) Export() ([]byte, error) {
	if !k.extractable {
		return nil, ErrNotExtractable
	}
	buf, err := k.open()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()
	return util.CopyBytes(buf.Bytes()), nil
}

func (k *KeyHandle) open() (*memguard.LockedBuffer, error) {
	if k.enclave == nil {
		return nil, ErrKeyDestroyed
	}
	buf, err := k.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening key enclave: %w", err)
	}
	return buf, nil
}

// Option configures a single encrypt or decrypt call.
type Option func(*callOptions)

type callOptions struct {
	aad []byte
}

// WithAAD authenticates additional data alongside the ciphertext. The same
// AAD must be supplied to Decrypt, or authentication fails.
func WithAAD(aad []byte) Option {
	return func(o *callOptions) {
		o.aad = aad
	}
}

// Encrypt seals plaintext under the key with a fresh random 96-bit IV,
// returned separately from the ciphertext. IVs are never reused across calls.
// Empty plaintexts are valid and round-trip to empty.
func Encrypt(plaintext []byte, key *KeyHandle, opts ...Option) (ciphertext, iv []byte, err error) {
	o := callOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	buf, err := key.open()
	if err != nil {
		return nil, nil, err
	}
	defer buf.Destroy()

	iv, ciphertext, err = util.SealAEAD(string(key.scheme), plaintext, buf.Bytes(), o.aad)
	if err != nil {
		return nil, nil, fmt.Errorf("encrypting: %w", err)
	}
	return ciphertext, iv, nil
}

// Decrypt opens ciphertext produced by Encrypt. Any mismatch in ciphertext,
// IV, key or AAD fails with ErrDecryptFailed; wrong plaintext is never
// returned silently.
func Decrypt(ciphertext, iv []byte, key *KeyHandle, opts ...Option) ([]byte, error) {
	o := callOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	buf, err := key.open()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()

	plaintext, err := util.OpenAEAD(string(key.scheme), ciphertext, iv, buf.Bytes(), o.aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	return plaintext, nil
}

// GenerateChallenge returns cryptographically secure random bytes for use as
// an authentication challenge. A non-positive length selects
// DefaultChallengeSize. Challenges are never reused: every ceremony calls
// this afresh.
func GenerateChallenge(length int) ([]byte, error) {
	if length <= 0 {
		length = DefaultChallengeSize
	}
	b, err := util.RandomBytes(length)
	if err != nil {
		return nil, fmt.Errorf("generating challenge: %w", err)
	}
	return b, nil
}
