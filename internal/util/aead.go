package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// AEADKeySize is the symmetric key size for both supported ciphers.
	AEADKeySize = 32
	// NonceSize is the AEAD nonce size for both supported ciphers.
	NonceSize = 12
)

// Supported AEAD scheme identifiers, persisted in stored records.
const (
	SchemeAESGCM   = "aes256gcm"
	SchemeChaCha20 = "chacha20poly1305"
)

func newAEAD(scheme string, rawKey []byte) (cipher.AEAD, error) {
	if len(rawKey) != AEADKeySize {
		return nil, fmt.Errorf("invalid AEAD key size: got %d, want %d", len(rawKey), AEADKeySize)
	}

	switch scheme {
	case SchemeAESGCM:
		block, err := aes.NewCipher(rawKey)
		if err != nil {
			return nil, fmt.Errorf("creating cipher: %w", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("creating GCM: %w", err)
		}
		return gcm, nil
	case SchemeChaCha20:
		aead, err := chacha20poly1305.New(rawKey)
		if err != nil {
			return nil, fmt.Errorf("creating chacha20poly1305: %w", err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("unsupported AEAD scheme: %s", scheme)
	}
}

// SealAEAD encrypts plainText under rawKey with a fresh random nonce and
// returns nonce and ciphertext separately. The nonce is never reused: it is
// drawn from crypto/rand on every call.
func SealAEAD(scheme string, plainText, rawKey, aad []byte) (nonce, cipherText []byte, err error) {
	aead, err := newAEAD(scheme, rawKey)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, aead.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	return nonce, aead.Seal(nil, nonce, plainText, aad), nil
}

// OpenAEAD decrypts cipherText produced by SealAEAD. It fails whenever
// ciphertext, nonce, key or AAD do not match exactly what sealed the data.
func OpenAEAD(scheme string, cipherText, nonce, rawKey, aad []byte) ([]byte, error) {
	aead, err := newAEAD(scheme, rawKey)
	if err != nil {
		return nil, err
	}

	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("invalid nonce size: got %d, want %d", len(nonce), aead.NonceSize())
	}

	plainText, err := aead.Open(nil, nonce, cipherText, aad)
	if err != nil {
		return nil, fmt.Errorf("decrypting ciphertext: %w", err)
	}

	return plainText, nil
}

// NewAEADKey generates a fresh 256-bit symmetric key.
func NewAEADKey() ([]byte, error) {
	rawKey := make([]byte, AEADKeySize)
	if _, err := rand.Read(rawKey); err != nil {
		return nil, fmt.Errorf("generating AEAD key: %w", err)
	}
	return rawKey, nil
}
