// Package gate binds a device-bound credential to a provider namespace and
// performs authentication challenges against it. Authenticator failures are
// classified into a small set of kinds so callers can branch on them (a
// cancelled prompt is handled differently from a busy authenticator).
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a credential operation failure.
type Kind string

const (
	// KindNotSupported: the platform lacks the authenticator capability.
	KindNotSupported Kind = "not_supported"
	// KindUserCancelled: the user rejected the prompt, or it timed out.
	KindUserCancelled Kind = "user_cancelled"
	// KindInvalidState: the authenticator is busy or already enrolled.
	KindInvalidState Kind = "invalid_state"
	// KindMissingCredential: no credential handle is on record.
	KindMissingCredential Kind = "missing_credential"
	// KindUnknown wraps anything else.
	KindUnknown Kind = "unknown"
)

// CredentialError is a classified enrollment or authentication failure.
type CredentialError struct {
	Kind Kind
	Err  error
}

func (e *CredentialError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("credential error (%s)", e.Kind)
	}
	return fmt.Sprintf("credential error (%s): %v", e.Kind, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a CredentialError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *CredentialError
	return errors.As(err, &ce) && ce.Kind == kind
}

func errOf(kind Kind, err error) *CredentialError {
	return &CredentialError{Kind: kind, Err: err}
}

// Credential is the opaque handle to an enrolled credential. ID is the
// authenticator-assigned identifier; Data carries the implementation's
// verifier material (e.g. the WebAuthn public key, or a PIN verifier) and is
// persisted alongside the provider record.
type Credential struct {
	ID   []byte `json:"id"`
	Data []byte `json:"data"`
}

// Gate is the authentication boundary in front of stored secrets. Every
// ceremony generates a fresh challenge internally; challenges are never
// reused across calls.
type Gate interface {
	// Enroll creates a new credential scoped to provider.
	Enroll(ctx context.Context, provider string) (*Credential, error)
	// Authenticate runs a verification ceremony against cred. A nil or
	// empty credential fails with KindMissingCredential.
	Authenticate(ctx context.Context, provider string, cred *Credential) error
	// Supported is a synchronous, side-effect-free capability probe.
	Supported() bool
}

// classify maps raw authenticator failures onto kinds. Browser-driven
// ceremonies surface DOMException names in the error text; a context
// deadline means the ceremony timed out, which the platform reports the same
// way as an explicit user rejection.
func classify(err error) *CredentialError {
	var ce *CredentialError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errOf(KindUserCancelled, err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "NotAllowedError"), strings.Contains(msg, "AbortError"):
		return errOf(KindUserCancelled, err)
	case strings.Contains(msg, "InvalidStateError"):
		return errOf(KindInvalidState, err)
	case strings.Contains(msg, "NotSupportedError"):
		return errOf(KindNotSupported, err)
	default:
		return errOf(KindUnknown, err)
	}
}
