package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jmcleod/keyguard/crypto"
)

// DefaultCeremonyTimeout bounds how long a single authenticator ceremony may
// take before the platform reports it as cancelled.
const DefaultCeremonyTimeout = 60 * time.Second

// Authenticator is the opaque platform capability that runs WebAuthn
// ceremonies: in practice a bridge to a browser or OS prompt. It either
// succeeds with the client's JSON response or fails with an error carrying
// the platform's DOMException name.
//
// A ceremony abandoned by the caller keeps running on the platform side
// until it resolves; there is no mid-flight cancellation.
type Authenticator interface {
	// Create runs a credential-creation ceremony for the given options.
	Create(ctx context.Context, options *protocol.CredentialCreation) ([]byte, error)
	// Get runs an assertion ceremony for the given options.
	Get(ctx context.Context, options *protocol.CredentialAssertion) ([]byte, error)
	// Available reports whether a platform authenticator is present.
	Available() bool
}

// WebAuthnConfig configures the relying-party side of the gate.
type WebAuthnConfig struct {
	RPID          string
	RPOrigin      string
	RPDisplayName string
	// Timeout for each ceremony; DefaultCeremonyTimeout if zero.
	Timeout time.Duration
}

// WebAuthnGate implements Gate over a platform WebAuthn authenticator.
type WebAuthnGate struct {
	wa      *webauthn.WebAuthn
	auth    Authenticator
	timeout time.Duration
}

var _ Gate = (*WebAuthnGate)(nil)

// NewWebAuthn creates a WebAuthn-backed gate driven by auth.
func NewWebAuthn(cfg WebAuthnConfig, auth Authenticator) (*WebAuthnGate, error) {
	if auth == nil {
		return nil, errors.New("authenticator must not be nil")
	}
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPOrigins:     []string{cfg.RPOrigin},
		RPDisplayName: cfg.RPDisplayName,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring webauthn: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCeremonyTimeout
	}
	return &WebAuthnGate{wa: wa, auth: auth, timeout: timeout}, nil
}

// gateUser adapts a provider namespace to the webauthn.User interface. Each
// provider is its own logical user, so one credential binds to exactly one
// provider.
type gateUser struct {
	provider    string
	credentials []webauthn.Credential
}

func (u *gateUser) WebAuthnID() []byte                         { return []byte(u.provider) }
func (u *gateUser) WebAuthnName() string                       { return u.provider }
func (u *gateUser) WebAuthnDisplayName() string                { return u.provider }
func (u *gateUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

// Supported implements Gate.
func (g *WebAuthnGate) Supported() bool {
	return g.auth.Available()
}

// Enroll implements Gate. It runs a full registration ceremony with a fresh
// challenge and returns the created credential with its public key material
// serialized into Data.
func (g *WebAuthnGate) Enroll(ctx context.Context, provider string) (*Credential, error) {
	if !g.auth.Available() {
		return nil, errOf(KindNotSupported, errors.New("no platform authenticator available"))
	}

	challenge, err := crypto.GenerateChallenge(0)
	if err != nil {
		return nil, errOf(KindUnknown, err)
	}

	user := &gateUser{provider: provider}
	options, sessionData, err := g.wa.BeginRegistration(user,
		func(cco *protocol.PublicKeyCredentialCreationOptions) {
			cco.Challenge = protocol.URLEncodedBase64(challenge)
			cco.Timeout = int(g.timeout.Milliseconds())
			cco.Attestation = protocol.PreferNoAttestation
			cco.AuthenticatorSelection = protocol.AuthenticatorSelection{
				AuthenticatorAttachment: protocol.Platform,
				UserVerification:        protocol.VerificationRequired,
			}
		})
	if err != nil {
		return nil, errOf(KindUnknown, fmt.Errorf("beginning registration: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	respBody, err := g.auth.Create(ctx, options)
	if err != nil {
		return nil, classify(err)
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(respBody))
	if err != nil {
		return nil, errOf(KindUnknown, fmt.Errorf("parsing creation response: %w", err))
	}

	cred, err := g.wa.CreateCredential(user, *sessionData, parsed)
	if err != nil {
		return nil, classify(err)
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return nil, errOf(KindUnknown, fmt.Errorf("serializing credential: %w", err))
	}
	return &Credential{ID: cred.ID, Data: data}, nil
}

// Authenticate implements Gate. It runs an assertion ceremony against the
// enrolled credential with a fresh challenge.
func (g *WebAuthnGate) Authenticate(ctx context.Context, provider string, cred *Credential) error {
	if cred == nil || len(cred.ID) == 0 {
		return errOf(KindMissingCredential, errors.New("no credential enrolled"))
	}

	var wc webauthn.Credential
	if err := json.Unmarshal(cred.Data, &wc); err != nil {
		return errOf(KindMissingCredential, fmt.Errorf("corrupt credential data: %w", err))
	}

	challenge, err := crypto.GenerateChallenge(0)
	if err != nil {
		return errOf(KindUnknown, err)
	}

	user := &gateUser{provider: provider, credentials: []webauthn.Credential{wc}}
	options, sessionData, err := g.wa.BeginLogin(user,
		func(cro *protocol.PublicKeyCredentialRequestOptions) {
			cro.Challenge = protocol.URLEncodedBase64(challenge)
			cro.Timeout = int(g.timeout.Milliseconds())
			cro.UserVerification = protocol.VerificationRequired
		})
	if err != nil {
		return errOf(KindUnknown, fmt.Errorf("beginning login: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	respBody, err := g.auth.Get(ctx, options)
	if err != nil {
		return classify(err)
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(respBody))
	if err != nil {
		return errOf(KindUnknown, fmt.Errorf("parsing assertion response: %w", err))
	}

	if _, err := g.wa.ValidateLogin(user, *sessionData, parsed); err != nil {
		return classify(err)
	}
	return nil
}
