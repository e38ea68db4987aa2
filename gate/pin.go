package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmcleod/keyguard/internal/util"
)

const minPINLength = 4

// PromptFunc collects a PIN from the user. Implementations should return
// context or EOF errors when the user aborts input.
type PromptFunc func(ctx context.Context, prompt string) (string, error)

// pinVerifier is the credential Data payload for PIN credentials: an
// argon2id hash of the normalized PIN.
type pinVerifier struct {
	Salt   []byte              `json:"salt"`
	Hash   []byte              `json:"hash"`
	Params util.Argon2idParams `json:"params"`
}

// PINGate implements Gate with a device-local PIN hashed under argon2id.
// It serves hosts without a platform authenticator and the terminal CLI,
// where no browser is present to run a WebAuthn ceremony.
type PINGate struct {
	prompt PromptFunc
	params util.Argon2idParams
}

var _ Gate = (*PINGate)(nil)

// NewPIN creates a PIN-backed gate that collects input via prompt.
func NewPIN(prompt PromptFunc) *PINGate {
	return &PINGate{
		prompt: prompt,
		params: util.DefaultArgon2idParams(),
	}
}

// Supported implements Gate.
func (g *PINGate) Supported() bool {
	return g.prompt != nil
}

// Enroll implements Gate. The user chooses and confirms a PIN; the stored
// credential holds only the salted hash.
func (g *PINGate) Enroll(ctx context.Context, provider string) (*Credential, error) {
	if g.prompt == nil {
		return nil, errOf(KindNotSupported, errors.New("no PIN prompt configured"))
	}

	pin, err := g.prompt(ctx, fmt.Sprintf("Create a PIN for %s", provider))
	if err != nil {
		return nil, classify(err)
	}
	if len(pin) < minPINLength {
		return nil, errOf(KindInvalidState, fmt.Errorf("PIN must be at least %d characters", minPINLength))
	}

	confirm, err := g.prompt(ctx, "Confirm PIN")
	if err != nil {
		return nil, classify(err)
	}
	if pin != confirm {
		return nil, errOf(KindInvalidState, errors.New("PINs do not match"))
	}

	salt, err := util.RandomBytes(16)
	if err != nil {
		return nil, errOf(KindUnknown, err)
	}
	hash, err := util.DeriveArgon2idKey(util.Normalize(pin), salt, g.params)
	if err != nil {
		return nil, errOf(KindUnknown, err)
	}

	data, err := json.Marshal(pinVerifier{Salt: salt, Hash: hash, Params: g.params})
	if err != nil {
		return nil, errOf(KindUnknown, err)
	}

	id, err := util.RandomBytes(16)
	if err != nil {
		return nil, errOf(KindUnknown, err)
	}
	return &Credential{ID: id, Data: data}, nil
}

// Authenticate implements Gate. A wrong PIN classifies as a cancelled
// verification, the same class the platform reports for a failed biometric
// match.
func (g *PINGate) Authenticate(ctx context.Context, provider string, cred *Credential) error {
	if cred == nil || len(cred.ID) == 0 {
		return errOf(KindMissingCredential, errors.New("no credential enrolled"))
	}

	var v pinVerifier
	if err := json.Unmarshal(cred.Data, &v); err != nil {
		return errOf(KindMissingCredential, fmt.Errorf("corrupt credential data: %w", err))
	}

	pin, err := g.prompt(ctx, fmt.Sprintf("Enter PIN for %s", provider))
	if err != nil {
		return classify(err)
	}

	ok, err := util.CompareArgon2idKey(util.Normalize(pin), v.Salt, v.Params, v.Hash)
	if err != nil {
		return errOf(KindUnknown, err)
	}
	if !ok {
		return errOf(KindUserCancelled, errors.New("PIN verification failed"))
	}
	return nil
}
