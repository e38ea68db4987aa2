// Package keymanager is the orchestrating façade over the credential gate,
// the AEAD codec, durable storage and the session registry. Each provider
// moves through unenrolled → enrolled → secret stored, with a volatile
// session layered on top of the stored state. Callers interact only with the
// Manager; no other package reaches into a session's cache directly.
package keymanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmcleod/keyguard/crypto"
	"github.com/jmcleod/keyguard/directory"
	"github.com/jmcleod/keyguard/events"
	"github.com/jmcleod/keyguard/gate"
	icrypto "github.com/jmcleod/keyguard/internal/crypto"
	"github.com/jmcleod/keyguard/session"
	"github.com/jmcleod/keyguard/storage"
)

// DefaultSessionDuration is how long a session stays unlocked without being
// extended.
const DefaultSessionDuration = 5 * time.Minute

// aadVersion tags the additional-data layout bound to each ciphertext.
const aadVersion = 1

// Manager coordinates the five provider operations. Safe for concurrent use;
// operations on different providers are independent.
type Manager struct {
	store     storage.Store
	gate      gate.Gate
	registry  *session.Registry
	directory *directory.Directory
	emitter   *events.Emitter

	sessionDuration time.Duration
	scheme          crypto.Scheme
	httpClient      *http.Client
	logger          *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSessionDuration sets how long sessions stay unlocked.
func WithSessionDuration(d time.Duration) ManagerOption {
	return func(m *Manager) { m.sessionDuration = d }
}

// WithScheme selects the AEAD scheme for newly stored secrets. Existing
// records keep the scheme they were stored under.
func WithScheme(s crypto.Scheme) ManagerOption {
	return func(m *Manager) { m.scheme = s }
}

// WithDirectory replaces the built-in provider directory.
func WithDirectory(d *directory.Directory) ManagerOption {
	return func(m *Manager) { m.directory = d }
}

// WithHTTPClient sets the client used by TestSecret.
func WithHTTPClient(c *http.Client) ManagerOption {
	return func(m *Manager) { m.httpClient = c }
}

// WithLogger sets the structured logger. Secrets are never logged.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager builds a Manager over the given storage backend and credential
// gate, initializing the backend.
func NewManager(ctx context.Context, store storage.Store, g gate.Gate, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("storage backend is required")
	}
	if g == nil {
		return nil, fmt.Errorf("credential gate is required")
	}

	m := &Manager{
		store:           store,
		gate:            g,
		registry:        session.NewRegistry(),
		directory:       directory.Default(),
		emitter:         events.NewEmitter(),
		sessionDuration: DefaultSessionDuration,
		scheme:          crypto.DefaultScheme,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	m.relaySessionEvents()
	return m, nil
}

// Supported reports whether the configured gate can run ceremonies on this
// platform.
func (m *Manager) Supported() bool {
	return m.gate.Supported()
}

// Directory exposes the provider directory for lookups and reloads.
func (m *Manager) Directory() *directory.Directory {
	return m.directory
}

// Enroll creates a credential for provider and persists it. Re-enrolling a
// provider replaces its credential; a stored secret survives, re-encrypted
// under the new credential binding. The gate itself may refuse with an
// invalid-state error when the authenticator considers the provider already
// enrolled, which propagates unchanged.
func (m *Manager) Enroll(ctx context.Context, provider string) error {
	if err := m.validateProvider(provider); err != nil {
		m.emitErr(EventEnrollError, provider, err)
		return err
	}

	rec, err := m.store.Get(ctx, provider)
	if errors.Is(err, storage.ErrNotFound) {
		rec = &storage.Record{Provider: provider, CreatedAt: time.Now()}
	} else if err != nil {
		m.emitErr(EventEnrollError, provider, err)
		return fmt.Errorf("loading record for %s: %w", provider, err)
	}

	cred, err := m.gate.Enroll(ctx, provider)
	if err != nil {
		m.emitErr(EventEnrollError, provider, err)
		return fmt.Errorf("enrolling %s: %w", provider, err)
	}

	if rec.HasSecret() {
		if err := m.rebindSecret(rec, cred.ID); err != nil {
			m.emitErr(EventEnrollError, provider, err)
			return fmt.Errorf("re-binding stored secret for %s: %w", provider, err)
		}
	}
	rec.CredentialID = cred.ID
	rec.CredentialData = cred.Data
	rec.UpdatedAt = time.Now()

	if err := m.store.Put(ctx, rec); err != nil {
		m.emitErr(EventEnrollError, provider, err)
		return fmt.Errorf("persisting record for %s: %w", provider, err)
	}

	m.logger.Info("credential enrolled", slog.String("provider", provider))
	m.emitter.Emit(events.Event{Name: EventEnrolled, Provider: provider})
	return nil
}

// StoreSecret encrypts and persists a secret for provider, then starts a
// session so the value is immediately usable without a second ceremony.
// Storing always re-authenticates, active session or not: writing a new
// secret is a higher-privilege action than reading a cached one.
func (m *Manager) StoreSecret(ctx context.Context, provider, secret string) error {
	if err := m.validateProvider(provider); err != nil {
		m.emitErr(EventStoreError, provider, err)
		return err
	}
	if secret == "" {
		m.emitErr(EventStoreError, provider, ErrEmptySecret)
		return ErrEmptySecret
	}

	rec, err := m.loadEnrolled(ctx, provider)
	if err != nil {
		m.emitErr(EventStoreError, provider, err)
		return err
	}

	if err := m.authenticate(ctx, rec); err != nil {
		m.emitErr(EventStoreError, provider, err)
		return err
	}

	if err := m.sealInto(rec, secret); err != nil {
		m.emitErr(EventStoreError, provider, err)
		return err
	}
	rec.UpdatedAt = time.Now()

	if err := m.store.Put(ctx, rec); err != nil {
		m.emitErr(EventStoreError, provider, err)
		return fmt.Errorf("persisting record for %s: %w", provider, err)
	}

	m.registry.Start(provider, secret, m.sessionDuration)
	m.logger.Info("secret stored", slog.String("provider", provider))
	m.emitter.Emit(events.Event{Name: EventSecretStored, Provider: provider})
	return nil
}

// RetrieveSecret returns the plaintext secret for provider. With an active
// session the cached value is returned and the session extended, with no
// ceremony and no decryption. Otherwise the caller is authenticated, the
// record decrypted, and a fresh session started.
func (m *Manager) RetrieveSecret(ctx context.Context, provider string) (string, error) {
	if err := m.validateProvider(provider); err != nil {
		m.emitErr(EventRetrieveError, provider, err)
		return "", err
	}

	if secret, ok := m.registry.APIKey(provider); ok {
		m.registry.Extend(provider)
		m.emitter.Emit(events.Event{Name: EventSecretRetrieved, Provider: provider, FromCache: true})
		return secret, nil
	}

	rec, err := m.store.Get(ctx, provider)
	if errors.Is(err, storage.ErrNotFound) {
		m.emitErr(EventRetrieveError, provider, ErrNoStoredSecret)
		return "", fmt.Errorf("%w: %s", ErrNoStoredSecret, provider)
	}
	if err != nil {
		err = fmt.Errorf("loading record for %s: %w", provider, err)
		m.emitErr(EventRetrieveError, provider, err)
		return "", err
	}
	if !rec.HasCredential() {
		m.emitErr(EventRetrieveError, provider, ErrNoCredential)
		return "", fmt.Errorf("%w: %s", ErrNoCredential, provider)
	}
	if !rec.HasSecret() {
		m.emitErr(EventRetrieveError, provider, ErrNoStoredSecret)
		return "", fmt.Errorf("%w: %s", ErrNoStoredSecret, provider)
	}

	if err := m.authenticate(ctx, rec); err != nil {
		m.emitErr(EventRetrieveError, provider, err)
		return "", err
	}

	secret, err := m.openFrom(rec)
	if err != nil {
		m.emitErr(EventRetrieveError, provider, err)
		return "", err
	}

	m.registry.Start(provider, secret, m.sessionDuration)
	m.emitter.Emit(events.Event{Name: EventSecretRetrieved, Provider: provider, FromCache: false})
	return secret, nil
}

// Revoke ends any live session for provider and deletes the durable record.
// Revoking a provider with nothing on record is a no-op that still emits
// revoked.
func (m *Manager) Revoke(ctx context.Context, provider string) error {
	if provider == "" {
		m.emitErr(EventRevokeError, provider, ErrEmptyProvider)
		return ErrEmptyProvider
	}

	m.registry.End(provider)

	if err := m.store.Delete(ctx, provider); err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.emitErr(EventRevokeError, provider, err)
		return fmt.Errorf("deleting record for %s: %w", provider, err)
	}

	m.logger.Info("provider revoked", slog.String("provider", provider))
	m.emitter.Emit(events.Event{Name: EventRevoked, Provider: provider})
	return nil
}

// LockSession ends provider's session without touching durable storage.
// Returns false if no session was active.
func (m *Manager) LockSession(provider string) bool {
	return m.registry.End(provider)
}

// LockAllSessions ends every active session. Durable records are untouched.
func (m *Manager) LockAllSessions() {
	m.registry.EndAll()
}

// SessionInfo returns the state of provider's session, if one is active.
func (m *Manager) SessionInfo(provider string) (session.Info, bool) {
	return m.registry.Info(provider)
}

// Status describes one provider's durable and volatile state. Secret
// material never appears here.
type Status struct {
	Provider  string        `json:"provider"`
	Enrolled  bool          `json:"enrolled"`
	HasSecret bool          `json:"has_secret"`
	Session   *session.Info `json:"session,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// List returns the status of every provider with a durable record.
func (m *Manager) List(ctx context.Context) ([]Status, error) {
	recs, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	statuses := make([]Status, 0, len(recs))
	for _, rec := range recs {
		s := Status{
			Provider:  rec.Provider,
			Enrolled:  rec.HasCredential(),
			HasSecret: rec.HasSecret(),
			UpdatedAt: rec.UpdatedAt,
		}
		if info, ok := m.registry.Info(rec.Provider); ok {
			s.Session = &info
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

func (m *Manager) validateProvider(provider string) error {
	if provider == "" {
		return ErrEmptyProvider
	}
	if !m.directory.Known(provider) {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return nil
}

// loadEnrolled fetches provider's record and requires an enrolled
// credential. A missing record reads as ErrNoCredential.
func (m *Manager) loadEnrolled(ctx context.Context, provider string) (*storage.Record, error) {
	rec, err := m.store.Get(ctx, provider)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoCredential, provider)
	}
	if err != nil {
		return nil, fmt.Errorf("loading record for %s: %w", provider, err)
	}
	if !rec.HasCredential() {
		return nil, fmt.Errorf("%w: %s", ErrNoCredential, provider)
	}
	return rec, nil
}

func (m *Manager) authenticate(ctx context.Context, rec *storage.Record) error {
	cred := &gate.Credential{ID: rec.CredentialID, Data: rec.CredentialData}
	if err := m.gate.Authenticate(ctx, rec.Provider, cred); err != nil {
		return fmt.Errorf("authenticating %s: %w", rec.Provider, err)
	}
	return nil
}

// sealInto generates a fresh key and writes a complete secret envelope into
// rec. All four envelope fields are replaced together.
func (m *Manager) sealInto(rec *storage.Record, secret string) error {
	key, err := crypto.GenerateKey(true, crypto.WithScheme(m.scheme))
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}

	aad := icrypto.AADSecret(rec.Provider, rec.CredentialID, aadVersion)
	ciphertext, iv, err := crypto.Encrypt([]byte(secret), key, crypto.WithAAD(aad))
	if err != nil {
		return fmt.Errorf("encrypting secret: %w", err)
	}

	raw, err := key.Export()
	if err != nil {
		return fmt.Errorf("exporting key: %w", err)
	}

	rec.WrappedKey = raw
	rec.IV = iv
	rec.Ciphertext = ciphertext
	rec.Scheme = string(m.scheme)
	return nil
}

// openFrom decrypts rec's secret envelope under the scheme and credential it
// was stored with.
func (m *Manager) openFrom(rec *storage.Record) (string, error) {
	key, err := crypto.ImportKey(rec.WrappedKey, false, crypto.WithScheme(crypto.Scheme(rec.Scheme)))
	if err != nil {
		return "", fmt.Errorf("importing key: %w", err)
	}

	aad := icrypto.AADSecret(rec.Provider, rec.CredentialID, aadVersion)
	plaintext, err := crypto.Decrypt(rec.Ciphertext, rec.IV, key, crypto.WithAAD(aad))
	if err != nil {
		return "", fmt.Errorf("decrypting secret for %s: %w", rec.Provider, err)
	}
	return string(plaintext), nil
}

// rebindSecret re-encrypts rec's stored secret so its ciphertext stays bound
// to the credential that now guards it. A fresh key and nonce replace the
// old envelope.
func (m *Manager) rebindSecret(rec *storage.Record, newCredentialID []byte) error {
	secret, err := m.openFrom(rec)
	if err != nil {
		return err
	}

	key, err := crypto.GenerateKey(true, crypto.WithScheme(crypto.Scheme(rec.Scheme)))
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}

	aad := icrypto.AADSecret(rec.Provider, newCredentialID, aadVersion)
	ciphertext, iv, err := crypto.Encrypt([]byte(secret), key, crypto.WithAAD(aad))
	if err != nil {
		return fmt.Errorf("encrypting secret: %w", err)
	}

	raw, err := key.Export()
	if err != nil {
		return fmt.Errorf("exporting key: %w", err)
	}

	rec.WrappedKey = raw
	rec.IV = iv
	rec.Ciphertext = ciphertext
	return nil
}
