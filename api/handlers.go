package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/keyguard/keymanager"
	"github.com/jmcleod/keyguard/session"
)

// maxBodySize bounds request bodies; secrets are short strings.
const maxBodySize = 64 * 1024

// Status handles GET /status.
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	statuses, err := a.manager.List(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	resp := StatusResponse{
		GateSupported:  a.manager.Supported(),
		ActiveSessions: []string{},
	}
	for _, s := range statuses {
		if s.Session != nil && s.Session.Active {
			resp.ActiveSessions = append(resp.ActiveSessions, s.Provider)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListProviders handles GET /providers. The response merges the directory
// with any durable state: known-but-unenrolled providers appear too.
func (a *API) ListProviders(w http.ResponseWriter, r *http.Request) {
	statuses, err := a.manager.List(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	byName := make(map[string]keymanager.Status, len(statuses))
	for _, s := range statuses {
		byName[s.Provider] = s
	}

	resp := ListProvidersResponse{Providers: []ProviderStatus{}}
	for _, name := range a.manager.Directory().Names() {
		p, _ := a.manager.Directory().Lookup(name)
		ps := ProviderStatus{Provider: name, DisplayName: p.DisplayName}
		if s, ok := byName[name]; ok {
			ps.Enrolled = s.Enrolled
			ps.HasSecret = s.HasSecret
			ps.Session = sessionView(s.Session)
		}
		resp.Providers = append(resp.Providers, ps)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Enroll handles POST /providers/{provider}/enroll.
func (a *API) Enroll(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if err := a.manager.Enroll(r.Context(), provider); err != nil {
		a.audit.logFailure(AuditEnrollFailed, r, provider, err)
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditEnrolled, r, provider)
	w.WriteHeader(http.StatusNoContent)
}

// StoreSecret handles PUT /providers/{provider}/secret.
func (a *API) StoreSecret(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var req StoreSecretRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := a.manager.StoreSecret(r.Context(), provider, req.Secret); err != nil {
		a.audit.logFailure(AuditSecretStoreFailed, r, provider, err)
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditSecretStored, r, provider)
	w.WriteHeader(http.StatusNoContent)
}

// RetrieveSecret handles GET /providers/{provider}/secret.
func (a *API) RetrieveSecret(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	secret, err := a.manager.RetrieveSecret(r.Context(), provider)
	if err != nil {
		a.audit.logFailure(AuditSecretRetrieveFailed, r, provider, err)
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditSecretRetrieved, r, provider)
	writeJSON(w, http.StatusOK, RetrieveSecretResponse{Provider: provider, Secret: secret})
}

// TestSecret handles POST /providers/{provider}/test.
func (a *API) TestSecret(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	result, err := a.manager.TestSecret(r.Context(), provider)
	if err != nil {
		a.audit.logFailure(AuditSecretTestFailed, r, provider, err)
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditSecretTested, r, provider)
	writeJSON(w, http.StatusOK, testResponse(result))
}

// SessionInfo handles GET /providers/{provider}/session.
func (a *API) SessionInfo(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	info, ok := a.manager.SessionInfo(provider)
	if !ok {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, sessionView(&info))
}

// Lock handles POST /providers/{provider}/lock.
func (a *API) Lock(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	a.manager.LockSession(provider)
	a.audit.logEvent(AuditSessionLocked, r, provider)
	w.WriteHeader(http.StatusNoContent)
}

// LockAll handles POST /lock.
func (a *API) LockAll(w http.ResponseWriter, r *http.Request) {
	a.manager.LockAllSessions()
	a.audit.logEvent(AuditAllSessionsLocked, r, "")
	w.WriteHeader(http.StatusNoContent)
}

// Revoke handles DELETE /providers/{provider}.
func (a *API) Revoke(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if err := a.manager.Revoke(r.Context(), provider); err != nil {
		a.audit.logFailure(AuditRevokeFailed, r, provider, err)
		mapError(w, err)
		return
	}
	a.audit.logEvent(AuditRevoked, r, provider)
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodySize)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// Exactly one JSON document.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON body")
	}
	return nil
}

func sessionView(info *session.Info) *SessionView {
	if info == nil || !info.Active {
		return nil
	}
	return &SessionView{
		Active:      true,
		RemainingMS: info.Remaining.Milliseconds(),
		ExpiresAt:   info.ExpiresAt,
	}
}
