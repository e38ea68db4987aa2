package api

import (
	"time"

	"github.com/jmcleod/keyguard/keymanager"
)

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// StatusResponse is returned from GET /status.
type StatusResponse struct {
	GateSupported  bool     `json:"gate_supported"`
	ActiveSessions []string `json:"active_sessions"`
}

// ListProvidersResponse is returned from GET /providers.
type ListProvidersResponse struct {
	Providers []ProviderStatus `json:"providers"`
}

// ProviderStatus describes one provider's directory entry and stored state.
type ProviderStatus struct {
	Provider    string       `json:"provider"`
	DisplayName string       `json:"display_name,omitempty"`
	Enrolled    bool         `json:"enrolled"`
	HasSecret   bool         `json:"has_secret"`
	Session     *SessionView `json:"session,omitempty"`
}

// SessionView is the wire form of a session snapshot.
type SessionView struct {
	Active      bool      `json:"active"`
	RemainingMS int64     `json:"remaining_ms"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// StoreSecretRequest is the JSON body for PUT /providers/{provider}/secret.
type StoreSecretRequest struct {
	Secret string `json:"secret"`
}

// RetrieveSecretResponse is returned from GET /providers/{provider}/secret.
type RetrieveSecretResponse struct {
	Provider string `json:"provider"`
	Secret   string `json:"secret"`
}

// TestSecretResponse is returned from POST /providers/{provider}/test.
type TestSecretResponse struct {
	Provider   string `json:"provider"`
	StatusCode int    `json:"status_code"`
	OK         bool   `json:"ok"`
}

func testResponse(r keymanager.TestResult) TestSecretResponse {
	return TestSecretResponse{Provider: r.Provider, StatusCode: r.StatusCode, OK: r.OK}
}
