package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/keyguard/gate"
	"github.com/jmcleod/keyguard/keymanager"
	"github.com/jmcleod/keyguard/storage/memory"
)

// scriptedPrompt returns queued answers in order; an exhausted queue reads
// as the user walking away.
func scriptedPrompt(answers ...string) gate.PromptFunc {
	var mu sync.Mutex
	return func(ctx context.Context, prompt string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(answers) == 0 {
			return "", errors.New("NotAllowedError: prompt dismissed")
		}
		answer := answers[0]
		answers = answers[1:]
		return answer, nil
	}
}

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAPI(t *testing.T, answers ...string) (*API, http.Handler) {
	t.Helper()
	mgr, err := keymanager.NewManager(t.Context(), memory.NewStore(), gate.NewPIN(scriptedPrompt(answers...)))
	require.NoError(t, err)
	a := New(mgr, WithLogger(newDiscardLogger()))
	return a, a.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestFullFlow(t *testing.T) {
	// Enroll prompts twice (enter + confirm), store and the post-lock
	// retrieve once each.
	_, h := newTestAPI(t, "1234", "1234", "1234", "1234")

	rec := doJSON(t, h, http.MethodPost, "/providers/openai/enroll", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/providers/openai/secret", StoreSecretRequest{Secret: "sk-flow"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Session is live: retrieval needs no prompt.
	rec = doJSON(t, h, http.MethodGet, "/providers/openai/secret", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got RetrieveSecretResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "sk-flow", got.Secret)

	rec = doJSON(t, h, http.MethodGet, "/providers/openai/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.True(t, sess.Active)
	assert.Positive(t, sess.RemainingMS)

	rec = doJSON(t, h, http.MethodPost, "/providers/openai/lock", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/providers/openai/session", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Locked: the next retrieval consumes the last scripted prompt.
	rec = doJSON(t, h, http.MethodGet, "/providers/openai/secret", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/providers/openai", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/providers/openai/secret", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	_, h := newTestAPI(t, "1234", "1234")

	// Unknown provider.
	rec := doJSON(t, h, http.MethodPost, "/providers/not-a-thing/enroll", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Store before enrollment.
	rec = doJSON(t, h, http.MethodPut, "/providers/openai/secret", StoreSecretRequest{Secret: "v"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Malformed body.
	req := httptest.NewRequest(http.MethodPut, "/providers/openai/secret", bytes.NewReader([]byte("{nope")))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Empty secret.
	rec = doJSON(t, h, http.MethodPost, "/providers/openai/enroll", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, h, http.MethodPut, "/providers/openai/secret", StoreSecretRequest{Secret: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing stored yet.
	rec = doJSON(t, h, http.MethodGet, "/providers/openai/secret", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelledCeremonyCarriesKind(t *testing.T) {
	// Enrollment succeeds, then the prompt queue runs dry.
	_, h := newTestAPI(t, "1234", "1234")

	rec := doJSON(t, h, http.MethodPost, "/providers/openai/enroll", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/providers/openai/secret", StoreSecretRequest{Secret: "sk"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(gate.KindUserCancelled), resp.Kind)
}

func TestListProviders(t *testing.T) {
	_, h := newTestAPI(t, "1234", "1234", "1234")

	doJSON(t, h, http.MethodPost, "/providers/openai/enroll", nil)
	doJSON(t, h, http.MethodPut, "/providers/openai/secret", StoreSecretRequest{Secret: "sk"})

	rec := doJSON(t, h, http.MethodGet, "/providers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListProvidersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	byName := map[string]ProviderStatus{}
	for _, p := range resp.Providers {
		byName[p.Provider] = p
	}
	assert.True(t, byName["openai"].Enrolled)
	assert.True(t, byName["openai"].HasSecret)
	require.NotNil(t, byName["openai"].Session)
	// Known but untouched providers are listed too.
	assert.Contains(t, byName, "anthropic")
	assert.False(t, byName["anthropic"].Enrolled)
}

func TestStatus(t *testing.T) {
	_, h := newTestAPI(t, "1234", "1234", "1234")

	rec := doJSON(t, h, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.GateSupported)
	assert.Empty(t, resp.ActiveSessions)

	doJSON(t, h, http.MethodPost, "/providers/openai/enroll", nil)
	doJSON(t, h, http.MethodPut, "/providers/openai/secret", StoreSecretRequest{Secret: "sk"})

	rec = doJSON(t, h, http.MethodGet, "/status", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"openai"}, resp.ActiveSessions)

	rec = doJSON(t, h, http.MethodPost, "/lock", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/status", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.ActiveSessions)
}

func TestSecurityHeaders(t *testing.T) {
	_, h := newTestAPI(t)

	rec := doJSON(t, h, http.MethodGet, "/status", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestMetricsEndpoint(t *testing.T) {
	// Enroll prompts twice (enter + confirm), store once.
	a, h := newTestAPI(t, "1234", "1234", "1234")

	doJSON(t, h, http.MethodPost, "/providers/openai/enroll", nil)
	doJSON(t, h, http.MethodPut, "/providers/openai/secret", StoreSecretRequest{Secret: "sk"})

	rec := httptest.NewRecorder()
	a.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `keyguard_operations_total{operation="enroll",outcome="success"} 1`)
	assert.Contains(t, body, `keyguard_operations_total{operation="store",outcome="success"} 1`)
	assert.Contains(t, body, "keyguard_active_sessions 1")
}
