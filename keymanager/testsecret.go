package keymanager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jmcleod/keyguard/events"
)

// TestResult reports the outcome of a live check against a provider's API.
type TestResult struct {
	Provider   string `json:"provider"`
	StatusCode int    `json:"status_code"`
	OK         bool   `json:"ok"`
}

// TestSecret retrieves provider's secret through the normal session pipeline
// and makes one authenticated GET against the provider's test endpoint. The
// returned result distinguishes a rejected secret (401/403) from transport
// failures; any non-rejection error leaves the session intact.
func (m *Manager) TestSecret(ctx context.Context, provider string) (TestResult, error) {
	result := TestResult{Provider: provider}

	secret, err := m.RetrieveSecret(ctx, provider)
	if err != nil {
		m.emitErr(EventTestError, provider, err)
		return result, err
	}

	p, ok := m.directory.Lookup(provider)
	if !ok {
		m.emitErr(EventTestError, provider, ErrUnknownProvider)
		return result, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+p.TestPath, nil)
	if err != nil {
		m.emitErr(EventTestError, provider, err)
		return result, fmt.Errorf("building test request for %s: %w", provider, err)
	}
	req.Header.Set(p.AuthHeaderName, p.AuthPrefix+secret)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.emitErr(EventTestError, provider, err)
		return result, fmt.Errorf("calling %s test endpoint: %w", provider, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	result.StatusCode = resp.StatusCode
	result.OK = resp.StatusCode >= 200 && resp.StatusCode < 300

	m.logger.Info("secret tested",
		slog.String("provider", provider),
		slog.Int("status", resp.StatusCode),
		slog.Bool("ok", result.OK))
	m.emitter.Emit(events.Event{Name: EventSecretTested, Provider: provider})
	return result, nil
}
