package directory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	d := Default()

	p, ok := d.Lookup("openai")
	require.True(t, ok)
	assert.Equal(t, "OpenAI", p.DisplayName)
	assert.Equal(t, "https://api.openai.com", p.BaseURL)
	assert.Equal(t, "Authorization", p.AuthHeaderName)
	assert.Equal(t, "Bearer ", p.AuthPrefix)

	assert.True(t, d.Known("anthropic"))
	assert.False(t, d.Known("definitely-not-a-provider"))
	assert.Equal(t, []string{"anthropic", "google", "mistral", "openai"}, d.Names())
}

func TestLookup_FoldsNames(t *testing.T) {
	d := Default()

	for _, name := range []string{"OpenAI", "  openai  ", "OPENAI"} {
		_, ok := d.Lookup(name)
		assert.True(t, ok, "expected %q to resolve", name)
	}
}

func TestFromYAML(t *testing.T) {
	d, err := FromYAML([]byte(`
providers:
  - name: Example
    display_name: Example API
    base_url: https://api.example.com
    auth_header: Authorization
    auth_prefix: "Bearer "
    test_path: /v1/ping
`))
	require.NoError(t, err)

	p, ok := d.Lookup("example")
	require.True(t, ok)
	assert.Equal(t, "Example API", p.DisplayName)
	assert.Equal(t, "/v1/ping", p.TestPath)
}

func TestFromYAML_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"EmptyName", "providers:\n  - base_url: https://x\n"},
		{"NoBaseURL", "providers:\n  - name: x\n"},
		{"Duplicate", "providers:\n  - name: x\n    base_url: https://a\n  - name: X\n    base_url: https://b\n"},
		{"Garbage", ":not yaml:\n -"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestReload_KeepsOldOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - name: good\n    base_url: https://good\n"), 0600))

	d, err := Load(path)
	require.NoError(t, err)
	require.True(t, d.Known("good"))

	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - name: bad\n"), 0600))
	assert.Error(t, d.Reload(path))
	assert.True(t, d.Known("good"), "failed reload must keep the previous set")
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - name: first\n    base_url: https://first\n"), 0600))

	d, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, d.Watch(t.Context(), path, nil))

	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - name: second\n    base_url: https://second\n"), 0600))

	deadline := time.After(3 * time.Second)
	for !d.Known("second") {
		select {
		case <-deadline:
			t.Fatal("directory never picked up the new provider")
		case <-time.After(20 * time.Millisecond):
		}
	}
	assert.False(t, d.Known("first"))
}
