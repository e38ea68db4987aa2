// Package directory is the static lookup of known API providers: where to
// send an authenticated test call and how to shape its auth header. The core
// crypto and session logic never consults it beyond name validation.
package directory

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jmcleod/keyguard/internal/util"
)

// Provider describes one known API vendor.
type Provider struct {
	Name           string `yaml:"name" json:"name"`
	DisplayName    string `yaml:"display_name" json:"display_name"`
	BaseURL        string `yaml:"base_url" json:"base_url"`
	AuthHeaderName string `yaml:"auth_header" json:"auth_header"`
	AuthPrefix     string `yaml:"auth_prefix" json:"auth_prefix"`
	TestPath       string `yaml:"test_path" json:"test_path"`
}

// Directory maps canonical provider names to their entries.
// Safe for concurrent use; Reload swaps the whole set atomically.
type Directory struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// Default returns a directory of the built-in provider set.
func Default() *Directory {
	d := &Directory{providers: make(map[string]Provider)}
	d.replace(builtins())
	return d
}

// FromProviders builds a directory from an explicit provider list.
func FromProviders(providers []Provider) (*Directory, error) {
	d := &Directory{providers: make(map[string]Provider)}
	if err := d.validateAndReplace(providers); err != nil {
		return nil, err
	}
	return d, nil
}

// Load reads a YAML provider list from path.
func Load(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading provider directory: %w", err)
	}
	return FromYAML(data)
}

// FromYAML parses a YAML provider list.
func FromYAML(data []byte) (*Directory, error) {
	var doc struct {
		Providers []Provider `yaml:"providers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing provider directory: %w", err)
	}
	return FromProviders(doc.Providers)
}

// Lookup finds a provider by name. Names are folded (NFKC, trimmed,
// lowercased) before matching.
func (d *Directory) Lookup(name string) (Provider, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.providers[util.FoldName(name)]
	return p, ok
}

// Known reports whether name resolves to a provider.
func (d *Directory) Known(name string) bool {
	_, ok := d.Lookup(name)
	return ok
}

// Names returns the canonical provider names, sorted.
func (d *Directory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.providers))
	for name := range d.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reload replaces the directory contents from the YAML file at path.
func (d *Directory) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading provider directory: %w", err)
	}
	var doc struct {
		Providers []Provider `yaml:"providers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing provider directory: %w", err)
	}
	return d.validateAndReplace(doc.Providers)
}

func (d *Directory) validateAndReplace(providers []Provider) error {
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		name := util.FoldName(p.Name)
		if name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if _, dup := byName[name]; dup {
			return fmt.Errorf("duplicate provider %q", name)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("provider %q has no base URL", name)
		}
		p.Name = name
		byName[name] = p
	}
	d.replace(byName)
	return nil
}

func (d *Directory) replace(providers map[string]Provider) {
	d.mu.Lock()
	d.providers = providers
	d.mu.Unlock()
}

func builtins() map[string]Provider {
	providers := []Provider{
		{
			Name:           "openai",
			DisplayName:    "OpenAI",
			BaseURL:        "https://api.openai.com",
			AuthHeaderName: "Authorization",
			AuthPrefix:     "Bearer ",
			TestPath:       "/v1/models",
		},
		{
			Name:           "anthropic",
			DisplayName:    "Anthropic",
			BaseURL:        "https://api.anthropic.com",
			AuthHeaderName: "x-api-key",
			TestPath:       "/v1/models",
		},
		{
			Name:           "google",
			DisplayName:    "Google AI",
			BaseURL:        "https://generativelanguage.googleapis.com",
			AuthHeaderName: "x-goog-api-key",
			TestPath:       "/v1beta/models",
		},
		{
			Name:           "mistral",
			DisplayName:    "Mistral",
			BaseURL:        "https://api.mistral.ai",
			AuthHeaderName: "Authorization",
			AuthPrefix:     "Bearer ",
			TestPath:       "/v1/models",
		},
	}
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name] = p
	}
	return byName
}
