package summarizer

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultProviderName is used when no provider is configured.
const DefaultProviderName = "static"

// Options configures the built-in providers.
type Options struct {
	Provider string
	Endpoint string
	Model    string
	APIKey   string
}

// Registry stores summarizers and resolves a default one.
type Registry struct {
	providers       map[string]Summarizer
	defaultProvider string
}

func NewRegistry(defaultProvider string) *Registry {
	normalizedDefault := normalizeProviderName(defaultProvider)
	if normalizedDefault == "" {
		normalizedDefault = DefaultProviderName
	}

	return &Registry{
		providers:       make(map[string]Summarizer),
		defaultProvider: normalizedDefault,
	}
}

// NewRegistryFromOptions registers static, openai and anthropic providers.
func NewRegistryFromOptions(opts Options) *Registry {
	registry := NewRegistry(opts.Provider)
	_ = registry.Register(NewStaticSummarizer())
	_ = registry.Register(NewOpenAIProvider(opts.Endpoint, opts.Model, opts.APIKey))
	_ = registry.Register(NewAnthropicProvider(opts.APIKey, opts.Model))
	return registry
}

// Register adds one provider, replacing any with the same name.
func (r *Registry) Register(provider Summarizer) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if provider == nil {
		return fmt.Errorf("provider is nil")
	}
	name := normalizeProviderName(provider.Name())
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	r.providers[name] = provider
	return nil
}

// Provider resolves a provider by name. Empty names use the default provider.
func (r *Registry) Provider(name string) (Summarizer, error) {
	if r == nil {
		return nil, fmt.Errorf("registry is nil")
	}
	if len(r.providers) == 0 {
		return nil, fmt.Errorf("no summarizers are registered")
	}

	resolvedName := normalizeProviderName(name)
	if resolvedName == "" {
		resolvedName = r.defaultProvider
	}
	provider, ok := r.providers[resolvedName]
	if ok {
		return provider, nil
	}

	return nil, fmt.Errorf("summarizer %q is not registered (available: %s)", resolvedName, strings.Join(r.ProviderNames(), ", "))
}

func (r *Registry) DefaultProvider() string {
	if r == nil {
		return ""
	}
	return r.defaultProvider
}

func (r *Registry) ProviderNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeProviderName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
