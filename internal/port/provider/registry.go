package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Backend names used by the resolution rule.
const (
	BackendOllama    = "ollama"
	BackendGroq      = "groq"
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
)

// Registry maps backend names to adapters and resolves model identifiers to
// a backend. It is an injected dependency, not ambient state.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	fallback     string
	ollamaModels map[string]bool
}

// NewRegistry creates a registry. fallback is the backend used when a model
// identifier matches no rule or resolves to an unregistered backend.
// ollamaModels is the configured list of known local models.
func NewRegistry(fallback string, ollamaModels []string) *Registry {
	known := make(map[string]bool, len(ollamaModels))
	for _, m := range ollamaModels {
		known[m] = true
	}
	return &Registry{
		providers:    make(map[string]Provider),
		fallback:     fallback,
		ollamaModels: known,
	}
}

// Register adds an adapter under its own name. Duplicate registration is a
// programming error.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[p.Name()]; exists {
		panic(fmt.Sprintf("provider: duplicate registration for %q", p.Name()))
	}
	r.providers[p.Name()] = p
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider: unknown backend %q", name)
	}
	return p, nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps a model identifier to its backend adapter. This is the single
// documented routing rule; identifiers matching nothing fall back to the
// default backend, as do rules whose backend is not registered.
//
// The pattern set mirrors the naming conventions of the supported backends
// and is deliberately not extended for unseen model families:
//
//	"llama"+"vision" substrings -> groq (vision models)
//	known local model, or "llava"/"bakllava" substring -> ollama
//	"llama"/"mixtral" prefix -> groq
//	"claude" prefix -> anthropic
//	"gpt"/"text-" prefix -> openai
//	anything else -> fallback
func (r *Registry) Resolve(model string) Provider {
	name := r.resolveName(model)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.providers[name]; ok {
		return p
	}
	return r.providers[r.fallback]
}

func (r *Registry) resolveName(model string) string {
	switch {
	case strings.Contains(model, "llama") && strings.Contains(model, "vision"):
		return BackendGroq
	case r.ollamaModels[model] || strings.Contains(model, "llava") || strings.Contains(model, "bakllava"):
		return BackendOllama
	case strings.HasPrefix(model, "llama") || strings.HasPrefix(model, "mixtral"):
		return BackendGroq
	case strings.HasPrefix(model, "claude"):
		return BackendAnthropic
	case strings.HasPrefix(model, "gpt") || strings.HasPrefix(model, "text-"):
		return BackendOpenAI
	default:
		return r.fallback
	}
}
