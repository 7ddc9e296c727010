package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type ProviderFactory func(ctx context.Context) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[Family]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[Family]ProviderFactory)}
}

func (r *Registry) Register(family Family, f ProviderFactory) {
	family = Family(strings.ToLower(strings.TrimSpace(string(family))))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[family] = f
}

// RegisterProvider registers a ready provider under its own family.
func (r *Registry) RegisterProvider(p Provider) {
	r.Register(p.Family(), func(context.Context) (Provider, error) { return p, nil })
}

func (r *Registry) Get(ctx context.Context, family Family) (Provider, error) {
	family = Family(strings.ToLower(strings.TrimSpace(string(family))))
	r.mu.RLock()
	f, ok := r.factories[family]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", family)
	}
	return f(ctx)
}

// Credentials configures the built-in provider families. Empty keys are
// allowed; the family then fails with ErrMissingCredential when used.
type Credentials struct {
	GeminiAPIKey      string
	GroqAPIKey        string
	GroqBaseURL       string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OpenRouterSiteURL string
	OpenRouterAppName string
}

// NewDefaultRegistry registers the google, groq and openrouter families.
func NewDefaultRegistry(c Credentials) *Registry {
	r := NewRegistry()
	r.RegisterProvider(NewGeminiProvider(c.GeminiAPIKey, ""))
	r.RegisterProvider(NewGroqProvider(c.GroqBaseURL, c.GroqAPIKey))
	r.RegisterProvider(NewOpenRouterProvider(c.OpenRouterBaseURL, c.OpenRouterAPIKey, c.OpenRouterSiteURL, c.OpenRouterAppName))
	return r
}
