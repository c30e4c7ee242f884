package secret

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ProviderFactory builds a Provider from its options block in the config file.
type ProviderFactory func(opts map[string]any) (Provider, error)

var (
	ErrDuplicateProvider = errors.New("secret: provider already registered")
	ErrInvalidFactory    = errors.New("secret: provider name and factory are required")
)

// Registry maps provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// Register adds factory under name. Names are trimmed and must be unique.
func (r *Registry) Register(name string, factory ProviderFactory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return ErrInvalidFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateProvider, name)
	}
	r.factories[name] = factory
	return nil
}

// Create builds the provider registered as name.
func (r *Registry) Create(name string, opts map[string]any) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[strings.TrimSpace(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return factory(opts)
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// Build creates one provider per entry in specs, in name order. On error
// the providers already built are closed.
func (r *Registry) Build(specs map[string]map[string]any) ([]Provider, error) {
	out := make([]Provider, 0, len(specs))
	for _, name := range slices.Sorted(maps.Keys(specs)) {
		p, err := r.Create(name, specs[name])
		if err != nil {
			for _, built := range out {
				_ = built.Close()
			}
			return nil, fmt.Errorf("secret provider %q: %w", name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// DefaultRegistry holds the env and file providers.
var DefaultRegistry = NewRegistry()
