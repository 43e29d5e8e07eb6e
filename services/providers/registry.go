package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry manages provider instances keyed by routing role
type Registry struct {
	mu        sync.RWMutex
	providers map[ProviderID]FoodProvider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ProviderID]FoodProvider),
	}
}

// RegisterProvider registers a provider instance
func (r *Registry) RegisterProvider(provider FoodProvider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	id := provider.ID()
	if id == "" {
		return errors.New("provider id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[id]; exists {
		return ErrProviderAlreadyRegistered
	}

	r.providers[id] = provider
	return nil
}

// UnregisterProvider removes a provider from the registry
func (r *Registry) UnregisterProvider(id ProviderID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[id]; !exists {
		return ErrProviderNotFound
	}

	delete(r.providers, id)
	return nil
}

// GetProvider retrieves a provider by id
func (r *Registry) GetProvider(id ProviderID) (FoodProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[id]
	if !exists {
		return nil, ErrProviderNotFound
	}

	return provider, nil
}

// ListProviders returns all registered provider ids, sorted
func (r *Registry) ListProviders() []ProviderID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ProviderID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// GetProviderCount returns the number of registered providers
func (r *Registry) GetProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.providers)
}

// Clear removes all providers from the registry
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers = make(map[ProviderID]FoodProvider)
}

// GetProviderStats returns statistics about registered providers
func (r *Registry) GetProviderStats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	implementations := make(map[string]string, len(r.providers))
	for id, p := range r.providers {
		implementations[string(id)] = fmt.Sprintf("%T", p)
	}

	return map[string]interface{}{
		"provider_count":  len(r.providers),
		"implementations": implementations,
	}
}

// ProviderBuilder is a function that creates a provider instance
type ProviderBuilder func(config ProviderConfig) (FoodProvider, error)

// RegistryBuilder helps build a registry with multiple providers
type RegistryBuilder struct {
	registry *Registry
	builders map[ProviderID]ProviderBuilder
	errs     []error
}

// NewRegistryBuilder creates a new registry builder
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{
		registry: NewRegistry(),
		builders: make(map[ProviderID]ProviderBuilder),
	}
}

// WithProviderBuilder registers a provider builder
func (rb *RegistryBuilder) WithProviderBuilder(id ProviderID, builder ProviderBuilder) *RegistryBuilder {
	rb.builders[id] = builder
	return rb
}

// WithProvider directly adds a provider instance
func (rb *RegistryBuilder) WithProvider(provider FoodProvider) *RegistryBuilder {
	if err := rb.registry.RegisterProvider(provider); err != nil {
		rb.errs = append(rb.errs, err)
	}
	return rb
}

// Build creates providers and returns the registry.
// Providers added directly take precedence; builders for an id that is
// already registered are skipped.
func (rb *RegistryBuilder) Build(configs map[ProviderID]ProviderConfig) (*Registry, error) {
	if len(rb.errs) > 0 {
		return nil, errors.Join(rb.errs...)
	}

	for id, config := range configs {
		builder, exists := rb.builders[id]
		if !exists {
			continue
		}
		if _, err := rb.registry.GetProvider(id); err == nil {
			continue
		}
		provider, err := builder(config)
		if err != nil {
			return nil, fmt.Errorf("failed to build provider %s: %w", id, err)
		}
		if err := rb.registry.RegisterProvider(provider); err != nil {
			return nil, fmt.Errorf("failed to register provider %s: %w", id, err)
		}
	}

	return rb.registry, nil
}
