package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/brettbedarf/filetree"
)

// Provider builds a [filetree.Lister] from a raw JSON source config
type Provider interface {
	NewLister(raw []byte) (filetree.Lister, error)
}

// ProviderFunc adapts a plain function to [Provider]
type ProviderFunc func(raw []byte) (filetree.Lister, error)

func (f ProviderFunc) NewLister(raw []byte) (filetree.Lister, error) {
	return f(raw)
}

// Registry maps source "type" values to providers
type Registry struct {
	providers *xsync.Map[string, Provider]
}

func NewRegistry() *Registry {
	return &Registry{providers: xsync.NewMap[string, Provider]()}
}

// Register ties a provider to a "type" key and should be called for each
// source type during app init. The first registration for a type wins.
func (r *Registry) Register(sourceType string, p Provider) {
	r.providers.LoadOrStore(sourceType, p)
}

// GetProvider returns the provider registered for sourceType
func (r *Registry) GetProvider(sourceType string) (Provider, error) {
	p, ok := r.providers.Load(sourceType)
	if !ok {
		return nil, fmt.Errorf("no provider for %q", sourceType)
	}
	return p, nil
}

// NewLister picks the right provider based on the "type" field of raw.
// All expected source types should be registered with [Registry.Register]
// before calling this function.
func (r *Registry) NewLister(raw []byte) (filetree.Lister, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	if meta.Type == "" {
		return nil, fmt.Errorf("source config missing \"type\" field")
	}
	p, err := r.GetProvider(meta.Type)
	if err != nil {
		return nil, err
	}
	return p.NewLister(raw)
}
