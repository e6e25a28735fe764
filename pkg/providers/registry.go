package providers

import (
	"github.com/Ramsey-B/fern/pkg/models"
)

// Registry maps integration kinds to their adapters. The set of kinds is
// closed; registering a new provider means adding an adapter here.
type Registry struct {
	adapters map[models.IntegrationKind]Adapter
}

// NewRegistry creates a registry with every supported adapter installed
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[models.IntegrationKind]Adapter)}

	r.Register(&WebhookAdapter{})
	r.Register(&AutomationAdapter{})
	r.Register(&MailhawkAdapter{})
	r.Register(&KitlineAdapter{})
	r.Register(&ActiveloopAdapter{})
	r.Register(&HubCRMAdapter{})
	r.Register(&HighriseAdapter{})

	return r
}

// Register installs an adapter, replacing any existing one for its kind
func (r *Registry) Register(adapter Adapter) {
	r.adapters[adapter.Kind()] = adapter
}

// Get returns the adapter for a kind
func (r *Registry) Get(kind models.IntegrationKind) (Adapter, bool) {
	adapter, ok := r.adapters[kind]
	return adapter, ok
}

// Kinds lists the registered integration kinds
func (r *Registry) Kinds() []models.IntegrationKind {
	kinds := make([]models.IntegrationKind, 0, len(r.adapters))
	for kind := range r.adapters {
		kinds = append(kinds, kind)
	}
	return kinds
}
