package vocabulary

import (
	"sync"
)

// AttributeDescriptor describes an attribute as it appears in a schema.
type AttributeDescriptor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ValueType string `json:"valueType,omitempty"`
}

// Registry holds attribute descriptors known without fetching anything.
type Registry struct {
	mu       sync.RWMutex
	builtins []AttributeDescriptor
	byID     map[string]AttributeDescriptor
}

var defaultRegistry = NewRegistry()

// NewRegistry returns a registry seeded with Name, Description and Types.
func NewRegistry() *Registry {
	r := &Registry{byID: make(map[string]AttributeDescriptor)}
	r.Register(AttributeDescriptor{ID: Name, Name: "Name", ValueType: TextValue}, true)
	r.Register(AttributeDescriptor{ID: Description, Name: "Description", ValueType: TextValue}, true)
	r.Register(AttributeDescriptor{ID: Types, Name: "Types", ValueType: RelationValue}, true)
	return r
}

// Register adds or replaces a descriptor. Builtins are unioned into every schema.
func (r *Registry) Register(d AttributeDescriptor, builtin bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.byID[d.ID]
	r.byID[d.ID] = d
	if !builtin {
		return
	}
	if existed {
		for i := range r.builtins {
			if r.builtins[i].ID == d.ID {
				r.builtins[i] = d
				return
			}
		}
	}
	r.builtins = append(r.builtins, d)
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id string) (AttributeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// Builtins returns a copy of the descriptors present in every schema, in
// registration order.
func (r *Registry) Builtins() []AttributeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AttributeDescriptor, len(r.builtins))
	copy(out, r.builtins)
	return out
}

// BuiltinAttributes returns the default registry's builtins.
func BuiltinAttributes() []AttributeDescriptor {
	return defaultRegistry.Builtins()
}

// Lookup queries the default registry.
func Lookup(id string) (AttributeDescriptor, bool) {
	return defaultRegistry.Lookup(id)
}
