// Package device carries the minimal device-id → (codenames, human name)
// catalog that info.prop generation and transform-registry resolution
// need to be exercisable (SPEC_FULL.md §4.5a). This is deliberately NOT
// the real device catalog, which spec.md §1 names as an external
// collaborator; it is only illustrative, static data.
package device

// Descriptor identifies one supported device: its stable id, the set of
// build codenames that map to it, and a human-readable name.
type Descriptor struct {
	ID        string
	Codenames []string
	Name      string
}

// Registry is a static lookup table from device id to Descriptor.
type Registry struct {
	byID map[string]Descriptor
	all  []Descriptor
}

// Default returns a Registry seeded with a handful of illustrative
// entries (Nexus and OnePlus devices plus one Sony device), so info.prop
// generation and
// "<device-id>/default" transform resolution have concrete input.
func Default() *Registry {
	r := NewRegistry()
	for _, d := range []Descriptor{
		{ID: "angler", Codenames: []string{"angler"}, Name: "Nexus 6P"},
		{ID: "bullhead", Codenames: []string{"bullhead"}, Name: "Nexus 5X"},
		{ID: "fajita", Codenames: []string{"fajita", "OnePlus6T"}, Name: "OnePlus 6T"},
		{ID: "pioneer", Codenames: []string{"pioneer", "xperia_pioneer"}, Name: "Sony Xperia XZ1"},
	} {
		r.Add(d)
	}
	return r
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Descriptor)}
}

// Add registers d, overwriting any prior entry with the same ID.
func (r *Registry) Add(d Descriptor) {
	if _, exists := r.byID[d.ID]; !exists {
		r.all = append(r.all, d)
	} else {
		for i, existing := range r.all {
			if existing.ID == d.ID {
				r.all[i] = d
				break
			}
		}
	}
	r.byID[d.ID] = d
}

// Lookup returns the descriptor for id, or ok=false if unknown.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// All returns every registered descriptor in registration order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.all))
	copy(out, r.all)
	return out
}
