// Package querypattern models dynamic query-name templates as first-class
// entities. A template like ${queryNames.byIdV1} is never resolved away at
// extraction time; it is matched against a registry that knows its semantic
// version, deprecation state, and migration target.
package querypattern

import "sync"

// FragmentSubstitution maps a fragment name used by a deprecated pattern to
// its replacement in the migration target.
type FragmentSubstitution struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Entry is one registered dynamic query-name template.
type Entry struct {
	Template      string                `json:"template"`
	Version       string                `json:"version"`
	Deprecated    bool                  `json:"deprecated"`
	MigrationPath string                `json:"migrationPath,omitempty"`
	Fragment      *FragmentSubstitution `json:"fragment,omitempty"`
}

// Registry is a static table of known dynamic query-name templates.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// DefaultRegistry carries the known venture query-name generations.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Add(&Entry{
		Template:      "${queryNames.byIdV1}",
		Version:       "v1",
		Deprecated:    true,
		MigrationPath: "${queryNames.byIdV3}",
		Fragment:      &FragmentSubstitution{From: "ventureFields", To: "ventureInfoFields"},
	})
	r.Add(&Entry{
		Template:      "${queryNames.byIdV2}",
		Version:       "v2",
		Deprecated:    true,
		MigrationPath: "${queryNames.byIdV3}",
		Fragment:      &FragmentSubstitution{From: "ventureFields", To: "ventureInfoFields"},
	})
	r.Add(&Entry{
		Template: "${queryNames.byIdV3}",
		Version:  "v3",
	})
	r.Add(&Entry{
		Template:      "${queryNames.byDomainName}",
		Version:       "v1",
		Deprecated:    true,
		MigrationPath: "${queryNames.byIdV3}",
	})
	return r
}

func (r *Registry) Add(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.Template] = e
}

// Match returns the entry for an exact template key.
func (r *Registry) Match(template string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[template]
	return e, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
