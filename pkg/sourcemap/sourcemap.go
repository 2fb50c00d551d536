// Package sourcemap associates extracted operations with the exact byte
// range of their originating template literal. The original file text is the
// arena; a mapping is the index into it. The applicator refuses to touch a
// file for an operation without a mapping.
package sourcemap

import (
	"fmt"
	"sync"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
)

// NodeKind names the host-language syntax node a mapping was captured from.
type NodeKind string

const (
	NodeTaggedTemplate NodeKind = "tagged-template"
	NodeCallExpression NodeKind = "call-expression"
)

// Mapping records where one operation's GraphQL text lives inside its file.
// Start and End are byte offsets of the template content, backticks
// excluded, so [Start,End) can be spliced directly.
type Mapping struct {
	OperationID    string
	File           string
	Start          int
	End            int
	Node           NodeKind
	Interpolations []operation.Interpolation
}

// Registry holds at most one mapping per operation ID. The first
// registration wins; later registrations for the same ID are rejected so a
// hybrid extraction run cannot silently repoint an operation at a different
// edit site.
type Registry struct {
	mu       sync.RWMutex
	mappings map[string]*Mapping
}

func NewRegistry() *Registry {
	return &Registry{mappings: make(map[string]*Mapping)}
}

// Register stores a mapping. It returns an error if the operation already
// has one or if the byte range is degenerate.
func (r *Registry) Register(m *Mapping) error {
	if m == nil || m.OperationID == "" {
		return fmt.Errorf("sourcemap: mapping requires an operation id")
	}
	if m.End < m.Start || m.Start < 0 {
		return fmt.Errorf("sourcemap: invalid byte range [%d,%d) for operation %s", m.Start, m.End, m.OperationID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.mappings[m.OperationID]; exists {
		return fmt.Errorf("sourcemap: mapping already registered for operation %s", m.OperationID)
	}
	r.mappings[m.OperationID] = m
	return nil
}

// Lookup returns the mapping for an operation, if captured.
func (r *Registry) Lookup(operationID string) (*Mapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mappings[operationID]
	return m, ok
}

// Consume removes and returns the mapping for an operation. Application
// consumes a mapping exactly once; a second consume reports absence.
func (r *Registry) Consume(operationID string) (*Mapping, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mappings[operationID]
	if ok {
		delete(r.mappings, operationID)
	}
	return m, ok
}

// ByFile returns all registered mappings for one file.
func (r *Registry) ByFile(file string) []*Mapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Mapping
	for _, m := range r.mappings {
		if m.File == file {
			out = append(out, m)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mappings)
}
