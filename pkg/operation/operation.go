// Package operation defines the records produced by extraction and consumed
// by the transformation and rollout layers. Records are immutable once
// emitted: a transformation derives new text, it never edits an Operation.
package operation

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

type Type string

const (
	TypeQuery        Type = "query"
	TypeMutation     Type = "mutation"
	TypeSubscription Type = "subscription"
)

// InterpolationKind classifies one ${...} expression found inside a
// GraphQL-bearing template literal.
type InterpolationKind string

const (
	InterpolationQueryNameRef InterpolationKind = "queryName-reference"
	InterpolationMemberAccess InterpolationKind = "member-access"
	InterpolationIdentifier   InterpolationKind = "identifier"
	InterpolationFunctionCall InterpolationKind = "function-call"
	InterpolationConditional  InterpolationKind = "conditional"
	InterpolationOther        InterpolationKind = "other"
)

// Interpolation is one dynamic expression inside a template literal. The
// expression text is preserved verbatim so the applicator can re-insert it;
// Placeholder is the GraphQL-safe name it was substituted with for parsing.
type Interpolation struct {
	Index       int               `json:"index"`
	Expression  string            `json:"expression"`
	Kind        InterpolationKind `json:"kind"`
	Placeholder string            `json:"placeholder"`
	// Condition and Branches are set for resolvable conditionals and drive
	// variant enumeration.
	Condition string   `json:"condition,omitempty"`
	Branches  []string `json:"branches,omitempty"`
}

// Placeholder returns the GraphQL name an interpolation at index i is
// substituted with before parsing.
func Placeholder(i int) string {
	return fmt.Sprintf("GqlmPlaceholder%d", i)
}

// NamePattern describes a dynamic operation name resolved through a
// registered template such as ${queryNames.byIdV1}.
type NamePattern struct {
	Template      string `json:"template"`
	Version       string `json:"version"`
	MigrationPath string `json:"migrationPath,omitempty"`
}

// Name is the tagged variant for an operation's name: either a static
// identifier or a registered dynamic pattern. The zero value means the
// operation is anonymous.
type Name struct {
	Static  string       `json:"static,omitempty"`
	Pattern *NamePattern `json:"pattern,omitempty"`
}

func (n Name) IsDynamic() bool { return n.Pattern != nil }

func (n Name) String() string {
	if n.Pattern != nil {
		return n.Pattern.Template
	}
	return n.Static
}

// Operation is one GraphQL document found in source.
//
// Source is the raw template content including unresolved ${...}
// interpolations. NormalizedSource is the same text with every
// interpolation replaced by its placeholder, guaranteed to parse.
type Operation struct {
	ID               string             `json:"id"`
	Type             Type               `json:"type"`
	Name             Name               `json:"name"`
	Source           string             `json:"source"`
	NormalizedSource string             `json:"normalizedSource"`
	Document         *ast.QueryDocument `json:"-"`
	File             string             `json:"file"`
	Line             int                `json:"line"`
	Column           int                `json:"column"`
	Fragments        []string           `json:"fragments,omitempty"`
	Variables        []string           `json:"variables,omitempty"`
	Directives       []string           `json:"directives,omitempty"`
	Interpolations   []Interpolation    `json:"interpolations,omitempty"`
}

// Definition returns the first operation definition of the parsed document,
// or nil if the document only carries fragments.
func (o *Operation) Definition() *ast.OperationDefinition {
	if o.Document == nil || len(o.Document.Operations) == 0 {
		return nil
	}
	return o.Document.Operations[0]
}

// Switch is a source-level boolean expression driving variant branching.
// Switches are unified by their condition expression, so the same variable
// used across operations resolves to one switch identity.
type Switch struct {
	Name     string   `json:"name"`
	Arity    int      `json:"arity"`
	Branches []string `json:"branches"`
}

// Variant is one fully resolved instantiation of an operation whose content
// contains conditional interpolations.
type Variant struct {
	ID              string            `json:"id"`
	OriginalQueryID string            `json:"originalQueryId"`
	Conditions      map[string]string `json:"conditions"`
	Source          string            `json:"source"`
}

// Fragment is a named fragment definition discovered during extraction.
type Fragment struct {
	Name   string `json:"name"`
	OnType string `json:"onType"`
	Source string `json:"source"`
	File   string `json:"file"`
}

// ExtractionError records a single file's non-fatal failure.
type ExtractionError struct {
	File    string `json:"file"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (e ExtractionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Stats summarizes one extraction run.
type Stats struct {
	FilesScanned   int            `json:"filesScanned"`
	FilesFailed    int            `json:"filesFailed"`
	FilesFromCache int            `json:"filesFromCache"`
	TotalQueries   int            `json:"totalQueries"`
	TotalVariants  int            `json:"totalVariants"`
	TotalFragments int            `json:"totalFragments"`
	ByType         map[Type]int   `json:"byType"`
	ByFile         map[string]int `json:"byFile"`
	FieldPaths     []string       `json:"fieldPaths,omitempty"`
	DurationMs     int64          `json:"durationMs"`
}

// ExtractionResult is the complete output of one extraction run. Ordering of
// Queries is not stable across runs; callers needing stable output sort it.
type ExtractionResult struct {
	RunID     string            `json:"runId"`
	Queries   []*Operation      `json:"queries"`
	Variants  []*Variant        `json:"variants"`
	Fragments []*Fragment       `json:"fragments"`
	Switches  []*Switch         `json:"switches"`
	Errors    []ExtractionError `json:"errors"`
	Stats     Stats             `json:"stats"`
}

func (r *ExtractionResult) HasErrors() bool { return len(r.Errors) > 0 }
