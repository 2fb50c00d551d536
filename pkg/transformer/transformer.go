// Package transformer rewrites parsed GraphQL operations rule by rule. It
// is a pure function of (operation text, rule set): the same inputs always
// produce byte-identical output text.
package transformer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
)

type RuleType string

const (
	RuleFieldRename     RuleType = "field-rename"
	RuleStructureChange RuleType = "structure-change"
	RuleArgumentChange  RuleType = "argument-change"
)

// Rule is data, not code: the transformer interprets it against the syntax
// tree. ParentType optionally scopes the rule; with a schema attached the
// scope is the real parent type, without one it falls back to comparing the
// enclosing field's name case-insensitively.
type Rule struct {
	Type       RuleType `json:"type"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	ParentType string   `json:"parentType,omitempty"`
}

// Change records one applied rule site.
type Change struct {
	Type        RuleType `json:"type"`
	Field       string   `json:"field"`
	Replacement string   `json:"replacement"`
	Path        string   `json:"path"`
}

// Result carries the original and rewritten text plus the machine-readable
// application record. Changed is original != transformed; a rule set that
// produces no textual difference must not count as a transformation.
type Result struct {
	OperationID string   `json:"operationId"`
	Original    string   `json:"original"`
	Transformed string   `json:"transformed"`
	Changes     []Change `json:"changes"`
	Rules       []Rule   `json:"rules"`
	Pattern     string   `json:"pattern"`
	Changed     bool     `json:"changed"`

	Document *ast.QueryDocument `json:"-"`
}

// Transformer applies rule sets to operations. Schema is optional; when set
// it enables exact parent-type scoping.
type Transformer struct {
	schema *ast.Schema
}

func New() *Transformer { return &Transformer{} }

func NewWithSchema(schema *ast.Schema) *Transformer { return &Transformer{schema: schema} }

// Transform re-parses the operation's normalized source (records are
// immutable), applies every rule in order, and re-serializes.
func (t *Transformer) Transform(op *operation.Operation, rules []Rule) (*Result, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: op.File, Input: op.NormalizedSource})
	if err != nil {
		return nil, fmt.Errorf("transform %s: %w", op.ID, err)
	}
	original := format(doc)

	w := &walker{schema: t.schema}
	for _, rule := range rules {
		w.rule = rule
		for _, def := range doc.Operations {
			root := ""
			if t.schema != nil {
				root = rootTypeName(t.schema, def.Operation)
			}
			def.SelectionSet = w.rewrite(def.SelectionSet, root, "", "")
		}
		for _, frag := range doc.Fragments {
			frag.SelectionSet = w.rewrite(frag.SelectionSet, frag.TypeCondition, "", "")
		}
	}

	transformed := format(doc)
	result := &Result{
		OperationID: op.ID,
		Original:    original,
		Transformed: transformed,
		Changes:     w.changes,
		Rules:       rules,
		Changed:     original != transformed,
		Document:    doc,
	}
	result.Pattern = classify(result)
	return result, nil
}

type walker struct {
	schema  *ast.Schema
	rule    Rule
	changes []Change
}

// rewrite walks one selection set, applying the active rule. parentType is
// the schema type when known, parentField the enclosing field name, path the
// dotted location for change records.
func (w *walker) rewrite(set ast.SelectionSet, parentType, parentField, path string) ast.SelectionSet {
	out := make(ast.SelectionSet, 0, len(set))
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			out = append(out, w.rewriteField(s, parentType, parentField, path))
		case *ast.InlineFragment:
			s.SelectionSet = w.rewrite(s.SelectionSet, s.TypeCondition, parentField, path)
			out = append(out, s)
		default:
			out = append(out, sel)
		}
	}
	return out
}

func (w *walker) rewriteField(field *ast.Field, parentType, parentField, path string) *ast.Field {
	fieldPath := field.Name
	if path != "" {
		fieldPath = path + "." + field.Name
	}

	switch w.rule.Type {
	case RuleFieldRename:
		if field.Name == w.rule.From && w.scopeMatches(parentType, parentField) {
			w.changes = append(w.changes, Change{
				Type: RuleFieldRename, Field: field.Name, Replacement: w.rule.To, Path: fieldPath,
			})
			renameField(field, w.rule.To)
		}
	case RuleStructureChange:
		// Recognize the connection shape: from { node { ... } } and hoist
		// the node selection into a flat list field.
		if field.Name == w.rule.From && w.scopeMatches(parentType, parentField) {
			if inner := singleChildField(field.SelectionSet, "node"); inner != nil {
				w.changes = append(w.changes, Change{
					Type: RuleStructureChange, Field: field.Name, Replacement: w.rule.To, Path: fieldPath,
				})
				renameField(field, w.rule.To)
				field.SelectionSet = inner.SelectionSet
			}
		}
	case RuleArgumentChange:
		if w.scopeMatches(parentType, parentField) {
			for _, arg := range field.Arguments {
				if arg.Name == w.rule.From {
					w.changes = append(w.changes, Change{
						Type: RuleArgumentChange, Field: field.Name, Replacement: w.rule.To, Path: fieldPath,
					})
					arg.Name = w.rule.To
				}
			}
		}
	}

	childType := w.childTypeName(parentType, field.Name)
	field.SelectionSet = w.rewrite(field.SelectionSet, childType, field.Name, fieldPath)
	return field
}

func (w *walker) scopeMatches(parentType, parentField string) bool {
	if w.rule.ParentType == "" {
		return true
	}
	if w.schema != nil {
		return parentType == w.rule.ParentType
	}
	return strings.EqualFold(parentField, w.rule.ParentType)
}

func (w *walker) childTypeName(parentType, fieldName string) string {
	if w.schema == nil || parentType == "" {
		return ""
	}
	def := w.schema.Types[parentType]
	if def == nil {
		return ""
	}
	for _, f := range def.Fields {
		if f.Name == fieldName {
			return f.Type.Name()
		}
	}
	return ""
}

// renameField also moves the parser-mirrored alias, otherwise the formatter
// would emit the old name as an explicit alias. A deliberate alias written in
// the source is preserved.
func renameField(field *ast.Field, to string) {
	if field.Alias == "" || field.Alias == field.Name {
		field.Alias = to
	}
	field.Name = to
}

func singleChildField(set ast.SelectionSet, name string) *ast.Field {
	if len(set) != 1 {
		return nil
	}
	field, ok := set[0].(*ast.Field)
	if !ok || field.Name != name || len(field.SelectionSet) == 0 {
		return nil
	}
	return field
}

func rootTypeName(schema *ast.Schema, op ast.Operation) string {
	switch op {
	case ast.Mutation:
		if schema.Mutation != nil {
			return schema.Mutation.Name
		}
	case ast.Subscription:
		if schema.Subscription != nil {
			return schema.Subscription.Name
		}
	default:
		if schema.Query != nil {
			return schema.Query.Name
		}
	}
	return ""
}

func format(doc *ast.QueryDocument) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatQueryDocument(doc)
	return buf.String()
}

// classify names the overall transformation pattern for confidence scoring.
func classify(r *Result) string {
	if !r.Changed || len(r.Changes) == 0 {
		return "no-op"
	}
	types := make(map[RuleType]int)
	for _, c := range r.Changes {
		types[c.Type]++
	}
	switch {
	case len(types) == 1 && types[RuleFieldRename] > 0:
		if len(r.Rules) == 1 {
			return "simple-field-rename"
		}
		return "multi-change"
	case len(types) == 1 && types[RuleStructureChange] > 0:
		return "connection-to-array"
	case len(types) == 1 && types[RuleArgumentChange] > 0:
		return "argument-rename"
	default:
		return "multi-change"
	}
}
