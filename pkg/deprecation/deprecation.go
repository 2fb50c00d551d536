// Package deprecation converts deprecation inputs into transformation
// rules: a JSON rules document mapping type names to deprecated fields, and
// @deprecated directives carried by an SDL schema.
package deprecation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/jensneuse/graphql-migrate/pkg/transformer"
)

// useReplacementRE matches the conventional deprecation reason "Use `X`".
// Only reasons of this shape convert mechanically into field renames.
var useReplacementRE = regexp.MustCompile("Use `([^`]+)`")

// Rule is one deprecated field as found in the rules document or schema.
type Rule struct {
	ParentType        string `json:"parentType"`
	Field             string `json:"name"`
	DeprecationReason string `json:"deprecationReason"`
	Replacement       string `json:"replacement,omitempty"`
}

// Convertible reports whether the rule can be turned into a mechanical
// field rename.
func (r Rule) Convertible() bool { return r.Replacement != "" }

// ParseRules reads the JSON rules document:
//
//	{"TypeName": [{"name": "field", "deprecationReason": "Use `newField`"}]}
func ParseRules(data []byte) ([]Rule, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("deprecation rules: invalid JSON document")
	}
	var rules []Rule
	gjson.ParseBytes(data).ForEach(func(typeName, fields gjson.Result) bool {
		fields.ForEach(func(_, field gjson.Result) bool {
			r := Rule{
				ParentType:        typeName.String(),
				Field:             field.Get("name").String(),
				DeprecationReason: field.Get("deprecationReason").String(),
			}
			if m := useReplacementRE.FindStringSubmatch(r.DeprecationReason); m != nil {
				r.Replacement = m[1]
			}
			rules = append(rules, r)
			return true
		})
		return true
	})
	return rules, nil
}

// FromSchema collects @deprecated fields from a parsed SDL schema.
func FromSchema(schema *ast.Schema) []Rule {
	var rules []Rule
	for typeName, def := range schema.Types {
		if def.BuiltIn || strings.HasPrefix(typeName, "__") {
			continue
		}
		for _, field := range def.Fields {
			directive := field.Directives.ForName("deprecated")
			if directive == nil {
				continue
			}
			r := Rule{ParentType: typeName, Field: field.Name}
			if arg := directive.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
				r.DeprecationReason = arg.Value.Raw
			}
			if m := useReplacementRE.FindStringSubmatch(r.DeprecationReason); m != nil {
				r.Replacement = m[1]
			}
			rules = append(rules, r)
		}
	}
	return rules
}

// ToTransformationRules converts all convertible rules into field renames.
// Non-convertible deprecations are reported separately so callers can queue
// them for manual review.
func ToTransformationRules(rules []Rule) (converted []transformer.Rule, manual []Rule) {
	for _, r := range rules {
		if !r.Convertible() {
			manual = append(manual, r)
			continue
		}
		converted = append(converted, transformer.Rule{
			Type:       transformer.RuleFieldRename,
			From:       r.Field,
			To:         r.Replacement,
			ParentType: r.ParentType,
		})
	}
	return converted, manual
}

// ApplicableRules filters rules to those whose deprecated field actually
// appears in the given selection surface.
func ApplicableRules(rules []transformer.Rule, fieldNames map[string]bool) []transformer.Rule {
	var out []transformer.Rule
	for _, r := range rules {
		if fieldNames[r.From] {
			out = append(out, r)
		}
	}
	return out
}
