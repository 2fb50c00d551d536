package querypattern

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
)

// Fingerprint computes a structural hash of an operation's content. The
// operation name is excluded so two operations that differ only in their
// dynamic name interpolation hash identically.
func Fingerprint(op *operation.Operation) string {
	h := xxhash.New()
	if def := op.Definition(); def != nil {
		writeOperation(h, def)
	} else {
		// Fragment-only documents fingerprint over their fragments.
		if op.Document != nil {
			for _, frag := range op.Document.Fragments {
				_, _ = h.WriteString("fragment:" + frag.TypeCondition)
				writeSelectionSet(h, frag.SelectionSet)
			}
		}
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func writeOperation(h *xxhash.Digest, def *ast.OperationDefinition) {
	_, _ = h.WriteString(string(def.Operation))
	for _, v := range def.VariableDefinitions {
		_, _ = h.WriteString("$" + v.Variable + ":" + v.Type.String())
	}
	for _, d := range def.Directives {
		writeDirective(h, d)
	}
	writeSelectionSet(h, def.SelectionSet)
}

func writeSelectionSet(h *xxhash.Digest, set ast.SelectionSet) {
	_, _ = h.WriteString("{")
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if s.Alias != "" && s.Alias != s.Name {
				_, _ = h.WriteString(s.Alias + ":")
			}
			_, _ = h.WriteString(s.Name)
			for _, a := range s.Arguments {
				_, _ = h.WriteString("(" + a.Name + "=" + a.Value.String() + ")")
			}
			for _, d := range s.Directives {
				writeDirective(h, d)
			}
			if len(s.SelectionSet) > 0 {
				writeSelectionSet(h, s.SelectionSet)
			}
		case *ast.FragmentSpread:
			_, _ = h.WriteString("..." + s.Name)
		case *ast.InlineFragment:
			_, _ = h.WriteString("...on " + s.TypeCondition)
			writeSelectionSet(h, s.SelectionSet)
		}
	}
	_, _ = h.WriteString("}")
}

func writeDirective(h *xxhash.Digest, d *ast.Directive) {
	_, _ = h.WriteString("@" + d.Name)
	for _, a := range d.Arguments {
		_, _ = h.WriteString("(" + a.Name + "=" + a.Value.String() + ")")
	}
}

// GroupByFingerprint buckets operations whose normalized content is
// structurally identical, which surfaces duplicates and name-only variants.
func GroupByFingerprint(ops []*operation.Operation) map[string][]*operation.Operation {
	groups := make(map[string][]*operation.Operation)
	for _, op := range ops {
		fp := Fingerprint(op)
		groups[fp] = append(groups[fp], op)
	}
	return groups
}

// Analysis is the result of matching one operation against the registry.
type Analysis struct {
	NamePattern        *Entry `json:"namePattern,omitempty"`
	ContentFingerprint string `json:"contentFingerprint"`
}

// Recommendation says whether and where a deprecated pattern should migrate.
type Recommendation struct {
	ShouldMigrate bool                  `json:"shouldMigrate"`
	Target        *Entry                `json:"target,omitempty"`
	Fragment      *FragmentSubstitution `json:"fragment,omitempty"`
	Reason        string                `json:"reason,omitempty"`
}

// AnalyzeQuery matches the operation's dynamic name template against the
// registry and computes its content fingerprint.
func (r *Registry) AnalyzeQuery(op *operation.Operation) Analysis {
	a := Analysis{ContentFingerprint: Fingerprint(op)}
	if op.Name.IsDynamic() {
		if e, ok := r.Match(op.Name.Pattern.Template); ok {
			a.NamePattern = e
		}
	}
	return a
}

// Recommend looks up the migration target for a deprecated pattern.
// ShouldMigrate is true only when the matched pattern is deprecated and a
// migration path exists.
func (r *Registry) Recommend(op *operation.Operation) Recommendation {
	a := r.AnalyzeQuery(op)
	if a.NamePattern == nil {
		return Recommendation{Reason: "no registered name pattern"}
	}
	e := a.NamePattern
	if !e.Deprecated {
		return Recommendation{Reason: fmt.Sprintf("pattern %s (%s) is current", e.Template, e.Version)}
	}
	if e.MigrationPath == "" {
		return Recommendation{Reason: fmt.Sprintf("pattern %s is deprecated but has no migration path", e.Template)}
	}
	target, ok := r.Match(e.MigrationPath)
	if !ok {
		// The path names a template outside the registry; still actionable.
		target = &Entry{Template: e.MigrationPath}
	}
	return Recommendation{
		ShouldMigrate: true,
		Target:        target,
		Fragment:      e.Fragment,
		Reason:        strings.TrimSpace(fmt.Sprintf("pattern %s (%s) is deprecated, migrate to %s", e.Template, e.Version, e.MigrationPath)),
	}
}
