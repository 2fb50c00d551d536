package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
	"github.com/jensneuse/graphql-migrate/pkg/querypattern"
)

// rawInterpolation is one ${...} expression located inside a template
// literal, with offsets relative to the template content.
type rawInterpolation struct {
	start, end int // byte span of ${...} within the template content
	expr       string
	kind       operation.InterpolationKind
	// conditional parts, set when kind == conditional
	condition    string
	branches     [2]string
	documentSite bool // true when the interpolation sits outside all braces
}

var identifierRE = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// parseTernary matches cond ? 'a' : 'b' with any quote style on either
// branch. Branches must be locally-resolvable string literals; anything else
// stays unresolved.
func parseTernary(s string) (cond, a, b string, ok bool) {
	q := strings.IndexByte(s, '?')
	if q <= 0 {
		return "", "", "", false
	}
	cond = strings.TrimSpace(s[:q])
	if cond == "" {
		return "", "", "", false
	}
	a, rest, ok := takeStringLiteral(strings.TrimSpace(s[q+1:]))
	if !ok {
		return "", "", "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" || rest[0] != ':' {
		return "", "", "", false
	}
	b, rest, ok = takeStringLiteral(strings.TrimSpace(rest[1:]))
	if !ok || strings.TrimSpace(rest) != "" {
		return "", "", "", false
	}
	return cond, a, b, true
}

func takeStringLiteral(s string) (lit, rest string, ok bool) {
	if s == "" {
		return "", "", false
	}
	quote := s[0]
	if quote != '\'' && quote != '"' && quote != '`' {
		return "", "", false
	}
	for i := 1; i < len(s); i++ {
		if s[i] == quote {
			return s[1:i], s[i+1:], true
		}
	}
	return "", "", false
}

// classifyExpression assigns an interpolation kind from the expression text
// alone. The AST scanner overrides this with node-type information when it
// has it; the pluck scanner relies on it entirely.
func classifyExpression(expr string) (operation.InterpolationKind, *rawInterpolation) {
	trimmed := strings.TrimSpace(expr)
	if cond, a, b, ok := parseTernary(trimmed); ok {
		return operation.InterpolationConditional, &rawInterpolation{
			condition: cond,
			branches:  [2]string{a, b},
		}
	}
	switch {
	case strings.HasPrefix(trimmed, "queryNames."):
		return operation.InterpolationQueryNameRef, nil
	case strings.HasSuffix(trimmed, ")"):
		return operation.InterpolationFunctionCall, nil
	case identifierRE.MatchString(trimmed):
		return operation.InterpolationIdentifier, nil
	case strings.Contains(trimmed, "."):
		return operation.InterpolationMemberAccess, nil
	}
	return operation.InterpolationOther, nil
}

// scanInterpolations finds every ${...} span in template content, handling
// nested braces inside the expression.
func scanInterpolations(content string) []rawInterpolation {
	var out []rawInterpolation
	for i := 0; i+1 < len(content); i++ {
		if content[i] != '$' || content[i+1] != '{' {
			continue
		}
		depth := 1
		j := i + 2
		for ; j < len(content) && depth > 0; j++ {
			switch content[j] {
			case '{':
				depth++
			case '}':
				depth--
			}
		}
		if depth != 0 {
			break // unbalanced, stop scanning
		}
		expr := content[i+2 : j-1]
		kind, cond := classifyExpression(expr)
		ri := rawInterpolation{start: i, end: j, expr: expr, kind: kind}
		if cond != nil {
			ri.condition = cond.condition
			ri.branches = cond.branches
		}
		out = append(out, ri)
		i = j - 1
	}
	return out
}

// markDocumentSites flags interpolations that sit outside every selection
// set. Those are whole-document inclusions (typically appended fragment
// documents) and are dropped from the parseable text instead of being
// substituted with a placeholder name.
func markDocumentSites(content string, interps []rawInterpolation) {
	depth := 0
	idx := 0
	for i := 0; i < len(content) && idx < len(interps); i++ {
		if i == interps[idx].start {
			interps[idx].documentSite = depth == 0
			i = interps[idx].end - 1
			idx++
			continue
		}
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
		case '#':
			for i < len(content) && content[i] != '\n' {
				i++
			}
		case '"':
			i++
			for i < len(content) && content[i] != '"' {
				if content[i] == '\\' {
					i++
				}
				i++
			}
		}
	}
}

// normalizeTemplate replaces every interpolation with its placeholder and
// returns the parseable text plus the interpolation records.
func normalizeTemplate(content string, interps []rawInterpolation) (string, []operation.Interpolation) {
	markDocumentSites(content, interps)
	var b strings.Builder
	records := make([]operation.Interpolation, 0, len(interps))
	last := 0
	for i := range interps {
		ri := &interps[i]
		b.WriteString(content[last:ri.start])
		rec := operation.Interpolation{
			Index:       i,
			Expression:  strings.TrimSpace(ri.expr),
			Kind:        ri.kind,
			Placeholder: operation.Placeholder(i),
		}
		if ri.kind == operation.InterpolationConditional {
			rec.Condition = ri.condition
			rec.Branches = []string{ri.branches[0], ri.branches[1]}
		}
		if !ri.documentSite {
			b.WriteString(rec.Placeholder)
		}
		records = append(records, rec)
		last = ri.end
	}
	b.WriteString(content[last:])
	return b.String(), records
}

// buildOperations parses normalized template content and produces operation
// records plus any fragment definitions the template carried.
func buildOperations(file string, line, column int, raw, normalized string, records []operation.Interpolation, interps []rawInterpolation, registry *querypattern.Registry, naming operation.NamingConvention) ([]*operation.Operation, []*operation.Fragment, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: file, Input: normalized})
	if err != nil {
		return nil, nil, err
	}

	var fragments []*operation.Fragment
	for _, frag := range doc.Fragments {
		if strings.HasPrefix(frag.Name, "GqlmPlaceholder") {
			continue
		}
		fragments = append(fragments, &operation.Fragment{
			Name:   frag.Name,
			OnType: frag.TypeCondition,
			Source: fragmentText(normalized, frag),
			File:   file,
		})
	}

	var ops []*operation.Operation
	for _, def := range doc.Operations {
		op := &operation.Operation{
			Type:             operation.Type(def.Operation),
			Source:           raw,
			NormalizedSource: normalized,
			Document:         &ast.QueryDocument{Operations: []*ast.OperationDefinition{def}, Fragments: doc.Fragments},
			File:             file,
			Line:             line,
			Column:           column,
			Interpolations:   records,
		}
		op.Name = resolveName(def.Name, records, interps, registry)
		op.Name = naming.Apply(op.Name)
		for _, v := range def.VariableDefinitions {
			op.Variables = append(op.Variables, v.Variable)
		}
		for _, d := range def.Directives {
			op.Directives = append(op.Directives, d.Name)
		}
		op.Fragments = spreadNames(def.SelectionSet)
		op.ID = operationID(file, line, column, raw, op.Name.String())
		ops = append(ops, op)
	}
	return ops, fragments, nil
}

// resolveName maps a parsed operation name back through the interpolation
// records: a placeholder name means the source used a dynamic template.
func resolveName(parsed string, records []operation.Interpolation, interps []rawInterpolation, registry *querypattern.Registry) operation.Name {
	for _, rec := range records {
		if rec.Placeholder != parsed {
			continue
		}
		template := "${" + rec.Expression + "}"
		pattern := &operation.NamePattern{Template: template}
		if registry != nil {
			if e, ok := registry.Match(template); ok {
				pattern.Version = e.Version
				pattern.MigrationPath = e.MigrationPath
			}
		}
		return operation.Name{Pattern: pattern}
	}
	return operation.Name{Static: parsed}
}

func spreadNames(set ast.SelectionSet) []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(ast.SelectionSet)
	walk = func(s ast.SelectionSet) {
		for _, sel := range s {
			switch v := sel.(type) {
			case *ast.Field:
				walk(v.SelectionSet)
			case *ast.FragmentSpread:
				if !strings.HasPrefix(v.Name, "GqlmPlaceholder") && !seen[v.Name] {
					seen[v.Name] = true
					out = append(out, v.Name)
				}
			case *ast.InlineFragment:
				walk(v.SelectionSet)
			}
		}
	}
	walk(set)
	return out
}

// fragmentText slices the fragment definition's text out of the normalized
// document using parser positions, falling back to the whole document.
func fragmentText(normalized string, frag *ast.FragmentDefinition) string {
	if frag.Position == nil {
		return normalized
	}
	start := frag.Position.Start
	if start < 0 || start >= len(normalized) {
		return normalized
	}
	// Walk to the end of the fragment's selection set.
	depth := 0
	for i := start; i < len(normalized); i++ {
		switch normalized[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return normalized[start : i+1]
			}
		}
	}
	return normalized[start:]
}

func operationID(file string, line, column int, raw, name string) string {
	sum := fmt.Sprintf("%016x", xxhash.Sum64String(raw))
	return fmt.Sprintf("%s:%d:%d:%s:%s", file, line, column, name, sum[:8])
}
