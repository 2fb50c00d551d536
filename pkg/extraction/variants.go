package extraction

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
)

// enumerateVariants expands an operation's resolvable conditional
// interpolations into one variant per combination of switch values.
// Distinct switches are identified by their condition expression, so the
// same condition appearing at several interpolation sites flips together.
// Variants whose substituted text is identical are deduplicated.
func enumerateVariants(op *operation.Operation) ([]*operation.Variant, []*operation.Switch) {
	var conditionals []operation.Interpolation
	for _, in := range op.Interpolations {
		if in.Kind == operation.InterpolationConditional && len(in.Branches) == 2 {
			conditionals = append(conditionals, in)
		}
	}
	if len(conditionals) == 0 {
		return nil, nil
	}

	var switches []*operation.Switch
	switchIndex := make(map[string]int)
	for _, c := range conditionals {
		if _, seen := switchIndex[c.Condition]; seen {
			continue
		}
		switchIndex[c.Condition] = len(switches)
		switches = append(switches, &operation.Switch{
			Name:     c.Condition,
			Arity:    2,
			Branches: c.Branches,
		})
	}

	// Substitute highest interpolation index first so a placeholder is never
	// rewritten inside a longer placeholder that shares its prefix.
	substitution := append([]operation.Interpolation(nil), conditionals...)
	sort.Slice(substitution, func(i, j int) bool { return substitution[i].Index > substitution[j].Index })

	total := 1 << len(switches)
	var variants []*operation.Variant
	seenText := make(map[uint64]bool)
	for mask := 0; mask < total; mask++ {
		text := op.NormalizedSource
		conditions := make(map[string]string, len(switches))
		for _, c := range substitution {
			idx := switchIndex[c.Condition]
			branch := 1 // false branch
			if mask&(1<<idx) != 0 {
				branch = 0
			}
			conditions[c.Condition] = fmt.Sprintf("%t", branch == 0)
			text = strings.ReplaceAll(text, c.Placeholder, c.Branches[branch])
		}
		if _, err := parser.ParseQuery(&ast.Source{Name: op.File, Input: text}); err != nil {
			continue
		}
		sum := xxhash.Sum64String(text)
		if seenText[sum] {
			continue
		}
		seenText[sum] = true
		variants = append(variants, &operation.Variant{
			ID:              fmt.Sprintf("%s:variant-%d", op.ID, mask),
			OriginalQueryID: op.ID,
			Conditions:      conditions,
			Source:          text,
		})
	}
	return variants, switches
}

// unifySwitches merges switches sharing a condition expression across
// operations into one switch identity.
func unifySwitches(all []*operation.Switch) []*operation.Switch {
	seen := make(map[string]bool)
	var out []*operation.Switch
	for _, s := range all {
		if seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		out = append(out, s)
	}
	return out
}
