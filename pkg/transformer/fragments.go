package transformer

import "github.com/vektah/gqlparser/v2/ast"

// Format re-serializes a query document deterministically.
func Format(doc *ast.QueryDocument) string { return format(doc) }

// RenameFragment renames a fragment definition and every spread referring
// to it. Used for registry-driven fragment substitutions accompanying a
// name-pattern migration. Returns true when anything changed.
func RenameFragment(doc *ast.QueryDocument, from, to string) bool {
	if from == "" || to == "" || from == to {
		return false
	}
	changed := false
	for _, frag := range doc.Fragments {
		if frag.Name == from {
			frag.Name = to
			changed = true
		}
	}
	var walk func(set ast.SelectionSet)
	walk = func(set ast.SelectionSet) {
		for _, sel := range set {
			switch s := sel.(type) {
			case *ast.Field:
				walk(s.SelectionSet)
			case *ast.InlineFragment:
				walk(s.SelectionSet)
			case *ast.FragmentSpread:
				if s.Name == from {
					s.Name = to
					changed = true
				}
			}
		}
	}
	for _, def := range doc.Operations {
		walk(def.SelectionSet)
	}
	for _, frag := range doc.Fragments {
		walk(frag.SelectionSet)
	}
	return changed
}
