// Package applicator re-projects transformed GraphQL back into the
// original source file. It only ever splices the exact byte range captured
// at extraction time; rewriting source by text search is disallowed, so an
// operation without a captured mapping fails closed.
package applicator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
	"github.com/jensneuse/graphql-migrate/pkg/sourcemap"
)

// ErrMissingSourceAST rejects application for operations extracted without
// a captured host-language syntax tree (e.g. pluck-only results).
var ErrMissingSourceAST = errors.New("applicator: missing source AST for operation")

// Edit is one pending splice into a file.
type Edit struct {
	Mapping *sourcemap.Mapping
	// NewGraphQL is the transformed operation text with placeholder names
	// still in place; interpolations are re-inserted here.
	NewGraphQL string
	// ExpressionOverrides substitutes a different source expression for an
	// interpolation index, used when the transformation targets the name
	// pattern itself. All other interpolations are restored verbatim.
	ExpressionOverrides map[int]string
}

// Result reports one file's application.
type Result struct {
	File         string `json:"file"`
	Code         string `json:"-"`
	Applied      int    `json:"applied"`
	LinesAdded   int    `json:"linesAdded"`
	LinesRemoved int    `json:"linesRemoved"`
}

// ApplyTransformation splices a single edit and returns the new file text.
func ApplyTransformation(fileText string, edit Edit) (Result, error) {
	return ApplyFile("", fileText, []Edit{edit})
}

// ApplyFile applies all edits for one file. Edits are ordered by descending
// start offset so earlier splices never invalidate later byte ranges.
// Overlapping ranges are rejected.
func ApplyFile(file, fileText string, edits []Edit) (Result, error) {
	result := Result{File: file, Code: fileText}
	for _, e := range edits {
		if e.Mapping == nil {
			return result, ErrMissingSourceAST
		}
		if e.Mapping.End > len(fileText) {
			return result, fmt.Errorf("applicator: byte range [%d,%d) exceeds file %s (%d bytes)",
				e.Mapping.Start, e.Mapping.End, file, len(fileText))
		}
	}

	ordered := make([]Edit, len(edits))
	copy(ordered, edits)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Mapping.Start > ordered[j].Mapping.Start
	})
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Mapping.End > ordered[i-1].Mapping.Start {
			return result, fmt.Errorf("applicator: overlapping edits in %s", file)
		}
	}

	code := fileText
	for _, e := range ordered {
		replacement := restoreInterpolations(e.NewGraphQL, e.Mapping.Interpolations, e.ExpressionOverrides)
		old := code[e.Mapping.Start:e.Mapping.End]
		code = code[:e.Mapping.Start] + replacement + code[e.Mapping.End:]
		result.Applied++
		result.LinesRemoved += strings.Count(old, "\n")
		result.LinesAdded += strings.Count(replacement, "\n")
	}
	result.Code = code
	return result, nil
}

// restoreInterpolations puts every ${...} expression back. Placeholders
// present in the new text are replaced in place; interpolations whose
// placeholder no longer appears (document-level inclusions, or sites the
// rewrite dropped) are re-appended so no dynamic expression is ever lost.
func restoreInterpolations(text string, interps []operation.Interpolation, overrides map[int]string) string {
	out := strings.TrimRight(text, "\n")
	// Highest index first: a placeholder name can only be a prefix of a
	// numerically larger one, so replacing in descending order never splices
	// an expression inside another placeholder.
	ordered := append([]operation.Interpolation(nil), interps...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index > ordered[j].Index })
	restored := make(map[int]bool, len(ordered))
	for _, in := range ordered {
		if strings.Contains(out, in.Placeholder) {
			out = strings.ReplaceAll(out, in.Placeholder, interpolationExpr(in, overrides))
			restored[in.Index] = true
		}
	}
	for _, in := range interps {
		if !restored[in.Index] {
			out += "\n" + interpolationExpr(in, overrides)
		}
	}
	return out + "\n"
}

func interpolationExpr(in operation.Interpolation, overrides map[int]string) string {
	if o, ok := overrides[in.Index]; ok {
		return o
	}
	return "${" + in.Expression + "}"
}
