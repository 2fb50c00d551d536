package extraction

import (
	"regexp"
	"strings"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
	"github.com/jensneuse/graphql-migrate/pkg/querypattern"
)

// pluckResult is what either scanner produces for one template literal.
type pluckResult struct {
	ops       []*operation.Operation
	fragments []*operation.Fragment
	raws      []rawInterpolation
	// template content byte range within the file, backticks excluded
	start, end int
	tagged     bool
}

var gqlKeywordRE = regexp.MustCompile(`(?s)^\s*(#[^\n]*\n\s*)*(query|mutation|subscription|fragment)\b`)

// pluckFile scans file text for template-literal regions that look like
// GraphQL, without parsing the host language. It tolerates arbitrary
// non-GraphQL files: anything that does not parse as GraphQL after
// placeholder substitution is skipped silently.
func pluckFile(file, text string, registry *querypattern.Registry, naming operation.NamingConvention) []pluckResult {
	var results []pluckResult
	for i := 0; i < len(text); i++ {
		if text[i] != '`' {
			continue
		}
		end := matchingBacktick(text, i+1)
		if end < 0 {
			break
		}
		content := text[i+1 : end]
		if looksLikeGraphQL(content) {
			line, column := position(text, i+1)
			raws := scanInterpolations(content)
			normalized, records := normalizeTemplate(content, raws)
			ops, frags, err := buildOperations(file, line, column, content, normalized, records, raws, registry, naming)
			if err == nil && (len(ops) > 0 || len(frags) > 0) {
				results = append(results, pluckResult{
					ops:       ops,
					fragments: frags,
					raws:      raws,
					start:     i + 1,
					end:       end,
					tagged:    taggedBefore(text, i),
				})
			}
		}
		i = end
	}
	return results
}

func matchingBacktick(text string, from int) int {
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '`':
			return i
		}
	}
	return -1
}

// looksLikeGraphQL accepts content that opens with a GraphQL definition
// keyword, a selection-set brace, or a name interpolation directly after the
// operation keyword.
func looksLikeGraphQL(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "{") {
		return strings.Contains(trimmed, "}")
	}
	return gqlKeywordRE.MatchString(content)
}

// taggedBefore reports whether the backtick at offset is preceded by a known
// GraphQL tag (gql, graphql, GraphQL, possibly via member access or a call).
func taggedBefore(text string, offset int) bool {
	j := offset - 1
	for j >= 0 && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '(') {
		j--
	}
	end := j + 1
	for j >= 0 && (isWordByte(text[j]) || text[j] == '.') {
		j--
	}
	ident := text[j+1 : end]
	if dot := strings.LastIndexByte(ident, '.'); dot >= 0 {
		ident = ident[dot+1:]
	}
	switch ident {
	case "gql", "graphql", "GraphQL":
		return true
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// position converts a byte offset to 1-based line and column.
func position(text string, offset int) (line, column int) {
	line, column = 1, 1
	for i := 0; i < offset && i < len(text); i++ {
		if text[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}
