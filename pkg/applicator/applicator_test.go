package applicator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
	"github.com/jensneuse/graphql-migrate/pkg/sourcemap"
)

func TestApplyTransformation(t *testing.T) {
	t.Run("should splice the transformed text into the captured byte range", func(t *testing.T) {
		fileText := "const q = gql`query Q { venture { logoUrl } }`;\n"
		start := strings.Index(fileText, "query")
		end := strings.LastIndex(fileText, "`")

		res, err := ApplyTransformation(fileText, Edit{
			Mapping:    &sourcemap.Mapping{OperationID: "op", File: "a.ts", Start: start, End: end},
			NewGraphQL: "query Q { venture { logo } }",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Applied)
		assert.Contains(t, res.Code, "gql`query Q { venture { logo } }\n`")
		assert.NotContains(t, res.Code, "logoUrl")
	})

	t.Run("should refuse to apply without a mapping", func(t *testing.T) {
		_, err := ApplyTransformation("anything", Edit{NewGraphQL: "query Q { x }"})
		assert.ErrorIs(t, err, ErrMissingSourceAST)
	})

	t.Run("should reject byte ranges beyond the file", func(t *testing.T) {
		_, err := ApplyTransformation("short", Edit{
			Mapping:    &sourcemap.Mapping{OperationID: "op", Start: 0, End: 100},
			NewGraphQL: "query Q { x }",
		})
		assert.Error(t, err)
	})
}

func TestApplyFile(t *testing.T) {
	t.Run("should apply several edits without invalidating offsets", func(t *testing.T) {
		fileText := "const a = gql`AAA`;\nconst b = gql`BBB`;\n"
		aStart := strings.Index(fileText, "AAA")
		bStart := strings.Index(fileText, "BBB")

		res, err := ApplyFile("a.ts", fileText, []Edit{
			{Mapping: &sourcemap.Mapping{OperationID: "a", Start: aStart, End: aStart + 3}, NewGraphQL: "AAAA"},
			{Mapping: &sourcemap.Mapping{OperationID: "b", Start: bStart, End: bStart + 3}, NewGraphQL: "BB"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Applied)
		assert.Contains(t, res.Code, "gql`AAAA\n`")
		assert.Contains(t, res.Code, "gql`BB\n`")
	})

	t.Run("should reject overlapping edits", func(t *testing.T) {
		fileText := "0123456789"
		_, err := ApplyFile("a.ts", fileText, []Edit{
			{Mapping: &sourcemap.Mapping{OperationID: "a", Start: 0, End: 6}, NewGraphQL: "x"},
			{Mapping: &sourcemap.Mapping{OperationID: "b", Start: 4, End: 9}, NewGraphQL: "y"},
		})
		assert.Error(t, err)
	})

	t.Run("should count added and removed lines", func(t *testing.T) {
		fileText := "gql`one\ntwo\nthree`"
		res, err := ApplyFile("a.ts", fileText, []Edit{
			{Mapping: &sourcemap.Mapping{OperationID: "a", Start: 4, End: 17}, NewGraphQL: "single"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, res.LinesRemoved)
		assert.Equal(t, 1, res.LinesAdded)
	})
}

func TestRestoreInterpolations(t *testing.T) {
	t.Run("should restore placeholders in place", func(t *testing.T) {
		interps := []operation.Interpolation{
			{Index: 0, Expression: "queryNames.byIdV3", Placeholder: "GqlmPlaceholder0"},
		}
		out := restoreInterpolations("query GqlmPlaceholder0 { venture { id } }", interps, nil)
		assert.Equal(t, "query ${queryNames.byIdV3} { venture { id } }\n", out)
	})

	t.Run("should substitute expression overrides by index", func(t *testing.T) {
		interps := []operation.Interpolation{
			{Index: 0, Expression: "queryNames.byIdV1", Placeholder: "GqlmPlaceholder0"},
		}
		out := restoreInterpolations("query GqlmPlaceholder0 { venture { id } }", interps,
			map[int]string{0: "${queryNames.byIdV3}"})
		assert.Contains(t, out, "query ${queryNames.byIdV3}")
		assert.NotContains(t, out, "byIdV1")
	})

	t.Run("should re-append interpolations the rewrite dropped", func(t *testing.T) {
		interps := []operation.Interpolation{
			{Index: 0, Expression: "ventureFragmentDoc", Placeholder: "GqlmPlaceholder0"},
		}
		out := restoreInterpolations("query Q { venture { id } }", interps, nil)
		assert.True(t, strings.HasSuffix(out, "\n${ventureFragmentDoc}\n"))
	})

	t.Run("should keep double-digit placeholders distinct from their prefixes", func(t *testing.T) {
		var interps []operation.Interpolation
		text := "query Q { venture {"
		for i := 0; i <= 10; i++ {
			interps = append(interps, operation.Interpolation{
				Index:       i,
				Expression:  fmt.Sprintf("expr%d", i),
				Placeholder: operation.Placeholder(i),
			})
			text += " " + operation.Placeholder(i)
		}
		text += " } }"

		out := restoreInterpolations(text, interps, nil)
		for i := 0; i <= 10; i++ {
			assert.Contains(t, out, fmt.Sprintf("${expr%d}", i))
		}
		assert.NotContains(t, out, "${expr1}0")
		assert.Equal(t, strings.Index(out, "${expr10}"), strings.LastIndex(out, "${expr10}"))
		assert.True(t, strings.HasSuffix(out, "${expr10} } }\n"))
	})

	t.Run("should lose no dynamic expression across a full edit", func(t *testing.T) {
		fileText := "const q = gql`query Q { venture { id } }\n${ventureFragmentDoc}\n`;\n"
		start := strings.Index(fileText, "query")
		end := strings.LastIndex(fileText, "`")
		interps := []operation.Interpolation{
			{Index: 0, Expression: "ventureFragmentDoc", Placeholder: "GqlmPlaceholder0"},
		}

		res, err := ApplyFile("a.ts", fileText, []Edit{{
			Mapping:    &sourcemap.Mapping{OperationID: "op", Start: start, End: end, Interpolations: interps},
			NewGraphQL: "query Q { venture { ventureId } }",
		}})
		require.NoError(t, err)
		assert.Contains(t, res.Code, "${ventureFragmentDoc}")
		assert.Contains(t, res.Code, "ventureId")
	})
}
