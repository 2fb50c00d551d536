package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
	"github.com/jensneuse/graphql-migrate/pkg/querypattern"
)

func conditionalOp(t *testing.T, content string) *operation.Operation {
	t.Helper()
	interps := scanInterpolations(content)
	normalized, records := normalizeTemplate(content, interps)
	ops, _, err := buildOperations("src/a.ts", 1, 1, content, normalized, records, interps, querypattern.DefaultRegistry(), operation.NamingPreserve)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	return ops[0]
}

func TestEnumerateVariants(t *testing.T) {
	t.Run("should produce no variants without conditionals", func(t *testing.T) {
		op := conditionalOp(t, "query Q { venture { id } }")
		variants, switches := enumerateVariants(op)
		assert.Empty(t, variants)
		assert.Empty(t, switches)
	})

	t.Run("should enumerate both branches of a single switch", func(t *testing.T) {
		op := conditionalOp(t, "query Q { venture { id ${includeProfile ? 'profile { name }' : ''} } }")
		variants, switches := enumerateVariants(op)

		require.Len(t, switches, 1)
		assert.Equal(t, "includeProfile", switches[0].Name)
		assert.Equal(t, 2, switches[0].Arity)

		require.Len(t, variants, 2)
		bodies := map[string]string{}
		for _, v := range variants {
			bodies[v.Conditions["includeProfile"]] = v.Source
		}
		assert.Contains(t, bodies["true"], "profile { name }")
		assert.NotContains(t, bodies["false"], "profile")
	})

	t.Run("should enumerate the full combination space of independent switches", func(t *testing.T) {
		op := conditionalOp(t, `query Q {
			venture {
				id
				${includeProfile ? 'profile { name }' : 'profileId'}
				${includeBilling ? 'billing { plan }' : 'billingId'}
			}
		}`)
		variants, switches := enumerateVariants(op)
		assert.Len(t, switches, 2)
		assert.Len(t, variants, 4)

		seen := map[string]bool{}
		for _, v := range variants {
			seen[v.Conditions["includeProfile"]+"/"+v.Conditions["includeBilling"]] = true
			assert.Equal(t, op.ID, v.OriginalQueryID)
		}
		assert.Len(t, seen, 4)
	})

	t.Run("should flip repeated occurrences of one condition together", func(t *testing.T) {
		op := conditionalOp(t, `query Q {
			venture {
				${verbose ? 'profile { name }' : 'profileId'}
				${verbose ? 'billing { plan }' : 'billingId'}
			}
		}`)
		variants, switches := enumerateVariants(op)
		assert.Len(t, switches, 1)
		require.Len(t, variants, 2)
		for _, v := range variants {
			if v.Conditions["verbose"] == "true" {
				assert.Contains(t, v.Source, "profile { name }")
				assert.Contains(t, v.Source, "billing { plan }")
			} else {
				assert.Contains(t, v.Source, "profileId")
				assert.Contains(t, v.Source, "billingId")
			}
		}
	})

	t.Run("should substitute double-digit placeholders without prefix collisions", func(t *testing.T) {
		content := "query Q { venture { ${f0} ${c1 ? 'profile { name }' : 'profileId'} " +
			"${f2} ${f3} ${f4} ${f5} ${f6} ${f7} ${f8} ${f9} " +
			"${c10 ? 'billing { plan }' : 'billingId'} } }"
		op := conditionalOp(t, content)
		variants, switches := enumerateVariants(op)

		require.Len(t, switches, 2)
		require.Len(t, variants, 4)
		for _, v := range variants {
			assert.NotContains(t, v.Source, "profileId0")
			assert.NotContains(t, v.Source, "profile { name }0")
			if v.Conditions["c10"] == "true" {
				assert.Contains(t, v.Source, "billing { plan }")
			} else {
				assert.Contains(t, v.Source, "billingId")
			}
		}
	})

	t.Run("should deduplicate variants with identical substituted text", func(t *testing.T) {
		op := conditionalOp(t, "query Q { venture { id ${flag ? 'name' : 'name'} } }")
		variants, _ := enumerateVariants(op)
		assert.Len(t, variants, 1)
	})
}

func TestUnifySwitches(t *testing.T) {
	t.Run("should merge switches sharing a condition across operations", func(t *testing.T) {
		all := []*operation.Switch{
			{Name: "includeProfile", Arity: 2},
			{Name: "includeProfile", Arity: 2},
			{Name: "includeBilling", Arity: 2},
		}
		out := unifySwitches(all)
		assert.Len(t, out, 2)
	})
}
