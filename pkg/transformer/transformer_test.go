package transformer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/jensneuse/graphql-migrate/pkg/operation"
)

const testSchema = `
	type Query {
		venture(ventureId: ID!): Venture
		user(id: ID!): User
	}
	type Venture {
		id: ID!
		logoUrl: String
		logo: String
		profile: Profile
	}
	type Profile {
		name: String
		displayName: String
	}
	type User {
		id: ID!
		name: String
		projects: ProjectConnection
	}
	type ProjectConnection {
		edges: [ProjectEdge]
		nodes: [Project]
	}
	type ProjectEdge {
		node: Project
	}
	type Project {
		id: ID!
		title: String
	}
`

func schemaFor(t *testing.T) *ast.Schema {
	t.Helper()
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: testSchema})
	if err != nil {
		t.Fatalf("failed to parse schema: %v", err)
	}
	return schema
}

func opFor(src string) *operation.Operation {
	return &operation.Operation{ID: "test-op", File: "src/a.ts", NormalizedSource: src}
}

func TestTransformer_FieldRename(t *testing.T) {
	t.Run("should rename a deprecated field scoped by schema type", func(t *testing.T) {
		trans := NewWithSchema(schemaFor(t))
		res, err := trans.Transform(
			opFor(`query GetVenture($id: ID!) { venture(ventureId: $id) { id logoUrl } }`),
			[]Rule{{Type: RuleFieldRename, From: "logoUrl", To: "logo", ParentType: "Venture"}},
		)
		require.NoError(t, err)

		assert.True(t, res.Changed)
		assert.Contains(t, res.Transformed, "logo")
		assert.NotContains(t, res.Transformed, "logoUrl")
		assert.Equal(t, "simple-field-rename", res.Pattern)
		require.Len(t, res.Changes, 1)
		assert.Equal(t, "venture.logoUrl", res.Changes[0].Path)
	})

	t.Run("should not rename the same field name on a different type", func(t *testing.T) {
		trans := NewWithSchema(schemaFor(t))
		res, err := trans.Transform(
			opFor(`query GetProfile { venture(ventureId: "x") { profile { name } } }`),
			[]Rule{{Type: RuleFieldRename, From: "name", To: "fullName", ParentType: "User"}},
		)
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Equal(t, "no-op", res.Pattern)
	})

	t.Run("should fall back to parent-field scoping without a schema", func(t *testing.T) {
		trans := New()
		res, err := trans.Transform(
			opFor(`query Q { venture { profile { displayName } } }`),
			[]Rule{{Type: RuleFieldRename, From: "displayName", To: "name", ParentType: "Profile"}},
		)
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Contains(t, res.Transformed, "name")
	})

	t.Run("should not leave the old name behind as an alias", func(t *testing.T) {
		trans := NewWithSchema(schemaFor(t))
		res, err := trans.Transform(
			opFor(`query Q { venture(ventureId: "x") { logoUrl } }`),
			[]Rule{{Type: RuleFieldRename, From: "logoUrl", To: "logo", ParentType: "Venture"}},
		)
		require.NoError(t, err)
		assert.Contains(t, res.Transformed, "logo")
		assert.NotContains(t, res.Transformed, "logoUrl")
	})

	t.Run("should keep an alias the author wrote explicitly", func(t *testing.T) {
		trans := NewWithSchema(schemaFor(t))
		res, err := trans.Transform(
			opFor(`query Q { venture(ventureId: "x") { brandLogo: logoUrl } }`),
			[]Rule{{Type: RuleFieldRename, From: "logoUrl", To: "logo", ParentType: "Venture"}},
		)
		require.NoError(t, err)
		assert.Contains(t, res.Transformed, "brandLogo: logo")
		assert.NotContains(t, res.Transformed, "logoUrl")
	})

	t.Run("should rename inside fragment definitions", func(t *testing.T) {
		trans := NewWithSchema(schemaFor(t))
		res, err := trans.Transform(
			opFor("query Q { venture(ventureId: \"x\") { ...ventureFields } }\nfragment ventureFields on Venture { id logoUrl }"),
			[]Rule{{Type: RuleFieldRename, From: "logoUrl", To: "logo", ParentType: "Venture"}},
		)
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.NotContains(t, res.Transformed, "logoUrl")
	})
}

func TestTransformer_StructureChange(t *testing.T) {
	t.Run("should hoist the connection node selection into a flat field", func(t *testing.T) {
		trans := NewWithSchema(schemaFor(t))
		res, err := trans.Transform(
			opFor(`query Q { user(id: "1") { projects { edges { node { id title } } } } }`),
			[]Rule{{Type: RuleStructureChange, From: "edges", To: "nodes", ParentType: "ProjectConnection"}},
		)
		require.NoError(t, err)

		assert.True(t, res.Changed)
		assert.Contains(t, res.Transformed, "nodes")
		assert.NotContains(t, res.Transformed, "edges")
		assert.NotContains(t, res.Transformed, "node {")
		assert.Contains(t, res.Transformed, "title")
		assert.Equal(t, "connection-to-array", res.Pattern)
	})

	t.Run("should leave non-connection shapes alone", func(t *testing.T) {
		trans := New()
		res, err := trans.Transform(
			opFor(`query Q { user { edges { id } } }`),
			[]Rule{{Type: RuleStructureChange, From: "edges", To: "nodes"}},
		)
		require.NoError(t, err)
		assert.False(t, res.Changed)
	})
}

func TestTransformer_ArgumentChange(t *testing.T) {
	t.Run("should rename arguments in place", func(t *testing.T) {
		trans := New()
		res, err := trans.Transform(
			opFor(`query Q($id: ID!) { venture(ventureId: $id) { id } }`),
			[]Rule{{Type: RuleArgumentChange, From: "ventureId", To: "id"}},
		)
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Contains(t, res.Transformed, "venture(id: $id)")
		assert.Equal(t, "argument-rename", res.Pattern)
	})
}

func TestTransformer_Semantics(t *testing.T) {
	t.Run("should never mutate the operation record", func(t *testing.T) {
		src := `query Q { venture(ventureId: "x") { logoUrl } }`
		op := opFor(src)
		trans := NewWithSchema(schemaFor(t))
		_, err := trans.Transform(op, []Rule{{Type: RuleFieldRename, From: "logoUrl", To: "logo"}})
		require.NoError(t, err)
		assert.Equal(t, src, op.NormalizedSource)
	})

	t.Run("should be deterministic for identical inputs", func(t *testing.T) {
		trans := NewWithSchema(schemaFor(t))
		rules := []Rule{{Type: RuleFieldRename, From: "logoUrl", To: "logo", ParentType: "Venture"}}

		first, err := trans.Transform(opFor(`query Q { venture(ventureId: "x") { id logoUrl } }`), rules)
		require.NoError(t, err)
		second, err := trans.Transform(opFor(`query Q { venture(ventureId: "x") { id logoUrl } }`), rules)
		require.NoError(t, err)
		assert.Equal(t, first.Transformed, second.Transformed)
	})

	t.Run("should classify several distinct rule applications as multi-change", func(t *testing.T) {
		trans := NewWithSchema(schemaFor(t))
		res, err := trans.Transform(
			opFor(`query Q { venture(ventureId: "x") { logoUrl profile { displayName } } }`),
			[]Rule{
				{Type: RuleFieldRename, From: "logoUrl", To: "logo", ParentType: "Venture"},
				{Type: RuleFieldRename, From: "displayName", To: "name", ParentType: "Profile"},
			},
		)
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Equal(t, "multi-change", res.Pattern)
		assert.Len(t, res.Changes, 2)
	})

	t.Run("should fail on unparseable operation text", func(t *testing.T) {
		_, err := New().Transform(opFor("query {"), nil)
		assert.Error(t, err)
	})
}

func TestRenameFragment(t *testing.T) {
	t.Run("should rename a fragment definition and all its spreads", func(t *testing.T) {
		trans := New()
		res, err := trans.Transform(
			opFor("query Q { venture { ...ventureFields } }\nfragment ventureFields on Venture { id }"),
			nil,
		)
		require.NoError(t, err)

		renamed := RenameFragment(res.Document, "ventureFields", "ventureInfoFields")
		assert.True(t, renamed)

		text := Format(res.Document)
		assert.Contains(t, text, "...ventureInfoFields")
		assert.Contains(t, text, "fragment ventureInfoFields on Venture")
		assert.NotContains(t, text, "ventureFields ")
	})

	t.Run("should report when nothing matched", func(t *testing.T) {
		trans := New()
		res, err := trans.Transform(opFor("query Q { venture { id } }"), nil)
		require.NoError(t, err)
		assert.False(t, RenameFragment(res.Document, "missing", "other"))
	})
}
