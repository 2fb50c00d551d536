package operation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceholder(t *testing.T) {
	t.Run("should derive a parseable GraphQL name from the index", func(t *testing.T) {
		assert.Equal(t, "GqlmPlaceholder0", Placeholder(0))
		assert.Equal(t, "GqlmPlaceholder12", Placeholder(12))
	})
}

func TestName(t *testing.T) {
	t.Run("should report static names as not dynamic", func(t *testing.T) {
		name := Name{Static: "GetUser"}
		assert.False(t, name.IsDynamic())
		assert.Equal(t, "GetUser", name.String())
	})

	t.Run("should render dynamic names through their template", func(t *testing.T) {
		name := Name{Pattern: &NamePattern{Template: "${queryNames.byIdV1}", Version: "v1"}}
		assert.True(t, name.IsDynamic())
		assert.Equal(t, "${queryNames.byIdV1}", name.String())
	})
}

func TestNamingConvention(t *testing.T) {
	t.Run("should accept known conventions and the empty default", func(t *testing.T) {
		assert.True(t, NamingPascalCase.Valid())
		assert.True(t, NamingCamelCase.Valid())
		assert.True(t, NamingPreserve.Valid())
		assert.True(t, NamingConvention("").Valid())
		assert.False(t, NamingConvention("snake_case").Valid())
	})

	t.Run("should normalize static names to pascal case", func(t *testing.T) {
		name := NamingPascalCase.Apply(Name{Static: "getUserProfile"})
		assert.Equal(t, "GetUserProfile", name.Static)
	})

	t.Run("should normalize static names to camel case", func(t *testing.T) {
		name := NamingCamelCase.Apply(Name{Static: "GetUserProfile"})
		assert.Equal(t, "getUserProfile", name.Static)
	})

	t.Run("should preserve names under the preserve convention", func(t *testing.T) {
		name := NamingPreserve.Apply(Name{Static: "get_user"})
		assert.Equal(t, "get_user", name.Static)
	})

	t.Run("should never rename dynamic pattern names", func(t *testing.T) {
		dynamic := Name{Pattern: &NamePattern{Template: "${queryNames.byIdV1}"}}
		applied := NamingPascalCase.Apply(dynamic)
		assert.Same(t, dynamic.Pattern, applied.Pattern)
		assert.Empty(t, applied.Static)
	})
}

func TestExtractionError(t *testing.T) {
	t.Run("should include position when known", func(t *testing.T) {
		err := ExtractionError{File: "src/app.ts", Message: "unexpected token", Line: 3, Column: 7}
		assert.Equal(t, "src/app.ts:3:7: unexpected token", err.Error())
	})

	t.Run("should omit position when unknown", func(t *testing.T) {
		err := ExtractionError{File: "src/app.ts", Message: "unreadable"}
		assert.Equal(t, "src/app.ts: unreadable", err.Error())
	})
}
