package sourcemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	t.Run("should store a valid mapping", func(t *testing.T) {
		r := NewRegistry()
		err := r.Register(&Mapping{OperationID: "op-1", File: "a.ts", Start: 10, End: 50, Node: NodeTaggedTemplate})
		assert.NoError(t, err)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("should reject a mapping without an operation id", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(&Mapping{File: "a.ts", Start: 0, End: 1}))
		assert.Error(t, r.Register(nil))
	})

	t.Run("should reject a degenerate byte range", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(&Mapping{OperationID: "op-1", Start: 50, End: 10}))
		assert.Error(t, r.Register(&Mapping{OperationID: "op-1", Start: -1, End: 10}))
	})

	t.Run("should reject a second mapping for the same operation", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(&Mapping{OperationID: "op-1", File: "a.ts", Start: 10, End: 50}))
		err := r.Register(&Mapping{OperationID: "op-1", File: "a.ts", Start: 60, End: 90})
		assert.Error(t, err)

		m, ok := r.Lookup("op-1")
		require.True(t, ok)
		assert.Equal(t, 10, m.Start)
	})
}

func TestRegistry_Consume(t *testing.T) {
	t.Run("should hand out a mapping exactly once", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(&Mapping{OperationID: "op-1", File: "a.ts", Start: 10, End: 50}))

		m, ok := r.Consume("op-1")
		require.True(t, ok)
		assert.Equal(t, "op-1", m.OperationID)

		_, ok = r.Consume("op-1")
		assert.False(t, ok)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("should report absence for unknown operations", func(t *testing.T) {
		r := NewRegistry()
		_, ok := r.Consume("missing")
		assert.False(t, ok)
	})
}

func TestRegistry_ByFile(t *testing.T) {
	t.Run("should return only mappings of the requested file", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(&Mapping{OperationID: "op-1", File: "a.ts", Start: 0, End: 10}))
		require.NoError(t, r.Register(&Mapping{OperationID: "op-2", File: "a.ts", Start: 20, End: 30}))
		require.NoError(t, r.Register(&Mapping{OperationID: "op-3", File: "b.ts", Start: 0, End: 10}))

		assert.Len(t, r.ByFile("a.ts"), 2)
		assert.Len(t, r.ByFile("b.ts"), 1)
		assert.Empty(t, r.ByFile("c.ts"))
	})
}
