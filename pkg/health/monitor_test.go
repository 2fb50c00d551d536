package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jensneuse/graphql-migrate/pkg/rollout"
)

func TestMonitor_Evaluate(t *testing.T) {
	t.Run("should roll back unhealthy active rollouts", func(t *testing.T) {
		manager := rollout.NewManager(nil)
		manager.CreateFeatureFlag("op-bad")
		require.NoError(t, manager.StartRollout("op-bad", 50))
		manager.CreateFeatureFlag("op-good")
		require.NoError(t, manager.StartRollout("op-good", 50))

		tracker := NewTracker(nil)
		for i := 0; i < 150; i++ {
			tracker.RecordSuccess("op-good", 100)
		}
		for i := 0; i < 140; i++ {
			tracker.RecordSuccess("op-bad", 100)
		}
		for i := 0; i < 10; i++ {
			tracker.RecordError("op-bad", "upstream 500", 100)
		}

		actions := NewMonitor(tracker, manager, nil).Evaluate()
		require.Len(t, actions, 2)

		byOp := map[string]Action{}
		for _, a := range actions {
			byOp[a.OperationID] = a
		}
		assert.True(t, byOp["op-bad"].RolledBack)
		assert.Equal(t, StatusUnhealthy, byOp["op-bad"].Status)
		assert.False(t, byOp["op-good"].RolledBack)

		bad, err := manager.Flag("op-bad")
		require.NoError(t, err)
		assert.False(t, bad.Enabled)
		assert.Equal(t, 0, bad.RolloutPercentage)

		good, err := manager.Flag("op-good")
		require.NoError(t, err)
		assert.True(t, good.Enabled)
	})

	t.Run("should skip disabled flags and zero percentages", func(t *testing.T) {
		manager := rollout.NewManager(nil)
		manager.CreateFeatureFlag("op-idle")

		actions := NewMonitor(NewTracker(nil), manager, nil).Evaluate()
		assert.Empty(t, actions)
	})

	t.Run("should not roll back operations without enough data", func(t *testing.T) {
		manager := rollout.NewManager(nil)
		manager.CreateFeatureFlag("op-new")
		require.NoError(t, manager.StartRollout("op-new", 10))

		tracker := NewTracker(nil)
		for i := 0; i < 10; i++ {
			tracker.RecordError("op-new", "boom", 100)
		}

		actions := NewMonitor(tracker, manager, nil).Evaluate()
		require.Len(t, actions, 1)
		assert.False(t, actions[0].RolledBack)

		f, err := manager.Flag("op-new")
		require.NoError(t, err)
		assert.True(t, f.Enabled)
	})
}
