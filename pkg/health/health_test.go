package health

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_PerformHealthCheck(t *testing.T) {
	t.Run("should stay healthy below the minimum sample size", func(t *testing.T) {
		tracker := NewTracker(nil)
		for i := 0; i < 50; i++ {
			tracker.RecordError("op-1", "boom", 100)
		}

		report := tracker.PerformHealthCheck("op-1")
		assert.Equal(t, StatusHealthy, report.Status)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, SeverityLow, report.Issues[0].Severity)
	})

	t.Run("should report healthy for a clean window", func(t *testing.T) {
		tracker := NewTracker(nil)
		for i := 0; i < 150; i++ {
			tracker.RecordSuccess("op-1", 120)
		}

		report := tracker.PerformHealthCheck("op-1")
		assert.Equal(t, StatusHealthy, report.Status)
		assert.Zero(t, report.ErrorRate)
		assert.Equal(t, float64(120), report.P99)
		assert.Empty(t, report.Issues)
	})

	t.Run("should go unhealthy when the error rate exceeds one percent", func(t *testing.T) {
		tracker := NewTracker(nil)
		for i := 0; i < 195; i++ {
			tracker.RecordSuccess("op-1", 100)
		}
		for i := 0; i < 5; i++ {
			tracker.RecordError("op-1", "upstream 500", 100)
		}

		report := tracker.PerformHealthCheck("op-1")
		assert.Equal(t, StatusUnhealthy, report.Status)
		assert.InDelta(t, 0.025, report.ErrorRate, 0.0001)

		severities := map[Severity]bool{}
		messages := map[Severity]string{}
		for _, issue := range report.Issues {
			severities[issue.Severity] = true
			messages[issue.Severity] = issue.Message
		}
		assert.True(t, severities[SeverityCritical])
		assert.True(t, severities[SeverityMedium])
		assert.Contains(t, messages[SeverityMedium], "upstream 500")
	})

	t.Run("should degrade on slow p99 latency", func(t *testing.T) {
		tracker := NewTracker(nil)
		for i := 0; i < 150; i++ {
			tracker.RecordSuccess("op-1", 3000)
		}

		report := tracker.PerformHealthCheck("op-1")
		assert.Equal(t, StatusDegraded, report.Status)
		assert.Equal(t, float64(3000), report.P99)

		found := false
		for _, issue := range report.Issues {
			if issue.Severity == SeverityHigh {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("should compute percentiles by nearest rank", func(t *testing.T) {
		tracker := NewTracker(nil)
		for i := 1; i <= 100; i++ {
			tracker.RecordSuccess("op-1", float64(i))
		}

		report := tracker.PerformHealthCheck("op-1")
		assert.Equal(t, float64(50), report.P50)
		assert.Equal(t, float64(95), report.P95)
		assert.Equal(t, float64(99), report.P99)
	})

	t.Run("should bound the latency window", func(t *testing.T) {
		tracker := NewTracker(nil)
		for i := 0; i < 1500; i++ {
			tracker.RecordSuccess("op-1", 10)
		}
		report := tracker.PerformHealthCheck("op-1")
		assert.Equal(t, 1500, report.SampleCount)
		assert.Equal(t, float64(10), report.P50)
	})

	t.Run("should tolerate concurrent recording", func(t *testing.T) {
		tracker := NewTracker(nil)
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					tracker.RecordSuccess(fmt.Sprintf("op-%d", g%2), 50)
				}
			}(g)
		}
		wg.Wait()

		total := tracker.PerformHealthCheck("op-0").SampleCount + tracker.PerformHealthCheck("op-1").SampleCount
		assert.Equal(t, 800, total)
	})
}
