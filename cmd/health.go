package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jensneuse/graphql-migrate/pkg/health"
	"github.com/jensneuse/graphql-migrate/pkg/rollout"
)

var (
	healthState   string
	healthMetrics string
	healthApply   bool
)

// metricSample is one line of the ingested metrics file.
type metricSample struct {
	OperationID string  `json:"operationId"`
	LatencyMs   float64 `json:"latencyMs"`
	Error       string  `json:"error,omitempty"`
}

// healthCmd replays recorded samples through the tracker, reports per
// operation health, and optionally rolls back unhealthy rollouts.
var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "health judges active rollouts from recorded latency and error samples",
	Example: "gqlmigrate health --metrics samples.json --apply",
	RunE: func(cmd *cobra.Command, args []string) error {
		l := logger()
		manager := rollout.NewManager(l)
		if err := loadFlagState(healthState, manager); err != nil {
			return err
		}

		tracker := health.NewTracker(l)
		if err := ingestMetrics(healthMetrics, tracker); err != nil {
			return err
		}

		monitor := health.NewMonitor(tracker, manager, l)
		var actions []health.Action
		if healthApply {
			actions = monitor.Evaluate()
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "OPERATION\tSTATUS\tSAMPLES\tERR%\tP50\tP95\tP99\tISSUES")
		for _, f := range manager.Flags() {
			report := tracker.PerformHealthCheck(f.OperationID)
			fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.0f\t%.0f\t%.0f\t%d\n",
				report.OperationID, report.Status, report.SampleCount,
				report.ErrorRate*100, report.P50, report.P95, report.P99, len(report.Issues))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		rolledBack := 0
		for _, a := range actions {
			if a.RolledBack {
				rolledBack++
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s (%s)\n", a.OperationID, a.Status)
			}
		}
		if rolledBack > 0 {
			return saveFlagState(healthState, manager)
		}
		return nil
	},
}

func ingestMetrics(path string, tracker *health.Tracker) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var samples []metricSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return err
	}
	for _, s := range samples {
		if s.Error != "" {
			tracker.RecordError(s.OperationID, s.Error, s.LatencyMs)
			continue
		}
		tracker.RecordSuccess(s.OperationID, s.LatencyMs)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().StringVar(&healthState, "state", defaultStateFile, "feature flag state file")
	healthCmd.Flags().StringVar(&healthMetrics, "metrics", "", "JSON file of recorded samples")
	healthCmd.Flags().BoolVar(&healthApply, "apply", false, "roll back operations judged unhealthy")
	_ = healthCmd.MarkFlagRequired("metrics")
}
