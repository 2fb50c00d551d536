package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jensneuse/graphql-migrate/pkg/rollout"
)

var rolloutState string

var rolloutCmd = &cobra.Command{
	Use:   "rollout",
	Short: "rollout manages the feature flags of migrated operations",
}

var rolloutStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "status lists all flags and their rollout percentages",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := rollout.NewManager(logger())
		if err := loadFlagState(rolloutState, manager); err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "OPERATION\tENABLED\tPERCENT\tSEGMENTS\tUPDATED")
		for _, f := range manager.Flags() {
			fmt.Fprintf(w, "%s\t%t\t%d\t%v\t%s\n",
				f.OperationID, f.Enabled, f.RolloutPercentage, f.EnabledSegments,
				f.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var rolloutStartCmd = &cobra.Command{
	Use:     "start <operation> <percentage>",
	Short:   "start enables an operation's migrated query for a percentage of users",
	Example: "gqlmigrate rollout start src/user.ts:12:18:GetUser:a1b2c3d4 25",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("rollout start: must provide 2 args (operation, percentage)")
		}
		pct, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("rollout start: percentage must be an integer: %v", err)
		}
		return mutateFlags(func(m *rollout.Manager) error {
			m.CreateFeatureFlag(args[0])
			return m.StartRollout(args[0], pct)
		})
	},
}

var rolloutIncreaseCmd = &cobra.Command{
	Use:   "increase <operation> [delta]",
	Short: "increase raises an operation's rollout percentage",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("rollout increase: must provide 1 or 2 args (operation, optional delta)")
		}
		delta := 0
		if len(args) == 2 {
			var err error
			if delta, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("rollout increase: delta must be an integer: %v", err)
			}
		}
		return mutateFlags(func(m *rollout.Manager) error {
			return m.IncreaseRollout(args[0], delta)
		})
	},
}

var rolloutPauseCmd = &cobra.Command{
	Use:   "pause <operation>",
	Short: "pause disables an operation's flag but keeps its percentage",
	RunE:  singleOpCommand("rollout pause", func(m *rollout.Manager, op string) error { return m.PauseRollout(op) }),
}

var rolloutRollbackCmd = &cobra.Command{
	Use:   "rollback <operation>",
	Short: "rollback disables an operation's flag and resets its percentage",
	RunE:  singleOpCommand("rollout rollback", func(m *rollout.Manager, op string) error { return m.RollbackOperation(op) }),
}

func singleOpCommand(name string, fn func(*rollout.Manager, string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("%s: must provide 1 arg (operation)", name)
		}
		return mutateFlags(func(m *rollout.Manager) error {
			return fn(m, args[0])
		})
	}
}

func mutateFlags(fn func(*rollout.Manager) error) error {
	manager := rollout.NewManager(logger())
	if err := loadFlagState(rolloutState, manager); err != nil {
		return err
	}
	if err := fn(manager); err != nil {
		return err
	}
	return saveFlagState(rolloutState, manager)
}

func init() {
	rootCmd.AddCommand(rolloutCmd)
	rolloutCmd.AddCommand(rolloutStatusCmd, rolloutStartCmd, rolloutIncreaseCmd, rolloutPauseCmd, rolloutRollbackCmd)
	rolloutCmd.PersistentFlags().StringVar(&rolloutState, "state", defaultStateFile, "feature flag state file")
}
