package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jensneuse/graphql-migrate/pkg/extraction"
	"github.com/jensneuse/graphql-migrate/pkg/health"
	"github.com/jensneuse/graphql-migrate/pkg/operation"
	"github.com/jensneuse/graphql-migrate/pkg/pipeline"
	"github.com/jensneuse/graphql-migrate/pkg/rollout"
	"github.com/jensneuse/graphql-migrate/pkg/schemaloader"
)

var (
	migrateSchema        string
	migrateRules         string
	migrateStrategy      string
	migrateNoVariants    bool
	migrateNoFragments   bool
	migrateFragmentsDir  string
	migrateNaming        string
	migrateNoCache       bool
	migrateConcurrency   int
	migrateMinConfidence int
	migrateDryRun        bool
	migrateRollout       int
	migrateOut           string
	migrateState         string
)

// migrateCmd runs the full pipeline: extract, transform, apply, roll out.
var migrateCmd = &cobra.Command{
	Use:     "migrate <dir>",
	Short:   "migrate rewrites deprecated GraphQL usage in place",
	Example: "gqlmigrate migrate ./src --schema schema.graphql --dry-run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("migrate: must provide 1 arg (directory)")
		}
		if migrateSchema == "" {
			return fmt.Errorf("migrate: --schema is required")
		}

		l := logger()
		loader, err := schemaloader.NewLoader(schemaloader.Config{}, l)
		if err != nil {
			return err
		}
		manager := rollout.NewManager(l)
		if err := loadFlagState(migrateState, manager); err != nil {
			return err
		}
		tracker := health.NewTracker(l)

		cfg := pipeline.DefaultConfig(args[0], migrateSchema)
		cfg.RulesPath = migrateRules
		cfg.Strategy = extraction.Strategy(migrateStrategy)
		cfg.DetectVariants = !migrateNoVariants
		cfg.ResolveFragments = !migrateNoFragments
		cfg.FragmentsDir = migrateFragmentsDir
		cfg.Naming = operation.NamingConvention(migrateNaming)
		cfg.UseCache = !migrateNoCache
		cfg.Concurrency = migrateConcurrency
		cfg.MinConfidence = migrateMinConfidence
		cfg.DryRun = migrateDryRun
		cfg.RolloutPercentage = migrateRollout

		p := pipeline.New(cfg, loader, manager, tracker, l)
		result, err := p.Run(context.Background())
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), result.Summary())

		if migrateOut != "" {
			data, err := result.TransformationArtifact()
			if err != nil {
				return err
			}
			if err := os.WriteFile(migrateOut, data, 0o644); err != nil {
				return err
			}
		}
		if !migrateDryRun {
			if err := saveFlagState(migrateState, manager); err != nil {
				return err
			}
		}
		if result.HasErrors() {
			return fmt.Errorf("migrate: completed with %d errors", len(result.Errors))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&migrateSchema, "schema", "", "schema source: a .graphql file, a URL, or a registry name")
	migrateCmd.Flags().StringVar(&migrateRules, "rules", "", "optional deprecation rules JSON file, merged with schema @deprecated directives")
	migrateCmd.Flags().StringVar(&migrateStrategy, "strategy", string(extraction.StrategyHybrid), "extraction strategy: pluck, ast or hybrid")
	migrateCmd.Flags().BoolVar(&migrateNoVariants, "no-variants", false, "skip conditional variant enumeration")
	migrateCmd.Flags().BoolVar(&migrateNoFragments, "no-fragments", false, "skip fragment resolution")
	migrateCmd.Flags().StringVar(&migrateFragmentsDir, "fragments-dir", "", "additional directory to load fragment definitions from")
	migrateCmd.Flags().StringVar(&migrateNaming, "naming", string(operation.NamingPreserve), "operation naming convention: pascalCase, camelCase or preserve")
	migrateCmd.Flags().BoolVar(&migrateNoCache, "no-cache", false, "disable the per-file extraction cache")
	migrateCmd.Flags().IntVar(&migrateConcurrency, "concurrency", extraction.DefaultConcurrency, "number of files processed in parallel")
	migrateCmd.Flags().IntVar(&migrateMinConfidence, "min-confidence", 70, "minimum confidence score for an automatic rewrite")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "report what would change without writing files")
	migrateCmd.Flags().IntVar(&migrateRollout, "rollout", 0, "initial rollout percentage for applied operations")
	migrateCmd.Flags().StringVar(&migrateOut, "out", "", "write the transformation result JSON to this file")
	migrateCmd.Flags().StringVar(&migrateState, "state", defaultStateFile, "feature flag state file")
}
