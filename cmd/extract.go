package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jensneuse/graphql-migrate/pkg/extraction"
	"github.com/jensneuse/graphql-migrate/pkg/operation"
	"github.com/jensneuse/graphql-migrate/pkg/pipeline"
	"github.com/jensneuse/graphql-migrate/pkg/querypattern"
	"github.com/jensneuse/graphql-migrate/pkg/sourcemap"
)

var (
	extractStrategy     string
	extractNoVariants   bool
	extractNoFragments  bool
	extractFragmentsDir string
	extractNaming       string
	extractNoCache      bool
	extractConcurrency  int
	extractOut          string
)

// extractCmd runs extraction only and writes the result JSON.
var extractCmd = &cobra.Command{
	Use:     "extract <dir>",
	Short:   "extract finds all GraphQL operations under a directory",
	Example: "gqlmigrate extract ./src --strategy ast --out queries.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("extract: must provide 1 arg (directory)")
		}

		cfg := extraction.DefaultConfig(args[0])
		cfg.Strategy = extraction.Strategy(extractStrategy)
		cfg.DetectVariants = !extractNoVariants
		cfg.ResolveFragments = !extractNoFragments
		cfg.InlineFragments = !extractNoFragments
		cfg.FragmentsDir = extractFragmentsDir
		cfg.Naming = operation.NamingConvention(extractNaming)
		cfg.UseCache = !extractNoCache
		cfg.Concurrency = extractConcurrency

		engine := extraction.NewEngine(cfg, querypattern.DefaultRegistry(), logger())
		ext, err := engine.Extract(context.Background(), sourcemap.NewRegistry())
		if err != nil {
			return err
		}

		res := &pipeline.Result{Extraction: ext}
		data, err := res.ExtractionArtifact(args[0])
		if err != nil {
			return err
		}
		if extractOut == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(extractOut, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "found %d operations, %d variants, %d fragments in %d files\n",
			ext.Stats.TotalQueries, ext.Stats.TotalVariants, ext.Stats.TotalFragments, ext.Stats.FilesScanned)
		if ext.HasErrors() {
			fmt.Fprintf(cmd.OutOrStdout(), "%d files had extraction errors, see %s\n", len(ext.Errors), extractOut)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractStrategy, "strategy", string(extraction.StrategyHybrid), "extraction strategy: pluck, ast or hybrid")
	extractCmd.Flags().BoolVar(&extractNoVariants, "no-variants", false, "skip conditional variant enumeration")
	extractCmd.Flags().BoolVar(&extractNoFragments, "no-fragments", false, "skip fragment resolution")
	extractCmd.Flags().StringVar(&extractFragmentsDir, "fragments-dir", "", "additional directory to load fragment definitions from")
	extractCmd.Flags().StringVar(&extractNaming, "naming", string(operation.NamingPreserve), "operation naming convention: pascalCase, camelCase or preserve")
	extractCmd.Flags().BoolVar(&extractNoCache, "no-cache", false, "disable the per-file extraction cache")
	extractCmd.Flags().IntVar(&extractConcurrency, "concurrency", extraction.DefaultConcurrency, "number of files processed in parallel")
	extractCmd.Flags().StringVar(&extractOut, "out", "", "write the extraction result JSON to this file instead of stdout")
}
