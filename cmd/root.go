package cmd

import (
	"fmt"
	"os"

	log "github.com/jensneuse/abstractlogger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootDebug bool

var rootCmd = &cobra.Command{
	Use:   "gqlmigrate",
	Short: "gqlmigrate finds GraphQL operations embedded in JS/TS sources and rewrites them against a newer schema",
	Long: `gqlmigrate is a source-to-source migration tool for GraphQL clients.

It extracts operations from tagged template literals, detects conditional
query variants, rewrites deprecated fields and connection shapes at the AST
level, splices the result back into the original files, and drives a
percentage-based rollout with health-checked rollback.`,
}

// Execute runs the root command. It is the only exit point of the binary.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "enable debug logging")
}

func logger() log.Logger {
	cfg := zap.NewProductionConfig()
	if rootDebug {
		cfg = zap.NewDevelopmentConfig()
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	level := log.InfoLevel
	if rootDebug {
		level = log.DebugLevel
	}
	return log.NewZapLogger(zapLogger, level)
}
