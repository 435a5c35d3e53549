package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gemstudio/gem/editor-go/internal/config"
	"github.com/gemstudio/gem/editor-go/internal/observability"
)

type rootOptions struct {
	logLevel string
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:          "gempatch",
		Short:        "Build iteration patches from HTML mock-ups",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := config.Log{Level: opts.logLevel, Format: "console"}
			opts.logger = observability.New(cfg, "gempatch", zapcore.AddSync(cmd.ErrOrStderr()))
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newBuildCmd(opts))
	return root
}
