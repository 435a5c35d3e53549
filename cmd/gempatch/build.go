package main

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gemstudio/gem/editor-go/internal/editor"
	"github.com/gemstudio/gem/editor-go/internal/htmldom"
	"github.com/gemstudio/gem/editor-go/internal/patch"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newBuildCmd(root *rootOptions) *cobra.Command {
	var htmlPath, scriptPath, outPath string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Replay a command script over a mock-up and emit the patch",
		Long: `build loads every data-gem-id element of the mock-up, dispatches the
commands of the script (a JSON array of editor commands) in order and writes
the resulting gem.iteration.patch/v1 document.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}
			return build(root.logger, htmlPath, scriptPath, out)
		},
	}

	cmd.Flags().StringVar(&htmlPath, "html", "", "path to the HTML mock-up")
	cmd.Flags().StringVar(&scriptPath, "script", "", "path to a JSON array of editor commands")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the patch to this file instead of stdout")
	_ = cmd.MarkFlagRequired("html")
	return cmd
}

func build(logger *zap.Logger, htmlPath, scriptPath string, out io.Writer) error {
	f, err := os.Open(htmlPath)
	if err != nil {
		return fmt.Errorf("open mock-up: %w", err)
	}
	defer f.Close()

	surface, err := htmldom.Load(f)
	if err != nil {
		return err
	}

	var script []editor.Command
	if scriptPath != "" {
		data, err := os.ReadFile(scriptPath)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		if err := json.Unmarshal(data, &script); err != nil {
			return fmt.Errorf("decode script: %w", err)
		}
	}

	ed := editor.New(surface, editor.Options{Logger: logger})
	defer ed.Close()

	for i, cmd := range script {
		res, err := ed.Dispatch(cmd)
		if err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
		logger.Debug("dispatched", zap.Int("index", i), zap.String("type", cmd.Type), zap.Bool("changed", res.Changed))
	}

	data, err := patch.EncodeIndent(ed.Patch())
	if err != nil {
		return err
	}
	if _, err := out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write patch: %w", err)
	}
	return nil
}
