// Command translate runs one document through the pipeline from the
// command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pdf-translator/internal/app"
	"pdf-translator/internal/config"
	"pdf-translator/internal/document"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pipeline"
)

func main() {
	var (
		configPath string
		output     string
		sourceLang string
		targetLang string
	)

	root := &cobra.Command{
		Use:   "translate <input.pdf>",
		Short: "Translate a PDF, preserving its layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, args[0], output, sourceLang, targetLang)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (yaml)")
	root.Flags().StringVarP(&output, "output", "o", "", "output path (default: <input>_translated.pdf)")
	root.Flags().StringVar(&sourceLang, "from", "English", "source language")
	root.Flags().StringVar(&targetLang, "to", "Chinese", "target language")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, input, output, sourceLang, targetLang string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Get()

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if output == "" {
		ext := filepath.Ext(input)
		output = strings.TrimSuffix(input, ext) + "_translated" + ext
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Warn("failed to persist cache", zap.Error(err))
		}
	}()

	var bar *progressbar.ProgressBar
	res, err := application.Pipeline.Run(ctx, data, pipeline.Options{
		SourceLang:  sourceLang,
		TargetLang:  targetLang,
		ModelID:     cfg.Translator.Model,
		Parallelism: cfg.Translator.Parallelism,
		Budget:      application.BudgetOptions(),
		Progress: func(completed, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("translating"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}
			_ = bar.Set(completed)
		},
	})
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}

	if err := os.WriteFile(output, res.Output, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	fmt.Printf("wrote %s (%d pages, %d/%d units translated)\n",
		output, res.Stats.Pages, res.Stats.TranslatedUnits, res.Stats.Units)
	printWarnings(res.Warnings)
	return nil
}

func printWarnings(warnings []document.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Printf("%d warning(s):\n", len(warnings))
	for _, w := range warnings {
		if w.Page > 0 {
			fmt.Printf("  [%s] page %d: %s\n", w.Kind, w.Page, w.Message)
		} else {
			fmt.Printf("  [%s] %s\n", w.Kind, w.Message)
		}
	}
}
