// Package app wires the shared components from configuration. Both the
// server and the one-shot CLI build the same pipeline through here.
package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"pdf-translator/internal/budget"
	"pdf-translator/internal/cache"
	"pdf-translator/internal/config"
	"pdf-translator/internal/fonts"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/pipeline"
	"pdf-translator/internal/reflow"
	"pdf-translator/internal/tokenizer"
	"pdf-translator/internal/translator"
)

const tokenizerTimeout = 15 * time.Second

// App holds the built components and their shared state.
type App struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Cache    *cache.Cache
}

// Build constructs the full pipeline from configuration. The cache is
// loaded from disk when present; call Close on shutdown to persist it.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Get()

	store := cache.New(cache.Options{
		Path:       cfg.Cache.Path,
		MaxEntries: cfg.Cache.MaxEntries,
		MaxBytes:   cfg.Cache.MaxBytes,
	})
	if err := store.Load(); err != nil {
		log.Warn("cache load failed, starting empty", zap.Error(err))
	}

	provider := fonts.NewProvider(cfg.Fonts.Dir)
	if err := provider.Preload(); err != nil {
		return nil, err
	}

	counter := tokenizer.NewMemo(tokenizer.NewClient(cfg.Tokenizer.BaseURL, tokenizerTimeout))
	budgeter := budget.NewBudgeter(counter)

	client, err := translator.NewClient(ctx, translator.Config{
		APIKey:     cfg.Translator.APIKey,
		BaseURL:    cfg.Translator.BaseURL,
		Model:      cfg.Translator.Model,
		MaxRetries: cfg.Translator.MaxRetries,
		QPS:        cfg.Translator.QPS,
	}, store)
	if err != nil {
		return nil, err
	}

	reflower := reflow.NewReflower(provider, reflow.Options{
		Policy:              reflow.FallbackPolicy(cfg.Reflow.FallbackPolicy),
		FallbackChain:       cfg.Fonts.FallbackChain,
		AllowVerticalGrowth: cfg.Reflow.AllowVerticalGrowth,
		MinScale:            cfg.Reflow.MinScale,
	})

	assembler, err := pdf.NewDocumentAssembler(pdf.AssemblerOptions{
		MaxOutputBytes: cfg.Output.MaxBytes,
		UserFontFiles:  fontFiles(cfg.Fonts.Dir),
	})
	if err != nil {
		return nil, err
	}

	pipe := pipeline.New(pdf.NewStructuralParser(), budgeter, client, reflower, assembler)
	return &App{Config: cfg, Pipeline: pipe, Cache: store}, nil
}

// BudgetOptions derives the batch planner options from configuration.
func (a *App) BudgetOptions() budget.Options {
	return budget.Options{
		MaxTokensPerCall:     a.Config.Batch.MaxTokensPerCall,
		PromptOverheadTokens: a.Config.Batch.PromptOverheadTokens,
		Stride:               a.Config.Batch.SplitStride,
		Split:                budget.SplitSentences,
	}
}

// Close persists shared state.
func (a *App) Close() error {
	return a.Cache.Save()
}

// fontFiles lists the installable font files under dir. A missing
// directory yields an empty list; the assembler then relies on the core
// fonts.
func fontFiles(dir string) []string {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".ttf" || ext == ".otf" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files
}
