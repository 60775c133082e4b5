// Package pipeline runs one document through the full translation flow:
// parse, batch planning, translation, reflow, assembly. Each request gets
// its own pipeline run; the stages behind it (cache, translation client)
// are shared and safe for concurrent use.
package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pdf-translator/internal/budget"
	"pdf-translator/internal/document"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/reflow"
)

// DefaultParallelism bounds concurrent batch translations per run.
const DefaultParallelism = 4

// Translator resolves one batch of units. Unit-level failures are carried
// in the results, not returned as an error.
type Translator interface {
	Translate(ctx context.Context, batch document.Batch) []document.TranslatedUnit
}

// ProgressFunc receives batch completion updates.
type ProgressFunc func(completed, total int)

// Options configures one pipeline run.
type Options struct {
	SourceLang  string
	TargetLang  string
	ModelID     string
	Parallelism int
	Budget      budget.Options
	Progress    ProgressFunc
}

// Result is the outcome of a run.
type Result struct {
	Output   []byte
	Warnings []document.Warning
	Stats    Stats
}

// Stats summarizes a run for logging and the job API.
type Stats struct {
	Pages           int `json:"pages"`
	Units           int `json:"units"`
	Batches         int `json:"batches"`
	TranslatedUnits int `json:"translated_units"`
	FailedUnits     int `json:"failed_units"`
}

// Pipeline wires the shared stages.
type Pipeline struct {
	parser     *pdf.StructuralParser
	budgeter   *budget.Budgeter
	translator Translator
	reflower   *reflow.Reflower
	assembler  *pdf.DocumentAssembler
	log        *zap.Logger
}

// New assembles a pipeline from its stages.
func New(parser *pdf.StructuralParser, budgeter *budget.Budgeter, translator Translator, reflower *reflow.Reflower, assembler *pdf.DocumentAssembler) *Pipeline {
	return &Pipeline{
		parser:     parser,
		budgeter:   budgeter,
		translator: translator,
		reflower:   reflower,
		assembler:  assembler,
		log:        logger.Get(),
	}
}

// Run translates input and returns the assembled output. Unit failures
// degrade per block via the fallback policy; only structural problems
// (unparseable input, assembly failure, cancellation) fail the run.
func (p *Pipeline) Run(ctx context.Context, input []byte, opts Options) (*Result, error) {
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	opts.Budget.SourceLang = opts.SourceLang
	opts.Budget.TargetLang = opts.TargetLang
	opts.Budget.ModelID = opts.ModelID

	doc, warnings, err := p.parser.Parse(input)
	if err != nil {
		return nil, err
	}

	batches, planWarnings, err := p.budgeter.Plan(ctx, doc, opts.Budget)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, planWarnings...)

	resolved, translateErr := p.translateAll(ctx, batches, opts)
	if translateErr != nil {
		return nil, translateErr
	}

	stats := Stats{Pages: doc.PageCount(), Batches: len(batches)}
	for _, rus := range resolved {
		for _, ru := range rus {
			stats.Units++
			if ru.Result.Succeeded() {
				stats.TranslatedUnits++
			} else {
				stats.FailedUnits++
			}
		}
	}

	warnings = append(warnings, p.reflowAll(doc, resolved)...)

	output, err := p.assembler.Assemble(doc)
	if err != nil {
		return nil, err
	}

	p.log.Info("pipeline run complete",
		zap.Int("pages", stats.Pages),
		zap.Int("units", stats.Units),
		zap.Int("translated", stats.TranslatedUnits),
		zap.Int("failed", stats.FailedUnits),
		zap.Int("warnings", len(warnings)))

	return &Result{Output: output, Warnings: warnings, Stats: stats}, nil
}

// translateAll resolves every batch with bounded parallelism and groups
// the results by block, preserving unit order within each block.
func (p *Pipeline) translateAll(ctx context.Context, batches []document.Batch, opts Options) (map[string][]reflow.ResolvedUnit, error) {
	// Pre-build per-block slots in extraction order; concurrent batches
	// then fill results in place without reordering. A unit ID can occur
	// more than once (identical text in different blocks), so pending
	// slots are consumed FIFO per ID.
	resolved := make(map[string][]reflow.ResolvedUnit)
	type slotRef struct {
		blockID string
		index   int
	}
	slots := make(map[string][]slotRef)
	for _, b := range batches {
		for _, u := range b.Units {
			index := len(resolved[u.BlockID])
			resolved[u.BlockID] = append(resolved[u.BlockID], reflow.ResolvedUnit{Unit: u})
			slots[u.ID] = append(slots[u.ID], slotRef{blockID: u.BlockID, index: index})
		}
	}

	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return document.NewError(document.ErrCancelled, "translate", "run cancelled", err)
			}
			results := p.translator.Translate(gctx, batch)

			mu.Lock()
			defer mu.Unlock()
			for i, u := range batch.Units {
				refs := slots[u.ID]
				if len(refs) == 0 {
					continue
				}
				ref := refs[0]
				slots[u.ID] = refs[1:]
				resolved[ref.blockID][ref.index].Result = results[i]
			}
			completed++
			if opts.Progress != nil {
				opts.Progress(completed, len(batches))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, document.NewError(document.ErrCancelled, "translate", "run cancelled", err)
	}
	return resolved, nil
}

// reflowAll rewrites every block that has resolved units.
func (p *Pipeline) reflowAll(doc *document.Document, resolved map[string][]reflow.ResolvedUnit) []document.Warning {
	var warnings []document.Warning
	for pi := range doc.Pages {
		page := &doc.Pages[pi]
		for bi := range page.Blocks {
			block := &page.Blocks[bi]
			rus, ok := resolved[block.ID]
			if !ok {
				continue
			}
			w, _ := p.reflower.ReflowBlock(doc, page, block, rus)
			warnings = append(warnings, w...)
		}
	}
	return warnings
}
