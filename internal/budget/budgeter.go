// Package budget turns the document's text blocks into token-budgeted
// translation batches. Units are coalesced along paragraph boundaries
// (one text block is one candidate unit), counted with the external
// tokenizer, and packed greedily in document order so downstream reflow
// stays deterministic.
package budget

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pdf-translator/internal/document"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/tokenizer"
)

// DefaultStride is the character stride used as a last resort when an
// oversize unit has no sentence boundary to split at.
const DefaultStride = 500

// Options configures a planning run.
type Options struct {
	// MaxTokensPerCall is the external service's declared limit.
	MaxTokensPerCall int
	// PromptOverheadTokens is the fixed prompt cost added to every batch.
	PromptOverheadTokens int
	// Stride is the character stride for forced splits; zero means
	// DefaultStride.
	Stride int
	// Split selects the boundary heuristic for oversize units. Nil means
	// SplitSentences.
	Split SplitPolicy

	SourceLang string
	TargetLang string
	ModelID    string
}

// Budgeter plans translation batches for a document.
type Budgeter struct {
	counter tokenizer.Counter
	log     *zap.Logger
}

// NewBudgeter creates a Budgeter using counter for token estimates.
func NewBudgeter(counter tokenizer.Counter) *Budgeter {
	return &Budgeter{counter: counter, log: logger.Get()}
}

// Plan extracts translation units from doc and packs them into batches.
// Every unit appears in exactly one batch; batch order follows document
// order. A tokenizer failure is fatal. The returned warnings report
// forced splits.
func (b *Budgeter) Plan(ctx context.Context, doc *document.Document, opts Options) ([]document.Batch, []document.Warning, error) {
	if opts.MaxTokensPerCall <= 0 {
		return nil, nil, document.NewError(document.ErrTokenization, "budget", "max tokens per call must be positive", nil)
	}
	if opts.Stride <= 0 {
		opts.Stride = DefaultStride
	}
	if opts.Split == nil {
		opts.Split = SplitSentences
	}

	units, warnings, err := b.extractUnits(ctx, doc, opts)
	if err != nil {
		return nil, nil, err
	}

	batches := packUnits(units, opts)

	b.log.Info("batch plan ready",
		zap.Int("units", len(units)),
		zap.Int("batches", len(batches)),
		zap.Int("maxTokens", opts.MaxTokensPerCall))

	return batches, warnings, nil
}

// extractUnits walks text blocks in document order. A block that fits the
// budget becomes a single unit; an oversize block is split recursively.
func (b *Budgeter) extractUnits(ctx context.Context, doc *document.Document, opts Options) ([]document.TranslationUnit, []document.Warning, error) {
	budget := opts.MaxTokensPerCall - opts.PromptOverheadTokens
	if budget <= 0 {
		return nil, nil, document.NewError(document.ErrTokenization, "budget",
			"prompt overhead consumes the whole token budget", nil)
	}

	var units []document.TranslationUnit
	var warnings []document.Warning

	for pi := range doc.Pages {
		page := &doc.Pages[pi]
		for bi := range page.Blocks {
			block := &page.Blocks[bi]
			if block.Kind != document.KindText {
				continue
			}
			text := block.Text.Text()
			if len(text) == 0 {
				continue
			}

			fragments, forced, err := b.fitFragments(ctx, text, budget, opts)
			if err != nil {
				return nil, nil, err
			}
			if forced {
				warnings = append(warnings, document.Warning{
					Kind:    document.WarnForceSplit,
					BlockID: block.ID,
					Page:    page.Number,
					Message: "no sentence boundary found, unit split at fixed stride",
				})
			}

			for _, frag := range fragments {
				units = append(units, document.TranslationUnit{
					ID:         document.UnitID(frag.text, opts.SourceLang, opts.TargetLang, opts.ModelID),
					Text:       frag.text,
					SourceLang: opts.SourceLang,
					TargetLang: opts.TargetLang,
					ModelID:    opts.ModelID,
					Page:       page.Number,
					BlockID:    block.ID,
					Tokens:     frag.tokens,
					ForceSplit: forced,
				})
			}
		}
	}

	return units, warnings, nil
}

type fragment struct {
	text   string
	tokens int
}

// fitFragments splits text until every fragment fits within budget.
// Sentence-boundary splitting is tried recursively first; when a fragment
// has no boundary left it falls back to the fixed character stride and
// the forced flag is raised.
func (b *Budgeter) fitFragments(ctx context.Context, text string, budget int, opts Options) ([]fragment, bool, error) {
	n, err := b.counter.Count(ctx, text, opts.ModelID)
	if err != nil {
		return nil, false, err
	}
	if n <= budget {
		return []fragment{{text: text, tokens: n}}, false, nil
	}

	left, right, ok := opts.Split(text)
	if !ok {
		frags, err := b.strideFragments(ctx, text, budget, opts)
		if err != nil {
			return nil, false, err
		}
		return frags, true, nil
	}

	leftFrags, leftForced, err := b.fitFragments(ctx, left, budget, opts)
	if err != nil {
		return nil, false, err
	}
	rightFrags, rightForced, err := b.fitFragments(ctx, right, budget, opts)
	if err != nil {
		return nil, false, err
	}
	return append(leftFrags, rightFrags...), leftForced || rightForced, nil
}

// strideFragments is the last-resort split at a fixed rune stride.
func (b *Budgeter) strideFragments(ctx context.Context, text string, budget int, opts Options) ([]fragment, error) {
	runes := []rune(text)
	var frags []fragment
	for start := 0; start < len(runes); start += opts.Stride {
		end := start + opts.Stride
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[start:end])
		n, err := b.counter.Count(ctx, chunk, opts.ModelID)
		if err != nil {
			return nil, err
		}
		if n > budget {
			// A stride chunk that still overflows cannot be batched at all.
			return nil, document.NewError(document.ErrTokenization, "budget",
				fmt.Sprintf("fragment of %d chars exceeds token budget %d", end-start, budget), nil)
		}
		frags = append(frags, fragment{text: chunk, tokens: n})
	}
	return frags, nil
}

// packUnits packs units greedily in order. A new batch starts whenever
// adding the next unit would push the batch over the budget.
func packUnits(units []document.TranslationUnit, opts Options) []document.Batch {
	if len(units) == 0 {
		return nil
	}

	var batches []document.Batch
	current := document.Batch{Index: 0, Tokens: opts.PromptOverheadTokens}

	flush := func() {
		if len(current.Units) > 0 {
			batches = append(batches, current)
			current = document.Batch{Index: len(batches), Tokens: opts.PromptOverheadTokens}
		}
	}

	for _, u := range units {
		if len(current.Units) > 0 && current.Tokens+u.Tokens > opts.MaxTokensPerCall {
			flush()
		}
		current.Units = append(current.Units, u)
		current.Tokens += u.Tokens
	}
	flush()

	return batches
}
