// Package reflow fits translated text back into the original block
// geometry. Translated text rarely matches the source length, so each
// block is re-wrapped inside its original bounding box, the font scale is
// reduced in bounded steps when the box is too small, and characters the
// block's font cannot render are moved to a fallback font. Block origin
// and z-order are never touched; only the internal flow changes.
package reflow

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pdf-translator/internal/document"
	"pdf-translator/internal/fonts"
	"pdf-translator/internal/logger"
)

// FallbackPolicy decides what a failed unit renders as.
type FallbackPolicy string

const (
	// KeepSource retains the original text for failed units (default).
	KeepSource FallbackPolicy = "keep_source"
	// Omit renders failed units empty.
	Omit FallbackPolicy = "omit"
)

const (
	// DefaultMinScale is the floor for font shrinking.
	DefaultMinScale = 0.6
	// DefaultScaleStep is the shrink increment.
	DefaultScaleStep = 0.05
	// lineSpacing relates line height to font size.
	lineSpacing = 1.2
	// ellipsis marks truncated text.
	ellipsis = "…"
	// replacementMarker renders characters no fallback font covers.
	replacementMarker = '�'
)

// Options configures the reflower.
type Options struct {
	Policy              FallbackPolicy
	FallbackChain       []string
	AllowVerticalGrowth bool
	MinScale            float64
	ScaleStep           float64
}

// ResolvedUnit pairs a translation unit with its outcome.
type ResolvedUnit struct {
	Unit   document.TranslationUnit
	Result document.TranslatedUnit
}

// FontSource resolves loaded fonts for coverage checks and fallback
// substitution. *fonts.Provider implements it.
type FontSource interface {
	Coverage(family string) (*fonts.Coverage, bool)
	Substitute(r rune, chain []string) (*fonts.Coverage, bool)
}

// Reflower rewrites block text and geometry in place.
type Reflower struct {
	fonts FontSource
	opts  Options
	log   *zap.Logger
}

// NewReflower creates a Reflower. Zero option fields get defaults.
func NewReflower(provider FontSource, opts Options) *Reflower {
	if opts.Policy == "" {
		opts.Policy = KeepSource
	}
	if opts.MinScale <= 0 || opts.MinScale > 1 {
		opts.MinScale = DefaultMinScale
	}
	if opts.ScaleStep <= 0 {
		opts.ScaleStep = DefaultScaleStep
	}
	return &Reflower{fonts: provider, opts: opts, log: logger.Get()}
}

// ReflowBlock applies the resolved units to one text block. The fallback
// policy is applied per unit, so one failed unit never discards the
// translations of its neighbors. Returns the warnings produced and
// whether the block's visible text changed.
func (r *Reflower) ReflowBlock(doc *document.Document, page *document.Page, block *document.Block, resolved []ResolvedUnit) ([]document.Warning, bool) {
	if block.Kind != document.KindText || len(resolved) == 0 {
		return nil, false
	}

	var warnings []document.Warning
	var pieces []string
	changed := false

	for _, ru := range resolved {
		if ru.Result.Succeeded() {
			pieces = append(pieces, ru.Result.Text)
			changed = true
			continue
		}
		warnings = append(warnings, document.Warning{
			Kind:    document.WarnUnitFailed,
			BlockID: block.ID,
			Page:    page.Number,
			Message: fmt.Sprintf("unit %s failed (%s), policy %s applied", shortID(ru.Unit.ID), ru.Result.Reason, r.opts.Policy),
		})
		switch r.opts.Policy {
		case Omit:
			changed = true
		default: // KeepSource
			pieces = append(pieces, ru.Unit.Text)
		}
	}

	if !changed {
		// Every unit failed under KeepSource: the block keeps its
		// original runs untouched.
		return warnings, false
	}

	text := strings.Join(pieces, " ")
	warnings = append(warnings, r.layout(doc, page, block, text)...)
	return warnings, true
}

// layout performs glyph substitution, wrapping and scaling for the final
// block text, writing runs and metrics back into the block.
func (r *Reflower) layout(doc *document.Document, page *document.Page, block *document.Block, text string) []document.Warning {
	var warnings []document.Warning

	baseSize := blockFontSize(block)
	primary := r.primaryCoverage(doc, block)

	segments, segWarnings := r.substituteGlyphs(page, block, primary, text)
	warnings = append(warnings, segWarnings...)

	// Lay out the post-substitution text: it is what the assembler will
	// stamp, and it must match the runs built from the segments.
	rendered := segmentText(segments)

	measure := func(s string, size float64) float64 {
		if primary != nil {
			return primary.StringWidth(s, size)
		}
		return fonts.EstimateStringWidth(s, size)
	}

	scale := 1.0
	boxWidth := block.BBox.Width
	var lines []string
	for {
		size := baseSize * scale
		lines = wrapText(rendered, boxWidth, size, func(s string) float64 { return measure(s, size) })
		required := float64(len(lines)) * size * lineSpacing

		if required <= block.BBox.Height || r.opts.AllowVerticalGrowth {
			if r.opts.AllowVerticalGrowth && required > block.BBox.Height {
				block.BBox.Height = required
			}
			break
		}
		next := scale - r.opts.ScaleStep
		if next < r.opts.MinScale {
			scale = r.opts.MinScale
			size = baseSize * scale
			lines = wrapText(rendered, boxWidth, size, func(s string) float64 { return measure(s, size) })
			maxLines := int(block.BBox.Height / (size * lineSpacing))
			if maxLines < 1 {
				maxLines = 1
			}
			if len(lines) > maxLines {
				lines = truncateWithEllipsis(lines, maxLines)
				warnings = append(warnings, document.Warning{
					Kind:    document.WarnLayoutOverflow,
					BlockID: block.ID,
					Page:    page.Number,
					Message: fmt.Sprintf("text truncated at %.0f%% scale", scale*100),
				})
			}
			break
		}
		scale = next
	}

	r.writeRuns(doc, block, segments, lines, baseSize, scale)
	return warnings
}

// writeRuns replaces the block's runs with the laid-out text, preserving
// run-level font assignment from the substitution pass. Origin and
// z-order are untouched.
func (r *Reflower) writeRuns(doc *document.Document, block *document.Block, segments []segment, lines []string, baseSize, scale float64) {
	origRef := -1
	bold, italic := false, false
	if len(block.Text.Runs) > 0 {
		origRef = block.Text.Runs[0].FontRef
		bold = block.Text.Runs[0].IsBold
		italic = block.Text.Runs[0].IsItalic
	}

	var runs []document.Run
	for _, seg := range segments {
		ref := origRef
		if seg.substitute != nil {
			ref = ensureFont(doc, seg.substitute)
		}
		runs = append(runs, document.Run{
			Text:     seg.text,
			FontRef:  ref,
			FontSize: baseSize,
			IsBold:   bold,
			IsItalic: italic,
		})
	}
	if len(runs) == 0 {
		runs = []document.Run{{Text: "", FontRef: origRef, FontSize: baseSize, IsBold: bold, IsItalic: italic}}
	}

	block.Text.Runs = runs
	block.Text.Lines = lines
	block.Text.FontScale = scale
	block.Text.LineHeight = baseSize * scale * lineSpacing
}

// ensureFont returns the font table index for cov, appending it when new.
func ensureFont(doc *document.Document, cov *fonts.Coverage) int {
	for i, f := range doc.Fonts {
		if strings.EqualFold(f.Family, cov.Family) {
			return i
		}
	}
	doc.Fonts = append(doc.Fonts, document.Font{
		Family:  cov.Family,
		Program: cov.Program(),
	})
	return len(doc.Fonts) - 1
}

// primaryCoverage resolves the block's first run font in the provider;
// nil when the family is not loaded (widths are then estimated).
func (r *Reflower) primaryCoverage(doc *document.Document, block *document.Block) *fonts.Coverage {
	if len(block.Text.Runs) == 0 {
		return nil
	}
	ref := block.Text.Runs[0].FontRef
	if ref < 0 || ref >= len(doc.Fonts) {
		return nil
	}
	cov, ok := r.fonts.Coverage(doc.Fonts[ref].Family)
	if !ok {
		return nil
	}
	return cov
}

func blockFontSize(block *document.Block) float64 {
	if len(block.Text.Runs) > 0 && block.Text.Runs[0].FontSize > 0 {
		return block.Text.Runs[0].FontSize
	}
	return 10.0
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
