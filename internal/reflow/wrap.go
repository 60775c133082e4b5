package reflow

import (
	"fmt"
	"strings"
	"unicode"

	"pdf-translator/internal/document"
	"pdf-translator/internal/fonts"
)

// segment is a maximal run of characters rendered with one font. A nil
// substitute means the block's own font.
type segment struct {
	text       string
	substitute *fonts.Coverage
}

// substituteGlyphs splits text into font segments. Characters the block
// font cannot render are moved to the first covering fallback chain
// entry; characters no chain entry covers are replaced with the
// replacement marker. When the block font is not loaded at all, coverage
// cannot be checked and the text stays in one segment.
func (r *Reflower) substituteGlyphs(page *document.Page, block *document.Block, primary *fonts.Coverage, text string) ([]segment, []document.Warning) {
	if primary == nil {
		return []segment{{text: text}}, nil
	}

	var (
		segments    []segment
		current     strings.Builder
		currentSub  *fonts.Coverage
		warnings    []document.Warning
		substituted = map[string]bool{}
		missing     int
	)

	flush := func() {
		if current.Len() == 0 {
			return
		}
		segments = append(segments, segment{text: current.String(), substitute: currentSub})
		current.Reset()
	}

	for _, ch := range text {
		var sub *fonts.Coverage
		switch {
		case primary.Supports(ch) || unicode.IsSpace(ch):
			// keep in the block font
		default:
			cov, ok := r.fonts.Substitute(ch, r.opts.FallbackChain)
			if ok {
				sub = cov
				if !substituted[cov.Family] {
					substituted[cov.Family] = true
					warnings = append(warnings, document.Warning{
						Kind:    document.WarnFontSubstituted,
						BlockID: block.ID,
						Page:    page.Number,
						Message: fmt.Sprintf("characters rendered with fallback font %q", cov.Family),
					})
				}
			} else {
				ch = replacementMarker
				missing++
			}
		}

		if sub != currentSub {
			flush()
			currentSub = sub
		}
		current.WriteRune(ch)
	}
	flush()

	if missing > 0 {
		warnings = append(warnings, document.Warning{
			Kind:    document.WarnGlyphFallback,
			BlockID: block.ID,
			Page:    page.Number,
			Message: fmt.Sprintf("%d character(s) not covered by any fallback font", missing),
		})
	}

	return segments, warnings
}

// segmentText joins the segments back into the text to lay out. After
// substitution this is the text that will actually be rendered, with
// unrenderable characters already replaced.
func segmentText(segments []segment) string {
	var sb strings.Builder
	for _, s := range segments {
		sb.WriteString(s.text)
	}
	return sb.String()
}

// wrapText breaks text into lines no wider than maxWidth. Latin text
// breaks at spaces; CJK text breaks between any two characters. A single
// word wider than the box is hard-split so wrapping always terminates.
func wrapText(text string, maxWidth, size float64, measure func(string) float64) []string {
	if maxWidth <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		if paragraph == "" {
			lines = append(lines, "")
			continue
		}
		lines = append(lines, wrapParagraph(paragraph, maxWidth, measure)...)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

func wrapParagraph(text string, maxWidth float64, measure func(string) float64) []string {
	var lines []string
	var line strings.Builder

	for _, tok := range tokenize(text) {
		if line.Len() == 0 {
			if tok == " " {
				continue
			}
			line.WriteString(tok)
			continue
		}
		if measure(line.String()+tok) <= maxWidth {
			line.WriteString(tok)
			continue
		}
		lines = append(lines, strings.TrimRight(line.String(), " "))
		line.Reset()
		if tok != " " {
			line.WriteString(tok)
		}
	}
	if line.Len() > 0 {
		lines = append(lines, strings.TrimRight(line.String(), " "))
	}

	// Hard-split any line still wider than the box (a single long word).
	var out []string
	for _, l := range lines {
		out = append(out, hardSplit(l, maxWidth, measure)...)
	}
	return out
}

// tokenize yields break opportunities: space-delimited words for Latin
// text and single characters for CJK, which has no inter-word spaces.
func tokenize(text string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case r == ' ':
			flush()
			tokens = append(tokens, " ")
		case isBreakableRune(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func isBreakableRune(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

func hardSplit(line string, maxWidth float64, measure func(string) float64) []string {
	if measure(line) <= maxWidth {
		return []string{line}
	}
	var out []string
	var part strings.Builder
	for _, r := range line {
		if part.Len() > 0 && measure(part.String()+string(r)) > maxWidth {
			out = append(out, part.String())
			part.Reset()
		}
		part.WriteRune(r)
	}
	if part.Len() > 0 {
		out = append(out, part.String())
	}
	return out
}

// truncateWithEllipsis keeps the first maxLines lines and marks the last
// kept line as truncated.
func truncateWithEllipsis(lines []string, maxLines int) []string {
	kept := append([]string(nil), lines[:maxLines]...)
	last := kept[maxLines-1]
	runes := []rune(last)
	if len(runes) > 1 {
		runes = runes[:len(runes)-1]
	}
	kept[maxLines-1] = string(runes) + ellipsis
	return kept
}
