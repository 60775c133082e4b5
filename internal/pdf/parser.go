// Package pdf parses PDF bytes into the document model and assembles
// translated documents back into PDF bytes. Parsing produces positioned
// text blocks plus opaque graphic blocks; assembly overlays translated
// text on the original bytes so untranslated content survives verbatim.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	pdfcpuapi "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpumodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"pdf-translator/internal/document"
	"pdf-translator/internal/logger"
)

// yTolerance groups rows at nearly equal heights onto one visual line
// when sorting into reading order.
const yTolerance = 5.0

// StructuralParser turns PDF bytes into a Document.
type StructuralParser struct {
	log *zap.Logger
}

// NewStructuralParser creates a parser.
func NewStructuralParser() *StructuralParser {
	return &StructuralParser{log: logger.Get()}
}

// Parse reads data into the document model. Page order and block paint
// order follow the source. A page whose content cannot be decoded is
// recovered as a placeholder block with a warning; a document with no
// decodable structure at all is a fatal error.
func (p *StructuralParser) Parse(data []byte) (*document.Document, []document.Warning, error) {
	if len(data) == 0 {
		return nil, nil, document.NewError(document.ErrMalformedStructure, "parse", "empty input", nil)
	}

	dims, err := p.pageDims(data)
	if err != nil {
		return nil, nil, err
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, document.NewError(document.ErrMalformedStructure, "parse", "failed to open document", err)
	}

	doc := &document.Document{Source: data}
	fontIndex := map[string]int{}
	var warnings []document.Warning
	textChars := 0

	totalPages := reader.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		pg := document.Page{Number: pageNum}
		if pageNum-1 < len(dims) {
			pg.Width = dims[pageNum-1].Width
			pg.Height = dims[pageNum-1].Height
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			warnings = append(warnings, document.Warning{
				Kind:    document.WarnParseRecovered,
				Page:    pageNum,
				Message: "page object unreadable, kept as empty page",
			})
			doc.Pages = append(doc.Pages, pg)
			continue
		}

		// The page's raw content stream travels as an opaque graphic
		// block at the bottom of the paint order.
		if payload := contentBytes(page); len(payload) > 0 {
			pg.Blocks = append(pg.Blocks, document.Block{
				ID:      fmt.Sprintf("p%d_graphics", pageNum),
				Kind:    document.KindGraphic,
				BBox:    document.BBox{Width: pg.Width, Height: pg.Height},
				Graphic: &document.GraphicBlock{Payload: payload},
			})
		}

		blocks, chars, pageWarnings := p.extractTextBlocks(doc, fontIndex, page, pageNum)
		textChars += chars
		warnings = append(warnings, pageWarnings...)
		pg.Blocks = append(pg.Blocks, blocks...)

		for i := range pg.Blocks {
			pg.Blocks[i].ZOrder = i
		}
		pg.FontRefs = pageFontRefs(pg.Blocks)
		doc.Pages = append(doc.Pages, pg)
	}

	if textChars == 0 {
		return nil, warnings, document.NewError(document.ErrNoExtractableText, "parse",
			"no extractable text, likely a scanned document", nil)
	}

	p.log.Info("document parsed",
		zap.Int("pages", len(doc.Pages)),
		zap.Int("fonts", len(doc.Fonts)),
		zap.Int("warnings", len(warnings)))
	return doc, warnings, nil
}

// pageDims validates the file with pdfcpu and returns per-page media box
// dimensions. Encrypted input is a distinct fatal error.
func (p *StructuralParser) pageDims(data []byte) ([]pageDim, error) {
	conf := pdfcpumodel.NewDefaultConfiguration()
	ctx, err := pdfcpuapi.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "encrypt") || strings.Contains(msg, "password") {
			return nil, document.NewError(document.ErrEncryptedContent, "parse",
				"document is encrypted and cannot be processed", err)
		}
		if strings.Contains(msg, "version") {
			return nil, document.NewError(document.ErrUnsupportedVersion, "parse", "unsupported document version", err)
		}
		return nil, document.NewError(document.ErrMalformedStructure, "parse", "document structure unreadable", err)
	}
	if ctx.XRefTable != nil && ctx.XRefTable.Encrypt != nil {
		return nil, document.NewError(document.ErrEncryptedContent, "parse",
			"document is encrypted and cannot be processed", nil)
	}

	raw, err := ctx.PageDims()
	if err != nil {
		return nil, document.NewError(document.ErrMalformedStructure, "parse", "failed to read page dimensions", err)
	}
	dims := make([]pageDim, len(raw))
	for i, d := range raw {
		dims[i] = pageDim{Width: d.Width, Height: d.Height}
	}
	return dims, nil
}

type pageDim struct {
	Width, Height float64
}

// extractTextBlocks merges each extracted row into one text block with
// position bounds and font attribution, filtering operator garbage the
// extractor sometimes surfaces from malformed content streams.
func (p *StructuralParser) extractTextBlocks(doc *document.Document, fontIndex map[string]int, page pdf.Page, pageNum int) ([]document.Block, int, []document.Warning) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return []document.Block{placeholderBlock(pageNum)}, 0, []document.Warning{{
			Kind:    document.WarnParseRecovered,
			Page:    pageNum,
			Message: fmt.Sprintf("content stream could not be decoded: %v", err),
		}}
	}

	var blocks []document.Block
	chars := 0

	for _, row := range rows {
		block, ok := mergeRow(doc, fontIndex, row)
		if !ok {
			continue
		}
		chars += len(block.Text.Runs[0].Text)
		blocks = append(blocks, block)
	}

	// Reading order: top to bottom (PDF Y grows upward), left to right
	// within a line.
	sort.SliceStable(blocks, func(i, j int) bool {
		yi, yj := blocks[i].BBox.Y, blocks[j].BBox.Y
		if diff := yi - yj; diff < yTolerance && diff > -yTolerance {
			return blocks[i].BBox.X < blocks[j].BBox.X
		}
		return yi > yj
	})
	for i := range blocks {
		blocks[i].ID = fmt.Sprintf("p%d_b%d", pageNum, i+1)
	}

	return blocks, chars, nil
}

// mergeRow merges one extracted row into a text block with position
// bounds and font attribution. Rows that hold nothing but operator
// garbage or unprintable noise yield no block. The average font size
// counts only the accepted items so skipped garbage cannot skew it.
func mergeRow(doc *document.Document, fontIndex map[string]int, row *pdf.Row) (document.Block, bool) {
	var sb strings.Builder
	var minX, maxX, minY, maxY, totalSize float64
	var fontName string
	accepted := 0

	for _, t := range row.Content {
		if t.S == "" || isOperatorCode(t.S) {
			continue
		}
		sb.WriteString(t.S)
		if accepted == 0 {
			minX, maxX, minY, maxY = t.X, t.X, t.Y, t.Y
			fontName = t.Font
		} else {
			minX = min(minX, t.X)
			maxX = max(maxX, t.X)
			minY = min(minY, t.Y)
			maxY = max(maxY, t.Y)
		}
		totalSize += t.FontSize
		accepted++
	}

	text := strings.TrimSpace(sb.String())
	if text == "" || isOperatorCode(text) || hasExcessiveNonPrintable(text) {
		return document.Block{}, false
	}

	size := totalSize / float64(accepted)
	if size <= 0 {
		size = 10.0
	}

	family, bold, italic := splitFontName(fontName)
	ref := internFont(doc, fontIndex, family, bold, italic)

	width := maxX - minX + size
	if est := float64(len([]rune(text))) * size * 0.5; est > width {
		width = est
	}
	height := maxY - minY + size*1.2

	return document.Block{
		Kind: document.KindText,
		BBox: document.BBox{X: minX, Y: minY, Width: width, Height: height},
		Text: &document.TextBlock{
			Runs: []document.Run{{
				Text:     text,
				FontRef:  ref,
				FontSize: size,
				IsBold:   bold,
				IsItalic: italic,
			}},
			LineHeight: size * 1.2,
			FontScale:  1.0,
		},
	}, true
}

// placeholderBlock stands in for a page whose content could not be
// decoded, so page count and order still match the source.
func placeholderBlock(pageNum int) document.Block {
	return document.Block{
		ID:   fmt.Sprintf("p%d_placeholder", pageNum),
		Kind: document.KindGraphic,
		Graphic: &document.GraphicBlock{
			Payload: nil,
		},
	}
}

// contentBytes reads the page's decoded content stream(s). A nil return
// means the page carries no content.
func contentBytes(page pdf.Page) []byte {
	contents := page.V.Key("Contents")
	switch contents.Kind() {
	case pdf.Stream:
		return readStream(contents)
	case pdf.Array:
		var buf bytes.Buffer
		for i := 0; i < contents.Len(); i++ {
			buf.Write(readStream(contents.Index(i)))
			buf.WriteByte('\n')
		}
		return buf.Bytes()
	default:
		return nil
	}
}

func readStream(v pdf.Value) []byte {
	rd := v.Reader()
	if rd == nil {
		return nil
	}
	defer rd.Close()
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil
	}
	return data
}

// splitFontName strips the subset prefix ("ABCDEF+Times-Bold") and derives
// style flags from the name.
func splitFontName(name string) (family string, bold, italic bool) {
	family = name
	if i := strings.IndexByte(family, '+'); i == 6 {
		family = family[i+1:]
	}
	lower := strings.ToLower(family)
	bold = strings.Contains(lower, "bold")
	italic = strings.Contains(lower, "italic") || strings.Contains(lower, "oblique")
	if i := strings.IndexAny(family, "-,"); i > 0 {
		family = family[:i]
	}
	if family == "" {
		family = "Helvetica"
	}
	return family, bold, italic
}

// internFont returns the font table index for the family/style pair,
// appending a new entry on first sight.
func internFont(doc *document.Document, index map[string]int, family string, bold, italic bool) int {
	style := ""
	if bold {
		style += "Bold"
	}
	if italic {
		style += "Italic"
	}
	key := strings.ToLower(family) + "|" + style
	if ref, ok := index[key]; ok {
		return ref
	}
	doc.Fonts = append(doc.Fonts, document.Font{Family: family, Style: style, System: true})
	ref := len(doc.Fonts) - 1
	index[key] = ref
	return ref
}

func pageFontRefs(blocks []document.Block) []int {
	seen := map[int]bool{}
	var refs []int
	for _, b := range blocks {
		if b.Kind != document.KindText {
			continue
		}
		for _, run := range b.Text.Runs {
			if run.FontRef >= 0 && !seen[run.FontRef] {
				seen[run.FontRef] = true
				refs = append(refs, run.FontRef)
			}
		}
	}
	sort.Ints(refs)
	return refs
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
