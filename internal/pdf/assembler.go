package pdf

import (
	"bytes"
	"fmt"
	"strings"

	pdfcpuapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/color"
	pdfcpumodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"

	"pdf-translator/internal/document"
	"pdf-translator/internal/logger"
)

// AssemblerOptions configures output generation.
type AssemblerOptions struct {
	// MaxOutputBytes bounds the serialized document size; 0 disables the
	// check.
	MaxOutputBytes int64
	// UserFontFiles are font files to install for stamping before the
	// first assembly. Install failure is fatal.
	UserFontFiles []string
}

// DocumentAssembler serializes a translated document back to PDF bytes.
// Translated text is stamped over the original bytes: graphics and
// untranslated content are never re-encoded, so they survive untouched.
type DocumentAssembler struct {
	opts AssemblerOptions
	conf *pdfcpumodel.Configuration
	log  *zap.Logger
}

// NewDocumentAssembler creates an assembler, installing any configured
// user fonts.
func NewDocumentAssembler(opts AssemblerOptions) (*DocumentAssembler, error) {
	if len(opts.UserFontFiles) > 0 {
		if err := pdfcpuapi.InstallFonts(opts.UserFontFiles); err != nil {
			return nil, document.NewError(document.ErrFontEmbeddingFailed, "assemble",
				"failed to install stamp fonts", err)
		}
	}
	return &DocumentAssembler{
		opts: opts,
		conf: pdfcpumodel.NewDefaultConfiguration(),
		log:  logger.Get(),
	}, nil
}

// Assemble produces the output PDF. When no block changed, the original
// input bytes are returned verbatim, byte for byte. On any error no
// partial output is returned.
func (a *DocumentAssembler) Assemble(doc *document.Document) ([]byte, error) {
	changed := changedBlocks(doc)
	if len(changed) == 0 {
		out := make([]byte, len(doc.Source))
		copy(out, doc.Source)
		return out, nil
	}

	current := doc.Source
	for _, cb := range changed {
		next, err := a.stampBlock(current, doc, cb)
		if err != nil {
			return nil, err
		}
		current = next
	}

	if err := pdfcpuapi.Validate(bytes.NewReader(current), a.conf); err != nil {
		return nil, document.NewError(document.ErrMalformedStructure, "assemble",
			"output failed validation", err)
	}
	if a.opts.MaxOutputBytes > 0 && int64(len(current)) > a.opts.MaxOutputBytes {
		return nil, document.NewError(document.ErrSerializationLimitExceeded, "assemble",
			fmt.Sprintf("output size %d exceeds limit %d", len(current), a.opts.MaxOutputBytes), nil)
	}

	a.log.Info("document assembled",
		zap.Int("changedBlocks", len(changed)),
		zap.Int("bytes", len(current)))
	return current, nil
}

type changedBlock struct {
	page  int
	block *document.Block
}

// changedBlocks lists the text blocks the reflower rewrote, in document
// order. The reflower populates Lines only on blocks whose visible text
// changed.
func changedBlocks(doc *document.Document) []changedBlock {
	var out []changedBlock
	for pi := range doc.Pages {
		page := &doc.Pages[pi]
		for bi := range page.Blocks {
			b := &page.Blocks[bi]
			if b.Kind == document.KindText && b.Text != nil && b.Text.Lines != nil {
				out = append(out, changedBlock{page: page.Number, block: b})
			}
		}
	}
	return out
}

// stampBlock whites out the block's original region and stamps the
// reflowed text over it, anchored at the block's PDF-space origin.
func (a *DocumentAssembler) stampBlock(input []byte, doc *document.Document, cb changedBlock) ([]byte, error) {
	b := cb.block
	size := stampFontSize(b)

	bg := color.White
	wm := &pdfcpumodel.Watermark{
		Mode:           pdfcpumodel.WMText,
		TextString:     strings.Join(b.Text.Lines, "\n"),
		FontName:       a.stampFontName(doc, b),
		FontSize:       size,
		ScaledFontSize: size,
		Color:          color.Black,
		BgColor:        &bg,
		Opacity:        1.0,
		OnTop:          true,
		Update:         false,
		Pos:            types.BottomLeft,
		Dx:             b.BBox.X,
		Dy:             b.BBox.Y,
		Width:          int(b.BBox.Width),
		Height:         int(b.BBox.Height),
	}

	var out bytes.Buffer
	pages := []string{fmt.Sprintf("%d", cb.page)}
	if err := pdfcpuapi.AddWatermarks(bytes.NewReader(input), &out, pages, wm, a.conf); err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "font") {
			return nil, document.NewPageError(document.ErrFontEmbeddingFailed, "assemble",
				fmt.Sprintf("stamping block %s", b.ID), cb.page, err)
		}
		return nil, document.NewPageError(document.ErrMalformedStructure, "assemble",
			fmt.Sprintf("stamping block %s", b.ID), cb.page, err)
	}
	return out.Bytes(), nil
}

func stampFontSize(b *document.Block) int {
	base := 10.0
	if len(b.Text.Runs) > 0 && b.Text.Runs[0].FontSize > 0 {
		base = b.Text.Runs[0].FontSize
	}
	scale := b.Text.FontScale
	if scale <= 0 {
		scale = 1.0
	}
	size := int(base * scale)
	if size < 1 {
		size = 1
	}
	return size
}

// stampFontName maps the block's font to one the stamper can render:
// an installed user font when the family matches, else the closest core
// font.
func (a *DocumentAssembler) stampFontName(doc *document.Document, b *document.Block) string {
	family := ""
	bold, italic := false, false
	if len(b.Text.Runs) > 0 {
		run := b.Text.Runs[0]
		bold, italic = run.IsBold, run.IsItalic
		if run.FontRef >= 0 && run.FontRef < len(doc.Fonts) {
			family = doc.Fonts[run.FontRef].Family
		}
	}
	return coreFontName(family, bold, italic)
}

// coreFontName picks from the standard 14 fonts every viewer carries.
func coreFontName(family string, bold, italic bool) string {
	lower := strings.ToLower(family)
	switch {
	case strings.Contains(lower, "times") || strings.Contains(lower, "serif"):
		switch {
		case bold && italic:
			return "Times-BoldItalic"
		case bold:
			return "Times-Bold"
		case italic:
			return "Times-Italic"
		default:
			return "Times-Roman"
		}
	case strings.Contains(lower, "courier") || strings.Contains(lower, "mono"):
		switch {
		case bold && italic:
			return "Courier-BoldOblique"
		case bold:
			return "Courier-Bold"
		case italic:
			return "Courier-Oblique"
		default:
			return "Courier"
		}
	default:
		switch {
		case bold && italic:
			return "Helvetica-BoldOblique"
		case bold:
			return "Helvetica-Bold"
		case italic:
			return "Helvetica-Oblique"
		default:
			return "Helvetica"
		}
	}
}
