// Package document defines the in-memory model of a parsed PDF: pages,
// positioned blocks, the document font table, and the units of text that
// travel through the translation pipeline.
package document

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// BBox is an axis-aligned bounding box in page units. The origin follows
// PDF conventions (bottom-left of the page).
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BlockKind discriminates the Block union.
type BlockKind string

const (
	KindText    BlockKind = "text"
	KindGraphic BlockKind = "graphic"
)

// Run is a contiguous span of text inside a TextBlock sharing one font and
// style. FontRef indexes the document font table; -1 means unresolved.
type Run struct {
	Text     string  `json:"text"`
	FontRef  int     `json:"font_ref"`
	FontSize float64 `json:"font_size"`
	IsBold   bool    `json:"is_bold"`
	IsItalic bool    `json:"is_italic"`
}

// TextBlock holds the runs and line metrics of a text-bearing block.
// Lines is populated by the reflower with the final wrapped line texts;
// it is empty until the block has been reflowed.
type TextBlock struct {
	Runs       []Run    `json:"runs"`
	Lines      []string `json:"lines,omitempty"`
	LineHeight float64  `json:"line_height"`
	FontScale  float64  `json:"font_scale"` // 1.0 unless the reflower shrank the text
}

// Text concatenates the block's run texts in reading order.
func (t *TextBlock) Text() string {
	var sb strings.Builder
	for _, r := range t.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// GraphicBlock is an opaque payload carried through the pipeline verbatim.
// The pipeline never inspects or mutates it.
type GraphicBlock struct {
	Payload []byte `json:"payload"`
}

// Block is a positioned content element on a page. Exactly one of Text or
// Graphic is set, according to Kind. ZOrder is the paint order within the
// page and must survive the pipeline unchanged.
type Block struct {
	ID      string    `json:"id"`
	Kind    BlockKind `json:"kind"`
	BBox    BBox      `json:"bbox"`
	ZOrder  int       `json:"z_order"`
	Text    *TextBlock    `json:"text,omitempty"`
	Graphic *GraphicBlock `json:"graphic,omitempty"`
}

// Font identifies a font used by the document. Program holds the embedded
// font file bytes when available; an empty Program with System true marks
// a system font resolved by name.
type Font struct {
	Family string `json:"family"`
	Style  string `json:"style"`
	System bool   `json:"system"`
	Program []byte `json:"-"`
}

// Page is an ordered sequence of blocks plus the page geometry. Block
// order equals paint order; Blocks[i].ZOrder == i after parsing.
type Page struct {
	Number   int     `json:"number"` // 1-based, equals source order
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Blocks   []Block `json:"blocks"`
	FontRefs []int   `json:"font_refs"` // indices into Document.Fonts used on this page
}

// Document is the root of the model. Source keeps the original input
// bytes and is never mutated; pages appear in source order. Fonts is the
// document-owned font table; blocks reference entries by index.
type Document struct {
	Pages  []Page `json:"pages"`
	Fonts  []Font `json:"fonts"`
	Source []byte `json:"-"`
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.Pages) }

// TextBlocks returns pointers to every text block in document order.
func (d *Document) TextBlocks() []*Block {
	var out []*Block
	for pi := range d.Pages {
		for bi := range d.Pages[pi].Blocks {
			b := &d.Pages[pi].Blocks[bi]
			if b.Kind == KindText {
				out = append(out, b)
			}
		}
	}
	return out
}

// UnitStatus is the outcome of translating one unit.
type UnitStatus string

const (
	UnitTranslated UnitStatus = "translated"
	UnitFailed     UnitStatus = "failed"
)

// FailureReason classifies unit-level translation failures. These are
// recoverable: the reflower applies the configured fallback policy.
type FailureReason string

const (
	ReasonNone               FailureReason = ""
	ReasonServiceUnavailable FailureReason = "service_unavailable"
	ReasonRejected           FailureReason = "rejected"
	ReasonCancelled          FailureReason = "cancelled"
)

// TranslationUnit is a contiguous extraction of source text destined for
// one translation call. Units never span a page break.
type TranslationUnit struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	ModelID    string `json:"model_id"`
	Page       int    `json:"page"`
	BlockID    string `json:"block_id"`
	Tokens     int    `json:"tokens"`
	ForceSplit bool   `json:"force_split"`
}

// UnitID derives the stable cache identifier for a unit: the SHA-256 of
// the normalized text plus language pair plus model identity. Identical
// inputs yield identical identifiers across runs and processes. Text is
// NFC-normalized first so composed and decomposed forms of the same
// character hash alike.
func UnitID(text, sourceLang, targetLang, modelID string) string {
	normalized := strings.Join(strings.Fields(norm.NFC.String(text)), " ")
	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(sourceLang))
	h.Write([]byte{0})
	h.Write([]byte(targetLang))
	h.Write([]byte{0})
	h.Write([]byte(modelID))
	return hex.EncodeToString(h.Sum(nil))
}

// Batch is an ordered group of units whose combined estimated tokens plus
// the fixed prompt overhead stay within the external service's limit.
type Batch struct {
	Index  int               `json:"index"`
	Units  []TranslationUnit `json:"units"`
	Tokens int               `json:"tokens"`
}

// TranslatedUnit carries the result for one unit. Failed units keep their
// reason so the reflower can apply the fallback policy per unit.
type TranslatedUnit struct {
	UnitID string        `json:"unit_id"`
	Text   string        `json:"text"`
	Status UnitStatus    `json:"status"`
	Reason FailureReason `json:"reason,omitempty"`
}

// Succeeded reports whether the unit translated successfully.
func (t TranslatedUnit) Succeeded() bool { return t.Status == UnitTranslated }
