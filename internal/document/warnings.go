package document

// WarningKind tags non-fatal conditions reported alongside successful
// output.
type WarningKind string

const (
	WarnForceSplit      WarningKind = "force_split"
	WarnLayoutOverflow  WarningKind = "layout_overflow"
	WarnGlyphFallback   WarningKind = "glyph_fallback"
	WarnFontSubstituted WarningKind = "font_substituted"
	WarnParseRecovered  WarningKind = "parse_recovered"
	WarnUnitFailed      WarningKind = "unit_failed"
)

// Warning is a non-fatal diagnostic tied to a block or page.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	BlockID string      `json:"block_id,omitempty"`
	Page    int         `json:"page,omitempty"`
	Message string      `json:"message"`
}
