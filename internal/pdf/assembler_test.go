package pdf

import (
	"bytes"
	"testing"

	"pdf-translator/internal/document"
)

func unchangedDoc(source []byte) *document.Document {
	return &document.Document{
		Source: source,
		Pages: []document.Page{{
			Number: 1,
			Width:  612,
			Height: 792,
			Blocks: []document.Block{
				{
					ID:      "p1_graphics",
					Kind:    document.KindGraphic,
					Graphic: &document.GraphicBlock{Payload: []byte("BT ET")},
				},
				{
					ID:   "p1_b1",
					Kind: document.KindText,
					BBox: document.BBox{X: 72, Y: 700, Width: 400, Height: 14},
					Text: &document.TextBlock{
						Runs:      []document.Run{{Text: "Hello world", FontRef: 0, FontSize: 10}},
						FontScale: 1.0,
					},
				},
			},
		}},
		Fonts: []document.Font{{Family: "Helvetica", System: true}},
	}
}

func TestAssembleUnchangedDocumentReturnsSourceVerbatim(t *testing.T) {
	source := []byte("%PDF-1.7 original bytes, never reserialized on no-op")
	a, err := NewDocumentAssembler(AssemblerOptions{})
	if err != nil {
		t.Fatalf("NewDocumentAssembler: %v", err)
	}

	out, err := a.Assemble(unchangedDoc(source))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bytes.Equal(out, source) {
		t.Error("unchanged document must round-trip byte-identically")
	}
	// The returned slice is a copy: mutating it must not touch the source.
	out[0] = 'X'
	if source[0] == 'X' {
		t.Error("Assemble must not alias the source bytes")
	}
}

func TestChangedBlocksListsOnlyReflowedText(t *testing.T) {
	doc := unchangedDoc([]byte("%PDF"))
	if got := changedBlocks(doc); len(got) != 0 {
		t.Fatalf("no block reflowed, got %d changed", len(got))
	}

	// Reflowed blocks carry their wrapped lines.
	doc.Pages[0].Blocks[1].Text.Lines = []string{"Bonjour le monde"}
	got := changedBlocks(doc)
	if len(got) != 1 {
		t.Fatalf("expected 1 changed block, got %d", len(got))
	}
	if got[0].block.ID != "p1_b1" || got[0].page != 1 {
		t.Errorf("changed block = %s page %d", got[0].block.ID, got[0].page)
	}
}

func TestStampFontSizeAppliesScale(t *testing.T) {
	testCases := []struct {
		name     string
		fontSize float64
		scale    float64
		want     int
	}{
		{"full size", 10, 1.0, 10},
		{"scaled to floor", 10, 0.6, 6},
		{"zero scale defaults", 12, 0, 12},
		{"never below one", 1, 0.6, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := &document.Block{Text: &document.TextBlock{
				Runs:      []document.Run{{FontSize: tc.fontSize}},
				FontScale: tc.scale,
			}}
			if got := stampFontSize(b); got != tc.want {
				t.Errorf("stampFontSize = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCoreFontName(t *testing.T) {
	testCases := []struct {
		family       string
		bold, italic bool
		want         string
	}{
		{"Times", false, false, "Times-Roman"},
		{"Times New Roman", true, false, "Times-Bold"},
		{"Nimbus Serif", false, true, "Times-Italic"},
		{"Courier", false, false, "Courier"},
		{"DejaVu Sans Mono", true, false, "Courier-Bold"},
		{"Arial", false, false, "Helvetica"},
		{"Arial", true, true, "Helvetica-BoldOblique"},
		{"", false, false, "Helvetica"},
	}
	for _, tc := range testCases {
		if got := coreFontName(tc.family, tc.bold, tc.italic); got != tc.want {
			t.Errorf("coreFontName(%q, %v, %v) = %q, want %q", tc.family, tc.bold, tc.italic, got, tc.want)
		}
	}
}
