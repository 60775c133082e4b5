package document

import (
	"strings"
	"testing"
)

func TestUnitIDConsistency(t *testing.T) {
	testCases := []struct {
		name string
		text string
	}{
		{"simple text", "Hello, World!"},
		{"chinese text", "你好，世界！"},
		{"empty string", ""},
		{"special characters", "!@#$%^&*()"},
		{"long text", strings.Repeat("lorem ipsum ", 200)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id1 := UnitID(tc.text, "English", "Chinese", "gpt-4o-mini")
			id2 := UnitID(tc.text, "English", "Chinese", "gpt-4o-mini")
			if id1 != id2 {
				t.Errorf("UnitID not stable for %q: %s vs %s", tc.text, id1, id2)
			}
			if len(id1) != 64 {
				t.Errorf("expected 64 hex chars, got %d", len(id1))
			}
		})
	}
}

func TestUnitIDNormalizesWhitespace(t *testing.T) {
	base := UnitID("Hello world", "English", "Chinese", "m")

	equivalents := []string{
		"Hello  world",
		" Hello world ",
		"Hello\tworld",
		"Hello\n world",
	}
	for _, text := range equivalents {
		if got := UnitID(text, "English", "Chinese", "m"); got != base {
			t.Errorf("UnitID(%q) = %s, want %s", text, got, base)
		}
	}

	if UnitID("Helloworld", "English", "Chinese", "m") == base {
		t.Error("whitespace removal must change the identifier")
	}
}

func TestUnitIDNormalizesUnicodeForm(t *testing.T) {
	composed := UnitID("café", "English", "Chinese", "m")
	decomposed := UnitID("cafe\u0301", "English", "Chinese", "m")
	if composed != decomposed {
		t.Error("composed and decomposed forms must hash alike")
	}
	if UnitID("cafe", "English", "Chinese", "m") == composed {
		t.Error("accent removal must change the identifier")
	}
}

func TestUnitIDDependsOnLangPairAndModel(t *testing.T) {
	base := UnitID("Hello", "English", "Chinese", "m1")

	variants := []struct {
		name                          string
		source, target, model         string
	}{
		{"different source", "French", "Chinese", "m1"},
		{"different target", "English", "German", "m1"},
		{"different model", "English", "Chinese", "m2"},
		{"swapped langs", "Chinese", "English", "m1"},
	}
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			if UnitID("Hello", v.source, v.target, v.model) == base {
				t.Error("identifier must change with language pair and model")
			}
		})
	}
}

func TestTextBlocksDocumentOrder(t *testing.T) {
	doc := &Document{
		Pages: []Page{
			{Number: 1, Blocks: []Block{
				{ID: "g1", Kind: KindGraphic, Graphic: &GraphicBlock{}},
				{ID: "t1", Kind: KindText, Text: &TextBlock{}},
				{ID: "t2", Kind: KindText, Text: &TextBlock{}},
			}},
			{Number: 2, Blocks: []Block{
				{ID: "t3", Kind: KindText, Text: &TextBlock{}},
			}},
		},
	}

	blocks := doc.TextBlocks()
	if len(blocks) != 3 {
		t.Fatalf("expected 3 text blocks, got %d", len(blocks))
	}
	for i, want := range []string{"t1", "t2", "t3"} {
		if blocks[i].ID != want {
			t.Errorf("blocks[%d].ID = %s, want %s", i, blocks[i].ID, want)
		}
	}
}

func TestTextBlockText(t *testing.T) {
	tb := &TextBlock{Runs: []Run{
		{Text: "Hello "},
		{Text: "world"},
	}}
	if got := tb.Text(); got != "Hello world" {
		t.Errorf("Text() = %q, want %q", got, "Hello world")
	}
}

func TestTranslatedUnitSucceeded(t *testing.T) {
	ok := TranslatedUnit{Status: UnitTranslated, Text: "x"}
	if !ok.Succeeded() {
		t.Error("translated unit must report success")
	}
	failed := TranslatedUnit{Status: UnitFailed, Reason: ReasonRejected}
	if failed.Succeeded() {
		t.Error("failed unit must not report success")
	}
}
