package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pdf-translator/internal/document"
	"pdf-translator/internal/fonts"
	"pdf-translator/internal/reflow"
)

// fakeTranslator translates every unit to "T:"+text, optionally failing
// selected texts, with a random delay to shake out ordering bugs.
type fakeTranslator struct {
	calls atomic.Int64
	fail  map[string]document.FailureReason
}

func (f *fakeTranslator) Translate(ctx context.Context, batch document.Batch) []document.TranslatedUnit {
	f.calls.Add(1)
	time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)

	out := make([]document.TranslatedUnit, len(batch.Units))
	for i, u := range batch.Units {
		if reason, ok := f.fail[u.Text]; ok {
			out[i] = document.TranslatedUnit{UnitID: u.ID, Status: document.UnitFailed, Reason: reason}
			continue
		}
		out[i] = document.TranslatedUnit{UnitID: u.ID, Text: "T:" + u.Text, Status: document.UnitTranslated}
	}
	return out
}

func testPipeline(tr Translator) *Pipeline {
	reflower := reflow.NewReflower(fonts.NewProvider(""), reflow.Options{})
	return New(nil, nil, tr, reflower, nil)
}

func makeBatches(unitsPerBatch, batchCount int) []document.Batch {
	var batches []document.Batch
	n := 0
	for b := 0; b < batchCount; b++ {
		batch := document.Batch{Index: b}
		for u := 0; u < unitsPerBatch; u++ {
			n++
			text := fmt.Sprintf("unit %03d", n)
			batch.Units = append(batch.Units, document.TranslationUnit{
				ID:      document.UnitID(text, "en", "fr", "m"),
				Text:    text,
				BlockID: fmt.Sprintf("block%d", b),
				Page:    1,
			})
		}
		batches = append(batches, batch)
	}
	return batches
}

func TestTranslateAllPreservesUnitOrderPerBlock(t *testing.T) {
	tr := &fakeTranslator{}
	p := testPipeline(tr)

	batches := makeBatches(4, 6)
	resolved, err := p.translateAll(context.Background(), batches, Options{Parallelism: 4})
	if err != nil {
		t.Fatalf("translateAll: %v", err)
	}

	if len(resolved) != 6 {
		t.Fatalf("expected 6 blocks, got %d", len(resolved))
	}
	for blockID, rus := range resolved {
		if len(rus) != 4 {
			t.Fatalf("block %s has %d units, want 4", blockID, len(rus))
		}
		for i, ru := range rus {
			if !ru.Result.Succeeded() {
				t.Fatalf("unit %s failed unexpectedly", ru.Unit.ID)
			}
			if ru.Result.Text != "T:"+ru.Unit.Text {
				t.Errorf("result text %q does not match unit %q", ru.Result.Text, ru.Unit.Text)
			}
			if i > 0 && rus[i-1].Unit.Text > ru.Unit.Text {
				t.Errorf("block %s units out of extraction order: %q before %q",
					blockID, rus[i-1].Unit.Text, ru.Unit.Text)
			}
		}
	}
	if got := tr.calls.Load(); got != 6 {
		t.Errorf("expected 6 batch calls, got %d", got)
	}
}

func TestTranslateAllIsolatesBatchFailures(t *testing.T) {
	tr := &fakeTranslator{fail: map[string]document.FailureReason{
		"unit 001": document.ReasonServiceUnavailable,
	}}
	p := testPipeline(tr)

	batches := makeBatches(2, 2)
	resolved, err := p.translateAll(context.Background(), batches, Options{Parallelism: 2})
	if err != nil {
		t.Fatalf("translateAll: %v", err)
	}

	failed, succeeded := 0, 0
	for _, rus := range resolved {
		for _, ru := range rus {
			if ru.Result.Succeeded() {
				succeeded++
			} else {
				failed++
			}
		}
	}
	if failed != 1 || succeeded != 3 {
		t.Errorf("failed=%d succeeded=%d, want 1/3: one unit failure must not poison others", failed, succeeded)
	}
}

func TestTranslateAllCancelledContext(t *testing.T) {
	tr := &fakeTranslator{}
	p := testPipeline(tr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.translateAll(ctx, makeBatches(1, 3), Options{Parallelism: 2})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	pe, ok := err.(*document.PipelineError)
	if !ok || pe.Code != document.ErrCancelled {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

func TestTranslateAllReportsProgress(t *testing.T) {
	tr := &fakeTranslator{}
	p := testPipeline(tr)

	var updates atomic.Int64
	var final atomic.Int64
	_, err := p.translateAll(context.Background(), makeBatches(1, 5), Options{
		Parallelism: 2,
		Progress: func(completed, total int) {
			updates.Add(1)
			if total != 5 {
				t.Errorf("total = %d, want 5", total)
			}
			final.Store(int64(completed))
		},
	})
	if err != nil {
		t.Fatalf("translateAll: %v", err)
	}
	if updates.Load() != 5 {
		t.Errorf("expected 5 progress updates, got %d", updates.Load())
	}
	if final.Load() != 5 {
		t.Errorf("final completed = %d, want 5", final.Load())
	}
}

func TestReflowAllRewritesResolvedBlocks(t *testing.T) {
	p := testPipeline(&fakeTranslator{})

	doc := &document.Document{Pages: []document.Page{{
		Number: 1,
		Width:  612,
		Height: 792,
		Blocks: []document.Block{
			{
				ID:   "b1",
				Kind: document.KindText,
				BBox: document.BBox{X: 10, Y: 700, Width: 500, Height: 20},
				Text: &document.TextBlock{Runs: []document.Run{{Text: "Hello world", FontRef: -1, FontSize: 10}}},
			},
			{
				ID:   "b2",
				Kind: document.KindText,
				BBox: document.BBox{X: 10, Y: 600, Width: 500, Height: 20},
				Text: &document.TextBlock{Runs: []document.Run{{Text: "untouched", FontRef: -1, FontSize: 10}}},
			},
		},
	}}}

	u := document.TranslationUnit{ID: "u1", Text: "Hello world", BlockID: "b1", Page: 1}
	resolved := map[string][]reflow.ResolvedUnit{
		"b1": {{
			Unit:   u,
			Result: document.TranslatedUnit{UnitID: "u1", Text: "Bonjour le monde", Status: document.UnitTranslated},
		}},
	}

	warnings := p.reflowAll(doc, resolved)
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	b1 := doc.Pages[0].Blocks[0]
	if got := strings.Join(b1.Text.Lines, " "); got != "Bonjour le monde" {
		t.Errorf("b1 lines = %q", got)
	}
	b2 := doc.Pages[0].Blocks[1]
	if b2.Text.Lines != nil || b2.Text.Text() != "untouched" {
		t.Error("blocks without resolved units must stay untouched")
	}
}
