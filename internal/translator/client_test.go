package translator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"pdf-translator/internal/cache"
	"pdf-translator/internal/document"
)

// fakeChat scripts the chat model responses.
type fakeChat struct {
	calls   atomic.Int64
	handler func(call int, input []*schema.Message) (*schema.Message, error)
}

func (f *fakeChat) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	call := int(f.calls.Add(1))
	return f.handler(call, input)
}

func testConfig() Config {
	return Config{Model: "test-model", MaxRetries: 1, QPS: 1000}
}

func unit(text string) document.TranslationUnit {
	return document.TranslationUnit{
		ID:         document.UnitID(text, "English", "French", "test-model"),
		Text:       text,
		SourceLang: "English",
		TargetLang: "French",
		ModelID:    "test-model",
	}
}

func TestTranslateBatchSuccess(t *testing.T) {
	chat := &fakeChat{handler: func(_ int, input []*schema.Message) (*schema.Message, error) {
		if len(input) != 2 {
			t.Errorf("expected system+user messages, got %d", len(input))
		}
		return schema.AssistantMessage("Bonjour le monde"+UnitSeparator+"Bonne nuit", nil), nil
	}}
	c := newClient(chat, testConfig(), cache.New(cache.Options{}))

	batch := document.Batch{Units: []document.TranslationUnit{unit("Hello world"), unit("Good night")}}
	results := c.Translate(context.Background(), batch)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Succeeded() || results[0].Text != "Bonjour le monde" {
		t.Errorf("results[0] = %+v, want Bonjour le monde", results[0])
	}
	if !results[1].Succeeded() || results[1].Text != "Bonne nuit" {
		t.Errorf("results[1] = %+v, want Bonne nuit", results[1])
	}
	if got := chat.calls.Load(); got != 1 {
		t.Errorf("batch must go out in one call, got %d", got)
	}
}

func TestTranslateCacheHitSkipsCall(t *testing.T) {
	chat := &fakeChat{handler: func(_ int, _ []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage("Bonjour le monde", nil), nil
	}}
	c := newClient(chat, testConfig(), cache.New(cache.Options{}))

	batch := document.Batch{Units: []document.TranslationUnit{unit("Hello world")}}
	first := c.Translate(context.Background(), batch)
	second := c.Translate(context.Background(), batch)

	if got := chat.calls.Load(); got != 1 {
		t.Fatalf("identical unit must be served from cache, got %d calls", got)
	}
	if first[0].Text != second[0].Text || !second[0].Succeeded() {
		t.Errorf("cache hit result differs: %+v vs %+v", first[0], second[0])
	}
}

func TestTranslatePartialResponseFailsMissingUnits(t *testing.T) {
	chat := &fakeChat{handler: func(_ int, _ []*schema.Message) (*schema.Message, error) {
		// Only one part for two units.
		return schema.AssistantMessage("Bonjour le monde", nil), nil
	}}
	c := newClient(chat, testConfig(), cache.New(cache.Options{}))

	batch := document.Batch{Units: []document.TranslationUnit{unit("Hello world"), unit("Good night")}}
	results := c.Translate(context.Background(), batch)

	if !results[0].Succeeded() {
		t.Errorf("delivered unit must succeed, got %+v", results[0])
	}
	if results[1].Succeeded() || results[1].Reason != document.ReasonServiceUnavailable {
		t.Errorf("dropped unit must fail as service unavailable, got %+v", results[1])
	}
}

func TestTranslatePermanentErrorIsNotRetried(t *testing.T) {
	chat := &fakeChat{handler: func(_ int, _ []*schema.Message) (*schema.Message, error) {
		return nil, errors.New("status code: 401 unauthorized")
	}}
	cfg := testConfig()
	cfg.MaxRetries = 3
	c := newClient(chat, cfg, cache.New(cache.Options{}))

	results := c.Translate(context.Background(), document.Batch{
		Units: []document.TranslationUnit{unit("Hello world")},
	})

	if results[0].Succeeded() || results[0].Reason != document.ReasonRejected {
		t.Errorf("expected rejected failure, got %+v", results[0])
	}
	if got := chat.calls.Load(); got != 1 {
		t.Errorf("permanent errors must not be retried, got %d calls", got)
	}
}

func TestTranslateExhaustedRetriesFailUnavailable(t *testing.T) {
	chat := &fakeChat{handler: func(_ int, _ []*schema.Message) (*schema.Message, error) {
		return nil, errors.New("connection timeout")
	}}
	c := newClient(chat, testConfig(), cache.New(cache.Options{})) // MaxRetries 1

	results := c.Translate(context.Background(), document.Batch{
		Units: []document.TranslationUnit{unit("Hello world")},
	})

	if results[0].Succeeded() || results[0].Reason != document.ReasonServiceUnavailable {
		t.Errorf("expected service-unavailable failure, got %+v", results[0])
	}
}

func TestTranslateCancelledContext(t *testing.T) {
	chat := &fakeChat{handler: func(_ int, _ []*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage("x", nil), nil
	}}
	c := newClient(chat, testConfig(), cache.New(cache.Options{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := c.Translate(ctx, document.Batch{
		Units: []document.TranslationUnit{unit("Hello world")},
	})
	if results[0].Succeeded() || results[0].Reason != document.ReasonCancelled {
		t.Errorf("expected cancelled failure, got %+v", results[0])
	}
}

func TestTranslateFailedUnitsNotCached(t *testing.T) {
	failing := true
	chat := &fakeChat{handler: func(_ int, _ []*schema.Message) (*schema.Message, error) {
		if failing {
			return nil, errors.New("status code: 503 service unavailable")
		}
		return schema.AssistantMessage("Bonjour le monde", nil), nil
	}}
	c := newClient(chat, testConfig(), cache.New(cache.Options{}))

	batch := document.Batch{Units: []document.TranslationUnit{unit("Hello world")}}
	first := c.Translate(context.Background(), batch)
	if first[0].Succeeded() {
		t.Fatal("first attempt should fail")
	}

	failing = false
	second := c.Translate(context.Background(), batch)
	if !second[0].Succeeded() || second[0].Text != "Bonjour le monde" {
		t.Errorf("recovered service must re-translate the unit, got %+v", second[0])
	}
}

func TestTranslatePromptCarriesLanguagesAndSeparator(t *testing.T) {
	var system, user string
	chat := &fakeChat{handler: func(_ int, input []*schema.Message) (*schema.Message, error) {
		system = input[0].Content
		user = input[1].Content
		return schema.AssistantMessage("a"+UnitSeparator+"b", nil), nil
	}}
	c := newClient(chat, testConfig(), cache.New(cache.Options{}))

	c.Translate(context.Background(), document.Batch{
		Units: []document.TranslationUnit{unit("Hello world"), unit("Good night")},
	})

	if !strings.Contains(system, "English") || !strings.Contains(system, "French") {
		t.Errorf("system prompt must name the language pair: %q", system)
	}
	if !strings.Contains(user, UnitSeparator) {
		t.Error("user prompt must join units with the separator")
	}
}
