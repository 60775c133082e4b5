// Package translator invokes the external translation LLM per batch,
// with retry, per-unit cache short-circuiting, and coalescing of
// identical in-flight units across concurrent requests.
package translator

import (
	"context"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pdf-translator/internal/cache"
	"pdf-translator/internal/document"
	"pdf-translator/internal/logger"
)

const (
	// DefaultMaxRetries bounds attempts for transient failures.
	DefaultMaxRetries = 3
	// DefaultQPS is the default request rate toward the LLM service.
	DefaultQPS = 4
)

// ChatModel is the narrow slice of the eino chat model the client needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Config holds the settings for the translation client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	QPS        int
}

// Client translates batches of units through an OpenAI-compatible chat
// model.
type Client struct {
	chat       ChatModel
	store      *cache.Cache
	limiter    *rate.Limiter
	modelID    string
	maxRetries int
	log        *zap.Logger
}

// NewClient builds a Client backed by the eino OpenAI chat model.
func NewClient(ctx context.Context, cfg Config, store *cache.Cache) (*Client, error) {
	chatCfg := &einoopenai.ChatModelConfig{
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}
	if cfg.BaseURL != "" {
		chatCfg.BaseURL = cfg.BaseURL
	}
	chat, err := einoopenai.NewChatModel(ctx, chatCfg)
	if err != nil {
		return nil, err
	}
	return newClient(chat, cfg, store), nil
}

// newClient wires an already-constructed chat model; tests use it with a
// fake model.
func newClient(chat ChatModel, cfg Config, store *cache.Cache) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.QPS <= 0 {
		cfg.QPS = DefaultQPS
	}
	return &Client{
		chat:       chat,
		store:      store,
		limiter:    rate.NewLimiter(rate.Limit(cfg.QPS), cfg.QPS),
		modelID:    cfg.Model,
		maxRetries: cfg.MaxRetries,
		log:        logger.Get(),
	}
}

// Translate resolves every unit of the batch, in order. Cached units are
// returned without an external call; units already being translated by a
// concurrent request are joined rather than re-issued; the remaining
// units go out in one batch call. Unit failures are carried in the
// result, never as an error: the reflower decides what to do with them.
func (c *Client) Translate(ctx context.Context, batch document.Batch) []document.TranslatedUnit {
	results := make([]document.TranslatedUnit, len(batch.Units))

	type pending struct {
		index  int
		flight *cache.Flight
	}
	var leaders, waiters []pending

	for i, u := range batch.Units {
		if tu, ok := c.store.Lookup(u.ID); ok {
			results[i] = tu
			continue
		}
		f, leader := c.store.Begin(u.ID)
		if leader {
			leaders = append(leaders, pending{index: i, flight: f})
		} else {
			waiters = append(waiters, pending{index: i, flight: f})
		}
	}

	if len(leaders) > 0 {
		units := make([]document.TranslationUnit, len(leaders))
		for i, p := range leaders {
			units[i] = batch.Units[p.index]
		}

		translated := c.translateUnits(ctx, units)
		for i, p := range leaders {
			c.store.Complete(p.flight, translated[i])
			results[p.index] = translated[i]
		}
	}

	for _, p := range waiters {
		results[p.index] = p.flight.Wait(ctx)
	}

	return results
}

// translateUnits performs the external call for units, including retry
// for transient failures. Results align positionally with units.
func (c *Client) translateUnits(ctx context.Context, units []document.TranslationUnit) []document.TranslatedUnit {
	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}

	parts, reason := c.callWithRetry(ctx, texts, units[0].SourceLang, units[0].TargetLang)

	out := make([]document.TranslatedUnit, len(units))
	for i, u := range units {
		switch {
		case reason != document.ReasonNone:
			out[i] = document.TranslatedUnit{UnitID: u.ID, Status: document.UnitFailed, Reason: reason}
		case parts[i] == "":
			// Partial response: the service dropped this unit.
			out[i] = document.TranslatedUnit{UnitID: u.ID, Status: document.UnitFailed, Reason: document.ReasonServiceUnavailable}
		default:
			out[i] = document.TranslatedUnit{UnitID: u.ID, Text: parts[i], Status: document.UnitTranslated}
		}
	}
	return out
}

// callWithRetry issues the chat completion with exponential backoff for
// transient errors. On failure it returns the unit-level reason the
// whole call maps to.
func (c *Client) callWithRetry(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, document.FailureReason) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, document.ReasonCancelled
		}

		msg, err := c.chat.Generate(ctx, []*schema.Message{
			schema.SystemMessage(buildSystemPrompt(sourceLang, targetLang)),
			schema.UserMessage(buildUserPrompt(texts)),
		})
		if err == nil {
			return splitTranslatedText(msg.Content, len(texts)), document.ReasonNone
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, document.ReasonCancelled
		}
		if !isRetryable(err) {
			c.log.Warn("permanent translation error, not retrying", zap.Error(err))
			return nil, document.ReasonRejected
		}

		c.log.Warn("translation attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("maxRetries", c.maxRetries),
			zap.Error(err))

		if attempt < c.maxRetries {
			if !sleepBackoff(ctx, attempt) {
				return nil, document.ReasonCancelled
			}
		}
	}

	c.log.Error("translation retries exhausted", zap.Error(lastErr))
	return nil, document.ReasonServiceUnavailable
}

// sleepBackoff waits the exponential backoff delay for attempt, returning
// false if ctx was cancelled while waiting.
func sleepBackoff(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(backoffDelay(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
