package tokenizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Memo wraps a Counter with a content-keyed cache. Tokenizer output is
// deterministic for identical (text, model) input, so entries never
// expire within a process lifetime.
type Memo struct {
	inner  Counter
	mu     sync.RWMutex
	counts map[string]int
}

// NewMemo creates a memoizing wrapper around inner.
func NewMemo(inner Counter) *Memo {
	return &Memo{inner: inner, counts: make(map[string]int)}
}

func memoKey(text, modelID string) string {
	h := sha256.New()
	h.Write([]byte(modelID))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Count returns the memoized token count, consulting the inner counter on
// a miss. Errors are not cached.
func (m *Memo) Count(ctx context.Context, text, modelID string) (int, error) {
	key := memoKey(text, modelID)

	m.mu.RLock()
	n, ok := m.counts[key]
	m.mu.RUnlock()
	if ok {
		return n, nil
	}

	n, err := m.inner.Count(ctx, text, modelID)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	m.counts[key] = n
	m.mu.Unlock()
	return n, nil
}

// Size returns the number of memoized entries.
func (m *Memo) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.counts)
}
