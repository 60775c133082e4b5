// Package cache implements the content-addressed translation cache. Keys
// are translation unit identifiers (hash of normalized text + language
// pair + model identity), values are translated text. The cache is the
// only mutable state shared across concurrent requests: it is safe for
// concurrent use, evicts least-recently-used entries bounded by entry
// count and total bytes, and coalesces in-flight external calls per key.
// Lookups refresh recency and therefore take the write lock; the critical
// section is a map read plus a list move, so external calls for unrelated
// keys never wait on each other.
package cache

import (
	"container/list"
	"encoding/json"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"pdf-translator/internal/document"
	"pdf-translator/internal/logger"
)

const (
	// DefaultMaxEntries bounds the cache by entry count.
	DefaultMaxEntries = 100000
	// DefaultMaxBytes bounds the cache by total stored text bytes.
	DefaultMaxBytes int64 = 256 * 1024 * 1024

	cacheFileVersion = "1.0"
)

// Options configures a Cache.
type Options struct {
	// Path is the JSON persistence file; empty disables persistence.
	Path string
	// MaxEntries and MaxBytes bound the cache; whichever limit triggers
	// first causes least-recently-used eviction. Zero values use defaults.
	MaxEntries int
	MaxBytes   int64
}

type entry struct {
	key       string
	text      string
	createdAt time.Time
}

// Cache is a bounded LRU store of successful translations plus a registry
// of in-flight translation calls keyed by unit identifier.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	bytes   int64

	maxEntries int
	maxBytes   int64
	path       string

	flightMu sync.Mutex
	flights  map[string]*Flight

	log *zap.Logger
}

// New creates a Cache with the given options.
func New(opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Cache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: opts.MaxEntries,
		maxBytes:   opts.MaxBytes,
		path:       opts.Path,
		flights:    make(map[string]*Flight),
		log:        logger.Get(),
	}
}

// Lookup returns the cached translation for key and refreshes its
// recency. Absence is never an error, only a cost.
func (c *Cache) Lookup(key string) (document.TranslatedUnit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return document.TranslatedUnit{}, false
	}
	c.order.MoveToFront(el)
	e := el.Value.(*entry)
	return document.TranslatedUnit{
		UnitID: e.key,
		Text:   e.text,
		Status: document.UnitTranslated,
	}, true
}

// Store records a successful translation for key. Failed units are never
// cached. Eviction runs until both bounds hold again.
func (c *Cache) Store(key string, tu document.TranslatedUnit) {
	if !tu.Succeeded() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		c.bytes += int64(len(tu.Text)) - int64(len(e.text))
		e.text = tu.Text
		c.order.MoveToFront(el)
	} else {
		el := c.order.PushFront(&entry{key: key, text: tu.Text, createdAt: time.Now()})
		c.entries[key] = el
		c.bytes += int64(len(tu.Text))
	}

	for (len(c.entries) > c.maxEntries || c.bytes > c.maxBytes) && c.order.Len() > 0 {
		oldest := c.order.Back()
		e := oldest.Value.(*entry)
		c.order.Remove(oldest)
		delete(c.entries, e.key)
		c.bytes -= int64(len(e.text))
	}
}

// Size returns the number of cached entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Bytes returns the total stored text bytes.
func (c *Cache) Bytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bytes
}

// persistedEntry is one line of the on-disk ledger.
type persistedEntry struct {
	Key       string    `json:"key"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// cacheFile is the on-disk format: a version marker plus entries in
// least-recently-used-first order so reloading preserves eviction order.
type cacheFile struct {
	Version string           `json:"version"`
	Entries []persistedEntry `json:"entries"`
}

// Load restores the cache from its persistence file. A missing file is
// not an error; the cache simply starts empty.
func (c *Cache) Load() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		c.log.Warn("cache file unreadable, starting empty", zap.String("path", c.path), zap.Error(err))
		return nil
	}

	for _, pe := range cf.Entries {
		c.Store(pe.Key, document.TranslatedUnit{
			UnitID: pe.Key,
			Text:   pe.Text,
			Status: document.UnitTranslated,
		})
	}
	c.log.Info("cache loaded", zap.String("path", c.path), zap.Int("entries", c.Size()))
	return nil
}

// Save writes the cache to its persistence file.
func (c *Cache) Save() error {
	if c.path == "" {
		return nil
	}

	c.mu.RLock()
	entries := make([]persistedEntry, 0, c.order.Len())
	for el := c.order.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		entries = append(entries, persistedEntry{Key: e.key, Text: e.text, CreatedAt: e.createdAt})
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(cacheFile{Version: cacheFileVersion, Entries: entries}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}
