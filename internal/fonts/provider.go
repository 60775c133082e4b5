// Package fonts resolves font resources for the reflower: glyph coverage
// queries, string width measurement from real font metrics, and fallback
// chain substitution when a font cannot render a character. Font files
// are preloaded from a directory at startup; a missing font is a
// recoverable condition (the next chain entry is tried), never fatal.
package fonts

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"pdf-translator/internal/logger"
)

// Coverage wraps a parsed font program and answers glyph coverage and
// advance-width queries. sfnt buffers are not safe for concurrent use, so
// each Coverage serializes access with its own mutex.
type Coverage struct {
	Family  string
	program []byte

	mu   sync.Mutex
	font *sfnt.Font
	buf  sfnt.Buffer
}

// Supports reports whether the font has a glyph for r.
func (c *Coverage) Supports(r rune) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	gi, err := c.font.GlyphIndex(&c.buf, r)
	return err == nil && gi != 0
}

// RuneWidth returns the advance width of r at the given font size in page
// units. Unsupported runes fall back to the heuristic estimate.
func (c *Coverage) RuneWidth(r rune, size float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	gi, err := c.font.GlyphIndex(&c.buf, r)
	if err != nil || gi == 0 {
		return EstimateRuneWidth(r, size)
	}
	ppem := fixed.Int26_6(size * 64)
	adv, err := c.font.GlyphAdvance(&c.buf, gi, ppem, font.HintingNone)
	if err != nil {
		return EstimateRuneWidth(r, size)
	}
	return float64(adv) / 64
}

// StringWidth measures s at the given font size.
func (c *Coverage) StringWidth(s string, size float64) float64 {
	width := 0.0
	for _, r := range s {
		width += c.RuneWidth(r, size)
	}
	return width
}

// Program returns the embeddable font file bytes.
func (c *Coverage) Program() []byte { return c.program }

// Provider owns the loaded font set.
type Provider struct {
	mu    sync.RWMutex
	fonts map[string]*Coverage // lowercased family -> coverage
	dir   string
	log   *zap.Logger
}

// NewProvider creates a Provider reading font files from dir.
func NewProvider(dir string) *Provider {
	return &Provider{
		fonts: make(map[string]*Coverage),
		dir:   dir,
		log:   logger.Get(),
	}
}

// Preload parses every .ttf/.otf file under the font directory. Parse
// failures skip the file with a warning; an empty or missing directory is
// not an error.
func (p *Provider) Preload() error {
	if p.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			p.log.Warn("font directory missing, fallback chains limited", zap.String("dir", p.dir))
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".ttf" && ext != ".otf" {
			continue
		}
		path := filepath.Join(p.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			p.log.Warn("failed to read font file", zap.String("path", path), zap.Error(err))
			continue
		}
		if err := p.Register(strings.TrimSuffix(e.Name(), ext), data); err != nil {
			p.log.Warn("failed to parse font file", zap.String("path", path), zap.Error(err))
		}
	}

	p.log.Info("fonts preloaded", zap.Int("count", p.Count()), zap.String("dir", p.dir))
	return nil
}

// Register parses program and adds it under family. The font's own family
// name, when readable, is registered as an alias.
func (p *Provider) Register(family string, program []byte) error {
	f, err := sfnt.Parse(program)
	if err != nil {
		return err
	}
	cov := &Coverage{Family: family, program: program, font: f}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.fonts[strings.ToLower(family)] = cov

	var buf sfnt.Buffer
	if name, err := f.Name(&buf, sfnt.NameIDFamily); err == nil && name != "" {
		if _, taken := p.fonts[strings.ToLower(name)]; !taken {
			p.fonts[strings.ToLower(name)] = cov
		}
	}
	return nil
}

// Coverage returns the loaded font for family. Absence is recoverable:
// callers move on to the next fallback chain entry.
func (p *Provider) Coverage(family string) (*Coverage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.fonts[strings.ToLower(family)]
	return c, ok
}

// Substitute returns the first chain entry whose font covers r.
func (p *Provider) Substitute(r rune, chain []string) (*Coverage, bool) {
	for _, family := range chain {
		if cov, ok := p.Coverage(family); ok && cov.Supports(r) {
			return cov, true
		}
	}
	return nil, false
}

// Count returns the number of distinct registered names.
func (p *Provider) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.fonts)
}

// EstimateRuneWidth approximates the advance of r at size when no font
// metrics are available: a full em for CJK, a quarter em for spaces, half
// an em otherwise.
func EstimateRuneWidth(r rune, size float64) float64 {
	switch {
	case isCJK(r):
		return size
	case r == ' ' || r == '\t':
		return 0.25 * size
	default:
		return 0.5 * size
	}
}

// EstimateStringWidth sums EstimateRuneWidth over s.
func EstimateStringWidth(s string, size float64) float64 {
	width := 0.0
	for _, r := range s {
		width += EstimateRuneWidth(r, size)
	}
	return width
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3000 && r <= 0x303F) ||
		(r >= 0xFF00 && r <= 0xFFEF)
}
