// Package wiki provides wiki pages and the repository that maps URLs to
// files under a content root.
package wiki

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/sa/flatwiki/internal/cache"
	"github.com/sa/flatwiki/internal/markup"
	"github.com/sa/flatwiki/internal/util"
)

// Page represents one wiki document backed by one file on disk. The
// derived fields html, body, and meta are always recomputed together by
// Render; a partially updated page is never observable.
type Page struct {
	URL        string
	Path       string
	Markup     markup.Markup
	RawContent string
	Body       string

	html  string
	meta  markup.Meta
	cache cache.Cache
	isRaw bool
}

// NewPage constructs a Page bound to a path, URL, and markup variant.
// The content is not loaded; call Load and Render.
func NewPage(path, url string, m markup.Markup, c cache.Cache) *Page {
	return &Page{
		URL:    url,
		Path:   path,
		Markup: m,
		meta:   markup.Meta{},
		cache:  c,
		isRaw:  m.Name() == "raw",
	}
}

// Load binds content into the page. Empty content means read the file
// from disk as UTF-8; raw binary pages skip reading and carry empty
// content.
func (p *Page) Load(content string) error {
	if content == "" && !p.isRaw {
		data, err := os.ReadFile(p.Path)
		if err != nil {
			return err
		}
		content = string(data)
	}
	p.RawContent = content
	return nil
}

// Render processes the raw content into html, body, and meta. It is
// idempotent: rendering twice with unchanged content yields identical
// output.
func (p *Page) Render() {
	p.html, p.Body, p.meta = p.Markup.Process(p.RawContent)
}

// HTML returns the last rendered output.
func (p *Page) HTML() string {
	return p.html
}

// Meta returns the parsed metadata.
func (p *Page) Meta() markup.Meta {
	return p.meta
}

// IsRaw reports whether the page is served verbatim without rendering.
func (p *Page) IsRaw() bool {
	return p.isRaw
}

// NoMeta reports whether title and tags fields should be hidden because
// the markup variant carries no front matter.
func (p *Page) NoMeta() bool {
	return !p.Markup.HasMeta()
}

// Title returns the title metadata, defaulting to the file basename.
func (p *Page) Title() string {
	if t := p.meta.Get("title"); t != "" {
		return t
	}
	return filepath.Base(p.Path)
}

// SetTitle stores the title metadata.
func (p *Page) SetTitle(title string) {
	p.meta.Set("title", title)
}

// Tags returns the comma-separated tags metadata, or "" when absent.
func (p *Page) Tags() string {
	if vs, ok := p.meta["tags"]; ok {
		return strings.Join(vs, ", ")
	}
	return ""
}

// SetTags stores the tags metadata.
func (p *Page) SetTags(tags string) {
	p.meta.Set("tags", tags)
}

// TagList returns the comma-split, trimmed, non-empty tag tokens.
func (p *Page) TagList() []string {
	var tags []string
	for _, tag := range strings.Split(p.Tags(), ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Checksum is the optimistic-concurrency token for the edit form: a
// SHA-256 over the rendered html, title, and tags. It is recomputed on
// every call so it always reflects the current in-memory render.
func (p *Page) Checksum() string {
	h := sha256.New()
	h.Write([]byte(p.html))
	h.Write([]byte(p.Title()))
	h.Write([]byte(p.Tags()))
	return hex.EncodeToString(h.Sum(nil))
}

// Crumbs returns the navigation breadcrumbs for this page.
func (p *Page) Crumbs() []util.Breadcrumb {
	return util.Breadcrumbs(p.URL)
}

// Save persists the metadata block and body to disk, creating parent
// directories as needed. IO failures propagate to the caller. When
// update is true the page is reloaded and re-rendered afterwards so it
// reflects the canonical on-disk form.
func (p *Page) Save(update bool) error {
	if dir := filepath.Dir(p.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	var sb strings.Builder
	if p.Markup.HasMeta() && len(p.meta) > 0 {
		for _, key := range p.meta.Keys() {
			for _, value := range p.meta[key] {
				if line := p.Markup.RenderMeta(key, value); line != "" {
					sb.WriteString(line)
				}
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString(util.NormalizeLineEndings(p.Body))

	if err := os.WriteFile(p.Path, []byte(sb.String()), 0o644); err != nil {
		return err
	}

	if update {
		if err := p.Load(""); err != nil {
			return err
		}
		p.Render()
	}
	return nil
}

// CacheKey is the stable identity under which rendered HTML is stored.
func (p *Page) CacheKey() string {
	return p.URL
}

// CachedHTML returns the rendered HTML, consulting the render cache
// first and memoizing on miss.
func (p *Page) CachedHTML() string {
	if p.cache == nil {
		return p.html
	}
	if v, ok := p.cache.Get(p.CacheKey()); ok {
		return v
	}
	_ = p.cache.Set(p.CacheKey(), p.html)
	return p.html
}

// DeleteCache invalidates the cached render for this page. Called after
// every successful save; direct file edits outside the application leave
// a stale entry until the next save.
func (p *Page) DeleteCache() {
	if p.cache != nil {
		_ = p.cache.Delete(p.CacheKey())
	}
}
