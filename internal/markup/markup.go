// Package markup provides the pluggable renderers that turn raw page
// content into HTML, an editable body, and page metadata.
package markup

import (
	"mime"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// Meta holds page metadata as lower-cased keys mapping to ordered value
// lists. Repeated keys in the metadata block append to the list.
type Meta map[string][]string

// Get returns the first value for key, or "" when absent.
func (m Meta) Get(key string) string {
	if vs, ok := m[strings.ToLower(key)]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Set replaces all values for key with a single value.
func (m Meta) Set(key, value string) {
	m[strings.ToLower(key)] = []string{value}
}

// Add appends a value for key.
func (m Meta) Add(key, value string) {
	key = strings.ToLower(key)
	m[key] = append(m[key], value)
}

// Keys returns the metadata keys in sorted order.
func (m Meta) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Markup converts raw page content into rendered output.
type Markup interface {
	// Name identifies the markup variant.
	Name() string

	// Extension is the canonical file extension, including the dot.
	// Variants matched by content type or lexer return "".
	Extension() string

	// Process renders raw content into (html, body, meta). The body is
	// the editable content after the metadata block; meta is empty when
	// no valid metadata block is present.
	Process(raw string) (html string, body string, meta Meta)

	// RenderMeta formats one metadata line for persistence. Variants
	// without front matter return "".
	RenderMeta(key, value string) string

	// HasMeta reports whether this variant carries a front-matter block.
	HasMeta() bool

	// Howto returns a short syntax cheatsheet shown next to the edit
	// form, or "" for variants without one.
	Howto() string
}

var (
	plainMetaRe = regexp.MustCompile(`^([A-Za-z][\w-]*):\s+(.*)$`)
	rstMetaRe   = regexp.MustCompile(`^\.\.\s+(.+?):\s+(.*)$`)
)

// splitMeta separates the leading metadata block from the body. The block
// is a run of lines matching re followed by exactly one blank line. A
// missing or malformed block falls back to body == raw with empty meta.
func splitMeta(raw string, re *regexp.Regexp) (Meta, string) {
	meta := Meta{}
	head, body, found := strings.Cut(raw, "\n\n")
	if !found || head == "" {
		return meta, raw
	}
	for _, line := range strings.Split(head, "\n") {
		m := re.FindStringSubmatch(line)
		if m == nil {
			return Meta{}, raw
		}
		meta.Add(strings.TrimSpace(m[1]), strings.TrimSpace(m[2]))
	}
	return meta, body
}

// Registry maps file extensions to markup variants. Registration is
// explicit; on extension collision the last registration wins.
type Registry struct {
	byExt map[string]Markup
	def   Markup
}

// NewRegistry creates a Registry with def as the variant for new pages.
func NewRegistry(def Markup) *Registry {
	return &Registry{byExt: make(map[string]Markup), def: def}
}

// Register binds a markup variant to one or more file extensions.
func (r *Registry) Register(m Markup, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = m
	}
}

// Default returns the variant used for newly created pages.
func (r *Registry) Default() Markup {
	return r.def
}

// Known reports whether path carries an explicitly registered extension.
func (r *Registry) Known(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ForPath resolves the markup variant for a file path. Resolution order:
// registered extension, then guessed content type for images and
// archives, then syntax-highlighting lexer lookup, else plain text.
func (r *Registry) ForPath(path string) Markup {
	ext := strings.ToLower(filepath.Ext(path))
	if m, ok := r.byExt[ext]; ok {
		return m
	}

	if isRawType(ext) {
		return Raw{}
	}

	if lexer := lexers.Match(filepath.Base(path)); lexer != nil {
		return &HighlightedCode{lexer: lexer}
	}

	return Plaintext{}
}

// isRawType reports whether the extension names an image or archive.
func isRawType(ext string) bool {
	if ext == "" {
		return false
	}
	switch ext {
	case ".gz", ".bz2", ".xz", ".zip", ".tar", ".tgz":
		return true
	}
	mt := mime.TypeByExtension(ext)
	return strings.HasPrefix(mt, "image/")
}

// Options configures the default registry.
type Options struct {
	// RSTTool is the docutils HTML writer binary, e.g. "rst2html5".
	RSTTool string
}

// DefaultRegistry builds the standard variant registry: markdown as the
// default for new pages, plus restructured text and plain text.
func DefaultRegistry(opts Options) *Registry {
	md := NewMarkdown()
	r := NewRegistry(md)
	r.Register(md, ".md", ".mdwn")
	r.Register(NewRestructuredText(opts.RSTTool), ".rst")
	r.Register(Plaintext{}, ".txt")
	return r
}
