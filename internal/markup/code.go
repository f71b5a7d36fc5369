package markup

import (
	"bytes"
	"html"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
)

// HighlightedCode renders source files through a chroma lexer matched by
// filename. These pages carry no front matter; the editable body is the
// raw source.
type HighlightedCode struct {
	lexer chroma.Lexer
}

func (h *HighlightedCode) Name() string      { return "highlight" }
func (h *HighlightedCode) Extension() string { return "" }
func (h *HighlightedCode) HasMeta() bool     { return false }

func (h *HighlightedCode) RenderMeta(key, value string) string { return "" }
func (h *HighlightedCode) Howto() string                       { return "" }

func (h *HighlightedCode) Process(raw string) (string, string, Meta) {
	meta := Meta{"tags": {"source code"}}

	style := styles.Get("github")
	if style == nil {
		style = styles.Fallback
	}

	lexer := chroma.Coalesce(h.lexer)
	iterator, err := lexer.Tokenise(nil, raw)
	if err != nil {
		return "<pre>" + html.EscapeString(raw) + "</pre>", raw, meta
	}

	formatter := chromahtml.New(chromahtml.WithLineNumbers(false))
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "<pre>" + html.EscapeString(raw) + "</pre>", raw, meta
	}

	return buf.String(), raw, meta
}

// Raw marks binary files (images, archives) that are served verbatim.
// Content is never loaded or rendered.
type Raw struct{}

func (Raw) Name() string                        { return "raw" }
func (Raw) Extension() string                   { return "" }
func (Raw) HasMeta() bool                       { return false }
func (Raw) RenderMeta(key, value string) string { return "" }
func (Raw) Howto() string                       { return "" }

func (Raw) Process(raw string) (string, string, Meta) {
	return "", "", Meta{"tags": {"raw data"}}
}

// Plaintext renders content as escaped preformatted text.
type Plaintext struct{}

func (Plaintext) Name() string                        { return "plaintext" }
func (Plaintext) Extension() string                   { return ".txt" }
func (Plaintext) HasMeta() bool                       { return false }
func (Plaintext) RenderMeta(key, value string) string { return "" }
func (Plaintext) Howto() string                       { return "" }

func (Plaintext) Process(raw string) (string, string, Meta) {
	return "<pre>" + html.EscapeString(raw) + "</pre>", raw, Meta{}
}
