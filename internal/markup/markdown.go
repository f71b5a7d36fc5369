package markup

import (
	"bytes"
	"fmt"
	"html"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
)

// Markdown renders GitHub-flavored markdown with fenced code
// highlighting. Metadata comes from the shared key: value front-matter
// convention.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates the markdown variant.
func NewMarkdown() *Markdown {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
					chromahtml.WithLineNumbers(false),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			goldmarkhtml.WithXHTML(),
			goldmarkhtml.WithUnsafe(),
		),
	)
	return &Markdown{md: md}
}

func (m *Markdown) Name() string      { return "markdown" }
func (m *Markdown) Extension() string { return ".md" }
func (m *Markdown) HasMeta() bool     { return true }

func (m *Markdown) Howto() string {
	return `# Heading
## Subheading
*italic* **bold**
- list item
[link text](/page-url)
` + "```go\ncode block\n```"
}

func (m *Markdown) RenderMeta(key, value string) string {
	return fmt.Sprintf("%s: %s\n", key, value)
}

func (m *Markdown) Process(raw string) (string, string, Meta) {
	meta, body := splitMeta(raw, plainMetaRe)

	var buf bytes.Buffer
	if err := m.md.Convert([]byte(body), &buf); err != nil {
		return "<pre>" + html.EscapeString(body) + "</pre>", body, meta
	}
	return buf.String(), body, meta
}
