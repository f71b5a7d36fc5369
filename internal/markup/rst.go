package markup

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"

	"github.com/sa/flatwiki/internal/util"
)

// unknownTargetRe matches the docutils warning emitted for references
// without a matching target definition.
var unknownTargetRe = regexp.MustCompile(`Unknown target name: "(.*?)"`)

// RestructuredText renders reStructuredText by driving a docutils writer
// binary as a subprocess. References without a target are repaired into
// internal wiki links with a single re-render pass.
type RestructuredText struct {
	tool string
}

// NewRestructuredText creates the variant. tool is the docutils HTML
// writer binary; empty selects "rst2html5".
func NewRestructuredText(tool string) *RestructuredText {
	if tool == "" {
		tool = "rst2html5"
	}
	return &RestructuredText{tool: tool}
}

func (r *RestructuredText) Name() string      { return "restructuredtext" }
func (r *RestructuredText) Extension() string { return ".rst" }
func (r *RestructuredText) HasMeta() bool     { return true }

func (r *RestructuredText) Howto() string {
	return `Heading
=======

Subheading
----------

*italic* **bold**

- list item

` + "`link text </page-url>`_"
}

func (r *RestructuredText) RenderMeta(key, value string) string {
	return fmt.Sprintf(".. %s: %s\n", key, value)
}

func (r *RestructuredText) Process(raw string) (string, string, Meta) {
	meta, body := splitMeta(raw, rstMetaRe)

	out, err := r.render(raw)
	if err != nil {
		slog.Warn("rst render failed, serving preformatted text", "tool", r.tool, "error", err)
		return "<pre>" + html.EscapeString(raw) + "</pre>", body, meta
	}

	// Convert unknown links to internal wiki links:
	//   Something_ links to '/something'
	//   `something great`_ links to '/something-great'
	// A single repair pass; leftover unknown targets are not retried.
	if refs := unknownTargetRe.FindAllStringSubmatch(out, -1); len(refs) > 0 {
		repaired, err := r.render(raw + autolinks(refs))
		if err == nil {
			out = repaired
		}
	}

	return out, body, meta
}

// render feeds source through the external writer and returns its output.
func (r *RestructuredText) render(source string) (string, error) {
	cmd := exec.Command(r.tool)
	cmd.Stdin = strings.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", r.tool, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// autolinks synthesizes target definitions pointing at wiki URLs for
// each unresolved reference.
func autolinks(refs [][]string) string {
	var lines []string
	for _, m := range refs {
		ref := m[1]
		lines = append(lines, fmt.Sprintf(".. _%s: /%s", ref, util.Urlify(ref, false)))
	}
	return "\n\n" + strings.Join(lines, "\n")
}
