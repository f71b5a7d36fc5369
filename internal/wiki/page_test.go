package wiki

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sa/flatwiki/internal/cache"
	"github.com/sa/flatwiki/internal/config"
	"github.com/sa/flatwiki/internal/markup"
)

func newTestWiki(t *testing.T) (*Wiki, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ContentDir = dir
	return New(dir, markup.DefaultRegistry(markup.Options{}), cache.NewMemory(), cfg), dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestPageSaveLoadRoundTrip(t *testing.T) {
	w, _ := newTestWiki(t)

	page := w.GetBare("roundtrip")
	if page == nil {
		t.Fatal("GetBare returned nil for a fresh URL")
	}
	page.SetTitle("Round Trip")
	page.SetTags("one, two")
	page.Body = "# Heading\n\nbody text"
	if err := page.Save(true); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := w.Get("roundtrip")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded == nil {
		t.Fatal("saved page not found")
	}
	if loaded.Title() != "Round Trip" {
		t.Errorf("Title = %q", loaded.Title())
	}
	if loaded.Tags() != "one, two" {
		t.Errorf("Tags = %q", loaded.Tags())
	}
	if loaded.Body != "# Heading\n\nbody text" {
		t.Errorf("Body = %q", loaded.Body)
	}
}

func TestPageSaveFileFormat(t *testing.T) {
	w, dir := newTestWiki(t)

	page := w.GetBare("fmt")
	page.SetTitle("Fmt")
	page.SetTags("a")
	page.Body = "body"
	if err := page.Save(false); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "fmt.md"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// Metadata keys are written sorted, then a blank line, then the body.
	want := "tags: a\ntitle: Fmt\n\nbody"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}

func TestPageSaveEmptyMetaOmitsSeparator(t *testing.T) {
	w, dir := newTestWiki(t)

	page := w.GetBare("bare")
	page.Body = "just a body"
	if err := page.Save(true); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "bare.md"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "just a body" {
		t.Errorf("file = %q", data)
	}

	// Repeated save/load cycles keep the body byte-identical.
	for i := 0; i < 3; i++ {
		if err := page.Save(true); err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
	}
	if page.Body != "just a body" {
		t.Errorf("Body drifted to %q", page.Body)
	}
}

func TestPageSaveNormalizesLineEndings(t *testing.T) {
	w, dir := newTestWiki(t)

	page := w.GetBare("crlf")
	page.SetTitle("CRLF")
	page.Body = "line one\r\nline two"
	if err := page.Save(false); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "crlf.md"))
	if string(data) != "title: CRLF\n\nline one\nline two" {
		t.Errorf("file = %q", data)
	}
}

func TestPageSaveCreatesParentDirs(t *testing.T) {
	w, dir := newTestWiki(t)

	page := w.GetBare("deep/nested/page")
	page.SetTitle("Deep")
	page.Body = "x"
	if err := page.Save(false); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "deep", "nested", "page.md")); err != nil {
		t.Errorf("page file missing: %v", err)
	}
}

func TestPageTitleDefaultsToBasename(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "untitled.md", "just a body\n")

	page, err := w.Get("untitled")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if page.Title() != "untitled.md" {
		t.Errorf("Title = %q", page.Title())
	}
}

func TestPageChecksum(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "sum.md", "title: One\n\nbody\n")

	page, err := w.Get("sum")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	first := page.Checksum()
	if first != page.Checksum() {
		t.Error("checksum is not stable for unchanged content")
	}

	writeFile(t, dir, "sum.md", "title: Two\n\nbody\n")
	changed, err := w.Get("sum")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if changed.Checksum() == first {
		t.Error("checksum did not change with the title")
	}

	page.SetTags("new-tag")
	if page.Checksum() == first {
		t.Error("checksum did not change with the tags")
	}
}

func TestPageTagList(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "tagged.md", "tags: go,  wiki , ,x\n\nbody\n")

	page, err := w.Get("tagged")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	tags := page.TagList()
	want := []string{"go", "wiki", "x"}
	if len(tags) != len(want) {
		t.Fatalf("TagList = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("TagList[%d] = %q, want %q", i, tags[i], want[i])
		}
	}
}

func TestPageCachedHTML(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "cached.md", "title: C\n\nfirst\n")

	page, err := w.Get("cached")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	html := page.CachedHTML()
	if html == "" {
		t.Fatal("CachedHTML returned empty output")
	}

	// The cache serves the stale render until invalidated.
	writeFile(t, dir, "cached.md", "title: C\n\nsecond\n")
	again, _ := w.Get("cached")
	if again.CachedHTML() != html {
		t.Error("expected the cached render before invalidation")
	}

	again.DeleteCache()
	if again.CachedHTML() == html {
		t.Error("expected a fresh render after invalidation")
	}
}

func TestPageNoMeta(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "notes.txt", "plain text\n")

	page, err := w.Get("notes.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !page.NoMeta() {
		t.Error("plaintext pages should report NoMeta")
	}
	if page.IsRaw() {
		t.Error("plaintext is not raw")
	}
}

func TestPageRawSkipsLoad(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "image.png", "\x89PNG")

	page, err := w.Get("image.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !page.IsRaw() {
		t.Fatal("png page should be raw")
	}
	if page.RawContent != "" || page.HTML() != "" {
		t.Error("raw pages carry no loaded or rendered content")
	}
}
