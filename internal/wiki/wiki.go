package wiki

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sa/flatwiki/internal/cache"
	"github.com/sa/flatwiki/internal/config"
	"github.com/sa/flatwiki/internal/markup"
	"github.com/sa/flatwiki/internal/util"
)

// ErrNotFound signals a missing page to callers that need fail-fast
// behavior.
var ErrNotFound = errors.New("wiki: page not found")

// ForbiddenURLError reports a URL that may not be created, carrying the
// offending path segment so the web layer can redirect intelligently.
type ForbiddenURLError struct {
	InvalidPart string
	URL         string
}

func (e *ForbiddenURLError) Error() string {
	return fmt.Sprintf("you can't create a page inside %q: %s", e.InvalidPart, e.URL)
}

// Redirect returns the path the caller should redirect to.
func (e *ForbiddenURLError) Redirect() string {
	if strings.HasPrefix(e.InvalidPart, "_") {
		if idx := strings.Index(e.URL, e.InvalidPart); idx > 0 {
			return "/" + e.URL[:idx]
		}
		return "/"
	}
	return "/" + e.InvalidPart
}

// Wiki owns the mapping from URL space to a directory tree rooted at the
// content directory.
type Wiki struct {
	root     string
	reg      *markup.Registry
	cache    cache.Cache
	reserved map[string]bool
	sortAttr string
}

// New creates a Wiki over root. Directories named in cfg.ReservedDirs
// are skipped entirely during index walks.
func New(root string, reg *markup.Registry, c cache.Cache, cfg *config.Config) *Wiki {
	reserved := make(map[string]bool)
	for _, d := range cfg.ReservedDirs {
		reserved[d] = true
	}
	sortAttr := cfg.Sort
	if sortAttr == "" {
		sortAttr = "title"
	}
	return &Wiki{
		root:     root,
		reg:      reg,
		cache:    c,
		reserved: reserved,
		sortAttr: sortAttr,
	}
}

// Root returns the content root directory.
func (w *Wiki) Root() string {
	return w.root
}

// Registry returns the markup registry in use.
func (w *Wiki) Registry() *markup.Registry {
	return w.reg
}

// PagePath resolves a URL to its absolute filesystem path. URLs whose
// last segment carries an extension address the file verbatim; bare
// URLs get the default markup's extension appended.
func (w *Wiki) PagePath(url string) string {
	if filepath.Ext(url) != "" {
		return filepath.Join(w.root, filepath.FromSlash(url))
	}
	return filepath.Join(w.root, filepath.FromSlash(url)) + w.reg.Default().Extension()
}

// RelPath returns the page file path relative to the content root, as
// used for version-control operations.
func (w *Wiki) RelPath(url string) string {
	rel, err := filepath.Rel(w.root, w.PagePath(url))
	if err != nil {
		return url
	}
	return filepath.ToSlash(rel)
}

// Exists reports whether a page file exists at the URL.
func (w *Wiki) Exists(url string) bool {
	info, err := os.Stat(w.PagePath(url))
	return err == nil && !info.IsDir()
}

// ValidateURL rejects URLs with reserved prefixes or underscore-prefixed
// segments.
func (w *Wiki) ValidateURL(url string) error {
	segments := util.SplitPath(url)
	if len(segments) == 0 {
		return &ForbiddenURLError{InvalidPart: url, URL: url}
	}
	if util.HasReservedPrefix(segments[0]) {
		return &ForbiddenURLError{InvalidPart: segments[0], URL: url}
	}
	for _, seg := range segments {
		if strings.HasPrefix(seg, "_") {
			return &ForbiddenURLError{InvalidPart: seg, URL: url}
		}
	}
	return nil
}

// newPage builds a page for the URL with its markup resolved by path.
func (w *Wiki) newPage(url string) *Page {
	path := w.PagePath(url)
	return NewPage(path, url, w.reg.ForPath(path), w.cache)
}

// Get returns the page at url, or nil when the file is absent. A
// malformed URL is never an error here; it simply does not resolve.
func (w *Wiki) Get(url string) (*Page, error) {
	if !w.Exists(url) {
		return nil, nil
	}
	page := w.newPage(url)
	if err := page.Load(""); err != nil {
		return nil, err
	}
	page.Render()
	return page, nil
}

// GetOr404 returns the page at url or an error wrapping ErrNotFound.
func (w *Wiki) GetOr404(url string) (*Page, error) {
	page, err := w.Get(url)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	return page, nil
}

// GetBare returns a new unsaved page for url, or nil when a page already
// exists there, so callers can detect duplicates without error handling.
func (w *Wiki) GetBare(url string) *Page {
	if w.Exists(url) {
		return nil
	}
	return w.newPage(url)
}

// Move relocates a page file, creating destination directories as
// needed. Returns false without touching the filesystem when the source
// does not exist.
func (w *Wiki) Move(url, newurl string) (bool, error) {
	if !w.Exists(url) {
		return false, nil
	}
	from := w.PagePath(url)
	to := w.PagePath(newurl)
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return false, err
	}
	if err := os.Rename(from, to); err != nil {
		return false, err
	}
	if w.cache != nil {
		_ = w.cache.Delete(url)
	}
	return true, nil
}

// Delete removes a page file. Returns false and leaves the filesystem
// untouched when the page does not exist.
func (w *Wiki) Delete(url string) (bool, error) {
	if !w.Exists(url) {
		return false, nil
	}
	if err := os.Remove(w.PagePath(url)); err != nil {
		return false, err
	}
	if w.cache != nil {
		_ = w.cache.Delete(url)
	}
	return true, nil
}

// walk visits every page file under root, skipping reserved directories,
// and calls fn with the loaded, rendered page. Unreadable files are
// skipped with a warning.
func (w *Wiki) walk(fn func(*Page)) error {
	defaultExt := w.reg.Default().Extension()
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.root && w.reserved[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		url := filepath.ToSlash(rel)
		url = strings.TrimSuffix(url, defaultExt)

		page := NewPage(path, url, w.reg.ForPath(path), w.cache)
		if err := page.Load(""); err != nil {
			slog.Warn("skipping unreadable page", "path", path, "error", err)
			return nil
		}
		page.Render()
		fn(page)
		return nil
	})
}

// attr reads a named page attribute for sorting and search.
func attr(p *Page, name string) string {
	switch name {
	case "title":
		return p.Title()
	case "tags":
		return p.Tags()
	case "body":
		return p.Body
	case "url":
		return p.URL
	}
	return ""
}

// sortPages orders pages by the lower-cased sort attribute. Ties keep
// filesystem enumeration order.
func (w *Wiki) sortPages(pages []*Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		return strings.ToLower(attr(pages[i], w.sortAttr)) <
			strings.ToLower(attr(pages[j], w.sortAttr))
	})
}

// Index walks the tree and returns all pages sorted by lower-cased
// title. The walk is single-pass and repeated per call; no persistent
// index is kept.
func (w *Wiki) Index() ([]*Page, error) {
	var pages []*Page
	if err := w.walk(func(p *Page) { pages = append(pages, p) }); err != nil {
		return nil, err
	}
	w.sortPages(pages)
	return pages, nil
}

// IndexByAttr returns pages keyed by the given attribute. Key collisions
// are last-write-wins in enumeration order.
func (w *Wiki) IndexByAttr(name string) (map[string]*Page, error) {
	pages := make(map[string]*Page)
	if err := w.walk(func(p *Page) { pages[attr(p, name)] = p }); err != nil {
		return nil, err
	}
	return pages, nil
}

// GetByTitle returns the page with the given title, or nil.
func (w *Wiki) GetByTitle(title string) (*Page, error) {
	pages, err := w.IndexByAttr("title")
	if err != nil {
		return nil, err
	}
	return pages[title], nil
}

// GetTags groups pages by their comma-split, trimmed tag tokens. A page
// tagged "a, b" appears under both "a" and "b".
func (w *Wiki) GetTags() (map[string][]*Page, error) {
	pages, err := w.Index()
	if err != nil {
		return nil, err
	}
	tags := make(map[string][]*Page)
	for _, page := range pages {
		for _, tag := range page.TagList() {
			tags[tag] = append(tags[tag], page)
		}
	}
	return tags, nil
}

// IndexByTag returns the pages whose tag set contains tag
// (case-sensitive), sorted by lower-cased title.
func (w *Wiki) IndexByTag(tag string) ([]*Page, error) {
	pages, err := w.Index()
	if err != nil {
		return nil, err
	}
	var tagged []*Page
	for _, page := range pages {
		for _, t := range page.TagList() {
			if t == tag {
				tagged = append(tagged, page)
				break
			}
		}
	}
	return tagged, nil
}

// Search compiles term as a regular expression and returns pages where
// any of the given attributes match (default title, tags, body). A page
// matches at most once.
func (w *Wiki) Search(term string, attrs []string) ([]*Page, error) {
	re, err := regexp.Compile(term)
	if err != nil {
		return nil, fmt.Errorf("invalid search term: %w", err)
	}
	if len(attrs) == 0 {
		attrs = []string{"title", "tags", "body"}
	}
	pages, err := w.Index()
	if err != nil {
		return nil, err
	}
	var matched []*Page
	for _, page := range pages {
		for _, name := range attrs {
			if re.MatchString(attr(page, name)) {
				matched = append(matched, page)
				break
			}
		}
	}
	return matched, nil
}
