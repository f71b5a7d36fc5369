package wiki

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPagePath(t *testing.T) {
	w, dir := newTestWiki(t)

	if got := w.PagePath("home"); got != filepath.Join(dir, "home.md") {
		t.Errorf("PagePath(home) = %q", got)
	}
	if got := w.PagePath("docs/intro"); got != filepath.Join(dir, "docs", "intro.md") {
		t.Errorf("PagePath(docs/intro) = %q", got)
	}
	// URLs carrying an extension address the file verbatim.
	if got := w.PagePath("main.py"); got != filepath.Join(dir, "main.py") {
		t.Errorf("PagePath(main.py) = %q", got)
	}
}

func TestGetMissingPage(t *testing.T) {
	w, _ := newTestWiki(t)

	page, err := w.Get("nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if page != nil {
		t.Error("Get should return nil for a missing page")
	}

	if _, err := w.GetOr404("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetOr404 error = %v, want ErrNotFound", err)
	}
}

func TestGetBare(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "taken.md", "title: Taken\n\nx\n")

	if w.GetBare("taken") != nil {
		t.Error("GetBare should return nil when the page exists")
	}
	page := w.GetBare("free")
	if page == nil {
		t.Fatal("GetBare returned nil for a free URL")
	}
	if page.URL != "free" {
		t.Errorf("URL = %q", page.URL)
	}
}

func TestValidateURL(t *testing.T) {
	w, _ := newTestWiki(t)

	for _, url := range []string{"home", "docs/intro", "a/b/c"} {
		if err := w.ValidateURL(url); err != nil {
			t.Errorf("ValidateURL(%q) = %v", url, err)
		}
	}

	var forbidden *ForbiddenURLError
	err := w.ValidateURL("user/profile")
	if !errors.As(err, &forbidden) {
		t.Fatalf("ValidateURL(user/profile) = %v", err)
	}
	if forbidden.InvalidPart != "user" {
		t.Errorf("InvalidPart = %q", forbidden.InvalidPart)
	}
	if forbidden.Redirect() != "/user" {
		t.Errorf("Redirect = %q", forbidden.Redirect())
	}

	err = w.ValidateURL("docs/_edit/page")
	if !errors.As(err, &forbidden) {
		t.Fatalf("ValidateURL(docs/_edit/page) = %v", err)
	}
	if forbidden.InvalidPart != "_edit" {
		t.Errorf("InvalidPart = %q", forbidden.InvalidPart)
	}
	if forbidden.Redirect() != "/docs/" {
		t.Errorf("Redirect = %q", forbidden.Redirect())
	}
}

func TestMove(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "old.md", "title: Old\n\nx\n")

	moved, err := w.Move("old", "area/new")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if !moved {
		t.Fatal("Move reported false for an existing page")
	}
	if w.Exists("old") {
		t.Error("source still exists after move")
	}
	if !w.Exists("area/new") {
		t.Error("destination missing after move")
	}

	moved, err = w.Move("old", "elsewhere")
	if err != nil || moved {
		t.Errorf("moving a missing page = (%v, %v), want (false, nil)", moved, err)
	}
}

func TestDelete(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "gone.md", "title: Gone\n\nx\n")

	deleted, err := w.Delete("gone")
	if err != nil || !deleted {
		t.Fatalf("Delete = (%v, %v)", deleted, err)
	}
	if w.Exists("gone") {
		t.Error("page still exists after delete")
	}

	deleted, err = w.Delete("gone")
	if err != nil || deleted {
		t.Errorf("deleting a missing page = (%v, %v), want (false, nil)", deleted, err)
	}
}

func TestIndexSortedByTitle(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "b.md", "title: Zebra\n\nx\n")
	writeFile(t, dir, "a.md", "title: apple\n\nx\n")
	writeFile(t, dir, "c.md", "title: Mango\n\nx\n")

	pages, err := w.Index()
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages", len(pages))
	}
	// Ordering compares lower-cased titles.
	want := []string{"apple", "Mango", "Zebra"}
	for i, title := range want {
		if pages[i].Title() != title {
			t.Errorf("pages[%d].Title = %q, want %q", i, pages[i].Title(), title)
		}
	}
}

func TestIndexSkipsReservedDirs(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "visible.md", "title: V\n\nx\n")
	writeFile(t, dir, "cache/hidden.md", "title: H\n\nx\n")
	writeFile(t, dir, ".git/config.md", "title: G\n\nx\n")

	pages, err := w.Index()
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(pages) != 1 || pages[0].URL != "visible" {
		t.Errorf("Index = %v pages", len(pages))
	}
}

func TestIndexStripsDefaultExtension(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "docs/intro.md", "title: I\n\nx\n")
	writeFile(t, dir, "script.py", "print()\n")

	pages, err := w.Index()
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	urls := map[string]bool{}
	for _, p := range pages {
		urls[p.URL] = true
	}
	if !urls["docs/intro"] {
		t.Error("default extension not stripped from URL")
	}
	if !urls["script.py"] {
		t.Error("non-default extension should stay in the URL")
	}
}

func TestGetByTitle(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "x.md", "title: Findable\n\nx\n")

	page, err := w.GetByTitle("Findable")
	if err != nil {
		t.Fatalf("GetByTitle: %v", err)
	}
	if page == nil || page.URL != "x" {
		t.Errorf("GetByTitle = %v", page)
	}

	missing, err := w.GetByTitle("Nope")
	if err != nil || missing != nil {
		t.Errorf("GetByTitle(Nope) = (%v, %v)", missing, err)
	}
}

func TestGetTags(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "a.md", "title: A\ntags: go, wiki\n\nx\n")
	writeFile(t, dir, "b.md", "title: B\ntags: go\n\nx\n")

	tags, err := w.GetTags()
	if err != nil {
		t.Fatalf("GetTags: %v", err)
	}
	if len(tags["go"]) != 2 {
		t.Errorf("go pages = %d, want 2", len(tags["go"]))
	}
	if len(tags["wiki"]) != 1 {
		t.Errorf("wiki pages = %d, want 1", len(tags["wiki"]))
	}
}

func TestIndexByTagExactToken(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "a.md", "title: A\ntags: go\n\nx\n")
	writeFile(t, dir, "b.md", "title: B\ntags: golang\n\nx\n")

	pages, err := w.IndexByTag("go")
	if err != nil {
		t.Fatalf("IndexByTag: %v", err)
	}
	// Tag membership is exact: "golang" does not contain the tag "go".
	if len(pages) != 1 || pages[0].URL != "a" {
		t.Errorf("IndexByTag(go) matched %d pages", len(pages))
	}
}

func TestSearch(t *testing.T) {
	w, dir := newTestWiki(t)
	writeFile(t, dir, "a.md", "title: Alpha\ntags: greek\n\nnothing here\n")
	writeFile(t, dir, "b.md", "title: Beta\n\nmentions alpha particles\n")
	writeFile(t, dir, "c.md", "title: Gamma\n\nunrelated\n")

	pages, err := w.Search("(?i)alpha", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// A page matching several attributes appears once.
	if len(pages) != 2 {
		t.Fatalf("Search matched %d pages, want 2", len(pages))
	}

	pages, err = w.Search("greek", []string{"tags"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(pages) != 1 || pages[0].URL != "a" {
		t.Errorf("tag-scoped search matched %d pages", len(pages))
	}

	if _, err := w.Search("([unclosed", nil); err == nil {
		t.Error("invalid regexp should be an error")
	}
}

func TestCreateThenGetEndToEnd(t *testing.T) {
	w, _ := newTestWiki(t)

	page := w.GetBare("journal/2026")
	page.SetTitle("Journal 2026")
	page.SetTags("journal")
	page.Body = "# Year notes\n"
	if err := page.Save(true); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(w.PagePath("journal/2026")); err != nil {
		t.Fatalf("page file missing: %v", err)
	}

	got, err := w.GetOr404("journal/2026")
	if err != nil {
		t.Fatalf("GetOr404: %v", err)
	}
	if got.Title() != "Journal 2026" || got.TagList()[0] != "journal" {
		t.Errorf("reloaded page: title=%q tags=%v", got.Title(), got.TagList())
	}
}
