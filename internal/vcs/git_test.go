package vcs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestBackend(t *testing.T) (*GitBackend, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := NewGitBackend(dir)
	if err != nil {
		t.Fatalf("NewGitBackend: %v", err)
	}
	return backend, dir
}

func writeAndCommit(t *testing.T, b *GitBackend, dir, name, content, message string) CommitResult {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	result := b.CommitFile(name, message, Author{Name: "Test", Email: "test@example.com"})
	if !result.OK() {
		t.Fatalf("CommitFile: %v", result.Err)
	}
	return result
}

func TestCommitFile(t *testing.T) {
	backend, dir := newTestBackend(t)

	result := writeAndCommit(t, backend, dir, "page.md", "hello\n", "add page")
	if result.Revision == "" {
		t.Fatal("commit produced no revision")
	}
	if len(result.Revision) != 7 {
		t.Errorf("revision = %q, want a short hash", result.Revision)
	}
}

func TestCommitFileDefaults(t *testing.T) {
	backend, dir := newTestBackend(t)

	if err := os.WriteFile(filepath.Join(dir, "page.md"), []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	result := backend.CommitFile("page.md", "", Author{})
	if !result.OK() || result.Revision == "" {
		t.Fatalf("CommitFile with defaults: %+v", result)
	}

	history, err := backend.History("page.md")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if history[0].Message != "Update page.md" {
		t.Errorf("default message = %q", history[0].Message)
	}
	if history[0].Author != Anonymous.Name {
		t.Errorf("default author = %q", history[0].Author)
	}
}

func TestCommitFileUnchangedIsNoop(t *testing.T) {
	backend, dir := newTestBackend(t)
	writeAndCommit(t, backend, dir, "page.md", "same\n", "add")

	result := backend.CommitFile("page.md", "again", Author{Name: "T"})
	if !result.OK() {
		t.Fatalf("noop commit errored: %v", result.Err)
	}
	if result.Revision != "" {
		t.Errorf("unchanged file produced revision %q", result.Revision)
	}

	history, err := backend.History("page.md")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history has %d entries, want 1", len(history))
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	backend, dir := newTestBackend(t)
	writeAndCommit(t, backend, dir, "page.md", "one\n", "first")
	second := writeAndCommit(t, backend, dir, "page.md", "one\ntwo\n", "second")

	history, err := backend.History("page.md")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d entries, want 2", len(history))
	}
	if history[0].Commit != second.Revision {
		t.Errorf("history[0] = %q, want the latest commit %q", history[0].Commit, second.Revision)
	}
	if history[0].Message != "second" || history[1].Message != "first" {
		t.Errorf("messages = %q, %q", history[0].Message, history[1].Message)
	}
	if history[0].Insertions != 1 {
		t.Errorf("insertions = %d, want 1", history[0].Insertions)
	}
	if history[0].DateRelative == "" {
		t.Error("DateRelative is empty")
	}
}

func TestHistoryFiltersOtherFiles(t *testing.T) {
	backend, dir := newTestBackend(t)
	writeAndCommit(t, backend, dir, "a.md", "a\n", "add a")
	writeAndCommit(t, backend, dir, "b.md", "b\n", "add b")

	history, err := backend.History("a.md")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].Message != "add a" {
		t.Errorf("history = %+v", history)
	}
}

func TestShow(t *testing.T) {
	backend, dir := newTestBackend(t)
	first := writeAndCommit(t, backend, dir, "page.md", "version one\n", "v1")
	writeAndCommit(t, backend, dir, "page.md", "version two\n", "v2")

	if got := backend.Show("page.md", first.Revision); got != "version one\n" {
		t.Errorf("Show = %q", got)
	}
	if got := backend.Show("page.md", "0000000"); got != "" {
		t.Errorf("Show of a bogus revision = %q, want empty", got)
	}
	if got := backend.Show("nope.md", first.Revision); got != "" {
		t.Errorf("Show of a missing file = %q, want empty", got)
	}
}

func TestDiff(t *testing.T) {
	backend, dir := newTestBackend(t)
	first := writeAndCommit(t, backend, dir, "page.md", "alpha\n", "v1")
	second := writeAndCommit(t, backend, dir, "page.md", "alpha\nbeta\n", "v2")

	d := Diff(backend, "page.md", first.Revision, second.Revision)
	if d.Old != "alpha\n" || d.New != "alpha\nbeta\n" {
		t.Errorf("contents: old=%q new=%q", d.Old, d.New)
	}
	if !strings.Contains(d.HTML, "beta") {
		t.Errorf("diff html does not mention the change: %q", d.HTML)
	}
	if d.Unified == "" {
		t.Error("unified patch is empty")
	}
}

func TestDiffDefaultsToLatestPair(t *testing.T) {
	backend, dir := newTestBackend(t)
	first := writeAndCommit(t, backend, dir, "page.md", "alpha\n", "v1")
	second := writeAndCommit(t, backend, dir, "page.md", "beta\n", "v2")

	d := Diff(backend, "page.md", "", "")
	if d.NewRev != second.Revision || d.OldRev != first.Revision {
		t.Errorf("resolved revisions: old=%q new=%q", d.OldRev, d.NewRev)
	}
}

func TestDiffSingleRevision(t *testing.T) {
	backend, dir := newTestBackend(t)
	only := writeAndCommit(t, backend, dir, "page.md", "alpha\n", "v1")

	// One revision diffs against empty content.
	d := Diff(backend, "page.md", "", "")
	if d.NewRev != only.Revision || d.OldRev != "" {
		t.Errorf("resolved revisions: old=%q new=%q", d.OldRev, d.NewRev)
	}
	if d.Old != "" || d.New != "alpha\n" {
		t.Errorf("contents: old=%q new=%q", d.Old, d.New)
	}
}

func TestCommitResultOK(t *testing.T) {
	if !(CommitResult{Revision: "abc"}).OK() {
		t.Error("result with revision should be OK")
	}
	if (CommitResult{Err: os.ErrPermission}).OK() {
		t.Error("result with error should not be OK")
	}
}
