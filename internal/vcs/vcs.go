// Package vcs adapts an external version-control system to commit, log,
// diff, and restore page revisions. Versioning failures are degraded,
// non-fatal conditions: a page save succeeds even when the commit behind
// it does not.
package vcs

import (
	"log/slog"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Author identifies who a commit is attributed to.
type Author struct {
	Name  string
	Email string
}

// Anonymous is the fallback identity when no authenticated user is
// available.
var Anonymous = Author{Name: "flatwiki", Email: "flatwiki@localhost"}

// Revision is one historical commit of a single page file, identified
// by an opaque short hash. Histories are ordered newest first.
type Revision struct {
	Commit       string
	Author       string
	Email        string
	Date         time.Time
	DateRelative string
	Message      string
	Insertions   int
	Deletions    int
}

// CommitResult records the outcome of a commit attempt. A failed commit
// is loggable but never fatal to the save that triggered it.
type CommitResult struct {
	Revision string
	Err      error
}

// OK reports whether the commit succeeded.
func (r CommitResult) OK() bool {
	return r.Err == nil
}

// Backend is the contract a version-control tool must satisfy: stage
// and commit one file, log its history, and show its content at a
// revision. Sync pulls and pushes against a remote where the tool
// supports it.
type Backend interface {
	CommitFile(path, message string, author Author) CommitResult
	History(path string) ([]Revision, error)
	Show(path, revision string) string
	Sync(remote string) error
}

// PageDiff holds the contents of a page at two revisions and the
// computed difference between them.
type PageDiff struct {
	OldRev  string
	NewRev  string
	Old     string
	New     string
	Unified string
	HTML    string
}

// Diff resolves the revision pair and fetches both contents. When not
// given, new defaults to the most recent revision and old to the one
// immediately prior; a page with a single revision diffs against empty
// content. Missing revisions or tool errors yield empty content rather
// than an error.
func Diff(b Backend, path, oldRev, newRev string) PageDiff {
	if oldRev == "" || newRev == "" {
		history, err := b.History(path)
		if err != nil {
			slog.Warn("failed to resolve diff revisions", "path", path, "error", err)
		}
		if newRev == "" && len(history) > 0 {
			newRev = history[0].Commit
		}
		if oldRev == "" && len(history) > 1 {
			oldRev = history[1].Commit
		}
	}

	d := PageDiff{OldRev: oldRev, NewRev: newRev}
	if newRev != "" {
		d.New = b.Show(path, newRev)
	}
	if oldRev != "" {
		d.Old = b.Show(path, oldRev)
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(d.Old, d.New, true)
	diffs = dmp.DiffCleanupSemantic(diffs)
	d.HTML = dmp.DiffPrettyHtml(diffs)
	d.Unified = dmp.PatchToText(dmp.PatchMake(d.Old, diffs))
	return d
}
