package vcs

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sa/flatwiki/internal/util"
)

const hgLogTemplate = "{node|short}\x1f{author|person}\x1f{author|email}\x1f{date|rfc3339date}\x1f{desc|firstline}\x1e"

var (
	insertionRe = regexp.MustCompile(`(\d+) insertions?\(\+\)`)
	deletionRe  = regexp.MustCompile(`(\d+) deletions?\(-\)`)
)

// HgBackend versions the content root by driving the mercurial binary
// as a blocking subprocess.
type HgBackend struct {
	root string
	bin  string
}

// NewHgBackend prepares a mercurial repository at root, running hg init
// when no repository exists. A missing or broken hg binary degrades the
// backend rather than failing it.
func NewHgBackend(root string) *HgBackend {
	h := &HgBackend{root: root, bin: "hg"}
	if _, err := os.Stat(filepath.Join(root, ".hg")); os.IsNotExist(err) {
		if _, err := h.run("init"); err != nil {
			slog.Warn("hg init failed", "root", root, "error", err)
		}
	}
	return h
}

// run executes one hg command in the repository directory.
func (h *HgBackend) run(args ...string) (string, error) {
	cmd := exec.Command(h.bin, args...)
	cmd.Dir = h.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("hg %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// CommitFile stages and commits path. Tool failures are swallowed into
// the result; the page save still succeeds.
func (h *HgBackend) CommitFile(path, message string, author Author) CommitResult {
	if message == "" {
		message = "Update " + path
	}
	if author.Name == "" {
		author = Anonymous
	}
	user := author.Name
	if author.Email != "" {
		user = fmt.Sprintf("%s <%s>", author.Name, author.Email)
	}

	if _, err := h.run("addremove", path); err != nil {
		slog.Warn("hg addremove failed, page saved without versioning", "path", path, "error", err)
		return CommitResult{Err: err}
	}
	if _, err := h.run("commit", "-m", message, "-u", user, path); err != nil {
		slog.Warn("hg commit failed, page saved without versioning", "path", path, "error", err)
		return CommitResult{Err: err}
	}

	rev, err := h.run("log", "-l", "1", "--template", "{node|short}")
	if err != nil {
		return CommitResult{}
	}
	return CommitResult{Revision: strings.TrimSpace(rev)}
}

// History returns the commit log for path, newest first. Insertion and
// deletion counts are parsed from the tool's stat summary per revision.
func (h *HgBackend) History(path string) ([]Revision, error) {
	out, err := h.run("log", "--template", hgLogTemplate, path)
	if err != nil {
		return nil, err
	}

	var history []Revision
	for _, record := range strings.Split(out, "\x1e") {
		if strings.TrimSpace(record) == "" {
			continue
		}
		fields := strings.Split(record, "\x1f")
		if len(fields) < 5 {
			continue
		}
		rev := Revision{
			Commit:  fields[0],
			Author:  fields[1],
			Email:   fields[2],
			Message: fields[4],
		}
		if date, err := time.Parse(time.RFC3339, fields[3]); err == nil {
			rev.Date = date
			rev.DateRelative = util.RelativeTime(date)
		}
		rev.Insertions, rev.Deletions = h.stat(rev.Commit, path)
		history = append(history, rev)
	}
	return history, nil
}

// stat parses the insertion/deletion summary for one revision of path.
func (h *HgBackend) stat(revision, path string) (int, int) {
	out, err := h.run("diff", "--stat", "-c", revision, "--", path)
	if err != nil {
		return 0, 0
	}
	var insertions, deletions int
	if m := insertionRe.FindStringSubmatch(out); m != nil {
		insertions, _ = strconv.Atoi(m[1])
	}
	if m := deletionRe.FindStringSubmatch(out); m != nil {
		deletions, _ = strconv.Atoi(m[1])
	}
	return insertions, deletions
}

// Show returns the file content at a revision, or "" when the revision
// is missing or the tool fails.
func (h *HgBackend) Show(path, revision string) string {
	out, err := h.run("cat", "-r", revision, path)
	if err != nil {
		return ""
	}
	return out
}

// Sync runs pull, update, addremove, commit, and push against the
// remote. Each step's failure is logged and swallowed so a partial sync
// never takes the wiki down.
func (h *HgBackend) Sync(remote string) error {
	steps := [][]string{
		{"pull", remote},
		{"update", "tip"},
		{"addremove"},
		{"commit", "-m", "Autocommit of flatwiki sync", "-u", Anonymous.Name},
		{"push", remote},
	}
	for _, step := range steps {
		if _, err := h.run(step...); err != nil {
			slog.Warn("hg sync step failed", "step", step[0], "error", err)
		}
	}
	return nil
}

var _ Backend = (*HgBackend)(nil)
