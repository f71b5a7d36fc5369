package vcs

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/sa/flatwiki/internal/util"
)

// GitBackend versions the content root as a git repository, created on
// first use if absent.
type GitBackend struct {
	root string
	repo *git.Repository
	mu   sync.Mutex
}

// NewGitBackend opens the repository at root, initializing one when
// none exists.
func NewGitBackend(root string) (*GitBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	repo, err := git.PlainOpen(abs)
	if err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("failed to open repository at '%s': %w", abs, err)
		}
		repo, err = git.PlainInit(abs, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize repository: %w", err)
		}
	}

	return &GitBackend{root: abs, repo: repo}, nil
}

// Root returns the repository path.
func (g *GitBackend) Root() string {
	return g.root
}

// CommitFile stages path and commits it with the given message and
// author. Failures are recorded in the result and logged, never
// propagated: the page save that triggered the commit still succeeds.
func (g *GitBackend) CommitFile(path, message string, author Author) CommitResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if message == "" {
		message = "Update " + path
	}
	if author.Name == "" {
		author = Anonymous
	}

	worktree, err := g.repo.Worktree()
	if err != nil {
		return g.failed(path, err)
	}

	status, err := worktree.Status()
	if err != nil {
		return g.failed(path, err)
	}
	fileStatus := status.File(path)
	if fileStatus.Staging == git.Unmodified && fileStatus.Worktree == git.Unmodified {
		return CommitResult{}
	}

	if _, err := worktree.Add(path); err != nil {
		return g.failed(path, err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return g.failed(path, err)
	}

	return CommitResult{Revision: hash.String()[:7]}
}

// failed logs a degraded versioning condition and wraps it in a result.
func (g *GitBackend) failed(path string, err error) CommitResult {
	slog.Warn("git commit failed, page saved without versioning", "path", path, "error", err)
	return CommitResult{Err: err}
}

// History returns the commit log for path, newest first, with
// per-revision insertion and deletion counts.
func (g *GitBackend) History(path string) ([]Revision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	iter, err := g.repo.Log(&git.LogOptions{
		Order: git.LogOrderCommitterTime,
		PathFilter: func(p string) bool {
			return p == path
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read log for %s: %w", path, err)
	}
	defer iter.Close()

	var history []Revision
	err = iter.ForEach(func(commit *object.Commit) error {
		rev := Revision{
			Commit:       commit.Hash.String()[:7],
			Author:       commit.Author.Name,
			Email:        commit.Author.Email,
			Date:         commit.Author.When,
			DateRelative: util.RelativeTime(commit.Author.When),
			Message:      strings.TrimSpace(commit.Message),
		}
		if stats, err := commit.Stats(); err == nil {
			for _, stat := range stats {
				if stat.Name == path {
					rev.Insertions = stat.Addition
					rev.Deletions = stat.Deletion
				}
			}
		}
		history = append(history, rev)
		return nil
	})
	if err != nil {
		return history, err
	}
	return history, nil
}

// Show returns the file content at a revision. A missing revision or
// repository error yields empty content; callers treat empty as not
// found.
func (g *GitBackend) Show(path, revision string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	hash, err := g.repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return ""
	}
	commit, err := g.repo.CommitObject(*hash)
	if err != nil {
		return ""
	}
	file, err := commit.File(path)
	if err != nil {
		return ""
	}
	content, err := file.Contents()
	if err != nil {
		return ""
	}
	return content
}

// Sync pulls from and pushes to the named remote. Failures are logged
// and swallowed; a wiki without a reachable remote keeps working.
func (g *GitBackend) Sync(remote string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if remote == "" {
		remote = "origin"
	}

	worktree, err := g.repo.Worktree()
	if err != nil {
		slog.Warn("git sync failed", "error", err)
		return nil
	}
	if err := worktree.Pull(&git.PullOptions{RemoteName: remote}); err != nil &&
		!errors.Is(err, git.NoErrAlreadyUpToDate) {
		slog.Warn("git pull failed", "remote", remote, "error", err)
	}
	if err := g.repo.Push(&git.PushOptions{RemoteName: remote}); err != nil &&
		!errors.Is(err, git.NoErrAlreadyUpToDate) {
		slog.Warn("git push failed", "remote", remote, "error", err)
	}
	return nil
}

var _ Backend = (*GitBackend)(nil)
