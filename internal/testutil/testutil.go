// Package testutil provides shared test setup for flatwiki tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/sa/flatwiki/internal/cache"
	"github.com/sa/flatwiki/internal/config"
	"github.com/sa/flatwiki/internal/handlers"
	"github.com/sa/flatwiki/internal/hooks"
	"github.com/sa/flatwiki/internal/markup"
	"github.com/sa/flatwiki/internal/users"
	"github.com/sa/flatwiki/internal/vcs"
	"github.com/sa/flatwiki/internal/wiki"
)

// TestEnv bundles all test dependencies.
type TestEnv struct {
	Config  *config.Config
	Wiki    *wiki.Wiki
	Cache   cache.Cache
	Users   *users.Manager
	Hooks   *hooks.Hooks
	Server  *handlers.Server
	Router  chi.Router
	Backend vcs.Backend
	TmpDir  string
}

// SetupTestEnv creates a fully wired environment over a temp content
// directory with the default markup registry, an in-memory render
// cache, public permissions, and no version-control backend. Pass
// WithGit to get a git-backed content directory.
func SetupTestEnv(t *testing.T, opts ...Option) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()

	cfg := config.Default()
	cfg.SecretKey = "test-secret-key-1234567890"
	cfg.ContentDir = tmpDir
	cfg.Permissions = config.PermissionsPublic
	cfg.VCS = ""

	env := &TestEnv{Config: cfg, TmpDir: tmpDir}
	for _, opt := range opts {
		opt(t, env)
	}

	env.Cache = cache.NewMemory()
	env.Wiki = wiki.New(tmpDir, markup.DefaultRegistry(markup.Options{}), env.Cache, cfg)
	env.Users = users.NewManager(tmpDir, users.AuthHash)
	env.Hooks = hooks.New()
	env.Server = handlers.NewServer(cfg, env.Wiki, env.Users, env.Hooks, env.Backend)
	env.Router = env.Server.Routes()

	return env
}

// Option adjusts the environment before wiring.
type Option func(*testing.T, *TestEnv)

// WithGit initializes a git repository in the content directory and
// installs it as the version-control backend.
func WithGit() Option {
	return func(t *testing.T, env *TestEnv) {
		t.Helper()
		backend, err := vcs.NewGitBackend(env.TmpDir)
		if err != nil {
			t.Fatalf("failed to create git backend: %v", err)
		}
		env.Backend = backend
		env.Config.VCS = "git"
	}
}

// WritePage writes a raw page file under the content directory and
// returns its absolute path.
func WritePage(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create page directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write page file: %v", err)
	}
	return path
}
