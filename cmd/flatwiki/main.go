// Package main provides the entry point for flatwiki.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sa/flatwiki/internal/cache"
	"github.com/sa/flatwiki/internal/config"
	"github.com/sa/flatwiki/internal/handlers"
	"github.com/sa/flatwiki/internal/hooks"
	"github.com/sa/flatwiki/internal/markup"
	"github.com/sa/flatwiki/internal/users"
	"github.com/sa/flatwiki/internal/vcs"
	"github.com/sa/flatwiki/internal/wiki"
)

// Version is set at build time.
var Version = "dev"

// initLogger configures the default slog logger based on config.
func initLogger(cfg *config.Config) {
	var level slog.Level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// fatal logs an error message and exits the process.
func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

func main() {
	host := flag.String("host", "", "Host/IP to bind to (default: all interfaces)")
	port := flag.Int("port", 8080, "HTTP server port")
	contentDir := flag.String("content", "", "Path to the wiki content directory")
	addUser := flag.String("adduser", "", "Add a user as name:password and exit")
	doSync := flag.Bool("sync", false, "Sync the content repository with its remote and exit")
	flag.Parse()

	cfg := config.Load()
	initLogger(cfg)

	if *contentDir != "" {
		cfg.ContentDir = *contentDir
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 8080 {
		cfg.Port = *port
	}

	if cfg.ContentDir != "" {
		if _, err := os.Stat(cfg.ContentDir); os.IsNotExist(err) {
			slog.Info("creating content directory", "path", cfg.ContentDir)
			if err := os.MkdirAll(cfg.ContentDir, 0o755); err != nil {
				fatal("failed to create content directory", "error", err)
			}
		}
	}

	if cfg.Debug {
		slog.Warn("DEBUG is enabled, do NOT use in production")
		if cfg.SecretKey == "CHANGE ME" || len(cfg.SecretKey) < 16 {
			cfg.SecretKey = "debug-insecure-key-not-for-production"
			slog.Warn("using auto-generated development secret key")
		}
	}

	if err := cfg.Validate(); err != nil {
		fatal("configuration error", "error", err)
	}

	slog.Info("starting flatwiki", "version", Version)

	// Version-control backend per config; an empty VCS disables
	// versioning entirely.
	var backend vcs.Backend
	switch cfg.VCS {
	case "git":
		git, err := vcs.NewGitBackend(cfg.ContentDir)
		if err != nil {
			fatal("failed to initialize git backend", "error", err)
		}
		backend = git
	case "hg":
		backend = vcs.NewHgBackend(cfg.ContentDir)
	}

	if *doSync {
		if backend == nil {
			fatal("cannot sync without a configured VCS")
		}
		if err := backend.Sync(cfg.HgRemote); err != nil {
			fatal("sync failed", "error", err)
		}
		slog.Info("sync finished")
		return
	}

	userManager := users.NewManager(cfg.ContentDir, cfg.DefaultAuthenticationMethod)
	if *addUser != "" {
		name, password, ok := strings.Cut(*addUser, ":")
		if !ok || name == "" || password == "" {
			fatal("adduser wants name:password")
		}
		if _, err := userManager.AddUser(name, password, name, ""); err != nil {
			fatal("failed to add user", "user", name, "error", err)
		}
		slog.Info("user added", "user", name)
		return
	}

	renderCache, err := openCache(cfg)
	if err != nil {
		fatal("failed to open render cache", "error", err)
	}
	defer renderCache.Close()

	registry := buildRegistry(cfg)
	wk := wiki.New(cfg.ContentDir, registry, renderCache, cfg)

	hk := hooks.New()
	registerHooks(hk, wk, backend)

	if !wk.Exists("home") {
		createHomePage(wk)
	}

	server := handlers.NewServer(cfg, wk, userManager, hk, backend)
	router := server.Routes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		displayHost := cfg.Host
		if displayHost == "" {
			displayHost = "localhost"
		}
		slog.Info("server listening", "address", fmt.Sprintf("http://%s:%d", displayHost, cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("received signal, shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// openCache builds the render cache: SQLite at CACHE_URI when set,
// otherwise a SQLite file in the reserved cache directory.
func openCache(cfg *config.Config) (cache.Cache, error) {
	uri := cfg.CacheURI
	if uri == "memory" {
		return cache.NewMemory(), nil
	}
	if uri == "" {
		dir := filepath.Join(cfg.ContentDir, "cache")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		uri = filepath.Join(dir, "render.db")
	}
	return cache.OpenSQLite(uri)
}

// buildRegistry creates the markup registry with the configured default
// variant for new pages.
func buildRegistry(cfg *config.Config) *markup.Registry {
	opts := markup.Options{RSTTool: cfg.Rst2HTMLBin}
	if strings.ToLower(cfg.Markup) == "restructuredtext" {
		rst := markup.NewRestructuredText(cfg.Rst2HTMLBin)
		r := markup.NewRegistry(rst)
		r.Register(rst, ".rst")
		r.Register(markup.NewMarkdown(), ".md", ".mdwn")
		r.Register(markup.Plaintext{}, ".txt")
		return r
	}
	return markup.DefaultRegistry(opts)
}

// registerHooks wires the stock extensions: commit on save, and the
// history and pdf actions on display.
func registerHooks(hk *hooks.Hooks, wk *wiki.Wiki, backend vcs.Backend) {
	if backend != nil {
		hk.OnPageSaved(func(ctx *hooks.Context) {
			author := vcs.Anonymous
			if ctx.User != nil {
				name := ctx.User.FullName
				if name == "" {
					name = ctx.User.Name
				}
				author = vcs.Author{Name: name, Email: ctx.User.Email}
			}
			result := backend.CommitFile(wk.RelPath(ctx.URL), ctx.Message, author)
			if result.OK() && result.Revision != "" {
				slog.Info("page committed", "url", ctx.URL, "revision", result.Revision)
			}
		})
		hk.OnPreDisplay(func(ctx *hooks.Context) {
			ctx.AddAction("history", "/"+ctx.URL+"/_history")
		})
	}
	hk.OnPreDisplay(func(ctx *hooks.Context) {
		if ctx.Page != nil && ctx.Page.Markup.Name() == "restructuredtext" {
			ctx.AddAction("pdf", "/"+ctx.URL+"/_pdf")
		}
	})
}

// createHomePage seeds an empty wiki with a starting page.
func createHomePage(wk *wiki.Wiki) {
	page := wk.GetBare("home")
	if page == nil {
		return
	}
	page.SetTitle("Home")
	page.Body = `Welcome to your new wiki.

Edit this page, or create new ones from the "new page" link above.
`
	if err := page.Save(false); err != nil {
		slog.Warn("failed to create initial home page", "error", err)
	}
}
