// Package handlers provides the HTTP glue over the wiki core. The
// handlers stay thin: they resolve pages through the repository, run
// the extension hooks, and emit minimal HTML.
package handlers

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"github.com/sa/flatwiki/internal/config"
	"github.com/sa/flatwiki/internal/hooks"
	"github.com/sa/flatwiki/internal/users"
	"github.com/sa/flatwiki/internal/vcs"
	"github.com/sa/flatwiki/internal/wiki"
)

const sessionName = "flatwiki"

// Server bundles the wiki core and its collaborators for the HTTP layer.
type Server struct {
	cfg      *config.Config
	wiki     *wiki.Wiki
	users    *users.Manager
	hooks    *hooks.Hooks
	backend  vcs.Backend
	sessions *sessions.CookieStore
}

// NewServer creates a Server. backend may be nil for an unversioned
// deployment.
func NewServer(cfg *config.Config, w *wiki.Wiki, um *users.Manager, hk *hooks.Hooks, backend vcs.Backend) *Server {
	return &Server{
		cfg:      cfg,
		wiki:     w,
		users:    um,
		hooks:    hk,
		backend:  backend,
		sessions: sessions.NewCookieStore([]byte(cfg.SecretKey)),
	}
}

// Backend returns the version-control backend, or nil.
func (s *Server) Backend() vcs.Backend {
	return s.backend
}

// Routes builds the router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/", s.protect(false, s.home))
	r.Get("/index/", s.protect(false, s.index))
	r.Get("/tags/", s.protect(false, s.tags))
	r.Get("/tag/{name}/", s.protect(false, s.tag))
	r.Get("/search/", s.protect(false, s.search))
	r.Post("/search/", s.protect(false, s.search))
	r.Get("/create/", s.protect(true, s.create))
	r.Post("/create/", s.protect(true, s.create))
	r.Get("/user/login/", s.login)
	r.Post("/user/login/", s.login)
	r.Get("/user/logout/", s.logout)
	r.HandleFunc("/*", s.dispatch)

	return r
}

// currentUser resolves the logged-in user from the session, or nil.
func (s *Server) currentUser(r *http.Request) *users.User {
	session, err := s.sessions.Get(r, sessionName)
	if err != nil {
		return nil
	}
	name, ok := session.Values["user"].(string)
	if !ok || name == "" {
		return nil
	}
	user, err := s.users.GetUser(name)
	if err != nil {
		slog.Warn("failed to load session user", "user", name, "error", err)
		return nil
	}
	return user
}

// canAccess applies the configured permission level.
func (s *Server) canAccess(r *http.Request, modify bool) bool {
	switch s.cfg.Permissions {
	case config.PermissionsProtected:
		if modify {
			return s.currentUser(r) != nil
		}
		return true
	case config.PermissionsSecure, config.PermissionsPrivate:
		return s.currentUser(r) != nil
	}
	return true
}

// protect guards a handler behind the permission level. modify marks
// handlers that change wiki content.
func (s *Server) protect(modify bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.canAccess(r, modify) {
			http.Redirect(w, r, "/user/login/?next="+r.URL.Path, http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// flash queues a one-shot message for the next rendered view.
func (s *Server) flash(w http.ResponseWriter, r *http.Request, msg string) {
	session, err := s.sessions.Get(r, sessionName)
	if err != nil {
		return
	}
	session.AddFlash(msg)
	if err := session.Save(r, w); err != nil {
		slog.Warn("failed to save session", "error", err)
	}
}

// flashes drains queued messages.
func (s *Server) flashes(w http.ResponseWriter, r *http.Request) []string {
	session, err := s.sessions.Get(r, sessionName)
	if err != nil {
		return nil
	}
	var msgs []string
	for _, f := range session.Flashes() {
		if m, ok := f.(string); ok {
			msgs = append(msgs, m)
		}
	}
	_ = session.Save(r, w)
	return msgs
}

var layoutTmpl = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}} - {{.SiteName}}</title></head>
<body>
<nav>
<a href="/">home</a>
<a href="/index/">index</a>
<a href="/tags/">tags</a>
<a href="/search/">search</a>
<a href="/create/">new page</a>
{{- range .Actions}}
<a href="{{.URL}}">{{.Label}}</a>
{{- end}}
</nav>
{{- range .Flashes}}
<p class="flash">{{.}}</p>
{{- end}}
<main>
{{.Body}}
</main>
</body>
</html>
`))

type view struct {
	Title    string
	SiteName string
	Actions  []hooks.Action
	Flashes  []string
	Body     template.HTML
}

// render writes the layout around a pre-built body fragment.
func (s *Server) render(w http.ResponseWriter, r *http.Request, title string, actions []hooks.Action, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	v := view{
		Title:    title,
		SiteName: s.cfg.SiteName,
		Actions:  actions,
		Flashes:  s.flashes(w, r),
		Body:     template.HTML(body),
	}
	if err := layoutTmpl.Execute(w, v); err != nil {
		slog.Warn("failed to render view", "title", title, "error", err)
	}
}

// notFound writes a 404 response.
func (s *Server) notFound(w http.ResponseWriter, what string) {
	http.Error(w, fmt.Sprintf("%s not found", what), http.StatusNotFound)
}

func esc(s string) string {
	return template.HTMLEscapeString(s)
}
