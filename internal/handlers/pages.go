package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sa/flatwiki/internal/hooks"
	"github.com/sa/flatwiki/internal/util"
	"github.com/sa/flatwiki/internal/wiki"
)

// dispatch routes the catch-all page space. An underscore-prefixed
// segment splits the path into page URL, operation, and arguments;
// without one the whole path is a page URL to display.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	raw := strings.Trim(r.URL.Path, "/")
	if raw == "" {
		s.home(w, r)
		return
	}

	segments := strings.Split(raw, "/")
	op, opIdx := "", -1
	for i, seg := range segments {
		if strings.HasPrefix(seg, "_") {
			op, opIdx = seg, i
			break
		}
	}
	if opIdx < 0 {
		s.protect(false, func(w http.ResponseWriter, r *http.Request) {
			s.display(w, r, raw)
		})(w, r)
		return
	}

	url := strings.Join(segments[:opIdx], "/")
	args := segments[opIdx+1:]

	var modify bool
	var handler func(http.ResponseWriter, *http.Request)
	switch op {
	case "_edit":
		modify = true
		handler = func(w http.ResponseWriter, r *http.Request) { s.edit(w, r, url) }
	case "_preview":
		modify = true
		handler = func(w http.ResponseWriter, r *http.Request) { s.preview(w, r, url) }
	case "_move":
		modify = true
		handler = func(w http.ResponseWriter, r *http.Request) { s.move(w, r, url) }
	case "_delete":
		modify = true
		handler = func(w http.ResponseWriter, r *http.Request) { s.deletePage(w, r, url) }
	case "_history":
		handler = func(w http.ResponseWriter, r *http.Request) { s.history(w, r, url) }
	case "_version":
		handler = func(w http.ResponseWriter, r *http.Request) { s.version(w, r, url, args) }
	case "_diff":
		handler = func(w http.ResponseWriter, r *http.Request) { s.diff(w, r, url, args) }
	case "_pdf":
		handler = func(w http.ResponseWriter, r *http.Request) { s.pdf(w, r, url) }
	default:
		s.notFound(w, "page")
		return
	}
	s.protect(modify, handler)(w, r)
}

// home displays the wiki front page.
func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	s.protect(false, func(w http.ResponseWriter, r *http.Request) {
		s.display(w, r, "home")
	})(w, r)
}

// display renders a page, or sends the visitor to the edit form when it
// does not exist yet. Raw pages are served verbatim from disk.
func (s *Server) display(w http.ResponseWriter, r *http.Request, url string) {
	page, err := s.wiki.Get(url)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if page == nil {
		var forbidden *wiki.ForbiddenURLError
		if err := s.wiki.ValidateURL(url); errors.As(err, &forbidden) {
			s.flash(w, r, err.Error())
			http.Redirect(w, r, forbidden.Redirect(), http.StatusSeeOther)
			return
		}
		s.flash(w, r, "This page doesn't exist yet. Want to create it?")
		http.Redirect(w, r, "/"+url+"/_edit", http.StatusSeeOther)
		return
	}
	if page.IsRaw() {
		http.ServeFile(w, r, page.Path)
		return
	}

	ctx := &hooks.Context{Page: page, URL: url, User: s.currentUser(r)}
	s.hooks.PreDisplay(ctx)

	actions := []hooks.Action{{Label: "edit", URL: "/" + url + "/_edit"}}
	actions = append(actions, ctx.ExtraActions...)

	var sb strings.Builder
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", esc(page.Title()))
	if tags := page.TagList(); len(tags) > 0 {
		sb.WriteString("<p class=\"tags\">")
		for i, tag := range tags {
			if i > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(&sb, "<a href=\"/tag/%s/\">%s</a>", esc(tag), esc(tag))
		}
		sb.WriteString("</p>\n")
	}
	sb.WriteString(page.CachedHTML())
	s.render(w, r, page.Title(), actions, sb.String())
}

// edit serves the edit form and handles its submission. The checksum
// captured when the form was rendered detects concurrent edits on
// submit.
func (s *Server) edit(w http.ResponseWriter, r *http.Request, url string) {
	page, err := s.wiki.Get(url)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if page == nil {
		var forbidden *wiki.ForbiddenURLError
		if err := s.wiki.ValidateURL(url); errors.As(err, &forbidden) {
			s.flash(w, r, err.Error())
			http.Redirect(w, r, forbidden.Redirect(), http.StatusSeeOther)
			return
		}
	}

	if r.Method == http.MethodPost {
		s.saveEdit(w, r, url, page)
		return
	}

	form := page
	if form == nil {
		form = s.wiki.GetBare(url)
	}
	ctx := &hooks.Context{Page: form, URL: url, User: s.currentUser(r)}
	s.hooks.PreEdit(ctx)
	s.renderEditForm(w, r, url, form, form.Checksum(), http.StatusOK)
}

// saveEdit persists a submitted edit unless the page changed underneath
// the editor.
func (s *Server) saveEdit(w http.ResponseWriter, r *http.Request, url string, page *wiki.Page) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if page != nil && r.PostFormValue("checksum") != page.Checksum() {
		s.flash(w, r, "The page was edited by someone else while you worked. Your version is shown below; resolve and save again.")
		// Capture the live checksum before the draft mutates the shared
		// meta map, or the form token would never match on resubmit.
		checksum := page.Checksum()
		draft := *page
		draft.Body = r.PostFormValue("body")
		draft.SetTitle(r.PostFormValue("title"))
		draft.SetTags(r.PostFormValue("tags"))
		s.renderEditForm(w, r, url, &draft, checksum, http.StatusConflict)
		return
	}

	if page == nil {
		page = s.wiki.GetBare(url)
		if page == nil {
			// Created concurrently between the existence check and now.
			s.flash(w, r, "The page was created by someone else while you worked.")
			http.Redirect(w, r, "/"+url+"/_edit", http.StatusSeeOther)
			return
		}
	}

	if page.Markup.HasMeta() {
		page.SetTitle(r.PostFormValue("title"))
		page.SetTags(r.PostFormValue("tags"))
	}
	page.Body = r.PostFormValue("body")
	if err := page.Save(true); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	page.DeleteCache()

	ctx := &hooks.Context{
		Page:    page,
		URL:     url,
		User:    s.currentUser(r),
		Message: r.PostFormValue("message"),
	}
	s.hooks.PageSaved(ctx)

	s.flash(w, r, fmt.Sprintf("%q was saved.", page.Title()))
	http.Redirect(w, r, "/"+url, http.StatusSeeOther)
}

// renderEditForm writes the edit form for a page, bound to the given
// concurrency checksum.
func (s *Server) renderEditForm(w http.ResponseWriter, r *http.Request, url string, page *wiki.Page, checksum string, status int) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h1>Editing %s</h1>\n", esc(url))
	fmt.Fprintf(&sb, "<form method=\"post\" action=\"/%s/_edit\">\n", esc(url))
	fmt.Fprintf(&sb, "<input type=\"hidden\" name=\"checksum\" value=\"%s\">\n", esc(checksum))
	if !page.NoMeta() {
		fmt.Fprintf(&sb, "<p><label>Title <input name=\"title\" value=\"%s\"></label></p>\n", esc(page.Title()))
		fmt.Fprintf(&sb, "<p><label>Tags <input name=\"tags\" value=\"%s\"></label></p>\n", esc(page.Tags()))
	}
	fmt.Fprintf(&sb, "<p><textarea name=\"body\" rows=\"20\" cols=\"80\">%s</textarea></p>\n", esc(page.Body))
	sb.WriteString("<p><label>Message <input name=\"message\"></label></p>\n")
	sb.WriteString("<p><button type=\"submit\">Save</button></p>\n")
	sb.WriteString("</form>\n")
	if howto := page.Markup.Howto(); howto != "" {
		fmt.Fprintf(&sb, "<details><summary>Syntax</summary><pre>%s</pre></details>\n", esc(howto))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	v := view{
		Title:    "Editing " + url,
		SiteName: s.cfg.SiteName,
		Flashes:  s.flashes(w, r),
		Body:     template.HTML(sb.String()),
	}
	if err := layoutTmpl.Execute(w, v); err != nil {
		s.notFound(w, "page")
	}
}

// preview renders submitted content with the markup the URL resolves
// to, without persisting anything.
func (s *Server) preview(w http.ResponseWriter, r *http.Request, url string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m := s.wiki.Registry().ForPath(s.wiki.PagePath(url))
	html, _, _ := m.Process(r.PostFormValue("body"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

// create asks for a title, derives a safe URL from it, and sends the
// visitor to the edit form.
func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		title := r.PostFormValue("title")
		url := util.Urlify(title, true)
		if url == "" {
			s.flash(w, r, "A page needs a title.")
			http.Redirect(w, r, "/create/", http.StatusSeeOther)
			return
		}
		if s.wiki.Exists(url) {
			s.flash(w, r, fmt.Sprintf("A page named %q already exists.", url))
			http.Redirect(w, r, "/"+url, http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/"+url+"/_edit", http.StatusSeeOther)
		return
	}

	body := `<h1>New page</h1>
<form method="post" action="/create/">
<p><label>Title <input name="title" autofocus></label></p>
<p><button type="submit">Create</button></p>
</form>
`
	s.render(w, r, "New page", nil, body)
}

// move relocates a page to a new URL.
func (s *Server) move(w http.ResponseWriter, r *http.Request, url string) {
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		newurl := util.Urlify(r.PostFormValue("newurl"), true)
		if err := s.wiki.ValidateURL(newurl); err != nil {
			s.flash(w, r, err.Error())
			http.Redirect(w, r, "/"+url+"/_move", http.StatusSeeOther)
			return
		}
		moved, err := s.wiki.Move(url, newurl)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !moved {
			s.notFound(w, "page")
			return
		}
		s.flash(w, r, fmt.Sprintf("Moved to %q.", newurl))
		http.Redirect(w, r, "/"+newurl, http.StatusSeeOther)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<h1>Moving %s</h1>\n", esc(url))
	fmt.Fprintf(&sb, "<form method=\"post\" action=\"/%s/_move\">\n", esc(url))
	fmt.Fprintf(&sb, "<p><label>New URL <input name=\"newurl\" value=\"%s\"></label></p>\n", esc(url))
	sb.WriteString("<p><button type=\"submit\">Move</button></p>\n</form>\n")
	s.render(w, r, "Moving "+url, nil, sb.String())
}

// deletePage removes a page.
func (s *Server) deletePage(w http.ResponseWriter, r *http.Request, url string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	deleted, err := s.wiki.Delete(url)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !deleted {
		s.notFound(w, "page")
		return
	}
	s.flash(w, r, fmt.Sprintf("%q was deleted.", url))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// index lists every page.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	pages, err := s.wiki.Index()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var sb strings.Builder
	sb.WriteString("<h1>Index</h1>\n<ul>\n")
	for _, page := range pages {
		fmt.Fprintf(&sb, "<li><a href=\"/%s\">%s</a></li>\n", esc(page.URL), esc(page.Title()))
	}
	sb.WriteString("</ul>\n")
	s.render(w, r, "Index", nil, sb.String())
}

// tags lists every tag with its page count.
func (s *Server) tags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.wiki.GetTags()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("<h1>Tags</h1>\n<ul>\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "<li><a href=\"/tag/%s/\">%s</a> (%d)</li>\n", esc(name), esc(name), len(tags[name]))
	}
	sb.WriteString("</ul>\n")
	s.render(w, r, "Tags", nil, sb.String())
}

// tag lists the pages carrying one tag.
func (s *Server) tag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	pages, err := s.wiki.IndexByTag(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h1>Tagged %s</h1>\n<ul>\n", esc(name))
	for _, page := range pages {
		fmt.Fprintf(&sb, "<li><a href=\"/%s\">%s</a></li>\n", esc(page.URL), esc(page.Title()))
	}
	sb.WriteString("</ul>\n")
	s.render(w, r, "Tagged "+name, nil, sb.String())
}

// search runs a regular-expression search over titles, tags, and
// bodies.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	term := r.FormValue("q")

	var sb strings.Builder
	sb.WriteString("<h1>Search</h1>\n")
	sb.WriteString("<form method=\"get\" action=\"/search/\">\n")
	fmt.Fprintf(&sb, "<p><input name=\"q\" value=\"%s\"> <button type=\"submit\">Search</button></p>\n</form>\n", esc(term))

	if term != "" {
		pages, err := s.wiki.Search(term, nil)
		if err != nil {
			fmt.Fprintf(&sb, "<p class=\"error\">%s</p>\n", esc(err.Error()))
		} else {
			fmt.Fprintf(&sb, "<p>%d pages match.</p>\n<ul>\n", len(pages))
			for _, page := range pages {
				fmt.Fprintf(&sb, "<li><a href=\"/%s\">%s</a></li>\n", esc(page.URL), esc(page.Title()))
			}
			sb.WriteString("</ul>\n")
		}
	}
	s.render(w, r, "Search", nil, sb.String())
}

// login authenticates against the user store and records the session.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	next := r.FormValue("next")
	if next == "" || !strings.HasPrefix(next, "/") {
		next = "/"
	}

	if r.Method == http.MethodPost {
		name := r.PostFormValue("name")
		password := r.PostFormValue("password")
		user, err := s.users.GetUser(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		ok := false
		if user != nil && user.Active {
			ok, err = user.CheckPassword(password)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		if !ok {
			s.flash(w, r, "Wrong username or password.")
			http.Redirect(w, r, "/user/login/?next="+next, http.StatusSeeOther)
			return
		}
		if err := user.SetAuthenticated(true); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		session, _ := s.sessions.Get(r, sessionName)
		session.Values["user"] = name
		if err := session.Save(r, w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.flash(w, r, fmt.Sprintf("Welcome back, %s.", user.Name))
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	var sb strings.Builder
	sb.WriteString("<h1>Log in</h1>\n")
	fmt.Fprintf(&sb, "<form method=\"post\" action=\"/user/login/?next=%s\">\n", esc(next))
	sb.WriteString("<p><label>Name <input name=\"name\" autofocus></label></p>\n")
	sb.WriteString("<p><label>Password <input type=\"password\" name=\"password\"></label></p>\n")
	sb.WriteString("<p><button type=\"submit\">Log in</button></p>\n</form>\n")
	s.render(w, r, "Log in", nil, sb.String())
}

// logout clears the session.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if user := s.currentUser(r); user != nil {
		_ = user.SetAuthenticated(false)
	}
	session, _ := s.sessions.Get(r, sessionName)
	delete(session.Values, "user")
	_ = session.Save(r, w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
