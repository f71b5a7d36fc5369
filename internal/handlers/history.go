package handlers

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sa/flatwiki/internal/hooks"
	"github.com/sa/flatwiki/internal/vcs"
)

// history shows the revision log of a page with per-revision change
// counts and links to old versions and diffs.
func (s *Server) history(w http.ResponseWriter, r *http.Request, url string) {
	if s.backend == nil {
		http.Error(w, "versioning is not enabled", http.StatusNotFound)
		return
	}
	if !s.wiki.Exists(url) {
		s.notFound(w, "page")
		return
	}

	revisions, err := s.backend.History(s.wiki.RelPath(url))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<h1>History of %s</h1>\n", esc(url))
	sb.WriteString("<table>\n<tr><th>revision</th><th>author</th><th>when</th><th>message</th><th>+/-</th><th></th></tr>\n")
	for i, rev := range revisions {
		diffCell := ""
		if i+1 < len(revisions) {
			diffCell = fmt.Sprintf("<a href=\"/%s/_diff/%s..%s\">diff</a>",
				esc(url), esc(rev.Commit), esc(revisions[i+1].Commit))
		}
		fmt.Fprintf(&sb,
			"<tr><td><a href=\"/%s/_version/%s\">%s</a></td><td>%s</td><td>%s</td><td>%s</td><td>+%d/-%d</td><td>%s</td></tr>\n",
			esc(url), esc(rev.Commit), esc(rev.Commit),
			esc(rev.Author), esc(rev.DateRelative), esc(rev.Message),
			rev.Insertions, rev.Deletions, diffCell)
	}
	sb.WriteString("</table>\n")
	s.render(w, r, "History of "+url, nil, sb.String())
}

// diff renders the difference between two revisions of a page. The
// argument has the form new..old; either side may be empty to default
// to the latest pair.
func (s *Server) diff(w http.ResponseWriter, r *http.Request, url string, args []string) {
	if s.backend == nil {
		http.Error(w, "versioning is not enabled", http.StatusNotFound)
		return
	}

	var newRev, oldRev string
	if len(args) > 0 {
		newRev, oldRev, _ = strings.Cut(args[0], "..")
	}
	d := vcs.Diff(s.backend, s.wiki.RelPath(url), oldRev, newRev)
	if d.NewRev == "" {
		s.notFound(w, "revision")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<h1>%s: %s &rarr; %s</h1>\n", esc(url), esc(d.OldRev), esc(d.NewRev))
	fmt.Fprintf(&sb, "<div class=\"diff\">%s</div>\n", d.HTML)
	fmt.Fprintf(&sb, "<pre class=\"patch\">%s</pre>\n", esc(d.Unified))
	s.render(w, r, "Diff of "+url, nil, sb.String())
}

// version displays a page as it was at an old revision, rendered
// transiently without touching the render cache.
func (s *Server) version(w http.ResponseWriter, r *http.Request, url string, args []string) {
	if s.backend == nil || len(args) == 0 {
		s.notFound(w, "revision")
		return
	}
	rev := args[0]

	content := s.backend.Show(s.wiki.RelPath(url), rev)
	if content == "" {
		s.notFound(w, "revision")
		return
	}

	page, err := s.wiki.Get(url)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// The checksum of the live page guards the restore like any edit.
	var checksum string
	if page != nil {
		checksum = page.Checksum()
	} else {
		page = s.wiki.GetBare(url)
	}
	if err := page.Load(content); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	page.Render()

	actions := []hooks.Action{
		{Label: "current", URL: "/" + url},
		{Label: "history", URL: "/" + url + "/_history"},
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<p class=\"notice\">Showing %s at revision %s.</p>\n", esc(url), esc(rev))
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", esc(page.Title()))
	sb.WriteString(page.HTML())
	fmt.Fprintf(&sb, "<form method=\"post\" action=\"/%s/_edit\">\n", esc(url))
	fmt.Fprintf(&sb, "<input type=\"hidden\" name=\"checksum\" value=\"%s\">\n", esc(checksum))
	fmt.Fprintf(&sb, "<input type=\"hidden\" name=\"title\" value=\"%s\">\n", esc(page.Title()))
	fmt.Fprintf(&sb, "<input type=\"hidden\" name=\"tags\" value=\"%s\">\n", esc(page.Tags()))
	fmt.Fprintf(&sb, "<input type=\"hidden\" name=\"body\" value=\"%s\">\n", esc(page.Body))
	fmt.Fprintf(&sb, "<input type=\"hidden\" name=\"message\" value=\"Restored version @%s\">\n", esc(rev))
	sb.WriteString("<p><button type=\"submit\">Restore this version</button></p>\n</form>\n")
	s.render(w, r, page.Title(), actions, sb.String())
}

// pdf exports a page through the configured converter. A failed or
// missing tool reports inline instead of failing the request.
func (s *Server) pdf(w http.ResponseWriter, r *http.Request, url string) {
	page, err := s.wiki.Get(url)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if page == nil {
		s.notFound(w, "page")
		return
	}

	bin := s.cfg.Rst2PdfBin
	if bin == "" {
		bin = "rst2pdf"
	}
	out := filepath.Join(os.TempDir(), fmt.Sprintf("flatwiki-%s.pdf", strings.ReplaceAll(url, "/", "-")))
	defer os.Remove(out)

	cmd := exec.Command(bin, page.Path, "-o", out)
	if output, err := cmd.CombinedOutput(); err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "Fail to generate output.\n\n%s\n%s", err, output)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", page.Title()+".pdf"))
	http.ServeFile(w, r, out)
}
