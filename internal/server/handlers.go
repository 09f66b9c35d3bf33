package server

import (
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/h4x3rotab/repoview/internal/cache"
	rverrors "github.com/h4x3rotab/repoview/internal/errors"
	"github.com/h4x3rotab/repoview/internal/metrics"
	"github.com/h4x3rotab/repoview/internal/renderer"
	"github.com/h4x3rotab/repoview/internal/routes"
	"github.com/h4x3rotab/repoview/internal/scanner"
	"github.com/h4x3rotab/repoview/internal/validation"
	"github.com/h4x3rotab/repoview/internal/version"
	"github.com/h4x3rotab/repoview/internal/views"
)

//go:embed static
var staticFiles embed.FS

var readmePattern = regexp.MustCompile(`(?i)^readme(\.(md|markdown|mdown|mkd|mkdn))?$`)

// Handler returns the complete HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", http.RedirectHandler(routes.KindTree.Prefix(), http.StatusFound))
	for _, kind := range []routes.Kind{routes.KindTree, routes.KindBlob, routes.KindRaw} {
		mux.Handle("GET /"+string(kind), http.RedirectHandler(kind.Prefix(), http.StatusFound))
	}
	mux.HandleFunc("GET /tree/{path...}", s.handleTree)
	mux.HandleFunc("GET /blob/{path...}", s.handleBlob)
	mux.HandleFunc("GET /raw/{path...}", s.handleRaw)

	mux.HandleFunc("GET "+routes.BrokenLinksPath, s.handleBrokenLinks)
	mux.HandleFunc("GET "+routes.BrokenLinksJSONPath, s.handleBrokenLinksJSON)
	mux.Handle("GET "+routes.EventsPath, s.hub)

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	mux.HandleFunc("GET "+routes.StaticPrefix+"chroma.css", s.handleCodeCSS)
	mux.Handle("GET "+routes.StaticPrefix, http.StripPrefix(routes.StaticPrefix, http.FileServerFS(static)))

	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)

	return chain(mux,
		recoverMiddleware(s.logger),
		loggingMiddleware(s.logger),
		noStoreMiddleware,
	)
}

// resolve maps a content route request onto the sandbox.
func (s *Server) resolve(r *http.Request) (validation.ResolvedPath, error) {
	_, rel, err := routes.FromURL(r.URL.EscapedPath())
	if err != nil {
		return validation.ResolvedPath{}, err
	}

	return s.sandbox.Resolve(rel)
}

func (s *Server) page(rel, title string) views.Page {
	st := s.scanner.State()

	return views.Page{
		Title:    title,
		RepoName: s.repoName,
		Git:      s.git,
		RelPath:  rel,
		Scan:     &st,
	}
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	resolved, err := s.resolve(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rel := resolved.RelativePath

	switch resolved.Kind {
	case validation.KindFile:
		http.Redirect(w, r, routes.URLFor(routes.KindBlob, rel), http.StatusFound)
		return
	case validation.KindDirectory:
	default:
		s.writeError(w, r, rverrors.NewValidationError(rverrors.CodeNotADirectory, "Not a directory").WithPath(rel))
		return
	}

	entries, err := os.ReadDir(resolved.CanonicalPath)
	if err != nil {
		s.writeError(w, r, rverrors.WrapIO(err, rverrors.CodeReadFailed, "Failed to read directory").WithPath(rel))
		return
	}

	rows := make([]views.TreeRow, 0, len(entries))
	readmeName := ""
	for _, e := range entries {
		name := e.Name()
		if name == ".git" {
			continue
		}
		if readmeName == "" && e.Type().IsRegular() && readmePattern.MatchString(name) {
			readmeName = name
		}

		childRel := path.Join(rel, name)
		_, href := routes.ToRoute(childRel, e.IsDir())
		row := views.TreeRow{Name: name, IsDir: e.IsDir(), Href: href}
		if info, err := e.Info(); err == nil {
			row.Size = info.Size()
			row.Modified = info.ModTime()
		}
		rows = append(rows, row)
	}
	views.SortRows(rows)

	readmeHTML := ""
	if readmeName != "" {
		readmeHTML = s.renderReadme(r, rel, readmeName)
	}

	s.render(w, r, views.TreePage(s.page(rel, s.title(rel)), rows, readmeHTML))
}

// renderReadme renders a directory's README with links relative to the
// directory. Failures only hide the README.
func (s *Server) renderReadme(r *http.Request, dir, name string) string {
	resolved, err := s.sandbox.Resolve(path.Join(dir, name))
	if err != nil || resolved.Kind != validation.KindFile || resolved.Size > s.cfg.Render.MaxBytes {
		return ""
	}
	data, err := os.ReadFile(resolved.CanonicalPath)
	if err != nil {
		s.logger.Debug(r.Context(), "failed to read README", "path", resolved.RelativePath, "error", err)
		return ""
	}
	html, err := s.markdown.Render(data, renderer.Context{BaseDir: dir})
	if err != nil {
		s.logger.Debug(r.Context(), "failed to render README", "path", resolved.RelativePath, "error", err)
		return ""
	}

	return html
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	resolved, err := s.resolve(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rel := resolved.RelativePath

	switch resolved.Kind {
	case validation.KindDirectory:
		http.Redirect(w, r, routes.URLFor(routes.KindTree, rel), http.StatusFound)
		return
	case validation.KindFile:
	default:
		s.writeError(w, r, rverrors.NewValidationError(rverrors.CodeNotAFile, "Not a file").WithPath(rel))
		return
	}

	fileName := path.Base(rel)
	p := s.page(rel, s.title(rel))

	if resolved.Size > s.cfg.Render.MaxBytes {
		s.render(w, r, views.FilePage(p, fileName, false, views.TooLarge(rel, resolved.Size)))
		return
	}

	data, err := os.ReadFile(resolved.CanonicalPath)
	if err != nil {
		s.writeError(w, r, rverrors.WrapIO(err, rverrors.CodeReadFailed, "Failed to read file").WithPath(rel))
		return
	}

	isMarkdown := scanner.HasMarkdownExtension(rel)
	var html string
	if isMarkdown {
		baseDir := path.Dir(rel)
		if baseDir == "." {
			baseDir = ""
		}
		html, err = s.markdown.Render(data, renderer.Context{BaseDir: baseDir})
		if err != nil {
			s.writeError(w, r, rverrors.WrapInternal(err, "Failed to render markdown").WithPath(rel))
			return
		}
	} else {
		html = s.renderer.RenderCodeBlock(string(data), renderer.CodeOptions{
			Language: strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), "."),
			Filename: fileName,
		})
	}

	s.render(w, r, views.FilePage(p, fileName, isMarkdown, templ.Raw(html)))
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	resolved, err := s.resolve(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if resolved.Kind != validation.KindFile {
		s.writeError(w, r, rverrors.NewValidationError(rverrors.CodeNotAFile, "Not a file").WithPath(resolved.RelativePath))
		return
	}

	f, err := os.Open(resolved.CanonicalPath)
	if err != nil {
		s.writeError(w, r, rverrors.WrapIO(err, rverrors.CodeReadFailed, "Failed to read file").WithPath(resolved.RelativePath))
		return
	}
	defer f.Close()

	var modTime time.Time
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}

	contentType := mime.TypeByExtension(path.Ext(resolved.RelativePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy", "sandbox")

	http.ServeContent(w, r, "", modTime, f)
}

func (s *Server) handleBrokenLinks(w http.ResponseWriter, r *http.Request) {
	st := s.scanner.State()
	p := s.page("", s.repoName+" · Broken links")

	s.render(w, r, views.BrokenLinksPage(p, st))
}

func (s *Server) handleBrokenLinksJSON(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, s.scanner.State())
}

func (s *Server) handleCodeCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write(s.codeCSS)
}

type healthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Commit  string         `json:"commit,omitempty"`
	Scan    scanner.Status `json:"scan"`
	Clients int            `json:"clients"`
	Cache   *cacheHealth   `json:"cache,omitempty"`
}

type cacheHealth struct {
	Entries int     `json:"entries"`
	Bytes   int64   `json:"bytes"`
	HitRate float64 `json:"hitRate"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	resp := healthResponse{
		Status:  "ok",
		Version: info.Version,
		Commit:  info.Commit,
		Scan:    s.scanner.State().Status,
		Clients: s.hub.ClientCount(),
	}
	if c, ok := s.markdown.(interface{ Stats() cache.Stats }); ok {
		st := c.Stats()
		resp.Cache = &cacheHealth{Entries: st.Entries, Bytes: st.Size, HitRate: st.HitRate()}
	}

	s.writeJSON(w, r, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(r.Context(), err, "failed to write JSON response", "path", r.URL.Path)
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	templ.Handler(c, templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
		s.logger.Error(r.Context(), err, "failed to render page", "path", r.URL.Path)
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		})
	})).ServeHTTP(w, r)
}

// writeError renders the error page. Only the RepoError message is shown;
// causes can carry absolute paths and stay in the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := rverrors.HTTPStatus(err)
	message := "Internal server error"
	var re *rverrors.RepoError
	if errors.As(err, &re) && status != http.StatusInternalServerError {
		message = re.Message
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "request failed", "path", r.URL.Path)
	} else {
		s.logger.Debug(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	templ.Handler(views.ErrorPage("Error", message), templ.WithStatus(status)).ServeHTTP(w, r)
}
