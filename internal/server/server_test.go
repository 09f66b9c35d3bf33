package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h4x3rotab/repoview/internal/cache"
	"github.com/h4x3rotab/repoview/internal/config"
	"github.com/h4x3rotab/repoview/internal/gitinfo"
	"github.com/h4x3rotab/repoview/internal/ignore"
	"github.com/h4x3rotab/repoview/internal/renderer"
	"github.com/h4x3rotab/repoview/internal/scanner"
	"github.com/h4x3rotab/repoview/internal/validation"
	"github.com/h4x3rotab/repoview/internal/watcher"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()

	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func testConfig(root string) *config.Config {
	return &config.Config{
		Repo:   root,
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Watch:  config.WatchConfig{Enabled: false, Debounce: 20 * time.Millisecond},
		Scan:   config.ScanConfig{MaxFiles: 100, MaxBytesPerFile: 1 << 20, Concurrency: 4},
		Render: config.RenderConfig{MaxBytes: 1 << 20, CodeStyle: "github"},
		Log:    config.LogConfig{Level: "info", Format: "text"},
	}
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, string) {
	t.Helper()

	root := t.TempDir()
	writeFile(t, root, "README.md", "# Project\n\nSee [the guide](docs/guide.md).\n")
	writeFile(t, root, "docs/guide.md", "# Guide\n\n[gone](missing.md)\n")
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, root, "data.json", `{"ok":true}`)
	writeFile(t, root, ".git/HEAD", "ref: refs/heads/main\n")

	cfg := testConfig(root)
	if mutate != nil {
		mutate(cfg)
	}

	sandbox, err := validation.NewSandbox(root)
	require.NoError(t, err)
	matcher, err := ignore.Load(sandbox.Root())
	require.NoError(t, err)
	r := renderer.New()

	s, err := New(Options{
		Config:   cfg,
		Sandbox:  sandbox,
		Renderer: r,
		Scanner:  scanner.New(scanner.Options{Sandbox: sandbox, Markdown: r, IsIgnored: matcher.Ignores}),
		Ignore:   matcher,
		Git:      gitinfo.Info{Branch: "main", Commit: "0123456789abcdef"},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
		s.scanner.Wait()
	})

	return s, sandbox.Root()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	return rec
}

func document(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)

	return doc
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestRedirects(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	testCases := []struct {
		target   string
		location string
	}{
		{"/", "/tree/"},
		{"/tree", "/tree/"},
		{"/blob", "/blob/"},
		{"/raw", "/raw/"},
		{"/tree/README.md", "/blob/README.md"},
		{"/blob/docs", "/tree/docs"},
	}

	for _, tc := range testCases {
		t.Run(tc.target, func(t *testing.T) {
			rec := get(t, h, tc.target)
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, tc.location, rec.Header().Get("Location"))
		})
	}
}

func TestTreeListsDirectory(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/tree/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	doc := document(t, rec)
	var names []string
	doc.Find(".file-table tbody td.name a").Each(func(_ int, sel *goquery.Selection) {
		names = append(names, sel.Text())
	})
	assert.Equal(t, []string{"docs", "README.md", "data.json", "main.go"}, names)

	href, _ := doc.Find(".file-table a.item.dir").Attr("href")
	assert.Equal(t, "/tree/docs", href)

	readme := doc.Find(".readme .markdown-body")
	require.Equal(t, 1, readme.Length())
	assert.Equal(t, "Project", strings.TrimSpace(readme.Find("h1").Text()))

	assert.Equal(t, "main", doc.Find(".topbar .pill").First().Text())
	assert.Contains(t, doc.Find(".topbar").Text(), "0123456")
}

func TestTreeSubdirectory(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/tree/docs")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	assert.Equal(t, "guide.md", doc.Find(".file-table td.name a").Text())
	assert.Equal(t, 0, doc.Find(".readme").Length())
}

func TestBlobRendersMarkdown(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/blob/docs/guide.md")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	body := doc.Find(".markdown-body")
	require.Equal(t, 1, body.Length())
	assert.Equal(t, "Guide", strings.TrimSpace(body.Find("h1").Text()))
	assert.Equal(t, "guide.md", doc.Find(".filename").Text())

	back, _ := doc.Find("a.btn").First().Attr("href")
	assert.Equal(t, "/tree/docs", back)
	raw, _ := doc.Find("a.btn").Last().Attr("href")
	assert.Equal(t, "/raw/docs/guide.md", raw)
}

func TestBlobRendersCode(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/blob/main.go")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	wrap := doc.Find(".code-wrap")
	require.Equal(t, 1, wrap.Length())
	assert.Equal(t, 1, wrap.Find("pre").Length())
	assert.Contains(t, wrap.Text(), "func main()")
	assert.Equal(t, 0, doc.Find(".markdown-body").Length())
}

func TestBlobTooLarge(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) { cfg.Render.MaxBytes = 8 })

	rec := get(t, s.Handler(), "/blob/main.go")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	note := doc.Find(".code-wrap .note")
	assert.Contains(t, note.Text(), "File is too large to render")
	href, _ := note.Find("a").Attr("href")
	assert.Equal(t, "/raw/main.go", href)
}

func TestRawServesBytes(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/raw/data.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestRawUnknownExtensionIsOctetStream(t *testing.T) {
	s, root := newTestServer(t, nil)
	writeFile(t, root, "blob.unknownext", "\x00\x01")

	rec := get(t, s.Handler(), "/raw/blob.unknownext")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
}

func TestErrorStatuses(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	testCases := []struct {
		name    string
		target  string
		status  int
		message string
	}{
		{"missing blob", "/blob/nope.md", http.StatusNotFound, "path does not exist"},
		{"missing tree", "/tree/nope", http.StatusNotFound, "path does not exist"},
		{"raw directory", "/raw/docs", http.StatusBadRequest, "Not a file"},
		{"bad encoding", "/blob/%ff", http.StatusBadRequest, "percent-encoding"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(t, h, tc.target)
			assert.Equal(t, tc.status, rec.Code)
			doc := document(t, rec)
			assert.Contains(t, doc.Find(".error").Text(), tc.message)
		})
	}
}

func TestEscapeIsBadRequest(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, handler := range []http.HandlerFunc{s.handleTree, s.handleBlob, s.handleRaw} {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/blob/..%2F..%2Fetc%2Fpasswd", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestSymlinkEscapeIsBadRequest(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	s, root := newTestServer(t, nil)

	outside := t.TempDir()
	writeFile(t, outside, "secret.txt", "secret")
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "leak.txt")))

	rec := get(t, s.Handler(), "/raw/leak.txt")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret\n")
	assert.NotContains(t, rec.Body.String(), outside)
}

func TestBrokenLinksJSON(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.scanner.TriggerScan(s.ScanOptions())
	s.scanner.Wait()

	rec := get(t, s.Handler(), "/broken-links.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var st scanner.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, scanner.StatusIdle, st.Status)
	require.NotNil(t, st.LastResult)
	assert.Equal(t, 2, st.LastResult.FilesScanned)
	require.Len(t, st.LastResult.Broken, 1)
	assert.Equal(t, "docs/guide.md", st.LastResult.Broken[0].Source)
	assert.Equal(t, scanner.Reason("missing"), st.LastResult.Broken[0].Reason)
}

func TestBrokenLinksPage(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.scanner.TriggerScan(s.ScanOptions())
	s.scanner.Wait()

	rec := get(t, s.Handler(), "/broken-links")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	assert.Contains(t, doc.Find("title").Text(), "Broken links")
	assert.Equal(t, "Broken: 1", doc.Find(".topbar a.pill.link").Text())
	assert.Contains(t, doc.Text(), "docs/guide.md")
}

func TestStaticAssets(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	testCases := []struct {
		target      string
		contentType string
	}{
		{"/static/app.js", "javascript"},
		{"/static/app.css", "text/css"},
		{"/static/chroma.css", "text/css"},
	}

	for _, tc := range testCases {
		t.Run(tc.target, func(t *testing.T) {
			rec := get(t, h, tc.target)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), tc.contentType)
			assert.Empty(t, rec.Header().Get("Cache-Control"))
			assert.NotZero(t, rec.Body.Len())
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.NotEmpty(t, health["version"])
	assert.NotContains(t, health, "cache")

	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `repoview_http_requests_total{method="GET",route="GET /health",status="200"}`)
}

func TestHealthReportsRenderCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "# Cached\n")

	sandbox, err := validation.NewSandbox(root)
	require.NoError(t, err)
	r := renderer.New()
	md := cache.NewMarkdown(r, cache.New(1<<20))

	s, err := New(Options{
		Config:   testConfig(root),
		Sandbox:  sandbox,
		Renderer: r,
		Markdown: md,
		Scanner:  scanner.New(scanner.Options{Sandbox: sandbox, Markdown: md}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	h := s.Handler()

	get(t, h, "/tree/")
	get(t, h, "/tree/")

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		Cache struct {
			Entries int     `json:"entries"`
			HitRate float64 `json:"hitRate"`
		} `json:"cache"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, 1, health.Cache.Entries)
	assert.InDelta(t, 0.5, health.Cache.HitRate, 0.001)
}

func TestEventsUpgradeThroughMiddleware(t *testing.T) {
	s, _ := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/events", nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	defer conn.CloseNow()
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.HandleChanges([]watcher.ChangeEvent{{Path: "README.md"}}))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"reload"}`, string(data))
}

func TestHandleChangesReloadsIgnoreRules(t *testing.T) {
	s, root := newTestServer(t, nil)
	s.scanner.TriggerScan(s.ScanOptions())
	s.scanner.Wait()
	require.Len(t, s.scanner.State().LastResult.Broken, 1)

	writeFile(t, root, ".gitignore", "docs/\n")
	require.NoError(t, s.HandleChanges([]watcher.ChangeEvent{
		{Type: watcher.EventTypeCreated, Path: filepath.Join(root, ".gitignore")},
	}))
	s.scanner.Wait()

	st := s.scanner.State()
	require.NotNil(t, st.LastResult)
	assert.Equal(t, 1, st.LastResult.FilesScanned)
	assert.Empty(t, st.LastResult.Broken)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
