// Package server serves a repository over HTTP: directory listings, rendered
// markdown, highlighted source, raw bytes, the broken-links report and the
// live-reload channel.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/h4x3rotab/repoview/internal/config"
	"github.com/h4x3rotab/repoview/internal/gitinfo"
	"github.com/h4x3rotab/repoview/internal/ignore"
	"github.com/h4x3rotab/repoview/internal/logging"
	"github.com/h4x3rotab/repoview/internal/metrics"
	"github.com/h4x3rotab/repoview/internal/renderer"
	"github.com/h4x3rotab/repoview/internal/scanner"
	"github.com/h4x3rotab/repoview/internal/validation"
	"github.com/h4x3rotab/repoview/internal/watcher"
	"github.com/h4x3rotab/repoview/internal/websocket"
)

// Options wires a Server to its collaborators. Config, Sandbox and Scanner
// are required.
type Options struct {
	Config   *config.Config
	Sandbox  *validation.Sandbox
	Renderer *renderer.Renderer
	// Markdown renders documents; it defaults to Renderer and is usually a
	// cache in front of it.
	Markdown scanner.Markdown
	Scanner  *scanner.Scanner
	Ignore   *ignore.Matcher
	Git      gitinfo.Info
	Hub      *websocket.Hub
	Logger   logging.Logger
}

// Server is the repository viewer.
type Server struct {
	cfg      *config.Config
	sandbox  *validation.Sandbox
	renderer *renderer.Renderer
	markdown scanner.Markdown
	scanner  *scanner.Scanner
	ignore   *ignore.Matcher
	git      gitinfo.Info
	hub      *websocket.Hub
	logger   logging.Logger
	repoName string
	codeCSS  []byte

	serverMutex  sync.Mutex
	httpServer   *http.Server
	watcher      *watcher.FileWatcher
	shutdownOnce sync.Once
}

// New validates opts and prepares a Server. Nothing listens until Serve.
func New(opts Options) (*Server, error) {
	if opts.Config == nil || opts.Sandbox == nil || opts.Scanner == nil {
		return nil, errors.New("server: config, sandbox and scanner are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	r := opts.Renderer
	if r == nil {
		r = renderer.New(renderer.WithCodeStyle(opts.Config.Render.CodeStyle))
	}
	md := opts.Markdown
	if md == nil {
		md = r
	}
	hub := opts.Hub
	if hub == nil {
		hub = websocket.NewHub(logger,
			websocket.WithOriginPatterns(opts.Config.Server.AllowedOrigins...),
			websocket.WithClientCountHook(metrics.SetWebsocketClients),
		)
	}

	var css bytes.Buffer
	if err := r.WriteStyleCSS(&css); err != nil {
		return nil, fmt.Errorf("generating code stylesheet: %w", err)
	}

	return &Server{
		cfg:      opts.Config,
		sandbox:  opts.Sandbox,
		renderer: r,
		markdown: md,
		scanner:  opts.Scanner,
		ignore:   opts.Ignore,
		git:      opts.Git,
		hub:      hub,
		logger:   logger,
		repoName: filepath.Base(opts.Sandbox.Root()),
		codeCSS:  css.Bytes(),
	}, nil
}

// ScanOptions converts the scan configuration.
func (s *Server) ScanOptions() scanner.ScanOptions {
	return scanner.ScanOptions{
		MaxFiles:        s.cfg.Scan.MaxFiles,
		MaxBytesPerFile: s.cfg.Scan.MaxBytesPerFile,
		Concurrency:     s.cfg.Scan.Concurrency,
	}
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Addr(), err)
	}

	return s.Serve(ctx, ln)
}

// Serve starts the initial scan and the watcher, then serves ln until ctx
// is done, after which it shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.scanner.TriggerScan(s.ScanOptions())

	if s.cfg.Watch.Enabled {
		if err := s.startWatcher(ctx); err != nil {
			s.logger.Warn(ctx, err, "live reload disabled")
		}
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serverMutex.Lock()
	s.httpServer = httpServer
	s.serverMutex.Unlock()

	url := "http://" + ln.Addr().String()
	s.logger.Info(ctx, "serving repository", "repo", s.sandbox.Root(), "url", url)
	if s.cfg.Server.Open {
		go s.openBrowser(ctx, url)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.Shutdown(shutdownCtx)
		<-errCh
		return err
	}
}

// Shutdown stops the watcher, disconnects live-reload clients and drains
// the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down")

		s.serverMutex.Lock()
		w, httpServer := s.watcher, s.httpServer
		s.serverMutex.Unlock()

		if w != nil {
			if err := w.Stop(); err != nil {
				s.logger.Warn(ctx, err, "failed to stop file watcher")
			}
		}
		if err := s.hub.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, err, "failed to stop live reload hub")
		}
		if httpServer != nil {
			shutdownErr = httpServer.Shutdown(ctx)
		}
	})

	return shutdownErr
}

func (s *Server) startWatcher(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(s.cfg.Watch.Debounce, s.logger)
	if err != nil {
		return err
	}
	fw.AddHandler(s.HandleChanges)
	if err := fw.AddRecursive(s.sandbox.Root()); err != nil {
		_ = fw.Stop()
		return err
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return err
	}

	s.serverMutex.Lock()
	s.watcher = fw
	s.serverMutex.Unlock()

	return nil
}

// HandleChanges reacts to a debounced batch of file changes: it reloads the
// ignore rules when .gitignore changed, tells every page to reload and
// queues a re-scan.
func (s *Server) HandleChanges(events []watcher.ChangeEvent) error {
	ctx := context.Background()
	gitignorePath := filepath.Join(s.sandbox.Root(), ".gitignore")
	for _, e := range events {
		if e.Path == gitignorePath && s.ignore != nil {
			if err := s.ignore.Reload(); err != nil {
				s.logger.Warn(ctx, err, "failed to reload .gitignore")
			}
			break
		}
	}
	s.logger.Debug(ctx, "repository changed", "events", len(events))

	s.hub.BroadcastReload()
	metrics.RecordReload()
	s.scanner.TriggerScan(s.ScanOptions())

	return nil
}

func (s *Server) openBrowser(ctx context.Context, url string) {
	if err := validation.ValidateBrowserURL(url); err != nil {
		s.logger.Warn(ctx, err, "refusing to open browser")
		return
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		s.logger.Warn(ctx, fmt.Errorf("unsupported platform %s", runtime.GOOS), "cannot open browser")
		return
	}
	if err := cmd.Start(); err != nil {
		s.logger.Warn(ctx, err, "failed to open browser")
		return
	}
	go func() { _ = cmd.Wait() }()
}

func (s *Server) title(rel string) string {
	if rel == "" {
		return s.repoName
	}

	return s.repoName + "/" + strings.TrimPrefix(rel, "/")
}
