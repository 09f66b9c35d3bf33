// Package scanner checks that every internal link produced by rendering the
// repository's markdown resolves to a real, in-bounds path.
//
// A scan enumerates the markdown documents under the root, renders each one
// on a bounded worker pool, extracts href/src values from the output and
// resolves them through the path sandbox. Workers send per-document reports
// to a single collector; the collected entries are sorted before a new
// ScanResult is published, so an unchanged tree always yields the same report.
//
// The Scanner owns the process-wide scan state. At most one scan runs at a
// time. TriggerScan starts a scan when idle and otherwise records a single
// pending request that is served by exactly one follow-up scan.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/h4x3rotab/repoview/internal/errors"
	"github.com/h4x3rotab/repoview/internal/logging"
	"github.com/h4x3rotab/repoview/internal/renderer"
	"github.com/h4x3rotab/repoview/internal/validation"
)

// Markdown renders a document to HTML.
type Markdown interface {
	Render(source []byte, rc renderer.Context) (string, error)
}

// Options wires a Scanner to its collaborators.
type Options struct {
	Sandbox   *validation.Sandbox
	Markdown  Markdown
	IsIgnored IgnoreFunc
	Logger    logging.Logger
	// OnComplete runs after every scan, successful or not.
	OnComplete func(result *ScanResult, err error, elapsed time.Duration)
}

// Scanner runs link scans and tracks their state.
type Scanner struct {
	sandbox    *validation.Sandbox
	markdown   Markdown
	isIgnored  IgnoreFunc
	logger     logging.Logger
	onComplete func(*ScanResult, error, time.Duration)
	now        func() time.Time

	// runMu is held for the whole duration of a scan.
	runMu sync.Mutex

	mu          sync.Mutex
	idle        *sync.Cond
	state       State
	looping     bool
	inFlight    int
	pending     bool
	pendingOpts ScanOptions
}

// New creates an idle Scanner with an empty state.
func New(opts Options) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	markdown := opts.Markdown
	if markdown == nil {
		markdown = renderer.New()
	}

	s := &Scanner{
		sandbox:    opts.Sandbox,
		markdown:   markdown,
		isIgnored:  opts.IsIgnored,
		logger:     logger.WithComponent("scanner"),
		onComplete: opts.OnComplete,
		now:        time.Now,
		state:      State{Status: StatusIdle},
	}
	s.idle = sync.NewCond(&s.mu)

	return s
}

// State returns a snapshot of the current scan state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

func (s *Scanner) snapshotLocked() State {
	st := s.state
	st.Status = StatusIdle
	if s.looping || s.inFlight > 0 {
		st.Status = StatusRunning
	}
	if st.LastError != nil {
		msg := *st.LastError
		st.LastError = &msg
	}

	return st
}

// TriggerScan starts a background scan and returns immediately. If a
// triggered scan is already running, the request is folded into a single
// pending follow-up that uses the most recent options.
func (s *Scanner) TriggerScan(opts ScanOptions) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.looping {
		s.pending = true
		s.pendingOpts = opts
		return s.snapshotLocked()
	}

	s.looping = true
	go s.loop(opts)

	return s.snapshotLocked()
}

// loop runs the triggered scan and then at most one follow-up per pending
// request, iteratively.
func (s *Scanner) loop(opts ScanOptions) {
	for {
		_, _ = s.ScanOnce(context.Background(), opts)

		s.mu.Lock()
		if !s.pending {
			s.looping = false
			s.idle.Broadcast()
			s.mu.Unlock()
			return
		}
		s.pending = false
		opts = s.pendingOpts
		s.mu.Unlock()
	}
}

// Wait blocks until no scan is running or pending.
func (s *Scanner) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.looping || s.inFlight > 0 {
		s.idle.Wait()
	}
}

// ScanOnce runs one scan synchronously and publishes its result. A failure
// of the scan as a whole is recorded as the last error and leaves the last
// successful result in place. The scan always runs to completion once started.
func (s *Scanner) ScanOnce(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	started := s.now()
	s.mu.Lock()
	s.inFlight++
	s.state.LastStartedAt = Stamp(started)
	s.state.LastError = nil
	s.mu.Unlock()

	perf := logging.StartOperation(s.logger, "scan")
	result, err := s.safeScan(ctx, opts.withDefaults(), started)

	s.mu.Lock()
	s.inFlight--
	if err != nil {
		msg := err.Error()
		s.state.LastError = &msg
	} else {
		s.state.LastResult = result
		s.state.LastFinishedAt = result.FinishedAt
	}
	s.idle.Broadcast()
	s.mu.Unlock()

	elapsed := s.now().Sub(started)
	if err != nil {
		perf.EndWithError(ctx, err)
	} else {
		perf.End(ctx, "link scan finished",
			"files_scanned", result.FilesScanned,
			"urls_checked", result.URLsChecked,
			"broken", len(result.Broken),
		)
	}
	if s.onComplete != nil {
		s.onComplete(result, err, elapsed)
	}

	return result, err
}

// safeScan turns a panic anywhere in the scan into a scan-fatal error.
func (s *Scanner) safeScan(ctx context.Context, opts ScanOptions, started time.Time) (result *ScanResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = errors.NewInternalError(errors.CodeScanFailed, "link scan panicked", fmt.Errorf("%v", rec))
		}
	}()

	return s.scan(ctx, opts, started)
}

func (s *Scanner) scan(ctx context.Context, opts ScanOptions, started time.Time) (*ScanResult, error) {
	if s.sandbox == nil {
		return nil, errors.NewInternalError(errors.CodeScanFailed, "scanner has no repository sandbox", nil)
	}

	files, err := listMarkdownFiles(s.sandbox.Root(), opts.MaxFiles, s.isIgnored)
	if err != nil {
		return nil, errors.WrapIO(err, errors.CodeScanFailed, "listing markdown documents").WithPath(s.sandbox.Root())
	}
	s.logger.Debug(ctx, "scanning documents", "documents", len(files), "concurrency", opts.Concurrency)

	pool := &workerPool{
		workers:  opts.Concurrency,
		maxBytes: opts.MaxBytesPerFile,
		root:     s.sandbox.Root(),
		markdown: s.markdown,
		checker:  &checker{sandbox: s.sandbox, isIgnored: s.isIgnored},
		logger:   s.logger,
	}
	agg, err := pool.run(ctx, files)
	if err != nil {
		return nil, err
	}

	broken := agg.broken
	if broken == nil {
		broken = []BrokenLinkEntry{}
	}
	sort.SliceStable(broken, func(i, j int) bool {
		if broken[i].Source != broken[j].Source {
			return broken[i].Source < broken[j].Source
		}
		return broken[i].URL < broken[j].URL
	})

	finished := s.now()

	return &ScanResult{
		StartedAt:    Stamp(started),
		FinishedAt:   Stamp(finished),
		DurationMs:   finished.Sub(started).Milliseconds(),
		FilesScanned: agg.filesScanned,
		URLsChecked:  agg.urlsChecked,
		Broken:       broken,
	}, nil
}
