package scanner

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/h4x3rotab/repoview/internal/errors"
	"github.com/h4x3rotab/repoview/internal/logging"
	"github.com/h4x3rotab/repoview/internal/renderer"
)

// scanJob is one document queued for the worker pool.
type scanJob struct {
	// rel is the slash-separated document path relative to the root
	rel string
}

// fileReport is what a worker sends back to the collector for one document.
type fileReport struct {
	rel     string
	scanned bool
	urls    int
	broken  []BrokenLinkEntry
}

// totals is the collector's running aggregate. Only the collector writes it.
type totals struct {
	filesScanned int
	urlsChecked  int
	broken       []BrokenLinkEntry
}

func (t *totals) add(r fileReport) {
	if r.scanned {
		t.filesScanned++
	}
	t.urlsChecked += r.urls
	t.broken = append(t.broken, r.broken...)
}

// workerPool processes one scan's documents. Workers pull from a shared
// queue and send one report per document to a single collector.
type workerPool struct {
	workers  int
	maxBytes int64
	root     string
	markdown Markdown
	checker  *checker
	logger   logging.Logger
}

// run scans files and returns the aggregate. A panic in any worker fails the
// whole scan; the remaining documents are still drained.
func (p *workerPool) run(ctx context.Context, files []string) (totals, error) {
	jobs := make(chan scanJob, p.workers*2)
	reports := make(chan fileReport, p.workers*2)

	var (
		wg       sync.WaitGroup
		failOnce sync.Once
		failure  error
	)
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				report, err := p.safeScanFile(ctx, job.rel)
				if err != nil {
					failOnce.Do(func() { failure = err })
				}
				reports <- report
			}
		}()
	}

	go func() {
		for _, f := range files {
			jobs <- scanJob{rel: f}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(reports)
	}()

	var agg totals
	for r := range reports {
		agg.add(r)
	}

	return agg, failure
}

func (p *workerPool) safeScanFile(ctx context.Context, rel string) (report fileReport, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			report = fileReport{rel: rel}
			err = errors.NewInternalError(errors.CodeScanFailed, "link scan panicked", fmt.Errorf("%s: %v", rel, rec)).WithPath(rel)
		}
	}()

	return p.scanFile(ctx, rel), nil
}

// scanFile renders one document and checks its links. Stat, read and render
// failures skip the document without recording anything.
func (p *workerPool) scanFile(ctx context.Context, rel string) fileReport {
	report := fileReport{rel: rel}
	abs := filepath.Join(p.root, filepath.FromSlash(rel))

	info, err := os.Stat(abs)
	if err != nil {
		p.logger.Debug(ctx, "skipping unreadable document", "path", rel, "error", err)
		return report
	}
	if info.Size() > p.maxBytes {
		p.logger.Debug(ctx, "skipping oversized document", "path", rel, "size", info.Size())
		return report
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		p.logger.Debug(ctx, "skipping unreadable document", "path", rel, "error", err)
		return report
	}
	report.scanned = true

	baseDir := path.Dir(rel)
	if baseDir == "." {
		baseDir = ""
	}
	rendered, err := p.markdown.Render(content, renderer.Context{BaseDir: baseDir})
	if err != nil {
		p.logger.Debug(ctx, "skipping document that failed to render", "path", rel, "error", err)
		return report
	}

	for _, raw := range extractURLs(rendered) {
		if isExternalURL(raw) {
			continue
		}
		report.urls++
		if entry, broken := p.checker.check(rel, raw); broken {
			report.broken = append(report.broken, entry)
		}
	}

	return report
}
