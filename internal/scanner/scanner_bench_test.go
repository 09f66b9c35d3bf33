package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/h4x3rotab/repoview/internal/validation"
)

// createBenchTree writes count documents spread across nested directories,
// each linking to a neighbour, an image and a missing file.
func createBenchTree(b *testing.B, count int) string {
	b.Helper()

	root := b.TempDir()
	for i := range count {
		dir := filepath.Join(root, fmt.Sprintf("section-%d", i%10))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.Fatal(err)
		}
		content := fmt.Sprintf("# Doc %d\n\n[next](doc-%d.md)\n\n![img](img-%d.png)\n\n[gone](../missing-%d.md)\n", i, i+10, i, i)
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("doc-%d.md", i)), []byte(content), 0o644); err != nil {
			b.Fatal(err)
		}
	}

	return root
}

func benchmarkScan(b *testing.B, docs, concurrency int) {
	root := createBenchTree(b, docs)
	sb, err := validation.NewSandbox(root)
	if err != nil {
		b.Fatal(err)
	}
	s := New(Options{Sandbox: sb})

	b.ResetTimer()
	for range b.N {
		if _, err := s.ScanOnce(context.Background(), ScanOptions{Concurrency: concurrency}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkScanOnce_100Docs_1Worker(b *testing.B)   { benchmarkScan(b, 100, 1) }
func BenchmarkScanOnce_100Docs_16Workers(b *testing.B) { benchmarkScan(b, 100, 16) }
func BenchmarkScanOnce_500Docs_16Workers(b *testing.B) { benchmarkScan(b, 500, 16) }

func BenchmarkExtractURLs(b *testing.B) {
	html := ""
	for i := range 200 {
		html += fmt.Sprintf(`<p><a href="/blob/doc-%d.md">x</a> <img src="/raw/img-%d.png" loading="lazy"></p>`, i, i)
	}

	b.ResetTimer()
	for range b.N {
		extractURLs(html)
	}
}
