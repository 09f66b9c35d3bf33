package renderer

import (
	"fmt"
	"strings"
	"testing"
)

func benchmarkDocument(sections int) []byte {
	var b strings.Builder
	for i := range sections {
		fmt.Fprintf(&b, "## Section %d\n\n", i)
		b.WriteString("Some text with a [relative link](../other.md) and ![an image](img/pic.png).\n\n")
		b.WriteString("> [!NOTE]\n> Remember this.\n\n")
		b.WriteString("```go\nfunc main() { fmt.Println(\"hi\") }\n```\n\n")
		b.WriteString("- [x] done\n- [ ] pending\n\n")
	}

	return []byte(b.String())
}

func BenchmarkRenderer_Render(b *testing.B) {
	r := New()
	doc := benchmarkDocument(50)
	rc := Context{BaseDir: "docs"}

	b.ReportAllocs()
	b.ResetTimer()
	for range b.N {
		if _, err := r.Render(doc, rc); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRenderer_RenderParallel(b *testing.B) {
	r := New()
	doc := benchmarkDocument(10)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := r.Render(doc, Context{BaseDir: "docs"}); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkRenderer_RenderCodeBlock(b *testing.B) {
	r := New()
	src := strings.Repeat("package main\n\nfunc main() {\n\tprintln(\"hello\")\n}\n", 20)

	b.ResetTimer()
	for range b.N {
		r.RenderCodeBlock(src, CodeOptions{Language: "go"})
	}
}
