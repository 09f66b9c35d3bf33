//go:build property
// +build property

package routes

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func segmentGen() gopter.Gen {
	return gen.OneGenOf(
		gen.AlphaString(),
		gen.OneConstOf("a b", "x%y", "q?", "h#1", "日本", "c&d=e", "..."),
	).SuchThat(func(s string) bool { return s != "" })
}

func TestRouteProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("FromURL inverts ToRoute", prop.ForAll(
		func(segments []string, isDir bool) bool {
			rel := strings.Join(segments, "/")
			kind, u := ToRoute(rel, isDir)
			gotKind, gotRel, err := FromURL(u)
			return err == nil && gotKind == kind && gotRel == rel
		},
		gen.SliceOf(segmentGen()),
		gen.Bool(),
	))

	properties.Property("clamped paths never climb above the root", prop.ForAll(
		func(base, candidate []string) bool {
			out := NormalizeAndClamp(strings.Join(base, "/"), strings.Join(candidate, "/"))
			return out != ".." && !strings.HasPrefix(out, "../") && !strings.HasPrefix(out, "/")
		},
		gen.SliceOf(gen.OneConstOf("..", ".", "a", "b", "")),
		gen.SliceOf(gen.OneConstOf("..", ".", "x", "y", "")),
	))

	properties.Property("clamping is idempotent", prop.ForAll(
		func(candidate []string) bool {
			once := NormalizeAndClamp("", strings.Join(candidate, "/"))
			return NormalizeAndClamp("", once) == once
		},
		gen.SliceOf(gen.OneConstOf("..", ".", "x", "y", "")),
	))

	properties.TestingRun(t)
}
