// File path: internal/catalog/store_test.go
package catalog

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStaleIDs(t *testing.T) {
	previous := []string{"a", "b", "c"}
	current := map[string]struct{}{"b": {}}
	got := StaleIDs(previous, current)
	want := []string{"a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("StaleIDs = %v, want %v", got, want)
	}
	if stale := StaleIDs(nil, current); stale != nil {
		t.Fatalf("StaleIDs(nil) = %v, want nil", stale)
	}
}

func TestReplaceSourceReturnsStaleIDs(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	first := []Item{
		{ID: "one", SourcePath: "zh/blog/p/index.md", Chunk: 0, URL: "https://example.com/blog/p", Language: "zh", Title: "文章"},
		{ID: "two", SourcePath: "zh/blog/p/index.md", Chunk: 1, URL: "https://example.com/blog/p", Language: "zh", Title: "文章"},
	}
	stale, err := store.ReplaceSource(ctx, "zh/blog/p/index.md", first)
	if err != nil {
		t.Fatalf("ReplaceSource: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("initial ingest should have no stale ids, got %v", stale)
	}

	second := []Item{
		{ID: "one", SourcePath: "zh/blog/p/index.md", Chunk: 0, URL: "https://example.com/blog/p", Language: "zh", Title: "文章"},
	}
	stale, err = store.ReplaceSource(ctx, "zh/blog/p/index.md", second)
	if err != nil {
		t.Fatalf("ReplaceSource: %v", err)
	}
	if !reflect.DeepEqual(stale, []string{"two"}) {
		t.Fatalf("stale = %v, want [two]", stale)
	}

	paths, err := store.SourcePaths(ctx)
	if err != nil {
		t.Fatalf("SourcePaths: %v", err)
	}
	if !reflect.DeepEqual(paths, []string{"zh/blog/p/index.md"}) {
		t.Fatalf("paths = %v", paths)
	}

	removed, err := store.DeleteSource(ctx, "zh/blog/p/index.md")
	if err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if !reflect.DeepEqual(removed, []string{"one"}) {
		t.Fatalf("removed = %v, want [one]", removed)
	}
}
