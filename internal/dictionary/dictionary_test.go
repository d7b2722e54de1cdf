// File path: internal/dictionary/dictionary_test.go
package dictionary

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTranslate(t *testing.T) {
	dict := New(map[string]string{
		"你好世界": "Hello World",
		"  空白 ": "Trimmed",
		"":     "dropped",
	})
	if got, ok := dict.Translate("你好世界"); !ok || got != "Hello World" {
		t.Fatalf("Translate = %q, %v", got, ok)
	}
	if got, ok := dict.Translate("空白"); !ok || got != "Trimmed" {
		t.Fatalf("Translate trimmed = %q, %v", got, ok)
	}
	if _, ok := dict.Translate("missing"); ok {
		t.Fatal("expected miss for unknown title")
	}
	if dict.Len() != 2 {
		t.Fatalf("Len = %d, want 2", dict.Len())
	}
}

func TestLoadMissingFile(t *testing.T) {
	dict, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if dict.Len() != 0 {
		t.Fatalf("expected empty dictionary, got %d entries", dict.Len())
	}
}

func TestBuildPairsBilingualDocuments(t *testing.T) {
	root := t.TempDir()
	write := func(rel, title string) {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		body := "---\ntitle: " + title + "\n---\n\ncontent\n"
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("zh/blog/paired/index.md", "双语文章")
	write("en/blog/paired/index.md", "Bilingual Post")
	write("zh/blog/solo/index.md", "只有中文")

	entries, err := Build(root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := entries["双语文章"]; got != "Bilingual Post" {
		t.Fatalf("entries[双语文章] = %q", got)
	}
	if _, ok := entries["只有中文"]; ok {
		t.Fatal("unpaired document must not produce an entry")
	}

	out := filepath.Join(root, "dict.json")
	if err := Write(out, entries); err != nil {
		t.Fatalf("Write: %v", err)
	}
	dict, err := Load(out)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, ok := dict.Translate("双语文章"); !ok || got != "Bilingual Post" {
		t.Fatalf("round trip Translate = %q, %v", got, ok)
	}
}
