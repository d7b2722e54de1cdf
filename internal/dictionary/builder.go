// File path: internal/dictionary/builder.go
package dictionary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nlzhang/sitechat/internal/common"
	"github.com/nlzhang/sitechat/internal/content"
)

// Build scans the content root for logical documents that exist in both
// languages and pairs their front-matter titles. The result is the persisted
// form consumed by Load at startup. Documents whose front matter fails to
// parse are skipped with a warning; one bad file never aborts the build.
func Build(root string) (map[string]string, error) {
	logger := common.Logger()
	paths, err := content.ScanMarkdown(root)
	if err != nil {
		return nil, fmt.Errorf("scan content: %w", err)
	}

	type pair struct {
		zh string
		en string
	}
	pairs := make(map[string]*pair)
	for _, rel := range paths {
		key, language, ok := content.LogicalKey(rel)
		if !ok {
			continue
		}
		entry := pairs[key]
		if entry == nil {
			entry = &pair{}
			pairs[key] = entry
		}
		if language == content.LanguageEnglish {
			entry.en = rel
		} else {
			entry.zh = rel
		}
	}

	entries := make(map[string]string)
	for key, entry := range pairs {
		if entry.zh == "" || entry.en == "" {
			continue
		}
		zhTitle, ok := readTitle(root, entry.zh)
		if !ok {
			logger.Warn("dictionary: missing chinese title", "key", key, "path", entry.zh)
			continue
		}
		enTitle, ok := readTitle(root, entry.en)
		if !ok {
			logger.Warn("dictionary: missing english title", "key", key, "path", entry.en)
			continue
		}
		entries[zhTitle] = enTitle
	}
	logger.Info("dictionary: build complete", "pairs", len(entries))
	return entries, nil
}

// Write persists the entries as the flat JSON object read back by Load.
func Write(path string, entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode title dictionary: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dictionary dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write title dictionary: %w", err)
	}
	return nil
}

func readTitle(root, rel string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return "", false
	}
	fm, _, err := content.ParseFrontMatter(string(data))
	if err != nil || fm.Title == "" {
		return "", false
	}
	return fm.Title, true
}
