// File path: internal/dictionary/dictionary.go
package dictionary

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dictionary is the read-only mapping from a Chinese document title to its
// English counterpart. Entries exist only for logical documents that have
// both language variants. The dictionary is loaded once at startup and never
// mutated afterwards, so concurrent lookups need no locking.
type Dictionary struct {
	entries map[string]string
}

// New wraps the provided entries. The map is copied so later mutation of the
// argument cannot leak into request handling.
func New(entries map[string]string) *Dictionary {
	copied := make(map[string]string, len(entries))
	for zh, en := range entries {
		zh = strings.TrimSpace(zh)
		en = strings.TrimSpace(en)
		if zh == "" || en == "" {
			continue
		}
		copied[zh] = en
	}
	return &Dictionary{entries: copied}
}

// Load reads the persisted flat JSON object mapping Chinese titles to English
// titles. A missing file yields an empty dictionary rather than an error so
// deployments without bilingual pairs still start.
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("read title dictionary: %w", err)
	}
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse title dictionary: %w", err)
	}
	return New(entries), nil
}

// Translate returns the English title for a Chinese title, if one exists.
func (d *Dictionary) Translate(zhTitle string) (string, bool) {
	if d == nil {
		return "", false
	}
	en, ok := d.entries[strings.TrimSpace(zhTitle)]
	return en, ok
}

// Len reports the number of entries.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}
