// File path: internal/content/selector.go
package content

import (
	"path/filepath"
	"sort"
	"strings"
)

// Select reduces the full candidate set to the files that should be indexed,
// keeping at most one file per logical document.
//
// Static single-instance sections keep only their Chinese variant; other
// variants are dropped outright, even when no Chinese file exists. Blog posts
// are grouped by logical key and the Chinese file wins, with the English file
// used only when no Chinese file exists for that key. The reduction is
// order-independent: the result is the same for any permutation of the input.
func Select(candidates []string) []string {
	type blogGroup struct {
		zh string
		en string
	}
	groups := make(map[string]*blogGroup)
	var selected []string

	for _, raw := range candidates {
		segments := splitSegments(filepath.ToSlash(strings.TrimSpace(raw)))
		if len(segments) == 0 {
			continue
		}
		if isStaticSection(segments) {
			if segments[0] == chineseMarker {
				selected = append(selected, raw)
			}
			continue
		}
		key, english, ok := blogKey(segments)
		if !ok {
			continue
		}
		group := groups[key]
		if group == nil {
			group = &blogGroup{}
			groups[key] = group
		}
		if english {
			if group.en == "" || raw < group.en {
				group.en = raw
			}
		} else {
			if group.zh == "" || raw < group.zh {
				group.zh = raw
			}
		}
	}

	for _, group := range groups {
		switch {
		case group.zh != "":
			selected = append(selected, group.zh)
		case group.en != "":
			selected = append(selected, group.en)
		}
	}
	sort.Strings(selected)
	return selected
}

// LogicalKey identifies the logical document a path belongs to, so that two
// files representing the same content in different languages share a key.
// Paths outside the indexed categories return ok=false.
func LogicalKey(path string) (key, language string, ok bool) {
	segments := splitSegments(filepath.ToSlash(strings.TrimSpace(path)))
	if len(segments) == 0 {
		return "", "", false
	}
	language = LanguageChinese
	if segments[0] == englishMarker {
		language = LanguageEnglish
	}
	if isStaticSection(segments) {
		return "static/" + segments[1], language, true
	}
	if blog, _, matched := blogKey(segments); matched {
		return blogSegment + "/" + blog, language, true
	}
	return "", "", false
}

// isStaticSection reports whether the segments name a single-instance page
// of the form <lang>/<section>/_index.md.
func isStaticSection(segments []string) bool {
	if len(segments) != 3 || segments[2] != "_index"+markdownSuffix {
		return false
	}
	for _, section := range staticSections {
		if segments[1] == section {
			return true
		}
	}
	return false
}

// blogKey derives the language-agnostic grouping key for a blog post path,
// stripping the leading language segment and the surrounding blog/index
// segments.
func blogKey(segments []string) (string, bool, bool) {
	english := false
	switch segments[0] {
	case englishMarker:
		english = true
		segments = segments[1:]
	case chineseMarker:
		segments = segments[1:]
	}
	if len(segments) < 3 || segments[0] != blogSegment {
		return "", false, false
	}
	last := segments[len(segments)-1]
	if last != "index"+markdownSuffix && last != "_index"+markdownSuffix {
		return "", false, false
	}
	key := strings.Join(segments[1:len(segments)-1], "/")
	if key == "" {
		return "", false, false
	}
	return key, english, true
}
