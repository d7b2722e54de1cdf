// File path: internal/content/path.go
package content

import (
	"errors"
	"fmt"
	"net/url"
	gopath "path"
	"path/filepath"
	"strings"
)

// Route is the externally visible address derived from a source path.
type Route struct {
	URL      string
	Language string
}

// InvalidPathError reports a source path that cannot be made relative to the
// content root. It aborts processing of the single offending document only.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid content path %q: %s", e.Path, e.Reason)
}

// Resolver derives canonical URLs and language tags from content paths.
type Resolver struct {
	root string
	base *url.URL
}

// NewResolver builds a resolver for the given content root and site base URL.
func NewResolver(root, baseURL string) (*Resolver, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errors.New("base url required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", trimmed)
	}
	return &Resolver{root: filepath.Clean(strings.TrimSpace(root)), base: parsed}, nil
}

// Resolve maps a markdown source path to its canonical URL and language tag.
//
// Chinese blog posts lose the language segment (`zh/blog/s` -> `/blog/s`),
// English blog posts keep their prefix verbatim, other Chinese pages drop
// only the leading language segment, and everything else passes through
// unchanged.
func (r *Resolver) Resolve(path string) (Route, error) {
	rel, err := r.relative(path)
	if err != nil {
		return Route{}, err
	}

	rel = strings.TrimSuffix(rel, markdownSuffix)
	segments := splitSegments(rel)
	if len(segments) > 0 {
		switch segments[len(segments)-1] {
		case "index", "_index":
			segments = segments[:len(segments)-1]
		}
	}

	language := LanguageChinese
	if len(segments) > 0 && segments[0] == englishMarker {
		language = LanguageEnglish
	}
	if language == LanguageChinese && len(segments) > 0 && segments[0] == chineseMarker {
		segments = segments[1:]
	}

	urlPath := gopath.Clean("/" + strings.Join(segments, "/"))
	return Route{URL: r.join(urlPath), Language: language}, nil
}

func (r *Resolver) relative(path string) (string, error) {
	cleaned := filepath.Clean(strings.TrimSpace(path))
	if cleaned == "" || cleaned == "." {
		return "", &InvalidPathError{Path: path, Reason: "empty path"}
	}
	if filepath.IsAbs(cleaned) {
		rel, err := filepath.Rel(r.root, cleaned)
		if err != nil {
			return "", &InvalidPathError{Path: path, Reason: err.Error()}
		}
		cleaned = rel
	}
	rel := filepath.ToSlash(cleaned)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", &InvalidPathError{Path: path, Reason: "escapes content root"}
	}
	return rel, nil
}

func (r *Resolver) join(urlPath string) string {
	base := strings.TrimRight(r.base.String(), "/")
	if urlPath == "" || urlPath == "/" {
		return base + "/"
	}
	return base + urlPath
}

func splitSegments(p string) []string {
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		out = append(out, part)
	}
	return out
}
