// File path: internal/retriever/retriever.go
package retriever

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nlzhang/sitechat/internal/common"
	"github.com/nlzhang/sitechat/internal/common/telemetry"
	"github.com/nlzhang/sitechat/internal/content"
	"github.com/nlzhang/sitechat/internal/dictionary"
	"github.com/nlzhang/sitechat/internal/vector"
)

const (
	// defaultFilterTimeout bounds the language-filtered query; the unfiltered
	// fallback reuses the caller's context instead.
	defaultFilterTimeout = 500 * time.Millisecond

	contextSeparator = "\n\n"
	placeholderURL   = "#"
)

// Metadata keys stored with every indexed item.
const (
	MetaText     = "text"
	MetaTitle    = "title"
	MetaSource   = "source"
	MetaURL      = "url"
	MetaLanguage = "language"
)

// ErrFallbackQuery marks a failure of the unfiltered fallback query. Unlike
// a filtered-query failure it is fatal and surfaced to the caller.
var ErrFallbackQuery = errors.New("retriever: fallback query failed")

// Source identifies a document backing part of the answer.
type Source struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Result is the assembled retrieval output for one request.
type Result struct {
	Context      string
	Sources      []Source
	FallbackUsed bool
}

// Engine runs the language-aware retrieval state machine against the vector
// store. The title dictionary is injected at construction and must never be
// mutated afterwards; concurrent Retrieve calls share no other state.
type Engine struct {
	store         vector.Store
	dict          *dictionary.Dictionary
	filterTimeout time.Duration
}

type Option func(*Engine)

// WithFilterTimeout overrides the race timeout applied to the filtered query.
func WithFilterTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.filterTimeout = d
		}
	}
}

func New(store vector.Store, dict *dictionary.Dictionary, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		dict:          dict,
		filterTimeout: defaultFilterTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// filteredOutcome is the tagged result of the language-filtered query stage:
// either a usable match set or an explicit request to fall back.
type filteredOutcome struct {
	matches       []vector.Match
	needsFallback bool
	reason        string
}

// Retrieve returns the context string and deduplicated source list for a
// query vector. The filtered query is raced against the engine timeout and
// recovers into a single unfiltered fallback; a fallback failure is fatal.
func (e *Engine) Retrieve(ctx context.Context, queryVector []float32, k int, language string) (Result, error) {
	logger := common.Logger()
	if k <= 0 {
		k = 5
	}
	language = normalizeLanguage(language)

	outcome := e.runFiltered(ctx, queryVector, k, language)
	matches := outcome.matches
	fallbackUsed := false
	if outcome.needsFallback {
		logger.Warn("retriever: language filter unavailable, falling back", "reason", outcome.reason, "language", language)
		fallbackUsed = true
		unfiltered, err := e.store.Query(ctx, queryVector, vector.QueryOptions{
			TopK:            k,
			IncludeMetadata: true,
		})
		if err != nil {
			telemetry.RecordRetrieval(true)
			return Result{}, fmt.Errorf("%w: %w", ErrFallbackQuery, err)
		}
		matches = unfiltered
	}
	telemetry.RecordRetrieval(fallbackUsed)

	matches = validMatches(matches)
	if len(matches) == 0 {
		return Result{FallbackUsed: fallbackUsed}, nil
	}

	if fallbackUsed {
		matches = postFilter(matches, language)
	}

	texts := make([]string, 0, len(matches))
	for _, match := range matches {
		texts = append(texts, metaString(match, MetaText))
	}

	sources := e.resolveSources(matches, language)
	sources = dedupeSources(sources)

	return Result{
		Context:      strings.Join(texts, contextSeparator),
		Sources:      sources,
		FallbackUsed: fallbackUsed,
	}, nil
}

// runFiltered issues the language-filtered query raced against the timeout.
// The reply channel is buffered so a loser that resolves after the race
// decision completes harmlessly.
func (e *Engine) runFiltered(ctx context.Context, queryVector []float32, k int, language string) filteredOutcome {
	type reply struct {
		matches []vector.Match
		err     error
	}
	replies := make(chan reply, 1)
	qctx, cancel := context.WithTimeout(ctx, e.filterTimeout)
	defer cancel()

	go func() {
		matches, err := e.store.Query(qctx, queryVector, vector.QueryOptions{
			TopK:            k,
			Filter:          map[string]string{MetaLanguage: language},
			IncludeMetadata: true,
		})
		replies <- reply{matches: matches, err: err}
	}()

	select {
	case <-qctx.Done():
		return filteredOutcome{needsFallback: true, reason: "timeout"}
	case rep := <-replies:
		if rep.err != nil {
			return filteredOutcome{needsFallback: true, reason: "error: " + rep.err.Error()}
		}
		if len(rep.matches) == 0 {
			return filteredOutcome{needsFallback: true, reason: "no matches"}
		}
		return filteredOutcome{matches: rep.matches}
	}
}

// validMatches discards matches lacking the required text metadata.
func validMatches(matches []vector.Match) []vector.Match {
	kept := matches[:0:0]
	for _, match := range matches {
		if strings.TrimSpace(metaString(match, MetaText)) == "" {
			continue
		}
		kept = append(kept, match)
	}
	return kept
}

// postFilter applies the language-consistency pass required after an
// unfiltered fallback. For English requests the existence check over English
// matches is computed once, before individual items are filtered.
func postFilter(matches []vector.Match, language string) []vector.Match {
	if language == content.LanguageEnglish {
		anyEnglish := false
		for _, match := range matches {
			if hasEnglishMarker(metaString(match, MetaURL)) {
				anyEnglish = true
				break
			}
		}
		kept := matches[:0:0]
		for _, match := range matches {
			if hasEnglishMarker(metaString(match, MetaURL)) == anyEnglish {
				kept = append(kept, match)
			}
		}
		return kept
	}
	kept := matches[:0:0]
	for _, match := range matches {
		if hasEnglishMarker(metaString(match, MetaURL)) {
			continue
		}
		kept = append(kept, match)
	}
	return kept
}

// resolveSources builds the source records, reconciling Chinese documents
// surfaced to an English-context request through the title dictionary. A
// missing translation silently excludes the source rather than failing the
// request.
func (e *Engine) resolveSources(matches []vector.Match, language string) []Source {
	logger := common.Logger()
	sources := make([]Source, 0, len(matches))
	for _, match := range matches {
		src := Source{
			ID:    match.ID,
			URL:   metaString(match, MetaURL),
			Title: metaString(match, MetaTitle),
		}
		if src.URL == "" {
			src.URL = placeholderURL
		}
		if language == content.LanguageEnglish && !hasEnglishMarker(src.URL) {
			translated, ok := e.dict.Translate(src.Title)
			if !ok {
				logger.Debug("retriever: no translation for source, excluding", "title", src.Title, "url", src.URL)
				continue
			}
			src.URL = rewriteToEnglish(src.URL)
			src.Title = translated
		}
		sources = append(sources, src)
	}
	return sources
}

// dedupeSources removes placeholder URLs and collapses duplicate canonical
// URLs, preserving first-seen (relevance) order.
func dedupeSources(sources []Source) []Source {
	seen := make(map[string]struct{}, len(sources))
	out := sources[:0:0]
	for _, src := range sources {
		if src.URL == placeholderURL {
			continue
		}
		if _, dup := seen[src.URL]; dup {
			continue
		}
		seen[src.URL] = struct{}{}
		out = append(out, src)
	}
	return out
}

func normalizeLanguage(language string) string {
	if strings.EqualFold(strings.TrimSpace(language), content.LanguageEnglish) {
		return content.LanguageEnglish
	}
	return content.LanguageChinese
}

// hasEnglishMarker reports whether a canonical URL's leading path segment is
// the English marker.
func hasEnglishMarker(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(rawURL, "/en/")
	}
	path := parsed.Path
	return path == "/en" || strings.HasPrefix(path, "/en/")
}

// rewriteToEnglish prefixes the URL path with the English marker segment.
func rewriteToEnglish(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if hasEnglishMarker(rawURL) {
		return rawURL
	}
	parsed.Path = "/en" + parsed.Path
	return parsed.String()
}

func metaString(match vector.Match, key string) string {
	if match.Metadata == nil {
		return ""
	}
	if value, ok := match.Metadata[key].(string); ok {
		return value
	}
	return ""
}
