// File path: internal/retriever/retriever_test.go
package retriever

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nlzhang/sitechat/internal/dictionary"
	"github.com/nlzhang/sitechat/internal/vector"
)

type fakeStore struct {
	mu sync.Mutex

	filtered      []vector.Match
	filteredErr   error
	filteredDelay time.Duration

	fallback    []vector.Match
	fallbackErr error

	filteredCalls int
	fallbackCalls int
}

func (f *fakeStore) Query(ctx context.Context, vec []float32, opts vector.QueryOptions) ([]vector.Match, error) {
	f.mu.Lock()
	filteredDelay := f.filteredDelay
	isFiltered := len(opts.Filter) > 0
	if isFiltered {
		f.filteredCalls++
	} else {
		f.fallbackCalls++
	}
	f.mu.Unlock()

	if isFiltered {
		if filteredDelay > 0 {
			select {
			case <-time.After(filteredDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return f.filtered, f.filteredErr
	}
	return f.fallback, f.fallbackErr
}

func (f *fakeStore) Upsert(ctx context.Context, items []vector.Item) error { return nil }

func (f *fakeStore) DeleteByIDs(ctx context.Context, ids []string) error { return nil }

func (f *fakeStore) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filteredCalls, f.fallbackCalls
}

func match(id, text, title, url, language string) vector.Match {
	return vector.Match{
		ID: id,
		Metadata: map[string]interface{}{
			MetaText:     text,
			MetaTitle:    title,
			MetaURL:      url,
			MetaLanguage: language,
		},
	}
}

func TestRetrieveFilteredSuccess(t *testing.T) {
	store := &fakeStore{
		filtered: []vector.Match{
			match("a", "第一段", "文章一", "https://example.com/blog/one", "zh"),
			match("b", "第二段", "文章二", "https://example.com/blog/two", "zh"),
		},
	}
	engine := New(store, dictionary.New(nil))
	result, err := engine.Retrieve(context.Background(), []float32{0.1}, 2, "zh")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if result.FallbackUsed {
		t.Fatal("fallback must not be used on filtered success")
	}
	if got := strings.Count(result.Context, "段"); got != 2 {
		t.Fatalf("context missing match texts: %q", result.Context)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(result.Sources))
	}
	filtered, fallback := store.calls()
	if filtered != 1 || fallback != 0 {
		t.Fatalf("calls = %d filtered, %d fallback", filtered, fallback)
	}
}

func TestRetrieveEmptyFilteredFallsBackExactlyOnce(t *testing.T) {
	store := &fakeStore{
		fallback: []vector.Match{
			match("a", "text", "Title", "https://example.com/blog/one", "zh"),
		},
	}
	engine := New(store, dictionary.New(nil))
	result, err := engine.Retrieve(context.Background(), []float32{0.1}, 3, "zh")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !result.FallbackUsed {
		t.Fatal("fallback flag not reported")
	}
	filtered, fallback := store.calls()
	if filtered != 1 || fallback != 1 {
		t.Fatalf("calls = %d filtered, %d fallback; want exactly one each", filtered, fallback)
	}
}

func TestRetrieveFilteredErrorRecovers(t *testing.T) {
	store := &fakeStore{
		filteredErr: errors.New("filter unsupported"),
		fallback: []vector.Match{
			match("a", "text", "Title", "https://example.com/blog/one", "zh"),
		},
	}
	engine := New(store, dictionary.New(nil))
	result, err := engine.Retrieve(context.Background(), []float32{0.1}, 3, "zh")
	if err != nil {
		t.Fatalf("filtered failure must be recovered, got %v", err)
	}
	if !result.FallbackUsed || len(result.Sources) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRetrieveFilteredTimeoutRecovers(t *testing.T) {
	store := &fakeStore{
		filteredDelay: 200 * time.Millisecond,
		filtered: []vector.Match{
			match("late", "late text", "Late", "https://example.com/blog/late", "zh"),
		},
		fallback: []vector.Match{
			match("a", "text", "Title", "https://example.com/blog/one", "zh"),
		},
	}
	engine := New(store, dictionary.New(nil), WithFilterTimeout(20*time.Millisecond))
	result, err := engine.Retrieve(context.Background(), []float32{0.1}, 3, "zh")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !result.FallbackUsed {
		t.Fatal("timeout must trigger fallback")
	}
	if len(result.Sources) != 1 || result.Sources[0].ID != "a" {
		t.Fatalf("sources = %+v", result.Sources)
	}
}

func TestRetrieveFallbackFailureIsFatal(t *testing.T) {
	store := &fakeStore{
		fallbackErr: errors.New("index down"),
	}
	engine := New(store, dictionary.New(nil))
	_, err := engine.Retrieve(context.Background(), []float32{0.1}, 3, "zh")
	if err == nil {
		t.Fatal("expected fatal error from fallback failure")
	}
	if !errors.Is(err, ErrFallbackQuery) {
		t.Fatalf("error = %v, want ErrFallbackQuery", err)
	}
	filtered, fallback := store.calls()
	if filtered != 1 || fallback != 1 {
		t.Fatalf("calls = %d filtered, %d fallback; no retries allowed", filtered, fallback)
	}
}

func TestRetrieveDiscardsMatchesWithoutText(t *testing.T) {
	store := &fakeStore{
		filtered: []vector.Match{
			{ID: "empty", Metadata: map[string]interface{}{MetaURL: "https://example.com/blog/x"}},
			{ID: "nilmeta"},
		},
	}
	engine := New(store, dictionary.New(nil))
	result, err := engine.Retrieve(context.Background(), []float32{0.1}, 2, "zh")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if result.Context != "" || len(result.Sources) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if result.FallbackUsed {
		t.Fatal("fallback flag must reflect the filtered path")
	}
}

func TestRetrieveEnglishWithoutTranslationExcludesSources(t *testing.T) {
	// Chinese-only matches via fallback, no dictionary entry: the context can
	// still carry the raw text but no source may surface.
	store := &fakeStore{
		fallback: []vector.Match{
			match("a", "中文内容", "未翻译标题", "https://example.com/blog/zh-only", "zh"),
		},
	}
	engine := New(store, dictionary.New(nil))
	result, err := engine.Retrieve(context.Background(), []float32{0.1}, 3, "en")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("sources = %+v, want none", result.Sources)
	}
	if !strings.Contains(result.Context, "中文内容") {
		t.Fatalf("context should retain raw text, got %q", result.Context)
	}
}

func TestRetrieveEnglishTranslationRewritesSource(t *testing.T) {
	store := &fakeStore{
		fallback: []vector.Match{
			match("a", "中文内容", "双语文章", "https://example.com/blog/pair", "zh"),
		},
	}
	dict := dictionary.New(map[string]string{"双语文章": "Bilingual Post"})
	engine := New(store, dict)
	result, err := engine.Retrieve(context.Background(), []float32{0.1}, 3, "en")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Sources) != 1 {
		t.Fatalf("sources = %+v, want 1", result.Sources)
	}
	src := result.Sources[0]
	if src.URL != "https://example.com/en/blog/pair" {
		t.Errorf("url = %q", src.URL)
	}
	if src.Title != "Bilingual Post" {
		t.Errorf("title = %q", src.Title)
	}
}

func TestRetrieveEnglishPostFilterPrefersEnglishMatches(t *testing.T) {
	store := &fakeStore{
		fallback: []vector.Match{
			match("zh", "中文", "标题", "https://example.com/blog/zh", "zh"),
			match("en", "english", "Title", "https://example.com/en/blog/en", "en"),
		},
	}
	engine := New(store, dictionary.New(nil))
	result, err := engine.Retrieve(context.Background(), []float32{0.1}, 3, "en")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Sources) != 1 || result.Sources[0].ID != "en" {
		t.Fatalf("sources = %+v, want only the english match", result.Sources)
	}
	if strings.Contains(result.Context, "中文") {
		t.Fatalf("chinese match must be filtered out, context = %q", result.Context)
	}
}

func TestRetrieveChinesePostFilterDropsEnglish(t *testing.T) {
	store := &fakeStore{
		fallback: []vector.Match{
			match("zh", "中文", "标题", "https://example.com/blog/zh", "zh"),
			match("en", "english", "Title", "https://example.com/en/blog/en", "en"),
		},
	}
	engine := New(store, dictionary.New(nil))
	result, err := engine.Retrieve(context.Background(), []float32{0.1}, 3, "zh")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Sources) != 1 || result.Sources[0].ID != "zh" {
		t.Fatalf("sources = %+v, want only the chinese match", result.Sources)
	}
}

func TestRetrieveDeduplicatesSources(t *testing.T) {
	store := &fakeStore{
		filtered: []vector.Match{
			match("a", "chunk one", "Title", "https://example.com/blog/dup", "zh"),
			match("b", "chunk two", "Title", "https://example.com/blog/dup", "zh"),
			match("c", "placeholder", "Orphan", "", "zh"),
			match("d", "chunk three", "Other", "https://example.com/blog/other", "zh"),
		},
	}
	engine := New(store, dictionary.New(nil))
	result, err := engine.Retrieve(context.Background(), []float32{0.1}, 4, "zh")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("sources = %+v, want 2", result.Sources)
	}
	if result.Sources[0].ID != "a" || result.Sources[1].ID != "d" {
		t.Fatalf("first-seen order not preserved: %+v", result.Sources)
	}
	// The context still carries every validated chunk, including duplicates.
	for _, want := range []string{"chunk one", "chunk two", "chunk three", "placeholder"} {
		if !strings.Contains(result.Context, want) {
			t.Errorf("context missing %q", want)
		}
	}
}
