// File path: internal/ingest/pipeline.go
package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nlzhang/sitechat/internal/catalog"
	"github.com/nlzhang/sitechat/internal/common"
	"github.com/nlzhang/sitechat/internal/common/telemetry"
	"github.com/nlzhang/sitechat/internal/content"
	"github.com/nlzhang/sitechat/internal/retriever"
	"github.com/nlzhang/sitechat/internal/vector"
)

// Embedder is the slice of the provider contract the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, input []string) ([][]float32, error)
}

type Config struct {
	ContentRoot string
	BaseURL     string
	MaxChunkLen int
	Concurrency int
}

func (c *Config) applyDefaults() {
	if c.MaxChunkLen <= 0 {
		c.MaxChunkLen = content.DefaultMaxChunkLen
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
}

// Report summarises one ingestion run.
type Report struct {
	Candidates int `json:"candidates"`
	Selected   int `json:"selected"`
	Indexed    int `json:"indexed"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Chunks     int `json:"chunks"`
	Deleted    int `json:"deleted"`
}

// Pipeline turns the markdown content tree into indexed vector items. The
// per-document stages are pure and run concurrently; the catalog/index merge
// runs single-threaded once the full candidate set has been decided.
type Pipeline struct {
	cfg       Config
	resolver  *content.Resolver
	converter content.Converter
	embedder  Embedder
	store     vector.Store
	catalog   *catalog.Store
}

func New(cfg Config, embedder Embedder, store vector.Store, cat *catalog.Store) (*Pipeline, error) {
	cfg.applyDefaults()
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store required")
	}
	resolver, err := content.NewResolver(cfg.ContentRoot, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:       cfg,
		resolver:  resolver,
		converter: content.PlainText{},
		embedder:  embedder,
		store:     store,
		catalog:   cat,
	}, nil
}

// WithConverter swaps the markdown converter; used by tests and callers with
// a richer renderer.
func (p *Pipeline) WithConverter(converter content.Converter) *Pipeline {
	if converter != nil {
		p.converter = converter
	}
	return p
}

type docResult struct {
	source  string
	items   []catalog.Item
	vectors []vector.Item
	skipped bool
	err     error
}

// Run ingests the content tree. A single document's failure is logged and
// counted but never aborts the run.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	logger := common.Logger()
	paths, err := content.ScanMarkdown(p.cfg.ContentRoot)
	if err != nil {
		return Report{}, fmt.Errorf("scan content: %w", err)
	}
	selected := content.Select(paths)
	logger.Info("ingest: corpus selected", "candidates", len(paths), "selected", len(selected))

	report := Report{Candidates: len(paths), Selected: len(selected)}

	jobs := make(chan string)
	results := make(chan docResult)
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rel := range jobs {
				results <- p.processDocument(ctx, rel)
			}
		}()
	}
	go func() {
		for _, rel := range selected {
			jobs <- rel
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	// Merge stage: single-threaded writes to the index and the catalog.
	seen := make(map[string]struct{}, len(selected))
	for result := range results {
		seen[result.source] = struct{}{}
		switch {
		case result.err != nil:
			logger.Warn("ingest: document failed", "source", result.source, "error", result.err)
			report.Failed++
		case result.skipped:
			logger.Debug("ingest: draft skipped", "source", result.source)
			report.Skipped++
			report.Deleted += p.removeSource(ctx, result.source)
		default:
			if err := p.store.Upsert(ctx, result.vectors); err != nil {
				logger.Warn("ingest: upsert failed", "source", result.source, "error", err)
				report.Failed++
				continue
			}
			report.Indexed++
			report.Chunks += len(result.vectors)
			report.Deleted += p.replaceCatalog(ctx, result.source, result.items)
		}
	}

	report.Deleted += p.pruneRemoved(ctx, seen)
	telemetry.RecordIngest(report.Indexed, report.Chunks)
	logger.Info(
		"ingest: run complete",
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"chunks", report.Chunks,
		"deleted", report.Deleted,
	)
	return report, nil
}

// processDocument runs the pure per-document stages: front matter, markdown
// conversion, chunking, path resolution, and embedding.
func (p *Pipeline) processDocument(ctx context.Context, rel string) docResult {
	result := docResult{source: rel}
	raw, err := os.ReadFile(filepath.Join(p.cfg.ContentRoot, filepath.FromSlash(rel)))
	if err != nil {
		result.err = fmt.Errorf("read document: %w", err)
		return result
	}
	fm, body, err := content.ParseFrontMatter(string(raw))
	if err != nil {
		result.err = err
		return result
	}
	if fm.Draft {
		result.skipped = true
		return result
	}
	route, err := p.resolver.Resolve(rel)
	if err != nil {
		result.err = err
		return result
	}
	text := p.converter.Convert(body)
	chunks := content.Chunk(text, p.cfg.MaxChunkLen)
	if len(chunks) == 0 {
		result.skipped = true
		return result
	}
	vectors, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		result.err = fmt.Errorf("embed chunks: %w", err)
		return result
	}
	if len(vectors) != len(chunks) {
		result.err = fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
		return result
	}
	for idx, chunk := range chunks {
		id := itemID(route.URL, rel, idx)
		result.items = append(result.items, catalog.Item{
			ID:         id,
			SourcePath: rel,
			Chunk:      idx,
			URL:        route.URL,
			Language:   route.Language,
			Title:      fm.Title,
		})
		result.vectors = append(result.vectors, vector.Item{
			ID:     id,
			Values: vectors[idx],
			Metadata: map[string]interface{}{
				retriever.MetaText:     chunk,
				retriever.MetaTitle:    fm.Title,
				retriever.MetaSource:   rel,
				retriever.MetaURL:      route.URL,
				retriever.MetaLanguage: route.Language,
			},
		})
	}
	return result
}

func (p *Pipeline) replaceCatalog(ctx context.Context, source string, items []catalog.Item) int {
	if p.catalog == nil {
		return 0
	}
	logger := common.Logger()
	stale, err := p.catalog.ReplaceSource(ctx, source, items)
	if err != nil {
		logger.Warn("ingest: catalog update failed", "source", source, "error", err)
		return 0
	}
	return p.deleteIDs(ctx, stale)
}

func (p *Pipeline) removeSource(ctx context.Context, source string) int {
	if p.catalog == nil {
		return 0
	}
	logger := common.Logger()
	removed, err := p.catalog.DeleteSource(ctx, source)
	if err != nil {
		logger.Warn("ingest: catalog removal failed", "source", source, "error", err)
		return 0
	}
	return p.deleteIDs(ctx, removed)
}

// pruneRemoved deletes index entries for sources that vanished from the
// content tree since the previous run.
func (p *Pipeline) pruneRemoved(ctx context.Context, seen map[string]struct{}) int {
	if p.catalog == nil {
		return 0
	}
	logger := common.Logger()
	known, err := p.catalog.SourcePaths(ctx)
	if err != nil {
		logger.Warn("ingest: catalog listing failed", "error", err)
		return 0
	}
	deleted := 0
	for _, source := range known {
		if _, ok := seen[source]; ok {
			continue
		}
		logger.Info("ingest: pruning removed source", "source", source)
		deleted += p.removeSource(ctx, source)
	}
	return deleted
}

func (p *Pipeline) deleteIDs(ctx context.Context, ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	logger := common.Logger()
	if err := p.store.DeleteByIDs(ctx, ids); err != nil {
		logger.Warn("ingest: stale id deletion failed", "ids", len(ids), "error", err)
		return 0
	}
	return len(ids)
}

// itemID derives the deterministic identifier for one indexed chunk, keeping
// re-upserts idempotent.
func itemID(url, source string, chunk int) string {
	sum := sha1.Sum([]byte(strings.Join([]string{url, source, fmt.Sprintf("%d", chunk)}, "|")))
	return hex.EncodeToString(sum[:])
}
