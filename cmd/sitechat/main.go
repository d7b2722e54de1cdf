// File path: cmd/sitechat/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nlzhang/sitechat/internal/agent"
	"github.com/nlzhang/sitechat/internal/api"
	"github.com/nlzhang/sitechat/internal/catalog"
	"github.com/nlzhang/sitechat/internal/common"
	"github.com/nlzhang/sitechat/internal/dictionary"
	"github.com/nlzhang/sitechat/internal/ingest"
	"github.com/nlzhang/sitechat/internal/llm"
	"github.com/nlzhang/sitechat/internal/retriever"
	"github.com/nlzhang/sitechat/internal/vector"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("sitechat: .env file not loaded", "error", err)
	} else {
		logger.Info("sitechat: environment loaded from .env")
	}

	addr := flag.String("addr", ":8080", "listen address")
	contentRoot := flag.String("content", "content", "path to the markdown content tree")
	baseURL := flag.String("base-url", envOr("SITECHAT_BASE_URL", "https://example.com"), "site base url for canonical links")
	dictPath := flag.String("dict", defaultDictPath(), "path to the title dictionary JSON")
	catalogPath := flag.String("catalog", defaultCatalogPath(), "path to the SQLite catalog database")
	maxChunk := flag.Int("max-chunk", 0, "maximum chunk length in runes (0 uses the default)")
	filterTimeout := flag.String("filter-timeout", "", "timeout for the language-filtered query (e.g. 500ms)")
	concurrency := flag.Int("ingest-workers", 0, "ingestion worker count (0 uses the default)")
	runIngest := flag.Bool("ingest", false, "run one ingestion pass and exit")
	buildDict := flag.Bool("build-dict", false, "rebuild the title dictionary from the content tree and exit")
	flag.Parse()

	logger.Info("sitechat: startup initiated", "addr", *addr, "content", *contentRoot, "base_url", *baseURL)

	if *buildDict {
		entries, err := dictionary.Build(*contentRoot)
		if err != nil {
			fatal(logger, "dictionary build failed", err)
		}
		if err := dictionary.Write(*dictPath, entries); err != nil {
			fatal(logger, "dictionary write failed", err)
		}
		logger.Info("sitechat: dictionary written", "path", *dictPath, "entries", len(entries))
		fmt.Printf("Wrote %d dictionary entries to %s\n", len(entries), *dictPath)
		return
	}

	dict, err := dictionary.Load(*dictPath)
	if err != nil {
		fatal(logger, "dictionary load failed", err)
	}
	logger.Info("sitechat: dictionary loaded", "path", *dictPath, "entries", dict.Len())

	vectorClient, err := vector.NewFromEnv()
	if err != nil {
		fatal(logger, "vector store init failed", err)
	}
	defer vectorClient.Close()

	cat, err := catalog.Open(*catalogPath)
	if err != nil {
		fatal(logger, "catalog open failed", err)
	}
	defer cat.Close()

	provider := llm.NewProvider()
	logger.Info("sitechat: llm provider ready", "provider", provider.Name())

	var engineOpts []retriever.Option
	if trimmed := strings.TrimSpace(*filterTimeout); trimmed != "" {
		dur, err := time.ParseDuration(trimmed)
		if err != nil {
			fatal(logger, "invalid filter timeout", err)
		}
		engineOpts = append(engineOpts, retriever.WithFilterTimeout(dur))
	}
	engine := retriever.New(vectorClient, dict, engineOpts...)

	pipeline, err := ingest.New(ingest.Config{
		ContentRoot: *contentRoot,
		BaseURL:     *baseURL,
		MaxChunkLen: *maxChunk,
		Concurrency: *concurrency,
	}, provider, vectorClient, cat)
	if err != nil {
		fatal(logger, "pipeline init failed", err)
	}

	if *runIngest {
		report, err := pipeline.Run(ctx)
		if err != nil {
			fatal(logger, "ingestion failed", err)
		}
		fmt.Printf("Indexed %d documents (%d chunks), skipped %d, failed %d, deleted %d stale items\n",
			report.Indexed, report.Chunks, report.Skipped, report.Failed, report.Deleted)
		return
	}

	runner, err := agent.NewRunner(provider, engine)
	if err != nil {
		fatal(logger, "agent init failed", err)
	}

	server, err := api.NewServer(provider, engine, runner, pipeline, api.LoadConfig())
	if err != nil {
		fatal(logger, "server construction failed", err)
	}

	logger.Info("sitechat: server listening", "addr", *addr, "health", "/healthz")
	fmt.Printf("Serving on %s\n", *addr)
	if err := http.ListenAndServe(*addr, server); err != nil {
		logger.Error("sitechat: server stopped", "error", err)
		fmt.Println("server stopped:", err)
	}
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func defaultDictPath() string {
	return filepath.Join("data", "title_dictionary.json")
}

func defaultCatalogPath() string {
	return filepath.Join("data", "catalog.db")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error("sitechat: "+msg, "error", err)
	fmt.Println(msg+":", err)
	os.Exit(1)
}
