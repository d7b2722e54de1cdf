// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"expvar"
	"sync"
	"time"
)

var (
	initOnce sync.Once

	vectorQueryTotal     *expvar.Int
	vectorQueryFailures  *expvar.Int
	vectorQueryLatencyMS *expvar.Int

	retrievalTotal    *expvar.Int
	retrievalFallback *expvar.Int

	ingestDocsTotal   *expvar.Int
	ingestChunksTotal *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		vectorQueryTotal = expvar.NewInt("sitechat_vector_query_total")
		vectorQueryFailures = expvar.NewInt("sitechat_vector_query_failures")
		vectorQueryLatencyMS = expvar.NewInt("sitechat_vector_query_latency_ms")

		retrievalTotal = expvar.NewInt("sitechat_retrieval_total")
		retrievalFallback = expvar.NewInt("sitechat_retrieval_fallback_total")

		ingestDocsTotal = expvar.NewInt("sitechat_ingest_docs_total")
		ingestChunksTotal = expvar.NewInt("sitechat_ingest_chunks_total")
	})
}

// RecordVectorQuery tracks a single vector store round trip.
func RecordVectorQuery(ok bool, elapsed time.Duration) {
	ensureInit()
	vectorQueryTotal.Add(1)
	if !ok {
		vectorQueryFailures.Add(1)
	}
	vectorQueryLatencyMS.Add(elapsed.Milliseconds())
}

// RecordRetrieval tracks a retrieval request and whether the unfiltered
// fallback path was taken.
func RecordRetrieval(fallback bool) {
	ensureInit()
	retrievalTotal.Add(1)
	if fallback {
		retrievalFallback.Add(1)
	}
}

// RecordIngest tracks documents and chunks written during an ingestion run.
func RecordIngest(docs, chunks int) {
	ensureInit()
	ingestDocsTotal.Add(int64(docs))
	ingestChunksTotal.Add(int64(chunks))
}

// Snapshot returns the current counter values keyed by expvar name.
func Snapshot() map[string]int64 {
	ensureInit()
	return map[string]int64{
		"sitechat_vector_query_total":       vectorQueryTotal.Value(),
		"sitechat_vector_query_failures":    vectorQueryFailures.Value(),
		"sitechat_vector_query_latency_ms":  vectorQueryLatencyMS.Value(),
		"sitechat_retrieval_total":          retrievalTotal.Value(),
		"sitechat_retrieval_fallback_total": retrievalFallback.Value(),
		"sitechat_ingest_docs_total":        ingestDocsTotal.Value(),
		"sitechat_ingest_chunks_total":      ingestChunksTotal.Value(),
	}
}
