// Package retrieve implements the retrieval orchestrator: embeds a query,
// fans it out across one or both scope collections, merges and resorts
// the results, and assembles a bounded ContextPack for the chat layer.
package retrieve

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docrag/engine/internal/embed"
	"github.com/docrag/engine/internal/store"
)

// DefaultLimit is used when a search request doesn't specify one.
const DefaultLimit = 5

// ScopeSelector chooses which scope collections a search queries.
type ScopeSelector string

const (
	SelectPolicyManual ScopeSelector = "policy_manual"
	SelectWorkspaceDocs ScopeSelector = "workspace_docs"
	SelectBoth          ScopeSelector = "both"
)

func (s ScopeSelector) scopes() []store.Scope {
	switch s {
	case SelectPolicyManual:
		return []store.Scope{store.ScopePolicyManual}
	case SelectWorkspaceDocs:
		return []store.Scope{store.ScopeWorkspaceDocs}
	case SelectBoth, "":
		return []store.Scope{store.ScopePolicyManual, store.ScopeWorkspaceDocs}
	default:
		return nil
	}
}

// Request describes a search call.
type Request struct {
	Query string
	Scope ScopeSelector
	Limit int
}

// Attribution identifies one chunk contributing to a ContextPack's
// answer context.
type Attribution struct {
	DocID      string
	Filename   string
	ChunkID    string
	ChunkIndex int
	RangeHint  string
	Score      float32
	Scope      store.Scope
}

// ContextPack is the assembled answer the chat layer consumes.
type ContextPack struct {
	AnswerContext string
	Attributions  []Attribution
	TotalResults  int
	ResponseTime  time.Duration
}

// Orchestrator runs searches against one metadata store, one vector
// store, and one embedder. It holds read-only access to both stores.
type Orchestrator struct {
	metadata store.MetadataStore
	vectors  store.VectorStore
	embedder embed.Embedder

	maxLimit       int
	contextCharCap int

	logger *slog.Logger
}

// New constructs an Orchestrator. maxLimit caps the requested limit;
// contextCharCap bounds the assembled answer context's length.
func New(metadata store.MetadataStore, vectors store.VectorStore, embedder embed.Embedder, maxLimit, contextCharCap int, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxLimit <= 0 {
		maxLimit = DefaultLimit
	}
	if contextCharCap <= 0 {
		contextCharCap = 8000
	}
	return &Orchestrator{
		metadata:       metadata,
		vectors:        vectors,
		embedder:       embedder,
		maxLimit:       maxLimit,
		contextCharCap: contextCharCap,
		logger:         logger,
	}
}

// Search embeds the query, fans out across the requested scopes, merges
// and resorts by score, fetches chunk text, and assembles a ContextPack.
// Any failure after the query embedding step returns an empty
// ContextPack rather than an error, per the fail-soft retrieval policy.
func (o *Orchestrator) Search(ctx context.Context, req Request) ContextPack {
	start := time.Now()

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > o.maxLimit {
		limit = o.maxLimit
	}

	scopes := req.Scope.scopes()
	if len(scopes) == 0 {
		scopes = ScopeSelector(SelectBoth).scopes()
	}

	queryVector, err := o.embedder.Embed(ctx, req.Query)
	if err != nil {
		o.logger.Error("search: failed to embed query", slog.String("error", err.Error()))
		return empty(start)
	}

	var merged []store.VectorResult
	for _, scope := range scopes {
		results, err := o.vectors.Query(ctx, scope, queryVector, limit)
		if err != nil {
			o.logger.Error("search: vector query failed", slog.String("scope", string(scope)), slog.String("error", err.Error()))
			return empty(start)
		}
		merged = append(merged, results...)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].DocID != merged[j].DocID {
			return merged[i].DocID < merged[j].DocID
		}
		return merged[i].ChunkIndex < merged[j].ChunkIndex
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	if len(merged) == 0 {
		o.appendHistory(ctx, req, scopes, 0, time.Since(start))
		return empty(start)
	}

	chunkIDs := make([]string, len(merged))
	for i, r := range merged {
		chunkIDs[i] = r.ChunkID
	}
	chunks, err := o.metadata.GetChunks(ctx, chunkIDs)
	if err != nil {
		o.logger.Error("search: failed to fetch chunks", slog.String("error", err.Error()))
		return empty(start)
	}
	textByID := make(map[string]string, len(chunks))
	for _, c := range chunks {
		textByID[c.ChunkID] = c.Text
	}

	var answer strings.Builder
	attributions := make([]Attribution, 0, len(merged))
	for _, r := range merged {
		text, ok := textByID[r.ChunkID]
		if !ok {
			continue
		}
		if answer.Len() > 0 {
			answer.WriteString("\n\n")
		}
		answer.WriteString(text)

		attributions = append(attributions, Attribution{
			DocID:      r.DocID,
			Filename:   r.Filename,
			ChunkID:    r.ChunkID,
			ChunkIndex: r.ChunkIndex,
			RangeHint:  rangeHint(r.ChunkIndex),
			Score:      r.Score,
			Scope:      r.Scope,
		})
	}

	answerContext := answer.String()
	if len(answerContext) > o.contextCharCap {
		answerContext = answerContext[:o.contextCharCap]
	}

	pack := ContextPack{
		AnswerContext: answerContext,
		Attributions:  attributions,
		TotalResults:  len(attributions),
		ResponseTime:  time.Since(start),
	}

	o.appendHistory(ctx, req, scopes, pack.TotalResults, pack.ResponseTime)
	return pack
}

func (o *Orchestrator) appendHistory(ctx context.Context, req Request, scopes []store.Scope, resultCount int, elapsed time.Duration) {
	scope := store.ScopeWorkspaceDocs
	if len(scopes) == 1 {
		scope = scopes[0]
	}
	entry := &store.SearchHistoryEntry{
		Query:        req.Query,
		Scope:        scope,
		Timestamp:    time.Now().UTC(),
		ResultCount:  resultCount,
		ResponseTime: elapsed,
	}
	if err := o.metadata.AppendSearchHistory(ctx, entry); err != nil {
		o.logger.Warn("search: failed to append search history", slog.String("error", err.Error()))
	}
}

func rangeHint(chunkIndex int) string {
	return "Chunk " + strconv.Itoa(chunkIndex+1)
}

func empty(start time.Time) ContextPack {
	return ContextPack{ResponseTime: time.Since(start)}
}
