package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/arclight-ai/quarry/internal/domain"
	"github.com/arclight-ai/quarry/internal/telemetry"
)

const (
	defaultSearchLimit  = 5
	defaultThreshold    = 0.7
	candidateMultiplier = 3
	maxSearchCandidates = 200
)

// SearchInput describes one retrieval request. Owner and collection are
// explicit on every call; there is no ambient tenant state.
type SearchInput struct {
	OwnerID      string
	CollectionID string
	Query        string
	Limit        int
	// Threshold is the minimum cosine similarity a chunk must score to be
	// returned. Zero selects the default cutoff; a negative value admits
	// every candidate, since cosine similarity never drops below -1.
	Threshold float32
}

// ScoredChunk pairs a candidate chunk with its similarity to the query.
type ScoredChunk struct {
	Chunk domain.Chunk
	Score float32
}

// SearchOutput is the ranked result of one search call.
type SearchOutput struct {
	Results  []ScoredChunk
	TopScore float32
}

// RetrievalService answers natural-language queries with ranked,
// similarity-thresholded passages.
type RetrievalService struct {
	client  EmbeddingClient
	docs    DocumentRepositoryInterface
	chunks  ChunkRepositoryInterface
	logRepo SearchLogRepositoryInterface
	uuidGen UUIDGenerator
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(
	client EmbeddingClient,
	docs DocumentRepositoryInterface,
	chunks ChunkRepositoryInterface,
	logRepo SearchLogRepositoryInterface,
) *RetrievalService {
	return &RetrievalService{
		client:  client,
		docs:    docs,
		chunks:  chunks,
		logRepo: logRepo,
		uuidGen: &DefaultUUIDGenerator{},
	}
}

// Search embeds the query, ranks eligible chunks by cosine similarity, and
// returns at most Limit results at or above Threshold. Candidates with
// malformed stored embeddings are skipped, not zero-scored. Every call
// appends a search log entry, including empty results.
func (s *RetrievalService) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Search", telemetry.SpanAttributes{
		OwnerID:      input.OwnerID,
		CollectionID: input.CollectionID,
	})
	defer span.End()

	if input.OwnerID == "" || input.CollectionID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "owner and collection are required")
	}
	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	threshold := input.Threshold
	if threshold == 0 {
		threshold = defaultThreshold
	}

	start := time.Now()

	// No eligible documents means no embedding call is spent.
	eligible, err := s.docs.ListLinkedProcessedIDs(ctx, input.OwnerID, input.CollectionID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if len(eligible) == 0 {
		out := &SearchOutput{Results: []ScoredChunk{}}
		s.logSearch(ctx, input, nil, out, start)
		return out, nil
	}

	queryEmbedding, err := s.client.GenerateEmbedding(ctx, input.Query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	candidateLimit := limit * candidateMultiplier
	if candidateLimit > maxSearchCandidates {
		candidateLimit = maxSearchCandidates
	}

	candidates, err := s.chunks.FetchSearchCandidates(ctx, input.OwnerID, input.CollectionID, candidateLimit)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	scored := make([]ScoredChunk, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.OwnerID != input.OwnerID || candidate.CollectionID != input.CollectionID {
			telemetry.CaptureError(ctx, domain.ErrScopeViolation)
			span.SetError(domain.ErrScopeViolation)
			return nil, domain.ErrScopeViolation
		}

		score, err := cosineSimilarity(queryEmbedding, candidate.Embedding)
		if err != nil {
			if errors.Is(err, domain.ErrDimensionMismatch) {
				// A stale embedding from a different model must not rank
				// as present-but-irrelevant.
				log.Printf("skipping chunk %s: %v", candidate.ID, err)
				continue
			}
			span.SetError(err)
			return nil, err
		}

		if score >= threshold {
			scored = append(scored, ScoredChunk{Chunk: candidate, Score: score})
		}
	}

	// Stable: equal scores keep candidate fetch order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}

	out := &SearchOutput{Results: scored}
	if len(scored) > 0 {
		out.TopScore = scored[0].Score
	}

	s.logSearch(ctx, input, queryEmbedding, out, start)
	return out, nil
}

// logSearch appends the telemetry row. A failed log write is reported but
// does not fail the search.
func (s *RetrievalService) logSearch(ctx context.Context, input SearchInput, queryEmbedding []float32, out *SearchOutput, start time.Time) {
	if s.logRepo == nil {
		return
	}

	entry := &domain.SearchLog{
		ID:             s.uuidGen.NewString(),
		OwnerID:        input.OwnerID,
		CollectionID:   input.CollectionID,
		Query:          input.Query,
		QueryEmbedding: queryEmbedding,
		ResultCount:    len(out.Results),
		TopScore:       out.TopScore,
		DurationMs:     int(time.Since(start).Milliseconds()),
		CreatedAt:      time.Now().UTC(),
	}

	if _, err := s.logRepo.CreateSearchLog(ctx, entry); err != nil {
		log.Printf("failed to write search log: %v", err)
		telemetry.CaptureError(ctx, err)
	}
}
