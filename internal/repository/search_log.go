package repository

import (
	"context"
	"time"

	"github.com/arclight-ai/quarry/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// SearchLogRepository stores append-only search telemetry.
type SearchLogRepository struct {
	pool *pgxpool.Pool
}

func NewSearchLogRepository(pool *pgxpool.Pool) *SearchLogRepository {
	return &SearchLogRepository{pool: pool}
}

func (r *SearchLogRepository) CreateSearchLog(ctx context.Context, entry *domain.SearchLog) (string, error) {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	// A short-circuited search has no query embedding; store NULL rather
	// than a zero vector.
	var embedding *pgvector.Vector
	if len(entry.QueryEmbedding) > 0 {
		v := pgvector.NewVector(entry.QueryEmbedding)
		embedding = &v
	}

	var id string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO search_logs (id, owner_id, collection_id, query, query_embedding, result_count, top_score, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		entry.ID,
		entry.OwnerID,
		entry.CollectionID,
		entry.Query,
		embedding,
		entry.ResultCount,
		entry.TopScore,
		entry.DurationMs,
		createdAt,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
