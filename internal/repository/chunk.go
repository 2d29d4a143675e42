package repository

import (
	"context"
	"time"

	"github.com/arclight-ai/quarry/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository handles persistence of embedded document chunks.
type ChunkRepository struct {
	db dbtx
	// pool is set only for standalone repositories so ReplaceChunks can
	// open its own transaction; transaction-bound repositories leave it
	// nil and run inside the caller's transaction.
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool, pool: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes a document's existing chunks and inserts the new set
// as one transaction. A reader never observes a mix of old and new chunks.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	if r.pool == nil {
		return r.replaceIn(ctx, r.db, documentID, chunks)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := r.replaceIn(ctx, tx, documentID, chunks); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ChunkRepository) replaceIn(ctx context.Context, db dbtx, documentID string, chunks []domain.Chunk) error {
	if _, err := db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return err
	}

	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		batch.Queue(
			`INSERT INTO chunks
				(document_id, owner_id, collection_id, chunk_index, content, embedding, page_number, section_title, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.DocumentID,
			c.OwnerID,
			c.CollectionID,
			c.Index,
			c.Text,
			pgvector.NewVector(c.Embedding),
			c.PageNumber,
			nullableString(c.SectionTitle),
			createdAt,
		)
	}

	results := db.SendBatch(ctx, batch)
	defer results.Close()
	for range chunks {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}

// FetchSearchCandidates returns chunks eligible for ranking: owned by the
// requested tenant and collection, and belonging to a processed, linked
// document. Candidate order is stable (document, then chunk index) so
// tie-breaking downstream is deterministic.
func (r *ChunkRepository) FetchSearchCandidates(ctx context.Context, ownerID, collectionID string, limit int) ([]domain.Chunk, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.document_id, c.owner_id, c.collection_id, c.chunk_index, c.content, c.embedding, c.page_number, c.section_title, c.created_at
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE c.owner_id = $1 AND c.collection_id = $2
		   AND d.status = $3 AND d.linked
		 ORDER BY c.document_id, c.chunk_index
		 LIMIT $4`,
		ownerID, collectionID, domain.DocumentStatusProcessed, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0, limit)
	for rows.Next() {
		var c domain.Chunk
		var embedding pgvector.Vector
		var sectionTitle *string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.OwnerID, &c.CollectionID, &c.Index,
			&c.Text, &embedding, &c.PageNumber, &sectionTitle, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Embedding = embedding.Slice()
		if sectionTitle != nil {
			c.SectionTitle = *sectionTitle
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CountByDocument returns how many chunks a document currently has.
func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1`,
		documentID,
	).Scan(&count)
	return count, err
}
