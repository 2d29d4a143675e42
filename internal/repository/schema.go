package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EmbeddingColumnDimensions reports the declared dimension of the
// chunks.embedding vector column. pgvector stores the dimension in the
// column's type modifier, so this is a catalog lookup, not a data scan.
// An undimensioned column reports 0.
func EmbeddingColumnDimensions(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var typmod int
	err := pool.QueryRow(ctx, `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = 'chunks'::regclass AND attname = 'embedding'
	`).Scan(&typmod)
	if err != nil {
		return 0, err
	}
	if typmod < 0 {
		return 0, nil
	}
	return typmod, nil
}
