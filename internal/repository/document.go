package repository

import (
	"context"
	"errors"
	"time"

	"github.com/arclight-ai/quarry/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, owner_id, collection_id, filename, status, linked, raw_text_preview, storage_key, last_error, created_at, updated_at`

// DocumentRepository handles persistence of knowledge documents.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, owner_id, collection_id, filename, status, linked, raw_text_preview, storage_key, last_error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.OwnerID, d.CollectionID, nullableString(d.Filename), d.Status, d.Linked,
		nullableString(d.RawTextPreview), nullableString(d.StorageKey), nullableString(d.LastError),
		d.CreatedAt, d.UpdatedAt,
	)
	return err
}

// GetByID fetches a document scoped to its owner; the owner predicate is the
// multi-tenancy boundary and is part of the query, not caller intent.
func (r *DocumentRepository) GetByID(ctx context.Context, ownerID, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	return scanDocument(row)
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, lastError string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, last_error = $2, updated_at = $3 WHERE id = $4`,
		status, nullableString(lastError), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// MarkProcessed finishes a successful processing attempt: terminal status,
// stored preview, cleared error.
func (r *DocumentRepository) MarkProcessed(ctx context.Context, id string, rawTextPreview string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, raw_text_preview = $2, last_error = NULL, updated_at = $3 WHERE id = $4`,
		domain.DocumentStatusProcessed, nullableString(rawTextPreview), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) SetLinked(ctx context.Context, ownerID, id string, linked bool) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET linked = $1, updated_at = $2 WHERE id = $3 AND owner_id = $4`,
		linked, time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ListLinkedProcessedIDs returns the documents in a collection that are
// eligible for search. An empty result lets search short-circuit before any
// embedding call.
func (r *DocumentRepository) ListLinkedProcessedIDs(ctx context.Context, ownerID, collectionID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM documents
		 WHERE owner_id = $1 AND collection_id = $2 AND status = $3 AND linked`,
		ownerID, collectionID, domain.DocumentStatusProcessed,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPending returns documents waiting to be processed, oldest first.
func (r *DocumentRepository) ListPending(ctx context.Context, limit int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE status = $1 ORDER BY updated_at ASC LIMIT $2`,
		domain.DocumentStatusPending, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var filename, preview, storageKey, lastError *string
	err := row.Scan(&d.ID, &d.OwnerID, &d.CollectionID, &filename, &d.Status, &d.Linked,
		&preview, &storageKey, &lastError, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if filename != nil {
		d.Filename = *filename
	}
	if preview != nil {
		d.RawTextPreview = *preview
	}
	if storageKey != nil {
		d.StorageKey = *storageKey
	}
	if lastError != nil {
		d.LastError = *lastError
	}
	return &d, nil
}
