package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/arclight-ai/quarry/internal/domain"
	"github.com/arclight-ai/quarry/internal/telemetry"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, ownerID, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, lastError string) error
	MarkProcessed(ctx context.Context, id string, rawTextPreview string) error
	SetLinked(ctx context.Context, ownerID, id string, linked bool) error
	ListLinkedProcessedIDs(ctx context.Context, ownerID, collectionID string) ([]string, error)
	ListPending(ctx context.Context, limit int) ([]*domain.Document, error)
}

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error
	FetchSearchCandidates(ctx context.Context, ownerID, collectionID string, limit int) ([]domain.Chunk, error)
	CountByDocument(ctx context.Context, documentID string) (int, error)
}

// ProcessorConfig controls batching and rate limiting during indexing.
type ProcessorConfig struct {
	// BatchSize chunks are embedded concurrently, then the whole batch is
	// awaited before the next one starts.
	BatchSize int
	// BatchPause is a fixed delay between batches to respect provider
	// rate limits. Backpressure, not correctness.
	BatchPause time.Duration
	// PreviewChars bounds the raw-text excerpt stored on success.
	PreviewChars int
	Chunking     ChunkConfig
}

// DefaultProcessorConfig provides defaults for document processing.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		BatchSize:    5,
		BatchPause:   time.Second,
		PreviewChars: 5000,
		Chunking:     DefaultChunkConfig(),
	}
}

// ProcessingResult summarizes one processing attempt.
type ProcessingResult struct {
	DocumentID string
	Status     domain.DocumentStatus
	ChunkCount int
}

// DocumentProcessor turns a document's raw text into embedded chunks and
// owns the document's processing state machine.
type DocumentProcessor struct {
	client EmbeddingClient
	docs   DocumentRepositoryInterface
	tx     TxRunner
	cfg    ProcessorConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDocumentProcessor creates a new DocumentProcessor instance
func NewDocumentProcessor(client EmbeddingClient, docs DocumentRepositoryInterface, tx TxRunner) *DocumentProcessor {
	return NewDocumentProcessorWithConfig(client, docs, tx, DefaultProcessorConfig())
}

// NewDocumentProcessorWithConfig creates a DocumentProcessor with explicit configuration
func NewDocumentProcessorWithConfig(client EmbeddingClient, docs DocumentRepositoryInterface, tx TxRunner, cfg ProcessorConfig) *DocumentProcessor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = 5000
	}
	return &DocumentProcessor{
		client: client,
		docs:   docs,
		tx:     tx,
		cfg:    cfg,
		locks:  make(map[string]*sync.Mutex),
	}
}

// embedOutcome is the explicit per-chunk result for one batch; the chunk
// index is fixed before embedding starts, never derived from completion order.
type embedOutcome struct {
	index     int
	embedding []float32
	err       error
}

// Process runs one full indexing attempt for a document. The document never
// remains in "processing" after this returns: every attempt resolves to
// processed, error, or cancelled. Previously indexed chunks are only replaced
// after every new embedding has been generated, so a failed attempt keeps the
// last good index intact.
func (p *DocumentProcessor) Process(ctx context.Context, doc *domain.Document, rawText string) (*ProcessingResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentProcessor.Process", telemetry.SpanAttributes{
		OwnerID:      doc.OwnerID,
		CollectionID: doc.CollectionID,
		DocumentID:   doc.ID,
	})
	defer span.End()

	// Two attempts for the same document would race on the chunk swap.
	lock := p.lockFor(doc.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := p.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing, ""); err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatusProcessing

	texts := chunkText(rawText, p.cfg.Chunking)
	if len(texts) == 0 {
		p.resolve(ctx, doc, domain.DocumentStatusError, domain.ErrEmptyDocumentText.Message)
		span.SetError(domain.ErrEmptyDocumentText)
		return nil, domain.ErrEmptyDocumentText
	}

	embeddings, err := p.embedAll(ctx, texts)
	if err != nil {
		status := domain.DocumentStatusError
		if ctx.Err() != nil {
			status = domain.DocumentStatusCancelled
		}
		p.resolve(ctx, doc, status, err.Error())
		span.SetError(err)
		return nil, err
	}

	chunks := make([]domain.Chunk, 0, len(texts))
	now := time.Now().UTC()
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			DocumentID:   doc.ID,
			OwnerID:      doc.OwnerID,
			CollectionID: doc.CollectionID,
			Index:        i,
			Text:         text,
			Embedding:    embeddings[i],
			CreatedAt:    now,
		})
	}

	if err := domain.ValidateChunkSet(doc, chunks); err != nil {
		p.resolve(ctx, doc, domain.DocumentStatusError, err.Error())
		span.SetError(err)
		return nil, err
	}

	// The preview lands in a TEXT column, so the cut must not split a rune.
	preview := truncateRunes(rawText, p.cfg.PreviewChars)

	// Swap atomically: the old chunk set is only deleted once the full new
	// set and the status update commit together.
	err = p.tx.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().ReplaceChunks(ctx, doc.ID, chunks); err != nil {
			return err
		}
		return repos.Documents().MarkProcessed(ctx, doc.ID, preview)
	})
	if err != nil {
		p.resolve(ctx, doc, domain.DocumentStatusError, err.Error())
		span.SetError(err)
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	doc.Status = domain.DocumentStatusProcessed
	doc.RawTextPreview = preview

	return &ProcessingResult{
		DocumentID: doc.ID,
		Status:     domain.DocumentStatusProcessed,
		ChunkCount: len(chunks),
	}, nil
}

// embedAll embeds chunk texts in sequential batches, concurrently within each
// batch. Any single failure aborts the remaining batches; nothing embedded so
// far is persisted by the caller in that case.
func (p *DocumentProcessor) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += p.cfg.BatchSize {
		if start > 0 && p.cfg.BatchPause > 0 {
			// Cancellation is honored between batches, never mid-batch.
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.cfg.BatchPause):
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + p.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		outcomes := make([]embedOutcome, end-start)
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(index int, text string) {
				defer wg.Done()
				embedding, err := p.client.GenerateEmbedding(ctx, text)
				outcomes[index-start] = embedOutcome{index: index, embedding: embedding, err: err}
			}(i, texts[i])
		}
		wg.Wait()

		for _, outcome := range outcomes {
			if outcome.err != nil {
				return nil, fmt.Errorf("embedding chunk %d failed: %w", outcome.index, outcome.err)
			}
			embeddings[outcome.index] = outcome.embedding
		}
	}

	return embeddings, nil
}

// resolve moves the document out of "processing" and logs rather than fails
// when even the status write is broken.
func (p *DocumentProcessor) resolve(ctx context.Context, doc *domain.Document, status domain.DocumentStatus, lastError string) {
	// A cancelled context can no longer carry the status write.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if err := p.docs.UpdateStatus(ctx, doc.ID, status, lastError); err != nil {
		log.Printf("document %s: failed to record status %s: %v", doc.ID, status, err)
		telemetry.CaptureError(ctx, err)
		return
	}
	doc.Status = status
	doc.LastError = lastError
}

func (p *DocumentProcessor) lockFor(documentID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[documentID] = lock
	}
	return lock
}

// truncateRunes cuts s to at most max bytes, backing up to the nearest rune
// boundary so the result is always valid UTF-8.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
