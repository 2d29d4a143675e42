package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/arclight-ai/quarry/internal/domain"
	"github.com/arclight-ai/quarry/internal/service"
)

const (
	// DefaultClaimLimit caps how many pending documents one poll picks up
	DefaultClaimLimit = 10
)

// DocumentWorker indexes pending documents in the background
type DocumentWorker struct {
	docs       service.DocumentRepositoryInterface
	texts      service.RawTextStoreInterface
	processor  *service.DocumentProcessor
	claimLimit int
}

// NewDocumentWorker creates a new DocumentWorker instance
func NewDocumentWorker(docs service.DocumentRepositoryInterface, texts service.RawTextStoreInterface, processor *service.DocumentProcessor) *DocumentWorker {
	return &DocumentWorker{
		docs:       docs,
		texts:      texts,
		processor:  processor,
		claimLimit: DefaultClaimLimit,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *DocumentWorker) ProcessJobs(ctx context.Context) error {
	docs, err := w.docs.ListPending(ctx, w.claimLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch pending documents: %w", err)
	}

	if len(docs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending documents", len(docs))

	for _, doc := range docs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.processDocument(ctx, doc); err != nil {
			log.Printf("Error processing document %s: %v", doc.ID, err)
		}
	}

	return nil
}

func (w *DocumentWorker) processDocument(ctx context.Context, doc *domain.Document) error {
	log.Printf("Processing document %s (%s)", doc.ID, doc.Filename)

	rawText, err := w.texts.GetDocumentText(ctx, doc.StorageKey)
	if err != nil {
		// Without its text the document cannot be indexed at all.
		msg := fmt.Sprintf("failed to load document text: %v", err)
		if uerr := w.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusError, msg); uerr != nil {
			return fmt.Errorf("%s (and failed to record error: %v)", msg, uerr)
		}
		return fmt.Errorf("%s", msg)
	}

	result, err := w.processor.Process(ctx, doc, rawText)
	if err != nil {
		return err
	}

	log.Printf("Document %s processed into %d chunks", result.DocumentID, result.ChunkCount)
	return nil
}
