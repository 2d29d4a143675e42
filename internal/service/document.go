package service

import (
	"context"
	"strings"
	"time"

	"github.com/arclight-ai/quarry/internal/domain"
	"github.com/arclight-ai/quarry/internal/telemetry"
)

// RawTextStoreInterface keeps each document's full extracted text so the
// document can be reprocessed later; the database stores only a preview.
type RawTextStoreInterface interface {
	PutDocumentText(ctx context.Context, ownerID, documentID, text string) (string, error)
	GetDocumentText(ctx context.Context, storageKey string) (string, error)
	DeleteDocumentText(ctx context.Context, storageKey string) error
}

// DocumentService handles the document lifecycle around the processor:
// registration, linking, and reprocess requests.
type DocumentService struct {
	docs    DocumentRepositoryInterface
	texts   RawTextStoreInterface
	uuidGen UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(docs DocumentRepositoryInterface, texts RawTextStoreInterface) *DocumentService {
	return &DocumentService{
		docs:    docs,
		texts:   texts,
		uuidGen: &DefaultUUIDGenerator{},
	}
}

// NewDocumentServiceWithUUIDGen creates a DocumentService with a custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(docs DocumentRepositoryInterface, texts RawTextStoreInterface, uuidGen UUIDGenerator) *DocumentService {
	return &DocumentService{
		docs:    docs,
		texts:   texts,
		uuidGen: uuidGen,
	}
}

// CreateDocumentInput represents the input for registering a document
type CreateDocumentInput struct {
	OwnerID      string
	CollectionID string
	Filename     string
	Text         string
	Linked       bool
}

// Create registers extracted document text for indexing. The raw text is
// stored durably first; the document row starts in "pending" and the
// background worker picks it up from there.
func (s *DocumentService) Create(ctx context.Context, input CreateDocumentInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Create", telemetry.SpanAttributes{
		OwnerID:      input.OwnerID,
		CollectionID: input.CollectionID,
	})
	defer span.End()

	if input.OwnerID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "owner ID is required")
	}
	if input.CollectionID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "collection ID is required")
	}
	if strings.TrimSpace(input.Text) == "" {
		return nil, domain.ErrEmptyDocumentText
	}

	doc := domain.NewDocument(
		s.uuidGen.NewString(),
		input.OwnerID,
		input.CollectionID,
		input.Filename,
		input.Linked,
		time.Now().UTC(),
	)

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	storageKey, err := s.texts.PutDocumentText(ctx, doc.OwnerID, doc.ID, input.Text)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store document text", err)
	}
	doc.StorageKey = storageKey

	if err := s.docs.Create(ctx, doc); err != nil {
		span.SetError(err)
		return nil, err
	}

	return doc, nil
}

// Get returns a document scoped to its owner.
func (s *DocumentService) Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	return s.docs.GetByID(ctx, ownerID, documentID)
}

// SetLinked flips whether a document participates in search. Processing
// state is untouched: an unlinked document keeps its chunks and can be
// relinked without reindexing.
func (s *DocumentService) SetLinked(ctx context.Context, ownerID, documentID string, linked bool) (*domain.Document, error) {
	if err := s.docs.SetLinked(ctx, ownerID, documentID, linked); err != nil {
		return nil, err
	}
	return s.docs.GetByID(ctx, ownerID, documentID)
}

// Reprocess queues a full reindex of a document. The previous chunk set
// stays live until the new run replaces it.
func (s *DocumentService) Reprocess(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	doc, err := s.docs.GetByID(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}

	if doc.Status == domain.DocumentStatusProcessing {
		return nil, domain.ErrProcessingInProgress
	}

	if err := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusPending, ""); err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatusPending
	return doc, nil
}
