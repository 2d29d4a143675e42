package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the processing state of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusCancelled  DocumentStatus = "cancelled"
	DocumentStatusError      DocumentStatus = "error"
)

// Document represents an uploaded knowledge document within a collection
type Document struct {
	ID             string
	OwnerID        string
	CollectionID   string
	Filename       string
	Status         DocumentStatus
	Linked         bool
	RawTextPreview string
	StorageKey     string
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewDocument creates a new Document in the pending state
func NewDocument(id, ownerID, collectionID, filename string, linked bool, createdAt time.Time) *Document {
	return &Document{
		ID:           id,
		OwnerID:      ownerID,
		CollectionID: collectionID,
		Filename:     filename,
		Status:       DocumentStatusPending,
		Linked:       linked,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.OwnerID == "" {
		return fmt.Errorf("document OwnerID is required")
	}

	if d.CollectionID == "" {
		return fmt.Errorf("document CollectionID is required")
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	return nil
}

// CanTransition reports whether a status transition is allowed.
// Reprocessing re-enters the pipeline from any terminal state, either
// directly ("processing") or via the queue ("pending").
func CanTransition(from, to DocumentStatus) bool {
	switch to {
	case DocumentStatusProcessing:
		return from == DocumentStatusPending ||
			from == DocumentStatusProcessed ||
			from == DocumentStatusError ||
			from == DocumentStatusCancelled
	case DocumentStatusProcessed, DocumentStatusError, DocumentStatusCancelled:
		return from == DocumentStatusProcessing
	case DocumentStatusPending:
		return from.IsTerminal()
	}
	return false
}

// IsTerminal reports whether a status is terminal for a processing attempt.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case DocumentStatusProcessed, DocumentStatusError, DocumentStatusCancelled:
		return true
	}
	return false
}

// isValidDocumentStatus checks if a DocumentStatus is valid
func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing,
		DocumentStatusProcessed, DocumentStatusCancelled, DocumentStatusError:
		return true
	}
	return false
}
