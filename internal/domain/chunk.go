package domain

import (
	"fmt"
	"time"
)

// Chunk represents a bounded, indexed slice of a document's text paired with
// its embedding vector. Owner and collection are denormalized from the owning
// document so search candidates can be scoped without a join.
type Chunk struct {
	ID           string
	DocumentID   string
	OwnerID      string
	CollectionID string
	Index        int
	Text         string
	Embedding    []float32
	PageNumber   *int
	SectionTitle string
	CreatedAt    time.Time
}

// ValidateChunkSet validates a full replacement set for one document:
// indices must be dense starting at 0, scope must match the owning document,
// and every embedding must share one dimensionality.
func ValidateChunkSet(d *Document, chunks []Chunk) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	dims := 0
	for i, c := range chunks {
		if c.DocumentID != d.ID {
			return fmt.Errorf("chunk %d belongs to document %s, expected %s", i, c.DocumentID, d.ID)
		}
		if c.OwnerID != d.OwnerID || c.CollectionID != d.CollectionID {
			return ErrScopeViolation
		}
		if c.Index != i {
			return fmt.Errorf("chunk indices must be dense: got %d at position %d", c.Index, i)
		}
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %d has no embedding", i)
		}
		if dims == 0 {
			dims = len(c.Embedding)
		} else if len(c.Embedding) != dims {
			return ErrDimensionMismatch
		}
	}

	return nil
}
