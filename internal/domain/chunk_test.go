package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testDocument() *Document {
	return NewDocument("doc-1", "owner-1", "coll-1", "guide.txt", true, time.Now().UTC())
}

func testChunk(doc *Document, index, dims int) Chunk {
	return Chunk{
		DocumentID:   doc.ID,
		OwnerID:      doc.OwnerID,
		CollectionID: doc.CollectionID,
		Index:        index,
		Text:         "chunk text long enough to be meaningful for retrieval purposes",
		Embedding:    make([]float32, dims),
	}
}

func TestValidateChunkSet_Valid(t *testing.T) {
	doc := testDocument()
	chunks := []Chunk{testChunk(doc, 0, 1536), testChunk(doc, 1, 1536), testChunk(doc, 2, 1536)}

	assert.NoError(t, ValidateChunkSet(doc, chunks))
}

func TestValidateChunkSet_EmptySetIsValid(t *testing.T) {
	assert.NoError(t, ValidateChunkSet(testDocument(), nil))
}

func TestValidateChunkSet_IndexGap(t *testing.T) {
	doc := testDocument()
	chunks := []Chunk{testChunk(doc, 0, 8), testChunk(doc, 2, 8)}

	err := ValidateChunkSet(doc, chunks)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dense")
}

func TestValidateChunkSet_ScopeMismatch(t *testing.T) {
	doc := testDocument()
	chunks := []Chunk{testChunk(doc, 0, 8)}
	chunks[0].OwnerID = "other-owner"

	assert.ErrorIs(t, ValidateChunkSet(doc, chunks), ErrScopeViolation)
}

func TestValidateChunkSet_WrongDocument(t *testing.T) {
	doc := testDocument()
	chunks := []Chunk{testChunk(doc, 0, 8)}
	chunks[0].DocumentID = "doc-2"

	assert.Error(t, ValidateChunkSet(doc, chunks))
}

func TestValidateChunkSet_MixedDimensions(t *testing.T) {
	doc := testDocument()
	chunks := []Chunk{testChunk(doc, 0, 1536), testChunk(doc, 1, 768)}

	assert.ErrorIs(t, ValidateChunkSet(doc, chunks), ErrDimensionMismatch)
}

func TestValidateChunkSet_MissingEmbedding(t *testing.T) {
	doc := testDocument()
	chunks := []Chunk{testChunk(doc, 0, 0)}

	assert.Error(t, ValidateChunkSet(doc, chunks))
}
