package service

import (
	"strings"
	"testing"

	"github.com/arclight-ai/quarry/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPassages_Empty(t *testing.T) {
	assert.Equal(t, "", FormatPassages(nil))
	assert.Equal(t, "", FormatPassages([]ScoredChunk{}))
}

func TestFormatPassages_NumbersAndDelimits(t *testing.T) {
	results := []ScoredChunk{
		{Chunk: domain.Chunk{Text: "First passage text."}, Score: 0.9},
		{Chunk: domain.Chunk{Text: "Second passage text."}, Score: 0.8},
	}

	out := FormatPassages(results)

	parts := strings.Split(out, "\n---\n")
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[0], "[1]\n"))
	assert.True(t, strings.HasPrefix(parts[1], "[2]\n"))
	assert.Contains(t, parts[0], "First passage text.")
	assert.Contains(t, parts[1], "Second passage text.")
}

func TestFormatPassages_Metadata(t *testing.T) {
	page := 7
	results := []ScoredChunk{
		{Chunk: domain.Chunk{Text: "Body.", PageNumber: &page, SectionTitle: "Intro"}},
	}

	out := FormatPassages(results)
	assert.True(t, strings.HasPrefix(out, "[1] (page 7, Intro)\n"))
}

func TestFormatPassages_TrimsChunkWhitespace(t *testing.T) {
	results := []ScoredChunk{
		{Chunk: domain.Chunk{Text: "  padded text  \n"}},
	}
	assert.Equal(t, "[1]\npadded text", FormatPassages(results))
}
