package service

import (
	"fmt"
	"strings"

	"github.com/arclight-ai/quarry/internal/domain"
)

// FormatPassages renders ranked chunks as numbered, delimited passages ready
// to be spliced into a prompt. Pure transform: no state, no side effects.
func FormatPassages(results []ScoredChunk) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n---\n")
		}

		b.WriteString(fmt.Sprintf("[%d]", i+1))
		if meta := passageMeta(r.Chunk); meta != "" {
			b.WriteString(" (" + meta + ")")
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(r.Chunk.Text))
	}

	return b.String()
}

func passageMeta(c domain.Chunk) string {
	var parts []string
	if c.PageNumber != nil {
		parts = append(parts, fmt.Sprintf("page %d", *c.PageNumber))
	}
	if c.SectionTitle != "" {
		parts = append(parts, c.SectionTitle)
	}
	return strings.Join(parts, ", ")
}
