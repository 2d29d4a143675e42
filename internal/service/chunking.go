package service

import (
	"regexp"
	"strings"
)

// ChunkConfig controls how raw document text is segmented for embedding.
type ChunkConfig struct {
	// TargetChars is a soft size bound: a buffer is emitted before a
	// sentence would push it past this length. A single sentence longer
	// than TargetChars is still emitted whole.
	TargetChars int
	// Overlap approximates how many characters of trailing context seed
	// the next chunk; the tail is taken as Overlap/5 words.
	Overlap int
	// MinChars drops emitted chunks shorter than this as noise.
	MinChars int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		TargetChars: 1000,
		Overlap:     200,
		MinChars:    50,
	}
}

var sentenceSplitter = regexp.MustCompile(`[^.!?]+`)

// chunkText splits raw text into ordered, overlapping segments on sentence
// boundaries. It is pure and deterministic: identical input and config always
// produce identical output, which reprocessing and the tests rely on.
func chunkText(text string, cfg ChunkConfig) []string {
	if cfg.TargetChars <= 0 {
		cfg = DefaultChunkConfig()
	}

	sentences := sentenceSplitter.FindAllString(text, -1)
	chunks := make([]string, 0, 8)
	var buf strings.Builder

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if buf.Len() > 0 && buf.Len()+len(sentence) > cfg.TargetChars {
			emitted := buf.String()
			chunks = append(chunks, emitted)
			buf.Reset()
			buf.WriteString(overlapTail(emitted, cfg.Overlap))
		}

		buf.WriteString(sentence)
		buf.WriteString(". ")
	}

	if strings.TrimSpace(buf.String()) != "" {
		chunks = append(chunks, buf.String())
	}

	filtered := chunks[:0]
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if len(c) >= cfg.MinChars {
			filtered = append(filtered, c)
		}
	}

	return filtered
}

// overlapTail returns the last overlap/5 whitespace-delimited words of a
// chunk, re-joined with a trailing space, approximating ~overlap characters
// of carried context.
func overlapTail(chunk string, overlap int) string {
	wordCount := overlap / 5
	if wordCount <= 0 {
		return ""
	}

	words := strings.Fields(chunk)
	if len(words) > wordCount {
		words = words[len(words)-wordCount:]
	}
	if len(words) == 0 {
		return ""
	}

	return strings.Join(words, " ") + " "
}
