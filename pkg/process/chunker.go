package process

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/Sriram-PR/doc-outline/pkg/utils"
)

// Chunk is a retrieval-sized slice of a document tied to the section it came from.
type Chunk struct {
	Content          string   `json:"content"`
	AnchorID         string   `json:"anchor_id,omitempty"`    // Id of the innermost section
	SequenceKey      string   `json:"sequence_key,omitempty"` // Sequence key of that section; empty for the preamble
	HeadingHierarchy []string `json:"heading_hierarchy,omitempty"`
	TokenCount       int      `json:"token_count"`
}

// ChunkerConfig holds configuration for the chunker.
type ChunkerConfig struct {
	MaxChunkSize int // Tokens; larger sections are split recursively
	ChunkOverlap int // Tokens of overlap between recursive splits
}

// DefaultChunkerConfig returns sensible defaults for retrieval chunking.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxChunkSize: 512,
		ChunkOverlap: 50,
	}
}

// ChunkMarkdown splits markdown section by section so that no chunk spans two
// sections. Sections over MaxChunkSize are split further with a recursive
// character splitter. Every chunk records its section anchor and the titles
// of the enclosing sections, outermost first.
func ChunkMarkdown(markdown string, cfg ChunkerConfig) ([]Chunk, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, nil
	}
	if cfg.MaxChunkSize <= 0 {
		cfg = DefaultChunkerConfig()
	}

	splitter := textsplitter.NewMarkdownTextSplitter(
		textsplitter.WithChunkSize(cfg.MaxChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		textsplitter.WithLenFunc(measure),
		textsplitter.WithSecondSplitter(textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.MaxChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithLenFunc(measure),
		)),
	)

	var chunks []Chunk
	var trail []SectionBody // open ancestors, outermost first
	for _, sb := range SplitSections(markdown) {
		if sb.SequenceKey != "" {
			for len(trail) > 0 && trail[len(trail)-1].Level >= sb.Level {
				trail = trail[:len(trail)-1]
			}
			trail = append(trail, sb)
		}
		hierarchy := make([]string, 0, len(trail))
		for _, open := range trail {
			hierarchy = append(hierarchy, open.Title)
		}

		parts := []string{sb.Body}
		if measure(sb.Body) > cfg.MaxChunkSize {
			split, err := splitter.SplitText(sb.Body)
			if err != nil {
				return nil, fmt.Errorf("%w: splitting section '%s': %w", utils.ErrParsing, sb.ID, err)
			}
			parts = split
		}

		for _, part := range parts {
			content := strings.TrimSpace(part)
			if content == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				Content:          content,
				AnchorID:         sb.ID,
				SequenceKey:      sb.SequenceKey,
				HeadingHierarchy: hierarchy,
				TokenCount:       CountTokens(content),
			})
		}
	}
	return chunks, nil
}
