// Package pipeline turns a PDF into clause findings with any JSON-capable
// language model: extract text, split it into chunks, ask the model about
// each chunk, merge the answers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/lease-lens/internal/core/domain"
	"github.com/kirillkom/lease-lens/internal/core/ports"
)

const defaultMaxChunks = 8

// Completer sends a system and user prompt and returns the model's JSON text.
type Completer interface {
	CompleteJSON(ctx context.Context, system, user string) (string, error)
}

type Pipeline struct {
	name      string
	extractor ports.TextExtractor
	chunker   ports.Chunker
	completer Completer
	maxChunks int
}

func New(name string, extractor ports.TextExtractor, chunker ports.Chunker, completer Completer, maxChunks int) *Pipeline {
	if maxChunks <= 0 {
		maxChunks = defaultMaxChunks
	}
	return &Pipeline{
		name:      name,
		extractor: extractor,
		chunker:   chunker,
		completer: completer,
		maxChunks: maxChunks,
	}
}

func (p *Pipeline) Analyze(ctx context.Context, name string, content io.Reader) (*domain.AnalysisResult, error) {
	text, err := p.extractor.Extract(ctx, content)
	if err != nil {
		return nil, domain.WrapError(domain.ErrAnalysisFailure, "extract text", err)
	}

	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrAnalysisFailure, "chunk document", errors.New("chunking produced zero chunks"))
	}
	if len(chunks) > p.maxChunks {
		slog.Warn("analysis_chunks_truncated", "provider", p.name, "document", name, "chunks", len(chunks), "max_chunks", p.maxChunks)
		chunks = chunks[:p.maxChunks]
	}

	parts := make([]*domain.AnalysisResult, 0, len(chunks))
	for idx, chunk := range chunks {
		raw, err := p.completer.CompleteJSON(ctx, SystemPrompt(), BuildClausePrompt(name, idx+1, len(chunks), chunk))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, domain.WrapError(domain.ErrAnalysisFailure, p.name+" completion", fmt.Errorf("chunk %d: %w", idx+1, err))
		}
		part, err := DecodeAnalysis(raw)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", idx+1, err)
		}
		parts = append(parts, part)
	}

	result := Merge(parts)
	result.Document = name
	return result, nil
}
