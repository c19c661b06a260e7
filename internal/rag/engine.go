package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/factorymind/backend/internal/embed"
	"github.com/factorymind/backend/internal/llm"
	"github.com/factorymind/backend/internal/vector"
	"github.com/factorymind/backend/pkg/logger"
)

// ErrGenerationUnavailable is returned when the answer could not be generated
// because the language model call failed.
var ErrGenerationUnavailable = errors.New("answer generation unavailable")

const (
	defaultTopK            = 4
	defaultMaxContextChars = 8000

	noDocumentsAnswer = "No documents have been indexed yet. Upload a document to enable question answering."
	noMatchesAnswer   = "I couldn't find relevant information in the indexed documents to answer that question."

	groundedSystemPrompt = `You are an assistant answering questions about documents uploaded by the user.
Answer using ONLY the context provided below. Do not use prior knowledge.
If the context does not contain the information needed to answer, say that the indexed documents do not cover it.
Keep answers concise and factual.`
)

// Engine answers questions over the indexed documents: embed the question,
// retrieve the nearest chunks, and generate a grounded answer with one
// language model call.
type Engine struct {
	index           vector.Index
	embedder        embed.Provider
	llm             llm.Client
	topK            int
	maxContextChars int
}

// RetrievedChunk is one search hit annotated with its source document.
type RetrievedChunk struct {
	ChunkID  string  `json:"chunk_id"`
	Document string  `json:"document"`
	Page     int     `json:"page"`
	Text     string  `json:"text"`
	Score    float32 `json:"score"`
}

// Answer is the response to a question. Citations lists each source document
// once, in retrieval rank order of its best chunk.
type Answer struct {
	Text       string   `json:"answer"`
	Citations  []string `json:"citations"`
	ChunksUsed int      `json:"chunks_retrieved"`
}

func NewEngine(index vector.Index, embedder embed.Provider, llmClient llm.Client, topK, maxContextChars int) *Engine {
	if topK <= 0 {
		topK = defaultTopK
	}
	if maxContextChars <= 0 {
		maxContextChars = defaultMaxContextChars
	}
	return &Engine{
		index:           index,
		embedder:        embedder,
		llm:             llmClient,
		topK:            topK,
		maxContextChars: maxContextChars,
	}
}

// Retrieve embeds the question and returns up to k nearest chunks.
// Deterministic for a fixed index state and embedding provider.
func (e *Engine) Retrieve(ctx context.Context, question string, k int) ([]RetrievedChunk, error) {
	queryVector, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := e.index.Search(ctx, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	chunks := make([]RetrievedChunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, RetrievedChunk{
			ChunkID:  r.ChunkID,
			Document: r.Document,
			Page:     r.Page,
			Text:     r.Text,
			Score:    r.Score,
		})
	}

	return chunks, nil
}

// Answer responds to a question over the indexed documents. An empty index or
// an empty retrieval produces an explicit no-information answer without
// calling the language model.
func (e *Engine) Answer(ctx context.Context, question string) (*Answer, error) {
	count, err := e.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check index: %w", err)
	}
	if count == 0 {
		logger.Info("Query against empty index", zap.String("question", question))
		return &Answer{Text: noDocumentsAnswer, Citations: []string{}}, nil
	}

	chunks, err := e.Retrieve(ctx, question, e.topK)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return &Answer{Text: noMatchesAnswer, Citations: []string{}}, nil
	}

	contextText, used := e.fitContext(chunks)

	userPrompt := fmt.Sprintf("Context from the indexed documents:\n\n%s\n\nQuestion: %s", contextText, question)
	reply, err := e.llm.Complete(ctx, groundedSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}

	logger.Info("Question answered",
		zap.String("question", question),
		zap.Int("chunks_used", len(used)),
	)

	return &Answer{
		Text:       strings.TrimSpace(reply),
		Citations:  dedupeCitations(used),
		ChunksUsed: len(used),
	}, nil
}

// fitContext assembles the prompt context from the highest-ranked chunks,
// dropping lower-ranked ones once the budget is spent. A first chunk larger
// than the whole budget is truncated rather than dropped.
func (e *Engine) fitContext(chunks []RetrievedChunk) (string, []RetrievedChunk) {
	var blocks []string
	var used []RetrievedChunk
	total := 0

	for _, chunk := range chunks {
		block := formatBlock(len(used)+1, chunk)
		cost := len([]rune(block))

		if len(used) == 0 && cost > e.maxContextChars {
			runes := []rune(chunk.Text)
			keep := e.maxContextChars - (cost - len(runes))
			if keep < 0 {
				keep = 0
			}
			chunk.Text = string(runes[:keep])
			block = formatBlock(1, chunk)
			cost = len([]rune(block))
		} else if total+cost > e.maxContextChars {
			break
		}

		blocks = append(blocks, block)
		used = append(used, chunk)
		total += cost
	}

	return strings.Join(blocks, "\n\n"), used
}

func formatBlock(rank int, chunk RetrievedChunk) string {
	return fmt.Sprintf("[%d] %s (page %d)\n%s", rank, chunk.Document, chunk.Page, chunk.Text)
}

// dedupeCitations lists each document once, keeping the order in which its
// best-ranked chunk appeared.
func dedupeCitations(chunks []RetrievedChunk) []string {
	seen := make(map[string]struct{}, len(chunks))
	citations := make([]string, 0, len(chunks))

	for _, chunk := range chunks {
		if _, ok := seen[chunk.Document]; ok {
			continue
		}
		seen[chunk.Document] = struct{}{}
		citations = append(citations, chunk.Document)
	}

	return citations
}
