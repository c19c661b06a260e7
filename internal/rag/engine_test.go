package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorymind/backend/internal/llm"
	"github.com/factorymind/backend/internal/vector"
)

// fakeEmbedder hashes words into vector slots, so texts sharing words get a
// higher cosine similarity. Deterministic and offline.
type fakeEmbedder struct {
	dim int
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.embed(text), nil
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = f.embed(text)
	}
	return vectors, nil
}

func (f *fakeEmbedder) embed(text string) []float32 {
	vec := make([]float32, f.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?:;\"'")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32())%f.dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

type llmCall struct {
	system string
	user   string
}

type fakeLLM struct {
	reply string
	err   error
	calls []llmCall
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls = append(f.calls, llmCall{system: systemPrompt, user: userPrompt})
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestEngine(t *testing.T, generator *fakeLLM) (*Engine, vector.Index, *fakeEmbedder) {
	t.Helper()

	embedder := &fakeEmbedder{dim: 256}
	idx, err := vector.NewLocal(filepath.Join(t.TempDir(), "chunks.idx"), embedder.dim)
	require.NoError(t, err)

	return NewEngine(idx, embedder, generator, 4, 8000), idx, embedder
}

func indexTexts(t *testing.T, idx vector.Index, embedder *fakeEmbedder, document string, texts ...string) {
	t.Helper()

	vectors, err := embedder.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)

	entries := make([]vector.Entry, len(texts))
	for i, text := range texts {
		entries[i] = vector.Entry{
			ChunkID:  fmt.Sprintf("%s:%d", document, i),
			Document: document,
			Ordinal:  i,
			Page:     1,
			Text:     text,
			Vector:   vectors[i],
		}
	}

	_, err = idx.Add(context.Background(), entries)
	require.NoError(t, err)
}

func TestAnswerEmptyIndexSkipsModel(t *testing.T) {
	generator := &fakeLLM{reply: "should not be used"}
	engine, _, _ := newTestEngine(t, generator)

	answer, err := engine.Answer(context.Background(), "What is the safety procedure?")
	require.NoError(t, err)

	assert.Equal(t, noDocumentsAnswer, answer.Text)
	assert.Empty(t, answer.Citations)
	assert.Equal(t, 0, answer.ChunksUsed)
	assert.Empty(t, generator.calls, "empty index must not trigger a model call")
}

func TestAnswerGroundedWithCitations(t *testing.T) {
	generator := &fakeLLM{reply: "Workers must wear goggles at all times."}
	engine, idx, embedder := newTestEngine(t, generator)

	indexTexts(t, idx, embedder, "safety-manual.pdf",
		"Safety procedure: wear goggles when operating the press.",
		"Lunch breaks are thirty minutes.",
	)
	indexTexts(t, idx, embedder, "hr-handbook.pdf",
		"Vacation requests go through the portal.",
	)

	answer, err := engine.Answer(context.Background(), "What safety procedure is required?")
	require.NoError(t, err)

	assert.Equal(t, "Workers must wear goggles at all times.", answer.Text)
	assert.Contains(t, answer.Citations, "safety-manual.pdf")
	assert.Positive(t, answer.ChunksUsed)

	require.Len(t, generator.calls, 1)
	assert.Contains(t, generator.calls[0].user, "wear goggles")
	assert.Contains(t, generator.calls[0].user, "What safety procedure is required?")
	assert.Contains(t, generator.calls[0].system, "ONLY the context")
}

func TestAnswerTopRankedChunkMatchesQuestion(t *testing.T) {
	generator := &fakeLLM{reply: "ok"}
	engine, idx, embedder := newTestEngine(t, generator)

	indexTexts(t, idx, embedder, "manual.pdf",
		"Coolant level must be checked daily before startup.",
		"The cafeteria closes at three.",
	)

	chunks, err := engine.Retrieve(context.Background(), "How often is the coolant level checked?", 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Text, "Coolant level")
}

func TestAnswerGenerationFailure(t *testing.T) {
	generator := &fakeLLM{err: fmt.Errorf("%w: boom", llm.ErrRateLimited)}
	engine, idx, embedder := newTestEngine(t, generator)

	indexTexts(t, idx, embedder, "manual.pdf", "Coolant level must be checked daily.")

	_, err := engine.Answer(context.Background(), "How often is the coolant checked?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
	assert.ErrorIs(t, err, llm.ErrRateLimited, "the provider error stays in the chain")
}

func TestAnswerNoMatches(t *testing.T) {
	generator := &fakeLLM{reply: "should not be used"}
	embedder := &fakeEmbedder{dim: 8}
	engine := NewEngine(emptySearchIndex{}, embedder, generator, 4, 8000)

	answer, err := engine.Answer(context.Background(), "Anything?")
	require.NoError(t, err)

	assert.Equal(t, noMatchesAnswer, answer.Text)
	assert.Empty(t, answer.Citations)
	assert.Empty(t, generator.calls)
}

// emptySearchIndex reports entries but returns no hits, exercising the
// no-matches path that a populated local index cannot produce.
type emptySearchIndex struct {
	vector.Index
}

func (emptySearchIndex) Count(ctx context.Context) (int, error) { return 3, nil }

func (emptySearchIndex) Search(ctx context.Context, queryVector []float32, k int) ([]vector.Result, error) {
	return []vector.Result{}, nil
}

func TestRetrieveDeterministic(t *testing.T) {
	generator := &fakeLLM{reply: "ok"}
	engine, idx, embedder := newTestEngine(t, generator)

	indexTexts(t, idx, embedder, "manual.pdf",
		"Press maintenance happens on Mondays.",
		"Coolant level must be checked daily.",
		"Safety goggles are mandatory on the floor.",
	)

	first, err := engine.Retrieve(context.Background(), "When is press maintenance?", 3)
	require.NoError(t, err)
	second, err := engine.Retrieve(context.Background(), "When is press maintenance?", 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFitContextDropsLowestRanked(t *testing.T) {
	engine := &Engine{maxContextChars: 120}

	chunks := []RetrievedChunk{
		{Document: "a.pdf", Page: 1, Text: strings.Repeat("alpha ", 10)},
		{Document: "b.pdf", Page: 1, Text: strings.Repeat("beta ", 10)},
		{Document: "c.pdf", Page: 1, Text: strings.Repeat("gamma ", 10)},
	}

	contextText, used := engine.fitContext(chunks)

	require.Len(t, used, 1)
	assert.Equal(t, "a.pdf", used[0].Document)
	assert.Contains(t, contextText, "alpha")
	assert.NotContains(t, contextText, "beta")
}

func TestFitContextTruncatesOversizedFirstChunk(t *testing.T) {
	engine := &Engine{maxContextChars: 60}

	chunks := []RetrievedChunk{
		{Document: "a.pdf", Page: 1, Text: strings.Repeat("x", 500)},
	}

	contextText, used := engine.fitContext(chunks)

	require.Len(t, used, 1)
	assert.LessOrEqual(t, len([]rune(contextText)), 60)
	assert.Contains(t, contextText, "a.pdf")
}

func TestDedupeCitations(t *testing.T) {
	chunks := []RetrievedChunk{
		{Document: "b.pdf"},
		{Document: "a.pdf"},
		{Document: "b.pdf"},
		{Document: "c.pdf"},
		{Document: "a.pdf"},
	}

	assert.Equal(t, []string{"b.pdf", "a.pdf", "c.pdf"}, dedupeCitations(chunks))
}
