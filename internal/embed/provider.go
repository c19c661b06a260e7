package embed

import "context"

// Provider is the capability boundary for text embeddings. Dimension is
// fixed per provider; every returned vector has exactly that length.
type Provider interface {
	Dimension() int
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}
