package vector

import (
	"context"
	"fmt"
)

// Entry is one indexed chunk with its provenance. Entries are immutable once
// added; they leave the index only via RemoveByDocument.
type Entry struct {
	ChunkID  string
	Document string
	Ordinal  int
	Page     int
	Start    int
	End      int
	Text     string
	Vector   []float32
}

type Result struct {
	Entry
	Score float32
}

// Index stores (vector, chunk, document) triples and answers nearest-neighbor
// queries. Implementations serialize mutations; Search may run concurrently
// with other reads.
type Index interface {
	Add(ctx context.Context, entries []Entry) (int, error)
	Search(ctx context.Context, vector []float32, k int) ([]Result, error)
	RemoveByDocument(ctx context.Context, document string) (int, error)
	Count(ctx context.Context) (int, error)
	Persist() error
	Close() error
}

type Config struct {
	Backend          string
	IndexPath        string
	Dimension        int
	MilvusEndpoint   string
	MilvusCollection string
}

func New(ctx context.Context, cfg Config) (Index, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.IndexPath, cfg.Dimension)
	case "milvus":
		return NewMilvus(ctx, cfg.MilvusEndpoint, cfg.MilvusCollection, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown vector backend: %q", cfg.Backend)
	}
}
