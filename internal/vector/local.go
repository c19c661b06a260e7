package vector

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/factorymind/backend/pkg/logger"
)

// Local is an in-process brute-force cosine index. It is the one piece of
// shared mutable state in the service: a single RWMutex serializes writers
// while searches share the read side. Every mutation is persisted before the
// write lock is released, so the on-disk snapshot never lags the live index.
type Local struct {
	path      string
	dimension int

	mu      sync.RWMutex
	entries []Entry
}

type snapshot struct {
	Dimension int
	Entries   []Entry
}

func NewLocal(path string, dimension int) (*Local, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dimension)
	}

	idx := &Local{path: path, dimension: dimension}
	if err := idx.load(); err != nil {
		return nil, err
	}

	logger.Info("Local vector index ready",
		zap.String("path", path),
		zap.Int("dimension", dimension),
		zap.Int("entries", len(idx.entries)),
	)

	return idx, nil
}

func (l *Local) load() error {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode index file: %w", err)
	}
	if snap.Dimension != l.dimension {
		return fmt.Errorf("index dimension mismatch: file has %d, configured %d", snap.Dimension, l.dimension)
	}

	l.entries = snap.Entries
	return nil
}

func (l *Local) Add(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	for _, e := range entries {
		if len(e.Vector) != l.dimension {
			return 0, fmt.Errorf("entry %s has dimension %d, index expects %d", e.ChunkID, len(e.Vector), l.dimension)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entries...)
	if err := l.persistLocked(); err != nil {
		l.entries = l.entries[:len(l.entries)-len(entries)]
		return 0, err
	}

	logger.Debug("Entries added to index", zap.Int("count", len(entries)), zap.Int("total", len(l.entries)))
	return len(entries), nil
}

func (l *Local) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if k <= 0 || len(l.entries) == 0 {
		return []Result{}, nil
	}
	if len(vector) != l.dimension {
		return nil, fmt.Errorf("query has dimension %d, index expects %d", len(vector), l.dimension)
	}

	scores := make([]float32, len(l.entries))
	order := make([]int, len(l.entries))
	for i := range l.entries {
		scores[i] = cosineSimilarity(vector, l.entries[i].Vector)
		order[i] = i
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}

	results := make([]Result, 0, k)
	for _, i := range order[:k] {
		results = append(results, Result{Entry: l.entries[i], Score: scores[i]})
	}
	return results, nil
}

func (l *Local) RemoveByDocument(ctx context.Context, document string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := make([]Entry, 0, len(l.entries))
	removed := 0
	for _, e := range l.entries {
		if e.Document == document {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return 0, nil
	}

	prev := l.entries
	l.entries = kept
	if err := l.persistLocked(); err != nil {
		l.entries = prev
		return 0, err
	}

	logger.Info("Entries removed from index",
		zap.String("document", document),
		zap.Int("removed", removed),
	)
	return removed, nil
}

func (l *Local) Count(ctx context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries), nil
}

func (l *Local) Persist() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persistLocked()
}

// persistLocked writes a snapshot next to the index path and atomically
// renames it into place, so a crash mid-write cannot corrupt the index.
// Callers must hold the write lock.
func (l *Local) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp := l.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}

	snap := snapshot{Dimension: l.dimension, Entries: l.entries}
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to promote index file: %w", err)
	}

	return nil
}

func (l *Local) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}
