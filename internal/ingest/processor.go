package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/factorymind/backend/internal/chunk"
	"github.com/factorymind/backend/internal/embed"
	"github.com/factorymind/backend/internal/extract"
	"github.com/factorymind/backend/internal/metrics"
	"github.com/factorymind/backend/internal/storage/models"
	"github.com/factorymind/backend/internal/storage/sqlite"
	"github.com/factorymind/backend/internal/vector"
	"github.com/factorymind/backend/pkg/logger"
	"github.com/factorymind/backend/pkg/utils"
)

// Processor runs the ingestion pipeline: extract text from a saved document,
// chunk it, embed the chunks, and commit them to the vector index and the
// document store. Ingestion is all-or-nothing per document: a failure leaves
// no partial chunks behind.
type Processor struct {
	db       *sqlite.Client
	index    vector.Index
	embedder embed.Provider
	chunker  *chunk.Chunker
	docsDir  string
}

type IngestResult struct {
	Filename string `json:"filename"`
	Pages    int    `json:"pages"`
	Chunks   int    `json:"chunks"`
}

// Stats summarizes the ingested corpus for health reporting.
type Stats struct {
	Documents    int `json:"documents"`
	Chunks       int `json:"chunks"`
	IndexEntries int `json:"index_entries"`
}

func NewProcessor(db *sqlite.Client, index vector.Index, embedder embed.Provider, chunker *chunk.Chunker, docsDir string) *Processor {
	return &Processor{
		db:       db,
		index:    index,
		embedder: embedder,
		chunker:  chunker,
		docsDir:  docsDir,
	}
}

// IngestDocument processes a file already saved under the documents
// directory. Re-ingesting a filename replaces the previous version entirely:
// its index entries and store row are purged first. On failure the saved file
// is removed, leaving the document fully absent.
func (p *Processor) IngestDocument(ctx context.Context, filename string) (*IngestResult, error) {
	path := filepath.Join(p.docsDir, filename)

	committed := false
	defer func() {
		if !committed {
			os.Remove(path)
		}
	}()

	if err := p.purgePrevious(ctx, filename); err != nil {
		return nil, err
	}

	pages, err := extract.Pages(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filename, err)
	}

	fullText, pageStarts := joinPages(pages)
	pieces, err := p.chunker.Split(fullText)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk %s: %w", filename, err)
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", filename, err)
	}

	entries := make([]vector.Entry, len(pieces))
	for i, piece := range pieces {
		entries[i] = vector.Entry{
			ChunkID:  fmt.Sprintf("%s:%d", filename, piece.Ordinal),
			Document: filename,
			Ordinal:  piece.Ordinal,
			Page:     pageForOffset(pageStarts, pages, piece.Start),
			Start:    piece.Start,
			End:      piece.End,
			Text:     piece.Text,
			Vector:   vectors[i],
		}
	}

	added, err := p.index.Add(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", filename, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		p.index.RemoveByDocument(ctx, filename)
		return nil, fmt.Errorf("failed to stat %s: %w", filename, err)
	}
	checksum, err := utils.HashFile(path)
	if err != nil {
		p.index.RemoveByDocument(ctx, filename)
		return nil, err
	}

	doc := &models.Document{
		Filename:   filename,
		SizeBytes:  info.Size(),
		Checksum:   checksum,
		Pages:      len(pages),
		Chunks:     added,
		UploadedAt: time.Now(),
	}
	if err := p.db.InsertDocument(doc); err != nil {
		p.index.RemoveByDocument(ctx, filename)
		return nil, err
	}

	committed = true

	metrics.DocumentsIngested.Inc()
	metrics.ChunksIndexed.Add(float64(added))
	p.refreshIndexGauge(ctx)

	logger.Info("Document ingested",
		zap.String("filename", filename),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", added),
	)

	return &IngestResult{Filename: filename, Pages: len(pages), Chunks: added}, nil
}

// DeleteDocument removes a document's index entries, its stored file, and its
// store row. Unknown filenames return sqlite.ErrNotFound.
func (p *Processor) DeleteDocument(ctx context.Context, filename string) error {
	if _, err := p.db.GetDocument(filename); err != nil {
		return err
	}

	removed, err := p.index.RemoveByDocument(ctx, filename)
	if err != nil {
		return fmt.Errorf("failed to remove %s from index: %w", filename, err)
	}

	path := filepath.Join(p.docsDir, filename)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove file %s: %w", filename, err)
	}

	if err := p.db.DeleteDocument(filename); err != nil {
		return err
	}

	metrics.DocumentsDeleted.Inc()
	p.refreshIndexGauge(ctx)

	logger.Info("Document deleted",
		zap.String("filename", filename),
		zap.Int("chunks_removed", removed),
	)

	return nil
}

func (p *Processor) ListDocuments() ([]models.Document, error) {
	return p.db.ListDocuments()
}

func (p *Processor) Stats(ctx context.Context) (*Stats, error) {
	docs, err := p.db.CountDocuments()
	if err != nil {
		return nil, err
	}
	chunks, err := p.db.SumChunks()
	if err != nil {
		return nil, err
	}
	entries, err := p.index.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{Documents: docs, Chunks: chunks, IndexEntries: entries}, nil
}

// purgePrevious drops any prior version of the document from the index and
// the store. The file itself is already overwritten by the new upload.
func (p *Processor) purgePrevious(ctx context.Context, filename string) error {
	removed, err := p.index.RemoveByDocument(ctx, filename)
	if err != nil {
		return fmt.Errorf("failed to purge previous index entries: %w", err)
	}
	if removed > 0 {
		logger.Info("Replacing previously ingested document",
			zap.String("filename", filename),
			zap.Int("chunks_removed", removed),
		)
	}

	if err := p.db.DeleteDocument(filename); err != nil && !errors.Is(err, sqlite.ErrNotFound) {
		return err
	}

	return nil
}

func (p *Processor) refreshIndexGauge(ctx context.Context) {
	if count, err := p.index.Count(ctx); err == nil {
		metrics.IndexEntries.Set(float64(count))
	}
}

// joinPages concatenates page texts with newline separators and returns the
// rune offset where each page begins.
func joinPages(pages []extract.Page) (string, []int) {
	var b strings.Builder
	starts := make([]int, len(pages))

	offset := 0
	for i, page := range pages {
		if i > 0 {
			b.WriteString("\n")
			offset++
		}
		starts[i] = offset
		b.WriteString(page.Text)
		offset += len([]rune(page.Text))
	}

	return b.String(), starts
}

// pageForOffset maps a rune offset in the joined text back to its page
// number.
func pageForOffset(starts []int, pages []extract.Page, offset int) int {
	if len(pages) == 0 {
		return 0
	}

	page := pages[0].Number
	for i, start := range starts {
		if offset >= start {
			page = pages[i].Number
		}
	}
	return page
}
