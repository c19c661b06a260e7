package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/factorymind/backend/pkg/logger"
)

// Milvus backs the index with an external Milvus/Zilliz deployment. The
// embedding field uses the IP metric, which ranks identically to cosine for
// the normalized vectors the embedding providers return. Durability is the
// service's concern; Persist only flushes.
type Milvus struct {
	client         client.Client
	collectionName string
	dimension      int
}

func NewMilvus(ctx context.Context, endpoint, collectionName string, dimension int) (*Milvus, error) {
	c, err := client.NewGrpcClient(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	m := &Milvus{
		client:         c,
		collectionName: collectionName,
		dimension:      dimension,
	}

	if err := m.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}

	logger.Info("Milvus vector index ready",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return m, nil
}

func (m *Milvus) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Document chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "document",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:     "ordinal",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "page",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "start",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "end",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       "text",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "8192"},
			},
			{
				Name:       "embedding",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.dimension)},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))
	return nil
}

func (m *Milvus) Add(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	chunkIDs := make([]string, len(entries))
	documents := make([]string, len(entries))
	ordinals := make([]int64, len(entries))
	pages := make([]int64, len(entries))
	starts := make([]int64, len(entries))
	ends := make([]int64, len(entries))
	texts := make([]string, len(entries))
	vectors := make([][]float32, len(entries))

	for i, e := range entries {
		if len(e.Vector) != m.dimension {
			return 0, fmt.Errorf("entry %s has dimension %d, index expects %d", e.ChunkID, len(e.Vector), m.dimension)
		}
		chunkIDs[i] = e.ChunkID
		documents[i] = e.Document
		ordinals[i] = int64(e.Ordinal)
		pages[i] = int64(e.Page)
		starts[i] = int64(e.Start)
		ends[i] = int64(e.End)
		texts[i] = e.Text
		vectors[i] = e.Vector
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnVarChar("document", documents),
		entity.NewColumnInt64("ordinal", ordinals),
		entity.NewColumnInt64("page", pages),
		entity.NewColumnInt64("start", starts),
		entity.NewColumnInt64("end", ends),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnFloatVector("embedding", m.dimension, vectors),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert entries: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return 0, fmt.Errorf("failed to flush: %w", err)
	}

	logger.Debug("Entries added to index", zap.Int("count", len(entries)))
	return len(entries), nil
}

func (m *Milvus) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return []Result{}, nil
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		"",
		[]string{"chunk_id", "document", "ordinal", "page", "start", "end", "text"},
		[]entity.Vector{entity.FloatVector(vector)},
		"embedding",
		entity.IP,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]Result, 0, k)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			entry, err := entryFromFields(sr.Fields, i)
			if err != nil {
				return nil, err
			}
			results = append(results, Result{Entry: entry, Score: sr.Scores[i]})
		}
	}

	return results, nil
}

func entryFromFields(fields client.ResultSet, i int) (Entry, error) {
	var entry Entry

	chunkID, err := fields.GetColumn("chunk_id").Get(i)
	if err != nil {
		return entry, fmt.Errorf("failed to read search result: %w", err)
	}
	document, err := fields.GetColumn("document").Get(i)
	if err != nil {
		return entry, fmt.Errorf("failed to read search result: %w", err)
	}
	ordinal, err := fields.GetColumn("ordinal").Get(i)
	if err != nil {
		return entry, fmt.Errorf("failed to read search result: %w", err)
	}
	page, err := fields.GetColumn("page").Get(i)
	if err != nil {
		return entry, fmt.Errorf("failed to read search result: %w", err)
	}
	start, err := fields.GetColumn("start").Get(i)
	if err != nil {
		return entry, fmt.Errorf("failed to read search result: %w", err)
	}
	end, err := fields.GetColumn("end").Get(i)
	if err != nil {
		return entry, fmt.Errorf("failed to read search result: %w", err)
	}
	text, err := fields.GetColumn("text").Get(i)
	if err != nil {
		return entry, fmt.Errorf("failed to read search result: %w", err)
	}

	entry.ChunkID = chunkID.(string)
	entry.Document = document.(string)
	entry.Ordinal = int(ordinal.(int64))
	entry.Page = int(page.(int64))
	entry.Start = int(start.(int64))
	entry.End = int(end.(int64))
	entry.Text = text.(string)
	return entry, nil
}

func (m *Milvus) RemoveByDocument(ctx context.Context, document string) (int, error) {
	before, err := m.Count(ctx)
	if err != nil {
		return 0, err
	}

	escaped := strings.ReplaceAll(document, `"`, `\"`)
	expr := fmt.Sprintf(`document == "%s"`, escaped)
	if err := m.client.Delete(ctx, m.collectionName, "", expr); err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}
	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return 0, fmt.Errorf("failed to flush: %w", err)
	}

	after, err := m.Count(ctx)
	if err != nil {
		return 0, err
	}

	removed := before - after
	if removed < 0 {
		removed = 0
	}
	if removed > 0 {
		logger.Info("Entries removed from index",
			zap.String("document", document),
			zap.Int("removed", removed),
		)
	}
	return removed, nil
}

func (m *Milvus) Count(ctx context.Context) (int, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.collectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}
	count, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("failed to parse row count: %w", err)
	}
	return count, nil
}

func (m *Milvus) Persist() error {
	return m.client.Flush(context.Background(), m.collectionName, false)
}

func (m *Milvus) Close() error {
	return m.client.Close()
}
