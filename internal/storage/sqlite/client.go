package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/factorymind/backend/internal/storage/models"
	"github.com/factorymind/backend/pkg/logger"
)

// ErrNotFound is returned when a document or report id does not exist.
var ErrNotFound = errors.New("not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		filename TEXT PRIMARY KEY,
		size_bytes INTEGER NOT NULL,
		checksum TEXT NOT NULL,
		pages INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		uploaded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_uploaded ON documents(uploaded_at);

	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		source_file TEXT NOT NULL,
		summary TEXT NOT NULL,
		metrics TEXT NOT NULL,
		observations TEXT NOT NULL,
		recommendations TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);
	CREATE INDEX IF NOT EXISTS idx_reports_source ON reports(source_file);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// InsertDocument upserts by filename: re-uploading a file replaces its row.
func (c *Client) InsertDocument(doc *models.Document) error {
	query := `
		INSERT INTO documents (filename, size_bytes, checksum, pages, chunks, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			checksum = excluded.checksum,
			pages = excluded.pages,
			chunks = excluded.chunks,
			uploaded_at = excluded.uploaded_at
	`

	_, err := c.db.Exec(
		query,
		doc.Filename,
		doc.SizeBytes,
		doc.Checksum,
		doc.Pages,
		doc.Chunks,
		doc.UploadedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document inserted", zap.String("filename", doc.Filename))
	return nil
}

func (c *Client) GetDocument(filename string) (*models.Document, error) {
	query := `SELECT filename, size_bytes, checksum, pages, chunks, uploaded_at FROM documents WHERE filename = ?`

	var doc models.Document
	var uploadedAt int64

	err := c.db.QueryRow(query, filename).Scan(
		&doc.Filename,
		&doc.SizeBytes,
		&doc.Checksum,
		&doc.Pages,
		&doc.Chunks,
		&uploadedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %q: %w", filename, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.UploadedAt = time.Unix(0, uploadedAt)
	return &doc, nil
}

func (c *Client) ListDocuments() ([]models.Document, error) {
	query := `SELECT filename, size_bytes, checksum, pages, chunks, uploaded_at FROM documents ORDER BY uploaded_at DESC`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var uploadedAt int64

		if err := rows.Scan(&doc.Filename, &doc.SizeBytes, &doc.Checksum, &doc.Pages, &doc.Chunks, &uploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		doc.UploadedAt = time.Unix(0, uploadedAt)
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (c *Client) DeleteDocument(filename string) error {
	result, err := c.db.Exec(`DELETE FROM documents WHERE filename = ?`, filename)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deletion: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document %q: %w", filename, ErrNotFound)
	}

	logger.Debug("Document deleted", zap.String("filename", filename))
	return nil
}

func (c *Client) CountDocuments() (int, error) {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

func (c *Client) SumChunks() (int, error) {
	var total int
	if err := c.db.QueryRow(`SELECT COALESCE(SUM(chunks), 0) FROM documents`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum chunks: %w", err)
	}
	return total, nil
}

func (c *Client) InsertReport(report *models.Report) error {
	metricsJSON, err := json.Marshal(report.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}
	observationsJSON, err := json.Marshal(report.Observations)
	if err != nil {
		return fmt.Errorf("failed to encode observations: %w", err)
	}
	recommendationsJSON, err := json.Marshal(report.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to encode recommendations: %w", err)
	}

	query := `
		INSERT INTO reports (id, title, source_file, summary, metrics, observations, recommendations, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(
		query,
		report.ID,
		report.Title,
		report.SourceFile,
		report.Summary,
		string(metricsJSON),
		string(observationsJSON),
		string(recommendationsJSON),
		report.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	logger.Debug("Report inserted", zap.String("report_id", report.ID))
	return nil
}

func (c *Client) GetReport(id string) (*models.Report, error) {
	query := `SELECT id, title, source_file, summary, metrics, observations, recommendations, created_at FROM reports WHERE id = ?`

	report, err := scanReport(c.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return report, nil
}

func (c *Client) ListReports(limit int) ([]models.Report, error) {
	query := `
		SELECT id, title, source_file, summary, metrics, observations, recommendations, created_at
		FROM reports
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		reports = append(reports, *report)
	}

	return reports, rows.Err()
}

// LatestReportForSource returns the most recent report generated from the
// given source file, or ErrNotFound when none exists.
func (c *Client) LatestReportForSource(sourceFile string) (*models.Report, error) {
	query := `
		SELECT id, title, source_file, summary, metrics, observations, recommendations, created_at
		FROM reports
		WHERE source_file = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	report, err := scanReport(c.db.QueryRow(query, sourceFile))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report for %q: %w", sourceFile, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest report: %w", err)
	}

	return report, nil
}

func (c *Client) DeleteReport(id string) error {
	result, err := c.db.Exec(`DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deletion: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("report %q: %w", id, ErrNotFound)
	}

	logger.Debug("Report deleted", zap.String("report_id", id))
	return nil
}

func (c *Client) CountReports() (int, error) {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM reports`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var report models.Report
	var metricsJSON, observationsJSON, recommendationsJSON string
	var createdAt int64

	err := row.Scan(
		&report.ID,
		&report.Title,
		&report.SourceFile,
		&report.Summary,
		&metricsJSON,
		&observationsJSON,
		&recommendationsJSON,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metricsJSON), &report.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(observationsJSON), &report.Observations); err != nil {
		return nil, fmt.Errorf("failed to decode observations: %w", err)
	}
	if err := json.Unmarshal([]byte(recommendationsJSON), &report.Recommendations); err != nil {
		return nil, fmt.Errorf("failed to decode recommendations: %w", err)
	}

	report.CreatedAt = time.Unix(0, createdAt)
	return &report, nil
}
