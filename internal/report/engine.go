package report

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/factorymind/backend/internal/analysis"
	"github.com/factorymind/backend/internal/llm"
	"github.com/factorymind/backend/internal/storage/models"
	"github.com/factorymind/backend/internal/storage/sqlite"
	"github.com/factorymind/backend/pkg/logger"
)

// ErrGenerationUnavailable is returned when the report narrative could not be
// generated because the language model call failed. Nothing is persisted in
// that case.
var ErrGenerationUnavailable = errors.New("report generation unavailable")

const (
	defaultRecentLimit = 50
	maxMetrics         = 4
	maxAnomalyValues   = 10

	reportSystemPrompt = `You are an operations analyst writing a report from dataset statistics.
Respond with a single JSON object and no other text, using exactly these keys:
{"summary": "...", "key_metrics": ["Label: value", ...], "observations": ["..."], "recommendations": ["..."]}
The summary is an executive overview in 2-4 sentences. key_metrics holds up to 4 "Label: value" strings for the most important figures. observations and recommendations are short statements grounded in the statistics provided. Do not invent figures that are not in the input.`
)

// Engine turns datasets into persisted narrative reports: analyze, ask the
// model for a structured narrative, fill in metrics, store.
type Engine struct {
	db            *sqlite.Client
	llm           llm.Client
	analyzer      *analysis.Analyzer
	recentLimit   int
	trendBaseline string
}

// NewEngine wires the report pipeline. trendBaseline selects how metric trend
// directions are derived: "previous" compares against the most recent prior
// report for the same source file, "none" leaves every trend neutral.
func NewEngine(db *sqlite.Client, llmClient llm.Client, analyzer *analysis.Analyzer, recentLimit int, trendBaseline string) *Engine {
	if recentLimit <= 0 {
		recentLimit = defaultRecentLimit
	}
	return &Engine{
		db:            db,
		llm:           llmClient,
		analyzer:      analyzer,
		recentLimit:   recentLimit,
		trendBaseline: trendBaseline,
	}
}

func (e *Engine) Generate(ctx context.Context, ds analysis.Dataset) (*models.Report, error) {
	summary := e.analyzer.Analyze(ds)
	digest := formatDigest(summary)

	raw, err := e.llm.Complete(ctx, reportSystemPrompt, digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}

	parsed, structured := parseReply(raw)
	if !structured {
		logger.Warn("Model reply was not structured JSON, using it as the summary",
			zap.String("source_file", ds.Filename),
		)
	}

	observations := parsed.Observations
	if observations == nil {
		observations = []string{}
	}
	recommendations := parsed.Recommendations
	if recommendations == nil {
		recommendations = []string{}
	}

	now := time.Now().UTC()
	rep := &models.Report{
		ID:              newReportID(now),
		Title:           "Operations Report - " + sourceBase(ds.Filename),
		SourceFile:      ds.Filename,
		Summary:         strings.TrimSpace(parsed.Summary),
		Metrics:         e.buildMetrics(parsed.KeyMetrics, summary, ds.Filename),
		Observations:    observations,
		Recommendations: recommendations,
		CreatedAt:       now,
	}

	if err := e.db.InsertReport(rep); err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}

	logger.Info("Report generated",
		zap.String("report_id", rep.ID),
		zap.String("source_file", ds.Filename),
		zap.Int("anomaly_columns", len(summary.Anomalies)),
		zap.Bool("structured_reply", structured),
	)

	return rep, nil
}

func (e *Engine) List() ([]models.Report, error) {
	return e.db.ListReports(e.recentLimit)
}

func (e *Engine) Get(id string) (*models.Report, error) {
	return e.db.GetReport(id)
}

func (e *Engine) Delete(id string) error {
	return e.db.DeleteReport(id)
}

// Count reports how many reports are stored, for the health surface.
func (e *Engine) Count() (int, error) {
	return e.db.CountReports()
}

// buildMetrics takes up to maxMetrics "Label: value" strings from the model
// and pads the remainder from computed statistics, then assigns trends.
func (e *Engine) buildMetrics(keyMetrics []string, summary analysis.Summary, sourceFile string) []models.Metric {
	out := make([]models.Metric, 0, maxMetrics)

	for _, raw := range keyMetrics {
		if len(out) == maxMetrics {
			break
		}
		label, value, ok := splitMetric(raw)
		if !ok {
			continue
		}
		out = append(out, models.Metric{Label: label, Value: value})
	}

	for _, fallback := range computedMetrics(summary) {
		if len(out) == maxMetrics {
			break
		}
		if hasLabel(out, fallback.Label) {
			continue
		}
		out = append(out, fallback)
	}

	baseline := e.loadBaseline(sourceFile)
	for i := range out {
		out[i].Trend = trendFor(out[i], baseline)
	}

	return out
}

func computedMetrics(summary analysis.Summary) []models.Metric {
	anomalous := 0
	for _, a := range summary.Anomalies {
		anomalous += len(a.Values)
	}

	return []models.Metric{
		{Label: "Total Records", Value: strconv.Itoa(summary.RowCount)},
		{Label: "Columns Analyzed", Value: strconv.Itoa(summary.ColumnCount)},
		{Label: "Anomalies Detected", Value: strconv.Itoa(anomalous)},
		{Label: "Data Completeness", Value: fmt.Sprintf("%.1f%%", summary.Completeness)},
	}
}

func hasLabel(ms []models.Metric, label string) bool {
	for _, m := range ms {
		if strings.EqualFold(m.Label, label) {
			return true
		}
	}
	return false
}

// splitMetric parses a "Label: value" string from the model.
func splitMetric(raw string) (label, value string, ok bool) {
	label, value, found := strings.Cut(raw, ":")
	label = strings.TrimSpace(label)
	value = strings.TrimSpace(value)
	return label, value, found && label != "" && value != ""
}

// loadBaseline maps metric labels to numeric values from the most recent
// prior report for the same source file. Nil when trends are disabled or no
// prior report exists.
func (e *Engine) loadBaseline(sourceFile string) map[string]float64 {
	if e.trendBaseline != "previous" {
		return nil
	}

	prior, err := e.db.LatestReportForSource(sourceFile)
	if err != nil {
		if !errors.Is(err, sqlite.ErrNotFound) {
			logger.Warn("Failed to load baseline report", zap.Error(err))
		}
		return nil
	}

	baseline := make(map[string]float64, len(prior.Metrics))
	for _, m := range prior.Metrics {
		if v, ok := parseMetricNumber(m.Value); ok {
			baseline[strings.ToLower(m.Label)] = v
		}
	}
	return baseline
}

func trendFor(m models.Metric, baseline map[string]float64) string {
	if baseline == nil {
		return "neutral"
	}
	prev, ok := baseline[strings.ToLower(m.Label)]
	if !ok {
		return "neutral"
	}
	cur, ok := parseMetricNumber(m.Value)
	if !ok {
		return "neutral"
	}

	switch {
	case cur > prev:
		return "up"
	case cur < prev:
		return "down"
	default:
		return "neutral"
	}
}

var metricNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseMetricNumber extracts the first number from a metric value like
// "1,200 units" or "98.3%".
func parseMetricNumber(value string) (float64, bool) {
	cleaned := strings.ReplaceAll(value, ",", "")
	match := metricNumber.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// formatDigest renders the statistics summary as compact text for the model
// prompt. Anomalies list flagged values only, never raw rows.
func formatDigest(summary analysis.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dataset: %s\n", summary.Filename)
	fmt.Fprintf(&b, "Rows: %d, Columns: %d, Completeness: %.1f%%\n", summary.RowCount, summary.ColumnCount, summary.Completeness)

	if len(summary.Numeric) > 0 {
		b.WriteString("\nNumeric columns:\n")
		for _, c := range summary.Numeric {
			fmt.Fprintf(&b, "- %s: count=%d missing=%d mean=%.2f std=%.2f min=%.2f q1=%.2f median=%.2f q3=%.2f max=%.2f sum=%.2f\n",
				c.Column, c.Count, c.Missing, c.Mean, c.StdDev, c.Min, c.Q1, c.Median, c.Q3, c.Max, c.Sum)
		}
	}

	if len(summary.Categorical) > 0 {
		b.WriteString("\nCategorical columns:\n")
		for _, c := range summary.Categorical {
			parts := make([]string, 0, len(c.TopValues))
			for _, v := range c.TopValues {
				parts = append(parts, fmt.Sprintf("%s (%d)", v.Value, v.Count))
			}
			fmt.Fprintf(&b, "- %s: %d distinct; top: %s\n", c.Column, c.Distinct, strings.Join(parts, ", "))
		}
	}

	if len(summary.Anomalies) == 0 {
		b.WriteString("\nAnomalies (IQR method): none detected\n")
		return b.String()
	}

	b.WriteString("\nAnomalies (IQR method):\n")
	for _, a := range summary.Anomalies {
		values := a.Values
		extra := ""
		if len(values) > maxAnomalyValues {
			extra = fmt.Sprintf(" and %d more", len(values)-maxAnomalyValues)
			values = values[:maxAnomalyValues]
		}
		parts := make([]string, 0, len(values))
		for _, v := range values {
			parts = append(parts, fmt.Sprintf("row %d value %.2f", v.Row, v.Value))
		}
		fmt.Fprintf(&b, "- %s: fences [%.2f, %.2f]; %d flagged: %s%s\n",
			a.Column, a.LowerFence, a.UpperFence, len(a.Values), strings.Join(parts, ", "), extra)
	}

	return b.String()
}

// newReportID is sortable by creation time with a random suffix for
// uniqueness.
func newReportID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return now.Format("20060102150405") + "-" + suffix
}

func sourceBase(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
}
