package report

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factorymind/backend/internal/analysis"
	"github.com/factorymind/backend/internal/llm"
	"github.com/factorymind/backend/internal/storage/models"
	"github.com/factorymind/backend/internal/storage/sqlite"
)

type fakeLLM struct {
	replies []string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.prompts = append(f.prompts, userPrompt)
	if f.err != nil {
		return "", f.err
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func newTestEngine(t *testing.T, generator *fakeLLM) (*Engine, *sqlite.Client) {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	return NewEngine(db, generator, analysis.NewAnalyzer(4), 50, "previous"), db
}

func productionDataset() analysis.Dataset {
	return analysis.Dataset{
		Filename: "production.csv",
		Headers:  []string{"Date", "Production_Units"},
		Rows: [][]string{
			{"2024-01-01", "1200"},
			{"2024-01-02", "1210"},
			{"2024-01-03", "1195"},
			{"2024-01-04", "1205"},
			{"2024-01-05", "100"},
			{"2024-01-06", "1198"},
		},
	}
}

var reportIDPattern = regexp.MustCompile(`^\d{14}-[0-9a-f]{8}$`)

func TestGeneratePersistsStructuredReport(t *testing.T) {
	generator := &fakeLLM{replies: []string{
		`{"summary": "Production was steady except one outage.",
		  "key_metrics": ["Average output: 1168 units"],
		  "observations": ["Row 4 shows a collapse to 100 units."],
		  "recommendations": ["Investigate the Jan 5 outage."]}`,
	}}
	engine, db := newTestEngine(t, generator)

	rep, err := engine.Generate(context.Background(), productionDataset())
	require.NoError(t, err)

	assert.Regexp(t, reportIDPattern, rep.ID)
	assert.Equal(t, "Operations Report - production", rep.Title)
	assert.Equal(t, "production.csv", rep.SourceFile)
	assert.Equal(t, "Production was steady except one outage.", rep.Summary)
	assert.Equal(t, []string{"Row 4 shows a collapse to 100 units."}, rep.Observations)
	assert.Equal(t, []string{"Investigate the Jan 5 outage."}, rep.Recommendations)

	require.Len(t, rep.Metrics, 4)
	assert.Equal(t, "Average output", rep.Metrics[0].Label)
	assert.Equal(t, "1168 units", rep.Metrics[0].Value)
	assert.Equal(t, "Total Records", rep.Metrics[1].Label)
	assert.Equal(t, "6", rep.Metrics[1].Value)
	assert.Equal(t, "Columns Analyzed", rep.Metrics[2].Label)
	assert.Equal(t, "Anomalies Detected", rep.Metrics[3].Label)
	assert.Equal(t, "1", rep.Metrics[3].Value)
	for _, m := range rep.Metrics {
		assert.Equal(t, "neutral", m.Trend, "first report has no baseline")
	}

	stored, err := db.GetReport(rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.Summary, stored.Summary)
	assert.Equal(t, rep.Metrics, stored.Metrics)
}

func TestGeneratePromptCarriesAnomalies(t *testing.T) {
	generator := &fakeLLM{replies: []string{`{"summary": "ok"}`}}
	engine, _ := newTestEngine(t, generator)

	_, err := engine.Generate(context.Background(), productionDataset())
	require.NoError(t, err)

	require.Len(t, generator.prompts, 1)
	prompt := generator.prompts[0]
	assert.Contains(t, prompt, "Production_Units")
	assert.Contains(t, prompt, "100.00")
	assert.Contains(t, prompt, "fences")
	assert.NotContains(t, prompt, "Date,Production_Units", "the raw file never reaches the prompt")
}

func TestGenerateUnstructuredReplyBecomesSummary(t *testing.T) {
	prose := "Production held steady around 1200 units with a single outage on January 5."
	generator := &fakeLLM{replies: []string{prose}}
	engine, _ := newTestEngine(t, generator)

	rep, err := engine.Generate(context.Background(), productionDataset())
	require.NoError(t, err)

	assert.Equal(t, prose, rep.Summary)
	assert.Empty(t, rep.Observations)
	assert.Empty(t, rep.Recommendations)
	require.Len(t, rep.Metrics, 4, "metrics are padded from computed statistics")
	assert.Equal(t, "Total Records", rep.Metrics[0].Label)
}

func TestGenerateLLMFailureNothingPersisted(t *testing.T) {
	generator := &fakeLLM{err: fmt.Errorf("%w: down", llm.ErrProviderUnavailable)}
	engine, db := newTestEngine(t, generator)

	_, err := engine.Generate(context.Background(), productionDataset())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
	assert.ErrorIs(t, err, llm.ErrProviderUnavailable)

	count, err := db.CountReports()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestGenerateTrendAgainstPreviousReport(t *testing.T) {
	generator := &fakeLLM{replies: []string{
		`{"summary": "First run.", "key_metrics": ["Average output: 1200 units"]}`,
		`{"summary": "Second run.", "key_metrics": ["Average output: 1100 units"]}`,
	}}
	engine, _ := newTestEngine(t, generator)

	first, err := engine.Generate(context.Background(), productionDataset())
	require.NoError(t, err)
	assert.Equal(t, "neutral", first.Metrics[0].Trend)

	second, err := engine.Generate(context.Background(), productionDataset())
	require.NoError(t, err)

	assert.Equal(t, "Average output", second.Metrics[0].Label)
	assert.Equal(t, "down", second.Metrics[0].Trend)
	assert.Equal(t, "neutral", second.Metrics[1].Trend, "unchanged Total Records stays neutral")
}

func TestGenerateTrendDisabled(t *testing.T) {
	generator := &fakeLLM{replies: []string{
		`{"summary": "First.", "key_metrics": ["Average output: 1200"]}`,
		`{"summary": "Second.", "key_metrics": ["Average output: 900"]}`,
	}}

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	engine := NewEngine(db, generator, analysis.NewAnalyzer(4), 50, "none")

	_, err = engine.Generate(context.Background(), productionDataset())
	require.NoError(t, err)
	second, err := engine.Generate(context.Background(), productionDataset())
	require.NoError(t, err)

	assert.Equal(t, "neutral", second.Metrics[0].Trend)
}

func TestListGetDelete(t *testing.T) {
	generator := &fakeLLM{replies: []string{`{"summary": "ok"}`}}
	engine, _ := newTestEngine(t, generator)

	rep, err := engine.Generate(context.Background(), productionDataset())
	require.NoError(t, err)

	listed, err := engine.List()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, rep.ID, listed[0].ID)

	got, err := engine.Get(rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.Summary, got.Summary)

	require.NoError(t, engine.Delete(rep.ID))
	_, err = engine.Get(rep.ID)
	assert.ErrorIs(t, err, sqlite.ErrNotFound)
}

func TestRenderPDF(t *testing.T) {
	rep := &models.Report{
		ID:         "20240101120000-abcd1234",
		Title:      "Operations Report - production",
		SourceFile: "production.csv",
		Summary:    "Production held steady with one outage.",
		Metrics: []models.Metric{
			{Label: "Total Records", Value: "6", Trend: "neutral"},
			{Label: "Anomalies Detected", Value: "1", Trend: "up"},
		},
		Observations:    []string{"Row 4 collapsed to 100 units."},
		Recommendations: []string{"Investigate the outage."},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderPDF(rep, &buf))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}
