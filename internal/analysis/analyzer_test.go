package analysis

import (
	"encoding/json"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleColumn(name string, values ...string) Dataset {
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = []string{v}
	}
	return Dataset{Filename: "test.csv", Headers: []string{name}, Rows: rows}
}

func TestAnalyzeIQRFlagsOutlier(t *testing.T) {
	ds := singleColumn("units", "10", "12", "11", "13", "100", "12", "11")

	summary := NewAnalyzer(4).Analyze(ds)

	require.Len(t, summary.Numeric, 1)
	stats := summary.Numeric[0]
	assert.Equal(t, "units", stats.Column)
	assert.Equal(t, 7, stats.Count)
	assert.InDelta(t, 11, stats.Q1, 1e-9)
	assert.InDelta(t, 12, stats.Median, 1e-9)
	assert.InDelta(t, 12.5, stats.Q3, 1e-9)
	assert.InDelta(t, 169, stats.Sum, 1e-9)
	assert.InDelta(t, 10, stats.Min, 1e-9)
	assert.InDelta(t, 100, stats.Max, 1e-9)

	require.Len(t, summary.Anomalies, 1)
	anomaly := summary.Anomalies[0]
	assert.Equal(t, "units", anomaly.Column)
	assert.InDelta(t, 8.75, anomaly.LowerFence, 1e-9)
	assert.InDelta(t, 14.75, anomaly.UpperFence, 1e-9)
	require.Len(t, anomaly.Values, 1)
	assert.Equal(t, 4, anomaly.Values[0].Row)
	assert.InDelta(t, 100, anomaly.Values[0].Value, 1e-9)
}

func TestAnalyzeConstantColumnNoAnomalies(t *testing.T) {
	ds := singleColumn("flow", "5", "5", "5", "5", "5")

	summary := NewAnalyzer(4).Analyze(ds)

	require.Len(t, summary.Numeric, 1)
	stats := summary.Numeric[0]
	assert.InDelta(t, 5, stats.Q1, 1e-9)
	assert.InDelta(t, 5, stats.Q3, 1e-9)
	assert.InDelta(t, 0, stats.StdDev, 1e-9)
	assert.Empty(t, summary.Anomalies)
}

func TestAnalyzeMinSamplesExcludesAnomalyDetection(t *testing.T) {
	ds := singleColumn("temp", "10", "11", "900")

	summary := NewAnalyzer(4).Analyze(ds)

	require.Len(t, summary.Numeric, 1, "short columns are still described")
	assert.Empty(t, summary.Anomalies)
}

func TestAnalyzeMissingLiterals(t *testing.T) {
	ds := singleColumn("v", "10", "NA", "n/a", "", "NULL", "NaN", "None", "12", "11", "13")

	summary := NewAnalyzer(4).Analyze(ds)

	require.Len(t, summary.Numeric, 1)
	assert.Equal(t, 4, summary.Numeric[0].Count)
	assert.Equal(t, 6, summary.Numeric[0].Missing)
	assert.InDelta(t, 40, summary.Completeness, 1e-9)
}

func TestAnalyzeRowAttributionSkipsMissing(t *testing.T) {
	ds := singleColumn("v", "10", "NA", "12", "11", "13", "100", "12", "11")

	summary := NewAnalyzer(4).Analyze(ds)

	require.Len(t, summary.Anomalies, 1)
	require.Len(t, summary.Anomalies[0].Values, 1)
	assert.Equal(t, 5, summary.Anomalies[0].Values[0].Row, "row index counts data rows including missing ones")
}

func TestAnalyzeMixedColumnIsCategorical(t *testing.T) {
	ds := singleColumn("status", "12", "running", "12", "stopped", "running")

	summary := NewAnalyzer(4).Analyze(ds)

	assert.Empty(t, summary.Numeric)
	require.Len(t, summary.Categorical, 1)

	cat := summary.Categorical[0]
	assert.Equal(t, 5, cat.Count)
	assert.Equal(t, 3, cat.Distinct)
	require.NotEmpty(t, cat.TopValues)
	assert.Equal(t, ValueCount{Value: "12", Count: 2}, cat.TopValues[0])
	assert.Equal(t, ValueCount{Value: "running", Count: 2}, cat.TopValues[1])
	assert.Equal(t, ValueCount{Value: "stopped", Count: 1}, cat.TopValues[2])
}

func TestAnalyzeTopValuesCappedAtFive(t *testing.T) {
	values := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		values = append(values, "machine-"+strconv.Itoa(i))
	}
	ds := singleColumn("machine", values...)

	summary := NewAnalyzer(4).Analyze(ds)

	require.Len(t, summary.Categorical, 1)
	assert.Equal(t, 8, summary.Categorical[0].Distinct)
	assert.Len(t, summary.Categorical[0].TopValues, 5)
}

func TestAnalyzeInfinityIsNotNumeric(t *testing.T) {
	ds := singleColumn("v", "1", "2", "inf", "4")

	summary := NewAnalyzer(4).Analyze(ds)

	assert.Empty(t, summary.Numeric)
	require.Len(t, summary.Categorical, 1)
}

func TestAnalyzeEmptyDataset(t *testing.T) {
	ds := Dataset{Filename: "empty.csv", Headers: []string{"a", "b"}}

	summary := NewAnalyzer(4).Analyze(ds)

	assert.Equal(t, 0, summary.RowCount)
	assert.Equal(t, 2, summary.ColumnCount)
	assert.InDelta(t, 100, summary.Completeness, 1e-9)
	assert.Empty(t, summary.Numeric)
	require.Len(t, summary.Categorical, 2, "empty columns are categorical with zero values")
}

func TestAnalyzeRaggedRowsTreatedAsMissing(t *testing.T) {
	ds := Dataset{
		Filename: "ragged.csv",
		Headers:  []string{"a", "b"},
		Rows: [][]string{
			{"1", "x"},
			{"2"},
			{"3", "y"},
		},
	}

	summary := NewAnalyzer(4).Analyze(ds)

	require.Len(t, summary.Numeric, 1)
	require.Len(t, summary.Categorical, 1)
	assert.Equal(t, 1, summary.Categorical[0].Missing)
}

func TestSummaryIsJSONSafe(t *testing.T) {
	ds := Dataset{
		Filename: "mix.csv",
		Headers:  []string{"units", "status"},
		Rows: [][]string{
			{"10", "ok"},
			{"12", "ok"},
			{"11", ""},
			{"13", "fail"},
			{"100", "ok"},
		},
	}

	summary := NewAnalyzer(4).Analyze(ds)

	data, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "NaN")
	assert.NotContains(t, string(data), "Inf")
}

func TestQuantileInterpolation(t *testing.T) {
	sorted := []float64{10, 11, 11, 12, 12, 13, 100}

	assert.InDelta(t, 11, quantile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 12, quantile(sorted, 0.5), 1e-9)
	assert.InDelta(t, 12.5, quantile(sorted, 0.75), 1e-9)
	assert.InDelta(t, 10, quantile(sorted, 0), 1e-9)
	assert.InDelta(t, 100, quantile(sorted, 1), 1e-9)

	single := []float64{42}
	assert.InDelta(t, 42, quantile(single, 0.25), 1e-9)
	assert.False(t, math.IsNaN(quantile(single, 0.75)))
}
