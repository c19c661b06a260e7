package analysis

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

const defaultMinAnomalySamples = 4

// Cell values treated as missing, matched case-insensitively after trimming.
var missingLiterals = map[string]struct{}{
	"na":   {},
	"n/a":  {},
	"null": {},
	"nan":  {},
	"none": {},
}

// Summary is the full deterministic description of a dataset. It never
// contains NaN or Inf, so it is always safe to serialize.
type Summary struct {
	Filename     string             `json:"filename"`
	RowCount     int                `json:"row_count"`
	ColumnCount  int                `json:"column_count"`
	Numeric      []ColumnStats      `json:"numeric_columns"`
	Categorical  []CategoricalStats `json:"categorical_columns"`
	Anomalies    []Anomaly          `json:"anomalies"`
	Completeness float64            `json:"completeness_percent"`
}

// ColumnStats describes one numeric column. StdDev is the sample standard
// deviation, 0 when fewer than two values. Quartiles use linear interpolation
// between closest ranks.
type ColumnStats struct {
	Column  string  `json:"column"`
	Count   int     `json:"count"`
	Missing int     `json:"missing"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std_dev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Q1      float64 `json:"q1"`
	Median  float64 `json:"median"`
	Q3      float64 `json:"q3"`
	Sum     float64 `json:"sum"`
}

// CategoricalStats describes one non-numeric column by value frequency.
type CategoricalStats struct {
	Column    string       `json:"column"`
	Count     int          `json:"count"`
	Missing   int          `json:"missing"`
	Distinct  int          `json:"distinct"`
	TopValues []ValueCount `json:"top_values"`
}

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Anomaly lists the values of one column falling outside the IQR fences.
type Anomaly struct {
	Column     string           `json:"column"`
	LowerFence float64          `json:"lower_fence"`
	UpperFence float64          `json:"upper_fence"`
	Values     []AnomalousValue `json:"values"`
}

// AnomalousValue attributes a flagged value to its zero-based data row, not
// counting the header.
type AnomalousValue struct {
	Row   int     `json:"row"`
	Value float64 `json:"value"`
}

// Analyzer computes descriptive statistics and IQR-based anomaly findings.
// It is stateless and safe for concurrent use.
type Analyzer struct {
	minAnomalySamples int
}

// NewAnalyzer returns an analyzer that skips anomaly detection for columns
// with fewer than minAnomalySamples numeric values. Non-positive values fall
// back to the default of 4.
func NewAnalyzer(minAnomalySamples int) *Analyzer {
	if minAnomalySamples <= 0 {
		minAnomalySamples = defaultMinAnomalySamples
	}
	return &Analyzer{minAnomalySamples: minAnomalySamples}
}

func (a *Analyzer) Analyze(ds Dataset) Summary {
	summary := Summary{
		Filename:    ds.Filename,
		RowCount:    len(ds.Rows),
		ColumnCount: len(ds.Headers),
	}

	missingTotal := 0
	for col, name := range ds.Headers {
		values, rows, missing := columnValues(ds.Rows, col)
		missingTotal += missing

		nums, numeric := parseNumeric(values)
		if !numeric {
			summary.Categorical = append(summary.Categorical, describeCategorical(name, values, missing))
			continue
		}

		stats := describeNumeric(name, nums, missing)
		summary.Numeric = append(summary.Numeric, stats)

		if len(nums) < a.minAnomalySamples {
			continue
		}
		if anomaly, found := detectAnomalies(name, nums, rows, stats); found {
			summary.Anomalies = append(summary.Anomalies, anomaly)
		}
	}

	totalCells := len(ds.Rows) * len(ds.Headers)
	if totalCells == 0 {
		summary.Completeness = 100
	} else {
		summary.Completeness = float64(totalCells-missingTotal) / float64(totalCells) * 100
	}

	return summary
}

// columnValues returns the non-missing cells of one column with their row
// indices, plus the missing count.
func columnValues(rows [][]string, col int) ([]string, []int, int) {
	var values []string
	var indices []int
	missing := 0

	for i, row := range rows {
		var cell string
		if col < len(row) {
			cell = strings.TrimSpace(row[col])
		}
		if isMissing(cell) {
			missing++
			continue
		}
		values = append(values, cell)
		indices = append(indices, i)
	}

	return values, indices, missing
}

func isMissing(cell string) bool {
	if cell == "" {
		return true
	}
	_, ok := missingLiterals[strings.ToLower(cell)]
	return ok
}

// parseNumeric reports whether every value parses as a finite float. A column
// with no values at all is not numeric.
func parseNumeric(values []string) ([]float64, bool) {
	if len(values) == 0 {
		return nil, false
	}

	nums := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		nums = append(nums, f)
	}
	return nums, true
}

func describeNumeric(name string, nums []float64, missing int) ColumnStats {
	stats := ColumnStats{Column: name, Count: len(nums), Missing: missing}

	sorted := make([]float64, len(nums))
	copy(sorted, nums)
	sort.Float64s(sorted)

	stats.Min = sorted[0]
	stats.Max = sorted[len(sorted)-1]
	for _, v := range nums {
		stats.Sum += v
	}
	stats.Mean = stats.Sum / float64(len(nums))

	if len(nums) >= 2 {
		var sq float64
		for _, v := range nums {
			d := v - stats.Mean
			sq += d * d
		}
		stats.StdDev = math.Sqrt(sq / float64(len(nums)-1))
	}

	stats.Q1 = quantile(sorted, 0.25)
	stats.Median = quantile(sorted, 0.5)
	stats.Q3 = quantile(sorted, 0.75)

	return stats
}

// quantile interpolates linearly between the closest ranks of an ascending
// slice. sorted must be non-empty.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func detectAnomalies(name string, nums []float64, rows []int, stats ColumnStats) (Anomaly, bool) {
	iqr := stats.Q3 - stats.Q1
	anomaly := Anomaly{
		Column:     name,
		LowerFence: stats.Q1 - 1.5*iqr,
		UpperFence: stats.Q3 + 1.5*iqr,
	}

	for i, v := range nums {
		if v < anomaly.LowerFence || v > anomaly.UpperFence {
			anomaly.Values = append(anomaly.Values, AnomalousValue{Row: rows[i], Value: v})
		}
	}

	return anomaly, len(anomaly.Values) > 0
}

func describeCategorical(name string, values []string, missing int) CategoricalStats {
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}

	top := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		top = append(top, ValueCount{Value: v, Count: c})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Value < top[j].Value
	})
	if len(top) > 5 {
		top = top[:5]
	}

	return CategoricalStats{
		Column:    name,
		Count:     len(values),
		Missing:   missing,
		Distinct:  len(counts),
		TopValues: top,
	}
}
