package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t, "Date,Production_Units\n2024-01-01,1200\n2024-01-02,1180\n")

	ds, err := LoadCSV(path)
	require.NoError(t, err)

	assert.Equal(t, "data.csv", ds.Filename)
	assert.Equal(t, []string{"Date", "Production_Units"}, ds.Headers)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, []string{"2024-01-01", "1200"}, ds.Rows[0])
}

func TestLoadCSVRaggedRows(t *testing.T) {
	path := writeCSV(t, "a,b,c\n1,2\n4,5,6,7\n")

	ds, err := LoadCSV(path)
	require.NoError(t, err)

	require.Len(t, ds.Rows, 2)
	assert.Equal(t, []string{"1", "2", ""}, ds.Rows[0], "short rows are padded")
	assert.Equal(t, []string{"4", "5", "6"}, ds.Rows[1], "long rows are truncated")
}

func TestLoadCSVHeaderOnly(t *testing.T) {
	path := writeCSV(t, "a,b\n")

	ds, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Empty(t, ds.Rows)
}

func TestLoadCSVEmptyFile(t *testing.T) {
	path := writeCSV(t, "")

	_, err := LoadCSV(path)
	assert.Error(t, err)
}

func TestLoadExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Machine"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Output"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "press-1"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 1200))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", "press-2"))
	require.NoError(t, f.SetCellValue("Sheet1", "B3", 1180))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	ds, err := LoadExcel(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Machine", "Output"}, ds.Headers)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, []string{"press-1", "1200"}, ds.Rows[0])
	assert.Equal(t, []string{"press-2", "1180"}, ds.Rows[1])
}

func TestLoadFileDispatch(t *testing.T) {
	path := writeCSV(t, "a\n1\n")

	ds, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ds.Headers)

	unsupported := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(unsupported, []byte("{}"), 0o644))

	_, err = LoadFile(unsupported)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
