package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const summaryJSON = `{
  "run_id": "rr-x",
  "subruns": [
    {
      "run_id": "rr-x-s00",
      "margin": {"point_id": "point-0", "values": {}},
      "status": "PASS",
      "steps": [
        {"name": "echo-check", "status": "PASS", "duration_s": 0.0123},
        {"name": "stress[1]", "status": "PASS", "duration_s": 2}
      ]
    },
    {
      "run_id": "rr-x-s01",
      "margin": {"point_id": "point-1", "values": {}},
      "status": "FAIL",
      "steps": [
        {"name": "echo, quoted", "status": "FAIL", "duration_s": 1.5}
      ]
    }
  ]
}`

func TestRows(t *testing.T) {
	rows, err := Rows([]byte(summaryJSON))
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"rr-x", "rr-x-s00", "point-0", "echo-check", "PASS", "0.0123"},
		{"rr-x", "rr-x-s00", "point-0", "stress[1]", "PASS", "2"},
		{"rr-x", "rr-x-s01", "point-1", "echo, quoted", "FAIL", "1.5"},
	}, rows)
}

func TestRows_DryRunHasNoRows(t *testing.T) {
	rows, err := Rows([]byte(`{"run_id": "rr-x", "subruns": []}`))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRows_InvalidJSON(t *testing.T) {
	_, err := Rows([]byte(`{"run_id":`))
	assert.Error(t, err)
}

func TestCSV_WritesDefaultPath(t *testing.T) {
	runDir := filepath.Join(t.TempDir(), "rr-x")
	require.NoError(t, os.MkdirAll(runDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "summary.json"), []byte(summaryJSON), 0644))

	dest, err := CSV(runDir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(runDir, "rr-x_export.csv"), dest)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, Columns, records[0])
	assert.Equal(t, "echo, quoted", records[3][3])
}

func TestCSV_CustomDestination(t *testing.T) {
	runDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "summary.json"), []byte(summaryJSON), 0644))

	dest := filepath.Join(t.TempDir(), "out", "steps.csv")
	got, err := CSV(runDir, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, got)
	assert.FileExists(t, dest)
}

func TestCSV_MissingSummary(t *testing.T) {
	_, err := CSV(t.TempDir(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read summary")
}
