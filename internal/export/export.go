package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/roach88/roadrunner/internal/artifact"
)

// Columns is the CSV header, one row per step invocation.
var Columns = []string{"parent_run_id", "sub_run_id", "margin_point", "step_name", "status", "duration_s"}

// DefaultPath is where CSV writes when no destination is given:
// <runDir>/<run id>_export.csv.
func DefaultPath(runDir string) string {
	return filepath.Join(runDir, filepath.Base(runDir)+"_export.csv")
}

// CSV exports the steps of the run in runDir. An empty dest uses
// DefaultPath. It returns the path written.
func CSV(runDir, dest string) (string, error) {
	data, err := os.ReadFile(filepath.Join(runDir, artifact.SummaryFile))
	if err != nil {
		return "", fmt.Errorf("read summary: %w", err)
	}
	rows, err := Rows(data)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return "", err
	}
	if err := w.WriteAll(rows); err != nil {
		return "", err
	}

	if dest == "" {
		dest = DefaultPath(runDir)
	}
	if err := artifact.WriteFile(dest, buf.Bytes()); err != nil {
		return "", err
	}
	return dest, nil
}

// Rows extracts the CSV rows from a summary.json document. Durations keep
// the number text of the summary.
func Rows(summary []byte) ([][]string, error) {
	if !gjson.ValidBytes(summary) {
		return nil, fmt.Errorf("summary is not valid JSON")
	}
	doc := gjson.ParseBytes(summary)
	runID := doc.Get("run_id").String()

	rows := [][]string{}
	doc.Get("subruns").ForEach(func(_, sub gjson.Result) bool {
		subID := sub.Get("run_id").String()
		point := sub.Get("margin.point_id").String()
		sub.Get("steps").ForEach(func(_, step gjson.Result) bool {
			rows = append(rows, []string{
				runID,
				subID,
				point,
				step.Get("name").String(),
				step.Get("status").String(),
				number(step.Get("duration_s")),
			})
			return true
		})
		return true
	})
	return rows, nil
}

func number(r gjson.Result) string {
	if r.Type == gjson.Number {
		return r.Raw
	}
	return r.String()
}
