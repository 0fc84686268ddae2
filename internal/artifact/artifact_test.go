package artifact

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roadrunner/internal/model"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time                         { return c.t }
func (c fixedClock) NewTicker(d time.Duration) *time.Ticker { return time.NewTicker(d) }

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"Echo Check":       "echo-check",
		"  spaced  ":       "spaced",
		"a/b\\c":           "a-b-c",
		"keep_this.one-ok": "keep_this.one-ok",
		"Crème Brûlée":     "creme-brulee",
		"***":              "",
		"VCORE mV":         "vcore-mv",
	}
	for in, want := range tests {
		assert.Equal(t, want, Sanitize(in), "Sanitize(%q)", in)
	}
}

func TestRunPaths_Layout(t *testing.T) {
	p := NewRunPaths("/runs", "rr-20250101T000000Z-abc")

	assert.Equal(t, "/runs/rr-20250101T000000Z-abc", p.Dir())
	assert.Equal(t, "/runs/rr-20250101T000000Z-abc/plan.json", p.Plan())
	assert.Equal(t, "/runs/rr-20250101T000000Z-abc/safety_policy.json", p.SafetyPolicy())
	assert.Equal(t, "/runs/rr-20250101T000000Z-abc/report.html", p.HTMLReport())
	assert.Equal(t, "/runs/rr-20250101T000000Z-abc/subruns/s00/summary.json", p.SubRunSummary("s00"))
	assert.Equal(t, "/runs/rr-20250101T000000Z-abc/subruns/s00/steps.ldjson", p.SubRunLog("s00"))

	assert.Equal(t, "/runs/rr-20250101T000000Z-abc/subruns/s00/stdout/00_echo-check.log",
		p.StepStdout("s00", "Echo Check", 0, 0))
	assert.Equal(t, "/runs/rr-20250101T000000Z-abc/subruns/s00/stderr/03_sweep_02.log",
		p.StepStderr("s00", "sweep", 3, 2))

	assert.Equal(t, "subruns/s00/stdout/00_a.log", p.Rel(p.StepStdout("s00", "a", 0, 0)))
}

func TestWriteJSON_CreatesParentsAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "dir", "summary.json")

	require.NoError(t, WriteJSON(path, map[string]any{"status": "PENDING"}))
	require.NoError(t, WriteJSON(path, map[string]any{"status": "PASS"}))

	var got map[string]any
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, "PASS", got["status"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestTimestamp_IsUTC(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	ts := Timestamp(time.Date(2025, 3, 1, 12, 0, 0, 0, loc))
	assert.Equal(t, "2025-03-01T11:00:00Z", ts)
}

func TestEventLog_AppendsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "steps.ldjson")
	clock := fixedClock{t: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}

	log, err := NewEventLog(path, clock)
	require.NoError(t, err)

	ev := StepEvent{
		SubRunID:   "rr-x-s00",
		Step:       "sweep[1]",
		Adapter:    "echo",
		Parameters: model.NewValues("message", "hi", "threads", 2),
	}
	log.Start(ev)
	log.End(ev, "FAIL", 1500*time.Millisecond, `adapter "echo" failed with exit code 3`)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, records, 2)

	start := records[0]
	assert.Equal(t, "step", start["event"])
	assert.Equal(t, "start", start["action"])
	assert.Equal(t, "rr-x-s00", start["run_id"])
	assert.Equal(t, "sweep[1]", start["step"])
	assert.Equal(t, "2025-01-02T03:04:05Z", start["timestamp"])
	assert.Equal(t, map[string]any{"message": "hi", "threads": float64(2)}, start["parameters"])
	assert.NotContains(t, start, "status")

	end := records[1]
	assert.Equal(t, "end", end["action"])
	assert.Equal(t, "FAIL", end["status"])
	assert.Equal(t, 1.5, end["duration_s"])
	assert.Contains(t, end["error"], "exit code 3")
	assert.NoError(t, log.Err())
}

func TestEventLog_KeepsWriteFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.ldjson")
	log, err := NewEventLog(path, nil)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(path, 0755))

	ev := StepEvent{SubRunID: "s", Step: "a", Adapter: "echo"}
	log.Start(ev)
	log.End(ev, "PASS", time.Second, "")

	err = log.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write event log "+path)
}

func TestEventLog_NullErrorOnPass(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.ldjson")
	log, err := NewEventLog(path, nil)
	require.NoError(t, err)

	log.End(StepEvent{SubRunID: "s", Step: "a", Adapter: "echo"}, "PASS", time.Second, "")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(data, &rec))
	v, ok := rec["error"]
	assert.True(t, ok)
	assert.Nil(t, v)
}
