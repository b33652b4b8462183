package app

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabular-anonymizer/internal/config"
	"tabular-anonymizer/internal/models"
)

func TestNew(t *testing.T) {
	app := createTestApp(t)
	assert.NotNil(t, app.engine)
	assert.NotNil(t, app.metrics)
}

func TestNew_RequiresSalt(t *testing.T) {
	cfg := testConfig(t)
	cfg.Anonymization.Salt = ""
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "salt")
}

func TestRunBatch(t *testing.T) {
	app := createTestApp(t)

	input := writeTestCSV(t, "patients.csv",
		"name,ssn,visit_date\n"+
			"홍길동,901010-1234567,2024-03-01\n"+
			"김철수,880505-7654321,2023-07-15\n")

	summary, err := app.RunBatch([]string{input})
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)

	outcome := summary.Outcomes[0]
	require.NoError(t, outcome.Err)
	assert.True(t, strings.HasSuffix(outcome.Output, "patients_anonymized.csv"))

	// Anonymized CSV round-trips with masked values.
	ds, err := LoadCSV(outcome.Output)
	require.NoError(t, err)
	name, ok := ds.Column("name")
	require.True(t, ok)
	assert.Equal(t, []string{"홍00", "김00"}, name.Values)
	ssn, _ := ds.Column("ssn")
	assert.Equal(t, []string{"", ""}, ssn.Values)

	// Decision log carries the _meta block and one entry per column.
	data, err := os.ReadFile(outcome.LogPath)
	require.NoError(t, err)
	var payload struct {
		Meta    map[string]interface{}     `json:"_meta"`
		LogInfo map[string]models.LogEntry `json:"log_info"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "low", payload.Meta["mode"])
	assert.Equal(t, false, payload.Meta["allow_dx"])
	assert.Len(t, payload.LogInfo, 3)
	assert.Equal(t, models.ActionDrop, payload.LogInfo["ssn"].Action)

	// Metrics, privacy and cumulative report artifacts exist.
	assert.FileExists(t, outcome.MetricsPath)
	assert.FileExists(t, outcome.PrivacyPath)
	assert.FileExists(t, summary.ReportPath)

	report, err := os.ReadFile(summary.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "patients.csv")

	snap := app.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snap.DatasetsProcessed)
	assert.Equal(t, int64(3), snap.ColumnsProcessed)
}

func TestRunBatch_SkipsUnreadableFiles(t *testing.T) {
	app := createTestApp(t)

	input := writeTestCSV(t, "good.csv", "age\n30\n")
	missing := filepath.Join(t.TempDir(), "missing.csv")

	summary, err := app.RunBatch([]string{missing, input})
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 2)

	assert.Error(t, summary.Outcomes[0].Err)
	assert.NoError(t, summary.Outcomes[1].Err)
}

func TestRunBatch_AllFilesUnreadable(t *testing.T) {
	app := createTestApp(t)
	_, err := app.RunBatch([]string{filepath.Join(t.TempDir(), "nope.csv")})
	require.Error(t, err)
}

func TestPurgeSources(t *testing.T) {
	app := createTestApp(t)

	passInput := writeTestCSV(t, "pass.csv", "age\n30\n")
	failInput := writeTestCSV(t, "fail.csv", "age\n30\n")

	outcomes := []FileOutcome{
		{Input: passInput, Label: models.StatusPass},
		{Input: failInput, Label: models.StatusFail},
	}

	deleted, err := app.PurgeSources(outcomes)
	require.NoError(t, err)
	assert.Equal(t, []string{passInput}, deleted)

	_, err = os.Stat(passInput)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(failInput)
	assert.NoError(t, err)
}

func TestLoadCSV_HeaderPromotion(t *testing.T) {
	// A mostly blank header row means the real header is the next row.
	input := writeTestCSV(t, "banner.csv", ",,\nname,ssn,age\n홍길동,901010-1234567,30\n")

	ds, err := LoadCSV(input)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "ssn", "age"}, ds.ColumnNames())
	assert.Equal(t, 1, ds.NumRows())
}

func TestLoadCSV_RaggedRowsPadded(t *testing.T) {
	input := writeTestCSV(t, "ragged.csv", "a,b,c\n1,2\n4,5,6\n")

	ds, err := LoadCSV(input)
	require.NoError(t, err)
	c, _ := ds.Column("c")
	assert.Equal(t, []string{"", "6"}, c.Values)
}

func TestSaveCSVRoundTrip(t *testing.T) {
	ds := models.NewDataset()
	ds.AddColumn("이름", []string{"홍00"})
	ds.AddColumn("zip", []string{"12300"})

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, SaveCSV(path, ds))

	loaded, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"이름", "zip"}, loaded.ColumnNames())
	col, _ := loaded.Column("이름")
	assert.Equal(t, []string{"홍00"}, col.Values)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Anonymization.Salt = "test-salt"
	cfg.App.DataDir = t.TempDir()
	cfg.App.OutputDir = t.TempDir()
	cfg.Batch.ReportDir = cfg.App.OutputDir
	cfg.Batch.Workers = 2
	return cfg
}

func createTestApp(t *testing.T) *AnonymizerApp {
	t.Helper()
	app, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func writeTestCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
