package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabular-anonymizer/internal/models"
	"tabular-anonymizer/internal/policy"
)

func TestNew_RequiresSalt(t *testing.T) {
	_, err := New(Config{Level: "low"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "salt")
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "medium", Salt: "test-salt"})
	require.Error(t, err)
}

func TestAnonymize_EmptyDataset(t *testing.T) {
	e := newTestEngine(t, "low", false)
	_, err := e.Anonymize(models.NewDataset(), nil)
	require.Error(t, err)
}

func TestAnonymize_RaggedDataset(t *testing.T) {
	e := newTestEngine(t, "low", false)
	ds := models.NewDataset()
	ds.AddColumn("a", []string{"1", "2"})
	ds.AddColumn("b", []string{"1"})
	_, err := e.Anonymize(ds, nil)
	require.Error(t, err)
}

func TestAnonymize_LowPolicy(t *testing.T) {
	e := newTestEngine(t, "low", false)

	ds := models.NewDataset()
	ds.AddColumn("name", []string{"홍길동"})
	ds.AddColumn("ssn", []string{"901010-1234567"})
	ds.AddColumn("visit_date", []string{"2024-03-01"})

	run, err := e.Anonymize(ds, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.Empty(t, run.TransformErrors)

	name, _ := run.Anonymized.Column("name")
	ssn, _ := run.Anonymized.Column("ssn")
	visit, _ := run.Anonymized.Column("visit_date")
	assert.Equal(t, []string{"홍00"}, name.Values)
	assert.Equal(t, []string{""}, ssn.Values)
	assert.Equal(t, []string{"2024-01-01"}, visit.Values)

	assert.Equal(t, models.SemName, run.Log["name"].Semantic)
	assert.Equal(t, models.ActionPseudonymize, run.Log["name"].Action)
	assert.Equal(t, models.ActionDrop, run.Log["ssn"].Action)
	assert.Equal(t, models.ActionDateFloorYear, run.Log["visit_date"].Action)
}

func TestAnonymize_Progress(t *testing.T) {
	e := newTestEngine(t, "low", false)

	ds := models.NewDataset()
	ds.AddColumn("name", []string{"홍길동"})
	ds.AddColumn("age", []string{"42"})

	var seen []string
	var positions []int
	_, err := e.Anonymize(ds, func(column string, done, total int) {
		seen = append(seen, column)
		positions = append(positions, done)
		assert.Equal(t, 2, total)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, seen)
	assert.Equal(t, []int{1, 2}, positions)
}

func TestProcess_EndToEnd(t *testing.T) {
	e := newTestEngine(t, "low", false)

	ds := models.NewDataset()
	ds.AddColumn("name", []string{"홍길동"})
	ds.AddColumn("ssn", []string{"901010-1234567"})
	ds.AddColumn("visit_date", []string{"2024-03-01"})

	res, err := e.Process(ds, nil)
	require.NoError(t, err)

	assert.Len(t, res.Report.Pass, 3)
	assert.Empty(t, res.Report.Warn)
	assert.Empty(t, res.Report.Fail)

	assert.Equal(t, 1.0, res.Metrics.PolicyConsistency)
	assert.Equal(t, 1.0, res.Metrics.HighRiskHandling)
	assert.False(t, res.Judgment.MandatoryReview)

	// visit_date is QI-eligible, so k is defined.
	require.NotNil(t, res.Privacy.K)
	assert.Equal(t, 1, *res.Privacy.K)
	assert.Equal(t, []string{"visit_date"}, res.Privacy.QIColumns)
	assert.NotEmpty(t, res.Privacy.Note)
}

func TestProcess_DiagnosisPermission(t *testing.T) {
	denied := newTestEngine(t, "low", false)
	allowed := newTestEngine(t, "low", true)

	ds := models.NewDataset()
	ds.AddColumn("diagnosis", []string{"flu", "cold"})

	res, err := denied.Process(ds, nil)
	require.NoError(t, err)
	dx, _ := res.Run.Anonymized.Column("diagnosis")
	assert.Equal(t, []string{"", ""}, dx.Values)

	res, err = allowed.Process(ds, nil)
	require.NoError(t, err)
	dx, _ = res.Run.Anonymized.Column("diagnosis")
	assert.Equal(t, []string{"flu", "cold"}, dx.Values)
	assert.Len(t, res.Report.Pass, 1)
}

func TestAnonymize_DeterministicAcrossEngines(t *testing.T) {
	ds := models.NewDataset()
	ds.AddColumn("patient_id", []string{"P-1001", "P-1002"})

	first := newTestEngine(t, "low", false)
	second := newTestEngine(t, "low", false)

	runA, err := first.Anonymize(ds, nil)
	require.NoError(t, err)
	runB, err := second.Anonymize(ds, nil)
	require.NoError(t, err)

	colA, _ := runA.Anonymized.Column("patient_id")
	colB, _ := runB.Anonymized.Column("patient_id")
	assert.Equal(t, colA.Values, colB.Values)
	assert.NotEqual(t, "P-1001", colA.Values[0])
}

func TestUpdateConfig(t *testing.T) {
	e := newTestEngine(t, "low", false)

	err := e.UpdateConfig(Config{Level: "high", Salt: "", TokenLength: 12})
	require.Error(t, err)
	assert.Equal(t, policy.LevelLow, e.Level())

	err = e.UpdateConfig(Config{Level: "high", Salt: "other-salt", TokenLength: 12})
	require.NoError(t, err)
	assert.Equal(t, policy.LevelHigh, e.Level())

	// High policy drops gender instead of keeping it.
	ds := models.NewDataset()
	ds.AddColumn("gender", []string{"F"})
	run, err := e.Anonymize(ds, nil)
	require.NoError(t, err)
	col, _ := run.Anonymized.Column("gender")
	assert.Equal(t, []string{""}, col.Values)
}

func TestStatistics(t *testing.T) {
	e := newTestEngine(t, "low", false)

	ds := models.NewDataset()
	ds.AddColumn("age", []string{"30", "40"})

	_, err := e.Anonymize(ds, nil)
	require.NoError(t, err)

	stats := e.GetStatistics()
	assert.Equal(t, int64(1), stats.DatasetsProcessed)
	assert.Equal(t, int64(1), stats.ColumnsProcessed)
	assert.Equal(t, int64(2), stats.CellsProcessed)

	require.NoError(t, e.Clear())
	stats = e.GetStatistics()
	assert.Zero(t, stats.DatasetsProcessed)
}

func newTestEngine(t *testing.T, level string, diagnosisAllowed bool) *Engine {
	t.Helper()
	e, err := New(Config{
		Level:            level,
		DiagnosisAllowed: diagnosisAllowed,
		Salt:             "test-salt",
		TokenLength:      12,
	})
	require.NoError(t, err)
	return e
}
