package anonymize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabular-anonymizer/internal/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	p, err := NewPseudonymizer("test-salt", 12)
	require.NoError(t, err)
	return NewEngine(p)
}

func TestEngine_Drop(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.Apply([]string{"a", "", "b"}, models.ActionDrop, false, models.SemSSN)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "", ""}, out)
}

func TestEngine_Keep(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.Apply([]string{"a", "  ", "b"}, models.ActionKeep, false, models.SemAge)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "", "b"}, out, "whitespace-only cells normalize to empty")
}

func TestEngine_KeepIfPermitted(t *testing.T) {
	e := newTestEngine(t)
	values := []string{"flu", "cold"}

	out, err := e.Apply(values, models.ActionKeepIfPermitted, true, models.SemDiagnosis)
	require.NoError(t, err)
	assert.Equal(t, []string{"flu", "cold"}, out)

	out, err = e.Apply(values, models.ActionKeepIfPermitted, false, models.SemDiagnosis)
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, out)
}

func TestEngine_Pseudonymize(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.Apply([]string{"p1", "p1", "p2", ""}, models.ActionPseudonymize, false, models.SemPatientID)
	require.NoError(t, err)
	assert.Len(t, out, 4)
	assert.Equal(t, out[0], out[1], "identical inputs yield identical tokens")
	assert.NotEqual(t, out[0], out[2])
	assert.Equal(t, "", out[3])

	// Name semantic routes through the initial-letter mask.
	names, err := e.Apply([]string{"홍길동", "John Smith"}, models.ActionPseudonymize, false, models.SemName)
	require.NoError(t, err)
	assert.Equal(t, "홍00", names[0])
	assert.Len(t, names[1], 12)
}

func TestEngine_DateFloorYear(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.Apply(
		[]string{"2025-11-03", "2024/03/01", "not a date", ""},
		models.ActionDateFloorYear, false, models.SemVisitDate)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-01", "2024-01-01", "", ""}, out)
}

func TestEngine_DateFloorDecade(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.Apply(
		[]string{"2025-11-03", "1999-12-31", "2020-01-01"},
		models.ActionDateFloorDecade, false, models.SemBirthdate)
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-01-01", "1990-01-01", "2020-01-01"}, out)
}

func TestEngine_NormalizeMaritalPrefix(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.Apply(
		[]string{"Mr.", "Mrs. Kim", "Miss", "Ms.", "divorced", ""},
		models.ActionNormalizeMarital, false, models.SemMaritalStatus)
	require.NoError(t, err)
	assert.Equal(t, []string{"married", "married", "single", "single", "", ""}, out)
}

func TestEngine_RegionGeneralize(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.Apply(
		[]string{"Seoul Gangnam-gu Teheran-ro", "Seoul, Gangnam-gu", "Seoul", ""},
		models.ActionRegionGeneralize, false, models.SemAddress)
	require.NoError(t, err)
	assert.Equal(t, []string{"Seoul Gangnam-gu", "Seoul Gangnam-gu", "Seoul", ""}, out)
}

func TestEngine_MaskZipLeading(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.Apply(
		[]string{"12345", "1-2345", "12", "abc", ""},
		models.ActionMaskZipLeading, false, models.SemZipcode)
	require.NoError(t, err)
	assert.Equal(t, []string{"12300", "12300", "00000", "", ""}, out)

	// drop_zip_detail is an accepted alias.
	alias, err := e.Apply([]string{"12345"}, models.ActionDropZipDetail, false, models.SemZipcode)
	require.NoError(t, err)
	assert.Equal(t, []string{"12300"}, alias)
}

func TestEngine_UnknownActionFailsSafe(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.Apply([]string{"a", "b"}, models.Action("scramble"), false, models.SemOther)
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, out)
}

func TestEngine_RowCountPreserved(t *testing.T) {
	e := newTestEngine(t)
	values := []string{"1", "", "2", "   ", "3"}

	actions := []models.Action{
		models.ActionDrop, models.ActionKeep, models.ActionKeepIfPermitted,
		models.ActionPseudonymize, models.ActionDateFloorYear,
		models.ActionDateFloorDecade, models.ActionNormalizeMarital,
		models.ActionRegionGeneralize, models.ActionMaskZipLeading,
	}
	for _, action := range actions {
		out, err := e.Apply(values, action, false, models.SemOther)
		require.NoError(t, err)
		assert.Len(t, out, len(values), "action %s", action)
	}
}
