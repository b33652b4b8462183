package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SemanticTag identifies the semantic meaning of a column.
type SemanticTag string

const (
	SemSSN           SemanticTag = "ssn"
	SemPassport      SemanticTag = "passport"
	SemDriverLicense SemanticTag = "driver_license"
	SemName          SemanticTag = "name"
	SemPhone         SemanticTag = "phone"
	SemEmail         SemanticTag = "email"
	SemAddress       SemanticTag = "address"
	SemZipcode       SemanticTag = "zipcode"
	SemBirthdate     SemanticTag = "birthdate"
	SemDeathdate     SemanticTag = "deathdate"
	SemVisitDate     SemanticTag = "visit_date"
	SemPatientID     SemanticTag = "patient_id"
	SemID            SemanticTag = "id"
	SemInsuranceID   SemanticTag = "insurance_id"
	SemEncounterID   SemanticTag = "encounter_id"
	SemGender        SemanticTag = "gender"
	SemAge           SemanticTag = "age"
	SemMaritalStatus SemanticTag = "marital_status"
	SemDiagnosis     SemanticTag = "diagnosis"
	SemRace          SemanticTag = "race"
	SemEthnicity     SemanticTag = "ethnicity"
	SemLocation      SemanticTag = "location"
	SemMeasurement   SemanticTag = "measurement"
	SemFinance       SemanticTag = "finance"
	SemComment       SemanticTag = "comment"
	SemNote          SemanticTag = "note"
	SemOther         SemanticTag = "other"
)

// Action is the anonymization transform applied to a column.
type Action string

const (
	ActionDrop            Action = "drop"
	ActionKeep            Action = "keep"
	ActionKeepIfPermitted Action = "keep_if_permitted_else_drop"
	ActionPseudonymize    Action = "pseudonymize"
	ActionDateFloorYear   Action = "date_floor_year"
	ActionDateFloorDecade Action = "date_floor_decade"
	ActionNormalizeMarital Action = "normalize_marital_prefix"
	ActionRegionGeneralize Action = "region_generalize"
	ActionMaskZipLeading  Action = "mask_zip_leading"
	// ActionDropZipDetail is a historical alias still accepted by the
	// transform engine; it behaves exactly like ActionMaskZipLeading.
	ActionDropZipDetail Action = "drop_zip_detail"
)

// Status is the outcome of a compliance check or a whole-dataset judgment.
type Status string

const (
	StatusPass Status = "PASS"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

// Column is one named, ordered sequence of cell values. An empty string is
// the only representation of a missing cell once data enters the engine.
type Column struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Dataset is an in-memory tabular snapshot: ordered columns of equal length.
type Dataset struct {
	Columns []Column `json:"columns"`
}

// NewDataset creates an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{}
}

// AddColumn appends a column. Values are blank-normalized copies so callers
// cannot mutate the dataset afterwards.
func (d *Dataset) AddColumn(name string, values []string) {
	copied := make([]string, len(values))
	copy(copied, values)
	d.Columns = append(d.Columns, Column{Name: name, Values: copied})
}

// NumRows returns the row count (0 for an empty dataset).
func (d *Dataset) NumRows() int {
	if len(d.Columns) == 0 {
		return 0
	}
	return len(d.Columns[0].Values)
}

// NumColumns returns the column count.
func (d *Dataset) NumColumns() int {
	return len(d.Columns)
}

// ColumnNames returns the columns' names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column, or false when absent.
func (d *Dataset) Column(name string) (*Column, bool) {
	for i := range d.Columns {
		if d.Columns[i].Name == name {
			return &d.Columns[i], true
		}
	}
	return nil, false
}

// Validate checks the dataset is rectangular.
func (d *Dataset) Validate() error {
	if len(d.Columns) == 0 {
		return nil
	}
	n := len(d.Columns[0].Values)
	for _, c := range d.Columns {
		if len(c.Values) != n {
			return fmt.Errorf("column %q has %d rows, expected %d", c.Name, len(c.Values), n)
		}
	}
	return nil
}

// LogEntry records the decision made for one output column.
type LogEntry struct {
	Semantic SemanticTag `json:"semantic"`
	Action   Action      `json:"action"`
	// Source is set only when one input column was decomposed into several
	// output columns; current transforms never decompose, but the log
	// format allows it.
	Source string `json:"source,omitempty"`
}

// Verdict is the result of one per-column compliance check.
type Verdict struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// ValidationReport aggregates per-column verdict messages for one dataset.
type ValidationReport struct {
	Pass []string `json:"pass"`
	Warn []string `json:"warn"`
	Fail []string `json:"fail"`
}

// Total returns the number of checked column mappings.
func (r *ValidationReport) Total() int {
	return len(r.Pass) + len(r.Warn) + len(r.Fail)
}

// Ratios returns the pass/warn/fail ratios over total columns. When
// totalColumns is zero the verdict counts themselves are used as the base.
func (r *ValidationReport) Ratios(totalColumns int) (pass, warn, fail float64) {
	total := totalColumns
	if total <= 0 {
		total = r.Total()
	}
	if total == 0 {
		return 0, 0, 0
	}
	return float64(len(r.Pass)) / float64(total),
		float64(len(r.Warn)) / float64(total),
		float64(len(r.Fail)) / float64(total)
}

// TransformError is the structured warning surfaced when an action handler
// failed for one column. The column is blanked; the batch continues.
type TransformError struct {
	File     string      `json:"file,omitempty"`
	Column   string      `json:"column"`
	Semantic SemanticTag `json:"semantic"`
	Action   Action      `json:"action"`
	Err      string      `json:"error"`
}

func (e TransformError) String() string {
	return fmt.Sprintf("column %q (%s/%s): %s", e.Column, e.Semantic, e.Action, e.Err)
}

// SAMetrics holds the per-sensitive-attribute privacy metrics.
type SAMetrics struct {
	Column string   `json:"column"`
	L      *int     `json:"l,omitempty"`
	T      *float64 `json:"t,omitempty"`
}

// PrivacyMetrics is the re-identification risk summary for one anonymized
// dataset. Pointer fields are nil when the metric could not be computed
// (no QI columns, no non-blank rows, or no SA candidates).
type PrivacyMetrics struct {
	QIColumns []string    `json:"qi_columns"`
	SAColumns []string    `json:"sa_columns"`
	K         *int        `json:"k,omitempty"`
	KLt2Ratio float64     `json:"k_lt2_ratio"`
	KLt5Ratio float64     `json:"k_lt5_ratio"`
	PerSA     []SAMetrics `json:"per_sa,omitempty"`
	Note      string      `json:"note,omitempty"`
}

// LMin returns the minimum l across SA columns, or nil when none computed.
func (m *PrivacyMetrics) LMin() *int {
	var min *int
	for _, sa := range m.PerSA {
		if sa.L == nil {
			continue
		}
		if min == nil || *sa.L < *min {
			v := *sa.L
			min = &v
		}
	}
	return min
}

// TMax returns the maximum t across SA columns, or nil when none computed.
func (m *PrivacyMetrics) TMax() *float64 {
	var max *float64
	for _, sa := range m.PerSA {
		if sa.T == nil {
			continue
		}
		if max == nil || *sa.T > *max {
			v := *sa.T
			max = &v
		}
	}
	return max
}

// Judgment is the final per-dataset verdict produced by the aggregator.
type Judgment struct {
	Label             Status  `json:"label"`
	Passed            bool    `json:"passed"`
	MandatoryReview   bool    `json:"mandatory_review"`
	RecommendedReview bool    `json:"recommended_review"`
	PolicyConsistency float64 `json:"policy_consistency"`
	PatternResidual   float64 `json:"pattern_residual"`
	HighRiskHandling  float64 `json:"high_risk_handling"`
	PassRatio         float64 `json:"pass_ratio"`
	WarnRatio         float64 `json:"warn_ratio"`
	FailRatio         float64 `json:"fail_ratio"`
}

// RunResult is everything one anonymization run produces for one dataset.
type RunResult struct {
	RunID           string              `json:"run_id"`
	Anonymized      *Dataset            `json:"anonymized"`
	Log             map[string]LogEntry `json:"log"`
	TransformErrors []TransformError    `json:"transform_errors,omitempty"`
	Duration        time.Duration       `json:"duration"`
}

// NewRunID returns a fresh identifier for an anonymization run.
func NewRunID() string {
	return uuid.New().String()
}

// NormalizeCell collapses a missing/whitespace-only cell to the empty string.
func NormalizeCell(v string) string {
	return strings.TrimSpace(v)
}

// IsBlank reports whether a cell is missing after normalization.
func IsBlank(v string) bool {
	return strings.TrimSpace(v) == ""
}
