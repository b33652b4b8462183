package validate

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"tabular-anonymizer/internal/models"
)

const (
	// sampleSize is how many values the deterministic shape checks look at.
	sampleSize = 20
	// sampleSeed keeps the sample stable across runs so verdicts are
	// reproducible.
	sampleSeed = 0

	uniquenessFloor   = 0.7
	residualThreshold = 0.1
)

// Validator compares original columns to their anonymized counterparts and
// the action the policy assigned them.
type Validator struct {
	patterns *PatternSet
}

// NewValidator creates a validator with the default pattern set.
func NewValidator() *Validator {
	return &Validator{patterns: DefaultPatternSet()}
}

// NewValidatorWithPatterns creates a validator with a custom pattern table.
func NewValidatorWithPatterns(ps *PatternSet) *Validator {
	return &Validator{patterns: ps}
}

// Patterns exposes the pattern table, shared with the metrics aggregator.
func (v *Validator) Patterns() *PatternSet {
	return v.patterns
}

// CheckColumn evaluates one original/anonymized column pair against the
// action that should have been applied.
func (v *Validator) CheckColumn(original, anonymized []string, semantic models.SemanticTag, action models.Action, diagnosisAllowed bool) models.Verdict {
	_ = original // rules today are shape checks on the anonymized side

	switch action {
	case models.ActionDrop:
		if !allBlank(anonymized) {
			return models.Verdict{Status: models.StatusFail, Message: "expected drop, but values remain"}
		}
		return models.Verdict{Status: models.StatusPass}

	case models.ActionKeepIfPermitted:
		if diagnosisAllowed {
			return models.Verdict{Status: models.StatusPass}
		}
		if !allBlank(anonymized) {
			return models.Verdict{Status: models.StatusFail, Message: "not permitted, but values remain"}
		}
		return models.Verdict{Status: models.StatusPass}

	case models.ActionPseudonymize:
		ur := uniqueRatio(anonymized)
		if ur < uniquenessFloor {
			return models.Verdict{
				Status:  models.StatusWarn,
				Message: fmt.Sprintf("low uniqueness after pseudonymization: %.2f", ur),
			}
		}
		if !v.looksPseudonymized(anonymized) {
			return models.Verdict{Status: models.StatusWarn, Message: "values do not resemble pseudonyms"}
		}
		return models.Verdict{Status: models.StatusPass}

	case models.ActionDateFloorYear, models.ActionDateFloorDecade:
		decade := action == models.ActionDateFloorDecade
		if !v.dateFloorOK(anonymized, decade) {
			return models.Verdict{Status: models.StatusFail, Message: "date not generalized as expected (YYYY-01-01)"}
		}
		return models.Verdict{Status: models.StatusPass}

	default:
		ratio := v.patterns.SensitiveRatio(anonymized)
		if ratio > residualThreshold {
			return models.Verdict{
				Status:  models.StatusFail,
				Message: fmt.Sprintf("sensitive patterns remain in %.1f%% of values", ratio*100),
			}
		}
		return models.Verdict{Status: models.StatusPass}
	}
}

// CheckDataset runs CheckColumn over every original column, pairing it with
// its anonymized counterpart (or its decomposed columns, matched by the
// "<original>_" prefix), and buckets the messages by status. A column
// missing from the anonymized dataset is a WARN: absence may be an
// intentional drop, but without the log entry the validator flags it for
// review instead of assuming.
func (v *Validator) CheckDataset(original, anonymized *models.Dataset, log map[string]models.LogEntry, diagnosisAllowed bool) *models.ValidationReport {
	report := &models.ValidationReport{}

	for _, origCol := range original.Columns {
		if models.IsBlank(origCol.Name) {
			report.Warn = append(report.Warn, "WARN - unnamed column excluded from validation")
			continue
		}

		pairs := v.matchAnonymizedColumns(anonymized, origCol.Name)
		if len(pairs) == 0 {
			report.Warn = append(report.Warn, fmt.Sprintf(
				"WARN - column %q missing from anonymized output (drop or decomposition?)", origCol.Name))
			continue
		}

		for _, anonCol := range pairs {
			entry, ok := log[anonCol.Name]
			if !ok {
				entry = log[origCol.Name]
			}
			verdict := v.CheckColumn(origCol.Values, anonCol.Values, entry.Semantic, entry.Action, diagnosisAllowed)

			msg := fmt.Sprintf("%s - %s → %s: %s", verdict.Status, origCol.Name, anonCol.Name, verdict.Message)
			switch verdict.Status {
			case models.StatusPass:
				report.Pass = append(report.Pass, msg)
			case models.StatusWarn:
				report.Warn = append(report.Warn, msg)
			case models.StatusFail:
				report.Fail = append(report.Fail, msg)
			}
		}
	}

	return report
}

func (v *Validator) matchAnonymizedColumns(anonymized *models.Dataset, name string) []*models.Column {
	if col, ok := anonymized.Column(name); ok {
		return []*models.Column{col}
	}

	prefix := name + "_"
	var matched []*models.Column
	for i := range anonymized.Columns {
		if strings.HasPrefix(anonymized.Columns[i].Name, prefix) {
			matched = append(matched, &anonymized.Columns[i])
		}
	}
	return matched
}

// looksPseudonymized samples non-blank values and checks every one against
// the hex-token or name-mask shape. An all-blank column passes trivially.
func (v *Validator) looksPseudonymized(values []string) bool {
	sample := sampleNonBlank(values, sampleSize)
	for _, val := range sample {
		if v.patterns.NameMask.MatchString(val) {
			continue
		}
		if v.patterns.HexToken.MatchString(val) {
			continue
		}
		return false
	}
	return true
}

func (v *Validator) dateFloorOK(values []string, decade bool) bool {
	sample := sampleNonBlank(values, sampleSize)
	for _, val := range sample {
		if !v.patterns.DateFloor.MatchString(val) {
			return false
		}
		if decade {
			year, err := strconv.Atoi(val[:4])
			if err != nil || year%10 != 0 {
				return false
			}
		}
	}
	return true
}

func allBlank(values []string) bool {
	for _, v := range values {
		if !models.IsBlank(v) {
			return false
		}
	}
	return true
}

// uniqueRatio is the fraction of distinct non-blank values among non-blank
// values; 0 for an all-blank column.
func uniqueRatio(values []string) float64 {
	seen := make(map[string]bool)
	total := 0
	for _, v := range values {
		t := strings.TrimSpace(v)
		if t == "" {
			continue
		}
		total++
		seen[t] = true
	}
	if total == 0 {
		return 0
	}
	return float64(len(seen)) / float64(total)
}

// sampleNonBlank returns up to n non-blank values, chosen by a seeded
// shuffle so repeated runs check the same cells.
func sampleNonBlank(values []string, n int) []string {
	var nonBlank []string
	for _, v := range values {
		t := strings.TrimSpace(v)
		if t != "" {
			nonBlank = append(nonBlank, t)
		}
	}
	if len(nonBlank) <= n {
		return nonBlank
	}

	rng := rand.New(rand.NewSource(sampleSeed))
	perm := rng.Perm(len(nonBlank))
	sample := make([]string, n)
	for i := 0; i < n; i++ {
		sample[i] = nonBlank[perm[i]]
	}
	return sample
}
