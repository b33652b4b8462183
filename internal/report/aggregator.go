package report

import (
	"math/rand"
	"strings"

	"tabular-anonymizer/internal/models"
	"tabular-anonymizer/internal/policy"
	"tabular-anonymizer/internal/validate"
)

const (
	sampleSize = 20
	sampleSeed = 0

	residualThreshold = 0.10
	highRiskThreshold = 1.0

	consistencyHigh = 0.80
	consistencyLow  = 0.60

	warnRatioHigh = 0.30
	warnRatioLow  = 0.50
)

// highRiskKeywords mark a semantic as requiring a mitigating action.
var highRiskKeywords = []string{
	"ssn", "passport", "driver", "license", "name", "patient_id",
	"id", "birth", "death", "phone", "email", "address", "zipcode",
}

// mitigatingActions are accepted handling for a high-risk column.
var mitigatingActions = map[models.Action]bool{
	models.ActionDrop:            true,
	models.ActionPseudonymize:    true,
	models.ActionDateFloorYear:   true,
	models.ActionDateFloorDecade: true,
	models.ActionRegionGeneralize: true,
	models.ActionMaskZipLeading:  true,
	models.ActionDropZipDetail:   true,
}

// Metrics are the scalar rates feeding the final judgment.
type Metrics struct {
	PolicyConsistency float64 `json:"policy_consistency"`
	PatternResidual   float64 `json:"pattern_residual"`
	HighRiskHandling  float64 `json:"high_risk_handling"`
}

// Aggregator condenses validation results and the transform log into the
// final per-dataset judgment.
type Aggregator struct {
	patterns *validate.PatternSet
}

// NewAggregator creates an aggregator using the default sensitive-shape
// patterns.
func NewAggregator() *Aggregator {
	return &Aggregator{patterns: validate.DefaultPatternSet()}
}

// NewAggregatorWithPatterns creates an aggregator using a custom pattern
// table.
func NewAggregatorWithPatterns(p *validate.PatternSet) *Aggregator {
	return &Aggregator{patterns: p}
}

// PolicyConsistency is 1 minus the fraction of logged columns whose
// observed data contradicts the logged action. The only contradiction
// checked is a drop-logged column still carrying non-blank values.
func (a *Aggregator) PolicyConsistency(ds *models.Dataset, log map[string]models.LogEntry) float64 {
	if len(log) == 0 {
		return 1.0
	}
	mismatches := 0
	for name, entry := range log {
		if entry.Action != models.ActionDrop {
			continue
		}
		col, ok := ds.Column(name)
		if !ok {
			continue
		}
		for _, v := range col.Values {
			if strings.TrimSpace(v) != "" {
				mismatches++
				break
			}
		}
	}
	return 1.0 - float64(mismatches)/float64(len(log))
}

// PatternResidual samples each anonymized column deterministically and
// returns the fraction of sampled values still matching a sensitive shape.
func (a *Aggregator) PatternResidual(ds *models.Dataset) float64 {
	sampled := 0
	matched := 0
	for _, col := range ds.Columns {
		for _, v := range sampleNonBlank(col.Values, sampleSize) {
			sampled++
			if a.patterns.MatchesSensitive(v) || a.patterns.IsPersonNameToken(v) {
				matched++
			}
		}
	}
	if sampled == 0 {
		return 0.0
	}
	return float64(matched) / float64(sampled)
}

// HighRiskHandling is the fraction of high-risk columns whose action is a
// recognized mitigating action. With no high-risk columns the rate is 1.
func (a *Aggregator) HighRiskHandling(log map[string]models.LogEntry) float64 {
	total := 0
	handled := 0
	for _, entry := range log {
		if !isHighRisk(entry.Semantic) {
			continue
		}
		total++
		if mitigatingActions[entry.Action] {
			handled++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(handled) / float64(total)
}

// Collect computes all three rates for one anonymized dataset.
func (a *Aggregator) Collect(ds *models.Dataset, log map[string]models.LogEntry) Metrics {
	return Metrics{
		PolicyConsistency: a.PolicyConsistency(ds, log),
		PatternResidual:   a.PatternResidual(ds),
		HighRiskHandling:  a.HighRiskHandling(log),
	}
}

// Judge folds the rates and the validator report into the final verdict.
func (a *Aggregator) Judge(m Metrics, report *models.ValidationReport, level policy.Level) models.Judgment {
	t1 := consistencyLow
	warnLimit := warnRatioLow
	if level == policy.LevelHigh {
		t1 = consistencyHigh
		warnLimit = warnRatioHigh
	}

	passed := m.PolicyConsistency >= t1 &&
		m.PatternResidual <= residualThreshold &&
		m.HighRiskHandling >= highRiskThreshold

	passRatio, warnRatio, failRatio := report.Ratios(0)
	mandatory := failRatio > 0
	recommended := warnRatio >= warnLimit

	j := models.Judgment{
		Passed:            passed,
		MandatoryReview:   mandatory,
		RecommendedReview: recommended,
		PolicyConsistency: m.PolicyConsistency,
		PatternResidual:   m.PatternResidual,
		HighRiskHandling:  m.HighRiskHandling,
		PassRatio:         passRatio,
		WarnRatio:         warnRatio,
		FailRatio:         failRatio,
	}
	switch {
	case !passed || mandatory:
		j.Label = models.StatusFail
	case recommended:
		j.Label = models.StatusWarn
	default:
		j.Label = models.StatusPass
	}
	return j
}

func isHighRisk(semantic models.SemanticTag) bool {
	s := string(semantic)
	for _, kw := range highRiskKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// sampleNonBlank mirrors the validator's deterministic sampling so the
// residual rate is reproducible across runs.
func sampleNonBlank(values []string, n int) []string {
	var nonBlank []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			nonBlank = append(nonBlank, v)
		}
	}
	if len(nonBlank) <= n {
		return nonBlank
	}
	rng := rand.New(rand.NewSource(sampleSeed))
	perm := rng.Perm(len(nonBlank))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = nonBlank[perm[i]]
	}
	return out
}
