package policy

import (
	"fmt"
	"strings"

	"tabular-anonymizer/internal/models"
)

// Level selects which anonymization policy applies.
type Level string

const (
	LevelLow  Level = "low"
	LevelHigh Level = "high"
)

// ParseLevel normalizes a level string, defaulting to low.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "low":
		return LevelLow, nil
	case "high":
		return LevelHigh, nil
	default:
		return LevelLow, fmt.Errorf("unknown anonymization level %q", s)
	}
}

// low is the low-level policy: pseudonymize identifiers, keep demographics.
var low = map[models.SemanticTag]models.Action{
	models.SemID:          models.ActionPseudonymize,
	models.SemPatientID:   models.ActionPseudonymize,
	models.SemInsuranceID: models.ActionPseudonymize,
	models.SemEncounterID: models.ActionPseudonymize,

	models.SemSSN:           models.ActionDrop,
	models.SemDriverLicense: models.ActionDrop,
	models.SemPassport:      models.ActionDrop,

	models.SemName: models.ActionPseudonymize,

	models.SemBirthdate: models.ActionDateFloorYear,
	models.SemDeathdate: models.ActionDateFloorYear,
	models.SemVisitDate: models.ActionDateFloorYear,

	models.SemAge:           models.ActionKeep,
	models.SemGender:        models.ActionKeep,
	models.SemMaritalStatus: models.ActionKeep,
	models.SemRace:          models.ActionKeep,
	models.SemEthnicity:     models.ActionKeep,

	models.SemAddress: models.ActionRegionGeneralize,
	models.SemZipcode: models.ActionMaskZipLeading,

	models.SemLocation: models.ActionDrop,

	models.SemDiagnosis: models.ActionKeepIfPermitted,

	models.SemMeasurement: models.ActionKeep,
	models.SemFinance:     models.ActionDrop,
	models.SemComment:     models.ActionDrop,
	models.SemNote:        models.ActionDrop,

	models.SemOther: models.ActionKeep,
}

// high is the high-level policy: drop identifiers and demographics, coarser
// date flooring.
var high = map[models.SemanticTag]models.Action{
	models.SemID:          models.ActionDrop,
	models.SemPatientID:   models.ActionDrop,
	models.SemInsuranceID: models.ActionDrop,
	models.SemEncounterID: models.ActionDrop,

	models.SemSSN:           models.ActionDrop,
	models.SemDriverLicense: models.ActionDrop,
	models.SemPassport:      models.ActionDrop,

	models.SemName: models.ActionDrop,

	models.SemBirthdate: models.ActionDateFloorDecade,
	models.SemDeathdate: models.ActionDateFloorDecade,
	models.SemVisitDate: models.ActionDateFloorYear,

	models.SemAge:           models.ActionDrop,
	models.SemGender:        models.ActionDrop,
	models.SemMaritalStatus: models.ActionNormalizeMarital,
	models.SemRace:          models.ActionKeep,
	models.SemEthnicity:     models.ActionKeep,

	models.SemAddress: models.ActionRegionGeneralize,
	models.SemZipcode: models.ActionMaskZipLeading,

	models.SemLocation: models.ActionDrop,

	models.SemDiagnosis: models.ActionKeepIfPermitted,

	models.SemMeasurement: models.ActionKeep,
	models.SemFinance:     models.ActionDrop,
	models.SemComment:     models.ActionDrop,
	models.SemNote:        models.ActionDrop,

	models.SemOther: models.ActionKeep,
}

// Resolve maps a semantic tag to its action under the given level. A tag
// absent from the table resolves to keep: a freshly defined PII category
// should surface its values during review rather than vanish silently.
func Resolve(level Level, semantic models.SemanticTag) models.Action {
	table := low
	if level == LevelHigh {
		table = high
	}
	if action, ok := table[semantic]; ok {
		return action
	}
	return models.ActionKeep
}

// Table returns a copy of the policy table for the level, for reporting.
func Table(level Level) map[models.SemanticTag]models.Action {
	src := low
	if level == LevelHigh {
		src = high
	}
	out := make(map[models.SemanticTag]models.Action, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
