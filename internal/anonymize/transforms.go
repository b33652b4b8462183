package anonymize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"tabular-anonymizer/internal/models"
)

// dateLayouts are the calendar formats the date-floor actions accept.
// Anything that fails all of them floors to the empty string.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"20060102",
	"2006-01",
	"2006",
}

var nonDigitRe = regexp.MustCompile(`\D`)

// Engine applies one policy action to one column's values. All handlers are
// pure: same input, same output, row count preserved.
type Engine struct {
	pseudo *Pseudonymizer
}

// NewEngine creates a transform engine around a pseudonymizer.
func NewEngine(pseudo *Pseudonymizer) *Engine {
	return &Engine{pseudo: pseudo}
}

// Apply transforms a column under the given action. The returned slice is
// always the same length as the input. A panicking handler is contained:
// the column comes back entirely blank together with a non-nil error so
// the caller can record a transform failure instead of aborting the run.
func (e *Engine) Apply(values []string, action models.Action, diagnosisAllowed bool, semantic models.SemanticTag) (out []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = blankColumn(len(values))
			err = fmt.Errorf("transform %s panicked: %v", action, r)
		}
	}()

	normalized := normalizeBlanks(values)

	switch action {
	case models.ActionDrop:
		return blankColumn(len(normalized)), nil

	case models.ActionKeep:
		return normalized, nil

	case models.ActionKeepIfPermitted:
		if diagnosisAllowed {
			return normalized, nil
		}
		return blankColumn(len(normalized)), nil

	case models.ActionPseudonymize:
		return e.pseudonymizeColumn(normalized, semantic), nil

	case models.ActionDateFloorYear:
		return mapValues(normalized, func(v string) string { return floorDate(v, false) }), nil

	case models.ActionDateFloorDecade:
		return mapValues(normalized, func(v string) string { return floorDate(v, true) }), nil

	case models.ActionNormalizeMarital:
		return mapValues(normalized, normalizeMaritalPrefix), nil

	case models.ActionRegionGeneralize:
		return mapValues(normalized, regionGeneralize), nil

	case models.ActionMaskZipLeading, models.ActionDropZipDetail:
		return mapValues(normalized, maskZipLeading), nil

	default:
		// Fail safe: an action this engine does not recognize must never
		// leak values through.
		return blankColumn(len(normalized)), nil
	}
}

func (e *Engine) pseudonymizeColumn(values []string, semantic models.SemanticTag) []string {
	if semantic == models.SemName {
		return mapValues(values, e.pseudo.MaskName)
	}
	return mapValues(values, e.pseudo.Token)
}

// normalizeBlanks collapses whitespace-only cells to the empty string while
// leaving real values untouched.
func normalizeBlanks(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			out[i] = ""
		} else {
			out[i] = v
		}
	}
	return out
}

func blankColumn(n int) []string {
	return make([]string, n)
}

func mapValues(values []string, fn func(string) string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v == "" {
			continue
		}
		out[i] = fn(v)
	}
	return out
}

// floorDate parses a value as a calendar date and emits YYYY-01-01. The
// decade variant floors the year to the lower multiple of ten. Unparseable
// input yields the empty string.
func floorDate(value string, decade bool) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}

	var year int
	parsed := false
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			year = t.Year()
			parsed = true
			break
		}
	}
	if !parsed {
		return ""
	}

	if decade {
		year = (year / 10) * 10
	}
	return fmt.Sprintf("%04d-01-01", year)
}

// normalizeMaritalPrefix collapses honorific-style marital text to
// married/single. Anything unrecognized becomes blank.
func normalizeMaritalPrefix(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case v == "":
		return ""
	case strings.HasPrefix(v, "mr") || strings.Contains(v, " mr"):
		return "married"
	case strings.HasPrefix(v, "miss") || strings.HasPrefix(v, "ms") || strings.Contains(v, " ms"):
		return "single"
	default:
		return ""
	}
}

// regionGeneralize keeps the first two whitespace-delimited tokens of an
// address, administrative-region granularity.
func regionGeneralize(value string) string {
	v := strings.NewReplacer("\n", " ", ",", " ").Replace(strings.TrimSpace(value))
	tokens := strings.Fields(v)
	switch {
	case len(tokens) == 0:
		return ""
	case len(tokens) == 1:
		return tokens[0]
	default:
		return tokens[0] + " " + tokens[1]
	}
}

// maskZipLeading strips non-digits, normalizes to 5 digits and blanks the
// last two.
func maskZipLeading(value string) string {
	digits := nonDigitRe.ReplaceAllString(strings.TrimSpace(value), "")
	if digits == "" {
		return ""
	}
	if len(digits) < 5 {
		digits = strings.Repeat("0", 5-len(digits)) + digits
	}
	digits = digits[:5]
	return digits[:3] + "00"
}
