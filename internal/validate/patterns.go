package validate

import (
	"regexp"
	"strings"
)

// PatternSet holds the compiled shapes the validator scans for. Keeping the
// patterns in a table means a new PII shape is one entry, not new control
// flow.
type PatternSet struct {
	// Sensitive matches residual raw PII: government ID, phone, date and
	// email shapes.
	Sensitive []*regexp.Regexp
	// NameLike matches a bare 2-4 syllable Korean person name.
	NameLike *regexp.Regexp
	// AdminSuffixes are administrative-district suffixes that exclude a
	// token from the person-name check (a generalized address fragment
	// such as "강남구" would otherwise look like a name).
	AdminSuffixes []string
	// HexToken and NameMask describe what pseudonymized output looks like.
	HexToken *regexp.Regexp
	NameMask *regexp.Regexp
	// DateFloor matches a correctly floored date.
	DateFloor *regexp.Regexp
}

// DefaultPatternSet returns the built-in pattern table.
func DefaultPatternSet() *PatternSet {
	return &PatternSet{
		Sensitive: []*regexp.Regexp{
			regexp.MustCompile(`\d{6}-?\d{7}`),                          // resident registration number
			regexp.MustCompile(`\d{2,3}-\d{3,4}-\d{4}`),                 // phone number
			regexp.MustCompile(`\b\d{4}[-/]\d{1,2}[-/]\d{1,2}\b`),       // full date
			regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`), // email
		},
		NameLike:      regexp.MustCompile(`^[가-힣]{2,4}$`),
		AdminSuffixes: []string{"시", "군", "구", "동", "읍", "면", "리"},
		HexToken:      regexp.MustCompile(`^[0-9a-fA-F]{8,}$`),
		NameMask:      regexp.MustCompile(`^[가-힣]00$`),
		DateFloor:     regexp.MustCompile(`^\d{4}-01-01$`),
	}
}

// IsPersonNameToken reports whether a value looks like a bare Korean person
// name rather than an administrative-district token.
func (ps *PatternSet) IsPersonNameToken(value string) bool {
	v := strings.TrimSpace(value)
	if !ps.NameLike.MatchString(v) {
		return false
	}
	for _, suffix := range ps.AdminSuffixes {
		if strings.HasSuffix(v, suffix) {
			return false
		}
	}
	return true
}

// MatchesSensitive reports whether a value contains any residual sensitive
// shape (including the bare person-name shape).
func (ps *PatternSet) MatchesSensitive(value string) bool {
	if ps.IsPersonNameToken(value) {
		return true
	}
	for _, re := range ps.Sensitive {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// SensitiveRatio returns the fraction of values containing a sensitive
// shape. An empty input yields 0.
func (ps *PatternSet) SensitiveRatio(values []string) float64 {
	if len(values) == 0 {
		return 0
	}
	matched := 0
	for _, v := range values {
		if ps.MatchesSensitive(v) {
			matched++
		}
	}
	return float64(matched) / float64(len(values))
}
