package semantics

import (
	"regexp"
	"strings"

	"tabular-anonymizer/internal/models"
)

var (
	camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)
	nonWord       = regexp.MustCompile(`[^0-9a-z가-힣]+`)
)

// Tokenize splits a column name into lowercase word tokens. A boundary is
// inserted at each lowercase-to-uppercase transition so camelCase names
// split, then everything that is not an ASCII alphanumeric or a Hangul
// syllable acts as a separator.
func Tokenize(name string) []string {
	s := camelBoundary.ReplaceAllString(name, "$1 $2")
	s = strings.ToLower(s)
	s = nonWord.ReplaceAllString(s, " ")

	var tokens []string
	for _, t := range strings.Fields(s) {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// aliases maps each semantic tag to its keyword phrases. A phrase matches
// when every one of its tokens is present in the column-name token set.
var aliases = map[models.SemanticTag][]string{
	models.SemSSN:           {"ssn", "resident", "rrn", "주민", "주민번호", "주민등록"},
	models.SemPassport:      {"passport", "여권"},
	models.SemDriverLicense: {"driverlicense", "driver_license", "license", "운전면허"},
	models.SemName:          {"name", "full_name", "patient_name", "성명", "이름", "환자명"},
	models.SemPhone:         {"phone", "tel", "mobile", "cell", "연락처", "전화"},
	models.SemEmail:         {"email", "e-mail", "메일"},
	models.SemAddress:       {"address", "addr", "주소"},
	models.SemZipcode:       {"zip", "zipcode", "postal", "우편", "우편번호"},
	models.SemBirthdate:     {"birth", "dob", "birthdate", "생년월일", "출생"},
	models.SemDeathdate:     {"death", "deathdate", "사망"},
	models.SemVisitDate:     {"visitdate", "visit_date", "admit", "discharge", "encounterdate", "date"},
	models.SemPatientID:     {"patientid", "patient_id", "mrn", "chart", "등록번호", "환자번호", "id"},
	models.SemGender:        {"gender", "sex", "성별"},
	models.SemAge:           {"age", "나이", "연령"},
	models.SemMaritalStatus: {"marital", "marriage", "marital_status", "혼인", "결혼"},
	models.SemDiagnosis:     {"diagnosis", "dx", "icd", "진단"},
}

// priority is the tag test order. Identity-like tags come first so that an
// ambiguous name resolves to the higher-sensitivity tag.
var priority = []models.SemanticTag{
	models.SemSSN,
	models.SemPassport,
	models.SemDriverLicense,
	models.SemPatientID,
	models.SemName,
	models.SemBirthdate,
	models.SemDeathdate,
	models.SemPhone,
	models.SemEmail,
	models.SemAddress,
	models.SemZipcode,
	models.SemDiagnosis,
	models.SemGender,
	models.SemAge,
	models.SemMaritalStatus,
	models.SemVisitDate,
}

// Classifier resolves column names to semantic tags.
type Classifier struct {
	aliases  map[models.SemanticTag][]string
	priority []models.SemanticTag
}

// NewClassifier creates a classifier with the built-in keyword table.
func NewClassifier() *Classifier {
	return &Classifier{aliases: aliases, priority: priority}
}

// Classify maps a column name to a semantic tag, returning SemOther when no
// keyword phrase matches. The values parameter is accepted as a hint for
// future content-based classification; the current implementation decides
// from the name alone.
func (c *Classifier) Classify(columnName string, values []string) models.SemanticTag {
	_ = values // extension point, see doc comment

	tokens := make(map[string]bool)
	for _, t := range Tokenize(columnName) {
		tokens[t] = true
	}
	if len(tokens) == 0 {
		return models.SemOther
	}

	for _, tag := range c.priority {
		for _, phrase := range c.aliases[tag] {
			phraseTokens := Tokenize(phrase)
			if len(phraseTokens) == 0 {
				continue
			}
			matched := true
			for _, pt := range phraseTokens {
				if !tokens[pt] {
					matched = false
					break
				}
			}
			if matched {
				return tag
			}
		}
	}
	return models.SemOther
}
