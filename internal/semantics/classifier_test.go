package semantics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tabular-anonymizer/internal/models"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"patient", "id"}, Tokenize("PatientID"))
	assert.Equal(t, []string{"visit", "date"}, Tokenize("visit_date"))
	assert.Equal(t, []string{"환자", "등록번호"}, Tokenize("환자_등록번호"))
	assert.Empty(t, Tokenize("!!!"))
}

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		column string
		want   models.SemanticTag
	}{
		{"PatientID", models.SemPatientID},
		{"환자_등록번호", models.SemPatientID},
		{"mrn", models.SemPatientID},
		{"ssn", models.SemSSN},
		{"주민등록번호", models.SemSSN},
		{"name", models.SemName},
		{"patient_name", models.SemName},
		{"환자명", models.SemName},
		{"birth_date", models.SemBirthdate},
		{"DOB", models.SemBirthdate},
		{"death_date", models.SemDeathdate},
		{"phone_number", models.SemPhone},
		{"연락처", models.SemPhone},
		{"email", models.SemEmail},
		{"home_address", models.SemAddress},
		{"zip_code", models.SemZipcode},
		{"우편번호", models.SemZipcode},
		{"diagnosis_code", models.SemDiagnosis},
		{"dx", models.SemDiagnosis},
		{"gender", models.SemGender},
		{"성별", models.SemGender},
		{"age", models.SemAge},
		{"marital_status", models.SemMaritalStatus},
		{"visit_date", models.SemVisitDate},
		{"admit_date", models.SemVisitDate},
		{"passport_no", models.SemPassport},
		{"driver_license", models.SemDriverLicense},
		{"blood_pressure", models.SemOther},
		{"", models.SemOther},
	}

	for _, tt := range tests {
		got := c.Classify(tt.column, nil)
		assert.Equal(t, tt.want, got, "column %q", tt.column)
	}
}

func TestClassifier_PriorityOrder(t *testing.T) {
	c := NewClassifier()

	// "patient_id" beats the bare "id" alias and the far later date tags:
	// identity tags are tested first.
	assert.Equal(t, models.SemPatientID, c.Classify("patient_id", nil))

	// "patient_name" contains the patient token but not the id token, so it
	// falls through to the name phrase.
	assert.Equal(t, models.SemName, c.Classify("patient_name", nil))

	// "birth_date" matches both birthdate ("birth") and visit_date ("date");
	// birthdate wins on priority.
	assert.Equal(t, models.SemBirthdate, c.Classify("birth_date", nil))
}

func TestClassifier_ValuesHintIgnored(t *testing.T) {
	c := NewClassifier()

	// Values are accepted but never consulted today.
	withValues := c.Classify("mystery", []string{"901010-1234567"})
	assert.Equal(t, models.SemOther, withValues)
}
