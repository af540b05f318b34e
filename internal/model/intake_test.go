package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() IntakeForm {
	return IntakeForm{
		AgeRange: "30-39",
		Symptom:  "headache",
		Duration: "1-3 days",
		Severity: "3",
	}
}

func TestToRecordValid(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	form := validForm()
	form.Symptom = "  headache  "
	form.Context = " worse in the morning "

	record, errs := form.ToRecord(now)
	require.Nil(t, errs)
	require.NotNil(t, record)

	assert.Equal(t, "30-39", record.AgeRange)
	assert.Equal(t, "headache", record.Symptom)
	assert.Equal(t, "1-3 days", record.Duration)
	assert.Equal(t, 3, record.Severity)
	assert.Equal(t, "worse in the morning", record.Context)
	assert.Empty(t, record.Sex)
	assert.Equal(t, now, record.CreatedAt)
}

func TestToRecordMissingRequiredFields(t *testing.T) {
	required := map[string]func(*IntakeForm){
		"ageRange": func(f *IntakeForm) { f.AgeRange = "" },
		"symptom":  func(f *IntakeForm) { f.Symptom = "   " },
		"duration": func(f *IntakeForm) { f.Duration = "" },
		"severity": func(f *IntakeForm) { f.Severity = "" },
	}

	// 每一种缺失组合都必须被拒绝
	keys := []string{"ageRange", "symptom", "duration", "severity"}
	for mask := 1; mask < 1<<len(keys); mask++ {
		form := validForm()
		var missing []string
		for i, key := range keys {
			if mask&(1<<i) != 0 {
				required[key](&form)
				missing = append(missing, key)
			}
		}
		record, errs := form.ToRecord(time.Now())
		assert.Nil(t, record, "missing %v", missing)
		for _, key := range missing {
			assert.Contains(t, errs, key, "missing %v", missing)
		}
	}
}

func TestToRecordSeverityRange(t *testing.T) {
	for _, sev := range []FlexString{"0", "6", "-1", "10", "2.5", "high"} {
		form := validForm()
		form.Severity = sev
		record, errs := form.ToRecord(time.Now())
		assert.Nil(t, record, "severity %q", sev)
		assert.Contains(t, errs, "severity", "severity %q", sev)
	}
	for _, sev := range []FlexString{"1", "2", "3", "4", "5"} {
		form := validForm()
		form.Severity = sev
		_, errs := form.ToRecord(time.Now())
		assert.Nil(t, errs, "severity %q", sev)
	}
}

func TestToRecordRejectsUnknownEnums(t *testing.T) {
	form := validForm()
	form.AgeRange = "31-38"
	form.Sex = "unknown"
	form.Duration = "forever"

	_, errs := form.ToRecord(time.Now())
	assert.Contains(t, errs, "ageRange")
	assert.Contains(t, errs, "sex")
	assert.Contains(t, errs, "duration")
}

func TestIntakeFormAcceptsNumericSeverityJSON(t *testing.T) {
	var form IntakeForm
	require.NoError(t, json.Unmarshal([]byte(`{"ageRange":"30-39","symptom":"cough","duration":"4-7 days","severity":4}`), &form))
	assert.Equal(t, FlexString("4"), form.Severity)

	record, errs := form.ToRecord(time.Now())
	require.Nil(t, errs)
	assert.True(t, record.IsSevere())
}

func TestLenientFillsBlanks(t *testing.T) {
	record := IntakeForm{Symptom: "rash", Severity: "9"}.Lenient()
	assert.Equal(t, "rash", record.Symptom)
	assert.Zero(t, record.Severity)
	assert.True(t, IntakeForm{}.IsEmpty())
}

func TestFieldErrorsMessageIsStable(t *testing.T) {
	errs := FieldErrors{"severity": "bad", "ageRange": "missing"}
	assert.Equal(t, "invalid intake: ageRange: missing; severity: bad", errs.Error())
}
