package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func categories(hits []Hit) []string {
	var out []string
	for _, h := range hits {
		out = append(out, h.Category)
	}
	return out
}

func TestNormalize(t *testing.T) {
	words, compact := normalize("Predám  GITARU, za 4 fľašky!")
	assert.Equal(t, "predam gitaru za a flasky", words)
	assert.Equal(t, "predamgitaruzaaflasky", compact)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"clean", "Predám basgitaru Fender, cena dohodou.", nil},
		{"transaction", "Darujem zosilňovač za fajku", []string{CategoryTransaction}},
		{"transaction reversed", "fajku za gitaru", []string{CategoryTransaction}},
		{"compact leet", "z@ f4jku", []string{CategoryTransaction}},
		{"water pipe exception", "Predám vodnú fajku za 20 eur", nil},
		{"proposition", "chceš sex po koncerte?", []string{CategoryProposition}},
		{"minors", "hľadám školáčka", []string{CategoryMinors}},
		{"minors with digits", "15ročný bubeník", []string{CategoryMinors}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, categories(Categorize(tt.text)))
		})
	}
}

func TestCategorizeSeverity(t *testing.T) {
	hits := Categorize("nezletilý, sex za fajku")
	assert.Equal(t, []string{CategoryMinors, CategoryTransaction, CategoryProposition}, categories(hits))
	assert.Equal(t, SeverityCritical, hits[0].Severity)
	assert.Equal(t, SeverityHigh, hits[1].Severity)
	assert.Equal(t, SeverityMedium, hits[2].Severity)
}

func TestAutoFlag(t *testing.T) {
	assert.False(t, AutoFlag("").Flagged)
	assert.False(t, AutoFlag("Hľadám klávesáka do kapely").Flagged)

	f := AutoFlag("Predám XXX kazety, aj orál")
	assert.True(t, f.Flagged)
	assert.Equal(t, ReasonInappropriate, f.Reason)
	assert.Equal(t, "zachytené: oral, xxx", f.Note)

	// distinct fragments only
	f = AutoFlag("sex sex sex")
	assert.Equal(t, "zachytené: sex", f.Note)
}
