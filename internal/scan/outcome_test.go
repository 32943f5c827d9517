package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		raw  string
		want Outcome
	}{
		{"Attacked", OutcomeAttacked},
		{"attacked", OutcomeAttacked},
		{"  Mugged ", OutcomeMugged},
		{"Hospitalized", OutcomeHospitalized},
		{"Lost", OutcomeLost},
		{"Interrupted", OutcomeInterrupted},
		{"Assist", OutcomeAssist},
		{"Stalemate", OutcomeStalemate},
		{"Arrested", OutcomeOther},
		{"Escape", OutcomeOther},
		{"Looted", OutcomeOther},
		{"Special", OutcomeOther},
		{"Timeout", OutcomeOther},
		{"", OutcomeUnknown},
		{"SomethingNew", OutcomeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseOutcome(tt.raw), "result %q", tt.raw)
	}
}

func TestCounted(t *testing.T) {
	counted := []Outcome{OutcomeAttacked, OutcomeMugged, OutcomeHospitalized}
	for _, o := range counted {
		assert.True(t, o.Counted(), "%s should count", o)
	}
	notCounted := []Outcome{
		OutcomeLost, OutcomeInterrupted, OutcomeAssist,
		OutcomeStalemate, OutcomeOther, OutcomeUnknown,
	}
	for _, o := range notCounted {
		assert.False(t, o.Counted(), "%s should not count", o)
	}
}
