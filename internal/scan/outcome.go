package scan

import "strings"

// Bucket partitions aggregates by whether a hit landed inside the ranked war
type Bucket string

const (
	BucketRanked  Bucket = "ranked"
	BucketOutside Bucket = "outside"
)

// Outcome is the closed classification of an attack result
type Outcome string

const (
	OutcomeAttacked     Outcome = "attacked"
	OutcomeLost         Outcome = "lost"
	OutcomeMugged       Outcome = "mugged"
	OutcomeInterrupted  Outcome = "interrupted"
	OutcomeAssist       Outcome = "assist"
	OutcomeStalemate    Outcome = "stalemate"
	OutcomeHospitalized Outcome = "hospitalized"
	OutcomeOther        Outcome = "other"
	OutcomeUnknown      Outcome = "unknown"
)

// ParseOutcome maps a raw Torn result string onto the closed outcome set.
// Recognized results that are not tracked individually map to OutcomeOther;
// anything unrecognized or empty maps to OutcomeUnknown.
func ParseOutcome(result string) Outcome {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "attacked":
		return OutcomeAttacked
	case "lost":
		return OutcomeLost
	case "mugged":
		return OutcomeMugged
	case "interrupted":
		return OutcomeInterrupted
	case "assist":
		return OutcomeAssist
	case "stalemate":
		return OutcomeStalemate
	case "hospitalized":
		return OutcomeHospitalized
	case "arrested", "escape", "looted", "special", "timeout":
		return OutcomeOther
	case "":
		return OutcomeUnknown
	default:
		return OutcomeUnknown
	}
}

// Counted reports whether the outcome represents a won hit that contributes
// to the player aggregates. Interrupted hits and assists do not count.
func (o Outcome) Counted() bool {
	switch o {
	case OutcomeAttacked, OutcomeMugged, OutcomeHospitalized:
		return true
	}
	return false
}
