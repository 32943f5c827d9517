package storage

import (
	"time"

	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/scan"
)

// PlayerWarStats is the per-player, per-bucket aggregate for one war epoch
type PlayerWarStats struct {
	WarStart    int64
	PlayerID    int64
	Bucket      scan.Bucket
	Name        string
	Hits        int64
	FFSum       float64
	FFCount     int64
	RespectGain float64
	RespectLoss float64
}

// FFAverage returns the average fair-fight modifier. The boolean is false
// when no counted hit carried a fair-fight value; callers must render "n/a"
// instead of dividing.
func (s PlayerWarStats) FFAverage() (float64, bool) {
	if s.FFCount == 0 {
		return 0, false
	}
	return s.FFSum / float64(s.FFCount), true
}

// WarStatsSummary merges a player's ranked and outside buckets for display
type WarStatsSummary struct {
	PlayerID    int64
	Name        string
	RankedHits  int64
	OutsideHits int64
	RankedFF    PlayerWarStats
	OutsideFF   PlayerWarStats
}

// RankedFFAvg returns the ranked-bucket FF average, if defined
func (s WarStatsSummary) RankedFFAvg() (float64, bool) { return s.RankedFF.FFAverage() }

// OutsideFFAvg returns the outside-bucket FF average, if defined
func (s WarStatsSummary) OutsideFFAvg() (float64, bool) { return s.OutsideFF.FFAverage() }

// TotalFFAvg returns the FF average across both buckets, if defined
func (s WarStatsSummary) TotalFFAvg() (float64, bool) {
	count := s.RankedFF.FFCount + s.OutsideFF.FFCount
	if count == 0 {
		return 0, false
	}
	return (s.RankedFF.FFSum + s.OutsideFF.FFSum) / float64(count), true
}

// OutcomeCount is one row of the outcome tally
type OutcomeCount struct {
	WarStart int64
	PlayerID int64
	Bucket   scan.Bucket
	Outcome  scan.Outcome
	Hits     int64
}

// RosterState is the lifecycle of one expected roster slot within its hour.
// A record starts pending and moves to exactly one terminal state.
type RosterState string

const (
	RosterPending RosterState = "pending"
	RosterOnline  RosterState = "online"
	RosterLate    RosterState = "late"
	RosterMissed  RosterState = "missed"
	RosterUnknown RosterState = "unknown"
)

// RosterSlot is one (slot, name) signup for an hour
type RosterSlot struct {
	Slot int
	Name string
}

// RosterHourRecord is the persisted state of one expected signup
type RosterHourRecord struct {
	GuildID     string
	Day         string // YYYY-MM-DD (UTC)
	Hour        int    // 0-23 (UTC)
	Slot        int
	Name        string
	State       RosterState
	FirstSeenTS int64
	LateMinutes int64
}

// RosterReportRow sums late/missed occurrences per member name
type RosterReportRow struct {
	Name        string
	Late        int64
	Missed      int64
	LateMinutes int64
}

// UserKey stores a member's encrypted Torn API key
type UserKey struct {
	DiscordUserID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
