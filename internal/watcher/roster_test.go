package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/sheets"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/storage"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/torn"
)

type fakeSheet struct {
	mu    sync.Mutex
	rows  []sheets.BotDataRow
	calls int
}

func (f *fakeSheet) FetchRoster(ctx context.Context) ([]sheets.BotDataRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.rows, nil
}

func (f *fakeSheet) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMembers struct {
	mu      sync.Mutex
	members []torn.Member
}

func (f *fakeMembers) FetchMembers(ctx context.Context) ([]torn.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members, nil
}

func (f *fakeMembers) setStatus(name, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.members {
		if f.members[i].Name == name {
			f.members[i].LastAction.Status = status
		}
	}
}

func member(name, status string) torn.Member {
	m := torn.Member{Name: name}
	m.LastAction.Status = status
	return m
}

type rosterFixture struct {
	monitor *RosterMonitor
	repo    *storage.Repository
	sheet   *fakeSheet
	members *fakeMembers
	sender  *recordingSender
	chain   *ChainWatcher
	clock   *time.Time
}

func newRosterFixture(t *testing.T, graceMinutes int) *rosterFixture {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	sheet := &fakeSheet{}
	members := &fakeMembers{}
	sender := &recordingSender{}

	chain := NewChainWatcher(&fakeChainSource{}, sender, 3600, 75)
	t.Cleanup(chain.StopAll)
	require.NoError(t, chain.Start(context.Background(), "g1", "c1"))

	monitor := NewRosterMonitor(sheet, members, repo, chain, sender, 300, graceMinutes, 3600)
	clock := time.Date(2026, 8, 31, 16, 10, 0, 0, time.UTC)
	monitor.now = func() time.Time { return clock }

	return &rosterFixture{
		monitor: monitor,
		repo:    repo,
		sheet:   sheet,
		members: members,
		sender:  sender,
		chain:   chain,
		clock:   &clock,
	}
}

func TestCheckGuildMarksOnlineLateAndUnknown(t *testing.T) {
	f := newRosterFixture(t, 0)
	f.sheet.rows = []sheets.BotDataRow{
		{Day: "2026-08-31", StartHour: 16, Slot: 1, Name: "Rick"},
		{Day: "2026-08-31", StartHour: 16, Slot: 2, Name: "Daryl"},
		{Day: "2026-08-31", StartHour: 16, Slot: 3, Name: "Nobody"},
	}
	f.members.members = []torn.Member{member("Rick", "Online"), member("Daryl", "Offline")}

	f.monitor.checkGuild(context.Background(), "g1")

	rec, err := f.repo.RosterGet("g1", "2026-08-31", 16, 1, "Rick")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, storage.RosterLate, rec.State)
	assert.Equal(t, int64(10), rec.LateMinutes)

	rec, err = f.repo.RosterGet("g1", "2026-08-31", 16, 3, "Nobody")
	require.NoError(t, err)
	assert.Equal(t, storage.RosterUnknown, rec.State, "name without a matching member")

	rec, err = f.repo.RosterGet("g1", "2026-08-31", 16, 2, "Daryl")
	require.NoError(t, err)
	assert.Equal(t, storage.RosterPending, rec.State)

	// Rick covers the hour, so Daryl's absence alerts nobody
	assert.Empty(t, f.sender.rosterNames)

	// Daryl shows up at :25
	*f.clock = time.Date(2026, 8, 31, 16, 25, 0, 0, time.UTC)
	f.members.setStatus("Daryl", "Idle")
	f.monitor.checkGuild(context.Background(), "g1")

	rec, err = f.repo.RosterGet("g1", "2026-08-31", 16, 2, "Daryl")
	require.NoError(t, err)
	assert.Equal(t, storage.RosterLate, rec.State)
	assert.Equal(t, int64(25), rec.LateMinutes)
}

func TestCheckGuildAlertsOnlyWhenHourUncovered(t *testing.T) {
	f := newRosterFixture(t, 0)
	f.sheet.rows = []sheets.BotDataRow{
		{Day: "2026-08-31", StartHour: 16, Slot: 1, Name: "Rick"},
		{Day: "2026-08-31", StartHour: 16, Slot: 2, Name: "Daryl"},
	}
	f.members.members = []torn.Member{member("Rick", "Offline"), member("Daryl", "Offline")}

	// Nobody who signed up is online: the hour is uncovered
	f.monitor.checkGuild(context.Background(), "g1")
	require.Len(t, f.sender.rosterNames, 1)
	assert.ElementsMatch(t, []string{"Rick", "Daryl"}, f.sender.rosterNames[0])

	// A second pass in the same hour does not alert again
	f.monitor.checkGuild(context.Background(), "g1")
	assert.Len(t, f.sender.rosterNames, 1)

	// Once one signup is online the hour is covered, no further alerting
	*f.clock = time.Date(2026, 8, 31, 16, 20, 0, 0, time.UTC)
	f.members.setStatus("Rick", "Online")
	f.monitor.checkGuild(context.Background(), "g1")
	assert.Len(t, f.sender.rosterNames, 1)
}

func TestCheckGuildRollsOverToMissed(t *testing.T) {
	f := newRosterFixture(t, 0)
	f.sheet.rows = []sheets.BotDataRow{
		{Day: "2026-08-31", StartHour: 16, Slot: 1, Name: "Rick"},
	}
	f.members.members = []torn.Member{member("Rick", "Offline")}

	f.monitor.checkGuild(context.Background(), "g1")

	rec, err := f.repo.RosterGet("g1", "2026-08-31", 16, 1, "Rick")
	require.NoError(t, err)
	assert.Equal(t, storage.RosterPending, rec.State)

	// Next hour: the pending slot from 16:00 becomes missed
	*f.clock = time.Date(2026, 8, 31, 17, 5, 0, 0, time.UTC)
	f.monitor.checkGuild(context.Background(), "g1")

	rec, err = f.repo.RosterGet("g1", "2026-08-31", 16, 1, "Rick")
	require.NoError(t, err)
	assert.Equal(t, storage.RosterMissed, rec.State)
}

func TestCheckGuildHonorsGracePeriod(t *testing.T) {
	f := newRosterFixture(t, 15)
	f.sheet.rows = []sheets.BotDataRow{
		{Day: "2026-08-31", StartHour: 16, Slot: 1, Name: "Rick"},
		{Day: "2026-08-31", StartHour: 16, Slot: 2, Name: "Daryl"},
	}
	f.members.members = []torn.Member{member("Rick", "Offline"), member("Daryl", "Offline")}

	// 10 minutes in with a 15 minute grace: nobody is late yet, no alert
	f.monitor.checkGuild(context.Background(), "g1")
	assert.Empty(t, f.sender.rosterNames)

	// Rick shows up at :12, still inside the grace: zero late minutes
	*f.clock = time.Date(2026, 8, 31, 16, 12, 0, 0, time.UTC)
	f.members.setStatus("Rick", "Online")
	f.monitor.checkGuild(context.Background(), "g1")

	rec, err := f.repo.RosterGet("g1", "2026-08-31", 16, 1, "Rick")
	require.NoError(t, err)
	assert.Equal(t, storage.RosterOnline, rec.State)
	assert.Zero(t, rec.LateMinutes)

	// Past the grace with everyone gone again, the uncovered hour alerts
	*f.clock = time.Date(2026, 8, 31, 16, 20, 0, 0, time.UTC)
	f.members.setStatus("Rick", "Offline")
	f.monitor.checkGuild(context.Background(), "g1")
	require.Len(t, f.sender.rosterNames, 1)
	assert.Equal(t, []string{"Daryl"}, f.sender.rosterNames[0])
}

func TestPollSkipsGuildsWithoutChainWatch(t *testing.T) {
	f := newRosterFixture(t, 0)
	f.chain.Stop("g1")

	f.monitor.poll(context.Background())
	assert.Zero(t, f.sheet.callCount(), "no chain watch running, nothing to check")
}
