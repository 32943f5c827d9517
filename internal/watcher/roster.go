package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/sheets"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/storage"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/torn"
)

// RosterSource supplies the signup sheet (implemented by the sheets client)
type RosterSource interface {
	FetchRoster(ctx context.Context) ([]sheets.BotDataRow, error)
}

// MemberSource supplies the faction member directory
type MemberSource interface {
	FetchMembers(ctx context.Context) ([]torn.Member, error)
}

// RosterStore is the persistence the monitor needs from the repository
type RosterStore interface {
	RosterUpsertExpected(guildID, day string, hour int, slots []storage.RosterSlot) error
	RosterMarkMissed(guildID, day string, hour int) error
	RosterMarkUnknown(guildID, day string, hour, slot int, name string) error
	RosterMarkOnline(guildID, day string, hour, slot int, name string, seenTS, lateMinutes int64) error
	RosterPendingSlots(guildID, day string, hour int) ([]storage.RosterSlot, error)
}

// RosterAlertSender delivers attendance alerts to a guild channel
type RosterAlertSender interface {
	SendRosterAlert(ctx context.Context, guildID, channelID string, names []string)
}

// rosterTrack is the per-guild hour tracking state
type rosterTrack struct {
	day         string
	hour        int
	alertedHour string // "day hour" key of the last alerted hour
	lastAlert   time.Time
}

// RosterMonitor checks, while a chain watch is running, that the members who
// signed up for the current UTC hour are actually online, and alerts the
// chain channel when they are not.
type RosterMonitor struct {
	sheet    RosterSource
	members  MemberSource
	store    RosterStore
	chain    *ChainWatcher
	sender   RosterAlertSender
	interval time.Duration

	graceMinutes     int64
	alertMinInterval time.Duration

	mu     sync.Mutex
	tracks map[string]*rosterTrack
	now    func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewRosterMonitor creates a roster monitor
func NewRosterMonitor(sheet RosterSource, members MemberSource, store RosterStore, chain *ChainWatcher, sender RosterAlertSender, intervalSeconds, graceMinutes, alertMinIntervalSeconds int) *RosterMonitor {
	return &RosterMonitor{
		sheet:            sheet,
		members:          members,
		store:            store,
		chain:            chain,
		sender:           sender,
		interval:         time.Duration(intervalSeconds) * time.Second,
		graceMinutes:     int64(graceMinutes),
		alertMinInterval: time.Duration(alertMinIntervalSeconds) * time.Second,
		tracks:           make(map[string]*rosterTrack),
		now:              time.Now,
		stopChan:         make(chan struct{}),
	}
}

// Start begins the monitoring loop
func (m *RosterMonitor) Start(ctx context.Context) {
	slog.Info("Starting roster monitor", "interval", m.interval)

	m.wg.Add(1)
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Roster monitor stopped (context cancelled)")
			return
		case <-m.stopChan:
			slog.Info("Roster monitor stopped")
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// Stop signals the monitor to stop
func (m *RosterMonitor) Stop() {
	close(m.stopChan)
	m.wg.Wait()
}

// poll checks attendance for every guild with an active chain watch
func (m *RosterMonitor) poll(ctx context.Context) {
	for _, guildID := range m.chain.RunningGuilds() {
		select {
		case <-ctx.Done():
			return
		default:
			m.checkGuild(ctx, guildID)
		}
	}
}

// checkGuild runs one attendance pass for a guild at the current UTC hour
func (m *RosterMonitor) checkGuild(ctx context.Context, guildID string) {
	now := m.now().UTC()
	day := now.Format("2006-01-02")
	hour := now.Hour()

	track := m.track(guildID)

	// Hour rollover: anything still pending in the previous hour is missed
	if track.day != "" && (track.day != day || track.hour != hour) {
		if err := m.store.RosterMarkMissed(guildID, track.day, track.hour); err != nil {
			slog.Error("Failed to close out roster hour", "guildID", guildID, "error", err)
		}
	}
	track.day, track.hour = day, hour

	rows, err := m.sheet.FetchRoster(ctx)
	if err != nil {
		slog.Error("Failed to fetch roster sheet", "guildID", guildID, "error", err)
		return
	}

	var slots []storage.RosterSlot
	for _, row := range rows {
		if row.Day == day && row.StartHour == hour {
			slots = append(slots, storage.RosterSlot{Slot: row.Slot, Name: row.Name})
		}
	}
	if len(slots) == 0 {
		return
	}
	if err := m.store.RosterUpsertExpected(guildID, day, hour, slots); err != nil {
		slog.Error("Failed to record expected roster", "guildID", guildID, "error", err)
		return
	}

	pending, err := m.store.RosterPendingSlots(guildID, day, hour)
	if err != nil {
		slog.Error("Failed to load pending roster slots", "guildID", guildID, "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	members, err := m.members.FetchMembers(ctx)
	if err != nil {
		slog.Error("Failed to fetch members for roster check", "guildID", guildID, "error", err)
		return
	}
	byName := make(map[string]torn.Member, len(members))
	for _, member := range members {
		byName[strings.ToLower(member.Name)] = member
	}

	elapsed := int64(now.Minute())
	lateMinutes := elapsed - m.graceMinutes
	if lateMinutes < 0 {
		lateMinutes = 0
	}

	var absent []string
	for _, slot := range pending {
		member, ok := byName[strings.ToLower(slot.Name)]
		if !ok {
			if err := m.store.RosterMarkUnknown(guildID, day, hour, slot.Slot, slot.Name); err != nil {
				slog.Error("Failed to mark roster slot unknown", "guildID", guildID, "name", slot.Name, "error", err)
			}
			continue
		}
		if member.OnlineLike() {
			if err := m.store.RosterMarkOnline(guildID, day, hour, slot.Slot, slot.Name, now.Unix(), lateMinutes); err != nil {
				slog.Error("Failed to mark roster slot online", "guildID", guildID, "name", slot.Name, "error", err)
			}
			continue
		}
		absent = append(absent, slot.Name)
	}

	// The hour only counts as uncovered when nobody who signed up for it is
	// currently online-like; one present signup covers the watch.
	anyCovering := false
	for _, slot := range slots {
		if member, ok := byName[strings.ToLower(slot.Name)]; ok && member.OnlineLike() {
			anyCovering = true
			break
		}
	}

	if len(absent) == 0 || anyCovering || elapsed < m.graceMinutes {
		return
	}
	m.maybeAlert(ctx, guildID, day, hour, track, absent)
}

// maybeAlert sends at most one alert per hour, and never more often than the
// configured minimum interval.
func (m *RosterMonitor) maybeAlert(ctx context.Context, guildID, day string, hour int, track *rosterTrack, absent []string) {
	key := fmt.Sprintf("%s %02d", day, hour)
	now := m.now()
	if track.alertedHour == key {
		return
	}
	if !track.lastAlert.IsZero() && now.Sub(track.lastAlert) < m.alertMinInterval {
		return
	}

	channelID, ok := m.chain.Running(guildID)
	if !ok {
		return
	}

	slog.Info("Roster signups absent, alerting", "guildID", guildID, "hour", hour, "absent", absent)
	m.sender.SendRosterAlert(ctx, guildID, channelID, absent)
	track.alertedHour = key
	track.lastAlert = now
}

// track returns the per-guild tracking state, creating it on first use
func (m *RosterMonitor) track(guildID string) *rosterTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	track, ok := m.tracks[guildID]
	if !ok {
		track = &rosterTrack{}
		m.tracks[guildID] = track
	}
	return track
}
