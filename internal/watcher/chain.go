// Package watcher runs the background pollers: the chain countdown watcher
// and the roster attendance monitor.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/torn"
)

// ChainSource supplies chain snapshots (implemented by the torn client)
type ChainSource interface {
	FetchChain(ctx context.Context) (*torn.Chain, error)
}

// AlertSender delivers chain alerts to a guild channel (implemented by the bot)
type AlertSender interface {
	SendChainAlert(ctx context.Context, guildID, channelID string, chain *torn.Chain)
}

// chainState is the per-guild edge-trigger state. An alert fires only on the
// transition from a safe countdown into the danger zone; the watcher then
// disarms until the countdown recovers or a new chain starts.
type chainState struct {
	channelID string
	stopChan  chan struct{}

	mu          sync.Mutex
	armed       bool
	lastChainID int64
	snapshot    *torn.Chain
	polledAt    time.Time
}

// ChainWatcher polls the faction chain per guild and fires an alert when the
// countdown drops to the alert threshold.
type ChainWatcher struct {
	source    ChainSource
	sender    AlertSender
	interval  time.Duration
	threshold int // seconds remaining that triggers an alert

	mu      sync.Mutex
	watches map[string]*chainState
	wg      sync.WaitGroup
}

// NewChainWatcher creates a chain watcher
func NewChainWatcher(source ChainSource, sender AlertSender, pollSeconds, alertSeconds int) *ChainWatcher {
	return &ChainWatcher{
		source:    source,
		sender:    sender,
		interval:  time.Duration(pollSeconds) * time.Second,
		threshold: alertSeconds,
		watches:   make(map[string]*chainState),
	}
}

// Start begins watching for a guild. Returns an error if already running.
func (w *ChainWatcher) Start(ctx context.Context, guildID, channelID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.watches[guildID]; ok {
		return fmt.Errorf("chain watch already running for this server")
	}

	st := &chainState{
		channelID: channelID,
		stopChan:  make(chan struct{}),
		armed:     true,
	}
	w.watches[guildID] = st

	w.wg.Add(1)
	go w.run(ctx, guildID, st)

	slog.Info("Chain watch started", "guildID", guildID, "channelID", channelID)
	return nil
}

// Stop stops the watch for a guild. Returns false if none was running.
func (w *ChainWatcher) Stop(guildID string) bool {
	w.mu.Lock()
	st, ok := w.watches[guildID]
	if ok {
		delete(w.watches, guildID)
	}
	w.mu.Unlock()

	if !ok {
		return false
	}
	close(st.stopChan)
	slog.Info("Chain watch stopped", "guildID", guildID)
	return true
}

// StopAll stops every running watch (used during shutdown)
func (w *ChainWatcher) StopAll() {
	w.mu.Lock()
	for guildID, st := range w.watches {
		close(st.stopChan)
		delete(w.watches, guildID)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Running reports whether a watch is active for the guild and on which channel
func (w *ChainWatcher) Running(guildID string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.watches[guildID]
	if !ok {
		return "", false
	}
	return st.channelID, true
}

// RunningGuilds returns the guild ids with an active watch
func (w *ChainWatcher) RunningGuilds() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.watches))
	for guildID := range w.watches {
		out = append(out, guildID)
	}
	return out
}

// Snapshot returns the most recent chain snapshot for a guild. The chain is
// nil when no chain was active at the last poll.
func (w *ChainWatcher) Snapshot(guildID string) (*torn.Chain, time.Time, bool) {
	w.mu.Lock()
	st, ok := w.watches[guildID]
	w.mu.Unlock()
	if !ok {
		return nil, time.Time{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshot, st.polledAt, true
}

// run is the per-guild polling loop
func (w *ChainWatcher) run(ctx context.Context, guildID string, st *chainState) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx, guildID, st)

	for {
		select {
		case <-ctx.Done():
			return
		case <-st.stopChan:
			return
		case <-ticker.C:
			w.tick(ctx, guildID, st)
		}
	}
}

// tick fetches one chain snapshot and fires an alert on the arm edge
func (w *ChainWatcher) tick(ctx context.Context, guildID string, st *chainState) {
	chain, err := w.source.FetchChain(ctx)
	if err != nil {
		slog.Error("Failed to fetch chain", "guildID", guildID, "error", err)
		return
	}

	if w.observe(st, chain) {
		slog.Info("Chain countdown low, alerting",
			"guildID", guildID, "chainID", chain.ID, "timeout", chain.Timeout, "hits", chain.Current)
		w.sender.SendChainAlert(ctx, guildID, st.channelID, chain)
	}
}

// observe applies one snapshot to the edge-trigger state and reports whether
// an alert should fire. Rearms on no chain, a new chain id, or a countdown
// back above the threshold; fires at most once per excursion below it.
func (w *ChainWatcher) observe(st *chainState, chain *torn.Chain) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.snapshot = chain
	st.polledAt = time.Now()

	if chain == nil {
		st.armed = true
		st.lastChainID = 0
		return false
	}
	if chain.ID != st.lastChainID {
		st.armed = true
		st.lastChainID = chain.ID
	}
	if chain.Timeout > w.threshold {
		st.armed = true
		return false
	}
	if st.armed {
		st.armed = false
		return true
	}
	return false
}
