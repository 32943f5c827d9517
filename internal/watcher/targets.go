package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/torn"
)

// StatusSource probes a single player's live status
type StatusSource interface {
	FetchUserStatus(ctx context.Context, userID int64) (*torn.UserStatus, error)
}

// idPattern matches the player id in the attack/profile link formats the
// target list has used over time.
var idPattern = regexp.MustCompile(`(?:XID|xid|user2ID|userid|user|id)=(\d+)`)

// blockedStates are statuses in which a target cannot be attacked
var blockedStates = map[string]bool{
	"Hospital": true,
	"Jail":     true,
	"Federal":  true,
}

// Target is a pickable attack target
type Target struct {
	ID   int64
	Link string
}

// TargetPicker selects the first available target from the configured link
// list, probing each candidate's live status in order. Picks are cached
// briefly so an alert burst does not probe the whole list repeatedly.
type TargetPicker struct {
	source   StatusSource
	links    []string
	cacheTTL time.Duration

	mu        sync.Mutex
	cached    *Target
	cachedAt  time.Time
	lastError string
	now       func() time.Time
}

// NewTargetPicker creates a target picker over the configured links
func NewTargetPicker(source StatusSource, links []string) *TargetPicker {
	return &TargetPicker{
		source:   source,
		links:    links,
		cacheTTL: 60 * time.Second,
		now:      time.Now,
	}
}

// Pick returns the first configured target not currently in hospital, jail or
// federal. Returns nil when no target is available; LastError then explains
// why for the status command.
func (p *TargetPicker) Pick(ctx context.Context) *Target {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && p.now().Sub(p.cachedAt) <= p.cacheTTL {
		return p.cached
	}

	if len(p.links) == 0 {
		p.lastError = "no target links configured"
		return nil
	}

	parsed := 0
	for _, link := range p.links {
		id, ok := extractTargetID(link)
		if !ok {
			slog.Debug("Target link has no parseable id", "link", link)
			continue
		}
		parsed++

		status, err := p.source.FetchUserStatus(ctx, id)
		if err != nil {
			slog.Warn("Failed to probe target status", "targetID", id, "error", err)
			continue
		}
		if blockedStates[status.State] {
			continue
		}

		target := &Target{ID: id, Link: link}
		p.cached = target
		p.cachedAt = p.now()
		p.lastError = ""
		return target
	}

	if parsed == 0 {
		p.lastError = "no parseable ids in target links"
	} else {
		p.lastError = fmt.Sprintf("all %d targets unavailable", parsed)
	}
	return nil
}

// LastError returns the reason the last pick came up empty, if any
func (p *TargetPicker) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastError
}

// extractTargetID pulls the player id out of a target link
func extractTargetID(link string) (int64, bool) {
	m := idPattern.FindStringSubmatch(link)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
