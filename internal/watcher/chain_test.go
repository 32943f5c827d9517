package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/torn"
)

type fakeChainSource struct {
	mu    sync.Mutex
	chain *torn.Chain
	err   error
}

func (f *fakeChainSource) FetchChain(ctx context.Context) (*torn.Chain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chain, f.err
}

type recordingSender struct {
	mu          sync.Mutex
	chainAlerts []string
	rosterNames [][]string
}

func (r *recordingSender) SendChainAlert(ctx context.Context, guildID, channelID string, chain *torn.Chain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chainAlerts = append(r.chainAlerts, guildID)
}

func (r *recordingSender) SendRosterAlert(ctx context.Context, guildID, channelID string, names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rosterNames = append(r.rosterNames, names)
}

func (r *recordingSender) chainAlertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chainAlerts)
}

func chainAt(id int64, timeout int) *torn.Chain {
	return &torn.Chain{ID: id, Current: 50, Max: 100, Timeout: timeout}
}

func TestObserveFiresOnceBelowThreshold(t *testing.T) {
	w := NewChainWatcher(nil, nil, 15, 75)
	st := &chainState{armed: true}

	// 100 -> 60 -> 60 -> 110 -> 50: one alert per excursion below 75
	assert.False(t, w.observe(st, chainAt(1, 100)))
	assert.True(t, w.observe(st, chainAt(1, 60)), "first drop below threshold fires")
	assert.False(t, w.observe(st, chainAt(1, 60)), "still low, already fired")
	assert.False(t, w.observe(st, chainAt(1, 110)), "recovered, rearmed silently")
	assert.True(t, w.observe(st, chainAt(1, 50)), "second excursion fires again")
}

func TestObserveRearmsOnChainEnd(t *testing.T) {
	w := NewChainWatcher(nil, nil, 15, 75)
	st := &chainState{armed: true}

	assert.True(t, w.observe(st, chainAt(1, 30)))
	assert.False(t, w.observe(st, chainAt(1, 20)))

	// Chain dropped; the next chain alerts again even if it starts low
	assert.False(t, w.observe(st, nil))
	assert.True(t, w.observe(st, chainAt(2, 40)))
}

func TestObserveRearmsOnNewChainID(t *testing.T) {
	w := NewChainWatcher(nil, nil, 15, 75)
	st := &chainState{armed: true}

	assert.True(t, w.observe(st, chainAt(1, 30)))
	assert.True(t, w.observe(st, chainAt(2, 30)), "new chain id is a fresh excursion")
}

func TestObserveExactThresholdFires(t *testing.T) {
	w := NewChainWatcher(nil, nil, 15, 75)
	st := &chainState{armed: true}

	assert.True(t, w.observe(st, chainAt(1, 75)), "timer at the threshold counts as low")
}

func TestStartStopLifecycle(t *testing.T) {
	source := &fakeChainSource{}
	sender := &recordingSender{}
	w := NewChainWatcher(source, sender, 3600, 75)
	defer w.StopAll()

	ctx := context.Background()
	require.NoError(t, w.Start(ctx, "g1", "c1"))
	assert.Error(t, w.Start(ctx, "g1", "c2"), "double start must fail")

	channelID, running := w.Running("g1")
	assert.True(t, running)
	assert.Equal(t, "c1", channelID)
	assert.ElementsMatch(t, []string{"g1"}, w.RunningGuilds())

	assert.True(t, w.Stop("g1"))
	assert.False(t, w.Stop("g1"), "second stop reports nothing running")
	_, running = w.Running("g1")
	assert.False(t, running)
}

func TestTickAlertsThroughSender(t *testing.T) {
	source := &fakeChainSource{chain: chainAt(1, 30)}
	sender := &recordingSender{}
	w := NewChainWatcher(source, sender, 3600, 75)

	st := &chainState{channelID: "c1", armed: true}
	w.tick(context.Background(), "g1", st)
	assert.Equal(t, 1, sender.chainAlertCount())

	// Same low snapshot does not alert again
	w.tick(context.Background(), "g1", st)
	assert.Equal(t, 1, sender.chainAlertCount())

	require.NotNil(t, st.snapshot)
	assert.WithinDuration(t, time.Now(), st.polledAt, 5*time.Second)
}
