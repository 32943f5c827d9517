package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/storage"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/torn"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/watcher"
)

type fakeDiscord struct {
	roles    []*discordgo.Role
	rolesErr error
	members  map[string]*discordgo.Member
	sent     []string
}

func (f *fakeDiscord) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, content)
	return &discordgo.Message{}, nil
}

func (f *fakeDiscord) GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return f.roles, f.rolesErr
}

func (f *fakeDiscord) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	m, ok := f.members[userID]
	if !ok {
		return nil, errors.New("unknown member")
	}
	return m, nil
}

func newAlertsFixture(t *testing.T) (*discordAlerts, *fakeDiscord, *storage.Repository) {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	discord := &fakeDiscord{members: make(map[string]*discordgo.Member)}
	alerts := &discordAlerts{
		session:      discord,
		repo:         repo,
		picker:       watcher.NewTargetPicker(nil, nil),
		pingRoleName: "Chain Ping",
	}
	return alerts, discord, repo
}

func chainAt60() *torn.Chain {
	return &torn.Chain{ID: 1, Current: 120, Max: 250, Timeout: 60}
}

func TestSendChainAlertPingsOnlyRoleHolders(t *testing.T) {
	alerts, discord, repo := newAlertsFixture(t)
	discord.roles = []*discordgo.Role{{ID: "r1", Name: "Chain Ping"}, {ID: "r2", Name: "Other"}}
	discord.members["u1"] = &discordgo.Member{User: &discordgo.User{ID: "u1"}, Roles: []string{"r1"}}
	discord.members["u2"] = &discordgo.Member{User: &discordgo.User{ID: "u2"}, Roles: []string{"r2"}}
	discord.members["u3"] = &discordgo.Member{User: &discordgo.User{ID: "u3", Bot: true}, Roles: []string{"r1"}}
	for _, userID := range []string{"u1", "u2", "u3"} {
		require.NoError(t, repo.AddChainOptIn("g1", userID))
	}

	alerts.SendChainAlert(context.Background(), "g1", "c1", chainAt60())

	require.Len(t, discord.sent, 2)
	assert.Contains(t, discord.sent[0], "Chain timer at 60s")
	assert.Contains(t, discord.sent[0], "120/250")
	assert.Equal(t, "<@u1>", discord.sent[1], "role-less members and bots are not pinged")
}

func TestSendChainAlertNoticesMissingRole(t *testing.T) {
	alerts, discord, repo := newAlertsFixture(t)
	discord.roles = []*discordgo.Role{{ID: "r2", Name: "Other"}}
	discord.members["u1"] = &discordgo.Member{User: &discordgo.User{ID: "u1"}, Roles: []string{"r2"}}
	require.NoError(t, repo.AddChainOptIn("g1", "u1"))

	alerts.SendChainAlert(context.Background(), "g1", "c1", chainAt60())

	require.Len(t, discord.sent, 1)
	assert.Contains(t, discord.sent[0], "**Chain Ping** role does not exist")
	assert.NotContains(t, discord.sent[0], "<@")
}

func TestSendChainAlertNoticesNoEligibleOptIns(t *testing.T) {
	alerts, discord, repo := newAlertsFixture(t)
	discord.roles = []*discordgo.Role{{ID: "r1", Name: "Chain Ping"}}
	discord.members["u2"] = &discordgo.Member{User: &discordgo.User{ID: "u2"}}
	require.NoError(t, repo.AddChainOptIn("g1", "u2"))

	alerts.SendChainAlert(context.Background(), "g1", "c1", chainAt60())

	require.Len(t, discord.sent, 1)
	assert.Contains(t, discord.sent[0], "nobody with the **Chain Ping** role has opted into pings")
}

func TestSendChainAlertStillHeadlinesOnRoleLookupFailure(t *testing.T) {
	alerts, discord, _ := newAlertsFixture(t)
	discord.rolesErr = errors.New("api down")

	alerts.SendChainAlert(context.Background(), "g1", "c1", chainAt60())

	require.Len(t, discord.sent, 1)
	assert.Contains(t, discord.sent[0], "Chain timer at 60s")
	assert.NotContains(t, discord.sent[0], "<@")
}

func TestSendRosterAlertListsNames(t *testing.T) {
	alerts, discord, _ := newAlertsFixture(t)

	alerts.SendRosterAlert(context.Background(), "g1", "c1", []string{"Rick", "Daryl"})

	require.Len(t, discord.sent, 1)
	assert.True(t, strings.Contains(discord.sent[0], "Rick") && strings.Contains(discord.sent[0], "Daryl"))
}
