package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/torn"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/watcher"
)

// mentionChunkLen keeps each alert message safely under Discord's 2000
// character limit.
const mentionChunkLen = 1800

// discordAPI is the slice of the Discord session the alert sender talks to
type discordAPI interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
}

// optInStore lists the users opted into chain pings
type optInStore interface {
	ListChainOptIns(guildID string) ([]string, error)
}

// discordAlerts delivers watcher alerts to Discord channels. It implements
// both the chain and the roster alert sender interfaces.
type discordAlerts struct {
	session      discordAPI
	repo         optInStore
	picker       *watcher.TargetPicker
	pingRoleName string
}

// SendChainAlert pings the opted-in members holding the ping role when the
// chain countdown is about to run out. When the ping role is missing, or no
// opted-in member still holds it, the channel gets a notice instead so the
// watch crew knows why nobody was pinged.
func (a *discordAlerts) SendChainAlert(ctx context.Context, guildID, channelID string, chain *torn.Chain) {
	roles, err := a.session.GuildRoles(guildID)
	if err != nil {
		// Still worth the headline even when we cannot work out who to ping
		slog.Error("Failed to list guild roles for chain alert", "guildID", guildID, "error", err)
		a.send(guildID, channelID, a.chainHeader(ctx, chain))
		return
	}
	roleID := ""
	for _, r := range roles {
		if r.Name == a.pingRoleName {
			roleID = r.ID
			break
		}
	}
	if roleID == "" {
		a.send(guildID, channelID, fmt.Sprintf(
			"⚠️ Chain timer at %ds, but the **%s** role does not exist in this server. Nobody was pinged.",
			chain.Timeout, a.pingRoleName))
		return
	}

	mentions := a.pingMentions(guildID, roleID)
	if len(mentions) == 0 {
		a.send(guildID, channelID, fmt.Sprintf(
			"⚠️ Chain timer at %ds, but nobody with the **%s** role has opted into pings. Use `/chain pingme`.",
			chain.Timeout, a.pingRoleName))
		return
	}

	if !a.send(guildID, channelID, a.chainHeader(ctx, chain)) {
		return
	}
	for _, chunk := range chunkMentions(mentions, mentionChunkLen) {
		if !a.send(guildID, channelID, chunk) {
			return
		}
	}
}

// chainHeader builds the alert headline, with an easy target when one is up
func (a *discordAlerts) chainHeader(ctx context.Context, chain *torn.Chain) string {
	header := fmt.Sprintf("🚨 **Chain timer at %ds!** Chain is at **%d/%d** hits. Get a hit in NOW!",
		chain.Timeout, chain.Current, chain.Max)
	if target := a.picker.Pick(ctx); target != nil {
		header += fmt.Sprintf("\nEasy target: %s", target.Link)
	}
	return header
}

// SendRosterAlert warns the chain channel that signed-up members are absent
func (a *discordAlerts) SendRosterAlert(ctx context.Context, guildID, channelID string, names []string) {
	msg := fmt.Sprintf("⏰ **Chain watch roster:** signed up for this hour but not online: **%s**",
		strings.Join(names, "**, **"))
	a.send(guildID, channelID, msg)
}

func (a *discordAlerts) send(guildID, channelID, content string) bool {
	if _, err := a.session.ChannelMessageSend(channelID, content); err != nil {
		slog.Error("Failed to send alert message", "guildID", guildID, "error", err)
		return false
	}
	return true
}

// pingMentions builds the mention list: members opted into pings who still
// hold the ping role and are not bots.
func (a *discordAlerts) pingMentions(guildID, roleID string) []string {
	optIns, err := a.repo.ListChainOptIns(guildID)
	if err != nil {
		slog.Error("Failed to load chain opt-ins", "guildID", guildID, "error", err)
		return nil
	}

	var mentions []string
	for _, userID := range optIns {
		member, err := a.session.GuildMember(guildID, userID)
		if err != nil {
			slog.Debug("Opted-in user no longer in guild", "guildID", guildID, "userID", userID)
			continue
		}
		if member.User != nil && member.User.Bot {
			continue
		}
		if !hasRole(member, roleID) {
			continue
		}
		mentions = append(mentions, fmt.Sprintf("<@%s>", userID))
	}
	return mentions
}

func hasRole(m *discordgo.Member, roleID string) bool {
	for _, id := range m.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

// chunkMentions packs mentions into messages below the length limit
func chunkMentions(mentions []string, maxLen int) []string {
	var chunks []string
	var sb strings.Builder
	for _, m := range mentions {
		if sb.Len() > 0 && sb.Len()+len(m)+1 > maxLen {
			chunks = append(chunks, sb.String())
			sb.Reset()
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(m)
	}
	if sb.Len() > 0 {
		chunks = append(chunks, sb.String())
	}
	return chunks
}
