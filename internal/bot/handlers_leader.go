package bot

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// leaderPresence is one leadership member and whether Discord shows them around
type leaderPresence struct {
	userID string
	name   string
	online bool
}

// handleLeader handles /leader: which leaders are on Discord right now
func (b *Bot) handleLeader(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferResponse(s, i)

	leaders, err := b.lookupLeaders(s, i.GuildID)
	if err != nil {
		slog.Error("Failed to look up leaders", "guildID", i.GuildID, "error", err)
		b.editResponse(s, i, "Failed to look up the leadership roles. Please try again.")
		return
	}
	if len(leaders) == 0 {
		b.editResponse(s, i, "No members hold a leadership role in this server.")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Leadership on Discord**\n")
	for _, l := range leaders {
		if l.online {
			sb.WriteString(fmt.Sprintf("🟢 %s\n", l.name))
		} else {
			sb.WriteString(fmt.Sprintf("🔴 %s\n", l.name))
		}
	}
	b.editResponse(s, i, sb.String())
}

// handleLeaderPing handles /leaderping: mention the leaders currently around
func (b *Bot) handleLeaderPing(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.requireVerified(s, i) {
		return
	}
	deferResponse(s, i)

	leaders, err := b.lookupLeaders(s, i.GuildID)
	if err != nil {
		slog.Error("Failed to look up leaders", "guildID", i.GuildID, "error", err)
		b.editResponse(s, i, "Failed to look up the leadership roles. Please try again.")
		return
	}

	var mentions []string
	for _, l := range leaders {
		if l.online {
			mentions = append(mentions, fmt.Sprintf("<@%s>", l.userID))
		}
	}
	if len(mentions) == 0 {
		b.editResponse(s, i, "No leadership is on Discord right now. Try again later.")
		return
	}
	b.editResponse(s, i, "🔔 Paging leadership: "+strings.Join(mentions, " "))
}

// lookupLeaders lists the members holding a leadership role, with their
// Discord presence from the gateway state.
func (b *Bot) lookupLeaders(s *discordgo.Session, guildID string) ([]leaderPresence, error) {
	roles, err := s.GuildRoles(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guild roles: %w", err)
	}
	wanted := make(map[string]bool)
	for _, r := range roles {
		for _, name := range b.config.LeadershipRoleNames {
			if r.Name == name {
				wanted[r.ID] = true
			}
		}
	}
	if len(wanted) == 0 {
		return nil, nil
	}

	members, err := s.GuildMembers(guildID, "", 1000)
	if err != nil {
		return nil, fmt.Errorf("failed to list guild members: %w", err)
	}

	var leaders []leaderPresence
	for _, m := range members {
		if m.User == nil || m.User.Bot || !hasAnyRoleID(m, wanted) {
			continue
		}
		name := m.Nick
		if name == "" {
			name = m.User.Username
		}
		online := false
		if p, perr := s.State.Presence(guildID, m.User.ID); perr == nil {
			online = presenceActive(p.Status)
		}
		leaders = append(leaders, leaderPresence{userID: m.User.ID, name: name, online: online})
	}
	return leaders, nil
}

func hasAnyRoleID(m *discordgo.Member, wanted map[string]bool) bool {
	for _, id := range m.Roles {
		if wanted[id] {
			return true
		}
	}
	return false
}

// presenceActive reports whether a Discord status counts as being around
func presenceActive(status discordgo.Status) bool {
	switch status {
	case discordgo.StatusOnline, discordgo.StatusIdle, discordgo.StatusDoNotDisturb:
		return true
	}
	return false
}
