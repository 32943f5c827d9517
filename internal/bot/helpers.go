package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Members carry their Torn ID in the nickname suffix, e.g. "Rick [2052016]"
var nickIDPattern = regexp.MustCompile(`\[(\d{1,10})\]\s*$`)

// tornIDFromMember extracts the Torn player ID from a member's nickname
// (falling back to the username). Returns 0 when none is present.
func tornIDFromMember(m *discordgo.Member) int64 {
	if m == nil {
		return 0
	}
	name := m.Nick
	if name == "" && m.User != nil {
		name = m.User.Username
	}
	match := nickIDPattern.FindStringSubmatch(name)
	if match == nil {
		return 0
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// guildRoleNames resolves a member's role ids to role names
func guildRoleNames(s *discordgo.Session, guildID string, m *discordgo.Member) map[string]bool {
	names := make(map[string]bool)
	if m == nil {
		return names
	}
	roles, err := s.GuildRoles(guildID)
	if err != nil {
		return names
	}
	byID := make(map[string]string, len(roles))
	for _, r := range roles {
		byID[r.ID] = r.Name
	}
	for _, id := range m.Roles {
		if name, ok := byID[id]; ok {
			names[name] = true
		}
	}
	return names
}

// memberHasAnyRole reports whether the member carries any of the named roles
func memberHasAnyRole(s *discordgo.Session, guildID string, m *discordgo.Member, wanted []string) bool {
	names := guildRoleNames(s, guildID, m)
	for _, w := range wanted {
		if names[w] {
			return true
		}
	}
	return false
}

// requireControl gates the chain start/stop commands on the control roles
func (b *Bot) requireControl(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if memberHasAnyRole(s, i.GuildID, i.Member, b.config.ControlRoleNames) {
		return true
	}
	respondEphemeral(s, i, "You don't have permission to use this command.")
	return false
}

// requireVerified gates commands on the verified role
func (b *Bot) requireVerified(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if memberHasAnyRole(s, i.GuildID, i.Member, []string{b.config.VerifiedRoleName}) {
		return true
	}
	respondEphemeral(s, i, "You need the verified role to use this command.")
	return false
}

// requireLeadership gates the faction-wide reporting commands
func (b *Bot) requireLeadership(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if memberHasAnyRole(s, i.GuildID, i.Member, b.config.LeadershipRoleNames) {
		return true
	}
	respondEphemeral(s, i, "You don't have permission to use this command.")
	return false
}

// fmtFF renders a fair-fight average, or "n/a" when undefined
func fmtFF(avg float64, ok bool) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", avg)
}

// chunkLines splits lines into messages no longer than maxLen, never breaking
// a line in half.
func chunkLines(lines []string, maxLen int) []string {
	var chunks []string
	var sb strings.Builder
	for _, line := range lines {
		if sb.Len() > 0 && sb.Len()+len(line)+1 > maxLen {
			chunks = append(chunks, sb.String())
			sb.Reset()
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(line)
	}
	if sb.Len() > 0 {
		chunks = append(chunks, sb.String())
	}
	return chunks
}

// Response helpers

func respondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// deferResponse acknowledges an interaction that needs slow API work
func deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func (b *Bot) editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
}
