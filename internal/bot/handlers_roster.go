package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// handleRoster handles the /roster subcommands
func (b *Bot) handleRoster(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "now":
		b.handleRosterNow(s, i)
	case "report":
		b.handleRosterReport(s, i, sub)
	}
}

// handleRosterNow shows who is signed up for the current UTC hour
func (b *Bot) handleRosterNow(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferResponse(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	rows, err := b.sheet.FetchRoster(ctx)
	if err != nil {
		slog.Error("Failed to fetch roster sheet", "error", err)
		b.editResponse(s, i, "Failed to fetch the roster sheet. Please try again.")
		return
	}

	now := time.Now().UTC()
	day := now.Format("2006-01-02")
	hour := now.Hour()

	var names []string
	for _, row := range rows {
		if row.Day == day && row.StartHour == hour {
			names = append(names, row.Name)
		}
	}
	if len(names) == 0 {
		b.editResponse(s, i, fmt.Sprintf("Nobody is signed up for %s %02d:00 UTC.", day, hour))
		return
	}

	// Annotate each signup with the member's live status
	statusByName := make(map[string]string)
	if members, merr := b.torn.FetchMembers(ctx); merr == nil {
		for _, m := range members {
			statusByName[strings.ToLower(m.Name)] = m.LastAction.Status
		}
	} else {
		slog.Warn("Failed to fetch members for roster view", "error", merr)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Signed up for %s %02d:00 UTC:**\n", day, hour))
	for _, name := range names {
		status, ok := statusByName[strings.ToLower(name)]
		switch {
		case !ok:
			sb.WriteString(fmt.Sprintf("❔ %s — not in the faction\n", name))
		case strings.EqualFold(status, "Online"), strings.EqualFold(status, "Idle"):
			sb.WriteString(fmt.Sprintf("🟢 %s — %s\n", name, status))
		default:
			sb.WriteString(fmt.Sprintf("🔴 %s — %s\n", name, status))
		}
	}
	b.editResponse(s, i, sb.String())
}

// handleRosterReport shows late/missed totals per member
func (b *Bot) handleRosterReport(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if !b.requireLeadership(s, i) {
		return
	}

	var since string
	for _, opt := range sub.Options {
		if opt.Name == "since" {
			since = strings.TrimSpace(opt.StringValue())
		}
	}
	if since != "" {
		if _, err := time.Parse("2006-01-02", since); err != nil {
			respondEphemeral(s, i, "Invalid `since` date, expected YYYY-MM-DD.")
			return
		}
	}

	report, err := b.repo.RosterReport(i.GuildID, since)
	if err != nil {
		slog.Error("Failed to build roster report", "error", err)
		respondEphemeral(s, i, "Failed to build the roster report.")
		return
	}
	if len(report) == 0 {
		respondWithMessage(s, i, "No late or missed chain watch hours recorded. 🎉")
		return
	}

	lines := []string{"**Chain watch attendance**"}
	for _, row := range report {
		lines = append(lines, fmt.Sprintf("**%s** — late: %d (%d min total), missed: %d",
			row.Name, row.Late, row.LateMinutes, row.Missed))
	}
	for idx, chunk := range chunkLines(lines, 1900) {
		if idx == 0 {
			respondWithMessage(s, i, chunk)
			continue
		}
		if _, err := s.ChannelMessageSend(i.ChannelID, chunk); err != nil {
			slog.Error("Failed to send roster report chunk", "error", err)
			return
		}
	}
}
