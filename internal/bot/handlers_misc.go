package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/storage"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/yata"
)

const apiTimeout = 20 * time.Second

// handleMarket handles the /market subcommands
func (b *Bot) handleMarket(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.requireVerified(s, i) {
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "restocks":
		b.handleMarketRestocks(s, i)
	case "travel":
		b.handleMarketTravel(s, i, sub)
	}
}

// handleMarketRestocks shows when each country's stock data last updated
func (b *Bot) handleMarketRestocks(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferResponse(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	export, err := b.yata.TravelExport(ctx)
	if err != nil {
		slog.Error("Failed to fetch travel export", "error", err)
		b.editResponse(s, i, "Failed to fetch foreign stock data. Please try again.")
		return
	}

	type entry struct {
		code   string
		update int64
	}
	entries := make([]entry, 0, len(export.Stocks))
	for code, cs := range export.Stocks {
		entries = append(entries, entry{code: code, update: cs.Update})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].update > entries[b].update })

	var sb strings.Builder
	sb.WriteString("**Foreign stock updates**\n")
	for _, e := range entries {
		age := time.Since(time.Unix(e.update, 0)).Round(time.Minute)
		sb.WriteString(fmt.Sprintf("**%s** — updated %s ago\n", yata.CountryName(e.code), age))
	}
	b.editResponse(s, i, sb.String())
}

// handleMarketTravel shows the stock listing for one country
func (b *Bot) handleMarketTravel(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	country := strings.ToLower(strings.TrimSpace(sub.Options[0].StringValue()))

	deferResponse(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	export, err := b.yata.TravelExport(ctx)
	if err != nil {
		slog.Error("Failed to fetch travel export", "error", err)
		b.editResponse(s, i, "Failed to fetch foreign stock data. Please try again.")
		return
	}

	stocks, ok := export.Stocks[country]
	if !ok {
		b.editResponse(s, i, fmt.Sprintf("Unknown country code `%s`.", country))
		return
	}

	lines := []string{fmt.Sprintf("**%s** (updated %s ago)",
		yata.CountryName(country), time.Since(time.Unix(stocks.Update, 0)).Round(time.Minute))}
	for _, item := range stocks.Stocks {
		lines = append(lines, fmt.Sprintf("%s — qty **%d** @ $%d", item.Name, item.Quantity, item.Cost))
	}
	b.sendChunked(s, i, lines)
}

// handleBalance handles /balance: the caller's faction vault balance
func (b *Bot) handleBalance(s *discordgo.Session, i *discordgo.InteractionCreate) {
	tornID := tornIDFromMember(i.Member)
	if tornID == 0 {
		respondEphemeral(s, i, "Couldn't find your Torn ID. Set your nickname to `Name [1234567]`.")
		return
	}

	deferResponse(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	members, err := b.torn.FetchBalance(ctx)
	if err != nil {
		slog.Error("Failed to fetch vault balance", "error", err)
		b.editResponse(s, i, "Failed to fetch the faction vault. Please try again.")
		return
	}

	for _, m := range members {
		if m.ID == tornID {
			b.editResponse(s, i, fmt.Sprintf("💰 **%s**: $%s and %d points in the vault.",
				m.Username, formatMoney(m.Money), m.Points))
			return
		}
	}
	b.editResponse(s, i, "You don't have a faction vault balance.")
}

// handleRevive handles /revive: members with revives switched on
func (b *Bot) handleRevive(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferResponse(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	members, err := b.torn.FetchMembers(ctx)
	if err != nil {
		slog.Error("Failed to fetch members", "error", err)
		b.editResponse(s, i, "Failed to fetch the member list. Please try again.")
		return
	}

	lines := []string{"**Members with revives enabled**"}
	count := 0
	for _, m := range members {
		setting := strings.ToLower(strings.TrimSpace(m.ReviveSetting))
		if setting == "" || setting == "no one" {
			continue
		}
		lines = append(lines, fmt.Sprintf("**%s** [%d] — %s", m.Name, m.ID, m.ReviveSetting))
		count++
	}
	if count == 0 {
		b.editResponse(s, i, "Nobody has revives enabled right now.")
		return
	}
	b.sendChunked(s, i, lines)
}

// handleOffline handles /offline: members not currently online
func (b *Bot) handleOffline(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferResponse(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	members, err := b.torn.FetchMembers(ctx)
	if err != nil {
		slog.Error("Failed to fetch members", "error", err)
		b.editResponse(s, i, "Failed to fetch the member list. Please try again.")
		return
	}

	offline := make([]int, 0, len(members))
	for idx, m := range members {
		if !m.OnlineLike() {
			offline = append(offline, idx)
		}
	}
	if len(offline) == 0 {
		b.editResponse(s, i, "Everyone is online or idle. 🔥")
		return
	}

	// Longest-offline first
	sort.Slice(offline, func(a, b int) bool {
		return members[offline[a]].LastAction.Timestamp < members[offline[b]].LastAction.Timestamp
	})

	lines := []string{fmt.Sprintf("**Offline members (%d)**", len(offline))}
	for _, idx := range offline {
		m := members[idx]
		lines = append(lines, fmt.Sprintf("**%s** [%d] — last seen %s", m.Name, m.ID, m.LastAction.Relative))
	}
	b.sendChunked(s, i, lines)
}

// handleOnline handles /online: members currently online or idle in Torn
func (b *Bot) handleOnline(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferResponse(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	members, err := b.torn.FetchMembers(ctx)
	if err != nil {
		slog.Error("Failed to fetch members", "error", err)
		b.editResponse(s, i, "Failed to fetch the member list. Please try again.")
		return
	}

	var lines []string
	for _, m := range members {
		if m.OnlineLike() {
			lines = append(lines, fmt.Sprintf("**%s** [%d] — %s", m.Name, m.ID, m.LastAction.Status))
		}
	}
	if len(lines) == 0 {
		b.editResponse(s, i, "Nobody is online right now. 💤")
		return
	}
	b.sendChunked(s, i, append([]string{fmt.Sprintf("**Online members (%d)**", len(lines))}, lines...))
}

// handleHelp handles /help: the command list
func (b *Bot) handleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	lines := helpLines(b.getCommandDefinitions())
	chunks := chunkLines(lines, 1900)
	if len(chunks) == 0 {
		return
	}
	respondEphemeral(s, i, chunks[0])
	for _, chunk := range chunks[1:] {
		if _, err := s.ChannelMessageSend(i.ChannelID, chunk); err != nil {
			slog.Error("Failed to send help chunk", "error", err)
			return
		}
	}
}

// helpLines renders the command definitions as a help listing
func helpLines(defs []*discordgo.ApplicationCommand) []string {
	lines := []string{"**Commands**"}
	for _, def := range defs {
		lines = append(lines, fmt.Sprintf("`/%s` — %s", def.Name, def.Description))
		for _, opt := range def.Options {
			if opt.Type == discordgo.ApplicationCommandOptionSubCommand {
				lines = append(lines, fmt.Sprintf("  `/%s %s` — %s", def.Name, opt.Name, opt.Description))
			}
		}
	}
	return lines
}

var neganQuotes = []string{
	"Easy street, boys. Easy street.",
	"I hope you got your s***tin' pants on.",
	"You are SO gonna regret that.",
	"People are a resource.",
	"I just slid my finger along the blade... half my blood is on Lucille now.",
	"We're the Saviors. We save people.",
	"Not making a choice is a big choice.",
	"I'm everywhere.",
	"Half of everything. That's the deal.",
	"You bunch of beautiful bastards got a hit in. Keep it rolling.",
}

// handleNeganQuote handles /neganquote
func (b *Bot) handleNeganQuote(s *discordgo.Session, i *discordgo.InteractionCreate) {
	respondWithMessage(s, i, fmt.Sprintf("🏏 *%s*", randomNeganQuote()))
}

func randomNeganQuote() string {
	return neganQuotes[rand.Intn(len(neganQuotes))]
}

// handleStatus handles /status: a quick view of the bot's moving parts
func (b *Bot) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var sb strings.Builder
	sb.WriteString("**Bot status**\n")

	if channelID, running := b.watcher.Running(i.GuildID); running {
		sb.WriteString(fmt.Sprintf("Chain watch: running in <#%s>\n", channelID))
	} else {
		sb.WriteString("Chain watch: not running\n")
	}

	if lastErr := b.picker.LastError(); lastErr != "" {
		sb.WriteString(fmt.Sprintf("Target picker: %s\n", lastErr))
	} else {
		sb.WriteString("Target picker: ok\n")
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()
	if warStart, err := b.warStart.WarStart(ctx); err == nil {
		cp, cperr := b.repo.Checkpoint(warStart)
		switch {
		case cperr != nil || cp == nil:
			sb.WriteString(fmt.Sprintf("War scan: epoch %d, not started\n", warStart))
		case cp.Initialized:
			sb.WriteString(fmt.Sprintf("War scan: epoch %d, fully caught up\n", warStart))
		default:
			sb.WriteString(fmt.Sprintf("War scan: epoch %d, backfill in progress\n", warStart))
		}
	} else {
		sb.WriteString("War scan: no ranked war found\n")
	}

	respondWithMessage(s, i, sb.String())
}

// handleAPIKey handles the /apikey subcommands
func (b *Bot) handleAPIKey(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "set":
		key := strings.TrimSpace(sub.Options[0].StringValue())
		if key == "" {
			respondEphemeral(s, i, "The key cannot be empty.")
			return
		}
		if err := b.repo.UpsertUserKey(i.Member.User.ID, key); err != nil {
			if errors.Is(err, storage.ErrNoMasterKey) {
				respondEphemeral(s, i, "Key storage is not enabled on this bot.")
				return
			}
			slog.Error("Failed to store user key", "error", err)
			respondEphemeral(s, i, "Failed to store your key. Please try again.")
			return
		}
		respondEphemeral(s, i, "Your API key is stored encrypted. `/apikey clear` removes it.")
	case "clear":
		deleted, err := b.repo.DeleteUserKey(i.Member.User.ID)
		if err != nil {
			slog.Error("Failed to delete user key", "error", err)
			respondEphemeral(s, i, "Failed to delete your key. Please try again.")
			return
		}
		if !deleted {
			respondEphemeral(s, i, "You had no stored key.")
			return
		}
		respondEphemeral(s, i, "Your stored API key was deleted.")
	}
}

// formatMoney renders an amount with thousands separators
func formatMoney(amount int64) string {
	s := fmt.Sprintf("%d", amount)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
