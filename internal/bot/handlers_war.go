package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/storage"
)

// scanTimeout bounds one command-triggered scan. A catch-up scan can fetch a
// dozen rate-limited pages, so this is generous.
const scanTimeout = 60 * time.Second

// freshStats runs a budgeted scan and returns the current war epoch
func (b *Bot) freshStats(ctx context.Context) (int64, bool, error) {
	warStart, initialized, err := b.engine.EnsureFresh(ctx)
	if err != nil {
		return 0, false, err
	}
	return warStart, initialized, nil
}

// scanFootnote marks results produced before the backfill finished
func scanFootnote(initialized bool) string {
	if initialized {
		return ""
	}
	return "\n*Still catching up on older attacks; numbers may rise.*"
}

// handleWarStats handles /warstats: the caller's own war numbers
func (b *Bot) handleWarStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	tornID := tornIDFromMember(i.Member)
	if tornID == 0 {
		respondEphemeral(s, i, "Couldn't find your Torn ID. Set your nickname to `Name [1234567]`.")
		return
	}

	deferResponse(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	warStart, initialized, err := b.freshStats(ctx)
	if err != nil {
		slog.Error("War scan failed", "error", err)
		b.editResponse(s, i, "Failed to refresh war stats. Please try again.")
		return
	}

	summary, err := b.repo.GetWarStats(warStart, tornID)
	if err != nil {
		slog.Error("Failed to load war stats", "playerID", tornID, "error", err)
		b.editResponse(s, i, "Failed to load war stats. Please try again.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**War stats for `%d`**\n", tornID))
	sb.WriteString(fmt.Sprintf("War hits: **%d**  |  Outside hits: **%d**\n", summary.RankedHits, summary.OutsideHits))
	sb.WriteString(fmt.Sprintf("FF avg (war): %s  |  FF avg (outside): %s\n",
		fmtFF(summary.RankedFFAvg()), fmtFF(summary.OutsideFFAvg())))
	sb.WriteString(fmt.Sprintf("Respect gained: %.2f",
		summary.RankedFF.RespectGain+summary.OutsideFF.RespectGain))
	sb.WriteString(scanFootnote(initialized))

	b.editResponse(s, i, sb.String())
}

// handleWarStatsAll handles /warstats_all: every member's numbers
func (b *Bot) handleWarStatsAll(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.requireLeadership(s, i) {
		return
	}

	deferResponse(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	warStart, initialized, err := b.freshStats(ctx)
	if err != nil {
		slog.Error("War scan failed", "error", err)
		b.editResponse(s, i, "Failed to refresh war stats. Please try again.")
		return
	}

	summaries, err := b.repo.ListWarStats(warStart)
	if err != nil {
		slog.Error("Failed to list war stats", "error", err)
		b.editResponse(s, i, "Failed to load war stats. Please try again.")
		return
	}
	if len(summaries) == 0 {
		b.editResponse(s, i, "No war hits recorded yet."+scanFootnote(initialized))
		return
	}

	header := fmt.Sprintf("%-18s %5s %7s %8s %7s", "Member", "War", "War FF", "Outside", "Out FF")
	rows := make([]string, 0, len(summaries))
	for _, sum := range summaries {
		rows = append(rows, fmt.Sprintf("%-18s %5d %7s %8d %7s",
			truncate(displayName(sum), 18), sum.RankedHits, fmtFF(sum.RankedFFAvg()),
			sum.OutsideHits, fmtFF(sum.OutsideFFAvg())))
	}

	b.sendTable(s, i, "**War stats (all members)**"+scanFootnote(initialized), header, rows)
}

// sendTable sends a monospace table, fenced per chunk
func (b *Bot) sendTable(s *discordgo.Session, i *discordgo.InteractionCreate, title, header string, rows []string) {
	first := true
	for _, chunk := range chunkLines(rows, 1700) {
		msg := "```\n" + header + "\n" + chunk + "\n```"
		if first {
			b.editResponse(s, i, title+"\n"+msg)
			first = false
			continue
		}
		if _, err := s.ChannelMessageSend(i.ChannelID, msg); err != nil {
			slog.Error("Failed to send table chunk", "error", err)
			return
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// handleWar handles the /war subcommands
func (b *Bot) handleWar(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "attacks":
		b.handleWarAttacks(s, i, sub)
	case "ff":
		b.handleWarFF(s, i)
	case "hits":
		b.handleWarHits(s, i)
	}
}

// handleWarAttacks shows the outcome breakdown for one player
func (b *Bot) handleWarAttacks(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	var tornID int64
	for _, opt := range sub.Options {
		if opt.Name == "player_id" {
			tornID = opt.IntValue()
		}
	}
	if tornID == 0 {
		tornID = tornIDFromMember(i.Member)
	}
	if tornID == 0 {
		respondEphemeral(s, i, "Couldn't find your Torn ID. Set your nickname to `Name [1234567]` or pass `player_id`.")
		return
	}

	deferResponse(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	warStart, initialized, err := b.freshStats(ctx)
	if err != nil {
		slog.Error("War scan failed", "error", err)
		b.editResponse(s, i, "Failed to refresh war stats. Please try again.")
		return
	}

	outcomes, err := b.repo.ListOutcomes(warStart, tornID)
	if err != nil {
		slog.Error("Failed to load outcomes", "playerID", tornID, "error", err)
		b.editResponse(s, i, "Failed to load attack breakdown. Please try again.")
		return
	}
	if len(outcomes) == 0 {
		b.editResponse(s, i, fmt.Sprintf("No attacks recorded for `%d` this war.%s", tornID, scanFootnote(initialized)))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Attack breakdown for `%d`**\n", tornID))
	for _, oc := range outcomes {
		sb.WriteString(fmt.Sprintf("%s / %s: **%d**\n", oc.Bucket, oc.Outcome, oc.Hits))
	}
	sb.WriteString(scanFootnote(initialized))
	b.editResponse(s, i, sb.String())
}

// handleWarFF lists fair-fight averages per member
func (b *Bot) handleWarFF(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferResponse(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	warStart, initialized, err := b.freshStats(ctx)
	if err != nil {
		slog.Error("War scan failed", "error", err)
		b.editResponse(s, i, "Failed to refresh war stats. Please try again.")
		return
	}

	summaries, err := b.repo.ListWarStats(warStart)
	if err != nil {
		slog.Error("Failed to list war stats", "error", err)
		b.editResponse(s, i, "Failed to load fair fight data. Please try again.")
		return
	}
	if len(summaries) == 0 {
		b.editResponse(s, i, "No war hits recorded yet."+scanFootnote(initialized))
		return
	}

	lines := []string{"**Fair fight averages**"}
	for _, sum := range summaries {
		lines = append(lines, fmt.Sprintf("**%s** — war FF %s, overall FF %s",
			displayName(sum), fmtFF(sum.RankedFFAvg()), fmtFF(sum.TotalFFAvg())))
	}
	if note := scanFootnote(initialized); note != "" {
		lines = append(lines, strings.TrimPrefix(note, "\n"))
	}
	b.sendChunked(s, i, lines)
}

// handleWarHits lists hit counts per member
func (b *Bot) handleWarHits(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferResponse(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	warStart, initialized, err := b.freshStats(ctx)
	if err != nil {
		slog.Error("War scan failed", "error", err)
		b.editResponse(s, i, "Failed to refresh war stats. Please try again.")
		return
	}

	summaries, err := b.repo.ListWarStats(warStart)
	if err != nil {
		slog.Error("Failed to list war stats", "error", err)
		b.editResponse(s, i, "Failed to load hit counts. Please try again.")
		return
	}
	if len(summaries) == 0 {
		b.editResponse(s, i, "No war hits recorded yet."+scanFootnote(initialized))
		return
	}

	lines := []string{"**War hit counts**"}
	for _, sum := range summaries {
		lines = append(lines, fmt.Sprintf("**%s** — war: %d, outside: %d",
			displayName(sum), sum.RankedHits, sum.OutsideHits))
	}
	if note := scanFootnote(initialized); note != "" {
		lines = append(lines, strings.TrimPrefix(note, "\n"))
	}
	b.sendChunked(s, i, lines)
}

// handleLeaderboard handles /leaderboard: top members by fair fight average
func (b *Bot) handleLeaderboard(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.requireLeadership(s, i) {
		return
	}

	deferResponse(s, i)
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	warStart, initialized, err := b.freshStats(ctx)
	if err != nil {
		slog.Error("War scan failed", "error", err)
		b.editResponse(s, i, "Failed to refresh war stats. Please try again.")
		return
	}

	summaries, err := b.repo.ListWarStats(warStart)
	if err != nil {
		slog.Error("Failed to list war stats", "error", err)
		b.editResponse(s, i, "Failed to load the leaderboard. Please try again.")
		return
	}
	if len(summaries) == 0 {
		b.editResponse(s, i, "No war hits recorded yet."+scanFootnote(initialized))
		return
	}

	// Rank by overall FF average; players with no FF values don't qualify
	type ranked struct {
		sum *storage.WarStatsSummary
		ff  float64
	}
	var board []ranked
	for _, sum := range summaries {
		if ff, ok := sum.TotalFFAvg(); ok {
			board = append(board, ranked{sum: sum, ff: ff})
		}
	}
	if len(board) == 0 {
		b.editResponse(s, i, "No fair fight data recorded yet."+scanFootnote(initialized))
		return
	}
	sort.Slice(board, func(a, c int) bool { return board[a].ff > board[c].ff })

	medals := []string{"🥇", "🥈", "🥉"}
	var sb strings.Builder
	sb.WriteString("**Fair fight leaderboard**\n")
	for idx, entry := range board {
		if idx >= 10 {
			break
		}
		prefix := fmt.Sprintf("%d.", idx+1)
		if idx < len(medals) {
			prefix = medals[idx]
		}
		sb.WriteString(fmt.Sprintf("%s **%s** — FF %.2f over %d war hits\n",
			prefix, displayName(entry.sum), entry.ff, entry.sum.RankedHits))
	}
	sb.WriteString(scanFootnote(initialized))
	b.editResponse(s, i, sb.String())
}

// displayName prefers the recorded Torn name over the raw id
func displayName(sum *storage.WarStatsSummary) string {
	if sum.Name != "" {
		return sum.Name
	}
	return fmt.Sprintf("%d", sum.PlayerID)
}

// sendChunked edits the deferred response with the first chunk and sends the
// rest as follow-up channel messages.
func (b *Bot) sendChunked(s *discordgo.Session, i *discordgo.InteractionCreate, lines []string) {
	chunks := chunkLines(lines, 1900)
	if len(chunks) == 0 {
		return
	}
	b.editResponse(s, i, chunks[0])
	for _, chunk := range chunks[1:] {
		if _, err := s.ChannelMessageSend(i.ChannelID, chunk); err != nil {
			slog.Error("Failed to send follow-up chunk", "error", err)
			return
		}
	}
}
