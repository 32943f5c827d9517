package bot

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// handleChain handles the /chain subcommands
func (b *Bot) handleChain(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "start":
		b.handleChainStart(s, i)
	case "stop":
		b.handleChainStop(s, i)
	case "pingme":
		b.handleChainPingMe(s, i)
	case "noping":
		b.handleChainNoPing(s, i)
	case "list":
		b.handleChainList(s, i)
	case "status":
		b.handleChainStatus(s, i)
	}
}

// handleChainStart starts the chain watch in the invoking channel
func (b *Bot) handleChainStart(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.requireControl(s, i) {
		return
	}

	if err := b.watcher.Start(b.runCtx, i.GuildID, i.ChannelID); err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}
	respondWithMessage(s, i, fmt.Sprintf(
		"🔗 Chain watch started. Alerts will go to <#%s> when the timer drops to %ds. Use `/chain pingme` to get pinged.",
		i.ChannelID, b.config.ChainAlertSeconds))
}

// handleChainStop stops the chain watch and clears the ping list
func (b *Bot) handleChainStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.requireControl(s, i) {
		return
	}

	if !b.watcher.Stop(i.GuildID) {
		respondEphemeral(s, i, "No chain watch is running in this server.")
		return
	}

	cleared, err := b.repo.ClearChainOptIns(i.GuildID)
	if err != nil {
		slog.Error("Failed to clear chain opt-ins", "guildID", i.GuildID, "error", err)
	}
	respondWithMessage(s, i, fmt.Sprintf("Chain watch stopped. Cleared %d ping opt-in(s).", cleared))
}

// handleChainPingMe opts the caller into chain pings
func (b *Bot) handleChainPingMe(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if _, running := b.watcher.Running(i.GuildID); !running {
		respondEphemeral(s, i, "No chain watch is running. Ask leadership to `/chain start` first.")
		return
	}
	if err := b.repo.AddChainOptIn(i.GuildID, i.Member.User.ID); err != nil {
		slog.Error("Failed to add chain opt-in", "error", err)
		respondEphemeral(s, i, "Failed to save your opt-in. Please try again.")
		return
	}
	respondEphemeral(s, i, "You'll be pinged when the chain is about to drop. `/chain noping` to stop.")
}

// handleChainNoPing opts the caller out of chain pings
func (b *Bot) handleChainNoPing(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.repo.RemoveChainOptIn(i.GuildID, i.Member.User.ID); err != nil {
		slog.Error("Failed to remove chain opt-in", "error", err)
		respondEphemeral(s, i, "Failed to remove your opt-in. Please try again.")
		return
	}
	respondEphemeral(s, i, "You won't be pinged for chain alerts anymore.")
}

// handleChainList lists the opted-in members
func (b *Bot) handleChainList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	optIns, err := b.repo.ListChainOptIns(i.GuildID)
	if err != nil {
		slog.Error("Failed to list chain opt-ins", "error", err)
		respondEphemeral(s, i, "Failed to load the ping list.")
		return
	}
	if len(optIns) == 0 {
		respondWithMessage(s, i, "Nobody is opted into chain pings.")
		return
	}

	mentions := make([]string, len(optIns))
	for idx, userID := range optIns {
		mentions[idx] = fmt.Sprintf("<@%s>", userID)
	}
	respondWithMessage(s, i, fmt.Sprintf("**Chain ping list (%d):** %s",
		len(optIns), strings.Join(mentions, " ")))
}

// handleChainStatus shows the latest chain snapshot
func (b *Bot) handleChainStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	chain, polledAt, running := b.watcher.Snapshot(i.GuildID)
	if !running {
		respondWithMessage(s, i, "No chain watch is running in this server.")
		return
	}
	if chain == nil {
		respondWithMessage(s, i, "Chain watch is running. No active chain right now.")
		return
	}

	age := "just now"
	if !polledAt.IsZero() {
		age = fmt.Sprintf("%ds ago", int(time.Since(polledAt).Seconds()))
	}
	respondWithMessage(s, i, fmt.Sprintf(
		"🔗 Chain: **%d/%d** hits  |  timer: **%ds**  |  modifier: x%.2f  |  checked %s",
		chain.Current, chain.Max, chain.Timeout, chain.Modifier, age))
}
