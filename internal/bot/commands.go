package bot

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Slash command definitions
func (b *Bot) getCommandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "warstats",
			Description: "Show your own war hit stats",
		},
		{
			Name:        "warstats_all",
			Description: "Show war hit stats for every member",
		},
		{
			Name:        "war",
			Description: "War scan details",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "attacks",
					Description: "Attack outcome breakdown for a player",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "player_id",
							Description: "Torn player ID (defaults to you)",
							Required:    false,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "ff",
					Description: "Fair fight averages per member",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "hits",
					Description: "War hit counts per member",
				},
			},
		},
		{
			Name:        "leaderboard",
			Description: "Top members by ranked war hits",
		},
		{
			Name:        "chain",
			Description: "Chain watcher controls",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "start",
					Description: "Start the chain watch in this channel",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "stop",
					Description: "Stop the chain watch",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "pingme",
					Description: "Get pinged when the chain is about to drop",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "noping",
					Description: "Stop getting chain pings",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List members opted into chain pings",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "status",
					Description: "Show the current chain status",
				},
			},
		},
		{
			Name:        "roster",
			Description: "Chain watch roster",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "now",
					Description: "Who is signed up for the current hour",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "report",
					Description: "Late and missed totals per member",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "since",
							Description: "Earliest day to include (YYYY-MM-DD)",
							Required:    false,
						},
					},
				},
			},
		},
		{
			Name:        "market",
			Description: "Foreign stock data",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "restocks",
					Description: "When each country's stock was last updated",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "travel",
					Description: "Current stock in one country",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "country",
							Description: "Country code (e.g. mex, arg, uae)",
							Required:    true,
						},
					},
				},
			},
		},
		{
			Name:        "balance",
			Description: "Show your faction vault balance",
		},
		{
			Name:        "revive",
			Description: "List members with revives enabled",
		},
		{
			Name:        "offline",
			Description: "List members currently offline",
		},
		{
			Name:        "online",
			Description: "List members currently online or idle",
		},
		{
			Name:        "leader",
			Description: "Show which leaders are on Discord right now",
		},
		{
			Name:        "leaderping",
			Description: "Ping the leaders currently on Discord",
		},
		{
			Name:        "help",
			Description: "List the bot's commands",
		},
		{
			Name:        "neganquote",
			Description: "Words of wisdom from Negan himself",
		},
		{
			Name:        "status",
			Description: "Show bot and scan status",
		},
		{
			Name:        "apikey",
			Description: "Manage your stored Torn API key",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Store your Torn API key",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "key",
							Description: "Your Torn API key",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "clear",
					Description: "Delete your stored Torn API key",
				},
			},
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands")

	commandDefinitions := b.getCommandDefinitions()
	registeredCommands := make([]*discordgo.ApplicationCommand, 0, len(commandDefinitions))

	for _, cmd := range commandDefinitions {
		registered, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			"", // Empty string = global command
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registeredCommands = append(registeredCommands, registered)
		slog.Debug("Registered command", "name", cmd.Name)
	}

	b.commands = registeredCommands
	slog.Info("Slash commands registered", "count", len(registeredCommands))
	return nil
}

// removeCommands removes all registered slash commands
func (b *Bot) removeCommands() {
	for _, cmd := range b.commands {
		err := b.session.ApplicationCommandDelete(b.session.State.User.ID, "", cmd.ID)
		if err != nil {
			slog.Error("Failed to remove command", "name", cmd.Name, "error", err)
		}
	}
}
