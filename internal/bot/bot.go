package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/config"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/scan"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/sheets"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/storage"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/torn"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/watcher"
	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/yata"
)

// Bot represents the Discord bot instance
type Bot struct {
	config   *config.Config
	session  *discordgo.Session
	repo     *storage.Repository
	torn     *torn.Client
	warStart *torn.WarStartCache
	engine   *scan.Engine
	yata     *yata.Client
	sheet    *sheets.Client
	watcher  *watcher.ChainWatcher
	picker   *watcher.TargetPicker
	roster   *watcher.RosterMonitor
	commands []*discordgo.ApplicationCommand

	// runCtx is the bot's lifetime context; per-guild watches inherit it
	runCtx context.Context
}

// New creates a new Bot instance
func New(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Member listings are needed for role checks and chain pings, presences
	// for the leader commands
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers | discordgo.IntentsGuildPresences

	// Initialize storage
	repo, err := storage.NewRepository(cfg.DatabasePath, cfg.BotMasterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	tornClient := torn.NewClient(cfg.TornAPIKey,
		torn.WithTimeout(time.Duration(cfg.TornTimeoutSeconds)*time.Second))
	warStart := torn.NewWarStartCache(tornClient,
		time.Duration(cfg.WarStartCacheTTLSeconds)*time.Second)

	b := &Bot{
		config:   cfg,
		session:  session,
		repo:     repo,
		torn:     tornClient,
		warStart: warStart,
		engine:   scan.New(tornClient, warStart, repo),
		yata:     yata.NewClient(),
		sheet:    sheets.NewClient(cfg.SheetBotDataCSVURL),
		picker:   watcher.NewTargetPicker(tornClient, cfg.TargetLinks),
	}

	alerts := &discordAlerts{
		session:      session,
		repo:         repo,
		picker:       b.picker,
		pingRoleName: cfg.PingRoleName,
	}
	b.watcher = watcher.NewChainWatcher(tornClient, alerts, cfg.ChainPollSeconds, cfg.ChainAlertSeconds)
	b.roster = watcher.NewRosterMonitor(b.sheet, tornClient, repo, b.watcher, alerts,
		cfg.RosterCheckIntervalSeconds, cfg.RosterGraceMinutes, cfg.RosterAlertMinIntervalSeconds)

	// Register command handlers
	b.registerHandlers()

	return b, nil
}

// Start opens the Discord connection and starts background tasks
func (b *Bot) Start(ctx context.Context) error {
	b.runCtx = ctx

	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	// Register slash commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	// The roster monitor runs for the whole bot lifetime; it only acts on
	// guilds whose chain watch is running
	go b.roster.Start(ctx)

	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	if b.roster != nil {
		b.roster.Stop()
	}
	if b.watcher != nil {
		b.watcher.StopAll()
	}

	// Close storage
	if b.repo != nil {
		b.repo.Close()
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(r.Guilds))
	})
}

// handleInteraction processes slash command interactions
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	slog.Debug("Received command", "command", data.Name, "guild", i.GuildID)

	switch data.Name {
	case "warstats":
		b.handleWarStats(s, i)
	case "warstats_all":
		b.handleWarStatsAll(s, i)
	case "war":
		b.handleWar(s, i)
	case "leaderboard":
		b.handleLeaderboard(s, i)
	case "chain":
		b.handleChain(s, i)
	case "roster":
		b.handleRoster(s, i)
	case "market":
		b.handleMarket(s, i)
	case "balance":
		b.handleBalance(s, i)
	case "revive":
		b.handleRevive(s, i)
	case "offline":
		b.handleOffline(s, i)
	case "online":
		b.handleOnline(s, i)
	case "leader":
		b.handleLeader(s, i)
	case "leaderping":
		b.handleLeaderPing(s, i)
	case "help":
		b.handleHelp(s, i)
	case "neganquote":
		b.handleNeganQuote(s, i)
	case "status":
		b.handleStatus(s, i)
	case "apikey":
		b.handleAPIKey(s, i)
	default:
		slog.Warn("Unknown command", "command", data.Name)
	}
}
