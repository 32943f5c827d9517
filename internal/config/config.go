package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken string

	// Torn API
	TornAPIKey         string
	TornTimeoutSeconds int

	// Master key for encrypting stored user API keys. Optional: when empty,
	// the /apikey commands are disabled.
	BotMasterKey string

	// Database
	DatabasePath string

	// Roster schedule CSV export
	SheetBotDataCSVURL string

	// Chain watcher
	ChainPollSeconds  int
	ChainAlertSeconds int

	// Roster monitor
	RosterCheckIntervalSeconds    int
	RosterGraceMinutes            int
	RosterAlertMinIntervalSeconds int

	// War scan
	WarStartCacheTTLSeconds int

	// Easy-target attack links, probed in order
	TargetLinks []string

	// Role names
	VerifiedRoleName    string
	LeadershipRoleNames []string
	ControlRoleNames    []string
	PingRoleName        string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:        os.Getenv("DISCORD_TOKEN"),
		TornAPIKey:          os.Getenv("TORN_API_KEY"),
		BotMasterKey:        os.Getenv("BOT_MASTER_KEY"),
		DatabasePath:        getEnvOrDefault("DATABASE_PATH", "./data/bot.db"),
		SheetBotDataCSVURL:  os.Getenv("SHEET_BOT_DATA_CSV_URL"),
		TargetLinks:         splitList(os.Getenv("TARGET_ATTACK_LINKS")),
		VerifiedRoleName:    getEnvOrDefault("VERIFIED_ROLE_NAME", "Verified"),
		LeadershipRoleNames: splitList(getEnvOrDefault("LEADERSHIP_ROLE_NAMES", "Negan Saviors,Lieutenant Saviors,Soldier")),
		ControlRoleNames:    splitList(getEnvOrDefault("CONTROL_ROLE_NAMES", "Negan Saviors,Lieutenant Saviors")),
		PingRoleName:        getEnvOrDefault("PING_ROLE_NAME", "Savior"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
	}

	ints := []struct {
		key string
		def string
		dst *int
	}{
		{"TORN_TIMEOUT_SECONDS", "25", &cfg.TornTimeoutSeconds},
		{"CHAIN_POLL_SECONDS", "15", &cfg.ChainPollSeconds},
		{"CHAIN_ALERT_SECONDS", "75", &cfg.ChainAlertSeconds},
		{"ROSTER_CHECK_INTERVAL_SECONDS", "300", &cfg.RosterCheckIntervalSeconds},
		{"ROSTER_GRACE_MINUTES", "0", &cfg.RosterGraceMinutes},
		{"ROSTER_ALERT_MIN_INTERVAL_SECONDS", "3600", &cfg.RosterAlertMinIntervalSeconds},
		{"WAR_START_CACHE_TTL_SECONDS", "120", &cfg.WarStartCacheTTLSeconds},
	}
	for _, iv := range ints {
		raw := getEnvOrDefault(iv.key, iv.def)
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", iv.key, err)
		}
		*iv.dst = v
	}

	// Validate required fields
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.TornAPIKey == "" {
		return nil, fmt.Errorf("TORN_API_KEY is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
