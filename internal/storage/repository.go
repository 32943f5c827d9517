package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/scan"
)

// ErrNoMasterKey is returned by the user-key operations when the bot was
// started without a master key configured.
var ErrNoMasterKey = errors.New("no master key configured")

// Repository handles all database operations
type Repository struct {
	db     *sql.DB
	cipher *keyCipher
}

// NewRepository creates a new repository with SQLite. masterKey may be empty,
// which disables the encrypted user-key store.
func NewRepository(dbPath, masterKey string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Better concurrency characteristics
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	repo := &Repository{db: db}

	if masterKey != "" {
		cipher, err := newKeyCipher(masterKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize key cipher: %w", err)
		}
		repo.cipher = cipher
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS scan_checkpoints (
			war_start INTEGER PRIMARY KEY,
			last_ts INTEGER NOT NULL DEFAULT 0,
			last_attack_id INTEGER NOT NULL DEFAULT 0,
			backfill_to INTEGER,
			is_initialized INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS attacks_seen (
			war_start INTEGER NOT NULL,
			attack_id INTEGER NOT NULL,
			PRIMARY KEY (war_start, attack_id)
		)`,
		`CREATE TABLE IF NOT EXISTS player_war_stats (
			war_start INTEGER NOT NULL,
			player_id INTEGER NOT NULL,
			bucket TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			hits INTEGER NOT NULL DEFAULT 0,
			ff_sum REAL NOT NULL DEFAULT 0,
			ff_count INTEGER NOT NULL DEFAULT 0,
			respect_gain REAL NOT NULL DEFAULT 0,
			respect_loss REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (war_start, player_id, bucket)
		)`,
		`CREATE TABLE IF NOT EXISTS attack_outcomes (
			war_start INTEGER NOT NULL,
			player_id INTEGER NOT NULL,
			bucket TEXT NOT NULL,
			outcome TEXT NOT NULL,
			hits INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (war_start, player_id, bucket, outcome)
		)`,
		`CREATE TABLE IF NOT EXISTS roster_hours (
			guild_id TEXT NOT NULL,
			day TEXT NOT NULL,
			hour INTEGER NOT NULL,
			slot INTEGER NOT NULL,
			name TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'pending',
			first_seen_ts INTEGER NOT NULL DEFAULT 0,
			late_minutes INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (guild_id, day, hour, slot, name)
		)`,
		`CREATE TABLE IF NOT EXISTS chain_ping_optin (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY (guild_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS user_keys (
			discord_user_id TEXT PRIMARY KEY,
			api_key_enc BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Scan checkpoint operations (scan.Store)

// Checkpoint loads the checkpoint for a war epoch, or nil when absent
func (r *Repository) Checkpoint(warStart int64) (*scan.Checkpoint, error) {
	cp := &scan.Checkpoint{}
	var backfill sql.NullInt64
	var initialized int
	err := r.db.QueryRow(
		`SELECT war_start, last_ts, last_attack_id, backfill_to, is_initialized
		 FROM scan_checkpoints WHERE war_start = ?`,
		warStart,
	).Scan(&cp.WarStart, &cp.LastTS, &cp.LastAttackID, &backfill, &initialized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if backfill.Valid {
		v := backfill.Int64
		cp.BackfillTo = &v
	}
	cp.Initialized = initialized != 0
	return cp, nil
}

// SaveCheckpoint upserts the checkpoint for its epoch
func (r *Repository) SaveCheckpoint(cp *scan.Checkpoint) error {
	var backfill sql.NullInt64
	if cp.BackfillTo != nil {
		backfill = sql.NullInt64{Int64: *cp.BackfillTo, Valid: true}
	}
	initialized := 0
	if cp.Initialized {
		initialized = 1
	}
	_, err := r.db.Exec(
		`INSERT INTO scan_checkpoints (war_start, last_ts, last_attack_id, backfill_to, is_initialized, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(war_start) DO UPDATE SET
			last_ts = excluded.last_ts,
			last_attack_id = excluded.last_attack_id,
			backfill_to = excluded.backfill_to,
			is_initialized = excluded.is_initialized,
			updated_at = excluded.updated_at`,
		cp.WarStart, cp.LastTS, cp.LastAttackID, backfill, initialized, time.Now().Unix(),
	)
	return err
}

// ClaimAttack records an attack id in the dedup ledger. Returns true only on
// the first claim for a given (epoch, attack id).
func (r *Repository) ClaimAttack(warStart, attackID int64) (bool, error) {
	result, err := r.db.Exec(
		`INSERT OR IGNORE INTO attacks_seen (war_start, attack_id) VALUES (?, ?)`,
		warStart, attackID,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ApplyAttack increments the outcome tally and, for counted outcomes, the
// player aggregate. Both rows are written in one transaction so an attack is
// never half-applied.
func (r *Repository) ApplyAttack(warStart int64, c scan.Contribution) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO attack_outcomes (war_start, player_id, bucket, outcome, hits)
		 VALUES (?, ?, ?, ?, 1)
		 ON CONFLICT(war_start, player_id, bucket, outcome) DO UPDATE SET hits = hits + 1`,
		warStart, c.PlayerID, string(c.Bucket), string(c.Outcome),
	)
	if err != nil {
		return err
	}

	if c.Outcome.Counted() {
		var ffDelta float64
		var ffCountDelta int64
		if c.FairFight != nil {
			ffDelta = *c.FairFight
			ffCountDelta = 1
		}
		_, err = tx.Exec(
			`INSERT INTO player_war_stats (war_start, player_id, bucket, name, hits, ff_sum, ff_count, respect_gain, respect_loss)
			 VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)
			 ON CONFLICT(war_start, player_id, bucket) DO UPDATE SET
				name = excluded.name,
				hits = hits + 1,
				ff_sum = ff_sum + excluded.ff_sum,
				ff_count = ff_count + excluded.ff_count,
				respect_gain = respect_gain + excluded.respect_gain,
				respect_loss = respect_loss + excluded.respect_loss`,
			warStart, c.PlayerID, string(c.Bucket), c.Name,
			ffDelta, ffCountDelta, c.RespectGain, c.RespectLoss,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Aggregate reads

// GetWarStats returns one player's merged ranked/outside stats for an epoch.
// A player with no recorded hits gets a zero-valued summary.
func (r *Repository) GetWarStats(warStart, playerID int64) (*WarStatsSummary, error) {
	rows, err := r.db.Query(
		`SELECT bucket, name, hits, ff_sum, ff_count, respect_gain, respect_loss
		 FROM player_war_stats WHERE war_start = ? AND player_id = ?`,
		warStart, playerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &WarStatsSummary{PlayerID: playerID}
	for rows.Next() {
		s := PlayerWarStats{WarStart: warStart, PlayerID: playerID}
		var bucket string
		if err := rows.Scan(&bucket, &s.Name, &s.Hits, &s.FFSum, &s.FFCount, &s.RespectGain, &s.RespectLoss); err != nil {
			return nil, err
		}
		s.Bucket = scan.Bucket(bucket)
		mergeBucket(summary, s)
	}
	return summary, rows.Err()
}

// ListWarStats returns merged stats for every player in an epoch, ordered by
// ranked hits descending then name.
func (r *Repository) ListWarStats(warStart int64) ([]*WarStatsSummary, error) {
	rows, err := r.db.Query(
		`SELECT player_id, bucket, name, hits, ff_sum, ff_count, respect_gain, respect_loss
		 FROM player_war_stats WHERE war_start = ?`,
		warStart,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byPlayer := make(map[int64]*WarStatsSummary)
	var order []int64
	for rows.Next() {
		s := PlayerWarStats{WarStart: warStart}
		var bucket string
		if err := rows.Scan(&s.PlayerID, &bucket, &s.Name, &s.Hits, &s.FFSum, &s.FFCount, &s.RespectGain, &s.RespectLoss); err != nil {
			return nil, err
		}
		s.Bucket = scan.Bucket(bucket)
		summary, ok := byPlayer[s.PlayerID]
		if !ok {
			summary = &WarStatsSummary{PlayerID: s.PlayerID}
			byPlayer[s.PlayerID] = summary
			order = append(order, s.PlayerID)
		}
		mergeBucket(summary, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*WarStatsSummary, 0, len(order))
	for _, id := range order {
		out = append(out, byPlayer[id])
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].RankedHits != out[b].RankedHits {
			return out[a].RankedHits > out[b].RankedHits
		}
		return out[a].Name < out[b].Name
	})
	return out, nil
}

func mergeBucket(summary *WarStatsSummary, s PlayerWarStats) {
	if s.Name != "" {
		summary.Name = s.Name
	}
	switch s.Bucket {
	case scan.BucketRanked:
		summary.RankedHits = s.Hits
		summary.RankedFF = s
	case scan.BucketOutside:
		summary.OutsideHits = s.Hits
		summary.OutsideFF = s
	}
}

// ListOutcomes returns the outcome tally for one player in an epoch
func (r *Repository) ListOutcomes(warStart, playerID int64) ([]OutcomeCount, error) {
	rows, err := r.db.Query(
		`SELECT bucket, outcome, hits FROM attack_outcomes
		 WHERE war_start = ? AND player_id = ? ORDER BY bucket, outcome`,
		warStart, playerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutcomeCount
	for rows.Next() {
		c := OutcomeCount{WarStart: warStart, PlayerID: playerID}
		var bucket, outcome string
		if err := rows.Scan(&bucket, &outcome, &c.Hits); err != nil {
			return nil, err
		}
		c.Bucket = scan.Bucket(bucket)
		c.Outcome = scan.Outcome(outcome)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Chain ping opt-in operations

// AddChainOptIn opts a user into chain pings for a guild
func (r *Repository) AddChainOptIn(guildID, userID string) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO chain_ping_optin (guild_id, user_id) VALUES (?, ?)`,
		guildID, userID,
	)
	return err
}

// RemoveChainOptIn opts a user out of chain pings for a guild
func (r *Repository) RemoveChainOptIn(guildID, userID string) error {
	_, err := r.db.Exec(
		`DELETE FROM chain_ping_optin WHERE guild_id = ? AND user_id = ?`,
		guildID, userID,
	)
	return err
}

// ListChainOptIns returns the opted-in user ids for a guild
func (r *Repository) ListChainOptIns(guildID string) ([]string, error) {
	rows, err := r.db.Query(
		`SELECT user_id FROM chain_ping_optin WHERE guild_id = ?`,
		guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ClearChainOptIns removes all opt-ins for a guild and returns how many
// rows were deleted. Called when the chain watcher stops.
func (r *Repository) ClearChainOptIns(guildID string) (int64, error) {
	result, err := r.db.Exec(
		`DELETE FROM chain_ping_optin WHERE guild_id = ?`,
		guildID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Roster operations

// RosterUpsertExpected inserts the expected signups for an hour as pending.
// Existing rows are preserved so later re-loads never reset progress.
func (r *Repository) RosterUpsertExpected(guildID, day string, hour int, slots []RosterSlot) error {
	for _, s := range slots {
		_, err := r.db.Exec(
			`INSERT OR IGNORE INTO roster_hours (guild_id, day, hour, slot, name, state)
			 VALUES (?, ?, ?, ?, ?, 'pending')`,
			guildID, day, hour, s.Slot, s.Name,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// RosterMarkMissed moves every still-pending slot of an hour to missed
func (r *Repository) RosterMarkMissed(guildID, day string, hour int) error {
	_, err := r.db.Exec(
		`UPDATE roster_hours SET state = 'missed'
		 WHERE guild_id = ? AND day = ? AND hour = ? AND state = 'pending'`,
		guildID, day, hour,
	)
	return err
}

// RosterMarkUnknown marks a slot whose name could not be matched to a member
func (r *Repository) RosterMarkUnknown(guildID, day string, hour, slot int, name string) error {
	_, err := r.db.Exec(
		`UPDATE roster_hours SET state = 'unknown'
		 WHERE guild_id = ? AND day = ? AND hour = ? AND slot = ? AND name = ? AND state = 'pending'`,
		guildID, day, hour, slot, name,
	)
	return err
}

// RosterMarkOnline records the first online-like sighting for a slot.
// The state guard makes first_seen_ts and late_minutes set-once: a record
// that already left pending is never updated again.
func (r *Repository) RosterMarkOnline(guildID, day string, hour, slot int, name string, seenTS, lateMinutes int64) error {
	state := RosterOnline
	if lateMinutes > 0 {
		state = RosterLate
	}
	_, err := r.db.Exec(
		`UPDATE roster_hours SET state = ?, first_seen_ts = ?, late_minutes = ?
		 WHERE guild_id = ? AND day = ? AND hour = ? AND slot = ? AND name = ? AND state = 'pending'`,
		string(state), seenTS, lateMinutes, guildID, day, hour, slot, name,
	)
	return err
}

// RosterPendingSlots returns the slots of an hour still awaiting a sighting
func (r *Repository) RosterPendingSlots(guildID, day string, hour int) ([]RosterSlot, error) {
	rows, err := r.db.Query(
		`SELECT slot, name FROM roster_hours
		 WHERE guild_id = ? AND day = ? AND hour = ? AND state = 'pending'
		 ORDER BY slot, name`,
		guildID, day, hour,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RosterSlot
	for rows.Next() {
		var s RosterSlot
		if err := rows.Scan(&s.Slot, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RosterGet returns one roster record (used by tests and reports)
func (r *Repository) RosterGet(guildID, day string, hour, slot int, name string) (*RosterHourRecord, error) {
	rec := &RosterHourRecord{GuildID: guildID, Day: day, Hour: hour, Slot: slot, Name: name}
	var state string
	err := r.db.QueryRow(
		`SELECT state, first_seen_ts, late_minutes FROM roster_hours
		 WHERE guild_id = ? AND day = ? AND hour = ? AND slot = ? AND name = ?`,
		guildID, day, hour, slot, name,
	).Scan(&state, &rec.FirstSeenTS, &rec.LateMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.State = RosterState(state)
	return rec, nil
}

// RosterReport sums late/missed totals per name, optionally from a day
// (inclusive) onward. Ordered worst-first.
func (r *Repository) RosterReport(guildID, dayFrom string) ([]RosterReportRow, error) {
	query := `SELECT name,
			SUM(CASE WHEN state = 'late' THEN 1 ELSE 0 END),
			SUM(CASE WHEN state = 'missed' THEN 1 ELSE 0 END),
			SUM(late_minutes)
		 FROM roster_hours WHERE guild_id = ?`
	args := []any{guildID}
	if dayFrom != "" {
		query += ` AND day >= ?`
		args = append(args, dayFrom)
	}
	query += ` GROUP BY name
		 HAVING SUM(CASE WHEN state IN ('late', 'missed') THEN 1 ELSE 0 END) > 0
		 ORDER BY 3 DESC, 2 DESC, name`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RosterReportRow
	for rows.Next() {
		var row RosterReportRow
		if err := rows.Scan(&row.Name, &row.Late, &row.Missed, &row.LateMinutes); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// User API key operations

// UpsertUserKey encrypts and stores a user's Torn API key
func (r *Repository) UpsertUserKey(discordUserID, apiKey string) error {
	if r.cipher == nil {
		return ErrNoMasterKey
	}
	enc, err := r.cipher.encrypt(apiKey)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	_, err = r.db.Exec(
		`INSERT INTO user_keys (discord_user_id, api_key_enc, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(discord_user_id) DO UPDATE SET
			api_key_enc = excluded.api_key_enc,
			updated_at = excluded.updated_at`,
		discordUserID, enc, now, now,
	)
	return err
}

// GetUserKey decrypts and returns a user's stored API key, or "" when absent
func (r *Repository) GetUserKey(discordUserID string) (string, error) {
	if r.cipher == nil {
		return "", ErrNoMasterKey
	}
	var enc []byte
	err := r.db.QueryRow(
		`SELECT api_key_enc FROM user_keys WHERE discord_user_id = ?`,
		discordUserID,
	).Scan(&enc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return r.cipher.decrypt(enc)
}

// DeleteUserKey removes a stored key. Returns whether a row was deleted.
func (r *Repository) DeleteUserKey(discordUserID string) (bool, error) {
	result, err := r.db.Exec(
		`DELETE FROM user_keys WHERE discord_user_id = ?`,
		discordUserID,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}
