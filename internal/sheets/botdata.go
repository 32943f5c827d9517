// Package sheets reads the faction's published roster sheet. The sheet is
// exported as CSV from Google Sheets and lists who signed up for which
// chain-watch hour.
package sheets

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// BotDataRow is one signup row: a member holds a slot for one UTC hour of a day
type BotDataRow struct {
	Day       string // normalized YYYY-MM-DD
	StartHour int    // 0-23 (UTC)
	Slot      int
	Name      string
}

// Client fetches and parses the published bot-data CSV
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a sheets client for the published CSV URL
func NewClient(url string) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// FetchRoster downloads the sheet and returns the parsed signup rows.
// Rows that cannot be parsed are skipped with a warning rather than
// failing the whole fetch.
func (c *Client) FetchRoster(ctx context.Context) ([]BotDataRow, error) {
	if c.url == "" {
		return nil, fmt.Errorf("no bot data sheet URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sheet returned status %d", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	return parseRows(records), nil
}

// parseRows converts raw CSV records into signup rows. Expected columns are
// day, hour, slot, name; a header row is detected by its unparseable hour.
func parseRows(records [][]string) []BotDataRow {
	var rows []BotDataRow
	for i, rec := range records {
		if len(rec) < 4 {
			continue
		}
		day, dayOK := normalizeDay(rec[0])
		hour, hourOK := parseHour(rec[1])
		slot, slotErr := strconv.Atoi(strings.TrimSpace(rec[2]))
		name := strings.TrimSpace(rec[3])

		if !dayOK || !hourOK || slotErr != nil || name == "" {
			// First row is usually the header
			if i > 0 {
				slog.Warn("Skipping malformed roster row", "row", i, "record", rec)
			}
			continue
		}
		rows = append(rows, BotDataRow{Day: day, StartHour: hour, Slot: slot, Name: name})
	}
	return rows
}

// normalizeDay accepts the date formats the sheet has historically used and
// normalizes them to YYYY-MM-DD. A trailing time component is dropped.
func normalizeDay(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if idx := strings.IndexAny(s, " T"); idx > 0 {
		s = s[:idx]
	}
	if s == "" {
		return "", false
	}

	formats := []string{"2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006"}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// parseHour accepts "16", "16.0", "16:00" and "16:00-17:00"
func parseHour(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if idx := strings.Index(s, "-"); idx > 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, ":"); idx > 0 {
		s = s[:idx]
	}
	if idx := strings.Index(s, "."); idx > 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	hour, err := strconv.Atoi(s)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}
