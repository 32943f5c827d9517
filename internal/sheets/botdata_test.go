package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDay(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"2026-08-31", "2026-08-31", true},
		{"2026/08/31", "2026-08-31", true},
		{"31/08/2026", "2026-08-31", true},
		{"08/31/2026", "2026-08-31", true},
		{"2026-08-31 16:00", "2026-08-31", true},
		{"2026-08-31T16:00:00", "2026-08-31", true},
		{"yesterday", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := normalizeDay(tt.raw)
		assert.Equal(t, tt.ok, ok, "raw %q", tt.raw)
		assert.Equal(t, tt.want, got, "raw %q", tt.raw)
	}
}

func TestParseHour(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"16", 16, true},
		{"16.0", 16, true},
		{"16:00", 16, true},
		{"16:00-17:00", 16, true},
		{"0", 0, true},
		{"23", 23, true},
		{"24", 0, false},
		{"-1", 0, false},
		{"noon", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseHour(tt.raw)
		assert.Equal(t, tt.ok, ok, "raw %q", tt.raw)
		assert.Equal(t, tt.want, got, "raw %q", tt.raw)
	}
}

func TestParseRowsSkipsMalformed(t *testing.T) {
	records := [][]string{
		{"Day", "Hour", "Slot", "Name"}, // header
		{"2026-08-31", "16", "1", "Rick"},
		{"2026-08-31", "16:00-17:00", "2", "Daryl"},
		{"not a date", "16", "1", "Glenn"},
		{"2026-08-31", "16", "one", "Carol"},
		{"2026-08-31", "16", "3", ""},
		{"2026-08-31"}, // short row
	}
	rows := parseRows(records)
	require.Len(t, rows, 2)
	assert.Equal(t, BotDataRow{Day: "2026-08-31", StartHour: 16, Slot: 1, Name: "Rick"}, rows[0])
	assert.Equal(t, BotDataRow{Day: "2026-08-31", StartHour: 16, Slot: 2, Name: "Daryl"}, rows[1])
}

func TestFetchRoster(t *testing.T) {
	csv := "Day,Hour,Slot,Name\n2026-08-31,16,1,Rick\n2026-08-31,17,1,Daryl\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(csv))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	rows, err := client.FetchRoster(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Rick", rows[0].Name)
	assert.Equal(t, 17, rows[1].StartHour)
}

func TestFetchRosterNoURL(t *testing.T) {
	client := NewClient("")
	_, err := client.FetchRoster(context.Background())
	assert.Error(t, err)
}

func TestFetchRosterHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.FetchRoster(context.Background())
	assert.Error(t, err)
}
