package torn

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := NewClient("test-key", WithBaseURL(server.URL))
	c.minInterval = 0 // no rate limiting in tests
	return c
}

func TestFetchAttacksParsesPage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/faction/attacks", r.URL.Path)
		assert.Equal(t, "outgoing", r.URL.Query().Get("filters"))
		assert.Equal(t, "DESC", r.URL.Query().Get("sort"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "ApiKey test-key", r.Header.Get("Authorization"))

		fmt.Fprint(w, `{
			"attacks": [
				{
					"id": 9001,
					"started": 1756600000,
					"attacker": {"id": 100, "name": "Rick"},
					"defender": {"id": 200, "name": "Enemy"},
					"result": "Attacked",
					"respect_gain": 4.2,
					"is_ranked_war": true,
					"modifiers": {"fair_fight": 1.75}
				}
			],
			"_metadata": {
				"links": {
					"prev": "https://api.torn.com/v2/faction/attacks?limit=100&sort=DESC&to=1756599999",
					"next": ""
				}
			}
		}`)
	})

	page, err := client.FetchAttacks(context.Background(), 100, nil)
	require.NoError(t, err)
	require.Len(t, page.Attacks, 1)

	a := page.Attacks[0]
	assert.Equal(t, int64(9001), a.ID)
	assert.Equal(t, int64(100), a.Attacker.ID)
	assert.True(t, a.IsRankedWar)
	require.NotNil(t, a.Modifiers.FairFight)
	assert.InDelta(t, 1.75, *a.Modifiers.FairFight, 1e-9)

	cursor := page.PrevCursor()
	require.NotNil(t, cursor)
	assert.Equal(t, int64(1756599999), *cursor)
}

func TestFetchAttacksForwardsCursor(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1756599999", r.URL.Query().Get("to"))
		fmt.Fprint(w, `{"attacks": [], "_metadata": {"links": {"prev": "", "next": ""}}}`)
	})

	to := int64(1756599999)
	page, err := client.FetchAttacks(context.Background(), 100, &to)
	require.NoError(t, err)
	assert.Empty(t, page.Attacks)
	assert.Nil(t, page.PrevCursor(), "empty prev link means no older page")
}

func TestAPIErrorEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"code": 2, "error": "Incorrect key"}}`)
	})

	_, err := client.FetchChain(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 2, apiErr.Code)
	assert.Equal(t, "Incorrect key", apiErr.Message)
}

func TestMalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `this is not json`)
	})

	_, err := client.FetchChain(context.Background())
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestFetchChainNoActiveChain(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chain": {"id": 0, "current": 0, "max": 10, "timeout": 0}}`)
	})

	chain, err := client.FetchChain(context.Background())
	require.NoError(t, err)
	assert.Nil(t, chain)
}

func TestFetchChainActive(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/faction/chain", r.URL.Path)
		fmt.Fprint(w, `{"chain": {"id": 77, "current": 142, "max": 250, "timeout": 120, "modifier": 1.4}}`)
	})

	chain, err := client.FetchChain(context.Background())
	require.NoError(t, err)
	require.NotNil(t, chain)
	assert.Equal(t, int64(77), chain.ID)
	assert.Equal(t, 142, chain.Current)
	assert.Equal(t, 120, chain.Timeout)
}

func TestFetchRankedWarStart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"wars": {"ranked": {"start": 1756500000}}}`)
	})

	start, err := client.FetchRankedWarStart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1756500000), start)
}

func TestFetchRankedWarStartMissing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"wars": {"ranked": null}}`)
	})

	_, err := client.FetchRankedWarStart(context.Background())
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestExtractToParam(t *testing.T) {
	tests := []struct {
		url  string
		want *int64
	}{
		{"", nil},
		{"https://api.torn.com/v2/faction/attacks?limit=100", nil},
		{"https://api.torn.com/v2/faction/attacks?to=notanumber", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractToParam(tt.url), "url %q", tt.url)
	}

	got := extractToParam("https://api.torn.com/v2/faction/attacks?limit=100&to=12345")
	require.NotNil(t, got)
	assert.Equal(t, int64(12345), *got)
}

func TestWarStartCacheTTL(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprintf(w, `{"wars": {"ranked": {"start": %d}}}`, 1000+calls)
	})

	cache := NewWarStartCache(client, 120*time.Second)
	now := time.Unix(1770000000, 0)
	cache.now = func() time.Time { return now }

	start, err := cache.WarStart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1001), start)

	// Within the TTL the cached value is served
	now = now.Add(60 * time.Second)
	start, err = cache.WarStart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1001), start)
	assert.Equal(t, 1, calls)

	// Past the TTL it refetches
	now = now.Add(61 * time.Second)
	start, err = cache.WarStart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1002), start)
	assert.Equal(t, 2, calls)
}
