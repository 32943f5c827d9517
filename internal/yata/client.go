// Package yata talks to the community-run YATA API for foreign stock data.
package yata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// DefaultBaseURL is the public YATA API root
const DefaultBaseURL = "https://yata.yt/api/v1"

// StockItem is one item stocked in a foreign country
type StockItem struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Cost     int64  `json:"cost"`
}

// CountryStocks is the stock listing for one country
type CountryStocks struct {
	Update int64       `json:"update"`
	Stocks []StockItem `json:"stocks"`
}

// Export is the full travel export keyed by country code
type Export struct {
	Stocks map[string]CountryStocks `json:"stocks"`
}

// countryNames maps YATA country codes to display names
var countryNames = map[string]string{
	"arg": "Argentina",
	"can": "Canada",
	"cay": "Cayman Islands",
	"chi": "China",
	"haw": "Hawaii",
	"jap": "Japan",
	"mex": "Mexico",
	"sou": "South Africa",
	"swi": "Switzerland",
	"uae": "UAE",
	"uni": "United Kingdom",
}

// CountryName returns the display name for a country code, or the code itself
// when it is not recognized.
func CountryName(code string) string {
	if name, ok := countryNames[code]; ok {
		return name
	}
	return code
}

// Client fetches the YATA travel export behind a short cache. Stock data only
// refreshes every few minutes upstream, so hammering the export is pointless.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cacheTTL   time.Duration

	mu        sync.Mutex
	cached    *Export
	fetchedAt time.Time
	now       func() time.Time
}

// NewClient creates a YATA client with a 60 second export cache
func NewClient() *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheTTL: 60 * time.Second,
		now:      time.Now,
	}
}

// TravelExport returns the current foreign stock export, served from cache
// when fresh enough.
func (c *Client) TravelExport(ctx context.Context) (*Export, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.now().Sub(c.fetchedAt) <= c.cacheTTL {
		return c.cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/travel/export/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch travel export: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yata returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var export Export
	if err := json.Unmarshal(body, &export); err != nil {
		return nil, fmt.Errorf("failed to parse travel export: %w", err)
	}

	c.cached = &export
	c.fetchedAt = c.now()
	return &export, nil
}
