package torn

import (
	"context"
	"net/url"
	"strconv"
)

// PlayerRef identifies one side of an attack
type PlayerRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Attack is one outgoing faction attack record
type Attack struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Started     int64      `json:"started"`
	Ended       int64      `json:"ended"`
	Attacker    *PlayerRef `json:"attacker"`
	Defender    *PlayerRef `json:"defender"`
	Result      string     `json:"result"`
	RespectGain float64    `json:"respect_gain"`
	RespectLoss float64    `json:"respect_loss"`
	IsRankedWar bool       `json:"is_ranked_war"`
	Modifiers   struct {
		FairFight *float64 `json:"fair_fight"`
	} `json:"modifiers"`
}

// AttacksPage is one page of the reverse-chronological attack feed
type AttacksPage struct {
	Attacks  []Attack `json:"attacks"`
	Metadata struct {
		Links struct {
			Prev string `json:"prev"`
			Next string `json:"next"`
		} `json:"links"`
	} `json:"_metadata"`
}

// PrevCursor extracts the "to" pagination value from the previous-page link.
// Returns nil when there is no older page.
func (p *AttacksPage) PrevCursor() *int64 {
	return extractToParam(p.Metadata.Links.Prev)
}

func extractToParam(prevURL string) *int64 {
	if prevURL == "" {
		return nil
	}
	u, err := url.Parse(prevURL)
	if err != nil {
		return nil
	}
	raw := u.Query().Get("to")
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// FetchAttacks fetches one page of outgoing faction attacks, newest first.
// A nil "to" cursor requests the newest page.
func (c *Client) FetchAttacks(ctx context.Context, limit int, to *int64) (*AttacksPage, error) {
	params := url.Values{
		"filters": {"outgoing"},
		"sort":    {"DESC"},
		"limit":   {strconv.Itoa(limit)},
	}
	if to != nil {
		params.Set("to", strconv.FormatInt(*to, 10))
	}

	var page AttacksPage
	if err := c.get(ctx, "/faction/attacks", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
