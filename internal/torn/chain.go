package torn

import "context"

// Chain is a snapshot of the faction's active chain
type Chain struct {
	ID       int64   `json:"id"`
	Current  int     `json:"current"`
	Max      int     `json:"max"`
	Timeout  int     `json:"timeout"`
	Modifier float64 `json:"modifier"`
	Cooldown int     `json:"cooldown"`
	Start    int64   `json:"start"`
	End      int64   `json:"end"`
}

// FetchChain returns the active chain snapshot, or nil when no chain is
// currently running.
func (c *Client) FetchChain(ctx context.Context) (*Chain, error) {
	var payload struct {
		Chain *Chain `json:"chain"`
	}
	if err := c.get(ctx, "/faction/chain", nil, &payload); err != nil {
		return nil, err
	}
	if payload.Chain == nil || payload.Chain.ID <= 0 {
		return nil, nil
	}
	return payload.Chain, nil
}
