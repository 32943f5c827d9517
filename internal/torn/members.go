package torn

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// LastAction describes a member's most recent in-game activity
type LastAction struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Relative  string `json:"relative"`
}

// Member is one faction member from the member directory
type Member struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Level         int        `json:"level"`
	LastAction    LastAction `json:"last_action"`
	ReviveSetting string     `json:"revive_setting"`
	Status        struct {
		State       string `json:"state"`
		Description string `json:"description"`
	} `json:"status"`
}

// OnlineLike reports whether the member counts as present in-game
// (online or idle, not offline).
func (m Member) OnlineLike() bool {
	s := strings.ToLower(strings.TrimSpace(m.LastAction.Status))
	return s == "online" || s == "idle"
}

// FetchMembers returns the faction member directory
func (c *Client) FetchMembers(ctx context.Context) ([]Member, error) {
	var payload struct {
		Members []Member `json:"members"`
	}
	if err := c.get(ctx, "/faction/members", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Members, nil
}

// UserStatus is the live status block of a single user
type UserStatus struct {
	State       string `json:"state"`
	Description string `json:"description"`
	Until       int64  `json:"until"`
}

// FetchUserStatus fetches the live status of one user (used for target probing)
func (c *Client) FetchUserStatus(ctx context.Context, userID int64) (*UserStatus, error) {
	params := url.Values{
		"id":         {strconv.FormatInt(userID, 10)},
		"selections": {"basic"},
	}
	var payload struct {
		Status *UserStatus `json:"status"`
		Basic  *struct {
			Status *UserStatus `json:"status"`
		} `json:"basic"`
	}
	if err := c.get(ctx, "/user", params, &payload); err != nil {
		return nil, err
	}
	if payload.Status != nil {
		return payload.Status, nil
	}
	if payload.Basic != nil && payload.Basic.Status != nil {
		return payload.Basic.Status, nil
	}
	return &UserStatus{}, nil
}

// BalanceMember is one member's vault balance entry
type BalanceMember struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Money    int64  `json:"money"`
	Points   int64  `json:"points"`
}

// FetchBalance returns the faction vault balances per member
func (c *Client) FetchBalance(ctx context.Context) ([]BalanceMember, error) {
	var payload struct {
		Balance struct {
			Members []BalanceMember `json:"members"`
		} `json:"balance"`
	}
	if err := c.get(ctx, "/faction/balance", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Balance.Members, nil
}
