package models

import (
	"fmt"
	"time"
)

// Player is a lobby member identified by their chat user id.
type Player struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"firstName,omitempty"`
	JoinedAt  time.Time `json:"joinedAt"`

	// Eliminated is only flipped by a vote tally and cleared when the game ends.
	Eliminated bool `json:"eliminated"`
}

// DisplayName returns @username when known, then the first name, then a generic label.
func (p Player) DisplayName() string {
	if p.Username != "" {
		return "@" + p.Username
	}
	if p.FirstName != "" {
		return p.FirstName
	}
	return fmt.Sprintf("User%d", p.ID)
}

// Ref returns the token players use to point at this player in commands.
func (p Player) Ref() string {
	if p.Username != "" {
		return "@" + p.Username
	}
	return fmt.Sprintf("%d", p.ID)
}
