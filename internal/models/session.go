// internal/models/session.go
package models

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// GlobalRoomID is the single room shared by every private chat.
const GlobalRoomID int64 = 0

// Default settings applied to new sessions and to persisted sessions missing a field.
const (
	DefaultMinPlayers      = 4
	DefaultVoteTimeSeconds = 120
)

// Settings captures the per-room configuration that survives resets.
type Settings struct {
	MinPlayers      int  `json:"minPlayers"`
	VoteTimeSeconds int  `json:"voteTimeSeconds"`
	OnlineMode      bool `json:"onlineMode"`
}

// DefaultSettings returns the settings a brand new room starts with.
func DefaultSettings() Settings {
	return Settings{
		MinPlayers:      DefaultMinPlayers,
		VoteTimeSeconds: DefaultVoteTimeSeconds,
		OnlineMode:      false,
	}
}

// VoteDuration returns the configured voting window.
func (s Settings) VoteDuration() time.Duration {
	return time.Duration(s.VoteTimeSeconds) * time.Second
}

// Session is the full state of one room. It is serialized as-is into the session store.
type Session struct {
	RoomID         int64   `json:"roomId"`
	OwnerAdminID   *int64  `json:"ownerAdminId,omitempty"`
	PromotedAdmins []int64 `json:"promotedAdmins"`

	// Players keeps join order; numbering shown to users follows it.
	Players []Player `json:"players"`

	Imposters        []int64      `json:"imposters"`
	Topic            string       `json:"topic"`
	Started          bool         `json:"started"`
	RolesDistributed bool         `json:"rolesDistributed"`
	VotingRound      *VotingRound `json:"votingRound,omitempty"`

	CustomGroupLink   string `json:"customGroupLink,omitempty"`
	TrackedMessageIDs []int  `json:"trackedMessageIds"`

	Settings  Settings  `json:"settings"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSession builds an empty lobby for roomID with default settings.
func NewSession(roomID int64, now time.Time) *Session {
	return &Session{
		RoomID:            roomID,
		PromotedAdmins:    []int64{},
		Players:           []Player{},
		Imposters:         []int64{},
		TrackedMessageIDs: []int{},
		Settings:          DefaultSettings(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// IsPrivate reports whether the session is the collapsed private-chat lobby.
func (s *Session) IsPrivate() bool {
	return s.RoomID == GlobalRoomID
}

// Migrate defaults fields that older persisted sessions may be missing.
// It reports whether anything changed.
func (s *Session) Migrate() bool {
	changed := false
	if s.Settings.MinPlayers < 1 {
		s.Settings.MinPlayers = DefaultMinPlayers
		changed = true
	}
	if s.Settings.VoteTimeSeconds <= 0 {
		s.Settings.VoteTimeSeconds = DefaultVoteTimeSeconds
		changed = true
	}
	if s.PromotedAdmins == nil {
		s.PromotedAdmins = []int64{}
		changed = true
	}
	if s.Players == nil {
		s.Players = []Player{}
		changed = true
	}
	if s.Imposters == nil {
		s.Imposters = []int64{}
		changed = true
	}
	if s.TrackedMessageIDs == nil {
		s.TrackedMessageIDs = []int{}
		changed = true
	}
	return changed
}

// PlayerIndex returns the roster position of id, or -1.
func (s *Session) PlayerIndex(id int64) int {
	return slices.IndexFunc(s.Players, func(p Player) bool { return p.ID == id })
}

// Player returns a pointer into the roster for id.
func (s *Session) Player(id int64) (*Player, bool) {
	idx := s.PlayerIndex(id)
	if idx < 0 {
		return nil, false
	}
	return &s.Players[idx], true
}

// FindPlayer resolves a command reference: "@username" (case-insensitive) or a numeric user id.
func (s *Session) FindPlayer(ref string) (*Player, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, false
	}
	if name, ok := strings.CutPrefix(ref, "@"); ok {
		for i := range s.Players {
			if strings.EqualFold(s.Players[i].Username, name) {
				return &s.Players[i], true
			}
		}
		return nil, false
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return nil, false
	}
	return s.Player(id)
}

// RemovePlayer drops id from the roster, reporting whether it was present.
func (s *Session) RemovePlayer(id int64) bool {
	idx := s.PlayerIndex(id)
	if idx < 0 {
		return false
	}
	s.Players = slices.Delete(s.Players, idx, idx+1)
	return true
}

// IsImposter reports whether id was selected as an imposter this game.
func (s *Session) IsImposter(id int64) bool {
	return slices.Contains(s.Imposters, id)
}

// IsPromoted reports whether id was granted admin via the secret.
func (s *Session) IsPromoted(id int64) bool {
	return slices.Contains(s.PromotedAdmins, id)
}

// ActivePlayers returns the non-eliminated players in roster order.
func (s *Session) ActivePlayers() []Player {
	active := make([]Player, 0, len(s.Players))
	for _, p := range s.Players {
		if !p.Eliminated {
			active = append(active, p)
		}
	}
	return active
}

// PlayersByID returns roster entries for ids, skipping unknown ids, in roster order.
func (s *Session) PlayersByID(ids []int64) []Player {
	out := make([]Player, 0, len(ids))
	for _, p := range s.Players {
		if slices.Contains(ids, p.ID) {
			out = append(out, p)
		}
	}
	return out
}

// Remaining counts non-eliminated imposters and innocents.
func (s *Session) Remaining() (imposters, innocents int) {
	for _, p := range s.Players {
		if p.Eliminated {
			continue
		}
		if s.IsImposter(p.ID) {
			imposters++
		} else {
			innocents++
		}
	}
	return imposters, innocents
}

// VotingActive reports whether a round is currently accepting ballots.
func (s *Session) VotingActive() bool {
	return s.VotingRound != nil && s.VotingRound.Active
}

// ClearGame returns the session to an open lobby while keeping the roster,
// settings and admins. Elimination flags are cleared so the roster can play again.
func (s *Session) ClearGame() {
	s.Started = false
	s.RolesDistributed = false
	s.Topic = ""
	s.Imposters = []int64{}
	s.VotingRound = nil
	for i := range s.Players {
		s.Players[i].Eliminated = false
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *Session) Clone() *Session {
	c := *s
	if s.OwnerAdminID != nil {
		owner := *s.OwnerAdminID
		c.OwnerAdminID = &owner
	}
	c.PromotedAdmins = slices.Clone(s.PromotedAdmins)
	c.Players = slices.Clone(s.Players)
	c.Imposters = slices.Clone(s.Imposters)
	c.TrackedMessageIDs = slices.Clone(s.TrackedMessageIDs)
	if s.VotingRound != nil {
		c.VotingRound = s.VotingRound.Clone()
	}
	return &c
}
