package models

import "time"

// Winner names the side that won a finished game.
type Winner string

const (
	WinnerNone      Winner = "none"
	WinnerInnocents Winner = "innocents"
	WinnerImposters Winner = "imposters"
)

// ImposterCount is the number of imposters a roster of n players gets: 25%, at least one.
func ImposterCount(n int) int {
	return max(1, n/4)
}

// VotingStatus summarizes an open round for status views.
type VotingStatus struct {
	RoundID   string    `json:"roundId"`
	VotesCast int       `json:"votesCast"`
	Eligible  int       `json:"eligible"`
	Deadline  time.Time `json:"deadline"`
}

// Status is the read-only projection of a session. Topic and Imposters are
// secret while a game runs; chat surfaces must not render them.
type Status struct {
	RoomID           int64         `json:"roomId"`
	Players          []Player      `json:"players"`
	TotalPlayers     int           `json:"totalPlayers"`
	ImposterCount    int           `json:"imposters"`
	Imposters        []int64       `json:"imposterIds,omitempty"`
	Topic            string        `json:"topic"`
	Started          bool          `json:"started"`
	RolesDistributed bool          `json:"rolesDistributed"`
	Settings         Settings      `json:"settings"`
	GroupLink        string        `json:"groupLink,omitempty"`
	Voting           *VotingStatus `json:"voting,omitempty"`
	ActiveImposters  int           `json:"activeImposters"`
	ActiveInnocents  int           `json:"activeInnocents"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// StatusOf projects s. The imposter count reflects the game in progress, or the
// count the current roster would get when no game is running.
func StatusOf(s *Session) Status {
	st := Status{
		RoomID:           s.RoomID,
		Players:          append([]Player(nil), s.Players...),
		TotalPlayers:     len(s.Players),
		ImposterCount:    ImposterCount(len(s.Players)),
		Topic:            s.Topic,
		Started:          s.Started,
		RolesDistributed: s.RolesDistributed,
		Settings:         s.Settings,
		GroupLink:        s.CustomGroupLink,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	if s.Started {
		st.ImposterCount = len(s.Imposters)
		st.Imposters = append([]int64(nil), s.Imposters...)
		st.ActiveImposters, st.ActiveInnocents = s.Remaining()
	}
	if s.VotingActive() {
		st.Voting = &VotingStatus{
			RoundID:   s.VotingRound.ID.String(),
			VotesCast: len(s.VotingRound.Votes),
			Eligible:  len(s.ActivePlayers()),
			Deadline:  s.VotingRound.Deadline,
		}
	}
	return st
}

// GameResult is the record of a finished game handed to history recorders.
type GameResult struct {
	RoomID     int64     `json:"room_id"`
	Topic      string    `json:"topic"`
	Winner     Winner    `json:"winner"`
	Imposters  []int64   `json:"imposters"`
	Players    []int64   `json:"players"`
	Eliminated []int64   `json:"eliminated"`
	EndedAt    time.Time `json:"ended_at"`
}

// ResultOf captures a GameResult from s before its game fields are cleared.
func ResultOf(s *Session, winner Winner, now time.Time) GameResult {
	res := GameResult{
		RoomID:     s.RoomID,
		Topic:      s.Topic,
		Winner:     winner,
		Imposters:  append([]int64{}, s.Imposters...),
		Players:    make([]int64, 0, len(s.Players)),
		Eliminated: []int64{},
		EndedAt:    now,
	}
	for _, p := range s.Players {
		res.Players = append(res.Players, p.ID)
		if p.Eliminated {
			res.Eliminated = append(res.Eliminated, p.ID)
		}
	}
	return res
}
