package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Ballot is one voter's current choice.
type Ballot struct {
	Voter  int64 `json:"voter"`
	Target int64 `json:"target"`
}

// VotingRound is a timed ballot window. Votes holds at most one ballot per voter.
type VotingRound struct {
	ID       uuid.UUID `json:"id"`
	Active   bool      `json:"active"`
	Votes    []Ballot  `json:"votes"`
	OpenedAt time.Time `json:"openedAt"`
	Deadline time.Time `json:"deadline"`
}

// NewVotingRound opens a round at now that closes after d.
func NewVotingRound(now time.Time, d time.Duration) *VotingRound {
	return &VotingRound{
		ID:       uuid.New(),
		Active:   true,
		Votes:    []Ballot{},
		OpenedAt: now,
		Deadline: now.Add(d),
	}
}

// Cast records voter's ballot, replacing any earlier one. It returns the previous target, if any.
func (r *VotingRound) Cast(voter, target int64) (previous int64, replaced bool) {
	for i := range r.Votes {
		if r.Votes[i].Voter == voter {
			previous = r.Votes[i].Target
			r.Votes[i].Target = target
			return previous, true
		}
	}
	r.Votes = append(r.Votes, Ballot{Voter: voter, Target: target})
	return 0, false
}

// TargetOf returns the current ballot of voter.
func (r *VotingRound) TargetOf(voter int64) (int64, bool) {
	for _, b := range r.Votes {
		if b.Voter == voter {
			return b.Target, true
		}
	}
	return 0, false
}

// Counts returns the number of ballots per target.
func (r *VotingRound) Counts() map[int64]int {
	counts := make(map[int64]int, len(r.Votes))
	for _, b := range r.Votes {
		counts[b.Target]++
	}
	return counts
}

// Clone returns a deep copy of the round.
func (r *VotingRound) Clone() *VotingRound {
	c := *r
	c.Votes = slices.Clone(r.Votes)
	return &c
}
