// internal/game/voting.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/imposter/internal/models"
)

// TallyResult describes how a closed round resolved.
type TallyResult struct {
	RoundID     uuid.UUID
	BallotsCast int

	// NoVotes is set when nobody voted; nobody is eliminated then.
	NoVotes     bool
	Eliminated  *models.Player
	Votes       int
	WasImposter bool

	Winner             models.Winner
	RemainingImposters int
	RemainingInnocents int
}

// Voting is the ballot bookkeeping for a session: opening a round, recording
// ballots and closing it exactly once. Callers hold the room lock.
type Voting struct{}

// Open starts a round closing VoteTimeSeconds after now.
func (Voting) Open(s *models.Session, now time.Time) (*models.VotingRound, error) {
	if !s.RolesDistributed {
		return nil, ErrNoActiveGame
	}
	if s.VotingActive() {
		return nil, ErrVotingInProgress
	}
	s.VotingRound = models.NewVotingRound(now, s.Settings.VoteDuration())
	return s.VotingRound, nil
}

// Record stores voter's ballot for target, overwriting an earlier ballot.
func (Voting) Record(s *models.Session, voterID, targetID int64) (target models.Player, replaced bool, err error) {
	if !s.VotingActive() {
		return models.Player{}, false, ErrNoActiveVoting
	}
	voter, ok := s.Player(voterID)
	if !ok || voter.Eliminated {
		return models.Player{}, false, ErrIneligible
	}
	t, ok := s.Player(targetID)
	if !ok || t.Eliminated {
		return models.Player{}, false, ErrInvalidTarget
	}
	_, replaced = s.VotingRound.Cast(voterID, targetID)
	return *t, replaced, nil
}

// Close ends the round identified by roundID (uuid.Nil means whichever round is open),
// tallies it and applies the elimination. The first call flips Active to false; any
// later call for the same round finds it closed and reports ok=false without side effects.
func (Voting) Close(s *models.Session, roundID uuid.UUID) (res TallyResult, ok bool) {
	round := s.VotingRound
	if round == nil || !round.Active {
		return TallyResult{}, false
	}
	if roundID != uuid.Nil && round.ID != roundID {
		return TallyResult{}, false
	}
	round.Active = false

	res = TallyResult{RoundID: round.ID, BallotsCast: len(round.Votes), Winner: models.WinnerNone}
	target, votes := leader(s, round)
	s.VotingRound = nil

	if votes == 0 {
		res.NoVotes = true
		res.RemainingImposters, res.RemainingInnocents = s.Remaining()
		return res, true
	}

	p, _ := s.Player(target)
	p.Eliminated = true
	eliminated := *p

	res.Eliminated = &eliminated
	res.Votes = votes
	res.WasImposter = s.IsImposter(target)
	res.Winner = EvaluateWinner(s)
	res.RemainingImposters, res.RemainingInnocents = s.Remaining()
	return res, true
}

// leader returns the active player with the most ballots. Ties go to whoever
// joined first; zero ballots means no leader.
func leader(s *models.Session, round *models.VotingRound) (int64, int) {
	counts := round.Counts()
	var best int64
	bestVotes := 0
	for _, p := range s.Players {
		if p.Eliminated {
			continue
		}
		if c := counts[p.ID]; c > bestVotes {
			best, bestVotes = p.ID, c
		}
	}
	return best, bestVotes
}

// EvaluateWinner applies the win condition to the non-eliminated roster.
func EvaluateWinner(s *models.Session) models.Winner {
	imposters, innocents := s.Remaining()
	switch {
	case imposters == 0:
		return models.WinnerInnocents
	case imposters >= innocents:
		return models.WinnerImposters
	default:
		return models.WinnerNone
	}
}
