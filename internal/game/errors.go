package game

import "errors"

// Kind classifies every failure an operation can report.
type Kind string

const (
	KindNone                Kind = ""
	KindUnauthorized        Kind = "unauthorized"
	KindInsufficientPlayers Kind = "insufficient_players"
	KindAlreadyDistributed  Kind = "already_distributed"
	KindGameInProgress      Kind = "game_in_progress"
	KindNoActiveGame        Kind = "no_active_game"
	KindNoActiveVoting      Kind = "no_active_voting"
	KindVotingInProgress    Kind = "voting_in_progress"
	KindIneligible          Kind = "ineligible"
	KindInvalidTarget       Kind = "invalid_target"
	KindNotFound            Kind = "not_found"
	KindInvalidSetting      Kind = "invalid_setting"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindPersistence         Kind = "persistence_failure"
	KindInternal            Kind = "internal"
)

// Error is a classified operation failure.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Is matches any *Error of the same Kind, so wrapped detail errors still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized        = &Error{KindUnauthorized, "admin only"}
	ErrInsufficientPlayers = &Error{KindInsufficientPlayers, "not enough players"}
	ErrAlreadyDistributed  = &Error{KindAlreadyDistributed, "roles already distributed"}
	ErrGameInProgress      = &Error{KindGameInProgress, "game in progress"}
	ErrNoActiveGame        = &Error{KindNoActiveGame, "no active game"}
	ErrNoActiveVoting      = &Error{KindNoActiveVoting, "no active voting"}
	ErrVotingInProgress    = &Error{KindVotingInProgress, "voting already in progress"}
	ErrIneligible          = &Error{KindIneligible, "not eligible to vote"}
	ErrInvalidTarget       = &Error{KindInvalidTarget, "invalid vote target"}
	ErrNotFound            = &Error{KindNotFound, "not found"}
	ErrInvalidSetting      = &Error{KindInvalidSetting, "invalid setting"}
	ErrProviderUnavailable = &Error{KindProviderUnavailable, "topic provider unavailable"}
	ErrPersistence         = &Error{KindPersistence, "session persistence failed"}
)

// KindOf returns the Kind carried by err, KindNone for nil and KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
