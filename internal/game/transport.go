package game

import (
	"context"
	"time"

	"github.com/jason-s-yu/imposter/internal/models"
)

// MemberRole is the chat membership status of a user in a group room.
type MemberRole int

const (
	RoleOther MemberRole = iota
	RoleMember
	RoleAdministrator
	RoleCreator
)

// GrantsAdmin reports whether the chat role counts as game admin.
func (r MemberRole) GrantsAdmin() bool {
	switch r {
	case RoleCreator, RoleAdministrator:
		return true
	case RoleMember, RoleOther:
		return false
	}
	return false
}

// EventType is an enum-like type for the notifications the controller fans out.
type EventType string

const (
	EventRoleAssigned EventType = "role_assigned" // private: role, topic, group link
	EventGameStarted  EventType = "game_started"
	EventVoteStarted  EventType = "vote_started"
	EventVoteResult   EventType = "vote_result"
	EventGameEnded    EventType = "game_ended"
	EventGameReset    EventType = "game_reset"
	EventAdminMessage EventType = "admin_message"
)

// Event carries everything a transport needs to render one notification.
// Fields not relevant to Type are left zero.
type Event struct {
	Type   EventType
	RoomID int64

	// role_assigned
	Imposter  bool
	Topic     string
	GroupLink string

	// game_started, vote_started, game_ended
	Players       []models.Player
	ImposterCount int
	VoteTime      time.Duration
	Deadline      time.Time

	// vote_result, game_ended
	NoVotes            bool
	Eliminated         *models.Player
	Votes              int
	WasImposter        bool
	Winner             models.Winner
	Imposters          []models.Player
	RemainingImposters int
	RemainingInnocents int

	// admin_message
	From string
	Text string
}

// Transport is the chat surface the controller talks through. Every call is
// fallible; the controller logs failures and carries on.
type Transport interface {
	SendToPlayer(ctx context.Context, playerID int64, ev Event) error
	// SendToRoom posts ev into a group room and returns the message id for later cleanup.
	SendToRoom(ctx context.Context, roomID int64, ev Event) (int, error)
	DeleteMessage(ctx context.Context, roomID int64, messageID int) error
	MembershipRole(ctx context.Context, roomID, userID int64) (MemberRole, error)
	BanThenUnban(ctx context.Context, roomID, userID int64) error
	InviteLink(ctx context.Context, roomID int64) (string, error)
}

// NopTransport drops every notification. Used when no chat binding is configured.
type NopTransport struct{}

func (NopTransport) SendToPlayer(context.Context, int64, Event) error { return nil }
func (NopTransport) SendToRoom(context.Context, int64, Event) (int, error) { return 0, nil }
func (NopTransport) DeleteMessage(context.Context, int64, int) error { return nil }
func (NopTransport) BanThenUnban(context.Context, int64, int64) error { return nil }
func (NopTransport) InviteLink(context.Context, int64) (string, error) { return "", nil }
func (NopTransport) MembershipRole(context.Context, int64, int64) (MemberRole, error) {
	return RoleMember, nil
}

// ResultRecorder receives finished games for history keeping.
type ResultRecorder interface {
	RecordResult(ctx context.Context, res models.GameResult) error
}

// NopRecorder discards results.
type NopRecorder struct{}

func (NopRecorder) RecordResult(context.Context, models.GameResult) error { return nil }

// SecretVerifier checks a supplied admin secret.
type SecretVerifier interface {
	Verify(candidate string) bool
}
