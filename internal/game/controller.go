// internal/game/controller.go
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/jason-s-yu/imposter/internal/session"
	"github.com/sirupsen/logrus"
)

// Setting bounds.
const (
	MinVoteTimeSeconds = 10
	MaxVoteTimeSeconds = 600
	MaxMinPlayers      = 50
)

// Actor identifies who is invoking an operation.
type Actor struct {
	UserID int64
	// System actors (the control plane, timers) are always admin.
	System bool
}

// System is the actor used by the control plane.
var System = Actor{System: true}

// User returns the actor for a chat user.
func User(id int64) Actor { return Actor{UserID: id} }

// Timer is the handle returned by a Scheduler.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. The default wraps time.AfterFunc.
type Scheduler func(d time.Duration, f func()) Timer

func afterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Delivery reports the outcome of a best-effort fan-out.
type Delivery struct {
	Sent   int
	Failed []int64
}

// VoteReceipt is returned by a successful CastVote.
type VoteReceipt struct {
	Target   models.Player
	Replaced bool
}

// Reveal is the secret half of a running game.
type Reveal struct {
	Topic     string
	Imposters []models.Player
}

// Options configures a Controller. Registry and Engine are required.
type Options struct {
	Registry  *session.Registry
	Engine    *RoleEngine
	Transport Transport
	Recorder  ResultRecorder
	Secret    SecretVerifier
	Log       logrus.FieldLogger
	Now       func() time.Time
	Schedule  Scheduler
}

// room serializes every operation and timer callback touching one session.
type room struct {
	mu      sync.Mutex
	timer   Timer
	roundID uuid.UUID
}

// Controller drives the per-room game state machine:
// LOBBY -> PREPARED -> ACTIVE -> (VOTING <-> ACTIVE)* -> ENDED, with Reset back to LOBBY.
type Controller struct {
	registry  *session.Registry
	engine    *RoleEngine
	voting    Voting
	transport Transport
	recorder  ResultRecorder
	secret    SecretVerifier
	log       logrus.FieldLogger
	now       func() time.Time
	schedule  Scheduler

	mu    sync.Mutex
	rooms map[int64]*room
}

// NewController wires a controller. Missing collaborators fall back to no-ops.
func NewController(opts Options) *Controller {
	c := &Controller{
		registry:  opts.Registry,
		engine:    opts.Engine,
		transport: opts.Transport,
		recorder:  opts.Recorder,
		secret:    opts.Secret,
		log:       opts.Log,
		now:       opts.Now,
		schedule:  opts.Schedule,
		rooms:     make(map[int64]*room),
	}
	if c.transport == nil {
		c.transport = NopTransport{}
	}
	if c.recorder == nil {
		c.recorder = NopRecorder{}
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.schedule == nil {
		c.schedule = afterFunc
	}
	return c
}

// Registry exposes the session registry backing the controller.
func (c *Controller) Registry() *session.Registry { return c.registry }

func (c *Controller) lock(roomID int64) *room {
	c.mu.Lock()
	r, ok := c.rooms[roomID]
	if !ok {
		r = &room{}
		c.rooms[roomID] = r
	}
	c.mu.Unlock()
	r.mu.Lock()
	return r
}

func (c *Controller) roomLog(roomID int64) logrus.FieldLogger {
	return c.log.WithField("room", roomID)
}

// save writes s through the registry. A store failure is logged; the in-memory state stands.
func (c *Controller) save(ctx context.Context, s *models.Session) {
	if err := c.registry.Save(ctx, s); err != nil {
		c.roomLog(s.RoomID).WithField("kind", KindPersistence).WithError(err).Error("failed to persist session")
	}
}

func (c *Controller) load(ctx context.Context, roomID int64) (*models.Session, error) {
	s, ok := c.registry.Get(ctx, roomID)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// IsAdmin reports whether actor may run admin operations in roomID.
func (c *Controller) IsAdmin(ctx context.Context, roomID int64, actor Actor) bool {
	r := c.lock(roomID)
	defer r.mu.Unlock()
	s, _ := c.registry.Get(ctx, roomID)
	return c.isAdmin(ctx, roomID, s, actor)
}

// isAdmin checks actor against s, which may be nil for a room with no session yet.
// Chat roles only grant admin in group rooms.
func (c *Controller) isAdmin(ctx context.Context, roomID int64, s *models.Session, actor Actor) bool {
	if actor.System {
		return true
	}
	if s != nil && s.IsPromoted(actor.UserID) {
		return true
	}
	if roomID == models.GlobalRoomID {
		return false
	}
	role, err := c.transport.MembershipRole(ctx, roomID, actor.UserID)
	if err != nil {
		c.roomLog(roomID).WithField("user", actor.UserID).WithError(err).Warn("membership lookup failed")
		return false
	}
	return role.GrantsAdmin()
}

func (c *Controller) requireAdmin(ctx context.Context, roomID int64, s *models.Session, actor Actor) error {
	if !c.isAdmin(ctx, roomID, s, actor) {
		return ErrUnauthorized
	}
	return nil
}

// Join adds p to the lobby. An already-present player is returned with joined=false.
func (c *Controller) Join(ctx context.Context, roomID int64, p models.Player) (player models.Player, joined bool, err error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, _ := c.registry.GetOrCreate(ctx, roomID)
	if existing, ok := s.Player(p.ID); ok {
		return *existing, false, nil
	}
	if s.Started {
		return models.Player{}, false, ErrGameInProgress
	}

	if s.OwnerAdminID == nil && c.isAdmin(ctx, roomID, s, User(p.ID)) {
		owner := p.ID
		s.OwnerAdminID = &owner
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = c.now()
	}
	p.Eliminated = false
	s.Players = append(s.Players, p)
	c.save(ctx, s)

	c.roomLog(roomID).WithFields(logrus.Fields{"user": p.ID, "players": len(s.Players)}).Info("player joined")
	return p, true, nil
}

// Leave removes playerID from the lobby.
func (c *Controller) Leave(ctx context.Context, roomID, playerID int64) error {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, err := c.load(ctx, roomID)
	if err != nil {
		return err
	}
	_, err = c.removeLocked(ctx, s, fmt.Sprint(playerID))
	return err
}

// RemovePlayer removes the player referenced by ref (numeric id or @username).
func (c *Controller) RemovePlayer(ctx context.Context, roomID int64, actor Actor, ref string) (models.Player, error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, _ := c.registry.Get(ctx, roomID)
	if err := c.requireAdmin(ctx, roomID, s, actor); err != nil {
		return models.Player{}, err
	}
	if s == nil {
		return models.Player{}, ErrNotFound
	}
	return c.removeLocked(ctx, s, ref)
}

func (c *Controller) removeLocked(ctx context.Context, s *models.Session, ref string) (models.Player, error) {
	// A prepared roster is frozen too; the selected imposters must stay in it.
	if s.Started {
		return models.Player{}, ErrGameInProgress
	}
	p, ok := s.FindPlayer(ref)
	if !ok {
		return models.Player{}, ErrNotFound
	}
	removed := *p
	s.RemovePlayer(removed.ID)
	c.save(ctx, s)

	if s.Settings.OnlineMode && !s.IsPrivate() {
		if err := c.transport.BanThenUnban(ctx, s.RoomID, removed.ID); err != nil {
			c.roomLog(s.RoomID).WithField("user", removed.ID).WithError(err).Warn("ban-then-unban failed")
		}
	}
	c.roomLog(s.RoomID).WithFields(logrus.Fields{"user": removed.ID, "players": len(s.Players)}).Info("player removed")
	return removed, nil
}

// Promote grants userID admin in roomID when secret matches the configured one.
func (c *Controller) Promote(ctx context.Context, roomID, userID int64, secret string) (already bool, err error) {
	if c.secret == nil || !c.secret.Verify(secret) {
		c.roomLog(roomID).WithField("user", userID).Warn("promotion rejected")
		return false, ErrUnauthorized
	}

	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, _ := c.registry.GetOrCreate(ctx, roomID)
	if s.IsPromoted(userID) {
		return true, nil
	}
	s.PromotedAdmins = append(s.PromotedAdmins, userID)
	c.save(ctx, s)
	c.roomLog(roomID).WithField("user", userID).Info("user promoted to admin")
	return false, nil
}

// Prepare selects imposters and the topic and marks the game started. Calling it on a
// prepared but undistributed game returns the existing selection.
func (c *Controller) Prepare(ctx context.Context, roomID int64, actor Actor) (Assignment, error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, _ := c.registry.Get(ctx, roomID)
	if err := c.requireAdmin(ctx, roomID, s, actor); err != nil {
		return Assignment{}, err
	}
	if s == nil {
		return Assignment{}, ErrInsufficientPlayers
	}
	return c.prepareLocked(ctx, s)
}

func (c *Controller) prepareLocked(ctx context.Context, s *models.Session) (Assignment, error) {
	if s.RolesDistributed {
		return Assignment{}, ErrAlreadyDistributed
	}
	if s.Started {
		return Assignment{Imposters: append([]int64(nil), s.Imposters...), Topic: s.Topic, Source: "existing"}, nil
	}

	a, err := c.engine.Prepare(ctx, s.Players, s.Settings)
	if err != nil {
		return Assignment{}, err
	}
	s.Imposters = a.Imposters
	s.Topic = a.Topic
	s.Started = true
	c.save(ctx, s)

	c.roomLog(s.RoomID).WithFields(logrus.Fields{
		"players":   len(s.Players),
		"imposters": len(a.Imposters),
		"source":    a.Source,
	}).Info("game prepared")
	return a, nil
}

// DistributeRoles notifies every player of their role and marks roles distributed.
// A failed notification is reported in the Delivery and does not stop the rest.
func (c *Controller) DistributeRoles(ctx context.Context, roomID int64, actor Actor) (Delivery, error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, _ := c.registry.Get(ctx, roomID)
	if err := c.requireAdmin(ctx, roomID, s, actor); err != nil {
		return Delivery{}, err
	}
	if s == nil {
		return Delivery{}, ErrNoActiveGame
	}
	return c.distributeLocked(ctx, s)
}

func (c *Controller) distributeLocked(ctx context.Context, s *models.Session) (Delivery, error) {
	if s.RolesDistributed {
		return Delivery{}, ErrAlreadyDistributed
	}
	if !s.Started {
		return Delivery{}, ErrNoActiveGame
	}

	link := c.groupLink(ctx, s)
	d := c.fanOut(ctx, s, s.Players, func(p models.Player) Event {
		ev := Event{
			Type:          EventRoleAssigned,
			RoomID:        s.RoomID,
			Imposter:      s.IsImposter(p.ID),
			GroupLink:     link,
			ImposterCount: len(s.Imposters),
		}
		if !ev.Imposter {
			ev.Topic = s.Topic
		}
		return ev
	})

	s.RolesDistributed = true
	c.save(ctx, s)

	c.announce(ctx, s, Event{
		Type:          EventGameStarted,
		RoomID:        s.RoomID,
		Players:       append([]models.Player(nil), s.Players...),
		ImposterCount: len(s.Imposters),
	}, false)

	c.roomLog(s.RoomID).WithFields(logrus.Fields{"sent": d.Sent, "failed": len(d.Failed)}).Info("roles distributed")
	return d, nil
}

// Distribute runs Prepare and DistributeRoles under one lock.
func (c *Controller) Distribute(ctx context.Context, roomID int64, actor Actor) (Delivery, error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, _ := c.registry.Get(ctx, roomID)
	if err := c.requireAdmin(ctx, roomID, s, actor); err != nil {
		return Delivery{}, err
	}
	if s == nil {
		return Delivery{}, ErrInsufficientPlayers
	}
	if _, err := c.prepareLocked(ctx, s); err != nil {
		return Delivery{}, err
	}
	return c.distributeLocked(ctx, s)
}

// groupLink returns the link appended to role notifications in online mode.
func (c *Controller) groupLink(ctx context.Context, s *models.Session) string {
	if !s.Settings.OnlineMode {
		return ""
	}
	if s.CustomGroupLink != "" {
		return s.CustomGroupLink
	}
	if s.IsPrivate() {
		return ""
	}
	link, err := c.transport.InviteLink(ctx, s.RoomID)
	if err != nil {
		c.roomLog(s.RoomID).WithError(err).Warn("failed to fetch invite link")
		return ""
	}
	return link
}

// StartVote opens a voting round and schedules its tally at the deadline.
func (c *Controller) StartVote(ctx context.Context, roomID int64, actor Actor) (*models.VotingRound, error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, _ := c.registry.Get(ctx, roomID)
	if err := c.requireAdmin(ctx, roomID, s, actor); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoActiveGame
	}

	round, err := c.voting.Open(s, c.now())
	if err != nil {
		return nil, err
	}
	c.save(ctx, s)
	c.scheduleTally(r, roomID, round.ID, round.Deadline.Sub(c.now()))

	active := s.ActivePlayers()
	ev := Event{
		Type:     EventVoteStarted,
		RoomID:   roomID,
		Players:  active,
		VoteTime: s.Settings.VoteDuration(),
		Deadline: round.Deadline,
	}
	c.fanOut(ctx, s, s.Players, func(models.Player) Event { return ev })
	c.announce(ctx, s, ev, false)

	c.roomLog(roomID).WithFields(logrus.Fields{"round": round.ID, "eligible": len(active)}).Info("voting started")
	return round.Clone(), nil
}

// scheduleTally arms the deadline timer for roundID. Caller holds r.mu.
func (c *Controller) scheduleTally(r *room, roomID int64, roundID uuid.UUID, d time.Duration) {
	if r.timer != nil {
		r.timer.Stop()
	}
	if d < 0 {
		d = 0
	}
	r.roundID = roundID
	r.timer = c.schedule(d, func() { c.onDeadline(roomID, roundID) })
}

// onDeadline is the timer path. A timer for a round that has since closed, or been
// replaced, does nothing.
func (c *Controller) onDeadline(roomID int64, roundID uuid.UUID) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	if r.roundID != roundID {
		c.roomLog(roomID).WithField("round", roundID).Debug("stale vote timer fired, ignoring")
		return
	}
	r.timer = nil
	r.roundID = uuid.Nil

	ctx := context.Background()
	s, ok := c.registry.Get(ctx, roomID)
	if !ok {
		return
	}
	res, ok := c.voting.Close(s, roundID)
	if !ok {
		c.roomLog(roomID).WithField("round", roundID).Debug("round already tallied")
		return
	}
	c.afterTally(ctx, s, res)
}

// CastVote records voterID's ballot for targetID in the open round.
func (c *Controller) CastVote(ctx context.Context, roomID, voterID, targetID int64) (VoteReceipt, error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, ok := c.registry.Get(ctx, roomID)
	if !ok {
		return VoteReceipt{}, ErrNoActiveVoting
	}
	return c.castLocked(ctx, s, voterID, targetID)
}

// CastVoteRef is CastVote with the target given as a numeric id or @username.
func (c *Controller) CastVoteRef(ctx context.Context, roomID, voterID int64, ref string) (VoteReceipt, error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, ok := c.registry.Get(ctx, roomID)
	if !ok || !s.VotingActive() {
		return VoteReceipt{}, ErrNoActiveVoting
	}
	target, ok := s.FindPlayer(ref)
	if !ok {
		if voter, ok := s.Player(voterID); !ok || voter.Eliminated {
			return VoteReceipt{}, ErrIneligible
		}
		return VoteReceipt{}, ErrInvalidTarget
	}
	return c.castLocked(ctx, s, voterID, target.ID)
}

func (c *Controller) castLocked(ctx context.Context, s *models.Session, voterID, targetID int64) (VoteReceipt, error) {
	target, replaced, err := c.voting.Record(s, voterID, targetID)
	if err != nil {
		return VoteReceipt{}, err
	}
	c.save(ctx, s)
	c.roomLog(s.RoomID).WithFields(logrus.Fields{
		"user":     voterID,
		"target":   targetID,
		"replaced": replaced,
	}).Info("vote recorded")
	return VoteReceipt{Target: target, Replaced: replaced}, nil
}

// Tally closes the open round now instead of waiting for its deadline.
func (c *Controller) Tally(ctx context.Context, roomID int64, actor Actor) (TallyResult, error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, _ := c.registry.Get(ctx, roomID)
	if err := c.requireAdmin(ctx, roomID, s, actor); err != nil {
		return TallyResult{}, err
	}
	if s == nil {
		return TallyResult{}, ErrNoActiveVoting
	}
	res, ok := c.voting.Close(s, uuid.Nil)
	if !ok {
		return TallyResult{}, ErrNoActiveVoting
	}
	c.stopTimer(r)
	c.afterTally(ctx, s, res)
	return res, nil
}

func (c *Controller) stopTimer(r *room) {
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = nil
	r.roundID = uuid.Nil
}

// afterTally persists and announces a closed round, finishing the game on a win.
func (c *Controller) afterTally(ctx context.Context, s *models.Session, res TallyResult) {
	fields := logrus.Fields{"round": res.RoundID, "ballots": res.BallotsCast, "winner": res.Winner}
	if res.Eliminated != nil {
		fields["eliminated"] = res.Eliminated.ID
	}
	c.roomLog(s.RoomID).WithFields(fields).Info("round tallied")

	c.announce(ctx, s, Event{
		Type:               EventVoteResult,
		RoomID:             s.RoomID,
		NoVotes:            res.NoVotes,
		Eliminated:         res.Eliminated,
		Votes:              res.Votes,
		WasImposter:        res.WasImposter,
		Winner:             res.Winner,
		RemainingImposters: res.RemainingImposters,
		RemainingInnocents: res.RemainingInnocents,
	}, true)

	if res.Winner != models.WinnerNone {
		c.finish(ctx, s, res.Winner)
		return
	}
	c.save(ctx, s)
}

// End reveals the topic and imposters and returns the room to its lobby.
func (c *Controller) End(ctx context.Context, roomID int64, actor Actor) (Reveal, error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, _ := c.registry.Get(ctx, roomID)
	if err := c.requireAdmin(ctx, roomID, s, actor); err != nil {
		return Reveal{}, err
	}
	if s == nil || !s.RolesDistributed {
		return Reveal{}, ErrNoActiveGame
	}
	c.stopTimer(r)
	rev := Reveal{Topic: s.Topic, Imposters: s.PlayersByID(s.Imposters)}
	c.finish(ctx, s, models.WinnerNone)
	return rev, nil
}

// finish records the result, clears the game and announces the end. In an online
// group room the tracked messages are removed before the closing announcement.
func (c *Controller) finish(ctx context.Context, s *models.Session, winner models.Winner) {
	now := c.now()
	result := models.ResultOf(s, winner, now)
	ended := Event{
		Type:      EventGameEnded,
		RoomID:    s.RoomID,
		Topic:     s.Topic,
		Winner:    winner,
		Imposters: s.PlayersByID(s.Imposters),
		Players:   append([]models.Player(nil), s.Players...),
	}

	if err := c.recorder.RecordResult(ctx, result); err != nil {
		c.roomLog(s.RoomID).WithError(err).Warn("failed to record game result")
	}

	s.ClearGame()
	if s.Settings.OnlineMode && !s.IsPrivate() {
		c.clearTracked(ctx, s)
	}
	c.save(ctx, s)

	c.announce(ctx, s, ended, false)
	c.fanOut(ctx, s, s.Players, func(models.Player) Event { return ended })
	c.roomLog(s.RoomID).WithFields(logrus.Fields{"winner": winner, "topic": result.Topic}).Info("game ended")
}

// Reset returns roomID to an empty lobby, keeping settings and promoted admins.
func (c *Controller) Reset(ctx context.Context, roomID int64, actor Actor) error {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	old, _ := c.registry.Get(ctx, roomID)
	if err := c.requireAdmin(ctx, roomID, old, actor); err != nil {
		return err
	}
	c.stopTimer(r)

	s := models.NewSession(roomID, c.now())
	if old != nil {
		s.Settings = old.Settings
		s.PromotedAdmins = append([]int64{}, old.PromotedAdmins...)
	}
	if !actor.System {
		owner := actor.UserID
		s.OwnerAdminID = &owner
	}
	if err := c.registry.Replace(ctx, s); err != nil {
		c.roomLog(roomID).WithField("kind", KindPersistence).WithError(err).Error("failed to persist reset session")
	}

	c.announce(ctx, s, Event{Type: EventGameReset, RoomID: roomID}, false)
	c.roomLog(roomID).Info("session reset")
	return nil
}

// SetVoteTime sets the voting window in seconds.
func (c *Controller) SetVoteTime(ctx context.Context, roomID int64, actor Actor, seconds int) error {
	if seconds < MinVoteTimeSeconds || seconds > MaxVoteTimeSeconds {
		return fmt.Errorf("vote time must be between %d and %d seconds: %w", MinVoteTimeSeconds, MaxVoteTimeSeconds, ErrInvalidSetting)
	}
	return c.updateSettings(ctx, roomID, actor, func(s *models.Session) error {
		s.Settings.VoteTimeSeconds = seconds
		return nil
	})
}

// SetOnlineMode toggles online mode.
func (c *Controller) SetOnlineMode(ctx context.Context, roomID int64, actor Actor, on bool) error {
	return c.updateSettings(ctx, roomID, actor, func(s *models.Session) error {
		s.Settings.OnlineMode = on
		return nil
	})
}

// SetMinPlayers sets the roster size required to distribute.
func (c *Controller) SetMinPlayers(ctx context.Context, roomID int64, actor Actor, n int) error {
	if n < 1 || n > MaxMinPlayers {
		return fmt.Errorf("minimum players must be between 1 and %d: %w", MaxMinPlayers, ErrInvalidSetting)
	}
	return c.updateSettings(ctx, roomID, actor, func(s *models.Session) error {
		if s.Started {
			return ErrGameInProgress
		}
		s.Settings.MinPlayers = n
		return nil
	})
}

// SetGroupLink stores the link sent with roles in online mode. "clear" or an empty
// link removes it.
func (c *Controller) SetGroupLink(ctx context.Context, roomID int64, actor Actor, link string) error {
	link = strings.TrimSpace(link)
	if strings.EqualFold(link, "clear") {
		link = ""
	}
	if link != "" && !strings.HasPrefix(link, "https://t.me/") && !strings.HasPrefix(link, "http://t.me/") {
		return fmt.Errorf("group link must start with https://t.me/: %w", ErrInvalidSetting)
	}
	return c.updateSettings(ctx, roomID, actor, func(s *models.Session) error {
		s.CustomGroupLink = link
		return nil
	})
}

func (c *Controller) updateSettings(ctx context.Context, roomID int64, actor Actor, apply func(*models.Session) error) error {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	existing, _ := c.registry.Get(ctx, roomID)
	if err := c.requireAdmin(ctx, roomID, existing, actor); err != nil {
		return err
	}
	s, _ := c.registry.GetOrCreate(ctx, roomID)
	if err := apply(s); err != nil {
		return err
	}
	c.save(ctx, s)
	c.roomLog(roomID).WithField("settings", s.Settings).Info("settings updated")
	return nil
}

// Reveal returns the topic and imposters of the running game.
func (c *Controller) Reveal(ctx context.Context, roomID int64, actor Actor) (Reveal, error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, _ := c.registry.Get(ctx, roomID)
	if err := c.requireAdmin(ctx, roomID, s, actor); err != nil {
		return Reveal{}, err
	}
	if s == nil || !s.Started {
		return Reveal{}, ErrNoActiveGame
	}
	return Reveal{Topic: s.Topic, Imposters: s.PlayersByID(s.Imposters)}, nil
}

// Broadcast sends an admin message to every player.
func (c *Controller) Broadcast(ctx context.Context, roomID int64, actor Actor, from, text string) (Delivery, error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, _ := c.registry.Get(ctx, roomID)
	if err := c.requireAdmin(ctx, roomID, s, actor); err != nil {
		return Delivery{}, err
	}
	if s == nil || len(s.Players) == 0 {
		return Delivery{}, ErrNotFound
	}
	ev := Event{Type: EventAdminMessage, RoomID: roomID, From: from, Text: text}
	d := c.fanOut(ctx, s, s.Players, func(models.Player) Event { return ev })
	c.roomLog(roomID).WithFields(logrus.Fields{"sent": d.Sent, "failed": len(d.Failed)}).Info("admin message broadcast")
	return d, nil
}

// Status returns the read-only projection of roomID.
func (c *Controller) Status(ctx context.Context, roomID int64) (models.Status, error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, err := c.load(ctx, roomID)
	if err != nil {
		return models.Status{}, err
	}
	return models.StatusOf(s), nil
}

// ClearTrackedMessages deletes every tracked room message and returns how many went.
func (c *Controller) ClearTrackedMessages(ctx context.Context, roomID int64, actor Actor) (int, error) {
	r := c.lock(roomID)
	defer r.mu.Unlock()

	s, _ := c.registry.Get(ctx, roomID)
	if err := c.requireAdmin(ctx, roomID, s, actor); err != nil {
		return 0, err
	}
	if s == nil {
		return 0, ErrNotFound
	}
	n := c.clearTracked(ctx, s)
	c.save(ctx, s)
	return n, nil
}

func (c *Controller) clearTracked(ctx context.Context, s *models.Session) int {
	deleted := 0
	for _, id := range s.TrackedMessageIDs {
		if err := c.transport.DeleteMessage(ctx, s.RoomID, id); err != nil {
			c.roomLog(s.RoomID).WithField("message", id).WithError(err).Warn("failed to delete tracked message")
			continue
		}
		deleted++
	}
	s.TrackedMessageIDs = []int{}
	c.roomLog(s.RoomID).WithField("deleted", deleted).Info("tracked messages cleared")
	return deleted
}

// ResumeVoting re-arms the tally timer of every round that was open when the
// process stopped. Rounds past their deadline are tallied right away.
func (c *Controller) ResumeVoting(ctx context.Context) int {
	resumed := 0
	for _, id := range c.registry.RoomIDs() {
		r := c.lock(id)
		s, ok := c.registry.Get(ctx, id)
		if ok && s.VotingActive() {
			c.scheduleTally(r, id, s.VotingRound.ID, s.VotingRound.Deadline.Sub(c.now()))
			resumed++
		}
		r.mu.Unlock()
	}
	if resumed > 0 {
		c.log.WithField("rounds", resumed).Info("resumed open voting rounds")
	}
	return resumed
}

// fanOut delivers one event per recipient, collecting failures without stopping.
func (c *Controller) fanOut(ctx context.Context, s *models.Session, to []models.Player, build func(models.Player) Event) Delivery {
	var d Delivery
	var errs []error
	for _, p := range to {
		if err := c.transport.SendToPlayer(ctx, p.ID, build(p)); err != nil {
			d.Failed = append(d.Failed, p.ID)
			errs = append(errs, fmt.Errorf("player %d: %w", p.ID, err))
			continue
		}
		d.Sent++
	}
	if len(errs) > 0 {
		c.roomLog(s.RoomID).WithError(errors.Join(errs...)).Warnf("%d of %d notifications failed", len(errs), len(to))
	}
	return d
}

// announce posts ev into a group room and tracks the message. The global room has
// no shared chat, so it gets ev by direct message only when dmPrivate is set.
func (c *Controller) announce(ctx context.Context, s *models.Session, ev Event, dmPrivate bool) {
	if s.IsPrivate() {
		if dmPrivate {
			c.fanOut(ctx, s, s.Players, func(models.Player) Event { return ev })
		}
		return
	}
	id, err := c.transport.SendToRoom(ctx, s.RoomID, ev)
	if err != nil {
		c.roomLog(s.RoomID).WithField("event", ev.Type).WithError(err).Warn("failed to post room message")
		return
	}
	if id != 0 {
		s.TrackedMessageIDs = append(s.TrackedMessageIDs, id)
		c.save(ctx, s)
	}
}
