package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jason-s-yu/imposter/internal/game"
	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/sirupsen/logrus"
)

// Dispatcher turns incoming chat commands into controller operations.
type Dispatcher struct {
	client *Client
	ctrl   *game.Controller
	log    logrus.FieldLogger
}

// NewDispatcher builds a dispatcher replying through client.
func NewDispatcher(client *Client, ctrl *game.Controller, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{client: client, ctrl: ctrl, log: log}
}

// Run handles updates one at a time, in arrival order, until ctx is done or
// updates is closed.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			d.Handle(ctx, u)
		}
	}
}

// RoomFor returns the room a chat plays in. Every private chat shares the global room.
func RoomFor(chat *tgbotapi.Chat) int64 {
	if chat == nil || chat.IsPrivate() {
		return models.GlobalRoomID
	}
	return chat.ID
}

// request is one command being handled.
type request struct {
	cmd    Command
	chatID int64
	room   int64
	from   *tgbotapi.User
	msgID  int
	actor  game.Actor
}

// Handle processes a single update. Non-command messages are ignored.
func (d *Dispatcher) Handle(ctx context.Context, u tgbotapi.Update) {
	msg := u.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	cmd, ok := ParseCommand(msg.Text)
	if !ok {
		return
	}
	req := request{
		cmd:    cmd,
		chatID: msg.Chat.ID,
		room:   RoomFor(msg.Chat),
		from:   msg.From,
		msgID:  msg.MessageID,
		actor:  game.User(msg.From.ID),
	}
	d.log.WithFields(logrus.Fields{
		"room":    req.room,
		"user":    req.from.ID,
		"command": cmd.Name,
	}).Debug("command received")

	switch cmd.Name {
	case "start":
		d.join(ctx, req)
	case "left", "leave":
		d.leave(ctx, req)
	case "remove":
		d.remove(ctx, req)
	case "distribute":
		d.distribute(ctx, req)
	case "vote":
		_, err := d.ctrl.StartVote(ctx, req.room, req.actor)
		d.replyErr(ctx, req, err)
	case "voteimposter":
		d.castVote(ctx, req)
	case "tally":
		_, err := d.ctrl.Tally(ctx, req.room, req.actor)
		d.replyErr(ctx, req, err)
	case "settimevote":
		d.setVoteTime(ctx, req)
	case "setminplayers":
		d.setMinPlayers(ctx, req)
	case "online":
		d.setOnline(ctx, req)
	case "setlinkgroup":
		d.setGroupLink(ctx, req)
	case "message":
		d.broadcast(ctx, req)
	case "reveal":
		d.reveal(ctx, req)
	case "end":
		_, err := d.ctrl.End(ctx, req.room, req.actor)
		d.replyErr(ctx, req, err)
	case "reset":
		err := d.ctrl.Reset(ctx, req.room, req.actor)
		if err == nil && req.room == models.GlobalRoomID {
			d.reply(ctx, req.chatID, "The lobby was reset.")
			return
		}
		d.replyErr(ctx, req, err)
	case "status":
		d.status(ctx, req)
	case "clear":
		n, err := d.ctrl.ClearTrackedMessages(ctx, req.room, req.actor)
		if err != nil {
			d.replyErr(ctx, req, err)
			return
		}
		d.reply(ctx, req.chatID, fmt.Sprintf("Deleted %d message(s).", n))
	case "help":
		d.reply(ctx, req.chatID, helpText)
	case "password":
		d.promote(ctx, req)
	}
}

func playerOf(u *tgbotapi.User) models.Player {
	return models.Player{ID: u.ID, Username: u.UserName, FirstName: u.FirstName}
}

func (d *Dispatcher) join(ctx context.Context, req request) {
	p, joined, err := d.ctrl.Join(ctx, req.room, playerOf(req.from))
	if err != nil {
		d.replyErr(ctx, req, err)
		return
	}
	if !joined {
		d.reply(ctx, req.chatID, fmt.Sprintf("%s is already in the lobby.", p.DisplayName()))
		return
	}
	text := fmt.Sprintf("%s joined the lobby.", p.DisplayName())
	if st, err := d.ctrl.Status(ctx, req.room); err == nil {
		text += fmt.Sprintf(" Players: %d/%d", st.TotalPlayers, st.Settings.MinPlayers)
	}
	d.reply(ctx, req.chatID, text)
}

func (d *Dispatcher) leave(ctx context.Context, req request) {
	if err := d.ctrl.Leave(ctx, req.room, req.from.ID); err != nil {
		d.replyErr(ctx, req, err)
		return
	}
	d.reply(ctx, req.chatID, fmt.Sprintf("%s left the lobby.", playerOf(req.from).DisplayName()))
}

func (d *Dispatcher) remove(ctx context.Context, req request) {
	if req.cmd.Args == "" {
		d.reply(ctx, req.chatID, "Usage: /remove <@username|id>")
		return
	}
	p, err := d.ctrl.RemovePlayer(ctx, req.room, req.actor, req.cmd.Args)
	if err != nil {
		d.replyErr(ctx, req, err)
		return
	}
	d.reply(ctx, req.chatID, fmt.Sprintf("%s was removed from the lobby.", p.DisplayName()))
}

func (d *Dispatcher) distribute(ctx context.Context, req request) {
	delivery, err := d.ctrl.Distribute(ctx, req.room, req.actor)
	if err != nil {
		d.replyErr(ctx, req, err)
		return
	}
	text := fmt.Sprintf("Roles sent to %d player(s).", delivery.Sent)
	if len(delivery.Failed) > 0 {
		ids := make([]string, len(delivery.Failed))
		for i, id := range delivery.Failed {
			ids[i] = strconv.FormatInt(id, 10)
		}
		text += "\nCould not message: " + strings.Join(ids, ", ") + ". They need to open a private chat with the bot first."
	}
	d.reply(ctx, req.chatID, text)
}

func (d *Dispatcher) castVote(ctx context.Context, req request) {
	receipt, err := d.ctrl.CastVoteRef(ctx, req.room, req.from.ID, req.cmd.Args)
	if err != nil {
		d.replyErr(ctx, req, err)
		return
	}
	verb := "voted for"
	if receipt.Replaced {
		verb = "changed their vote to"
	}
	d.reply(ctx, req.chatID, fmt.Sprintf("%s %s %s", playerOf(req.from).DisplayName(), verb, receipt.Target.DisplayName()))
}

func (d *Dispatcher) setVoteTime(ctx context.Context, req request) {
	secs, err := strconv.Atoi(req.cmd.Args)
	if err != nil {
		d.reply(ctx, req.chatID, fmt.Sprintf("Usage: /settimevote <%d-%d>", game.MinVoteTimeSeconds, game.MaxVoteTimeSeconds))
		return
	}
	if err := d.ctrl.SetVoteTime(ctx, req.room, req.actor, secs); err != nil {
		d.replyErr(ctx, req, err)
		return
	}
	d.reply(ctx, req.chatID, fmt.Sprintf("Vote time set to %d seconds.", secs))
}

func (d *Dispatcher) setMinPlayers(ctx context.Context, req request) {
	n, err := strconv.Atoi(req.cmd.Args)
	if err != nil {
		d.reply(ctx, req.chatID, "Usage: /setminplayers <n>")
		return
	}
	if err := d.ctrl.SetMinPlayers(ctx, req.room, req.actor, n); err != nil {
		d.replyErr(ctx, req, err)
		return
	}
	d.reply(ctx, req.chatID, fmt.Sprintf("Minimum players set to %d.", n))
}

func (d *Dispatcher) setOnline(ctx context.Context, req request) {
	on, ok := parseBool(req.cmd.Args)
	if !ok {
		d.reply(ctx, req.chatID, "Usage: /online <true|false>")
		return
	}
	if err := d.ctrl.SetOnlineMode(ctx, req.room, req.actor, on); err != nil {
		d.replyErr(ctx, req, err)
		return
	}
	d.reply(ctx, req.chatID, fmt.Sprintf("Online mode: %t", on))
}

func (d *Dispatcher) setGroupLink(ctx context.Context, req request) {
	if err := d.ctrl.SetGroupLink(ctx, req.room, req.actor, req.cmd.Args); err != nil {
		d.replyErr(ctx, req, err)
		return
	}
	if req.cmd.Args == "" || strings.EqualFold(req.cmd.Args, "clear") {
		d.reply(ctx, req.chatID, "Group link cleared.")
		return
	}
	d.reply(ctx, req.chatID, "Group link saved.")
}

func (d *Dispatcher) broadcast(ctx context.Context, req request) {
	if req.cmd.Args == "" {
		d.reply(ctx, req.chatID, "Usage: /message <text>")
		return
	}
	delivery, err := d.ctrl.Broadcast(ctx, req.room, req.actor, playerOf(req.from).DisplayName(), req.cmd.Args)
	if err != nil {
		d.replyErr(ctx, req, err)
		return
	}
	d.reply(ctx, req.chatID, fmt.Sprintf("Message sent to %d player(s), %d failed.", delivery.Sent, len(delivery.Failed)))
}

// reveal answers privately so the secret never lands in a group chat.
func (d *Dispatcher) reveal(ctx context.Context, req request) {
	rev, err := d.ctrl.Reveal(ctx, req.room, req.actor)
	if err != nil {
		d.replyErr(ctx, req, err)
		return
	}
	text := fmt.Sprintf("Topic: %s\nImposter(s): %s", rev.Topic, names(rev.Imposters))
	if _, err := d.client.SendText(ctx, req.from.ID, text); err != nil {
		d.log.WithField("user", req.from.ID).WithError(err).Warn("failed to send reveal")
		d.reply(ctx, req.chatID, "Open a private chat with the bot to receive the reveal.")
	}
}

func (d *Dispatcher) status(ctx context.Context, req request) {
	st, err := d.ctrl.Status(ctx, req.room)
	if errors.Is(err, game.ErrNotFound) {
		d.reply(ctx, req.chatID, "No lobby yet. Send /start to join.")
		return
	}
	if err != nil {
		d.replyErr(ctx, req, err)
		return
	}
	d.reply(ctx, req.chatID, RenderStatus(st))
}

func (d *Dispatcher) promote(ctx context.Context, req request) {
	// The secret should not linger in the chat history.
	if err := d.client.DeleteMessage(ctx, req.chatID, req.msgID); err != nil {
		d.log.WithField("room", req.room).WithError(err).Debug("could not delete password message")
	}
	already, err := d.ctrl.Promote(ctx, req.room, req.from.ID, req.cmd.Args)
	if err != nil {
		d.reply(ctx, req.chatID, "Wrong password.")
		return
	}
	if already {
		d.reply(ctx, req.chatID, "You are already an admin.")
		return
	}
	d.reply(ctx, req.chatID, fmt.Sprintf("%s is now an admin.", playerOf(req.from).DisplayName()))
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if _, err := d.client.SendText(ctx, chatID, text); err != nil {
		d.log.WithField("chat", chatID).WithError(err).Warn("failed to reply")
	}
}

// replyErr reports err to the chat; a nil err sends nothing.
func (d *Dispatcher) replyErr(ctx context.Context, req request, err error) {
	if err == nil {
		return
	}
	d.reply(ctx, req.chatID, errorText(err))
}

// errorText renders an operation failure for players.
func errorText(err error) string {
	switch game.KindOf(err) {
	case game.KindUnauthorized:
		return "Only admins can do that."
	case game.KindInsufficientPlayers:
		return "Not enough players to start."
	case game.KindAlreadyDistributed:
		return "Roles were already sent for this game."
	case game.KindGameInProgress:
		return "A game is in progress. Wait for it to end."
	case game.KindNoActiveGame:
		return "No active game."
	case game.KindNoActiveVoting:
		return "No voting round is open."
	case game.KindVotingInProgress:
		return "A voting round is already open."
	case game.KindIneligible:
		return "You cannot vote in this round."
	case game.KindInvalidTarget:
		return "Player not found or already eliminated."
	case game.KindNotFound:
		return "Player not found."
	case game.KindInvalidSetting:
		return "Invalid value: " + err.Error()
	default:
		return "Something went wrong, try again."
	}
}
