package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jason-s-yu/imposter/internal/auth"
	"github.com/jason-s-yu/imposter/internal/game"
	"github.com/jason-s-yu/imposter/internal/models"
	"github.com/jason-s-yu/imposter/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	chatID int64
	text   string
}

// fakeAPI stands in for the Bot API, recording what the bot would have sent.
type fakeAPI struct {
	mu       sync.Mutex
	sent     []sentMessage
	requests []tgbotapi.Chattable
	statuses map[int64]string
	blocked  map[int64]bool
	nextID   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{statuses: make(map[int64]string), blocked: make(map[int64]bool)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, fmt.Errorf("unexpected chattable %T", c)
	}
	if f.blocked[m.ChatID] {
		return tgbotapi.Message{}, errors.New("Forbidden: bot can't initiate conversation with a user")
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{chatID: m.ChatID, text: m.Text})
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[cfg.UserID]
	if !ok {
		status = "member"
	}
	return tgbotapi.ChatMember{Status: status}, nil
}

func (f *fakeAPI) GetInviteLink(tgbotapi.ChatInviteLinkConfig) (string, error) {
	return "https://t.me/+invite", nil
}

func (f *fakeAPI) messagesTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.chatID == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

func (f *fakeAPI) lastTo(chatID int64) string {
	msgs := f.messagesTo(chatID)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

var group = &tgbotapi.Chat{ID: -500, Type: "supergroup"}

func privateChat(user int64) *tgbotapi.Chat {
	return &tgbotapi.Chat{ID: user, Type: "private"}
}

func command(chat *tgbotapi.Chat, user int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: int(user)*100 + len(text),
		From:      &tgbotapi.User{ID: user, UserName: fmt.Sprintf("u%d", user), FirstName: fmt.Sprintf("User %d", user)},
		Chat:      chat,
		Text:      text,
	}}
}

func setupDispatcher(t *testing.T) (*Dispatcher, *game.Controller, *fakeAPI) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	secret, err := auth.NewSecret("s3cret", auth.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	api := newFakeAPI()
	client := NewClient(api)
	ctrl := game.NewController(game.Options{
		Registry:  session.NewRegistry(session.NewMemoryStore(), log),
		Engine:    game.NewRoleEngineWithRand(nil, log, rand.New(rand.NewSource(3))),
		Transport: client,
		Secret:    secret,
		Log:       log,
	})
	return NewDispatcher(client, ctrl, log), ctrl, api
}

func TestDispatcherFullGame(t *testing.T) {
	d, ctrl, api := setupDispatcher(t)
	ctx := context.Background()
	api.statuses[1] = "administrator"

	for id := int64(1); id <= 4; id++ {
		d.Handle(ctx, command(group, id, "/start"))
	}
	assert.Contains(t, api.lastTo(group.ID), "@u4 joined the lobby. Players: 4/4")

	d.Handle(ctx, command(group, 2, "/distribute"))
	assert.Equal(t, "Only admins can do that.", api.lastTo(group.ID))

	d.Handle(ctx, command(group, 1, "/distribute"))
	assert.Equal(t, "Roles sent to 4 player(s).", api.lastTo(group.ID))

	st, err := ctrl.Status(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, st.Imposters, 1)
	imposter := st.Imposters[0]

	for id := int64(1); id <= 4; id++ {
		dms := api.messagesTo(id)
		require.NotEmpty(t, dms, "player %d got no role", id)
		if id == imposter {
			assert.Contains(t, dms[0], "IMPOSTER")
		} else {
			assert.Contains(t, dms[0], "The topic is:")
		}
	}

	d.Handle(ctx, command(group, 1, "/vote"))
	assert.Contains(t, api.lastTo(group.ID), "Voting started!")

	for id := int64(1); id <= 4; id++ {
		target := imposter
		if id == imposter {
			target = id%4 + 1
		}
		d.Handle(ctx, command(group, id, fmt.Sprintf("/voteimposter_@u%d", target)))
	}

	d.Handle(ctx, command(group, 1, "/tally"))
	msgs := api.messagesTo(group.ID)
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Contains(t, msgs[len(msgs)-2], "was eliminated with 3 vote(s) and was an IMPOSTER")
	assert.Contains(t, msgs[len(msgs)-1], "Innocents win!")

	st, err = ctrl.Status(ctx, group.ID)
	require.NoError(t, err)
	assert.False(t, st.Started)
	assert.Equal(t, 4, st.TotalPlayers)

	d.Handle(ctx, command(group, 3, "/voteimposter_@u1"))
	assert.Equal(t, "No voting round is open.", api.lastTo(group.ID))
}

func TestDispatcherRevoteAndErrors(t *testing.T) {
	d, _, api := setupDispatcher(t)
	ctx := context.Background()
	api.statuses[1] = "creator"

	for id := int64(1); id <= 4; id++ {
		d.Handle(ctx, command(group, id, "/start"))
	}
	d.Handle(ctx, command(group, 2, "/start"))
	assert.Equal(t, "@u2 is already in the lobby.", api.lastTo(group.ID))

	d.Handle(ctx, command(group, 1, "/distribute"))
	d.Handle(ctx, command(group, 1, "/distribute"))
	assert.Equal(t, "Roles were already sent for this game.", api.lastTo(group.ID))

	d.Handle(ctx, command(group, 2, "/left"))
	assert.Equal(t, "A game is in progress. Wait for it to end.", api.lastTo(group.ID))

	d.Handle(ctx, command(group, 1, "/vote"))
	d.Handle(ctx, command(group, 2, "/voteimposter_@u3"))
	assert.Equal(t, "@u2 voted for @u3", api.lastTo(group.ID))
	d.Handle(ctx, command(group, 2, "/voteimposter_4"))
	assert.Equal(t, "@u2 changed their vote to @u4", api.lastTo(group.ID))

	d.Handle(ctx, command(group, 9, "/voteimposter_@u3"))
	assert.Equal(t, "You cannot vote in this round.", api.lastTo(group.ID))
	d.Handle(ctx, command(group, 2, "/voteimposter_@nobody"))
	assert.Equal(t, "Player not found or already eliminated.", api.lastTo(group.ID))

	d.Handle(ctx, command(group, 1, "/vote"))
	assert.Equal(t, "A voting round is already open.", api.lastTo(group.ID))
}

func TestDispatcherPromote(t *testing.T) {
	d, ctrl, api := setupDispatcher(t)
	ctx := context.Background()
	chat := privateChat(9)

	d.Handle(ctx, command(chat, 9, "/password:wrong"))
	assert.Equal(t, "Wrong password.", api.lastTo(9))
	assert.False(t, ctrl.IsAdmin(ctx, models.GlobalRoomID, game.User(9)))

	d.Handle(ctx, command(chat, 9, "/password:s3cret"))
	assert.Equal(t, "@u9 is now an admin.", api.lastTo(9))
	assert.True(t, ctrl.IsAdmin(ctx, models.GlobalRoomID, game.User(9)))

	d.Handle(ctx, command(chat, 9, "/password:s3cret"))
	assert.Equal(t, "You are already an admin.", api.lastTo(9))

	api.mu.Lock()
	defer api.mu.Unlock()
	deletes := 0
	for _, r := range api.requests {
		if _, ok := r.(tgbotapi.DeleteMessageConfig); ok {
			deletes++
		}
	}
	assert.Equal(t, 3, deletes)
}

func TestDispatcherPrivateLobbyIsShared(t *testing.T) {
	d, ctrl, api := setupDispatcher(t)
	ctx := context.Background()

	d.Handle(ctx, command(privateChat(1), 1, "/start"))
	d.Handle(ctx, command(privateChat(2), 2, "/start"))

	st, err := ctrl.Status(ctx, models.GlobalRoomID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalPlayers)

	// Chat admin status never applies in private chats.
	api.statuses[1] = "creator"
	d.Handle(ctx, command(privateChat(1), 1, "/reset"))
	assert.Equal(t, "Only admins can do that.", api.lastTo(1))

	d.Handle(ctx, command(privateChat(2), 2, "/status"))
	assert.True(t, strings.HasPrefix(api.lastTo(2), "Lobby open, 2/4 players needed"))
}

func TestDispatcherDistributeReportsUnreachablePlayers(t *testing.T) {
	d, _, api := setupDispatcher(t)
	ctx := context.Background()
	api.statuses[1] = "administrator"
	api.blocked[3] = true

	for id := int64(1); id <= 4; id++ {
		d.Handle(ctx, command(group, id, "/start"))
	}
	d.Handle(ctx, command(group, 1, "/distribute"))

	reply := api.lastTo(group.ID)
	assert.Contains(t, reply, "Roles sent to 3 player(s).")
	assert.Contains(t, reply, "Could not message: 3.")
}
