// Package telegram binds the game controller to a Telegram bot: it implements
// game.Transport over the Bot API and turns chat commands into controller calls.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jason-s-yu/imposter/internal/game"
)

// API is the subset of *tgbotapi.BotAPI the binding uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetInviteLink(config tgbotapi.ChatInviteLinkConfig) (string, error)
}

// Client implements game.Transport. The Bot API calls are blocking HTTP
// requests; ctx is only checked before each call.
type Client struct {
	api API
}

var _ game.Transport = (*Client)(nil)

// NewClient wraps api.
func NewClient(api API) *Client {
	return &Client{api: api}
}

// SendText posts plain text to chatID and returns the message id.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg, err := c.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return msg.MessageID, nil
}

func (c *Client) SendToPlayer(ctx context.Context, playerID int64, ev game.Event) error {
	_, err := c.SendText(ctx, playerID, Render(ev))
	return err
}

func (c *Client) SendToRoom(ctx context.Context, roomID int64, ev game.Event) (int, error) {
	return c.SendText(ctx, roomID, Render(ev))
}

func (c *Client) DeleteMessage(ctx context.Context, roomID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(roomID, messageID)); err != nil {
		return fmt.Errorf("delete message %d in chat %d: %w", messageID, roomID, err)
	}
	return nil
}

func (c *Client) MembershipRole(ctx context.Context, roomID, userID int64) (game.MemberRole, error) {
	if err := ctx.Err(); err != nil {
		return game.RoleOther, err
	}
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: roomID, UserID: userID},
	})
	if err != nil {
		return game.RoleOther, fmt.Errorf("get chat member %d in %d: %w", userID, roomID, err)
	}
	return roleOf(member.Status), nil
}

// roleOf maps a chat member status string onto the closed role set.
func roleOf(status string) game.MemberRole {
	switch status {
	case "creator":
		return game.RoleCreator
	case "administrator":
		return game.RoleAdministrator
	case "member", "restricted":
		return game.RoleMember
	default:
		return game.RoleOther
	}
}

// BanThenUnban removes userID from the group while letting them rejoin later.
func (c *Client) BanThenUnban(ctx context.Context, roomID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	member := tgbotapi.ChatMemberConfig{ChatID: roomID, UserID: userID}
	if _, err := c.api.Request(tgbotapi.BanChatMemberConfig{ChatMemberConfig: member}); err != nil {
		return fmt.Errorf("ban %d in %d: %w", userID, roomID, err)
	}
	if _, err := c.api.Request(tgbotapi.UnbanChatMemberConfig{ChatMemberConfig: member, OnlyIfBanned: true}); err != nil {
		return fmt.Errorf("unban %d in %d: %w", userID, roomID, err)
	}
	return nil
}

func (c *Client) InviteLink(ctx context.Context, roomID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	link, err := c.api.GetInviteLink(tgbotapi.ChatInviteLinkConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: roomID}})
	if err != nil {
		return "", fmt.Errorf("invite link for %d: %w", roomID, err)
	}
	return link, nil
}
