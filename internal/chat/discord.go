package chat

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/joescharf/gitvote/internal/models"
)

// DiscordClient implements Client over the Discord REST API. The bot never
// opens a gateway connection; reaction tallies are read by re-fetching the
// poll message.
type DiscordClient struct {
	session *discordgo.Session
}

// NewDiscordClient returns a client authenticated with the given bot token.
func NewDiscordClient(token string) (*DiscordClient, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordClient{session: session}, nil
}

func snowflake(id int64) string { return strconv.FormatInt(id, 10) }

// restStatus returns the HTTP status of a discordgo REST error, or 0.
func restStatus(err error) int {
	if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Response != nil {
		return restErr.Response.StatusCode
	}
	return 0
}

func (c *DiscordClient) SendEmbed(ctx context.Context, channelID int64, embed *discordgo.MessageEmbed) (int64, error) {
	msg, err := c.session.ChannelMessageSendEmbed(snowflake(channelID), embed, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("send message to channel %d: %w", channelID, err)
	}
	id, err := strconv.ParseInt(msg.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse message id %q: %w", msg.ID, err)
	}
	return id, nil
}

func (c *DiscordClient) AddReaction(ctx context.Context, ref models.PollRef, emoji string) error {
	err := c.session.MessageReactionAdd(snowflake(ref.ChannelID), snowflake(ref.MessageID), emoji, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("add reaction %s to %s: %w", emoji, ref, err)
	}
	return nil
}

func (c *DiscordClient) Message(ctx context.Context, ref models.PollRef) (*Message, error) {
	msg, err := c.session.ChannelMessage(snowflake(ref.ChannelID), snowflake(ref.MessageID), discordgo.WithContext(ctx))
	if restStatus(err) == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch message %s: %w", ref, err)
	}

	reactions := make(map[string]int, len(msg.Reactions))
	for _, r := range msg.Reactions {
		if r.Emoji != nil {
			reactions[r.Emoji.Name] = r.Count
		}
	}
	return &Message{Ref: ref, Reactions: reactions}, nil
}

func (c *DiscordClient) Pin(ctx context.Context, ref models.PollRef) error {
	err := c.session.ChannelMessagePin(snowflake(ref.ChannelID), snowflake(ref.MessageID), discordgo.WithContext(ctx))
	return wrapForbidden(err, "pin message", ref)
}

func (c *DiscordClient) Unpin(ctx context.Context, ref models.PollRef) error {
	err := c.session.ChannelMessageUnpin(snowflake(ref.ChannelID), snowflake(ref.MessageID), discordgo.WithContext(ctx))
	return wrapForbidden(err, "unpin message", ref)
}

func wrapForbidden(err error, op string, ref models.PollRef) error {
	if err == nil {
		return nil
	}
	if restStatus(err) == http.StatusForbidden {
		return fmt.Errorf("%s %s: %w", op, ref, ErrForbidden)
	}
	return fmt.Errorf("%s %s: %w", op, ref, err)
}
