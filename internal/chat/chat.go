package chat

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/joescharf/gitvote/internal/models"
)

// ErrForbidden marks a remote call rejected for missing permissions. Pin and
// unpin are cosmetic, so callers swallow this error; everything else
// propagates it.
var ErrForbidden = errors.New("missing permission")

// Message is a point-in-time snapshot of a channel message's reactions,
// keyed by emoji name with raw counts (the bot's own seed reaction included).
type Message struct {
	Ref       models.PollRef
	Reactions map[string]int
}

// Client defines the capabilities gitvote needs from a chat service. All
// calls are remote and independently failable; a deleted message is reported
// as a nil result, not an error.
type Client interface {
	// SendEmbed posts an embed to a channel and returns the new message ID.
	SendEmbed(ctx context.Context, channelID int64, embed *discordgo.MessageEmbed) (int64, error)
	// AddReaction seeds a reaction on a message.
	AddReaction(ctx context.Context, ref models.PollRef, emoji string) error
	// Message fetches a message. Returns (nil, nil) if it has been deleted.
	Message(ctx context.Context, ref models.PollRef) (*Message, error)
	// Pin pins a message. Returns ErrForbidden when the bot lacks permission.
	Pin(ctx context.Context, ref models.PollRef) error
	// Unpin unpins a message. Returns ErrForbidden when the bot lacks permission.
	Unpin(ctx context.Context, ref models.PollRef) error
}
