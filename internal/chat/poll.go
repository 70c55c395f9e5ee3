package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/joescharf/gitvote/internal/models"
)

// Poll wraps a single posted reaction message. Read-only after creation
// except for Refresh; the engine decides what the tally means.
type Poll struct {
	client Client

	Ref      models.PollRef
	AyeEmoji string
	NayEmoji string
	AyeCount int
	NayCount int
	Exists   bool
}

// NewPoll wraps a freshly posted poll message.
func NewPoll(client Client, ref models.PollRef, ayeEmoji, nayEmoji string) *Poll {
	return &Poll{
		client:   client,
		Ref:      ref,
		AyeEmoji: ayeEmoji,
		NayEmoji: nayEmoji,
		Exists:   true,
	}
}

// ResolvePoll fetches a persisted poll message and wraps it. Returns
// (nil, nil) if the message has been deleted.
func ResolvePoll(ctx context.Context, client Client, ref models.PollRef, ayeEmoji, nayEmoji string) (*Poll, error) {
	msg, err := client.Message(ctx, ref)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}

	p := NewPoll(client, ref, ayeEmoji, nayEmoji)
	p.applyTally(msg)
	return p, nil
}

// applyTally derives vote counts from raw reaction counts, subtracting the
// bot's own seed reaction per glyph.
func (p *Poll) applyTally(msg *Message) {
	p.AyeCount = seedless(msg.Reactions[p.AyeEmoji])
	p.NayCount = seedless(msg.Reactions[p.NayEmoji])
}

func seedless(raw int) int {
	if raw <= 1 {
		return 0
	}
	return raw - 1
}

// Refresh re-fetches the message. If it has been deleted, Exists flips to
// false and the counts stay stale.
func (p *Poll) Refresh(ctx context.Context) error {
	msg, err := p.client.Message(ctx, p.Ref)
	if err != nil {
		return err
	}
	if msg == nil {
		p.Exists = false
		return nil
	}
	p.applyTally(msg)
	p.Exists = true
	return nil
}

// Accepted reports whether the tally carries a strict majority of ayes.
// A tie is a rejection.
func (p *Poll) Accepted() bool {
	return p.AyeCount > p.NayCount
}

// TryPin pins the poll message, swallowing permission failures.
func (p *Poll) TryPin(ctx context.Context) error {
	if err := p.client.Pin(ctx, p.Ref); err != nil && !errors.Is(err, ErrForbidden) {
		return err
	}
	return nil
}

// TryUnpin unpins the poll message, swallowing permission failures.
func (p *Poll) TryUnpin(ctx context.Context) error {
	if err := p.client.Unpin(ctx, p.Ref); err != nil && !errors.Is(err, ErrForbidden) {
		return err
	}
	return nil
}

func (p *Poll) String() string {
	return fmt.Sprintf("Poll(ref=%s, aye=%d, nay=%d, exists=%t)", p.Ref, p.AyeCount, p.NayCount, p.Exists)
}
