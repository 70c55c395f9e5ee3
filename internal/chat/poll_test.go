package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/gitvote/internal/models"
)

// fakeClient is an in-memory chat backend. Reactions hold raw counts, the
// bot's own seed included, matching what the remote API reports.
type fakeClient struct {
	mu       sync.Mutex
	nextID   int64
	messages map[models.PollRef]map[string]int
	pinned   map[models.PollRef]bool
	pinErr   error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		nextID:   9000,
		messages: make(map[models.PollRef]map[string]int),
		pinned:   make(map[models.PollRef]bool),
	}
}

func (f *fakeClient) SendEmbed(ctx context.Context, channelID int64, embed *discordgo.MessageEmbed) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ref := models.PollRef{ChannelID: channelID, MessageID: f.nextID}
	f.messages[ref] = make(map[string]int)
	return f.nextID, nil
}

func (f *fakeClient) AddReaction(ctx context.Context, ref models.PollRef, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reactions, ok := f.messages[ref]
	if !ok {
		return errors.New("unknown message")
	}
	reactions[emoji]++
	return nil
}

func (f *fakeClient) Message(ctx context.Context, ref models.PollRef) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reactions, ok := f.messages[ref]
	if !ok {
		return nil, nil
	}
	cp := make(map[string]int, len(reactions))
	for k, v := range reactions {
		cp[k] = v
	}
	return &Message{Ref: ref, Reactions: cp}, nil
}

func (f *fakeClient) Pin(ctx context.Context, ref models.PollRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pinErr != nil {
		return f.pinErr
	}
	f.pinned[ref] = true
	return nil
}

func (f *fakeClient) Unpin(ctx context.Context, ref models.PollRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pinErr != nil {
		return f.pinErr
	}
	f.pinned[ref] = false
	return nil
}

// react sets the raw reaction count for an emoji.
func (f *fakeClient) react(ref models.PollRef, emoji string, raw int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[ref][emoji] = raw
}

func (f *fakeClient) deleteMessage(ref models.PollRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.messages, ref)
}

func seedPoll(t *testing.T, c *fakeClient) models.PollRef {
	t.Helper()
	msgID, err := c.SendEmbed(context.Background(), 100, &discordgo.MessageEmbed{})
	require.NoError(t, err)
	ref := models.PollRef{ChannelID: 100, MessageID: msgID}
	require.NoError(t, c.AddReaction(context.Background(), ref, "👍"))
	require.NoError(t, c.AddReaction(context.Background(), ref, "👎"))
	return ref
}

func TestPoll_Refresh_SubtractsSeed(t *testing.T) {
	c := newFakeClient()
	ref := seedPoll(t, c)

	// Raw 4 ayes and 2 nays include one seed reaction each.
	c.react(ref, "👍", 4)
	c.react(ref, "👎", 2)

	p := NewPoll(c, ref, "👍", "👎")
	require.NoError(t, p.Refresh(context.Background()))

	assert.Equal(t, 3, p.AyeCount)
	assert.Equal(t, 1, p.NayCount)
	assert.True(t, p.Exists)
}

func TestPoll_Refresh_SeedOnlyIsZero(t *testing.T) {
	c := newFakeClient()
	ref := seedPoll(t, c)

	p := NewPoll(c, ref, "👍", "👎")
	require.NoError(t, p.Refresh(context.Background()))

	assert.Equal(t, 0, p.AyeCount)
	assert.Equal(t, 0, p.NayCount)
}

func TestPoll_Refresh_MissingReactionIsZero(t *testing.T) {
	c := newFakeClient()
	msgID, err := c.SendEmbed(context.Background(), 100, &discordgo.MessageEmbed{})
	require.NoError(t, err)
	ref := models.PollRef{ChannelID: 100, MessageID: msgID}

	// A seed reaction removed out-of-band must not go negative.
	p := NewPoll(c, ref, "👍", "👎")
	require.NoError(t, p.Refresh(context.Background()))

	assert.Equal(t, 0, p.AyeCount)
	assert.Equal(t, 0, p.NayCount)
}

func TestPoll_Refresh_Deleted(t *testing.T) {
	c := newFakeClient()
	ref := seedPoll(t, c)

	p := NewPoll(c, ref, "👍", "👎")
	c.deleteMessage(ref)

	require.NoError(t, p.Refresh(context.Background()))
	assert.False(t, p.Exists)
}

func TestResolvePoll(t *testing.T) {
	c := newFakeClient()
	ref := seedPoll(t, c)
	c.react(ref, "👍", 3)

	p, err := ResolvePoll(context.Background(), c, ref, "👍", "👎")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 2, p.AyeCount)
	assert.True(t, p.Exists)
}

func TestResolvePoll_Deleted(t *testing.T) {
	c := newFakeClient()

	p, err := ResolvePoll(context.Background(), c, models.PollRef{ChannelID: 1, MessageID: 2}, "👍", "👎")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPoll_Accepted(t *testing.T) {
	p := &Poll{AyeCount: 3, NayCount: 1}
	assert.True(t, p.Accepted())

	p = &Poll{AyeCount: 1, NayCount: 3}
	assert.False(t, p.Accepted())
}

func TestPoll_Accepted_TieRejects(t *testing.T) {
	p := &Poll{AyeCount: 2, NayCount: 2}
	assert.False(t, p.Accepted())

	p = &Poll{}
	assert.False(t, p.Accepted())
}

func TestPoll_TryPin_SwallowsForbidden(t *testing.T) {
	c := newFakeClient()
	ref := seedPoll(t, c)
	p := NewPoll(c, ref, "👍", "👎")

	c.pinErr = ErrForbidden
	assert.NoError(t, p.TryPin(context.Background()))
	assert.NoError(t, p.TryUnpin(context.Background()))

	// Other failures still propagate.
	c.pinErr = errors.New("rate limited")
	assert.Error(t, p.TryPin(context.Background()))
	assert.Error(t, p.TryUnpin(context.Background()))
}

func TestPoll_TryPin(t *testing.T) {
	c := newFakeClient()
	ref := seedPoll(t, c)
	p := NewPoll(c, ref, "👍", "👎")

	require.NoError(t, p.TryPin(context.Background()))
	assert.True(t, c.pinned[ref])

	require.NoError(t, p.TryUnpin(context.Background()))
	assert.False(t, c.pinned[ref])
}
