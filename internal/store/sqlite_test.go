package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/gitvote/internal/config"
	"github.com/joescharf/gitvote/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "votes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testRecord(number int, channelID, messageID int64) *models.VoteRecord {
	cfg := config.Default()
	cfg.Repo = "octocat/hello-world"
	cfg.ChannelID = channelID
	cfg.Debug = true

	v := models.NewVoteRecord(number, cfg, time.Unix(1_700_000_000, 0))
	v.Poll = models.PollRef{ChannelID: channelID, MessageID: messageID}
	return v
}

func TestSQLiteStore_PutAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := testRecord(17, 100, 9001)
	require.NoError(t, s.PutVote(ctx, want))

	votes, err := s.ListVotes(ctx)
	require.NoError(t, err)
	require.Len(t, votes, 1)

	// The round-trip must preserve the record bit-for-bit, config snapshot
	// included: a resumed vote runs under the config it was started with.
	assert.Equal(t, want, votes[0])
}

func TestSQLiteStore_PutDuplicateFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutVote(ctx, testRecord(17, 100, 9001)))

	// Same poll ref, different PR: the poll message is the primary key.
	err := s.PutVote(ctx, testRecord(18, 100, 9001))
	assert.Error(t, err)
}

func TestSQLiteStore_RemoveVote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v := testRecord(17, 100, 9001)
	require.NoError(t, s.PutVote(ctx, v))
	require.NoError(t, s.RemoveVote(ctx, v.Poll))

	votes, err := s.ListVotes(ctx)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestSQLiteStore_RemoveAbsentIsNoop(t *testing.T) {
	s := newTestStore(t)

	err := s.RemoveVote(context.Background(), models.PollRef{ChannelID: 1, MessageID: 2})
	assert.NoError(t, err)
}

func TestSQLiteStore_ListOrderedByPeriodEnd(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	late := testRecord(2, 100, 9002)
	late.PeriodEnd += 3600
	require.NoError(t, s.PutVote(ctx, late))
	require.NoError(t, s.PutVote(ctx, testRecord(1, 100, 9001)))

	votes, err := s.ListVotes(ctx)
	require.NoError(t, err)
	require.Len(t, votes, 2)
	assert.Equal(t, 1, votes[0].IssueNumber)
	assert.Equal(t, 2, votes[1].IssueNumber)
}

func TestSQLiteStore_ClearVotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutVote(ctx, testRecord(1, 100, 9001)))
	require.NoError(t, s.PutVote(ctx, testRecord(2, 200, 9002)))
	require.NoError(t, s.ClearVotes(ctx))

	votes, err := s.ListVotes(ctx)
	require.NoError(t, err)
	assert.Empty(t, votes)
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutVote(ctx, testRecord(1, 100, 9001)))

	// Migrations run on every process start; re-running must not touch data.
	require.NoError(t, s.Migrate(ctx))

	votes, err := s.ListVotes(ctx)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}

func TestSQLiteStore_ReopenPersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "votes.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.PutVote(ctx, testRecord(17, 100, 9001)))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()
	require.NoError(t, s2.Migrate(ctx))

	votes, err := s2.ListVotes(ctx)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, 17, votes[0].IssueNumber)
}
