package store

import (
	"context"

	"github.com/joescharf/gitvote/internal/models"
)

// Store is the persistence interface for in-flight votes. The store is a
// work-queue, not a history log: a record exists exactly while its vote is
// open, and removal at the terminal transition is the only deletion path.
type Store interface {
	// PutVote inserts a new record. Inserting a second record for the same
	// poll ref fails, which is what serializes concurrent starts.
	PutVote(ctx context.Context, v *models.VoteRecord) error
	// RemoveVote deletes by poll ref. Removing an absent record is a no-op.
	RemoveVote(ctx context.Context, ref models.PollRef) error
	// ListVotes returns every in-flight record, for startup recovery.
	ListVotes(ctx context.Context) ([]*models.VoteRecord, error)
	// ClearVotes wipes the store. Operator-triggered full reset only.
	ClearVotes(ctx context.Context) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
