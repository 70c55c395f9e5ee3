package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joescharf/gitvote/internal/chat"
	"github.com/joescharf/gitvote/internal/config"
	"github.com/joescharf/gitvote/internal/models"
	"github.com/joescharf/gitvote/internal/store"
	"github.com/joescharf/gitvote/internal/tracker"
)

// Engine drives the vote lifecycle: it starts votes, sleeps out the voting
// period, reconciles final state against GitHub and Discord, and keeps the
// store in sync so in-flight votes survive restarts.
//
// Each vote runs as one independent goroutine. The lifeCtx passed to New is
// the process lifetime: cancelling it interrupts in-flight waits, and an
// interrupted vote is left in the store for the next resumption instead of
// being force-closed.
type Engine struct {
	lifeCtx context.Context
	store   store.Store
	tracker tracker.Client
	chat    chat.Client
	logger  *slog.Logger

	wg sync.WaitGroup
}

// New creates an engine. lifeCtx bounds all background vote goroutines.
func New(lifeCtx context.Context, s store.Store, tc tracker.Client, cc chat.Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		lifeCtx: lifeCtx,
		store:   s,
		tracker: tc,
		chat:    cc,
		logger:  logger,
	}
}

// RequestVote is the trigger entry point shared by the webhook dispatcher and
// the operator command. It resolves the PR, runs the start transition
// synchronously so failures surface to the caller, then finishes the vote on
// its own goroutine.
func (e *Engine) RequestVote(ctx context.Context, prNumber int, cfg config.ChannelConfig) error {
	issue, err := tracker.Resolve(ctx, e.tracker, cfg.Repo, prNumber)
	if err != nil {
		return err
	}
	if issue == nil {
		return fmt.Errorf("PR not found: %s#%d", cfg.Repo, prNumber)
	}

	record, poll, err := e.StartVote(ctx, issue, cfg)
	if err != nil {
		return err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.finish(record, issue, poll)
	}()
	return nil
}

// RunVote runs a full vote lifecycle synchronously: start, wait, reconcile.
// Used by the one-shot operator command.
func (e *Engine) RunVote(ctx context.Context, prNumber int, cfg config.ChannelConfig) error {
	issue, err := tracker.Resolve(ctx, e.tracker, cfg.Repo, prNumber)
	if err != nil {
		return err
	}
	if issue == nil {
		return fmt.Errorf("PR not found: %s#%d", cfg.Repo, prNumber)
	}

	record, poll, err := e.StartVote(ctx, issue, cfg)
	if err != nil {
		return err
	}
	if err := e.Wait(ctx, record); err != nil {
		return err
	}
	return e.EndVote(ctx, record, issue, poll)
}

// StartVote transitions CREATED -> POLL_OPEN. It posts the poll (seeded with
// both reactions, best-effort pinned) and swaps the PR labels, all
// concurrently: every action runs to completion and the first error surfaces
// after all have settled. On any error the record is not persisted; remote
// side effects already issued stand (at-least-once, not transactional). On
// success the record is persisted before StartVote returns.
func (e *Engine) StartVote(ctx context.Context, issue *tracker.Issue, cfg config.ChannelConfig) (*models.VoteRecord, *chat.Poll, error) {
	record := models.NewVoteRecord(issue.Number, cfg, time.Now())
	labels := cfg.Labels

	// Stale results from a prior vote on the same PR, per the pre-vote
	// snapshot.
	var stale []string
	for _, l := range []string{labels.VoteRejected, labels.VoteAccepted, labels.VoteInProgress} {
		if issue.HasLabel(l) {
			stale = append(stale, l)
		}
	}

	var poll *chat.Poll
	var g errgroup.Group
	g.Go(func() error {
		p, err := e.createPoll(ctx, issue, cfg)
		if err != nil {
			return err
		}
		poll = p
		return nil
	})
	g.Go(func() error { return issue.RemoveLabel(ctx, labels.NeedsVote) })
	g.Go(func() error { return issue.AddLabel(ctx, labels.VoteInProgress) })
	for _, l := range stale {
		g.Go(func() error { return issue.RemoveLabel(ctx, l) })
	}

	if err := g.Wait(); err != nil {
		e.logger.Error("start vote failed", "pr", issue.Number, "repo", cfg.Repo, "error", err)
		return nil, nil, err
	}

	record.Poll = poll.Ref
	if err := e.store.PutVote(ctx, record); err != nil {
		return nil, nil, err
	}

	e.logger.Info("vote started", "pr", issue.Number, "repo", cfg.Repo,
		"poll", record.Poll.String(), "period_end", record.PeriodEnd)
	return record, poll, nil
}

// createPoll posts the poll embed, seeds both reaction glyphs, and attempts
// to pin the message.
func (e *Engine) createPoll(ctx context.Context, issue *tracker.Issue, cfg config.ChannelConfig) (*chat.Poll, error) {
	msgID, err := e.chat.SendEmbed(ctx, cfg.ChannelID, chat.StartEmbed(issue, cfg))
	if err != nil {
		return nil, err
	}

	ref := models.PollRef{ChannelID: cfg.ChannelID, MessageID: msgID}
	poll := chat.NewPoll(e.chat, ref, cfg.AyeEmoji, cfg.NayEmoji)

	var g errgroup.Group
	g.Go(func() error { return e.chat.AddReaction(ctx, ref, cfg.AyeEmoji) })
	g.Go(func() error { return e.chat.AddReaction(ctx, ref, cfg.NayEmoji) })
	g.Go(func() error { return poll.TryPin(ctx) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return poll, nil
}

// Wait suspends until the record's period end. The remaining time is always
// recomputed from the persisted PeriodEnd, so restarts never reset or
// double-count the open window. Cancellation of ctx aborts the wait with the
// record untouched.
func (e *Engine) Wait(ctx context.Context, record *models.VoteRecord) error {
	remaining := record.Remaining(time.Now())
	if remaining == 0 {
		return nil
	}

	e.logger.Debug("waiting for voting period", "poll", record.Poll.String(), "remaining", remaining)
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EndVote reconciles a vote whose period has elapsed. Both snapshots are
// refreshed in parallel; the vote is cancelled if the PR is gone, the poll
// message is gone, or the in-progress label was removed out-of-band.
// Otherwise the tally decides the outcome and the result is written back.
// The record is removed from the store only after all side effects complete,
// so a crash in between re-runs an idempotent reconciliation on restart.
func (e *Engine) EndVote(ctx context.Context, record *models.VoteRecord, issue *tracker.Issue, poll *chat.Poll) error {
	var g errgroup.Group
	g.Go(func() error { return issue.Refresh(ctx) })
	g.Go(func() error { return poll.Refresh(ctx) })
	if err := g.Wait(); err != nil {
		e.logger.Error("refresh failed ending vote", "poll", record.Poll.String(), "error", err)
		return err
	}

	labels := record.Config.Labels
	cancelled := !issue.Exists || !poll.Exists || !issue.HasLabel(labels.VoteInProgress)

	if cancelled {
		if err := e.cancelVote(ctx, record, issue, poll); err != nil {
			return err
		}
	} else {
		if err := e.closeVote(ctx, record, issue, poll); err != nil {
			return err
		}
	}

	// Terminal transition: the only deletion path, after side effects.
	if err := e.store.RemoveVote(ctx, record.Poll); err != nil {
		return err
	}
	e.logger.Info("vote finished", "pr", record.IssueNumber, "poll", record.Poll.String(), "cancelled", cancelled)
	return nil
}

func (e *Engine) cancelVote(ctx context.Context, record *models.VoteRecord, issue *tracker.Issue, poll *chat.Poll) error {
	labels := record.Config.Labels
	e.logger.Info("vote cancelled, cleaning up", "pr", record.IssueNumber, "poll", record.Poll.String(),
		"issue_exists", issue.Exists, "poll_exists", poll.Exists)

	var g errgroup.Group
	if issue.Exists && issue.HasLabel(labels.VoteInProgress) {
		g.Go(func() error { return issue.RemoveLabel(ctx, labels.VoteInProgress) })
	}
	if poll.Exists {
		g.Go(func() error { return poll.TryUnpin(ctx) })
	}
	if record.Config.Debug {
		g.Go(func() error {
			embed := chat.CancelEmbed(record.IssueNumber, issue.Exists, poll.Exists)
			_, err := e.chat.SendEmbed(ctx, record.Config.ChannelID, embed)
			return err
		})
	}
	return g.Wait()
}

func (e *Engine) closeVote(ctx context.Context, record *models.VoteRecord, issue *tracker.Issue, poll *chat.Poll) error {
	labels := record.Config.Labels
	accepted := poll.Accepted()
	resultLabel := labels.VoteRejected
	if accepted {
		resultLabel = labels.VoteAccepted
	}

	var g errgroup.Group
	g.Go(func() error {
		_, err := e.chat.SendEmbed(ctx, record.Config.ChannelID, chat.ResultEmbed(issue, poll, accepted))
		return err
	})
	g.Go(func() error { return issue.RemoveLabel(ctx, labels.VoteInProgress) })
	g.Go(func() error { return issue.AddLabel(ctx, resultLabel) })
	g.Go(func() error { return poll.TryUnpin(ctx) })
	return g.Wait()
}

// finish waits out the period and reconciles, on the engine's lifetime
// context. A shutdown mid-wait leaves the record persisted for resumption.
func (e *Engine) finish(record *models.VoteRecord, issue *tracker.Issue, poll *chat.Poll) {
	if err := e.Wait(e.lifeCtx, record); err != nil {
		e.logger.Info("vote wait interrupted, leaving record for resumption", "poll", record.Poll.String())
		return
	}
	if err := e.EndVote(e.lifeCtx, record, issue, poll); err != nil {
		e.logger.Error("end vote failed", "poll", record.Poll.String(), "error", err)
	}
}

// Resume reloads every persisted vote and re-enters each one at POLL_OPEN on
// its own goroutine. A record whose PR or poll message no longer resolves is
// treated as cancelled immediately and removed without further side effects.
func (e *Engine) Resume(ctx context.Context) error {
	records, err := e.store.ListVotes(ctx)
	if err != nil {
		return err
	}

	for _, record := range records {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.resumeOne(record)
		}()
	}
	if len(records) > 0 {
		e.logger.Info("resuming votes", "count", len(records))
	}
	return nil
}

func (e *Engine) resumeOne(record *models.VoteRecord) {
	ctx := e.lifeCtx
	cfg := record.Config

	issue, err := tracker.Resolve(ctx, e.tracker, cfg.Repo, record.IssueNumber)
	if err != nil {
		e.logger.Error("resume: resolve PR failed, leaving record", "poll", record.Poll.String(), "error", err)
		return
	}

	var poll *chat.Poll
	if issue != nil {
		poll, err = chat.ResolvePoll(ctx, e.chat, record.Poll, cfg.AyeEmoji, cfg.NayEmoji)
		if err != nil {
			e.logger.Error("resume: resolve poll failed, leaving record", "poll", record.Poll.String(), "error", err)
			return
		}
	}

	if issue == nil || poll == nil {
		e.logger.Info("resume: vote no longer resolvable, dropping", "poll", record.Poll.String())
		if err := e.store.RemoveVote(ctx, record.Poll); err != nil {
			e.logger.Error("resume: remove vote failed", "poll", record.Poll.String(), "error", err)
		}
		return
	}

	e.finish(record, issue, poll)
}

// Close blocks until all background vote goroutines have exited. Call after
// cancelling the lifetime context.
func (e *Engine) Close() {
	e.wg.Wait()
}
