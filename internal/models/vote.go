package models

import (
	"fmt"
	"time"

	"github.com/joescharf/gitvote/internal/config"
)

// PollRef identifies a posted poll message. It is assigned once when the poll
// is created and is the natural primary key for a vote: at most one vote may
// exist per poll message.
type PollRef struct {
	ChannelID int64
	MessageID int64
}

func (r PollRef) String() string {
	return fmt.Sprintf("%d/%d", r.ChannelID, r.MessageID)
}

// VoteRecord is the durable unit describing one in-flight vote: which PR it
// gates, which poll message tallies it, the fixed voting window, and the
// config snapshot the vote was started under. It lives in the store from the
// moment the vote starts until the vote closes or is cancelled.
//
// Timestamps are wall-clock epoch seconds so the window survives restarts;
// PeriodEnd is fixed at creation and never recomputed.
type VoteRecord struct {
	IssueNumber int
	Poll        PollRef
	PeriodStart int64
	PeriodEnd   int64
	Config      config.ChannelConfig
}

// NewVoteRecord builds a record for a vote starting now, with the period end
// derived from the config snapshot's voting period.
func NewVoteRecord(issueNumber int, cfg config.ChannelConfig, now time.Time) *VoteRecord {
	start := now.Unix()
	return &VoteRecord{
		IssueNumber: issueNumber,
		PeriodStart: start,
		PeriodEnd:   start + cfg.VotingPeriodSeconds,
		Config:      cfg,
	}
}

// Remaining returns how much of the voting period is left at the given time,
// clamped at zero. A record loaded after its period end returns 0 so
// resumption reconciles immediately instead of sleeping.
func (v *VoteRecord) Remaining(now time.Time) time.Duration {
	secs := v.PeriodEnd - now.Unix()
	if secs < 0 {
		secs = 0
	}
	return time.Duration(secs) * time.Second
}

func (v *VoteRecord) String() string {
	return fmt.Sprintf("Vote(pr=#%d, poll=%s)", v.IssueNumber, v.Poll)
}
