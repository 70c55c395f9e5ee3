package config

import "time"

// Labels holds the PR label names a vote transitions through.
type Labels struct {
	NeedsVote      string `json:"needs_vote" mapstructure:"needs_vote"`
	VoteInProgress string `json:"vote_in_progress" mapstructure:"vote_in_progress"`
	VoteAccepted   string `json:"vote_accepted" mapstructure:"vote_accepted"`
	VoteRejected   string `json:"vote_rejected" mapstructure:"vote_rejected"`
}

// ChannelConfig is the voting configuration for one Discord channel / GitHub
// repo pairing. A copy of it is snapshotted into each vote record at creation,
// so changing the live config never alters a vote already in flight.
type ChannelConfig struct {
	Repo                string `json:"repo" mapstructure:"repo"` // owner/name
	ChannelID           int64  `json:"channel_id" mapstructure:"channel_id"`
	VotingPeriodSeconds int64  `json:"voting_period_seconds" mapstructure:"voting_period_seconds"`
	AyeEmoji            string `json:"aye_emoji" mapstructure:"aye_emoji"`
	NayEmoji            string `json:"nay_emoji" mapstructure:"nay_emoji"`
	Labels              Labels `json:"labels" mapstructure:"labels"`
	Debug               bool   `json:"debug" mapstructure:"debug"`
}

// Default returns a ChannelConfig with the stock label names and emojis.
// Repo and ChannelID must still be filled in.
func Default() ChannelConfig {
	return ChannelConfig{
		VotingPeriodSeconds: 86400,
		AyeEmoji:            "\U0001F44D", // 👍
		NayEmoji:            "\U0001F44E", // 👎
		Labels: Labels{
			NeedsVote:      "needs_vote",
			VoteInProgress: "vote_in_progress",
			VoteAccepted:   "vote_accepted",
			VoteRejected:   "vote_rejected",
		},
	}
}

// VotingPeriod returns the configured period as a duration.
func (c ChannelConfig) VotingPeriod() time.Duration {
	return time.Duration(c.VotingPeriodSeconds) * time.Second
}

// applyDefaults fills zero-valued fields from Default so partial config
// entries behave like the stock configuration.
func (c ChannelConfig) applyDefaults() ChannelConfig {
	def := Default()
	if c.VotingPeriodSeconds == 0 {
		c.VotingPeriodSeconds = def.VotingPeriodSeconds
	}
	if c.AyeEmoji == "" {
		c.AyeEmoji = def.AyeEmoji
	}
	if c.NayEmoji == "" {
		c.NayEmoji = def.NayEmoji
	}
	if c.Labels.NeedsVote == "" {
		c.Labels.NeedsVote = def.Labels.NeedsVote
	}
	if c.Labels.VoteInProgress == "" {
		c.Labels.VoteInProgress = def.Labels.VoteInProgress
	}
	if c.Labels.VoteAccepted == "" {
		c.Labels.VoteAccepted = def.Labels.VoteAccepted
	}
	if c.Labels.VoteRejected == "" {
		c.Labels.VoteRejected = def.Labels.VoteRejected
	}
	return c
}
