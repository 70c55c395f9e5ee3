package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Lookup(t *testing.T) {
	reg, err := NewRegistry([]ChannelConfig{
		{Repo: "octocat/hello-world", ChannelID: 100},
		{Repo: "octocat/spoon-knife", ChannelID: 200},
	})
	require.NoError(t, err)

	cfg, ok := reg.ByRepo("octocat/hello-world")
	require.True(t, ok)
	assert.Equal(t, int64(100), cfg.ChannelID)

	cfg, ok = reg.ByChannel(200)
	require.True(t, ok)
	assert.Equal(t, "octocat/spoon-knife", cfg.Repo)

	_, ok = reg.ByRepo("nobody/nothing")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"octocat/hello-world", "octocat/spoon-knife"}, reg.Repos())
}

func TestNewRegistry_BackfillsDefaults(t *testing.T) {
	reg, err := NewRegistry([]ChannelConfig{
		{Repo: "octocat/hello-world", ChannelID: 100},
	})
	require.NoError(t, err)

	cfg, ok := reg.ByRepo("octocat/hello-world")
	require.True(t, ok)

	def := Default()
	assert.Equal(t, def.VotingPeriodSeconds, cfg.VotingPeriodSeconds)
	assert.Equal(t, def.AyeEmoji, cfg.AyeEmoji)
	assert.Equal(t, def.NayEmoji, cfg.NayEmoji)
	assert.Equal(t, def.Labels, cfg.Labels)
}

func TestNewRegistry_PartialOverrides(t *testing.T) {
	reg, err := NewRegistry([]ChannelConfig{
		{
			Repo:                "octocat/hello-world",
			ChannelID:           100,
			VotingPeriodSeconds: 60,
			Labels:              Labels{NeedsVote: "vote_me"},
		},
	})
	require.NoError(t, err)

	cfg, _ := reg.ByRepo("octocat/hello-world")
	assert.Equal(t, int64(60), cfg.VotingPeriodSeconds)
	assert.Equal(t, "vote_me", cfg.Labels.NeedsVote)
	// Unset label names still fall back.
	assert.Equal(t, "vote_in_progress", cfg.Labels.VoteInProgress)
}

func TestNewRegistry_MissingFields(t *testing.T) {
	_, err := NewRegistry([]ChannelConfig{{ChannelID: 100}})
	assert.ErrorContains(t, err, "no repo")

	_, err = NewRegistry([]ChannelConfig{{Repo: "octocat/hello-world"}})
	assert.ErrorContains(t, err, "no channel_id")
}

func TestNewRegistry_Duplicates(t *testing.T) {
	_, err := NewRegistry([]ChannelConfig{
		{Repo: "octocat/hello-world", ChannelID: 100},
		{Repo: "octocat/hello-world", ChannelID: 200},
	})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewRegistry([]ChannelConfig{
		{Repo: "octocat/hello-world", ChannelID: 100},
		{Repo: "octocat/spoon-knife", ChannelID: 100},
	})
	assert.ErrorContains(t, err, "duplicate")
}

func TestRegistry_Reload(t *testing.T) {
	reg, err := NewRegistry([]ChannelConfig{
		{Repo: "octocat/hello-world", ChannelID: 100},
	})
	require.NoError(t, err)

	require.NoError(t, reg.Reload([]ChannelConfig{
		{Repo: "octocat/spoon-knife", ChannelID: 200},
	}))

	_, ok := reg.ByRepo("octocat/hello-world")
	assert.False(t, ok)
	_, ok = reg.ByRepo("octocat/spoon-knife")
	assert.True(t, ok)
}

func TestChannelConfig_VotingPeriod(t *testing.T) {
	cfg := ChannelConfig{VotingPeriodSeconds: 90}
	assert.Equal(t, "1m30s", cfg.VotingPeriod().String())
}
