package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/joescharf/gitvote/internal/config"
	"github.com/joescharf/gitvote/internal/tracker"
)

const (
	colorAccepted = 0x008000
	colorRejected = 0xFF0000
)

// StartEmbed renders the poll message opening a vote.
func StartEmbed(issue *tracker.Issue, cfg config.ChannelConfig) *discordgo.MessageEmbed {
	desc := issue.Description
	if len([]rune(desc)) >= 200 {
		desc = string([]rune(desc)[:197]) + "..."
	}

	return &discordgo.MessageEmbed{
		Title: fmt.Sprintf("PR #%d", issue.Number),
		Description: fmt.Sprintf("Vote to merge [**PR #%d - %s**](%s) by _%s_.\n```%s```",
			issue.Number, issue.Title, issue.URL, issue.Author, desc),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Vote %s to accept, %s to reject. Voting ends after %s",
				cfg.AyeEmoji, cfg.NayEmoji, formatPeriod(cfg.VotingPeriod())),
		},
	}
}

// ResultEmbed renders the closing announcement with the final tally.
func ResultEmbed(issue *tracker.Issue, poll *Poll, accepted bool) *discordgo.MessageEmbed {
	result := "rejected"
	title := "Vote Rejected"
	color := colorRejected
	if accepted {
		result = "accepted"
		title = "Vote Accepted"
		color = colorAccepted
	}

	return &discordgo.MessageEmbed{
		Title: title,
		Color: color,
		Description: fmt.Sprintf("[PR #%d - %s](%s) has been **%s**.\n\n`%sx%d to %sx%d`",
			issue.Number, issue.Title, issue.URL, result,
			poll.AyeEmoji, poll.AyeCount, poll.NayEmoji, poll.NayCount),
	}
}

// CancelEmbed renders the debug-only notice posted when a vote is cancelled.
func CancelEmbed(issueNumber int, issueExists, pollExists bool) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("--Vote on PR %d has been cancelled--", issueNumber),
	}
	if !issueExists {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "PR",
			Value: fmt.Sprintf("PR %d has been deleted, merged, or closed", issueNumber),
		})
	}
	if !pollExists {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Discord Message",
			Value: "Poll message has been deleted",
		})
	}
	return embed
}

// formatPeriod prints a duration as "N days, M min, S sec", dropping zero
// components.
func formatPeriod(d time.Duration) string {
	days := int(d.Hours()) / 24
	rem := d - time.Duration(days)*24*time.Hour
	minutes := int(rem.Minutes())
	seconds := int(rem.Seconds()) - minutes*60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d days", days))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d min", minutes))
	}
	if seconds > 0 {
		parts = append(parts, fmt.Sprintf("%d sec", seconds))
	}
	if len(parts) == 0 {
		return "0 sec"
	}
	return strings.Join(parts, ", ")
}
