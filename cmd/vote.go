package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/gitvote/internal/chat"
	"github.com/joescharf/gitvote/internal/engine"
	"github.com/joescharf/gitvote/internal/output"
	"github.com/joescharf/gitvote/internal/tracker"
)

var (
	voteRepo  string
	voteForce bool
)

var voteCmd = &cobra.Command{
	Use:   "vote",
	Short: "Start and inspect PR votes",
}

var voteStartCmd = &cobra.Command{
	Use:   "start <pr-number>",
	Short: "Run a full vote on a PR and wait for the result",
	Long: `Start a vote on the given PR and block until the voting period ends
and the result has been written back. Use the daemon ('gitvote serve') for
votes that should survive this process exiting.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid PR number %q", args[0])
		}
		return voteStartRun(number)
	},
}

var voteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List in-flight votes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return voteListRun()
	},
}

var voteClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every persisted vote (full reset)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return voteClearRun()
	},
}

func init() {
	voteStartCmd.Flags().StringVar(&voteRepo, "repo", "", "Repo (owner/name) the PR belongs to; optional when only one channel is configured")
	voteClearCmd.Flags().BoolVar(&voteForce, "force", false, "Skip confirmation")

	voteCmd.AddCommand(voteStartCmd)
	voteCmd.AddCommand(voteListCmd)
	voteCmd.AddCommand(voteClearCmd)
	rootCmd.AddCommand(voteCmd)
}

func voteStartRun(number int) error {
	registry, err := loadRegistry()
	if err != nil {
		return err
	}

	repo := voteRepo
	if repo == "" {
		repos := registry.Repos()
		if len(repos) != 1 {
			return fmt.Errorf("--repo is required when multiple channels are configured")
		}
		repo = repos[0]
	}
	cfg, ok := registry.ByRepo(repo)
	if !ok {
		return fmt.Errorf("no channel configured for repo %s", repo)
	}

	githubToken := viper.GetString("github.token")
	if githubToken == "" {
		return fmt.Errorf("github.token is not configured")
	}
	discordToken := viper.GetString("discord.token")
	if discordToken == "" {
		return fmt.Errorf("discord.token is not configured")
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	discord, err := chat.NewDiscordClient(discordToken)
	if err != nil {
		return err
	}
	github := tracker.NewGitHubClient(ctx, githubToken)

	eng := engine.New(ctx, s, github, discord, newLogger())
	ui.Info("starting vote on %s#%d (period %s)", repo, number, cfg.VotingPeriod())
	if err := eng.RunVote(ctx, number, cfg); err != nil {
		return err
	}

	ui.Success("vote on %s#%d finished", repo, number)
	return nil
}

func voteListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	votes, err := s.ListVotes(rootCmd.Context())
	if err != nil {
		return err
	}
	if len(votes) == 0 {
		ui.Info("no votes in flight")
		return nil
	}

	now := time.Now()
	table := ui.Table([]string{"PR", "REPO", "CHANNEL", "MESSAGE", "STATUS", "ENDS", "REMAINING"})
	for _, v := range votes {
		status := "in_progress"
		if v.Remaining(now) == 0 {
			// Period elapsed but the daemon has not reconciled it yet.
			status = "open"
		}
		_ = table.Append([]string{
			fmt.Sprintf("#%d", v.IssueNumber),
			v.Config.Repo,
			strconv.FormatInt(v.Poll.ChannelID, 10),
			strconv.FormatInt(v.Poll.MessageID, 10),
			output.OutcomeColor(status),
			time.Unix(v.PeriodEnd, 0).Format(time.RFC3339),
			v.Remaining(now).String(),
		})
	}
	return table.Render()
}

func voteClearRun() error {
	if !voteForce {
		return fmt.Errorf("this drops every in-flight vote; re-run with --force to confirm")
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.ClearVotes(rootCmd.Context()); err != nil {
		return err
	}
	ui.Success("cleared all persisted votes")
	return nil
}
