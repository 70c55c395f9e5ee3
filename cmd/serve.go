package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/gitvote/internal/chat"
	"github.com/joescharf/gitvote/internal/daemon"
	"github.com/joescharf/gitvote/internal/engine"
	"github.com/joescharf/gitvote/internal/tracker"
	"github.com/joescharf/gitvote/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the vote daemon",
	Long: `Run the gitvote daemon: resume persisted votes, listen for GitHub
webhook deliveries, and close votes as their periods elapse.

The daemon runs in the foreground; stop it with Ctrl-C, SIGTERM, or
'gitvote serve stop' from another shell.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the daemon is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8585, "webhook port to listen on")
	_ = viper.BindPFlag("webhook.port", serveCmd.Flags().Lookup("port"))

	serveCmd.AddCommand(serveStatusCmd)
	serveCmd.AddCommand(serveStopCmd)
	rootCmd.AddCommand(serveCmd)
}

// pidFile returns the PID file guarding against a second daemon. Two engines
// sharing one vote db would break the one-writer-per-vote assumption.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "gitvote-serve.pid"))
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func serveRun() error {
	pf := pidFile()
	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pf.Remove() }()

	githubToken := viper.GetString("github.token")
	if githubToken == "" {
		return fmt.Errorf("github.token is not configured")
	}
	discordToken := viper.GetString("discord.token")
	if discordToken == "" {
		return fmt.Errorf("discord.token is not configured")
	}
	secret := viper.GetString("webhook.secret")
	if secret == "" {
		return fmt.Errorf("webhook.secret is not configured")
	}

	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	discord, err := chat.NewDiscordClient(discordToken)
	if err != nil {
		return err
	}
	github := tracker.NewGitHubClient(ctx, githubToken)

	eng := engine.New(ctx, s, github, discord, logger)
	if err := eng.Resume(ctx); err != nil {
		return fmt.Errorf("resume persisted votes: %w", err)
	}

	handler := webhook.NewHandler(secret, viper.GetString("webhook.path"), registry, eng, logger)
	addr := fmt.Sprintf("%s:%d", viper.GetString("webhook.host"), viper.GetInt("webhook.port"))
	server := &http.Server{Addr: addr, Handler: handler.Router()}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhook listening", "addr", addr, "path", viper.GetString("webhook.path"))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		stop()
		logger.Error("webhook server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	// Interrupted votes stay in the store; the next serve resumes them.
	eng.Close()
	return nil
}

func serveStatusRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		ui.Info("daemon running (pid %d)", pid)
	} else {
		ui.Info("daemon not running")
	}
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		return fmt.Errorf("daemon not running")
	}
	if err := pf.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("stop daemon: %w", err)
	}
	ui.Success("sent SIGTERM to daemon (pid %d)", pid)
	return nil
}
