package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/gitvote/internal/config"
	"github.com/joescharf/gitvote/internal/output"
	"github.com/joescharf/gitvote/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	voteStore store.Store

	verbose bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "gitvote",
	Short: "gitvote - gate PR merges on Discord reaction votes",
	Long: `gitvote runs time-boxed approval votes on GitHub pull requests.
A 'needs_vote' label (or an explicit command) opens a reaction poll in the
configured Discord channel; when the voting period ends gitvote tallies the
reactions and writes the result back to the PR as a label.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", buildVersion, buildCommit, buildDate)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/gitvote/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "gitvote")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GITVOTE")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "gitvote")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "votes.db"))
	viper.SetDefault("github.token", "")
	viper.SetDefault("discord.token", "")
	viper.SetDefault("webhook.secret", "")
	viper.SetDefault("webhook.path", "/webhook")
	viper.SetDefault("webhook.host", "")
	viper.SetDefault("webhook.port", 8585)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// The store is opened lazily so config/version commands run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if voteStore != nil {
		return voteStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	voteStore = s
	return voteStore, nil
}

// loadRegistry builds the repo/channel registry from the channels list in the
// config file.
func loadRegistry() (*config.Registry, error) {
	var channels []config.ChannelConfig
	if err := viper.UnmarshalKey("channels", &channels); err != nil {
		return nil, fmt.Errorf("parse channels config: %w", err)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels configured (add a 'channels:' list to the config file)")
	}
	return config.NewRegistry(channels)
}
