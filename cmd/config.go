package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gitvote"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage gitvote configuration.

Running bare 'gitvote config' is the same as 'gitvote config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# gitvote configuration
# See: gitvote config show (for effective values and sources)

# State/data directory (default: ~/.config/gitvote)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/gitvote/votes.db)
# db_path: {{ .DBPath }}

# GitHub
github:
  # API token with repo scope (labels read/write)
  token: "{{ .GitHubToken }}"

# Discord
discord:
  # Bot token used to post polls and read reactions
  token: "{{ .DiscordToken }}"

# Inbound GitHub webhook
webhook:
  # Shared secret for X-Hub-Signature verification
  secret: "{{ .WebhookSecret }}"
  path: "{{ .WebhookPath }}"
  host: "{{ .WebhookHost }}"
  port: {{ .WebhookPort }}

# Voting channels. One entry per repo/channel pairing; label names, emojis
# and the voting period fall back to defaults when omitted.
channels:
  # - repo: "octocat/hello-world"
  #   channel_id: 123456789012345678
  #   voting_period_seconds: 86400
  #   aye_emoji: "👍"
  #   nay_emoji: "👎"
  #   labels:
  #     needs_vote: "needs_vote"
  #     vote_in_progress: "vote_in_progress"
  #     vote_accepted: "vote_accepted"
  #     vote_rejected: "vote_rejected"
  #   debug: false
`

type configTemplateData struct {
	StateDir      string
	DBPath        string
	GitHubToken   string
	DiscordToken  string
	WebhookSecret string
	WebhookPath   string
	WebhookHost   string
	WebhookPort   int
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:      viper.GetString("state_dir"),
		DBPath:        viper.GetString("db_path"),
		GitHubToken:   viper.GetString("github.token"),
		DiscordToken:  viper.GetString("discord.token"),
		WebhookSecret: viper.GetString("webhook.secret"),
		WebhookPath:   viper.GetString("webhook.path"),
		WebhookHost:   viper.GetString("webhook.host"),
		WebhookPort:   viper.GetInt("webhook.port"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "GITVOTE_STATE_DIR"},
	{Key: "db_path", EnvVar: "GITVOTE_DB_PATH"},
	{Key: "github.token", EnvVar: "GITVOTE_GITHUB_TOKEN", Secret: true},
	{Key: "discord.token", EnvVar: "GITVOTE_DISCORD_TOKEN", Secret: true},
	{Key: "webhook.secret", EnvVar: "GITVOTE_WEBHOOK_SECRET", Secret: true},
	{Key: "webhook.path", EnvVar: "GITVOTE_WEBHOOK_PATH"},
	{Key: "webhook.host", EnvVar: "GITVOTE_WEBHOOK_HOST"},
	{Key: "webhook.port", EnvVar: "GITVOTE_WEBHOOK_PORT"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Secret {
			val = maskSecret(viper.GetString(k.Key))
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-18s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// maskSecret hides all but the last few characters of a secret value.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 5 {
		return "*****"
	}
	return "*************" + s[len(s)-5:]
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set — set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'gitvote config init' first)", cfgPath)
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
