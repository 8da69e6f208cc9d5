package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	settingsPath string
	backendURL   string
	templatePath string
	promptPath   string
	ephemeral    bool
	debugMode    bool
)

var rootCmd = &cobra.Command{
	Use:   "post-editor",
	Short: "Rewrite news posts for VK and Telegram",
	Long: `Generates platform-specific variants of a source post, lets you pick and
edit one per platform, and publishes or exports the result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugMode {
			SetDebugMode(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to settings file (default .post-editor/settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Post service URL")
	rootCmd.PersistentFlags().StringVar(&templatePath, "template", "", "Path to custom export template file")
	rootCmd.PersistentFlags().StringVar(&promptPath, "prompt", "", "Path to custom rewriter system prompt file")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep the session in memory; nothing is written to the session file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		loginCmd, registerCmd, logoutCmd, whoamiCmd, refreshCmd,
		rewriteCmd, editCmd, previewCmd, newsCmd, keysCmd,
	)
}

func configOverrides() *ConfigOverrides {
	overrides := &ConfigOverrides{Ephemeral: ephemeral}
	if settingsPath != "" {
		overrides.SettingsPath = &settingsPath
	}
	if backendURL != "" {
		overrides.BackendURL = &backendURL
	}
	if templatePath != "" {
		overrides.TemplatePath = &templatePath
	}
	if promptPath != "" {
		overrides.PromptPath = &promptPath
	}
	return overrides
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
