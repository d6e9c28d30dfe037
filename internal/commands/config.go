package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/diogo/geminivoice/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open configuration menu",
	Long: `Interactive menu to configure geminivoice settings.

Use the subcommands to read or change single settings from scripts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := deps.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		path, err := deps.ConfigPath()
		if err != nil {
			return err
		}
		return deps.TUI.RunConfig(cfg, path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every setting",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting and save the config file.

Keys: ` + strings.Join(config.SettableKeys(), ", "),
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := deps.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tVALUE")
	_, _ = fmt.Fprintln(w, "---\t-----")
	for _, key := range config.SettableKeys() {
		value, err := config.Get(cfg, key)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", key, value)
	}
	_, _ = fmt.Fprintf(w, "GEMINI_API_KEY\t%s\n", credentialStatus(cfg.APIKey))
	_, _ = fmt.Fprintf(w, "DEEPGRAM_API_KEY\t%s\n", credentialStatus(cfg.DeepgramAPIKey))
	return w.Flush()
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	value, err := config.Get(cfg, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Set(&cfg, args[0], args[1]); err != nil {
		return err
	}

	path, err := deps.ConfigPath()
	if err != nil {
		return err
	}
	if err := config.SaveConfigTo(path, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	value, _ := config.Get(cfg, args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], value)
	return nil
}

func credentialStatus(value string) string {
	if value == "" {
		return "not set"
	}
	return "set"
}
