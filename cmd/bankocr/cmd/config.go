package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/bankocr/internal/config"
)

// configCmd groups configuration helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a configuration file with the default settings",
	Long: `Write every setting with its default value. Field regions are left empty
and must be filled in for the target application before extracting.

Examples:
  bankocr config init
  bankocr config init ~/.config/bankocr/bankocr.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			filename = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(filename); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", filename)
		}
		if err := config.GenerateDefaultConfigFile(filename); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", filename)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Long: `Print the configuration after merging defaults, the config file,
BANKOCR_* environment variables and flags, then report whether it is valid.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		format, _ := cmd.Flags().GetString("format")

		var out []byte
		var err error
		switch format {
		case "yaml":
			out, err = yaml.Marshal(cfg)
		case "json":
			out, err = json.MarshalIndent(cfg, "", "  ")
			out = append(out, '\n')
		default:
			return fmt.Errorf("unsupported format: %s (must be yaml or json)", format)
		}
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}

		w := cmd.OutOrStdout()
		if used := GetConfigLoader().GetConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "# config file: %s\n", used)
		}
		_, _ = w.Write(out)

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration is invalid: %w", err)
		}
		return nil
	},
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "List the directories searched for bankocr.yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, p := range config.GetConfigSearchPaths() {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "environment prefix: %s_\n", config.EnvPrefix)
		return nil
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configShowCmd.Flags().String("format", "yaml", "output format (yaml, json)")

	configCmd.AddCommand(configInitCmd, configShowCmd, configPathsCmd)
	rootCmd.AddCommand(configCmd)
}
