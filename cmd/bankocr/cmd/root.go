package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/bankocr/internal/config"
	"github.com/MeKo-Tech/bankocr/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// ErrPartialResult marks a run that finished with at least one unreadable field.
var ErrPartialResult = errors.New("one or more fields could not be read")

// configKeyAnnotation ties a flag to the configuration key it overrides.
const configKeyAnnotation = "bankocr_config_key"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "bankocr",
	Short: "Read bank transfer fields from an application window",
	Long: `bankocr reads the bank code, bank name, branch code and branch name from
fixed regions of a running application window using Tesseract OCR.

Each field is captured, binarized, recognized and corrected on its own. A field
that cannot be read is reported as empty while the others are still returned.

Examples:
  bankocr extract --title "振込入力"
  bankocr image screenshot.png --format json
  bankocr regions screenshot.png --out regions.png
  bankocr serve --port 8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.Flags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitCode(err))
	}
}

// ExitCode maps a command error to the process exit status: 0 on success,
// 2 when the run completed with unreadable fields and 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrPartialResult):
		return 2
	default:
		return 1
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/bankocr, /etc/bankocr)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	bindFlag(rootCmd.PersistentFlags(), "verbose", "verbose")
	bindFlag(rootCmd.PersistentFlags(), "log-level", "log_level")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initConfig(cmd); err != nil {
			return err
		}
		setupLogging(cmd.ErrOrStderr(), globalConfig)
		return nil
	}
}

// bindFlag marks a flag as the command-line source of a configuration key.
// The binding is applied only for the command that actually runs, so several
// commands may expose the same key.
func bindFlag(flags *pflag.FlagSet, name, key string) {
	_ = flags.SetAnnotation(name, configKeyAnnotation, []string{key})
}

// bindConfigFlags binds the annotated flags of cmd, including inherited ones.
func bindConfigFlags(v *viper.Viper, cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[configKeyAnnotation]
		if len(keys) == 0 || err != nil {
			return
		}
		err = v.BindPFlag(keys[0], f)
	})
	return err
}

// initConfig reads the config file, environment variables and the flags of
// the running command. Validation is left to the commands that need it.
func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	if err := bindConfigFlags(v, cmd); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	configLoader = config.NewLoaderWithViper(v)

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFileWithoutValidation(cfgFile)
	} else {
		globalConfig, err = configLoader.LoadWithoutValidation()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// setupLogging installs a JSON slog handler on w. Standard output is kept
// for results.
func setupLogging(w io.Writer, cfg *config.Config) {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// GetConfig returns the configuration resolved for the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		cfg := config.DefaultConfig()
		return &cfg
	}
	return globalConfig
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoaderWithViper(viper.New())
	}
	return configLoader
}

// validConfig returns the resolved configuration after validation.
func validConfig() (*config.Config, error) {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
