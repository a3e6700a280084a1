package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/MeKo-Tech/bankocr/internal/fields"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "bankocr"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "BANKOCR"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	// Use the global viper instance to ensure flag bindings work
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on its own viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables, and sets defaults.
// It returns the loaded configuration and any error encountered.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation loads configuration like Load but skips validation.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithFileWithoutValidation loads configuration from a specific file path without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we'll use defaults and env vars
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// Replace dots and dashes with underscores in env var names
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	// Global settings
	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	// Window defaults
	l.v.SetDefault("window.title", defaults.Window.Title)
	l.v.SetDefault("window.activate", defaults.Window.Activate)
	l.v.SetDefault("window.activation_delay", defaults.Window.ActivationDelay.String())

	// OCR defaults
	l.v.SetDefault("ocr.engine", defaults.OCR.Engine)
	l.v.SetDefault("ocr.tesseract_path", defaults.OCR.TesseractPath)
	l.v.SetDefault("ocr.tessdata_dir", defaults.OCR.TessdataDir)
	l.v.SetDefault("ocr.page_seg_mode", defaults.OCR.PageSegMode)
	l.v.SetDefault("ocr.timeout", defaults.OCR.Timeout.String())
	l.v.SetDefault("ocr.normalize", defaults.OCR.Normalize)

	// Preprocess defaults
	p := defaults.Preprocess
	l.v.SetDefault("preprocess.threshold_mode", string(p.ThresholdMode))
	l.v.SetDefault("preprocess.fixed_threshold", p.FixedThreshold)
	l.v.SetDefault("preprocess.adaptive_block_size", p.AdaptiveBlockSize)
	l.v.SetDefault("preprocess.adaptive_c", p.AdaptiveC)
	l.v.SetDefault("preprocess.kernel_size", p.KernelSize)
	l.v.SetDefault("preprocess.morph_op", string(p.MorphOp))
	l.v.SetDefault("preprocess.scale_factor", p.ScaleFactor)
	l.v.SetDefault("preprocess.target_height", p.TargetHeight)
	l.v.SetDefault("preprocess.max_width", p.MaxWidth)
	l.v.SetDefault("preprocess.interpolation", string(p.Interpolation))
	l.v.SetDefault("preprocess.blur_sigma", p.BlurSigma)
	l.v.SetDefault("preprocess.crop.top", p.Crop.Top)
	l.v.SetDefault("preprocess.crop.bottom", p.Crop.Bottom)
	l.v.SetDefault("preprocess.crop.left", p.Crop.Left)
	l.v.SetDefault("preprocess.crop.right", p.Crop.Right)

	// Field defaults
	for _, id := range fields.All {
		fc := defaults.Fields.Field(id)
		prefix := "fields." + id.String()
		region := ""
		if !fc.Region.IsZero() {
			region = fc.Region.String()
		}
		l.v.SetDefault(prefix+".region", region)
		l.v.SetDefault(prefix+".kind", string(fc.Kind))
		l.v.SetDefault(prefix+".languages", fc.Languages)
	}

	l.v.SetDefault("corrections_file", defaults.CorrectionsFile)

	// Output defaults
	l.v.SetDefault("output.format", defaults.Output.Format)
	l.v.SetDefault("output.file", defaults.Output.File)
	l.v.SetDefault("output.separator", defaults.Output.Separator)
	l.v.SetDefault("output.debug_dir", defaults.Output.DebugDir)

	// Server defaults
	l.v.SetDefault("server.host", defaults.Server.Host)
	l.v.SetDefault("server.port", defaults.Server.Port)
	l.v.SetDefault("server.cors_origin", defaults.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", defaults.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", defaults.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit.enabled", defaults.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", defaults.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", defaults.Server.RateLimit.RequestsPerHour)
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()

	// If no filename provided, use default
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	paths = append(paths, "/etc/"+ConfigFileName)

	return paths
}
