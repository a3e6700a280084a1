package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/MeKo-Tech/bankocr/internal/correction"
	"github.com/MeKo-Tech/bankocr/internal/engine"
	"github.com/MeKo-Tech/bankocr/internal/fields"
	"github.com/MeKo-Tech/bankocr/internal/pipeline"
	"github.com/MeKo-Tech/bankocr/internal/preprocess"
	"github.com/MeKo-Tech/bankocr/internal/recognizer"
)

// Engine names accepted by ocr.engine.
const (
	EngineCLI       = "cli"
	EngineGosseract = "gosseract"
)

// DefaultConfig returns a configuration with sensible defaults. Field
// regions are left empty; they depend on the target application's layout.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Window: WindowConfig{
			Activate:        true,
			ActivationDelay: 500 * time.Millisecond,
		},
		OCR: OCRConfig{
			Engine:        EngineCLI,
			TesseractPath: "tesseract",
			PageSegMode:   engine.PSMSingleBlock,
			Timeout:       engine.DefaultTimeout,
			Normalize:     "nfkc",
		},
		Preprocess: preprocess.DefaultConfig(),
		Fields: FieldsConfig{
			BankCode:   defaultFieldConfig(fields.BankCode),
			BankName:   defaultFieldConfig(fields.BankName),
			BranchCode: defaultFieldConfig(fields.BranchCode),
			BranchName: defaultFieldConfig(fields.BranchName),
		},
		Output: OutputConfig{
			Format:    string(pipeline.FormatText),
			File:      "",
			Separator: pipeline.DefaultSeparator,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 30,
				RequestsPerHour:   600,
			},
		},
	}
}

func defaultFieldConfig(id fields.ID) FieldConfig {
	return FieldConfig{Kind: fields.DefaultKind(id), Languages: fields.DefaultLanguages(id)}
}

// Field returns the block for id.
func (f *FieldsConfig) Field(id fields.ID) *FieldConfig {
	switch id {
	case fields.BankCode:
		return &f.BankCode
	case fields.BankName:
		return &f.BankName
	case fields.BranchCode:
		return &f.BranchCode
	case fields.BranchName:
		return &f.BranchName
	}
	return nil
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Output.Format != "" {
		if _, err := pipeline.ParseFormat(c.Output.Format); err != nil {
			return fmt.Errorf("invalid output.format: %w", err)
		}
	}

	if c.Window.ActivationDelay < 0 {
		return fmt.Errorf("invalid window.activation_delay: %v (must not be negative)", c.Window.ActivationDelay)
	}

	validEngines := []string{EngineCLI, EngineGosseract}
	if !slices.Contains(validEngines, c.OCR.Engine) {
		return fmt.Errorf("invalid ocr.engine: %s (must be one of: %s)", c.OCR.Engine, strings.Join(validEngines, ", "))
	}
	if c.OCR.PageSegMode < 0 || c.OCR.PageSegMode > 13 {
		return fmt.Errorf("invalid ocr.page_seg_mode: %d (must be between 0 and 13)", c.OCR.PageSegMode)
	}
	if c.OCR.Timeout <= 0 {
		return fmt.Errorf("invalid ocr.timeout: %v (must be positive)", c.OCR.Timeout)
	}
	validForms := []string{"nfkc", "nfc", "none"}
	if !slices.Contains(validForms, strings.ToLower(c.OCR.Normalize)) {
		return fmt.Errorf("invalid ocr.normalize: %q (must be one of: %s)", c.OCR.Normalize, strings.Join(validForms, ", "))
	}

	if err := c.Preprocess.Validate(); err != nil {
		return fmt.Errorf("invalid preprocess: %w", err)
	}

	for _, id := range fields.All {
		fc := c.Fields.Field(id)
		if !fc.Region.IsZero() {
			if err := fc.Region.Validate(); err != nil {
				return fmt.Errorf("invalid fields.%s.region: %w", id, err)
			}
		}
		if fc.Kind != "" && fc.Kind != fields.KindDigits && fc.Kind != fields.KindText {
			return fmt.Errorf("invalid fields.%s.kind: %s (must be digits or text)", id, fc.Kind)
		}
		if _, err := c.preprocessFor(id); err != nil {
			return err
		}
	}

	if err := c.Corrections.Validate(); err != nil {
		return fmt.Errorf("invalid corrections: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimit.RequestsPerMinute < 0 || c.Server.RateLimit.RequestsPerHour < 0 {
		return fmt.Errorf("invalid server.rate_limit: limits must not be negative")
	}

	return nil
}

// preprocessFor layers the field's override block over the global settings.
func (c *Config) preprocessFor(id fields.ID) (preprocess.Config, error) {
	cfg := c.Preprocess
	override := c.Fields.Field(id).Preprocess
	if len(override) == 0 {
		return cfg, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       decodeHook(),
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(override); err != nil {
		return cfg, fmt.Errorf("invalid fields.%s.preprocess: %w", id, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid fields.%s.preprocess: %w", id, err)
	}
	return cfg, nil
}

// decodeHook converts "x,y,w,h" strings, duration strings and comma lists.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// FieldSpecs returns the four field specs in extraction order. Every region
// must be configured.
func (c *Config) FieldSpecs() ([]fields.Spec, error) {
	specs := make([]fields.Spec, 0, len(fields.All))
	for _, id := range fields.All {
		fc := c.Fields.Field(id)
		if fc.Region.IsZero() {
			return nil, fmt.Errorf("fields.%s.region is not set", id)
		}
		spec := fields.NewSpec(id, fc.Region)
		if fc.Kind != "" {
			spec.Kind = fc.Kind
		}
		if len(fc.Languages) > 0 {
			spec.Languages = slices.Clone(fc.Languages)
		}
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Overrides returns the resolved per-field preprocess settings for fields
// that have an override block.
func (c *Config) Overrides() (map[fields.ID]preprocess.Config, error) {
	out := map[fields.ID]preprocess.Config{}
	for _, id := range fields.All {
		if len(c.Fields.Field(id).Preprocess) == 0 {
			continue
		}
		cfg, err := c.preprocessFor(id)
		if err != nil {
			return nil, err
		}
		out[id] = cfg
	}
	return out, nil
}

// Rules returns the inline corrections followed by those of CorrectionsFile.
func (c *Config) Rules() (correction.Rules, error) {
	rules := c.Corrections.Concat(nil)
	if c.CorrectionsFile == "" {
		return rules, nil
	}
	fromFile, err := correction.LoadFile(c.CorrectionsFile)
	if err != nil {
		return nil, err
	}
	return rules.Concat(fromFile), nil
}

// ToRequest builds a pipeline request for the configured window.
func (c *Config) ToRequest() (pipeline.Request, error) {
	return c.ToRequestFor(c.Window.Title)
}

// ToRequestFor builds a pipeline request for a window matching title.
func (c *Config) ToRequestFor(title string) (pipeline.Request, error) {
	if title == "" {
		return pipeline.Request{}, fmt.Errorf("window.title is not set")
	}
	req, err := c.BaseRequest()
	if err != nil {
		return pipeline.Request{}, err
	}
	req.WindowTitle = title
	return req, nil
}

// BaseRequest builds a request for the configured title, which may be empty.
// The server fills in the title per call.
func (c *Config) BaseRequest() (pipeline.Request, error) {
	specs, err := c.FieldSpecs()
	if err != nil {
		return pipeline.Request{}, err
	}
	overrides, err := c.Overrides()
	if err != nil {
		return pipeline.Request{}, err
	}
	rules, err := c.Rules()
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{
		WindowTitle: c.Window.Title,
		Fields:      specs,
		Preprocess:  c.Preprocess,
		Overrides:   overrides,
		Rules:       rules,
	}, nil
}

// ToRunnerOptions converts window settings into runner options.
func (c *Config) ToRunnerOptions(logger *slog.Logger) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Activate = c.Window.Activate
	opts.ActivationDelay = c.Window.ActivationDelay
	opts.Clean = opts.Clean.WithNormalization(c.OCR.Normalize)
	opts.Logger = logger
	return opts
}

// ToRecognizerConfig converts to recognizer.Config.
func (c *Config) ToRecognizerConfig() recognizer.Config {
	cfg := recognizer.DefaultConfig()
	if c.OCR.PageSegMode > 0 {
		cfg.PageSegMode = c.OCR.PageSegMode
	}
	cfg.DebugDir = c.Output.DebugDir
	return cfg
}

// ToReportOptions converts output settings.
func (c *Config) ToReportOptions() (pipeline.ReportOptions, error) {
	format, err := pipeline.ParseFormat(c.Output.Format)
	if err != nil {
		return pipeline.ReportOptions{}, err
	}
	return pipeline.ReportOptions{Format: format, Separator: c.Output.Separator, File: c.Output.File}, nil
}

// NewCLIEngine builds the tesseract CLI engine, preferring a bundled binary.
func (c *Config) NewCLIEngine(logger *slog.Logger) *engine.CLI {
	cli := engine.NewCLI(engine.ResolveTesseractPath(c.OCR.TesseractPath), c.OCR.TessdataDir, c.OCR.Timeout)
	if logger != nil {
		cli.Logger = logger
	}
	return cli
}
