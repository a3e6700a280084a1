package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/bankocr/internal/correction"
	"github.com/MeKo-Tech/bankocr/internal/fields"
	"github.com/MeKo-Tech/bankocr/internal/pipeline"
	"github.com/MeKo-Tech/bankocr/internal/preprocess"
	"github.com/MeKo-Tech/bankocr/internal/testutil"
)

const debugLevel = "debug"

// configuredDefaults returns the defaults with the test layout filled in.
func configuredDefaults() Config {
	cfg := DefaultConfig()
	cfg.Window.Title = "振込入力"
	layout := testutil.DefaultLayout()
	for _, id := range fields.All {
		cfg.Fields.Field(id).Region = layout[id]
	}
	return cfg
}

// TestDefaultConfig tests that default configuration is valid.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() is invalid: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected log level 'info', got %s", cfg.LogLevel)
	}
	if cfg.OCR.Engine != EngineCLI {
		t.Errorf("Expected engine %q, got %q", EngineCLI, cfg.OCR.Engine)
	}
	if cfg.Preprocess.ThresholdMode != preprocess.ThresholdOtsu {
		t.Errorf("Expected otsu threshold, got %s", cfg.Preprocess.ThresholdMode)
	}
	if cfg.Output.Separator != "：" {
		t.Errorf("Expected full-width colon separator, got %q", cfg.Output.Separator)
	}
	if cfg.Fields.BankCode.Kind != fields.KindDigits || cfg.Fields.BankName.Kind != fields.KindText {
		t.Errorf("Unexpected default kinds: %s, %s", cfg.Fields.BankCode.Kind, cfg.Fields.BankName.Kind)
	}
	if !cfg.Fields.BranchName.Region.IsZero() {
		t.Errorf("Expected empty default region, got %s", cfg.Fields.BranchName.Region)
	}
}

// TestValidate tests rejection of invalid settings.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"output format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
		{"engine", func(c *Config) { c.OCR.Engine = "onnx" }, "ocr.engine"},
		{"psm", func(c *Config) { c.OCR.PageSegMode = 14 }, "page_seg_mode"},
		{"timeout", func(c *Config) { c.OCR.Timeout = 0 }, "ocr.timeout"},
		{"normalize", func(c *Config) { c.OCR.Normalize = "nfd" }, "ocr.normalize"},
		{"activation delay", func(c *Config) { c.Window.ActivationDelay = -time.Second }, "activation_delay"},
		{"preprocess", func(c *Config) { c.Preprocess.KernelSize = 4 }, "kernel_size"},
		{"region", func(c *Config) { c.Fields.BankName.Region = fields.Rect{X: 1, Y: 1, Width: 0, Height: 5} }, "fields.bank_name.region"},
		{"kind", func(c *Config) { c.Fields.BranchCode.Kind = "number" }, "fields.branch_code.kind"},
		{"override", func(c *Config) {
			c.Fields.BranchName.Preprocess = map[string]any{"scale_factor": -1}
		}, "fields.branch_name.preprocess"},
		{"override key", func(c *Config) {
			c.Fields.BranchName.Preprocess = map[string]any{"sharpen": true}
		}, "fields.branch_name.preprocess"},
		{"corrections", func(c *Config) { c.Corrections = correction.Rules{{Pattern: "x"}} }, "corrections"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"server timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "timeout"},
		{"rate limit", func(c *Config) { c.Server.RateLimit.RequestsPerHour = -1 }, "rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := configuredDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

// TestFieldSpecs tests field spec construction.
func TestFieldSpecs(t *testing.T) {
	cfg := configuredDefaults()
	cfg.Fields.BankName.Languages = []string{"jpn", "eng"}
	cfg.Fields.BranchCode.Kind = fields.KindText

	specs, err := cfg.FieldSpecs()
	if err != nil {
		t.Fatalf("FieldSpecs() error: %v", err)
	}
	if len(specs) != 4 {
		t.Fatalf("Expected 4 specs, got %d", len(specs))
	}
	for i, id := range fields.All {
		if specs[i].ID != id {
			t.Errorf("spec %d: expected %s, got %s", i, id, specs[i].ID)
		}
	}
	if got := strings.Join(specs[1].Languages, "+"); got != "jpn+eng" {
		t.Errorf("Expected jpn+eng, got %s", got)
	}
	if specs[2].Kind != fields.KindText {
		t.Errorf("Expected kind override, got %s", specs[2].Kind)
	}

	cfg.Fields.BranchName.Region = fields.Rect{}
	if _, err := cfg.FieldSpecs(); err == nil || !strings.Contains(err.Error(), "branch_name") {
		t.Errorf("Expected missing region error, got %v", err)
	}
}

// TestOverrides tests per-field preprocess overrides.
func TestOverrides(t *testing.T) {
	cfg := configuredDefaults()
	cfg.Fields.BankName.Preprocess = map[string]any{
		"threshold_mode":  "fixed",
		"fixed_threshold": "150",
		"crop":            map[string]any{"top": 2, "bottom": 2},
	}

	overrides, err := cfg.Overrides()
	if err != nil {
		t.Fatalf("Overrides() error: %v", err)
	}
	if len(overrides) != 1 {
		t.Fatalf("Expected 1 override, got %d", len(overrides))
	}
	got := overrides[fields.BankName]
	if got.ThresholdMode != preprocess.ThresholdFixed || got.FixedThreshold != 150 {
		t.Errorf("Override not applied: %+v", got)
	}
	if got.Crop.Top != 2 || got.Crop.Bottom != 2 || got.Crop.Left != 0 {
		t.Errorf("Crop not applied: %+v", got.Crop)
	}
	if got.ScaleFactor != cfg.Preprocess.ScaleFactor || got.KernelSize != cfg.Preprocess.KernelSize {
		t.Errorf("Unset keys must inherit globals: %+v", got)
	}
	if cfg.Preprocess.ThresholdMode != preprocess.ThresholdOtsu {
		t.Error("Override must not modify global preprocess settings")
	}
}

// TestRules tests inline and file corrections ordering.
func TestRules(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "corrections.txt", "B\tC\n")

	cfg := configuredDefaults()
	cfg.Corrections = correction.Rules{{Pattern: "A", Replacement: "B"}}
	cfg.CorrectionsFile = path

	rules, err := cfg.Rules()
	if err != nil {
		t.Fatalf("Rules() error: %v", err)
	}
	if got := rules.Apply("A"); got != "C" {
		t.Errorf("Expected file rules after inline rules, got %q", got)
	}

	cfg.CorrectionsFile = filepath.Join(dir, "missing.txt")
	if _, err := cfg.Rules(); err == nil {
		t.Error("Expected error for missing corrections file")
	}
}

// TestToRequest tests request construction.
func TestToRequest(t *testing.T) {
	cfg := configuredDefaults()
	cfg.Corrections = correction.Rules{{Pattern: "級行", Replacement: "銀行"}}

	req, err := cfg.ToRequest()
	if err != nil {
		t.Fatalf("ToRequest() error: %v", err)
	}
	if req.WindowTitle != "振込入力" {
		t.Errorf("Unexpected title %q", req.WindowTitle)
	}
	if len(req.Fields) != 4 || len(req.Rules) != 1 {
		t.Errorf("Unexpected request: %+v", req)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Request invalid: %v", err)
	}

	cfg.Window.Title = ""
	if _, err := cfg.ToRequest(); err == nil {
		t.Error("Expected error without window title")
	}
	if _, err := cfg.ToRequestFor("screenshot.png"); err != nil {
		t.Errorf("ToRequestFor() error: %v", err)
	}

	base, err := cfg.BaseRequest()
	if err != nil {
		t.Fatalf("BaseRequest() error: %v", err)
	}
	if base.WindowTitle != "" || len(base.Fields) != 4 {
		t.Errorf("Unexpected base request: %+v", base)
	}
}

// TestConversions tests runner, recognizer and report conversions.
func TestConversions(t *testing.T) {
	cfg := configuredDefaults()
	cfg.Window.Activate = false
	cfg.Window.ActivationDelay = 2 * time.Second
	cfg.OCR.PageSegMode = 7
	cfg.Output.DebugDir = "/tmp/debug"
	cfg.Output.Format = "json"
	cfg.Output.File = "out/result.json"

	opts := cfg.ToRunnerOptions(nil)
	if opts.Activate || opts.ActivationDelay != 2*time.Second {
		t.Errorf("Unexpected runner options: %+v", opts)
	}
	if opts.Clean.NormalizeForm != "NFKC" {
		t.Errorf("Expected NFKC normalization by default, got %q", opts.Clean.NormalizeForm)
	}

	cfg.OCR.Normalize = "none"
	opts = cfg.ToRunnerOptions(nil)
	if opts.Clean.NormalizeForm != "" || opts.Clean.FoldWidth {
		t.Errorf("Expected normalization off, got %+v", opts.Clean)
	}

	rc := cfg.ToRecognizerConfig()
	if rc.PageSegMode != 7 || rc.DebugDir != "/tmp/debug" {
		t.Errorf("Unexpected recognizer config: %+v", rc)
	}

	ro, err := cfg.ToReportOptions()
	if err != nil {
		t.Fatalf("ToReportOptions() error: %v", err)
	}
	if ro.Format != pipeline.FormatJSON || ro.File != "out/result.json" || ro.Separator != "：" {
		t.Errorf("Unexpected report options: %+v", ro)
	}

	cli := cfg.NewCLIEngine(nil)
	if cli.Timeout != cfg.OCR.Timeout || cli.Path == "" {
		t.Errorf("Unexpected CLI engine: %+v", cli)
	}
}
