package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/MeKo-Tech/bankocr/internal/fields"
	"github.com/MeKo-Tech/bankocr/internal/preprocess"
	"github.com/MeKo-Tech/bankocr/internal/testutil"
)

const sampleConfig = `
log_level: debug
window:
  title: 振込入力
  activation_delay: 250ms
ocr:
  tesseract_path: C:\Program Files\Tesseract-OCR\tesseract.exe
  timeout: 10s
preprocess:
  threshold_mode: fixed
  fixed_threshold: 140
fields:
  bank_code:
    region: "120,20,100,24"
  bank_name:
    region: {x: 120, y: 60, width: 240, height: 24}
    languages: [jpn, eng]
    preprocess:
      threshold_mode: otsu
      crop: {top: 1, bottom: 1}
  branch_code:
    region: "120, 100, 100, 24"
  branch_name:
    region: "120,140,240,24"
corrections:
  - pattern: 級行
    replacement: 銀行
  - pattern: "O"
    replacement: "0"
    fields: [bank_code, branch_code]
output:
  format: json
`

// newTestLoader returns a loader on a fresh viper instance.
func newTestLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

// TestNewLoader tests loader creation.
func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if loader.GetViper() != viper.GetViper() {
		t.Error("NewLoader() must use the global viper instance")
	}
}

// TestLoadWithNoConfigFile tests loading with no config file present.
func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	defaults := DefaultConfig()
	if cfg.LogLevel != defaults.LogLevel {
		t.Errorf("Expected default log level %s, got %s", defaults.LogLevel, cfg.LogLevel)
	}
	if cfg.OCR.Timeout != defaults.OCR.Timeout {
		t.Errorf("Expected default timeout %v, got %v", defaults.OCR.Timeout, cfg.OCR.Timeout)
	}
	if cfg.Window.ActivationDelay != defaults.Window.ActivationDelay {
		t.Errorf("Expected default activation delay, got %v", cfg.Window.ActivationDelay)
	}
	if cfg.Preprocess != defaults.Preprocess {
		t.Errorf("Expected default preprocess settings, got %+v", cfg.Preprocess)
	}
	if len(cfg.Fields.BankName.Languages) != 1 || cfg.Fields.BankName.Languages[0] != "jpn" {
		t.Errorf("Expected default languages, got %v", cfg.Fields.BankName.Languages)
	}
}

// TestLoadWithFile tests loading a complete YAML file.
func TestLoadWithFile(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "bankocr.yaml", sampleConfig)

	loader := newTestLoader()
	cfg, err := loader.LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error: %v", err)
	}
	if loader.GetConfigFileUsed() != path {
		t.Errorf("Expected config file %s, got %s", path, loader.GetConfigFileUsed())
	}

	if cfg.LogLevel != debugLevel {
		t.Errorf("Expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.Window.Title != "振込入力" || cfg.Window.ActivationDelay != 250*time.Millisecond {
		t.Errorf("Unexpected window config: %+v", cfg.Window)
	}
	if !cfg.Window.Activate {
		t.Error("Expected activate default to survive a partial window block")
	}
	if cfg.OCR.Timeout != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", cfg.OCR.Timeout)
	}
	if !strings.HasSuffix(cfg.OCR.TesseractPath, "tesseract.exe") {
		t.Errorf("Unexpected tesseract path %q", cfg.OCR.TesseractPath)
	}
	if cfg.Preprocess.ThresholdMode != preprocess.ThresholdFixed || cfg.Preprocess.FixedThreshold != 140 {
		t.Errorf("Unexpected preprocess: %+v", cfg.Preprocess)
	}
	if cfg.Preprocess.ScaleFactor != 3 {
		t.Errorf("Expected default scale factor to remain, got %v", cfg.Preprocess.ScaleFactor)
	}

	want := testutil.DefaultLayout()
	for _, id := range fields.All {
		if got := cfg.Fields.Field(id).Region; got != want[id] {
			t.Errorf("%s region: expected %s, got %s", id, want[id], got)
		}
	}
	if got := strings.Join(cfg.Fields.BankName.Languages, "+"); got != "jpn+eng" {
		t.Errorf("Expected jpn+eng, got %s", got)
	}

	if len(cfg.Corrections) != 2 || cfg.Corrections[1].Fields[1] != "branch_code" {
		t.Errorf("Unexpected corrections: %+v", cfg.Corrections)
	}

	req, err := cfg.ToRequest()
	if err != nil {
		t.Fatalf("ToRequest() error: %v", err)
	}
	override, ok := req.Overrides[fields.BankName]
	if !ok {
		t.Fatal("Expected bank_name override")
	}
	if override.ThresholdMode != preprocess.ThresholdOtsu || override.FixedThreshold != 140 || override.Crop.Top != 1 {
		t.Errorf("Unexpected override: %+v", override)
	}
	if _, ok := req.Overrides[fields.BankCode]; ok {
		t.Error("bank_code has no override block")
	}
}

// TestLoadWithFileErrors tests file error handling.
func TestLoadWithFileErrors(t *testing.T) {
	if _, err := newTestLoader().LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := testutil.WriteFile(t, t.TempDir(), "bad.yaml", "fields:\n  bank_code:\n    region: \"1,2,3\"\n")
	if _, err := newTestLoader().LoadWithFile(bad); err == nil {
		t.Error("Expected error for malformed region")
	}

	invalid := testutil.WriteFile(t, t.TempDir(), "invalid.yaml", "log_level: loud\n")
	if _, err := newTestLoader().LoadWithFile(invalid); err == nil {
		t.Error("Expected validation error")
	}
	cfg, err := newTestLoader().LoadWithFileWithoutValidation(invalid)
	if err != nil {
		t.Fatalf("LoadWithFileWithoutValidation() error: %v", err)
	}
	if cfg.LogLevel != "loud" {
		t.Errorf("Expected unvalidated log level, got %s", cfg.LogLevel)
	}
}

// TestLoadFromSearchPath tests discovery in the working directory.
func TestLoadFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "bankocr.yaml", "window:\n  title: 振込\n")
	t.Chdir(dir)

	cfg, err := newTestLoader().LoadWithoutValidation()
	if err != nil {
		t.Fatalf("LoadWithoutValidation() error: %v", err)
	}
	if cfg.Window.Title != "振込" {
		t.Errorf("Expected title from search path, got %q", cfg.Window.Title)
	}
}

// TestEnvironmentOverrides tests BANKOCR_ environment variables.
func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("BANKOCR_LOG_LEVEL", "warn")
	t.Setenv("BANKOCR_WINDOW_TITLE", "Bank App")
	t.Setenv("BANKOCR_OCR_TIMEOUT", "5s")
	t.Setenv("BANKOCR_PREPROCESS_SCALE_FACTOR", "2.5")
	t.Setenv("BANKOCR_FIELDS_BRANCH_NAME_REGION", "1,2,30,40")
	t.Setenv("BANKOCR_FIELDS_BANK_NAME_LANGUAGES", "jpn,eng")

	cfg, err := newTestLoader().Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.Window.Title != "Bank App" {
		t.Errorf("Env overrides not applied: %s %q", cfg.LogLevel, cfg.Window.Title)
	}
	if cfg.OCR.Timeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %v", cfg.OCR.Timeout)
	}
	if cfg.Preprocess.ScaleFactor != 2.5 {
		t.Errorf("Expected scale 2.5, got %v", cfg.Preprocess.ScaleFactor)
	}
	if cfg.Fields.BranchName.Region != (fields.Rect{X: 1, Y: 2, Width: 30, Height: 40}) {
		t.Errorf("Unexpected region %s", cfg.Fields.BranchName.Region)
	}
	if len(cfg.Fields.BankName.Languages) != 2 {
		t.Errorf("Expected two languages, got %v", cfg.Fields.BankName.Languages)
	}
}

// TestGenerateDefaultConfigFile tests writing and re-reading the defaults.
func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "bankocr.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	for _, key := range []string{"threshold_mode: otsu", "separator:", "bank_code:", "tesseract_path:"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("Generated config is missing %q", key)
		}
	}

	cfg, err := newTestLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() of generated file error: %v", err)
	}
	if cfg.Preprocess != DefaultConfig().Preprocess {
		t.Errorf("Round-tripped preprocess differs: %+v", cfg.Preprocess)
	}
}

// TestGetConfigSearchPaths tests search path composition.
func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	paths := GetConfigSearchPaths()
	if paths[0] != "." {
		t.Errorf("Expected current directory first, got %s", paths[0])
	}
	if !contains(paths, filepath.Join("/xdg", "bankocr")) {
		t.Errorf("Expected XDG path in %v", paths)
	}
	if paths[len(paths)-1] != "/etc/bankocr" {
		t.Errorf("Expected /etc/bankocr last, got %s", paths[len(paths)-1])
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
