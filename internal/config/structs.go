//nolint:lll
package config

import (
	"time"

	"github.com/MeKo-Tech/bankocr/internal/correction"
	"github.com/MeKo-Tech/bankocr/internal/fields"
	"github.com/MeKo-Tech/bankocr/internal/preprocess"
)

// Config represents the complete configuration for bankocr.
// It covers every command (extract, image, regions, serve) and is loaded
// from configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Target window
	Window WindowConfig `mapstructure:"window" yaml:"window" json:"window"`

	// OCR engine
	OCR OCRConfig `mapstructure:"ocr" yaml:"ocr" json:"ocr"`

	// Preprocessing defaults for all fields
	Preprocess preprocess.Config `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`

	// Field regions and per-field settings
	Fields FieldsConfig `mapstructure:"fields" yaml:"fields" json:"fields"`

	// Ordered correction rules, applied before those from CorrectionsFile
	Corrections     correction.Rules `mapstructure:"corrections" yaml:"corrections" json:"corrections"`
	CorrectionsFile string           `mapstructure:"corrections_file" yaml:"corrections_file" json:"corrections_file"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// WindowConfig selects and prepares the window to read from.
type WindowConfig struct {
	Title           string        `mapstructure:"title" yaml:"title" json:"title"`
	Activate        bool          `mapstructure:"activate" yaml:"activate" json:"activate"`
	ActivationDelay time.Duration `mapstructure:"activation_delay" yaml:"activation_delay" json:"activation_delay"`
}

// OCRConfig contains text recognition settings.
type OCRConfig struct {
	Engine        string        `mapstructure:"engine" yaml:"engine" json:"engine"`
	TesseractPath string        `mapstructure:"tesseract_path" yaml:"tesseract_path" json:"tesseract_path"`
	TessdataDir   string        `mapstructure:"tessdata_dir" yaml:"tessdata_dir" json:"tessdata_dir"`
	PageSegMode   int           `mapstructure:"page_seg_mode" yaml:"page_seg_mode" json:"page_seg_mode"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	// Normalize is applied to recognized text after corrections: nfkc, nfc or none.
	Normalize string `mapstructure:"normalize" yaml:"normalize" json:"normalize"`
}

// FieldsConfig holds one block per field.
type FieldsConfig struct {
	BankCode   FieldConfig `mapstructure:"bank_code" yaml:"bank_code" json:"bank_code"`
	BankName   FieldConfig `mapstructure:"bank_name" yaml:"bank_name" json:"bank_name"`
	BranchCode FieldConfig `mapstructure:"branch_code" yaml:"branch_code" json:"branch_code"`
	BranchName FieldConfig `mapstructure:"branch_name" yaml:"branch_name" json:"branch_name"`
}

// FieldConfig describes one field. Region accepts "x,y,w,h" or a
// {x, y, width, height} map. Preprocess holds only the keys that differ
// from the global preprocess block.
type FieldConfig struct {
	Region     fields.Rect    `mapstructure:"region" yaml:"region" json:"region"`
	Kind       fields.Kind    `mapstructure:"kind" yaml:"kind" json:"kind"`
	Languages  []string       `mapstructure:"languages" yaml:"languages" json:"languages"`
	Preprocess map[string]any `mapstructure:"preprocess" yaml:"preprocess,omitempty" json:"preprocess,omitempty"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format    string `mapstructure:"format" yaml:"format" json:"format"`
	File      string `mapstructure:"file" yaml:"file" json:"file"`
	Separator string `mapstructure:"separator" yaml:"separator" json:"separator"`
	DebugDir  string `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig limits extraction requests per client address.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
}
