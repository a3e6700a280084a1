package preprocess

import (
	"errors"
	"fmt"
)

// ThresholdMode selects how the binarization threshold is chosen.
type ThresholdMode string

const (
	ThresholdFixed    ThresholdMode = "fixed"
	ThresholdOtsu     ThresholdMode = "otsu"
	ThresholdAdaptive ThresholdMode = "adaptive"
)

// MorphOp is the noise-removal operation applied to ink pixels.
type MorphOp string

const (
	MorphOpening MorphOp = "opening" // erode then dilate; removes isolated specks
	MorphClosing MorphOp = "closing" // dilate then erode; fills pinholes
	MorphNone    MorphOp = "none"
)

// Interpolation is the resampling filter used for scaling.
type Interpolation string

const (
	InterpNearest Interpolation = "nearest"
	InterpArea    Interpolation = "area"
)

// MaxKernelSize bounds the morphology kernel.
const MaxKernelSize = 3

// Upper bounds for scaling parameters.
const (
	MaxScaleFactor  = 32
	MaxTargetHeight = 4000
)

// Crop trims pixels from each border before any other step.
type Crop struct {
	Top    int `mapstructure:"top" yaml:"top" json:"top"`
	Bottom int `mapstructure:"bottom" yaml:"bottom" json:"bottom"`
	Left   int `mapstructure:"left" yaml:"left" json:"left"`
	Right  int `mapstructure:"right" yaml:"right" json:"right"`
}

// IsZero reports whether no cropping is configured.
func (c Crop) IsZero() bool { return c == Crop{} }

// Config holds the preprocessing parameters for one field.
type Config struct {
	ThresholdMode     ThresholdMode `mapstructure:"threshold_mode" yaml:"threshold_mode" json:"threshold_mode"`
	FixedThreshold    int           `mapstructure:"fixed_threshold" yaml:"fixed_threshold" json:"fixed_threshold"`
	AdaptiveBlockSize int           `mapstructure:"adaptive_block_size" yaml:"adaptive_block_size" json:"adaptive_block_size"`
	AdaptiveC         float64       `mapstructure:"adaptive_c" yaml:"adaptive_c" json:"adaptive_c"`
	KernelSize        int           `mapstructure:"kernel_size" yaml:"kernel_size" json:"kernel_size"`
	MorphOp           MorphOp       `mapstructure:"morph_op" yaml:"morph_op" json:"morph_op"`
	ScaleFactor       float64       `mapstructure:"scale_factor" yaml:"scale_factor" json:"scale_factor"`
	TargetHeight      int           `mapstructure:"target_height" yaml:"target_height" json:"target_height"`
	MaxWidth          int           `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	Interpolation     Interpolation `mapstructure:"interpolation" yaml:"interpolation" json:"interpolation"`
	BlurSigma         float64       `mapstructure:"blur_sigma" yaml:"blur_sigma" json:"blur_sigma"`
	Crop              Crop          `mapstructure:"crop" yaml:"crop" json:"crop"`
}

// DefaultConfig returns the shipped defaults: Otsu binarization, no
// morphology and 3x nearest-neighbour upscaling. Screen text is often one
// pixel wide at capture resolution, so a kernel above 1 is opt-in.
func DefaultConfig() Config {
	return Config{
		ThresholdMode:     ThresholdOtsu,
		FixedThreshold:    128,
		AdaptiveBlockSize: 11,
		AdaptiveC:         2,
		KernelSize:        1,
		MorphOp:           MorphOpening,
		ScaleFactor:       3,
		TargetHeight:      0,
		MaxWidth:          4000,
		Interpolation:     InterpNearest,
		BlurSigma:         0,
	}
}

// Validate checks every parameter.
func (c Config) Validate() error {
	switch c.ThresholdMode {
	case ThresholdFixed, ThresholdOtsu, ThresholdAdaptive:
	default:
		return fmt.Errorf("invalid threshold_mode %q (must be fixed, otsu or adaptive)", c.ThresholdMode)
	}
	if c.FixedThreshold < 0 || c.FixedThreshold > 255 {
		return fmt.Errorf("fixed_threshold must be between 0 and 255, got %d", c.FixedThreshold)
	}
	if c.ThresholdMode == ThresholdAdaptive && (c.AdaptiveBlockSize < 3 || c.AdaptiveBlockSize%2 == 0) {
		return fmt.Errorf("adaptive_block_size must be an odd number >= 3, got %d", c.AdaptiveBlockSize)
	}
	if c.KernelSize < 1 || c.KernelSize%2 == 0 || c.KernelSize > MaxKernelSize {
		return fmt.Errorf("kernel_size must be a positive odd number <= %d, got %d", MaxKernelSize, c.KernelSize)
	}
	switch c.MorphOp {
	case MorphOpening, MorphClosing, MorphNone:
	default:
		return fmt.Errorf("invalid morph_op %q (must be opening, closing or none)", c.MorphOp)
	}
	if c.ScaleFactor <= 0 || c.ScaleFactor > MaxScaleFactor {
		return fmt.Errorf("scale_factor must be > 0 and <= %d, got %g", MaxScaleFactor, c.ScaleFactor)
	}
	if c.TargetHeight < 0 || c.MaxWidth < 0 {
		return errors.New("target_height and max_width must not be negative")
	}
	if c.TargetHeight > MaxTargetHeight {
		return fmt.Errorf("target_height must be <= %d, got %d", MaxTargetHeight, c.TargetHeight)
	}
	switch c.Interpolation {
	case InterpNearest, InterpArea:
	default:
		return fmt.Errorf("invalid interpolation %q (must be nearest or area)", c.Interpolation)
	}
	if c.BlurSigma < 0 {
		return fmt.Errorf("blur_sigma must be >= 0, got %g", c.BlurSigma)
	}
	if c.Crop.Top < 0 || c.Crop.Bottom < 0 || c.Crop.Left < 0 || c.Crop.Right < 0 {
		return errors.New("crop values must not be negative")
	}
	return nil
}
