// Package fields defines the four bank-transfer fields read from the target
// window and the rectangles they occupy inside its client area.
package fields

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

// ID identifies one of the extracted fields.
type ID int

const (
	BankCode ID = iota
	BankName
	BranchCode
	BranchName
)

// All lists the fields in extraction order.
var All = []ID{BankCode, BankName, BranchCode, BranchName}

var idNames = map[ID]string{
	BankCode:   "bank_code",
	BankName:   "bank_name",
	BranchCode: "branch_code",
	BranchName: "branch_name",
}

// String returns the snake_case name used in config keys, JSON and metrics.
func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return "field(" + strconv.Itoa(int(id)) + ")"
}

// Label returns a display name such as "BranchName".
func (id ID) Label() string {
	switch id {
	case BankCode:
		return "BankCode"
	case BankName:
		return "BankName"
	case BranchCode:
		return "BranchCode"
	case BranchName:
		return "BranchName"
	}
	return id.String()
}

// ParseID resolves a field name. Both snake_case and the display label are accepted.
func ParseID(s string) (ID, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for id, name := range idNames {
		if strings.ReplaceAll(name, "_", "") == norm {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	if _, ok := idNames[id]; !ok {
		return nil, fmt.Errorf("unknown field id %d", int(id))
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	v, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Kind controls how recognized text is filtered after correction.
type Kind string

const (
	KindDigits Kind = "digits"
	KindText   Kind = "text"
)

// DefaultKind returns digits for the code fields and text for the name fields.
func DefaultKind(id ID) Kind {
	if id == BankCode || id == BranchCode {
		return KindDigits
	}
	return KindText
}

// DefaultLanguages returns the Tesseract language hint for a field.
func DefaultLanguages(id ID) []string {
	if DefaultKind(id) == KindDigits {
		return []string{"eng"}
	}
	return []string{"jpn"}
}

// Rect is a rectangle in window-client-relative pixel coordinates.
type Rect struct {
	X      int `mapstructure:"x" yaml:"x" json:"x"`
	Y      int `mapstructure:"y" yaml:"y" json:"y"`
	Width  int `mapstructure:"width" yaml:"width" json:"width"`
	Height int `mapstructure:"height" yaml:"height" json:"height"`
}

var errEmptyRect = errors.New("width and height must be > 0")

// Validate checks the size and origin invariants.
func (r Rect) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid region %s: %w", r, errEmptyRect)
	}
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("invalid region %s: origin must not be negative", r)
	}
	return nil
}

// WithinBounds reports whether the rectangle fits in a client area of w x h.
func (r Rect) WithinBounds(w, h int) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.Width <= w && r.Y+r.Height <= h
}

// Image converts to an image.Rectangle with the same origin.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// IsZero reports whether the rectangle was never set.
func (r Rect) IsZero() bool { return r == Rect{} }

// String renders the rectangle in the "x,y,w,h" config form.
func (r Rect) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// MarshalText implements encoding.TextMarshaler.
func (r Rect) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText parses "x,y,w,h". Blank text leaves the zero rectangle.
func (r *Rect) UnmarshalText(b []byte) error {
	if strings.TrimSpace(string(b)) == "" {
		*r = Rect{}
		return nil
	}
	parsed, err := ParseRect(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRect parses "x,y,w,h" with optional whitespace around the numbers.
func ParseRect(s string) (Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rect{}, fmt.Errorf("region %q: want x,y,width,height", s)
	}
	var vals [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Rect{}, fmt.Errorf("region %q: %w", s, err)
		}
		vals[i] = v
	}
	return Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

// Spec describes how one field is located and read.
type Spec struct {
	ID        ID
	Rect      Rect
	Kind      Kind
	Languages []string
}

// NewSpec builds a Spec with the default kind and languages for id.
func NewSpec(id ID, r Rect) Spec {
	return Spec{ID: id, Rect: r, Kind: DefaultKind(id), Languages: DefaultLanguages(id)}
}

// Validate checks the rectangle and kind.
func (s Spec) Validate() error {
	if _, ok := idNames[s.ID]; !ok {
		return fmt.Errorf("unknown field id %d", int(s.ID))
	}
	if err := s.Rect.Validate(); err != nil {
		return fmt.Errorf("%s: %w", s.ID, err)
	}
	switch s.Kind {
	case KindDigits, KindText:
	default:
		return fmt.Errorf("%s: invalid kind %q (must be digits or text)", s.ID, s.Kind)
	}
	return nil
}
