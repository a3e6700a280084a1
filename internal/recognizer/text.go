package recognizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/MeKo-Tech/bankocr/internal/fields"
)

// CleanOptions controls how raw engine output is tidied and normalised.
type CleanOptions struct {
	NormalizeForm      string // "NFKC" (default), "NFC", "" to disable
	FoldWidth          bool   // fold full-width ASCII to half-width
	RemoveZeroWidth    bool   // remove zero-width spaces/joiners
	RemoveControlChars bool   // remove non-printable control characters
	DropBlankLines     bool   // remove lines with only whitespace
	LineJoiner         string // joins the remaining lines
	Trim               bool   // trim leading/trailing whitespace
}

// DefaultCleanOptions returns the options used by the pipeline.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		NormalizeForm:      "NFKC",
		FoldWidth:          true,
		RemoveZeroWidth:    true,
		RemoveControlChars: true,
		DropBlankLines:     true,
		LineJoiner:         " ",
		Trim:               true,
	}
}

// WithNormalization returns a copy of opts for a normalization name as
// accepted by ocr.normalize: "nfkc", "nfc" or "none". "none" also turns
// off width folding.
func (o CleanOptions) WithNormalization(name string) CleanOptions {
	switch strings.ToUpper(name) {
	case "NFKC", "NFC":
		o.NormalizeForm = strings.ToUpper(name)
	case "NONE":
		o.NormalizeForm = ""
		o.FoldWidth = false
	}
	return o
}

// CleanText tidies and then normalises engine output.
func CleanText(s string, opts CleanOptions) string {
	return NormalizeText(TidyText(s, opts), opts)
}

// TidyText removes zero-width and control characters and blank lines but
// keeps every remaining character as the engine produced it.
func TidyText(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}
	if opts.RemoveZeroWidth {
		s = removeZeroWidth(s)
	}
	if opts.RemoveControlChars {
		s = removeControlChars(s)
	}
	if opts.DropBlankLines {
		s = dropBlankLines(s, opts.LineJoiner)
	}
	if opts.Trim {
		s = strings.TrimSpace(s)
	}
	return s
}

// NormalizeText applies the Unicode normalization form and width folding.
func NormalizeText(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}
	switch strings.ToUpper(opts.NormalizeForm) {
	case "NFKC":
		s = norm.NFKC.String(s)
	case "NFC":
		s = norm.NFC.String(s)
	}
	if opts.FoldWidth {
		s = foldASCIIWidth(s)
	}
	if opts.Trim {
		s = strings.TrimSpace(s)
	}
	return s
}

// foldASCIIWidth maps full-width ASCII variants to their narrow form and
// leaves kana and kanji untouched.
func foldASCIIWidth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '\uFF01' && r <= '\uFF5E' {
			if folded := width.Narrow.String(string(r)); folded != "" {
				b.WriteString(folded)
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func removeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// removeZeroWidth removes common zero-width characters used in OCR noise.
func removeZeroWidth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\u200B', // ZERO WIDTH SPACE
			'\u200C', // ZERO WIDTH NON-JOINER
			'\u200D', // ZERO WIDTH JOINER
			'\uFEFF': // ZERO WIDTH NO-BREAK SPACE (BOM)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func dropBlankLines(s, joiner string) string {
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	kept := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, strings.TrimSpace(l))
		}
	}
	return strings.Join(kept, joiner)
}

// DigitsOnly keeps decimal digits 0-9. Full-width digits are kept as their
// ASCII form.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '０' && r <= '９':
			b.WriteRune('0' + (r - '０'))
		}
	}
	return b.String()
}

// FilterForKind applies the final per-kind filter: digits fields keep only
// digits, text fields are trimmed.
func FilterForKind(s string, kind fields.Kind) string {
	if kind == fields.KindDigits {
		return DigitsOnly(s)
	}
	return strings.TrimSpace(s)
}
