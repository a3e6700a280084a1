package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/bankocr/internal/fields"
)

// Format selects how a Result is rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// DefaultSeparator joins field values in text output.
const DefaultSeparator = "："

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s (want text, json or csv)", s)
	}
}

// ToText joins the values of all four fields in their fixed order. Failed or
// missing fields contribute an empty value so positions stay stable.
func ToText(res *Result, separator string) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	if separator == "" {
		separator = DefaultSeparator
	}
	values := make([]string, 0, len(fields.All))
	for _, id := range fields.All {
		values = append(values, res.Value(id))
	}
	return strings.Join(values, separator), nil
}

// ToJSON serializes a Result to pretty JSON.
func ToJSON(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToCSV exports one row per field with a header.
func ToCSV(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"field", "status", "value", "raw", "error_kind", "reason", "duration_ms"})
	for _, fr := range res.Fields() {
		row := []string{
			fr.Field.String(),
			string(fr.Status),
			fr.Corrected,
			fr.Raw,
			string(fr.ErrorKind),
			fr.Reason,
			strconv.FormatFloat(float64(fr.Duration.Microseconds())/1000, 'f', 3, 64),
		}
		_ = w.Write(row)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render formats res.
func Render(res *Result, format Format, separator string) (string, error) {
	switch format {
	case FormatText, "":
		return ToText(res, separator)
	case FormatJSON:
		return ToJSON(res)
	case FormatCSV:
		return ToCSV(res)
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}

// ReportOptions controls Report.
type ReportOptions struct {
	Format    Format
	Separator string
	// File, when set, receives a copy of the output. Its directory is created.
	File string
	// Append adds to File instead of replacing it.
	Append bool
}

// Report renders res to w and, optionally, to a file, then emits
// StateReported to obs.
func Report(w io.Writer, res *Result, opts ReportOptions, obs Observer) error {
	out, err := Render(res, opts.Format, opts.Separator)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	if w != nil {
		if _, err := io.WriteString(w, out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		if err := writeOutputFile(opts.File, out, opts.Append); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
	}
	if obs != nil {
		obs.OnEvent(Event{State: StateReported, Time: time.Now()})
	}
	return nil
}

func writeOutputFile(path, out string, appendTo bool) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendTo {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o600) //nolint:gosec // G304: output path is chosen by the user
	if err != nil {
		return err
	}
	if _, err := f.WriteString(out); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
