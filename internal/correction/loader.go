package correction

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads rules from a corrections file. ".yaml"/".yml" files hold a
// list of {pattern, replacement, fields}; any other extension is read as
// text with one "pattern<TAB>replacement[<TAB>field,field]" or
// "pattern=replacement" rule per line (spaces around "=" are trimmed) and
// "#" comments. Patterns containing "=" need the TAB form or YAML.
func LoadFile(path string) (Rules, error) {
	if path == "" {
		return nil, errors.New("corrections path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: Opening user-provided corrections file is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open corrections file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var rules Rules
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		rules, err = ParseYAML(f)
	default:
		rules, err = ParseText(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// ParseYAML decodes a YAML list of rules.
func ParseYAML(r io.Reader) (Rules, error) {
	var rules Rules
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&rules); err != nil {
		if errors.Is(err, io.EOF) {
			return Rules{}, nil
		}
		return nil, fmt.Errorf("failed to parse corrections: %w", err)
	}
	return rules, nil
}

// ParseText reads the line-oriented rule format.
func ParseText(r io.Reader) (Rules, error) {
	scanner := bufio.NewScanner(r)
	rules := make(Rules, 0, 32)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		rule, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed reading corrections: %w", err)
	}
	return rules, nil
}

func parseLine(line string) (Rule, error) {
	line = strings.TrimRight(line, "\r")
	if strings.Contains(line, "\t") {
		parts := strings.Split(line, "\t")
		if len(parts) < 2 || len(parts) > 3 {
			return Rule{}, fmt.Errorf("want pattern<TAB>replacement[<TAB>fields], got %d columns", len(parts))
		}
		rule := Rule{Pattern: parts[0], Replacement: parts[1]}
		if len(parts) == 3 {
			for _, f := range strings.Split(parts[2], ",") {
				if f = strings.TrimSpace(f); f != "" {
					rule.Fields = append(rule.Fields, f)
				}
			}
		}
		return rule, nil
	}
	pattern, replacement, ok := strings.Cut(line, "=")
	if !ok {
		return Rule{}, errors.New(`want "pattern = replacement"`)
	}
	return Rule{Pattern: strings.TrimSpace(pattern), Replacement: strings.TrimSpace(replacement)}, nil
}
