// Package correction applies ordered substring replacements to recognized
// text. Rules run in list order and every rule sees the output of the one
// before it.
package correction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/bankocr/internal/fields"
)

// Rule replaces every occurrence of Pattern with Replacement. When Fields is
// non-empty the rule only applies to the named fields.
type Rule struct {
	Pattern     string   `mapstructure:"pattern" yaml:"pattern" json:"pattern"`
	Replacement string   `mapstructure:"replacement" yaml:"replacement" json:"replacement"`
	Fields      []string `mapstructure:"fields" yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Validate checks that both strings are set and every scoped field exists.
func (r Rule) Validate() error {
	if r.Pattern == "" {
		return errors.New("pattern must not be empty")
	}
	if r.Replacement == "" {
		return fmt.Errorf("rule %q: replacement must not be empty", r.Pattern)
	}
	for _, f := range r.Fields {
		if _, err := fields.ParseID(f); err != nil {
			return fmt.Errorf("rule %q: %w", r.Pattern, err)
		}
	}
	return nil
}

// AppliesTo reports whether the rule is in scope for id.
func (r Rule) AppliesTo(id fields.ID) bool {
	if len(r.Fields) == 0 {
		return true
	}
	for _, f := range r.Fields {
		if parsed, err := fields.ParseID(f); err == nil && parsed == id {
			return true
		}
	}
	return false
}

// Rules is an ordered rule list. The zero value applies no corrections.
type Rules []Rule

// Apply runs every rule in order.
func (rs Rules) Apply(text string) string {
	for _, r := range rs {
		if r.Pattern == "" {
			continue
		}
		text = strings.ReplaceAll(text, r.Pattern, r.Replacement)
	}
	return text
}

// ForField returns the rules in scope for id, keeping their order.
func (rs Rules) ForField(id fields.ID) Rules {
	out := make(Rules, 0, len(rs))
	for _, r := range rs {
		if r.AppliesTo(id) {
			out = append(out, r)
		}
	}
	return out
}

// Validate checks every rule and reports the first invalid one by position.
func (rs Rules) Validate() error {
	for i, r := range rs {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("correction %d: %w", i+1, err)
		}
	}
	return nil
}

// Concat returns a new list with more appended after rs.
func (rs Rules) Concat(more Rules) Rules {
	out := make(Rules, 0, len(rs)+len(more))
	out = append(out, rs...)
	return append(out, more...)
}
