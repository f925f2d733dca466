package definition

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// StringOrList holds a YAML scalar or sequence of strings — the shape used
// throughout the definition schema for input/parameter default and value
// fields (SPEC_FULL.md §3). It distinguishes "never set" from "set to an
// empty sequence" so defaulting logic can tell the two apart.
type StringOrList struct {
	set    bool
	values []string
}

// NewStringOrList builds a StringOrList already marked as set.
func NewStringOrList(values ...string) StringOrList {
	return StringOrList{set: true, values: values}
}

// Values returns the resolved string values, nil if never set.
func (s StringOrList) Values() []string { return s.values }

// IsZero reports whether the field was absent from the document entirely.
func (s StringOrList) IsZero() bool { return !s.set }

// IsEmpty reports whether the field was set but resolved to zero values.
func (s StringOrList) IsEmpty() bool { return s.set && len(s.values) == 0 }

// UnmarshalYAML implements goccy/go-yaml's BytesUnmarshaler.
func (s *StringOrList) UnmarshalYAML(b []byte) error {
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*s = StringOrList{set: true, values: nil}
	case string:
		*s = StringOrList{set: true, values: []string{v}}
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = fmt.Sprintf("%v", item)
		}
		*s = StringOrList{set: true, values: out}
	default:
		return fmt.Errorf("must be string or array, got %T", v)
	}
	return nil
}

// MarshalYAML implements marshaling back to a scalar or sequence.
func (s StringOrList) MarshalYAML() (any, error) {
	if len(s.values) == 1 {
		return s.values[0], nil
	}
	return s.values, nil
}
