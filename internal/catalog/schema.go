package catalog

import (
	"fmt"
	"math"
	"sort"

	ncerr "hcd/internal/errors"
)

// FieldType is the value type of a schema field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeBool   FieldType = "bool"
	TypeEnum   FieldType = "enum"
)

func (t FieldType) valid() bool {
	switch t {
	case TypeString, TypeInt, TypeBool, TypeEnum:
		return true
	}
	return false
}

// Field describes one configuration field of a protocol.
type Field struct {
	Type        FieldType `yaml:"type" json:"type"`
	Required    bool      `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any       `yaml:"default,omitempty" json:"default,omitempty"`
	Choices     []string  `yaml:"choices,omitempty" json:"choices,omitempty"`
	Secret      bool      `yaml:"secret,omitempty" json:"secret,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
}

// Schema maps field names to their descriptions.
type Schema map[string]Field

// Clone returns a deep copy of s.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	for k, f := range s {
		if f.Choices != nil {
			f.Choices = append([]string(nil), f.Choices...)
		}
		out[k] = f
	}
	return out
}

// Fields returns the field names in sorted order.
func (s Schema) Fields() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// check reports problems with the schema itself.
func (s Schema) check() []ncerr.FieldError {
	var bad []ncerr.FieldError
	for _, name := range s.Fields() {
		f := s[name]
		switch {
		case !f.Type.valid():
			bad = append(bad, ncerr.FieldError{Field: name, Reason: fmt.Sprintf("unknown field type %q", f.Type)})
		case f.Type == TypeEnum && len(f.Choices) == 0:
			bad = append(bad, ncerr.FieldError{Field: name, Reason: "enum field has no choices"})
		case f.Default != nil:
			if _, reason := coerce(f, f.Default); reason != "" {
				bad = append(bad, ncerr.FieldError{Field: name, Reason: "default " + reason})
			}
		}
	}
	return bad
}

// Validate checks values against s.  It returns the normalized values
// with defaults filled in for omitted optional fields, or every
// offending field sorted by name.
func (s Schema) Validate(values map[string]any) (map[string]any, []ncerr.FieldError) {
	var bad []ncerr.FieldError
	out := make(map[string]any, len(s))

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		f, ok := s[k]
		if !ok {
			bad = append(bad, ncerr.FieldError{Field: k, Reason: "unknown field"})
			continue
		}
		v, reason := coerce(f, values[k])
		if reason != "" {
			bad = append(bad, ncerr.FieldError{Field: k, Reason: reason})
			continue
		}
		out[k] = v
	}

	for _, name := range s.Fields() {
		if _, given := values[name]; given {
			continue
		}
		f := s[name]
		switch {
		case f.Required:
			bad = append(bad, ncerr.FieldError{Field: name, Reason: "required field missing"})
		case f.Default != nil:
			v, _ := coerce(f, f.Default)
			out[name] = v
		}
	}

	if len(bad) > 0 {
		sort.SliceStable(bad, func(i, j int) bool { return bad[i].Field < bad[j].Field })
		return nil, bad
	}
	return out, nil
}

// coerce normalizes v to the Go type of f, or returns why it cannot.
// Integers arrive from scripts and JSON as many kinds; all become int.
// Strings are never parsed as numbers.
func coerce(f Field, v any) (any, string) {
	switch f.Type {
	case TypeString:
		if s, ok := v.(string); ok {
			return s, ""
		}
	case TypeBool:
		if b, ok := v.(bool); ok {
			return b, ""
		}
	case TypeEnum:
		s, ok := v.(string)
		if !ok {
			break
		}
		for _, c := range f.Choices {
			if c == s {
				return s, ""
			}
		}
		return nil, fmt.Sprintf("%q is not one of %v", s, f.Choices)
	case TypeInt:
		if n, ok := toInt(v); ok {
			return n, ""
		}
	}
	return nil, fmt.Sprintf("expected %s, got %s", f.Type, typeName(v))
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		if uint64(n) > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	}
	return 0, false
}

func floatToInt(f float64) (int, bool) {
	// float64(math.MaxInt) rounds up to 2^63, so the upper bound is
	// exclusive.
	if f != math.Trunc(f) || math.IsInf(f, 0) || f >= -float64(math.MinInt) || f < float64(math.MinInt) {
		return 0, false
	}
	return int(f), true
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case float32, float64:
		return "number"
	}
	if _, ok := toInt(v); ok {
		return "int"
	}
	return fmt.Sprintf("%T", v)
}
