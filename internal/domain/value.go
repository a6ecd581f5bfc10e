package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Value is the canonical textual form of a response or option value.
// Definitions and submissions encode values as JSON numbers, strings or booleans;
// all of them decode into this one representation.
type Value string

// NewValue converts an arbitrary scalar into a Value.
func NewValue(v any) Value {
	switch t := v.(type) {
	case nil:
		return ""
	case Value:
		return t
	case float64:
		return Value(strconv.FormatFloat(t, 'f', -1, 64))
	case float32:
		return Value(strconv.FormatFloat(float64(t), 'f', -1, 32))
	default:
		return Value(strings.TrimSpace(cast.ToString(v)))
	}
}

// UnmarshalJSON accepts numbers, strings, booleans and null.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if n, ok := raw.(json.Number); ok {
		*v = Value(n.String())
		return nil
	}
	*v = NewValue(raw)
	return nil
}

// UnmarshalYAML accepts any scalar node.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*v = ""
		return nil
	}
	*v = Value(strings.TrimSpace(node.Value))
	return nil
}

// IsEmpty reports whether no value was supplied.
func (v Value) IsEmpty() bool {
	return strings.TrimSpace(string(v)) == ""
}

// Float returns the numeric interpretation of the value, if it has one.
func (v Value) Float() (float64, bool) {
	if v.IsEmpty() {
		return 0, false
	}
	f, err := cast.ToFloat64E(strings.TrimSpace(string(v)))
	if err != nil {
		return 0, false
	}
	return f, true
}

// Equal compares two values with type coercion: numerically when both sides are
// numbers, otherwise as trimmed, case-insensitive strings. "3", "3.0" and 3 are equal.
func (v Value) Equal(other Value) bool {
	a, aNum := v.Float()
	b, bNum := other.Float()
	if aNum && bNum {
		return a == b
	}
	return strings.EqualFold(strings.TrimSpace(string(v)), strings.TrimSpace(string(other)))
}

func (v Value) String() string {
	return string(v)
}
