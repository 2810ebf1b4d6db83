package types

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Value is a raw request field that remembers whether it was sent at all.
//
// The zero Value is absent. A JSON null yields a present, null Value. Strings are
// kept unquoted; numbers and booleans keep their literal text.
type Value struct {
	present bool
	null    bool
	number  bool
	raw     string
}

// NewValue returns a present value holding s.
func NewValue(s string) Value {
	return Value{present: true, raw: s}
}

// NewNumber returns a present numeric value.
func NewNumber(f float64) Value {
	return Value{present: true, number: true, raw: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Null returns a present JSON null.
func Null() Value {
	return Value{present: true, null: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*v = Value{present: true}
	switch {
	case bytes.Equal(data, []byte("null")):
		v.null = true
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v.raw = s
	default:
		v.number = len(data) > 0 && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9'))
		v.raw = string(data)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.present || v.null {
		return []byte("null"), nil
	}
	if v.number {
		return []byte(v.raw), nil
	}
	return json.Marshal(v.raw)
}

// Present reports whether the field was sent, including as null.
func (v Value) Present() bool {
	return v.present
}

// IsNull reports whether the field was sent as JSON null.
func (v Value) IsNull() bool {
	return v.present && v.null
}

// HasValue reports whether the field was sent with a non-null value.
func (v Value) HasValue() bool {
	return v.present && !v.null
}

// Blank reports whether the field is absent, null or only whitespace.
func (v Value) Blank() bool {
	return !v.HasValue() || strings.TrimSpace(v.raw) == ""
}

// IsNumber reports whether the field was sent as a JSON number.
func (v Value) IsNumber() bool {
	return v.HasValue() && v.number
}

// String returns the raw text, or "" when absent or null.
func (v Value) String() string {
	if !v.HasValue() {
		return ""
	}
	return v.raw
}

// Trimmed returns the raw text with surrounding whitespace removed.
func (v Value) Trimmed() string {
	return strings.TrimSpace(v.String())
}

// Float parses the value as a decimal number.
func (v Value) Float() (float64, bool) {
	s := v.Trimmed()
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
