package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Value is a measurement that may be missing. The zero Value is missing.
type Value struct {
	Float64 float64
	Valid   bool
}

// Missing is the explicit "no value" marker.
var Missing = Value{}

// Some wraps a present value.
func Some(v float64) Value { return Value{Float64: v, Valid: true} }

// ParseValue coerces a raw cell to a number. Anything that is not a finite
// decimal number becomes Missing, including hexadecimal floats.
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" || isHex(s) {
		return Missing
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	return Some(v)
}

func isHex(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func (v Value) String() string {
	if !v.Valid {
		return "NaN"
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

// MarshalJSON encodes a missing value as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float64)
}

// UnmarshalJSON accepts a number or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Missing
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}
