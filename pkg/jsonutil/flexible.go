// Package jsonutil decodes tool arguments that language models produce with
// loose typing, such as numbers sent as strings.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// unquote returns the trimmed contents of a JSON string, or the raw bytes when
// raw is not a string. ok is false for null.
func unquote(raw []byte) (string, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", false, nil
	}
	if raw[0] != '"' {
		return string(raw), true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, err
	}
	s = strings.TrimSpace(s)
	return s, s != "", nil
}

// Float is a float64 that also decodes from a numeric string ("0.5").
// Thousands separators are dropped, so "1,250.00" decodes as 1250.
type Float float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(raw []byte) error {
	s, ok, err := unquote(raw)
	if err != nil || !ok {
		return err
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", s)
	}
	*f = Float(v)
	return nil
}

// Float64 returns the value as a float64.
func (f Float) Float64() float64 { return float64(f) }

// FloatPtr converts an optional Float.
func FloatPtr(f *Float) *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

// Int is an int that also decodes from a numeric string ("12") or a whole float (12.0).
type Int int

// UnmarshalJSON implements json.Unmarshaler.
func (i *Int) UnmarshalJSON(raw []byte) error {
	s, ok, err := unquote(raw)
	if err != nil || !ok {
		return err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != float64(int64(v)) {
		return fmt.Errorf("%q is not an integer", s)
	}
	*i = Int(v)
	return nil
}

// Bool is a bool that also decodes from "true"/"false", "1"/"0" and "yes"/"no".
type Bool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bool) UnmarshalJSON(raw []byte) error {
	s, ok, err := unquote(raw)
	if err != nil || !ok {
		return err
	}
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		*b = true
	case "false", "0", "no":
		*b = false
	default:
		return fmt.Errorf("%q is not a boolean", s)
	}
	return nil
}
