// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package facts

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Type is the value domain of a fact.
type Type string

const (
	TypeBool   Type = "bool"
	TypeEnum   Type = "enum"
	TypeNumber Type = "number"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeBool, TypeEnum, TypeNumber:
		return true
	}
	return false
}

// Value is a typed fact value. The zero Value is invalid.
type Value struct {
	typ Type
	b   bool
	s   string
	n   float64
}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{typ: TypeBool, b: b} }

// Enum returns an enumerated value.
func Enum(s string) Value { return Value{typ: TypeEnum, s: s} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{typ: TypeNumber, n: n} }

// Type returns the value's type, or "" for the zero Value.
func (v Value) Type() Type { return v.typ }

// IsZero reports whether v is the zero Value.
func (v Value) IsZero() bool { return v.typ == "" }

// AsBool returns the boolean payload.
func (v Value) AsBool() bool { return v.b }

// AsString returns the enum payload.
func (v Value) AsString() string { return v.s }

// AsNumber returns the numeric payload.
func (v Value) AsNumber() float64 { return v.n }

// Equal reports whether v and o have the same type and payload.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeBool:
		return v.b == o.b
	case TypeEnum:
		return v.s == o.s
	case TypeNumber:
		return v.n == o.n
	}
	return true
}

// Compare orders two numeric values. ok is false unless both are numbers.
func (v Value) Compare(o Value) (cmp int, ok bool) {
	if v.typ != TypeNumber || o.typ != TypeNumber {
		return 0, false
	}
	switch {
	case v.n < o.n:
		return -1, true
	case v.n > o.n:
		return 1, true
	}
	return 0, true
}

// String renders the payload the way it is written in a rule document.
func (v Value) String() string {
	switch v.typ {
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeEnum:
		return v.s
	case TypeNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	}
	return "<unset>"
}

// Any returns the payload as a plain Go value.
func (v Value) Any() any {
	switch v.typ {
	case TypeBool:
		return v.b
	case TypeEnum:
		return v.s
	case TypeNumber:
		return v.n
	}
	return nil
}

// MarshalJSON encodes the payload as a native JSON value.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes a native JSON value. Strings decode as enum
// members; the vocabulary decides whether that is valid.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Value{}
	case bool:
		*v = Bool(x)
	case string:
		*v = Enum(x)
	case float64:
		*v = Number(x)
	default:
		return fmt.Errorf("facts: cannot decode %T as a fact value", raw)
	}
	return nil
}
