package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies the dynamic type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
	KindList
)

// String returns the kind name for logging and trace output.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a dynamically-typed attribute value. Attribute bags, condition
// expectations and resource fields are all heterogeneous, so comparisons are
// performed through explicit kind checks; a kind mismatch is an ordinary
// non-match, never a panic.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	t    time.Time
	list []Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool wraps a bool.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Time wraps an instant.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// List wraps a slice of values.
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// StringList wraps a slice of strings.
func StringList(ss []string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = String(s)
	}
	return List(vs...)
}

// Kind returns the dynamic kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload if the value is a string.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsNumber returns the numeric payload if the value is a number.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// AsBool returns the boolean payload if the value is a bool.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsTime returns the instant payload if the value is a time.
func (v Value) AsTime() (time.Time, bool) {
	if v.kind != KindTime {
		return time.Time{}, false
	}
	return v.t, true
}

// AsList returns the element slice if the value is a list.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// Equal implements strict equality: kinds must match and payloads must be
// identical. Lists never compare equal, mirroring reference-identity
// semantics of the source system.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindNumber:
		return v.num == other.num
	case KindBool:
		return v.b == other.b
	case KindTime:
		return v.t.Equal(other.t)
	default:
		return false
	}
}

// Compare orders two values. It reports (-1|0|1, true) for number/number,
// string/string and time/time pairs; every other pairing is unordered.
func (v Value) Compare(other Value) (int, bool) {
	if v.kind != other.kind {
		return 0, false
	}
	switch v.kind {
	case KindNumber:
		switch {
		case v.num < other.num:
			return -1, true
		case v.num > other.num:
			return 1, true
		default:
			return 0, true
		}
	case KindString:
		switch {
		case v.str < other.str:
			return -1, true
		case v.str > other.str:
			return 1, true
		default:
			return 0, true
		}
	case KindTime:
		switch {
		case v.t.Before(other.t):
			return -1, true
		case v.t.After(other.t):
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// Interface returns the value as a plain Go value for logging and JSON maps.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindTime:
		return v.t.Format(time.RFC3339)
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromInterface converts a decoded JSON value (or any of the supported Go
// scalars) into a Value. Unsupported shapes such as maps collapse to null.
func FromInterface(raw interface{}) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case time.Time:
		return Time(x)
	case []interface{}:
		vs := make([]Value, len(x))
		for i, e := range x {
			vs[i] = FromInterface(e)
		}
		return List(vs...)
	case []string:
		return StringList(x)
	case Value:
		return x
	default:
		return Null()
	}
}

// MarshalJSON encodes the value as its plain JSON representation. Times are
// written as RFC 3339 strings.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes any JSON scalar or array. Strings stay strings even
// when they look like dates; the wire format cannot distinguish them, and
// ISO-8601 strings order correctly under lexicographic comparison anyway.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if _, isMap := raw.(map[string]interface{}); isMap {
		return fmt.Errorf("object values are not supported as attribute values")
	}
	*v = FromInterface(raw)
	return nil
}

// UnmarshalYAML decodes a YAML scalar or sequence, matching the JSON rules.
func (v *Value) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*v = FromInterface(normalizeYAML(raw))
	return nil
}

// normalizeYAML converts yaml.v3's int-typed scalars into the float64 shape
// FromInterface expects.
func normalizeYAML(raw interface{}) interface{} {
	switch x := raw.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = normalizeYAML(e)
		}
		return out
	default:
		return raw
	}
}
