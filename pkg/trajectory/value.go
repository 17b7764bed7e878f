package trajectory

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the variant held by a Value
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	default:
		return "null"
	}
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "", "null":
		return KindNull, nil
	case "number":
		return KindNumber, nil
	case "string":
		return KindString, nil
	case "bool":
		return KindBool, nil
	case "time":
		return KindTime, nil
	}
	return KindNull, fmt.Errorf("unknown value kind %q", s)
}

// Value is an attribute value attached to an observation. The zero Value is
// null.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	t    time.Time
}

func NullValue() Value            { return Value{} }
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }
func StringValue(s string) Value  { return Value{kind: KindString, str: s} }
func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }
func TimeValue(t time.Time) Value { return Value{kind: KindTime, t: t} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the number held by v and whether v is a number.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) Text() (string, bool)    { return v.str, v.kind == KindString }
func (v Value) Bool() (bool, bool)      { return v.b, v.kind == KindBool }
func (v Value) Time() (time.Time, bool) { return v.t, v.kind == KindTime }

// ValueOf converts a decoded JSON or HCL scalar into a Value. Unsupported
// types are rendered with fmt and stored as strings.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return x
	case float64:
		return NumberValue(x)
	case float32:
		return NumberValue(float64(x))
	case int:
		return NumberValue(float64(x))
	case int32:
		return NumberValue(float64(x))
	case int64:
		return NumberValue(float64(x))
	case uint32:
		return NumberValue(float64(x))
	case uint64:
		return NumberValue(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return NumberValue(f)
		}
		return StringValue(x.String())
	case string:
		return StringValue(x)
	case bool:
		return BoolValue(x)
	case time.Time:
		return TimeValue(x)
	default:
		return StringValue(fmt.Sprint(x))
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Equal reports whether both values hold the same variant and payload.
// Times compare by instant.
func (v Value) Equal(o Value) bool {
	return v.key() == o.key()
}

// valueKey is a comparable projection of Value used as a map key.
type valueKey struct {
	kind Kind
	num  float64
	str  string
	b    bool
	ns   int64
}

func (v Value) key() valueKey {
	k := valueKey{kind: v.kind}
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) {
			k.str = "NaN"
		} else {
			k.num = v.num
		}
	case KindString:
		k.str = v.str
	case KindBool:
		k.b = v.b
	case KindTime:
		k.ns = v.t.UnixNano()
	}
	return k
}

func (v Value) orderable() bool {
	return v.kind == KindNumber || v.kind == KindString || v.kind == KindTime
}

// compareValues orders two values of the same orderable kind.
func compareValues(a, b Value) int {
	switch a.kind {
	case KindNumber:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case KindString:
		return strings.Compare(a.str, b.str)
	case KindTime:
		return a.t.Compare(b.t)
	}
	return 0
}

type valueJSON struct {
	Kind   string     `json:"kind"`
	Number *float64   `json:"number,omitempty"`
	String *string    `json:"string,omitempty"`
	Bool   *bool      `json:"bool,omitempty"`
	Time   *time.Time `json:"time,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Kind: v.kind.String()}
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, fmt.Errorf("cannot encode non-finite number %v", v.num)
		}
		out.Number = &v.num
	case KindString:
		out.String = &v.str
	case KindBool:
		out.Bool = &v.b
	case KindTime:
		out.Time = &v.t
	}
	return json.Marshal(out)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = NullValue()
		return nil
	}
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	kind, err := parseKind(in.Kind)
	if err != nil {
		return err
	}
	switch kind {
	case KindNumber:
		if in.Number == nil {
			return fmt.Errorf("number value missing payload")
		}
		*v = NumberValue(*in.Number)
	case KindString:
		if in.String == nil {
			return fmt.Errorf("string value missing payload")
		}
		*v = StringValue(*in.String)
	case KindBool:
		if in.Bool == nil {
			return fmt.Errorf("bool value missing payload")
		}
		*v = BoolValue(*in.Bool)
	case KindTime:
		if in.Time == nil {
			return fmt.Errorf("time value missing payload")
		}
		*v = TimeValue(*in.Time)
	default:
		*v = NullValue()
	}
	return nil
}
