package core

import (
	"strconv"
	"time"
)

// Kind identifies the dynamic type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a single typed field value of a record.
type Value struct {
	kind Kind
	s    string
	n    float64
	t    time.Time
	b    bool
}

// Fielder is implemented by every page record. Unknown keys yield a null Value.
type Fielder interface {
	Field(key string) Value
}

func Null() Value { return Value{} }

// Text returns a string Value, or null for the empty string.
func Text(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: KindString, s: s}
}

func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// DateOf returns a date Value, or null when t is nil.
func DateOf(t *time.Time) Value {
	if t == nil {
		return Value{}
	}
	return Value{kind: KindDate, t: *t}
}

func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) Str() string     { return v.s }
func (v Value) Num() float64    { return v.n }
func (v Value) Time() time.Time { return v.t }
func (v Value) Truth() bool     { return v.b }

// String renders the value the way it is shown and searched.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindDate:
		return v.t.Format(DateLayout)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Key is a canonical encoding that distinguishes kinds, used for hashing and equality.
func (v Value) Key() string {
	switch v.kind {
	case KindString:
		return "s:" + v.s
	case KindNumber:
		return "f:" + v.String()
	case KindDate:
		return "d:" + strconv.FormatInt(v.t.UnixNano(), 10)
	case KindBool:
		return "b:" + v.String()
	default:
		return "-"
	}
}
