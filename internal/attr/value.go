package attr

import (
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a Value
type ValueKind int

const (
	KindAbsent ValueKind = iota
	KindText
	KindInteger
)

// Value is one Meta column value: Text, Integer or Absent.
// The zero Value is Absent.
type Value struct {
	kind ValueKind
	text string
	num  int64
}

// Absent returns the absent value
func Absent() Value { return Value{} }

// Text wraps a string
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Integer wraps an integer
func Integer(n int64) Value { return Value{kind: KindInteger, num: n} }

// Kind returns the variant tag
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether v holds no value
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// AsString returns the grouping-key encoding of v. Integers render in
// decimal; ok is false for Absent.
func (v Value) AsString() (string, bool) {
	switch v.kind {
	case KindText:
		return v.text, true
	case KindInteger:
		return strconv.FormatInt(v.num, 10), true
	default:
		return "", false
	}
}

// AsInt returns v as an integer. Text holding a decimal integer converts;
// anything else reports ok=false.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInteger:
		return v.num, true
	case KindText:
		n, err := strconv.ParseInt(strings.TrimSpace(v.text), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Equal compares two values by their string encoding, so Integer(5) and
// Text("5") are the same observation.
func (v Value) Equal(o Value) bool {
	a, aok := v.AsString()
	b, bok := o.AsString()
	return aok == bok && a == b
}

// String renders v for log lines, using NULL for Absent
func (v Value) String() string {
	if s, ok := v.AsString(); ok {
		return s
	}
	return "NULL"
}

// SQL returns the driver argument for v (nil for Absent)
func (v Value) SQL() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindInteger:
		return v.num
	default:
		return nil
	}
}

// FromDriver converts a value scanned by database/sql. ok is false for
// column types other than INTEGER, TEXT and NULL.
func FromDriver(src any) (Value, bool) {
	switch x := src.(type) {
	case nil:
		return Absent(), true
	case int64:
		return Integer(x), true
	case int:
		return Integer(int64(x)), true
	case string:
		return Text(x), true
	case []byte:
		return Text(string(x)), true
	default:
		return Absent(), false
	}
}

// Coerce converts v to the storage kind of the named column: integer
// columns parse numeric text, text columns render integers. Values that
// do not convert become Absent.
func Coerce(name string, v Value) Value {
	if v.IsAbsent() {
		return v
	}
	if IsIntegerColumn(name) {
		if n, ok := v.AsInt(); ok {
			return Integer(n)
		}
		return Absent()
	}
	s, _ := v.AsString()
	return Text(s)
}
