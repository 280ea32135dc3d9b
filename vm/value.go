package vm

import (
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Runtime values
// ---------------------------------------------------------------------------

// Kind identifies the variant of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindNumber
	KindText
	KindStruct
	KindArray
	KindFunction
)

var kindNames = [...]string{
	KindNil:      "Nil",
	KindNumber:   "Number",
	KindText:     "Text",
	KindStruct:   "Struct",
	KindArray:    "Array",
	KindFunction: "Function",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a mia runtime value. Values are trees: aggregates own their
// children and nothing refers back up, so no cycles can form.
//
// A nil Value (the Go zero interface) is never produced by a program; the VM
// uses it to mark a local slot that has not been written yet.
type Value interface {
	Kind() Kind
	String() string
}

// Number is a 64-bit float.
type Number float64

func (Number) Kind() Kind { return KindNumber }

func (n Number) String() string {
	switch {
	case math.IsInf(float64(n), 1):
		return "inf"
	case math.IsInf(float64(n), -1):
		return "-inf"
	}
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

// Text is an immutable string.
type Text string

func (Text) Kind() Kind { return KindText }

func (t Text) String() string { return strconv.Quote(string(t)) }

// NilValue is the type of Nil.
type NilValue struct{}

// Nil is the null value.
var Nil Value = NilValue{}

func (NilValue) Kind() Kind { return KindNil }

func (NilValue) String() string { return "nil" }

// Field is one named member of a Struct.
type Field struct {
	Name  string
	Value Value
}

// Struct is an ordered list of named fields. Field order is the order of the
// struct declaration, never the order the literal was written in.
type Struct struct {
	Fields []Field
}

func (*Struct) Kind() Kind { return KindStruct }

func (s *Struct) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, f := range s.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(valueString(f.Value))
	}
	b.WriteString("}")
	return b.String()
}

// Get returns the value of the named field.
func (s *Struct) Get(name string) (Value, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (s *Struct) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Array is an ordered list of values.
type Array struct {
	Elements []Value
}

func (*Array) Kind() Kind { return KindArray }

func (a *Array) String() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = valueString(e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.Elements) }

// Function is a compiled function. The prototype stored in a constant pool
// has no captures; OpMakeClosure copies it with the captured values filled in.
type Function struct {
	Arity      int
	Name       string
	Chunk      *Chunk
	ReturnType string  // printed form of the declared return type
	Captures   []Value // snapshot taken when the closure was created
}

func (*Function) Kind() Kind { return KindFunction }

func (f *Function) String() string { return "<fn " + f.Name + ">" }

// WithCaptures returns a copy of the prototype bound to the given captures.
func (f *Function) WithCaptures(captures []Value) *Function {
	clone := *f
	clone.Captures = captures
	return &clone
}

func valueString(v Value) string {
	if v == nil {
		return "<uninitialized>"
	}
	return v.String()
}

// sameConstant reports whether two scalar constants can share a pool entry.
func sameConstant(a, b Value) bool {
	switch av := a.(type) {
	case Number:
		bv, ok := b.(Number)
		return ok && math.Float64bits(float64(av)) == math.Float64bits(float64(bv))
	case Text:
		bv, ok := b.(Text)
		return ok && av == bv
	case NilValue:
		_, ok := b.(NilValue)
		return ok
	}
	return false
}
