package compiler

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Static types
// ---------------------------------------------------------------------------

// Type is a static type computed by the checker.
type Type interface {
	String() string
	typ() // marker method
}

// BuiltinType is one of the predefined types.
type BuiltinType int

const (
	UnitType   BuiltinType = iota
	NumberType             // Number
	TextType               // String
	ArrayType              // the bare Array of Array<T>
)

var builtinNames = [...]string{
	UnitType:   "Unit",
	NumberType: "Number",
	TextType:   "String",
	ArrayType:  "Array",
}

func (b BuiltinType) String() string {
	if int(b) < len(builtinNames) {
		return builtinNames[b]
	}
	return "Builtin(" + strconv.Itoa(int(b)) + ")"
}
func (BuiltinType) typ() {}

// InferType is the type of something not known yet: nil, untyped parameters.
type InferType struct{}

// Infer is the single InferType value.
var Infer Type = InferType{}

func (InferType) String() string { return "_" }
func (InferType) typ()           {}

// NullableType is T?.
type NullableType struct {
	Inner Type
}

func (t *NullableType) String() string { return t.Inner.String() + "?" }
func (*NullableType) typ()             {}

// NestedType is Base<Param>, e.g. Array<String>.
type NestedType struct {
	Base  Type
	Param Type
}

func (t *NestedType) String() string { return t.Base.String() + "<" + t.Param.String() + ">" }
func (*NestedType) typ()             {}

// NamedType is a capitalized annotation that did not resolve to a struct.
type NamedType struct {
	Name string
}

func (t *NamedType) String() string { return t.Name }
func (*NamedType) typ()             {}

// FieldType is one declared field of a struct type.
type FieldType struct {
	Name string
	Type Type
}

// StructType is a declared struct. Its identity is its field list; Name is
// only used for printing.
type StructType struct {
	Name   string
	Fields []FieldType
}

func (t *StructType) String() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Shape()
}

// Shape prints the field list, e.g. (name:String,tags:Array<String>,).
func (t *StructType) Shape() string {
	var b strings.Builder
	b.WriteString("(")
	for _, f := range t.Fields {
		b.WriteString(f.Name)
		b.WriteString(":")
		b.WriteString(f.Type.String())
		b.WriteString(",")
	}
	b.WriteString(")")
	return b.String()
}
func (*StructType) typ() {}

// Field returns the declared type of name.
func (t *StructType) Field(name string) (FieldType, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldType{}, false
}

// FunctionType describes a function value by return type and arity.
type FunctionType struct {
	Return Type
	Arity  int
}

func (t *FunctionType) String() string {
	return "(" + strconv.Itoa(t.Arity) + "): " + t.Return.String()
}
func (*FunctionType) typ() {}

// Nullable wraps t.
func Nullable(t Type) Type { return &NullableType{Inner: t} }

// ArrayOf returns Array<elem>.
func ArrayOf(elem Type) Type { return &NestedType{Base: ArrayType, Param: elem} }

// Identical reports structural equality of two types.
func Identical(a, b Type) bool {
	switch at := a.(type) {
	case BuiltinType:
		bt, ok := b.(BuiltinType)
		return ok && at == bt
	case InferType:
		_, ok := b.(InferType)
		return ok
	case *NullableType:
		bt, ok := b.(*NullableType)
		return ok && Identical(at.Inner, bt.Inner)
	case *NestedType:
		bt, ok := b.(*NestedType)
		return ok && Identical(at.Base, bt.Base) && Identical(at.Param, bt.Param)
	case *NamedType:
		bt, ok := b.(*NamedType)
		return ok && at.Name == bt.Name
	case *StructType:
		bt, ok := b.(*StructType)
		if !ok || len(at.Fields) != len(bt.Fields) {
			return false
		}
		for i := range at.Fields {
			if at.Fields[i].Name != bt.Fields[i].Name || !Identical(at.Fields[i].Type, bt.Fields[i].Type) {
				return false
			}
		}
		return true
	case *FunctionType:
		bt, ok := b.(*FunctionType)
		return ok && at.Arity == bt.Arity && Identical(at.Return, bt.Return)
	}
	return false
}

// CanBeInferredFrom reports whether a value of type actual may be stored
// where declared is expected.
func CanBeInferredFrom(declared, actual Type) bool {
	if Identical(declared, actual) || isInfer(actual) {
		return true
	}
	switch dt := declared.(type) {
	case InferType:
		return true
	case *NullableType:
		if at, ok := actual.(*NullableType); ok {
			return CanBeInferredFrom(dt.Inner, at.Inner)
		}
		return CanBeInferredFrom(dt.Inner, actual)
	case *NestedType:
		if at, ok := actual.(*NestedType); ok {
			return CanBeInferredFrom(dt.Base, at.Base) && CanBeInferredFrom(dt.Param, at.Param)
		}
	}
	return false
}

func isInfer(t Type) bool {
	_, ok := t.(InferType)
	return ok
}
