package compiler

import "testing"

func TestTypeString(t *testing.T) {
	post := &StructType{Name: "Post", Fields: []FieldType{{"name", TextType}}}
	tests := []struct {
		typ  Type
		want string
	}{
		{NumberType, "Number"},
		{TextType, "String"},
		{UnitType, "Unit"},
		{Infer, "_"},
		{Nullable(NumberType), "Number?"},
		{ArrayOf(TextType), "Array<String>"},
		{Nullable(ArrayOf(Nullable(TextType))), "Array<String?>?"},
		{&NamedType{Name: "Thing"}, "Thing"},
		{post, "Post"},
		{&StructType{Fields: post.Fields}, "(name:String,)"},
		{&FunctionType{Return: NumberType, Arity: 2}, "(2): Number"},
	}

	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestIdentical(t *testing.T) {
	a := &StructType{Name: "A", Fields: []FieldType{{"x", NumberType}}}
	b := &StructType{Name: "B", Fields: []FieldType{{"x", NumberType}}}
	c := &StructType{Name: "C", Fields: []FieldType{{"y", NumberType}}}

	tests := []struct {
		a, b Type
		want bool
	}{
		{NumberType, NumberType, true},
		{NumberType, TextType, false},
		{Infer, Infer, true},
		{ArrayOf(TextType), ArrayOf(TextType), true},
		{ArrayOf(TextType), ArrayOf(NumberType), false},
		{a, b, true}, // structural
		{a, c, false},
		{&FunctionType{NumberType, 1}, &FunctionType{NumberType, 1}, true},
		{&FunctionType{NumberType, 1}, &FunctionType{NumberType, 2}, false},
		{&NamedType{"T"}, &NamedType{"T"}, true},
		{Nullable(NumberType), NumberType, false},
	}

	for _, tt := range tests {
		if got := Identical(tt.a, tt.b); got != tt.want {
			t.Errorf("Identical(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCanBeInferredFrom(t *testing.T) {
	tests := []struct {
		declared, actual Type
		want             bool
	}{
		{NumberType, NumberType, true},
		{NumberType, TextType, false},
		{NumberType, Infer, true},
		{Infer, TextType, true},
		{Nullable(NumberType), NumberType, true},
		{Nullable(NumberType), Nullable(Infer), true}, // nil
		{Nullable(NumberType), Nullable(NumberType), true},
		{Nullable(NumberType), TextType, false},
		{NumberType, Nullable(NumberType), false},
		{NumberType, Nullable(Infer), false},
		{ArrayOf(TextType), ArrayOf(TextType), true},
		{ArrayOf(TextType), ArrayOf(Infer), true}, // []
		{ArrayOf(TextType), ArrayOf(NumberType), false},
		{ArrayOf(Nullable(TextType)), ArrayOf(TextType), true},
		{ArrayType, ArrayOf(TextType), false},
		{&NamedType{"T"}, TextType, false},
		{&FunctionType{NumberType, 0}, &FunctionType{TextType, 0}, false},
	}

	for _, tt := range tests {
		if got := CanBeInferredFrom(tt.declared, tt.actual); got != tt.want {
			t.Errorf("%s.CanBeInferredFrom(%s) = %v, want %v", tt.declared, tt.actual, got, tt.want)
		}
	}
}
