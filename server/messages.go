package server

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sadraskol/mia/compiler"
	"github.com/sadraskol/mia/vm"
)

// Messages on the wire are google.protobuf.Struct values. Requests are read
// with the field helpers below and responses are built from a fields map.

type fields map[string]*structpb.Value

func reply(f fields) *connect.Response[structpb.Struct] {
	return connect.NewResponse(&structpb.Struct{Fields: f})
}

func stringField(msg *structpb.Struct, key string) string {
	if msg == nil {
		return ""
	}
	if v, ok := msg.Fields[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func requireString(msg *structpb.Struct, key string) (string, error) {
	s := stringField(msg, key)
	if s == "" {
		return "", connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s is required", key))
	}
	return s, nil
}

func stringList(items []string) *structpb.Value {
	values := make([]*structpb.Value, len(items))
	for i, s := range items {
		values[i] = structpb.NewStringValue(s)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

// protoValue mirrors a runtime value. Struct field order is not kept by
// google.protobuf.Struct; the formatted text carries it.
func protoValue(v vm.Value) *structpb.Value {
	switch val := v.(type) {
	case vm.Number:
		return structpb.NewNumberValue(float64(val))
	case vm.Text:
		return structpb.NewStringValue(string(val))
	case *vm.Array:
		items := make([]*structpb.Value, len(val.Elements))
		for i, el := range val.Elements {
			items[i] = protoValue(el)
		}
		return structpb.NewListValue(&structpb.ListValue{Values: items})
	case *vm.Struct:
		out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(val.Fields))}
		for _, f := range val.Fields {
			out.Fields[f.Name] = protoValue(f.Value)
		}
		return structpb.NewStructValue(out)
	case *vm.Function:
		return structpb.NewStringValue(val.String())
	}
	return structpb.NewNullValue()
}

// diagnosticFields describes a failed build. Lines inside a session prelude
// are reported relative to the submitted source.
func diagnosticFields(f fields, err error, preludeLines int) {
	f["success"] = structpb.NewBoolValue(false)
	f["exitCode"] = structpb.NewNumberValue(float64(compiler.ExitCode(err)))

	var te *compiler.TypeError
	if !errors.As(err, &te) {
		f["error"] = structpb.NewStringValue(err.Error())
		f["errorKind"] = structpb.NewStringValue("runtime")
		return
	}
	shifted := *te
	if shifted.Pos.Line > preludeLines {
		shifted.Pos.Line -= preludeLines
	}
	f["error"] = structpb.NewStringValue(shifted.Error())
	f["errorKind"] = structpb.NewStringValue(te.Kind.String())
	f["line"] = structpb.NewNumberValue(float64(shifted.Pos.Line))
	f["column"] = structpb.NewNumberValue(float64(shifted.Pos.Column))
}
