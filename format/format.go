// Package format renders mia runtime values as text.
package format

import (
	"strings"

	"github.com/sadraskol/mia/vm"
)

// JSON renders v in the JSON-like output form: numbers in shortest decimal,
// texts wrapped in double quotes as written, structs as objects in field
// order, arrays comma-separated and nil as null. Functions print as <fn NAME>.
func JSON(v vm.Value) string {
	var b strings.Builder
	writeJSON(&b, v)
	return b.String()
}

func writeJSON(b *strings.Builder, v vm.Value) {
	switch val := v.(type) {
	case vm.Number:
		b.WriteString(val.String())
	case vm.Text:
		b.WriteByte('"')
		b.WriteString(string(val))
		b.WriteByte('"')
	case *vm.Struct:
		b.WriteByte('{')
		for i, f := range val.Fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(f.Name)
			b.WriteString(`":`)
			writeJSON(b, f.Value)
		}
		b.WriteByte('}')
	case *vm.Array:
		b.WriteByte('[')
		for i, e := range val.Elements {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSON(b, e)
		}
		b.WriteByte(']')
	case *vm.Function:
		b.WriteString(val.String())
	default:
		// vm.Nil, and the zero Value of a missing result
		b.WriteString("null")
	}
}
