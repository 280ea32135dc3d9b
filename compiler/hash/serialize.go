package hash

import (
	"encoding/binary"
	"math"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of the frozen hashing AST.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width uint32
//   - Floats: IEEE 754 big-endian 8B
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans: single byte (0/1), also used as presence flags
//   - Lists: uint32 big-endian count + elements
//   - Child nodes: serialized inline (flat)
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of an HNode tree.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(node HNode) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.serializeNode(node)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeFloat64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) serializeNodes(nodes []HNode) {
	s.writeUint32(uint32(len(nodes)))
	for _, n := range nodes {
		s.serializeNode(n)
	}
}

// serializeOptional writes a presence byte before node.
func (s *serializer) serializeOptional(node HNode) {
	s.writeBool(node != nil)
	if node != nil {
		s.serializeNode(node)
	}
}

func (s *serializer) serializeType(t *HType) {
	s.writeBool(t != nil)
	if t == nil {
		return
	}
	s.writeByte(TagType)
	s.writeString(t.Name)
	s.writeBool(t.Nullable)
	s.serializeType(t.Param)
}

func (s *serializer) serializeNode(node HNode) {
	switch n := node.(type) {
	case *HNumberLiteral:
		s.writeByte(TagNumberLiteral)
		s.writeFloat64(n.Value)

	case *HStringLiteral:
		s.writeByte(TagStringLiteral)
		s.writeString(n.Value)

	case *HNilLiteral:
		s.writeByte(TagNilLiteral)

	case *HVariable:
		s.writeByte(TagVariable)
		s.writeString(n.Name)

	case *HArrayLiteral:
		s.writeByte(TagArrayLiteral)
		s.serializeNodes(n.Elements)

	case *HStructLiteral:
		s.writeByte(TagStructLiteral)
		s.writeString(n.Name)
		s.writeUint32(uint32(len(n.Fields)))
		for _, f := range n.Fields {
			s.writeString(f.Name)
			s.serializeNode(f.Value)
		}

	case *HBinary:
		s.writeByte(TagBinary)
		s.writeByte(n.Op)
		s.serializeNode(n.Left)
		s.serializeNode(n.Right)

	case *HCall:
		s.writeByte(TagCall)
		s.serializeNode(n.Callee)
		s.serializeNodes(n.Args)

	case *HType:
		s.serializeType(n)

	case *HLet:
		s.writeByte(TagLet)
		s.writeBool(n.Public)
		s.writeString(n.Name)
		s.serializeOptional(n.Value)

	case *HStruct:
		s.writeByte(TagStruct)
		s.writeBool(n.Public)
		s.writeString(n.Name)
		s.writeUint32(uint32(len(n.Fields)))
		for _, f := range n.Fields {
			s.writeString(f.Name)
			s.serializeType(f.Type)
		}

	case *HFnDecl:
		s.writeByte(TagFnDecl)
		s.writeBool(n.Public)
		s.writeString(n.Name)
		s.writeUint32(uint32(len(n.Params)))
		for _, p := range n.Params {
			s.writeString(p)
		}
		s.serializeType(n.ReturnType)
		s.serializeNodes(n.Body)

	case *HReturn:
		s.writeByte(TagReturn)
		s.serializeNode(n.Value)

	case *HExprStmt:
		s.writeByte(TagExprStmt)
		s.serializeNode(n.Expr)

	case *HBlock:
		s.writeByte(TagBlock)
		s.serializeNodes(n.Statements)

	case *HFor:
		s.writeByte(TagFor)
		s.writeString(n.Var)
		s.serializeNode(n.Iterable)
		s.serializeNodes(n.Body)

	case *HImport:
		s.writeByte(TagImport)
		s.writeString(n.Name)
		s.writeString(n.Module)

	case *HProgram:
		s.writeByte(TagProgram)
		s.serializeNodes(n.Statements)
	}
}
