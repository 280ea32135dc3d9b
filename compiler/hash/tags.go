package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the hashing AST serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// all previously computed content hashes.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// AST node type tags. Each tag uniquely identifies a node kind in the
// serialized byte stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Literal values
	TagNumberLiteral byte = 0x01
	TagStringLiteral byte = 0x03
	TagArrayLiteral  byte = 0x06
	TagNilLiteral    byte = 0x08
	TagStructLiteral byte = 0x09

	// Variable references
	TagVariable byte = 0x0B

	// Operations
	TagBinary byte = 0x11
	TagCall   byte = 0x12

	// Statements / structure
	TagLet      byte = 0x14
	TagReturn   byte = 0x15
	TagBlock    byte = 0x16
	TagFnDecl   byte = 0x17
	TagStruct   byte = 0x18
	TagType     byte = 0x19
	TagExprStmt byte = 0x1C
	TagFor      byte = 0x1D
	TagImport   byte = 0x1E
	TagProgram  byte = 0x1F

	// Reserved 0xFE-0xFF
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagNumberLiteral, TagStringLiteral, TagArrayLiteral, TagNilLiteral,
	TagStructLiteral, TagVariable, TagBinary, TagCall,
	TagLet, TagReturn, TagBlock, TagFnDecl, TagStruct, TagType,
	TagExprStmt, TagFor, TagImport, TagProgram,
}
