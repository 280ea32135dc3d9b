// Package dist implements the portable image format for compiled mia
// programs. An image carries the top-level chunk with every nested function
// chunk, encoded as canonical CBOR so that equal programs produce equal
// bytes.
package dist

// Magic identifies a mia image.
const Magic = "MIAC"

// ConstantKind tags a constant pool entry on the wire.
type ConstantKind uint8

const (
	ConstNumber   ConstantKind = 1
	ConstText     ConstantKind = 2
	ConstNil      ConstantKind = 3
	ConstFunction ConstantKind = 4
)

// Image is a compiled program. SourceHash is the content hash of the program
// it was compiled from and Entry the binding it yields.
type Image struct {
	Magic      string   `cbor:"1,keyasint"`
	Version    uint16   `cbor:"2,keyasint"`
	SourceHash [32]byte `cbor:"3,keyasint"`
	Entry      string   `cbor:"4,keyasint"`
	Chunk      Chunk    `cbor:"5,keyasint"`
}

// Chunk is the wire form of a vm.Chunk.
type Chunk struct {
	Name       string     `cbor:"1,keyasint"`
	Code       []byte     `cbor:"2,keyasint"`
	Constants  []Constant `cbor:"3,keyasint,omitempty"`
	ParamCount int        `cbor:"4,keyasint,omitempty"`
	ParamNames []string   `cbor:"5,keyasint,omitempty"`
	LocalCount int        `cbor:"6,keyasint,omitempty"`
	VarNames   []string   `cbor:"7,keyasint,omitempty"`
	SourceMap  []Location `cbor:"8,keyasint,omitempty"`
}

// Constant is one constant pool entry. Only the field matching Kind is set.
type Constant struct {
	Kind     ConstantKind `cbor:"1,keyasint"`
	Number   float64      `cbor:"2,keyasint,omitempty"`
	Text     string       `cbor:"3,keyasint,omitempty"`
	Function *Function    `cbor:"4,keyasint,omitempty"`
}

// Function is a function prototype. Prototypes in a constant pool never
// carry captures; those are added when the closure is made.
type Function struct {
	Name       string `cbor:"1,keyasint"`
	Arity      int    `cbor:"2,keyasint"`
	ReturnType string `cbor:"3,keyasint,omitempty"`
	Chunk      Chunk  `cbor:"4,keyasint"`
}

// Location maps a bytecode offset to a source position.
type Location struct {
	Offset uint32 `cbor:"1,keyasint"`
	Line   uint32 `cbor:"2,keyasint"`
	Column uint16 `cbor:"3,keyasint"`
}
