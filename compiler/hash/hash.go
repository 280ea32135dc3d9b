package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/sadraskol/mia/compiler"
)

// Sum is a program content hash.
type Sum [32]byte

// String returns the hash as lowercase hex.
func (s Sum) String() string {
	return hex.EncodeToString(s[:])
}

// Short returns the first 12 hex digits.
func (s Sum) Short() string {
	return s.String()[:12]
}

// HashProgram computes the SHA-256 content hash of a parsed program.
//
// The hash is computed over a deterministic serialization of the program's
// normalized AST. Two programs that only differ in layout, comments,
// redundant parentheses or struct literal field order have the same hash,
// and since mia programs are pure they evaluate to the same value.
func HashProgram(prog *compiler.Program) Sum {
	return sha256.Sum256(Serialize(NormalizeProgram(prog)))
}
