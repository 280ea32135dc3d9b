package dist

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/sadraskol/mia/vm"
)

var (
	ErrNotAnImage      = errors.New("dist: not a mia image")
	ErrVersionMismatch = errors.New("dist: bytecode version mismatch")
	ErrHashMismatch    = errors.New("dist: source hash mismatch")
)

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// NewImage converts a compiled top-level chunk into an image.
func NewImage(chunk *vm.Chunk, sourceHash [32]byte, entry string) (*Image, error) {
	wc, err := encodeChunk(chunk)
	if err != nil {
		return nil, err
	}
	return &Image{
		Magic:      Magic,
		Version:    vm.BytecodeVersion,
		SourceHash: sourceHash,
		Entry:      entry,
		Chunk:      wc,
	}, nil
}

// MarshalImage serializes an Image to CBOR bytes.
func MarshalImage(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// UnmarshalImage deserializes an Image from CBOR bytes and checks its magic
// and bytecode version.
func UnmarshalImage(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	if img.Magic != Magic {
		return nil, ErrNotAnImage
	}
	if img.Version != vm.BytecodeVersion {
		return nil, fmt.Errorf("%w: image has %d, vm runs %d", ErrVersionMismatch, img.Version, vm.BytecodeVersion)
	}
	return &img, nil
}

// Verify checks that the image was compiled from a program with the given
// content hash.
func (img *Image) Verify(sourceHash [32]byte) error {
	if img.SourceHash != sourceHash {
		return fmt.Errorf("%w: image %x, program %x", ErrHashMismatch, img.SourceHash[:6], sourceHash[:6])
	}
	return nil
}

// VMChunk rebuilds the executable chunk tree.
func (img *Image) VMChunk() (*vm.Chunk, error) {
	return decodeChunk(&img.Chunk)
}

// Digest returns the SHA-256 of the image's canonical encoding.
func Digest(img *Image) ([32]byte, error) {
	data, err := MarshalImage(img)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

func encodeChunk(c *vm.Chunk) (Chunk, error) {
	wc := Chunk{
		Name:       c.Name,
		Code:       append([]byte(nil), c.Code...),
		ParamCount: c.ParamCount,
		ParamNames: c.ParamNames,
		LocalCount: c.LocalCount,
		VarNames:   c.VarNames,
	}
	for _, loc := range c.SourceMap {
		wc.SourceMap = append(wc.SourceMap, Location{Offset: loc.BytecodeOffset, Line: loc.Line, Column: loc.Column})
	}
	for i, v := range c.Constants {
		wcon, err := encodeConstant(v)
		if err != nil {
			return Chunk{}, fmt.Errorf("dist: %s constant %d: %w", c.Name, i, err)
		}
		wc.Constants = append(wc.Constants, wcon)
	}
	return wc, nil
}

func encodeConstant(v vm.Value) (Constant, error) {
	switch val := v.(type) {
	case vm.Number:
		return Constant{Kind: ConstNumber, Number: float64(val)}, nil
	case vm.Text:
		return Constant{Kind: ConstText, Text: string(val)}, nil
	case vm.NilValue:
		return Constant{Kind: ConstNil}, nil
	case *vm.Function:
		if len(val.Captures) > 0 {
			return Constant{}, fmt.Errorf("function %s has captures", val.Name)
		}
		inner, err := encodeChunk(val.Chunk)
		if err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstFunction, Function: &Function{
			Name:       val.Name,
			Arity:      val.Arity,
			ReturnType: val.ReturnType,
			Chunk:      inner,
		}}, nil
	}
	return Constant{}, fmt.Errorf("cannot encode %T", v)
}

func decodeChunk(wc *Chunk) (*vm.Chunk, error) {
	c := vm.NewChunk(wc.Name)
	c.Code = append([]byte(nil), wc.Code...)
	c.ParamCount = wc.ParamCount
	c.ParamNames = wc.ParamNames
	c.LocalCount = wc.LocalCount
	c.VarNames = wc.VarNames
	for _, loc := range wc.SourceMap {
		c.SourceMap = append(c.SourceMap, vm.SourceLocation{BytecodeOffset: loc.Offset, Line: loc.Line, Column: loc.Column})
	}
	for i := range wc.Constants {
		v, err := decodeConstant(&wc.Constants[i])
		if err != nil {
			return nil, fmt.Errorf("dist: %s constant %d: %w", wc.Name, i, err)
		}
		c.Constants = append(c.Constants, v)
	}
	return c, nil
}

func decodeConstant(wc *Constant) (vm.Value, error) {
	switch wc.Kind {
	case ConstNumber:
		return vm.Number(wc.Number), nil
	case ConstText:
		return vm.Text(wc.Text), nil
	case ConstNil:
		return vm.Nil, nil
	case ConstFunction:
		if wc.Function == nil {
			return nil, errors.New("function constant without a body")
		}
		inner, err := decodeChunk(&wc.Function.Chunk)
		if err != nil {
			return nil, err
		}
		return &vm.Function{
			Arity:      wc.Function.Arity,
			Name:       wc.Function.Name,
			Chunk:      inner,
			ReturnType: wc.Function.ReturnType,
		}, nil
	}
	return nil, fmt.Errorf("unknown constant kind %d", wc.Kind)
}

// HashSource returns the hash images are keyed by: the SHA-256 of the exact
// source text, so that cached source maps always match the file.
func HashSource(source string) [32]byte {
	return sha256.Sum256([]byte(source))
}
