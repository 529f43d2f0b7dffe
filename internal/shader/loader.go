// Package shader reads compiled SPIR-V bytecode from disk.
package shader

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

var (
	ErrOpen      = errors.New("shader file cannot be opened")
	ErrShortRead = errors.New("shader file not read fully")
	ErrMalformed = errors.New("shader bytecode malformed")
)

// Bytecode is a loaded SPIR-V module.
type Bytecode struct {
	Path string
	Code []byte
}

func (b Bytecode) Size() int { return len(b.Code) }

// Words returns the code as the uint32 slice the driver expects.
func (b Bytecode) Words() []uint32 {
	words := make([]uint32, len(b.Code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b.Code[i*4:])
	}
	return words
}

// Load reads the whole file at path and checks it looks like SPIR-V.
func Load(path string) (Bytecode, error) {
	f, err := os.Open(path)
	if err != nil {
		return Bytecode{}, errors.Mark(errors.Wrapf(err, "open shader %s", path), ErrOpen)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Bytecode{}, errors.Mark(errors.Wrapf(err, "stat shader %s", path), ErrOpen)
	}
	code, err := readCode(f, info.Size())
	if err != nil {
		return Bytecode{}, errors.Wrapf(err, "shader %s", path)
	}
	if err := validate(code); err != nil {
		return Bytecode{}, errors.Wrapf(err, "shader %s", path)
	}
	return Bytecode{Path: path, Code: code}, nil
}

// readCode reads exactly size bytes from r.
func readCode(r io.Reader, size int64) ([]byte, error) {
	code := make([]byte, size)
	if n, err := io.ReadFull(r, code); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read %d of %d bytes", n, size), ErrShortRead)
	}
	return code, nil
}

func validate(code []byte) error {
	if len(code) == 0 || len(code)%4 != 0 {
		return errors.Mark(errors.Newf("length %d is not a positive multiple of 4", len(code)), ErrMalformed)
	}
	if magic := binary.LittleEndian.Uint32(code); magic != spirvMagic {
		return errors.Mark(errors.Newf("bad magic 0x%08x", magic), ErrMalformed)
	}
	return nil
}
