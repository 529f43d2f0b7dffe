package shader

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spirv(words ...uint32) []byte {
	out := make([]byte, 4*(len(words)+1))
	binary.LittleEndian.PutUint32(out, spirvMagic)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*(i+1):], w)
	}
	return out
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "s.spv")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, spirv(0x00010000, 42))
	bc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, bc.Size())
	assert.Equal(t, []uint32{spirvMagic, 0x00010000, 42}, bc.Words())
	assert.Equal(t, path, bc.Path)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.spv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOpen))
	assert.False(t, errors.Is(err, ErrMalformed))
}

func TestLoadMalformed(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     {},
		"unaligned": append(spirv(), 1),
		"bad magic": {1, 2, 3, 4},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
		})
	}
}

func TestReadCodeShort(t *testing.T) {
	_, err := readCode(bytes.NewReader(spirv()), 8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortRead))
	assert.False(t, errors.Is(err, ErrOpen))
	assert.Contains(t, err.Error(), "read 4 of 8 bytes")

	code, err := readCode(bytes.NewReader(spirv(1)), 8)
	require.NoError(t, err)
	assert.Len(t, code, 8)
}

func TestLoadDirectory(t *testing.T) {
	// a directory opens and stats fine, so the failure comes from reading it
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrOpen))
	assert.True(t, errors.Is(err, ErrShortRead) || errors.Is(err, ErrMalformed))
}
