package pyc

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/unpyc/internal/pyversion"
)

// marshalBuilder assembles a raw marshal stream using the same tag bytes
// readObject/readCode decode, so Load can be exercised end to end without a
// real CPython-produced .pyc fixture on disk.
type marshalBuilder struct{ buf []byte }

func (b *marshalBuilder) int32(n int32) {
	var le [4]byte
	binary.LittleEndian.PutUint32(le[:], uint32(n))
	b.buf = append(b.buf, le[:]...)
}

func (b *marshalBuilder) tagInt(n int32) {
	b.buf = append(b.buf, 'i')
	b.int32(n)
}

func (b *marshalBuilder) tagStr(s string) {
	b.buf = append(b.buf, 's')
	b.int32(int32(len(s)))
	b.buf = append(b.buf, s...)
}

func (b *marshalBuilder) tagFloat(f float64) {
	b.buf = append(b.buf, 'g')
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], math.Float64bits(f))
	b.buf = append(b.buf, le[:]...)
}

func (b *marshalBuilder) tagTupleStart(n int32) {
	b.buf = append(b.buf, '(')
	b.int32(n)
}

func (b *marshalBuilder) tagNone() { b.buf = append(b.buf, 'N') }

// writeCode appends a 'c'-tagged code object in readCode's exact field
// order: argcount, posonlyargcount, kwonlyargcount, flags, code, consts,
// names, varnames, freevars, cellvars, name, firstlineno.
func (b *marshalBuilder) writeCode(argcount, posonly, kwonly, flags int32, code string, consts []any, names, varnames, freevars, cellvars []string, name string, firstline int32) {
	b.buf = append(b.buf, 'c')
	b.int32(argcount)
	b.int32(posonly)
	b.int32(kwonly)
	b.int32(flags)
	b.tagStr(code)

	b.tagTupleStart(int32(len(consts)))
	for _, c := range consts {
		switch v := c.(type) {
		case int:
			b.tagInt(int32(v))
		case float64:
			b.tagFloat(v)
		case string:
			b.tagStr(v)
		case nil:
			b.tagNone()
		default:
			panic("unsupported const kind in test builder")
		}
	}

	writeStrs := func(ss []string) {
		b.tagTupleStart(int32(len(ss)))
		for _, s := range ss {
			b.tagStr(s)
		}
	}
	writeStrs(names)
	writeStrs(varnames)
	writeStrs(freevars)
	writeStrs(cellvars)

	b.tagStr(name)
	b.int32(firstline)
}

// TestLoadMinimalCodeObject builds a raw marshal stream for
// `def f(x): return x + 1` (the same instruction shape
// decompile_test.go's TestDecompileStraightLineReturn decompiles) and
// checks Load recovers its name, argcount, code, varnames, consts and
// version.
func TestLoadMinimalCodeObject(t *testing.T) {
	var b marshalBuilder
	// 16-byte .pyc header: magic (2 bytes; the rest of the header is
	// unused by Load) followed by the marshalled code object.
	header := make([]byte, 16)
	binary.LittleEndian.PutUint16(header[0:2], 3425) // V39 magic, per magicToVersion

	code := string([]byte{124, 0, 100, 0, 23, 0, 83, 0}) // LOAD_FAST 0; LOAD_CONST 0; BINARY_ADD; RETURN_VALUE
	b.writeCode(1, 0, 0, 0, code, []any{1}, []string{}, []string{"x"}, nil, nil, "f", 1)

	data := append(header, b.buf...)

	co, err := Load(data)
	require.NoError(t, err)
	require.Equal(t, "f", co.Name)
	require.Equal(t, 1, co.Argcount)
	require.Equal(t, []byte(code), co.Code)
	require.Equal(t, []string{"x"}, co.Varnames)
	require.Len(t, co.Consts, 1)
	require.Equal(t, 1, co.Consts[0])
	require.Equal(t, pyversion.V39, co.Version)
}

func TestLoadTruncatedHeader(t *testing.T) {
	_, err := Load([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestLoadUnrecognizedMagic(t *testing.T) {
	header := make([]byte, 16)
	binary.LittleEndian.PutUint16(header[0:2], 0xFFFF)
	_, err := Load(header)
	require.Error(t, err)
}
