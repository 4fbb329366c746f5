package simulate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/unpyc/internal/bytecode"
	"github.com/dr8co/unpyc/internal/decomperr"
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/stackvalue"
)

type fakeCode struct {
	consts   []any
	names    []string
	varnames []string
}

func (f *fakeCode) ConstAt(i int) any      { return f.consts[i] }
func (f *fakeCode) NameAt(i int) string    { return f.names[i] }
func (f *fakeCode) VarnameAt(i int) string { return f.varnames[i] }
func (f *fakeCode) FreevarAt(int) string   { return "" }

func TestStepLoadConstAndBinaryAdd(t *testing.T) {
	cc := &fakeCode{consts: []any{int64(1), int64(2)}}
	ctx := decomperr.Context{CodeName: "f"}
	s := NewStack()

	require.NoError(t, Step(bytecode.Instruction{Op: opcode.LOAD_CONST, Arg: 0}, s, cc, ctx))
	require.NoError(t, Step(bytecode.Instruction{Op: opcode.LOAD_CONST, Arg: 1}, s, cc, ctx))
	require.NoError(t, Step(bytecode.Instruction{Op: opcode.BINARY_ADD}, s, cc, ctx))

	require.Equal(t, 1, s.Len())
	top, ok := s.Top()
	require.True(t, ok)
	require.Equal(t, stackvalue.KindExpression, top.Kind())
	require.Contains(t, top.Inspect(), "1")
	require.Contains(t, top.Inspect(), "2")
}

func TestStepStackUnderflow(t *testing.T) {
	cc := &fakeCode{}
	ctx := decomperr.Context{CodeName: "f"}
	s := NewStack()
	err := Step(bytecode.Instruction{Op: opcode.BINARY_ADD}, s, cc, ctx)
	require.Error(t, err)
	kind, ok := decomperr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, decomperr.StackUnderflow, kind)
}

func TestStepLoadFastPushesName(t *testing.T) {
	cc := &fakeCode{varnames: []string{"x"}}
	ctx := decomperr.Context{}
	s := NewStack()
	require.NoError(t, Step(bytecode.Instruction{Op: opcode.LOAD_FAST, Arg: 0}, s, cc, ctx))
	top, ok := s.Top()
	require.True(t, ok)
	require.Equal(t, "x", top.Inspect())
}

func TestStepBuildTupleAndCompare(t *testing.T) {
	cc := &fakeCode{consts: []any{int64(0), int64(1)}}
	ctx := decomperr.Context{}
	s := NewStack()
	require.NoError(t, Step(bytecode.Instruction{Op: opcode.LOAD_CONST, Arg: 0}, s, cc, ctx))
	require.NoError(t, Step(bytecode.Instruction{Op: opcode.LOAD_CONST, Arg: 1}, s, cc, ctx))
	require.NoError(t, Step(bytecode.Instruction{Op: opcode.BUILD_TUPLE, Arg: 2}, s, cc, ctx))
	top, ok := s.Top()
	require.True(t, ok)
	require.Equal(t, "(0, 1)", top.Inspect())
}
