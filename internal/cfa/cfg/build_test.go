package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/pyversion"
)

// encode builds word-coded bytecode for v out of (opcode, arg) pairs.
func encode(t *testing.T, v pyversion.Version, ops []struct {
	Op  opcode.Opcode
	Arg int
}) []byte {
	t.Helper()
	var out []byte
	for _, o := range ops {
		b, ok := opcode.ByteOf(v, o.Op)
		require.True(t, ok, "no byte for %s in %s", opcode.Name(o.Op), v)
		out = append(out, b, byte(o.Arg))
	}
	return out
}

// if x: A else: B; return, compiled the way the compiler emits it: a
// conditional jump over the "then" arm to an "else" arm, each falling
// through to a shared join block.
func TestBuildIfElse(t *testing.T) {
	v := pyversion.V39
	code := encode(t, v, []struct {
		Op  opcode.Opcode
		Arg int
	}{
		{opcode.LOAD_FAST, 0},         // 0
		{opcode.POP_JUMP_IF_FALSE, 8}, // 2 -> offset 8 (else arm); v3.9 jumps are absolute
		{opcode.LOAD_CONST, 0},        // 4 (then arm)
		{opcode.JUMP_FORWARD, 2},      // 6 -> next(8)+2 = offset 10 (join)
		{opcode.LOAD_CONST, 1},        // 8 (else arm)
		{opcode.RETURN_VALUE, 0},      // 10 (join)
	})

	g, err := Build(code, v)
	require.NoError(t, err)
	require.NotEmpty(t, g.Blocks)

	entry, ok := g.BlockAt(0)
	require.True(t, ok)
	entryBlock := g.Blocks[entry]
	require.Len(t, entryBlock.Successors, 2)

	_, hasTrue := entryBlock.SuccessorKind(ConditionalTrue)
	_, hasFalse := entryBlock.SuccessorKind(ConditionalFalse)
	require.True(t, hasTrue)
	require.True(t, hasFalse)
}

func TestBuildLoopBackEdge(t *testing.T) {
	v := pyversion.V39
	code := encode(t, v, []struct {
		Op  opcode.Opcode
		Arg int
	}{
		{opcode.LOAD_FAST, 0},         // 0 (loop header)
		{opcode.POP_JUMP_IF_FALSE, 6}, // 2 -> offset 6 (exit)
		{opcode.JUMP_ABSOLUTE, 0},     // 4 -> back to offset 0
		{opcode.RETURN_VALUE, 0},      // 6
	})

	g, err := Build(code, v)
	require.NoError(t, err)

	headerID, ok := g.BlockAt(0)
	require.True(t, ok)
	require.True(t, g.Blocks[headerID].IsLoopHeader)

	backID, ok := g.BlockAt(4)
	require.True(t, ok)
	_, hasBack := g.Blocks[backID].SuccessorKind(LoopBack)
	require.True(t, hasBack)
}

func TestBuildEmptyCode(t *testing.T) {
	g, err := Build(nil, pyversion.V39)
	require.NoError(t, err)
	require.Empty(t, g.Blocks)
}

func TestBlockContaining(t *testing.T) {
	v := pyversion.V39
	code := encode(t, v, []struct {
		Op  opcode.Opcode
		Arg int
	}{
		{opcode.LOAD_CONST, 0},
		{opcode.RETURN_VALUE, 0},
	})
	g, err := Build(code, v)
	require.NoError(t, err)

	b, ok := g.BlockContaining(2)
	require.True(t, ok)
	require.Equal(t, 0, b.StartOffset)
}
