package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/pyversion"
)

// encode36 builds word-coded bytecode for a 3.9-family version out of
// (opcode, arg) pairs, the inverse of Decode, for test fixtures only.
func encode36(t *testing.T, v pyversion.Version, ops []struct {
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

func TestDecodeWordCodedBasic(t *testing.T) {
	v := pyversion.V39
	code := encode36(t, v, []struct {
		Op  opcode.Opcode
		Arg int
	}{
		{opcode.LOAD_CONST, 0},
		{opcode.LOAD_CONST, 1},
		{opcode.BINARY_ADD, 0},
		{opcode.RETURN_VALUE, 0},
	})

	insts, err := Decode(code, v)
	require.NoError(t, err)
	require.Len(t, insts, 4)
	require.Equal(t, opcode.LOAD_CONST, insts[0].Op)
	require.Equal(t, 0, insts[0].Offset)
	require.Equal(t, 2, insts[0].Size)
	require.Equal(t, opcode.RETURN_VALUE, insts[3].Op)
	require.Equal(t, 6, insts[3].Offset)
}

func TestExtendedArgFolds(t *testing.T) {
	v := pyversion.V39
	extByte, ok := opcode.ByteOf(v, opcode.EXTENDED_ARG)
	require.True(t, ok)
	constByte, ok := opcode.ByteOf(v, opcode.LOAD_CONST)
	require.True(t, ok)

	code := []byte{extByte, 1, constByte, 0x05} // arg = (1<<8)|5 = 261

	insts, err := Decode(code, v)
	require.NoError(t, err)
	require.Len(t, insts, 1, "EXTENDED_ARG must not appear as its own instruction")
	require.Equal(t, uint32(261), insts[0].Arg)
	require.Equal(t, 0, insts[0].Offset, "folded instruction keeps the EXTENDED_ARG's offset")
}

func TestUnknownOpcodeRejected(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x00}, pyversion.V39)
	require.ErrorIs(t, err, ErrUnknownOpcode)
}

func TestDanglingExtendedArgRejected(t *testing.T) {
	extByte, _ := opcode.ByteOf(pyversion.V39, opcode.EXTENDED_ARG)
	_, err := Decode([]byte{extByte, 1}, pyversion.V39)
	require.ErrorIs(t, err, ErrDanglingExtendedArg)
}

func TestJumpTargetForward39(t *testing.T) {
	v := pyversion.V39
	in := Instruction{Op: opcode.JUMP_FORWARD, Arg: 4, Offset: 10, Size: 2}
	target, err := JumpTarget(in, v)
	require.NoError(t, err)
	require.Equal(t, 16, target) // next=12, +4 bytes
}

func TestJumpTargetRelative311(t *testing.T) {
	v := pyversion.V311
	in := Instruction{Op: opcode.POP_JUMP_FORWARD_IF_FALSE, Arg: 3, Offset: 10, Size: 2}
	target, err := JumpTarget(in, v)
	require.NoError(t, err)
	require.Equal(t, 12+6, target) // next=12, arg scaled by 2 (3.11 is word-scaled) = 6
}

func TestValidateRejectsOutOfRangeJump(t *testing.T) {
	v := pyversion.V39
	jumpByte, _ := opcode.ByteOf(v, opcode.JUMP_FORWARD)
	code := []byte{jumpByte, 200} // target way past end of code
	_, err := Validate(code, v)
	require.ErrorIs(t, err, ErrJumpOutOfRange)
}
