package pattern

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/cfa/dom"
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/pyversion"
)

func encode(t *testing.T, v pyversion.Version, ops []struct {
	Op  opcode.Opcode
	Arg int
}) []byte {
	t.Helper()
	var out []byte
	for _, o := range ops {
		b, ok := opcode.ByteOf(v, o.Op)
		require.True(t, ok)
		out = append(out, b, byte(o.Arg))
	}
	return out
}

func buildRecognizer(t *testing.T, code []byte, v pyversion.Version) (*Recognizer, *cfg.Graph) {
	t.Helper()
	g, err := cfg.Build(code, v)
	require.NoError(t, err)
	domTree := dom.Build(g)
	postTree := dom.BuildPost(g)
	return New(g, domTree, postTree), g
}

func TestDetectIfElse(t *testing.T) {
	v := pyversion.V39
	code := encode(t, v, []struct {
		Op  opcode.Opcode
		Arg int
	}{
		{opcode.LOAD_FAST, 0},         // 0
		{opcode.POP_JUMP_IF_FALSE, 8}, // 2 -> 8 (else arm)
		{opcode.LOAD_CONST, 0},        // 4 then
		{opcode.JUMP_FORWARD, 2},      // 6 -> next(8)+2=10
		{opcode.LOAD_CONST, 1},        // 8 else
		{opcode.RETURN_VALUE, 0},      // 10 join
	})
	r, g := buildRecognizer(t, code, v)
	entry, ok := g.BlockAt(0)
	require.True(t, ok)

	p := r.Detect(entry, Options{})
	require.Equal(t, KindIf, p.Kind)
	require.NotNil(t, p.If)
	require.True(t, p.If.HasMerge)
}

func TestDetectForLoop(t *testing.T) {
	v := pyversion.V39
	code := encode(t, v, []struct {
		Op  opcode.Opcode
		Arg int
	}{
		{opcode.LOAD_NAME, 0},    // 0 setup
		{opcode.GET_ITER, 0},     // 2
		{opcode.FOR_ITER, 4},     // 4 header -> next(6)+4=10 exit
		{opcode.STORE_FAST, 0},   // 6 body
		{opcode.JUMP_ABSOLUTE, 4}, // 8 back to header
		{opcode.RETURN_VALUE, 0}, // 10 exit
	})
	r, g := buildRecognizer(t, code, v)
	header, ok := g.BlockAt(4)
	require.True(t, ok)

	p := r.Detect(header, Options{})
	require.Equal(t, KindFor, p.Kind)
	require.NotNil(t, p.For)

	setupID, ok := g.BlockAt(0)
	require.True(t, ok)
	require.Equal(t, setupID, p.For.Setup)
}

func TestDetectWhileLoop(t *testing.T) {
	v := pyversion.V39
	code := encode(t, v, []struct {
		Op  opcode.Opcode
		Arg int
	}{
		{opcode.LOAD_FAST, 0},         // 0 header
		{opcode.POP_JUMP_IF_FALSE, 6}, // 2 -> 6 exit
		{opcode.JUMP_ABSOLUTE, 0},     // 4 body -> back to header
		{opcode.RETURN_VALUE, 0},      // 6 exit
	})
	r, g := buildRecognizer(t, code, v)
	header, ok := g.BlockAt(0)
	require.True(t, ok)

	p := r.Detect(header, Options{})
	require.Equal(t, KindWhile, p.Kind)
	require.NotNil(t, p.While)
	bodyID, _ := g.BlockAt(4)
	require.Equal(t, bodyID, p.While.Body)
}

func TestDetectUnknownOnEmptyBlock(t *testing.T) {
	// A synthetic entry block with no instructions is the one empty-block
	// shape a graph may legally contain; Detect must classify it Unknown
	// rather than inspect a terminator it doesn't have.
	g := &cfg.Graph{Blocks: []*cfg.BasicBlock{{ID: 0}}}
	domTree := dom.Build(g)
	postTree := dom.BuildPost(g)
	r := New(g, domTree, postTree)

	p := r.Detect(0, Options{})
	require.Equal(t, Unknown, p.Kind)
}
