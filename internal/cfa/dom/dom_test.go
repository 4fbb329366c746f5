package dom

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/unpyc/internal/cfa/cfg"
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

// Diamond shape: entry branches to then/else, both fall into a shared join.
func diamond(t *testing.T) *cfg.Graph {
	v := pyversion.V39
	code := encode(t, v, []struct {
		Op  opcode.Opcode
		Arg int
	}{
		{opcode.LOAD_FAST, 0},         // 0
		{opcode.POP_JUMP_IF_FALSE, 8}, // 2 -> offset 8 (else arm)
		{opcode.LOAD_CONST, 0},        // 4
		{opcode.JUMP_FORWARD, 2},      // 6 -> next(8)+2 = offset 10
		{opcode.LOAD_CONST, 1},        // 8
		{opcode.RETURN_VALUE, 0},      // 10
	})
	g, err := cfg.Build(code, v)
	require.NoError(t, err)
	return g
}

func TestDominatorTreeEntryDominatesAll(t *testing.T) {
	g := diamond(t)
	tree := Build(g)
	for _, b := range g.Blocks {
		require.True(t, tree.Dominates(g.Entry, b.ID), "entry must dominate block %d", b.ID)
	}
	_, hasIdom := tree.ImmediateDom(g.Entry)
	require.False(t, hasIdom, "entry has no immediate dominator")
}

func TestPostDominatorMergePoint(t *testing.T) {
	g := diamond(t)
	pt := BuildPost(g)

	thenID, ok := g.BlockAt(4)
	require.True(t, ok)
	elseID, ok := g.BlockAt(8)
	require.True(t, ok)

	merge, ok := pt.Merge(thenID, elseID)
	require.True(t, ok)
	joinID, ok := g.BlockAt(10)
	require.True(t, ok)
	require.Equal(t, joinID, merge)
}

func TestLoopBodyIncludesBackEdgeSource(t *testing.T) {
	v := pyversion.V39
	code := encode(t, v, []struct {
		Op  opcode.Opcode
		Arg int
	}{
		{opcode.LOAD_FAST, 0},         // 0 header
		{opcode.POP_JUMP_IF_FALSE, 6}, // 2 -> 6
		{opcode.JUMP_ABSOLUTE, 0},     // 4 -> back to header
		{opcode.RETURN_VALUE, 0},      // 6
	})
	g, err := cfg.Build(code, v)
	require.NoError(t, err)

	headers := LoopHeaders(g)
	require.Len(t, headers, 1)

	tree := Build(g)
	body := LoopBody(g, tree, headers[0])

	backSrc, ok := g.BlockAt(4)
	require.True(t, ok)
	require.True(t, body.Test(uint(backSrc)))
	require.True(t, body.Test(uint(headers[0])))

	exitBlock, ok := g.BlockAt(6)
	require.True(t, ok)
	require.False(t, body.Test(uint(exitBlock)))
}
