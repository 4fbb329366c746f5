package decompile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/unpyc/internal/decompile"
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/past"
	"github.com/dr8co/unpyc/internal/pyversion"
	"github.com/dr8co/unpyc/pyc"
	"github.com/dr8co/unpyc/pyc/unparse"
)

// asm assembles a sequence of (opcode, arg) pairs into word-coded bytecode
// (2 bytes per instruction, the cache-free 3.6-3.10 encoding), using
// the real opcode table so the bytes exercise exactly the same decode path
// internal/bytecode.Decode uses on a genuine .pyc file.
func asm(t *testing.T, v pyversion.Version, ops ...[2]int) []byte {
	t.Helper()
	out := make([]byte, 0, len(ops)*2)
	for _, pair := range ops {
		op, arg := opcode.Opcode(pair[0]), pair[1]
		b, ok := opcode.ByteOf(v, op)
		require.True(t, ok, "no byte encoding for %s in %s", opcode.Name(op), v)
		out = append(out, b, byte(arg))
	}
	return out
}

// asmCached is asm for 3.11+ versions, padding any instruction that carries
// an inline cache (TO_BOOL, CALL, FOR_ITER and BINARY_OP, in this suite)
// with its cache words so byte
// offsets - and therefore the jump args computed against them - line up the
// same way internal/bytecode.Decode reads them back.
func asmCached(t *testing.T, v pyversion.Version, ops ...[2]int) []byte {
	t.Helper()
	out := make([]byte, 0, len(ops)*2)
	for _, pair := range ops {
		op, arg := opcode.Opcode(pair[0]), pair[1]
		b, ok := opcode.ByteOf(v, op)
		require.True(t, ok, "no byte encoding for %s in %s", opcode.Name(op), v)
		out = append(out, b, byte(arg))
		for range opcode.CacheEntries(op, v) {
			out = append(out, 0, 0)
		}
	}
	return out
}

// TestDecompileStraightLineReturn exercises the linear (no control-flow)
// path end to end: pyc.CodeObject -> decompile.Decompile -> pyc/unparse,
// for `def f(x): return x + 1`.
func TestDecompileStraightLineReturn(t *testing.T) {
	v := pyversion.V39
	code := asm(t, v,
		[2]int{int(opcode.LOAD_FAST), 0},
		[2]int{int(opcode.LOAD_CONST), 0},
		[2]int{int(opcode.BINARY_ADD), 0},
		[2]int{int(opcode.RETURN_VALUE), 0},
	)
	co := &pyc.CodeObject{
		Name:     "f",
		Code:     code,
		Consts:   []any{int64(1)},
		Varnames: []string{"x"},
		Argcount: 1,
		Version:  v,
	}

	mod, err := decompile.Decompile(co)
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	ret, ok := mod.Body[0].(*past.Return)
	require.True(t, ok)
	bin, ok := ret.Value.(*past.BinOp)
	require.True(t, ok)
	require.Equal(t, past.Add, bin.Op)
	require.Equal(t, "x", bin.Left.String())
	require.Equal(t, "1", bin.Right.String())

	require.Equal(t, "return (x + 1)\n", unparse.Module(mod))
}

// TestDecompileIfElse exercises the recognizer's if/else detection and the
// driver's emitIf lowering, for:
//
//	def f(x):
//	    if x:
//	        return 1
//	    else:
//	        return 2
func TestDecompileIfElse(t *testing.T) {
	v := pyversion.V39
	code := asm(t, v,
		[2]int{int(opcode.LOAD_FAST), 0},         // offset 0
		[2]int{int(opcode.POP_JUMP_IF_FALSE), 4}, // offset 2, target filled in below
		[2]int{int(opcode.LOAD_CONST), 0},        // offset 4 (then)
		[2]int{int(opcode.RETURN_VALUE), 0},      // offset 6
		[2]int{int(opcode.LOAD_CONST), 1},        // offset 8 (else)
		[2]int{int(opcode.RETURN_VALUE), 0},      // offset 10
	)
	// The else-branch starts at byte offset 8; patch the jump arg now that
	// the full byte layout (2 bytes/instruction) is known.
	code[3] = 8

	co := &pyc.CodeObject{
		Name:     "f",
		Code:     code,
		Consts:   []any{int64(1), int64(2)},
		Varnames: []string{"x"},
		Argcount: 1,
		Version:  v,
	}

	mod, err := decompile.Decompile(co)
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	ifStmt, ok := mod.Body[0].(*past.If)
	require.True(t, ok)
	require.Equal(t, "x", ifStmt.Test.String())

	require.Len(t, ifStmt.Body, 1)
	thenRet, ok := ifStmt.Body[0].(*past.Return)
	require.True(t, ok)
	require.Equal(t, "1", thenRet.Value.String())

	require.Len(t, ifStmt.Orelse, 1)
	elseRet, ok := ifStmt.Orelse[0].(*past.Return)
	require.True(t, ok)
	require.Equal(t, "2", elseRet.Value.String())
}

// TestDecompileBoolOpChainCopyToBool exercises the 3.12+ `COPY; TO_BOOL;
// POP_JUMP_IF_*` and/or-chain shape:
//
//	def f(a, b, c, d, e):
//	    return a if (b and c) or d else e
//
// The outer `or`'s first operand is itself the inner `and` chain's exit
// block, so this also exercises a BoolOp nested inside another BoolOp's
// chain feeding a ternary's condition.
func TestDecompileBoolOpChainCopyToBool(t *testing.T) {
	v := pyversion.V312
	code := asmCached(t, v,
		[2]int{int(opcode.LOAD_FAST), 1},               // offset 0: b
		[2]int{int(opcode.COPY), 1},                    // offset 2
		[2]int{int(opcode.TO_BOOL), 0},                 // offset 4 (+3 cache words)
		[2]int{int(opcode.POP_JUMP_FORWARD_IF_FALSE), 2}, // offset 12 -> offset 18 (and-chain exit)
		[2]int{int(opcode.POP_TOP), 0},                 // offset 14
		[2]int{int(opcode.LOAD_FAST), 2},               // offset 16: c
		[2]int{int(opcode.COPY), 1},                    // offset 18 (and-chain exit / or-chain start)
		[2]int{int(opcode.TO_BOOL), 0},                 // offset 20 (+3 cache words)
		[2]int{int(opcode.POP_JUMP_FORWARD_IF_TRUE), 2}, // offset 28 -> offset 34 (or-chain exit)
		[2]int{int(opcode.POP_TOP), 0},                 // offset 30
		[2]int{int(opcode.LOAD_FAST), 3},               // offset 32: d
		[2]int{int(opcode.POP_JUMP_FORWARD_IF_FALSE), 2}, // offset 34 (ternary test) -> offset 40 (else)
		[2]int{int(opcode.LOAD_FAST), 0},               // offset 36: a (then)
		[2]int{int(opcode.JUMP_FORWARD), 1},            // offset 38 -> offset 42 (merge)
		[2]int{int(opcode.LOAD_FAST), 4},               // offset 40: e (else)
		[2]int{int(opcode.RETURN_VALUE), 0},            // offset 42 (merge)
	)

	co := &pyc.CodeObject{
		Name:     "f",
		Code:     code,
		Varnames: []string{"a", "b", "c", "d", "e"},
		Argcount: 5,
		Version:  v,
	}

	mod, err := decompile.Decompile(co)
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	ret, ok := mod.Body[0].(*past.Return)
	require.True(t, ok)

	ifExp, ok := ret.Value.(*past.IfExp)
	require.True(t, ok)
	require.Equal(t, "a", ifExp.Body.String())
	require.Equal(t, "e", ifExp.Orelse.String())

	orOp, ok := ifExp.Test.(*past.BoolOp)
	require.True(t, ok)
	require.Equal(t, past.Or, orOp.Op)
	require.Len(t, orOp.Values, 2)
	require.Equal(t, "d", orOp.Values[1].String())

	andOp, ok := orOp.Values[0].(*past.BoolOp)
	require.True(t, ok)
	require.Equal(t, past.And, andOp.Op)
	require.Len(t, andOp.Values, 2)
	require.Equal(t, "b", andOp.Values[0].String())
	require.Equal(t, "c", andOp.Values[1].String())
}

// TestDecompileElifChain exercises elif classification and rendering, for:
//
//	def f(x):
//	    if x == 0:
//	        return 'a'
//	    elif x == 1:
//	        return 'b'
//	    else:
//	        return 'c'
func TestDecompileElifChain(t *testing.T) {
	v := pyversion.V39
	code := asm(t, v,
		[2]int{int(opcode.LOAD_FAST), 0},          // 0
		[2]int{int(opcode.LOAD_CONST), 0},         // 2: 0
		[2]int{int(opcode.COMPARE_OP), 2},         // 4: ==
		[2]int{int(opcode.POP_JUMP_IF_FALSE), 12}, // 6 -> elif test
		[2]int{int(opcode.LOAD_CONST), 1},         // 8: 'a'
		[2]int{int(opcode.RETURN_VALUE), 0},       // 10
		[2]int{int(opcode.LOAD_FAST), 0},          // 12
		[2]int{int(opcode.LOAD_CONST), 2},         // 14: 1
		[2]int{int(opcode.COMPARE_OP), 2},         // 16
		[2]int{int(opcode.POP_JUMP_IF_FALSE), 24}, // 18 -> else
		[2]int{int(opcode.LOAD_CONST), 3},         // 20: 'b'
		[2]int{int(opcode.RETURN_VALUE), 0},       // 22
		[2]int{int(opcode.LOAD_CONST), 4},         // 24: 'c'
		[2]int{int(opcode.RETURN_VALUE), 0},       // 26
	)
	co := &pyc.CodeObject{
		Name:     "f",
		Code:     code,
		Consts:   []any{int64(0), "a", int64(1), "b", "c"},
		Varnames: []string{"x"},
		Argcount: 1,
		Version:  v,
	}

	mod, err := decompile.Decompile(co)
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	outer, ok := mod.Body[0].(*past.If)
	require.True(t, ok)
	require.Equal(t, "x == 0", outer.Test.String())
	require.Len(t, outer.Orelse, 1)

	inner, ok := outer.Orelse[0].(*past.If)
	require.True(t, ok)
	require.True(t, inner.Elif)
	require.Equal(t, "x == 1", inner.Test.String())
	require.Len(t, inner.Orelse, 1)

	want := "if x == 0:\n" +
		"    return \"a\"\n" +
		"elif x == 1:\n" +
		"    return \"b\"\n" +
		"else:\n" +
		"    return \"c\"\n"
	require.Equal(t, want, unparse.Module(mod))
}

// TestDecompileChainedCompare exercises the chained-comparison lowering,
// for:
//
//	def f(x):
//	    if 0 < x < 100:
//	        return x
func TestDecompileChainedCompare(t *testing.T) {
	v := pyversion.V39
	code := asm(t, v,
		[2]int{int(opcode.LOAD_CONST), 0},             // 0: 0
		[2]int{int(opcode.LOAD_FAST), 0},              // 2: x
		[2]int{int(opcode.DUP_TOP), 0},                // 4
		[2]int{int(opcode.ROT_THREE), 0},              // 6
		[2]int{int(opcode.COMPARE_OP), 0},             // 8: <
		[2]int{int(opcode.JUMP_IF_FALSE_OR_POP), 22},  // 10 -> shim
		[2]int{int(opcode.LOAD_CONST), 1},             // 12: 100
		[2]int{int(opcode.COMPARE_OP), 0},             // 14: <
		[2]int{int(opcode.POP_JUMP_IF_FALSE), 26},     // 16 -> epilogue
		[2]int{int(opcode.LOAD_FAST), 0},              // 18
		[2]int{int(opcode.RETURN_VALUE), 0},           // 20
		[2]int{int(opcode.POP_TOP), 0},                // 22: shim
		[2]int{int(opcode.JUMP_FORWARD), 0},           // 24 -> 26
		[2]int{int(opcode.LOAD_CONST), 2},             // 26: None
		[2]int{int(opcode.RETURN_VALUE), 0},           // 28
	)
	co := &pyc.CodeObject{
		Name:     "f",
		Code:     code,
		Consts:   []any{int64(0), int64(100), nil},
		Varnames: []string{"x"},
		Argcount: 1,
		Version:  v,
	}

	mod, err := decompile.Decompile(co)
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	ifStmt, ok := mod.Body[0].(*past.If)
	require.True(t, ok)
	cmp, ok := ifStmt.Test.(*past.Compare)
	require.True(t, ok)
	require.Equal(t, "0", cmp.Left.String())
	require.Equal(t, []past.CmpOp{past.Lt, past.Lt}, cmp.Ops)
	require.Len(t, cmp.Comparators, 2)
	require.Equal(t, "x", cmp.Comparators[0].String())
	require.Equal(t, "100", cmp.Comparators[1].String())

	require.Len(t, ifStmt.Body, 1)
	ret, ok := ifStmt.Body[0].(*past.Return)
	require.True(t, ok)
	require.Equal(t, "x", ret.Value.String())
	require.Empty(t, ifStmt.Orelse)
}

// TestDecompileInlineListComp exercises 3.12 inline comprehension
// reduction, for:
//
//	xs = [i * 2 for i in range(10) if i % 2]
func TestDecompileInlineListComp(t *testing.T) {
	v := pyversion.V312
	code := asmCached(t, v,
		[2]int{int(opcode.BUILD_LIST), 0},                 // 0
		[2]int{int(opcode.LOAD_NAME), 0},                  // 2: range
		[2]int{int(opcode.LOAD_CONST), 0},                 // 4: 10
		[2]int{int(opcode.CALL), 1},                       // 6 (+2 cache words) -> next 12
		[2]int{int(opcode.GET_ITER), 0},                   // 12
		[2]int{int(opcode.FOR_ITER), 12},                  // 14 (+1 cache word) -> next 18, exit 18+24=42
		[2]int{int(opcode.STORE_FAST), 0},                 // 18: i
		[2]int{int(opcode.LOAD_FAST), 0},                  // 20
		[2]int{int(opcode.LOAD_CONST), 1},                 // 22: 2
		[2]int{int(opcode.BINARY_OP), 6},                  // 24 (+1 cache word): %
		[2]int{int(opcode.POP_JUMP_BACKWARD_IF_FALSE), 8}, // 28 -> 30-16=14
		[2]int{int(opcode.LOAD_FAST), 0},                  // 30
		[2]int{int(opcode.LOAD_CONST), 1},                 // 32
		[2]int{int(opcode.BINARY_OP), 5},                  // 34 (+1 cache word): *
		[2]int{int(opcode.LIST_APPEND), 2},                // 38
		[2]int{int(opcode.JUMP_BACKWARD), 14},             // 40 -> 42-28=14
		[2]int{int(opcode.STORE_NAME), 1},                 // 42: xs
		[2]int{int(opcode.RETURN_CONST), 2},               // 44: None
	)
	co := &pyc.CodeObject{
		Name:    "m",
		Code:    code,
		Consts:  []any{int64(10), int64(2), nil},
		Names:   []string{"range", "xs"},
		Varnames: []string{"i"},
		Version: v,
	}

	mod, err := decompile.Decompile(co)
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	assign, ok := mod.Body[0].(*past.Assign)
	require.True(t, ok)
	require.Equal(t, "xs", assign.Targets[0].String())

	comp, ok := assign.Value.(*past.ListComp)
	require.True(t, ok)
	require.Equal(t, "(i * 2)", comp.Elt.String())
	require.Len(t, comp.Generators, 1)
	gen := comp.Generators[0]
	require.Equal(t, "i", gen.Target.String())
	require.Equal(t, "range(10)", gen.Iter.String())
	require.Len(t, gen.Ifs, 1)
	require.Equal(t, "(i % 2)", gen.Ifs[0].String())
}

// TestDecompileWhileWithBreak exercises while detection plus break/continue
// recovery for:
//
//	while x:
//	    if y:
//	        break
//	    z()
func TestDecompileWhileWithBreak(t *testing.T) {
	v := pyversion.V39
	code := asm(t, v,
		[2]int{int(opcode.LOAD_FAST), 0},          // 0: x (header)
		[2]int{int(opcode.POP_JUMP_IF_FALSE), 18}, // 2 -> exit
		[2]int{int(opcode.LOAD_FAST), 1},          // 4: y
		[2]int{int(opcode.POP_JUMP_IF_FALSE), 10}, // 6 -> rest of body
		[2]int{int(opcode.JUMP_ABSOLUTE), 18},     // 8: break
		[2]int{int(opcode.LOAD_GLOBAL), 0},        // 10: z
		[2]int{int(opcode.CALL_FUNCTION), 0},      // 12
		[2]int{int(opcode.POP_TOP), 0},            // 14
		[2]int{int(opcode.JUMP_ABSOLUTE), 0},      // 16 -> header
		[2]int{int(opcode.LOAD_CONST), 0},         // 18: None
		[2]int{int(opcode.RETURN_VALUE), 0},       // 20
	)
	co := &pyc.CodeObject{
		Name:     "f",
		Code:     code,
		Consts:   []any{nil},
		Names:    []string{"z"},
		Varnames: []string{"x", "y"},
		Argcount: 2,
		Version:  v,
	}

	mod, err := decompile.Decompile(co)
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	loop, ok := mod.Body[0].(*past.While)
	require.True(t, ok)
	require.Equal(t, "x", loop.Test.String())
	require.Len(t, loop.Body, 2)

	guard, ok := loop.Body[0].(*past.If)
	require.True(t, ok)
	require.Equal(t, "y", guard.Test.String())
	require.Len(t, guard.Body, 1)
	_, ok = guard.Body[0].(*past.Break)
	require.True(t, ok)
	require.Empty(t, guard.Orelse)

	call, ok := loop.Body[1].(*past.ExprStmt)
	require.True(t, ok)
	require.Equal(t, "z()", call.Value.String())
}

// TestDecompileTryExcept exercises 3.11 exception-table-driven try/except
// lowering, for:
//
//	try:
//	    f()
//	except ValueError as e:
//	    g(e)
func TestDecompileTryExcept(t *testing.T) {
	v := pyversion.V311
	code := asmCached(t, v,
		[2]int{int(opcode.LOAD_NAME), 0},                  // 0: f
		[2]int{int(opcode.CALL), 0},                       // 2 (+2 cache words) -> next 8
		[2]int{int(opcode.POP_TOP), 0},                    // 8
		[2]int{int(opcode.JUMP_FORWARD), 13},              // 10 -> 12+26 = 38 (exit)
		[2]int{int(opcode.PUSH_EXC_INFO), 0},              // 12: handler test
		[2]int{int(opcode.LOAD_NAME), 1},                  // 14: ValueError
		[2]int{int(opcode.CHECK_EXC_MATCH), 0},            // 16
		[2]int{int(opcode.POP_JUMP_FORWARD_IF_FALSE), 8},  // 18 -> 20+16 = 36 (reraise)
		[2]int{int(opcode.STORE_FAST), 0},                 // 20: e
		[2]int{int(opcode.LOAD_NAME), 2},                  // 22: g
		[2]int{int(opcode.LOAD_FAST), 0},                  // 24
		[2]int{int(opcode.CALL), 1},                       // 26 (+2 cache words) -> next 32
		[2]int{int(opcode.POP_TOP), 0},                    // 32
		[2]int{int(opcode.JUMP_FORWARD), 1},               // 34 -> 36+2 = 38 (exit)
		[2]int{int(opcode.RERAISE), 0},                    // 36: unmatched exception
		[2]int{int(opcode.LOAD_CONST), 0},                 // 38: None
		[2]int{int(opcode.RETURN_VALUE), 0},               // 40
	)
	co := &pyc.CodeObject{
		Name:     "m",
		Code:     code,
		Consts:   []any{nil},
		Names:    []string{"f", "ValueError", "g"},
		Varnames: []string{"e"},
		Version:  v,
		ExceptionTable: []pyc.ExceptionEntry{
			{Start: 0, End: 10, Target: 12},
		},
	}

	mod, err := decompile.Decompile(co)
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	try, ok := mod.Body[0].(*past.Try)
	require.True(t, ok)

	require.Len(t, try.Body, 1)
	call, ok := try.Body[0].(*past.ExprStmt)
	require.True(t, ok)
	require.Equal(t, "f()", call.Value.String())

	require.Len(t, try.Handlers, 1)
	h := try.Handlers[0]
	require.Equal(t, "ValueError", h.Type.String())
	require.Equal(t, "e", h.Name)
	require.Len(t, h.Body, 1)
	hcall, ok := h.Body[0].(*past.ExprStmt)
	require.True(t, ok)
	require.Equal(t, "g(e)", hcall.Value.String())

	require.Empty(t, try.Orelse)
	require.Empty(t, try.Finalbody)
}

// TestDecompileMatchLiteral exercises 3.10 match lowering, for:
//
//	match v:
//	    case 0:
//	        return 'z'
//	    case _:
//	        return 'o'
func TestDecompileMatchLiteral(t *testing.T) {
	v := pyversion.New(3, 10)
	// 3.10 scales jump args by words: POP_JUMP_IF_FALSE 7 targets byte 14.
	code := asm(t, v,
		[2]int{int(opcode.LOAD_FAST), 0},         // 0: v
		[2]int{int(opcode.DUP_TOP), 0},           // 2
		[2]int{int(opcode.LOAD_CONST), 0},        // 4: 0
		[2]int{int(opcode.COMPARE_OP), 2},        // 6: ==
		[2]int{int(opcode.POP_JUMP_IF_FALSE), 7}, // 8 -> byte 14
		[2]int{int(opcode.LOAD_CONST), 1},        // 10: 'z'
		[2]int{int(opcode.RETURN_VALUE), 0},      // 12
		[2]int{int(opcode.NOP), 0},               // 14: wildcard marker
		[2]int{int(opcode.LOAD_CONST), 2},        // 16: 'o'
		[2]int{int(opcode.RETURN_VALUE), 0},      // 18
	)
	co := &pyc.CodeObject{
		Name:     "f",
		Code:     code,
		Consts:   []any{int64(0), "z", "o"},
		Varnames: []string{"v"},
		Argcount: 1,
		Version:  v,
	}

	mod, err := decompile.Decompile(co)
	require.NoError(t, err)
	require.Len(t, mod.Body, 1)

	m, ok := mod.Body[0].(*past.Match)
	require.True(t, ok)
	require.Equal(t, "v", m.Subject.String())
	require.Len(t, m.Cases, 2)

	require.Equal(t, "0", m.Cases[0].Pattern.String())
	require.Len(t, m.Cases[0].Body, 1)
	ret0, ok := m.Cases[0].Body[0].(*past.Return)
	require.True(t, ok)
	require.Equal(t, "\"z\"", ret0.Value.String())

	require.Equal(t, "_", m.Cases[1].Pattern.String())
	require.Len(t, m.Cases[1].Body, 1)
	ret1, ok := m.Cases[1].Body[0].(*past.Return)
	require.True(t, ok)
	require.Equal(t, "\"o\"", ret1.Value.String())
}
