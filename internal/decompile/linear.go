package decompile

import (
	"github.com/dr8co/unpyc/internal/bytecode"
	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/decomperr"
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/past"
	"github.com/dr8co/unpyc/internal/simulate"
	"github.com/dr8co/unpyc/internal/stackvalue"
)

// emitBlockPrefix runs every instruction in a block except its terminator
// through handleOne/simulate.Step, accumulating whatever statements they
// produce. It is shared by plain linear blocks and by the condition/subject
// prefix of if/while/for/match blocks, which need the same processing
// before the terminator (or the recognizer) takes over.
func (d *decompiler) emitBlockPrefix(id cfg.BlockID, stack *simulate.Stack) ([]past.Statement, error) {
	return d.emitBlockPrefixFrom(id, 0, stack)
}

// emitBlockPrefixFrom is emitBlockPrefix starting from instruction index
// skip instead of 0, used by for-loop body emission to swallow the leading
// STORE (or UNPACK_*) run that binds the loop target without re-emitting it
// as an ordinary assignment.
func (d *decompiler) emitBlockPrefixFrom(id cfg.BlockID, skip int, stack *simulate.Stack) ([]past.Statement, error) {
	return d.emitBlockPrefixRange(id, skip, 1, stack)
}

// emitBlockPrefixRange is emitBlockPrefixFrom with the number of trailing
// instructions excluded from replay (normally just the terminator, 1)
// configurable, used by the 3.12+ COPY/TO_BOOL boolop shape to also exclude
// the COPY and TO_BOOL instructions ahead of the terminator: replaying them
// would push a bool-conversion expression instead of the operand's own
// value, and COPY with Arg==1 would otherwise be mistaken for a
// chain-assignment DUP by handleOne.
func (d *decompiler) emitBlockPrefixRange(id cfg.BlockID, skip, tailDrop int, stack *simulate.Stack) ([]past.Statement, error) {
	b := d.g.Blocks[id]
	insts := b.Instructions
	body := insts
	if len(insts) > tailDrop {
		body = insts[:len(insts)-tailDrop]
	} else {
		body = nil
	}
	if skip > len(body) {
		skip = len(body)
	}
	body = body[skip:]

	var out []past.Statement
	i := 0
	for i < len(body) {
		in := body[i]
		ctx := d.ctxAt(id, in.Offset, in.Op)
		stmt, advance, err := d.handleOne(id, body, i, stack, ctx)
		if err != nil {
			if isRecoverable(err) {
				out = append(out, stubStatement(err.Error()))
				i++
				continue
			}
			return out, err
		}
		if advance <= 0 {
			advance = 1
		}
		if stmt != nil {
			out = append(out, stmt)
		}
		i += advance
	}
	return out, nil
}

// emitLinearBlock processes a block the recognizer could not fold into any
// structured pattern: its prefix, then its terminator.
func (d *decompiler) emitLinearBlock(id cfg.BlockID, stack *simulate.Stack) ([]past.Statement, cfg.BlockID, error) {
	return d.emitLinearBlockFrom(id, 0, stack)
}

// emitLinearBlockFrom is emitLinearBlock starting after the leading skip
// instructions of the block (see emitBlockPrefixFrom).
func (d *decompiler) emitLinearBlockFrom(id cfg.BlockID, skip int, stack *simulate.Stack) ([]past.Statement, cfg.BlockID, error) {
	stmts, err := d.emitBlockPrefixFrom(id, skip, stack)
	if err != nil {
		return stmts, noBlock, err
	}
	b := d.g.Blocks[id]
	if len(b.Instructions) == 0 {
		if nxt, ok := b.SuccessorKind(cfg.Normal); ok {
			return stmts, nxt, nil
		}
		return stmts, noBlock, nil
	}
	term := b.Terminator()
	ctx := d.ctxAt(id, term.Offset, term.Op)

	switch term.Op {
	case opcode.RETURN_VALUE:
		v, err := popExpr(stack, ctx)
		if err != nil {
			return append(stmts, stubStatement(err.Error())), noBlock, nil
		}
		return append(stmts, &past.Return{Value: v}), noBlock, nil

	case opcode.RETURN_CONST:
		return append(stmts, &past.Return{Value: &past.Constant{Value: d.ConstAt(int(term.Arg))}}), noBlock, nil

	case opcode.RAISE_VARARGS:
		switch term.Arg {
		case 0:
			return append(stmts, &past.Raise{}), noBlock, nil
		case 1:
			exc, err := popExpr(stack, ctx)
			if err != nil {
				return append(stmts, stubStatement(err.Error())), noBlock, nil
			}
			return append(stmts, &past.Raise{Exc: exc}), noBlock, nil
		default:
			cause, err := popExpr(stack, ctx)
			if err != nil {
				return append(stmts, stubStatement(err.Error())), noBlock, nil
			}
			exc, err := popExpr(stack, ctx)
			if err != nil {
				return append(stmts, stubStatement(err.Error())), noBlock, nil
			}
			return append(stmts, &past.Raise{Exc: exc, Cause: cause}), noBlock, nil
		}

	case opcode.RERAISE:
		return append(stmts, &past.Raise{}), noBlock, nil

	default:
		if fr, ok := d.currentLoop(); ok && opcode.JumpKind(term.Op) == opcode.Unconditional {
			if tgt, ok2 := b.SuccessorKind(cfg.LoopBack); ok2 && tgt == fr.header {
				return append(stmts, &past.Continue{}), noBlock, nil
			}
			if tgt, ok2 := b.SuccessorKind(cfg.Normal); ok2 && tgt == fr.exit {
				return append(stmts, &past.Break{}), noBlock, nil
			}
		}
		if nxt, ok := b.SuccessorKind(cfg.Normal); ok {
			return stmts, nxt, nil
		}
		// A conditional terminator the recognizer could not classify:
		// degrade to a stub and keep walking down the false/default edge so
		// at least one arm's statements aren't silently dropped entirely.
		if nxt, ok := b.SuccessorKind(cfg.ConditionalFalse); ok {
			return append(stmts, stubStatement("unrecognized conditional shape")), nxt, nil
		}
		if nxt, ok := b.SuccessorKind(cfg.ConditionalTrue); ok {
			return append(stmts, stubStatement("unrecognized conditional shape")), nxt, nil
		}
		return stmts, noBlock, nil
	}
}

// handleOne lowers the instruction at insts[idx], returning any statement
// it directly produces and how many instructions it consumed (usually 1,
// more for chain-assignment/unpacking/import runs).
func (d *decompiler) handleOne(id cfg.BlockID, insts []bytecode.Instruction, idx int, stack *simulate.Stack, ctx decomperr.Context) (past.Statement, int, error) {
	in := insts[idx]

	switch in.Op {
	case opcode.LOAD_CONST:
		if err := d.handleLoadConst(in, stack, ctx); err != nil {
			return nil, 0, err
		}
		return nil, 1, nil

	case opcode.DUP_TOP, opcode.COPY:
		if in.Op == opcode.COPY && in.Arg != 1 {
			return nil, 0, simulate.Step(in, stack, d, ctx)
		}
		if stmt, n, ok := d.tryChainAssign(id, insts, idx, stack, ctx); ok {
			return stmt, n, nil
		}
		if err := stack.Dup(ctx); err != nil {
			return nil, 0, err
		}
		return nil, 1, nil

	case opcode.STORE_NAME, opcode.STORE_FAST, opcode.STORE_GLOBAL, opcode.STORE_DEREF,
		opcode.STORE_ATTR, opcode.STORE_SUBSCR, opcode.STORE_SLICE:
		stmt, err := d.handleSimpleStore(id, in, stack, ctx)
		return stmt, 1, err

	case opcode.DELETE_NAME, opcode.DELETE_FAST, opcode.DELETE_GLOBAL, opcode.DELETE_DEREF,
		opcode.DELETE_ATTR, opcode.DELETE_SUBSCR:
		stmt, err := d.handleDelete(id, in, stack, ctx)
		return stmt, 1, err

	case opcode.UNPACK_SEQUENCE, opcode.UNPACK_EX:
		return d.handleUnpack(id, insts, idx, stack, ctx)

	case opcode.IMPORT_NAME:
		return d.handleImportName(id, insts, idx, stack, ctx)

	case opcode.LOAD_BUILD_CLASS:
		stack.Push(&stackvalue.Unknown{Reason: buildClassReason})
		return nil, 1, nil

	case opcode.MAKE_FUNCTION:
		if err := d.handleMakeFunction(id, in, stack, ctx); err != nil {
			return nil, 0, err
		}
		return nil, 1, nil

	case opcode.KW_NAMES:
		d.pendingKwNames = constTupleStrings(&stackvalue.Expression{Expr: &past.Constant{Value: d.ConstAt(int(in.Arg))}})
		return nil, 1, nil

	case opcode.CALL, opcode.CALL_METHOD:
		argVals, err := stack.PopN(int(in.Arg), ctx)
		if err != nil {
			return nil, 0, err
		}
		kwNames := d.pendingKwNames
		d.pendingKwNames = nil
		if err := d.handleCall(id, in, argVals, kwNames, stack, ctx); err != nil {
			return nil, 0, err
		}
		return nil, 1, nil

	case opcode.CALL_FUNCTION:
		argVals, err := stack.PopN(int(in.Arg), ctx)
		if err != nil {
			return nil, 0, err
		}
		if err := d.handleCall(id, in, argVals, nil, stack, ctx); err != nil {
			return nil, 0, err
		}
		return nil, 1, nil

	case opcode.CALL_FUNCTION_KW:
		namesVal, err := stack.Pop(ctx)
		if err != nil {
			return nil, 0, err
		}
		kwNames := constTupleStrings(namesVal)
		argVals, err := stack.PopN(int(in.Arg), ctx)
		if err != nil {
			return nil, 0, err
		}
		if err := d.handleCall(id, in, argVals, kwNames, stack, ctx); err != nil {
			return nil, 0, err
		}
		return nil, 1, nil

	case opcode.CALL_FUNCTION_EX:
		if err := d.handleCallFunctionEx(id, in, stack, ctx); err != nil {
			return nil, 0, err
		}
		return nil, 1, nil

	case opcode.POP_TOP:
		v, err := stack.Pop(ctx)
		if err != nil {
			return nil, 0, err
		}
		if e, ok := stackvalue.AsExpression(v); ok {
			return &past.ExprStmt{Value: e}, 1, nil
		}
		return nil, 1, nil

	default:
		return nil, 1, simulate.Step(in, stack, d, ctx)
	}
}
