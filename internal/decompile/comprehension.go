package decompile

import (
	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/decomperr"
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/past"
	"github.com/dr8co/unpyc/internal/pattern"
	"github.com/dr8co/unpyc/internal/simulate"
	"github.com/dr8co/unpyc/internal/stackvalue"
)

// tryComprehension recognizes the inline comprehension shape 3.12+
// compiles in the enclosing frame: the setup block seeds an empty
// BUILD_LIST/SET/MAP (arg 0) next to its GET_ITER, and the loop body ends in
// LIST_APPEND/SET_ADD/MAP_ADD. The whole loop then reduces to a single
// comprehension expression pushed onto the stack for the consuming store,
// instead of a For statement.
//
// Returns ok=false with no error when the setup doesn't look like a
// comprehension at all, and ok=false with a recoverable
// InvalidComprehension error when it does but the body never completes the
// shape — the caller then emits the raw loop.
func (d *decompiler) tryComprehension(pat *pattern.ForPattern, stack *simulate.Stack) ([]past.Statement, cfg.BlockID, bool, error) {
	if !hasComprehensionSeed(d.g.Blocks[pat.Setup]) {
		return nil, noBlock, false, nil
	}

	// Structural walk before any stack effects: zero or more filter blocks
	// (a conditional that loops back on failure), then the append block.
	var filters []cfg.BlockID
	appendBlock := noBlock
	var appendIdx int
	var appendOp opcode.Opcode
	cur := pat.Body
	for range d.g.Blocks {
		cb := d.g.Blocks[cur]
		if idx, op, found := findAppendOp(cb); found {
			appendBlock, appendIdx, appendOp = cur, idx, op
			break
		}
		kind := opcode.JumpKind(terminatorOf(cb))
		if kind != opcode.IfTrue && kind != opcode.IfFalse {
			break
		}
		// The filter's pass-through edge is its fallthrough; the other
		// conditional edge jumps back to the header for the next item.
		edge := cfg.ConditionalTrue
		if kind == opcode.IfTrue {
			edge = cfg.ConditionalFalse
		}
		next, ok := cb.SuccessorKind(edge)
		if !ok {
			break
		}
		filters = append(filters, cur)
		cur = next
	}
	if appendBlock == noBlock {
		h := d.g.Blocks[pat.Header].Terminator()
		return nil, noBlock, false, d.fail(decomperr.InvalidComprehension, pat.Header, h.Offset, h.Op, "comprehension seed without an append op")
	}

	// Shape holds; commit.
	setupStmts, err := d.emitForSetup(pat, stack)
	if err != nil {
		return setupStmts, noBlock, true, err
	}
	st := d.g.Blocks[pat.Setup].Terminator()
	iter, err := d.popIterDiscardSeed(stack, d.ctxAt(pat.Setup, st.Offset, st.Op))
	if err != nil {
		return setupStmts, noBlock, true, err
	}

	d.consumed[pat.Header] = true
	target, skip := d.forTarget(d.g.Blocks[pat.Body])

	var ifs []past.Expression
	for i, f := range filters {
		fSkip := 0
		if i == 0 {
			fSkip = skip
		}
		if _, err := d.emitBlockPrefixRange(f, fSkip, 1, stack); err != nil {
			return setupStmts, noBlock, true, err
		}
		ft := d.g.Blocks[f].Terminator()
		cond, err := popExpr(stack, d.ctxAt(f, ft.Offset, ft.Op))
		if err != nil {
			return setupStmts, noBlock, true, err
		}
		if opcode.JumpKind(ft.Op) == opcode.IfTrue {
			cond = &past.UnaryExpr{Op: past.Not, Operand: cond}
		}
		ifs = append(ifs, cond)
		d.consumed[f] = true
	}

	ab := d.g.Blocks[appendBlock]
	aSkip := 0
	if len(filters) == 0 {
		aSkip = skip
	}
	if _, err := d.emitBlockPrefixRange(appendBlock, aSkip, len(ab.Instructions)-appendIdx, stack); err != nil {
		return setupStmts, noBlock, true, err
	}
	actx := d.ctxAt(appendBlock, ab.Instructions[appendIdx].Offset, appendOp)

	gen := past.CompFor{Target: target, Iter: iter, Ifs: ifs}
	var comp past.Expression
	switch appendOp {
	case opcode.LIST_APPEND:
		elt, err := popExpr(stack, actx)
		if err != nil {
			return setupStmts, noBlock, true, err
		}
		comp = &past.ListComp{Elt: elt, Generators: []past.CompFor{gen}}
	case opcode.SET_ADD:
		elt, err := popExpr(stack, actx)
		if err != nil {
			return setupStmts, noBlock, true, err
		}
		comp = &past.SetComp{Elt: elt, Generators: []past.CompFor{gen}}
	default: // MAP_ADD: value on top, key beneath
		value, err := popExpr(stack, actx)
		if err != nil {
			return setupStmts, noBlock, true, err
		}
		key, err := popExpr(stack, actx)
		if err != nil {
			return setupStmts, noBlock, true, err
		}
		comp = &past.DictComp{Key: key, Value: value, Generators: []past.CompFor{gen}}
	}
	d.consumed[appendBlock] = true

	stack.Push(&stackvalue.Expression{Expr: comp})
	return setupStmts, pat.Exit, true, nil
}

// hasComprehensionSeed reports whether the setup block carries the
// comprehension signature: a GET_ITER plus an empty collection build.
func hasComprehensionSeed(b *cfg.BasicBlock) bool {
	hasIter, hasSeed := false, false
	for _, in := range b.Instructions {
		switch in.Op {
		case opcode.GET_ITER:
			hasIter = true
		case opcode.BUILD_LIST, opcode.BUILD_SET, opcode.BUILD_MAP:
			if in.Arg == 0 {
				hasSeed = true
			}
		}
	}
	return hasIter && hasSeed
}

func findAppendOp(b *cfg.BasicBlock) (int, opcode.Opcode, bool) {
	for i, in := range b.Instructions {
		switch in.Op {
		case opcode.LIST_APPEND, opcode.SET_ADD, opcode.MAP_ADD:
			return i, in.Op, true
		}
	}
	return 0, opcode.Invalid, false
}

func terminatorOf(b *cfg.BasicBlock) opcode.Opcode {
	if len(b.Instructions) == 0 {
		return opcode.Invalid
	}
	return b.Terminator().Op
}

// popIterDiscardSeed pops the iterable off the stack, discarding the empty
// seed collection the setup block pushed (it survives only as the
// comprehension's result container, which the comprehension node itself now
// represents). The seed may sit above or below the iterable depending on
// how the compiler interleaved the two.
func (d *decompiler) popIterDiscardSeed(stack *simulate.Stack, ctx decomperr.Context) (past.Expression, error) {
	e, err := popExpr(stack, ctx)
	if err != nil {
		return nil, err
	}
	if isEmptySeed(e) {
		return popExpr(stack, ctx)
	}
	if top, ok := stack.Top(); ok {
		if te, ok2 := stackvalue.AsExpression(top); ok2 && isEmptySeed(te) {
			_, _ = stack.Pop(ctx)
		}
	}
	return e, nil
}

func isEmptySeed(e past.Expression) bool {
	switch t := e.(type) {
	case *past.List:
		return len(t.Elts) == 0
	case *past.Set:
		return len(t.Elts) == 0
	case *past.Dict:
		return len(t.Keys) == 0
	}
	return false
}
