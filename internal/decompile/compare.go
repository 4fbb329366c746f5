package decompile

import (
	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/decomperr"
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/past"
	"github.com/dr8co/unpyc/internal/simulate"
)

// tryChainedCompare recognizes and lowers `a < b < c`-style chained
// comparisons used as a branch condition: the head block
// ends with an initial Compare feeding JUMP_IF_FALSE_OR_POP, every link
// block extends the chain with its own comparison against the duplicated
// middle operand, and the short-circuit target is a POP_TOP shim that
// discards the duplicate on the way to the false branch. The whole chain
// collapses into one past.Compare with extended Ops/Comparators driving a
// single If.
//
// The shape is validated structurally before anything touches the stack,
// so a near-miss falls back to the ordinary recognizers with no side
// effects.
func (d *decompiler) tryChainedCompare(id cfg.BlockID, stack *simulate.Stack) ([]past.Statement, cfg.BlockID, bool, error) {
	b := d.g.Blocks[id]
	n := len(b.Instructions)
	if n < 2 || b.Terminator().Op != opcode.JUMP_IF_FALSE_OR_POP || !isCompareOp(b.Instructions[n-2].Op) {
		return nil, noBlock, false, nil
	}
	shimID, ok := b.SuccessorKind(cfg.ConditionalTrue)
	if !ok {
		return nil, noBlock, false, nil
	}
	elseEntry, ok := d.chainShimExit(shimID)
	if !ok {
		return nil, noBlock, false, nil
	}

	var links []cfg.BlockID
	cur, hasCur := b.SuccessorKind(cfg.Normal)
	for hasCur {
		lb := d.g.Blocks[cur]
		if !isCompareLinkBlock(lb) {
			return nil, noBlock, false, nil
		}
		links = append(links, cur)
		if lb.Terminator().Op != opcode.JUMP_IF_FALSE_OR_POP {
			break // final link: the chain's real conditional jump
		}
		if sc, ok2 := lb.SuccessorKind(cfg.ConditionalTrue); !ok2 || sc != shimID {
			return nil, noBlock, false, nil
		}
		cur, hasCur = lb.SuccessorKind(cfg.Normal)
	}
	if len(links) == 0 {
		return nil, noBlock, false, nil
	}
	final := d.g.Blocks[links[len(links)-1]]
	if opcode.JumpKind(final.Terminator().Op) != opcode.IfFalse {
		return nil, noBlock, false, nil
	}
	thenID, ok1 := final.SuccessorKind(cfg.ConditionalTrue)
	falseID, ok2 := final.SuccessorKind(cfg.ConditionalFalse)
	if !ok1 || !ok2 || (falseID != elseEntry && falseID != shimID) {
		return nil, noBlock, false, nil
	}

	// Shape holds; commit. Replay the head, then each link against the live
	// stack (the duplicated middle operand each link's comparison consumes
	// is already there), extending the chain one comparison per link.
	condStmts, err := d.emitBlockPrefix(id, stack)
	if err != nil {
		return condStmts, noBlock, true, err
	}
	headTerm := b.Terminator()
	ctx := d.ctxAt(id, headTerm.Offset, headTerm.Op)
	condExpr, err := popExpr(stack, ctx)
	if err != nil {
		return condStmts, noBlock, true, err
	}
	chain, ok := condExpr.(*past.Compare)
	if !ok {
		return condStmts, noBlock, true, d.fail(decomperr.InvalidBlock, id, headTerm.Offset, headTerm.Op, "chain head is not a comparison")
	}

	for _, link := range links {
		if _, err := d.emitBlockPrefixRange(link, 0, 1, stack); err != nil {
			return condStmts, noBlock, true, err
		}
		lt := d.g.Blocks[link].Terminator()
		lctx := d.ctxAt(link, lt.Offset, lt.Op)
		linkExpr, err := popExpr(stack, lctx)
		if err != nil {
			return condStmts, noBlock, true, err
		}
		linkCmp, ok := linkExpr.(*past.Compare)
		if !ok {
			return condStmts, noBlock, true, d.fail(decomperr.InvalidBlock, link, lt.Offset, lt.Op, "chain link is not a comparison")
		}
		chain.Ops = append(chain.Ops, linkCmp.Ops...)
		chain.Comparators = append(chain.Comparators, linkCmp.Comparators...)
		d.consumed[link] = true
	}
	d.consumed[shimID] = true

	thenBody, err := d.emitRegion(thenID, blockStop(falseID), stack.Clone())
	if err != nil {
		return condStmts, noBlock, true, err
	}
	return append(condStmts, &past.If{Test: chain, Body: thenBody}), falseID, true, nil
}

// chainShimExit verifies the short-circuit shim block is nothing but the
// POP_TOP discarding the duplicated operand (plus an optional jump), and
// returns where the false branch continues.
func (d *decompiler) chainShimExit(id cfg.BlockID) (cfg.BlockID, bool) {
	b := d.g.Blocks[id]
	n := len(b.Instructions)
	if n == 0 || n > 2 || b.Instructions[0].Op != opcode.POP_TOP {
		return noBlock, false
	}
	if n == 2 && opcode.JumpKind(b.Instructions[1].Op) != opcode.Unconditional {
		return noBlock, false
	}
	if next, ok := b.SuccessorKind(cfg.Normal); ok {
		return next, true
	}
	return noBlock, false
}

// isCompareLinkBlock reports whether b can be one link of a comparison
// chain: pure value computation, a comparison, and either another
// OR_POP-style short circuit or the chain's closing conditional jump.
func isCompareLinkBlock(b *cfg.BasicBlock) bool {
	n := len(b.Instructions)
	if n < 2 {
		return false
	}
	term := b.Instructions[n-1]
	if term.Op != opcode.JUMP_IF_FALSE_OR_POP && opcode.JumpKind(term.Op) != opcode.IfFalse {
		return false
	}
	if !isCompareOp(b.Instructions[n-2].Op) {
		return false
	}
	for _, in := range b.Instructions[:n-2] {
		if !isPureValueOp(in.Op) {
			return false
		}
	}
	return true
}

func isCompareOp(op opcode.Opcode) bool {
	switch op {
	case opcode.COMPARE_OP, opcode.IS_OP, opcode.CONTAINS_OP:
		return true
	default:
		return false
	}
}

// isPureValueOp covers the instructions a chain link may use to compute
// its comparator: loads, attribute/subscript access, arithmetic, and the
// stack shuffling the compiler threads the duplicated operand with.
func isPureValueOp(op opcode.Opcode) bool {
	switch op {
	case opcode.LOAD_CONST, opcode.LOAD_NAME, opcode.LOAD_FAST, opcode.LOAD_GLOBAL,
		opcode.LOAD_DEREF, opcode.LOAD_ATTR, opcode.LOAD_METHOD,
		opcode.BINARY_OP, opcode.BINARY_ADD, opcode.BINARY_SUBTRACT,
		opcode.BINARY_MULTIPLY, opcode.BINARY_SUBSCR,
		opcode.DUP_TOP, opcode.COPY, opcode.SWAP, opcode.ROT_TWO, opcode.ROT_THREE:
		return true
	default:
		return false
	}
}
