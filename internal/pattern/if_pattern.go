package pattern

import (
	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/opcode"
)

// detectIf matches the if/elif/else shape: a conditional terminator with two
// non-exception successors whose post-dominator merge point lies strictly
// after the condition and is not itself a loop header.
func (r *Recognizer) detectIf(b *cfg.BasicBlock) (*IfPattern, bool) {
	if len(b.Successors) < 2 {
		return nil, false
	}
	thenID, hasTrue := b.SuccessorKind(cfg.ConditionalTrue)
	elseID, hasFalse := b.SuccessorKind(cfg.ConditionalFalse)
	if !hasTrue || !hasFalse {
		return nil, false
	}

	p := &IfPattern{Cond: b.ID, Then: thenID, Else: elseID}

	merge, ok := r.postTree.Merge(thenID, elseID)
	if ok {
		elseBlock := r.g.Blocks[elseID]
		if int(merge) > int(b.ID) && !elseBlock.IsLoopHeader {
			p.Merge = merge
			p.HasMerge = true
		}
	}

	p.IsElif = r.looksLikeElif(elseID, thenID)
	p.HasElse = true
	return p, true
}

// looksLikeElif approximates the compiler's elif lowering:
// the else-branch must open with its own conditional (an if-only body: no
// stores/imports/returns ahead of the terminator), have exactly one
// predecessor, and be unable to reach the then-branch. A raise-only
// then-branch additionally needs the bytecode "gap jump" that signals the
// compiler genuinely lowered an elif rather than two unrelated ifs.
func (r *Recognizer) looksLikeElif(elseID, thenID cfg.BlockID) bool {
	elseBlock := r.g.Blocks[elseID]
	if len(elseBlock.Predecessors) != 1 {
		return false
	}
	if terminatorOpcode(elseBlock) == opcode.Invalid {
		return false
	}
	kind := opcode.JumpKind(terminatorOpcode(elseBlock))
	if kind != opcode.IfTrue && kind != opcode.IfFalse {
		return false
	}
	for _, in := range elseBlock.Instructions[:len(elseBlock.Instructions)-1] {
		switch {
		case isStoreOp(in.Op), in.Op == opcode.IMPORT_NAME, in.Op == opcode.IMPORT_FROM, in.Op == opcode.RETURN_VALUE, in.Op == opcode.RETURN_CONST:
			return false
		}
	}
	if r.domTree.Dominates(elseID, thenID) || elseID == thenID {
		return false
	}
	thenBlock := r.g.Blocks[thenID]
	if isRaiseOnlyThen(thenBlock) && !r.hasGapJump(thenBlock) {
		return false
	}
	return true
}

// isRaiseOnlyThen reports whether b's only statement is a raise: its
// terminator is RAISE_VARARGS or RERAISE and nothing ahead of it stores,
// imports, or returns.
func isRaiseOnlyThen(b *cfg.BasicBlock) bool {
	term := terminatorOpcode(b)
	if term != opcode.RAISE_VARARGS && term != opcode.RERAISE {
		return false
	}
	for _, in := range b.Instructions[:len(b.Instructions)-1] {
		switch {
		case isStoreOp(in.Op), in.Op == opcode.RETURN_VALUE, in.Op == opcode.RETURN_CONST:
			return false
		}
	}
	return true
}

// hasGapJump reports whether an unreachable "gap jump" block immediately
// follows a raise-only then-branch: RAISE_VARARGS/RERAISE is a CFG
// terminator with no wired successors, so the compiler's dead "jump past
// the elif chain" instruction - emitted uniformly whether or not the raise
// actually falls through - survives as its own leftover block: a single
// jump instruction with no predecessors. Its absence means the then-branch
// was never part of an elif lowering, so classification falls back to a
// plain nested if.
func (r *Recognizer) hasGapJump(b *cfg.BasicBlock) bool {
	id, ok := r.g.BlockAt(b.EndOffset)
	if !ok {
		return false
	}
	gap := r.g.Blocks[id]
	if len(gap.Predecessors) != 0 || len(gap.Instructions) != 1 {
		return false
	}
	return opcode.IsJump(gap.Instructions[0].Op)
}

func isStoreOp(op opcode.Opcode) bool {
	switch op {
	case opcode.STORE_NAME, opcode.STORE_FAST, opcode.STORE_GLOBAL, opcode.STORE_DEREF,
		opcode.STORE_ATTR, opcode.STORE_SUBSCR, opcode.STORE_SLICE:
		return true
	default:
		return false
	}
}

// detectTernary matches the classic `a if cond else b` shape: a tiny
// diamond (conditional terminator, two successors, each a single
// expression-producing block) that merges immediately.
func (r *Recognizer) detectTernary(b *cfg.BasicBlock) (*TernaryPattern, bool) {
	thenID, hasTrue := b.SuccessorKind(cfg.ConditionalTrue)
	elseID, hasFalse := b.SuccessorKind(cfg.ConditionalFalse)
	if !hasTrue || !hasFalse {
		return nil, false
	}
	thenBlock, elseBlock := r.g.Blocks[thenID], r.g.Blocks[elseID]
	if len(thenBlock.Successors) != 1 || len(elseBlock.Successors) != 1 {
		return nil, false
	}
	thenNext, ok1 := thenBlock.SuccessorKind(cfg.Normal)
	elseNext, ok2 := elseBlock.SuccessorKind(cfg.Normal)
	if !ok1 || !ok2 || thenNext != elseNext {
		return nil, false
	}
	if containsAnyStmtOp(thenBlock) || containsAnyStmtOp(elseBlock) {
		return nil, false
	}
	return &TernaryPattern{Cond: b.ID, Then: thenID, Else: elseID, Merge: thenNext}, true
}

func containsAnyStmtOp(b *cfg.BasicBlock) bool {
	for _, in := range b.Instructions {
		if isStoreOp(in.Op) || in.Op == opcode.RETURN_VALUE || in.Op == opcode.RETURN_CONST || in.Op == opcode.RAISE_VARARGS {
			return true
		}
	}
	return false
}

// detectBoolOp matches the and/or short-circuit chain forms: the legacy
// JUMP_IF_TRUE_OR_POP/JUMP_IF_FALSE_OR_POP shape, or 3.12+'s
// `COPY; TO_BOOL; POP_JUMP_IF_*` shape, each walked into a chain of
// uniformly-polarized conditional blocks converging on a shared target. The
// chain's last element is always the tail block computing the final operand
// (it has no short-circuit terminator of its own — it just falls through to
// the shared target), so it is appended once the walk can no longer extend
// the run of test blocks.
func (r *Recognizer) detectBoolOp(b *cfg.BasicBlock) (*BoolOpPattern, bool) {
	shortCircuit, isAnd, copyToBool, ok := boolOpShape(b)
	if !ok {
		return nil, false
	}

	chain := []cfg.BlockID{b.ID}
	cur := b
	for {
		next, ok := continuationSuccessor(cur, copyToBool, isAnd)
		if !ok {
			return nil, false
		}
		nextBlock := r.g.Blocks[next]
		if copyToBool && !startsWithPopTop(nextBlock) {
			return nil, false
		}
		nextShortCircuit, nextIsAnd, nextCopyToBool, shapeOK := boolOpShape(nextBlock)
		if shapeOK && nextIsAnd == isAnd && nextCopyToBool == copyToBool && nextShortCircuit == shortCircuit {
			chain = append(chain, next)
			cur = nextBlock
			continue
		}
		// next doesn't continue the test run: it must be the chain's tail,
		// the final operand falling straight through to the shared target.
		tailNext, tailOK := nextBlock.SuccessorKind(cfg.Normal)
		if !tailOK || tailNext != shortCircuit {
			return nil, false
		}
		chain = append(chain, next)
		break
	}
	if len(chain) < 2 {
		return nil, false
	}
	return &BoolOpPattern{IsAnd: isAnd, Chain: chain, Exit: shortCircuit, CopyToBool: copyToBool}, true
}

// boolOpShape classifies a single block's terminator as one operand of an
// and/or chain, returning the short-circuit successor, whether the chain is
// `and` (short-circuits on falsy) or `or` (short-circuits on truthy), and
// whether the block uses the 3.12+ COPY/TO_BOOL shape rather than the
// legacy *_OR_POP opcodes.
func boolOpShape(b *cfg.BasicBlock) (shortCircuit cfg.BlockID, isAnd, copyToBool, ok bool) {
	term := terminatorOpcode(b)
	switch opcode.JumpKind(term) {
	case opcode.OrPop:
		sc, hasSC := b.SuccessorKind(cfg.ConditionalTrue)
		if !hasSC {
			return 0, false, false, false
		}
		return sc, term == opcode.JUMP_IF_FALSE_OR_POP, false, true

	case opcode.IfFalse, opcode.IfTrue:
		if !hasCopyToBoolTail(b) {
			return 0, false, false, false
		}
		kind := opcode.JumpKind(term)
		var edgeKind cfg.EdgeKind
		if kind == opcode.IfFalse {
			edgeKind = cfg.ConditionalFalse
		} else {
			edgeKind = cfg.ConditionalTrue
		}
		sc, hasSC := b.SuccessorKind(edgeKind)
		if !hasSC {
			return 0, false, false, false
		}
		return sc, kind == opcode.IfFalse, true, true

	default:
		return 0, false, false, false
	}
}

// hasCopyToBoolTail reports whether b's last three instructions are
// `COPY 1; TO_BOOL; <conditional jump>` — the 3.12+ encoding of one operand
// of an and/or chain, which duplicates the operand so the short-circuit path
// can still yield it while the continuation path discards the duplicate via
// a leading POP_TOP in the next block.
func hasCopyToBoolTail(b *cfg.BasicBlock) bool {
	n := len(b.Instructions)
	if n < 3 {
		return false
	}
	copyIn := b.Instructions[n-3]
	toBool := b.Instructions[n-2]
	return copyIn.Op == opcode.COPY && copyIn.Arg == 1 && toBool.Op == opcode.TO_BOOL
}

// startsWithPopTop reports whether b's first instruction is POP_TOP, the
// marker a COPY/TO_BOOL chain's non-initial blocks use to discard the
// previous operand's duplicate before evaluating the next one.
func startsWithPopTop(b *cfg.BasicBlock) bool {
	return len(b.Instructions) > 0 && b.Instructions[0].Op == opcode.POP_TOP
}

// continuationSuccessor returns the edge a chain walk should follow to reach
// the next operand: the non-short-circuit edge, whose kind depends on shape
// and polarity (legacy *_OR_POP always falls through on Normal; the
// COPY/TO_BOOL shape falls through on whichever conditional edge the
// short-circuit didn't claim).
func continuationSuccessor(b *cfg.BasicBlock, copyToBool, isAnd bool) (cfg.BlockID, bool) {
	if !copyToBool {
		return b.SuccessorKind(cfg.Normal)
	}
	if isAnd {
		return b.SuccessorKind(cfg.ConditionalTrue)
	}
	return b.SuccessorKind(cfg.ConditionalFalse)
}
