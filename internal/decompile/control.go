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

// emitBodyFrom emits a structured construct's sub-body: the blocks from id
// up to stop, as one flattened statement list. With skip > 0 the first
// block's leading instructions (a for/with target-binding run, a handler
// prelude) are consumed linearly first; otherwise the full region walk
// applies from the start, so a body opening with a nested if/loop/try still
// folds into its structured form.
func (d *decompiler) emitBodyFrom(id cfg.BlockID, skip int, stop func(cfg.BlockID) bool, stack *simulate.Stack) ([]past.Statement, error) {
	if skip == 0 {
		return d.emitRegion(id, stop, stack)
	}
	stmts, next, err := d.emitLinearBlockFrom(id, skip, stack)
	d.consumed[id] = true
	if err != nil {
		return stmts, err
	}
	if next == noBlock || stop(next) {
		return stmts, nil
	}
	rest, err := d.emitRegion(next, stop, stack)
	return append(stmts, rest...), err
}

// emitIf lowers an IfPattern rooted at id into a past.If.
func (d *decompiler) emitIf(id cfg.BlockID, pat *pattern.IfPattern, stack *simulate.Stack) ([]past.Statement, cfg.BlockID, error) {
	condStmts, err := d.emitBlockPrefix(id, stack)
	if err != nil {
		return condStmts, noBlock, err
	}
	term := d.g.Blocks[id].Terminator()
	ctx := d.ctxAt(id, term.Offset, term.Op)
	cond, err := popExpr(stack, ctx)
	if err != nil {
		return append(condStmts, stubStatement(err.Error())), pat.Else, nil
	}

	boundary := []cfg.BlockID{pat.Else}
	if pat.HasMerge {
		boundary = append(boundary, pat.Merge)
	}
	thenBody, err := d.emitRegion(pat.Then, blockStop(boundary...), stack.Clone())
	if err != nil {
		return condStmts, noBlock, err
	}
	d.consumed[pat.Then] = true

	var elseBody []past.Statement
	if pat.HasElse {
		elseStop := alwaysStop
		if pat.HasMerge {
			elseStop = blockStop(pat.Merge)
		}
		elseBody, err = d.emitRegion(pat.Else, elseStop, stack.Clone())
		if err != nil {
			return condStmts, noBlock, err
		}
	}
	if pat.IsElif && len(elseBody) == 1 {
		if inner, ok := elseBody[0].(*past.If); ok {
			inner.Elif = true
		}
	}

	cont := pat.Else
	if pat.HasMerge {
		cont = pat.Merge
	}

	// `if c: break` / `if c: continue` followed by more loop body compiles
	// identically to an explicit else around that body; prefer the
	// continuation form the source almost certainly had.
	if pat.HasElse && !pat.IsElif && endsInLoopJump(thenBody) {
		out := append(condStmts, &past.If{Test: cond, Body: thenBody})
		return append(out, elseBody...), cont, nil
	}

	ifStmt := &past.If{Test: cond, Body: thenBody, Orelse: elseBody}
	return append(condStmts, ifStmt), cont, nil
}

func endsInLoopJump(stmts []past.Statement) bool {
	if len(stmts) == 0 {
		return false
	}
	switch stmts[len(stmts)-1].(type) {
	case *past.Break, *past.Continue:
		return true
	default:
		return false
	}
}

// emitWhile lowers a WhilePattern into a past.While.
func (d *decompiler) emitWhile(id cfg.BlockID, pat *pattern.WhilePattern, stack *simulate.Stack) ([]past.Statement, cfg.BlockID, error) {
	headStmts, err := d.emitBlockPrefix(id, stack)
	if err != nil {
		return headStmts, noBlock, err
	}
	term := d.g.Blocks[id].Terminator()
	ctx := d.ctxAt(id, term.Offset, term.Op)
	cond, err := popExpr(stack, ctx)
	if err != nil {
		cond = &past.Constant{Value: true}
	}

	d.pushLoop(pat.Header, pat.Exit)
	body, err := d.emitBodyFrom(pat.Body, 0, blockStop(pat.Header, pat.Exit), stack.Clone())
	d.popLoop()
	if err != nil {
		return headStmts, noBlock, err
	}
	return append(headStmts, &past.While{Test: cond, Body: elideTrailingContinue(body)}), pat.Exit, nil
}

// emitFor lowers a ForPattern into a past.For, recovering the loop target
// from the body block's leading STORE/UNPACK_* run (FOR_ITER's pushed
// value has no symbolic form of its own beyond that consumer).
func (d *decompiler) emitFor(id cfg.BlockID, pat *pattern.ForPattern, stack *simulate.Stack) ([]past.Statement, cfg.BlockID, error) {
	if stmts, next, ok, err := d.tryComprehension(pat, stack); ok {
		return stmts, next, err
	} else if err != nil && !isRecoverable(err) {
		return stmts, noBlock, err
	}

	setupStmts, err := d.emitForSetup(pat, stack)
	if err != nil {
		return setupStmts, noBlock, err
	}
	term := d.g.Blocks[pat.Setup].Terminator()
	ctx := d.ctxAt(pat.Setup, term.Offset, term.Op)
	iter, err := popExprOrNil(stack, ctx)
	if err != nil || iter == nil {
		iter = &past.Name{Id: "_iter"}
	}
	d.consumed[pat.Header] = true

	target, skip := d.forTarget(d.g.Blocks[pat.Body])

	boundary := []cfg.BlockID{pat.Header, pat.Exit}
	if pat.HasElse {
		boundary = append(boundary, pat.Else)
	}
	d.pushLoop(pat.Header, pat.Exit)
	body, err := d.emitBodyFrom(pat.Body, skip, blockStop(boundary...), stack.Clone())
	d.popLoop()
	if err != nil {
		return setupStmts, noBlock, err
	}

	var elseBody []past.Statement
	if pat.HasElse {
		elseBody, err = d.emitRegion(pat.Else, blockStop(pat.Exit), stack.Clone())
		if err != nil {
			return setupStmts, noBlock, err
		}
	}

	forStmt := &past.For{Target: target, Iter: iter, Body: elideTrailingContinue(body), Orelse: elseBody}
	return append(setupStmts, forStmt), pat.Exit, nil
}

// emitForSetup replays the loop's setup block so the iterable lands on
// stack. The region walk usually reaches the setup block before the
// FOR_ITER header and emits it linearly (the iterable is then already on
// stack); only a setup block nothing walked yet is replayed here.
func (d *decompiler) emitForSetup(pat *pattern.ForPattern, stack *simulate.Stack) ([]past.Statement, error) {
	if d.consumed[pat.Setup] {
		return nil, nil
	}
	stmts, err := d.emitBlockPrefix(pat.Setup, stack)
	d.consumed[pat.Setup] = true
	return stmts, err
}

// forTarget recovers a for-loop's target expression from the leading
// STORE_* or UNPACK_SEQUENCE/UNPACK_EX run at the start of its body block,
// returning how many instructions that run consumed.
func (d *decompiler) forTarget(b *cfg.BasicBlock) (past.Expression, int) {
	insts := b.Instructions
	if len(insts) == 0 {
		return &past.Name{Id: "_"}, 0
	}
	in := insts[0]
	if isStoreOp(in.Op) {
		return &past.Name{Id: d.storeTargetName(in)}, 1
	}
	if in.Op == opcode.UNPACK_SEQUENCE || in.Op == opcode.UNPACK_EX {
		var before, after int
		starred := -1
		if in.Op == opcode.UNPACK_EX {
			before = int(in.Arg & 0xff)
			after = int((in.Arg >> 8) & 0xff)
			starred = before
		} else {
			before = int(in.Arg)
		}
		total := before + after
		if starred >= 0 {
			total++
		}
		targets := make([]past.Expression, 0, total)
		j := 1
		for k := 0; k < total && j < len(insts); k++ {
			if !isStoreOp(insts[j].Op) {
				break
			}
			name := d.storeTargetName(insts[j])
			if k == starred {
				targets = append(targets, &past.Starred{Value: &past.Name{Id: name}})
			} else {
				targets = append(targets, &past.Name{Id: name})
			}
			j++
		}
		return &past.Tuple{Elts: targets}, j
	}
	return &past.Name{Id: "_"}, 0
}

// emitWith lowers a WithPattern into a past.With. The Cleanup block holds
// only the compiler-emitted __exit__ teardown machinery and is marked
// consumed without ever being emitted.
func (d *decompiler) emitWith(id cfg.BlockID, pat *pattern.WithPattern, stack *simulate.Stack) ([]past.Statement, cfg.BlockID, error) {
	setupStmts, err := d.emitBlockPrefix(pat.Setup, stack)
	if err != nil {
		return setupStmts, noBlock, err
	}
	d.consumed[pat.Setup] = true
	term := d.g.Blocks[pat.Setup].Terminator()
	ctx := d.ctxAt(pat.Setup, term.Offset, term.Op)
	ctxExpr, err := popExprOrNil(stack, ctx)
	if err != nil || ctxExpr == nil {
		ctxExpr = &past.Constant{Value: nil}
	}

	asExpr, skip := d.forTarget(d.g.Blocks[pat.Body])
	if name, ok := asExpr.(*past.Name); ok && name.Id == "_" && skip == 0 {
		asExpr = nil
	}

	body, err := d.emitBodyFrom(pat.Body, skip, blockStop(pat.Cleanup, pat.Exit), stack.Clone())
	if err != nil {
		return setupStmts, noBlock, err
	}
	d.consumed[pat.Cleanup] = true

	withStmt := &past.With{Items: []past.WithItem{{ContextExpr: ctxExpr, OptionalVars: asExpr}}, Body: body}
	return append(setupStmts, withStmt), pat.Exit, nil
}

// emitTry lowers a TryPattern into a past.Try.
func (d *decompiler) emitTry(id cfg.BlockID, pat *pattern.TryPattern, stack *simulate.Stack) ([]past.Statement, cfg.BlockID, error) {
	var tailIDs []cfg.BlockID
	if pat.HasFinal {
		tailIDs = append(tailIDs, pat.Finally)
	} else if pat.HasExit {
		tailIDs = append(tailIDs, pat.Exit)
	}

	tryStop := append([]cfg.BlockID{}, tailIDs...)
	if pat.HasElse {
		tryStop = append(tryStop, pat.Else)
	}
	for _, h := range pat.Handlers {
		tryStop = append(tryStop, h.Block)
	}
	prevActive := d.activeTry
	d.activeTry = pat.Try
	tryBody, err := d.emitBodyFrom(pat.Try, 0, blockStop(tryStop...), stack.Clone())
	d.activeTry = prevActive
	if err != nil {
		return nil, noBlock, err
	}

	handlers := make([]*past.ExceptHandler, 0, len(pat.Handlers))
	for i, h := range pat.Handlers {
		var typ past.Expression
		var name string
		bodyID := h.Block
		skip := 0
		if !h.IsBare {
			typ, name, bodyID, skip = d.exceptHandlerParts(h.Block, stack)
		}
		hStop := append([]cfg.BlockID{}, tailIDs...)
		for _, other := range pat.Handlers[i+1:] {
			hStop = append(hStop, other.Block)
		}
		body, err := d.emitBodyFrom(bodyID, skip, blockStop(hStop...), stack.Clone())
		if err != nil {
			return nil, noBlock, err
		}
		handlers = append(handlers, &past.ExceptHandler{Type: typ, Name: name, Body: body})
	}

	var elseBody []past.Statement
	if pat.HasElse {
		elseBody, err = d.emitBodyFrom(pat.Else, 0, blockStop(tailIDs...), stack.Clone())
		if err != nil {
			return nil, noBlock, err
		}
	}

	var finallyBody []past.Statement
	if pat.HasFinal {
		finallyStop := alwaysStop
		if pat.HasExit {
			finallyStop = blockStop(pat.Exit)
		}
		finallyBody, err = d.emitBodyFrom(pat.Finally, 0, finallyStop, stack.Clone())
		if err != nil {
			return nil, noBlock, err
		}
	}

	tryStmt := &past.Try{Body: tryBody, Handlers: handlers, Orelse: elseBody, Finalbody: finallyBody}
	cont := cfg.BlockID(noBlock)
	if pat.HasExit {
		cont = pat.Exit
	}
	return []past.Statement{tryStmt}, cont, nil
}

// exceptHandlerParts recovers a typed except clause's pieces. The type
// expression always lives in the handler's test block; when that block ends
// at the CHECK_EXC_MATCH/exception-match conditional, the `as name` binding
// and the user-written body live in the fallthrough block behind a
// POP_TOP/STORE prelude. A handler that never split (no conditional
// terminator) keeps the single-block path.
func (d *decompiler) exceptHandlerParts(id cfg.BlockID, stack *simulate.Stack) (past.Expression, string, cfg.BlockID, int) {
	typ, name, skip := d.extractExceptHeader(id, stack)
	b := d.g.Blocks[id]
	if len(b.Instructions) == 0 || !isConditionalJump(b.Terminator().Op) {
		return typ, name, id, skip
	}
	bodyID, ok := b.SuccessorKind(cfg.ConditionalTrue)
	if !ok {
		return typ, name, id, skip
	}
	d.consumed[id] = true

	bb := d.g.Blocks[bodyID]
	bSkip := 0
	for bSkip < len(bb.Instructions) && bb.Instructions[bSkip].Op == opcode.POP_TOP {
		bSkip++
	}
	if name == "" && bSkip < len(bb.Instructions) && isStoreOp(bb.Instructions[bSkip].Op) {
		name = d.storeTargetName(bb.Instructions[bSkip])
		bSkip++
		if bSkip < len(bb.Instructions) && bb.Instructions[bSkip].Op == opcode.POP_TOP {
			bSkip++
		}
	}
	return typ, name, bodyID, bSkip
}

// extractExceptHeader recovers an except clause's exception type expression
// and `as name` binding from its header block's leading instructions,
// returning how many instructions to skip before the handler's real body.
func (d *decompiler) extractExceptHeader(id cfg.BlockID, stack *simulate.Stack) (past.Expression, string, int) {
	b := d.g.Blocks[id]
	insts := b.Instructions
	i := 0
	if i < len(insts) && insts[i].Op == opcode.DUP_TOP {
		i++
	}

	scratch := stack.Clone()
	typeStart := i
	for i < len(insts) && insts[i].Op != opcode.CHECK_EXC_MATCH && insts[i].Op != opcode.COMPARE_OP {
		ctx := d.ctxAt(id, insts[i].Offset, insts[i].Op)
		_ = simulate.Step(insts[i], scratch, d, ctx)
		i++
	}
	var typ past.Expression
	if i > typeStart {
		if v, err := scratch.Pop(decomperr.Context{}); err == nil {
			typ, _ = stackvalue.AsExpression(v)
		}
	}
	for i < len(insts) && (insts[i].Op == opcode.CHECK_EXC_MATCH || insts[i].Op == opcode.COMPARE_OP || isConditionalJump(insts[i].Op)) {
		i++
	}
	if i < len(insts) && insts[i].Op == opcode.POP_TOP {
		i++
	}
	var name string
	if i < len(insts) && insts[i].Op == opcode.STORE_FAST {
		name = d.VarnameAt(int(insts[i].Arg))
		i++
		if i < len(insts) && insts[i].Op == opcode.POP_TOP {
			i++
		}
	}
	return typ, name, i
}

func isConditionalJump(op opcode.Opcode) bool {
	switch op {
	case opcode.POP_JUMP_IF_TRUE, opcode.POP_JUMP_IF_FALSE,
		opcode.POP_JUMP_FORWARD_IF_TRUE, opcode.POP_JUMP_FORWARD_IF_FALSE,
		opcode.POP_JUMP_BACKWARD_IF_TRUE, opcode.POP_JUMP_BACKWARD_IF_FALSE:
		return true
	default:
		return false
	}
}

// emitMatch lowers a MatchPattern into a past.Match. Pattern extraction is
// limited to simple literal-equality cases (the common `case <const>:`
// shape); anything richer degrades to a wildcard case with the case body
// still fully emitted.
func (d *decompiler) emitMatch(id cfg.BlockID, pat *pattern.MatchPattern, stack *simulate.Stack) ([]past.Statement, cfg.BlockID, error) {
	subjBlock := d.g.Blocks[pat.Subject]
	subjEnd := subjectPrefixLen(subjBlock)
	subjStmts, err := d.emitBlockPrefixRange(pat.Subject, 0, len(subjBlock.Instructions)-subjEnd, stack)
	if err != nil {
		return subjStmts, noBlock, err
	}
	term := subjBlock.Terminator()
	ctx := d.ctxAt(pat.Subject, term.Offset, term.Op)
	subject, err := popExprOrNil(stack, ctx)
	if err != nil || subject == nil {
		subject = &past.Name{Id: "_subject"}
	}

	var tailIDs []cfg.BlockID
	if pat.HasExit {
		tailIDs = []cfg.BlockID{pat.Exit}
	}

	cases := make([]*past.MatchCase, 0, len(pat.Cases))
	for i, c := range pat.Cases {
		caseStop := append([]cfg.BlockID{}, tailIDs...)
		for _, other := range pat.Cases[i+1:] {
			caseStop = append(caseStop, other.Block)
		}
		cb := d.g.Blocks[c.Block]

		var matchPat past.Expression
		var body []past.Statement
		if isWildcardArm(cb) {
			// The wildcard arm's body lives in its own block behind a
			// NOP/POP_TOP prelude discarding the unmatched subject.
			matchPat = &past.Name{Id: "_"}
			body, err = d.emitBodyFrom(c.Block, leadingDiscards(cb), blockStop(caseStop...), stack.Clone())
		} else {
			var bodyID cfg.BlockID
			matchPat, bodyID = d.matchCaseArm(c.Block, c.Block == pat.Subject, subjEnd)
			d.consumed[c.Block] = true
			skip := leadingDiscards(d.g.Blocks[bodyID])
			body, err = d.emitBodyFrom(bodyID, skip, blockStop(caseStop...), stack.Clone())
		}
		if err != nil {
			return subjStmts, noBlock, err
		}
		cases = append(cases, &past.MatchCase{Pattern: matchPat, Body: body})
	}

	matchStmt := &past.Match{Subject: subject, Cases: cases}
	cont := cfg.BlockID(noBlock)
	if pat.HasExit {
		cont = pat.Exit
	}
	return append(subjStmts, matchStmt), cont, nil
}

// subjectPrefixLen returns how many leading instructions of the subject
// block compute the match subject itself: everything before the first
// DUP_TOP/COPY (the duplication each literal test starts with) or MATCH_*
// classification opcode.
func subjectPrefixLen(b *cfg.BasicBlock) int {
	for i, in := range b.Instructions {
		switch in.Op {
		case opcode.DUP_TOP, opcode.COPY,
			opcode.MATCH_SEQUENCE, opcode.MATCH_MAPPING, opcode.MATCH_CLASS, opcode.MATCH_KEYS:
			return i
		}
	}
	return len(b.Instructions) - 1
}

// matchCaseArm recovers a tested case arm's pattern expression and the
// block its body starts at (the test's fallthrough). A literal test is the
// `DUP_TOP/COPY; LOAD_CONST k; COMPARE_OP; <jump>` run; anything richer
// (class, sequence, mapping patterns) degrades to a wildcard expression
// with the body still fully emitted.
func (d *decompiler) matchCaseArm(id cfg.BlockID, isSubject bool, subjEnd int) (past.Expression, cfg.BlockID) {
	b := d.g.Blocks[id]
	body, _ := b.SuccessorKind(cfg.ConditionalTrue)

	start := 0
	if isSubject {
		start = subjEnd
	}
	insts := b.Instructions[start:]
	if len(insts) >= 3 && (insts[0].Op == opcode.DUP_TOP || insts[0].Op == opcode.COPY) &&
		insts[1].Op == opcode.LOAD_CONST && insts[2].Op == opcode.COMPARE_OP {
		return &past.Constant{Value: d.ConstAt(int(insts[1].Arg))}, body
	}
	return &past.Name{Id: "_"}, body
}

// isWildcardArm mirrors the recognizer's wildcard classification: the arm
// opens by discarding the subject and runs no test of its own.
func isWildcardArm(b *cfg.BasicBlock) bool {
	if len(b.Instructions) == 0 {
		return false
	}
	switch b.Instructions[0].Op {
	case opcode.NOP, opcode.POP_TOP:
		return !blockContains(b, opcode.DUP_TOP, opcode.COPY, opcode.COMPARE_OP)
	default:
		return false
	}
}

// leadingDiscards counts the NOP/POP_TOP prelude a case body opens with
// (the compiler's subject-copy cleanup, not user statements).
func leadingDiscards(b *cfg.BasicBlock) int {
	n := 0
	for _, in := range b.Instructions {
		if in.Op != opcode.NOP && in.Op != opcode.POP_TOP {
			break
		}
		n++
	}
	return n
}

func blockContains(b *cfg.BasicBlock, ops ...opcode.Opcode) bool {
	for _, in := range b.Instructions {
		for _, op := range ops {
			if in.Op == op {
				return true
			}
		}
	}
	return false
}

// emitTernaryInto computes a ternary pattern's value and pushes it onto
// stack: it never produces a statement itself.
func (d *decompiler) emitTernaryInto(tp *pattern.TernaryPattern, stack *simulate.Stack) error {
	if _, err := d.emitBlockPrefix(tp.Cond, stack); err != nil {
		return err
	}
	term := d.g.Blocks[tp.Cond].Terminator()
	ctx := d.ctxAt(tp.Cond, term.Offset, term.Op)
	cond, err := popExpr(stack, ctx)
	if err != nil {
		return err
	}

	thenStack := stack.Clone()
	if _, err := d.emitExprBlock(tp.Then, thenStack); err != nil {
		return err
	}
	thenVal, err := popExpr(thenStack, ctx)
	if err != nil {
		return err
	}

	elseStack := stack.Clone()
	if _, err := d.emitExprBlock(tp.Else, elseStack); err != nil {
		return err
	}
	elseVal, err := popExpr(elseStack, ctx)
	if err != nil {
		return err
	}

	stack.Push(&stackvalue.Expression{Expr: &past.IfExp{Test: cond, Body: thenVal, Orelse: elseVal}})
	return nil
}

// emitExprBlock replays a ternary arm's instructions in full, excluding its
// final instruction only when that instruction is itself a jump (the arm
// that skips over its sibling to reach Merge). The arm ordered last before
// Merge carries no such jump — it falls straight through — so its closing
// instruction is a genuine value producer and must be replayed, unlike the
// terminator emitBlockPrefix always assumes.
func (d *decompiler) emitExprBlock(id cfg.BlockID, stack *simulate.Stack) ([]past.Statement, error) {
	tailDrop := 0
	if b := d.g.Blocks[id]; len(b.Instructions) > 0 && opcode.IsJump(b.Terminator().Op) {
		tailDrop = 1
	}
	return d.emitBlockPrefixRange(id, 0, tailDrop, stack)
}

// emitBoolOpInto computes an and/or short-circuit chain's value and pushes
// it onto stack. The chain's first element runs directly against stack
// (mirroring emitTernaryInto's treatment of its Cond block) rather than a
// clone: it is the one block every path through the chain actually reaches,
// so any value it inherits from an enclosing pattern (a nested `and`/`or`
// chain whose own exit feeds straight into this one, with no operand
// instructions of its own to replay) must be popped for real, not just read
// off a throwaway copy. Every later element is a hypothetical continuation
// depending on the one before it short-circuiting, so those still run
// against a clone.
func (d *decompiler) emitBoolOpInto(bp *pattern.BoolOpPattern, stack *simulate.Stack) error {
	values := make([]past.Expression, 0, len(bp.Chain))
	last := len(bp.Chain) - 1
	for i, b := range bp.Chain {
		skip, tailDrop := 0, 1
		if bp.CopyToBool {
			tailDrop = 3 // COPY, TO_BOOL, conditional jump
			if i > 0 {
				skip = 1 // leading POP_TOP discarding the prior duplicate
			}
		}
		if i == last {
			// The tail block is the final operand's own value computation:
			// it has no short-circuit terminator of its own, so nothing
			// trails the instructions that produce its value.
			tailDrop = 0
		}

		target := stack
		if i > 0 {
			target = stack.Clone()
		}
		if _, err := d.emitBlockPrefixRange(b, skip, tailDrop, target); err != nil {
			return err
		}
		term := d.g.Blocks[b].Terminator()
		ctx := d.ctxAt(b, term.Offset, term.Op)
		v, err := popExpr(target, ctx)
		if err != nil {
			return err
		}
		values = append(values, v)
	}
	op := past.Or
	if bp.IsAnd {
		op = past.And
	}
	stack.Push(&stackvalue.Expression{Expr: &past.BoolOp{Op: op, Values: values}})
	return nil
}
