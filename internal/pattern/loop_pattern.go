package pattern

import (
	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/cfa/dom"
	"github.com/dr8co/unpyc/internal/opcode"
)

// detectWhile matches a while loop: a loop header with a conditional
// terminator whose true successor stays in the loop body and
// whose false successor exits it.
func (r *Recognizer) detectWhile(b *cfg.BasicBlock, opts Options) (*WhilePattern, bool) {
	if !b.IsLoopHeader && !opts.InLoopContext {
		return nil, false
	}
	thenID, hasTrue := b.SuccessorKind(cfg.ConditionalTrue)
	elseID, hasFalse := b.SuccessorKind(cfg.ConditionalFalse)
	if !hasTrue || !hasFalse {
		return nil, false
	}

	body := r.loopBody(b.ID)
	inBody := make(map[cfg.BlockID]bool, len(body))
	for _, id := range body {
		inBody[id] = true
	}

	// The loop body must actually contain the true branch; a guard that
	// only reaches the exit from both arms isn't a real while loop.
	if !inBody[thenID] {
		return nil, false
	}
	return &WhilePattern{Header: b.ID, Body: thenID, Exit: elseID}, true
}

func (r *Recognizer) loopBody(header cfg.BlockID) []cfg.BlockID {
	if cached, ok := r.m.loopBodies[header]; ok {
		return cached
	}
	bs := dom.LoopBody(r.g, r.domTree, header)
	var out []cfg.BlockID
	for i, blk := range r.g.Blocks {
		if bs.Test(uint(i)) {
			out = append(out, blk.ID)
		}
	}
	r.m.loopBodies[header] = out
	return out
}

// detectFor matches a for loop: the terminator is FOR_ITER/FOR_LOOP/SEND. The setup block is found by walking predecessors
// (ignoring back-edges) until a GET_ITER is found.
func (r *Recognizer) detectFor(b *cfg.BasicBlock) (*ForPattern, bool) {
	term := terminatorOpcode(b)
	if term != opcode.FOR_ITER && term != opcode.FOR_LOOP && term != opcode.SEND {
		return nil, false
	}
	bodyID, hasBody := b.SuccessorKind(cfg.Normal)
	exitID, hasExit := b.SuccessorKind(cfg.ConditionalFalse)
	if !hasBody || !hasExit {
		return nil, false
	}

	setup := r.findIterSetup(b.ID)

	p := &ForPattern{Setup: setup, Header: b.ID, Body: bodyID, Exit: exitID}
	if breakTarget, ok := r.findLoopElse(b.ID, bodyID, exitID); ok {
		// Breaks bypass the exhaustion continuation, so that continuation is
		// the else clause and the loop's real exit is where the breaks land.
		p.HasElse = true
		p.Else = exitID
		p.Exit = breakTarget
	}
	return p, true
}

func (r *Recognizer) findIterSetup(header cfg.BlockID) cfg.BlockID {
	visited := map[cfg.BlockID]bool{header: true}
	stack := append([]cfg.BlockID{}, r.g.Blocks[header].Predecessors...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		b := r.g.Blocks[cur]
		if containsOp(b, opcode.GET_ITER) {
			return cur
		}
		for _, p := range b.Predecessors {
			if int(p) < int(header) { // skip back-edges from inside the loop
				stack = append(stack, p)
			}
		}
	}
	return header
}

// findLoopElse collects break targets inside the body that differ from
// the natural exit. A single distinct target reachable only from inside the body (never taken on normal exhaustion)
// means the natural exit runs an else clause the breaks jump past.
func (r *Recognizer) findLoopElse(header, body, naturalExit cfg.BlockID) (cfg.BlockID, bool) {
	bs := dom.LoopBody(r.g, r.domTree, header)
	var breakTarget cfg.BlockID
	found := false
	for i, blk := range r.g.Blocks {
		if !bs.Test(uint(i)) {
			continue
		}
		for _, e := range blk.Successors {
			if e.Kind != cfg.Normal && e.Kind != cfg.ConditionalTrue && e.Kind != cfg.ConditionalFalse {
				continue
			}
			if bs.Test(uint(e.Target)) || e.Target == naturalExit {
				continue
			}
			if found && e.Target != breakTarget {
				return 0, false // multiple distinct break targets: bail out
			}
			breakTarget, found = e.Target, true
		}
	}
	if !found {
		return 0, false
	}
	return breakTarget, true
}
