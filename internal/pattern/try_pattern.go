package pattern

import (
	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/opcode"
)

// detectTry matches a try/except/finally construct. Results are memoized
// per try block since the driver probes the same block repeatedly.
func (r *Recognizer) detectTry(b *cfg.BasicBlock) (*TryPattern, bool) {
	if cached, ok := r.m.tryResults[b.ID]; ok {
		if cached == nil {
			return nil, false
		}
		return cached, true
	}

	p, ok := r.computeTry(b)
	if !ok {
		r.m.tryResults[b.ID] = nil
		return nil, false
	}
	r.m.tryResults[b.ID] = p
	return p, true
}

func (r *Recognizer) computeTry(b *cfg.BasicBlock) (*TryPattern, bool) {
	hasExceptionEdge := false
	for _, e := range b.Successors {
		if e.Kind == cfg.Exception {
			hasExceptionEdge = true
			break
		}
	}
	legacySetup := containsOp(b, opcode.SETUP_EXCEPT, opcode.SETUP_FINALLY)
	if !hasExceptionEdge && !legacySetup {
		return nil, false
	}

	var rawHandlers []cfg.BlockID
	for _, e := range b.Successors {
		if e.Kind == cfg.Exception {
			rawHandlers = append(rawHandlers, e.Target)
		}
	}
	if len(rawHandlers) == 0 {
		return nil, false
	}

	p := &TryPattern{Try: b.ID}
	for _, h := range rawHandlers {
		handlerBlock := r.g.Blocks[h]
		if isSyntheticCleanupHandler(b, handlerBlock) {
			continue
		}
		p.Handlers = append(p.Handlers, HandlerRecord{
			Block:  h,
			IsBare: !containsOp(handlerBlock, opcode.CHECK_EXC_MATCH, opcode.COMPARE_OP),
		})
	}
	if len(p.Handlers) == 0 {
		return nil, false
	}

	// A normal exit from the try body that handlers also reach is the
	// statement after the whole construct; one the handlers can never reach is
	// an else clause (the handlers jump past it).
	for _, e := range b.Successors {
		if e.Kind != cfg.Normal {
			continue
		}
		if r.reachableFromAnyHandler(e.Target, p.Handlers) {
			p.Exit, p.HasExit = e.Target, true
		} else {
			p.Else, p.HasElse = e.Target, true
		}
	}
	if p.HasElse && !p.HasExit {
		if n, ok := r.normalSuccessor(p.Else); ok {
			p.Exit, p.HasExit = n, true
		}
	}

	// finally: a common normal successor of the (else or try) exit and
	// every handler.
	if fin, ok := r.findCommonFinally(p); ok {
		p.Finally, p.HasFinal = fin, true
	}

	return p, true
}

// isSyntheticCleanupHandler filters out compiler-generated cleanup
// handlers the recognizer shouldn't surface as user-visible except
// clauses: with-statement cleanup, comprehension cleanup, and `except*`
// scaffolding. Only detection/skipping is implemented — full `except*`
// group reconstruction is not attempted (see DESIGN.md). Generator
// StopIteration propagation (PEP 479) is not
// among these: since 3.7 it is enforced by the frame evaluator itself
// when a generator lets StopIteration escape, not by any handler the
// compiler emits, so there is no bytecode shape here to recognize.
func isSyntheticCleanupHandler(try, b *cfg.BasicBlock) bool {
	if containsOp(b, opcode.WITH_EXCEPT_START) {
		return true
	}
	if containsOp(b, opcode.CHECK_EG_MATCH) {
		return true
	}
	return isComprehensionCleanupHandler(try, b)
}

// isComprehensionCleanupHandler recognizes the handler attached to an
// inline comprehension's implicit iteration: when the loop body contains
// LIST_APPEND/SET_ADD/MAP_ADD (the signature the driver otherwise uses to
// recognize a comprehension), an exception escaping it is handled by closing the partially built
// container and reraising, with no user-visible statement of its own.
func isComprehensionCleanupHandler(try, b *cfg.BasicBlock) bool {
	if !containsOp(try, opcode.LIST_APPEND, opcode.SET_ADD, opcode.MAP_ADD) {
		return false
	}
	if terminatorOpcode(b) != opcode.RERAISE {
		return false
	}
	for _, in := range b.Instructions[:len(b.Instructions)-1] {
		switch in.Op {
		case opcode.POP_TOP, opcode.POP_BLOCK, opcode.POP_EXCEPT, opcode.END_FOR:
			continue
		default:
			return false
		}
	}
	return true
}

func (r *Recognizer) reachableFromAnyHandler(target cfg.BlockID, handlers []HandlerRecord) bool {
	seen := map[cfg.BlockID]bool{}
	var stack []cfg.BlockID
	for _, h := range handlers {
		stack = append(stack, h.Block)
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if cur == target {
			return true
		}
		for _, e := range r.g.Blocks[cur].Successors {
			if e.Kind == cfg.Exception {
				continue
			}
			stack = append(stack, e.Target)
		}
	}
	return false
}

func (r *Recognizer) findCommonFinally(p *TryPattern) (cfg.BlockID, bool) {
	var candidates []cfg.BlockID
	if p.HasElse {
		if n, ok := r.normalSuccessor(p.Else); ok {
			candidates = append(candidates, n)
		}
	} else {
		if n, ok := r.normalSuccessor(p.Try); ok {
			candidates = append(candidates, n)
		}
	}
	for _, h := range p.Handlers {
		if n, ok := r.normalSuccessor(h.Block); ok {
			candidates = append(candidates, n)
		} else {
			return 0, false
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	first := candidates[0]
	for _, c := range candidates[1:] {
		if c != first {
			return 0, false
		}
	}
	return first, true
}

func (r *Recognizer) normalSuccessor(id cfg.BlockID) (cfg.BlockID, bool) {
	b := r.g.Blocks[id]
	for _, e := range b.Successors {
		if e.Kind == cfg.Normal {
			return e.Target, true
		}
	}
	return 0, false
}
