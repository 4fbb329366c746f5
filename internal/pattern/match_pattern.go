package pattern

import (
	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/opcode"
)

// detectMatch matches a match statement: a subject block driving
// MATCH_SEQUENCE/MATCH_MAPPING/MATCH_CLASS or a COPY+COMPARE_OP chain.
// Successive conditional_false edges walk through the case blocks until a
// wildcard arm (a NOP/POP_TOP prelude with no test, matching `case _`) or a non-case block ends
// the chain.
func (r *Recognizer) detectMatch(b *cfg.BasicBlock) (*MatchPattern, bool) {
	if !isMatchSubjectBlock(b) {
		return nil, false
	}

	p := &MatchPattern{Subject: b.ID}
	cur := b
	visited := map[cfg.BlockID]bool{}
	for {
		if visited[cur.ID] {
			break
		}
		visited[cur.ID] = true
		p.Cases = append(p.Cases, MatchCaseRecord{Block: cur.ID})

		if isWildcardBlock(cur) {
			// The wildcard arm's body is this block's fallthrough; where the
			// arms converge after it (if they converge at all) is the
			// driver's problem, not a chain-walk one.
			break
		}

		next, ok := cur.SuccessorKind(cfg.ConditionalFalse)
		if !ok {
			if exitID, ok2 := cur.SuccessorKind(cfg.ConditionalTrue); ok2 {
				p.Exit, p.HasExit = exitID, true
			}
			break
		}
		nextBlock := r.g.Blocks[next]
		if !isMatchSubjectBlock(nextBlock) && !isWildcardBlock(nextBlock) {
			p.Exit, p.HasExit = next, true
			break
		}
		cur = nextBlock
	}

	if len(p.Cases) < 1 {
		return nil, false
	}
	return p, true
}

func isMatchSubjectBlock(b *cfg.BasicBlock) bool {
	if containsOp(b, opcode.MATCH_SEQUENCE, opcode.MATCH_MAPPING, opcode.MATCH_CLASS, opcode.MATCH_KEYS) {
		return true
	}
	// A literal-case chain: the subject is duplicated (DUP_TOP on 3.10,
	// COPY on 3.11+) and compared, with a plain conditional jump to the
	// next case. An OR_POP terminator is a boolean/comparison chain, not a
	// match, even though it also duplicates and compares.
	kind := opcode.JumpKind(terminatorOpcode(b))
	if kind != opcode.IfFalse && kind != opcode.IfTrue {
		return false
	}
	hasCopy, hasCompare := false, false
	for _, in := range b.Instructions {
		if in.Op == opcode.COPY || in.Op == opcode.DUP_TOP {
			hasCopy = true
		}
		if in.Op == opcode.COMPARE_OP {
			hasCompare = true
		}
	}
	return hasCopy && hasCompare
}

// isWildcardBlock recognizes the `case _:` arm: it opens by discarding the
// subject (NOP marker and/or POP_TOP) and runs no test of its own.
func isWildcardBlock(b *cfg.BasicBlock) bool {
	if len(b.Instructions) == 0 {
		return false
	}
	switch b.Instructions[0].Op {
	case opcode.NOP, opcode.POP_TOP:
	default:
		return false
	}
	return !containsOp(b, opcode.DUP_TOP, opcode.COPY, opcode.COMPARE_OP,
		opcode.MATCH_SEQUENCE, opcode.MATCH_MAPPING, opcode.MATCH_CLASS, opcode.MATCH_KEYS)
}
