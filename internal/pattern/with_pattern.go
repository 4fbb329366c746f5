package pattern

import (
	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/opcode"
)

// detectWith matches a with statement: a block that sets up a context
// manager (BEFORE_WITH/BEFORE_ASYNC_WITH/LOAD_SPECIAL, or legacy
// SETUP_WITH), whose normal successor is the body and whose exception
// successor leads to a WITH_EXCEPT_START cleanup handler.
func (r *Recognizer) detectWith(b *cfg.BasicBlock) (*WithPattern, bool) {
	if !containsOp(b, opcode.BEFORE_WITH, opcode.BEFORE_ASYNC_WITH, opcode.LOAD_SPECIAL, opcode.SETUP_WITH) {
		return nil, false
	}
	bodyID, hasBody := b.SuccessorKind(cfg.Normal)
	if !hasBody {
		return nil, false
	}

	cleanupID, hasCleanup := b.SuccessorKind(cfg.Exception)
	if !hasCleanup {
		return nil, false
	}
	cleanup := r.g.Blocks[cleanupID]
	if !containsOp(cleanup, opcode.WITH_EXCEPT_START) {
		return nil, false
	}

	p := &WithPattern{Setup: b.ID, Body: bodyID, Cleanup: cleanupID}
	if exitID, ok := cleanup.SuccessorKind(cfg.Normal); ok {
		p.Exit = exitID
	}
	return p, true
}
