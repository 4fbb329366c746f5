// Package cfg builds a Control-Flow Graph out of decoded instructions,
// splitting them into basic blocks and labelling edges. The builder starts
// from already-resolved jump targets and reconstructs the block boundaries
// and edges they imply.
package cfg

import "github.com/dr8co/unpyc/internal/bytecode"

// BlockID identifies a basic block within a Graph. Block 0 is always the
// unique entry block.
type BlockID int

// EdgeKind classifies a CFG edge.
type EdgeKind int

const (
	// Normal is an unconditional fallthrough or jump edge.
	Normal EdgeKind = iota

	// ConditionalTrue is taken when a conditional terminator's popped value is truthy.
	// The one exception is the OR_POP family (JUMP_IF_TRUE_OR_POP and
	// JUMP_IF_FALSE_OR_POP): its jump edge carries this kind whichever
	// polarity it tests, and its fallthrough edge is Normal.
	ConditionalTrue

	// ConditionalFalse is taken when a conditional terminator's popped value is falsy.
	ConditionalFalse

	// LoopBack targets a block that dominates the edge's source.
	LoopBack

	// Exception edges run to a handler block per the exception table.
	Exception
)

// Edge is one outgoing edge from a block.
type Edge struct {
	Target BlockID
	Kind   EdgeKind
}

// BasicBlock is a maximal straight-line run of instructions with a single
// entry and a single terminator, per the GLOSSARY.
type BasicBlock struct {
	ID                 BlockID
	StartOffset        int
	EndOffset          int // exclusive
	Instructions       []bytecode.Instruction
	Predecessors       []BlockID
	Successors         []Edge
	IsLoopHeader       bool
	IsExceptionHandler bool
}

// Terminator returns the block's last instruction. Callers must not call
// this on an empty block (only the synthetic entry block may be empty, and
// it has no terminator to inspect).
func (b *BasicBlock) Terminator() bytecode.Instruction {
	return b.Instructions[len(b.Instructions)-1]
}

// Contains reports whether offset falls within this block's instruction range.
func (b *BasicBlock) Contains(offset int) bool {
	return offset >= b.StartOffset && offset < b.EndOffset
}

// SuccessorKind returns the first successor edge of the given kind, if any.
func (b *BasicBlock) SuccessorKind(kind EdgeKind) (BlockID, bool) {
	for _, e := range b.Successors {
		if e.Kind == kind {
			return e.Target, true
		}
	}
	return 0, false
}
