package cfg

import (
	"sort"

	"github.com/dr8co/unpyc/internal/bytecode"
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/pyversion"
)

// ExceptionEntry is one row of a 3.11+ exception table: instructions in
// [Start, End) are protected by a handler starting at Target.
type ExceptionEntry struct {
	Start, End int
	Target     int
	Depth      int
	Lasti      bool
}

// Graph is a built control-flow graph over one code object.
type Graph struct {
	Blocks        []*BasicBlock
	Entry         BlockID
	Version       pyversion.Version
	blockByOffset map[int]BlockID
	sortedOffsets []int
}

// BlockAt returns the block whose StartOffset equals offset, if any.
func (g *Graph) BlockAt(offset int) (BlockID, bool) {
	id, ok := g.blockByOffset[offset]
	return id, ok
}

// BlockContaining returns the block whose instruction range contains offset.
// Uses binary search over sorted block-start offsets.
func (g *Graph) BlockContaining(offset int) (*BasicBlock, bool) {
	offs := g.sortedOffsets
	i := sort.Search(len(offs), func(i int) bool { return offs[i] > offset })
	if i == 0 {
		return nil, false
	}
	id := g.blockByOffset[offs[i-1]]
	b := g.Blocks[id]
	if b.Contains(offset) {
		return b, true
	}
	return nil, false
}

// Build constructs a CFG from raw instruction bytes with no exception table.
func Build(code []byte, v pyversion.Version) (*Graph, error) {
	return build(code, v, nil)
}

// BuildWithExceptions constructs a CFG honoring the 3.11+ exception table.
func BuildWithExceptions(code []byte, exc []ExceptionEntry, v pyversion.Version) (*Graph, error) {
	return build(code, v, exc)
}

func build(code []byte, v pyversion.Version, exc []ExceptionEntry) (*Graph, error) {
	insts, err := bytecode.Validate(code, v)
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return &Graph{Version: v, blockByOffset: map[int]BlockID{}}, nil
	}

	byOffset := make(map[int]int, len(insts)) // offset -> index into insts
	for i, in := range insts {
		byOffset[in.Offset] = i
	}

	leaders := map[int]bool{insts[0].Offset: true}
	for i, in := range insts {
		if in.IsJump() {
			if target, err := bytecode.JumpTarget(in, v); err == nil {
				leaders[target] = true
			}
			if i+1 < len(insts) {
				leaders[insts[i+1].Offset] = true
			}
		} else if isTerminator(in.Op) {
			if i+1 < len(insts) {
				leaders[insts[i+1].Offset] = true
			}
		}
	}
	for _, e := range exc {
		leaders[e.Target] = true
	}

	var leaderOffsets []int
	for off := range leaders {
		leaderOffsets = append(leaderOffsets, off)
	}
	sort.Ints(leaderOffsets)

	g := &Graph{
		Version:       v,
		blockByOffset: make(map[int]BlockID, len(leaderOffsets)),
	}

	for bi, startOff := range leaderOffsets {
		endOff := len(code)
		if bi+1 < len(leaderOffsets) {
			endOff = leaderOffsets[bi+1]
		}
		startIdx := byOffset[startOff]
		var blockInsts []bytecode.Instruction
		idx := startIdx
		for idx < len(insts) && insts[idx].Offset < endOff {
			blockInsts = append(blockInsts, insts[idx])
			idx++
		}
		id := BlockID(bi)
		g.Blocks = append(g.Blocks, &BasicBlock{
			ID:           id,
			StartOffset:  startOff,
			EndOffset:    endOff,
			Instructions: blockInsts,
		})
		g.blockByOffset[startOff] = id
		g.sortedOffsets = append(g.sortedOffsets, startOff)
	}

	for _, b := range g.Blocks {
		if len(b.Instructions) == 0 {
			continue
		}
		wireSuccessors(g, b, v)
	}
	for _, b := range g.Blocks {
		for _, e := range b.Successors {
			target := g.Blocks[e.Target]
			target.Predecessors = append(target.Predecessors, b.ID)
		}
	}

	if len(exc) > 0 {
		wireExceptionEdges(g, exc)
	}

	markBackEdges(g)

	return g, nil
}

func isTerminator(op opcode.Opcode) bool {
	switch op {
	case opcode.RETURN_VALUE, opcode.RETURN_CONST, opcode.RAISE_VARARGS, opcode.RERAISE:
		return true
	default:
		return false
	}
}

func wireSuccessors(g *Graph, b *BasicBlock, v pyversion.Version) {
	term := b.Terminator()

	if isTerminator(term.Op) {
		return // no successors
	}

	if term.IsJump() {
		target, err := bytecode.JumpTarget(term, v)
		if err != nil {
			return
		}
		targetID, ok := g.blockByOffset[target]
		if !ok {
			return
		}

		switch opcode.JumpKind(term.Op) {
		case opcode.Unconditional:
			b.Successors = append(b.Successors, Edge{Target: targetID, Kind: Normal})
			return

		case opcode.IfTrue:
			fallID, ok := g.blockByOffset[term.NextOffset()]
			if ok {
				b.Successors = append(b.Successors, Edge{Target: fallID, Kind: ConditionalFalse})
			}
			b.Successors = append(b.Successors, Edge{Target: targetID, Kind: ConditionalTrue})
			return

		case opcode.IfFalse:
			fallID, ok := g.blockByOffset[term.NextOffset()]
			if ok {
				b.Successors = append(b.Successors, Edge{Target: fallID, Kind: ConditionalTrue})
			}
			b.Successors = append(b.Successors, Edge{Target: targetID, Kind: ConditionalFalse})
			return

		case opcode.OrPop:
			fallID, ok := g.blockByOffset[term.NextOffset()]
			if ok {
				b.Successors = append(b.Successors, Edge{Target: fallID, Kind: Normal})
			}
			b.Successors = append(b.Successors, Edge{Target: targetID, Kind: ConditionalTrue})
			return

		case opcode.IterFamily:
			fallID, ok := g.blockByOffset[term.NextOffset()]
			if ok {
				b.Successors = append(b.Successors, Edge{Target: fallID, Kind: Normal})
			}
			b.Successors = append(b.Successors, Edge{Target: targetID, Kind: ConditionalFalse})
			return
		}
	}

	// Fallthrough-only terminator.
	if fallID, ok := g.blockByOffset[term.NextOffset()]; ok {
		b.Successors = append(b.Successors, Edge{Target: fallID, Kind: Normal})
	}
}

func wireExceptionEdges(g *Graph, exc []ExceptionEntry) {
	for _, e := range exc {
		handlerID, ok := g.blockByOffset[e.Target]
		if !ok {
			continue
		}
		g.Blocks[handlerID].IsExceptionHandler = true
		for _, b := range g.Blocks {
			if len(b.Instructions) == 0 {
				continue
			}
			if b.StartOffset < e.End && b.EndOffset > e.Start {
				b.Successors = append(b.Successors, Edge{Target: handlerID, Kind: Exception})
				g.Blocks[handlerID].Predecessors = append(g.Blocks[handlerID].Predecessors, b.ID)
			}
		}
	}
}

// markBackEdges relabels backward unconditional edges as LoopBack and marks
// their targets as loop headers. Conditional edges keep their
// ConditionalTrue/ConditionalFalse kind even when the target is backward
// (the 3.11+ POP_JUMP_BACKWARD_IF_* family), so a conditional terminator
// always exposes both branch edges.
func markBackEdges(g *Graph) {
	for _, b := range g.Blocks {
		for i, e := range b.Successors {
			if e.Kind != Normal {
				continue
			}
			target := g.Blocks[e.Target]
			if target.StartOffset <= b.StartOffset {
				b.Successors[i].Kind = LoopBack
				target.IsLoopHeader = true
			}
		}
	}
}
