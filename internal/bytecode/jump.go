package bytecode

import (
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/pyversion"
)

// JumpTarget computes the absolute byte offset a jump instruction targets:
//
//   - pre-3.10: Arg is a byte offset, used directly (absolute) or added to
//     the next instruction's offset (forward-relative, JUMP_FORWARD family).
//   - 3.10: Arg is a word offset (x2) with the same absolute/relative split.
//   - 3.11+: POP_JUMP_IF_* becomes relative to the next instruction; dedicated
//     *_FORWARD_IF_*/*_BACKWARD_IF_* opcodes use signed direction (forward
//     adds, backward subtracts).
//
// This is the one place jump-target arithmetic lives; everything else asks
// here instead of re-deriving version rules.
func JumpTarget(in Instruction, v pyversion.Version) (int, error) {
	scale := 1
	if v.JumpArgsAreWords() {
		scale = 2
	}
	argBytes := int(in.Arg) * scale
	next := in.NextOffset()

	switch opcode.JumpKind(in.Op) {
	case opcode.Unconditional:
		switch in.Op {
		case opcode.JUMP_FORWARD:
			return next + argBytes, nil
		case opcode.JUMP_BACKWARD:
			return next - argBytes, nil
		default: // JUMP_ABSOLUTE (legacy)
			return argBytes, nil
		}

	case opcode.IfTrue, opcode.IfFalse:
		if !v.RelativeConditionalJumps() {
			return argBytes, nil
		}
		switch in.Op {
		case opcode.POP_JUMP_BACKWARD_IF_TRUE, opcode.POP_JUMP_BACKWARD_IF_FALSE:
			return next - argBytes, nil
		default:
			// POP_JUMP_IF_TRUE/FALSE and the explicit *_FORWARD_IF_* forms.
			return next + argBytes, nil
		}

	case opcode.OrPop:
		// JUMP_IF_TRUE_OR_POP / JUMP_IF_FALSE_OR_POP are always absolute in
		// every version that defines them (they predate the 3.11 relative
		// jump change and were not converted).
		return argBytes, nil

	case opcode.IterFamily:
		// FOR_ITER/FOR_LOOP/SEND always jump forward, relative to the next
		// instruction, to their exhaustion target.
		return next + argBytes, nil

	default:
		return next, nil
	}
}
