// Package bytecode turns a CodeObject's raw instruction bytes into a
// sequence of decoded Instructions, folding EXTENDED_ARG and resolving
// jump-target arithmetic across the supported Python encodings.
package bytecode

import "github.com/dr8co/unpyc/internal/opcode"

// Instruction is one decoded bytecode unit.
type Instruction struct {
	// Op is the canonical, version-independent opcode.
	Op opcode.Opcode

	// Arg is the fully accumulated argument (EXTENDED_ARG already folded in).
	Arg uint32

	// Offset is this instruction's byte offset in the original code bytes.
	// When EXTENDED_ARG prefixes were folded in, it is the first prefix's
	// offset.
	Offset int

	// Size is this instruction's total byte size, including any folded
	// EXTENDED_ARG prefixes and inline cache words. Offset+Size always
	// equals the next instruction's Offset.
	Size int

	// CacheEntries is the number of inline 2-byte cache words following the
	// base instruction (3.11+ only).
	CacheEntries int
}

// HasArg reports whether this instruction carries a meaningful argument.
func (in Instruction) HasArg() bool { return opcode.HasArg(in.Op) }

// NextOffset is the offset of the instruction immediately following this one.
func (in Instruction) NextOffset() int { return in.Offset + in.Size }

// IsJump reports whether this instruction can transfer control elsewhere.
func (in Instruction) IsJump() bool { return opcode.IsJump(in.Op) }
