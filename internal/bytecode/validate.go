package bytecode

import (
	"github.com/pkg/errors"

	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/pyversion"
)

// Validate decodes code and additionally checks that every jump
// instruction's target lies within the decoded instruction stream.
// It returns the decoded instructions so callers don't have to decode
// twice.
func Validate(code []byte, v pyversion.Version) ([]Instruction, error) {
	insts, err := Decode(code, v)
	if err != nil {
		return nil, err
	}

	valid := make(map[int]bool, len(insts))
	for _, in := range insts {
		valid[in.Offset] = true
	}
	end := len(code)

	for _, in := range insts {
		if !in.IsJump() {
			continue
		}
		target, err := JumpTarget(in, v)
		if err != nil {
			return nil, err
		}
		if target < 0 || target > end || (target < end && !valid[target]) {
			return nil, errors.Wrapf(ErrJumpOutOfRange, "opcode %s at offset %d targets %d", opcode.Name(in.Op), in.Offset, target)
		}
	}
	return insts, nil
}
