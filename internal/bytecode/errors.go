package bytecode

import "github.com/pkg/errors"

// Sentinel decode/validation errors. Each names one way a raw instruction
// stream can be malformed; Decode and Validate wrap them with position
// detail.
var (
	ErrUnknownOpcode       = errors.New("unknown opcode")
	ErrTruncatedInstruction = errors.New("truncated instruction")
	ErrTruncatedCache      = errors.New("truncated inline cache")
	ErrDanglingExtendedArg = errors.New("dangling EXTENDED_ARG at end of code")
	ErrJumpOutOfRange      = errors.New("jump target out of range")
)
