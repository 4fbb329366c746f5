// Package decomperr defines the error taxonomy shared by the simulator,
// pattern recognizer, and driver, plus the error-context record every
// fatal error carries: which code object, block, offset, and opcode it
// happened at.
package decomperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a decompilation error.
type Kind int

const (
	// InvalidBytecode: unknown opcode, truncated instruction/cache, dangling
	// EXTENDED_ARG, out-of-range jump. Fatal for the affected code object.
	InvalidBytecode Kind = iota

	// StackUnderflow: the simulator popped more operands than were pushed.
	// Recoverable: the driver falls back to a lower-fidelity statement.
	StackUnderflow

	// NotAnExpression: the simulator needed an Expression value but found a
	// FunctionObject/ClassObject/ImportModule/SavedLocal/Unknown instead.
	// Recoverable.
	NotAnExpression

	// InvalidComprehension: a comprehension shape didn't fully match.
	// Recoverable: emit the raw loop instead.
	InvalidComprehension

	// InvalidBlock: pattern reconstruction could not piece together a
	// nested block. Recoverable: fall back to linear emission.
	InvalidBlock

	// UnexpectedEmptyWorklist: an internal invariant was violated (a
	// traversal worklist emptied before visiting a block it must visit).
	// Fatal.
	UnexpectedEmptyWorklist
)

func (k Kind) String() string {
	switch k {
	case InvalidBytecode:
		return "InvalidBytecode"
	case StackUnderflow:
		return "StackUnderflow"
	case NotAnExpression:
		return "NotAnExpression"
	case InvalidComprehension:
		return "InvalidComprehension"
	case InvalidBlock:
		return "InvalidBlock"
	case UnexpectedEmptyWorklist:
		return "UnexpectedEmptyWorklist"
	default:
		return "Unknown"
	}
}

// Fatal reports whether errors of this kind must abort the enclosing
// code object's decompilation rather than degrade and continue.
func (k Kind) Fatal() bool {
	return k == InvalidBytecode || k == UnexpectedEmptyWorklist
}

// Context captures where an error was first raised: which code object,
// block, instruction offset, and opcode the failing frame was looking at.
type Context struct {
	CodeName string
	BlockID  int
	Offset   int
	Opcode   string
}

func (c Context) String() string {
	return fmt.Sprintf("%s: block %d, offset %d, opcode %s", c.CodeName, c.BlockID, c.Offset, c.Opcode)
}

// Error is a decompilation error carrying its Kind and the Context it was
// first raised in. Nested decompilations propagate the original Context
// unchanged as the error is wrapped further up the call stack.
type Error struct {
	Kind    Kind
	Context Context
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Context, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with context, wrapping msg as the
// underlying cause via github.com/pkg/errors so callers retain a stack
// trace from the point of first failure.
func New(kind Kind, ctx Context, msg string, args ...any) *Error {
	return &Error{Kind: kind, Context: ctx, cause: errors.Errorf(msg, args...)}
}

// Wrap attaches kind and ctx to an existing error, preserving it as the
// cause.
func Wrap(kind Kind, ctx Context, cause error) *Error {
	return &Error{Kind: kind, Context: ctx, cause: errors.WithStack(cause)}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}
