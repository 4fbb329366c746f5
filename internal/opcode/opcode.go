// Package opcode canonicalizes per-version Python bytecode opcodes into a
// single version-independent enum, and answers has-arg / cache-entry-count /
// jump-family questions about them.
//
// Every Python release renumbers, adds, and retires opcodes; CPython ships a
// new opcode.py with nearly every minor version. This package concentrates
// that churn in one place: a single canonical Opcode enum, and one
// per-version table translating raw bytes to it. Nothing outside this package and internal/bytecode should need to
// know which Python release is in play to decide what an opcode means.
package opcode

import "github.com/dr8co/unpyc/internal/pyversion"

// Opcode is the canonical, version-independent instruction identifier used
// throughout this module once bytes have been decoded.
type Opcode int

// Canonical opcodes. Numeric order here carries no meaning: it is not a
// byte encoding, just enum identity.
const (
	Invalid Opcode = iota

	// Stack / misc
	NOP
	POP_TOP
	DUP_TOP
	COPY
	SWAP
	ROT_TWO
	ROT_THREE
	EXTENDED_ARG

	// Loads
	LOAD_CONST
	LOAD_NAME
	LOAD_FAST
	LOAD_GLOBAL
	LOAD_DEREF
	LOAD_CLOSURE
	LOAD_BUILD_CLASS
	LOAD_METHOD
	LOAD_SPECIAL
	LOAD_ATTR
	LOAD_SUPER_ATTR

	// Stores / deletes
	STORE_NAME
	STORE_FAST
	STORE_GLOBAL
	STORE_DEREF
	STORE_ATTR
	STORE_SUBSCR
	STORE_SLICE
	DELETE_NAME
	DELETE_FAST
	DELETE_GLOBAL
	DELETE_DEREF
	DELETE_ATTR
	DELETE_SUBSCR

	// Unpacking
	UNPACK_SEQUENCE
	UNPACK_EX

	// Building collections
	BUILD_TUPLE
	BUILD_LIST
	BUILD_SET
	BUILD_MAP
	BUILD_SLICE
	BUILD_STRING
	LIST_APPEND
	SET_ADD
	MAP_ADD
	LIST_EXTEND
	LIST_TO_TUPLE

	// Operators
	UNARY_POSITIVE
	UNARY_NEGATIVE
	UNARY_NOT
	UNARY_INVERT
	BINARY_OP
	BINARY_ADD
	BINARY_SUBTRACT
	BINARY_MULTIPLY
	BINARY_SUBSCR
	COMPARE_OP
	IS_OP
	CONTAINS_OP

	// Control flow
	JUMP_FORWARD
	JUMP_ABSOLUTE
	JUMP_BACKWARD
	POP_JUMP_IF_TRUE
	POP_JUMP_IF_FALSE
	POP_JUMP_FORWARD_IF_TRUE
	POP_JUMP_FORWARD_IF_FALSE
	POP_JUMP_BACKWARD_IF_TRUE
	POP_JUMP_BACKWARD_IF_FALSE
	JUMP_IF_TRUE_OR_POP
	JUMP_IF_FALSE_OR_POP
	TO_BOOL
	GET_ITER
	FOR_ITER
	FOR_LOOP
	SEND
	END_FOR

	// Functions / calls
	MAKE_FUNCTION
	CALL
	CALL_FUNCTION
	CALL_FUNCTION_KW
	CALL_FUNCTION_EX
	CALL_METHOD
	PRECALL
	KW_NAMES
	RETURN_VALUE
	RETURN_CONST
	YIELD_VALUE
	YIELD_FROM
	GET_AWAITABLE
	GET_AITER
	GET_ANEXT

	// Globals / blocks / exceptions
	SETUP_LOOP
	SETUP_EXCEPT
	SETUP_FINALLY
	SETUP_WITH
	SETUP_ANNOTATIONS
	POP_BLOCK
	POP_EXCEPT
	BEFORE_WITH
	BEFORE_ASYNC_WITH
	WITH_EXCEPT_START
	PUSH_EXC_INFO
	CHECK_EXC_MATCH
	CHECK_EG_MATCH
	RERAISE
	RAISE_VARARGS

	// Imports
	IMPORT_NAME
	IMPORT_FROM
	IMPORT_STAR

	// Pattern matching (3.10+)
	MATCH_SEQUENCE
	MATCH_MAPPING
	MATCH_CLASS
	MATCH_KEYS

	// Misc values
	LOAD_TRUE
	LOAD_FALSE
	LOAD_NULL

	maxOpcode
)

// JumpFamily classifies how a jump instruction's target relates to control
// flow.
type JumpFamily int

const (
	// NotAJump marks opcodes that never transfer control directly.
	NotAJump JumpFamily = iota

	// Unconditional is an always-taken jump (JUMP_FORWARD/ABSOLUTE/BACKWARD).
	Unconditional

	// IfTrue jumps to its target when the popped value is truthy.
	IfTrue

	// IfFalse jumps to its target when the popped value is falsy.
	IfFalse

	// IterFamily is FOR_ITER/FOR_LOOP/SEND: normal falls to the body,
	// conditional_false exits on exhaustion.
	IterFamily

	// OrPop is JUMP_IF_TRUE_OR_POP/JUMP_IF_FALSE_OR_POP: conditionally jumps
	// without popping, otherwise pops and falls through.
	OrPop
)

// def describes one canonical opcode: its display name, whether it carries
// an argument, and its jump classification. Operand *width* in bytes is a
// decode-time concern (internal/bytecode), since it can vary by version even
// for a fixed canonical opcode (pre-3.6 vs 3.6+ encoding).
type def struct {
	name      string
	hasArg    bool
	jumpKind  JumpFamily
}

var defs = map[Opcode]def{
	Invalid:      {"INVALID", false, NotAJump},
	NOP:          {"NOP", false, NotAJump},
	POP_TOP:      {"POP_TOP", false, NotAJump},
	DUP_TOP:      {"DUP_TOP", false, NotAJump},
	COPY:         {"COPY", true, NotAJump},
	SWAP:         {"SWAP", true, NotAJump},
	ROT_TWO:      {"ROT_TWO", false, NotAJump},
	ROT_THREE:    {"ROT_THREE", false, NotAJump},
	EXTENDED_ARG: {"EXTENDED_ARG", true, NotAJump},

	LOAD_CONST:        {"LOAD_CONST", true, NotAJump},
	LOAD_NAME:         {"LOAD_NAME", true, NotAJump},
	LOAD_FAST:         {"LOAD_FAST", true, NotAJump},
	LOAD_GLOBAL:       {"LOAD_GLOBAL", true, NotAJump},
	LOAD_DEREF:        {"LOAD_DEREF", true, NotAJump},
	LOAD_CLOSURE:      {"LOAD_CLOSURE", true, NotAJump},
	LOAD_BUILD_CLASS:  {"LOAD_BUILD_CLASS", false, NotAJump},
	LOAD_METHOD:       {"LOAD_METHOD", true, NotAJump},
	LOAD_SPECIAL:      {"LOAD_SPECIAL", true, NotAJump},
	LOAD_ATTR:         {"LOAD_ATTR", true, NotAJump},
	LOAD_SUPER_ATTR:   {"LOAD_SUPER_ATTR", true, NotAJump},

	STORE_NAME:     {"STORE_NAME", true, NotAJump},
	STORE_FAST:     {"STORE_FAST", true, NotAJump},
	STORE_GLOBAL:   {"STORE_GLOBAL", true, NotAJump},
	STORE_DEREF:    {"STORE_DEREF", true, NotAJump},
	STORE_ATTR:     {"STORE_ATTR", true, NotAJump},
	STORE_SUBSCR:   {"STORE_SUBSCR", false, NotAJump},
	STORE_SLICE:    {"STORE_SLICE", false, NotAJump},
	DELETE_NAME:    {"DELETE_NAME", true, NotAJump},
	DELETE_FAST:    {"DELETE_FAST", true, NotAJump},
	DELETE_GLOBAL:  {"DELETE_GLOBAL", true, NotAJump},
	DELETE_DEREF:   {"DELETE_DEREF", true, NotAJump},
	DELETE_ATTR:    {"DELETE_ATTR", true, NotAJump},
	DELETE_SUBSCR:  {"DELETE_SUBSCR", false, NotAJump},

	UNPACK_SEQUENCE: {"UNPACK_SEQUENCE", true, NotAJump},
	UNPACK_EX:       {"UNPACK_EX", true, NotAJump},

	BUILD_TUPLE:   {"BUILD_TUPLE", true, NotAJump},
	BUILD_LIST:    {"BUILD_LIST", true, NotAJump},
	BUILD_SET:     {"BUILD_SET", true, NotAJump},
	BUILD_MAP:     {"BUILD_MAP", true, NotAJump},
	BUILD_SLICE:   {"BUILD_SLICE", true, NotAJump},
	BUILD_STRING:  {"BUILD_STRING", true, NotAJump},
	LIST_APPEND:   {"LIST_APPEND", true, NotAJump},
	SET_ADD:       {"SET_ADD", true, NotAJump},
	MAP_ADD:       {"MAP_ADD", true, NotAJump},
	LIST_EXTEND:   {"LIST_EXTEND", true, NotAJump},
	LIST_TO_TUPLE: {"LIST_TO_TUPLE", false, NotAJump},

	UNARY_POSITIVE:  {"UNARY_POSITIVE", false, NotAJump},
	UNARY_NEGATIVE:  {"UNARY_NEGATIVE", false, NotAJump},
	UNARY_NOT:       {"UNARY_NOT", false, NotAJump},
	UNARY_INVERT:    {"UNARY_INVERT", false, NotAJump},
	BINARY_OP:       {"BINARY_OP", true, NotAJump},
	BINARY_ADD:      {"BINARY_ADD", false, NotAJump},
	BINARY_SUBTRACT: {"BINARY_SUBTRACT", false, NotAJump},
	BINARY_MULTIPLY: {"BINARY_MULTIPLY", false, NotAJump},
	BINARY_SUBSCR:   {"BINARY_SUBSCR", false, NotAJump},
	COMPARE_OP:      {"COMPARE_OP", true, NotAJump},
	IS_OP:           {"IS_OP", true, NotAJump},
	CONTAINS_OP:     {"CONTAINS_OP", true, NotAJump},

	JUMP_FORWARD:               {"JUMP_FORWARD", true, Unconditional},
	JUMP_ABSOLUTE:              {"JUMP_ABSOLUTE", true, Unconditional},
	JUMP_BACKWARD:              {"JUMP_BACKWARD", true, Unconditional},
	POP_JUMP_IF_TRUE:           {"POP_JUMP_IF_TRUE", true, IfTrue},
	POP_JUMP_IF_FALSE:          {"POP_JUMP_IF_FALSE", true, IfFalse},
	POP_JUMP_FORWARD_IF_TRUE:   {"POP_JUMP_FORWARD_IF_TRUE", true, IfTrue},
	POP_JUMP_FORWARD_IF_FALSE:  {"POP_JUMP_FORWARD_IF_FALSE", true, IfFalse},
	POP_JUMP_BACKWARD_IF_TRUE:  {"POP_JUMP_BACKWARD_IF_TRUE", true, IfTrue},
	POP_JUMP_BACKWARD_IF_FALSE: {"POP_JUMP_BACKWARD_IF_FALSE", true, IfFalse},
	JUMP_IF_TRUE_OR_POP:        {"JUMP_IF_TRUE_OR_POP", true, OrPop},
	JUMP_IF_FALSE_OR_POP:       {"JUMP_IF_FALSE_OR_POP", true, OrPop},
	TO_BOOL:                    {"TO_BOOL", false, NotAJump},
	GET_ITER:                   {"GET_ITER", false, NotAJump},
	FOR_ITER:                   {"FOR_ITER", true, IterFamily},
	FOR_LOOP:                   {"FOR_LOOP", true, IterFamily},
	SEND:                       {"SEND", true, IterFamily},
	END_FOR:                    {"END_FOR", false, NotAJump},

	MAKE_FUNCTION:    {"MAKE_FUNCTION", true, NotAJump},
	CALL:             {"CALL", true, NotAJump},
	CALL_FUNCTION:    {"CALL_FUNCTION", true, NotAJump},
	CALL_FUNCTION_KW: {"CALL_FUNCTION_KW", true, NotAJump},
	CALL_FUNCTION_EX: {"CALL_FUNCTION_EX", true, NotAJump},
	CALL_METHOD:      {"CALL_METHOD", true, NotAJump},
	PRECALL:          {"PRECALL", true, NotAJump},
	KW_NAMES:         {"KW_NAMES", true, NotAJump},
	RETURN_VALUE:     {"RETURN_VALUE", false, NotAJump},
	RETURN_CONST:     {"RETURN_CONST", true, NotAJump},
	YIELD_VALUE:      {"YIELD_VALUE", false, NotAJump},
	YIELD_FROM:       {"YIELD_FROM", false, NotAJump},
	GET_AWAITABLE:    {"GET_AWAITABLE", false, NotAJump},
	GET_AITER:        {"GET_AITER", false, NotAJump},
	GET_ANEXT:        {"GET_ANEXT", false, NotAJump},

	SETUP_LOOP:        {"SETUP_LOOP", true, NotAJump},
	SETUP_EXCEPT:      {"SETUP_EXCEPT", true, NotAJump},
	SETUP_FINALLY:     {"SETUP_FINALLY", true, NotAJump},
	SETUP_WITH:        {"SETUP_WITH", true, NotAJump},
	SETUP_ANNOTATIONS: {"SETUP_ANNOTATIONS", false, NotAJump},
	POP_BLOCK:         {"POP_BLOCK", false, NotAJump},
	POP_EXCEPT:        {"POP_EXCEPT", false, NotAJump},
	BEFORE_WITH:       {"BEFORE_WITH", false, NotAJump},
	BEFORE_ASYNC_WITH: {"BEFORE_ASYNC_WITH", false, NotAJump},
	WITH_EXCEPT_START: {"WITH_EXCEPT_START", false, NotAJump},
	PUSH_EXC_INFO:     {"PUSH_EXC_INFO", false, NotAJump},
	CHECK_EXC_MATCH:   {"CHECK_EXC_MATCH", false, NotAJump},
	CHECK_EG_MATCH:    {"CHECK_EG_MATCH", false, NotAJump},
	RERAISE:           {"RERAISE", true, NotAJump},
	RAISE_VARARGS:     {"RAISE_VARARGS", true, NotAJump},

	IMPORT_NAME: {"IMPORT_NAME", true, NotAJump},
	IMPORT_FROM: {"IMPORT_FROM", true, NotAJump},
	IMPORT_STAR: {"IMPORT_STAR", false, NotAJump},

	MATCH_SEQUENCE: {"MATCH_SEQUENCE", false, NotAJump},
	MATCH_MAPPING:  {"MATCH_MAPPING", false, NotAJump},
	MATCH_CLASS:    {"MATCH_CLASS", true, NotAJump},
	MATCH_KEYS:     {"MATCH_KEYS", false, NotAJump},

	LOAD_TRUE:  {"LOAD_TRUE", false, NotAJump},
	LOAD_FALSE: {"LOAD_FALSE", false, NotAJump},
	LOAD_NULL:  {"LOAD_NULL", false, NotAJump},
}

// Name returns the canonical opcode's display name, or "UNKNOWN" if op is
// out of range.
func Name(op Opcode) string {
	if d, ok := defs[op]; ok {
		return d.name
	}
	return "UNKNOWN"
}

// HasArg reports whether op carries a decoded argument. This is
// version-independent in our canonical form: a given canonical opcode
// either always has an argument or never does, across every Python release
// that defines it.
func HasArg(op Opcode) bool {
	return defs[op].hasArg
}

// JumpKind classifies how op affects control flow.
func JumpKind(op Opcode) JumpFamily {
	return defs[op].jumpKind
}

// IsJump reports whether op can transfer control to a decoded jump target.
func IsJump(op Opcode) bool {
	return JumpKind(op) != NotAJump
}

// CacheEntries returns the number of inline 2-byte cache words that follow
// op's base instruction in the given version. Only a
// handful of 3.11+ opcodes carry caches; everything else is zero.
func CacheEntries(op Opcode, v pyversion.Version) int {
	if v.LT(pyversion.V311) {
		return 0
	}
	switch op {
	case LOAD_GLOBAL, LOAD_ATTR, LOAD_METHOD, LOAD_SUPER_ATTR:
		return 4
	case BINARY_OP, COMPARE_OP, BINARY_SUBSCR:
		return 1
	case CALL, PRECALL:
		return 2
	case TO_BOOL:
		return 3
	case FOR_ITER, SEND:
		return 1
	default:
		return 0
	}
}
