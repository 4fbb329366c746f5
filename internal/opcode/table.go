package opcode

import "github.com/dr8co/unpyc/internal/pyversion"

// family selects which per-version byte table applies. Python's opcode
// numbering is not monotonic across releases, but it is stable within the
// handful of eras, so one byte table per era is enough to decode any
// fixture in that era without needing one table per minor version.
type family int

const (
	familyLegacy family = iota // < 3.6: variable-length encoding
	family36                   // 3.6 - 3.9: word-coded, absolute jumps, no cache
	family310                  // 3.10: word-coded, word-scaled jump args
	family311                  // 3.11 - 3.11: relative POP_JUMP_IF_*, exception table, caches
	family312                  // 3.12+: RETURN_CONST, TO_BOOL, inline comprehensions
)

func familyFor(v pyversion.Version) family {
	switch {
	case v.LT(pyversion.V36):
		return familyLegacy
	case v.LT(pyversion.V310):
		return family36
	case v.LT(pyversion.V311):
		return family310
	case v.LT(pyversion.V312):
		return family311
	default:
		return family312
	}
}

// byteTables maps, per family, a raw byte to the canonical Opcode. Byte 0
// is reserved for a padding/invalid slot in every family (mirrors CPython's
// own convention of never using opcode 0 for a real instruction prior to
// 3.11's CACHE, which we don't surface as a decoded instruction at all).
var byteTables = map[family]map[byte]Opcode{
	familyLegacy: legacyTable(),
	family36:     word36Table(),
	family310:    word310Table(),
	family311:    word311Table(),
	family312:    word312Table(),
}

// reverse lookup per family, built once in init.
var opToByteTables = map[family]map[Opcode]byte{}

func init() {
	for fam, tbl := range byteTables {
		rev := make(map[Opcode]byte, len(tbl))
		for b, op := range tbl {
			rev[op] = b
		}
		opToByteTables[fam] = rev
	}
}

// OpcodeOf translates a raw bytecode byte to its canonical Opcode for the
// given version. The second return is false for bytes the version doesn't
// define, which the caller (internal/bytecode) turns into InvalidBytecode.
func OpcodeOf(v pyversion.Version, b byte) (Opcode, bool) {
	tbl := byteTables[familyFor(v)]
	op, ok := tbl[b]
	if !ok || op == Invalid {
		return Invalid, false
	}
	return op, true
}

// ByteOf is the inverse of OpcodeOf, used by tests and by any future
// recompiler; not required by the decompile path itself.
func ByteOf(v pyversion.Version, op Opcode) (byte, bool) {
	b, ok := opToByteTables[familyFor(v)][op]
	return b, ok
}

func legacyTable() map[byte]Opcode {
	return map[byte]Opcode{
		1:  POP_TOP,
		2:  ROT_TWO,
		3:  ROT_THREE,
		4:  DUP_TOP,
		9:  NOP,
		10: UNARY_POSITIVE,
		11: UNARY_NEGATIVE,
		12: UNARY_NOT,
		15: UNARY_INVERT,
		23: BINARY_ADD,
		24: BINARY_SUBTRACT,
		20: BINARY_MULTIPLY,
		26: BINARY_SUBSCR,
		50: GET_ITER,
		60: STORE_SUBSCR,
		61: DELETE_SUBSCR,
		70: PRINT_EXPR_fallback(), // kept distinct from 3.x opcodes; see comment below
		82: IMPORT_STAR,
		87: POP_BLOCK,
		88: END_FINALLY_fallback(),
		90: STORE_NAME,
		91: DELETE_NAME,
		92: UNPACK_SEQUENCE,
		95: STORE_ATTR,
		96: DELETE_ATTR,
		97: STORE_GLOBAL,
		98: DELETE_GLOBAL,
		100: LOAD_CONST,
		101: LOAD_NAME,
		102: BUILD_TUPLE,
		103: BUILD_LIST,
		104: BUILD_MAP,
		105: LOAD_ATTR,
		106: COMPARE_OP,
		108: IMPORT_NAME,
		109: IMPORT_FROM,
		110: JUMP_FORWARD,
		111: JUMP_IF_FALSE_OR_POP,
		112: JUMP_IF_TRUE_OR_POP,
		113: JUMP_ABSOLUTE,
		114: POP_JUMP_IF_FALSE,
		115: POP_JUMP_IF_TRUE,
		116: LOAD_GLOBAL,
		120: SETUP_LOOP,
		121: SETUP_EXCEPT,
		122: SETUP_FINALLY,
		124: LOAD_FAST,
		125: STORE_FAST,
		126: DELETE_FAST,
		130: RAISE_VARARGS,
		131: CALL_FUNCTION,
		132: MAKE_FUNCTION,
		133: BUILD_SLICE,
		135: LOAD_CLOSURE,
		136: LOAD_DEREF,
		137: STORE_DEREF,
		140: CALL_FUNCTION_KW,
		143: EXTENDED_ARG,
		145: LIST_APPEND,
		146: SET_ADD,
		147: MAP_ADD,
		83:  RETURN_VALUE,
		80:  FOR_LOOP,
	}
}

// PRINT_EXPR_fallback and END_FINALLY_fallback stand in for two pre-3.x
// opcodes (PRINT_EXPR, END_FINALLY) that have no useful canonical
// equivalent in this decompiler's output AST (print-as-statement is a
// parser-level construct in 2.x, and END_FINALLY is fully subsumed by our
// canonical exception-block recognition) — they decode successfully but
// are treated as NOP-equivalent by the simulator.
func PRINT_EXPR_fallback() Opcode { return NOP }
func END_FINALLY_fallback() Opcode { return NOP }

func word36Table() map[byte]Opcode {
	return map[byte]Opcode{
		1:   POP_TOP,
		3:   ROT_THREE,
		4:   DUP_TOP,
		9:   NOP,
		10:  UNARY_POSITIVE,
		11:  UNARY_NEGATIVE,
		12:  UNARY_NOT,
		15:  UNARY_INVERT,
		23:  BINARY_ADD,
		24:  BINARY_SUBTRACT,
		20:  BINARY_MULTIPLY,
		25:  BINARY_SUBSCR,
		48:  RERAISE,
		50:  GET_AITER,
		51:  GET_ANEXT,
		52:  BEFORE_ASYNC_WITH,
		68:  GET_ITER,
		60:  STORE_SUBSCR,
		61:  DELETE_SUBSCR,
		70:  SETUP_ANNOTATIONS,
		71:  LOAD_BUILD_CLASS,
		72:  YIELD_FROM,
		73:  GET_AWAITABLE,
		84:  IMPORT_STAR,
		86:  YIELD_VALUE,
		87:  POP_BLOCK,
		89:  POP_EXCEPT,
		90:  STORE_NAME,
		91:  DELETE_NAME,
		92:  UNPACK_SEQUENCE,
		93:  FOR_ITER,
		94:  UNPACK_EX,
		95:  STORE_ATTR,
		96:  DELETE_ATTR,
		97:  STORE_GLOBAL,
		98:  DELETE_GLOBAL,
		100: LOAD_CONST,
		101: LOAD_NAME,
		102: BUILD_TUPLE,
		103: BUILD_LIST,
		104: BUILD_SET,
		105: BUILD_MAP,
		106: LOAD_ATTR,
		107: COMPARE_OP,
		108: IMPORT_NAME,
		109: IMPORT_FROM,
		110: JUMP_FORWARD,
		111: JUMP_IF_FALSE_OR_POP,
		112: JUMP_IF_TRUE_OR_POP,
		113: JUMP_ABSOLUTE,
		114: POP_JUMP_IF_FALSE,
		115: POP_JUMP_IF_TRUE,
		116: LOAD_GLOBAL,
		117: IS_OP,
		118: CONTAINS_OP,
		120: SETUP_LOOP,
		122: SETUP_FINALLY,
		121: SETUP_EXCEPT,
		124: LOAD_FAST,
		125: STORE_FAST,
		126: DELETE_FAST,
		130: RAISE_VARARGS,
		131: CALL_FUNCTION,
		132: MAKE_FUNCTION,
		133: BUILD_SLICE,
		135: LOAD_CLOSURE,
		136: LOAD_DEREF,
		137: STORE_DEREF,
		141: CALL_FUNCTION_KW,
		142: CALL_FUNCTION_EX,
		143: SETUP_WITH,
		145: LIST_APPEND,
		146: SET_ADD,
		147: MAP_ADD,
		149: LOAD_METHOD,
		150: CALL_METHOD,
		151: LIST_EXTEND,
		144: EXTENDED_ARG,
		83:  RETURN_VALUE,
		157: BUILD_STRING,
		162: WITH_EXCEPT_START,
	}
}

func word310Table() map[byte]Opcode {
	t := word36Table()
	// 3.10 adds structural pattern matching; jump-arg scaling is a decode
	// concern (internal/bytecode), not a table one.
	t[152] = MATCH_CLASS
	t[164] = MATCH_MAPPING
	t[165] = MATCH_SEQUENCE
	t[166] = MATCH_KEYS
	return t
}

func word311Table() map[byte]Opcode {
	t := word310Table()
	// 3.11 restructures try/with/call handling: remove SETUP_EXCEPT/
	// SETUP_FINALLY/SETUP_WITH targets in favor of the exception table, add
	// PUSH_EXC_INFO/CHECK_EXC_MATCH/BEFORE_WITH and the PRECALL/CALL split,
	// fold the dedicated BINARY_* opcodes into one arg-carrying BINARY_OP,
	// and make every conditional jump carry its direction in the opcode.
	delete(t, 121) // SETUP_EXCEPT gone
	delete(t, 122) // SETUP_FINALLY gone
	delete(t, 143) // SETUP_WITH gone
	delete(t, 120) // SETUP_LOOP long gone (3.8), freed for reuse
	delete(t, 52)  // BEFORE_ASYNC_WITH reassigned below
	delete(t, 20)  // BINARY_MULTIPLY folded into BINARY_OP
	delete(t, 23)  // BINARY_ADD folded into BINARY_OP
	delete(t, 24)  // BINARY_SUBTRACT folded into BINARY_OP
	t[49] = BEFORE_WITH
	t[48] = BEFORE_ASYNC_WITH
	t[35] = PUSH_EXC_INFO
	t[36] = CHECK_EXC_MATCH
	t[37] = CHECK_EG_MATCH
	t[119] = RERAISE
	t[122] = BINARY_OP
	t[169] = PRECALL
	t[171] = CALL
	t[172] = KW_NAMES
	t[2] = ROT_TWO
	t[112] = POP_JUMP_FORWARD_IF_TRUE
	t[114] = POP_JUMP_FORWARD_IF_FALSE
	t[113] = POP_JUMP_BACKWARD_IF_TRUE
	t[115] = POP_JUMP_BACKWARD_IF_FALSE
	t[111] = JUMP_BACKWARD
	t[3] = COPY
	t[99] = SWAP
	t[72] = SEND
	return t
}

func word312Table() map[byte]Opcode {
	t := word311Table()
	delete(t, 169) // PRECALL folded into CALL
	t[121] = RETURN_CONST
	t[40] = TO_BOOL
	t[174] = END_FOR
	t[5] = LOAD_SPECIAL
	t[6] = LOAD_SUPER_ATTR
	return t
}
