package simulate

import (
	"github.com/dr8co/unpyc/internal/bytecode"
	"github.com/dr8co/unpyc/internal/decomperr"
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/past"
	"github.com/dr8co/unpyc/internal/stackvalue"
)

// CodeContext is the slice of a pyc.CodeObject the simulator needs to
// resolve name/const operands. Declared here, satisfied there, so this
// package never imports the external pyc loader — it only needs read
// access to four tables.
type CodeContext interface {
	ConstAt(i int) any
	NameAt(i int) string
	VarnameAt(i int) string
	FreevarAt(i int) string
}

// binOps maps BINARY_OP's numeric arg (3.11+'s unified binary-op table) to
// an AST operator. Earlier versions use dedicated BINARY_ADD/SUBTRACT/etc
// opcodes instead, handled separately below.
var binOps = map[uint32]past.BinaryOperator{
	0: past.Add, 1: past.BitAnd, 2: past.FloorDiv, 3: past.LShift, 4: past.MatMult,
	5: past.Mult, 6: past.Mod, 7: past.BitOr, 8: past.Pow,
	9: past.RShift, 10: past.Sub, 11: past.Div, 12: past.BitXor,
	// 13-25 are the NB_INPLACE_* variants of 0-12: the driver tells an
	// augmented assignment apart from a plain one structurally (the popped
	// RHS is `Name(target) op value`), not from this bit, so in-place and
	// plain forms share an operator here.
	13: past.Add, 14: past.BitAnd, 15: past.FloorDiv, 16: past.LShift, 17: past.MatMult,
	18: past.Mult, 19: past.Mod, 20: past.BitOr, 21: past.Pow,
	22: past.RShift, 23: past.Sub, 24: past.Div, 25: past.BitXor,
}

var cmpOps = map[uint32]past.CmpOp{
	0: past.Lt, 1: past.LtE, 2: past.Eq, 3: past.NotEq, 4: past.Gt, 5: past.GtE,
}

func expr(v stackvalue.Value) past.Expression {
	if e, ok := stackvalue.AsExpression(v); ok {
		return e
	}
	return nil
}

func popExpr(s *Stack, ctx decomperr.Context) (past.Expression, error) {
	v, err := s.Pop(ctx)
	if err != nil {
		return nil, err
	}
	e := expr(v)
	if e == nil {
		return nil, decomperr.New(decomperr.NotAnExpression, ctx, "expected expression, found %s", v.Kind())
	}
	return e, nil
}

func popExprN(s *Stack, n int, ctx decomperr.Context) ([]past.Expression, error) {
	vals, err := s.PopN(n, ctx)
	if err != nil {
		return nil, err
	}
	out := make([]past.Expression, n)
	for i, v := range vals {
		e := expr(v)
		if e == nil {
			return nil, decomperr.New(decomperr.NotAnExpression, ctx, "expected expression at arg %d, found %s", i, v.Kind())
		}
		out[i] = e
	}
	return out, nil
}

// Step applies one instruction's stack effect against s. It covers the
// expression-producing families; instructions that affect control flow (jumps), bind names (STORE_*/DELETE_*), or
// need multi-instruction context (MAKE_FUNCTION's flag-dependent pop
// order, comprehension detection) are left to the driver, which inspects
// the stack directly around the Step calls it makes.
func Step(in bytecode.Instruction, s *Stack, cc CodeContext, ctx decomperr.Context) error {
	switch in.Op {
	case opcode.LOAD_CONST:
		s.Push(&stackvalue.Expression{Expr: &past.Constant{Value: cc.ConstAt(int(in.Arg))}})

	case opcode.LOAD_NAME, opcode.LOAD_GLOBAL:
		s.Push(&stackvalue.Expression{Expr: &past.Name{Id: cc.NameAt(nameIndex(in))}})

	case opcode.LOAD_FAST:
		s.Push(&stackvalue.Expression{Expr: &past.Name{Id: cc.VarnameAt(int(in.Arg))}})

	case opcode.LOAD_DEREF, opcode.LOAD_CLOSURE:
		s.Push(&stackvalue.Expression{Expr: &past.Name{Id: cc.FreevarAt(int(in.Arg))}})

	case opcode.LOAD_TRUE:
		s.Push(&stackvalue.Expression{Expr: &past.Constant{Value: true}})
	case opcode.LOAD_FALSE:
		s.Push(&stackvalue.Expression{Expr: &past.Constant{Value: false}})
	case opcode.LOAD_NULL:
		s.Push(&stackvalue.Unknown{Reason: "LOAD_NULL sentinel"})

	case opcode.POP_TOP:
		if _, err := s.Pop(ctx); err != nil {
			return err
		}

	case opcode.DUP_TOP:
		return s.Dup(ctx)

	case opcode.COPY:
		if in.Arg == 1 {
			return s.Dup(ctx)
		}

	case opcode.ROT_TWO:
		return s.Rot2(ctx)

	case opcode.ROT_THREE:
		return s.Rot3(ctx)

	case opcode.SWAP:
		return s.Swap(int(in.Arg), ctx)

	case opcode.UNARY_NOT, opcode.UNARY_NEGATIVE, opcode.UNARY_POSITIVE, opcode.UNARY_INVERT:
		e, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		s.Push(&stackvalue.Expression{Expr: &past.UnaryExpr{Op: unaryOpFor(in.Op), Operand: e}})

	case opcode.BINARY_OP:
		right, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		left, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		op, ok := binOps[in.Arg]
		if !ok {
			return decomperr.New(decomperr.NotAnExpression, ctx, "unknown BINARY_OP arg %d", in.Arg)
		}
		s.Push(&stackvalue.Expression{Expr: &past.BinOp{Left: left, Op: op, Right: right}})

	case opcode.BINARY_ADD, opcode.BINARY_SUBTRACT, opcode.BINARY_MULTIPLY, opcode.BINARY_SUBSCR:
		right, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		left, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		if in.Op == opcode.BINARY_SUBSCR {
			s.Push(&stackvalue.Expression{Expr: &past.Subscript{Value: left, Index: right}})
		} else {
			s.Push(&stackvalue.Expression{Expr: &past.BinOp{Left: left, Op: legacyBinOpFor(in.Op), Right: right}})
		}

	case opcode.COMPARE_OP:
		right, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		left, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		op, ok := cmpOps[in.Arg&0xf]
		if !ok {
			return decomperr.New(decomperr.NotAnExpression, ctx, "unknown COMPARE_OP arg %d", in.Arg)
		}
		s.Push(&stackvalue.Expression{Expr: &past.Compare{Left: left, Ops: []past.CmpOp{op}, Comparators: []past.Expression{right}}})

	case opcode.IS_OP:
		right, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		left, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		op := past.Is
		if in.Arg != 0 {
			op = past.IsNot
		}
		s.Push(&stackvalue.Expression{Expr: &past.Compare{Left: left, Ops: []past.CmpOp{op}, Comparators: []past.Expression{right}}})

	case opcode.CONTAINS_OP:
		right, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		left, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		op := past.In
		if in.Arg != 0 {
			op = past.NotIn
		}
		s.Push(&stackvalue.Expression{Expr: &past.Compare{Left: left, Ops: []past.CmpOp{op}, Comparators: []past.Expression{right}}})

	case opcode.BUILD_TUPLE, opcode.BUILD_LIST, opcode.BUILD_SET, opcode.BUILD_STRING:
		elts, err := popExprN(s, int(in.Arg), ctx)
		if err != nil {
			return err
		}
		s.Push(&stackvalue.Expression{Expr: buildCollection(in.Op, elts)})

	case opcode.BUILD_MAP:
		n := int(in.Arg)
		keys := make([]past.Expression, n)
		vals := make([]past.Expression, n)
		for i := n - 1; i >= 0; i-- {
			v, err := popExpr(s, ctx)
			if err != nil {
				return err
			}
			k, err := popExpr(s, ctx)
			if err != nil {
				return err
			}
			keys[i], vals[i] = k, v
		}
		s.Push(&stackvalue.Expression{Expr: &past.Dict{Keys: keys, Values: vals}})

	case opcode.LIST_TO_TUPLE:
		e, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		if l, ok := e.(*past.List); ok {
			s.Push(&stackvalue.Expression{Expr: &past.Tuple{Elts: l.Elts}})
		} else {
			s.Push(&stackvalue.Expression{Expr: e})
		}

	case opcode.GET_ITER, opcode.GET_AWAITABLE, opcode.GET_AITER, opcode.GET_ANEXT, opcode.TO_BOOL:
		// No-ops for expression purposes: the wrapped value is still the
		// expression of interest one level up.

	case opcode.BUILD_SLICE:
		n := int(in.Arg)
		if n == 2 {
			upper, err := popExpr(s, ctx)
			if err != nil {
				return err
			}
			lower, err := popExpr(s, ctx)
			if err != nil {
				return err
			}
			s.Push(&stackvalue.Expression{Expr: &past.Slice{Lower: lower, Upper: upper}})
		} else {
			step, err := popExpr(s, ctx)
			if err != nil {
				return err
			}
			upper, err := popExpr(s, ctx)
			if err != nil {
				return err
			}
			lower, err := popExpr(s, ctx)
			if err != nil {
				return err
			}
			s.Push(&stackvalue.Expression{Expr: &past.Slice{Lower: lower, Upper: upper, Step: step}})
		}

	case opcode.LOAD_ATTR, opcode.LOAD_METHOD, opcode.LOAD_SUPER_ATTR:
		e, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		s.Push(&stackvalue.Expression{Expr: &past.Attribute{Value: e, Attr: cc.NameAt(nameIndex(in))}})

	case opcode.IMPORT_NAME:
		fromlist, err := popExpr(s, ctx)
		if err != nil {
			return err
		}
		_ = fromlist // level and fromlist are consts; driver resolves the literal names
		if _, err := s.Pop(ctx); err != nil { // level
			return err
		}
		s.Push(&stackvalue.ImportModule{Module: cc.NameAt(int(in.Arg))})

	case opcode.IMPORT_FROM:
		s.Push(&stackvalue.Expression{Expr: &past.Name{Id: cc.NameAt(int(in.Arg))}})

	default:
		// Unhandled opcodes (stores, jumps, calls, MAKE_FUNCTION, and the
		// rest) are the driver's responsibility; Step is a no-op for them
		// so the driver can still call Step uniformly across a block and
		// special-case only the instructions it needs to.
	}
	return nil
}

// nameIndex returns the co_names index an instruction's arg encodes. Some
// opcode families (LOAD_METHOD's 3.11 cache-adjacent form) pack extra bits
// into Arg beyond the raw index; today every opcode this package resolves
// via NameAt uses the arg directly, but this indirection keeps that
// decision in one place.
func nameIndex(in bytecode.Instruction) int { return int(in.Arg) }

func unaryOpFor(op opcode.Opcode) past.UnaryOperator {
	switch op {
	case opcode.UNARY_NEGATIVE:
		return past.USub
	case opcode.UNARY_POSITIVE:
		return past.UAdd
	case opcode.UNARY_INVERT:
		return past.Invert
	default:
		return past.Not
	}
}

func legacyBinOpFor(op opcode.Opcode) past.BinaryOperator {
	switch op {
	case opcode.BINARY_ADD:
		return past.Add
	case opcode.BINARY_SUBTRACT:
		return past.Sub
	case opcode.BINARY_MULTIPLY:
		return past.Mult
	default:
		return past.Add
	}
}

func buildCollection(op opcode.Opcode, elts []past.Expression) past.Expression {
	switch op {
	case opcode.BUILD_LIST:
		return &past.List{Elts: elts}
	case opcode.BUILD_SET:
		return &past.Set{Elts: elts}
	case opcode.BUILD_STRING:
		// Concatenated f-string parts: best-effort render as a tuple of
		// parts wrapped in a synthetic call, since past has no f-string
		// node; callers treat this as an opaque expression.
		return &past.Call{Func: &past.Name{Id: "str"}, Args: elts}
	default:
		return &past.Tuple{Elts: elts}
	}
}
