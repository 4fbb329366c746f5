package decompile

import (
	"strings"

	"github.com/dr8co/unpyc/internal/bytecode"
	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/decomperr"
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/past"
	"github.com/dr8co/unpyc/internal/simulate"
	"github.com/dr8co/unpyc/internal/stackvalue"
)

// popExpr pops the top stack value and requires it to be a plain
// expression, mirroring internal/simulate's unexported helper of the same
// shape for the driver's own opcode handling.
func popExpr(s *simulate.Stack, ctx decomperr.Context) (past.Expression, error) {
	v, err := s.Pop(ctx)
	if err != nil {
		return nil, err
	}
	e, ok := stackvalue.AsExpression(v)
	if !ok {
		return nil, decomperr.New(decomperr.NotAnExpression, ctx, "expected expression, found %s", v.Kind())
	}
	return e, nil
}

// popExprN pops n values in original push order, requiring each to be a
// plain expression.
func popExprN(s *simulate.Stack, n int, ctx decomperr.Context) ([]past.Expression, error) {
	vals, err := s.PopN(n, ctx)
	if err != nil {
		return nil, err
	}
	out, ok := valuesToExprs(vals)
	if !ok {
		return nil, decomperr.New(decomperr.NotAnExpression, ctx, "expected %d expressions", n)
	}
	return out, nil
}

// noBlock marks "no continuation" — a structured construct's every path
// ended in a return/raise/break/continue, so the region walk should stop
// rather than look for a fallthrough successor.
const noBlock cfg.BlockID = -1

func isStoreOp(op opcode.Opcode) bool {
	switch op {
	case opcode.STORE_NAME, opcode.STORE_FAST, opcode.STORE_GLOBAL, opcode.STORE_DEREF:
		return true
	default:
		return false
	}
}

func isDeleteOp(op opcode.Opcode) bool {
	switch op {
	case opcode.DELETE_NAME, opcode.DELETE_FAST, opcode.DELETE_GLOBAL, opcode.DELETE_DEREF:
		return true
	default:
		return false
	}
}

// storeTargetName resolves the variable a simple STORE_* instruction names,
// per its own opcode-specific namespace.
func (d *decompiler) storeTargetName(in bytecode.Instruction) string {
	switch in.Op {
	case opcode.STORE_NAME, opcode.STORE_GLOBAL:
		return d.NameAt(int(in.Arg))
	case opcode.STORE_FAST:
		return d.VarnameAt(int(in.Arg))
	case opcode.STORE_DEREF:
		return d.FreevarAt(int(in.Arg))
	default:
		return "?"
	}
}

func (d *decompiler) deleteTargetName(in bytecode.Instruction) string {
	switch in.Op {
	case opcode.DELETE_NAME, opcode.DELETE_GLOBAL:
		return d.NameAt(int(in.Arg))
	case opcode.DELETE_FAST:
		return d.VarnameAt(int(in.Arg))
	case opcode.DELETE_DEREF:
		return d.FreevarAt(int(in.Arg))
	default:
		return "?"
	}
}

// constIntOf best-effort extracts an int from a popped stack value that is
// expected to be a plain integer constant (MAKE_FUNCTION's/IMPORT_NAME's
// level argument, etc.).
func constIntOf(v stackvalue.Value) int {
	e, ok := stackvalue.AsExpression(v)
	if !ok {
		return 0
	}
	c, ok := e.(*past.Constant)
	if !ok {
		return 0
	}
	n, _ := c.Value.(int)
	return n
}

func constStringOf(e past.Expression) string {
	c, ok := e.(*past.Constant)
	if !ok {
		return ""
	}
	s, _ := c.Value.(string)
	return s
}

// flattenConstElements normalizes a collection value into its element
// expressions, whichever of the two shapes it arrived in: a past.Tuple/List
// built at runtime by BUILD_TUPLE/BUILD_LIST, or a past.Constant wrapping a
// marshal-level []any (a tuple constant loaded directly via LOAD_CONST, as
// KW_NAMES and IMPORT_NAME's fromlist/level operands always are, and as the
// peephole optimizer folds an all-literal BUILD_TUPLE into too).
func flattenConstElements(v stackvalue.Value) []past.Expression {
	e, ok := stackvalue.AsExpression(v)
	if !ok {
		return nil
	}
	switch t := e.(type) {
	case *past.Tuple:
		return t.Elts
	case *past.List:
		return t.Elts
	case *past.Constant:
		items, ok := t.Value.([]any)
		if !ok {
			return nil
		}
		out := make([]past.Expression, len(items))
		for i, it := range items {
			out[i] = &past.Constant{Value: it}
		}
		return out
	default:
		return nil
	}
}

// constTupleStrings unpacks a constant tuple/list-of-strings value (as
// IMPORT_NAME's fromlist and KW_NAMES arguments are encoded) into a plain
// string slice.
func constTupleStrings(v stackvalue.Value) []string {
	elts := flattenConstElements(v)
	out := make([]string, 0, len(elts))
	for _, el := range elts {
		if c, ok := el.(*past.Constant); ok {
			if s, ok := c.Value.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func reverseExprs(es []past.Expression) []past.Expression {
	if len(es) == 0 {
		return nil
	}
	out := make([]past.Expression, len(es))
	for i, e := range es {
		out[len(es)-1-i] = e
	}
	return out
}

// moduleTopComponent returns the leading dotted component of a module path,
// e.g. "os.path" -> "os": the name a plain `import os.path` binds.
func moduleTopComponent(module string) string {
	if i := strings.IndexByte(module, '.'); i >= 0 {
		return module[:i]
	}
	return module
}

func valuesToExprs(vals []stackvalue.Value) ([]past.Expression, bool) {
	out := make([]past.Expression, len(vals))
	for i, v := range vals {
		e, ok := stackvalue.AsExpression(v)
		if !ok {
			return nil, false
		}
		out[i] = e
	}
	return out, true
}
