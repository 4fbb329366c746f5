package decompile

import (
	"github.com/dr8co/unpyc/internal/bytecode"
	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/decomperr"
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/past"
	"github.com/dr8co/unpyc/internal/simulate"
	"github.com/dr8co/unpyc/internal/stackvalue"
)

// tryChainAssign looks ahead from a DUP_TOP/COPY at insts[idx] for the
// shape CPython emits for `a = b = ... = value`: (DUP_TOP STORE)* STORE,
// where every store but the last targets a plain name. It returns false
// without consuming anything if the run doesn't hold, so the caller can
// fall back to letting each DUP_TOP/STORE pair play out as its own
// statement — a fidelity loss (one Assign becomes several) but never a
// correctness one.
func (d *decompiler) tryChainAssign(id cfg.BlockID, insts []bytecode.Instruction, idx int, stack *simulate.Stack, ctx decomperr.Context) (past.Statement, int, bool) {
	j := idx
	var targetNames []string
	for j < len(insts) && (insts[j].Op == opcode.DUP_TOP || (insts[j].Op == opcode.COPY && insts[j].Arg == 1)) {
		j++
		if j >= len(insts) || !isStoreOp(insts[j].Op) {
			return nil, 0, false
		}
		targetNames = append(targetNames, d.storeTargetName(insts[j]))
		j++
	}
	if len(targetNames) == 0 || j >= len(insts) || !isStoreOp(insts[j].Op) {
		return nil, 0, false
	}
	targetNames = append(targetNames, d.storeTargetName(insts[j]))
	j++

	value, err := popExprOrNil(stack, ctx)
	if err != nil || value == nil {
		return nil, 0, false
	}
	targets := make([]past.Expression, len(targetNames))
	for i, n := range targetNames {
		targets[i] = &past.Name{Id: n}
	}
	return &past.Assign{Targets: targets, Value: value}, j - idx, true
}

func popExprOrNil(stack *simulate.Stack, ctx decomperr.Context) (past.Expression, error) {
	v, err := stack.Pop(ctx)
	if err != nil {
		return nil, err
	}
	e, ok := stackvalue.AsExpression(v)
	if !ok {
		return nil, nil
	}
	return e, nil
}

// handleSimpleStore lowers a single (non-chained) STORE_* instruction,
// dispatching to an Import/FunctionDef/ClassDef statement when the popped
// value is one of those special shapes, an AugAssign when the value is
// `Name(target) op something`, or a plain Assign otherwise.
func (d *decompiler) handleSimpleStore(id cfg.BlockID, in bytecode.Instruction, stack *simulate.Stack, ctx decomperr.Context) (past.Statement, error) {
	switch in.Op {
	case opcode.STORE_NAME, opcode.STORE_FAST, opcode.STORE_GLOBAL, opcode.STORE_DEREF:
		v, err := stack.Pop(ctx)
		if err != nil {
			return nil, err
		}
		name := d.storeTargetName(in)
		return d.bindName(name, v)

	case opcode.STORE_ATTR:
		value, err := popExpr(stack, ctx)
		if err != nil {
			return nil, err
		}
		obj, err := popExpr(stack, ctx)
		if err != nil {
			return nil, err
		}
		target := &past.Attribute{Value: obj, Attr: d.NameAt(int(in.Arg))}
		return assignOrAug(target, value), nil

	case opcode.STORE_SUBSCR:
		value, err := popExpr(stack, ctx)
		if err != nil {
			return nil, err
		}
		obj, err := popExpr(stack, ctx)
		if err != nil {
			return nil, err
		}
		key, err := popExpr(stack, ctx)
		if err != nil {
			return nil, err
		}
		target := &past.Subscript{Value: obj, Index: key}
		return assignOrAug(target, value), nil

	case opcode.STORE_SLICE:
		value, err := popExpr(stack, ctx)
		if err != nil {
			return nil, err
		}
		upper, err := popExpr(stack, ctx)
		if err != nil {
			return nil, err
		}
		lower, err := popExpr(stack, ctx)
		if err != nil {
			return nil, err
		}
		obj, err := popExpr(stack, ctx)
		if err != nil {
			return nil, err
		}
		target := &past.Subscript{Value: obj, Index: &past.Slice{Lower: lower, Upper: upper}}
		return &past.Assign{Targets: []past.Expression{target}, Value: value}, nil

	default:
		return nil, d.fail(decomperr.InvalidBlock, id, in.Offset, in.Op, "unhandled store opcode")
	}
}

// bindName is the STORE_NAME/FAST/GLOBAL/DEREF common path: the popped
// value decides whether this binding is really a def/class/import in
// disguise.
func (d *decompiler) bindName(name string, v stackvalue.Value) (past.Statement, error) {
	switch x := v.(type) {
	case *stackvalue.FunctionObject:
		return d.buildFunctionDef(name, x)
	case *stackvalue.ClassObject:
		return d.buildClassDef(x)
	case *stackvalue.ImportModule:
		as := ""
		if name != moduleTopComponent(x.Module) {
			as = name
		}
		return &past.Import{Names: []past.Alias{{Name: x.Module, AsName: as}}}, nil
	default:
		value, ok := stackvalue.AsExpression(v)
		if !ok {
			return nil, decomperr.New(decomperr.NotAnExpression, decomperr.Context{}, "store target is not an expression: %s", v.Kind())
		}
		return assignOrAug(&past.Name{Id: name}, value), nil
	}
}

// assignOrAug recognizes the `target = target op rhs` shape an in-place
// BINARY_OP leaves on the stack and collapses it to an AugAssign.
func assignOrAug(target past.Expression, value past.Expression) past.Statement {
	if bin, ok := value.(*past.BinOp); ok {
		if sameTarget(target, bin.Left) {
			return &past.AugAssign{Target: target, Op: bin.Op, Value: bin.Right}
		}
	}
	return &past.Assign{Targets: []past.Expression{target}, Value: value}
}

func sameTarget(a, b past.Expression) bool {
	an, aok := a.(*past.Name)
	bn, bok := b.(*past.Name)
	return aok && bok && an.Id == bn.Id
}

// handleDelete lowers a single DELETE_* instruction.
func (d *decompiler) handleDelete(id cfg.BlockID, in bytecode.Instruction, stack *simulate.Stack, ctx decomperr.Context) (past.Statement, error) {
	switch in.Op {
	case opcode.DELETE_NAME, opcode.DELETE_FAST, opcode.DELETE_GLOBAL, opcode.DELETE_DEREF:
		return &past.Delete{Targets: []past.Expression{&past.Name{Id: d.deleteTargetName(in)}}}, nil
	case opcode.DELETE_ATTR:
		obj, err := popExpr(stack, ctx)
		if err != nil {
			return nil, err
		}
		return &past.Delete{Targets: []past.Expression{&past.Attribute{Value: obj, Attr: d.NameAt(int(in.Arg))}}}, nil
	case opcode.DELETE_SUBSCR:
		key, err := popExpr(stack, ctx)
		if err != nil {
			return nil, err
		}
		obj, err := popExpr(stack, ctx)
		if err != nil {
			return nil, err
		}
		return &past.Delete{Targets: []past.Expression{&past.Subscript{Value: obj, Index: key}}}, nil
	default:
		return nil, d.fail(decomperr.InvalidBlock, id, in.Offset, in.Op, "unhandled delete opcode")
	}
}

// handleUnpack lowers UNPACK_SEQUENCE/UNPACK_EX plus the run of simple
// STORE_* instructions immediately following it into one Assign to a
// Tuple target. It returns the
// total instruction count consumed (the UNPACK_* itself plus each store).
func (d *decompiler) handleUnpack(id cfg.BlockID, insts []bytecode.Instruction, idx int, stack *simulate.Stack, ctx decomperr.Context) (past.Statement, int, error) {
	in := insts[idx]
	seq, err := popExpr(stack, ctx)
	if err != nil {
		return nil, 0, err
	}

	var before, after int
	starred := -1
	if in.Op == opcode.UNPACK_EX {
		before = int(in.Arg & 0xff)
		after = int((in.Arg >> 8) & 0xff)
		starred = before
	} else {
		before = int(in.Arg)
	}
	total := before + after
	if starred >= 0 {
		total++
	}

	targets := make([]past.Expression, 0, total)
	j := idx + 1
	for k := 0; k < total; k++ {
		if j >= len(insts) || !isStoreOp(insts[j].Op) {
			return nil, 0, d.fail(decomperr.InvalidBlock, id, in.Offset, in.Op, "unpack target %d is not a simple store", k)
		}
		name := d.storeTargetName(insts[j])
		if k == starred {
			targets = append(targets, &past.Starred{Value: &past.Name{Id: name}})
		} else {
			targets = append(targets, &past.Name{Id: name})
		}
		j++
	}
	return &past.Assign{Targets: []past.Expression{&past.Tuple{Elts: targets}}, Value: seq}, j - idx, nil
}
