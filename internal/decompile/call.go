package decompile

import (
	"github.com/dr8co/unpyc/internal/bytecode"
	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/decomperr"
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/past"
	"github.com/dr8co/unpyc/internal/simulate"
	"github.com/dr8co/unpyc/internal/stackvalue"
	"github.com/dr8co/unpyc/pyc"
)

// handleLoadConst special-cases a nested code object constant: every other
// constant kind goes through simulate.Step unchanged.
func (d *decompiler) handleLoadConst(in bytecode.Instruction, stack *simulate.Stack, ctx decomperr.Context) error {
	if co, ok := d.ConstAt(int(in.Arg)).(*pyc.CodeObject); ok {
		stack.Push(&stackvalue.CodeConstant{Code: co})
		return nil
	}
	return simulate.Step(in, stack, d, ctx)
}

// handleMakeFunction pops MAKE_FUNCTION's flag-dependent extras (closure,
// annotations, kwdefaults, defaults, in that pop order per CPython's
// calling convention) plus the code object LOAD_CONST pushed beneath them,
// and pushes the resulting FunctionObject.
func (d *decompiler) handleMakeFunction(id cfg.BlockID, in bytecode.Instruction, stack *simulate.Stack, ctx decomperr.Context) error {
	var closure, annotations, kwdefaults, defaults stackvalue.Value
	var err error
	if in.Arg&0x08 != 0 {
		if closure, err = stack.Pop(ctx); err != nil {
			return err
		}
	}
	if in.Arg&0x04 != 0 {
		if annotations, err = stack.Pop(ctx); err != nil {
			return err
		}
	}
	if in.Arg&0x02 != 0 {
		if kwdefaults, err = stack.Pop(ctx); err != nil {
			return err
		}
	}
	if in.Arg&0x01 != 0 {
		if defaults, err = stack.Pop(ctx); err != nil {
			return err
		}
	}
	codeVal, err := stack.Pop(ctx)
	if err != nil {
		return err
	}
	cc, ok := codeVal.(*stackvalue.CodeConstant)
	if !ok {
		return d.fail(decomperr.NotAnExpression, id, in.Offset, in.Op, "MAKE_FUNCTION operand is not a code constant")
	}

	fo := &stackvalue.FunctionObject{
		Code:        d.registerCodeRef(cc.Code),
		Defaults:    tupleValues(defaults),
		KwDefaults:  dictValues(kwdefaults),
		Annotations: dictValues(annotations),
		Closure:     tupleValues(closure),
		Qualname:    cc.Code.Name,
	}
	stack.Push(fo)
	return nil
}

func tupleValues(v stackvalue.Value) []stackvalue.Value {
	if v == nil {
		return nil
	}
	elts := flattenConstElements(v)
	out := make([]stackvalue.Value, len(elts))
	for i, el := range elts {
		out[i] = &stackvalue.Expression{Expr: el}
	}
	return out
}

func dictValues(v stackvalue.Value) map[string]stackvalue.Value {
	if v == nil {
		return nil
	}
	e, ok := stackvalue.AsExpression(v)
	if !ok {
		return nil
	}
	dict, ok := e.(*past.Dict)
	if !ok {
		return nil
	}
	out := make(map[string]stackvalue.Value, len(dict.Values))
	for i, key := range dict.Keys {
		name := constStringOf(key)
		if name == "" {
			continue
		}
		out[name] = &stackvalue.Expression{Expr: dict.Values[i]}
	}
	return out
}

// handleCall lowers one of the CALL/CALL_FUNCTION/CALL_METHOD family
// instructions: an ordinary call builds a past.Call, a call whose callee is
// the LOAD_BUILD_CLASS sentinel builds a ClassObject, and a call whose sole
// argument is a still-under-construction Function/ClassObject is treated as
// a decorator application.
func (d *decompiler) handleCall(id cfg.BlockID, in bytecode.Instruction, argVals []stackvalue.Value, kwNames []string, stack *simulate.Stack, ctx decomperr.Context) error {
	funcVal, err := stack.Pop(ctx)
	if err != nil {
		return err
	}

	posCount := len(argVals) - len(kwNames)
	if posCount < 0 {
		posCount = len(argVals)
		kwNames = nil
	}
	positional := argVals[:posCount]
	kwVals := argVals[posCount:]

	if isBuildClassSentinel(funcVal) {
		return d.pushClassObject(id, in, positional, kwNames, kwVals, stack)
	}

	if len(positional) == 1 && len(kwNames) == 0 {
		if fo, ok := positional[0].(*stackvalue.FunctionObject); ok {
			if funcExpr, ok2 := stackvalue.AsExpression(funcVal); ok2 {
				d.pendingDecorators = append(d.pendingDecorators, funcExpr)
			}
			stack.Push(fo)
			return nil
		}
		if co, ok := positional[0].(*stackvalue.ClassObject); ok {
			if funcExpr, ok2 := stackvalue.AsExpression(funcVal); ok2 {
				d.pendingDecorators = append(d.pendingDecorators, funcExpr)
			}
			stack.Push(co)
			return nil
		}
	}

	funcExpr, ok := stackvalue.AsExpression(funcVal)
	if !ok {
		return d.fail(decomperr.NotAnExpression, id, in.Offset, in.Op, "call target is not an expression: %s", funcVal.Kind())
	}
	args, ok := valuesToExprs(positional)
	if !ok {
		return d.fail(decomperr.NotAnExpression, id, in.Offset, in.Op, "call argument is not an expression")
	}
	keywords := make([]past.Keyword, 0, len(kwNames))
	for i, name := range kwNames {
		e, ok := stackvalue.AsExpression(kwVals[i])
		if !ok {
			return d.fail(decomperr.NotAnExpression, id, in.Offset, in.Op, "keyword argument is not an expression")
		}
		keywords = append(keywords, past.Keyword{Arg: name, Value: e})
	}
	stack.Push(&stackvalue.Expression{Expr: &past.Call{Func: funcExpr, Args: args, Keywords: keywords}})
	return nil
}

func isBuildClassSentinel(v stackvalue.Value) bool {
	u, ok := v.(*stackvalue.Unknown)
	return ok && u.Reason == buildClassReason
}

const buildClassReason = "LOAD_BUILD_CLASS"

func (d *decompiler) pushClassObject(id cfg.BlockID, in bytecode.Instruction, positional []stackvalue.Value, kwNames []string, kwVals []stackvalue.Value, stack *simulate.Stack) error {
	if len(positional) < 2 {
		return d.fail(decomperr.InvalidBlock, id, in.Offset, in.Op, "class construction call is missing the body/name arguments")
	}
	fo, ok := positional[0].(*stackvalue.FunctionObject)
	if !ok {
		return d.fail(decomperr.InvalidBlock, id, in.Offset, in.Op, "class construction call's first argument is not a function object")
	}
	nameExpr, ok := stackvalue.AsExpression(positional[1])
	if !ok {
		return d.fail(decomperr.InvalidBlock, id, in.Offset, in.Op, "class construction call's second argument is not a name constant")
	}
	bases := append([]stackvalue.Value(nil), positional[2:]...)
	keywords := make(map[string]stackvalue.Value, len(kwNames))
	for i, name := range kwNames {
		keywords[name] = kwVals[i]
	}
	stack.Push(&stackvalue.ClassObject{
		Code:     fo.Code,
		Name:     constStringOf(nameExpr),
		Bases:    bases,
		Keywords: keywords,
	})
	return nil
}

// handleCallFunctionEx lowers CALL_FUNCTION_EX's `f(*args, **kwargs)` shape.
func (d *decompiler) handleCallFunctionEx(id cfg.BlockID, in bytecode.Instruction, stack *simulate.Stack, ctx decomperr.Context) error {
	var kwargsVal stackvalue.Value
	var err error
	if in.Arg&0x01 != 0 {
		if kwargsVal, err = stack.Pop(ctx); err != nil {
			return err
		}
	}
	starargsVal, err := stack.Pop(ctx)
	if err != nil {
		return err
	}
	funcVal, err := stack.Pop(ctx)
	if err != nil {
		return err
	}
	funcExpr, ok := stackvalue.AsExpression(funcVal)
	if !ok {
		return d.fail(decomperr.NotAnExpression, id, in.Offset, in.Op, "call target is not an expression")
	}
	starargs, _ := stackvalue.AsExpression(starargsVal)
	var kwargs past.Expression
	if kwargsVal != nil {
		kwargs, _ = stackvalue.AsExpression(kwargsVal)
	}
	stack.Push(&stackvalue.Expression{Expr: &past.Call{Func: funcExpr, Starargs: starargs, Kwargs: kwargs}})
	return nil
}

// handleImportName captures IMPORT_NAME's level/fromlist operands (which
// simulate.Step's generic handler discards) and, when this is a from-import,
// looks ahead for the IMPORT_FROM/STORE_NAME pairs plus trailing POP_TOP
// CPython emits for it, collapsing the whole run into one ImportFrom
// statement. A plain `import x [as y]` instead pushes an ImportModule value
// for the following STORE to pick up.
func (d *decompiler) handleImportName(id cfg.BlockID, insts []bytecode.Instruction, idx int, stack *simulate.Stack, ctx decomperr.Context) (past.Statement, int, error) {
	in := insts[idx]
	fromlistVal, err := stack.Pop(ctx)
	if err != nil {
		return nil, 0, err
	}
	levelVal, err := stack.Pop(ctx)
	if err != nil {
		return nil, 0, err
	}
	module := d.NameAt(int(in.Arg))
	level := constIntOf(levelVal)
	fromNames := constTupleStrings(fromlistVal)

	if len(fromNames) == 0 {
		stack.Push(&stackvalue.ImportModule{Module: module, Level: level})
		return nil, 1, nil
	}

	j := idx + 1
	var aliases []past.Alias
	for j+1 < len(insts) && insts[j].Op == opcode.IMPORT_FROM && isStoreOp(insts[j+1].Op) {
		imported := d.NameAt(int(insts[j].Arg))
		target := d.storeTargetName(insts[j+1])
		as := ""
		if target != imported {
			as = target
		}
		aliases = append(aliases, past.Alias{Name: imported, AsName: as})
		j += 2
	}
	if len(aliases) > 0 && j < len(insts) && insts[j].Op == opcode.POP_TOP {
		j++
		return &past.ImportFrom{Module: module, Names: aliases, Level: level}, j - idx, nil
	}

	stack.Push(&stackvalue.ImportModule{Module: module, Level: level, FromList: fromNames})
	return nil, 1, nil
}
