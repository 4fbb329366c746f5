package decompile

import (
	"github.com/dr8co/unpyc/internal/past"
	"github.com/dr8co/unpyc/internal/stackvalue"
	"github.com/dr8co/unpyc/pyc"
)

// buildFunctionDef recurses into a FunctionObject's nested code object and
// assembles the resulting past.FunctionDef, consuming whatever decorators
// have accumulated on d.pendingDecorators in application order.
func (d *decompiler) buildFunctionDef(name string, fo *stackvalue.FunctionObject) (past.Statement, error) {
	co := d.codeRefCode(fo.Code)
	if co == nil {
		return &past.FunctionDef{Name: name, Args: &past.Arguments{}}, nil
	}

	nested, err := newDecompiler(co)
	if err != nil {
		return nil, err
	}
	body, err := nested.run()
	if err != nil {
		return nil, err
	}

	doc, body := extractDocstring(body)
	args := buildArguments(co, fo.Defaults, fo.KwDefaults, fo.Annotations)

	var returns past.Expression
	if ann, ok := fo.Annotations["return"]; ok {
		returns, _ = stackvalue.AsExpression(ann)
	}

	decorators := reverseExprs(d.pendingDecorators)
	d.pendingDecorators = nil

	return &past.FunctionDef{
		Name:       name,
		Args:       args,
		Body:       body,
		Decorators: decorators,
		Returns:    returns,
		IsAsync:    co.IsCoroutine(),
		Doc:        doc,
	}, nil
}

// buildClassDef recurses into a ClassObject's body code object and
// assembles the resulting past.ClassDef.
func (d *decompiler) buildClassDef(co *stackvalue.ClassObject) (past.Statement, error) {
	bodyCode := d.codeRefCode(co.Code)
	if bodyCode == nil {
		return &past.ClassDef{Name: co.Name}, nil
	}

	nested, err := newDecompiler(bodyCode)
	if err != nil {
		return nil, err
	}
	body, err := nested.run()
	if err != nil {
		return nil, err
	}

	doc, body := extractDocstring(body)
	body = stripClassBookkeeping(body)

	bases := make([]past.Expression, 0, len(co.Bases))
	for _, b := range co.Bases {
		if e, ok := stackvalue.AsExpression(b); ok {
			bases = append(bases, e)
		}
	}
	keywords := make([]past.Keyword, 0, len(co.Keywords))
	for k, v := range co.Keywords {
		if e, ok := stackvalue.AsExpression(v); ok {
			keywords = append(keywords, past.Keyword{Arg: k, Value: e})
		}
	}

	decorators := reverseExprs(d.pendingDecorators)
	d.pendingDecorators = nil

	return &past.ClassDef{
		Name:       co.Name,
		Bases:      bases,
		Keywords:   keywords,
		Body:       body,
		Decorators: decorators,
		Doc:        doc,
	}, nil
}

// extractDocstring pulls a leading bare string-constant statement off body:
// a function/class/module's first statement, if a bare string expression,
// becomes its docstring rather than an ExprStmt.
func extractDocstring(body []past.Statement) (string, []past.Statement) {
	if len(body) == 0 {
		return "", body
	}
	es, ok := body[0].(*past.ExprStmt)
	if !ok {
		return "", body
	}
	c, ok := es.Value.(*past.Constant)
	if !ok {
		return "", body
	}
	s, ok := c.Value.(string)
	if !ok {
		return "", body
	}
	return s, body[1:]
}

// stripClassBookkeeping drops the `__qualname__ = ...`/`__module__ = ...`
// assignments CPython's class-body compiler injects, which carry no
// information a decompiled class definition needs to express.
func stripClassBookkeeping(body []past.Statement) []past.Statement {
	out := body[:0:0]
	for _, s := range body {
		if assign, ok := s.(*past.Assign); ok && len(assign.Targets) == 1 {
			if n, ok := assign.Targets[0].(*past.Name); ok && (n.Id == "__qualname__" || n.Id == "__module__") {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// buildArguments reconstructs a past.Arguments from a code object's
// Varnames layout (posonly, args, kwonly, vararg, kwarg, in that order)
// plus MAKE_FUNCTION's defaults/kwdefaults/annotations.
func buildArguments(co *pyc.CodeObject, defaults []stackvalue.Value, kwDefaults, annotations map[string]stackvalue.Value) *past.Arguments {
	idx := 0
	posOnly := buildArgList(co.Varnames, idx, co.PosOnlyArgcount, annotations)
	idx = co.PosOnlyArgcount
	args := buildArgList(co.Varnames, idx, co.Argcount-idx, annotations)
	idx = co.Argcount
	kwOnly := buildArgList(co.Varnames, idx, co.KwOnlyArgcount, annotations)
	idx += co.KwOnlyArgcount

	var vararg *past.Arg
	if co.HasVarargs() && idx < len(co.Varnames) {
		a := buildArg(co.Varnames[idx], annotations)
		vararg = &a
		idx++
	}
	var kwarg *past.Arg
	if co.HasVarkeywords() && idx < len(co.Varnames) {
		a := buildArg(co.Varnames[idx], annotations)
		kwarg = &a
	}

	defaultExprs := make([]past.Expression, 0, len(defaults))
	for _, v := range defaults {
		if e, ok := stackvalue.AsExpression(v); ok {
			defaultExprs = append(defaultExprs, e)
		}
	}
	kwDefaultExprs := make([]past.Expression, len(kwOnly))
	for i, a := range kwOnly {
		if v, ok := kwDefaults[a.Name]; ok {
			kwDefaultExprs[i], _ = stackvalue.AsExpression(v)
		}
	}

	return &past.Arguments{
		PosOnly:    posOnly,
		Args:       args,
		KwOnly:     kwOnly,
		Vararg:     vararg,
		Kwarg:      kwarg,
		Defaults:   defaultExprs,
		KwDefaults: kwDefaultExprs,
	}
}

func buildArgList(varnames []string, start, count int, annotations map[string]stackvalue.Value) []past.Arg {
	if count <= 0 {
		return nil
	}
	out := make([]past.Arg, 0, count)
	for i := start; i < start+count && i < len(varnames); i++ {
		out = append(out, buildArg(varnames[i], annotations))
	}
	return out
}

func buildArg(name string, annotations map[string]stackvalue.Value) past.Arg {
	a := past.Arg{Name: name}
	if v, ok := annotations[name]; ok {
		a.Annotation, _ = stackvalue.AsExpression(v)
	}
	return a
}
