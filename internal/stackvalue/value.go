// Package stackvalue defines the symbolic values the simulator pushes and
// pops while replaying a basic block: not runtime values (nothing
// executes), but tags distinguishing a plain expression from the handful
// of special shapes (a function body under construction, a class under
// construction, an import, a saved copy of the stack for a DUP_TOP/COPY
// chain) that drive higher-level lowering in the driver.
package stackvalue

import (
	"fmt"

	"github.com/dr8co/unpyc/internal/past"
	"github.com/dr8co/unpyc/pyc"
)

// Kind identifies which Value variant a value is.
type Kind string

const (
	KindExpression   Kind = "EXPRESSION"
	KindFunctionObj  Kind = "FUNCTION_OBJECT"
	KindClassObj     Kind = "CLASS_OBJECT"
	KindImportModule Kind = "IMPORT_MODULE"
	KindSavedLocal   Kind = "SAVED_LOCAL"
	KindCodeConstant Kind = "CODE_CONSTANT"
	KindUnknown      Kind = "UNKNOWN"
)

// Value is the symbolic counterpart of a runtime Python object during
// simulation. Only Expression values can be consumed as operands of a
// larger expression or the value half of a statement; the rest exist to
// carry enough metadata for the driver to lower a MAKE_FUNCTION,
// LOAD_BUILD_CLASS+CALL, or IMPORT_NAME sequence into a def/class/import
// statement instead of an expression.
type Value interface {
	Kind() Kind
	Inspect() string
}

// Expression wraps a fully-formed expression AST node.
type Expression struct {
	Expr past.Expression
}

func (*Expression) Kind() Kind          { return KindExpression }
func (e *Expression) Inspect() string   { return e.Expr.String() }

// CodeRef is a lightweight handle to a nested code object, used instead of
// an arbitrary `any` so FunctionObject/ClassObject stay comparable and
// serializable. The decompile package supplies the concrete pyc.CodeObject
// this refers to at recursion time.
type CodeRef struct {
	Name  string
	Index int
}

// FunctionObject is the value MAKE_FUNCTION pushes: a nested code object
// plus whichever of defaults/kwdefaults/annotations/closure the flag bits
// selected.
type FunctionObject struct {
	Code        CodeRef
	Defaults    []Value
	KwDefaults  map[string]Value
	Annotations map[string]Value
	Closure     []Value
	Qualname    string
}

func (*FunctionObject) Kind() Kind { return KindFunctionObj }
func (f *FunctionObject) Inspect() string {
	return fmt.Sprintf("<function %s>", f.Code.Name)
}

// ClassObject is the value a `LOAD_BUILD_CLASS; ...; CALL` sequence
// collapses to: the class body's code object plus its bases and keywords.
type ClassObject struct {
	Code     CodeRef
	Name     string
	Bases    []Value
	Keywords map[string]Value
}

func (*ClassObject) Kind() Kind { return KindClassObj }
func (c *ClassObject) Inspect() string {
	return fmt.Sprintf("<class %s>", c.Name)
}

// ImportModule is the value IMPORT_NAME/IMPORT_FROM push.
type ImportModule struct {
	Module   string
	FromList []string
	Level    int
}

func (*ImportModule) Kind() Kind { return KindImportModule }
func (i *ImportModule) Inspect() string {
	return fmt.Sprintf("<import %s>", i.Module)
}

// CodeConstant wraps a nested code object loaded straight out of co_consts.
// LOAD_CONST of a nested *pyc.CodeObject must push this instead of a plain
// Expression/Constant so the driver can recognize it at MAKE_FUNCTION time
// and recurse into it rather than rendering it as an opaque literal.
type CodeConstant struct {
	Code *pyc.CodeObject
}

func (*CodeConstant) Kind() Kind { return KindCodeConstant }
func (c *CodeConstant) Inspect() string {
	return fmt.Sprintf("<code %s>", c.Code.Name)
}

// SavedLocal names the local a duplicated value will eventually be stored
// to. Neither the simulator nor the driver pushes one: DUP_TOP/COPY push a
// clone of the top value, and the driver recognizes a chain assignment by
// looking ahead from the DUP_TOP/COPY instead.
type SavedLocal struct {
	Name string
}

func (*SavedLocal) Kind() Kind        { return KindSavedLocal }
func (s *SavedLocal) Inspect() string { return fmt.Sprintf("<saved %s>", s.Name) }

// Unknown is pushed when an opcode's effect cannot be modeled (an
// unsupported or version-specific form); it poisons anything that tries to
// consume it as an Expression, surfacing as NotAnExpression rather than
// silently fabricating a wrong one.
type Unknown struct {
	Reason string
}

func (*Unknown) Kind() Kind        { return KindUnknown }
func (u *Unknown) Inspect() string { return fmt.Sprintf("<unknown: %s>", u.Reason) }

// AsExpression returns v's underlying expression node if v is an
// Expression, or (nil, false) otherwise.
func AsExpression(v Value) (past.Expression, bool) {
	e, ok := v.(*Expression)
	if !ok {
		return nil, false
	}
	return e.Expr, true
}

// Clone makes a shallow copy of v suitable for forking a stack across two
// candidate branches: the simulator never mutates a Value's expression
// tree in place, so this only needs to copy the Value wrapper itself plus
// its slice/map fields (so appends in one branch don't alias the other).
func Clone(v Value) Value {
	switch x := v.(type) {
	case *Expression:
		cp := *x
		return &cp
	case *FunctionObject:
		cp := *x
		cp.Defaults = append([]Value(nil), x.Defaults...)
		cp.Closure = append([]Value(nil), x.Closure...)
		cp.KwDefaults = cloneMap(x.KwDefaults)
		cp.Annotations = cloneMap(x.Annotations)
		return &cp
	case *ClassObject:
		cp := *x
		cp.Bases = append([]Value(nil), x.Bases...)
		cp.Keywords = cloneMap(x.Keywords)
		return &cp
	case *ImportModule:
		cp := *x
		cp.FromList = append([]string(nil), x.FromList...)
		return &cp
	case *SavedLocal:
		cp := *x
		return &cp
	case *CodeConstant:
		cp := *x
		return &cp
	case *Unknown:
		cp := *x
		return &cp
	default:
		return v
	}
}

func cloneMap(m map[string]Value) map[string]Value {
	if m == nil {
		return nil
	}
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
