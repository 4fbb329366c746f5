// Package pyc models the decoded form of a compiled Python module: the
// CodeObject the decompilation core consumes, plus a minimal fixture
// loader and line-table reader so cmd/unpyc and the end-to-end tests in
// internal/decompile have something concrete to feed the core.
package pyc

import "github.com/dr8co/unpyc/internal/pyversion"

// Flag bits from CPython's code object flags word. Only the handful the
// driver consults for signature/generator/coroutine lowering are named.
const (
	FlagOptimized      = 1 << 0
	FlagNewlocals      = 1 << 1
	FlagVarargs        = 1 << 2
	FlagVarkeywords    = 1 << 3
	FlagNested         = 1 << 4
	FlagGenerator      = 1 << 5
	FlagCoroutine      = 1 << 7
	FlagAsyncGenerator = 1 << 9
)

// CodeObject is the input struct the core consumes.
type CodeObject struct {
	Name            string
	Code            []byte
	Consts          []any
	Names           []string
	Varnames        []string
	Freevars        []string
	Cellvars        []string
	Argcount        int
	PosOnlyArgcount int
	KwOnlyArgcount  int
	Flags           int
	FirstLineNo     int
	LineTable       *LineTable
	ExceptionTable  []ExceptionEntry
	Version         pyversion.Version
}

// ExceptionEntry mirrors internal/cfa/cfg.ExceptionEntry at the pyc/input
// boundary, so this package does not need to import internal/cfa/cfg just
// to describe its own field; internal/decompile converts between the two
// when building a CFG.
type ExceptionEntry struct {
	Start, End int
	Target     int
	Depth      int
	Lasti      bool
}

// ConstAt, NameAt, VarnameAt, FreevarAt satisfy internal/simulate.CodeContext.
func (co *CodeObject) ConstAt(i int) any {
	if i < 0 || i >= len(co.Consts) {
		return nil
	}
	return co.Consts[i]
}

func (co *CodeObject) NameAt(i int) string {
	if i < 0 || i >= len(co.Names) {
		return "?"
	}
	return co.Names[i]
}

func (co *CodeObject) VarnameAt(i int) string {
	if i < 0 || i >= len(co.Varnames) {
		return "?"
	}
	return co.Varnames[i]
}

// FreevarAt resolves a LOAD_DEREF/LOAD_CLOSURE argument. CPython indexes
// cellvars followed by freevars in a single combined space; this package
// folds that concatenation here rather than spreading it across callers.
func (co *CodeObject) FreevarAt(i int) string {
	if i < len(co.Cellvars) {
		return co.Cellvars[i]
	}
	j := i - len(co.Cellvars)
	if j < 0 || j >= len(co.Freevars) {
		return "?"
	}
	return co.Freevars[j]
}

// IsGenerator reports whether this code object's frame suspends via yield.
func (co *CodeObject) IsGenerator() bool { return co.Flags&FlagGenerator != 0 }

// IsCoroutine reports whether this code object is an `async def` body.
func (co *CodeObject) IsCoroutine() bool { return co.Flags&FlagCoroutine != 0 }

// HasVarargs reports a `*args` parameter per the signature flag bits.
func (co *CodeObject) HasVarargs() bool { return co.Flags&FlagVarargs != 0 }

// HasVarkeywords reports a `**kwargs` parameter per the signature flag bits.
func (co *CodeObject) HasVarkeywords() bool { return co.Flags&FlagVarkeywords != 0 }
