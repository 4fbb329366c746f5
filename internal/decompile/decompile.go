// Package decompile is the driver/emitter tying every other package
// together: it walks CFG blocks in structural order, asks internal/pattern
// what shape the current block roots, drives internal/simulate to replay
// instructions into expressions, and assembles the resulting
// internal/past statement tree.
package decompile

import (
	pkgerrors "github.com/pkg/errors"

	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/cfa/dom"
	"github.com/dr8co/unpyc/internal/decomperr"
	"github.com/dr8co/unpyc/internal/opcode"
	"github.com/dr8co/unpyc/internal/past"
	"github.com/dr8co/unpyc/internal/pattern"
	"github.com/dr8co/unpyc/internal/simulate"
	"github.com/dr8co/unpyc/internal/stackvalue"
	"github.com/dr8co/unpyc/pyc"
)

// decompiler owns every piece of per-function state the driver needs:
// the code object it is lowering, its CFG and dominator/post-dominator
// trees, the pattern recognizer built over them, the set of blocks already
// folded into a structured statement (so linear emission never re-visits
// them), and the pending-expression plumbing branch reconciliation needs.
//
// One decompiler is built per CodeObject; a nested function, lambda or class
// bound by a store recurses into its own fresh decompiler and its resulting
// AST fragment is grafted into the parent. A nested code object used as a
// value inside an expression (a pre-3.12 comprehension called in place, a
// lambda passed as an argument) is not decompiled into its parent: the call
// that consumes it fails as NotAnExpression.
type decompiler struct {
	co       *pyc.CodeObject
	g        *cfg.Graph
	domTree  *dom.Tree
	postTree *dom.PostTree
	rec      *pattern.Recognizer

	// consumed marks every block already folded into some structured
	// construct (an if/while/for/try/with/match body, or a ternary/boolop
	// chain), so the top-level linear walk skips re-emitting it.
	consumed map[cfg.BlockID]bool

	// pendingDecorators accumulates decorator expressions popped off CALL
	// instructions that wrap a FunctionObject/ClassObject still under
	// construction: the driver sees each `@decorator` application as a CALL whose sole argument is the
	// function/class value, before the eventual STORE that names it.
	pendingDecorators []past.Expression

	// pendingKwNames holds the keyword-argument names a KW_NAMES
	// instruction stashed for the CALL that immediately follows it
	// (3.11+'s calling convention splits argument names from the call
	// site itself).
	pendingKwNames []string

	// codeRefs resolves a stackvalue.CodeRef back to the concrete nested
	// pyc.CodeObject it stands in for, since stackvalue deliberately stays
	// free of any dependency on this package's recursion.
	codeRefs    map[int]*pyc.CodeObject
	nextCodeRef int

	// loopFrames tracks the while/for loops the walk is currently inside,
	// innermost last, so linear emission can tell a `continue` (unconditional
	// jump back to the current header) and a `break` (unconditional jump to
	// the current exit) apart from ordinary fallthrough.
	loopFrames []loopFrame

	// activeTry is the try block whose body the driver is currently walking;
	// Detect suppresses try-recognition on exactly that block so the body
	// walk doesn't re-root the construct it is already inside.
	activeTry cfg.BlockID
}

type loopFrame struct {
	header, exit cfg.BlockID
}

func (d *decompiler) pushLoop(header, exit cfg.BlockID) {
	d.loopFrames = append(d.loopFrames, loopFrame{header: header, exit: exit})
}

func (d *decompiler) popLoop() {
	d.loopFrames = d.loopFrames[:len(d.loopFrames)-1]
}

func (d *decompiler) currentLoop() (loopFrame, bool) {
	if len(d.loopFrames) == 0 {
		return loopFrame{}, false
	}
	return d.loopFrames[len(d.loopFrames)-1], true
}

// registerCodeRef hands out a fresh CodeRef for a nested code object
// encountered via LOAD_CONST, so MAKE_FUNCTION's resulting FunctionObject
// can carry a lightweight, comparable handle instead of an opaque pointer.
func (d *decompiler) registerCodeRef(co *pyc.CodeObject) stackvalue.CodeRef {
	idx := d.nextCodeRef
	d.nextCodeRef++
	d.codeRefs[idx] = co
	return stackvalue.CodeRef{Name: co.Name, Index: idx}
}

// codeRefCode resolves a CodeRef minted by registerCodeRef back to its
// concrete code object.
func (d *decompiler) codeRefCode(ref stackvalue.CodeRef) *pyc.CodeObject {
	return d.codeRefs[ref.Index]
}

// Decompile is the core's single public entry point: it lowers one
// CodeObject into a fully typed Module AST.
func Decompile(co *pyc.CodeObject) (*past.Module, error) {
	d, err := newDecompiler(co)
	if err != nil {
		return nil, err
	}
	body, err := d.run()
	if err != nil {
		return nil, err
	}
	return &past.Module{Name: co.Name, Body: body}, nil
}

func newDecompiler(co *pyc.CodeObject) (*decompiler, error) {
	exc := convertExceptionTable(co.ExceptionTable)
	var g *cfg.Graph
	var err error
	if co.Version.HasExceptionTable() && len(exc) > 0 {
		g, err = cfg.BuildWithExceptions(co.Code, exc, co.Version)
	} else {
		g, err = cfg.Build(co.Code, co.Version)
	}
	if err != nil {
		return nil, decomperr.Wrap(decomperr.InvalidBytecode, decomperr.Context{CodeName: co.Name}, err)
	}

	domTree := dom.Build(g)
	postTree := dom.BuildPost(g)
	rec := pattern.New(g, domTree, postTree)

	return &decompiler{
		co:        co,
		g:         g,
		domTree:   domTree,
		postTree:  postTree,
		rec:       rec,
		consumed:  map[cfg.BlockID]bool{},
		codeRefs:  map[int]*pyc.CodeObject{},
		activeTry: noBlock,
	}, nil
}

func convertExceptionTable(in []pyc.ExceptionEntry) []cfg.ExceptionEntry {
	out := make([]cfg.ExceptionEntry, len(in))
	for i, e := range in {
		out[i] = cfg.ExceptionEntry{Start: e.Start, End: e.End, Target: e.Target, Depth: e.Depth, Lasti: e.Lasti}
	}
	return out
}

// run emits the function/module body starting at the entry block.
func (d *decompiler) run() ([]past.Statement, error) {
	if len(d.g.Blocks) == 0 {
		return nil, nil
	}
	stmts, err := d.emitRegion(d.g.Entry, alwaysStop, simulate.NewStack())
	if err != nil {
		return nil, err
	}
	return elideTrailingReturnNone(stmts), nil
}

// alwaysStop never halts the top-level walk; it runs until there is
// nowhere left to fall through to.
func alwaysStop(cfg.BlockID) bool { return false }

// elideTrailingReturnNone drops a synthesized `return None` CPython always
// appends to a function/module body's bytecode; the source never wrote it.
func elideTrailingReturnNone(stmts []past.Statement) []past.Statement {
	if len(stmts) == 0 {
		return stmts
	}
	last, ok := stmts[len(stmts)-1].(*past.Return)
	if !ok || last.Value == nil {
		return stmts
	}
	if c, ok := last.Value.(*past.Constant); ok && c.Value == nil {
		return stmts[:len(stmts)-1]
	}
	return stmts
}

// elideTrailingContinue drops a `continue` closing a loop body: the
// back-jump it decompiled from is the loop's own machinery, not a statement
// the source contained.
func elideTrailingContinue(stmts []past.Statement) []past.Statement {
	if n := len(stmts); n > 0 {
		if _, ok := stmts[n-1].(*past.Continue); ok {
			return stmts[:n-1]
		}
	}
	return stmts
}

// ctxAt builds the error context for a block/instruction.
func (d *decompiler) ctxAt(id cfg.BlockID, offset int, op opcode.Opcode) decomperr.Context {
	return decomperr.Context{CodeName: d.co.Name, BlockID: int(id), Offset: offset, Opcode: opcode.Name(op)}
}

// blockStop builds a predicate that halts region emission at a fixed set
// of boundary blocks (a merge point, a loop exit, a handler chain's next
// candidate, ...).
func blockStop(ids ...cfg.BlockID) func(cfg.BlockID) bool {
	set := make(map[cfg.BlockID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(b cfg.BlockID) bool { return set[b] }
}

// ConstAt/NameAt/VarnameAt/FreevarAt satisfy simulate.CodeContext directly
// against the decompiler's own code object.
func (d *decompiler) ConstAt(i int) any      { return d.co.ConstAt(i) }
func (d *decompiler) NameAt(i int) string    { return d.co.NameAt(i) }
func (d *decompiler) VarnameAt(i int) string { return d.co.VarnameAt(i) }
func (d *decompiler) FreevarAt(i int) string { return d.co.FreevarAt(i) }

// fail wraps a recoverable error kind with this decompiler's context,
// ready for the caller to decide whether to degrade.
func (d *decompiler) fail(kind decomperr.Kind, id cfg.BlockID, offset int, op opcode.Opcode, format string, args ...any) error {
	return decomperr.Wrap(kind, d.ctxAt(id, offset, op), pkgerrors.Errorf(format, args...))
}

// stubStatement is the degraded fallback emitted when a
// recoverable error prevents faithful emission of a statement: a `pass`
// carrying no information loss beyond fidelity, rather than aborting the
// whole code object.
func stubStatement(reason string) past.Statement {
	_ = reason // not recorded anywhere; the AST carries only the pass
	return &past.Pass{}
}

func isRecoverable(err error) bool {
	kind, ok := decomperr.KindOf(err)
	return ok && !kind.Fatal()
}
