package decompile

import (
	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/past"
	"github.com/dr8co/unpyc/internal/pattern"
	"github.com/dr8co/unpyc/internal/simulate"
)

// emitRegion walks blocks starting at start until stop reports true or there
// is no successor left to fall through to, folding every structured pattern
// internal/pattern recognizes into its corresponding past statement and
// falling back to linear per-instruction emission otherwise.
func (d *decompiler) emitRegion(start cfg.BlockID, stop func(cfg.BlockID) bool, stack *simulate.Stack) ([]past.Statement, error) {
	var out []past.Statement
	id := start
	for {
		if id == noBlock || stop(id) {
			return out, nil
		}
		if d.consumed[id] {
			// Already folded into an enclosing construct by another path
			// reaching the same merge point; nothing left to emit here.
			return out, nil
		}

		stmts, next, err := d.emitOne(id, stack)
		if err != nil {
			return out, err
		}
		out = append(out, stmts...)
		d.consumed[id] = true
		id = next
	}
}

// emitOne classifies block id and dispatches to the matching structured
// builder, or to linear emission for an Unknown shape. It first checks the
// ternary/boolop expression patterns, per pattern.DetectTernary's doc
// comment: those never start a statement, they compute a value mid-stream
// and hand the walk off at their merge point.
func (d *decompiler) emitOne(id cfg.BlockID, stack *simulate.Stack) ([]past.Statement, cfg.BlockID, error) {
	if tp, ok := d.rec.DetectTernary(id); ok {
		if err := d.emitTernaryInto(tp, stack); err != nil {
			return nil, noBlock, err
		}
		d.consumed[tp.Cond] = true
		d.consumed[tp.Then] = true
		d.consumed[tp.Else] = true
		return nil, tp.Merge, nil
	}
	if bp, ok := d.rec.DetectBoolOp(id); ok {
		if err := d.emitBoolOpInto(bp, stack); err != nil {
			return nil, noBlock, err
		}
		for _, b := range bp.Chain {
			d.consumed[b] = true
		}
		return nil, bp.Exit, nil
	}
	if stmts, next, ok, err := d.tryChainedCompare(id, stack); ok {
		return stmts, next, err
	}

	// Suppress re-detecting the try pattern on the try block the driver is
	// already emitting the body of; every other pattern the block roots is
	// still fair game.
	pat := d.rec.Detect(id, pattern.Options{SkipTry: id == d.activeTry})
	switch pat.Kind {
	case pattern.KindIf:
		return d.emitIf(id, pat.If, stack)
	case pattern.KindWhile:
		return d.emitWhile(id, pat.While, stack)
	case pattern.KindFor:
		return d.emitFor(id, pat.For, stack)
	case pattern.KindTry:
		return d.emitTry(id, pat.Try, stack)
	case pattern.KindWith:
		return d.emitWith(id, pat.With, stack)
	case pattern.KindMatch:
		return d.emitMatch(id, pat.Match, stack)
	default:
		return d.emitLinearBlock(id, stack)
	}
}
