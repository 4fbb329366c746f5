// Package pattern classifies the sub-graph rooted at a basic block into
// one of the structured control-flow shapes a Python compiler lowers to
// bytecode: match, while, with, if/elif/else, for, try/except/finally,
// or a ternary/boolop expression chain. Detection never errors — an
// unrecognized shape returns Unknown, and the driver falls
// back to linear emission of that block.
package pattern

import (
	"github.com/dr8co/unpyc/internal/cfa/cfg"
	"github.com/dr8co/unpyc/internal/cfa/dom"
	"github.com/dr8co/unpyc/internal/opcode"
)

// Kind identifies which pattern a Detect call matched.
type Kind int

const (
	Unknown Kind = iota
	KindMatch
	KindWhile
	KindWith
	KindIf
	KindFor
	KindTry
	KindTernary
	KindBoolOp
)

// Options tunes a single Detect call.
type Options struct {
	// SkipTry suppresses try-pattern recognition, used when the driver has
	// already entered a try-body and is recursing into it.
	SkipTry bool

	// InLoopContext lets a loop-header block still expose an inner `if`
	// shape when Detect is called recursively on it from inside while/for
	// body emission.
	InLoopContext bool
}

// IfPattern is `if Cond: Then [elif ...] [else: Else]`.
type IfPattern struct {
	Cond, Then, Else cfg.BlockID
	HasElse          bool
	Merge            cfg.BlockID
	HasMerge         bool
	IsElif           bool
}

// WhilePattern is `while Cond: Body`.
type WhilePattern struct {
	Header, Body, Exit cfg.BlockID
}

// ForPattern is `for ... in ...: Body [else: ...]`.
type ForPattern struct {
	Setup, Header, Body, Exit cfg.BlockID
	HasElse                   bool
	Else                      cfg.BlockID
}

// HandlerRecord is one candidate except-clause block.
type HandlerRecord struct {
	Block  cfg.BlockID
	IsBare bool
}

// TryPattern is `try: ... except ...: ... [else: ...] [finally: ...]`.
type TryPattern struct {
	Try      cfg.BlockID
	Handlers []HandlerRecord
	HasElse  bool
	Else     cfg.BlockID
	HasFinal bool
	Finally  cfg.BlockID
	HasExit  bool
	Exit     cfg.BlockID
}

// WithPattern is `with Setup: Body` with a compiler-emitted cleanup block.
type WithPattern struct {
	Setup, Body, Cleanup, Exit cfg.BlockID
}

// MatchCaseRecord is one `case` arm's test block.
type MatchCaseRecord struct {
	Block cfg.BlockID
}

// MatchPattern is `match Subject: case ...`.
type MatchPattern struct {
	Subject cfg.BlockID
	Cases   []MatchCaseRecord
	HasExit bool
	Exit    cfg.BlockID
}

// TernaryPattern is `a if cond else b` collapsed from a tiny diamond.
type TernaryPattern struct {
	Cond, Then, Else, Merge cfg.BlockID
}

// BoolOpPattern is an `and`/`or` short-circuit chain.
type BoolOpPattern struct {
	IsAnd bool
	Chain []cfg.BlockID
	Exit  cfg.BlockID

	// CopyToBool marks the 3.12+ `COPY; TO_BOOL; POP_JUMP_IF_*` encoding
	// (as opposed to the legacy JUMP_IF_*_OR_POP opcodes): each chain block
	// but the first opens with a POP_TOP discarding the previous operand's
	// duplicate, and ends with COPY/TO_BOOL/conditional-jump instead of a
	// single *_OR_POP instruction.
	CopyToBool bool
}

// Pattern is the tagged result of a single Detect call.
type Pattern struct {
	Kind    Kind
	If      *IfPattern
	While   *WhilePattern
	For     *ForPattern
	Try     *TryPattern
	With    *WithPattern
	Match   *MatchPattern
	Ternary *TernaryPattern
	BoolOp  *BoolOpPattern
}

// memo caches try-pattern detections per block and expanded loop bodies
// per header; both are rediscovered repeatedly during emission otherwise.
type memo struct {
	tryResults map[cfg.BlockID]*TryPattern
	loopBodies map[cfg.BlockID][]cfg.BlockID
}

// Recognizer holds the graph and analysis results Detect consults, plus
// its memoization tables. One Recognizer is built per code object and
// reused across every Detect call the driver makes while emitting it.
type Recognizer struct {
	g        *cfg.Graph
	domTree  *dom.Tree
	postTree *dom.PostTree
	m        memo
}

// New builds a Recognizer over an already-built graph and its dominator
// trees.
func New(g *cfg.Graph, domTree *dom.Tree, postTree *dom.PostTree) *Recognizer {
	return &Recognizer{
		g: g, domTree: domTree, postTree: postTree,
		m: memo{tryResults: map[cfg.BlockID]*TryPattern{}, loopBodies: map[cfg.BlockID][]cfg.BlockID{}},
	}
}

// Detect classifies the block under a fixed priority order: match >
// while > with > if > for > try > ternary/boolop > unknown.
func (r *Recognizer) Detect(id cfg.BlockID, opts Options) Pattern {
	b := r.g.Blocks[id]
	if len(b.Instructions) == 0 {
		return Pattern{Kind: Unknown}
	}

	if p, ok := r.detectMatch(b); ok {
		return Pattern{Kind: KindMatch, Match: p}
	}
	if p, ok := r.detectWhile(b, opts); ok {
		return Pattern{Kind: KindWhile, While: p}
	}
	if p, ok := r.detectWith(b); ok {
		return Pattern{Kind: KindWith, With: p}
	}
	if p, ok := r.detectIf(b); ok {
		return Pattern{Kind: KindIf, If: p}
	}
	if p, ok := r.detectFor(b); ok {
		return Pattern{Kind: KindFor, For: p}
	}
	if !opts.SkipTry {
		if p, ok := r.detectTry(b); ok {
			return Pattern{Kind: KindTry, Try: p}
		}
	}
	if p, ok := r.detectTernary(b); ok {
		return Pattern{Kind: KindTernary, Ternary: p}
	}
	if p, ok := r.detectBoolOp(b); ok {
		return Pattern{Kind: KindBoolOp, BoolOp: p}
	}
	return Pattern{Kind: Unknown}
}

// DetectTernary exposes the classic-ternary shape directly: the driver
// calls this before it calls Detect when it is mid-expression and needs to know
// whether a conditional diamond is a value-producing ternary rather than a
// full if-statement.
func (r *Recognizer) DetectTernary(id cfg.BlockID) (*TernaryPattern, bool) {
	return r.detectTernary(r.g.Blocks[id])
}

// DetectBoolOp exposes the and/or short-circuit chain shape directly, for
// the same reason as DetectTernary.
func (r *Recognizer) DetectBoolOp(id cfg.BlockID) (*BoolOpPattern, bool) {
	return r.detectBoolOp(r.g.Blocks[id])
}

func terminatorOpcode(b *cfg.BasicBlock) opcode.Opcode {
	if len(b.Instructions) == 0 {
		return opcode.Invalid
	}
	return b.Terminator().Op
}

func containsOp(b *cfg.BasicBlock, ops ...opcode.Opcode) bool {
	for _, in := range b.Instructions {
		for _, want := range ops {
			if in.Op == want {
				return true
			}
		}
	}
	return false
}
