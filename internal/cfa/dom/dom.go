// Package dom computes dominator and post-dominator trees over a cfg.Graph,
// using iterative
// bitset intersection over reverse-post-order rather than the classic
// Lengauer-Tarjan algorithm — the graphs here are small enough (one
// function's worth of blocks) that the straightforward fixpoint is both
// simpler to get right and fast enough.
package dom

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/dr8co/unpyc/internal/cfa/cfg"
)

// Tree is a dominator tree over the blocks of a cfg.Graph.
type Tree struct {
	n    int
	idom []int // idom[b] == -1 for the entry block
	doms []*bitset.BitSet
}

// Build computes the dominator tree of g, rooted at g.Entry.
func Build(g *cfg.Graph) *Tree {
	return buildGeneric(len(g.Blocks), int(g.Entry), func(b int) []int {
		return predecessorsOf(g, b)
	}, forwardRPO(g))
}

// PostTree is a post-dominator tree: a block p post-dominates b when every
// path from b to a function exit passes through p.
type PostTree struct {
	*Tree
}

// BuildPost computes the post-dominator tree of g. A synthetic exit node at
// index len(g.Blocks) is the root, with an edge from every block that has no
// non-exception successor (RETURN_VALUE/RETURN_CONST/RAISE_VARARGS/RERAISE
// terminators, or otherwise-unterminated blocks).
func BuildPost(g *cfg.Graph) *PostTree {
	exit := len(g.Blocks)
	n := exit + 1

	succOf := func(b int) []int {
		if b == exit {
			return nil
		}
		var out []int
		hasReal := false
		for _, e := range g.Blocks[b].Successors {
			if e.Kind == cfg.Exception {
				continue
			}
			hasReal = true
			out = append(out, int(e.Target))
		}
		if !hasReal {
			out = append(out, exit)
		}
		return out
	}
	predOf := func(b int) []int {
		var out []int
		for i := 0; i < exit; i++ {
			for _, s := range succOf(i) {
				if s == b {
					out = append(out, i)
				}
			}
		}
		return out
	}

	// On the reversed graph a block's forward successors are its
	// predecessors, and the walk out of exit follows forward predecessors.
	order := reversePostOrder(exit, predOf, n)
	t := buildGeneric(n, exit, succOf, order)
	return &PostTree{Tree: t}
}

// Merge returns the nearest common post-dominator of a and b: the join
// point where two branches of a conditional reunite. The synthetic exit
// node never counts as a real merge
// point; ok is false if the only common post-dominator is the exit.
func (pt *PostTree) Merge(a, b cfg.BlockID) (cfg.BlockID, bool) {
	exit := cfg.BlockID(pt.n - 1)
	ancestors := func(x cfg.BlockID) []cfg.BlockID {
		var chain []cfg.BlockID
		cur := x
		for {
			chain = append(chain, cur)
			next, ok := pt.ImmediateDom(cur)
			if !ok {
				break
			}
			cur = next
		}
		return chain
	}
	aChain := ancestors(a)
	bSet := make(map[cfg.BlockID]bool)
	for _, x := range ancestors(b) {
		bSet[x] = true
	}
	for _, x := range aChain {
		if bSet[x] {
			if x == exit {
				return 0, false
			}
			return x, true
		}
	}
	return 0, false
}

// ImmediateDom returns b's immediate dominator and true, or (0, false) for
// the root (which has none).
func (t *Tree) ImmediateDom(b cfg.BlockID) (cfg.BlockID, bool) {
	id := t.idom[int(b)]
	if id < 0 {
		return 0, false
	}
	return cfg.BlockID(id), true
}

// Dominates reports whether a dominates b (reflexively: a dominates itself).
func (t *Tree) Dominates(a, b cfg.BlockID) bool {
	return t.doms[int(b)].Test(uint(a))
}

// IsInLoop reports whether block b lies in the natural loop headed by h,
// as computed by LoopBody.
func (t *Tree) IsInLoop(g *cfg.Graph, h, b cfg.BlockID) bool {
	return LoopBody(g, t, h).Test(uint(b))
}

// LoopHeaders returns every block that is the target of a LoopBack edge in g.
func LoopHeaders(g *cfg.Graph) []cfg.BlockID {
	seen := make(map[cfg.BlockID]bool)
	var out []cfg.BlockID
	for _, b := range g.Blocks {
		for _, e := range b.Successors {
			if e.Kind == cfg.LoopBack && !seen[e.Target] {
				seen[e.Target] = true
				out = append(out, e.Target)
			}
		}
	}
	return out
}

// LoopBody computes the natural loop headed by h: h itself, plus every block
// that can reach a LoopBack edge targeting h without first passing through
// h.
func LoopBody(g *cfg.Graph, t *Tree, h cfg.BlockID) *bitset.BitSet {
	body := bitset.New(uint(len(g.Blocks)))
	body.Set(uint(h))

	var backSources []cfg.BlockID
	for _, b := range g.Blocks {
		for _, e := range b.Successors {
			if e.Kind == cfg.LoopBack && e.Target == h {
				backSources = append(backSources, b.ID)
			}
		}
	}

	stack := append([]cfg.BlockID{}, backSources...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if body.Test(uint(cur)) {
			continue
		}
		if !t.Dominates(h, cur) {
			continue
		}
		body.Set(uint(cur))
		for _, p := range predecessorsOf(g, int(cur)) {
			if !body.Test(uint(p)) {
				stack = append(stack, cfg.BlockID(p))
			}
		}
	}
	return body
}

func predecessorsOf(g *cfg.Graph, b int) []int {
	out := make([]int, 0, len(g.Blocks[b].Predecessors))
	for _, p := range g.Blocks[b].Predecessors {
		out = append(out, int(p))
	}
	return out
}

func forwardRPO(g *cfg.Graph) []int {
	succOf := func(b int) []int {
		var out []int
		for _, e := range g.Blocks[b].Successors {
			out = append(out, int(e.Target))
		}
		return out
	}
	return reversePostOrder(int(g.Entry), succOf, len(g.Blocks))
}

func reversePostOrder(root int, succOf func(int) []int, n int) []int {
	visited := make([]bool, n)
	var post []int
	var visit func(int)
	visit = func(b int) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range succOf(b) {
			visit(s)
		}
		post = append(post, b)
	}
	visit(root)
	// Nodes unreachable from root (shouldn't normally happen) are appended
	// in index order so every node still gets a dominator-set slot.
	for i := 0; i < n; i++ {
		if !visited[i] {
			visit(i)
		}
	}
	rpo := make([]int, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	return rpo
}

// buildGeneric runs the fixpoint dominator computation. predOf(b) returns
// b's predecessors in the direction this tree walks (forward predecessors
// for a dominator tree, successors-as-predecessors for a post-dominator
// tree). order is a reverse-post-order traversal from root.
func buildGeneric(n, root int, predOf func(int) []int, order []int) *Tree {
	full := bitset.New(uint(n))
	for i := 0; i < n; i++ {
		full.Set(uint(i))
	}

	doms := make([]*bitset.BitSet, n)
	for i := 0; i < n; i++ {
		if i == root {
			b := bitset.New(uint(n))
			b.Set(uint(root))
			doms[i] = b
		} else {
			doms[i] = full.Clone()
		}
	}

	changed := true
	for changed {
		changed = false
		for _, b := range order {
			if b == root {
				continue
			}
			preds := predOf(b)
			var newDom *bitset.BitSet
			for _, p := range preds {
				if doms[p] == nil {
					continue
				}
				if newDom == nil {
					newDom = doms[p].Clone()
				} else {
					newDom = newDom.Intersection(doms[p])
				}
			}
			if newDom == nil {
				newDom = bitset.New(uint(n))
			}
			newDom.Set(uint(b))
			if !newDom.Equal(doms[b]) {
				doms[b] = newDom
				changed = true
			}
		}
	}

	idom := make([]int, n)
	for i := range idom {
		idom[i] = -1
	}
	for _, b := range order {
		if b == root {
			continue
		}
		// The immediate dominator is the strict dominator that is itself
		// dominated by every other strict dominator of b.
		candidates := doms[b].Clone()
		candidates.Clear(uint(b))
		best := -1
		for c, ok := candidates.NextSet(0); ok; c, ok = candidates.NextSet(c + 1) {
			isImmediate := true
			for o, ok2 := candidates.NextSet(0); ok2; o, ok2 = candidates.NextSet(o + 1) {
				if o != c && doms[o].Test(c) {
					isImmediate = false
					break
				}
			}
			if isImmediate {
				best = int(c)
				break
			}
		}
		idom[b] = best
	}

	return &Tree{n: n, idom: idom, doms: doms}
}
