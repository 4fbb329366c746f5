// Package simulate implements the symbolic stack simulator: replaying a
// straight-line run of instructions against an abstract operand stack to
// lift them into past expression trees and the handful of special
// stackvalue shapes (function/class objects, imports, saved locals) the
// driver needs for higher-level statement lowering.
//
// The stack is a plain slice with no hidden state: push/pop/clone are the
// whole interface, so forked branch simulations stay cheap and predictable.
package simulate

import (
	"github.com/dr8co/unpyc/internal/decomperr"
	"github.com/dr8co/unpyc/internal/stackvalue"
)

// Stack is the simulator's operand stack.
type Stack struct {
	values []stackvalue.Value
}

// NewStack returns an empty stack.
func NewStack() *Stack { return &Stack{} }

// Push pushes v onto the stack.
func (s *Stack) Push(v stackvalue.Value) { s.values = append(s.values, v) }

// Pop removes and returns the top value, or a StackUnderflow error if the
// stack is empty.
func (s *Stack) Pop(ctx decomperr.Context) (stackvalue.Value, error) {
	if len(s.values) == 0 {
		return nil, decomperr.New(decomperr.StackUnderflow, ctx, "pop on empty stack")
	}
	v := s.values[len(s.values)-1]
	s.values = s.values[:len(s.values)-1]
	return v, nil
}

// PopN pops n values, returning them in original (bottom-to-top) push
// order, e.g. for BUILD_TUPLE/CALL argument lists.
func (s *Stack) PopN(n int, ctx decomperr.Context) ([]stackvalue.Value, error) {
	if len(s.values) < n {
		return nil, decomperr.New(decomperr.StackUnderflow, ctx, "need %d operands, have %d", n, len(s.values))
	}
	out := append([]stackvalue.Value(nil), s.values[len(s.values)-n:]...)
	s.values = s.values[:len(s.values)-n]
	return out, nil
}

// Top returns the top value without removing it.
func (s *Stack) Top() (stackvalue.Value, bool) {
	if len(s.values) == 0 {
		return nil, false
	}
	return s.values[len(s.values)-1], true
}

// Len reports the current depth.
func (s *Stack) Len() int { return len(s.values) }

// Dup duplicates the top value (DUP_TOP / COPY 1).
func (s *Stack) Dup(ctx decomperr.Context) error {
	v, err := s.Pop(ctx)
	if err != nil {
		return err
	}
	s.Push(v)
	s.Push(stackvalue.Clone(v))
	return nil
}

// Rot2 swaps the top two values (ROT_TWO / SWAP 2).
func (s *Stack) Rot2(ctx decomperr.Context) error {
	n := len(s.values)
	if n < 2 {
		return decomperr.New(decomperr.StackUnderflow, ctx, "rot2 needs 2 operands, have %d", n)
	}
	s.values[n-1], s.values[n-2] = s.values[n-2], s.values[n-1]
	return nil
}

// Rot3 lifts the second and third values up one slot and moves the top
// value down to third (ROT_THREE).
func (s *Stack) Rot3(ctx decomperr.Context) error {
	n := len(s.values)
	if n < 3 {
		return decomperr.New(decomperr.StackUnderflow, ctx, "rot3 needs 3 operands, have %d", n)
	}
	top := s.values[n-1]
	s.values[n-1] = s.values[n-2]
	s.values[n-2] = s.values[n-3]
	s.values[n-3] = top
	return nil
}

// Swap exchanges the top value with the i-th from the top (SWAP i, 3.11+;
// SWAP 2 is equivalent to ROT_TWO).
func (s *Stack) Swap(i int, ctx decomperr.Context) error {
	n := len(s.values)
	if i < 2 {
		return nil
	}
	if n < i {
		return decomperr.New(decomperr.StackUnderflow, ctx, "swap %d needs %d operands, have %d", i, i, n)
	}
	s.values[n-1], s.values[n-i] = s.values[n-i], s.values[n-1]
	return nil
}

// Clone returns an independent copy of the stack: used when the driver
// forks simulation into two candidate branches (e.g. the true/false arms
// of an if) from a shared prefix.
func (s *Stack) Clone() *Stack {
	cp := make([]stackvalue.Value, len(s.values))
	for i, v := range s.values {
		cp[i] = stackvalue.Clone(v)
	}
	return &Stack{values: cp}
}
