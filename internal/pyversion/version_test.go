package pyversion

import "testing"

func TestComparators(t *testing.T) {
	tests := []struct {
		a, b     Version
		wantGTE  bool
		wantLT   bool
	}{
		{New(3, 9), New(3, 10), false, true},
		{New(3, 11), New(3, 11), true, false},
		{New(3, 12), New(3, 6), true, false},
		{New(2, 7), New(3, 0), false, true},
	}

	for _, tt := range tests {
		if got := tt.a.GTE(tt.b); got != tt.wantGTE {
			t.Errorf("%s.GTE(%s) = %v, want %v", tt.a, tt.b, got, tt.wantGTE)
		}
		if got := tt.a.LT(tt.b); got != tt.wantLT {
			t.Errorf("%s.LT(%s) = %v, want %v", tt.a, tt.b, got, tt.wantLT)
		}
	}
}

func TestInflectionPoints(t *testing.T) {
	if New(3, 5).WordCoded() {
		t.Error("3.5 should not be word-coded")
	}
	if !New(3, 6).WordCoded() {
		t.Error("3.6 should be word-coded")
	}
	if New(3, 9).JumpArgsAreWords() {
		t.Error("3.9 jump args are bytes, not words")
	}
	if !New(3, 10).JumpArgsAreWords() {
		t.Error("3.10 jump args are words")
	}
	if New(3, 10).HasExceptionTable() {
		t.Error("3.10 has no exception table")
	}
	if !New(3, 11).HasExceptionTable() {
		t.Error("3.11 has an exception table")
	}
	if !New(3, 11).RelativeConditionalJumps() {
		t.Error("3.11 POP_JUMP_IF_* is relative")
	}
	if !New(3, 12).InlineComprehensions() {
		t.Error("3.12 inlines comprehensions")
	}
}
