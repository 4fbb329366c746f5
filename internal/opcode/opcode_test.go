package opcode

import (
	"testing"

	"github.com/dr8co/unpyc/internal/pyversion"
)

func TestOpcodeOfKnownBytes(t *testing.T) {
	op, ok := OpcodeOf(pyversion.V311, 100)
	if !ok || op != LOAD_CONST {
		t.Fatalf("OpcodeOf(3.11, 100) = %v, %v; want LOAD_CONST, true", op, ok)
	}
}

func TestOpcodeOfUnknownByte(t *testing.T) {
	if _, ok := OpcodeOf(pyversion.V39, 255); ok {
		t.Fatalf("expected byte 255 to be undefined in 3.9")
	}
}

func TestRoundTrip(t *testing.T) {
	v := pyversion.V312
	for _, op := range []Opcode{LOAD_CONST, LOAD_FAST, STORE_FAST, BINARY_OP, RETURN_CONST, TO_BOOL} {
		b, ok := ByteOf(v, op)
		if !ok {
			t.Fatalf("ByteOf(%v, %s) not found", v, Name(op))
		}
		got, ok := OpcodeOf(v, b)
		if !ok || got != op {
			t.Fatalf("round trip for %s failed: got %v, %v", Name(op), got, ok)
		}
	}
}

func TestCacheEntries(t *testing.T) {
	if n := CacheEntries(LOAD_GLOBAL, pyversion.V39); n != 0 {
		t.Fatalf("3.9 has no caches, got %d", n)
	}
	if n := CacheEntries(LOAD_GLOBAL, pyversion.V311); n != 4 {
		t.Fatalf("LOAD_GLOBAL caches in 3.11 = %d, want 4", n)
	}
}

func TestJumpKind(t *testing.T) {
	if JumpKind(POP_JUMP_IF_FALSE) != IfFalse {
		t.Fatalf("POP_JUMP_IF_FALSE should be IfFalse family")
	}
	if JumpKind(FOR_ITER) != IterFamily {
		t.Fatalf("FOR_ITER should be IterFamily")
	}
	if IsJump(LOAD_CONST) {
		t.Fatalf("LOAD_CONST is not a jump")
	}
}
