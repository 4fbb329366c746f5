// Package pyversion models the Python (major, minor) release a CodeObject
// was compiled under.
//
// The version gates the instruction encoding (variable-length before 3.6,
// word-coded from 3.6), jump-arg scaling (byte vs. word offsets),
// conditional-jump semantics (absolute vs. relative from 3.11),
// inline-cache counts per instruction, whether an exception table is
// present at all, and whether comprehensions run inline (3.12+). Every other package that needs
// version-dependent behavior asks a Version, rather than hand-rolling its
// own comparisons, so the per-version logic stays concentrated in one
// place (opcode tables, jump arithmetic, and the recognizer's few
// version-gated branch points).
package pyversion

import "fmt"

// Version is a Python (major, minor) release pair.
type Version struct {
	Major int
	Minor int
}

// New builds a Version from a (major, minor) pair.
func New(major, minor int) Version {
	return Version{Major: major, Minor: minor}
}

// cmp returns -1, 0, or 1 as v is less than, equal to, or greater than other.
func (v Version) cmp(other Version) int {
	if v.Major != other.Major {
		if v.Major < other.Major {
			return -1
		}
		return 1
	}
	if v.Minor != other.Minor {
		if v.Minor < other.Minor {
			return -1
		}
		return 1
	}
	return 0
}

// GTE reports whether v is greater than or equal to other.
func (v Version) GTE(other Version) bool { return v.cmp(other) >= 0 }

// LT reports whether v is strictly less than other.
func (v Version) LT(other Version) bool { return v.cmp(other) < 0 }

// String renders the version as "major.minor".
func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// Named inflection points in the bytecode format's history.
var (
	// V27 is the floor of supported versions (variable-length pre-3.6 encoding).
	V27 = New(2, 7)

	// V36 introduces the fixed 2-byte-per-instruction word encoding.
	V36 = New(3, 6)

	// V39 is the last pre-3.10 release (used by several test fixtures, e.g. S1).
	V39 = New(3, 9)

	// V310 scales jump arguments by word (x2) instead of byte offsets.
	V310 = New(3, 10)

	// V311 introduces the exception table and relative POP_JUMP_IF_* semantics.
	V311 = New(3, 11)

	// V312 introduces RETURN_CONST and inline comprehensions.
	V312 = New(3, 12)

	// V314 introduces LOAD_SPECIAL-based with-statement setup.
	V314 = New(3, 14)
)

// WordCoded reports whether instructions are 2-byte-per-slot plus inline
// cache words (3.6+), as opposed to the pre-3.6 variable-length encoding.
func (v Version) WordCoded() bool { return v.GTE(V36) }

// JumpArgsAreWords reports whether a jump instruction's argument counts in
// 2-byte words (3.10+) rather than raw bytes.
func (v Version) JumpArgsAreWords() bool { return v.GTE(V310) }

// HasExceptionTable reports whether the CodeObject carries a 3.11+ style
// exception table instead of SETUP_* targets.
func (v Version) HasExceptionTable() bool { return v.GTE(V311) }

// RelativeConditionalJumps reports whether POP_JUMP_IF_* families encode a
// jump relative to the next instruction (3.11+) rather than an absolute
// target.
func (v Version) RelativeConditionalJumps() bool { return v.GTE(V311) }

// InlineComprehensions reports whether list/set/dict comprehensions execute
// in the enclosing frame (3.12+) instead of a synthesized inner code object.
func (v Version) InlineComprehensions() bool { return v.GTE(V312) }
